package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

func (c *Client) Generate(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}

	if req.Model == "" && c.model != "" {
		req.Model = c.model
	}

	if req.Model == "" {
		return nil, ErrNoModel
	}

	req.Stream = false

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	resp, err := c.doRequestWithRetry(ctx, http.MethodPost, c.completionsPath, body, "application/json")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var completion CompletionResponse
	if err := json.NewDecoder(resp.Body).Decode(&completion); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return &completion, nil
}
