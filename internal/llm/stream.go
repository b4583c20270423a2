package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"unicode/utf8"
)

// Stream starts a streaming completion. The returned channel is closed when
// the stream ends; a chunk carrying Err is sent first if it broke early.
func (c *Client) Stream(ctx context.Context, req CompletionRequest) (<-chan StreamChunk, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}

	if req.Model == "" && c.model != "" {
		req.Model = c.model
	}

	if req.Model == "" {
		return nil, ErrNoModel
	}

	req.Stream = true

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	accept := "text/event-stream"
	if c.streamingFormat == StreamingFormatNDJSON {
		accept = "application/x-ndjson"
	}

	resp, err := c.doRequestWithRetry(ctx, http.MethodPost, c.completionsPath, body, accept)
	if err != nil {
		return nil, err
	}

	ch := make(chan StreamChunk, 1)

	go c.streamReader(ctx, resp.Body, ch, c.streamingFormat)

	return ch, nil
}

func (c *Client) streamReader(ctx context.Context, body io.ReadCloser, ch chan<- StreamChunk, format StreamingFormat) {
	defer close(ch)
	defer body.Close()

	reader := bufio.NewReader(body)

	if format == StreamingFormatNDJSON {
		readNDJSONStream(ctx, reader, ch)
	} else {
		readSSEStream(ctx, reader, ch)
	}
}

func sendChunk(ctx context.Context, ch chan<- StreamChunk, chunk StreamChunk) bool {
	select {
	case ch <- chunk:
		return true
	case <-ctx.Done():
		return false
	}
}

func readSSEStream(ctx context.Context, reader *bufio.Reader, ch chan<- StreamChunk) {
	for {
		if ctx.Err() != nil {
			sendChunk(ctx, ch, StreamChunk{Err: ctx.Err()})
			return
		}

		line, err := reader.ReadString('\n')
		if err != nil && (err != io.EOF || line == "") {
			if err != io.EOF {
				sendChunk(ctx, ch, StreamChunk{Err: fmt.Errorf("%w: %w", ErrStreamClosed, err)})
			}
			return
		}

		line = strings.TrimSpace(line)

		if line == "" || strings.HasPrefix(line, ":") {
			continue
		}

		data, ok := strings.CutPrefix(line, "data:")
		if !ok {
			continue
		}
		data = strings.TrimSpace(data)

		if data == "[DONE]" {
			return
		}

		var chunk StreamChunk
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			continue
		}

		if !sendChunk(ctx, ch, chunk) {
			return
		}
	}
}

func readNDJSONStream(ctx context.Context, reader *bufio.Reader, ch chan<- StreamChunk) {
	for {
		if ctx.Err() != nil {
			sendChunk(ctx, ch, StreamChunk{Err: ctx.Err()})
			return
		}

		line, err := reader.ReadBytes('\n')
		if err != nil && (err != io.EOF || len(line) == 0) {
			if err != io.EOF {
				sendChunk(ctx, ch, StreamChunk{Err: fmt.Errorf("%w: %w", ErrStreamClosed, err)})
			}
			return
		}

		line = bytes.TrimSpace(line)

		if len(line) == 0 || !utf8.Valid(line) {
			continue
		}

		var ollamaChunk OllamaStreamChunk
		if err := json.Unmarshal(line, &ollamaChunk); err != nil {
			continue
		}

		if !sendChunk(ctx, ch, ollamaChunk.ToStreamChunk()) {
			return
		}

		if ollamaChunk.Done {
			return
		}
	}
}
