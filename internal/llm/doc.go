// Package llm provides an OpenAI-compatible HTTP client for chat completions
// with tool calling.
//
// # Supported Providers
//
// The client is compatible with any OpenAI-compatible API including:
//
//   - OpenAI (https://api.openai.com)
//   - Azure AI model inference (completions path "/chat/completions")
//   - OpenRouter (https://openrouter.ai/api)
//   - Ollama (http://localhost:11434, SSE on /v1 or NDJSON on /api/chat)
//
// # Quick Start
//
//	client, err := llm.NewClient(
//	    llm.WithBaseURL(endpoint),
//	    llm.WithAPIKey("sk-..."),
//	    llm.WithModel("gpt-4o"),
//	)
//
// # Generate (Synchronous)
//
//	resp, err := client.Generate(ctx, llm.CompletionRequest{
//	    Messages: []llm.Message{
//	        llm.SystemMessage("You are a helpful assistant."),
//	        llm.UserMessage("What is the weather in Seattle?"),
//	    },
//	    Tools: tools,
//	})
//
// # Stream (Asynchronous)
//
//	ch, err := client.Stream(ctx, req)
//	for chunk := range ch {
//	    if chunk.Err != nil {
//	        return chunk.Err
//	    }
//	    fmt.Print(chunk.Choices[0].Delta.Content)
//	}
//
// # Middlewares
//
// NewMetricsMiddleware records prometheus metrics and NewTracingMiddleware
// opens a "chat <model>" span per call. Both implement LLMClient and can be
// stacked:
//
//	var c llm.LLMClient = client
//	c = llm.NewMetricsMiddleware(c, "gpt-4o")
//	c = llm.NewTracingMiddleware(c, tracer, "openai", "gpt-4o")
package llm
