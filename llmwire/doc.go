// Package llmwire translates one canonical conversation representation to
// and from the incompatible wire formats of several LLM providers.
//
// # Architecture
//
// The package is organized around three layers:
//
//   - Canonical model: Content entries made of tagged-union Parts (text,
//     function call, function response), the Request envelope, and the
//     normalized Parsed result.
//   - ProviderAdapter: one implementation per provider variant (google,
//     openai, anthropic, ollama, generic/gollm). Each confines its format
//     knowledge to ConvertRequest, ParseResponse, and ResolveEndpoint.
//   - Client: adapter registry, HTTP dispatch with connection and header
//     timeouts, a longer allowance for generation calls, and bounded retry
//     with exponential backoff.
//
// # Quick Start
//
//	client := llmwire.NewClient(
//	    llmwire.WithAdapter(llmwire.NewGoogleAdapter("")),
//	)
//
//	parsed, err := client.Complete(ctx, "google", apiKey, llmwire.Request{
//	    Model:    "gemini-2.5-pro",
//	    Contents: []llmwire.Content{llmwire.UserText("Hello")},
//	})
//
// # Response parsing
//
// The default provider's responses arrive in three physical shapes: a single
// JSON object, a JSON array of objects (processed in order, finish reason
// taken from the last occurrence), or a line-oriented event stream where
// only data-marked lines carry payloads. Unparseable stream lines are
// skipped; parsing fails only when nothing parseable was found. Textual
// content without an explicit finish reason synthesizes STOP. Reasoning
// parts are consumed but never surfaced as user-visible text.
package llmwire
