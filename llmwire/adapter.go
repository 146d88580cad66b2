package llmwire

import (
	"context"
	"net"
	"net/url"
	"strings"
)

// ProviderAdapter confines a provider's wire-format knowledge to one type.
// ConvertRequest and ParseResponse are pure transforms; ResolveEndpoint is
// the only method allowed to consult the environment (loopback detection).
type ProviderAdapter interface {
	// Name returns the provider identifier ("google", "openai", ...).
	Name() string

	// ResolveEndpoint returns the request URL and headers for a model and
	// credential.
	ResolveEndpoint(model, credential string) (string, map[string]string, error)

	// ConvertRequest translates the canonical request into the provider's
	// JSON body. A required nested field that is absent fails the conversion
	// with MalformedRequestError.
	ConvertRequest(req Request) ([]byte, error)

	// ParseResponse normalizes a raw response body into text fragments,
	// collected function calls, and a finish reason.
	ParseResponse(body []byte) (*Parsed, error)
}

// Completer is implemented by adapters that own their transport instead of
// speaking JSON-over-POST through the Client (e.g. the gollm-backed generic
// adapter).
type Completer interface {
	Complete(ctx context.Context, req Request) (*Parsed, error)
}

// Closer is implemented by adapters that hold resources.
type Closer interface {
	Close() error
}

// isLoopbackURL reports whether the URL's host is a loopback address. Used
// to distinguish a self-hosted provider from a hosted one: self-hosted
// endpoints get no authorization header.
func isLoopbackURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	host := u.Hostname()
	if strings.EqualFold(host, "localhost") {
		return true
	}
	if ip := net.ParseIP(host); ip != nil {
		return ip.IsLoopback()
	}
	return false
}

// requireArgs validates that every function call part carries an arguments
// object before conversion.
func requireArgs(contents []Content) error {
	for _, c := range contents {
		for _, p := range c.Parts {
			if p.Kind == PartFunctionCall {
				if p.FunctionCall == nil || p.FunctionCall.Args == nil {
					return &MalformedRequestError{APIError: APIError{
						Message: "function call part has no arguments object",
					}}
				}
			}
			if p.Kind == PartFunctionResponse {
				if p.FunctionResponse == nil || p.FunctionResponse.Response == nil {
					return &MalformedRequestError{APIError: APIError{
						Message: "function response part has no response object",
					}}
				}
			}
		}
	}
	return nil
}
