package gateway

import (
	"fmt"
	"net/http"

	"arclight-hq/relay/pkg/gateway/types"
)

// RouteError represents a request path that failed to resolve: the
// provider or egress flag segment named something the gateway does not
// serve.
type RouteError struct {
	// Segment is the path segment that failed ("provider" or "flag").
	Segment string

	// Value is the offending segment value.
	Value string
}

// Error implements the error interface.
func (e *RouteError) Error() string {
	return fmt.Sprintf("unknown %s %q", e.Segment, e.Value)
}

// EgressError represents a proxied request that found no egress
// endpoint to use.
type EgressError struct {
	// Message describes the pool state.
	Message string
}

// Error implements the error interface.
func (e *EgressError) Error() string {
	return fmt.Sprintf("egress unavailable: %s", e.Message)
}

// TransportError represents a failure sending the upstream request.
type TransportError struct {
	// Provider is the provider the request was bound for.
	Provider string

	// Endpoint is the redacted egress endpoint, empty for direct.
	Endpoint string

	// Cause is the underlying transport error.
	Cause error
}

// Error implements the error interface.
func (e *TransportError) Error() string {
	if e.Endpoint != "" {
		return fmt.Sprintf("provider %q unreachable via %s: %v", e.Provider, e.Endpoint, e.Cause)
	}
	return fmt.Sprintf("provider %q unreachable: %v", e.Provider, e.Cause)
}

// Unwrap returns the underlying error for error chain support.
func (e *TransportError) Unwrap() error {
	return e.Cause
}

// respondError maps a pipeline error onto the OpenAI-compatible wire
// envelope and writes it.
func respondError(w http.ResponseWriter, err error) {
	switch e := err.(type) {
	case *RouteError:
		if e.Segment == "provider" {
			types.WriteError(w, types.NewErrorResponse(
				"Unknown provider: "+e.Value,
				types.ErrorTypeNotFound,
				types.CodeUnknownProvider,
			))
			return
		}
		types.WriteError(w, types.NewErrorResponse(
			"Unknown egress flag: "+e.Value,
			types.ErrorTypeInvalidRequest,
			types.CodeUnknownFlag,
		))
	case *EgressError:
		types.WriteError(w, types.NewErrorResponse(
			"No egress proxy available.",
			types.ErrorTypeServiceUnavailable,
			types.CodeNoEgress,
		))
	case *TransportError:
		types.WriteError(w, types.NewErrorResponse(
			"Upstream request failed.",
			types.ErrorTypeBadGateway,
			types.CodeUpstreamError,
		))
	default:
		types.WriteError(w, types.NewServerError("An internal error occurred."))
	}
}
