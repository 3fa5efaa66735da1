// Package carrier defines the contract for the outbound leg of the
// gateway: the component that actually talks to the shipping-line API.
package carrier

import "context"

// Request describes one outbound call. The body is an opaque JSON object
// whose meaning varies by module and is never interpreted here.
type Request struct {
	URL     string
	Method  string
	Headers map[string]string
	Body    map[string]any
}

// Result is what a call produced, success or not. Transport errors are
// folded into a failed Result rather than surfaced as Go errors so the
// gateway always has something to persist.
type Result struct {
	StatusCode  int
	Data        map[string]any
	Headers     map[string]string
	TimeTakenMs int64
	Failed      bool
	ErrorMsg    string
}

// Forwarder executes one outbound HTTP call to the carrier.
type Forwarder interface {
	Forward(ctx context.Context, req Request) Result
}
