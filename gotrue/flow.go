package gotrue

import "context"

// FlowState is what the app remembers between redirecting a browser to the
// auth server and receiving it back on the callback.
type FlowState struct {
	Verifier string `json:"verifier"`
	Provider string `json:"provider"`
	Mode     string `json:"mode"` // "signin" | "link"
}

// FlowCache stores FlowState keyed by an opaque flow id kept in a cookie.
type FlowCache interface {
	Put(ctx context.Context, id string, v FlowState) error
	Get(ctx context.Context, id string) (FlowState, bool, error)
	Del(ctx context.Context, id string) error
}
