package notifications

import "context"

// Notification es la tupla que el motor emite después de cada transición.
// El formato/entrega es responsabilidad del sink.
type Notification struct {
	UserID  string         `json:"user_id"`
	Message string         `json:"message"`
	Link    string         `json:"link"`
	Data    map[string]any `json:"data,omitempty"`
}

//go:generate mockgen -source=sink.go -destination=mocks/sink_mock.go -package=mocks Sink
type Sink interface {
	Notify(ctx context.Context, n Notification) error
}
