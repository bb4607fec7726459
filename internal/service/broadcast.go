package service

// Broadcaster sends real-time events to connected clients.
// Implemented by the WebSocket hub.
type Broadcaster interface {
	BroadcastSeasonEvent(seasonID string, eventType string, data any)
}

// NoopBroadcaster is a no-op implementation for testing or when WS is disabled.
type NoopBroadcaster struct{}

func (NoopBroadcaster) BroadcastSeasonEvent(string, string, any) {}

// Renderer turns a resolution step into a client-facing artifact (a map
// image, an embed). The turn driver calls it once per step; the result is
// attached to the step broadcast.
type Renderer interface {
	RenderState(seasonID string, state any) ([]byte, error)
}

// NoopRenderer skips rendering entirely.
type NoopRenderer struct{}

func (NoopRenderer) RenderState(string, any) ([]byte, error) { return nil, nil }
