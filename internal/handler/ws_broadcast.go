package handler

// BroadcastSeasonEvent implements service.Broadcaster using the WebSocket hub.
func (h *Hub) BroadcastSeasonEvent(seasonID string, eventType string, data any) {
	h.BroadcastToSeason(seasonID, WSEvent{
		Type:     eventType,
		SeasonID: seasonID,
		Data:     data,
	})
}
