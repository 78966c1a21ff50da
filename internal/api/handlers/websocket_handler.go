package handlers

import (
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/bug-analyzer/backend/internal/ingestion"
	"github.com/bug-analyzer/backend/pkg/logger"
)

// WebSocketHandler streams indexing progress to connected clients. Each
// connection gets its own subscription; a dropped client never stalls a run.
type WebSocketHandler struct {
	indexer *ingestion.Indexer
}

func NewWebSocketHandler(indexer *ingestion.Indexer) *WebSocketHandler {
	return &WebSocketHandler{indexer: indexer}
}

func (h *WebSocketHandler) HandleProgress(c *websocket.Conn) {
	logger.Info("WebSocket connection established")

	defer func() {
		c.Close()
		logger.Info("WebSocket connection closed")
	}()

	if h.indexer == nil {
		_ = c.WriteJSON(map[string]string{"error": "Vector indexing is not configured"})
		return
	}

	sub := h.indexer.Subscribe()
	defer h.indexer.Unsubscribe(sub)

	// Reads are only used to detect client disconnects.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-done:
			return
		case progress, ok := <-sub:
			if !ok {
				return
			}
			if err := c.WriteJSON(progress); err != nil {
				logger.Debug("Failed to write progress event", zap.Error(err))
				return
			}
		}
	}
}
