package realtime

import (
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
)

// SyncLogEvent is an SSE payload carrying one line of a stage sync log.
type SyncLogEvent struct {
	Type    string `json:"type"`
	StageID string `json:"stage_id"`
	Line    string `json:"line,omitempty"`
}

const (
	EventSyncLog  = "sync_log"
	EventSyncDone = "sync_done"
)

// Hub fans out stage sync progress to SSE subscribers keyed by stage id.
type Hub struct {
	mu     sync.RWMutex
	stages map[string]map[chan SyncLogEvent]struct{}
}

func NewSyncHub() *Hub {
	return &Hub{stages: make(map[string]map[chan SyncLogEvent]struct{})}
}

// Serve streams events for the :stageId path parameter until the client goes away.
func (h *Hub) Serve(c *gin.Context) {
	stageID := c.Param("stageId")
	if stageID == "" {
		c.Status(http.StatusBadRequest)
		return
	}
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no") // disable nginx buffering

	ch := make(chan SyncLogEvent, 32)
	h.addSubscriber(stageID, ch)
	defer h.removeSubscriber(stageID, ch)

	// Initial comment to keep connection open
	_, _ = c.Writer.Write([]byte(":ok\n\n"))
	c.Writer.Flush()

	for {
		select {
		case <-c.Request.Context().Done():
			return
		case evt := <-ch:
			c.SSEvent(evt.Type, evt)
			c.Writer.Flush()
		}
	}
}

func (h *Hub) addSubscriber(stageID string, ch chan SyncLogEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.stages[stageID] == nil {
		h.stages[stageID] = make(map[chan SyncLogEvent]struct{})
	}
	h.stages[stageID][ch] = struct{}{}
}

func (h *Hub) removeSubscriber(stageID string, ch chan SyncLogEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if subs := h.stages[stageID]; subs != nil {
		delete(subs, ch)
		close(ch)
		if len(subs) == 0 {
			delete(h.stages, stageID)
		}
	}
}

func (h *Hub) Subscribers(stageID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.stages[stageID])
}

// BroadcastLog sends a log line to every subscriber of the stage. Slow subscribers miss lines.
func (h *Hub) BroadcastLog(stageID, line string) {
	h.broadcast(SyncLogEvent{Type: EventSyncLog, StageID: stageID, Line: line})
}

func (h *Hub) BroadcastDone(stageID string) {
	h.broadcast(SyncLogEvent{Type: EventSyncDone, StageID: stageID})
}

func (h *Hub) broadcast(evt SyncLogEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for ch := range h.stages[evt.StageID] {
		select { // non-blocking
		case ch <- evt:
		default:
		}
	}
}
