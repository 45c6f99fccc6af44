package websocket

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/aescanero/aerodoc/pkg/domain"
	"github.com/aescanero/aerodoc/pkg/ports"
)

const (
	writeWait  = 10 * time.Second
	bufferSize = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// RunLookup returns the current record of a run.
type RunLookup interface {
	GetRun(ctx context.Context, runID string) (*domain.RunRecord, error)
}

// Handler handles WebSocket connections
type Handler struct {
	eventBus ports.EventBus
	runs     RunLookup
	logger   *zap.Logger
}

// NewHandler creates a new WebSocket handler
func NewHandler(eventBus ports.EventBus, runs RunLookup, logger *zap.Logger) *Handler {
	return &Handler{
		eventBus: eventBus,
		runs:     runs,
		logger:   logger,
	}
}

// HandleRunStream streams the events of one run until it finishes or the
// client goes away. A run that already finished gets a single synthetic
// terminal event.
func (h *Handler) HandleRunStream(c *gin.Context) {
	runID := c.Param("id")

	rec, err := h.runs.GetRun(c.Request.Context(), runID)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, domain.ErrRunNotFound) {
			status = http.StatusNotFound
		}
		c.AbortWithStatusJSON(status, gin.H{"error": gin.H{"code": "NOT_FOUND", "message": "Run not found"}})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("failed to upgrade connection", zap.Error(err))
		return
	}
	defer func() { _ = conn.Close() }()

	h.logger.Info("WebSocket connection established",
		zap.String("run_id", runID),
		zap.String("client", c.ClientIP()))

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	// Subscribe before re-reading the record so the terminal event cannot
	// slip between the two.
	events := make(chan domain.Event, bufferSize)
	if err := h.eventBus.Subscribe(ctx, domain.TopicRunEvents, h.forward(runID, events)); err != nil {
		h.logger.Error("failed to subscribe to events",
			zap.String("run_id", runID),
			zap.Error(err))
		h.close(conn, websocket.CloseInternalServerErr, "subscription failed")
		return
	}

	if rec, err = h.runs.GetRun(ctx, runID); err == nil && rec.Status.IsTerminal() {
		h.write(conn, finishedEvent(rec))
		h.close(conn, websocket.CloseNormalClosure, string(rec.Status))
		return
	}

	// Detect client disconnects; incoming messages are ignored.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case event := <-events:
			if err := h.write(conn, event); err != nil {
				return
			}
			if event.IsTerminal() {
				h.close(conn, websocket.CloseNormalClosure, string(event.Type))
				return
			}
		}
	}
}

// forward queues the events of runID without blocking the bus.
func (h *Handler) forward(runID string, ch chan<- domain.Event) ports.EventHandler {
	return func(ctx context.Context, event domain.Event) error {
		if event.RunID != runID {
			return nil
		}
		select {
		case ch <- event:
		default:
			h.logger.Warn("event channel full, dropping event",
				zap.String("run_id", runID),
				zap.String("event_type", string(event.Type)))
		}
		return nil
	}
}

func (h *Handler) write(conn *websocket.Conn, event domain.Event) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(event); err != nil {
		h.logger.Debug("failed to write message",
			zap.String("run_id", event.RunID),
			zap.Error(err))
		return err
	}
	return nil
}

func (h *Handler) close(conn *websocket.Conn, code int, text string) {
	msg := websocket.FormatCloseMessage(code, text)
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
}

func finishedEvent(rec *domain.RunRecord) domain.Event {
	e := domain.Event{
		Type:      domain.EventTypeRunFailed,
		RunID:     rec.RunID,
		Stage:     rec.Stage,
		Progress:  rec.Progress,
		Timestamp: time.Now().UTC(),
		Data:      map[string]interface{}{"status": string(rec.Status)},
	}
	if rec.Outcome != nil {
		e.Type = domain.TerminalEventType(rec.Outcome.Status)
		if rec.Outcome.ErrorKind != domain.ErrorKindNone {
			e.Data["error_kind"] = string(rec.Outcome.ErrorKind)
			e.Data["message"] = rec.Outcome.Message
		}
	}
	if rec.CompletedAt != nil {
		e.Timestamp = *rec.CompletedAt
	}
	return e
}
