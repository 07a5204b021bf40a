package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/skin-marketplace/internal/model"
	"github.com/iliyamo/skin-marketplace/internal/ticket"
)

// TicketService is implemented by ticket.Manager.
type TicketService interface {
	Create(ctx context.Context, ownerID uint64, in ticket.CreateInput) (model.Ticket, model.TicketMessage, error)
	PostMessage(ctx context.Context, ticketID, authorID uint64, body string) (model.TicketMessage, error)
	SetStatus(ctx context.Context, ticketID uint64, status model.TicketStatus, actorID uint64) (model.Ticket, error)
	Get(ctx context.Context, ticketID, viewerID uint64) (model.Ticket, error)
	ListMessages(ctx context.Context, ticketID, viewerID uint64) ([]model.TicketMessage, error)
	List(ctx context.Context, viewerID uint64, ownerExternalID, status string) ([]model.Ticket, error)
	Delete(ctx context.Context, ticketID, actorID uint64) error
	DeleteAll(ctx context.Context, actorID uint64) (int64, error)
	Subscribe(ctx context.Context, ticketID, viewerID uint64) (<-chan model.TicketMessage, func(), error)
}

const defaultKeepAlive = 25 * time.Second

type TicketHandler struct {
	Tickets   TicketService
	Log       *zap.Logger
	KeepAlive time.Duration // SSE comment interval; zero means defaultKeepAlive

	initOnce  sync.Once
	closeOnce sync.Once
	done      chan struct{}
}

func NewTicketHandler(tickets TicketService, log *zap.Logger) *TicketHandler {
	return &TicketHandler{Tickets: tickets, Log: log, KeepAlive: defaultKeepAlive}
}

func (h *TicketHandler) closed() <-chan struct{} {
	h.initOnce.Do(func() { h.done = make(chan struct{}) })
	return h.done
}

// Close ends every open event stream.  It is registered as a server
// shutdown hook so streams do not hold graceful shutdown open.
func (h *TicketHandler) Close() {
	h.closed()
	h.closeOnce.Do(func() { close(h.done) })
}

// ----- DTOs -----

// Lengths and blank checks are enforced by ticket.Manager.
type createTicketReq struct {
	Title       string  `json:"title" validate:"required"`
	Type        string  `json:"type" validate:"required"`
	Message     string  `json:"message" validate:"required"`
	RelatedItem *string `json:"relatedItem"`
}

type statusReq struct {
	Status string `json:"status" validate:"required,oneof=pending in_progress resolved closed"`
}

type messageReq struct {
	Body string `json:"body" validate:"required"`
}

// List handles GET /tickets?ownerExternalId=&status=.
func (h *TicketHandler) List(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	list, err := h.Tickets.List(c.Request().Context(), uid, c.QueryParam("ownerExternalId"), c.QueryParam("status"))
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"tickets": list})
}

// Create handles POST /tickets.
func (h *TicketHandler) Create(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	var req createTicketReq
	if ok, err := bindValid(c, &req); !ok {
		return err
	}
	t, msg, err := h.Tickets.Create(c.Request().Context(), uid, ticket.CreateInput{
		Title:       req.Title,
		Type:        req.Type,
		Message:     req.Message,
		RelatedItem: req.RelatedItem,
	})
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"ticket": t, "message": msg})
}

// Get handles GET /tickets/:id.
func (h *TicketHandler) Get(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid ticket id")
	}
	t, err := h.Tickets.Get(c.Request().Context(), id, uid)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, t)
}

// SetStatus handles PATCH /tickets/:id.  The manager enforces admin rights.
func (h *TicketHandler) SetStatus(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid ticket id")
	}
	var req statusReq
	if ok, err := bindValid(c, &req); !ok {
		return err
	}
	t, err := h.Tickets.SetStatus(c.Request().Context(), id, model.TicketStatus(req.Status), uid)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, t)
}

// Messages handles GET /tickets/:id/messages.
func (h *TicketHandler) Messages(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid ticket id")
	}
	msgs, err := h.Tickets.ListMessages(c.Request().Context(), id, uid)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"messages": msgs})
}

// PostMessage handles POST /tickets/:id/messages.
func (h *TicketHandler) PostMessage(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid ticket id")
	}
	var req messageReq
	if ok, err := bindValid(c, &req); !ok {
		return err
	}
	msg, err := h.Tickets.PostMessage(c.Request().Context(), id, uid, req.Body)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, msg)
}

// Delete handles DELETE /admin/tickets/:id.
func (h *TicketHandler) Delete(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid ticket id")
	}
	if err := h.Tickets.Delete(c.Request().Context(), id, uid); err != nil {
		return respondError(c, h.Log, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// DeleteAll handles DELETE /admin/tickets.
func (h *TicketHandler) DeleteAll(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	n, err := h.Tickets.DeleteAll(c.Request().Context(), uid)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"deleted": n})
}

// Stream handles GET /tickets/:id/stream.  Messages posted after the
// subscription starts are sent as "message" events; clients fetch history
// through Messages first.  The stream ends when the client goes away.
func (h *TicketHandler) Stream(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid ticket id")
	}

	ctx, cancel := context.WithCancel(c.Request().Context())
	defer cancel()

	msgs, unsub, err := h.Tickets.Subscribe(ctx, id, uid)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	defer unsub()

	w := c.Response()
	w.Header().Set(echo.HeaderContentType, "text/event-stream")
	w.Header().Set(echo.HeaderCacheControl, "no-cache")
	w.Header().Set(echo.HeaderConnection, "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	fmt.Fprintf(w, "event: connected\ndata: {\"ticketId\":%d}\n\n", id)
	w.Flush()

	every := h.KeepAlive
	if every <= 0 {
		every = defaultKeepAlive
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	shutdown := h.closed()

	for {
		select {
		case msg, ok := <-msgs:
			if !ok {
				return nil
			}
			data, err := json.Marshal(msg)
			if err != nil {
				h.Log.Warn("encode stream message", zap.Error(err), zap.Uint64("ticket_id", id))
				continue
			}
			fmt.Fprintf(w, "event: message\nid: %d\ndata: %s\n\n", msg.ID, data)
			w.Flush()
		case <-ticker.C:
			fmt.Fprint(w, ": keepalive\n\n")
			w.Flush()
		case <-ctx.Done():
			return nil
		case <-shutdown:
			return nil
		}
	}
}
