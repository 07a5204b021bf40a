// Package ticket manages support tickets: their status lifecycle, ordered
// message threads, and live delivery of new messages.
//
// Tickets normally move pending -> in_progress -> resolved.  An admin may
// set any status, including moving a ticket back, and may close a ticket
// from any state.  Closed is terminal.  The first
// admin reply on a pending ticket advances it to in_progress in the same
// transaction that stores the reply.
//
// Live delivery is best effort with no replay: a client that reconnects
// must fetch the whole thread again with ListMessages.
package ticket

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/iliyamo/skin-marketplace/internal/access"
	"github.com/iliyamo/skin-marketplace/internal/domain"
	"github.com/iliyamo/skin-marketplace/internal/metrics"
	"github.com/iliyamo/skin-marketplace/internal/model"
	"github.com/iliyamo/skin-marketplace/internal/queue"
	"github.com/iliyamo/skin-marketplace/internal/realtime"
)

const (
	maxTitleLen   = 255
	maxTypeLen    = 64
	maxBodyLen    = 10000
	maxRelatedLen = 255
)

// CreateInput is what a user supplies when opening a ticket.
type CreateInput struct {
	Title       string
	Type        string
	Message     string
	RelatedItem *string
}

type Manager struct {
	store Store
	ps    realtime.PubSub
	pub   queue.Publisher
	log   *zap.Logger
}

func NewManager(store Store, ps realtime.PubSub, pub queue.Publisher, log *zap.Logger) *Manager {
	return &Manager{store: store, ps: ps, pub: pub, log: log.Named("ticket")}
}

// CanTransition reports whether an admin may move a ticket from one status
// to another.  Closed is terminal; every other move is allowed, including
// reopening a resolved ticket.
func CanTransition(from, to model.TicketStatus) bool {
	return from != model.TicketClosed || to == model.TicketClosed
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{domain.ErrInvalidInput}, args...)...)
}

func checkLen(field, v string, max int) error {
	if v == "" {
		return invalid("%s is required", field)
	}
	if utf8.RuneCountInString(v) > max {
		return invalid("%s is longer than %d characters", field, max)
	}
	return nil
}

// Create opens a pending ticket with its first message.  Both rows are
// written in one transaction.
func (m *Manager) Create(ctx context.Context, ownerID uint64, in CreateInput) (model.Ticket, model.TicketMessage, error) {
	in.Title = strings.TrimSpace(in.Title)
	in.Type = strings.TrimSpace(in.Type)
	in.Message = strings.TrimSpace(in.Message)
	for _, c := range []struct {
		field, v string
		max      int
	}{{"title", in.Title, maxTitleLen}, {"type", in.Type, maxTypeLen}, {"message", in.Message, maxBodyLen}} {
		if err := checkLen(c.field, c.v, c.max); err != nil {
			return model.Ticket{}, model.TicketMessage{}, err
		}
	}
	if in.RelatedItem != nil {
		v := strings.TrimSpace(*in.RelatedItem)
		switch {
		case v == "":
			in.RelatedItem = nil
		case utf8.RuneCountInString(v) > maxRelatedLen:
			return model.Ticket{}, model.TicketMessage{}, invalid("related item is longer than %d characters", maxRelatedLen)
		default:
			in.RelatedItem = &v
		}
	}

	owner, err := m.store.GetByID(ctx, ownerID)
	if err != nil {
		return model.Ticket{}, model.TicketMessage{}, err
	}

	t := model.Ticket{
		OwnerUserID: ownerID,
		Title:       in.Title,
		Type:        in.Type,
		Status:      model.TicketPending,
		RelatedItem: in.RelatedItem,
	}
	var msg model.TicketMessage
	err = m.store.InTx(ctx, func(tx Tx) error {
		if err := tx.CreateTicket(ctx, &t); err != nil {
			return err
		}
		msg = model.TicketMessage{
			TicketID:        t.ID,
			AuthorUserID:    ownerID,
			IsAdminAuthored: owner.IsAdmin,
			Body:            in.Message,
		}
		return tx.InsertMessage(ctx, &msg)
	})
	if err != nil {
		return model.Ticket{}, model.TicketMessage{}, err
	}

	m.log.Info("ticket created", zap.Uint64("ticket_id", t.ID), zap.Uint64("owner_id", ownerID), zap.String("type", t.Type))
	m.countMessage(msg)
	m.push(ctx, msg)
	return t, msg, nil
}

// PostMessage appends body to the ticket thread.  Only the owner or an
// admin may post.  Closed tickets still accept replies and stay closed.
func (m *Manager) PostMessage(ctx context.Context, ticketID, authorID uint64, body string) (model.TicketMessage, error) {
	body = strings.TrimSpace(body)
	if err := checkLen("message", body, maxBodyLen); err != nil {
		return model.TicketMessage{}, err
	}
	author, err := m.store.GetByID(ctx, authorID)
	if err != nil {
		return model.TicketMessage{}, err
	}

	var (
		msg  model.TicketMessage
		from model.TicketStatus
	)
	err = m.store.InTx(ctx, func(tx Tx) error {
		t, err := tx.LockTicket(ctx, ticketID)
		if err != nil {
			return err
		}
		if !author.IsAdmin && t.OwnerUserID != authorID {
			return fmt.Errorf("%w: only the ticket owner or an admin can reply", domain.ErrForbidden)
		}
		from = t.Status

		msg = model.TicketMessage{
			TicketID:        ticketID,
			AuthorUserID:    authorID,
			IsAdminAuthored: author.IsAdmin,
			Body:            body,
		}
		if err := tx.InsertMessage(ctx, &msg); err != nil {
			return err
		}
		next := t.Status
		if author.IsAdmin && t.Status == model.TicketPending {
			next = model.TicketInProgress
		}
		return tx.UpdateStatus(ctx, ticketID, next)
	})
	if err != nil {
		return model.TicketMessage{}, err
	}

	m.countMessage(msg)
	m.push(ctx, msg)
	if author.IsAdmin && from == model.TicketPending {
		m.log.Info("ticket advanced by admin reply", zap.Uint64("ticket_id", ticketID), zap.Uint64("admin_id", authorID))
		m.publishStatus(ctx, ticketID, from, model.TicketInProgress, authorID)
	}
	return msg, nil
}

// SetStatus moves a ticket to status.  Admin only.
func (m *Manager) SetStatus(ctx context.Context, ticketID uint64, status model.TicketStatus, actorID uint64) (model.Ticket, error) {
	if _, err := access.RequireAdmin(ctx, m.store, actorID); err != nil {
		return model.Ticket{}, err
	}
	if !status.Valid() {
		return model.Ticket{}, invalid("unknown status %q", status)
	}

	var from model.TicketStatus
	err := m.store.InTx(ctx, func(tx Tx) error {
		t, err := tx.LockTicket(ctx, ticketID)
		if err != nil {
			return err
		}
		if !CanTransition(t.Status, status) {
			return fmt.Errorf("%w: cannot move ticket from %s to %s", domain.ErrConflict, t.Status, status)
		}
		from = t.Status
		return tx.UpdateStatus(ctx, ticketID, status)
	})
	if err != nil {
		return model.Ticket{}, err
	}

	if from != status {
		m.log.Info("ticket status changed",
			zap.Uint64("ticket_id", ticketID),
			zap.String("from", string(from)),
			zap.String("to", string(status)),
			zap.Uint64("admin_id", actorID))
		m.publishStatus(ctx, ticketID, from, status, actorID)
	}
	return m.store.GetTicket(ctx, ticketID)
}

// authorize loads the ticket and checks the viewer is its owner or an
// admin.
func (m *Manager) authorize(ctx context.Context, ticketID, viewerID uint64) (model.Ticket, error) {
	viewer, err := m.store.GetByID(ctx, viewerID)
	if err != nil {
		return model.Ticket{}, err
	}
	t, err := m.store.GetTicket(ctx, ticketID)
	if err != nil {
		return model.Ticket{}, err
	}
	if !viewer.IsAdmin && t.OwnerUserID != viewerID {
		return model.Ticket{}, fmt.Errorf("%w: not your ticket", domain.ErrForbidden)
	}
	return t, nil
}

// Get returns one ticket visible to viewerID.
func (m *Manager) Get(ctx context.Context, ticketID, viewerID uint64) (model.Ticket, error) {
	return m.authorize(ctx, ticketID, viewerID)
}

// ListMessages returns the thread oldest first; ties on created_at are
// broken by id so repeated reads return the same order.
func (m *Manager) ListMessages(ctx context.Context, ticketID, viewerID uint64) ([]model.TicketMessage, error) {
	if _, err := m.authorize(ctx, ticketID, viewerID); err != nil {
		return nil, err
	}
	return m.store.Messages(ctx, ticketID)
}

// List returns tickets visible to viewerID.  Non-admins only ever see
// their own; admins may filter by owner or see all.  status "" means any.
func (m *Manager) List(ctx context.Context, viewerID uint64, ownerExternalID, status string) ([]model.Ticket, error) {
	viewer, err := m.store.GetByID(ctx, viewerID)
	if err != nil {
		return nil, err
	}
	var f Filter
	if status != "" {
		s := model.TicketStatus(status)
		if !s.Valid() {
			return nil, invalid("unknown status %q", status)
		}
		f.Status = &s
	}
	ownerExternalID = strings.TrimSpace(ownerExternalID)
	switch {
	case !viewer.IsAdmin:
		if ownerExternalID != "" && ownerExternalID != viewer.ExternalID {
			return nil, fmt.Errorf("%w: cannot list other users' tickets", domain.ErrForbidden)
		}
		f.OwnerUserID = &viewer.ID
	case ownerExternalID != "":
		owner, err := m.store.GetUserByExternalID(ctx, ownerExternalID)
		if err != nil {
			return nil, err
		}
		f.OwnerUserID = &owner.ID
	}
	return m.store.ListTickets(ctx, f)
}

// Delete removes a ticket and its messages.  Admin only.
func (m *Manager) Delete(ctx context.Context, ticketID, actorID uint64) error {
	if _, err := access.RequireAdmin(ctx, m.store, actorID); err != nil {
		return err
	}
	if err := m.store.DeleteTicket(ctx, ticketID); err != nil {
		return err
	}
	m.log.Info("ticket deleted", zap.Uint64("ticket_id", ticketID), zap.Uint64("admin_id", actorID))
	return nil
}

// DeleteAll purges every ticket.  Admin only.
func (m *Manager) DeleteAll(ctx context.Context, actorID uint64) (int64, error) {
	if _, err := access.RequireAdmin(ctx, m.store, actorID); err != nil {
		return 0, err
	}
	n, err := m.store.DeleteAllTickets(ctx)
	if err != nil {
		return 0, err
	}
	m.log.Warn("all tickets deleted", zap.Int64("count", n), zap.Uint64("admin_id", actorID))
	return n, nil
}

// Subscribe streams messages posted to the ticket from now on.  The
// channel closes when cancel is called or ctx ends.
func (m *Manager) Subscribe(ctx context.Context, ticketID, viewerID uint64) (<-chan model.TicketMessage, func(), error) {
	if _, err := m.authorize(ctx, ticketID, viewerID); err != nil {
		return nil, nil, err
	}
	in, cancel, err := m.ps.Subscribe(ctx, realtime.TicketTopic(ticketID))
	if err != nil {
		return nil, nil, err
	}
	metrics.RealtimeSubscribers.Inc()

	out := make(chan model.TicketMessage, cap(in))
	go func() {
		defer metrics.RealtimeSubscribers.Dec()
		defer close(out)
		for raw := range in {
			var msg model.TicketMessage
			if err := json.Unmarshal(raw.Payload, &msg); err != nil {
				m.log.Warn("dropping malformed realtime payload", zap.Error(err), zap.Uint64("ticket_id", ticketID))
				continue
			}
			select {
			case out <- msg:
			default:
			}
		}
	}()
	return out, cancel, nil
}

func (m *Manager) push(ctx context.Context, msg model.TicketMessage) {
	body, err := json.Marshal(msg)
	if err == nil {
		err = m.ps.Publish(ctx, realtime.TicketTopic(msg.TicketID), body)
	}
	if err != nil {
		m.log.Warn("realtime push failed", zap.Error(err), zap.Uint64("ticket_id", msg.TicketID), zap.Uint64("message_id", msg.ID))
	}
}

func (m *Manager) publishStatus(ctx context.Context, ticketID uint64, from, to model.TicketStatus, actorID uint64) {
	ev, err := queue.NewEvent(queue.EventTicketStatusChanged, queue.TicketStatusChanged{
		TicketID:    ticketID,
		From:        string(from),
		To:          string(to),
		ActorUserID: actorID,
	})
	if err == nil {
		err = m.pub.Publish(ctx, ev)
	}
	if err != nil {
		m.log.Warn("status event not published", zap.Error(err), zap.Uint64("ticket_id", ticketID))
	}
}

func (m *Manager) countMessage(msg model.TicketMessage) {
	author := metrics.AuthorUser
	if msg.IsAdminAuthored {
		author = metrics.AuthorAdmin
	}
	metrics.TicketMessagesTotal.WithLabelValues(author).Inc()
}
