package ticket

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/iliyamo/skin-marketplace/internal/domain"
	"github.com/iliyamo/skin-marketplace/internal/model"
)

var errInjected = errors.New("injected fault")

// memStore keeps tickets in maps.  Units are serialised and their writes
// applied only on success.  Every message gets the same created_at so the
// id tiebreak is exercised.
type memStore struct {
	txMu sync.Mutex
	mu   sync.Mutex

	users    map[uint64]model.User
	tickets  map[uint64]model.Ticket
	messages []model.TicketMessage
	nextID   uint64
	now      time.Time
	failOn   string
}

func newMemStore() *memStore {
	return &memStore{
		users:   map[uint64]model.User{},
		tickets: map[uint64]model.Ticket{},
		nextID:  1000,
		now:     time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func (s *memStore) addUser(id uint64, ext string, admin bool) {
	s.users[id] = model.User{ID: id, ExternalID: ext, DisplayName: ext, IsAdmin: admin}
}

func (s *memStore) ticket(id uint64) model.Ticket {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tickets[id]
}

func (s *memStore) messageCount(ticketID uint64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, m := range s.messages {
		if m.TicketID == ticketID {
			n++
		}
	}
	return n
}

func notFound(what string) error { return fmt.Errorf("%w: %s", domain.ErrNotFound, what) }

func (s *memStore) GetByID(_ context.Context, id uint64) (model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return model.User{}, notFound("user")
	}
	return u, nil
}

func (s *memStore) GetUserByExternalID(_ context.Context, ext string) (model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.ExternalID == ext {
			return u, nil
		}
	}
	return model.User{}, notFound("user")
}

func (s *memStore) GetTicket(_ context.Context, id uint64) (model.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tickets[id]
	if !ok {
		return model.Ticket{}, notFound("ticket")
	}
	return t, nil
}

func (s *memStore) ListTickets(_ context.Context, f Filter) ([]model.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []model.Ticket{}
	for _, t := range s.tickets {
		if f.OwnerUserID != nil && t.OwnerUserID != *f.OwnerUserID {
			continue
		}
		if f.Status != nil && t.Status != *f.Status {
			continue
		}
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *memStore) Messages(_ context.Context, ticketID uint64) ([]model.TicketMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []model.TicketMessage{}
	for _, m := range s.messages {
		if m.TicketID == ticketID {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *memStore) DeleteTicket(_ context.Context, id uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tickets[id]; !ok {
		return notFound("ticket")
	}
	delete(s.tickets, id)
	kept := s.messages[:0]
	for _, m := range s.messages {
		if m.TicketID != id {
			kept = append(kept, m)
		}
	}
	s.messages = kept
	return nil
}

func (s *memStore) DeleteAllTickets(context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := int64(len(s.tickets))
	s.tickets = map[uint64]model.Ticket{}
	s.messages = nil
	return n, nil
}

func (s *memStore) InTx(_ context.Context, fn func(tx Tx) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.Lock()
	w := &memTx{store: s, tickets: map[uint64]model.Ticket{}, nextID: s.nextID}
	for k, v := range s.tickets {
		w.tickets[k] = v
	}
	w.messages = append([]model.TicketMessage(nil), s.messages...)
	s.mu.Unlock()

	if err := fn(w); err != nil {
		return err
	}
	s.mu.Lock()
	s.tickets, s.messages, s.nextID = w.tickets, w.messages, w.nextID
	s.mu.Unlock()
	return nil
}

type memTx struct {
	store    *memStore
	tickets  map[uint64]model.Ticket
	messages []model.TicketMessage
	nextID   uint64
}

func (t *memTx) CreateTicket(_ context.Context, tk *model.Ticket) error {
	if t.store.failOn == "create_ticket" {
		return errInjected
	}
	t.nextID++
	tk.ID = t.nextID
	tk.CreatedAt, tk.UpdatedAt = t.store.now, t.store.now
	t.tickets[tk.ID] = *tk
	return nil
}

func (t *memTx) LockTicket(_ context.Context, id uint64) (model.Ticket, error) {
	tk, ok := t.tickets[id]
	if !ok {
		return model.Ticket{}, notFound("ticket")
	}
	return tk, nil
}

func (t *memTx) InsertMessage(_ context.Context, m *model.TicketMessage) error {
	if t.store.failOn == "insert_message" {
		return errInjected
	}
	t.nextID++
	m.ID = t.nextID
	m.CreatedAt = t.store.now
	m.AuthorName = t.store.users[m.AuthorUserID].DisplayName
	t.messages = append(t.messages, *m)
	return nil
}

func (t *memTx) UpdateStatus(_ context.Context, id uint64, status model.TicketStatus) error {
	if t.store.failOn == "update_status" {
		return errInjected
	}
	tk, ok := t.tickets[id]
	if !ok {
		return notFound("ticket")
	}
	tk.Status = status
	tk.UpdatedAt = tk.UpdatedAt.Add(time.Second)
	t.tickets[id] = tk
	return nil
}
