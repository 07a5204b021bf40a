package ticket

import (
	"context"
	"database/sql"

	"github.com/iliyamo/skin-marketplace/internal/model"
	"github.com/iliyamo/skin-marketplace/internal/repository"
)

// Filter narrows List.  Nil fields are not filtered on.
type Filter struct {
	OwnerUserID *uint64
	Status      *model.TicketStatus
}

// Store is the persistence the ticket manager needs.
type Store interface {
	GetByID(ctx context.Context, userID uint64) (model.User, error)
	GetUserByExternalID(ctx context.Context, externalID string) (model.User, error)

	GetTicket(ctx context.Context, id uint64) (model.Ticket, error)
	ListTickets(ctx context.Context, f Filter) ([]model.Ticket, error)
	Messages(ctx context.Context, ticketID uint64) ([]model.TicketMessage, error)
	DeleteTicket(ctx context.Context, id uint64) error
	DeleteAllTickets(ctx context.Context) (int64, error)

	// InTx runs fn atomically; writes are kept only if fn returns nil.
	InTx(ctx context.Context, fn func(tx Tx) error) error
}

// Tx is the write path of the ticket manager.
type Tx interface {
	CreateTicket(ctx context.Context, t *model.Ticket) error
	LockTicket(ctx context.Context, id uint64) (model.Ticket, error)
	InsertMessage(ctx context.Context, m *model.TicketMessage) error
	// UpdateStatus sets the status and bumps updated_at, also when the
	// status is unchanged.
	UpdateStatus(ctx context.Context, id uint64, status model.TicketStatus) error
}

// SQLStore implements Store on the MySQL repositories.
type SQLStore struct {
	db      *sql.DB
	users   *repository.UserRepo
	tickets *repository.TicketRepo
}

func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db, users: repository.NewUserRepo(db), tickets: repository.NewTicketRepo(db)}
}

func (s *SQLStore) GetByID(ctx context.Context, id uint64) (model.User, error) {
	return s.users.GetByID(ctx, id)
}

func (s *SQLStore) GetUserByExternalID(ctx context.Context, externalID string) (model.User, error) {
	return s.users.GetByExternalID(ctx, externalID)
}

func (s *SQLStore) GetTicket(ctx context.Context, id uint64) (model.Ticket, error) {
	return s.tickets.GetByID(ctx, id)
}

func (s *SQLStore) ListTickets(ctx context.Context, f Filter) ([]model.Ticket, error) {
	return s.tickets.List(ctx, repository.TicketFilter{OwnerUserID: f.OwnerUserID, Status: f.Status})
}

func (s *SQLStore) Messages(ctx context.Context, ticketID uint64) ([]model.TicketMessage, error) {
	return s.tickets.Messages(ctx, ticketID)
}

func (s *SQLStore) DeleteTicket(ctx context.Context, id uint64) error {
	return s.tickets.Delete(ctx, id)
}

func (s *SQLStore) DeleteAllTickets(ctx context.Context) (int64, error) {
	return s.tickets.DeleteAll(ctx)
}

func (s *SQLStore) InTx(ctx context.Context, fn func(tx Tx) error) error {
	return repository.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		return fn(&sqlTx{tx: tx, tickets: s.tickets})
	})
}

type sqlTx struct {
	tx      *sql.Tx
	tickets *repository.TicketRepo
}

func (t *sqlTx) CreateTicket(ctx context.Context, tk *model.Ticket) error {
	return t.tickets.CreateTx(ctx, t.tx, tk)
}

func (t *sqlTx) LockTicket(ctx context.Context, id uint64) (model.Ticket, error) {
	return t.tickets.GetForUpdateTx(ctx, t.tx, id)
}

func (t *sqlTx) InsertMessage(ctx context.Context, m *model.TicketMessage) error {
	return t.tickets.InsertMessageTx(ctx, t.tx, m)
}

func (t *sqlTx) UpdateStatus(ctx context.Context, id uint64, status model.TicketStatus) error {
	return t.tickets.UpdateStatusTx(ctx, t.tx, id, status)
}
