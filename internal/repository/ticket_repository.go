package repository

import (
	"context"
	"database/sql"
	"strings"

	"github.com/iliyamo/skin-marketplace/internal/model"
)

// TicketRepo manages tickets and their message threads.
type TicketRepo struct{ db *sql.DB }

func NewTicketRepo(db *sql.DB) *TicketRepo { return &TicketRepo{db: db} }

// TicketFilter narrows List.  Nil fields are not filtered on.
type TicketFilter struct {
	OwnerUserID *uint64
	Status      *model.TicketStatus
}

const ticketColumns = "id,owner_user_id,title,type,status,related_item,created_at,updated_at"

func scanTicket(row rowScanner) (model.Ticket, error) {
	var (
		t       model.Ticket
		related sql.NullString
	)
	if err := row.Scan(&t.ID, &t.OwnerUserID, &t.Title, &t.Type, &t.Status, &related, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return model.Ticket{}, err
	}
	t.RelatedItem = nullStringPtr(related)
	return t, nil
}

// GetByID returns a ticket.
func (r *TicketRepo) GetByID(ctx context.Context, id uint64) (model.Ticket, error) {
	t, err := scanTicket(r.db.QueryRowContext(ctx, "SELECT "+ticketColumns+" FROM tickets WHERE id=?", id))
	return t, notFound(err, "ticket")
}

// GetForUpdateTx reads and locks a ticket row so status changes and
// message appends on one ticket are serialised.
func (r *TicketRepo) GetForUpdateTx(ctx context.Context, tx *sql.Tx, id uint64) (model.Ticket, error) {
	t, err := scanTicket(tx.QueryRowContext(ctx, "SELECT "+ticketColumns+" FROM tickets WHERE id=? FOR UPDATE", id))
	return t, notFound(err, "ticket")
}

// List returns tickets matching f, most recently updated first.
func (r *TicketRepo) List(ctx context.Context, f TicketFilter) ([]model.Ticket, error) {
	var (
		where []string
		args  []any
	)
	if f.OwnerUserID != nil {
		where = append(where, "owner_user_id=?")
		args = append(args, *f.OwnerUserID)
	}
	if f.Status != nil {
		where = append(where, "status=?")
		args = append(args, string(*f.Status))
	}
	q := "SELECT " + ticketColumns + " FROM tickets"
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY updated_at DESC, id DESC"
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Ticket{}
	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// CreateTx inserts a pending ticket and reads back its generated fields.
func (r *TicketRepo) CreateTx(ctx context.Context, tx *sql.Tx, t *model.Ticket) error {
	res, err := tx.ExecContext(ctx,
		"INSERT INTO tickets (owner_user_id, title, type, status, related_item) VALUES (?,?,?,?,?)",
		t.OwnerUserID, t.Title, t.Type, string(t.Status), t.RelatedItem)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	created, err := scanTicket(tx.QueryRowContext(ctx, "SELECT "+ticketColumns+" FROM tickets WHERE id=?", id))
	if err != nil {
		return err
	}
	*t = created
	return nil
}

// UpdateStatusTx sets the status and bumps updated_at.
func (r *TicketRepo) UpdateStatusTx(ctx context.Context, tx *sql.Tx, id uint64, status model.TicketStatus) error {
	res, err := tx.ExecContext(ctx,
		"UPDATE tickets SET status=?, updated_at=CURRENT_TIMESTAMP(6) WHERE id=?", string(status), id)
	return expectOne(res, err, "ticket")
}

// Delete removes a ticket; its messages go with it (ON DELETE CASCADE).
func (r *TicketRepo) Delete(ctx context.Context, id uint64) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM tickets WHERE id=?", id)
	return expectOne(res, err, "ticket")
}

// DeleteAll removes every ticket and returns how many were deleted.
func (r *TicketRepo) DeleteAll(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx, "DELETE FROM tickets")
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const messageSelect = `SELECT m.id,m.ticket_id,m.author_user_id,m.is_admin_authored,m.body,m.created_at,
       u.display_name,u.avatar_url
  FROM ticket_messages m
  JOIN users u ON u.id = m.author_user_id`

func scanMessage(row rowScanner) (model.TicketMessage, error) {
	var (
		m      model.TicketMessage
		avatar sql.NullString
	)
	if err := row.Scan(&m.ID, &m.TicketID, &m.AuthorUserID, &m.IsAdminAuthored, &m.Body, &m.CreatedAt,
		&m.AuthorName, &avatar); err != nil {
		return model.TicketMessage{}, err
	}
	m.AuthorAvatarURL = nullString(avatar)
	return m, nil
}

// InsertMessageTx appends a message and reads it back with author data.
func (r *TicketRepo) InsertMessageTx(ctx context.Context, tx *sql.Tx, m *model.TicketMessage) error {
	res, err := tx.ExecContext(ctx,
		"INSERT INTO ticket_messages (ticket_id, author_user_id, is_admin_authored, body) VALUES (?,?,?,?)",
		m.TicketID, m.AuthorUserID, m.IsAdminAuthored, m.Body)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	created, err := scanMessage(tx.QueryRowContext(ctx, messageSelect+" WHERE m.id=?", id))
	if err != nil {
		return err
	}
	*m = created
	return nil
}

// Messages returns the thread oldest first.  id breaks ties between
// messages written in the same timestamp tick so repeated reads agree.
func (r *TicketRepo) Messages(ctx context.Context, ticketID uint64) ([]model.TicketMessage, error) {
	rows, err := r.db.QueryContext(ctx, messageSelect+" WHERE m.ticket_id=? ORDER BY m.created_at ASC, m.id ASC", ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.TicketMessage{}
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
