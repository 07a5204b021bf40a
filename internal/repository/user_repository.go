package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/iliyamo/skin-marketplace/internal/domain"
	"github.com/iliyamo/skin-marketplace/internal/model"
)

type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

const userColumns = "id,external_id,display_name,avatar_url,trade_url,balance_cents,is_admin,created_at,updated_at"

func scanUser(row rowScanner) (model.User, error) {
	var (
		u      model.User
		avatar sql.NullString
		trade  sql.NullString
	)
	err := row.Scan(&u.ID, &u.ExternalID, &u.DisplayName, &avatar, &trade,
		&u.BalanceCents, &u.IsAdmin, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return model.User{}, err
	}
	u.AvatarURL = nullString(avatar)
	u.TradeURL = nullStringPtr(trade)
	return u, nil
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (model.User, error) {
	u, err := scanUser(r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id=? LIMIT 1", id))
	return u, notFound(err, "user")
}

// GetByExternalID fetches a user by identity-provider id.
func (r *UserRepo) GetByExternalID(ctx context.Context, externalID string) (model.User, error) {
	u, err := scanUser(r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE external_id=? LIMIT 1", externalID))
	return u, notFound(err, "user")
}

// Create inserts a user and fills in the generated id.  A unique key
// violation on external_id yields ErrDuplicate.
func (r *UserRepo) Create(ctx context.Context, u *model.User) error {
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO users (external_id, display_name, avatar_url, is_admin) VALUES (?,?,?,?)",
		u.ExternalID, u.DisplayName, stringOrNil(u.AvatarURL), u.IsAdmin)
	if err != nil {
		if isDuplicate(err) {
			return ErrDuplicate
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	u.ID = uint64(id)
	return nil
}

// UpdateProfile refreshes the provider-supplied display fields.
func (r *UserRepo) UpdateProfile(ctx context.Context, id uint64, displayName, avatarURL string) error {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE users SET display_name=?, avatar_url=? WHERE id=?",
		displayName, stringOrNil(avatarURL), id)
	return expectOne(res, err, "user")
}

// UpdateTradeURL sets or clears (nil) the user's trade link.
func (r *UserRepo) UpdateTradeURL(ctx context.Context, id uint64, tradeURL *string) error {
	var v any
	if tradeURL != nil {
		v = *tradeURL
	}
	res, err := r.DB.ExecContext(ctx, "UPDATE users SET trade_url=? WHERE id=?", v, id)
	return expectOne(res, err, "user")
}

// SetAdmin persists the admin flag of the user with the given external id.
func (r *UserRepo) SetAdmin(ctx context.Context, externalID string, isAdmin bool) error {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE users SET is_admin=? WHERE external_id=?", isAdmin, externalID)
	return expectOne(res, err, "user")
}

// GetForUpdateTx reads and locks a user row until the transaction ends.
func (r *UserRepo) GetForUpdateTx(ctx context.Context, tx *sql.Tx, id uint64) (model.User, error) {
	u, err := scanUser(tx.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id=? FOR UPDATE", id))
	return u, notFound(err, "user")
}

// AdjustBalanceTx adds delta (negative to debit) to the user's balance.
// The balance CHECK constraint rejects any update that would go below zero.
func (r *UserRepo) AdjustBalanceTx(ctx context.Context, tx *sql.Tx, id uint64, delta int64) error {
	res, err := tx.ExecContext(ctx,
		"UPDATE users SET balance_cents = balance_cents + ? WHERE id=?", delta, id)
	return expectOne(res, err, "user")
}

// expectOne turns an UPDATE/DELETE that matched no row into ErrNotFound.
func expectOne(res sql.Result, err error, what string) error {
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", domain.ErrNotFound, what)
	}
	return nil
}
