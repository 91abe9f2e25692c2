package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/tigerpop/marketplace/internal/model"
)

// UserRepo provides access to the users table.  Users are keyed
// internally by a surrogate ID but externally by netid; Resolve accepts
// either form and lazily creates missing netid rows, since the first
// CAS login or the first heart from a new netid is allowed to mint the
// account.
type UserRepo struct {
	DB          *sql.DB
	EmailDomain string // appended to netids when deriving emails
}

func NewUserRepo(db *sql.DB, emailDomain string) *UserRepo {
	return &UserRepo{DB: db, EmailDomain: emailDomain}
}

// GetByID fetches a user by surrogate key.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (model.User, error) {
	var u model.User
	err := r.DB.QueryRowContext(ctx,
		"SELECT id, netid, email, created_at FROM users WHERE id=? LIMIT 1",
		id).Scan(&u.ID, &u.NetID, &u.Email, &u.CreatedAt)
	return u, err
}

// GetByNetID fetches a user by normalized netid.
func (r *UserRepo) GetByNetID(ctx context.Context, netid string) (model.User, error) {
	netid = normalizeNetID(netid)
	var u model.User
	err := r.DB.QueryRowContext(ctx,
		"SELECT id, netid, email, created_at FROM users WHERE netid=? LIMIT 1",
		netid).Scan(&u.ID, &u.NetID, &u.Email, &u.CreatedAt)
	return u, err
}

// Resolve returns the user addressed by ref.  References by ID must
// already exist; references by netid create the user on first sight
// with a derived email address.  An empty ref yields sql.ErrNoRows.
func (r *UserRepo) Resolve(ctx context.Context, ref model.UserRef) (model.User, error) {
	if ref.ID != 0 {
		return r.GetByID(ctx, ref.ID)
	}
	if ref.NetID == "" {
		return model.User{}, sql.ErrNoRows
	}
	u, err := r.GetByNetID(ctx, ref.NetID)
	if err == nil {
		return u, nil
	}
	if err != sql.ErrNoRows {
		return model.User{}, err
	}
	return r.createByNetID(ctx, ref.NetID)
}

// createByNetID inserts a user row for a netid seen for the first time.
// A concurrent insert of the same netid loses the unique-key race and
// falls back to reading the winner's row.
func (r *UserRepo) createByNetID(ctx context.Context, netid string) (model.User, error) {
	netid = normalizeNetID(netid)
	email := fmt.Sprintf("%s@%s", netid, r.EmailDomain)
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO users (netid, email) VALUES (?,?)",
		netid, email)
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "1062") {
			return r.GetByNetID(ctx, netid)
		}
		return model.User{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return model.User{}, err
	}
	return r.GetByID(ctx, uint64(id))
}

// Delete removes a user.  Deletion is refused with ErrConflict while
// the user still owns listings or has placed bids, so marketplace
// history stays intact.  Hearts and refresh tokens are removed first.
func (r *UserRepo) Delete(ctx context.Context, id uint64) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	var active int
	err = tx.QueryRowContext(ctx,
		`SELECT (SELECT COUNT(*) FROM listings WHERE seller_id=? OR buyer_id=?)
		      + (SELECT COUNT(*) FROM bids WHERE bidder_id=?)`,
		id, id, id).Scan(&active)
	if err != nil {
		return err
	}
	if active > 0 {
		return ErrConflict
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM hearted_listings WHERE user_id=?", id); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM refresh_tokens WHERE user_id=?", id); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, "DELETE FROM users WHERE id=?", id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

func normalizeNetID(netid string) string {
	return strings.ToLower(strings.TrimSpace(netid))
}
