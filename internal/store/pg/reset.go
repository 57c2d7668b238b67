package pg

import (
	"context"
	"database/sql"
	"errors"

	"tickettrail.org/internal/auth"
)

var _ auth.ResetTokenStore = (*resetTokenStore)(nil)

// resetTokenStore manages password reset token rows.
type resetTokenStore struct{ db *sql.DB }

// ResetTokens returns the reset token store view.
func (s *Store) ResetTokens() auth.ResetTokenStore {
	return &resetTokenStore{db: s.db}
}

func (r *resetTokenStore) Create(ctx context.Context, token *auth.ResetToken) error {
	return r.db.QueryRowContext(ctx, `
		insert into password_reset_tokens (id, identity_id, code_hash, expires_at)
		values ($1, $2, $3, $4)
		returning created_at
	`, token.ID, token.IdentityID, token.CodeHash, token.ExpiresAt).Scan(&token.CreatedAt)
}

func (r *resetTokenStore) Find(ctx context.Context, id string) (auth.ResetToken, error) {
	var token auth.ResetToken
	err := r.db.QueryRowContext(ctx, `
		select id, identity_id, code_hash, expires_at, created_at
		from password_reset_tokens
		where id = $1
	`, id).Scan(&token.ID, &token.IdentityID, &token.CodeHash, &token.ExpiresAt, &token.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return auth.ResetToken{}, auth.ErrNotFound
	}
	if err != nil {
		return auth.ResetToken{}, err
	}
	return token, nil
}

// Delete removes one token. Redemption races resolve here: the winner's
// delete succeeds, the loser gets ErrNotFound.
func (r *resetTokenStore) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `delete from password_reset_tokens where id = $1`, id)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (r *resetTokenStore) DeleteByIdentity(ctx context.Context, identityID string) error {
	_, err := r.db.ExecContext(ctx, `
		delete from password_reset_tokens where identity_id = $1
	`, identityID)
	return err
}

func (r *resetTokenStore) DeleteExpired(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		delete from password_reset_tokens where expires_at < now()
	`)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
