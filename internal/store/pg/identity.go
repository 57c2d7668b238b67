package pg

import (
	"context"
	"database/sql"
	"errors"

	"tickettrail.org/internal/auth"
)

var _ auth.IdentityStore = (*Store)(nil)

const identityColumns = `id, login, email, first_name, last_name, password_hash,
	role, token_version, blocked, created_at, password_changed_at`

func scanIdentity(row interface{ Scan(...any) error }) (auth.Identity, error) {
	var (
		id        auth.Identity
		role      string
		changedAt sql.NullTime
	)
	err := row.Scan(&id.ID, &id.Login, &id.Email, &id.FirstName, &id.LastName,
		&id.PasswordHash, &role, &id.TokenVersion, &id.Blocked, &id.CreatedAt, &changedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return auth.Identity{}, auth.ErrNotFound
	}
	if err != nil {
		return auth.Identity{}, err
	}
	id.Role = auth.Role(role)
	if changedAt.Valid {
		t := changedAt.Time
		id.PasswordChangedAt = &t
	}
	return id, nil
}

func (s *Store) Create(ctx context.Context, identity *auth.Identity) error {
	err := s.db.QueryRowContext(ctx, `
		insert into identities (id, login, email, first_name, last_name, password_hash, role)
		values ($1, $2, $3, $4, $5, $6, $7)
		returning created_at, token_version
	`, identity.ID, identity.Login, identity.Email, identity.FirstName,
		identity.LastName, identity.PasswordHash, string(identity.Role),
	).Scan(&identity.CreatedAt, &identity.TokenVersion)
	if err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrUniqueViolation {
			return auth.ErrConflict
		}
		return err
	}
	return nil
}

func (s *Store) FindByID(ctx context.Context, id string) (auth.Identity, error) {
	row := s.db.QueryRowContext(ctx, `
		select `+identityColumns+`
		from identities
		where id = $1
	`, id)
	return scanIdentity(row)
}

func (s *Store) FindByLoginOrEmail(ctx context.Context, identifier string) (auth.Identity, error) {
	row := s.db.QueryRowContext(ctx, `
		select `+identityColumns+`
		from identities
		where login = $1 or email = $1
	`, identifier)
	return scanIdentity(row)
}

func (s *Store) List(ctx context.Context) ([]auth.Identity, error) {
	rows, err := s.db.QueryContext(ctx, `
		select `+identityColumns+`
		from identities
		order by created_at
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var identities []auth.Identity
	for rows.Next() {
		id, err := scanIdentity(rows)
		if err != nil {
			return nil, err
		}
		identities = append(identities, id)
	}
	return identities, rows.Err()
}

func (s *Store) Update(ctx context.Context, identity *auth.Identity) error {
	res, err := s.db.ExecContext(ctx, `
		update identities
		set login = $2, email = $3, first_name = $4, last_name = $5, role = $6
		where id = $1
	`, identity.ID, identity.Login, identity.Email, identity.FirstName,
		identity.LastName, string(identity.Role))
	if err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrUniqueViolation {
			return auth.ErrConflict
		}
		return err
	}
	return requireAffected(res)
}

func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `delete from identities where id = $1`, id)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

// UpdatePassword swaps the hash and bumps the token version in one UPDATE.
// Sessions issued against the old password must die with it.
func (s *Store) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	res, err := s.db.ExecContext(ctx, `
		update identities
		set password_hash = $2, password_changed_at = now(), token_version = token_version + 1
		where id = $1
	`, id, passwordHash)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (s *Store) IncrementTokenVersion(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `
		update identities
		set token_version = token_version + 1
		where id = $1
	`, id)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

// SetBlocked flips the block flag and bumps the token version in one UPDATE.
// The two must never be observable half-applied: a blocked identity whose old
// tokens still verify would make revocation meaningless.
func (s *Store) SetBlocked(ctx context.Context, id string, blocked bool) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		update identities
		set blocked = $2, token_version = token_version + 1
		where id = $1
	`, id, blocked)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func requireAffected(res sql.Result) error {
	aff, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if aff == 0 {
		return auth.ErrNotFound
	}
	return nil
}
