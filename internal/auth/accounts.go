package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"tickettrail.org/internal/ids"
)

// AccountService is the administrative surface over identities: listing,
// creation, updates, deletion and the block switch.
type AccountService struct {
	identities IdentityStore
}

// NewAccountService constructs an AccountService.
func NewAccountService(identities IdentityStore) (*AccountService, error) {
	if identities == nil {
		return nil, errors.New("auth: identity store is required")
	}
	return &AccountService{identities: identities}, nil
}

// AccountParams carries identity fields for create/update paths.
type AccountParams struct {
	Email     string
	FirstName string
	LastName  string
	Password  string
	Role      Role
}

// List returns all identities.
func (s *AccountService) List(ctx context.Context) ([]Identity, error) {
	return s.identities.List(ctx)
}

// Get loads one identity.
func (s *AccountService) Get(ctx context.Context, id string) (Identity, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Identity{}, fmt.Errorf("%w: identity id is required", ErrInvalidInput)
	}
	return s.identities.FindByID(ctx, id)
}

// Create inserts a new identity with an administratively chosen role. The
// login name mirrors the email, as in self-service registration.
func (s *AccountService) Create(ctx context.Context, params AccountParams) (Identity, error) {
	email := strings.TrimSpace(strings.ToLower(params.Email))
	if email == "" || !strings.Contains(email, "@") {
		return Identity{}, fmt.Errorf("%w: valid email is required", ErrInvalidInput)
	}
	if strings.TrimSpace(params.Password) == "" {
		return Identity{}, fmt.Errorf("%w: password is required", ErrInvalidInput)
	}
	role, err := ParseRole(string(params.Role))
	if err != nil {
		return Identity{}, err
	}
	hash, err := HashPassword(params.Password)
	if err != nil {
		return Identity{}, err
	}
	identity := Identity{
		ID:           ids.New(),
		Login:        email,
		Email:        email,
		FirstName:    strings.TrimSpace(params.FirstName),
		LastName:     strings.TrimSpace(params.LastName),
		Role:         role,
		PasswordHash: hash,
	}
	if err := s.identities.Create(ctx, &identity); err != nil {
		return Identity{}, err
	}
	return identity, nil
}

// Update rewrites identity fields. An empty password keeps the current one; a
// role change takes effect on the next issued token (outstanding tokens keep
// their snapshot until expiry or revocation).
func (s *AccountService) Update(ctx context.Context, id string, params AccountParams) (Identity, error) {
	identity, err := s.Get(ctx, id)
	if err != nil {
		return Identity{}, err
	}
	email := strings.TrimSpace(strings.ToLower(params.Email))
	if email == "" || !strings.Contains(email, "@") {
		return Identity{}, fmt.Errorf("%w: valid email is required", ErrInvalidInput)
	}
	// An empty role keeps the current one; self-service updates never send it.
	role := identity.Role
	if strings.TrimSpace(string(params.Role)) != "" {
		role, err = ParseRole(string(params.Role))
		if err != nil {
			return Identity{}, err
		}
	}
	identity.Email = email
	identity.Login = email
	identity.FirstName = strings.TrimSpace(params.FirstName)
	identity.LastName = strings.TrimSpace(params.LastName)
	identity.Role = role
	if err := s.identities.Update(ctx, &identity); err != nil {
		return Identity{}, err
	}
	if pw := strings.TrimSpace(params.Password); pw != "" {
		hash, err := HashPassword(pw)
		if err != nil {
			return Identity{}, err
		}
		if err := s.identities.UpdatePassword(ctx, identity.ID, hash); err != nil {
			return Identity{}, err
		}
	}
	return identity, nil
}

// Delete removes an identity.
func (s *AccountService) Delete(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("%w: identity id is required", ErrInvalidInput)
	}
	return s.identities.Delete(ctx, id)
}

// Block locks the identity out. The store applies the block flag and the
// token-version bump in one statement, so every outstanding session dies with
// the block; a half-applied block would defeat revocation entirely.
func (s *AccountService) Block(ctx context.Context, id string) error {
	return s.setBlocked(ctx, id, true)
}

// Unblock lifts the block. The token version still bumps: sessions issued
// before the block stay dead and the user logs in fresh.
func (s *AccountService) Unblock(ctx context.Context, id string) error {
	return s.setBlocked(ctx, id, false)
}

func (s *AccountService) setBlocked(ctx context.Context, id string, blocked bool) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("%w: identity id is required", ErrInvalidInput)
	}
	affected, err := s.identities.SetBlocked(ctx, id, blocked)
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
