package auth

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAccountCreateAndGet(t *testing.T) {
	store := newFakeIdentityStore()
	svc, err := NewAccountService(store)
	require.NoError(t, err)

	identity, err := svc.Create(context.Background(), AccountParams{
		Email: "Worker@Example.com", Password: "pw", Role: RoleWorker,
		FirstName: "Wan", LastName: "Ko",
	})
	require.NoError(t, err)
	require.Equal(t, "worker@example.com", identity.Email)
	require.Equal(t, identity.Email, identity.Login)
	require.Equal(t, RoleWorker, identity.Role)

	got, err := svc.Get(context.Background(), identity.ID)
	require.NoError(t, err)
	require.Equal(t, identity.ID, got.ID)
}

func TestAccountCreateValidation(t *testing.T) {
	store := newFakeIdentityStore()
	svc, err := NewAccountService(store)
	require.NoError(t, err)

	_, err = svc.Create(context.Background(), AccountParams{Email: "x@y.com", Password: "pw"})
	require.ErrorIs(t, err, ErrInvalidInput, "missing role must be rejected on create")

	_, err = svc.Create(context.Background(), AccountParams{Email: "bad", Password: "pw", Role: RoleWorker})
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestAccountUpdateKeepsRoleWhenOmitted(t *testing.T) {
	store := newFakeIdentityStore()
	svc, err := NewAccountService(store)
	require.NoError(t, err)

	identity, err := svc.Create(context.Background(), AccountParams{
		Email: "m@example.com", Password: "pw", Role: RoleManager,
	})
	require.NoError(t, err)

	updated, err := svc.Update(context.Background(), identity.ID, AccountParams{
		Email: "m2@example.com", FirstName: "M",
	})
	require.NoError(t, err)
	require.Equal(t, RoleManager, updated.Role)
	require.Equal(t, "m2@example.com", updated.Email)

	promoted, err := svc.Update(context.Background(), identity.ID, AccountParams{
		Email: "m2@example.com", Role: RoleAdmin,
	})
	require.NoError(t, err)
	require.Equal(t, RoleAdmin, promoted.Role)
}

func TestAccountUpdatePasswordOptional(t *testing.T) {
	store := newFakeIdentityStore()
	svc, err := NewAccountService(store)
	require.NoError(t, err)

	identity, err := svc.Create(context.Background(), AccountParams{
		Email: "p@example.com", Password: "original", Role: RoleWorker,
	})
	require.NoError(t, err)

	_, err = svc.Update(context.Background(), identity.ID, AccountParams{Email: "p@example.com"})
	require.NoError(t, err)
	got, err := store.FindByID(context.Background(), identity.ID)
	require.NoError(t, err)
	require.NoError(t, VerifyPassword(got.PasswordHash, "original"))

	_, err = svc.Update(context.Background(), identity.ID, AccountParams{
		Email: "p@example.com", Password: "rotated",
	})
	require.NoError(t, err)
	got, err = store.FindByID(context.Background(), identity.ID)
	require.NoError(t, err)
	require.NoError(t, VerifyPassword(got.PasswordHash, "rotated"))
}

func TestBlockUnknownIdentity(t *testing.T) {
	store := newFakeIdentityStore()
	svc, err := NewAccountService(store)
	require.NoError(t, err)

	require.ErrorIs(t, svc.Block(context.Background(), "ghost"), ErrNotFound)
	require.ErrorIs(t, svc.Unblock(context.Background(), "ghost"), ErrNotFound)
}

func TestBlockBumpsTokenVersion(t *testing.T) {
	store := newFakeIdentityStore()
	svc, err := NewAccountService(store)
	require.NoError(t, err)

	identity, err := svc.Create(context.Background(), AccountParams{
		Email: "b@example.com", Password: "pw", Role: RoleWorker,
	})
	require.NoError(t, err)

	require.NoError(t, svc.Block(context.Background(), identity.ID))
	blocked, err := store.FindByID(context.Background(), identity.ID)
	require.NoError(t, err)
	require.True(t, blocked.Blocked)
	require.Equal(t, identity.TokenVersion+1, blocked.TokenVersion)

	require.NoError(t, svc.Unblock(context.Background(), identity.ID))
	unblocked, err := store.FindByID(context.Background(), identity.ID)
	require.NoError(t, err)
	require.False(t, unblocked.Blocked)
	require.Equal(t, identity.TokenVersion+2, unblocked.TokenVersion)
}
