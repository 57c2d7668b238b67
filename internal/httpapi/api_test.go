package httpapi

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"tickettrail.org/internal/audit"
	"tickettrail.org/internal/auth"
	"tickettrail.org/internal/tracker"
)

// ---- in-memory stores ----

type memIdentityStore struct {
	mu         sync.Mutex
	identities map[string]auth.Identity
}

func (m *memIdentityStore) Create(_ context.Context, identity *auth.Identity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.identities {
		if existing.Login == identity.Login || existing.Email == identity.Email {
			return auth.ErrConflict
		}
	}
	if identity.CreatedAt.IsZero() {
		identity.CreatedAt = time.Now().UTC()
	}
	m.identities[identity.ID] = *identity
	return nil
}

func (m *memIdentityStore) FindByID(_ context.Context, id string) (auth.Identity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	identity, ok := m.identities[id]
	if !ok {
		return auth.Identity{}, auth.ErrNotFound
	}
	return identity, nil
}

func (m *memIdentityStore) FindByLoginOrEmail(_ context.Context, identifier string) (auth.Identity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, identity := range m.identities {
		if identity.Login == identifier || identity.Email == identifier {
			return identity, nil
		}
	}
	return auth.Identity{}, auth.ErrNotFound
}

func (m *memIdentityStore) List(_ context.Context) ([]auth.Identity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]auth.Identity, 0, len(m.identities))
	for _, identity := range m.identities {
		out = append(out, identity)
	}
	return out, nil
}

func (m *memIdentityStore) Update(_ context.Context, identity *auth.Identity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.identities[identity.ID]; !ok {
		return auth.ErrNotFound
	}
	m.identities[identity.ID] = *identity
	return nil
}

func (m *memIdentityStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.identities[id]; !ok {
		return auth.ErrNotFound
	}
	delete(m.identities, id)
	return nil
}

func (m *memIdentityStore) UpdatePassword(_ context.Context, id, passwordHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	identity, ok := m.identities[id]
	if !ok {
		return auth.ErrNotFound
	}
	now := time.Now().UTC()
	identity.PasswordHash = passwordHash
	identity.PasswordChangedAt = &now
	identity.TokenVersion++
	m.identities[id] = identity
	return nil
}

func (m *memIdentityStore) IncrementTokenVersion(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	identity, ok := m.identities[id]
	if !ok {
		return auth.ErrNotFound
	}
	identity.TokenVersion++
	m.identities[id] = identity
	return nil
}

func (m *memIdentityStore) SetBlocked(_ context.Context, id string, blocked bool) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	identity, ok := m.identities[id]
	if !ok {
		return 0, nil
	}
	identity.Blocked = blocked
	identity.TokenVersion++
	m.identities[id] = identity
	return 1, nil
}

type memResetStore struct {
	mu     sync.Mutex
	tokens map[string]auth.ResetToken
}

func (m *memResetStore) Create(_ context.Context, token *auth.ResetToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	token.CreatedAt = time.Now().UTC()
	m.tokens[token.ID] = *token
	return nil
}

func (m *memResetStore) Find(_ context.Context, id string) (auth.ResetToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	token, ok := m.tokens[id]
	if !ok {
		return auth.ResetToken{}, auth.ErrNotFound
	}
	return token, nil
}

func (m *memResetStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tokens[id]; !ok {
		return auth.ErrNotFound
	}
	delete(m.tokens, id)
	return nil
}

func (m *memResetStore) DeleteByIdentity(_ context.Context, identityID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, token := range m.tokens {
		if token.IdentityID == identityID {
			delete(m.tokens, id)
		}
	}
	return nil
}

func (m *memResetStore) DeleteExpired(_ context.Context) (int64, error) { return 0, nil }

type memProjectStore struct {
	mu       sync.Mutex
	projects map[string]tracker.Project
}

func (m *memProjectStore) Create(_ context.Context, p *tracker.Project) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p.CreatedAt = time.Now().UTC()
	m.projects[p.ID] = *p
	return nil
}

func (m *memProjectStore) Find(_ context.Context, id string) (tracker.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.projects[id]
	if !ok {
		return tracker.Project{}, tracker.ErrNotFound
	}
	return p, nil
}

func (m *memProjectStore) List(_ context.Context) ([]tracker.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]tracker.Project, 0, len(m.projects))
	for _, p := range m.projects {
		out = append(out, p)
	}
	return out, nil
}

func (m *memProjectStore) Update(_ context.Context, p *tracker.Project) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.projects[p.ID]; !ok {
		return tracker.ErrNotFound
	}
	m.projects[p.ID] = *p
	return nil
}

func (m *memProjectStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.projects[id]; !ok {
		return tracker.ErrNotFound
	}
	delete(m.projects, id)
	return nil
}

type memAuditStore struct {
	mu      sync.Mutex
	seq     int
	entries []audit.Entry
}

func (m *memAuditStore) Append(_ context.Context, entry *audit.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	if entry.ID == "" {
		entry.ID = fmt.Sprintf("e%04d", m.seq)
	}
	entry.CreatedAt = time.Now().UTC()
	m.entries = append(m.entries, *entry)
	return nil
}

func (m *memAuditStore) ListByEntity(_ context.Context, entityID string) ([]audit.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []audit.Entry
	for _, e := range m.entries {
		if e.EntityID == entityID {
			out = append(out, e)
		}
	}
	return out, nil
}

type memTicketStore struct {
	mu      sync.Mutex
	tickets map[string]tracker.Ticket
	trail   *memAuditStore
}

func (m *memTicketStore) Create(ctx context.Context, t *tracker.Ticket, entries []audit.Entry) error {
	m.mu.Lock()
	t.CreatedAt = time.Now().UTC()
	m.tickets[t.ID] = *t
	m.mu.Unlock()
	for i := range entries {
		if err := m.trail.Append(ctx, &entries[i]); err != nil {
			return err
		}
	}
	return nil
}

func (m *memTicketStore) FindInProject(_ context.Context, projectID, ticketID string) (tracker.Ticket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tickets[ticketID]
	if !ok || t.ProjectID != projectID {
		return tracker.Ticket{}, tracker.ErrNotFound
	}
	return t, nil
}

func (m *memTicketStore) ListByProject(_ context.Context, projectID string) ([]tracker.Ticket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []tracker.Ticket
	for _, t := range m.tickets {
		if t.ProjectID == projectID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *memTicketStore) ListByAssignee(_ context.Context, assigneeID string) ([]tracker.Ticket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []tracker.Ticket
	for _, t := range m.tickets {
		if t.AssigneeID == assigneeID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *memTicketStore) Update(ctx context.Context, t *tracker.Ticket, entries []audit.Entry) error {
	m.mu.Lock()
	if _, ok := m.tickets[t.ID]; !ok {
		m.mu.Unlock()
		return tracker.ErrNotFound
	}
	m.tickets[t.ID] = *t
	m.mu.Unlock()
	for i := range entries {
		if err := m.trail.Append(ctx, &entries[i]); err != nil {
			return err
		}
	}
	return nil
}

func (m *memTicketStore) Delete(ctx context.Context, projectID, ticketID string, entry audit.Entry) error {
	m.mu.Lock()
	t, ok := m.tickets[ticketID]
	if !ok || t.ProjectID != projectID {
		m.mu.Unlock()
		return tracker.ErrNotFound
	}
	m.mu.Unlock()
	if err := m.trail.Append(ctx, &entry); err != nil {
		return err
	}
	m.mu.Lock()
	delete(m.tickets, ticketID)
	m.mu.Unlock()
	return nil
}

type memCommentStore struct {
	mu       sync.Mutex
	comments map[string]tracker.Comment
}

func (m *memCommentStore) Create(_ context.Context, c *tracker.Comment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c.CreatedAt = time.Now().UTC()
	m.comments[c.ID] = *c
	return nil
}

func (m *memCommentStore) Find(_ context.Context, id string) (tracker.Comment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.comments[id]
	if !ok {
		return tracker.Comment{}, tracker.ErrNotFound
	}
	return c, nil
}

func (m *memCommentStore) ListByTicket(_ context.Context, ticketID string) ([]tracker.Comment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []tracker.Comment
	for _, c := range m.comments {
		if c.TicketID == ticketID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *memCommentStore) Update(_ context.Context, c *tracker.Comment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.comments[c.ID]; !ok {
		return tracker.ErrNotFound
	}
	m.comments[c.ID] = *c
	return nil
}

func (m *memCommentStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.comments[id]; !ok {
		return tracker.ErrNotFound
	}
	delete(m.comments, id)
	return nil
}

// ---- test harness ----

type testAPI struct {
	api        *API
	handler    http.Handler
	tokens     *auth.Service
	identities *memIdentityStore
	resets     *memResetStore
	delivered  []string
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatal(err)
	}
	privPEM := pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(key),
	})
	pubDER, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		t.Fatal(err)
	}
	pubPEM := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubDER})

	ta := &testAPI{
		identities: &memIdentityStore{identities: make(map[string]auth.Identity)},
		resets:     &memResetStore{tokens: make(map[string]auth.ResetToken)},
	}

	tokens, err := auth.NewService(ta.identities,
		auth.WithRS256Keys(string(privPEM), string(pubPEM)),
		auth.WithIssuer("tickettrail-test"),
	)
	if err != nil {
		t.Fatal(err)
	}
	ta.tokens = tokens

	resets, err := auth.NewResetService(ta.identities, ta.resets,
		auth.WithDelivery(func(_ auth.Identity, compound string) {
			ta.delivered = append(ta.delivered, compound)
		}),
	)
	if err != nil {
		t.Fatal(err)
	}

	accounts, err := auth.NewAccountService(ta.identities)
	if err != nil {
		t.Fatal(err)
	}

	trail := &memAuditStore{}
	history, err := audit.NewLog(trail)
	if err != nil {
		t.Fatal(err)
	}
	projectStore := &memProjectStore{projects: make(map[string]tracker.Project)}
	ticketStore := &memTicketStore{tickets: make(map[string]tracker.Ticket), trail: trail}
	commentStore := &memCommentStore{comments: make(map[string]tracker.Comment)}

	projects, err := tracker.NewProjectService(projectStore)
	if err != nil {
		t.Fatal(err)
	}
	ticketSvc, err := tracker.NewTicketService(projectStore, ticketStore, commentStore, history)
	if err != nil {
		t.Fatal(err)
	}

	ta.api = New(ReadyProbe{}, "test", Deps{
		Tokens:     tokens,
		Resets:     resets,
		Accounts:   accounts,
		Projects:   projects,
		Tickets:    ticketSvc,
		Identities: ta.identities,
	})
	ta.handler = ta.api.Handler()
	return ta
}

// seed creates an identity directly in the store and returns a live token.
func (ta *testAPI) seed(t *testing.T, login, password string, role auth.Role) (auth.Identity, string) {
	t.Helper()
	hash, err := auth.HashPassword(password)
	if err != nil {
		t.Fatal(err)
	}
	identity := auth.Identity{
		ID:           "id-" + login,
		Login:        login,
		Email:        login + "@example.com",
		Role:         role,
		PasswordHash: hash,
	}
	if err := ta.identities.Create(context.Background(), &identity); err != nil {
		t.Fatal(err)
	}
	token, _, err := ta.tokens.Issue(identity)
	if err != nil {
		t.Fatal(err)
	}
	return identity, token
}

func (ta *testAPI) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	ta.handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, dst any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), dst); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
}

// ---- ops ----

func TestHealthz(t *testing.T) {
	ta := newTestAPI(t)
	rec := ta.do(t, http.MethodGet, "/healthz", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body map[string]any
	decodeBody(t, rec, &body)
	if body["status"] != "ok" {
		t.Errorf("body = %v", body)
	}
}

func TestUnknownRouteIs404(t *testing.T) {
	ta := newTestAPI(t)
	rec := ta.do(t, http.MethodGet, "/api/nothing", "", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rec.Code)
	}
}
