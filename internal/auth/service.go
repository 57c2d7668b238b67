package auth

import (
	"context"
	"crypto/rsa"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"tickettrail.org/internal/ids"
)

const defaultTokenTTL = 8 * time.Hour

// Service issues and verifies signed session tokens and authenticates
// credentials. Tokens are stateless; revocation lives in the identity's
// token-version counter, compared live on every verification.
type Service struct {
	identities IdentityStore
	now        func() time.Time

	privateKey *rsa.PrivateKey
	publicKey  *rsa.PublicKey
	issuer     string
	tokenTTL   time.Duration
}

// Claims is the session token payload.
type Claims struct {
	IdentityID   string   `json:"uid"`
	Role         string   `json:"role"`
	Permissions  []string `json:"permissions"`
	TokenVersion int      `json:"token_version"`
	jwt.RegisteredClaims
}

// ServiceOption configures Service behavior.
type ServiceOption func(*Service) error

// WithRS256Keys installs the PEM-encoded RSA key pair. The private key signs,
// the public key verifies; verification paths never touch signing material.
// Key material is supplied by the deployment, never generated here.
func WithRS256Keys(privatePEM, publicPEM string) ServiceOption {
	return func(s *Service) error {
		privatePEM = strings.TrimSpace(privatePEM)
		publicPEM = strings.TrimSpace(publicPEM)
		if privatePEM == "" || publicPEM == "" {
			return errors.New("auth: both private and public keys are required")
		}
		priv, err := jwt.ParseRSAPrivateKeyFromPEM([]byte(privatePEM))
		if err != nil {
			return fmt.Errorf("auth: parse private key: %w", err)
		}
		pub, err := jwt.ParseRSAPublicKeyFromPEM([]byte(publicPEM))
		if err != nil {
			return fmt.Errorf("auth: parse public key: %w", err)
		}
		s.privateKey = priv
		s.publicKey = pub
		return nil
	}
}

// WithIssuer overrides the token issuer claim.
func WithIssuer(issuer string) ServiceOption {
	return func(s *Service) error {
		s.issuer = strings.TrimSpace(issuer)
		return nil
	}
}

// WithTokenTTL configures session token lifetime.
func WithTokenTTL(ttl time.Duration) ServiceOption {
	return func(s *Service) error {
		if ttl > 0 {
			s.tokenTTL = ttl
		}
		return nil
	}
}

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) ServiceOption {
	return func(s *Service) error {
		if fn != nil {
			s.now = fn
		}
		return nil
	}
}

// NewService constructs a Service with optional configuration.
func NewService(identities IdentityStore, opts ...ServiceOption) (*Service, error) {
	if identities == nil {
		return nil, errors.New("auth: identity store is required")
	}
	svc := &Service{
		identities: identities,
		now:        time.Now,
		tokenTTL:   defaultTokenTTL,
	}
	for _, opt := range opts {
		if err := opt(svc); err != nil {
			return nil, err
		}
	}
	if svc.privateKey == nil || svc.publicKey == nil {
		return nil, errors.New("auth: RS256 key pair is required")
	}
	return svc, nil
}

// Issue signs a session token for the identity. The token embeds the role,
// the permission atoms resolved at issuance and a snapshot of the identity's
// current token version.
func (s *Service) Issue(identity Identity) (string, time.Time, error) {
	now := s.now().UTC()
	exp := now.Add(s.tokenTTL)

	perms := PermissionsFor(identity.Role)
	permStrings := make([]string, len(perms))
	for i, p := range perms {
		permStrings[i] = string(p)
	}

	claims := Claims{
		IdentityID:   identity.ID,
		Role:         string(identity.Role),
		Permissions:  permStrings,
		TokenVersion: identity.TokenVersion,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   identity.Login,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
			ID:        uuid.NewString(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	signed, err := token.SignedString(s.privateKey)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, exp, nil
}

// Verify checks the token end to end and fails closed. A signature failure or
// unparseable token is a hard ErrTokenMalformed. An expired token, a subject
// not matching expectedLogin, a blocked identity or a stale token version is a
// benign (false, nil): the session simply is no longer valid. A token whose
// embedded identity no longer exists is an error. Validity is re-derived on
// every call against the live identity row; nothing is cached.
func (s *Service) Verify(ctx context.Context, token, expectedLogin string) (bool, error) {
	claims, err := s.parse(token, true)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return false, nil
		}
		return false, fmt.Errorf("%w: %v", ErrTokenMalformed, err)
	}
	if claims.Subject != expectedLogin {
		return false, nil
	}

	identity, err := s.identities.FindByID(ctx, claims.IdentityID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, fmt.Errorf("%w: token identity no longer exists", ErrNotFound)
		}
		return false, err
	}
	if identity.Blocked {
		return false, nil
	}
	if claims.TokenVersion != identity.TokenVersion {
		return false, nil
	}
	return true, nil
}

// Subject extracts the login name from the token after checking its signature.
// Expiry is not validated here; Verify owns that decision.
func (s *Service) Subject(token string) (string, error) {
	claims, err := s.parse(token, false)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrTokenMalformed, err)
	}
	return claims.Subject, nil
}

// TokenClaims returns all verified claims of the token without consulting the
// identity store. Expired tokens still yield their claims.
func (s *Service) TokenClaims(token string) (Claims, error) {
	claims, err := s.parse(token, false)
	if err != nil {
		return Claims{}, fmt.Errorf("%w: %v", ErrTokenMalformed, err)
	}
	return *claims, nil
}

func (s *Service) parse(token string, validate bool) (*Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithTimeFunc(s.now),
	}
	if !validate {
		opts = append(opts, jwt.WithoutClaimsValidation())
	}
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (any, error) {
		return s.publicKey, nil
	}, opts...)
	if err != nil {
		return nil, err
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || strings.TrimSpace(claims.Subject) == "" {
		return nil, errors.New("missing subject")
	}
	return claims, nil
}

// Login authenticates an identifier (login name or email) with a password and
// issues a session token. Unknown identifier, blocked account and wrong
// password are indistinguishable to the caller.
func (s *Service) Login(ctx context.Context, identifier, password string) (string, time.Time, Identity, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" || password == "" {
		return "", time.Time{}, Identity{}, ErrInvalidCredentials
	}
	identity, err := s.identities.FindByLoginOrEmail(ctx, identifier)
	if err != nil {
		return "", time.Time{}, Identity{}, ErrInvalidCredentials
	}
	if identity.Blocked {
		return "", time.Time{}, Identity{}, ErrInvalidCredentials
	}
	if err := VerifyPassword(identity.PasswordHash, password); err != nil {
		return "", time.Time{}, Identity{}, ErrInvalidCredentials
	}
	token, exp, err := s.Issue(identity)
	if err != nil {
		return "", time.Time{}, Identity{}, err
	}
	return token, exp, identity, nil
}

// RegisterParams carries the fields of a new identity.
type RegisterParams struct {
	Login     string
	Email     string
	FirstName string
	LastName  string
	Password  string
	Role      Role
}

// Register creates an identity and issues its first session token.
func (s *Service) Register(ctx context.Context, params RegisterParams) (string, time.Time, Identity, error) {
	email := strings.TrimSpace(strings.ToLower(params.Email))
	if email == "" || !strings.Contains(email, "@") {
		return "", time.Time{}, Identity{}, fmt.Errorf("%w: valid email is required", ErrInvalidInput)
	}
	login := strings.TrimSpace(params.Login)
	if login == "" {
		login = email
	}
	if strings.TrimSpace(params.Password) == "" {
		return "", time.Time{}, Identity{}, fmt.Errorf("%w: password is required", ErrInvalidInput)
	}
	role := params.Role
	if role == "" {
		role = RoleWorker
	}
	if _, err := ParseRole(string(role)); err != nil {
		return "", time.Time{}, Identity{}, err
	}

	hash, err := HashPassword(params.Password)
	if err != nil {
		return "", time.Time{}, Identity{}, err
	}
	identity := Identity{
		ID:           ids.New(),
		Login:        login,
		Email:        email,
		FirstName:    strings.TrimSpace(params.FirstName),
		LastName:     strings.TrimSpace(params.LastName),
		Role:         role,
		PasswordHash: hash,
	}
	if err := s.identities.Create(ctx, &identity); err != nil {
		return "", time.Time{}, Identity{}, err
	}

	token, exp, err := s.Issue(identity)
	if err != nil {
		return "", time.Time{}, Identity{}, err
	}
	return token, exp, identity, nil
}

// Logout invalidates every outstanding session of the identity by bumping its
// token version.
func (s *Service) Logout(ctx context.Context, identityID string) error {
	return s.identities.IncrementTokenVersion(ctx, identityID)
}
