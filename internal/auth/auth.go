// Package auth issues and verifies the bearer tokens the API runs on.
// Passwords are stored as bcrypt hashes; tokens are HS256 JWTs carrying
// the user's id, username and role.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"iuran/internal/core"
)

var (
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrInvalidToken       = errors.New("invalid or expired token")
)

// UserStore is the slice of storage the service needs.
type UserStore interface {
	CreateUser(ctx context.Context, u core.User) error
	GetUserByUsername(ctx context.Context, username string) (*core.User, error)
}

type Claims struct {
	Username string `json:"username"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

type Service struct {
	users  UserStore
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewService(users UserStore, secret []byte, ttl time.Duration) *Service {
	return &Service{users: users, secret: secret, ttl: ttl, now: time.Now}
}

// Register creates a user with a freshly hashed password. An empty role
// defaults to the ordinary resident role.
func (s *Service) Register(ctx context.Context, username, email, password string, role core.Role, houseID string) (*core.User, error) {
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(email)
	if username == "" || email == "" {
		return nil, fmt.Errorf("%w: username and email are required", core.ErrInvalidInput)
	}
	if len(password) < 6 {
		return nil, fmt.Errorf("%w: password must be at least 6 characters", core.ErrInvalidInput)
	}
	if role == "" {
		role = core.RoleUser
	}
	if !role.Valid() {
		return nil, fmt.Errorf("%w: unknown role %q", core.ErrInvalidInput, role)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	u := core.User{
		ID:           uuid.NewString(),
		Username:     username,
		Email:        email,
		PasswordHash: string(hash),
		Role:         role,
		HouseID:      houseID,
		CreatedAt:    s.now().UTC(),
	}
	if err := s.users.CreateUser(ctx, u); err != nil {
		return nil, err
	}
	u.PasswordHash = ""
	return &u, nil
}

// Login checks the password and returns a signed token. Unknown users and
// wrong passwords are indistinguishable to the caller.
func (s *Service) Login(ctx context.Context, username, password string) (string, *core.User, error) {
	u, err := s.users.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return "", nil, ErrInvalidCredentials
		}
		return "", nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return "", nil, ErrInvalidCredentials
	}

	token, err := s.issueToken(u)
	if err != nil {
		return "", nil, err
	}
	u.PasswordHash = ""
	return token, u, nil
}

func (s *Service) issueToken(u *core.User) (string, error) {
	now := s.now().UTC()
	claims := Claims{
		Username: u.Username,
		Role:     string(u.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID,
			Issuer:    "iuran",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Actor is the authenticated identity a verified token resolves to.
type Actor struct {
	UserID   string
	Username string
	Role     core.Role
}

// HasRole reports whether the actor holds one of the listed roles.
func (a Actor) HasRole(roles ...core.Role) bool {
	for _, r := range roles {
		if a.Role == r {
			return true
		}
	}
	return false
}

// VerifyToken parses and validates a bearer token string.
func (s *Service) VerifyToken(tokenString string) (Actor, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(func() time.Time { return s.now() }))
	if err != nil {
		return Actor{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return Actor{}, ErrInvalidToken
	}
	return Actor{
		UserID:   claims.Subject,
		Username: claims.Username,
		Role:     core.Role(claims.Role),
	}, nil
}

type actorKey struct{}

// WithActor stores the authenticated actor on the context.
func WithActor(ctx context.Context, a Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, a)
}

// ActorFrom retrieves the actor placed by WithActor.
func ActorFrom(ctx context.Context) (Actor, bool) {
	a, ok := ctx.Value(actorKey{}).(Actor)
	return a, ok
}
