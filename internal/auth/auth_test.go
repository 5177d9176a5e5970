package auth

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"iuran/internal/core"
)

type fakeUserStore struct {
	byUsername map[string]core.User
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{byUsername: make(map[string]core.User)}
}

func (s *fakeUserStore) CreateUser(_ context.Context, u core.User) error {
	if _, exists := s.byUsername[u.Username]; exists {
		return fmt.Errorf("%w: username taken", core.ErrInvalidInput)
	}
	s.byUsername[u.Username] = u
	return nil
}

func (s *fakeUserStore) GetUserByUsername(_ context.Context, username string) (*core.User, error) {
	u, ok := s.byUsername[username]
	if !ok {
		return nil, fmt.Errorf("user %s: %w", username, core.ErrNotFound)
	}
	return &u, nil
}

func newTestService(store *fakeUserStore) *Service {
	return NewService(store, []byte("test-secret"), time.Hour)
}

func TestRegisterAndLogin(t *testing.T) {
	ctx := context.Background()
	store := newFakeUserStore()
	svc := newTestService(store)

	u, err := svc.Register(ctx, "warga", "warga@example.com", "rahasia1", "", "A-01")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if u.Role != core.RoleUser {
		t.Errorf("default role = %s, want %s", u.Role, core.RoleUser)
	}
	if u.PasswordHash != "" {
		t.Error("password hash leaked from Register")
	}
	if stored := store.byUsername["warga"]; stored.PasswordHash == "" || stored.PasswordHash == "rahasia1" {
		t.Error("stored password is not a hash")
	}

	token, logged, err := svc.Login(ctx, "warga", "rahasia1")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if token == "" {
		t.Fatal("empty token")
	}
	if logged.PasswordHash != "" {
		t.Error("password hash leaked from Login")
	}

	actor, err := svc.VerifyToken(token)
	if err != nil {
		t.Fatalf("VerifyToken: %v", err)
	}
	if actor.UserID != u.ID || actor.Username != "warga" || actor.Role != core.RoleUser {
		t.Errorf("actor = %+v", actor)
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	ctx := context.Background()
	store := newFakeUserStore()
	svc := newTestService(store)

	if _, err := svc.Register(ctx, "warga", "warga@example.com", "rahasia1", core.RoleAdmin, ""); err != nil {
		t.Fatalf("Register: %v", err)
	}

	if _, _, err := svc.Login(ctx, "warga", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("wrong password error = %v, want ErrInvalidCredentials", err)
	}
	if _, _, err := svc.Login(ctx, "nobody", "rahasia1"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("unknown user error = %v, want ErrInvalidCredentials", err)
	}
}

func TestRegisterValidation(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(newFakeUserStore())

	cases := []struct {
		name                      string
		username, email, password string
		role                      core.Role
	}{
		{"empty username", "", "a@b.c", "rahasia1", ""},
		{"empty email", "warga", "", "rahasia1", ""},
		{"short password", "warga", "a@b.c", "abc", ""},
		{"unknown role", "warga", "a@b.c", "rahasia1", "owner"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Register(ctx, tc.username, tc.email, tc.password, tc.role, "")
			if !errors.Is(err, core.ErrInvalidInput) {
				t.Errorf("error = %v, want ErrInvalidInput", err)
			}
		})
	}
}

func TestVerifyTokenRejectsExpiredAndForeign(t *testing.T) {
	ctx := context.Background()
	store := newFakeUserStore()
	svc := newTestService(store)
	if _, err := svc.Register(ctx, "warga", "warga@example.com", "rahasia1", "", ""); err != nil {
		t.Fatalf("Register: %v", err)
	}
	token, _, err := svc.Login(ctx, "warga", "rahasia1")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	// Same token checked two hours later is past its one-hour TTL.
	svc.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	if _, err := svc.VerifyToken(token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expired token error = %v, want ErrInvalidToken", err)
	}
	svc.now = time.Now

	other := NewService(store, []byte("other-secret"), time.Hour)
	if _, err := other.VerifyToken(token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("foreign-key token error = %v, want ErrInvalidToken", err)
	}

	if _, err := svc.VerifyToken("not-a-token"); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("garbage token error = %v, want ErrInvalidToken", err)
	}
}

func TestActorRolesAndContext(t *testing.T) {
	a := Actor{UserID: "u-1", Username: "warga", Role: core.RoleEditor}
	if !a.HasRole(core.RoleAdmin, core.RoleEditor) {
		t.Error("HasRole missed a listed role")
	}
	if a.HasRole(core.RoleAdmin, core.RoleSuperAdmin) {
		t.Error("HasRole matched an unlisted role")
	}

	ctx := WithActor(context.Background(), a)
	got, ok := ActorFrom(ctx)
	if !ok || got != a {
		t.Errorf("ActorFrom = %+v, %v", got, ok)
	}
	if _, ok := ActorFrom(context.Background()); ok {
		t.Error("ActorFrom on bare context reported ok")
	}
}
