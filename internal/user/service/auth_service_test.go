package service_test

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"kitarekayasa/internal/auth"
	"kitarekayasa/internal/common/cache"
	"kitarekayasa/internal/common/db"
	"kitarekayasa/internal/user/repository"
	"kitarekayasa/internal/user/service"
	pkgerrors "kitarekayasa/pkg/errors"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
)

type fakeUserRepo struct {
	usersByName map[string]*repository.User
	usersByID   map[int64]*repository.User
	nextID      int64
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{
		usersByName: make(map[string]*repository.User),
		usersByID:   make(map[int64]*repository.User),
		nextID:      1,
	}
}

func (r *fakeUserRepo) Create(ctx context.Context, tx db.Transaction, user *repository.User) (int64, error) {
	if user == nil {
		return 0, fmt.Errorf("user is nil")
	}
	if _, ok := r.usersByName[user.Username]; ok {
		return 0, repository.ErrUsernameExists
	}
	for _, existing := range r.usersByName {
		if existing.Email == user.Email {
			return 0, repository.ErrEmailExists
		}
	}
	id := r.nextID
	r.nextID++
	clone := *user
	clone.ID = id
	r.usersByName[user.Username] = &clone
	r.usersByID[id] = &clone
	return id, nil
}

func (r *fakeUserRepo) GetByID(ctx context.Context, tx db.Transaction, id int64) (*repository.User, error) {
	user, ok := r.usersByID[id]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	clone := *user
	return &clone, nil
}

func (r *fakeUserRepo) GetByUsername(ctx context.Context, tx db.Transaction, username string) (*repository.User, error) {
	user, ok := r.usersByName[username]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	clone := *user
	return &clone, nil
}

func newTokenManager(t *testing.T) *auth.TokenManager {
	t.Helper()
	tokens, err := auth.NewTokenManager(auth.TokenConfig{Secret: "test-secret"})
	if err != nil {
		t.Fatalf("token manager: %v", err)
	}
	return tokens
}

func newLoginFailStore(t *testing.T) *cache.RedisCache {
	t.Helper()
	mr := miniredis.RunT(t)
	store, err := cache.NewRedisCacheWithClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	if err != nil {
		t.Fatalf("redis cache: %v", err)
	}
	return store
}

func newAuthService(t *testing.T, users *fakeUserRepo, store service.LoginFailStore) (*service.AuthService, *auth.TokenManager) {
	t.Helper()
	tokens := newTokenManager(t)
	cfg := service.AuthServiceConfig{LoginFailLimit: 3, BcryptCost: bcrypt.MinCost}
	return service.NewAuthService(nil, users, tokens, store, cfg), tokens
}

func TestAuthService_Register(t *testing.T) {
	users := newFakeUserRepo()
	authService, tokens := newAuthService(t, users, nil)

	result, err := authService.Register(context.Background(), service.RegisterInput{
		Username: "budi",
		Email:    "Budi@Example.com",
		Password: "password123",
		Role:     "DESAINER",
	})
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}
	if result.AccessToken == "" {
		t.Fatalf("token should not be empty")
	}
	if result.User.Role != auth.RoleDesainer {
		t.Fatalf("unexpected role: %s", result.User.Role)
	}
	caller, err := tokens.Parse(result.AccessToken)
	if err != nil {
		t.Fatalf("parse issued token: %v", err)
	}
	if caller.ID != result.User.ID || caller.Role != auth.RoleDesainer {
		t.Fatalf("unexpected caller: %+v", caller)
	}
	if users.usersByID[result.User.ID].Email != "budi@example.com" {
		t.Fatalf("email should be stored lowercased")
	}

	_, err = authService.Register(context.Background(), service.RegisterInput{
		Username: "budi",
		Email:    "other@example.com",
		Password: "password123",
	})
	if !pkgerrors.Is(err, pkgerrors.UsernameAlreadyExists) {
		t.Fatalf("expected UsernameAlreadyExists, got %v", err)
	}

	_, err = authService.Register(context.Background(), service.RegisterInput{
		Username: "sari",
		Email:    "budi@example.com",
		Password: "password123",
	})
	if !pkgerrors.Is(err, pkgerrors.EmailAlreadyExists) {
		t.Fatalf("expected EmailAlreadyExists, got %v", err)
	}
}

func TestAuthService_RegisterDefaultsToUmum(t *testing.T) {
	authService, _ := newAuthService(t, newFakeUserRepo(), nil)

	result, err := authService.Register(context.Background(), service.RegisterInput{
		Username: "citra",
		Email:    "citra@example.com",
		Password: "password123",
	})
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}
	if result.User.Role != auth.RoleUmum {
		t.Fatalf("expected UMUM, got %s", result.User.Role)
	}
}

func TestAuthService_RegisterValidation(t *testing.T) {
	authService, _ := newAuthService(t, newFakeUserRepo(), nil)

	tests := []struct {
		name     string
		username string
		email    string
		password string
		role     string
		errCode  pkgerrors.ErrorCode
	}{
		{name: "invalid username", username: "ab", email: "a@example.com", password: "password123", errCode: pkgerrors.InvalidUsername},
		{name: "invalid email", username: "valid_user", email: "not-an-email", password: "password123", errCode: pkgerrors.InvalidEmail},
		{name: "weak password", username: "valid_user", email: "a@example.com", password: "short", errCode: pkgerrors.PasswordTooWeak},
		{name: "password without digits", username: "valid_user", email: "a@example.com", password: "passwordonly", errCode: pkgerrors.PasswordTooWeak},
		{name: "password too long", username: "valid_user", email: "a@example.com", password: strings.Repeat("a", 129), errCode: pkgerrors.InvalidPassword},
		{name: "admin role", username: "valid_user", email: "a@example.com", password: "password123", role: "ADMIN", errCode: pkgerrors.InvalidRole},
		{name: "unknown role", username: "valid_user", email: "a@example.com", password: "password123", role: "GUEST", errCode: pkgerrors.InvalidRole},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := authService.Register(context.Background(), service.RegisterInput{
				Username: tc.username,
				Email:    tc.email,
				Password: tc.password,
				Role:     tc.role,
			})
			if !pkgerrors.Is(err, tc.errCode) {
				t.Fatalf("expected %v, got %v", tc.errCode, err)
			}
		})
	}
}

func TestAuthService_LoginAndRateLimit(t *testing.T) {
	users := newFakeUserRepo()
	authService, _ := newAuthService(t, users, newLoginFailStore(t))

	hash, _ := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.MinCost)
	_, _ = users.Create(context.Background(), nil, &repository.User{
		Username:     "dewi",
		Email:        "dewi@example.com",
		PasswordHash: string(hash),
		Role:         auth.RoleUmum,
	})

	result, err := authService.Login(context.Background(), service.LoginInput{
		Username: "dewi",
		Password: "password123",
		IP:       "127.0.0.1",
	})
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if result.User.Username != "dewi" {
		t.Fatalf("unexpected user: %+v", result.User)
	}

	for i := 0; i < 3; i++ {
		_, err = authService.Login(context.Background(), service.LoginInput{
			Username: "dewi",
			Password: "wrongpass1",
			IP:       "127.0.0.1",
		})
		if !pkgerrors.Is(err, pkgerrors.InvalidCredentials) {
			t.Fatalf("expected InvalidCredentials at attempt %d, got %v", i+1, err)
		}
	}

	_, err = authService.Login(context.Background(), service.LoginInput{
		Username: "dewi",
		Password: "password123",
		IP:       "127.0.0.1",
	})
	if !pkgerrors.Is(err, pkgerrors.TooManyRequests) {
		t.Fatalf("expected TooManyRequests, got %v", err)
	}

	// A different address is tracked separately.
	if _, err := authService.Login(context.Background(), service.LoginInput{
		Username: "dewi",
		Password: "password123",
		IP:       "10.0.0.2",
	}); err != nil {
		t.Fatalf("login from another ip failed: %v", err)
	}
}

func TestAuthService_LoginUnknownUser(t *testing.T) {
	authService, _ := newAuthService(t, newFakeUserRepo(), newLoginFailStore(t))

	_, err := authService.Login(context.Background(), service.LoginInput{
		Username: "ghost",
		Password: "password123",
		IP:       "127.0.0.1",
	})
	if !pkgerrors.Is(err, pkgerrors.InvalidCredentials) {
		t.Fatalf("expected InvalidCredentials, got %v", err)
	}
}

func TestAuthService_GetUser(t *testing.T) {
	users := newFakeUserRepo()
	authService, _ := newAuthService(t, users, nil)

	result, err := authService.Register(context.Background(), service.RegisterInput{
		Username: "eko",
		Email:    "eko@example.com",
		Password: "password123",
	})
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}

	info, err := authService.GetUser(context.Background(), result.User.ID)
	if err != nil {
		t.Fatalf("get user failed: %v", err)
	}
	if info.Username != "eko" {
		t.Fatalf("unexpected user: %+v", info)
	}

	if _, err := authService.GetUser(context.Background(), 999); !pkgerrors.Is(err, pkgerrors.UserNotFound) {
		t.Fatalf("expected UserNotFound, got %v", err)
	}
}
