package service

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"kitarekayasa/internal/auth"
	"kitarekayasa/internal/common/db"
	"kitarekayasa/internal/user/repository"
	pkgerrors "kitarekayasa/pkg/errors"
	"kitarekayasa/pkg/utils/logger"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const (
	defaultLoginFailTTL   = 15 * time.Minute
	defaultLoginFailLimit = 5
	loginFailKeyPrefix    = "auth:login:fail:"
)

// LoginFailStore counts failed logins within a window.
type LoginFailStore interface {
	Get(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, keys ...string) error
	IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error)
}

// TokenIssuer signs access tokens for a caller.
type TokenIssuer interface {
	Issue(caller auth.Caller) (string, time.Time, error)
}

// AuthServiceConfig holds configuration for AuthService.
type AuthServiceConfig struct {
	LoginFailTTL   time.Duration `yaml:"loginFailTTL"`
	LoginFailLimit int           `yaml:"loginFailLimit"`
	BcryptCost     int           `yaml:"bcryptCost"`
}

// AuthService handles registration and login.
type AuthService struct {
	dbProvider db.Provider
	users      repository.UserRepository
	tokens     TokenIssuer
	loginFail  LoginFailStore
	config     AuthServiceConfig
}

// NewAuthService creates a new AuthService. loginFail may be nil to disable lockout.
func NewAuthService(
	provider db.Provider,
	users repository.UserRepository,
	tokens TokenIssuer,
	loginFail LoginFailStore,
	cfg AuthServiceConfig,
) *AuthService {
	if cfg.LoginFailTTL == 0 {
		cfg.LoginFailTTL = defaultLoginFailTTL
	}
	if cfg.LoginFailLimit == 0 {
		cfg.LoginFailLimit = defaultLoginFailLimit
	}
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = bcrypt.DefaultCost
	}
	return &AuthService{
		dbProvider: provider,
		users:      users,
		tokens:     tokens,
		loginFail:  loginFail,
		config:     cfg,
	}
}

// RegisterInput represents input for user registration.
type RegisterInput struct {
	Username string
	Email    string
	Password string
	Role     string
}

// LoginInput represents input for user login.
type LoginInput struct {
	Username string
	Password string
	IP       string
}

// UserInfo represents basic user info for auth responses.
type UserInfo struct {
	ID       int64
	Username string
	Role     auth.Role
}

// AuthResult represents the result of auth operations.
type AuthResult struct {
	AccessToken     string
	AccessExpiresAt time.Time
	User            UserInfo
}

// Register creates a new UMUM or DESAINER account and issues an access token.
func (s *AuthService) Register(ctx context.Context, input RegisterInput) (AuthResult, error) {
	if err := validateUsername(input.Username); err != nil {
		return AuthResult{}, err
	}
	if err := validateEmail(input.Email); err != nil {
		return AuthResult{}, err
	}
	if err := validatePassword(input.Password); err != nil {
		return AuthResult{}, err
	}
	role, ok := auth.ParseRole(input.Role)
	if input.Role == "" {
		role, ok = auth.RoleUmum, true
	}
	// ADMIN accounts are provisioned out of band.
	if !ok || role == auth.RoleAdmin {
		return AuthResult{}, pkgerrors.New(pkgerrors.InvalidRole).WithDetail("field", "role")
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(input.Password), s.config.BcryptCost)
	if err != nil {
		return AuthResult{}, pkgerrors.Wrap(fmt.Errorf("hash password failed: %w", err), pkgerrors.InternalServerError)
	}

	user := &repository.User{
		Username:     input.Username,
		Email:        strings.ToLower(input.Email),
		PasswordHash: string(passwordHash),
		Role:         role,
	}

	err = s.withTransaction(ctx, func(tx db.Transaction) error {
		userID, createErr := s.users.Create(ctx, tx, user)
		if createErr != nil {
			return mapUserCreateError(createErr)
		}
		user.ID = userID
		return nil
	})
	if err != nil {
		return AuthResult{}, err
	}

	logger.Info(ctx, "user registered", zap.Int64("user_id", user.ID), zap.String("role", string(role)))
	return s.issueToken(user)
}

// Login verifies credentials and issues an access token.
func (s *AuthService) Login(ctx context.Context, input LoginInput) (AuthResult, error) {
	if err := validateUsername(input.Username); err != nil {
		return AuthResult{}, pkgerrors.New(pkgerrors.InvalidCredentials)
	}
	if err := validateLoginPassword(input.Password); err != nil {
		return AuthResult{}, err
	}

	if err := s.checkLoginLimit(ctx, input.Username, input.IP); err != nil {
		return AuthResult{}, err
	}

	user, err := s.users.GetByUsername(ctx, nil, input.Username)
	if err != nil {
		if stderrors.Is(err, repository.ErrUserNotFound) {
			s.recordLoginFailure(ctx, input.Username, input.IP)
			return AuthResult{}, pkgerrors.New(pkgerrors.InvalidCredentials)
		}
		return AuthResult{}, pkgerrors.Wrap(fmt.Errorf("get user failed: %w", err), pkgerrors.DatabaseError)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(input.Password)); err != nil {
		s.recordLoginFailure(ctx, input.Username, input.IP)
		return AuthResult{}, pkgerrors.New(pkgerrors.InvalidCredentials)
	}

	s.clearLoginFailure(ctx, input.Username, input.IP)
	return s.issueToken(user)
}

// GetUser returns public user info by id.
func (s *AuthService) GetUser(ctx context.Context, userID int64) (UserInfo, error) {
	user, err := s.users.GetByID(ctx, nil, userID)
	if err != nil {
		if stderrors.Is(err, repository.ErrUserNotFound) {
			return UserInfo{}, pkgerrors.New(pkgerrors.UserNotFound)
		}
		return UserInfo{}, pkgerrors.Wrap(fmt.Errorf("get user failed: %w", err), pkgerrors.DatabaseError)
	}
	return UserInfo{ID: user.ID, Username: user.Username, Role: user.Role}, nil
}

func (s *AuthService) issueToken(user *repository.User) (AuthResult, error) {
	token, expiresAt, err := s.tokens.Issue(auth.Caller{ID: user.ID, Role: user.Role})
	if err != nil {
		return AuthResult{}, err
	}
	return AuthResult{
		AccessToken:     token,
		AccessExpiresAt: expiresAt,
		User: UserInfo{
			ID:       user.ID,
			Username: user.Username,
			Role:     user.Role,
		},
	}, nil
}

func (s *AuthService) checkLoginLimit(ctx context.Context, username, ip string) error {
	if s.loginFail == nil {
		return nil
	}
	raw, err := s.loginFail.Get(ctx, loginFailKey(username, ip))
	if err != nil {
		logger.Warn(ctx, "login limit check failed", zap.Error(err))
		return nil
	}
	var count int
	if raw != "" {
		if _, err := fmt.Sscanf(raw, "%d", &count); err != nil {
			return nil
		}
	}
	if count >= s.config.LoginFailLimit {
		return pkgerrors.New(pkgerrors.TooManyRequests).WithMessage("too many failed login attempts")
	}
	return nil
}

func (s *AuthService) recordLoginFailure(ctx context.Context, username, ip string) {
	if s.loginFail == nil {
		return
	}
	if _, err := s.loginFail.IncrWithTTL(ctx, loginFailKey(username, ip), s.config.LoginFailTTL); err != nil {
		logger.Warn(ctx, "record login failure failed", zap.Error(err))
	}
}

func (s *AuthService) clearLoginFailure(ctx context.Context, username, ip string) {
	if s.loginFail == nil {
		return
	}
	_ = s.loginFail.Del(ctx, loginFailKey(username, ip))
}

func (s *AuthService) withTransaction(ctx context.Context, fn func(tx db.Transaction) error) error {
	database, err := db.CurrentDatabase(s.dbProvider)
	if err != nil {
		return fn(nil)
	}
	if err := database.Transaction(ctx, fn); err != nil {
		var coded *pkgerrors.Error
		if stderrors.As(err, &coded) {
			return err
		}
		return pkgerrors.Wrap(fmt.Errorf("transaction failed: %w", err), pkgerrors.TransactionFailed)
	}
	return nil
}

func loginFailKey(username, ip string) string {
	return loginFailKeyPrefix + strings.ToLower(username) + ":" + ip
}

func mapUserCreateError(err error) error {
	if stderrors.Is(err, repository.ErrUsernameExists) {
		return pkgerrors.New(pkgerrors.UsernameAlreadyExists)
	}
	if stderrors.Is(err, repository.ErrEmailExists) {
		return pkgerrors.New(pkgerrors.EmailAlreadyExists)
	}
	if stderrors.Is(err, repository.ErrDuplicate) {
		return pkgerrors.New(pkgerrors.RecordAlreadyExists)
	}
	return pkgerrors.Wrap(fmt.Errorf("create user failed: %w", err), pkgerrors.DatabaseError)
}
