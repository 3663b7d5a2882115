package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"kitarekayasa/internal/auth"
	"kitarekayasa/internal/common/db"
)

var (
	ErrUserNotFound   = errors.New("user not found")
	ErrDuplicate      = errors.New("record already exists")
	ErrUsernameExists = errors.New("username already exists")
	ErrEmailExists    = errors.New("email already exists")
)

type User struct {
	ID           int64
	Username     string
	Email        string
	PasswordHash string
	Role         auth.Role
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type UserRepository interface {
	Create(ctx context.Context, tx db.Transaction, user *User) (int64, error)
	GetByID(ctx context.Context, tx db.Transaction, id int64) (*User, error)
	GetByUsername(ctx context.Context, tx db.Transaction, username string) (*User, error)
}

type MySQLUserRepository struct {
	dbProvider db.Provider
}

func NewUserRepository(provider db.Provider) UserRepository {
	return &MySQLUserRepository{dbProvider: provider}
}

const userColumns = "id, username, email, password_hash, role, created_at, updated_at"

func (r *MySQLUserRepository) Create(ctx context.Context, tx db.Transaction, user *User) (int64, error) {
	if user == nil {
		return 0, errors.New("user is nil")
	}
	role := user.Role
	if role == "" {
		role = auth.RoleUmum
	}

	query := "INSERT INTO users (username, email, password_hash, role) VALUES (?, ?, ?, ?)"
	querier, err := db.GetProviderQuerier(r.dbProvider, tx)
	if err != nil {
		return 0, err
	}
	result, err := querier.Exec(ctx, query, user.Username, user.Email, user.PasswordHash, string(role))
	if err != nil {
		if key, ok := db.UniqueViolation(err); ok {
			normalizedKey := strings.ToLower(key)
			switch {
			case strings.Contains(normalizedKey, "username"):
				return 0, ErrUsernameExists
			case strings.Contains(normalizedKey, "email"):
				return 0, ErrEmailExists
			default:
				return 0, ErrDuplicate
			}
		}
		return 0, err
	}
	return result.LastInsertId()
}

func (r *MySQLUserRepository) GetByID(ctx context.Context, tx db.Transaction, id int64) (*User, error) {
	return r.getOne(ctx, tx, "SELECT "+userColumns+" FROM users WHERE id = ?", id)
}

func (r *MySQLUserRepository) GetByUsername(ctx context.Context, tx db.Transaction, username string) (*User, error) {
	return r.getOne(ctx, tx, "SELECT "+userColumns+" FROM users WHERE username = ?", username)
}

func (r *MySQLUserRepository) getOne(ctx context.Context, tx db.Transaction, query string, arg interface{}) (*User, error) {
	querier, err := db.GetProviderQuerier(r.dbProvider, tx)
	if err != nil {
		return nil, err
	}
	user, err := scanUser(querier.QueryRow(ctx, query, arg))
	if err != nil {
		if db.IsNoRows(err) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}

func scanUser(scanner db.Scanner) (*User, error) {
	var user User
	var role string
	if err := scanner.Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.PasswordHash,
		&role,
		&user.CreatedAt,
		&user.UpdatedAt,
	); err != nil {
		return nil, err
	}
	user.Role = auth.Role(role)
	return &user, nil
}
