package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"

	"usersvc/internal/common"
	"usersvc/internal/domain/model"
	"usersvc/internal/platform/database"
)

// Unique constraint names from the users migration.
const (
	usersEmailKey    = "users_email_key"
	usersUsernameKey = "users_username_key"
)

type UserRepository interface {
	// Create inserts user and sets its ID. A unique violation is reported as
	// common.ErrDuplicateEmail, common.ErrDuplicateUsername or common.ErrConflict.
	Create(ctx context.Context, user *model.User) error
	FindByEmail(ctx context.Context, email string) (*model.User, error)
	FindByUsername(ctx context.Context, username string) (*model.User, error)
	FindByID(ctx context.Context, id int64) (*model.User, error)
	// List returns every user, newest first.
	List(ctx context.Context) ([]model.User, error)
}

type pgUserRepository struct {
	db database.DBTX
}

func NewPgUserRepository(db database.DBTX) UserRepository {
	return &pgUserRepository{db: db}
}

const userColumns = `id, username, email, password_hash, active, admin, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*model.User, error) {
	user := &model.User{}
	err := row.Scan(&user.ID, &user.Username, &user.Email, &user.PasswordHash, &user.Active, &user.Admin, &user.CreatedAt)
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (r *pgUserRepository) Create(ctx context.Context, user *model.User) error {
	query := `INSERT INTO users (username, email, password_hash, active, admin, created_at)
	          VALUES ($1, $2, $3, $4, $5, $6)
	          RETURNING id`
	err := r.db.QueryRowContext(ctx, query,
		user.Username, user.Email, user.PasswordHash, user.Active, user.Admin, user.CreatedAt,
	).Scan(&user.ID)
	if err != nil {
		if conflict := uniqueViolation(err); conflict != nil {
			return fmt.Errorf("pgUserRepository.Create: %w", conflict)
		}
		return common.StorageError("pgUserRepository.Create", err)
	}
	return nil
}

func (r *pgUserRepository) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	return r.findOne(ctx, "pgUserRepository.FindByEmail", query, email)
}

func (r *pgUserRepository) FindByUsername(ctx context.Context, username string) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE username = $1`
	return r.findOne(ctx, "pgUserRepository.FindByUsername", query, username)
}

func (r *pgUserRepository) FindByID(ctx context.Context, id int64) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return r.findOne(ctx, "pgUserRepository.FindByID", query, id)
}

func (r *pgUserRepository) findOne(ctx context.Context, op, query string, arg any) (*model.User, error) {
	user, err := scanUser(r.db.QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrUserNotFound
		}
		return nil, common.StorageError(op, err)
	}
	return user, nil
}

func (r *pgUserRepository) List(ctx context.Context) ([]model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users ORDER BY created_at DESC, id DESC`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, common.StorageError("pgUserRepository.List", err)
	}
	defer rows.Close()

	users := make([]model.User, 0)
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, common.StorageError("pgUserRepository.List", err)
		}
		users = append(users, *user)
	}
	if err := rows.Err(); err != nil {
		return nil, common.StorageError("pgUserRepository.List", err)
	}
	return users, nil
}

// uniqueViolation maps a postgres unique violation to the matching conflict
// error, or returns nil for any other error.
func uniqueViolation(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != pgerrcode.UniqueViolation {
		return nil
	}
	switch pgErr.ConstraintName {
	case usersEmailKey:
		return common.ErrDuplicateEmail
	case usersUsernameKey:
		return common.ErrDuplicateUsername
	}
	return common.ErrConflict
}
