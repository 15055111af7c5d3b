package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/Dhoini/comics-billing/internal/models"
	"github.com/Dhoini/comics-billing/internal/repository"
	"github.com/Dhoini/comics-billing/pkg/logger"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const uniqueViolation = "23505"

// Querier - часть *pgxpool.Pool, нужная репозиторию.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresUserRepository читает таблицу users подсистемы пользователей
// и однажды проставляет stripe_customer_id.
type PostgresUserRepository struct {
	db  Querier
	log *logger.Logger
}

// NewPostgresUserRepository создает репозиторий пользователей через PostgreSQL.
func NewPostgresUserRepository(db Querier, log *logger.Logger) *PostgresUserRepository {
	return &PostgresUserRepository{
		db:  db,
		log: log,
	}
}

func (r *PostgresUserRepository) FindByID(ctx context.Context, userID string) (*models.User, error) {
	return r.findOne(ctx, `
		SELECT id, email, name, role, stripe_customer_id
		FROM users
		WHERE id = $1
	`, userID)
}

func (r *PostgresUserRepository) FindByExternalCustomerID(ctx context.Context, customerID string) (*models.User, error) {
	return r.findOne(ctx, `
		SELECT id, email, name, role, stripe_customer_id
		FROM users
		WHERE stripe_customer_id = $1
	`, customerID)
}

func (r *PostgresUserRepository) SetExternalCustomerID(ctx context.Context, userID, customerID string) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE users
		SET stripe_customer_id = $2
		WHERE id = $1 AND (stripe_customer_id IS NULL OR stripe_customer_id = $2)
	`, userID, customerID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return repository.ErrConflict
		}
		r.log.Errorw("Failed to set Stripe customer for user", "error", err, "userID", userID)
		return fmt.Errorf("repository: failed to set stripe customer: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	// Ни одной строки: пользователя нет либо он уже привязан к другому клиенту.
	if _, err := r.FindByID(ctx, userID); err != nil {
		return err
	}
	return repository.ErrConflict
}

func (r *PostgresUserRepository) findOne(ctx context.Context, query string, arg string) (*models.User, error) {
	var u models.User
	err := r.db.QueryRow(ctx, query, arg).Scan(&u.ID, &u.Email, &u.Name, &u.Role, &u.StripeCustomerID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		r.log.Errorw("Failed to query user", "error", err)
		return nil, fmt.Errorf("repository: failed to query user: %w", err)
	}
	return &u, nil
}
