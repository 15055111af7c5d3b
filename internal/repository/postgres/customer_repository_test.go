package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/Dhoini/comics-billing/internal/repository"
	"github.com/Dhoini/comics-billing/pkg/logger"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var userColumns = []string{"id", "email", "name", "role", "stripe_customer_id"}

func newMockUserRepo(t *testing.T) (*PostgresUserRepository, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return NewPostgresUserRepository(mock, logger.NewNop()), mock
}

func strPtr(s string) *string { return &s }

const setCustomerQuery = `UPDATE users\s+SET stripe_customer_id = \$2\s+WHERE id = \$1 AND \(stripe_customer_id IS NULL OR stripe_customer_id = \$2\)`

func TestSetExternalCustomerID_FirstAssignment(t *testing.T) {
	repo, mock := newMockUserRepo(t)
	mock.ExpectExec(setCustomerQuery).
		WithArgs("user_789", "cus_456").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, repo.SetExternalCustomerID(context.Background(), "user_789", "cus_456"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSetExternalCustomerID_AlreadyMappedElsewhere(t *testing.T) {
	repo, mock := newMockUserRepo(t)
	mock.ExpectExec(setCustomerQuery).
		WithArgs("user_789", "cus_other").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectQuery(`SELECT id, email, name, role, stripe_customer_id\s+FROM users\s+WHERE id = \$1`).
		WithArgs("user_789").
		WillReturnRows(pgxmock.NewRows(userColumns).
			AddRow("user_789", "reader@example.com", "Reader", "reader", strPtr("cus_456")))

	err := repo.SetExternalCustomerID(context.Background(), "user_789", "cus_other")
	assert.ErrorIs(t, err, repository.ErrConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSetExternalCustomerID_UnknownUser(t *testing.T) {
	repo, mock := newMockUserRepo(t)
	mock.ExpectExec(setCustomerQuery).
		WithArgs("user_missing", "cus_456").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectQuery(`FROM users\s+WHERE id = \$1`).
		WithArgs("user_missing").
		WillReturnRows(pgxmock.NewRows(userColumns))

	err := repo.SetExternalCustomerID(context.Background(), "user_missing", "cus_456")
	assert.ErrorIs(t, err, repository.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSetExternalCustomerID_CustomerTakenByAnotherUser(t *testing.T) {
	repo, mock := newMockUserRepo(t)
	mock.ExpectExec(setCustomerQuery).
		WithArgs("user_new", "cus_456").
		WillReturnError(&pgconn.PgError{Code: uniqueViolation})

	err := repo.SetExternalCustomerID(context.Background(), "user_new", "cus_456")
	assert.ErrorIs(t, err, repository.ErrConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSetExternalCustomerID_StoreFailure(t *testing.T) {
	repo, mock := newMockUserRepo(t)
	dbErr := errors.New("connection reset")
	mock.ExpectExec(setCustomerQuery).
		WithArgs("user_789", "cus_456").
		WillReturnError(dbErr)

	err := repo.SetExternalCustomerID(context.Background(), "user_789", "cus_456")
	assert.ErrorIs(t, err, dbErr)
	assert.NotErrorIs(t, err, repository.ErrConflict)
}

func TestFindByExternalCustomerID(t *testing.T) {
	repo, mock := newMockUserRepo(t)
	mock.ExpectQuery(`FROM users\s+WHERE stripe_customer_id = \$1`).
		WithArgs("cus_456").
		WillReturnRows(pgxmock.NewRows(userColumns).
			AddRow("user_789", "reader@example.com", "Reader", "reader", strPtr("cus_456")))

	u, err := repo.FindByExternalCustomerID(context.Background(), "cus_456")
	require.NoError(t, err)
	assert.Equal(t, "user_789", u.ID)
	assert.Equal(t, "cus_456", u.ExternalCustomerID())
}
