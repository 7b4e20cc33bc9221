package store

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custdesk/apiserver/types"
)

func newMockRepo(t *testing.T) (*CustomerRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewCustomerRepository(db), mock
}

func customerRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"customer_id", "first_name", "last_name", "email", "password", "age", "gender", "profile_image",
	})
}

func TestRepositoryFindByID(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(`SELECT (.+) FROM customer\s+WHERE customer_id = \$1`).
		WithArgs(int64(7)).
		WillReturnRows(customerRows().AddRow(7, "Ann", "Lee", "ann.lee@x.com", "$2a$10$hash", 30, "MALE", nil))

	customer, err := repo.FindByID(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, int64(7), customer.ID)
	assert.Equal(t, "ann.lee@x.com", customer.Email)
	assert.Equal(t, types.GenderMale, customer.Gender)
	assert.Empty(t, customer.ProfileImage)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRepositoryFindByIDNotFound(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(`SELECT (.+) FROM customer\s+WHERE customer_id = \$1`).
		WithArgs(int64(404)).
		WillReturnRows(customerRows())

	_, err := repo.FindByID(context.Background(), 404)
	assert.True(t, errors.Is(err, ErrNotFound))

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRepositoryExistsByEmail(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(`SELECT COUNT\(customer_id\)\s+FROM customer\s+WHERE email = \$1`).
		WithArgs("ann.lee@x.com").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	taken, err := repo.ExistsByEmail(context.Background(), "ann.lee@x.com")
	require.NoError(t, err)
	assert.True(t, taken)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRepositoryInsertTranslatesUniqueViolation(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(`INSERT INTO customer`).
		WithArgs("Ann", "Lee", "dup@x.com", "$2a$10$hash", 30, types.GenderMale).
		WillReturnError(&pq.Error{Code: pqUniqueViolation})

	customer := types.Customer{
		FirstName:    "Ann",
		LastName:     "Lee",
		Email:        "dup@x.com",
		PasswordHash: "$2a$10$hash",
		Age:          30,
		Gender:       types.GenderMale,
	}
	err := repo.Insert(context.Background(), &customer)
	assert.True(t, errors.Is(err, ErrDuplicateEmail))

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRepositoryInsertAssignsID(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(`INSERT INTO customer`).
		WithArgs("Ann", "Lee", "ann.lee@x.com", "$2a$10$hash", 30, types.GenderMale).
		WillReturnRows(sqlmock.NewRows([]string{"customer_id"}).AddRow(42))

	customer := types.Customer{
		FirstName:    "Ann",
		LastName:     "Lee",
		Email:        "ann.lee@x.com",
		PasswordHash: "$2a$10$hash",
		Age:          30,
		Gender:       types.GenderMale,
	}
	require.NoError(t, repo.Insert(context.Background(), &customer))
	assert.Equal(t, int64(42), customer.ID)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRepositoryUpdateBuildsOnlyPatchedColumns(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE customer SET first_name = $1, age = $2 WHERE customer_id = $3")).
		WithArgs("Bea", 44, int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	name := "Bea"
	age := 44
	err := repo.Update(context.Background(), 7, types.CustomerPatch{FirstName: &name, Age: &age})
	require.NoError(t, err)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRepositoryUpdateEmptyPatchIsNoSQL(t *testing.T) {
	repo, mock := newMockRepo(t)

	require.NoError(t, repo.Update(context.Background(), 7, types.CustomerPatch{}))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRepositoryUpdateMissingRow(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE customer SET email = $1 WHERE customer_id = $2")).
		WithArgs("new@x.com", int64(404)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	email := "new@x.com"
	err := repo.Update(context.Background(), 404, types.CustomerPatch{Email: &email})
	assert.True(t, errors.Is(err, ErrNotFound))

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRepositoryFindPageRejectsUnknownSortField(t *testing.T) {
	repo, mock := newMockRepo(t)

	_, _, err := repo.FindPage(context.Background(), PageRequest{
		Page:      0,
		Size:      10,
		SortField: "password; DROP TABLE customer",
		SortDir:   SortAsc,
	})
	assert.Error(t, err)

	// Nothing reached the database.
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRepositoryFindPageWithQuery(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM customer WHERE email LIKE`).
		WithArgs("x.com").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery(`ORDER BY email DESC LIMIT \$2 OFFSET \$3`).
		WithArgs("x.com", 10, 0).
		WillReturnRows(customerRows().AddRow(1, "Ann", "Lee", "ann.lee@x.com", "$2a$10$hash", 30, "MALE", "img-ref"))

	customers, total, err := repo.FindPage(context.Background(), PageRequest{
		Page:      0,
		Size:      10,
		SortField: "email",
		SortDir:   SortDesc,
		Query:     "x.com",
	})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, customers, 1)
	assert.Equal(t, "img-ref", customers[0].ProfileImage)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRepositoryDeleteByID(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM customer WHERE customer_id = $1")).
		WithArgs(int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.DeleteByID(context.Background(), 7))

	// Deleting again affects zero rows but is not an error.
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM customer WHERE customer_id = $1")).
		WithArgs(int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.DeleteByID(context.Background(), 7))
	require.NoError(t, mock.ExpectationsWereMet())
}
