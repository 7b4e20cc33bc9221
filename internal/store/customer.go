package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"github.com/custdesk/apiserver/types"
)

const pqUniqueViolation = "23505"

// CustomerRepository handles Postgres persistence for customers.
type CustomerRepository struct {
	db *sql.DB
}

func NewCustomerRepository(db *sql.DB) *CustomerRepository {
	return &CustomerRepository{db: db}
}

var _ CustomerStore = (*CustomerRepository)(nil)

const customerColumns = "customer_id, first_name, last_name, email, password, age, gender, profile_image"

func scanCustomer(row *sql.Row) (types.Customer, error) {
	var customer types.Customer
	var profileImage sql.NullString
	err := row.Scan(
		&customer.ID,
		&customer.FirstName,
		&customer.LastName,
		&customer.Email,
		&customer.PasswordHash,
		&customer.Age,
		&customer.Gender,
		&profileImage,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Customer{}, ErrNotFound
		}
		return types.Customer{}, err
	}
	customer.ProfileImage = profileImage.String
	return customer, nil
}

func (r *CustomerRepository) FindByID(ctx context.Context, id int64) (types.Customer, error) {
	const query = `
		SELECT ` + customerColumns + `
		FROM customer
		WHERE customer_id = $1`
	return scanCustomer(r.db.QueryRowContext(ctx, query, id))
}

func (r *CustomerRepository) FindByEmail(ctx context.Context, email string) (types.Customer, error) {
	const query = `
		SELECT ` + customerColumns + `
		FROM customer
		WHERE email = $1`
	return scanCustomer(r.db.QueryRowContext(ctx, query, email))
}

func (r *CustomerRepository) ExistsByID(ctx context.Context, id int64) (bool, error) {
	const query = `
		SELECT COUNT(customer_id)
		FROM customer
		WHERE customer_id = $1`
	var count int
	if err := r.db.QueryRowContext(ctx, query, id).Scan(&count); err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *CustomerRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	const query = `
		SELECT COUNT(customer_id)
		FROM customer
		WHERE email = $1`
	var count int
	if err := r.db.QueryRowContext(ctx, query, email).Scan(&count); err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *CustomerRepository) FindPage(ctx context.Context, req PageRequest) ([]types.Customer, int, error) {
	column, ok := SortColumn(req.SortField)
	if !ok {
		return nil, 0, fmt.Errorf("sort field %q is not allowed", req.SortField)
	}
	direction := "ASC"
	if req.SortDir == SortDesc {
		direction = "DESC"
	}

	page := req.Page
	if page < 0 {
		page = 0
	}
	size := req.Size
	if size < 1 {
		size = 20
	}

	filter := ""
	countArgs := []any{}
	listArgs := []any{}
	if req.Query != "" {
		filter = " WHERE email LIKE '%' || $1 || '%'"
		countArgs = append(countArgs, req.Query)
		listArgs = append(listArgs, req.Query)
	}

	countQuery := "SELECT COUNT(*) FROM customer" + filter
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, countArgs...).Scan(&total); err != nil {
		return nil, 0, err
	}

	// column and direction come from the allow-list above, never from the
	// raw request string.
	listQuery := fmt.Sprintf(
		"SELECT %s FROM customer%s ORDER BY %s %s LIMIT $%d OFFSET $%d",
		customerColumns, filter, column, direction, len(listArgs)+1, len(listArgs)+2,
	)
	listArgs = append(listArgs, size, page*size)

	rows, err := r.db.QueryContext(ctx, listQuery, listArgs...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	customers := make([]types.Customer, 0, size)
	for rows.Next() {
		var customer types.Customer
		var profileImage sql.NullString
		if err := rows.Scan(
			&customer.ID,
			&customer.FirstName,
			&customer.LastName,
			&customer.Email,
			&customer.PasswordHash,
			&customer.Age,
			&customer.Gender,
			&profileImage,
		); err != nil {
			return nil, 0, err
		}
		customer.ProfileImage = profileImage.String
		customers = append(customers, customer)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	return customers, total, nil
}

func (r *CustomerRepository) Insert(ctx context.Context, customer *types.Customer) error {
	const query = `
		INSERT INTO customer (first_name, last_name, email, password, age, gender)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING customer_id`
	err := r.db.QueryRowContext(
		ctx,
		query,
		customer.FirstName,
		customer.LastName,
		customer.Email,
		customer.PasswordHash,
		customer.Age,
		customer.Gender,
	).Scan(&customer.ID)
	if err != nil {
		return translateUniqueViolation(err)
	}
	return nil
}

func (r *CustomerRepository) Update(ctx context.Context, id int64, patch types.CustomerPatch) error {
	assignments := make([]string, 0, 5)
	args := make([]any, 0, 6)

	add := func(column string, value any) {
		args = append(args, value)
		assignments = append(assignments, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if patch.FirstName != nil {
		add("first_name", *patch.FirstName)
	}
	if patch.LastName != nil {
		add("last_name", *patch.LastName)
	}
	if patch.Email != nil {
		add("email", *patch.Email)
	}
	if patch.Age != nil {
		add("age", *patch.Age)
	}
	if patch.Gender != nil {
		add("gender", *patch.Gender)
	}
	if len(assignments) == 0 {
		return nil
	}

	args = append(args, id)
	query := fmt.Sprintf(
		"UPDATE customer SET %s WHERE customer_id = $%d",
		strings.Join(assignments, ", "), len(args),
	)

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return translateUniqueViolation(err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *CustomerRepository) UpdateProfileImage(ctx context.Context, imageRef string, id int64) error {
	const query = `
		UPDATE customer
		SET profile_image = $1
		WHERE customer_id = $2`
	_, err := r.db.ExecContext(ctx, query, imageRef, id)
	return err
}

func (r *CustomerRepository) UpdatePassword(ctx context.Context, passwordHash string, id int64) error {
	const query = `
		UPDATE customer
		SET password = $1
		WHERE customer_id = $2`
	_, err := r.db.ExecContext(ctx, query, passwordHash, id)
	return err
}

func (r *CustomerRepository) DeleteByID(ctx context.Context, id int64) error {
	const query = `DELETE FROM customer WHERE customer_id = $1`
	_, err := r.db.ExecContext(ctx, query, id)
	return err
}

func translateUniqueViolation(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation {
		return ErrDuplicateEmail
	}
	return err
}
