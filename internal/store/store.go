package store

import (
	"context"

	"github.com/custdesk/apiserver/types"
)

// SortDirection is a validated sort direction.
type SortDirection string

const (
	SortAsc  SortDirection = "ASC"
	SortDesc SortDirection = "DESC"
)

// sortColumns maps client-facing sort keys to column names. Anything outside
// this allow-list is rejected before query text is built.
var sortColumns = map[string]string{
	"customer_id": "customer_id",
	"first_name":  "first_name",
	"last_name":   "last_name",
	"email":       "email",
	"age":         "age",
}

// SortColumn resolves a client-supplied sort key against the allow-list.
func SortColumn(key string) (string, bool) {
	column, ok := sortColumns[key]
	return column, ok
}

// PageRequest describes a validated page query. Page is 0-based. Query, when
// non-empty, filters to customers whose email contains the substring
// (case-sensitive).
type PageRequest struct {
	Page      int
	Size      int
	SortField string
	SortDir   SortDirection
	Query     string
}

// CustomerStore is the persistence contract for customers. One production
// implementation is chosen at process start by configuration.
type CustomerStore interface {
	FindByID(ctx context.Context, id int64) (types.Customer, error)
	FindByEmail(ctx context.Context, email string) (types.Customer, error)
	ExistsByID(ctx context.Context, id int64) (bool, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)

	// FindPage returns one page of customers plus the total row count.
	// SortField must already be resolved through SortColumn.
	FindPage(ctx context.Context, req PageRequest) ([]types.Customer, int, error)

	// Insert persists a new customer and assigns its ID.
	// Returns ErrDuplicateEmail when the email is already present.
	Insert(ctx context.Context, customer *types.Customer) error

	// Update applies the non-nil fields of patch to the row matched by id.
	// Returns ErrDuplicateEmail on an email collision and ErrNotFound when
	// the id does not exist.
	Update(ctx context.Context, id int64, patch types.CustomerPatch) error

	UpdateProfileImage(ctx context.Context, imageRef string, id int64) error
	UpdatePassword(ctx context.Context, passwordHash string, id int64) error

	// DeleteByID is idempotent; deleting an absent id is not an error here.
	DeleteByID(ctx context.Context, id int64) error
}
