package types

import "fmt"

// Gender is the customer's declared gender identity.
type Gender string

const (
	GenderMale   Gender = "MALE"
	GenderFemale Gender = "FEMALE"

	// GenderStraight exists in the persisted enum but is rejected by
	// request validation. Its purpose is unclear upstream; kept pending
	// product clarification.
	GenderStraight Gender = "STRAIGHT"
)

// ValidateGender checks the request-level gender allow-list.
func ValidateGender(g Gender) error {
	switch g {
	case GenderMale, GenderFemale:
		return nil
	default:
		return fmt.Errorf("gender [%s] is not allowed", g)
	}
}

// Customer represents an account in the system.
type Customer struct {
	// ID is the unique identifier of the customer, assigned by the store.
	ID int64 `json:"id" db:"customer_id"`

	// FirstName and LastName are the customer's name parts.
	FirstName string `json:"first_name" db:"first_name"`
	LastName  string `json:"last_name" db:"last_name"`

	// Email is the customer's globally unique email address. Comparison is
	// case-sensitive everywhere.
	Email string `json:"email" db:"email"`

	// PasswordHash stores the hashed representation of the customer's password.
	// This field is never exposed in API responses.
	PasswordHash string `json:"-" db:"password"`

	// Age in whole years. Must be at least 18 at registration.
	Age int `json:"age" db:"age"`

	// Gender is the persisted gender value.
	Gender Gender `json:"gender" db:"gender"`

	// ProfileImage is an opaque reference into object storage, empty when the
	// customer has not uploaded an image.
	ProfileImage string `json:"profile_image" db:"profile_image"`
}

// DefaultRole is granted to every registered customer.
const DefaultRole = "ROLE_USER"

// CustomerDTO is the externally visible projection of a Customer.
// It omits the password hash and carries the derived role list.
type CustomerDTO struct {
	ID           int64    `json:"id"`
	FirstName    string   `json:"firstName"`
	LastName     string   `json:"lastName"`
	Email        string   `json:"email"`
	Age          int      `json:"age"`
	Gender       Gender   `json:"gender"`
	Roles        []string `json:"roles"`
	Username     string   `json:"username"`
	ProfileImage string   `json:"profileImage,omitempty"`
}

// NewCustomerDTO projects a Customer into its API representation.
func NewCustomerDTO(c Customer) CustomerDTO {
	return CustomerDTO{
		ID:           c.ID,
		FirstName:    c.FirstName,
		LastName:     c.LastName,
		Email:        c.Email,
		Age:          c.Age,
		Gender:       c.Gender,
		Roles:        []string{DefaultRole},
		Username:     c.Email,
		ProfileImage: c.ProfileImage,
	}
}

// CustomerPatch describes a partial update. Nil fields mean "leave unchanged";
// there is no way to clear a field through this path.
type CustomerPatch struct {
	FirstName *string
	LastName  *string
	Email     *string
	Age       *int
	Gender    *Gender
}

// Empty reports whether the patch carries no staged change.
func (p CustomerPatch) Empty() bool {
	return p.FirstName == nil && p.LastName == nil && p.Email == nil &&
		p.Age == nil && p.Gender == nil
}
