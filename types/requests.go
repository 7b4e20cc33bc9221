package types

// RegistrationRequest is the payload for creating a customer account.
// Field-level rules are enforced at the handler boundary; gender is further
// restricted to the allowed subset by ValidateGender.
type RegistrationRequest struct {
	FirstName string `json:"firstName" validate:"required"`
	LastName  string `json:"lastName" validate:"required"`
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required,min=8"`
	Age       int    `json:"age" validate:"gte=18"`
	Gender    Gender `json:"gender" validate:"required"`
}

// UpdateRequest is the partial-update payload. Absent fields stay nil and
// mean "no change".
type UpdateRequest struct {
	FirstName *string `json:"firstName"`
	LastName  *string `json:"lastName"`
	Email     *string `json:"email" validate:"omitempty,email"`
	Age       *int    `json:"age" validate:"omitempty,gte=18"`
	Gender    *Gender `json:"gender"`
}

// ResetPasswordRequest carries the new password and its confirmation.
type ResetPasswordRequest struct {
	Password        string `json:"password" validate:"required,min=8"`
	ConfirmPassword string `json:"confirmPassword" validate:"required,eqfield=Password"`
}

// LoginRequest carries login credentials. The username is the customer email.
type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// CustomerPage is the paginated list response payload.
type CustomerPage struct {
	Customers   []CustomerDTO `json:"customers"`
	CurrentPage int           `json:"currentPage"`
	TotalItems  int           `json:"totalItems"`
	TotalPages  int           `json:"totalPages"`
	PageSize    int           `json:"pageSize"`
	Sort        string        `json:"sort"`
	Query       string        `json:"query"`
}
