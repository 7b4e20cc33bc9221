package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/custdesk/apiserver/internal/apierr"
	"github.com/custdesk/apiserver/internal/events"
	"github.com/custdesk/apiserver/internal/storage"
	"github.com/custdesk/apiserver/internal/store"
	"github.com/custdesk/apiserver/pkg/logger"
	"github.com/custdesk/apiserver/types"
)

// ProviderS3 routes profile-image uploads to the configured cloud bucket;
// any other provider value falls back to the local mock.
const ProviderS3 = "s3"

const profileImageContentType = "image/jpeg"

// CustomerService implements registration, partial update, password reset,
// paging, and the profile-image flows over a CustomerStore.
type CustomerService struct {
	store     store.CustomerStore
	cloud     *storage.Storage
	local     *storage.Storage
	publisher *events.Publisher
	log       *logger.Logger
	hashCost  int
}

// NewCustomerService wires the engine. cloud and local may each be nil when
// the corresponding storage provider is not configured; publisher may be nil.
func NewCustomerService(
	customerStore store.CustomerStore,
	cloud *storage.Storage,
	local *storage.Storage,
	publisher *events.Publisher,
	log *logger.Logger,
) *CustomerService {
	return &CustomerService{
		store:     customerStore,
		cloud:     cloud,
		local:     local,
		publisher: publisher,
		log:       log,
		hashCost:  bcrypt.DefaultCost,
	}
}

// FindLatest returns the newest `size` customers.
func (s *CustomerService) FindLatest(ctx context.Context, size int) ([]types.CustomerDTO, error) {
	customers, _, err := s.store.FindPage(ctx, store.PageRequest{
		Page:      0,
		Size:      size,
		SortField: "customer_id",
		SortDir:   store.SortDesc,
	})
	if err != nil {
		return nil, fmt.Errorf("find latest customers: %w", err)
	}
	return toDTOs(customers), nil
}

// FindPage returns one page of customers plus paging metadata. rawSort is
// echoed back in the response for client convenience.
func (s *CustomerService) FindPage(ctx context.Context, req store.PageRequest, rawSort string) (types.CustomerPage, error) {
	customers, total, err := s.store.FindPage(ctx, req)
	if err != nil {
		return types.CustomerPage{}, fmt.Errorf("find page of customers: %w", err)
	}

	totalPages := 0
	if req.Size > 0 {
		totalPages = (total + req.Size - 1) / req.Size
	}

	return types.CustomerPage{
		Customers:   toDTOs(customers),
		CurrentPage: req.Page,
		TotalItems:  total,
		TotalPages:  totalPages,
		PageSize:    req.Size,
		Sort:        rawSort,
		Query:       req.Query,
	}, nil
}

// FindByID looks a customer up by id.
func (s *CustomerService) FindByID(ctx context.Context, id int64) (types.CustomerDTO, error) {
	customer, err := s.store.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.CustomerDTO{}, apierr.NotFound("Customer with id [%d] was not found", id)
		}
		return types.CustomerDTO{}, fmt.Errorf("find customer by id: %w", err)
	}
	return types.NewCustomerDTO(customer), nil
}

// FindByEmail looks a customer up by email.
func (s *CustomerService) FindByEmail(ctx context.Context, email string) (types.CustomerDTO, error) {
	customer, err := s.store.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.CustomerDTO{}, apierr.NotFound("Customer with email [%s] was not found", email)
		}
		return types.CustomerDTO{}, fmt.Errorf("find customer by email: %w", err)
	}
	return types.NewCustomerDTO(customer), nil
}

// Register creates a new customer with a hashed password and no profile
// image. Field-level validation happens at the request boundary before this
// is invoked; only email uniqueness is checked here.
func (s *CustomerService) Register(ctx context.Context, req types.RegistrationRequest) (types.CustomerDTO, error) {
	if err := s.validateEmailFree(ctx, req.Email); err != nil {
		return types.CustomerDTO{}, err
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.hashCost)
	if err != nil {
		return types.CustomerDTO{}, fmt.Errorf("hash password: %w", err)
	}

	customer := types.Customer{
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Email:        req.Email,
		PasswordHash: string(hashed),
		Age:          req.Age,
		Gender:       req.Gender,
	}
	if err := s.store.Insert(ctx, &customer); err != nil {
		if errors.Is(err, store.ErrDuplicateEmail) {
			return types.CustomerDTO{}, apierr.Duplicate("Email already taken")
		}
		return types.CustomerDTO{}, fmt.Errorf("register customer: %w", err)
	}

	if err := s.publisher.CustomerRegistered(ctx, customer.ID, customer.Email); err != nil {
		s.log.WithError(err).WithField("customer_id", customer.ID).Warnf("failed to publish registration event")
	}

	return types.NewCustomerDTO(customer), nil
}

// UpdateByID merges the non-nil request fields into the stored customer.
// A field is staged only when its value actually differs; a request that
// stages nothing is rejected. Password and profile image have dedicated
// flows and never pass through here.
func (s *CustomerService) UpdateByID(ctx context.Context, id int64, req types.UpdateRequest) error {
	existing, err := s.store.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return apierr.NotFound("Customer with id [%d] was not found", id)
		}
		return fmt.Errorf("load customer for update: %w", err)
	}

	var patch types.CustomerPatch

	if req.FirstName != nil && *req.FirstName != existing.FirstName {
		patch.FirstName = req.FirstName
	}
	if req.LastName != nil && *req.LastName != existing.LastName {
		patch.LastName = req.LastName
	}
	if req.Email != nil && *req.Email != existing.Email {
		if err := s.validateEmailFree(ctx, *req.Email); err != nil {
			return err
		}
		patch.Email = req.Email
	}
	if req.Age != nil && *req.Age != existing.Age {
		patch.Age = req.Age
	}
	if req.Gender != nil && *req.Gender != existing.Gender {
		patch.Gender = req.Gender
	}

	if patch.Empty() {
		return apierr.Validation("No changes were found")
	}

	if err := s.store.Update(ctx, id, patch); err != nil {
		switch {
		case errors.Is(err, store.ErrDuplicateEmail):
			return apierr.Duplicate("Email already taken")
		case errors.Is(err, store.ErrNotFound):
			return apierr.NotFound("Customer with id [%d] was not found", id)
		}
		return fmt.Errorf("update customer: %w", err)
	}
	return nil
}

// DeleteByID removes a customer. The store delete itself is idempotent;
// the existence check here is what turns a stale id into a 404.
func (s *CustomerService) DeleteByID(ctx context.Context, id int64) error {
	customer, err := s.store.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return apierr.NotFound("Customer with id [%d] was not found", id)
		}
		return fmt.Errorf("load customer for delete: %w", err)
	}

	if err := s.store.DeleteByID(ctx, id); err != nil {
		return fmt.Errorf("delete customer: %w", err)
	}

	if err := s.publisher.CustomerDeleted(ctx, customer.ID, customer.Email); err != nil {
		s.log.WithError(err).WithField("customer_id", customer.ID).Warnf("failed to publish deletion event")
	}
	return nil
}

// ResetPassword replaces the stored password hash, rejecting a reset to the
// password currently in use. Confirm-password matching is enforced at the
// request boundary.
func (s *CustomerService) ResetPassword(ctx context.Context, id int64, req types.ResetPasswordRequest) error {
	customer, err := s.store.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return apierr.NotFound("Customer with id [%d] was not found", id)
		}
		return fmt.Errorf("load customer for password reset: %w", err)
	}

	if bcrypt.CompareHashAndPassword([]byte(customer.PasswordHash), []byte(req.Password)) == nil {
		return apierr.Validation("Password was used previously")
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.hashCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.store.UpdatePassword(ctx, string(hashed), id); err != nil {
		return fmt.Errorf("reset password: %w", err)
	}
	return nil
}

// UploadProfileImage stores the image bytes under an opaque random id and
// persists the resulting reference.
func (s *CustomerService) UploadProfileImage(ctx context.Context, id int64, data []byte, provider string) error {
	exists, err := s.store.ExistsByID(ctx, id)
	if err != nil {
		return fmt.Errorf("check customer exists: %w", err)
	}
	if !exists {
		return apierr.NotFound("Customer with id [%d] was not found", id)
	}

	imageID := uuid.New().String()
	key := profileImageKey(id, imageID)

	backend := s.local
	if provider == ProviderS3 {
		backend = s.cloud
	}
	if backend == nil {
		return fmt.Errorf("storage provider %q is not configured", provider)
	}

	reference, err := backend.Put(ctx, key, bytes.NewReader(data), int64(len(data)), profileImageContentType)
	if err != nil {
		return fmt.Errorf("upload profile image: %w", err)
	}

	// Cloud uploads persist the bare image id, matching the download key
	// scheme; the local mock persists its versioned path.
	if provider == ProviderS3 {
		reference = imageID
	}
	if err := s.store.UpdateProfileImage(ctx, reference, id); err != nil {
		return fmt.Errorf("persist profile image reference: %w", err)
	}
	return nil
}

// ProfileImage fetches the stored image bytes for a customer.
func (s *CustomerService) ProfileImage(ctx context.Context, id int64) ([]byte, error) {
	customer, err := s.store.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apierr.NotFound("Customer with id [%d] was not found", id)
		}
		return nil, fmt.Errorf("load customer for profile image: %w", err)
	}
	if customer.ProfileImage == "" {
		return nil, apierr.NotFound("Customer with id [%d] profile image was not found", id)
	}

	backend := s.cloud
	key := profileImageKey(id, customer.ProfileImage)
	if isLocalReference(customer.ProfileImage) {
		backend = s.local
		key = customer.ProfileImage
	}
	if backend == nil {
		return nil, errors.New("storage backend for profile image is not configured")
	}

	reader, err := backend.Get(ctx, key)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return nil, apierr.NotFound("Customer with id [%d] profile image was not found", id)
		}
		return nil, fmt.Errorf("download profile image: %w", err)
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("read profile image: %w", err)
	}
	return data, nil
}

func (s *CustomerService) validateEmailFree(ctx context.Context, email string) error {
	taken, err := s.store.ExistsByEmail(ctx, email)
	if err != nil {
		return fmt.Errorf("check email exists: %w", err)
	}
	if taken {
		return apierr.Duplicate("Email already taken")
	}
	return nil
}

func profileImageKey(customerID int64, imageID string) string {
	return fmt.Sprintf("profile-images/%d/%s", customerID, imageID)
}

// isLocalReference recognizes the /v{n}/ versioned paths fabricated by the
// local storage mock.
func isLocalReference(reference string) bool {
	return len(reference) > 2 && reference[0] == '/' && reference[1] == 'v'
}

func toDTOs(customers []types.Customer) []types.CustomerDTO {
	dtos := make([]types.CustomerDTO, 0, len(customers))
	for _, customer := range customers {
		dtos = append(dtos, types.NewCustomerDTO(customer))
	}
	return dtos
}
