package store

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/custdesk/apiserver/types"
)

// MemoryStore is an in-process CustomerStore used for development and tests.
// IDs come from a monotonic counter held by the instance; nothing is shared
// process-wide.
type MemoryStore struct {
	mu        sync.RWMutex
	nextID    int64
	customers map[int64]types.Customer
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		nextID:    1,
		customers: make(map[int64]types.Customer),
	}
}

var _ CustomerStore = (*MemoryStore)(nil)

func (m *MemoryStore) FindByID(ctx context.Context, id int64) (types.Customer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	customer, ok := m.customers[id]
	if !ok {
		return types.Customer{}, ErrNotFound
	}
	return customer, nil
}

func (m *MemoryStore) FindByEmail(ctx context.Context, email string) (types.Customer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, customer := range m.customers {
		if customer.Email == email {
			return customer, nil
		}
	}
	return types.Customer{}, ErrNotFound
}

func (m *MemoryStore) ExistsByID(ctx context.Context, id int64) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, ok := m.customers[id]
	return ok, nil
}

func (m *MemoryStore) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.emailTaken(email, 0), nil
}

func (m *MemoryStore) FindPage(ctx context.Context, req PageRequest) ([]types.Customer, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	matched := make([]types.Customer, 0, len(m.customers))
	for _, customer := range m.customers {
		if req.Query != "" && !strings.Contains(customer.Email, req.Query) {
			continue
		}
		matched = append(matched, customer)
	}

	less := sortLess(req.SortField)
	sort.Slice(matched, func(i, j int) bool {
		if req.SortDir == SortDesc {
			return less(matched[j], matched[i])
		}
		return less(matched[i], matched[j])
	})

	total := len(matched)
	size := req.Size
	if size < 1 {
		size = 20
	}
	start := req.Page * size
	if start < 0 || start >= total {
		return []types.Customer{}, total, nil
	}
	end := start + size
	if end > total {
		end = total
	}
	return matched[start:end], total, nil
}

func sortLess(field string) func(a, b types.Customer) bool {
	switch field {
	case "first_name":
		return func(a, b types.Customer) bool { return a.FirstName < b.FirstName }
	case "last_name":
		return func(a, b types.Customer) bool { return a.LastName < b.LastName }
	case "email":
		return func(a, b types.Customer) bool { return a.Email < b.Email }
	case "age":
		return func(a, b types.Customer) bool { return a.Age < b.Age }
	default:
		return func(a, b types.Customer) bool { return a.ID < b.ID }
	}
}

func (m *MemoryStore) Insert(ctx context.Context, customer *types.Customer) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.emailTaken(customer.Email, 0) {
		return ErrDuplicateEmail
	}

	customer.ID = m.nextID
	m.nextID++
	m.customers[customer.ID] = *customer
	return nil
}

func (m *MemoryStore) Update(ctx context.Context, id int64, patch types.CustomerPatch) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	customer, ok := m.customers[id]
	if !ok {
		return ErrNotFound
	}
	if patch.Email != nil && m.emailTaken(*patch.Email, id) {
		return ErrDuplicateEmail
	}

	if patch.FirstName != nil {
		customer.FirstName = *patch.FirstName
	}
	if patch.LastName != nil {
		customer.LastName = *patch.LastName
	}
	if patch.Email != nil {
		customer.Email = *patch.Email
	}
	if patch.Age != nil {
		customer.Age = *patch.Age
	}
	if patch.Gender != nil {
		customer.Gender = *patch.Gender
	}

	m.customers[id] = customer
	return nil
}

func (m *MemoryStore) UpdateProfileImage(ctx context.Context, imageRef string, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	customer, ok := m.customers[id]
	if !ok {
		return ErrNotFound
	}
	customer.ProfileImage = imageRef
	m.customers[id] = customer
	return nil
}

func (m *MemoryStore) UpdatePassword(ctx context.Context, passwordHash string, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	customer, ok := m.customers[id]
	if !ok {
		return ErrNotFound
	}
	customer.PasswordHash = passwordHash
	m.customers[id] = customer
	return nil
}

func (m *MemoryStore) DeleteByID(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.customers, id)
	return nil
}

// emailTaken reports whether another customer already holds the email.
// Callers must hold the lock.
func (m *MemoryStore) emailTaken(email string, excludeID int64) bool {
	for _, customer := range m.customers {
		if customer.Email == email && customer.ID != excludeID {
			return true
		}
	}
	return false
}
