// Package directory manages the portal's operational collections: programs,
// mentors, customers, and staff. Each collection is a single persisted
// document, seeded with the stock rows on first access.
package directory

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ironlady-io/bridge/internal/store"
	"github.com/ironlady-io/bridge/pkg/protocol"
)

// ErrNotFound is returned when an id is absent from its collection.
var ErrNotFound = fmt.Errorf("directory: not found")

// Service provides typed CRUD over the directory collections. The mutex
// serializes the whole-document read-modify-write cycles within this
// process.
type Service struct {
	mu    sync.Mutex
	store store.Store
	now   func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the time source (tests).
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(st store.Store, opts ...Option) *Service {
	s := &Service{store: st, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Seed rows written on first access, matching the portal's stock data.
func seedPrograms() []protocol.Program {
	return []protocol.Program{
		{ID: "P-1", Name: "Leadership Essentials", Duration: "4 Weeks", Fees: "₹ 15,000", Capacity: 100, EnrolledCount: 45, Active: true},
		{ID: "P-2", Name: "100 Board Members", Duration: "6 Months", Fees: "₹ 45,000", Capacity: 50, EnrolledCount: 12, Active: true},
	}
}

func seedMentors() []protocol.Mentor {
	return []protocol.Mentor{
		{ID: "M-1", Name: "Suvarna Hegde", Specialization: "Business Warfare", Exp: 15, Rating: 4.9, ActiveLearners: 120, Available: true},
	}
}

func seedStaff() []protocol.StaffUser {
	return []protocol.StaffUser{
		{ID: "S-1", Name: "Rajesh Bhat", Email: "rajesh@ironlady.com", Role: protocol.RoleAdmin, Status: "Active"},
	}
}

// collection reads a collection, writing and returning the seed when the
// key has never been stored.
func collection[T any](s *Service, key string, seed func() []T) ([]T, error) {
	var items []T
	found, err := s.store.Get(key, &items)
	if err != nil {
		return nil, fmt.Errorf("directory: load %s: %w", key, err)
	}
	if !found {
		items = seed()
		if err := s.store.Put(key, items); err != nil {
			return nil, fmt.Errorf("directory: seed %s: %w", key, err)
		}
	}
	return items, nil
}

func save[T any](s *Service, key string, items []T) error {
	if err := s.store.Put(key, items); err != nil {
		return fmt.Errorf("directory: save %s: %w", key, err)
	}
	return nil
}

// upsert prepends a new item or replaces an existing one in place.
func upsert[T any](items []T, id func(T) string, item T) []T {
	for i := range items {
		if id(items[i]) == id(item) {
			items[i] = item
			return items
		}
	}
	return append([]T{item}, items...)
}

func remove[T any](items []T, id func(T) string, target string) ([]T, bool) {
	for i := range items {
		if id(items[i]) == target {
			return append(items[:i], items[i+1:]...), true
		}
	}
	return items, false
}

// newID mints a collection-scoped id like "PROGRAM-1756600000000".
func (s *Service) newID(kind string) string {
	return fmt.Sprintf("%s-%d", strings.ToUpper(kind), s.now().UnixMilli())
}

// --- Programs ---

func (s *Service) Programs() ([]protocol.Program, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return collection(s, store.KeyPrograms, seedPrograms)
}

func (s *Service) SaveProgram(p protocol.Program) (protocol.Program, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	items, err := collection(s, store.KeyPrograms, seedPrograms)
	if err != nil {
		return protocol.Program{}, err
	}
	if p.ID == "" {
		p.ID = s.newID("program")
	}
	return p, save(s, store.KeyPrograms, upsert(items, func(x protocol.Program) string { return x.ID }, p))
}

func (s *Service) DeleteProgram(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	items, err := collection(s, store.KeyPrograms, seedPrograms)
	if err != nil {
		return err
	}
	items, ok := remove(items, func(x protocol.Program) string { return x.ID }, id)
	if !ok {
		return fmt.Errorf("directory: program %q: %w", id, ErrNotFound)
	}
	return save(s, store.KeyPrograms, items)
}

// --- Mentors ---

func (s *Service) Mentors() ([]protocol.Mentor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return collection(s, store.KeyMentors, seedMentors)
}

func (s *Service) SaveMentor(m protocol.Mentor) (protocol.Mentor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	items, err := collection(s, store.KeyMentors, seedMentors)
	if err != nil {
		return protocol.Mentor{}, err
	}
	if m.ID == "" {
		m.ID = s.newID("mentor")
	}
	return m, save(s, store.KeyMentors, upsert(items, func(x protocol.Mentor) string { return x.ID }, m))
}

func (s *Service) DeleteMentor(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	items, err := collection(s, store.KeyMentors, seedMentors)
	if err != nil {
		return err
	}
	items, ok := remove(items, func(x protocol.Mentor) string { return x.ID }, id)
	if !ok {
		return fmt.Errorf("directory: mentor %q: %w", id, ErrNotFound)
	}
	return save(s, store.KeyMentors, items)
}

// --- Customers ---

func seedCustomers() []protocol.Customer { return []protocol.Customer{} }

func (s *Service) Customers() ([]protocol.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return collection(s, store.KeyCustomers, seedCustomers)
}

func (s *Service) SaveCustomer(c protocol.Customer) (protocol.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	items, err := collection(s, store.KeyCustomers, seedCustomers)
	if err != nil {
		return protocol.Customer{}, err
	}
	if c.ID == "" {
		c.ID = s.newID("customer")
	}
	return c, save(s, store.KeyCustomers, upsert(items, func(x protocol.Customer) string { return x.ID }, c))
}

func (s *Service) DeleteCustomer(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	items, err := collection(s, store.KeyCustomers, seedCustomers)
	if err != nil {
		return err
	}
	items, ok := remove(items, func(x protocol.Customer) string { return x.ID }, id)
	if !ok {
		return fmt.Errorf("directory: customer %q: %w", id, ErrNotFound)
	}
	return save(s, store.KeyCustomers, items)
}

// --- Staff ---

func (s *Service) Staff() ([]protocol.StaffUser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return collection(s, store.KeyStaff, seedStaff)
}

func (s *Service) SaveStaff(u protocol.StaffUser) (protocol.StaffUser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	items, err := collection(s, store.KeyStaff, seedStaff)
	if err != nil {
		return protocol.StaffUser{}, err
	}
	if u.ID == "" {
		u.ID = s.newID("staff")
	}
	return u, save(s, store.KeyStaff, upsert(items, func(x protocol.StaffUser) string { return x.ID }, u))
}

func (s *Service) DeleteStaff(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	items, err := collection(s, store.KeyStaff, seedStaff)
	if err != nil {
		return err
	}
	items, ok := remove(items, func(x protocol.StaffUser) string { return x.ID }, id)
	if !ok {
		return fmt.Errorf("directory: staff %q: %w", id, ErrNotFound)
	}
	return save(s, store.KeyStaff, items)
}
