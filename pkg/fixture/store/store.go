// Package store holds the in-memory state backing the fixture routes:
// seeded users, users created through registration, the current session,
// and the set of logically deleted user ids. Every instance owns its state
// outright; resetting restores the pristine seed so test cases can share a
// server without sharing history.
//
// Lookups never fail on missing keys. Absence is an expected outcome and is
// reported with an ok bool, not an error.
package store

import (
	"fmt"
	"sort"
	"sync"

	"github.com/jwtpizza/api_fixture/pkg/fixture/model"
)

// SeededUser pairs an immutable seed user with its credential.
type SeededUser struct {
	Password string
	User     model.User
}

// Registration is a user created via the registration route, stored apart
// from seed data so registering never mutates the seed table.
type Registration struct {
	Password string
	User     model.User
}

// Seed customises the state a Store starts (and resets) with. Zero-value
// fields fall back to the built-in fixtures.
type Seed struct {
	// InitialUserEmail pre-establishes a session as the named seed user.
	InitialUserEmail string
	// Users overrides the seed user table.
	Users []SeededUser
	// Menu overrides the default pizza list.
	Menu []model.Pizza
	// FranchiseList overrides the default franchise listing.
	FranchiseList *model.FranchiseList
	// FranchisesByID overrides the franchise-by-id response. When nil the
	// franchise list's entries are served.
	FranchisesByID []model.Franchise
	// OrderHistory overrides the order history response. When nil an empty
	// history scoped to the current session is served.
	OrderHistory *model.OrderHistory
}

// Store is the authoritative fixture state for one server instance.
type Store struct {
	mu   sync.Mutex
	seed Seed

	seeded          []SeededUser
	session         *model.User
	registered      map[string]Registration
	registeredOrder []string
	deleted         map[int64]struct{}

	menu           []model.Pizza
	franchiseList  model.FranchiseList
	franchisesByID []model.Franchise
	orderHistory   *model.OrderHistory
}

// New constructs a store from the given seed. It fails only when
// InitialUserEmail names a user absent from the seed table.
func New(seed Seed) (*Store, error) {
	s := &Store{seed: seed}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) load() error {
	s.seeded = s.seed.Users
	if len(s.seeded) == 0 {
		s.seeded = defaultSeedUsers()
	}
	s.session = nil
	s.registered = make(map[string]Registration)
	s.registeredOrder = nil
	s.deleted = make(map[int64]struct{})

	s.menu = s.seed.Menu
	if len(s.menu) == 0 {
		s.menu = defaultMenu()
	}
	if s.seed.FranchiseList != nil {
		s.franchiseList = *s.seed.FranchiseList
	} else {
		s.franchiseList = defaultFranchiseList()
	}
	s.franchisesByID = s.seed.FranchisesByID
	s.orderHistory = s.seed.OrderHistory

	if email := s.seed.InitialUserEmail; email != "" {
		found := false
		for _, su := range s.seeded {
			if su.User.Email == email {
				u := su.User
				s.session = &u
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("initial user %q is not a seeded user", email)
		}
	}

	return nil
}

// Reset discards all run state and restores the pristine seed, including
// any pre-established initial session.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	// load cannot fail here: the seed was validated at construction.
	_ = s.load()
}

// Session returns the current sanitized session user.
func (s *Store) Session() (model.User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session == nil {
		return model.User{}, false
	}
	return *s.session, true
}

// SetSession replaces the current session.
func (s *Store) SetSession(u model.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.session = &u
}

// ClearSession removes the current session. Clearing an absent session is
// a no-op.
func (s *Store) ClearSession() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.session = nil
}

// SeededByEmail looks up a seed user and its password.
func (s *Store) SeededByEmail(email string) (model.User, string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, su := range s.seeded {
		if su.User.Email == email {
			return su.User, su.Password, true
		}
	}
	return model.User{}, "", false
}

// RegisteredByEmail looks up a registration record.
func (s *Store) RegisteredByEmail(email string) (Registration, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	reg, ok := s.registered[email]
	return reg, ok
}

// PutRegistered inserts or replaces the registration record for email.
// First insertion fixes the record's position in listing order.
func (s *Store) PutRegistered(email string, reg Registration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.registered[email]; !ok {
		s.registeredOrder = append(s.registeredOrder, email)
	}
	s.registered[email] = reg
}

// Delete marks a user id as logically deleted. Seed and registration
// records are never physically removed.
func (s *Store) Delete(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleted[id] = struct{}{}
}

// IsDeleted reports whether an id has been logically deleted.
func (s *Store) IsDeleted(id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.deleted[id]
	return ok
}

// Users enumerates every non-deleted user: seed table first, then
// registrations in insertion order.
func (s *Store) Users() []model.User {
	s.mu.Lock()
	defer s.mu.Unlock()

	users := make([]model.User, 0, len(s.seeded)+len(s.registeredOrder))
	for _, su := range s.seeded {
		if _, gone := s.deleted[su.User.ID]; gone {
			continue
		}
		users = append(users, su.User)
	}
	for _, email := range s.registeredOrder {
		reg := s.registered[email]
		if _, gone := s.deleted[reg.User.ID]; gone {
			continue
		}
		users = append(users, reg.User)
	}
	return users
}

// Menu returns the configured or default pizza list.
func (s *Store) Menu() []model.Pizza {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.menu
}

// FranchiseList returns the configured or default franchise listing.
func (s *Store) FranchiseList() model.FranchiseList {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.franchiseList
}

// FranchisesByID returns the franchise-by-id payload: the configured
// override when present, otherwise the franchise list's entries.
func (s *Store) FranchisesByID() []model.Franchise {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.franchisesByID != nil {
		return s.franchisesByID
	}
	return s.franchiseList.Franchises
}

// OrderHistory returns the configured history override, if any.
func (s *Store) OrderHistory() (model.OrderHistory, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.orderHistory == nil {
		return model.OrderHistory{}, false
	}
	return *s.orderHistory, true
}

// State is a point-in-time dump of mutable store state, served by the
// admin endpoint so test suites can assert on fixture internals.
type State struct {
	Session          *model.User `json:"session"`
	RegisteredEmails []string    `json:"registeredEmails"`
	DeletedIDs       []int64     `json:"deletedIds"`
	UserCount        int         `json:"userCount"`
}

// Snapshot captures the current mutable state.
func (s *Store) Snapshot() State {
	users := s.Users()

	s.mu.Lock()
	defer s.mu.Unlock()

	st := State{
		RegisteredEmails: append([]string(nil), s.registeredOrder...),
		UserCount:        len(users),
	}
	if s.session != nil {
		u := *s.session
		st.Session = &u
	}
	for id := range s.deleted {
		st.DeletedIDs = append(st.DeletedIDs, id)
	}
	sort.Slice(st.DeletedIDs, func(i, j int) bool { return st.DeletedIDs[i] < st.DeletedIDs[j] })
	return st
}

// Stats summarises seed sizing for readiness reporting.
type Stats struct {
	SeededUsers int
	MenuItems   int
	Franchises  int
}

// Stats reports seed sizing.
func (s *Store) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Stats{
		SeededUsers: len(s.seeded),
		MenuItems:   len(s.menu),
		Franchises:  len(s.franchiseList.Franchises),
	}
}
