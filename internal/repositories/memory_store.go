package repositories

import (
	"context"
	"sync"

	"carshop/internal/models"
)

// memoryData is one consistent state of the in-memory store.
type memoryData struct {
	cars   map[string]models.Car
	orders map[string]models.Order
	users  map[string]models.User
	// created records insertion order of orders so listings do not depend
	// on clock resolution.
	created map[string]int64
	seq     int64
	// issued maps an id prefix to the last id issued under it.
	issued map[string]string
}

func newMemoryData() *memoryData {
	return &memoryData{
		cars:    make(map[string]models.Car),
		orders:  make(map[string]models.Order),
		users:   make(map[string]models.User),
		created: make(map[string]int64),
		issued:  make(map[string]string),
	}
}

func (d *memoryData) clone() *memoryData {
	c := &memoryData{
		cars:    make(map[string]models.Car, len(d.cars)),
		orders:  make(map[string]models.Order, len(d.orders)),
		users:   make(map[string]models.User, len(d.users)),
		created: make(map[string]int64, len(d.created)),
		seq:     d.seq,
		issued:  make(map[string]string, len(d.issued)),
	}
	for k, v := range d.cars {
		c.cars[k] = v
	}
	for k, v := range d.orders {
		c.orders[k] = v
	}
	for k, v := range d.users {
		c.users[k] = v
	}
	for k, v := range d.created {
		c.created[k] = v
	}
	for k, v := range d.issued {
		c.issued[k] = v
	}
	return c
}

// memoryView gives repositories read and write access to a memoryData,
// either the committed state of a MemoryStore or the private copy of a
// running transaction.
type memoryView struct {
	read  func(fn func(d *memoryData) error) error
	write func(fn func(d *memoryData) error) error
}

func (v *memoryView) repositories() Repositories {
	return Repositories{
		Cars:   &MemoryCarRepository{view: v},
		Orders: &MemoryOrderRepository{view: v},
		Users:  &MemoryUserRepository{view: v},
	}
}

// MemoryStore is an in-memory Store. Writers are serialized and every write,
// transactional or not, is applied to a copy that replaces the committed
// state only on success.
type MemoryStore struct {
	mu   sync.RWMutex
	txMu sync.Mutex
	data *memoryData
}

// NewMemoryStore creates a new, empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: newMemoryData()}
}

func (s *MemoryStore) snapshot() *memoryData {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data.clone()
}

func (s *MemoryStore) commit(d *memoryData) {
	s.mu.Lock()
	s.data = d
	s.mu.Unlock()
}

func (s *MemoryStore) committedView() *memoryView {
	return &memoryView{
		read: func(fn func(d *memoryData) error) error {
			s.mu.RLock()
			defer s.mu.RUnlock()
			return fn(s.data)
		},
		write: func(fn func(d *memoryData) error) error {
			s.txMu.Lock()
			defer s.txMu.Unlock()
			work := s.snapshot()
			if err := fn(work); err != nil {
				return err
			}
			s.commit(work)
			return nil
		},
	}
}

// Repositories implements Store.
func (s *MemoryStore) Repositories() Repositories {
	return s.committedView().repositories()
}

// WithTransaction implements Store. Transactions run one at a time against a
// private copy; readers outside the transaction keep seeing the last commit.
func (s *MemoryStore) WithTransaction(ctx context.Context, fn func(tx Repositories) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	work := s.snapshot()
	direct := func(f func(d *memoryData) error) error { return f(work) }
	view := &memoryView{read: direct, write: direct}
	if err := fn(view.repositories()); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.commit(work)
	return nil
}
