package service

import (
	"context"
	"errors"
	"sync"

	"github.com/rl1809/allocation/internal/adapter/storage"
	"github.com/rl1809/allocation/internal/platform/logger"
	"github.com/rl1809/allocation/internal/port"
)

var errInjected = errors.New("injected failure")

func newMemoryFactory() port.UnitOfWorkFactory {
	return storage.NewMemoryUnitOfWorkFactory(storage.NewMemoryStore())
}

func newTestAllocationService(uows port.UnitOfWorkFactory, idem port.IdempotencyStore) *AllocationService {
	return NewAllocationService(uows, idem, logger.NewNop())
}

// faultyFactory wraps a real factory and injects failures at the boundaries.
type faultyFactory struct {
	inner     port.UnitOfWorkFactory
	beginErr  error
	commitErr error

	// beforeCommit runs once, before the first commit goes through.
	beforeCommit func()
	once         sync.Once
}

func (f *faultyFactory) Begin(ctx context.Context) (port.UnitOfWork, error) {
	if f.beginErr != nil {
		return nil, f.beginErr
	}
	uow, err := f.inner.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return &faultyUnitOfWork{UnitOfWork: uow, factory: f}, nil
}

type faultyUnitOfWork struct {
	port.UnitOfWork
	factory *faultyFactory
}

func (u *faultyUnitOfWork) Commit(ctx context.Context) error {
	if u.factory.commitErr != nil {
		u.UnitOfWork.Rollback()
		return u.factory.commitErr
	}
	if u.factory.beforeCommit != nil {
		u.factory.once.Do(u.factory.beforeCommit)
	}
	return u.UnitOfWork.Commit(ctx)
}

type fakeIdempotencyStore struct {
	mu          sync.Mutex
	results     map[string]string
	lookupErr   error
	rememberErr error
}

func newFakeIdempotencyStore() *fakeIdempotencyStore {
	return &fakeIdempotencyStore{results: make(map[string]string)}
}

func (s *fakeIdempotencyStore) Lookup(ctx context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lookupErr != nil {
		return "", false, s.lookupErr
	}
	result, ok := s.results[key]
	return result, ok, nil
}

func (s *fakeIdempotencyStore) Remember(ctx context.Context, key, result string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rememberErr != nil {
		return s.rememberErr
	}
	if _, ok := s.results[key]; !ok {
		s.results[key] = result
	}
	return nil
}
