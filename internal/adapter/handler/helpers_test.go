package handler

import (
	"context"
	"sync"

	"github.com/rl1809/allocation/internal/adapter/storage"
	"github.com/rl1809/allocation/internal/core/service"
	"github.com/rl1809/allocation/internal/platform/logger"
	"github.com/rl1809/allocation/internal/port"
)

type services struct {
	allocations *service.AllocationService
	market      *service.MarketService
}

func newServices(uows port.UnitOfWorkFactory, idem port.IdempotencyStore) services {
	log := logger.NewNop()
	return services{
		allocations: service.NewAllocationService(uows, idem, log),
		market:      service.NewMarketService(uows, log),
	}
}

func newMemoryFactory() port.UnitOfWorkFactory {
	return storage.NewMemoryUnitOfWorkFactory(storage.NewMemoryStore())
}

// commitFailingFactory loses every commit with err.
type commitFailingFactory struct {
	inner port.UnitOfWorkFactory
	err   error
}

func (f commitFailingFactory) Begin(ctx context.Context) (port.UnitOfWork, error) {
	uow, err := f.inner.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return commitFailingUnitOfWork{UnitOfWork: uow, err: f.err}, nil
}

type commitFailingUnitOfWork struct {
	port.UnitOfWork
	err error
}

func (u commitFailingUnitOfWork) Commit(ctx context.Context) error {
	u.UnitOfWork.Rollback()
	return u.err
}

type mapIdempotencyStore struct {
	mu sync.Mutex
	m  map[string]string
}

func (s *mapIdempotencyStore) Lookup(ctx context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.m[key]
	return v, ok, nil
}

func (s *mapIdempotencyStore) Remember(ctx context.Context, key, result string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.m == nil {
		s.m = make(map[string]string)
	}
	if _, ok := s.m[key]; !ok {
		s.m[key] = result
	}
	return nil
}
