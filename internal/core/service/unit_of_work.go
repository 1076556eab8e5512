package service

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"

	"github.com/rl1809/allocation/internal/platform/logger"
	"github.com/rl1809/allocation/internal/port"
)

var tracer = otel.Tracer("github.com/rl1809/allocation/internal/core/service")

type unitOfWorkRunner struct {
	uows port.UnitOfWorkFactory
	log  *logger.Logger
}

// run executes fn inside one unit of work. The unit is rolled back on every
// exit path; it is committed only when commit is set and fn succeeded.
func (r unitOfWorkRunner) run(ctx context.Context, op string, commit bool, fn func(ctx context.Context, uow port.UnitOfWork) error) (err error) {
	ctx, span := tracer.Start(ctx, op)
	defer span.End()

	start := time.Now()
	defer func() {
		r.logOutcome(op, time.Since(start), err)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, string(CodeOf(err)))
		}
	}()

	uow, err := r.uows.Begin(ctx)
	if err != nil {
		return fmt.Errorf("%s: begin: %w", op, err)
	}
	defer uow.Rollback()

	if err := fn(ctx, uow); err != nil {
		return err
	}
	if !commit {
		return nil
	}
	if err := uow.Commit(ctx); err != nil {
		return fmt.Errorf("%s: commit: %w", op, err)
	}
	return nil
}

func (r unitOfWorkRunner) logOutcome(op string, took time.Duration, err error) {
	code := CodeOf(err)
	switch {
	case err == nil:
		r.log.Debug("use case done", "op", op, "duration", took)
	case code == CodeConflict:
		r.log.Warn("use case conflicted", "op", op, "duration", took, "error", err)
	case code.IsBusiness():
		r.log.Info("use case rejected", "op", op, "code", code, "error", err)
	default:
		r.log.Error("use case failed", "op", op, "duration", took, "error", err)
	}
}
