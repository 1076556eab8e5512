package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/rl1809/allocation/internal/port"
)

type SQLUnitOfWorkFactory struct {
	db      *sql.DB
	dialect Dialect
}

func NewSQLUnitOfWorkFactory(db *sql.DB, dialect Dialect) *SQLUnitOfWorkFactory {
	return &SQLUnitOfWorkFactory{db: db, dialect: dialect}
}

func (f *SQLUnitOfWorkFactory) Begin(ctx context.Context) (port.UnitOfWork, error) {
	tx, err := f.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	return &sqlUnitOfWork{
		tx:       tx,
		products: newSQLProductRepository(tx, f.dialect),
		books:    newSQLAssetBookRepository(tx, f.dialect),
		models:   newSQLModelRepository(tx, f.dialect),
	}, nil
}

type sqlUnitOfWork struct {
	tx       *sql.Tx
	products *sqlProductRepository
	books    *sqlAssetBookRepository
	models   *sqlModelRepository
	closed   bool
}

func (u *sqlUnitOfWork) Products() port.ProductRepository     { return u.products }
func (u *sqlUnitOfWork) AssetBooks() port.AssetBookRepository { return u.books }
func (u *sqlUnitOfWork) Models() port.ModelRepository         { return u.models }

func (u *sqlUnitOfWork) Commit(ctx context.Context) error {
	if u.closed {
		return port.ErrClosed
	}
	u.closed = true

	if err := u.flush(ctx); err != nil {
		return abort(u.tx, err)
	}
	if err := u.tx.Commit(); err != nil {
		return MapError("commit", err)
	}
	return nil
}

func (u *sqlUnitOfWork) flush(ctx context.Context) error {
	if err := u.products.flush(ctx); err != nil {
		return err
	}
	if err := u.books.flush(ctx); err != nil {
		return err
	}
	return u.models.flush(ctx)
}

type rollbacker interface {
	Rollback() error
}

// abort rolls tx back after a failed flush. A rollback failure is joined to
// cause so neither is lost.
func abort(tx rollbacker, cause error) error {
	if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return errors.Join(cause, fmt.Errorf("rollback: %w", err))
	}
	return cause
}

func (u *sqlUnitOfWork) Rollback() error {
	if u.closed {
		return nil
	}
	u.closed = true
	if err := u.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return fmt.Errorf("rollback: %w", err)
	}
	return nil
}

// checkVersion guards an aggregate row loaded at version loaded. A bumped
// version is written with a compare-and-set; an unchanged one is re-read
// under a row lock so concurrent writers of the same key serialize.
func checkVersion(ctx context.Context, tx *sql.Tx, d Dialect, table, keyColumn, key string, loaded, current int) error {
	if current != loaded {
		res, err := tx.ExecContext(ctx,
			d.Rebind(fmt.Sprintf(`UPDATE %s SET version_number = ? WHERE %s = ? AND version_number = ?`, table, keyColumn)),
			current, key, loaded,
		)
		if err != nil {
			return MapError("update "+table, err)
		}
		rows, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("update %s: %w", table, err)
		}
		if rows == 0 {
			return conflict(table, key)
		}
		return nil
	}

	var stored int
	err := tx.QueryRowContext(ctx,
		d.Rebind(fmt.Sprintf(`SELECT version_number FROM %s WHERE %s = ? FOR UPDATE`, table, keyColumn)),
		key,
	).Scan(&stored)
	if errors.Is(err, sql.ErrNoRows) {
		return conflict(table, key)
	}
	if err != nil {
		return MapError("lock "+table, err)
	}
	if stored != loaded {
		return conflict(table, key)
	}
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	return slices.Sorted(maps.Keys(m))
}
