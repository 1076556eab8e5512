package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/rl1809/allocation/internal/core/domain"
)

type trackedProduct struct {
	product *domain.Product
	// loaded is nil for products staged with Add.
	loaded *productRecord
}

type sqlProductRepository struct {
	tx      *sql.Tx
	dialect Dialect
	tracked map[string]*trackedProduct
}

func newSQLProductRepository(tx *sql.Tx, dialect Dialect) *sqlProductRepository {
	return &sqlProductRepository{tx: tx, dialect: dialect, tracked: make(map[string]*trackedProduct)}
}

func (r *sqlProductRepository) Add(product *domain.Product) {
	r.tracked[product.SKU] = &trackedProduct{product: product}
}

func (r *sqlProductRepository) Get(ctx context.Context, sku string) (*domain.Product, error) {
	if t, ok := r.tracked[sku]; ok {
		return t.product, nil
	}

	rec, found, err := r.load(ctx, sku)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}

	product := productFromRecord(rec)
	r.tracked[sku] = &trackedProduct{product: product, loaded: &rec}
	return product, nil
}

func (r *sqlProductRepository) load(ctx context.Context, sku string) (productRecord, bool, error) {
	rec := productRecord{}
	err := r.tx.QueryRowContext(ctx,
		r.dialect.Rebind(`SELECT sku, version_number FROM products WHERE sku = ?`), sku,
	).Scan(&rec.SKU, &rec.Version)
	if errors.Is(err, sql.ErrNoRows) {
		return rec, false, nil
	}
	if err != nil {
		return rec, false, fmt.Errorf("query product %s: %w", sku, err)
	}

	if rec.Batches, err = r.loadBatches(ctx, sku); err != nil {
		return rec, false, err
	}
	if err := r.loadAllocations(ctx, sku, rec.Batches); err != nil {
		return rec, false, err
	}
	return rec, true, nil
}

func (r *sqlProductRepository) loadBatches(ctx context.Context, sku string) ([]batchRecord, error) {
	rows, err := r.tx.QueryContext(ctx, r.dialect.Rebind(`
		SELECT reference, sku, purchased_quantity, eta
		FROM batches WHERE sku = ? ORDER BY seq, reference`), sku,
	)
	if err != nil {
		return nil, fmt.Errorf("query batches %s: %w", sku, err)
	}
	defer rows.Close()

	var batches []batchRecord
	for rows.Next() {
		var b batchRecord
		var eta sql.NullTime
		if err := rows.Scan(&b.Reference, &b.SKU, &b.PurchasedQuantity, &eta); err != nil {
			return nil, fmt.Errorf("scan batch: %w", err)
		}
		if eta.Valid {
			t := eta.Time
			b.ETA = &t
		}
		batches = append(batches, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query batches %s: %w", sku, err)
	}
	return batches, nil
}

func (r *sqlProductRepository) loadAllocations(ctx context.Context, sku string, batches []batchRecord) error {
	index := make(map[string]int, len(batches))
	for i, b := range batches {
		index[b.Reference] = i
	}

	rows, err := r.tx.QueryContext(ctx, r.dialect.Rebind(`
		SELECT a.batch_reference, a.order_id, a.sku, a.qty
		FROM allocations a
		JOIN batches b ON b.reference = a.batch_reference
		WHERE b.sku = ?
		ORDER BY a.batch_reference, a.order_id`), sku,
	)
	if err != nil {
		return fmt.Errorf("query allocations %s: %w", sku, err)
	}
	defer rows.Close()

	for rows.Next() {
		var ref string
		var line domain.OrderLine
		if err := rows.Scan(&ref, &line.OrderID, &line.SKU, &line.Qty); err != nil {
			return fmt.Errorf("scan allocation: %w", err)
		}
		if i, ok := index[ref]; ok {
			batches[i].Allocations = append(batches[i].Allocations, line)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("query allocations %s: %w", sku, err)
	}
	return nil
}

func (r *sqlProductRepository) flush(ctx context.Context) error {
	for _, sku := range sortedKeys(r.tracked) {
		if err := r.save(ctx, r.tracked[sku]); err != nil {
			return err
		}
	}
	return nil
}

func (r *sqlProductRepository) save(ctx context.Context, t *trackedProduct) error {
	current := productToRecord(t.product)

	previous := make(map[string]batchRecord)
	if t.loaded == nil {
		_, err := r.tx.ExecContext(ctx,
			r.dialect.Rebind(`INSERT INTO products (sku, version_number) VALUES (?, ?)`),
			current.SKU, current.Version,
		)
		if err != nil {
			return MapError("insert product "+current.SKU, err)
		}
	} else {
		err := checkVersion(ctx, r.tx, r.dialect, "products", "sku", current.SKU, t.loaded.Version, current.Version)
		if err != nil {
			return err
		}
		for _, b := range t.loaded.Batches {
			previous[b.Reference] = b
		}
	}

	// Batches are only ever appended, so the slice index is the insertion order.
	for seq, b := range current.Batches {
		prev, existed := previous[b.Reference]
		if !existed {
			if err := r.insertBatch(ctx, b, seq); err != nil {
				return err
			}
		}
		if err := r.syncAllocations(ctx, b.Reference, prev.Allocations, b.Allocations); err != nil {
			return err
		}
	}
	return nil
}

func (r *sqlProductRepository) insertBatch(ctx context.Context, b batchRecord, seq int) error {
	var eta sql.NullTime
	if b.ETA != nil {
		eta = sql.NullTime{Time: *b.ETA, Valid: true}
	}
	_, err := r.tx.ExecContext(ctx, r.dialect.Rebind(`
		INSERT INTO batches (reference, sku, purchased_quantity, eta, seq)
		VALUES (?, ?, ?, ?, ?)`),
		b.Reference, b.SKU, b.PurchasedQuantity, eta, seq,
	)
	return MapError("insert batch "+b.Reference, err)
}

func (r *sqlProductRepository) syncAllocations(ctx context.Context, ref string, before, after []domain.OrderLine) error {
	held := make(map[domain.OrderLine]bool, len(before))
	for _, line := range before {
		held[line] = true
	}

	for _, line := range after {
		if held[line] {
			delete(held, line)
			continue
		}
		_, err := r.tx.ExecContext(ctx, r.dialect.Rebind(`
			INSERT INTO allocations (batch_reference, order_id, sku, qty)
			VALUES (?, ?, ?, ?)`),
			ref, line.OrderID, line.SKU, line.Qty,
		)
		if err != nil {
			return MapError("insert allocation "+ref, err)
		}
	}

	// Whatever is left was deallocated.
	for _, line := range before {
		if !held[line] {
			continue
		}
		_, err := r.tx.ExecContext(ctx, r.dialect.Rebind(`
			DELETE FROM allocations
			WHERE batch_reference = ? AND order_id = ? AND sku = ? AND qty = ?`),
			ref, line.OrderID, line.SKU, line.Qty,
		)
		if err != nil {
			return MapError("delete allocation "+ref, err)
		}
	}
	return nil
}
