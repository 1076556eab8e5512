package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/rl1809/allocation/internal/core/domain"
)

type trackedAssetBook struct {
	book   *domain.AssetBook
	loaded *assetBookRecord
}

type sqlAssetBookRepository struct {
	tx      *sql.Tx
	dialect Dialect
	tracked map[string]*trackedAssetBook
}

func newSQLAssetBookRepository(tx *sql.Tx, dialect Dialect) *sqlAssetBookRepository {
	return &sqlAssetBookRepository{tx: tx, dialect: dialect, tracked: make(map[string]*trackedAssetBook)}
}

func (r *sqlAssetBookRepository) Add(book *domain.AssetBook) {
	r.tracked[book.Symbol] = &trackedAssetBook{book: book}
}

func (r *sqlAssetBookRepository) Get(ctx context.Context, symbol string) (*domain.AssetBook, error) {
	if t, ok := r.tracked[symbol]; ok {
		return t.book, nil
	}

	rec, found, err := r.load(ctx, symbol)
	if err != nil || !found {
		return nil, err
	}

	book := assetBookFromRecord(rec)
	r.tracked[symbol] = &trackedAssetBook{book: book, loaded: &rec}
	return book, nil
}

func (r *sqlAssetBookRepository) load(ctx context.Context, symbol string) (assetBookRecord, bool, error) {
	rec := assetBookRecord{}
	err := r.tx.QueryRowContext(ctx,
		r.dialect.Rebind(`SELECT symbol, version_number FROM asset_books WHERE symbol = ?`), symbol,
	).Scan(&rec.Symbol, &rec.Version)
	if errors.Is(err, sql.ErrNoRows) {
		return rec, false, nil
	}
	if err != nil {
		return rec, false, fmt.Errorf("query asset book %s: %w", symbol, err)
	}

	rows, err := r.tx.QueryContext(ctx,
		r.dialect.Rebind(`SELECT symbol, source FROM assets WHERE symbol = ? ORDER BY source`), symbol,
	)
	if err != nil {
		return rec, false, fmt.Errorf("query assets %s: %w", symbol, err)
	}
	index := make(map[string]int)
	for rows.Next() {
		var a assetRecord
		if err := rows.Scan(&a.Symbol, &a.Source); err != nil {
			rows.Close()
			return rec, false, fmt.Errorf("scan asset: %w", err)
		}
		index[a.Source] = len(rec.Assets)
		rec.Assets = append(rec.Assets, a)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return rec, false, fmt.Errorf("query assets %s: %w", symbol, err)
	}

	rows, err = r.tx.QueryContext(ctx, r.dialect.Rebind(`
		SELECT source, symbol, datetime_t, position, created_at
		FROM trackers WHERE symbol = ?
		ORDER BY created_at, id`), symbol,
	)
	if err != nil {
		return rec, false, fmt.Errorf("query trackers %s: %w", symbol, err)
	}
	defer rows.Close()
	for rows.Next() {
		var source string
		var t domain.Tracker
		if err := rows.Scan(&source, &t.Symbol, &t.DatetimeT, &t.Position, &t.CreatedAt); err != nil {
			return rec, false, fmt.Errorf("scan tracker: %w", err)
		}
		if i, ok := index[source]; ok {
			rec.Assets[i].Trackers = append(rec.Assets[i].Trackers, t)
		}
	}
	if err := rows.Err(); err != nil {
		return rec, false, fmt.Errorf("query trackers %s: %w", symbol, err)
	}
	return rec, true, nil
}

func (r *sqlAssetBookRepository) flush(ctx context.Context) error {
	for _, symbol := range sortedKeys(r.tracked) {
		if err := r.save(ctx, r.tracked[symbol]); err != nil {
			return err
		}
	}
	return nil
}

type trackerRow struct {
	symbol    string
	datetimeT string
	position  int
}

func rowOf(t domain.Tracker) trackerRow {
	return trackerRow{symbol: t.Symbol, datetimeT: t.DatetimeT, position: t.Position}
}

func (r *sqlAssetBookRepository) save(ctx context.Context, t *trackedAssetBook) error {
	current := assetBookToRecord(t.book)

	previous := make(map[string]assetRecord)
	if t.loaded == nil {
		_, err := r.tx.ExecContext(ctx,
			r.dialect.Rebind(`INSERT INTO asset_books (symbol, version_number) VALUES (?, ?)`),
			current.Symbol, current.Version,
		)
		if err != nil {
			return MapError("insert asset book "+current.Symbol, err)
		}
	} else {
		err := checkVersion(ctx, r.tx, r.dialect, "asset_books", "symbol", current.Symbol, t.loaded.Version, current.Version)
		if err != nil {
			return err
		}
		for _, a := range t.loaded.Assets {
			previous[a.Source] = a
		}
	}

	for _, a := range current.Assets {
		prev, existed := previous[a.Source]
		if !existed {
			_, err := r.tx.ExecContext(ctx,
				r.dialect.Rebind(`INSERT INTO assets (symbol, source) VALUES (?, ?)`),
				current.Symbol, a.Source,
			)
			if err != nil {
				return MapError("insert asset "+a.Source, err)
			}
		}
		if err := r.syncTrackers(ctx, current.Symbol, a.Source, prev.Trackers, a.Trackers); err != nil {
			return err
		}
	}
	return nil
}

func (r *sqlAssetBookRepository) syncTrackers(ctx context.Context, symbol, source string, before, after []domain.Tracker) error {
	held := make(map[trackerRow]bool, len(before))
	for _, t := range before {
		held[rowOf(t)] = true
	}

	for _, t := range after {
		if held[rowOf(t)] {
			delete(held, rowOf(t))
			continue
		}
		_, err := r.tx.ExecContext(ctx, r.dialect.Rebind(`
			INSERT INTO trackers (id, symbol, source, datetime_t, position, created_at)
			VALUES (?, ?, ?, ?, ?, ?)`),
			uuid.NewString(), symbol, source, t.DatetimeT, t.Position, t.CreatedAt,
		)
		if err != nil {
			return MapError("insert tracker "+symbol, err)
		}
	}

	for row := range held {
		_, err := r.tx.ExecContext(ctx, r.dialect.Rebind(`
			DELETE FROM trackers
			WHERE symbol = ? AND source = ? AND datetime_t = ? AND position = ?`),
			symbol, source, row.datetimeT, row.position,
		)
		if err != nil {
			return MapError("delete tracker "+symbol, err)
		}
	}
	return nil
}

type sqlModelRepository struct {
	tx      *sql.Tx
	dialect Dialect
	staged  []domain.AIModel
}

func newSQLModelRepository(tx *sql.Tx, dialect Dialect) *sqlModelRepository {
	return &sqlModelRepository{tx: tx, dialect: dialect}
}

func (r *sqlModelRepository) Add(model domain.AIModel) {
	if model.ID == "" {
		model.ID = uuid.NewString()
	}
	r.staged = append(r.staged, model)
}

// List returns the committed models for symbol followed by the ones staged
// in this unit of work.
func (r *sqlModelRepository) List(ctx context.Context, symbol string) ([]domain.AIModel, error) {
	rows, err := r.tx.QueryContext(ctx, r.dialect.Rebind(`
		SELECT id, symbol, source, feature_counts, model_name, ai_type, hashtag, accuracy_score, created_at
		FROM ai_models WHERE symbol = ?
		ORDER BY created_at, id`), symbol,
	)
	if err != nil {
		return nil, fmt.Errorf("query models %s: %w", symbol, err)
	}
	defer rows.Close()

	var models []domain.AIModel
	for rows.Next() {
		var m domain.AIModel
		var hashtag sql.NullString
		err := rows.Scan(&m.ID, &m.Symbol, &m.Source, &m.FeatureCounts, &m.ModelName, &m.AIType, &hashtag, &m.AccuracyScore, &m.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan model: %w", err)
		}
		m.Hashtag = hashtag.String
		models = append(models, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query models %s: %w", symbol, err)
	}

	for _, m := range r.staged {
		if m.Symbol == symbol {
			models = append(models, m)
		}
	}
	return models, nil
}

func (r *sqlModelRepository) flush(ctx context.Context) error {
	for _, m := range r.staged {
		hashtag := sql.NullString{String: m.Hashtag, Valid: m.Hashtag != ""}
		_, err := r.tx.ExecContext(ctx, r.dialect.Rebind(`
			INSERT INTO ai_models (id, symbol, source, feature_counts, model_name, ai_type, hashtag, accuracy_score, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`),
			m.ID, m.Symbol, m.Source, m.FeatureCounts, m.ModelName, m.AIType, hashtag, m.AccuracyScore, m.CreatedAt,
		)
		if err != nil {
			return MapError("insert model "+m.ID, err)
		}
	}
	return nil
}
