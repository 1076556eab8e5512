package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/rl1809/allocation/internal/core/domain"
	"github.com/rl1809/allocation/internal/platform/logger"
	"github.com/rl1809/allocation/internal/port"
)

// MarketService runs the tracker and model use cases over AssetBook aggregates.
type MarketService struct {
	runner unitOfWorkRunner
}

func NewMarketService(uows port.UnitOfWorkFactory, log *logger.Logger) *MarketService {
	return &MarketService{runner: unitOfWorkRunner{uows: uows, log: log}}
}

type TrackerAllocation struct {
	Symbol   string `json:"symbol"`
	Position int    `json:"position"`
}

type ModelInput struct {
	Symbol        string
	Source        string
	FeatureCounts int
	ModelName     string
	AIType        string
	Hashtag       string
	AccuracyScore float64
}

type ModelView struct {
	ID            string    `json:"id"`
	Symbol        string    `json:"symbol"`
	Source        string    `json:"source"`
	FeatureCounts int       `json:"feature_counts"`
	ModelName     string    `json:"model_name"`
	AIType        string    `json:"ai_type"`
	Hashtag       string    `json:"hashtag,omitempty"`
	AccuracyScore float64   `json:"accuracy_score"`
	FilePath      string    `json:"file_path"`
	CreatedAt     time.Time `json:"created_at"`
}

// AddAsset registers source for symbol, creating the symbol's book on first use.
// Adding a source that is already registered is a no-op.
func (s *MarketService) AddAsset(ctx context.Context, symbol, source string) error {
	if strings.TrimSpace(symbol) == "" || strings.TrimSpace(source) == "" {
		return fmt.Errorf("%w: asset needs a symbol and a source", ErrInvalidInput)
	}

	return s.runner.run(ctx, "add_asset", true, func(ctx context.Context, uow port.UnitOfWork) error {
		book, err := uow.AssetBooks().Get(ctx, symbol)
		if err != nil {
			return err
		}
		if book == nil {
			book = domain.NewAssetBook(symbol)
			uow.AssetBooks().Add(book)
		}
		if book.Asset(source) == nil {
			book.AddAsset(domain.NewAsset(symbol, source))
		}
		return nil
	})
}

func (s *MarketService) AllocateTracker(ctx context.Context, symbol, datetimeT string, position int) (TrackerAllocation, error) {
	if strings.TrimSpace(symbol) == "" || strings.TrimSpace(datetimeT) == "" {
		return TrackerAllocation{}, fmt.Errorf("%w: tracker needs a symbol and a datetime", ErrInvalidInput)
	}

	var result TrackerAllocation
	err := s.runner.run(ctx, "allocate_tracker", true, func(ctx context.Context, uow port.UnitOfWork) error {
		book, err := uow.AssetBooks().Get(ctx, symbol)
		if err != nil {
			return err
		}
		if book == nil {
			return fmt.Errorf("%w: %s", ErrInvalidSymbol, symbol)
		}
		sym, pos, err := book.AllocateTracker(domain.NewTracker(symbol, datetimeT, position))
		if err != nil {
			return err
		}
		result = TrackerAllocation{Symbol: sym, Position: pos}
		return nil
	})
	return result, err
}

func (s *MarketService) RegisterModel(ctx context.Context, in ModelInput) (ModelView, error) {
	if strings.TrimSpace(in.Symbol) == "" || strings.TrimSpace(in.ModelName) == "" || in.FeatureCounts < 0 {
		return ModelView{}, fmt.Errorf("%w: model needs a symbol and a name", ErrInvalidInput)
	}

	model := domain.NewAIModel(in.Symbol, in.Source, in.FeatureCounts, in.ModelName, in.AIType, in.Hashtag, in.AccuracyScore)
	model.ID = uuid.NewString()

	err := s.runner.run(ctx, "register_model", true, func(ctx context.Context, uow port.UnitOfWork) error {
		uow.Models().Add(model)
		return nil
	})
	if err != nil {
		return ModelView{}, err
	}
	return modelView(model), nil
}

func (s *MarketService) ListModels(ctx context.Context, symbol string) ([]ModelView, error) {
	var views []ModelView
	err := s.runner.run(ctx, "list_models", false, func(ctx context.Context, uow port.UnitOfWork) error {
		models, err := uow.Models().List(ctx, symbol)
		if err != nil {
			return err
		}
		views = make([]ModelView, 0, len(models))
		for _, m := range models {
			views = append(views, modelView(m))
		}
		return nil
	})
	return views, err
}

func modelView(m domain.AIModel) ModelView {
	return ModelView{
		ID:            m.ID,
		Symbol:        m.Symbol,
		Source:        m.Source,
		FeatureCounts: m.FeatureCounts,
		ModelName:     m.ModelName,
		AIType:        m.AIType,
		Hashtag:       m.Hashtag,
		AccuracyScore: m.AccuracyScore,
		FilePath:      m.FilePath(),
		CreatedAt:     m.CreatedAt,
	}
}
