package pharmacy

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/opdcare/opd/internal/platform/auth"
	"github.com/opdcare/opd/internal/platform/metrics"
	"github.com/opdcare/opd/pkg/pagination"
)

// StatsCache stores rendered inventory stats per hospital. Misses and
// failures both report false; the caller falls back to the database.
type StatsCache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, data []byte, ttl time.Duration)
	Delete(ctx context.Context, keys ...string)
}

// StockFeed is told about committed stock movements, e.g. to push them to
// live dashboards.
type StockFeed interface {
	Notify(ctx context.Context, hospitalID uuid.UUID, eventType string)
}

// EventInventoryChanged is the feed event sent after any stock movement.
const EventInventoryChanged = "inventory.changed"

func statsKey(hospitalID uuid.UUID) string {
	return "pharmacy:stats:" + hospitalID.String()
}

type Service struct {
	repo     Repository
	cache    StatsCache
	statsTTL time.Duration
	metrics  *metrics.Metrics
	feed     StockFeed
	logger   zerolog.Logger
	now      func() time.Time
}

func NewService(repo Repository, cache StatsCache, statsTTL time.Duration, m *metrics.Metrics, logger zerolog.Logger) *Service {
	return &Service{
		repo:     repo,
		cache:    cache,
		statsTTL: statsTTL,
		metrics:  m,
		logger:   logger.With().Str("component", "pharmacy").Logger(),
		now:      time.Now,
	}
}

// WithFeed attaches a live feed. Without one, stock movements only refresh
// the stats cache.
func (s *Service) WithFeed(f StockFeed) *Service {
	s.feed = f
	return s
}

func (s *Service) AddItem(ctx context.Context, p auth.Principal, req *CreateRequest) (*Item, error) {
	hospitalID, err := auth.HospitalFor(ctx, p, req.HospitalID)
	if err != nil {
		return nil, err
	}
	item := req.toItem(hospitalID, p.Actor())
	if err := s.repo.Create(ctx, item); err != nil {
		return nil, err
	}
	s.StockChanged(ctx, hospitalID)
	s.logger.Info().
		Str("item_id", item.ID.String()).
		Str("item", item.ItemName).
		Str("batch", item.BatchNumber).
		Int("quantity", item.Quantity).
		Str("hospital_id", hospitalID.String()).
		Msg("inventory item added")
	return item, nil
}

// Get returns ErrNotFound for items of hospitals p cannot access.
func (s *Service) Get(ctx context.Context, p auth.Principal, id uuid.UUID) (*Item, error) {
	item, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !p.CanAccessHospital(item.HospitalID) {
		return nil, ErrNotFound
	}
	return item, nil
}

func (s *Service) Update(ctx context.Context, p auth.Principal, id uuid.UUID, req *UpdateRequest) (*Item, error) {
	item, err := s.Get(ctx, p, id)
	if err != nil {
		return nil, err
	}
	req.apply(item, p.Actor())
	if err := s.repo.Update(ctx, item); err != nil {
		return nil, err
	}
	s.StockChanged(ctx, item.HospitalID)
	return item, nil
}

// Deactivate soft-deletes the item. Sales keep referencing it.
func (s *Service) Deactivate(ctx context.Context, p auth.Principal, id uuid.UUID) error {
	item, err := s.Get(ctx, p, id)
	if err != nil {
		return err
	}
	if err := s.repo.Deactivate(ctx, id, p.Actor()); err != nil {
		return err
	}
	s.StockChanged(ctx, item.HospitalID)
	s.logger.Info().Str("item_id", id.String()).Str("by", p.Actor()).Msg("inventory item deactivated")
	return nil
}

// AdjustQuantity applies a manual stock correction. It is a single
// conditional statement and does not serialize with a billing transaction
// that read the old quantity; the billing deduction re-checks on write.
func (s *Service) AdjustQuantity(ctx context.Context, p auth.Principal, id uuid.UUID, delta int) (*Item, error) {
	item, err := s.Get(ctx, p, id)
	if err != nil {
		return nil, err
	}
	updated, err := s.repo.AdjustQuantity(ctx, id, delta, p.Actor())
	switch {
	case errors.Is(err, ErrInsufficientStock):
		s.metrics.StockAdjustments.WithLabelValues("insufficient").Inc()
		s.logger.Warn().
			Str("item_id", id.String()).
			Int("change", delta).
			Int("quantity", item.Quantity).
			Msg("quantity adjustment rejected")
		return nil, err
	case err != nil:
		s.metrics.StockAdjustments.WithLabelValues("error").Inc()
		return nil, err
	}
	s.metrics.StockAdjustments.WithLabelValues("applied").Inc()
	s.StockChanged(ctx, updated.HospitalID)
	s.logger.Info().
		Str("item_id", id.String()).
		Int("change", delta).
		Int("quantity", updated.Quantity).
		Str("by", p.Actor()).
		Msg("inventory quantity updated")
	return updated, nil
}

func (s *Service) List(ctx context.Context, p auth.Principal, hospitalID uuid.UUID, f Filter, pg pagination.Params) ([]*Item, int, error) {
	hospitalID, err := auth.HospitalFor(ctx, p, hospitalID)
	if err != nil {
		return nil, 0, err
	}
	return s.repo.List(ctx, hospitalID, f, s.now(), pg.Limit, pg.Offset())
}

func (s *Service) LowStock(ctx context.Context, p auth.Principal, hospitalID uuid.UUID, pg pagination.Params) ([]*Item, int, error) {
	hospitalID, err := auth.HospitalFor(ctx, p, hospitalID)
	if err != nil {
		return nil, 0, err
	}
	return s.repo.LowStock(ctx, hospitalID, pg.Limit, pg.Offset())
}

// Expiring lists active items that expire within days, already expired ones included.
func (s *Service) Expiring(ctx context.Context, p auth.Principal, hospitalID uuid.UUID, days int, pg pagination.Params) ([]*Item, int, error) {
	hospitalID, err := auth.HospitalFor(ctx, p, hospitalID)
	if err != nil {
		return nil, 0, err
	}
	before := s.now().AddDate(0, 0, days)
	return s.repo.Expiring(ctx, hospitalID, before, pg.Limit, pg.Offset())
}

// Stats serves from the cache when possible.
func (s *Service) Stats(ctx context.Context, p auth.Principal, hospitalID uuid.UUID) (*Stats, error) {
	hospitalID, err := auth.HospitalFor(ctx, p, hospitalID)
	if err != nil {
		return nil, err
	}

	key := statsKey(hospitalID)
	if data, ok := s.cache.Get(ctx, key); ok {
		var st Stats
		if err := json.Unmarshal(data, &st); err == nil {
			s.metrics.CacheLookups.WithLabelValues("hit").Inc()
			return &st, nil
		}
	}
	s.metrics.CacheLookups.WithLabelValues("miss").Inc()

	st, err := s.repo.Stats(ctx, hospitalID, s.now())
	if err != nil {
		return nil, err
	}
	if data, err := json.Marshal(st); err == nil {
		s.cache.Set(ctx, key, data, s.statsTTL)
	}
	return st, nil
}

// StockChanged drops the cached stats of hospitalID and notifies the feed.
// Billing calls it after every committed deduction.
func (s *Service) StockChanged(ctx context.Context, hospitalID uuid.UUID) {
	s.cache.Delete(ctx, statsKey(hospitalID))
	if s.feed != nil {
		s.feed.Notify(ctx, hospitalID, EventInventoryChanged)
	}
}
