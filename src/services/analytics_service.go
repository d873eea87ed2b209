package services

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/username/tradefolio/backend/src/logger"
	"github.com/username/tradefolio/backend/src/models"
	"github.com/username/tradefolio/backend/src/processors"
	"github.com/username/tradefolio/backend/src/store"
	"golang.org/x/sync/singleflight"
)

const ckUserAnalytics = "agg_user_analytics_%d"

// AnalyticsService maintains the per-user analytics snapshot and the
// freshness state machine around it. A user is Stale after any trade
// mutation and Fresh after a completed recompute; a read while Stale (or
// with no snapshot at all) recomputes synchronously rather than serving
// outdated data.
type AnalyticsService struct {
	trades    store.TradeStore
	analytics store.AnalyticsStore
	processor *processors.AnalyticsProcessor
	cache     *cache.Cache

	// Concurrent recomputes for the same user collapse into one flight.
	group singleflight.Group

	mu    sync.Mutex
	stale map[int64]bool
	// gens counts mutations per user. A flight that started before a
	// mutation carries an older generation, so its result is never
	// allowed to mark the user fresh.
	gens map[int64]uint64
}

func NewAnalyticsService(trades store.TradeStore, analytics store.AnalyticsStore, reportCache *cache.Cache) *AnalyticsService {
	return &AnalyticsService{
		trades:    trades,
		analytics: analytics,
		processor: processors.NewAnalyticsProcessor(),
		cache:     reportCache,
		stale:     make(map[int64]bool),
		gens:      make(map[int64]uint64),
	}
}

// MarkStale records that the user's snapshot no longer reflects the trade
// store. Called after every insert, update, delete, and import batch.
func (s *AnalyticsService) MarkStale(userID int64) {
	s.mu.Lock()
	s.stale[userID] = true
	s.gens[userID]++
	s.mu.Unlock()
	// Detach any in-flight recompute so later callers start a new one
	// instead of joining a flight that may predate this mutation.
	s.group.Forget(strconv.FormatInt(userID, 10))
	s.cache.Delete(fmt.Sprintf(ckUserAnalytics, userID))
	logger.L.Debug("Analytics marked stale", "userID", userID)
}

func (s *AnalyticsService) isStale(userID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stale[userID]
}

func (s *AnalyticsService) generation(userID int64) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gens[userID]
}

// markFreshAt clears the stale flag only when no mutation has landed since
// the given generation was observed. Returns false when the recompute that
// produced gen is already outdated.
func (s *AnalyticsService) markFreshAt(userID int64, gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gens[userID] != gen {
		return false
	}
	delete(s.stale, userID)
	return true
}

// GetAnalytics returns the user's snapshot, recomputing first when it is
// stale or missing. A user with zero trades gets a valid all-zero
// snapshot, never an error.
func (s *AnalyticsService) GetAnalytics(ctx context.Context, userID int64) (*models.Analytics, error) {
	if !s.isStale(userID) {
		cacheKey := fmt.Sprintf(ckUserAnalytics, userID)
		if cached, found := s.cache.Get(cacheKey); found {
			logger.L.Debug("Cache hit for analytics", "userID", userID)
			return cached.(*models.Analytics), nil
		}
		a, err := s.analytics.Get(ctx, userID)
		if err != nil {
			logger.L.Warn("Error reading stored analytics, recomputing", "userID", userID, "error", err)
		} else if a != nil {
			s.cache.Set(cacheKey, a, cache.DefaultExpiration)
			return a, nil
		}
	}
	return s.Recompute(ctx, userID)
}

type recomputeResult struct {
	snapshot *models.Analytics
	gen      uint64
}

// Recompute re-derives the snapshot from the full current trade set and
// replaces the stored record wholesale. Concurrent calls for one user are
// collapsed; every caller gets the single flight's result. A flight whose
// trade list may predate a concurrent mutation is discarded and re-run,
// so Fresh always reflects the mutation that caused the staleness.
func (s *AnalyticsService) Recompute(ctx context.Context, userID int64) (*models.Analytics, error) {
	key := strconv.FormatInt(userID, 10)
	for {
		v, err, _ := s.group.Do(key, func() (interface{}, error) {
			started := time.Now()
			// Read the generation before listing: a mutation committing
			// after this point advances it and invalidates the flight.
			gen := s.generation(userID)
			trades, err := s.trades.ListByUser(ctx, userID)
			if err != nil {
				return nil, fmt.Errorf("%w: listing trades for user %d: %v", ErrRecomputeFailed, userID, err)
			}

			a := s.processor.Compute(userID, trades, time.Now().UTC())

			if err := s.analytics.Replace(ctx, a); err != nil {
				return nil, fmt.Errorf("%w: replacing snapshot for user %d: %v", ErrRecomputeFailed, userID, err)
			}

			logger.L.Info("Analytics recomputed", "userID", userID,
				"trades", a.TotalTrades, "duration", time.Since(started))
			return recomputeResult{snapshot: a, gen: gen}, nil
		})
		if err != nil {
			return nil, err
		}

		res := v.(recomputeResult)
		if !s.markFreshAt(userID, res.gen) {
			logger.L.Debug("Recompute outdated by concurrent mutation, re-running", "userID", userID)
			s.group.Forget(key)
			continue
		}
		s.cache.Set(fmt.Sprintf(ckUserAnalytics, userID), res.snapshot, cache.DefaultExpiration)
		return res.snapshot, nil
	}
}
