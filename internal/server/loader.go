package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/playpcd/pcdtrainer/internal/cache"
	"github.com/playpcd/pcdtrainer/internal/pcd"
)

// ScenarioLoader fronts the store for scenario reads. Parsed scenarios are
// kept in a process-local LRU and the summary list in the shared cache.
// Writes go through it so both are invalidated.
type ScenarioLoader struct {
	store  Store
	cache  cache.ScenarioCache
	parsed *expirable.LRU[string, *pcd.Scenario]
	logger *slog.Logger
}

const parsedScenarioCacheSize = 64

func NewScenarioLoader(store Store, c cache.ScenarioCache, ttl time.Duration, logger *slog.Logger) *ScenarioLoader {
	if c == nil {
		c = cache.Noop{}
	}
	return &ScenarioLoader{
		store:  store,
		cache:  c,
		parsed: expirable.NewLRU[string, *pcd.Scenario](parsedScenarioCacheSize, nil, ttl),
		logger: logger,
	}
}

// Get returns the scenario with the given id. The result is shared and
// must not be modified.
func (l *ScenarioLoader) Get(ctx context.Context, id string) (*pcd.Scenario, error) {
	if sc, ok := l.parsed.Get(id); ok {
		return sc, nil
	}
	sc, err := l.store.GetScenario(ctx, id)
	if err != nil {
		return nil, err
	}
	l.parsed.Add(id, sc)
	return sc, nil
}

// List returns the scenario summaries, oldest first. Cache failures fall
// back to the store.
func (l *ScenarioLoader) List(ctx context.Context) ([]ScenarioSummary, error) {
	data, err := l.cache.Scenarios(ctx)
	if err == nil {
		var list []ScenarioSummary
		if err := json.Unmarshal(data, &list); err == nil {
			return list, nil
		}
		l.logger.Warn("discarding corrupt scenario list cache")
	} else if !errors.Is(err, cache.ErrMiss) {
		l.logger.Warn("scenario list cache unavailable", "error", err)
	}

	list, err := l.store.ListScenarios(ctx)
	if err != nil {
		return nil, err
	}
	if data, err := json.Marshal(list); err == nil {
		if err := l.cache.SetScenarios(ctx, data); err != nil {
			l.logger.Warn("failed to cache scenario list", "error", err)
		}
	}
	return list, nil
}

// Random picks one scenario summary uniformly.
func (l *ScenarioLoader) Random(ctx context.Context) (ScenarioSummary, error) {
	list, err := l.List(ctx)
	if err != nil {
		return ScenarioSummary{}, err
	}
	if len(list) == 0 {
		return ScenarioSummary{}, ErrNotFound
	}
	return list[rand.IntN(len(list))], nil
}

func (l *ScenarioLoader) Create(ctx context.Context, sc *pcd.Scenario) error {
	if err := l.store.CreateScenario(ctx, sc); err != nil {
		return err
	}
	l.parsed.Remove(sc.ID)
	l.invalidate(ctx)
	return nil
}

func (l *ScenarioLoader) Delete(ctx context.Context, id string) error {
	if err := l.store.DeleteScenario(ctx, id); err != nil {
		return err
	}
	l.parsed.Remove(id)
	l.invalidate(ctx)
	return nil
}

func (l *ScenarioLoader) invalidate(ctx context.Context) {
	if err := l.cache.Invalidate(ctx); err != nil {
		l.logger.Warn("failed to invalidate scenario list cache", "error", err)
	}
}
