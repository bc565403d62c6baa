package poi

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/semaphore"

	"github.com/rhymeas/tripweaver/app/observability/metrics"
	"github.com/rhymeas/tripweaver/internal/api/border"
	"github.com/rhymeas/tripweaver/internal/cache"
	"github.com/rhymeas/tripweaver/internal/types"
)

const (
	poiTTL            = 24 * time.Hour
	providerTimeout   = 4 * time.Second
	maxInFlightCalls  = 6
	dedupRadiusMeters = 50.0
)

var _ Aggregator = (*AggregatorImpl)(nil)

// Aggregator fans out to all configured POI providers, deduplicates and
// merges their results, and drops candidates outside the expected country.
type Aggregator interface {
	FindPOIs(ctx context.Context, area SearchArea, categories []string, limit int, expectedCountry string) ([]types.POICandidate, error)
}

type AggregatorImpl struct {
	logger    *slog.Logger
	providers []Provider
	store     cache.Store
	guard     border.Guard
	sem       *semaphore.Weighted
}

func NewAggregator(providers []Provider, store cache.Store, guard border.Guard, logger *slog.Logger) *AggregatorImpl {
	return &AggregatorImpl{
		logger:    logger,
		providers: providers,
		store:     store,
		guard:     guard,
		sem:       semaphore.NewWeighted(maxInFlightCalls),
	}
}

type providerResult struct {
	provider   string
	candidates []types.POICandidate
	err        error
}

// FindPOIs queries all providers concurrently with per-provider timeouts.
// Partial results are acceptable; a slow or failing provider never blocks
// the others. Returns at most limit candidates ordered by rating.
func (a *AggregatorImpl) FindPOIs(ctx context.Context, area SearchArea, categories []string, limit int, expectedCountry string) ([]types.POICandidate, error) {
	ctx, span := otel.Tracer("POIAggregator").Start(ctx, "FindPOIs", trace.WithAttributes(
		attribute.Float64("area.lat", area.Center.Latitude),
		attribute.Float64("area.lon", area.Center.Longitude),
		attribute.Float64("area.radius_km", area.RadiusKm),
		attribute.Int("limit", limit),
	))
	defer span.End()

	key := poiCacheKey(area, categories)
	var cached []types.POICandidate
	if cache.GetJSON(ctx, a.store, cache.NamespacePOI, key, &cached) {
		span.SetAttributes(attribute.Bool("cache.hit", true))
		return a.borderFilter(ctx, cached, expectedCountry, limit), nil
	}

	resultCh := make(chan providerResult, len(a.providers))
	var wg sync.WaitGroup
	for _, provider := range a.providers {
		wg.Add(1)
		go func(p Provider) {
			defer wg.Done()
			if err := a.sem.Acquire(ctx, 1); err != nil {
				resultCh <- providerResult{provider: p.Name(), err: err}
				return
			}
			defer a.sem.Release(1)

			callCtx, cancel := context.WithTimeout(ctx, providerTimeout)
			defer cancel()
			candidates, err := p.POIsNear(callCtx, area, categories)
			resultCh <- providerResult{provider: p.Name(), candidates: candidates, err: err}
		}(provider)
	}
	wg.Wait()
	close(resultCh)

	var raw []types.POICandidate
	failures := 0
	for res := range resultCh {
		if res.err != nil {
			failures++
			a.logger.WarnContext(ctx, "poi provider failed, proceeding with partial results",
				slog.String("provider", res.provider), slog.Any("error", res.err))
			metrics.Get().ProviderFallbacksTotal.Add(ctx, 1,
				metric.WithAttributes(attribute.String("kind", "poi"), attribute.String("provider", res.provider)))
			continue
		}
		raw = append(raw, res.candidates...)
	}
	if len(a.providers) > 0 && failures == len(a.providers) {
		span.SetStatus(codes.Error, "all poi providers failed")
		return nil, fmt.Errorf("all %d poi providers failed: %w", failures, types.ErrProviderUnavailable)
	}

	merged := Dedupe(raw)
	span.SetAttributes(
		attribute.Int("pois.raw", len(raw)),
		attribute.Int("pois.merged", len(merged)),
		attribute.Int("providers.failed", failures),
	)
	if len(raw) > 0 {
		metrics.Get().PoiDedupRatio.Record(ctx, 1-float64(len(merged))/float64(len(raw)))
	}

	if err := cache.SetJSON(ctx, a.store, cache.NamespacePOI, key, merged, poiTTL); err != nil {
		a.logger.WarnContext(ctx, "failed to cache poi results", slog.Any("error", err))
	}

	span.SetStatus(codes.Ok, "pois aggregated")
	return a.borderFilter(ctx, merged, expectedCountry, limit), nil
}

// poiCacheKey keys on the rounded search circle and the sorted category set.
func poiCacheKey(area SearchArea, categories []string) string {
	sorted := append([]string(nil), categories...)
	sort.Strings(sorted)
	areaHash := cache.Key(fmt.Sprintf("%.4f:%.4f:%.1f",
		area.Center.Latitude, area.Center.Longitude, area.RadiusKm))
	categoryHash := cache.Key(strings.Join(sorted, ","))
	return areaHash + ":" + categoryHash
}

// borderFilter drops candidates outside expectedCountry, then orders by
// rating with the deterministic tie-break and applies limit.
func (a *AggregatorImpl) borderFilter(ctx context.Context, candidates []types.POICandidate, expectedCountry string, limit int) []types.POICandidate {
	kept := make([]types.POICandidate, 0, len(candidates))
	for _, c := range candidates {
		if expectedCountry != "" && !a.guard.SameCountry(ctx, c.Coordinates, expectedCountry) {
			a.logger.DebugContext(ctx, "dropping poi outside trip country",
				slog.String("poi", c.Name), slog.String("expected", expectedCountry))
			continue
		}
		kept = append(kept, c)
	}
	sortCandidates(kept)
	if limit > 0 && len(kept) > limit {
		kept = kept[:limit]
	}
	return kept
}

func sortCandidates(candidates []types.POICandidate) {
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Rating != candidates[j].Rating {
			return candidates[i].Rating > candidates[j].Rating
		}
		return candidates[i].ID < candidates[j].ID
	})
}

// Dedupe merges candidates that are the same place reported by different
// providers: within ~50 m of each other with fuzzy-matching names. The
// higher-rated, more complete record wins and provider sources are unioned.
// Deterministic: identical input yields identical output, order included.
func Dedupe(candidates []types.POICandidate) []types.POICandidate {
	// Sort first so merge order does not depend on provider arrival order.
	sorted := append([]types.POICandidate(nil), candidates...)
	sortCandidates(sorted)

	var merged []types.POICandidate
	for _, c := range sorted {
		matched := false
		for i := range merged {
			if sameplace(merged[i], c) {
				merged[i] = mergePair(merged[i], c)
				matched = true
				break
			}
		}
		if !matched {
			merged = append(merged, c)
		}
	}
	sortCandidates(merged)
	return merged
}

func sameplace(a, b types.POICandidate) bool {
	if types.DistanceKm(a.Coordinates, b.Coordinates)*1000 > dedupRadiusMeters {
		return false
	}
	return fuzzyNameMatch(a.Name, b.Name)
}

func fuzzyNameMatch(a, b string) bool {
	na, nb := normalizeName(a), normalizeName(b)
	if na == nb {
		return true
	}
	return strings.Contains(na, nb) || strings.Contains(nb, na)
}

func normalizeName(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), " "))
}

// mergePair keeps the winner's identity and rating, unions sources and
// kinds. The winner is the higher-rated record, completeness breaking ties.
func mergePair(a, b types.POICandidate) types.POICandidate {
	winner, loser := a, b
	if b.Rating > a.Rating || (b.Rating == a.Rating && completeness(b) > completeness(a)) {
		winner, loser = b, a
	}
	winner.SourceProviders = unionStrings(winner.SourceProviders, loser.SourceProviders)
	winner.Kinds = unionStrings(winner.Kinds, loser.Kinds)
	if winner.Category == "" {
		winner.Category = loser.Category
	}
	return winner
}

func completeness(c types.POICandidate) int {
	score := 0
	if c.Category != "" {
		score++
	}
	score += len(c.Kinds)
	return score
}

func unionStrings(a, b []string) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	var out []string
	for _, s := range append(append([]string(nil), a...), b...) {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
