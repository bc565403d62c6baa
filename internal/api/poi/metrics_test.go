package poi

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/rhymeas/tripweaver/internal/types"
)

var metricReader *sdkmetric.ManualReader

// TestMain installs a manual-reader meter provider before any test binds the
// global instruments, so recorded values can be asserted in-process.
func TestMain(m *testing.M) {
	metricReader = sdkmetric.NewManualReader()
	otel.SetMeterProvider(sdkmetric.NewMeterProvider(sdkmetric.WithReader(metricReader)))
	os.Exit(m.Run())
}

func dedupRatioHistogram(t *testing.T) (count uint64, sum float64) {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, metricReader.Collect(context.Background(), &rm))
	for _, scope := range rm.ScopeMetrics {
		for _, instrument := range scope.Metrics {
			if instrument.Name != "poi_dedup_ratio" {
				continue
			}
			hist, ok := instrument.Data.(metricdata.Histogram[float64])
			if !ok {
				continue
			}
			for _, dp := range hist.DataPoints {
				count += dp.Count
				sum += dp.Sum
			}
			return count, sum
		}
	}
	return 0, 0
}

func TestFindPOIsRecordsDedupRatio(t *testing.T) {
	ctx := context.Background()
	countBefore, sumBefore := dedupRatioHistogram(t)

	// Four raw candidates, one cross-provider duplicate pair: ratio 0.25.
	otm := &MockProvider{name: "opentripmap"}
	otm.On("POIsNear", mock.Anything, mock.Anything, mock.Anything).Return([]types.POICandidate{
		candidate("otm:1", "Schloss Linderhof", 47.5700, 10.9600, 4.6, "opentripmap"),
		candidate("otm:2", "Eibsee", 47.4566, 10.9750, 4.7, "opentripmap"),
		candidate("otm:3", "Zugspitze", 47.4211, 10.9854, 4.9, "opentripmap"),
	}, nil)
	gapy := &MockProvider{name: "geoapify"}
	gapy.On("POIsNear", mock.Anything, mock.Anything, mock.Anything).Return([]types.POICandidate{
		candidate("gap:1", "Linderhof", 47.5701, 10.9601, 4.4, "geoapify"),
	}, nil)

	guard := new(MockGuard)
	guard.On("SameCountry", mock.Anything, mock.Anything, "DE").Return(true)

	agg := newTestAggregator(t, guard, otm, gapy)
	got, err := agg.FindPOIs(ctx, testArea, []string{"castles"}, 10, "DE")
	require.NoError(t, err)
	require.Len(t, got, 3)

	countAfter, sumAfter := dedupRatioHistogram(t)
	require.Equal(t, countBefore+1, countAfter)
	assert.InDelta(t, 0.25, sumAfter-sumBefore, 1e-9)
}
