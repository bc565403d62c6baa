package routing

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/rhymeas/tripweaver/internal/types"
)

var metricReader *sdkmetric.ManualReader

// TestMain installs a manual-reader meter provider before any test binds the
// global instruments, so counter deltas can be asserted in-process.
func TestMain(m *testing.M) {
	metricReader = sdkmetric.NewManualReader()
	otel.SetMeterProvider(sdkmetric.NewMeterProvider(sdkmetric.WithReader(metricReader)))
	os.Exit(m.Run())
}

// counterTotal sums all datapoints of the named Int64 counter across
// attribute sets. Returns 0 when the instrument has not recorded yet.
func counterTotal(t *testing.T, name string) int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, metricReader.Collect(context.Background(), &rm))
	for _, scope := range rm.ScopeMetrics {
		for _, instrument := range scope.Metrics {
			if instrument.Name != name {
				continue
			}
			sum, ok := instrument.Data.(metricdata.Sum[int64])
			if !ok {
				continue
			}
			var total int64
			for _, dp := range sum.DataPoints {
				total += dp.Value
			}
			return total
		}
	}
	return 0
}

func TestGetRouteRecordsProviderFallback(t *testing.T) {
	ctx := context.Background()
	before := counterTotal(t, "provider_fallbacks_total")

	primary := &MockProvider{name: "osrm"}
	secondary := &MockProvider{name: "ors"}
	primary.On("GetRoute", mock.Anything, mock.Anything).
		Return(nil, &types.ProviderStatusError{Provider: "osrm", Code: 503})
	secondary.On("GetRoute", mock.Anything, mock.Anything).Return(validResult("ors", munich, berlin), nil)

	client, _ := newTestClient(t, primary, secondary)
	_, err := client.GetRoute(ctx, []types.Waypoint{munich, berlin}, types.ProfileDriving, types.PreferenceFastest)
	require.NoError(t, err)

	require.Equal(t, before+1, counterTotal(t, "provider_fallbacks_total"))
}

func TestGetRouteRecordsComputedAndCacheHit(t *testing.T) {
	ctx := context.Background()
	computedBefore := counterTotal(t, "routes_computed_total")
	hitsBefore := counterTotal(t, "cache_hits_total")

	provider := &MockProvider{name: "osrm"}
	provider.On("GetRoute", mock.Anything, mock.Anything).Return(validResult("osrm", munich, berlin), nil).Once()

	client, _ := newTestClient(t, provider)

	_, err := client.GetRoute(ctx, []types.Waypoint{munich, berlin}, types.ProfileDriving, types.PreferenceFastest)
	require.NoError(t, err)
	require.Equal(t, computedBefore+1, counterTotal(t, "routes_computed_total"))
	require.Equal(t, hitsBefore, counterTotal(t, "cache_hits_total"))

	_, err = client.GetRoute(ctx, []types.Waypoint{munich, berlin}, types.ProfileDriving, types.PreferenceFastest)
	require.NoError(t, err)
	require.Equal(t, computedBefore+1, counterTotal(t, "routes_computed_total"), "cache hit must not count as computed")
	require.Equal(t, hitsBefore+1, counterTotal(t, "cache_hits_total"))
}
