package cache

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKey(t *testing.T) {
	t.Run("deterministic", func(t *testing.T) {
		assert.Equal(t, Key("a", "b"), Key("a", "b"))
	})

	t.Run("order matters", func(t *testing.T) {
		assert.NotEqual(t, Key("a", "b"), Key("b", "a"))
	})

	t.Run("part boundaries matter", func(t *testing.T) {
		assert.NotEqual(t, Key("ab", "c"), Key("a", "bc"))
	})
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemory(time.Minute, time.Minute)
	defer store.Close()

	t.Run("round trip", func(t *testing.T) {
		require.NoError(t, store.Set(ctx, NamespaceRoute, "k1", []byte("v1"), time.Minute))
		raw, ok := store.Get(ctx, NamespaceRoute, "k1")
		require.True(t, ok)
		assert.Equal(t, []byte("v1"), raw)
	})

	t.Run("namespaces are isolated", func(t *testing.T) {
		require.NoError(t, store.Set(ctx, NamespaceRoute, "shared-key", []byte("route"), time.Minute))
		_, ok := store.Get(ctx, NamespacePOI, "shared-key")
		assert.False(t, ok)
	})

	t.Run("miss after delete", func(t *testing.T) {
		require.NoError(t, store.Set(ctx, NamespacePOI, "k2", []byte("v2"), time.Minute))
		require.NoError(t, store.Delete(ctx, NamespacePOI, "k2"))
		_, ok := store.Get(ctx, NamespacePOI, "k2")
		assert.False(t, ok)
	})
}

func TestRedisStore(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := NewRedisFromClient(client, slog.Default())

	t.Run("round trip", func(t *testing.T) {
		require.NoError(t, store.Set(ctx, NamespaceGeocode, "munich", []byte(`{"lat":48.1}`), time.Hour))
		raw, ok := store.Get(ctx, NamespaceGeocode, "munich")
		require.True(t, ok)
		assert.JSONEq(t, `{"lat":48.1}`, string(raw))
	})

	t.Run("expiry is a miss", func(t *testing.T) {
		require.NoError(t, store.Set(ctx, NamespaceCountry, "48.1:11.5", []byte("DE"), time.Minute))
		mr.FastForward(2 * time.Minute)
		_, ok := store.Get(ctx, NamespaceCountry, "48.1:11.5")
		assert.False(t, ok)
	})

	t.Run("server down degrades to miss", func(t *testing.T) {
		mr.Close()
		_, ok := store.Get(ctx, NamespaceGeocode, "munich")
		assert.False(t, ok)
	})
}

func TestTieredStore(t *testing.T) {
	ctx := context.Background()
	local := NewMemory(time.Minute, time.Minute)
	shared := NewMemory(time.Minute, time.Minute)
	store := NewTiered(local, shared)

	t.Run("writes go to both tiers", func(t *testing.T) {
		require.NoError(t, store.Set(ctx, NamespaceAdvisory, "k", []byte("v"), time.Minute))
		_, ok := local.Get(ctx, NamespaceAdvisory, "k")
		assert.True(t, ok)
		_, ok = shared.Get(ctx, NamespaceAdvisory, "k")
		assert.True(t, ok)
	})

	t.Run("shared hit fills local", func(t *testing.T) {
		require.NoError(t, shared.Set(ctx, NamespaceRoute, "warm", []byte("geometry"), time.Minute))

		raw, ok := store.Get(ctx, NamespaceRoute, "warm")
		require.True(t, ok)
		assert.Equal(t, []byte("geometry"), raw)

		raw, ok = local.Get(ctx, NamespaceRoute, "warm")
		require.True(t, ok)
		assert.Equal(t, []byte("geometry"), raw)
	})
}

func TestGetJSON(t *testing.T) {
	ctx := context.Background()
	store := NewMemory(time.Minute, time.Minute)
	defer store.Close()

	type payload struct {
		Name string `json:"name"`
	}

	t.Run("round trip", func(t *testing.T) {
		require.NoError(t, SetJSON(ctx, store, NamespacePOI, "k", payload{Name: "Neuschwanstein"}, time.Minute))
		var got payload
		require.True(t, GetJSON(ctx, store, NamespacePOI, "k", &got))
		assert.Equal(t, "Neuschwanstein", got.Name)
	})

	t.Run("corrupt entry is a miss and gets evicted", func(t *testing.T) {
		require.NoError(t, store.Set(ctx, NamespacePOI, "bad", []byte("{not json"), time.Minute))
		var got payload
		assert.False(t, GetJSON(ctx, store, NamespacePOI, "bad", &got))
		_, ok := store.Get(ctx, NamespacePOI, "bad")
		assert.False(t, ok, "corrupt entry should have been deleted")
	})
}
