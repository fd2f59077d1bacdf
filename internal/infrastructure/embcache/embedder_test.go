package embcache

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/kirillkom/permit-query-assistant/internal/core/domain"
	"github.com/kirillkom/permit-query-assistant/internal/core/ports"
)

type countingEmbedder struct {
	vector []float32
	err    error
	calls  int
}

func (m *countingEmbedder) Embed(context.Context, string) ([]float32, error) {
	m.calls++
	return m.vector, m.err
}

type mapStore struct {
	data   map[string][]byte
	getErr error
	setErr error
}

func newMapStore() *mapStore { return &mapStore{data: make(map[string][]byte)} }

func (m *mapStore) Get(_ context.Context, key string) ([]byte, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	v, ok := m.data[key]
	if !ok {
		return nil, ports.ErrKeyNotFound
	}
	return v, nil
}

func (m *mapStore) Set(_ context.Context, key string, value []byte) error {
	if m.setErr != nil {
		return m.setErr
	}
	m.data[key] = value
	return nil
}

func newCounter() *prometheus.CounterVec {
	return prometheus.NewCounterVec(prometheus.CounterOpts{Name: "test_cache_total"}, []string{"result"})
}

func TestEmbedMissThenHit(t *testing.T) {
	inner := &countingEmbedder{vector: []float32{0.1, 0.2, 0.3}}
	store := newMapStore()
	counter := newCounter()
	ce := New(inner, store, "model-a", counter, nil)

	first, err := ce.Embed(context.Background(), "permit amendment")
	require.NoError(t, err)
	second, err := ce.Embed(context.Background(), "permit amendment")
	require.NoError(t, err)

	require.Equal(t, 1, inner.calls)
	require.Equal(t, first, second)
	require.InDelta(t, 1, testutil.ToFloat64(counter.WithLabelValues("hit")), 0)
	require.InDelta(t, 1, testutil.ToFloat64(counter.WithLabelValues("miss")), 0)
	for key := range store.data {
		require.True(t, strings.HasPrefix(key, cacheKeyPrefix+"model-a:"))
	}
}

func TestEmbedKeysAreNamespacedByModel(t *testing.T) {
	inner := &countingEmbedder{vector: []float32{1}}
	store := newMapStore()

	_, err := New(inner, store, "model-a", nil, nil).Embed(context.Background(), "x")
	require.NoError(t, err)
	_, err = New(inner, store, "model-b", nil, nil).Embed(context.Background(), "x")
	require.NoError(t, err)

	require.Equal(t, 2, inner.calls)
	require.Len(t, store.data, 2)
}

func TestEmbedCacheFailuresFallThrough(t *testing.T) {
	inner := &countingEmbedder{vector: []float32{0.5}}
	store := newMapStore()
	store.getErr = errors.New("connection reset")
	store.setErr = errors.New("read only replica")

	vec, err := New(inner, store, "m", nil, nil).Embed(context.Background(), "x")
	require.NoError(t, err)
	require.Equal(t, []float32{0.5}, vec)
}

func TestEmbedCorruptEntryIsRecomputed(t *testing.T) {
	inner := &countingEmbedder{vector: []float32{0.25}}
	store := newMapStore()
	ce := New(inner, store, "m", nil, nil)
	store.data[ce.cacheKey("x")] = []byte{1, 2, 3}

	vec, err := ce.Embed(context.Background(), "x")
	require.NoError(t, err)
	require.Equal(t, []float32{0.25}, vec)
	require.Equal(t, 1, inner.calls)
}

func TestEmbedErrorsAreNotCached(t *testing.T) {
	inner := &countingEmbedder{err: domain.WrapError(domain.ErrEmbedding, "embed", errors.New("quota"))}
	store := newMapStore()

	_, err := New(inner, store, "m", nil, nil).Embed(context.Background(), "x")
	require.ErrorIs(t, err, domain.ErrEmbedding)
	require.Empty(t, store.data)
}

func TestVectorBytesRoundTrip(t *testing.T) {
	in := []float32{0.1, -2.5, 3.75}
	out, err := bytesToVector(vectorToCacheBytes(in))
	require.NoError(t, err)
	require.Equal(t, in, out)
}
