package coordinator

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"

	"github.com/mohammed-shakir/climate-agg-cache/internal/aggregate"
	"github.com/mohammed-shakir/climate-agg-cache/internal/cache"
	"github.com/mohammed-shakir/climate-agg-cache/internal/cache/entrystore"
	"github.com/mohammed-shakir/climate-agg-cache/internal/cache/redisstore"
	"github.com/mohammed-shakir/climate-agg-cache/internal/catalog"
	"github.com/mohammed-shakir/climate-agg-cache/internal/core/model"
	"github.com/mohammed-shakir/climate-agg-cache/internal/window"
)

// fakeRaw is an in-memory raw store; AddPoint simulates ingestion landing
// new data after a result was cached.
type fakeRaw struct {
	mu      sync.Mutex
	points  []model.RawObservation
	streams atomic.Int64
	delay   time.Duration
}

func (f *fakeRaw) AddPoint(ts time.Time, v float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.points = append(f.points, model.RawObservation{TS: ts, Value: &v})
}

func (f *fakeRaw) inWindow(w model.Window) []model.RawObservation {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.RawObservation
	for _, p := range f.points {
		if !p.TS.Before(w.Start) && p.TS.Before(w.End) {
			out = append(out, p)
		}
	}
	return out
}

func (f *fakeRaw) StreamObservations(ctx context.Context, _ model.CatalogEntry, w model.Window, fn func(model.RawObservation) error) error {
	f.streams.Add(1)
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	for _, p := range f.inWindow(w) {
		if err := fn(p); err != nil {
			return err
		}
	}
	return nil
}

func (f *fakeRaw) LatestFingerprint(_ context.Context, _ model.CatalogEntry, w model.Window) (model.Fingerprint, error) {
	var fp model.Fingerprint
	for _, p := range f.inWindow(w) {
		fp.Count++
		if p.TS.After(fp.MaxTS) {
			fp.MaxTS = p.TS
		}
	}
	return fp, nil
}

type fakeCatalog struct{}

func (fakeCatalog) Lookup(_ context.Context, region, metric, scenario string) (model.CatalogEntry, bool, error) {
	if region == "12" && metric == "tas_anomaly" && scenario == "ssp245" {
		return model.CatalogEntry{
			RegionID: 12, MetricID: 3, ScenarioID: 7,
			MetricCode: "tas_anomaly", ScenarioCode: "ssp245",
		}, true, nil
	}
	return model.CatalogEntry{}, false, nil
}

func (fakeCatalog) Metrics(context.Context) ([]model.MetricInfo, error)     { return nil, nil }
func (fakeCatalog) Scenarios(context.Context) ([]model.ScenarioInfo, error) { return nil, nil }
func (fakeCatalog) YearBounds(context.Context, string, string) (int, int, bool, error) {
	return 0, 0, false, nil
}

// flakyStore wraps a cache.Store with injectable read/write failures.
type flakyStore struct {
	cache.Store
	failGet atomic.Bool
	failPut atomic.Bool
}

func (f *flakyStore) Get(ctx context.Context, key string) (cache.Entry, bool, error) {
	if f.failGet.Load() {
		return cache.Entry{}, false, errors.New("injected read failure")
	}
	return f.Store.Get(ctx, key)
}

func (f *flakyStore) Put(ctx context.Context, key string, e cache.Entry, ttl time.Duration) error {
	if f.failPut.Load() {
		return errors.New("injected write failure")
	}
	return f.Store.Put(ctx, key, e, ttl)
}

type fixture struct {
	coord *Coordinator
	raw   *fakeRaw
	store *flakyStore
	mr    *miniredis.Miniredis
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	cli, err := redisstore.New(context.Background(), mr.Addr())
	if err != nil {
		t.Fatalf("redisstore.New: %v", err)
	}
	t.Cleanup(func() { _ = cli.Close() })

	raw := &fakeRaw{}
	store := &flakyStore{Store: entrystore.NewRedisStore(cli, time.Hour, time.Second)}

	resolver, err := catalog.NewResolver(fakeCatalog{}, 16)
	if err != nil {
		t.Fatalf("NewResolver: %v", err)
	}

	coord := New(
		nil,
		resolver,
		window.NewNormalizer(window.Bounds{MinYear: 1950, MaxYear: 2100}),
		aggregate.New(raw),
		raw,
		store,
		time.Hour,
	)
	return &fixture{coord: coord, raw: raw, store: store, mr: mr}
}

func (fx *fixture) seedThirtyYears() {
	for y := 1991; y <= 2020; y++ {
		fx.raw.AddPoint(time.Date(y, 6, 15, 0, 0, 0, 0, time.UTC), 2.0)
	}
}

func baseRequest() Request {
	return Request{
		Region:   "12",
		Metric:   "tas_anomaly",
		Scenario: "ssp245",
		Window:   window.Input{Start: "1991-01-01", End: "2021-01-01", Granularity: "year"},
	}
}

func TestGetAverage_EndToEndExample(t *testing.T) {
	fx := newFixture(t)
	fx.seedThirtyYears()
	ctx := context.Background()

	first, err := fx.coord.GetAverage(ctx, baseRequest())
	if err != nil {
		t.Fatalf("first call: %v", err)
	}
	if first.Value != 2.0 || first.SampleCount != 30 || first.CacheHit {
		t.Fatalf("first=%+v, want value=2.0 count=30 hit=false", first)
	}

	second, err := fx.coord.GetAverage(ctx, baseRequest())
	if err != nil {
		t.Fatalf("second call: %v", err)
	}
	if second.Value != first.Value || second.SampleCount != first.SampleCount {
		t.Fatalf("idempotence violated: %+v vs %+v", first, second)
	}
	if !second.CacheHit {
		t.Fatalf("second call missed the cache")
	}
	if got := fx.raw.streams.Load(); got != 1 {
		t.Fatalf("streams=%d, want 1 (hit must not recompute)", got)
	}
}

func TestGetAverage_EquivalentWindowsShareTheEntry(t *testing.T) {
	fx := newFixture(t)
	fx.seedThirtyYears()
	ctx := context.Background()

	if _, err := fx.coord.GetAverage(ctx, baseRequest()); err != nil {
		t.Fatalf("seed call: %v", err)
	}

	// short year form denotes the same interval
	req := baseRequest()
	req.Window = window.Input{Start: "1991", End: "2021"}
	res, err := fx.coord.GetAverage(ctx, req)
	if err != nil {
		t.Fatalf("equivalent call: %v", err)
	}
	if !res.CacheHit {
		t.Fatalf("equivalent window did not hit the shared cache entry")
	}
}

func TestGetAverage_StaleFingerprintRecomputes(t *testing.T) {
	fx := newFixture(t)
	fx.seedThirtyYears()
	ctx := context.Background()

	if _, err := fx.coord.GetAverage(ctx, baseRequest()); err != nil {
		t.Fatalf("warm call: %v", err)
	}

	// late-arriving observation inside the cached window
	fx.raw.AddPoint(time.Date(2019, 12, 15, 0, 0, 0, 0, time.UTC), 64.0)

	res, err := fx.coord.GetAverage(ctx, baseRequest())
	if err != nil {
		t.Fatalf("post-ingest call: %v", err)
	}
	if res.CacheHit {
		t.Fatalf("stale entry served as a hit")
	}
	if res.SampleCount != 31 {
		t.Fatalf("sample_count=%d, want 31", res.SampleCount)
	}
	if want := (30*2.0 + 64.0) / 31; res.Value != want {
		t.Fatalf("value=%v, want %v", res.Value, want)
	}

	// and the refreshed entry is a hit again
	res2, err := fx.coord.GetAverage(ctx, baseRequest())
	if err != nil {
		t.Fatalf("follow-up call: %v", err)
	}
	if !res2.CacheHit || res2.Value != res.Value {
		t.Fatalf("refreshed entry not served: %+v", res2)
	}
}

func TestGetAverage_NoDataNeverCached(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	for range 2 {
		_, err := fx.coord.GetAverage(ctx, baseRequest())
		if !errors.Is(err, model.ErrInsufficientData) {
			t.Fatalf("err=%v, want ErrInsufficientData", err)
		}
	}
	if n := len(fx.mr.Keys()); n != 0 {
		t.Fatalf("cache has %d keys after no-data errors, want 0", n)
	}
	if got := fx.raw.streams.Load(); got != 2 {
		t.Fatalf("streams=%d, want 2 (errors must not be cached)", got)
	}
}

func TestGetAverage_ValidationErrors(t *testing.T) {
	fx := newFixture(t)
	fx.seedThirtyYears()
	ctx := context.Background()

	req := baseRequest()
	req.Region = "99"
	if _, err := fx.coord.GetAverage(ctx, req); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("unknown region: err=%v, want ErrNotFound", err)
	}

	req = baseRequest()
	req.Window = window.Input{Start: "2021", End: "1991"}
	if _, err := fx.coord.GetAverage(ctx, req); !errors.Is(err, model.ErrInvalidWindow) {
		t.Fatalf("inverted window: err=%v, want ErrInvalidWindow", err)
	}
	if got := fx.raw.streams.Load(); got != 0 {
		t.Fatalf("validation errors reached the engine: streams=%d", got)
	}
}

func TestGetAverage_SingleFlight(t *testing.T) {
	fx := newFixture(t)
	fx.seedThirtyYears()
	fx.raw.delay = 50 * time.Millisecond

	const n = 8
	var wg sync.WaitGroup
	results := make([]model.AverageResult, n)
	errs := make([]error, n)
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], errs[i] = fx.coord.GetAverage(context.Background(), baseRequest())
		}()
	}
	wg.Wait()

	for i := range n {
		if errs[i] != nil {
			t.Fatalf("caller %d: %v", i, errs[i])
		}
		if results[i].Value != 2.0 || results[i].SampleCount != 30 {
			t.Fatalf("caller %d got %+v", i, results[i])
		}
	}
	if got := fx.raw.streams.Load(); got != 1 {
		t.Fatalf("streams=%d, want exactly 1 for %d concurrent identical requests", got, n)
	}
}

func TestGetAverage_CacheWriteFailureStillReturnsValue(t *testing.T) {
	fx := newFixture(t)
	fx.seedThirtyYears()
	fx.store.failPut.Store(true)

	res, err := fx.coord.GetAverage(context.Background(), baseRequest())
	if err != nil {
		t.Fatalf("GetAverage: %v", err)
	}
	if res.Value != 2.0 || res.CacheHit {
		t.Fatalf("got %+v", res)
	}
}

func TestGetAverage_CacheReadFailureDegradesToRecompute(t *testing.T) {
	fx := newFixture(t)
	fx.seedThirtyYears()
	ctx := context.Background()

	if _, err := fx.coord.GetAverage(ctx, baseRequest()); err != nil {
		t.Fatalf("warm call: %v", err)
	}

	fx.store.failGet.Store(true)
	res, err := fx.coord.GetAverage(ctx, baseRequest())
	if err != nil {
		t.Fatalf("degraded call: %v", err)
	}
	if res.CacheHit {
		t.Fatalf("reported hit while cache reads fail")
	}
	if res.Value != 2.0 || res.SampleCount != 30 {
		t.Fatalf("got %+v", res)
	}
}

func TestGetAverage_AbandonedCallerDoesNotCancelComputation(t *testing.T) {
	fx := newFixture(t)
	fx.seedThirtyYears()
	fx.raw.delay = 100 * time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := fx.coord.GetAverage(ctx, baseRequest()); err == nil {
		t.Fatalf("expected context error for the abandoning caller")
	}

	// the detached computation should finish and fill the cache
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if len(fx.mr.Keys()) > 0 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if len(fx.mr.Keys()) == 0 {
		t.Fatalf("abandoned computation never filled the cache")
	}

	res, err := fx.coord.GetAverage(context.Background(), baseRequest())
	if err != nil {
		t.Fatalf("follow-up call: %v", err)
	}
	if !res.CacheHit {
		t.Fatalf("follow-up call missed: %+v", res)
	}
}
