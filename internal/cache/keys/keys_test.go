package keys

import (
	"strings"
	"testing"
	"time"

	"github.com/mohammed-shakir/climate-agg-cache/internal/core/model"
)

func win(startYear, endYear int) model.Window {
	return model.Window{
		Start:       time.Date(startYear, 1, 1, 0, 0, 0, 0, time.UTC),
		End:         time.Date(endYear, 1, 1, 0, 0, 0, 0, time.UTC),
		Granularity: model.GranularityYear,
	}
}

func TestKey_DeterministicForEqualWindows(t *testing.T) {
	e := model.CatalogEntry{RegionID: 12, MetricID: 3, ScenarioID: 7}

	a := Key(e, win(1991, 2021))
	b := Key(e, win(1991, 2021))
	if a != b {
		t.Fatalf("same inputs produced different keys: %q vs %q", a, b)
	}

	// same instant expressed in another zone still normalizes identically
	shifted := model.Window{
		Start:       time.Date(1991, 1, 1, 0, 0, 0, 0, time.UTC).In(time.FixedZone("X", 3600)),
		End:         time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC).In(time.FixedZone("X", 3600)),
		Granularity: model.GranularityYear,
	}
	if c := Key(e, shifted); c != a {
		t.Fatalf("zone-shifted window changed key: %q vs %q", c, a)
	}
}

func TestKey_DistinctAcrossDimensions(t *testing.T) {
	base := model.CatalogEntry{RegionID: 12, MetricID: 3, ScenarioID: 7}

	seen := map[string]string{}
	add := func(name, k string) {
		if prev, ok := seen[k]; ok {
			t.Fatalf("key collision between %s and %s: %q", prev, name, k)
		}
		seen[k] = name
	}

	add("base", Key(base, win(1991, 2021)))
	add("other region", Key(model.CatalogEntry{RegionID: 13, MetricID: 3, ScenarioID: 7}, win(1991, 2021)))
	add("other metric", Key(model.CatalogEntry{RegionID: 12, MetricID: 4, ScenarioID: 7}, win(1991, 2021)))
	add("other scenario", Key(model.CatalogEntry{RegionID: 12, MetricID: 3, ScenarioID: 8}, win(1991, 2021)))
	add("other window", Key(base, win(1992, 2021)))

	monthly := win(1991, 2021)
	monthly.Granularity = model.GranularityMonth
	add("other granularity", Key(base, monthly))
}

func TestTriplePrefix_CoversKeys(t *testing.T) {
	e := model.CatalogEntry{RegionID: 12, MetricID: 3, ScenarioID: 7}
	k := Key(e, win(1991, 2021))
	p := TriplePrefix(12, 3, 7)
	if !strings.HasPrefix(k, p) {
		t.Fatalf("key %q lacks prefix %q", k, p)
	}
	if strings.HasPrefix(k, TriplePrefix(12, 3, 70)) {
		t.Fatalf("prefix for another scenario matched %q", k)
	}
}
