package window

import (
	"errors"
	"testing"
	"time"

	"github.com/mohammed-shakir/climate-agg-cache/internal/core/model"
)

func testNormalizer() Normalizer {
	return NewNormalizer(Bounds{MinYear: 1950, MaxYear: 2100})
}

func TestNormalize_ExplicitYearWindow(t *testing.T) {
	n := testNormalizer()

	w, err := n.Normalize(Input{Start: "1991-01-01", End: "2021-01-01", Granularity: "year"})
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	wantStart := time.Date(1991, 1, 1, 0, 0, 0, 0, time.UTC)
	wantEnd := time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)
	if !w.Start.Equal(wantStart) || !w.End.Equal(wantEnd) {
		t.Fatalf("window=%v..%v", w.Start, w.End)
	}
	if w.Granularity != model.GranularityYear {
		t.Fatalf("granularity=%s", w.Granularity)
	}
}

func TestNormalize_EquivalentInputsAreBitIdentical(t *testing.T) {
	n := testNormalizer()

	a, err := n.Normalize(Input{Start: "1991", End: "2021"})
	if err != nil {
		t.Fatalf("short form: %v", err)
	}
	b, err := n.Normalize(Input{Start: "1991-01-01", End: "2021-01-01", Granularity: "year"})
	if err != nil {
		t.Fatalf("long form: %v", err)
	}
	if a.Canonical() != b.Canonical() {
		t.Fatalf("canonical mismatch: %q vs %q", a.Canonical(), b.Canonical())
	}
}

func TestNormalize_RelativeWindowAnchorsAtDatasetBound(t *testing.T) {
	n := testNormalizer()

	w, err := n.Normalize(Input{Window: "last-30-years"})
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if got, want := w.End, time.Date(2101, 1, 1, 0, 0, 0, 0, time.UTC); !got.Equal(want) {
		t.Fatalf("end=%v want %v", got, want)
	}
	if got, want := w.Start, time.Date(2071, 1, 1, 0, 0, 0, 0, time.UTC); !got.Equal(want) {
		t.Fatalf("start=%v want %v", got, want)
	}

	// spelled with spaces, same interval
	w2, err := n.Normalize(Input{Window: "last 30 years"})
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if w.Canonical() != w2.Canonical() {
		t.Fatalf("relative forms differ: %q vs %q", w.Canonical(), w2.Canonical())
	}
}

func TestNormalize_Rejections(t *testing.T) {
	n := testNormalizer()

	cases := []struct {
		name string
		in   Input
	}{
		{"start after end", Input{Start: "2021", End: "1991"}},
		{"start equals end", Input{Start: "1991", End: "1991"}},
		{"unsupported granularity", Input{Start: "1991", End: "2021", Granularity: "decade"}},
		{"misaligned year boundary", Input{Start: "1991-06-01", End: "2021-01-01", Granularity: "year"}},
		{"misaligned month boundary", Input{Start: "1991-01-15", End: "1992-01-01", Granularity: "month"}},
		{"before dataset bounds", Input{Start: "1900", End: "2000"}},
		{"after dataset bounds", Input{Start: "2000", End: "2200"}},
		{"both relative and explicit", Input{Start: "1991", End: "2021", Window: "last-5-years"}},
		{"garbage relative", Input{Window: "previous-30-years"}},
		{"zero span relative", Input{Window: "last-0-years"}},
		{"missing end", Input{Start: "1991"}},
		{"garbage date", Input{Start: "91-01-01", End: "2021"}},
	}
	for _, tc := range cases {
		if _, err := n.Normalize(tc.in); !errors.Is(err, model.ErrInvalidWindow) {
			t.Errorf("%s: err=%v, want ErrInvalidWindow", tc.name, err)
		}
	}
}

func TestNormalize_DayAndMonthGranularity(t *testing.T) {
	n := testNormalizer()

	w, err := n.Normalize(Input{Start: "1991-06-15", End: "1991-07-15", Granularity: "day"})
	if err != nil {
		t.Fatalf("day granularity: %v", err)
	}
	if w.Granularity != model.GranularityDay {
		t.Fatalf("granularity=%s", w.Granularity)
	}

	m1, err := n.Normalize(Input{Start: "1991-06", End: "1991-09", Granularity: "month"})
	if err != nil {
		t.Fatalf("month short form: %v", err)
	}
	m2, err := n.Normalize(Input{Start: "1991-06-01", End: "1991-09-01", Granularity: "month"})
	if err != nil {
		t.Fatalf("month long form: %v", err)
	}
	if m1.Canonical() != m2.Canonical() {
		t.Fatalf("month forms differ: %q vs %q", m1.Canonical(), m2.Canonical())
	}
}
