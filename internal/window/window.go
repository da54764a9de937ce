// Package window normalizes temporal window requests into the canonical
// half-open form used for aggregation and cache keys.
package window

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/mohammed-shakir/climate-agg-cache/internal/core/model"
)

// Input is the raw window request as it arrives on the wire. Either
// Start+End or Window (relative form) must be set, not both.
type Input struct {
	Start       string
	End         string
	Window      string
	Granularity string
}

// Bounds is the known temporal extent of the dataset, in whole years.
type Bounds struct {
	MinYear int
	MaxYear int
}

type Normalizer struct {
	bounds Bounds
}

func NewNormalizer(b Bounds) Normalizer {
	return Normalizer{bounds: b}
}

// matches "last-30-years" and "last 30 years"
var relativePattern = regexp.MustCompile(`^last[\s-](\d+)[\s-]years?$`)

// Normalize parses and validates the input into a canonical Window. Inputs
// denoting the same semantic interval always produce identical output; the
// relative form is anchored at the dataset upper bound, never wall clock.
func (n Normalizer) Normalize(in Input) (model.Window, error) {
	gran := model.GranularityYear
	if g := strings.TrimSpace(in.Granularity); g != "" {
		pg, ok := model.ParseGranularity(strings.ToLower(g))
		if !ok {
			return model.Window{}, fmt.Errorf("%w: unsupported granularity %q", model.ErrInvalidWindow, g)
		}
		gran = pg
	}

	rel := strings.TrimSpace(strings.ToLower(in.Window))
	hasExplicit := strings.TrimSpace(in.Start) != "" || strings.TrimSpace(in.End) != ""

	var start, end time.Time
	switch {
	case rel != "" && hasExplicit:
		return model.Window{}, fmt.Errorf("%w: window and start/end are mutually exclusive", model.ErrInvalidWindow)
	case rel != "":
		m := relativePattern.FindStringSubmatch(rel)
		if m == nil {
			return model.Window{}, fmt.Errorf("%w: unrecognized window %q", model.ErrInvalidWindow, in.Window)
		}
		years, err := strconv.Atoi(m[1])
		if err != nil || years <= 0 {
			return model.Window{}, fmt.Errorf("%w: window span must be positive", model.ErrInvalidWindow)
		}
		end = time.Date(n.bounds.MaxYear+1, 1, 1, 0, 0, 0, 0, time.UTC)
		start = end.AddDate(-years, 0, 0)
	default:
		var err error
		start, err = parseBoundary(in.Start)
		if err != nil {
			return model.Window{}, fmt.Errorf("%w: start: %v", model.ErrInvalidWindow, err)
		}
		end, err = parseBoundary(in.End)
		if err != nil {
			return model.Window{}, fmt.Errorf("%w: end: %v", model.ErrInvalidWindow, err)
		}
	}

	if !start.Before(end) {
		return model.Window{}, fmt.Errorf("%w: start must precede end", model.ErrInvalidWindow)
	}
	if !aligned(start, gran) || !aligned(end, gran) {
		return model.Window{}, fmt.Errorf("%w: start/end must sit on %s boundaries", model.ErrInvalidWindow, gran)
	}

	lo := time.Date(n.bounds.MinYear, 1, 1, 0, 0, 0, 0, time.UTC)
	hi := time.Date(n.bounds.MaxYear+1, 1, 1, 0, 0, 0, 0, time.UTC)
	if start.Before(lo) || end.After(hi) {
		return model.Window{}, fmt.Errorf("%w: outside dataset bounds %d..%d", model.ErrInvalidWindow,
			n.bounds.MinYear, n.bounds.MaxYear)
	}

	return model.Window{Start: start, End: end, Granularity: gran}, nil
}

// parseBoundary accepts YYYY, YYYY-MM, and YYYY-MM-DD, expanding the short
// forms to the first instant of the period. All times are UTC.
func parseBoundary(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("missing")
	}
	for _, layout := range []string{"2006-01-02", "2006-01", "2006"} {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}

func aligned(t time.Time, g model.Granularity) bool {
	if t.Hour() != 0 || t.Minute() != 0 || t.Second() != 0 || t.Nanosecond() != 0 {
		return false
	}
	switch g {
	case model.GranularityYear:
		return t.Day() == 1 && t.Month() == time.January
	case model.GranularityMonth:
		return t.Day() == 1
	default:
		return true
	}
}
