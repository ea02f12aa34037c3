package photos

import (
	"fmt"
	"strconv"
	"strings"
)

// Date is a calendar date without a time zone.
type Date struct {
	Year  int `json:"year"`
	Month int `json:"month"`
	Day   int `json:"day"`
}

type DateRange struct {
	StartDate Date `json:"startDate"`
	EndDate   Date `json:"endDate"`
}

type DateFilter struct {
	Ranges []DateRange `json:"ranges"`
}

type MediaTypes struct {
	MediaTypes []string `json:"mediaTypes"`
}

type Features struct {
	IncludedFeatures []string `json:"includedFeatures"`
}

// Filters is the body of a mediaItems:search filter. Set fields combine with AND.
type Filters struct {
	DateFilter      *DateFilter `json:"dateFilter,omitempty"`
	MediaTypeFilter *MediaTypes `json:"mediaTypeFilter,omitempty"`
	FeatureFilter   *Features   `json:"featureFilter,omitempty"`
}

// Empty reports whether no restriction is set, in which case the plain
// listing endpoint is used instead of search.
func (f Filters) Empty() bool {
	return f.DateFilter == nil && f.MediaTypeFilter == nil && f.FeatureFilter == nil
}

// Merge returns f with every field set in other applied on top.
func (f Filters) Merge(other Filters) Filters {
	if other.DateFilter != nil {
		f.DateFilter = other.DateFilter
	}
	if other.MediaTypeFilter != nil {
		f.MediaTypeFilter = other.MediaTypeFilter
	}
	if other.FeatureFilter != nil {
		f.FeatureFilter = other.FeatureFilter
	}
	return f
}

// DateFilterParseError is a date that is not YYYY-MM-DD.
type DateFilterParseError struct {
	Value string
	Err   error
}

func (e *DateFilterParseError) Error() string {
	return fmt.Sprintf("invalid date %q (want YYYY-MM-DD): %v", e.Value, e.Err)
}

func (e *DateFilterParseError) Unwrap() error { return e.Err }

// DateRangeFilter restricts results to start..end inclusive, both YYYY-MM-DD.
func DateRangeFilter(start, end string) (Filters, error) {
	from, err := ParseDate(start)
	if err != nil {
		return Filters{}, err
	}
	to, err := ParseDate(end)
	if err != nil {
		return Filters{}, err
	}
	return Filters{DateFilter: &DateFilter{
		Ranges: []DateRange{{StartDate: from, EndDate: to}},
	}}, nil
}

// ParseDate splits YYYY-MM-DD into its parts. It does not check that the
// day exists in that month; the API does.
func ParseDate(s string) (Date, error) {
	parts := strings.Split(strings.TrimSpace(s), "-")
	if len(parts) != 3 {
		return Date{}, &DateFilterParseError{Value: s, Err: fmt.Errorf("expected 3 parts, got %d", len(parts))}
	}
	var n [3]int
	for i, p := range parts {
		v, err := strconv.Atoi(p)
		if err != nil {
			return Date{}, &DateFilterParseError{Value: s, Err: err}
		}
		n[i] = v
	}
	d := Date{Year: n[0], Month: n[1], Day: n[2]}
	switch {
	case d.Year < 1 || d.Year > 9999:
		return Date{}, &DateFilterParseError{Value: s, Err: fmt.Errorf("year %d out of range", d.Year)}
	case d.Month < 1 || d.Month > 12:
		return Date{}, &DateFilterParseError{Value: s, Err: fmt.Errorf("month %d out of range", d.Month)}
	case d.Day < 1 || d.Day > 31:
		return Date{}, &DateFilterParseError{Value: s, Err: fmt.Errorf("day %d out of range", d.Day)}
	}
	return d, nil
}

// MediaTypeFilter restricts results to one media kind ("image", "video").
// "all" and "" mean no restriction.
func MediaTypeFilter(kind string) Filters {
	kind = strings.TrimSpace(kind)
	if kind == "" || strings.EqualFold(kind, "all") {
		return Filters{}
	}
	token := strings.ReplaceAll(strings.ToUpper(kind), " ", "_")
	return Filters{MediaTypeFilter: &MediaTypes{MediaTypes: []string{token}}}
}

// FavoritesFilter restricts results to items marked as favorite.
func FavoritesFilter() Filters {
	return Filters{FeatureFilter: &Features{IncludedFeatures: []string{"FAVOURITES"}}}
}
