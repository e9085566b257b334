package model

// Series is a NASCAR national series.
type Series string

// Tracked series.
const (
	SeriesCup     Series = "cup"
	SeriesXfinity Series = "xfinity"
	SeriesTruck   Series = "truck"
)

var seriesInfo = []struct {
	series Series
	id     int64
	name   string
}{
	{SeriesCup, 1, "NASCAR Cup Series"},
	{SeriesXfinity, 2, "NASCAR Xfinity Series"},
	{SeriesTruck, 3, "NASCAR Craftsman Truck Series"},
}

// AllSeries returns the tracked series in display order.
func AllSeries() []Series {
	out := make([]Series, len(seriesInfo))
	for i, s := range seriesInfo {
		out[i] = s.series
	}
	return out
}

// DisplayName returns the upstream series name, e.g. "NASCAR Cup Series".
func (s Series) DisplayName() string {
	for _, info := range seriesInfo {
		if info.series == s {
			return info.name
		}
	}
	return string(s)
}

// SeriesByName looks up a series by its upstream name.
func SeriesByName(name string) (Series, bool) {
	for _, info := range seriesInfo {
		if info.name == name {
			return info.series, true
		}
	}
	return "", false
}

// SeriesByID looks up a series by its upstream numeric id.
func SeriesByID(id int64) (Series, bool) {
	for _, info := range seriesInfo {
		if info.id == id {
			return info.series, true
		}
	}
	return "", false
}
