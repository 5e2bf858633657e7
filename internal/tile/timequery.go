package tile

import "time"

// TimeSelector tags how a request resolves to a concrete dataset time.
type TimeSelector int

const (
	// TimeUnspecified picks the dataset with the greatest valid time currently available.
	TimeUnspecified TimeSelector = iota
	// TimeExact is used by forecast layers: reference time + forecast offset.
	TimeExact
	// TimeLatest is used by observation layers: greatest valid time <= ValidTime.
	TimeLatest
)

// TimeQuery is the tagged variant from spec.md §4.3.
type TimeQuery struct {
	Selector      TimeSelector
	ReferenceTime time.Time     // Exact
	ForecastOffset time.Duration // Exact
	ValidTime     time.Time     // Latest
}

// Exact builds an Exact time query for forecast layers.
func Exact(referenceTime time.Time, forecastOffset time.Duration) TimeQuery {
	return TimeQuery{Selector: TimeExact, ReferenceTime: referenceTime, ForecastOffset: forecastOffset}
}

// Latest builds a Latest time query for observation layers.
func Latest(validTime time.Time) TimeQuery {
	return TimeQuery{Selector: TimeLatest, ValidTime: validTime}
}

// Unspecified builds an Unspecified time query.
func Unspecified() TimeQuery {
	return TimeQuery{Selector: TimeUnspecified}
}

// key returns a canonical, order-invariant string encoding used by Fingerprint.
// It never includes wall-clock time beyond what the request itself carries.
func (q TimeQuery) key() string {
	switch q.Selector {
	case TimeExact:
		return "exact:" + q.ReferenceTime.UTC().Format(time.RFC3339Nano) + ":" + q.ForecastOffset.String()
	case TimeLatest:
		return "latest:" + q.ValidTime.UTC().Format(time.RFC3339Nano)
	default:
		return "unspecified"
	}
}
