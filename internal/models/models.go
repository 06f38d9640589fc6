package models

import "time"

// FlightCategory classifies conditions for flight planning. It is always
// recomputed from visibility and ceiling, never stored.
type FlightCategory string

const (
	CategoryVFR     FlightCategory = "VFR"
	CategoryMVFR    FlightCategory = "MVFR"
	CategoryIFR     FlightCategory = "IFR"
	CategoryLIFR    FlightCategory = "LIFR"
	CategoryUnknown FlightCategory = "UNKNOWN"
)

// ParsedReport holds the fields extracted from a raw METAR-style report.
// Every field is independently optional: nil means "could not be extracted
// from this report", not "confirmed zero".
type ParsedReport struct {
	WindDirectionDeg *int     `json:"windDirectionDeg,omitempty"`
	WindSpeedKt      *int     `json:"windSpeedKt,omitempty"`
	WindGustKt       *int     `json:"windGustKt,omitempty"`
	VisibilitySM     *float64 `json:"visibilitySm,omitempty"`
	TemperatureF     *int     `json:"temperatureF,omitempty"`
	CeilingFt        *int     `json:"ceilingFt,omitempty"`
}

// HourlyPoint is one hour of forecast data. Ordering by Time within a
// series is an invariant the window optimizer relies on.
type HourlyPoint struct {
	Time            time.Time `json:"time"`
	VisibilityM     *float64  `json:"visibilityM,omitempty"`
	CloudCoverPct   *float64  `json:"cloudCoverPct,omitempty"`
	PrecipitationMm *float64  `json:"precipitationMm,omitempty"`
	WindSpeedKt     *float64  `json:"windSpeedKt,omitempty"`
}

// DepartureWindow is a scored candidate span of consecutive forecast hours.
// Derived per request and never persisted.
type DepartureWindow struct {
	StartTime time.Time      `json:"startTime"`
	EndTime   time.Time      `json:"endTime"`
	Score     float64        `json:"score"`
	Category  FlightCategory `json:"category"`
}

// StationConditions is the assembled "current conditions" answer for one
// station: the raw report (if any), its parsed fields, the category, and
// the advisory text. A fully-failed fetch yields CategoryUnknown with the
// insufficient-data recommendation rather than an error.
type StationConditions struct {
	Station        string         `json:"station"`
	Raw            *string        `json:"raw,omitempty"`
	Report         ParsedReport   `json:"report"`
	Category       FlightCategory `json:"category"`
	Recommendation string         `json:"recommendation"`
	Warnings       []string       `json:"warnings"`
	ObservedAt     time.Time      `json:"observedAt"`
}

// CurrentConditions is standardized point weather from the keyed
// current-weather source, used when a station has no METAR coverage.
type CurrentConditions struct {
	Conditions       string    `json:"conditions"`
	TemperatureF     int       `json:"temperatureF"`
	WindSpeedKt      int       `json:"windSpeedKt"`
	WindDirectionDeg int       `json:"windDirectionDeg"`
	VisibilitySM     float64   `json:"visibilitySm"`
	CeilingFt        *float64  `json:"ceilingFt,omitempty"`
	Timestamp        time.Time `json:"timestamp"`
}

// Ptr returns a pointer to v. Convenience for building optional fields.
func Ptr[T any](v T) *T {
	return &v
}
