package client

import "errors"

// Sentinel errors for upstream failures. The METAR fetcher absorbs its
// own failures into absence; the forecast and current-weather clients
// surface these, wrapped with the upstream cause.
var (
	ErrInvalidAPIKey        = errors.New("invalid API key")
	ErrLocationNotFound     = errors.New("location not found")
	ErrUpstreamFailure      = errors.New("upstream failure")
	ErrRateLimited          = errors.New("rate limited")
	ErrForecastUnavailable  = errors.New("forecast unavailable")
	ErrCurrentUnavailable   = errors.New("current weather unavailable")
	ErrInvalidForecastRange = errors.New("forecast hours out of range")
)

// errNoReport is internal to the METAR fetcher: the upstream answered
// but had no report for the station. Callers see absence, not an error.
var errNoReport = errors.New("no report for station")
