// Package service assembles the weather decision pipeline: fetch raw
// reports, parse them, classify conditions, attach advisory text, and
// rank departure windows from forecast series.
package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/aviation-weather-service/internal/category"
	"github.com/kjstillabower/aviation-weather-service/internal/degraded"
	"github.com/kjstillabower/aviation-weather-service/internal/metar"
	"github.com/kjstillabower/aviation-weather-service/internal/models"
	"github.com/kjstillabower/aviation-weather-service/internal/observability"
	"github.com/kjstillabower/aviation-weather-service/internal/windows"
)

// METARSource fetches raw reports. Absence (nil) means the upstream has
// no data; transport failures are absorbed below this interface.
type METARSource interface {
	FetchRaw(ctx context.Context, stationID string) *string
	FetchRawBatch(ctx context.Context, stationIDs []string) map[string]*string
}

// ForecastSource produces hourly forecast series for a coordinate.
type ForecastSource interface {
	Hourly(ctx context.Context, latitude, longitude float64, hours int) ([]models.HourlyPoint, error)
}

// CurrentSource fetches standardized point weather for locations
// without METAR coverage. Optional; the service runs without one.
type CurrentSource interface {
	GetCurrent(ctx context.Context, location string) (models.CurrentConditions, error)
}

// WeatherService is the pipeline facade consumed by the HTTP layer.
type WeatherService struct {
	metar      METARSource
	forecast   ForecastSource
	current    CurrentSource
	thresholds category.Thresholds
	optimizer  *windows.Optimizer
}

// NewWeatherService wires the pipeline. current may be nil when no
// current-weather API key is configured.
func NewWeatherService(metarSource METARSource, forecast ForecastSource, current CurrentSource, thresholds category.Thresholds) *WeatherService {
	return &WeatherService{
		metar:      metarSource,
		forecast:   forecast,
		current:    current,
		thresholds: thresholds,
		optimizer:  windows.NewOptimizer(thresholds),
	}
}

// loggerFromContext extracts a zap.Logger from request context if present.
// Returns nil if logger is not found or context is invalid.
func loggerFromContext(ctx context.Context) *zap.Logger {
	if v := ctx.Value("logger"); v != nil {
		if l, ok := v.(*zap.Logger); ok && l != nil {
			return l
		}
	}
	return nil
}

// StationConditions runs the full pipeline for one station. A missing
// or unfetchable report degrades to CategoryUnknown with the
// insufficient-data recommendation; it is never an error.
func (s *WeatherService) StationConditions(ctx context.Context, stationID string) models.StationConditions {
	station := normalizeStation(stationID)
	observability.RecordStationQuery(station)
	logger := loggerFromContext(ctx)

	raw := s.metar.FetchRaw(ctx, station)
	conditions := s.assemble(station, raw)

	if logger != nil {
		logger.Debug("station conditions served",
			zap.String("station", station),
			zap.String("category", string(conditions.Category)),
			zap.Bool("reportAvailable", raw != nil))
	}
	return conditions
}

// StationConditionsBatch runs the pipeline for several stations with a
// single combined upstream fetch. The result is ordered by station
// identifier. Like the single-station path, it never fails: stations
// without data come back as UNKNOWN.
func (s *WeatherService) StationConditionsBatch(ctx context.Context, stationIDs []string) []models.StationConditions {
	raws := s.metar.FetchRawBatch(ctx, stationIDs)

	results := make([]models.StationConditions, 0, len(raws))
	for station, raw := range raws {
		observability.RecordStationQuery(station)
		results = append(results, s.assemble(station, raw))
	}
	sort.Slice(results, func(i, j int) bool {
		return results[i].Station < results[j].Station
	})
	return results
}

// assemble parses, classifies, and decorates one station's raw report.
func (s *WeatherService) assemble(station string, raw *string) models.StationConditions {
	conditions := models.StationConditions{
		Station:    station,
		Raw:        raw,
		ObservedAt: time.Now().UTC(),
	}

	if raw != nil {
		conditions.Report = metar.Parse(*raw)
	}

	ceiling := intToFloat(conditions.Report.CeilingFt)
	wind := intToFloat(conditions.Report.WindSpeedKt)

	conditions.Category = category.Classify(conditions.Report.VisibilitySM, ceiling, s.thresholds)
	conditions.Recommendation = category.Recommendation(conditions.Category)
	conditions.Warnings = category.Warnings(conditions.Report.VisibilitySM, ceiling, wind)
	return conditions
}

// BestDepartureWindows fetches an hourly forecast for the coordinate and
// returns the top-scoring windows. Forecast failures surface as errors
// (typed by the client layer) since there is nothing sensible to degrade
// to beyond the client's own stale fallback.
func (s *WeatherService) BestDepartureWindows(ctx context.Context, latitude, longitude float64, hours, windowSizeHours, maxResults int) ([]models.DepartureWindow, error) {
	observability.WindowQueriesTotal.Inc()
	logger := loggerFromContext(ctx)

	hourly, err := s.forecast.Hourly(ctx, latitude, longitude, hours)
	if err != nil {
		degraded.RecordError()
		return nil, fmt.Errorf("best departure windows: %w", err)
	}
	degraded.RecordSuccess()

	best := s.optimizer.Best(hourly, windowSizeHours, maxResults)
	if logger != nil {
		logger.Debug("departure windows ranked",
			zap.Float64("latitude", latitude),
			zap.Float64("longitude", longitude),
			zap.Int("hours", len(hourly)),
			zap.Int("returned", len(best)))
	}
	return best, nil
}

// CurrentConditions returns point weather from the keyed current-weather
// source, for locations without METAR coverage.
func (s *WeatherService) CurrentConditions(ctx context.Context, location string) (models.CurrentConditions, error) {
	if s.current == nil {
		return models.CurrentConditions{}, fmt.Errorf("current weather source not configured")
	}
	conditions, err := s.current.GetCurrent(ctx, location)
	if err != nil {
		degraded.RecordError()
		return models.CurrentConditions{}, fmt.Errorf("current conditions for %s: %w", location, err)
	}
	degraded.RecordSuccess()
	return conditions, nil
}

func intToFloat(v *int) *float64 {
	if v == nil {
		return nil
	}
	f := float64(*v)
	return &f
}

// normalizeStation normalizes station identifiers by trimming whitespace
// and uppercasing, so cache keys and upstream requests are consistent
// regardless of input format.
func normalizeStation(stationID string) string {
	return strings.ToUpper(strings.TrimSpace(stationID))
}
