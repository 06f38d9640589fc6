// Package windows ranks candidate departure windows from an hourly
// forecast series using the flight-category classifier and a scoring
// heuristic that penalizes precipitation and wind.
package windows

import (
	"sort"
	"time"

	"github.com/kjstillabower/aviation-weather-service/internal/category"
	"github.com/kjstillabower/aviation-weather-service/internal/models"
)

const metersPerStatuteMile = 1609.34

// unlimitedCeilingFt stands in for "no significant cloud layer" when
// cloud cover is reported but too sparse to estimate a ceiling. It keeps
// clear-sky windows classifiable instead of collapsing to UNKNOWN.
const unlimitedCeilingFt = 99999.0

// categoryWeights orders categories by desirability for scoring. UNKNOWN
// scores below LIFR: a window we cannot assess ranks under one we know
// is bad.
var categoryWeights = map[models.FlightCategory]float64{
	models.CategoryVFR:     4,
	models.CategoryMVFR:    3,
	models.CategoryIFR:     2,
	models.CategoryLIFR:    1,
	models.CategoryUnknown: 0.5,
}

// Optimizer scores sliding windows over a forecast series. Thresholds
// are injected so callers can tighten the category bands.
type Optimizer struct {
	thresholds category.Thresholds
}

func NewOptimizer(thresholds category.Thresholds) *Optimizer {
	return &Optimizer{thresholds: thresholds}
}

// Best slides a contiguous window of windowSizeHours points across the
// series and returns the top maxResults windows by score, descending.
// Ties keep input order, so the earliest window wins. Returns nil when
// the series is shorter than one window or windowSizeHours < 1.
func (o *Optimizer) Best(hourly []models.HourlyPoint, windowSizeHours, maxResults int) []models.DepartureWindow {
	if windowSizeHours < 1 || len(hourly) < windowSizeHours || maxResults < 1 {
		return nil
	}

	candidates := make([]models.DepartureWindow, 0, len(hourly)-windowSizeHours+1)
	for start := 0; start+windowSizeHours <= len(hourly); start++ {
		points := hourly[start : start+windowSizeHours]
		candidates = append(candidates, o.scoreWindow(points))
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Score > candidates[j].Score
	})

	if len(candidates) > maxResults {
		candidates = candidates[:maxResults]
	}
	return candidates
}

// scoreWindow averages each field across the window's points, classifies
// the result, and applies the scoring heuristic.
func (o *Optimizer) scoreWindow(points []models.HourlyPoint) models.DepartureWindow {
	visM := meanOf(points, func(p models.HourlyPoint) *float64 { return p.VisibilityM })
	cloud := meanOf(points, func(p models.HourlyPoint) *float64 { return p.CloudCoverPct })
	precip := meanOf(points, func(p models.HourlyPoint) *float64 { return p.PrecipitationMm })
	wind := meanOf(points, func(p models.HourlyPoint) *float64 { return p.WindSpeedKt })

	var visSM *float64
	if visM != nil {
		visSM = models.Ptr(*visM / metersPerStatuteMile)
	}
	ceiling := estimateCeiling(cloud)

	cat := category.Classify(visSM, ceiling, o.thresholds)

	score := categoryWeights[cat] * 100
	if precip != nil {
		score -= *precip * 15
	}
	if wind != nil && *wind > 10 {
		score -= (*wind - 10) * 2
	}

	return models.DepartureWindow{
		StartTime: points[0].Time,
		EndTime:   windowEnd(points),
		Score:     score,
		Category:  cat,
	}
}

// estimateCeiling derives a coarse ceiling from mean cloud cover. Sparse
// cover reads as unlimited; absent cover stays unknown, which the
// classifier surfaces as UNKNOWN.
func estimateCeiling(cloudCoverPct *float64) *float64 {
	if cloudCoverPct == nil {
		return nil
	}
	if ft := category.CeilingFromCloudCover(cloudCoverPct); ft != nil {
		return ft
	}
	return models.Ptr(unlimitedCeilingFt)
}

// meanOf averages one field across the window, skipping absent values.
// A field with no present values yields nil for the window.
func meanOf(points []models.HourlyPoint, field func(models.HourlyPoint) *float64) *float64 {
	var sum float64
	var n int
	for _, p := range points {
		if v := field(p); v != nil {
			sum += *v
			n++
		}
	}
	if n == 0 {
		return nil
	}
	return models.Ptr(sum / float64(n))
}

// windowEnd is the last point's time plus one hour, so a window covers
// its final hourly sample rather than ending at its start.
func windowEnd(points []models.HourlyPoint) time.Time {
	return points[len(points)-1].Time.Add(time.Hour)
}
