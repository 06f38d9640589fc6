package category

import (
	"fmt"

	"github.com/kjstillabower/aviation-weather-service/internal/models"
)

// Advisory thresholds. These are marginal-condition alerts, independent of
// the category bands: any subset may fire at once.
const (
	reducedVisibilitySM = 5.0
	lowCeilingFt        = 3000.0
	highWindKt          = 20.0
)

var recommendations = map[models.FlightCategory]string{
	models.CategoryVFR:     "VFR conditions. Routine VFR flight should be feasible.",
	models.CategoryMVFR:    "Marginal VFR conditions. Consider delaying, changing route, or filing IFR if qualified.",
	models.CategoryIFR:     "IFR conditions. VFR flight is not recommended.",
	models.CategoryLIFR:    "Low IFR conditions. VFR flight is not recommended.",
	models.CategoryUnknown: "Insufficient data to assess VFR/IFR suitability.",
}

// Recommendation returns the one-sentence advisory for a category.
func Recommendation(c models.FlightCategory) string {
	if r, ok := recommendations[c]; ok {
		return r
	}
	return recommendations[models.CategoryUnknown]
}

// Warnings lists hazard warnings for the given conditions. Each check is
// independent; an absent input never fires its warning, so missing data
// cannot produce false positives.
func Warnings(visibilitySM, ceilingFt, windSpeedKt *float64) []string {
	var warnings []string

	if visibilitySM != nil && *visibilitySM < reducedVisibilitySM {
		warnings = append(warnings, fmt.Sprintf("Reduced visibility (%.1f SM).", *visibilitySM))
	}
	if ceilingFt != nil && *ceilingFt < lowCeilingFt {
		warnings = append(warnings, fmt.Sprintf("Low ceiling (%.0f ft).", *ceilingFt))
	}
	if windSpeedKt != nil && *windSpeedKt >= highWindKt {
		warnings = append(warnings, fmt.Sprintf("High winds (%.0f kt).", *windSpeedKt))
	}

	return warnings
}
