// Package category maps visibility and ceiling to VFR/IFR flight
// categories and derives advisory text from classified conditions.
package category

import (
	"fmt"

	"github.com/kjstillabower/aviation-weather-service/internal/models"
)

// Thresholds are the category boundaries in statute miles and feet AGL.
// The ordering invariant (vfr >= mvfr >= ifr in both dimensions) must hold
// or classification becomes non-monotonic; Validate enforces it.
type Thresholds struct {
	VFRVisibilitySM  float64
	VFRCeilingFt     float64
	MVFRVisibilitySM float64
	MVFRCeilingFt    float64
	IFRVisibilitySM  float64
	IFRCeilingFt     float64
}

// DefaultThresholds returns the FAA standard boundaries:
// VFR >= 5 SM / 3000 ft, MVFR >= 3 SM / 1000 ft, IFR >= 1 SM / 500 ft,
// below both LIFR.
func DefaultThresholds() Thresholds {
	return Thresholds{
		VFRVisibilitySM:  5,
		VFRCeilingFt:     3000,
		MVFRVisibilitySM: 3,
		MVFRCeilingFt:    1000,
		IFRVisibilitySM:  1,
		IFRCeilingFt:     500,
	}
}

// Validate checks the ordering invariant in both dimensions.
func (t Thresholds) Validate() error {
	if t.VFRVisibilitySM < t.MVFRVisibilitySM || t.MVFRVisibilitySM < t.IFRVisibilitySM {
		return fmt.Errorf("visibility thresholds must satisfy vfr >= mvfr >= ifr, got %v/%v/%v",
			t.VFRVisibilitySM, t.MVFRVisibilitySM, t.IFRVisibilitySM)
	}
	if t.VFRCeilingFt < t.MVFRCeilingFt || t.MVFRCeilingFt < t.IFRCeilingFt {
		return fmt.Errorf("ceiling thresholds must satisfy vfr >= mvfr >= ifr, got %v/%v/%v",
			t.VFRCeilingFt, t.MVFRCeilingFt, t.IFRCeilingFt)
	}
	return nil
}

// Classify determines the flight category from visibility and ceiling,
// evaluating worst-first so the lowest matching band wins. Either input
// being absent yields CategoryUnknown: a category must never be guessed
// from partial data.
func Classify(visibilitySM, ceilingFt *float64, t Thresholds) models.FlightCategory {
	if visibilitySM == nil || ceilingFt == nil {
		return models.CategoryUnknown
	}
	vis, ceil := *visibilitySM, *ceilingFt

	if vis < t.IFRVisibilitySM || ceil < t.IFRCeilingFt {
		return models.CategoryLIFR
	}
	if vis < t.MVFRVisibilitySM || ceil < t.MVFRCeilingFt {
		return models.CategoryIFR
	}
	if vis < t.VFRVisibilitySM || ceil < t.VFRCeilingFt {
		return models.CategoryMVFR
	}
	return models.CategoryVFR
}

// CeilingFromCloudCover coarsely estimates a ceiling from cloud cover
// percent, for sources that report cover but no layer heights. Sparse
// cover (<25%) and absent cover both yield nil; the caller decides
// whether nil means unlimited or unknown.
func CeilingFromCloudCover(pct *float64) *float64 {
	if pct == nil {
		return nil
	}
	switch {
	case *pct >= 75:
		return models.Ptr(1500.0)
	case *pct >= 50:
		return models.Ptr(3000.0)
	case *pct >= 25:
		return models.Ptr(5000.0)
	default:
		return nil
	}
}
