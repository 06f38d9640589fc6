package category

import (
	"strings"
	"testing"

	"github.com/kjstillabower/aviation-weather-service/internal/models"
)

// TestClassify_FAABands verifies the category returned for representative
// conditions in each FAA band.
func TestClassify_FAABands(t *testing.T) {
	tests := []struct {
		name    string
		vis     *float64
		ceiling *float64
		want    models.FlightCategory
	}{
		{"clear VFR day", models.Ptr(10.0), models.Ptr(5000.0), models.CategoryVFR},
		{"marginal", models.Ptr(4.0), models.Ptr(2000.0), models.CategoryMVFR},
		{"instrument", models.Ptr(2.0), models.Ptr(800.0), models.CategoryIFR},
		{"low instrument", models.Ptr(0.5), models.Ptr(400.0), models.CategoryLIFR},
		{"missing visibility", nil, models.Ptr(5000.0), models.CategoryUnknown},
		{"missing ceiling", models.Ptr(10.0), nil, models.CategoryUnknown},
		{"both missing", nil, nil, models.CategoryUnknown},
		{"good visibility but low ceiling", models.Ptr(10.0), models.Ptr(400.0), models.CategoryLIFR},
		{"good ceiling but low visibility", models.Ptr(0.5), models.Ptr(5000.0), models.CategoryLIFR},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := Classify(tc.vis, tc.ceiling, DefaultThresholds())
			if got != tc.want {
				t.Errorf("Classify(%v, %v) = %s, want %s", tc.vis, tc.ceiling, got, tc.want)
			}
		})
	}
}

// TestClassify_Boundaries verifies that exact threshold values classify
// into the better band (thresholds are strict less-than checks).
func TestClassify_Boundaries(t *testing.T) {
	th := DefaultThresholds()

	if got := Classify(models.Ptr(5.0), models.Ptr(3000.0), th); got != models.CategoryVFR {
		t.Errorf("Classify at VFR minimums = %s, want VFR", got)
	}
	if got := Classify(models.Ptr(3.0), models.Ptr(1000.0), th); got != models.CategoryMVFR {
		t.Errorf("Classify at MVFR minimums = %s, want MVFR", got)
	}
	if got := Classify(models.Ptr(1.0), models.Ptr(500.0), th); got != models.CategoryIFR {
		t.Errorf("Classify at IFR minimums = %s, want IFR", got)
	}
}

// categoryRank orders categories from worst to best for the monotonicity
// check.
func categoryRank(c models.FlightCategory) int {
	switch c {
	case models.CategoryLIFR:
		return 0
	case models.CategoryIFR:
		return 1
	case models.CategoryMVFR:
		return 2
	case models.CategoryVFR:
		return 3
	}
	return -1
}

// TestClassify_Monotonic verifies that decreasing either input, holding
// the other fixed, never improves the category.
func TestClassify_Monotonic(t *testing.T) {
	th := DefaultThresholds()
	visValues := []float64{0, 0.5, 1, 2, 3, 4, 5, 7, 10}
	ceilingValues := []float64{0, 200, 500, 900, 1000, 2500, 3000, 5000, 12000}

	for _, ceil := range ceilingValues {
		prev := -1
		for _, vis := range visValues { // ascending visibility
			rank := categoryRank(Classify(models.Ptr(vis), models.Ptr(ceil), th))
			if rank < prev {
				t.Fatalf("category worsened as visibility rose: vis=%v ceiling=%v", vis, ceil)
			}
			prev = rank
		}
	}
	for _, vis := range visValues {
		prev := -1
		for _, ceil := range ceilingValues { // ascending ceiling
			rank := categoryRank(Classify(models.Ptr(vis), models.Ptr(ceil), th))
			if rank < prev {
				t.Fatalf("category worsened as ceiling rose: vis=%v ceiling=%v", vis, ceil)
			}
			prev = rank
		}
	}
}

// TestClassify_CustomThresholds verifies that caller-provided thresholds
// shift the bands.
func TestClassify_CustomThresholds(t *testing.T) {
	strict := Thresholds{
		VFRVisibilitySM: 10, VFRCeilingFt: 5000,
		MVFRVisibilitySM: 5, MVFRCeilingFt: 2000,
		IFRVisibilitySM: 2, IFRCeilingFt: 800,
	}
	if err := strict.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}

	got := Classify(models.Ptr(7.0), models.Ptr(4000.0), strict)
	if got != models.CategoryMVFR {
		t.Errorf("Classify with strict thresholds = %s, want MVFR", got)
	}
}

// TestThresholds_Validate_Ordering verifies that out-of-order thresholds
// are rejected.
func TestThresholds_Validate_Ordering(t *testing.T) {
	bad := DefaultThresholds()
	bad.MVFRVisibilitySM = 6 // above VFR's 5
	if err := bad.Validate(); err == nil {
		t.Error("Validate() error = nil, want error for inverted visibility ordering")
	}

	bad = DefaultThresholds()
	bad.IFRCeilingFt = 2000 // above MVFR's 1000
	if err := bad.Validate(); err == nil {
		t.Error("Validate() error = nil, want error for inverted ceiling ordering")
	}
}

// TestRecommendation verifies the fixed category-to-text mapping.
func TestRecommendation(t *testing.T) {
	tests := []struct {
		category models.FlightCategory
		contains string
	}{
		{models.CategoryVFR, "Routine VFR flight"},
		{models.CategoryMVFR, "Consider delaying"},
		{models.CategoryIFR, "not recommended"},
		{models.CategoryLIFR, "not recommended"},
		{models.CategoryUnknown, "Insufficient data"},
	}
	for _, tc := range tests {
		got := Recommendation(tc.category)
		if got == "" {
			t.Fatalf("Recommendation(%s) = empty", tc.category)
		}
		if !strings.Contains(got, tc.contains) {
			t.Errorf("Recommendation(%s) = %q, want it to mention %q", tc.category, got, tc.contains)
		}
	}

	// Unrecognized categories fall back to the insufficient-data text.
	if got := Recommendation(models.FlightCategory("BOGUS")); got != Recommendation(models.CategoryUnknown) {
		t.Errorf("Recommendation(BOGUS) = %q, want UNKNOWN text", got)
	}
}

// TestWarnings verifies the independent hazard checks, including that
// absent inputs never fire.
func TestWarnings(t *testing.T) {
	tests := []struct {
		name    string
		vis     *float64
		ceiling *float64
		wind    *float64
		want    int
	}{
		{"all clear", models.Ptr(10.0), models.Ptr(5000.0), models.Ptr(5.0), 0},
		{"visibility and wind, ceiling fine", models.Ptr(3.0), models.Ptr(5000.0), models.Ptr(25.0), 2},
		{"all three", models.Ptr(2.0), models.Ptr(900.0), models.Ptr(30.0), 3},
		{"wind at threshold fires", models.Ptr(10.0), models.Ptr(5000.0), models.Ptr(20.0), 1},
		{"absent inputs never fire", nil, nil, nil, 0},
		{"only ceiling present and low", nil, models.Ptr(1200.0), nil, 1},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := Warnings(tc.vis, tc.ceiling, tc.wind)
			if len(got) != tc.want {
				t.Errorf("Warnings() = %v (%d), want %d warnings", got, len(got), tc.want)
			}
		})
	}
}
