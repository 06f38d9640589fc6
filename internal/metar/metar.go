// Package metar extracts structured fields from raw METAR-style surface
// observations. Parsing is tolerant and partial: unrecognized tokens are
// skipped and a fully garbled report simply yields an empty ParsedReport.
package metar

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/kjstillabower/aviation-weather-service/internal/models"
)

var (
	windRegex     = regexp.MustCompile(`^(\d{3}|VRB)(\d{2,3})(?:G(\d{2,3}))?KT$`)
	visWholeRegex = regexp.MustCompile(`^P?(\d+)SM$`)
	visFracRegex  = regexp.MustCompile(`^(\d+)/(\d+)SM$`)
	wholeRegex    = regexp.MustCompile(`^\d+$`)
	tempRegex     = regexp.MustCompile(`^(M?\d{2})/(M?\d{2})$`)
	ceilingRegex  = regexp.MustCompile(`^(BKN|OVC|VV)(\d{3})$`)
)

// Parse extracts wind, visibility, temperature, and ceiling from a raw
// report. Tokens are matched independently, so a report missing any group
// (clear sky, calm wind) is valid and leaves those fields nil. Parse never
// fails.
func Parse(raw string) models.ParsedReport {
	var report models.ParsedReport

	tokens := strings.Fields(raw)
	for i := 0; i < len(tokens); i++ {
		tok := tokens[i]

		if report.WindSpeedKt == nil {
			if dir, speed, gust, ok := parseWind(tok); ok {
				report.WindDirectionDeg = dir
				report.WindSpeedKt = &speed
				report.WindGustKt = gust
				continue
			}
		}

		if report.VisibilitySM == nil {
			// Mixed-number visibility spans two tokens ("1 1/2SM").
			if i+1 < len(tokens) && wholeRegex.MatchString(tok) {
				if frac, ok := parseFractionSM(tokens[i+1]); ok {
					whole, _ := strconv.ParseFloat(tok, 64)
					vis := whole + frac
					report.VisibilitySM = &vis
					i++
					continue
				}
			}
			if vis, ok := parseVisibility(tok); ok {
				report.VisibilitySM = &vis
				continue
			}
		}

		if report.TemperatureF == nil {
			if tempF, ok := parseTemperature(tok); ok {
				report.TemperatureF = &tempF
				continue
			}
		}

		// Every BKN/OVC/VV layer contributes; the lowest governs.
		if ft, ok := parseCeilingLayer(tok); ok {
			if report.CeilingFt == nil || ft < *report.CeilingFt {
				report.CeilingFt = &ft
			}
		}
	}

	return report
}

// parseWind matches tokens like 27015KT, 27015G25KT, VRB05KT. A VRB
// direction yields a nil direction with the speed still extracted.
func parseWind(tok string) (dir *int, speedKt int, gustKt *int, ok bool) {
	m := windRegex.FindStringSubmatch(tok)
	if m == nil {
		return nil, 0, nil, false
	}
	if m[1] != "VRB" {
		d, _ := strconv.Atoi(m[1])
		dir = &d
	}
	speedKt, _ = strconv.Atoi(m[2])
	if m[3] != "" {
		g, _ := strconv.Atoi(m[3])
		gustKt = &g
	}
	return dir, speedKt, gustKt, true
}

// parseVisibility matches single-token visibility: 10SM, P6SM, 1/2SM.
// P ("plus", greater-than) is treated as the literal numeric value.
func parseVisibility(tok string) (float64, bool) {
	if m := visWholeRegex.FindStringSubmatch(tok); m != nil {
		v, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			return 0, false
		}
		return v, true
	}
	return parseFractionSM(tok)
}

// parseFractionSM matches pure-fraction visibility like 1/2SM. A zero
// denominator is unparseable, not infinity.
func parseFractionSM(tok string) (float64, bool) {
	m := visFracRegex.FindStringSubmatch(tok)
	if m == nil {
		return 0, false
	}
	num, _ := strconv.ParseFloat(m[1], 64)
	den, _ := strconv.ParseFloat(m[2], 64)
	if den == 0 {
		return 0, false
	}
	return num / den, true
}

// parseTemperature matches temperature/dewpoint groups like 15/09 and
// M05/M10, where M marks negative Celsius. Only the temperature is
// surfaced, converted to Fahrenheit and rounded to the nearest integer.
func parseTemperature(tok string) (int, bool) {
	m := tempRegex.FindStringSubmatch(tok)
	if m == nil {
		return 0, false
	}
	c := parseCelsius(m[1])
	return int(math.Round(float64(c)*9/5 + 32)), true
}

func parseCelsius(s string) int {
	neg := strings.HasPrefix(s, "M")
	v, _ := strconv.Atoi(strings.TrimPrefix(s, "M"))
	if neg {
		return -v
	}
	return v
}

// parseCeilingLayer matches BKN/OVC/VV layers, the only coverage types
// that constitute a ceiling. FEW and SCT never contribute.
func parseCeilingLayer(tok string) (int, bool) {
	m := ceilingRegex.FindStringSubmatch(tok)
	if m == nil {
		return 0, false
	}
	hundreds, _ := strconv.Atoi(m[2])
	return hundreds * 100, true
}
