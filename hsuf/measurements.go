package hsuf

import (
	"math"
	"strings"
)

var lengthCodeToInches = map[string]float64{
	"INH": 1.0,
	"FT":  12.0,
	"CMT": 0.3937007874,
	"MTR": 39.37007874,
	"MMT": 0.03937007874,
	"YRD": 36.0,
}

var weightCodeToPounds = map[string]float64{
	"LBR": 1.0,
	"ONZ": 0.0625,
	"KGM": 2.20462262,
	"GRM": 0.00220462262,
}

// LengthToInches converts a quantitative length to inches. Missing values,
// non-positive values, and unknown units yield (0, false).
func LengthToInches(qv *QuantitativeValue) (float64, bool) {
	if qv == nil || qv.Value == nil || *qv.Value <= 0 {
		return 0, false
	}
	code, ok := normalizeLengthCode(qv.UnitCode, qv.UnitText)
	if !ok {
		return 0, false
	}
	return *qv.Value * lengthCodeToInches[code], true
}

// WeightToPounds converts a quantitative weight to pounds.
func WeightToPounds(qv *QuantitativeValue) (float64, bool) {
	if qv == nil || qv.Value == nil || *qv.Value <= 0 {
		return 0, false
	}
	code, ok := normalizeWeightCode(qv.UnitCode, qv.UnitText)
	if !ok {
		return 0, false
	}
	return *qv.Value * weightCodeToPounds[code], true
}

func normalizeLengthCode(code, text string) (string, bool) {
	if upper := strings.ToUpper(strings.TrimSpace(code)); upper != "" {
		if _, ok := lengthCodeToInches[upper]; ok {
			return upper, true
		}
	}
	switch strings.ToLower(strings.TrimSpace(text)) {
	case "inch", "inches", "in":
		return "INH", true
	case "foot", "feet", "ft":
		return "FT", true
	case "centimeter", "centimeters", "cm":
		return "CMT", true
	case "meter", "meters", "m":
		return "MTR", true
	case "millimeter", "millimeters", "mm":
		return "MMT", true
	case "yard", "yards":
		return "YRD", true
	}
	return "", false
}

func normalizeWeightCode(code, text string) (string, bool) {
	if upper := strings.ToUpper(strings.TrimSpace(code)); upper != "" {
		if _, ok := weightCodeToPounds[upper]; ok {
			return upper, true
		}
	}
	switch strings.ToLower(strings.TrimSpace(text)) {
	case "pound", "pounds", "lb", "lbs":
		return "LBR", true
	case "ounce", "ounces", "oz":
		return "ONZ", true
	case "kilogram", "kilograms", "kg":
		return "KGM", true
	case "gram", "grams", "g":
		return "GRM", true
	}
	return "", false
}

// RoundOne rounds to one decimal place.
func RoundOne(value float64) float64 {
	return math.Round(value*10) / 10
}

// RoundTwo rounds to two decimal places.
func RoundTwo(value float64) float64 {
	return math.Round(value*100) / 100
}
