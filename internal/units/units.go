// Package units provides shared constants and validation for power units
package units

import "strings"

// Unit constants
const (
	W  = "W"
	KW = "kW"
	MW = "MW"
)

// ValidUnits contains all valid unit values
var ValidUnits = []string{W, KW, MW}

// IsValid checks if the given unit is in the list of valid units
func IsValid(unit string) bool {
	for _, validUnit := range ValidUnits {
		if unit == validUnit {
			return true
		}
	}
	return false
}

// GetValidUnitsString returns a comma-separated string of valid units for error messages
func GetValidUnitsString() string {
	return strings.Join(ValidUnits, ", ")
}

// ConvertPower converts a power from watts to the target units.
// Samples and results are always held in watts.
func ConvertPower(watts float64, targetUnits string) float64 {
	switch targetUnits {
	case KW:
		return watts / 1e3
	case MW:
		return watts / 1e6
	default:
		return watts
	}
}

// EnergyLabel returns the energy unit that pairs with a power unit,
// e.g. "kWh" for "kW".
func EnergyLabel(powerUnits string) string {
	if !IsValid(powerUnits) {
		powerUnits = W
	}
	return powerUnits + "h"
}
