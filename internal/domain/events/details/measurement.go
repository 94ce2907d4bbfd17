package details

import (
	"fmt"
	"strings"
)

type MeasurementKind string

const (
	MeasurementKindWeight MeasurementKind = "weight"
)

// Measurement cuelga de un evento WEIGHT_RECORDED.
type Measurement struct {
	Kind  MeasurementKind
	Value float64
	Unit  string // "kg", "lb"
}

// NewWeight valida y normaliza la unidad.
func NewWeight(value float64, unit string) (Measurement, error) {
	unit = strings.ToLower(strings.TrimSpace(unit))
	if unit == "" {
		unit = "kg"
	}
	if unit != "kg" && unit != "lb" {
		return Measurement{}, fmt.Errorf("unit must be kg or lb")
	}
	if value <= 0 || value > 500 {
		return Measurement{}, fmt.Errorf("weight out of range")
	}
	return Measurement{Kind: MeasurementKindWeight, Value: value, Unit: unit}, nil
}

// Kilograms devuelve el valor en kg.
func (m Measurement) Kilograms() float64 {
	if m.Unit == "lb" {
		return m.Value * 0.45359237
	}
	return m.Value
}
