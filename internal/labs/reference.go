package labs

import (
	"fmt"
	"strconv"
	"strings"
)

// ReferenceParameter is a known lab test and its normal range (inclusive).
type ReferenceParameter struct {
	Name string  `json:"name" yaml:"name"`
	Low  float64 `json:"low" yaml:"low"`
	High float64 `json:"high" yaml:"high"`
	Unit string  `json:"unit" yaml:"unit"`
	// Decimals fixes how many fraction digits the bounds render with; 0 = shortest form.
	Decimals int `json:"decimals,omitempty" yaml:"decimals,omitempty"`
}

// RangeString renders "low - high unit".
func (p ReferenceParameter) RangeString() string {
	return fmt.Sprintf("%s - %s %s", p.formatBound(p.Low), p.formatBound(p.High), p.Unit)
}

// Contains reports whether v lies within [Low, High].
func (p ReferenceParameter) Contains(v float64) bool {
	return p.Low <= v && v <= p.High
}

func (p ReferenceParameter) formatBound(v float64) string {
	if p.Decimals > 0 {
		return strconv.FormatFloat(v, 'f', p.Decimals, 64)
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Table is an ordered, read-only set of reference parameters.
// Order matters: Resolve returns the first match in definition order.
type Table struct {
	params []ReferenceParameter
	lower  []string
}

// NewTable validates params and builds a Table that owns a copy of them.
func NewTable(params []ReferenceParameter) (Table, error) {
	if len(params) == 0 {
		return Table{}, fmt.Errorf("reference table is empty")
	}
	seen := make(map[string]struct{}, len(params))
	t := Table{
		params: make([]ReferenceParameter, len(params)),
		lower:  make([]string, len(params)),
	}
	for i, p := range params {
		p.Name = strings.TrimSpace(p.Name)
		if p.Name == "" {
			return Table{}, fmt.Errorf("parameter %d: name is required", i)
		}
		if p.Low > p.High {
			return Table{}, fmt.Errorf("parameter %q: low %v is greater than high %v", p.Name, p.Low, p.High)
		}
		if p.Decimals < 0 {
			return Table{}, fmt.Errorf("parameter %q: decimals must not be negative", p.Name)
		}
		key := strings.ToLower(p.Name)
		if _, dup := seen[key]; dup {
			return Table{}, fmt.Errorf("parameter %q defined twice", p.Name)
		}
		seen[key] = struct{}{}
		t.params[i] = p
		t.lower[i] = key
	}
	return t, nil
}

// DefaultTable returns the built-in ten-parameter hematology/chemistry table.
func DefaultTable() Table {
	t, err := NewTable(defaultParameters())
	if err != nil {
		panic(fmt.Sprintf("labs: default table invalid: %v", err))
	}
	return t
}

func defaultParameters() []ReferenceParameter {
	return []ReferenceParameter{
		{Name: "Hemoglobin", Low: 13.0, High: 17.0, Unit: "g/dL", Decimals: 1},
		{Name: "WBC", Low: 4000, High: 11000, Unit: "cells/mcL"},
		{Name: "Platelet", Low: 150000, High: 450000, Unit: "platelets/mcL"},
		{Name: "RBC", Low: 4.5, High: 6.0, Unit: "million/mcL", Decimals: 1},
		{Name: "Glucose", Low: 70, High: 99, Unit: "mg/dL"},
		{Name: "Creatinine", Low: 0.6, High: 1.3, Unit: "mg/dL", Decimals: 1},
		{Name: "Cholesterol", Low: 0, High: 200, Unit: "mg/dL"},
		{Name: "HDL", Low: 40, High: 60, Unit: "mg/dL"},
		{Name: "LDL", Low: 0, High: 130, Unit: "mg/dL"},
		{Name: "Triglycerides", Low: 0, High: 150, Unit: "mg/dL"},
	}
}

// Len returns the number of parameters.
func (t Table) Len() int { return len(t.params) }

// Parameters returns a copy of the parameters in definition order.
func (t Table) Parameters() []ReferenceParameter {
	out := make([]ReferenceParameter, len(t.params))
	copy(out, t.params)
	return out
}

// Lookup finds a parameter by canonical name, case-insensitively.
func (t Table) Lookup(name string) (ReferenceParameter, bool) {
	key := strings.ToLower(strings.TrimSpace(name))
	for i, l := range t.lower {
		if l == key {
			return t.params[i], true
		}
	}
	return ReferenceParameter{}, false
}

// Resolve returns the first parameter whose name appears, case-insensitively,
// anywhere inside label. Overlapping names are decided by table order.
func (t Table) Resolve(label string) (ReferenceParameter, bool) {
	l := strings.ToLower(label)
	for i, name := range t.lower {
		if strings.Contains(l, name) {
			return t.params[i], true
		}
	}
	return ReferenceParameter{}, false
}
