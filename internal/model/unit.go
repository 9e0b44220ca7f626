// Package model defines the core domain models used throughout the application.
package model

import (
	"fmt"
	"sort"
	"strings"
)

// UnitType classifies an ownership unit.
type UnitType string

const (
	// UnitTypeResidential represents apartments and other dwellings.
	UnitTypeResidential UnitType = "residential"
	// UnitTypeCommercial represents shops and offices.
	UnitTypeCommercial UnitType = "commercial"
	// UnitTypeParking represents garages and parking spaces.
	UnitTypeParking UnitType = "parking"
	// UnitTypeOther represents storage rooms and anything unclassified.
	UnitTypeOther UnitType = "other"
)

// unitTypeOrder is the canonical ordering used when rendering type sets.
var unitTypeOrder = map[UnitType]int{
	UnitTypeResidential: 0,
	UnitTypeCommercial:  1,
	UnitTypeParking:     2,
	UnitTypeOther:       3,
}

// ParseUnitType converts a string into a known UnitType.
func ParseUnitType(s string) (UnitType, error) {
	t := UnitType(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := unitTypeOrder[t]; !ok {
		return "", fmt.Errorf("unknown unit type %q", s)
	}
	return t, nil
}

// Valid reports whether t is one of the known unit types.
func (t UnitType) Valid() bool {
	_, ok := unitTypeOrder[t]
	return ok
}

// Unit is an ownership unit ("fração") with its ownership weight.
// Weight is the permilagem and is not required to sum to any fixed total.
type Unit struct {
	Number        string
	Type          UnitType
	ID            int64
	CondominiumID int64
	Weight        float64
}

// UnitTypeSet is an ordered set of unit types without duplicates.
type UnitTypeSet []UnitType

// NewUnitTypeSet builds a set from the given types, dropping duplicates.
func NewUnitTypeSet(types ...UnitType) (UnitTypeSet, error) {
	seen := make(map[UnitType]bool, len(types))
	set := make(UnitTypeSet, 0, len(types))
	for _, t := range types {
		if !t.Valid() {
			return nil, fmt.Errorf("unknown unit type %q", t)
		}
		if seen[t] {
			continue
		}
		seen[t] = true
		set = append(set, t)
	}
	sort.Slice(set, func(i, j int) bool {
		return unitTypeOrder[set[i]] < unitTypeOrder[set[j]]
	})
	return set, nil
}

// ParseUnitTypeSet parses a comma separated list such as "residential, parking".
// An empty string yields an empty set.
func ParseUnitTypeSet(s string) (UnitTypeSet, error) {
	if strings.TrimSpace(s) == "" {
		return UnitTypeSet{}, nil
	}
	parts := strings.Split(s, ",")
	types := make([]UnitType, 0, len(parts))
	for _, p := range parts {
		t, err := ParseUnitType(p)
		if err != nil {
			return nil, err
		}
		types = append(types, t)
	}
	return NewUnitTypeSet(types...)
}

// Contains reports whether t is in the set.
func (s UnitTypeSet) Contains(t UnitType) bool {
	for _, candidate := range s {
		if candidate == t {
			return true
		}
	}
	return false
}

// IsEmpty reports whether the set has no members.
func (s UnitTypeSet) IsEmpty() bool {
	return len(s) == 0
}

// String renders the set in its storage form.
func (s UnitTypeSet) String() string {
	names := make([]string, len(s))
	for i, t := range s {
		names[i] = string(t)
	}
	return strings.Join(names, ",")
}
