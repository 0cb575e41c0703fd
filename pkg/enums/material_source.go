package enums

import "fmt"

// MaterialSource maps to the material_source_enum enum in Postgres. The
// source decides which payload fields a MATERIAL_ADDED event must carry.
type MaterialSource string

const (
	MaterialSourcePurchase  MaterialSource = "purchase"
	MaterialSourceWarehouse MaterialSource = "warehouse"
	MaterialSourceBorrowed  MaterialSource = "borrowed"
)

var validMaterialSources = []MaterialSource{
	MaterialSourcePurchase,
	MaterialSourceWarehouse,
	MaterialSourceBorrowed,
}

// IsValid reports whether the value matches the canonical material source enum.
func (s MaterialSource) IsValid() bool {
	for _, candidate := range validMaterialSources {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseMaterialSource converts raw input into MaterialSource.
func ParseMaterialSource(value string) (MaterialSource, error) {
	for _, candidate := range validMaterialSources {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid material source %q", value)
}

// ReturnDestination names where returned material goes.
type ReturnDestination string

const (
	ReturnDestinationWarehouse ReturnDestination = "warehouse"
	ReturnDestinationProject   ReturnDestination = "project"
)

// IsValid reports whether the value matches the canonical return destination.
func (d ReturnDestination) IsValid() bool {
	return d == ReturnDestinationWarehouse || d == ReturnDestinationProject
}
