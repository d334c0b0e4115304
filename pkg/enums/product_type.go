package enums

import "fmt"

// ProductType distinguishes fixed-price pieces from weight-priced produce.
type ProductType string

const (
	ProductTypeSimple         ProductType = "simple"
	ProductTypeVariableWeight ProductType = "variable_weight"
)

var validProductTypes = []ProductType{
	ProductTypeSimple,
	ProductTypeVariableWeight,
}

// String implements fmt.Stringer.
func (t ProductType) String() string {
	return string(t)
}

// IsValid reports whether the value is a known ProductType.
func (t ProductType) IsValid() bool {
	for _, candidate := range validProductTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParseProductType converts raw input into a ProductType.
func ParseProductType(value string) (ProductType, error) {
	for _, candidate := range validProductTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid product type %q", value)
}

// UnitOfMeasure is the weight unit for variable_weight products.
type UnitOfMeasure string

const (
	UnitGram     UnitOfMeasure = "g"
	UnitKilogram UnitOfMeasure = "kg"
)

var validUnitsOfMeasure = []UnitOfMeasure{UnitGram, UnitKilogram}

func (u UnitOfMeasure) String() string {
	return string(u)
}

func (u UnitOfMeasure) IsValid() bool {
	for _, candidate := range validUnitsOfMeasure {
		if candidate == u {
			return true
		}
	}
	return false
}

func ParseUnitOfMeasure(value string) (UnitOfMeasure, error) {
	for _, candidate := range validUnitsOfMeasure {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid unit of measure %q", value)
}
