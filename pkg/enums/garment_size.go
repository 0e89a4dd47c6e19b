package enums

import "fmt"

// GarmentSize is the apparel size ordered for a line item.
type GarmentSize string

const (
	GarmentSizeS   GarmentSize = "S"
	GarmentSizeM   GarmentSize = "M"
	GarmentSizeL   GarmentSize = "L"
	GarmentSizeXL  GarmentSize = "XL"
	GarmentSizeXXL GarmentSize = "XXL"
)

var validGarmentSizes = []GarmentSize{
	GarmentSizeS,
	GarmentSizeM,
	GarmentSizeL,
	GarmentSizeXL,
	GarmentSizeXXL,
}

// String implements fmt.Stringer.
func (s GarmentSize) String() string {
	return string(s)
}

// IsValid reports whether the value is a known GarmentSize.
func (s GarmentSize) IsValid() bool {
	for _, candidate := range validGarmentSizes {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseGarmentSize converts raw input into a GarmentSize.
func ParseGarmentSize(value string) (GarmentSize, error) {
	for _, candidate := range validGarmentSizes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid garment size %q", value)
}
