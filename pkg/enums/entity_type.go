package enums

import "fmt"

// EntityType names the kind of entity an entity-scoped condition references.
type EntityType string

const (
	EntityTypeProduct         EntityType = "PRODUCT"
	EntityTypeProductFamily   EntityType = "PRODUCT_FAMILY"
	EntityTypeProductCategory EntityType = "PRODUCT_CATEGORY"
	EntityTypeCustomerGroup   EntityType = "CUSTOMER_GROUP"
)

var validEntityTypes = []EntityType{
	EntityTypeProduct,
	EntityTypeProductFamily,
	EntityTypeProductCategory,
	EntityTypeCustomerGroup,
}

// String implements fmt.Stringer.
func (e EntityType) String() string {
	return string(e)
}

// IsValid reports whether the value is a known EntityType.
func (e EntityType) IsValid() bool {
	for _, candidate := range validEntityTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseEntityType converts raw input into an EntityType.
func ParseEntityType(value string) (EntityType, error) {
	for _, candidate := range validEntityTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid entity type %q", value)
}
