// Package listing names the structured listing fields shared by the vector
// metadata and the relational listing store.
package listing

import "fmt"

// Metadata field names stored alongside every indexed chunk.
const (
	FieldText          = "text"
	FieldTenantID      = "tenant_id"
	FieldListingID     = "listing_id"
	FieldDevelopmentID = "development_id"

	FieldPrice     = "price_eur"
	FieldBedrooms  = "num_bedrooms"
	FieldBathrooms = "num_bathrooms"
	FieldArea      = "total_area_sqm"

	FieldPool          = "has_pool"
	FieldGarden        = "has_garden"
	FieldGarage        = "has_garage"
	FieldElevator      = "has_elevator"
	FieldBalcony       = "has_balcony"
	FieldTerrace       = "has_terrace"
	FieldGym           = "has_gym"
	FieldEVCharging    = "has_ev_charging"
	FieldPetsAllowed   = "pets_allowed"
	FieldVector        = "vector"
	FieldVectorScore   = "__vector_score"
	FieldListingStatus = "status"
)

// IdentityFields are always treated as tags, even when their value looks numeric.
var IdentityFields = []string{FieldTenantID, FieldListingID, FieldDevelopmentID, FieldListingStatus}

// ReturnFields is what a KNN search reads back per hit. The vector blob is
// left out; __vector_score must be named once RETURN is used.
var ReturnFields = []string{
	FieldText,
	FieldTenantID, FieldListingID, FieldDevelopmentID, FieldListingStatus,
	FieldPrice, FieldBedrooms, FieldBathrooms, FieldArea,
	FieldPool, FieldGarden, FieldGarage, FieldElevator, FieldBalcony,
	FieldTerrace, FieldGym, FieldEVCharging, FieldPetsAllowed,
	FieldVectorScore,
}

// PriceOrder selects the extreme returned by a price lookup.
type PriceOrder int

const (
	// PriceAscending selects the cheapest listing.
	PriceAscending PriceOrder = iota + 1
	// PriceDescending selects the most expensive listing.
	PriceDescending
)

// SQL returns the ORDER BY direction for the order.
func (o PriceOrder) SQL() (string, error) {
	switch o {
	case PriceAscending:
		return "ASC", nil
	case PriceDescending:
		return "DESC", nil
	default:
		return "", fmt.Errorf("unknown price order %d", o)
	}
}

func (o PriceOrder) String() string {
	switch o {
	case PriceAscending:
		return "ascending"
	case PriceDescending:
		return "descending"
	default:
		return "unknown"
	}
}
