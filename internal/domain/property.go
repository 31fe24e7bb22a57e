package domain

import "errors"

// ErrEmptyID is returned when a listing or record carries no identifier.
var ErrEmptyID = errors.New("property id is empty")

// GeocodedProperty is the durable record of a listing plus its coordinate.
// Nil pointer fields mean the value is unknown, which is distinct from zero.
type GeocodedProperty struct {
	ID                   string                `json:"id"`
	Address              PropertyAddress       `json:"address"`
	GeographicCoordinate *GeographicCoordinate `json:"geographicCoordinate"`
	BedroomCount         *uint                 `json:"bedroomCount"`
	BathroomCount        *float64              `json:"bathroomCount"`
	CarparkCount         *uint                 `json:"carparkCount"`
	LandSize             *string               `json:"landSize"`
	Price                *string               `json:"price"`
	DetailPageAddress    *string               `json:"detailPageAddress"`
	OnMarket             bool                  `json:"onMarket"`
}

// NewGeocodedProperty builds an on-market record for a freshly fetched listing.
func NewGeocodedProperty(listing RawListing, coord *GeographicCoordinate) GeocodedProperty {
	p := GeocodedProperty{
		ID:            listing.ID,
		Address:       listing.Address,
		BedroomCount:  cloneUint(listing.BedroomCount),
		BathroomCount: cloneFloat(listing.BathroomCount),
		CarparkCount:  cloneUint(listing.CarparkCount),
		LandSize:      cloneString(listing.LandSize),
		Price:         cloneString(listing.Price),
		OnMarket:      true,
	}
	if coord != nil {
		c := *coord
		p.GeographicCoordinate = &c
	}
	if listing.DetailPageAddress != "" {
		u := listing.DetailPageAddress
		p.DetailPageAddress = &u
	}
	return p
}

// Validate checks that the record can be persisted.
func (p GeocodedProperty) Validate() error {
	if p.ID == "" {
		return ErrEmptyID
	}
	return nil
}

// SetOffMarket retires the record. It is only called by the store when the
// whole dataset is retired ahead of a merge.
func (p *GeocodedProperty) SetOffMarket() {
	p.OnMarket = false
}

// Clone returns a deep copy so callers never share pointer fields with the store.
func (p GeocodedProperty) Clone() GeocodedProperty {
	c := p
	if p.GeographicCoordinate != nil {
		coord := *p.GeographicCoordinate
		c.GeographicCoordinate = &coord
	}
	c.BedroomCount = cloneUint(p.BedroomCount)
	c.BathroomCount = cloneFloat(p.BathroomCount)
	c.CarparkCount = cloneUint(p.CarparkCount)
	c.LandSize = cloneString(p.LandSize)
	c.Price = cloneString(p.Price)
	c.DetailPageAddress = cloneString(p.DetailPageAddress)
	return c
}

// CloneAll deep-copies a slice of records.
func CloneAll(records []GeocodedProperty) []GeocodedProperty {
	out := make([]GeocodedProperty, len(records))
	for i := range records {
		out[i] = records[i].Clone()
	}
	return out
}

func cloneUint(v *uint) *uint {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func cloneFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func cloneString(v *string) *string {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
