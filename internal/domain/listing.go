package domain

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// RawListing is one search result as produced by a listing source. It has no
// coordinate and is never persisted directly.
type RawListing struct {
	ID                string
	Address           PropertyAddress
	BedroomCount      *uint
	BathroomCount     *float64
	CarparkCount      *uint
	LandSize          *string
	Price             *string
	DetailPageAddress string
}

// ListingSource fetches the complete snapshot of listings matching criteria.
// Implementations must collect every result page and must terminate even when
// the result set is unbounded.
type ListingSource interface {
	SearchProperties(ctx context.Context, criteria SearchCriteria) ([]RawListing, error)
}

// PropertyType is a category of dwelling a search can be restricted to.
type PropertyType string

const (
	House     PropertyType = "house"
	Apartment PropertyType = "apartment"
	Townhouse PropertyType = "townhouse"
	Land      PropertyType = "land"
)

// AllPropertyTypes lists every supported property type.
var AllPropertyTypes = []PropertyType{House, Apartment, Townhouse, Land}

// ParsePropertyType resolves a case-insensitive property type name.
func ParsePropertyType(s string) (PropertyType, error) {
	want := strings.ToLower(strings.TrimSpace(s))
	for _, t := range AllPropertyTypes {
		if string(t) == want {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown property type %q", s)
}

// Suburb is a locality the listing search can cover.
type Suburb string

const (
	Leabrook       Suburb = "Leabrook"
	ToorakGardens  Suburb = "ToorakGardens"
	Erindale       Suburb = "Erindale"
	HazelwoodPark  Suburb = "HazelwoodPark"
	Dulwich        Suburb = "Dulwich"
	LindenPark     Suburb = "LindenPark"
	Glenside       Suburb = "Glenside"
	Frewville      Suburb = "Frewville"
	Glenunga       Suburb = "Glenunga"
	StGeorges      Suburb = "StGeorges"
	Eastwood       Suburb = "Eastwood"
	Unley          Suburb = "Unley"
	Parkside       Suburb = "Parkside"
	Fullarton      Suburb = "Fullarton"
	MyrtleBank     Suburb = "MyrtleBank"
	GlenOsmond     Suburb = "GlenOsmond"
	Beaumont       Suburb = "Beaumont"
	MountOsmond    Suburb = "MountOsmond"
	LeawoodGardens Suburb = "LeawoodGardens"
)

// AllSuburbs lists every supported suburb.
var AllSuburbs = []Suburb{
	Leabrook, ToorakGardens, Erindale, HazelwoodPark, Dulwich, LindenPark,
	Glenside, Frewville, Glenunga, StGeorges, Eastwood, Unley, Parkside,
	Fullarton, MyrtleBank, GlenOsmond, Beaumont, MountOsmond, LeawoodGardens,
}

// ParseSuburb resolves a suburb name ignoring case, spaces and hyphens, so
// "toorak-gardens", "Toorak Gardens" and "ToorakGardens" are equivalent.
func ParseSuburb(s string) (Suburb, error) {
	want := foldName(s)
	for _, sub := range AllSuburbs {
		if foldName(string(sub)) == want {
			return sub, nil
		}
	}
	return "", fmt.Errorf("unknown suburb %q", s)
}

func foldName(s string) string {
	r := strings.NewReplacer(" ", "", "-", "", "_", "", ".", "")
	return strings.ToLower(r.Replace(strings.TrimSpace(s)))
}

// SearchCriteria restricts which listings are fetched. It is built once per run.
type SearchCriteria struct {
	PropertyTypes []PropertyType
	Suburbs       []Suburb
	MinBedrooms   uint
	MinBathrooms  uint
	MinCarparks   uint
	MaxPrice      uint64
}

// DefaultMaxPrice is the price ceiling used when none is given.
const DefaultMaxPrice uint64 = 10_000_000

// DefaultSearchCriteria returns houses and townhouses in every supported
// suburb with no feature minimums.
func DefaultSearchCriteria() SearchCriteria {
	suburbs := make([]Suburb, len(AllSuburbs))
	copy(suburbs, AllSuburbs)
	return SearchCriteria{
		PropertyTypes: []PropertyType{House, Townhouse},
		Suburbs:       suburbs,
		MaxPrice:      DefaultMaxPrice,
	}
}

// Validate reports whether the criteria can produce a search.
func (c SearchCriteria) Validate() error {
	if len(c.PropertyTypes) == 0 {
		return errors.New("search criteria: at least one property type is required")
	}
	if len(c.Suburbs) == 0 {
		return errors.New("search criteria: at least one suburb is required")
	}
	return nil
}
