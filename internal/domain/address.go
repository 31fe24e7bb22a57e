package domain

import (
	"encoding/json"
	"strings"
)

// PropertyAddress is a postal address. Any component may be unknown, which is
// represented by the empty string in Go and by null in JSON. Two addresses are
// the same when every component matches, so values compare with ==.
type PropertyAddress struct {
	StreetAddress string
	Suburb        string
	State         string
	PostCode      string
}

// GeographicCoordinate is a WGS-84 latitude/longitude pair.
type GeographicCoordinate struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// String formats the address as "street, suburb, STATE postcode".
func (a PropertyAddress) String() string {
	var b strings.Builder
	b.WriteString(a.StreetAddress)
	b.WriteString(", ")
	b.WriteString(a.Suburb)
	b.WriteString(", ")
	b.WriteString(a.State)
	b.WriteString(" ")
	b.WriteString(a.PostCode)
	return b.String()
}

// IsZero reports whether no component of the address is known.
func (a PropertyAddress) IsZero() bool {
	return a == PropertyAddress{}
}

type addressJSON struct {
	StreetAddress *string `json:"streetAddress"`
	Suburb        *string `json:"suburb"`
	State         *string `json:"state"`
	PostCode      *string `json:"postCode"`
}

// MarshalJSON writes unknown components as null.
func (a PropertyAddress) MarshalJSON() ([]byte, error) {
	return json.Marshal(addressJSON{
		StreetAddress: nullIfEmpty(a.StreetAddress),
		Suburb:        nullIfEmpty(a.Suburb),
		State:         nullIfEmpty(a.State),
		PostCode:      nullIfEmpty(a.PostCode),
	})
}

// UnmarshalJSON reads null components as unknown.
func (a *PropertyAddress) UnmarshalJSON(data []byte) error {
	var aux addressJSON
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*a = PropertyAddress{
		StreetAddress: valueOrEmpty(aux.StreetAddress),
		Suburb:        valueOrEmpty(aux.Suburb),
		State:         valueOrEmpty(aux.State),
		PostCode:      valueOrEmpty(aux.PostCode),
	}
	return nil
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func valueOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
