package domain

import "context"

// GeocodingResult contains the coordinate returned by a geocoding provider.
type GeocodingResult struct {
	Latitude   float64
	Longitude  float64
	Confidence float64 // provider confidence score, not persisted
}

// Coordinate drops the confidence score.
func (r GeocodingResult) Coordinate() GeographicCoordinate {
	return GeographicCoordinate{Latitude: r.Latitude, Longitude: r.Longitude}
}

// Geocoder resolves a postal address to a coordinate.
type Geocoder interface {
	Geocode(ctx context.Context, addr PropertyAddress) (GeocodingResult, error)
}
