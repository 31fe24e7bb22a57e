// Package domain models geocoded real-estate listings.
//
// # Data Source
//
// Listings are scraped from Domain.com.au "for sale" search result pages for a
// fixed set of eastern Adelaide suburbs. Each result card carries a listing id,
// a single-line address, optional feature counts, an optional land size, a
// free-text price and a link to the listing's detail page.
//
// # Address Conventions
//
// Address strings on result cards have the shape:
//
//	"<street>, <SUBURB> <STATE> <postcode>"  →  e.g. "42 Ferguson Avenue, MYRTLE BANK SA 5064"
//
// Non-breaking spaces are normalised to plain spaces before parsing. Text that
// does not fit the shape is kept verbatim as the street component with the
// other components unknown, so an odd address never fails a listing.
//
// Address equality is component-wise. It is used to reuse coordinates that a
// previous run already paid for, never to decide listing identity.
//
// # Feature Values
//
//	Bedrooms, carparks: whole numbers ("3 Beds", "2 Parking").
//	Bathrooms:          may be fractional in source data ("1.5 Baths").
//	Land size, price:   free text ("455m²", "AUCTION ON SITE"), not normalised.
//
// Unknown values are nil rather than zero so "no data" stays distinguishable
// from "none".
//
// # Identity and Market Status
//
// The listing id assigned by the source is the record identity. A record is
// on-market exactly when its id appeared in the most recent successful fetch;
// records that drop out of the feed are retired to off-market and retained.
package domain
