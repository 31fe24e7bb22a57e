package domainau

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/couchcryptid/listing-etl/internal/domain"
)

// suburbSlugs maps each supported suburb to the value the search page expects.
var suburbSlugs = map[domain.Suburb]string{
	domain.Leabrook:       "leabrook-sa-5068",
	domain.ToorakGardens:  "toorak-gardens-sa-5065",
	domain.Erindale:       "erindale-sa-5066",
	domain.HazelwoodPark:  "hazelwood-park-sa-5066",
	domain.Dulwich:        "dulwich-sa-5065",
	domain.LindenPark:     "linden-park-sa-5065",
	domain.Glenside:       "glenside-sa-5065",
	domain.Frewville:      "frewville-sa-5063",
	domain.Glenunga:       "glenunga-sa-5064",
	domain.StGeorges:      "st-georges-sa-5064",
	domain.Eastwood:       "eastwood-sa-5063",
	domain.Unley:          "unley-sa-5061",
	domain.Parkside:       "parkside-sa-5063",
	domain.Fullarton:      "fullarton-sa-5063",
	domain.MyrtleBank:     "myrtle-bank-sa-5064",
	domain.GlenOsmond:     "glen-osmond-sa-5064",
	domain.Beaumont:       "beaumont-sa-5066",
	domain.MountOsmond:    "mount-osmond-sa-5064",
	domain.LeawoodGardens: "leawood-gardens-sa-5150",
}

// propertyTypeValues maps each property type to the site's listing categories.
// "pent0house" is the value the site itself uses.
var propertyTypeValues = map[domain.PropertyType][]string{
	domain.House:     {"house", "duplex", "free-standing", "new-home-designs", "new-house-land", "semi-detached", "terrace", "villa"},
	domain.Townhouse: {"town-house", "block-of-units"},
	domain.Apartment: {"apartment-unit-flat", "new-apartments", "pent0house", "studio"},
	domain.Land:      {"vacant-land", "development-site", "new-land"},
}

// SearchURL builds the first results page URL for criteria. Parameters are
// written in the order the site itself produces them.
func SearchURL(endpoint string, criteria domain.SearchCriteria) (string, error) {
	suburbs := make([]string, 0, len(criteria.Suburbs))
	for _, s := range criteria.Suburbs {
		slug, ok := suburbSlugs[s]
		if !ok {
			return "", fmt.Errorf("no search slug for suburb %q", s)
		}
		suburbs = append(suburbs, slug)
	}

	var ptypes []string
	for _, pt := range criteria.PropertyTypes {
		values, ok := propertyTypeValues[pt]
		if !ok {
			return "", fmt.Errorf("no search category for property type %q", pt)
		}
		ptypes = append(ptypes, values...)
	}

	var b strings.Builder
	b.WriteString(endpoint)
	b.WriteString("?suburb=")
	b.WriteString(strings.Join(suburbs, ","))
	b.WriteString("&ptype=")
	b.WriteString(strings.Join(ptypes, ","))
	b.WriteString("&bedrooms=")
	b.WriteString(strconv.FormatUint(uint64(criteria.MinBedrooms), 10))
	b.WriteString("-any&bathrooms=")
	b.WriteString(strconv.FormatUint(uint64(criteria.MinBathrooms), 10))
	b.WriteString("-any&price=0-")
	b.WriteString(strconv.FormatUint(criteria.MaxPrice, 10))
	b.WriteString("&excludeunderoffer=1&carspaces=")
	b.WriteString(strconv.FormatUint(uint64(criteria.MinCarparks), 10))
	b.WriteString("-any")
	return b.String(), nil
}

// pageURL returns the URL of results page n, counting from 1.
func pageURL(searchURL string, n int) string {
	if n <= 1 {
		return searchURL
	}
	return searchURL + "&page=" + strconv.Itoa(n)
}
