// Package domainau reads for-sale listings from Domain.com.au search result
// pages.
package domainau

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/couchcryptid/listing-etl/internal/domain"
	"github.com/couchcryptid/listing-etl/internal/observability"
)

const (
	listingSelector      = "li[data-testid^='listing-']"
	listingIDPrefix      = "listing-"
	addressSelector      = "h2[data-testid='address-wrapper']"
	detailLinkSelector   = "a.address"
	featureSelector      = "span[data-testid='property-features-text-container']"
	featureLabelSelector = "span[data-testid='property-features-text']"
	priceSelector        = "p[data-testid='listing-card-price']"
	paginatorSelector    = "[data-testid=paginator-navigation-button]"

	nbsp = "\u00a0"
)

// ErrUnexpectedPage is returned when a fetched page has no paginator, which
// every results page renders, including one with zero matches. Bot checks and
// error pages land here instead of being read as an empty snapshot.
var ErrUnexpectedPage = errors.New("page is not a search results page")

// addressRe splits "42 Ferguson Avenue, MYRTLE BANK SA 5064" into street,
// suburb, state, and postcode.
var addressRe = regexp.MustCompile(`(?i)(.*?), (.*) (\w{2,3}) (\d{4})`)

// Options configures a Scraper.
type Options struct {
	Endpoint    string
	MaxPages    int
	PageTimeout time.Duration
	PageDelay   time.Duration
	UserAgent   string
}

// Scraper implements domain.ListingSource by walking search result pages.
type Scraper struct {
	opts    Options
	metrics *observability.Metrics
	logger  *slog.Logger
}

// NewScraper creates a Scraper.
func NewScraper(opts Options, metrics *observability.Metrics, logger *slog.Logger) *Scraper {
	return &Scraper{opts: opts, metrics: metrics, logger: logger}
}

// page holds what one results page yielded.
type page struct {
	listings     []domain.RawListing
	hasPaginator bool
	hasNext      bool
}

// SearchProperties returns every listing matching criteria. Pages are read in
// order until the forward paginator button is disabled, a page has no
// listings, or the page limit is reached. A page without a paginator fails the
// whole search with ErrUnexpectedPage.
func (s *Scraper) SearchProperties(ctx context.Context, criteria domain.SearchCriteria) ([]domain.RawListing, error) {
	searchURL, err := SearchURL(s.opts.Endpoint, criteria)
	if err != nil {
		return nil, err
	}

	c, current, err := s.newCollector(ctx)
	if err != nil {
		return nil, err
	}

	var listings []domain.RawListing
	for n := 1; n <= s.opts.MaxPages; n++ {
		*current = page{}
		u := pageURL(searchURL, n)

		if err := c.Visit(u); err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, fmt.Errorf("scrape results page %d: %w", n, err)
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if !current.hasPaginator {
			return nil, fmt.Errorf("scrape results page %d: %w", n, ErrUnexpectedPage)
		}
		s.metrics.PagesScraped.Inc()
		s.logger.Debug("results page scraped", "page", n, "listings", len(current.listings), "has_next", current.hasNext)

		if len(current.listings) == 0 {
			break
		}
		listings = append(listings, current.listings...)
		if !current.hasNext {
			break
		}
		if n == s.opts.MaxPages {
			s.logger.Warn("page limit reached, remaining results skipped", "max_pages", s.opts.MaxPages)
		}
	}
	return listings, nil
}

// newCollector wires the HTML callbacks into a collector whose results land in
// the returned page.
func (s *Scraper) newCollector(ctx context.Context) (*colly.Collector, *page, error) {
	c := colly.NewCollector(
		colly.UserAgent(s.opts.UserAgent),
		colly.StdlibContext(ctx),
		colly.AllowURLRevisit(),
	)
	c.SetRequestTimeout(s.opts.PageTimeout)
	if err := c.Limit(&colly.LimitRule{DomainGlob: "*", Delay: s.opts.PageDelay}); err != nil {
		return nil, nil, fmt.Errorf("configure page delay: %w", err)
	}

	current := &page{}

	c.OnHTML(listingSelector, func(e *colly.HTMLElement) {
		listing, ok := parseListing(e)
		if !ok {
			s.logger.Warn("listing card without id skipped", "url", e.Request.URL.String())
			return
		}
		current.listings = append(current.listings, listing)
	})

	c.OnHTML("body", func(e *colly.HTMLElement) {
		var forward *colly.HTMLElement
		e.ForEach(paginatorSelector, func(_ int, b *colly.HTMLElement) {
			forward = b
		})
		current.hasPaginator = forward != nil
		current.hasNext = forward != nil && !isDisabled(forward)
	})

	return c, current, nil
}

func parseListing(e *colly.HTMLElement) (domain.RawListing, bool) {
	id := strings.TrimPrefix(e.Attr("data-testid"), listingIDPrefix)
	if id == "" {
		return domain.RawListing{}, false
	}

	listing := domain.RawListing{
		ID:      id,
		Address: parseAddress(normalizeText(e.ChildText(addressSelector))),
	}
	if href := e.ChildAttr(detailLinkSelector, "href"); href != "" {
		listing.DetailPageAddress = e.Request.AbsoluteURL(href)
	}

	e.ForEach(featureSelector, func(_ int, f *colly.HTMLElement) {
		text := normalizeText(f.Text)
		label := normalizeText(f.ChildText(featureLabelSelector))
		switch {
		case strings.HasPrefix(label, "Bed"):
			listing.BedroomCount = parseUint(featureCount(text, label))
		case strings.HasPrefix(label, "Bath"):
			listing.BathroomCount = parseFloat(featureCount(text, label))
		case strings.HasPrefix(label, "Parking"):
			listing.CarparkCount = parseUint(featureCount(text, label))
		case strings.Contains(text, "m²"):
			listing.LandSize = &text
		}
	})

	if price := normalizeText(e.ChildText(priceSelector)); price != "" {
		listing.Price = &price
	}
	return listing, true
}

// parseAddress splits a card address. Text that does not match the expected
// layout is kept whole as the street address.
func parseAddress(text string) domain.PropertyAddress {
	m := addressRe.FindStringSubmatch(text)
	if m == nil {
		return domain.PropertyAddress{StreetAddress: text}
	}
	return domain.PropertyAddress{
		StreetAddress: m[1],
		Suburb:        m[2],
		State:         m[3],
		PostCode:      m[4],
	}
}

func normalizeText(s string) string {
	return strings.TrimSpace(strings.ReplaceAll(s, nbsp, " "))
}

func featureCount(text, label string) string {
	return strings.TrimSpace(strings.Replace(text, label, "", 1))
}

func parseUint(s string) *uint {
	n, err := strconv.ParseUint(s, 10, 0)
	if err != nil {
		return nil
	}
	v := uint(n)
	return &v
}

func parseFloat(s string) *float64 {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &f
}

func isDisabled(e *colly.HTMLElement) bool {
	if _, ok := e.DOM.Attr("disabled"); ok {
		return true
	}
	return e.Attr("aria-disabled") == "true"
}
