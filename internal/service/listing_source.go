package service

import (
	"context"
	"fmt"
	"hash/fnv"
	"math/rand"
	"time"

	"github.com/easydeed/reportscompany-sub005/internal/models"
)

// ListingSource supplies the MLS rows a report renders. The production feed
// lives behind this interface; the stub below keeps the pipeline runnable
// without MLS credentials.
type ListingSource interface {
	FetchListings(ctx context.Context, area models.AreaSelector, reportType models.ReportType, lookbackDays int) ([]models.Listing, error)
}

// StubListingSource generates deterministic sample listings keyed off the
// area, so repeated runs for the same schedule render the same report.
type StubListingSource struct{}

// NewStubListingSource constructs the stub feed.
func NewStubListingSource() *StubListingSource {
	return &StubListingSource{}
}

var stubStreets = []string{"Maple Ave", "Oak St", "Colorado Blvd", "Foothill Dr", "Sierra Madre Blvd", "Marengo Ave", "Lake Ave", "Del Mar Blvd"}

var stubStatuses = map[models.ReportType][]string{
	models.ReportTypeNewListings:        {"Active"},
	models.ReportTypeNewListingsGallery: {"Active"},
	models.ReportTypeClosedSales:        {"Closed"},
	models.ReportTypeOpenHouses:         {"Active"},
	models.ReportTypeFeaturedListings:   {"Active"},
}

// FetchListings returns sample rows scoped to the selector.
func (s *StubListingSource) FetchListings(ctx context.Context, area models.AreaSelector, reportType models.ReportType, lookbackDays int) ([]models.Listing, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	city := "Pasadena"
	zips := []string{"91101", "91103", "91105"}
	if area.Kind == models.AreaKindCity && area.City != nil && *area.City != "" {
		city = *area.City
	}
	if area.Kind == models.AreaKindZips && len(area.ZipCodes) > 0 {
		zips = area.ZipCodes
	}

	statuses, ok := stubStatuses[reportType]
	if !ok {
		statuses = []string{"Active", "Pending", "Closed"}
	}

	seed := fnv.New64a()
	seed.Write([]byte(city))
	for _, z := range zips {
		seed.Write([]byte(z))
	}
	seed.Write([]byte(reportType))
	rng := rand.New(rand.NewSource(int64(seed.Sum64())))

	count := 8 + rng.Intn(12)
	now := time.Now().UTC()
	listings := make([]models.Listing, 0, count)
	for i := 0; i < count; i++ {
		price := int64(450_000 + rng.Intn(2_000_000))
		listing := models.Listing{
			MLSNumber:  fmt.Sprintf("MLS-%07d", rng.Intn(10_000_000)),
			Address:    fmt.Sprintf("%d %s", 100+rng.Intn(9000), stubStreets[rng.Intn(len(stubStreets))]),
			City:       city,
			Zip:        zips[rng.Intn(len(zips))],
			Status:     statuses[rng.Intn(len(statuses))],
			ListPrice:  price,
			Beds:       2 + rng.Intn(4),
			Baths:      float64(1+rng.Intn(3)) + 0.5*float64(rng.Intn(2)),
			SquareFeet: 900 + rng.Intn(3200),
			ListedAt:   now.AddDate(0, 0, -rng.Intn(lookbackDays+1)),
		}
		if listing.Status == "Closed" {
			listing.ClosePrice = price - int64(rng.Intn(50_000))
		}
		listings = append(listings, listing)
	}

	return listings, nil
}
