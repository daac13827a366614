package models

import "time"

// Listing is a single MLS row the exporters consume. The upstream feed is an
// external collaborator; this is only the slice of it the reports render.
type Listing struct {
	MLSNumber  string    `json:"mls_number"`
	Address    string    `json:"address"`
	City       string    `json:"city"`
	Zip        string    `json:"zip"`
	Status     string    `json:"status"`
	ListPrice  int64     `json:"list_price"`
	ClosePrice int64     `json:"close_price,omitempty"`
	Beds       int       `json:"beds"`
	Baths      float64   `json:"baths"`
	SquareFeet int       `json:"square_feet"`
	ListedAt   time.Time `json:"listed_at"`
}
