package catalog

import "time"

type Book struct {
	ID        string    `json:"productId"`
	Title     string    `json:"title"`
	Author    string    `json:"author"`
	Genre     string    `json:"genre"`
	Price     float64   `json:"price"`
	Stock     int       `json:"stock"`
	ImageURL  string    `json:"imageUrl,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// ListParams filters and pages the catalog. Page is 1-based.
type ListParams struct {
	Page   int
	Limit  int
	Genre  string
	Search string
}

type Line struct {
	ProductID string
	Quantity  int
}

type DepletedLine struct {
	ProductID string
	Requested int
	Available int
}

// ReserveResult reports either a full reservation or, when any line is short,
// the depleted lines with nothing decremented.
type ReserveResult struct {
	Reserved []Line
	Depleted []DepletedLine
}
