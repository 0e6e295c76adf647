package order

import "time"

type Item struct {
	ProductID string  `json:"productId"`
	Quantity  int     `json:"quantity"`
	Price     float64 `json:"price"`
}

type Address struct {
	Line1      string `json:"address"`
	City       string `json:"city"`
	PostalCode string `json:"postalCode"`
	Country    string `json:"country"`
}

type Order struct {
	ID          string    `json:"orderId"`
	UserID      string    `json:"userId"`
	Items       []Item    `json:"items"`
	TotalAmount float64   `json:"totalAmount"`
	PaymentID   string    `json:"paymentId"`
	Shipping    Address   `json:"shippingAddress"`
	CreatedAt   time.Time `json:"createdAt"`
}

// LineRequest is what clients send: product id and quantity only. Prices are
// recomputed server-side from the catalog, never taken from the client.
type LineRequest struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

// IntentResponse carries the provider handle back to the client together with
// the authoritative amount, in cents, that will be charged.
type IntentResponse struct {
	ClientSecret string  `json:"clientSecret"`
	AmountCents  int64   `json:"amount"`
	Currency     string  `json:"currency"`
	Total        float64 `json:"total"`
}
