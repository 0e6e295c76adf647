package cart

// Product is the snapshot of a book's attributes cached on a cart line at the
// time the line was last mutated. It is not re-validated against the server
// until checkout; the backend stays authoritative for live price and stock.
type Product struct {
	ID       string  `json:"productId"`
	Title    string  `json:"title"`
	Price    float64 `json:"price"`
	Stock    int     `json:"stock"`
	ImageURL string  `json:"imageUrl,omitempty"`
}

// Line is one product in the cart together with the quantity the user wants.
// A valid line always has 1 <= Quantity <= Product.Stock as of its last
// mutation; quantity-zero lines are removed, never stored.
type Line struct {
	Product  Product `json:"product"`
	Quantity int     `json:"quantity"`
}

// Subtotal is the display-only price of this line. The charged amount is
// always recomputed by the backend at checkout.
func (l Line) Subtotal() float64 {
	return l.Product.Price * float64(l.Quantity)
}

func (l Line) valid() bool {
	return l.Product.ID != "" && l.Quantity >= 1 && l.Product.Stock >= 0
}
