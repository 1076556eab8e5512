package domain

// OrderLine is a request for Qty units of SKU on behalf of an order.
// Two lines with identical fields are interchangeable.
type OrderLine struct {
	OrderID string
	SKU     string
	Qty     int
}
