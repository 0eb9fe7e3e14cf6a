package domain

// Ticket is one committed checkout. It owns its lines; neither is ever
// updated after commit.
type Ticket struct {
	ID            string   `db:"id" json:"id"`
	Total         float64  `db:"total" json:"total"`
	PaymentMethod string   `db:"payment_method" json:"payment_method"`
	CashReceived  *float64 `db:"cash_received" json:"cash_received,omitempty"`
	CreatedBy     string   `db:"created_by" json:"created_by"`
	CreatedAt     string   `db:"created_at" json:"created_at"`
}

// TicketLine is one line of a ticket. MenuItemID is nil for free-text
// extras. Tag classifies the line for reconciliation and is independent of
// the menu item's own sale type: combo sales decompose into two PROMO lines.
type TicketLine struct {
	ID         string  `db:"id" json:"id"`
	TicketID   string  `db:"ticket_id" json:"ticket_id"`
	Position   int64   `db:"position" json:"position"`
	MenuItemID *string `db:"menu_item_id" json:"menu_item_id,omitempty"`
	Name       string  `db:"name" json:"name"`
	Quantity   int64   `db:"quantity" json:"quantity"`
	Subtotal   float64 `db:"subtotal" json:"subtotal"`
	Tag        string  `db:"tag" json:"tag"`
}
