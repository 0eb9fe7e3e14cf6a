package domain

// MenuItem is a sellable button on the bartender screen. COMBO items carry a
// second bottle reference that is depleted alongside the primary one.
type MenuItem struct {
	ID           string   `db:"id" json:"id"`
	BottleID     string   `db:"bottle_id" json:"bottle_id"`
	ComplementID *string  `db:"complement_id" json:"complement_id,omitempty"`
	Name         string   `db:"name" json:"name"`
	SaleType     SaleType `db:"sale_type" json:"sale_type"`
	Price        float64  `db:"price" json:"price"`
	PromoPrice   *float64 `db:"promo_price" json:"promo_price,omitempty"`
	ComboDesc    string   `db:"combo_desc" json:"combo_desc"`
	Hidden       bool     `db:"hidden" json:"-"`
	CreatedAt    string   `db:"created_at" json:"created_at"`
}

// NightEntry activates a menu item for one night, optionally overriding its
// price or sale type for that date.
type NightEntry struct {
	ItemID           string    `db:"item_id" json:"item_id"`
	Date             string    `db:"date" json:"date"`
	SaleTypeOverride *SaleType `db:"sale_type_override" json:"sale_type_override,omitempty"`
	PriceOverride    *float64  `db:"price_override" json:"price_override,omitempty"`
}
