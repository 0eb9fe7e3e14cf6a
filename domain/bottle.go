package domain

// Bottle is one distinct liquor tracked as a sealed-bottle count plus the
// fractional content of at most one open bottle.
type Bottle struct {
	ID               string  `db:"id" json:"id"`
	Name             string  `db:"name" json:"name"`
	VolumeML         int64   `db:"volume_ml" json:"volume_ml"`
	SealedCount      int64   `db:"sealed_count" json:"sealed_count"`
	OpenFraction     float64 `db:"open_fraction" json:"open_fraction"`
	GlassesPerBottle int64   `db:"glasses_per_bottle" json:"glasses_per_bottle"`
	CreatedAt        string  `db:"created_at" json:"created_at"`
	UpdatedAt        string  `db:"updated_at" json:"updated_at"`
}

// AvailableML is the total liquid on hand: the open bottle's remainder plus
// every sealed bottle.
func (b Bottle) AvailableML() float64 {
	open := b.OpenFraction / 100 * float64(b.VolumeML)
	return open + float64(b.SealedCount)*float64(b.VolumeML)
}

// ServingML is the pour size for by-the-glass sales, informational only.
func (b Bottle) ServingML() int64 {
	if b.GlassesPerBottle < 1 {
		return b.VolumeML
	}
	return b.VolumeML / b.GlassesPerBottle
}
