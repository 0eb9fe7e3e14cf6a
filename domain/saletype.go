package domain

// SaleType classifies how a menu item consumes bottle inventory.
type SaleType string

const (
	SaleVaso    SaleType = "VASO"    // single glass poured from the open bottle
	SaleNormal  SaleType = "NORMAL"  // whole bottle at regular price
	SaleBotella SaleType = "BOTELLA" // whole bottle, alias of NORMAL for reporting
	SalePromo   SaleType = "PROMO"   // whole bottle at promotional price
	SaleCombo   SaleType = "COMBO"   // whole bottle plus a complement bottle
	SaleEntrada SaleType = "ENTRADA" // cover-charge courtesy glass
)

// DeductionPolicy is how a sale type depletes a bottle row.
type DeductionPolicy int

const (
	// DeductByGlass opens a sealed bottle when none is open; exact
	// glass-level depletion is reconciled manually at shift close.
	DeductByGlass DeductionPolicy = iota
	// DeductWholeBottle consumes 100 percentage points of content per unit.
	DeductWholeBottle
)

var deductionPolicies = map[SaleType]DeductionPolicy{
	SaleVaso:    DeductByGlass,
	SaleEntrada: DeductByGlass,
	SaleNormal:  DeductWholeBottle,
	SaleBotella: DeductWholeBottle,
	SalePromo:   DeductWholeBottle,
	SaleCombo:   DeductWholeBottle,
}

// Valid reports whether s is one of the known sale types.
func (s SaleType) Valid() bool {
	_, ok := deductionPolicies[s]
	return ok
}

// Policy returns the deduction policy for s. Callers must check Valid first;
// an unknown type maps to the zero policy.
func (s SaleType) Policy() DeductionPolicy {
	return deductionPolicies[s]
}
