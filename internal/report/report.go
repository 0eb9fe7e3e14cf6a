package report

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"barpos/m/domain"
)

// Reports reads the tables owned by the ledger and checkout packages.
// It never mutates them.
type Reports struct {
	db *sqlx.DB
}

// New constructs a Reports reader over the shared database handle.
func New(db *sqlx.DB) *Reports {
	return &Reports{db: db}
}

// PlanillaRow is one bottle of the end-of-night reconciliation sheet:
// units and revenue per sale bucket plus the sealed bottles expected to
// remain. VASO and ENTRADA pours never reduce the expected count; their
// open-bottle remainder is counted by hand at close.
type PlanillaRow struct {
	BottleID       string  `json:"bottle_id"`
	Name           string  `json:"name"`
	VolumeML       int64   `json:"volume_ml"`
	OpeningStock   int64   `json:"opening_stock"`
	Remaining      int64   `json:"remaining"`
	PromoUnits     int64   `json:"promo_units"`
	PromoRevenue   float64 `json:"promo_revenue"`
	NormalUnits    int64   `json:"normal_units"`
	NormalRevenue  float64 `json:"normal_revenue"`
	VasoUnits      int64   `json:"vaso_units"`
	VasoRevenue    float64 `json:"vaso_revenue"`
	EntradaUnits   int64   `json:"entrada_units"`
	EntradaRevenue float64 `json:"entrada_revenue"`
	TotalRevenue   float64 `json:"total_revenue"`
}

// PlanillaTotals aggregates the sheet across all bottles.
type PlanillaTotals struct {
	PromoUnits     int64   `json:"promo_units"`
	PromoRevenue   float64 `json:"promo_revenue"`
	NormalUnits    int64   `json:"normal_units"`
	NormalRevenue  float64 `json:"normal_revenue"`
	VasoUnits      int64   `json:"vaso_units"`
	VasoRevenue    float64 `json:"vaso_revenue"`
	EntradaUnits   int64   `json:"entrada_units"`
	EntradaRevenue float64 `json:"entrada_revenue"`
	TotalRevenue   float64 `json:"total_revenue"`
}

// Planilla builds the reconciliation sheet for one date. The ticket-line
// tag is the source of truth for bucketing: combo sales appear as PROMO on
// both of their bottles, BOTELLA and untagged lines count as NORMAL.
func (r *Reports) Planilla(ctx context.Context, date string) ([]PlanillaRow, PlanillaTotals, error) {
	type bottleRow struct {
		ID           string `db:"id"`
		Name         string `db:"name"`
		VolumeML     int64  `db:"volume_ml"`
		OpeningStock int64  `db:"opening_stock"`
	}
	var bottles []bottleRow
	err := r.db.SelectContext(ctx, &bottles, `
        SELECT b.id, b.name, b.volume_ml,
               COALESCE(ss.sealed_count, b.sealed_count) AS opening_stock
        FROM bottles b
        LEFT JOIN stock_snapshots ss ON ss.bottle_id = b.id AND ss.date = ?
        ORDER BY b.name ASC`, date)
	if err != nil {
		return nil, PlanillaTotals{}, err
	}

	type salesRow struct {
		BottleID string  `db:"bottle_id"`
		Bucket   string  `db:"bucket"`
		Units    int64   `db:"units"`
		Revenue  float64 `db:"revenue"`
	}
	var sales []salesRow
	err = r.db.SelectContext(ctx, &sales, `
        SELECT b.id AS bottle_id,
               CASE
                   WHEN tl.tag = 'PROMO'   THEN 'PROMO'
                   WHEN tl.tag = 'ENTRADA' THEN 'ENTRADA'
                   WHEN tl.tag = 'VASO'    THEN 'VASO'
                   ELSE 'NORMAL'
               END AS bucket,
               SUM(tl.quantity) AS units,
               SUM(tl.subtotal) AS revenue
        FROM tickets t
        JOIN ticket_lines tl ON tl.ticket_id = t.id
        JOIN menu_items mi ON mi.id = tl.menu_item_id
        JOIN bottles b ON b.id = mi.bottle_id
        WHERE DATE(t.created_at) = ?
        GROUP BY b.id, bucket`, date)
	if err != nil {
		return nil, PlanillaTotals{}, err
	}

	type bucketTotals struct {
		units   int64
		revenue float64
	}
	byBottle := make(map[string]map[string]bucketTotals)
	for _, s := range sales {
		if byBottle[s.BottleID] == nil {
			byBottle[s.BottleID] = make(map[string]bucketTotals)
		}
		byBottle[s.BottleID][s.Bucket] = bucketTotals{units: s.Units, revenue: s.Revenue}
	}

	rows := make([]PlanillaRow, 0, len(bottles))
	var totals PlanillaTotals
	for _, b := range bottles {
		data := byBottle[b.ID]
		row := PlanillaRow{
			BottleID:     b.ID,
			Name:         b.Name,
			VolumeML:     b.VolumeML,
			OpeningStock: b.OpeningStock,
		}
		row.PromoUnits, row.PromoRevenue = data["PROMO"].units, data["PROMO"].revenue
		row.NormalUnits, row.NormalRevenue = data["NORMAL"].units, data["NORMAL"].revenue
		row.VasoUnits, row.VasoRevenue = data["VASO"].units, data["VASO"].revenue
		row.EntradaUnits, row.EntradaRevenue = data["ENTRADA"].units, data["ENTRADA"].revenue
		row.TotalRevenue = row.PromoRevenue + row.NormalRevenue + row.VasoRevenue + row.EntradaRevenue

		// Only whole-bottle buckets empty sealed bottles.
		consumed := row.PromoUnits + row.NormalUnits
		row.Remaining = b.OpeningStock - consumed
		if row.Remaining < 0 {
			row.Remaining = 0
		}

		totals.PromoUnits += row.PromoUnits
		totals.PromoRevenue += row.PromoRevenue
		totals.NormalUnits += row.NormalUnits
		totals.NormalRevenue += row.NormalRevenue
		totals.VasoUnits += row.VasoUnits
		totals.VasoRevenue += row.VasoRevenue
		totals.EntradaUnits += row.EntradaUnits
		totals.EntradaRevenue += row.EntradaRevenue
		totals.TotalRevenue += row.TotalRevenue

		rows = append(rows, row)
	}
	return rows, totals, nil
}

// DailySummary is the headline number for one date.
type DailySummary struct {
	Date        string  `json:"date"`
	Revenue     float64 `json:"revenue"`
	TicketCount int64   `json:"ticket_count"`
}

// Daily returns revenue and ticket count for one date.
func (r *Reports) Daily(ctx context.Context, date string) (DailySummary, error) {
	s := DailySummary{Date: date}
	err := r.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(total), 0), COUNT(*) FROM tickets WHERE DATE(created_at) = ?`, date).
		Scan(&s.Revenue, &s.TicketCount)
	return s, err
}

// TicketWithLines is a committed ticket with its ordered lines.
type TicketWithLines struct {
	domain.Ticket
	Lines []domain.TicketLine `json:"lines"`
}

// Ticket returns one ticket and its lines.
func (r *Reports) Ticket(ctx context.Context, id string) (TicketWithLines, error) {
	var out TicketWithLines
	err := r.db.GetContext(ctx, &out.Ticket,
		`SELECT id, total, payment_method, cash_received, created_by, created_at FROM tickets WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return TicketWithLines{}, domain.ErrNotFound
	}
	if err != nil {
		return TicketWithLines{}, err
	}
	err = r.db.SelectContext(ctx, &out.Lines,
		`SELECT id, ticket_id, position, menu_item_id, name, quantity, subtotal, tag FROM ticket_lines WHERE ticket_id = ? ORDER BY position ASC`, id)
	return out, err
}

// TicketsByDate returns every ticket of one date with its lines attached.
func (r *Reports) TicketsByDate(ctx context.Context, date string) ([]TicketWithLines, error) {
	var tickets []domain.Ticket
	err := r.db.SelectContext(ctx, &tickets,
		`SELECT id, total, payment_method, cash_received, created_by, created_at FROM tickets WHERE DATE(created_at) = ? ORDER BY created_at ASC`, date)
	if err != nil {
		return nil, err
	}
	if len(tickets) == 0 {
		return []TicketWithLines{}, nil
	}

	ids := make([]string, len(tickets))
	for i, t := range tickets {
		ids[i] = t.ID
	}
	query, args, err := sqlx.In(
		`SELECT id, ticket_id, position, menu_item_id, name, quantity, subtotal, tag FROM ticket_lines WHERE ticket_id IN (?) ORDER BY position ASC`, ids)
	if err != nil {
		return nil, err
	}
	query = r.db.Rebind(query)

	var lines []domain.TicketLine
	if err := r.db.SelectContext(ctx, &lines, query, args...); err != nil {
		return nil, err
	}
	byTicket := make(map[string][]domain.TicketLine)
	for _, ln := range lines {
		byTicket[ln.TicketID] = append(byTicket[ln.TicketID], ln)
	}

	out := make([]TicketWithLines, len(tickets))
	for i, t := range tickets {
		out[i] = TicketWithLines{Ticket: t, Lines: byTicket[t.ID]}
	}
	return out, nil
}
