package checkout

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"

	"barpos/m/domain"
	"barpos/m/internal/ledger"
)

// LineRequest is one submitted ticket line. Exactly one shape applies:
// a menu button (MenuItemID), an ad-hoc combo (LicorID + RefrescoID +
// Price), or a free-text extra (Name + Price + Label).
type LineRequest struct {
	MenuItemID string  `json:"menu_item_id,omitempty"`
	LicorID    string  `json:"licor_id,omitempty"`
	RefrescoID string  `json:"refresco_id,omitempty"`
	Name       string  `json:"name,omitempty"`
	Label      string  `json:"label,omitempty"`
	Price      float64 `json:"price,omitempty"`
	Quantity   int64   `json:"quantity"`
}

type lineKind int

const (
	kindMenu lineKind = iota
	kindCustomCombo
	kindExtra
)

func (l LineRequest) kind() lineKind {
	switch {
	case l.LicorID != "" && l.RefrescoID != "":
		return kindCustomCombo
	case l.MenuItemID != "":
		return kindMenu
	default:
		return kindExtra
	}
}

// Request is a full submitted ticket.
type Request struct {
	Lines         []LineRequest `json:"lines"`
	PaymentMethod string        `json:"payment_method,omitempty"`
	CashReceived  *float64      `json:"cash_received,omitempty"`
	CreatedBy     string        `json:"created_by,omitempty"`
}

// ReceiptLine is one display row of the checkout response, one per
// submitted request; combo decomposition stays a persistence detail.
type ReceiptLine struct {
	Name     string  `json:"name"`
	Quantity int64   `json:"quantity"`
	Subtotal float64 `json:"subtotal"`
}

// Result is the committed outcome of a checkout.
type Result struct {
	TicketID string        `json:"ticket_id"`
	Total    float64       `json:"total"`
	Lines    []ReceiptLine `json:"lines"`
}

// Processor turns submitted tickets into committed Ticket + TicketLine rows,
// deducting bottle inventory through the ledger. Everything happens inside
// one write transaction: any failed deduction aborts the whole ticket.
type Processor struct {
	db *sqlx.DB
}

// New constructs a Processor over the shared database handle.
func New(db *sqlx.DB) *Processor {
	return &Processor{db: db}
}

// menuRow is a menu item with tonight's overrides already applied.
type menuRow struct {
	ID           string          `db:"id"`
	BottleID     string          `db:"bottle_id"`
	ComplementID *string         `db:"complement_id"`
	Name         string          `db:"name"`
	SaleType     domain.SaleType `db:"sale_type"`
	Price        float64         `db:"price"`
}

const selectMenuRow = `SELECT mi.id, mi.bottle_id, mi.complement_id, mi.name,
        COALESCE(nm.sale_type_override, mi.sale_type) AS sale_type,
        COALESCE(nm.price_override, mi.price) AS price
    FROM menu_items mi
    LEFT JOIN night_menu nm ON nm.item_id = mi.id AND nm.date = ?
    WHERE mi.id = ?`

type pending struct {
	kind            lineKind
	item            menuRow // menu lines
	licor, refresco menuRow // custom combos
	name            string
	label           string
	qty             int64
	subtotal        float64
}

// Process validates, prices, deducts and persists one ticket atomically.
// On any ledger error the transaction rolls back and the error kind is
// surfaced unchanged; no partial ticket or stock change remains visible.
func (p *Processor) Process(ctx context.Context, req Request) (Result, error) {
	if len(req.Lines) == 0 {
		return Result{}, domain.ErrEmptyTicket
	}
	for _, ln := range req.Lines {
		if ln.Quantity < 1 {
			return Result{}, domain.ErrInvalidQuantity
		}
	}

	payment := req.PaymentMethod
	if payment == "" {
		payment = "EFECTIVO"
	}
	today := time.Now().UTC().Format("2006-01-02")

	tx, err := p.db.BeginTxx(ctx, nil)
	if err != nil {
		return Result{}, err
	}
	defer tx.Rollback()

	// First pass: resolve menu items and price every line so the ticket
	// header can be written with its final total.
	staged := make([]pending, 0, len(req.Lines))
	var total float64
	for _, ln := range req.Lines {
		pl := pending{kind: ln.kind(), qty: ln.Quantity, label: ln.Label}
		switch pl.kind {
		case kindMenu:
			item, err := getMenuRow(tx, today, ln.MenuItemID)
			if err != nil {
				return Result{}, err
			}
			pl.item = item
			pl.name = item.Name
			pl.subtotal = item.Price * float64(ln.Quantity)
		case kindCustomCombo:
			licor, err := getMenuRow(tx, today, ln.LicorID)
			if err != nil {
				return Result{}, err
			}
			refresco, err := getMenuRow(tx, today, ln.RefrescoID)
			if err != nil {
				return Result{}, err
			}
			pl.licor, pl.refresco = licor, refresco
			pl.name = ln.Name
			if pl.name == "" {
				pl.name = "Combo"
			}
			pl.subtotal = ln.Price * float64(ln.Quantity)
		case kindExtra:
			pl.name = ln.Name
			pl.subtotal = ln.Price * float64(ln.Quantity)
		}
		total += pl.subtotal
		staged = append(staged, pl)
	}

	ticketID := uuid.NewString()
	if _, err := tx.Exec(`INSERT INTO tickets (id, total, payment_method, cash_received, created_by) VALUES (?, ?, ?, ?, ?)`,
		ticketID, total, payment, req.CashReceived, req.CreatedBy); err != nil {
		return Result{}, err
	}

	// Second pass: deduct inventory and write the persisted lines.
	w := lineWriter{tx: tx, ticketID: ticketID}
	receipt := make([]ReceiptLine, 0, len(staged))
	for _, pl := range staged {
		switch pl.kind {
		case kindMenu:
			if err := p.processMenuLine(tx, &w, pl); err != nil {
				return Result{}, err
			}
		case kindCustomCombo:
			if err := p.processCustomCombo(tx, &w, pl); err != nil {
				return Result{}, err
			}
		case kindExtra:
			if err := w.insert(nil, pl.name, pl.qty, pl.subtotal, pl.label); err != nil {
				return Result{}, err
			}
		}
		receipt = append(receipt, ReceiptLine{Name: pl.name, Quantity: pl.qty, Subtotal: pl.subtotal})
	}

	if err := tx.Commit(); err != nil {
		return Result{}, err
	}

	log.Info().
		Str("ticket_id", ticketID).
		Float64("total", total).
		Int("lines", len(receipt)).
		Str("payment", payment).
		Msg("ticket committed")

	return Result{TicketID: ticketID, Total: total, Lines: receipt}, nil
}

// processMenuLine deducts the item's primary bottle and, for catalog
// combos, the complement as a whole bottle. Combos decompose into two
// PROMO-tagged lines with the revenue attributed once, to the primary.
func (p *Processor) processMenuLine(tx *sqlx.Tx, w *lineWriter, pl pending) error {
	item := pl.item
	if err := ledger.DeductTx(tx, item.BottleID, item.SaleType, pl.qty); err != nil {
		return err
	}

	if item.SaleType == domain.SaleCombo && item.ComplementID != nil {
		if err := ledger.DeductTx(tx, *item.ComplementID, domain.SaleBotella, pl.qty); err != nil {
			return err
		}
		compItemID, err := complementMenuItem(tx, *item.ComplementID)
		if err != nil {
			return err
		}
		if err := w.insert(&item.ID, item.Name, pl.qty, pl.subtotal, string(domain.SalePromo)); err != nil {
			return err
		}
		return w.insert(&compItemID, item.Name, pl.qty, 0, string(domain.SalePromo))
	}

	return w.insert(&item.ID, item.Name, pl.qty, pl.subtotal, string(item.SaleType))
}

// processCustomCombo mirrors catalog-combo accounting for an ad-hoc pair:
// both bottles emptied, two PROMO lines, revenue only on the first.
func (p *Processor) processCustomCombo(tx *sqlx.Tx, w *lineWriter, pl pending) error {
	if err := ledger.DeductTx(tx, pl.licor.BottleID, domain.SaleBotella, pl.qty); err != nil {
		return err
	}
	if err := ledger.DeductTx(tx, pl.refresco.BottleID, domain.SaleBotella, pl.qty); err != nil {
		return err
	}
	if err := w.insert(&pl.licor.ID, pl.name, pl.qty, pl.subtotal, string(domain.SalePromo)); err != nil {
		return err
	}
	return w.insert(&pl.refresco.ID, pl.name, pl.qty, 0, string(domain.SalePromo))
}

func getMenuRow(tx *sqlx.Tx, date, id string) (menuRow, error) {
	var row menuRow
	err := tx.Get(&row, selectMenuRow, date, id)
	if errors.Is(err, sql.ErrNoRows) {
		return menuRow{}, domain.ErrNotFound
	}
	return row, err
}

// complementMenuItem finds a menu item backed by the complement bottle so
// the zero-priced line can reference it in reconciliation joins. When no
// button exists for the bottle, a hidden placeholder is created.
func complementMenuItem(tx *sqlx.Tx, bottleID string) (string, error) {
	var id string
	err := tx.Get(&id, `SELECT id FROM menu_items WHERE bottle_id = ? ORDER BY hidden ASC LIMIT 1`, bottleID)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return "", err
	}

	id = uuid.NewString()
	_, err = tx.Exec(`INSERT INTO menu_items (id, bottle_id, name, sale_type, price, hidden) VALUES (?, ?, 'Complemento', 'NORMAL', 0, 1)`,
		id, bottleID)
	return id, err
}

// lineWriter appends ticket_lines rows preserving submission order.
type lineWriter struct {
	tx       *sqlx.Tx
	ticketID string
	position int64
}

func (w *lineWriter) insert(menuItemID *string, name string, qty int64, subtotal float64, tag string) error {
	w.position++
	_, err := w.tx.Exec(`INSERT INTO ticket_lines (id, ticket_id, position, menu_item_id, name, quantity, subtotal, tag) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		uuid.NewString(), w.ticketID, w.position, menuItemID, name, qty, subtotal, tag)
	return err
}
