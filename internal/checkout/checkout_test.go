package checkout_test

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"barpos/m/domain"
	"barpos/m/internal/checkout"
	"barpos/m/internal/database"
	"barpos/m/internal/ledger"
	"barpos/m/internal/migrations"
)

type fixture struct {
	db        *sqlx.DB
	ledger    *ledger.Ledger
	processor *checkout.Processor
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := database.Connect(":memory:")
	t.Cleanup(func() { db.Close() })
	migrations.Run(db)
	return &fixture{db: db, ledger: ledger.New(db), processor: checkout.New(db)}
}

func (f *fixture) bottle(t *testing.T, name string, sealed int64) domain.Bottle {
	t.Helper()
	b, err := f.ledger.Create(context.Background(), name, 750, sealed, 18)
	if err != nil {
		t.Fatalf("create bottle: %v", err)
	}
	return b
}

func (f *fixture) menuItem(t *testing.T, name string, bottleID string, saleType domain.SaleType, price float64, complementID *string) string {
	t.Helper()
	id := uuid.NewString()
	_, err := f.db.Exec(`INSERT INTO menu_items (id, bottle_id, complement_id, name, sale_type, price) VALUES (?, ?, ?, ?, ?, ?)`,
		id, bottleID, complementID, name, saleType, price)
	if err != nil {
		t.Fatalf("create menu item: %v", err)
	}
	return id
}

func (f *fixture) lines(t *testing.T, ticketID string) []domain.TicketLine {
	t.Helper()
	var lines []domain.TicketLine
	err := f.db.Select(&lines, `SELECT id, ticket_id, position, menu_item_id, name, quantity, subtotal, tag FROM ticket_lines WHERE ticket_id = ? ORDER BY position`, ticketID)
	if err != nil {
		t.Fatalf("load lines: %v", err)
	}
	return lines
}

func TestProcessEmptyTicket(t *testing.T) {
	f := newFixture(t)
	_, err := f.processor.Process(context.Background(), checkout.Request{})
	if !errors.Is(err, domain.ErrEmptyTicket) {
		t.Fatalf("expected ErrEmptyTicket, got %v", err)
	}
}

func TestProcessInvalidQuantity(t *testing.T) {
	f := newFixture(t)
	b := f.bottle(t, "Ron", 2)
	item := f.menuItem(t, "Ron Vaso", b.ID, domain.SaleVaso, 4, nil)

	for _, qty := range []int64{0, -2} {
		_, err := f.processor.Process(context.Background(), checkout.Request{
			Lines: []checkout.LineRequest{{MenuItemID: item, Quantity: qty}},
		})
		if !errors.Is(err, domain.ErrInvalidQuantity) {
			t.Errorf("qty=%d: expected ErrInvalidQuantity, got %v", qty, err)
		}
	}

	var tickets int64
	f.db.Get(&tickets, `SELECT COUNT(*) FROM tickets`)
	if tickets != 0 {
		t.Errorf("expected no tickets persisted, found %d", tickets)
	}
}

func TestProcessNormalMenuLine(t *testing.T) {
	f := newFixture(t)
	b := f.bottle(t, "Ron", 2)
	item := f.menuItem(t, "Ron Botella", b.ID, domain.SaleNormal, 140, nil)

	res, err := f.processor.Process(context.Background(), checkout.Request{
		Lines: []checkout.LineRequest{{MenuItemID: item, Quantity: 1}},
	})
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if res.Total != 140 {
		t.Errorf("expected total=140, got %v", res.Total)
	}
	if len(res.Lines) != 1 || res.Lines[0].Name != "Ron Botella" {
		t.Errorf("unexpected receipt: %+v", res.Lines)
	}

	lines := f.lines(t, res.TicketID)
	if len(lines) != 1 || lines[0].Tag != "NORMAL" || lines[0].Subtotal != 140 {
		t.Errorf("unexpected persisted lines: %+v", lines)
	}
	after, _ := f.ledger.Get(context.Background(), b.ID)
	if after.SealedCount != 1 || after.OpenFraction != 0 {
		t.Errorf("expected sealed=1 open=0, got sealed=%d open=%v", after.SealedCount, after.OpenFraction)
	}
}

func TestProcessVasoLineOpensBottle(t *testing.T) {
	f := newFixture(t)
	b := f.bottle(t, "Fernet", 1)
	item := f.menuItem(t, "Fernet Vaso", b.ID, domain.SaleVaso, 3, nil)

	res, err := f.processor.Process(context.Background(), checkout.Request{
		Lines: []checkout.LineRequest{{MenuItemID: item, Quantity: 4}},
	})
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if res.Total != 12 {
		t.Errorf("expected total=12, got %v", res.Total)
	}

	lines := f.lines(t, res.TicketID)
	if len(lines) != 1 || lines[0].Tag != "VASO" {
		t.Errorf("unexpected lines: %+v", lines)
	}
	after, _ := f.ledger.Get(context.Background(), b.ID)
	if after.SealedCount != 0 || after.OpenFraction != 100 {
		t.Errorf("expected sealed=0 open=100, got sealed=%d open=%v", after.SealedCount, after.OpenFraction)
	}
}

// Scenario: one catalog-combo button, quantity 2, price 50. Both bottles
// lose two whole bottles; revenue lands once.
func TestProcessCatalogCombo(t *testing.T) {
	f := newFixture(t)
	licor := f.bottle(t, "Vodka", 3)
	refresco := f.bottle(t, "Cola", 3)
	comboItem := f.menuItem(t, "Vodka Rebel", licor.ID, domain.SaleCombo, 50, &refresco.ID)
	f.menuItem(t, "Cola Suelta", refresco.ID, domain.SaleNormal, 10, nil)

	res, err := f.processor.Process(context.Background(), checkout.Request{
		Lines: []checkout.LineRequest{{MenuItemID: comboItem, Quantity: 2}},
	})
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if res.Total != 100 {
		t.Errorf("expected total=100, got %v", res.Total)
	}
	if len(res.Lines) != 1 {
		t.Errorf("receipt should have one row per request, got %d", len(res.Lines))
	}

	lines := f.lines(t, res.TicketID)
	if len(lines) != 2 {
		t.Fatalf("expected 2 persisted lines, got %d", len(lines))
	}
	if lines[0].Tag != "PROMO" || lines[1].Tag != "PROMO" {
		t.Errorf("expected both lines tagged PROMO: %+v", lines)
	}
	if lines[0].Subtotal != 100 || lines[1].Subtotal != 0 {
		t.Errorf("expected subtotals {100, 0}, got {%v, %v}", lines[0].Subtotal, lines[1].Subtotal)
	}

	a, _ := f.ledger.Get(context.Background(), licor.ID)
	b, _ := f.ledger.Get(context.Background(), refresco.ID)
	if a.SealedCount != 1 || b.SealedCount != 1 {
		t.Errorf("expected both bottles at sealed=1, got licor=%d refresco=%d", a.SealedCount, b.SealedCount)
	}
}

func TestProcessCatalogComboCreatesHiddenComplementItem(t *testing.T) {
	f := newFixture(t)
	licor := f.bottle(t, "Vodka", 2)
	refresco := f.bottle(t, "Sprite", 2)
	comboItem := f.menuItem(t, "Vodka Sprite", licor.ID, domain.SaleCombo, 60, &refresco.ID)

	res, err := f.processor.Process(context.Background(), checkout.Request{
		Lines: []checkout.LineRequest{{MenuItemID: comboItem, Quantity: 1}},
	})
	if err != nil {
		t.Fatalf("process: %v", err)
	}

	lines := f.lines(t, res.TicketID)
	if len(lines) != 2 || lines[1].MenuItemID == nil {
		t.Fatalf("complement line must reference a menu item: %+v", lines)
	}
	var hidden bool
	if err := f.db.Get(&hidden, `SELECT hidden FROM menu_items WHERE id = ?`, *lines[1].MenuItemID); err != nil {
		t.Fatalf("load placeholder: %v", err)
	}
	if !hidden {
		t.Errorf("expected a hidden placeholder item for the complement bottle")
	}
}

func TestProcessCustomCombo(t *testing.T) {
	f := newFixture(t)
	licor := f.bottle(t, "Ron", 2)
	refresco := f.bottle(t, "Cola", 2)
	licorItem := f.menuItem(t, "Ron Botella", licor.ID, domain.SaleBotella, 140, nil)
	refrescoItem := f.menuItem(t, "Cola 3L", refresco.ID, domain.SaleNormal, 15, nil)

	res, err := f.processor.Process(context.Background(), checkout.Request{
		Lines: []checkout.LineRequest{{
			LicorID:    licorItem,
			RefrescoID: refrescoItem,
			Name:       "Ron + Cola",
			Price:      80,
			Quantity:   1,
		}},
	})
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if res.Total != 80 {
		t.Errorf("expected total=80, got %v", res.Total)
	}

	lines := f.lines(t, res.TicketID)
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	if lines[0].Tag != "PROMO" || lines[1].Tag != "PROMO" || lines[0].Subtotal != 80 || lines[1].Subtotal != 0 {
		t.Errorf("custom combo must mirror catalog-combo accounting: %+v", lines)
	}

	a, _ := f.ledger.Get(context.Background(), licor.ID)
	b, _ := f.ledger.Get(context.Background(), refresco.ID)
	if a.SealedCount != 1 || b.SealedCount != 1 {
		t.Errorf("expected one whole bottle off each, got licor=%d refresco=%d", a.SealedCount, b.SealedCount)
	}
}

func TestProcessExtraLine(t *testing.T) {
	f := newFixture(t)

	res, err := f.processor.Process(context.Background(), checkout.Request{
		Lines: []checkout.LineRequest{{Name: "Cigarros", Price: 5, Quantity: 2, Label: "ENTRADA"}},
	})
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if res.Total != 10 {
		t.Errorf("expected total=10, got %v", res.Total)
	}

	lines := f.lines(t, res.TicketID)
	if len(lines) != 1 {
		t.Fatalf("expected 1 line, got %d", len(lines))
	}
	if lines[0].MenuItemID != nil || lines[0].Tag != "ENTRADA" || lines[0].Name != "Cigarros" {
		t.Errorf("unexpected extra line: %+v", lines[0])
	}
}

func TestProcessAbortsWholeTicketOnInsufficientStock(t *testing.T) {
	f := newFixture(t)
	ok := f.bottle(t, "Ron", 5)
	empty := f.bottle(t, "Vodka", 0)
	okItem := f.menuItem(t, "Ron Botella", ok.ID, domain.SaleNormal, 140, nil)
	emptyItem := f.menuItem(t, "Vodka Botella", empty.ID, domain.SaleNormal, 160, nil)

	_, err := f.processor.Process(context.Background(), checkout.Request{
		Lines: []checkout.LineRequest{
			{MenuItemID: okItem, Quantity: 1},
			{MenuItemID: emptyItem, Quantity: 1},
			{Name: "Hielo", Price: 2, Quantity: 1, Label: "NORMAL"},
		},
	})
	if !errors.Is(err, domain.ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got %v", err)
	}

	var tickets, lines int64
	f.db.Get(&tickets, `SELECT COUNT(*) FROM tickets`)
	f.db.Get(&lines, `SELECT COUNT(*) FROM ticket_lines`)
	if tickets != 0 || lines != 0 {
		t.Errorf("partial ticket persisted: tickets=%d lines=%d", tickets, lines)
	}
	after, _ := f.ledger.Get(context.Background(), ok.ID)
	if after.SealedCount != 5 || after.OpenFraction != 0 {
		t.Errorf("line 1 deduction leaked: sealed=%d open=%v", after.SealedCount, after.OpenFraction)
	}
}

func TestProcessUnknownMenuItem(t *testing.T) {
	f := newFixture(t)
	_, err := f.processor.Process(context.Background(), checkout.Request{
		Lines: []checkout.LineRequest{{MenuItemID: "missing", Quantity: 1}},
	})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestProcessAppliesNightPriceOverride(t *testing.T) {
	f := newFixture(t)
	b := f.bottle(t, "Ron", 3)
	item := f.menuItem(t, "Ron Botella", b.ID, domain.SaleNormal, 140, nil)

	today := time.Now().UTC().Format("2006-01-02")
	if _, err := f.db.Exec(`INSERT INTO night_menu (item_id, date, price_override) VALUES (?, ?, 99)`, item, today); err != nil {
		t.Fatalf("insert override: %v", err)
	}

	res, err := f.processor.Process(context.Background(), checkout.Request{
		Lines: []checkout.LineRequest{{MenuItemID: item, Quantity: 1}},
	})
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if res.Total != 99 {
		t.Errorf("expected tonight's price 99, got %v", res.Total)
	}
}

func TestProcessTicketTotalMatchesLineSum(t *testing.T) {
	f := newFixture(t)
	ron := f.bottle(t, "Ron", 5)
	cola := f.bottle(t, "Cola", 5)
	ronItem := f.menuItem(t, "Ron Botella", ron.ID, domain.SaleNormal, 140, nil)
	colaItem := f.menuItem(t, "Cola 3L", cola.ID, domain.SaleNormal, 15, nil)
	comboItem := f.menuItem(t, "Ron Combo", ron.ID, domain.SaleCombo, 150, &cola.ID)

	res, err := f.processor.Process(context.Background(), checkout.Request{
		Lines: []checkout.LineRequest{
			{MenuItemID: ronItem, Quantity: 1},
			{MenuItemID: comboItem, Quantity: 1},
			{LicorID: ronItem, RefrescoID: colaItem, Name: "Armado", Price: 120, Quantity: 1},
			{Name: "Propina", Price: 10, Quantity: 1, Label: "NORMAL"},
		},
	})
	if err != nil {
		t.Fatalf("process: %v", err)
	}

	var sum float64
	if err := f.db.Get(&sum, `SELECT SUM(subtotal) FROM ticket_lines WHERE ticket_id = ?`, res.TicketID); err != nil {
		t.Fatalf("sum lines: %v", err)
	}
	if math.Abs(sum-res.Total) > 0.01 {
		t.Errorf("ticket total %v != line sum %v", res.Total, sum)
	}
	var stored float64
	f.db.Get(&stored, `SELECT total FROM tickets WHERE id = ?`, res.TicketID)
	if math.Abs(stored-res.Total) > 0.01 {
		t.Errorf("stored total %v != returned total %v", stored, res.Total)
	}
}
