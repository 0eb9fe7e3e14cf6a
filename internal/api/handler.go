package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"

	"barpos/m/domain"
	"barpos/m/internal/checkout"
	"barpos/m/internal/ledger"
	"barpos/m/internal/report"
	"barpos/m/internal/seed"
)

// Handler bundles dependencies for HTTP handlers.
type Handler struct {
	db       *sqlx.DB
	secret   string
	ledger   *ledger.Ledger
	checkout *checkout.Processor
	reports  *report.Reports
}

// New constructs a Handler.
func New(db *sqlx.DB, secret string) *Handler {
	return &Handler{
		db:       db,
		secret:   secret,
		ledger:   ledger.New(db),
		checkout: checkout.New(db),
		reports:  report.New(db),
	}
}

// Router wires up the HTTP API.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(prometheusMiddleware)

	r.Get("/health", h.health)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	r.Post("/auth/login", h.login)

	r.Group(func(pr chi.Router) {
		pr.Use(h.authMiddleware)

		pr.Route("/caja", func(r chi.Router) {
			r.Get("/menu", h.nightMenu)
			r.Post("/checkout", h.processCheckout)
		})

		pr.Route("/bodega", func(r chi.Router) {
			r.Get("/", h.listBottles)
			r.Post("/", h.createBottle)
			r.Put("/{id}", h.updateBottle)
			r.Delete("/{id}", h.deleteBottle)
			r.Post("/{id}/resize", h.resizeBottle)
			r.Post("/{id}/restock", h.restockBottle)
			r.Post("/{id}/snapshot", h.snapshotBottle)
		})

		pr.Route("/menu", func(r chi.Router) {
			r.Get("/", h.listMenu)
			r.Post("/", h.createMenuItem)
			r.Put("/night", h.saveNightMenu)
			r.Put("/{id}", h.updateMenuItem)
			r.Delete("/{id}", h.deleteMenuItem)
		})

		pr.Route("/reports", func(r chi.Router) {
			r.Get("/planilla", h.planilla)
			r.Get("/daily", h.daily)
			r.Get("/tickets", h.ticketsByDate)
			r.Get("/tickets/{id}", h.ticketDetail)
		})
	})

	return r
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Authentication

type authClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

func (h *Handler) generateToken() (string, error) {
	claims := authClaims{
		Role: "bar",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(24 * time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(h.secret))
}

func (h *Handler) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" || !strings.HasPrefix(strings.ToLower(header), "bearer ") {
			respondError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		tokenString := strings.TrimSpace(header[len("Bearer "):])
		token, err := jwt.ParseWithClaims(tokenString, &authClaims{}, func(token *jwt.Token) (interface{}, error) {
			if token.Method != jwt.SigningMethodHS256 {
				return nil, errors.New("unexpected signing method")
			}
			return []byte(h.secret), nil
		})
		if err != nil || !token.Valid {
			respondError(w, http.StatusUnauthorized, "invalid token")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Passcode string `json:"passcode"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	hash, err := seed.PasscodeHash(h.db)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "passcode not provisioned")
		return
	}
	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(req.Passcode)) != nil {
		respondError(w, http.StatusUnauthorized, "invalid passcode")
		return
	}

	token, err := h.generateToken()
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to generate token")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"token": token})
}

// Caja

type nightMenuEntry struct {
	ID               string          `db:"id" json:"id"`
	Name             string          `db:"name" json:"name"`
	SaleType         domain.SaleType `db:"sale_type" json:"sale_type"`
	Price            float64         `db:"price" json:"price"`
	BottleID         string          `db:"bottle_id" json:"bottle_id"`
	ComboDesc        string          `db:"combo_desc" json:"combo_desc"`
	BottleName       string          `db:"bottle_name" json:"bottle_name"`
	VolumeML         int64           `db:"volume_ml" json:"volume_ml"`
	GlassesPerBottle int64           `db:"glasses_per_bottle" json:"glasses_per_bottle"`
	SealedCount      int64           `db:"sealed_count" json:"sealed_count"`
	OpenFraction     float64         `db:"open_fraction" json:"open_fraction"`
	ServingML        int64           `db:"-" json:"serving_ml"`
	UnitsAvailable   int64           `db:"-" json:"units_available"`
}

// nightMenu returns tonight's active buttons with overrides applied and
// enough stock context for the bartender screen.
func (h *Handler) nightMenu(w http.ResponseWriter, r *http.Request) {
	today := time.Now().UTC().Format("2006-01-02")
	var entries []nightMenuEntry
	err := h.db.Select(&entries, `
        SELECT mi.id, mi.name,
               COALESCE(nm.sale_type_override, mi.sale_type) AS sale_type,
               COALESCE(nm.price_override, mi.price) AS price,
               mi.bottle_id, mi.combo_desc,
               b.name AS bottle_name, b.volume_ml, b.glasses_per_bottle,
               b.sealed_count, b.open_fraction
        FROM night_menu nm
        JOIN menu_items mi ON mi.id = nm.item_id
        JOIN bottles b ON b.id = mi.bottle_id
        WHERE nm.date = ? AND mi.hidden = 0
        ORDER BY sale_type, mi.name`, today)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to load night menu")
		return
	}

	for i := range entries {
		e := &entries[i]
		e.ServingML = e.VolumeML
		if e.SaleType == domain.SaleVaso && e.GlassesPerBottle >= 1 {
			e.ServingML = e.VolumeML / e.GlassesPerBottle
		}
		e.UnitsAvailable = e.SealedCount
		if e.OpenFraction > 0 {
			e.UnitsAvailable++
		}
	}
	respondJSON(w, http.StatusOK, entries)
}

func (h *Handler) processCheckout(w http.ResponseWriter, r *http.Request) {
	var req checkout.Request
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.checkout.Process(r.Context(), req)
	if err != nil {
		checkoutErrors.WithLabelValues(errorKind(err)).Inc()
		respondDomainError(w, err)
		return
	}
	ticketsTotal.Inc()
	respondJSON(w, http.StatusCreated, result)
}

// Bodega

type bottleRequest struct {
	Name             string `json:"name"`
	VolumeML         int64  `json:"volume_ml"`
	SealedCount      int64  `json:"sealed_count"`
	GlassesPerBottle int64  `json:"glasses_per_bottle"`
}

type bottleResponse struct {
	domain.Bottle
	AvailableML float64 `json:"available_ml"`
}

func (h *Handler) listBottles(w http.ResponseWriter, r *http.Request) {
	bottles, err := h.ledger.List(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to list bottles")
		return
	}
	out := make([]bottleResponse, len(bottles))
	for i, b := range bottles {
		out[i] = bottleResponse{Bottle: b, AvailableML: b.AvailableML()}
	}
	respondJSON(w, http.StatusOK, out)
}

func (h *Handler) createBottle(w http.ResponseWriter, r *http.Request) {
	var req bottleRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Name == "" || req.VolumeML <= 0 {
		respondError(w, http.StatusBadRequest, "name and a positive volume_ml are required")
		return
	}
	b, err := h.ledger.Create(r.Context(), req.Name, req.VolumeML, req.SealedCount, req.GlassesPerBottle)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, b)
}

func (h *Handler) updateBottle(w http.ResponseWriter, r *http.Request) {
	var req bottleRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Name == "" || req.VolumeML <= 0 {
		respondError(w, http.StatusBadRequest, "name and a positive volume_ml are required")
		return
	}
	b, err := h.ledger.Update(r.Context(), chi.URLParam(r, "id"), req.Name, req.VolumeML, req.GlassesPerBottle)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, b)
}

func (h *Handler) deleteBottle(w http.ResponseWriter, r *http.Request) {
	if err := h.ledger.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (h *Handler) resizeBottle(w http.ResponseWriter, r *http.Request) {
	var req struct {
		VolumeML int64 `json:"volume_ml"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.VolumeML <= 0 {
		respondError(w, http.StatusBadRequest, "volume_ml must be positive")
		return
	}
	b, err := h.ledger.Resize(r.Context(), chi.URLParam(r, "id"), req.VolumeML)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, b)
}

func (h *Handler) restockBottle(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SealedCount int64 `json:"sealed_count"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	b, err := h.ledger.Restock(r.Context(), chi.URLParam(r, "id"), req.SealedCount)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, b)
}

func (h *Handler) snapshotBottle(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SealedCount int64  `json:"sealed_count"`
		Date        string `json:"date,omitempty"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	date := req.Date
	if date == "" {
		date = time.Now().UTC().Format("2006-01-02")
	}
	if err := h.ledger.SnapshotOpeningStock(r.Context(), chi.URLParam(r, "id"), date, req.SealedCount); err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "snapshot saved", "date": date})
}

// Menu catalog

type menuItemRequest struct {
	BottleID   string   `json:"bottle_id"`
	RefrescoID string   `json:"refresco_id,omitempty"`
	Name       string   `json:"name"`
	SaleType   string   `json:"sale_type"`
	Price      float64  `json:"price"`
	PromoPrice *float64 `json:"promo_price,omitempty"`
	ComboDesc  string   `json:"combo_desc,omitempty"`
}

func (h *Handler) listMenu(w http.ResponseWriter, r *http.Request) {
	var items []domain.MenuItem
	err := h.db.Select(&items, `SELECT id, bottle_id, complement_id, name, sale_type, price, promo_price, combo_desc, hidden, created_at
        FROM menu_items WHERE hidden = 0 ORDER BY sale_type, name`)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to list menu")
		return
	}
	respondJSON(w, http.StatusOK, items)
}

func (h *Handler) createMenuItem(w http.ResponseWriter, r *http.Request) {
	var req menuItemRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	saleType := domain.SaleType(req.SaleType)
	if req.Name == "" || req.BottleID == "" || !saleType.Valid() {
		respondError(w, http.StatusBadRequest, "name, bottle_id and a valid sale_type are required")
		return
	}

	// Only COMBO buttons carry a complement bottle.
	var complementID *string
	if saleType == domain.SaleCombo && req.RefrescoID != "" {
		complementID = &req.RefrescoID
	}

	id := uuid.NewString()
	_, err := h.db.Exec(`INSERT INTO menu_items (id, bottle_id, complement_id, name, sale_type, price, promo_price, combo_desc) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		id, req.BottleID, complementID, strings.TrimSpace(req.Name), saleType, req.Price, req.PromoPrice, strings.TrimSpace(req.ComboDesc))
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to create menu item")
		return
	}
	respondJSON(w, http.StatusCreated, map[string]string{"id": id})
}

func (h *Handler) updateMenuItem(w http.ResponseWriter, r *http.Request) {
	var req menuItemRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	saleType := domain.SaleType(req.SaleType)
	if req.Name == "" || req.BottleID == "" || !saleType.Valid() {
		respondError(w, http.StatusBadRequest, "name, bottle_id and a valid sale_type are required")
		return
	}
	var complementID *string
	if saleType == domain.SaleCombo && req.RefrescoID != "" {
		complementID = &req.RefrescoID
	}

	res, err := h.db.Exec(`UPDATE menu_items SET bottle_id = ?, complement_id = ?, name = ?, sale_type = ?, price = ?, promo_price = ?, combo_desc = ? WHERE id = ?`,
		req.BottleID, complementID, strings.TrimSpace(req.Name), saleType, req.Price, req.PromoPrice, strings.TrimSpace(req.ComboDesc), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to update menu item")
		return
	}
	if n, _ := res.RowsAffected(); n == 0 {
		respondError(w, http.StatusNotFound, "menu item not found")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

func (h *Handler) deleteMenuItem(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	tx, err := h.db.Beginx()
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to delete menu item")
		return
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`UPDATE ticket_lines SET menu_item_id = NULL WHERE menu_item_id = ?`, id); err != nil {
		respondError(w, http.StatusInternalServerError, "unable to delete menu item")
		return
	}
	if _, err := tx.Exec(`DELETE FROM night_menu WHERE item_id = ?`, id); err != nil {
		respondError(w, http.StatusInternalServerError, "unable to delete menu item")
		return
	}
	res, err := tx.Exec(`DELETE FROM menu_items WHERE id = ?`, id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to delete menu item")
		return
	}
	if n, _ := res.RowsAffected(); n == 0 {
		respondError(w, http.StatusNotFound, "menu item not found")
		return
	}
	if err := tx.Commit(); err != nil {
		respondError(w, http.StatusInternalServerError, "unable to delete menu item")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

type nightMenuRequest struct {
	Items []struct {
		ItemID        string   `json:"item_id"`
		SaleType      string   `json:"sale_type,omitempty"`
		PriceOverride *float64 `json:"price,omitempty"`
	} `json:"items"`
}

// saveNightMenu replaces tonight's active button set.
func (h *Handler) saveNightMenu(w http.ResponseWriter, r *http.Request) {
	var req nightMenuRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	today := time.Now().UTC().Format("2006-01-02")

	tx, err := h.db.Beginx()
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to save night menu")
		return
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM night_menu WHERE date = ?`, today); err != nil {
		respondError(w, http.StatusInternalServerError, "unable to save night menu")
		return
	}
	active := 0
	for _, it := range req.Items {
		if it.ItemID == "" {
			continue
		}
		var override *string
		if it.SaleType != "" {
			if !domain.SaleType(it.SaleType).Valid() {
				respondError(w, http.StatusBadRequest, "invalid sale_type override")
				return
			}
			override = &it.SaleType
		}
		if _, err := tx.Exec(`INSERT INTO night_menu (item_id, date, sale_type_override, price_override) VALUES (?, ?, ?, ?)
            ON CONFLICT(item_id, date) DO UPDATE SET sale_type_override = excluded.sale_type_override, price_override = excluded.price_override`,
			it.ItemID, today, override, it.PriceOverride); err != nil {
			respondError(w, http.StatusInternalServerError, "unable to save night menu")
			return
		}
		active++
	}
	if err := tx.Commit(); err != nil {
		respondError(w, http.StatusInternalServerError, "unable to save night menu")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"status": "saved", "active": active})
}

// Reports

func (h *Handler) planilla(w http.ResponseWriter, r *http.Request) {
	date := reportDate(r)
	rows, totals, err := h.reports.Planilla(r.Context(), date)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to build planilla")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"date": date, "rows": rows, "totals": totals})
}

func (h *Handler) daily(w http.ResponseWriter, r *http.Request) {
	summary, err := h.reports.Daily(r.Context(), reportDate(r))
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to fetch daily summary")
		return
	}
	respondJSON(w, http.StatusOK, summary)
}

func (h *Handler) ticketsByDate(w http.ResponseWriter, r *http.Request) {
	tickets, err := h.reports.TicketsByDate(r.Context(), reportDate(r))
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to fetch tickets")
		return
	}
	respondJSON(w, http.StatusOK, tickets)
}

func (h *Handler) ticketDetail(w http.ResponseWriter, r *http.Request) {
	ticket, err := h.reports.Ticket(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, ticket)
}

func reportDate(r *http.Request) string {
	date := strings.TrimSpace(r.URL.Query().Get("date"))
	if date == "" {
		return time.Now().UTC().Format("2006-01-02")
	}
	if _, err := time.Parse("2006-01-02", date); err != nil {
		return time.Now().UTC().Format("2006-01-02")
	}
	return date
}

// Helpers

func errorKind(err error) string {
	switch {
	case errors.Is(err, domain.ErrInsufficientStock):
		return "insufficient_stock"
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrInvalidQuantity):
		return "invalid_quantity"
	case errors.Is(err, domain.ErrEmptyTicket):
		return "empty_ticket"
	default:
		return "internal"
	}
}

func respondDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrInsufficientStock):
		respondError(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrInvalidQuantity), errors.Is(err, domain.ErrEmptyTicket):
		respondError(w, http.StatusBadRequest, err.Error())
	default:
		log.Error().Err(err).Msg("request failed")
		respondError(w, http.StatusInternalServerError, "internal error")
	}
}

func decodeJSON(r *http.Request, dest interface{}) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(dest)
}

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	encoder := json.NewEncoder(w)
	encoder.SetEscapeHTML(false)
	_ = encoder.Encode(payload)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
