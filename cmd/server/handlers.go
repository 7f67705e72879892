package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/Simplici0/muebles/internal/costing"
	"github.com/Simplici0/muebles/internal/db"
	"github.com/Simplici0/muebles/internal/pricing"
	"github.com/Simplici0/muebles/internal/rates"
	"github.com/Simplici0/muebles/internal/reconcile"
	"github.com/Simplici0/muebles/internal/store"
)

type errorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps validation failures to 400, missing rows to 404 and
// everything else to 500.
func (s *server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var ve *costing.ValidationError
	switch {
	case errors.As(err, &ve):
		s.log.Info("validation failed", zap.String("path", r.URL.Path), zap.String("field", ve.Field), zap.Error(err))
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: ve.Error(), Field: ve.Field})
	case errors.Is(err, store.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
	default:
		s.log.Error("request failed", zap.String("path", r.URL.Path), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}

func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return costing.Invalid("body", nil, "invalid JSON: "+err.Error())
	}
	return nil
}

func pathInt64(r *http.Request, name string) (int64, error) {
	raw := chi.URLParam(r, name)
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || v <= 0 {
		return 0, costing.Invalid(name, raw, "must be a positive integer")
	}
	return v, nil
}

func pathInt(r *http.Request, name string) (int, error) {
	raw := chi.URLParam(r, name)
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, costing.Invalid(name, raw, "must be a non-negative integer")
	}
	return v, nil
}

func operatorParam(r *http.Request) string {
	return strings.TrimSpace(r.URL.Query().Get("operator"))
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.db.PingContext(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *server) handlePieceRecalculate(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt64(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	row, err := s.budget.RecalculatePiece(r.Context(), id, operatorParam(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, row)
}

func (s *server) handleLineRecalculate(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt64(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	item, err := s.budget.RecalculateBudgetItem(r.Context(), id, operatorParam(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

type priceRequest struct {
	Version     int             `json:"version"`
	Percentages pricing.Markups `json:"percentages"`
}

func (s *server) handleBudgetPrice(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt64(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req priceRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	total, lines, err := s.budget.PriceBudget(r.Context(), id, req.Version, req.Percentages)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"total": total, "lines": lines})
}

type solveRequest struct {
	Version     int             `json:"version"`
	Percentages pricing.Markups `json:"percentages"`
	TargetTotal decimal.Decimal `json:"target_total"`
	Order       []string        `json:"order"`
	Minimum     *decimal.Decimal `json:"minimum"`
	Tolerance   *decimal.Decimal `json:"tolerance"`
	Apply       bool            `json:"apply"`
}

func (s *server) handleBudgetSolve(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt64(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req solveRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	opts := pricing.SolveOptions{Minimum: req.Minimum, Tolerance: req.Tolerance}
	for _, k := range req.Order {
		opts.Order = append(opts.Order, pricing.Markup(strings.ToLower(strings.TrimSpace(k))))
	}

	sol, err := s.budget.SolveForTarget(r.Context(), id, req.Version, req.Percentages, req.TargetTotal, opts, req.Apply)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sol)
}

type reconcileRequest struct {
	Version   int    `json:"version"`
	Operator  string `json:"operator"`
	Reference string `json:"reference"`
	On        bool   `json:"on"`
}

func (s *server) handleBudgetReconcile(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt64(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req reconcileRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	g := reconcile.Group{
		BudgetID:  id,
		Version:   req.Version,
		Operator:  strings.TrimSpace(req.Operator),
		Reference: strings.TrimSpace(req.Reference),
	}
	res, err := s.budget.ToggleBoardReconciliation(r.Context(), g, req.On)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func rateContext(r *http.Request) (rates.Context, error) {
	budgetID, err := pathInt64(r, "budget")
	if err != nil {
		return rates.Context{}, err
	}
	version, err := pathInt(r, "version")
	if err != nil {
		return rates.Context{}, err
	}
	return rates.Context{BudgetID: budgetID, Version: version, Operator: chi.URLParam(r, "operator")}, nil
}

type ratesResponse struct {
	Mode    costing.Mode        `json:"mode"`
	Entries []costing.RateEntry `json:"entries"`
}

type modeBody struct {
	Mode string `json:"mode"`
}

type rateFunc func(ctx context.Context, r *http.Request, p *rates.Provider, c rates.Context) (any, error)

// rateHandler resolves the rate context of the request and runs fn with a
// provider bound to one transaction.
func (s *server) rateHandler(fn rateFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := rateContext(r)
		if err != nil {
			s.writeError(w, r, err)
			return
		}

		var out any
		err = db.WithTx(r.Context(), s.db, func(tx *sql.Tx) error {
			var err error
			out, err = fn(r.Context(), r, rates.New(tx, s.log), c)
			return err
		})
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func table(ctx context.Context, p *rates.Provider, c rates.Context) (any, error) {
	t, err := p.Table(ctx, c)
	if err != nil {
		return nil, err
	}
	return ratesResponse{Mode: t.Mode, Entries: t.Entries}, nil
}

func getRates(ctx context.Context, _ *http.Request, p *rates.Provider, c rates.Context) (any, error) {
	return table(ctx, p, c)
}

func putRates(ctx context.Context, r *http.Request, p *rates.Provider, c rates.Context) (any, error) {
	var entries []costing.RateEntry
	if err := decodeBody(r, &entries); err != nil {
		return nil, err
	}
	if _, err := p.SaveValues(ctx, c, entries); err != nil {
		return nil, err
	}
	return table(ctx, p, c)
}

func resetRates(ctx context.Context, _ *http.Request, p *rates.Provider, c rates.Context) (any, error) {
	if _, err := p.ResetValues(ctx, c); err != nil {
		return nil, err
	}
	return table(ctx, p, c)
}

func getMode(ctx context.Context, _ *http.Request, p *rates.Provider, c rates.Context) (any, error) {
	mode, err := p.Mode(ctx, c)
	if err != nil {
		return nil, err
	}
	return modeBody{Mode: string(mode)}, nil
}

func putMode(ctx context.Context, r *http.Request, p *rates.Provider, c rates.Context) (any, error) {
	var body modeBody
	if err := decodeBody(r, &body); err != nil {
		return nil, err
	}
	mode, err := p.SetMode(ctx, c, body.Mode)
	if err != nil {
		return nil, err
	}
	return modeBody{Mode: string(mode)}, nil
}
