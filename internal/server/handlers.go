package server

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/bobmcallan/holdfast/internal/clients/brokerage"
	"github.com/bobmcallan/holdfast/internal/common"
	"github.com/bobmcallan/holdfast/internal/models"
)

// handleHealth handles GET /api/health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status": "ok",
		"uptime": time.Since(s.app.StartupTime).Round(time.Second).String(),
	})
}

// handleVersion handles GET /api/version.
func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, common.GetVersionInfo())
}

// handleTransactions handles GET /api/accounts/{account}/transactions?days=N&refresh=true.
func (s *Server) handleTransactions(w http.ResponseWriter, r *http.Request) {
	account := chi.URLParam(r, "account")
	days, ok := IntQuery(w, r, "days", s.app.DaysBack(0))
	if !ok {
		return
	}

	txs, err := s.app.TransactionService.GetTransactions(r.Context(), account, days, BoolQuery(r, "refresh"))
	if err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"account_id":   account,
		"days_back":    days,
		"count":        len(txs),
		"transactions": txs,
	})
}

// handleTransactionSummary handles GET /api/accounts/{account}/transactions/summary?days=N.
func (s *Server) handleTransactionSummary(w http.ResponseWriter, r *http.Request) {
	account := chi.URLParam(r, "account")
	days, ok := IntQuery(w, r, "days", s.app.DaysBack(0))
	if !ok {
		return
	}

	summary, err := s.app.TransactionService.GetTransactionSummary(r.Context(), account, days)
	if err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, summary)
}

// handleClearCache handles DELETE /api/accounts/{account}/transactions/cache
// and DELETE /api/transactions/cache (every account).
func (s *Server) handleClearCache(w http.ResponseWriter, r *http.Request) {
	account := chi.URLParam(r, "account")
	if err := s.app.TransactionService.ClearCache(r.Context(), account); err != nil {
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{"cleared": true})
}

// handleCashFlow handles GET /api/accounts/{account}/cashflow?days=N.
func (s *Server) handleCashFlow(w http.ResponseWriter, r *http.Request) {
	account := chi.URLParam(r, "account")
	days, ok := IntQuery(w, r, "days", s.app.DaysBack(0))
	if !ok {
		return
	}

	history, err := s.app.CashFlowService.GetCashFlowHistory(r.Context(), account, days)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, history)
}

// concentrationResponse is returned by both concentration endpoints.
type concentrationResponse struct {
	PortfolioValue float64                    `json:"portfolio_value"`
	Positions      int                        `json:"positions"`
	Concentrations []models.ConcentrationItem `json:"concentrations"`
}

func (s *Server) writeConcentrations(w http.ResponseWriter, positions []models.Position, top int) {
	total := 0.0
	for _, p := range positions {
		total += p.MarketValue
	}
	WriteJSON(w, http.StatusOK, concentrationResponse{
		PortfolioValue: total,
		Positions:      len(positions),
		Concentrations: s.app.ConcentrationService.CalculateConcentrations(positions, top),
	})
}

// handleAccountConcentrations handles GET /api/accounts/{account}/concentrations?top=N
// using the account's live positions.
func (s *Server) handleAccountConcentrations(w http.ResponseWriter, r *http.Request) {
	account := chi.URLParam(r, "account")
	top, ok := IntQuery(w, r, "top", 0)
	if !ok {
		return
	}

	positions, err := s.app.Positions.GetPositions(r.Context(), account)
	if err != nil {
		var apiErr *brokerage.APIError
		if errors.As(err, &apiErr) {
			WriteError(w, http.StatusBadGateway, fmt.Sprintf("Brokerage returned status %d for positions", apiErr.StatusCode))
			return
		}
		WriteError(w, http.StatusBadGateway, "Failed to fetch positions: "+err.Error())
		return
	}
	s.writeConcentrations(w, positions, top)
}

// handleConcentrations handles POST /api/concentrations?top=N with positions in the body.
func (s *Server) handleConcentrations(w http.ResponseWriter, r *http.Request) {
	top, ok := IntQuery(w, r, "top", 0)
	if !ok {
		return
	}

	var req struct {
		Positions []models.Position `json:"positions"`
	}
	if !DecodeJSON(w, r, &req) {
		return
	}
	s.writeConcentrations(w, req.Positions, top)
}

// handleExposureChain handles GET /api/exposure-chain/{symbol}.
func (s *Server) handleExposureChain(w http.ResponseWriter, r *http.Request) {
	symbol := strings.ToUpper(strings.TrimSpace(chi.URLParam(r, "symbol")))
	if symbol == "" {
		WriteError(w, http.StatusBadRequest, "Symbol is required")
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"symbol":    symbol,
		"chains":    s.app.ConcentrationService.GetExposureChain(symbol),
		"exposures": s.app.ConcentrationService.Resolve(symbol),
	})
}
