package api

import (
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
)

// GET /v1/prices?from=YYYY-MM-DD&to=YYYY-MM-DD&limit=N returns the most
// recent N rows in the range, oldest first.
func (s *Server) handlePrices(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	from, to := q.Get("from"), q.Get("to")
	for _, d := range []string{from, to} {
		if d != "" && !validateDate(d) {
			writeError(w, http.StatusBadRequest, "invalid date format, expected YYYY-MM-DD")
			return
		}
	}

	rows, err := s.prices.Range(from, to)
	if err != nil {
		fmt.Printf("[API] Error reading prices: %v\n", err)
		writeError(w, http.StatusInternalServerError, "failed to fetch prices")
		return
	}

	limit := parseLimit(r, 100)
	if len(rows) > limit {
		rows = rows[len(rows)-limit:]
	}
	writeJSON(w, http.StatusOK, rows)
}

func (s *Server) handlePriceByDay(w http.ResponseWriter, r *http.Request) {
	date := mux.Vars(r)["date"]
	if !validateDate(date) {
		writeError(w, http.StatusBadRequest, "invalid date format, expected YYYY-MM-DD")
		return
	}

	rows, err := s.prices.Range(date, date)
	if err != nil {
		fmt.Printf("[API] Error reading price for %s: %v\n", date, err)
		writeError(w, http.StatusInternalServerError, "failed to fetch price")
		return
	}
	if len(rows) == 0 {
		writeError(w, http.StatusNotFound, "no price for "+date)
		return
	}
	writeJSON(w, http.StatusOK, rows[0])
}

func (s *Server) handleLatestPrice(w http.ResponseWriter, r *http.Request) {
	price, err := s.prices.Latest()
	if err != nil {
		fmt.Printf("[API] Error reading latest price: %v\n", err)
		writeError(w, http.StatusInternalServerError, "failed to fetch latest price")
		return
	}
	if price == nil {
		writeError(w, http.StatusNotFound, "no price data available")
		return
	}
	writeJSON(w, http.StatusOK, price)
}
