package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"marketscan/internal/repository"
)

const dateLayout = "2006-01-02"

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// parseRangeFilter reads the query params shared by every kind endpoint:
// symbols (comma separated), start_date, end_date, limit.
func parseRangeFilter(r *http.Request) (repository.RangeFilter, error) {
	var f repository.RangeFilter
	if raw := r.URL.Query().Get("symbols"); raw != "" {
		for _, s := range strings.Split(raw, ",") {
			if s = strings.TrimSpace(s); s != "" {
				f.Symbols = append(f.Symbols, s)
			}
		}
	}
	if raw := r.URL.Query().Get("start_date"); raw != "" {
		t, err := time.Parse(dateLayout, raw)
		if err != nil {
			return f, err
		}
		f.Start = &t
	}
	if raw := r.URL.Query().Get("end_date"); raw != "" {
		t, err := time.Parse(dateLayout, raw)
		if err != nil {
			return f, err
		}
		f.End = &t
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return f, err
		}
		f.Limit = n
	}
	return f, nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{"status": "ok", "commit": BuildCommit})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	status := map[string]any{"commit": BuildCommit}
	if err := s.repo.Ping(r.Context()); err != nil {
		status["database"] = "unreachable"
	} else {
		status["database"] = "ok"
	}
	if snap := s.lastRun.Snapshot(); snap != nil {
		status["last_run"] = snap
	}
	writeJSON(w, status)
}

func (s *Server) handleOhlcv(w http.ResponseWriter, r *http.Request) {
	f, err := parseRangeFilter(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	rows, err := s.repo.QueryDailyOhlcv(r.Context(), f)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]any{"count": len(rows), "data": rows})
}

func (s *Server) handleTrades(w http.ResponseWriter, r *http.Request) {
	rf, err := parseRangeFilter(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	f := repository.TradeFilter{RangeFilter: rf}
	if side := r.URL.Query().Get("side"); side != "" {
		if side != "B" && side != "S" {
			http.Error(w, "side must be B or S", http.StatusBadRequest)
			return
		}
		f.Side = side
	}
	rows, err := s.repo.QueryTrades(r.Context(), f)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]any{"count": len(rows), "data": rows})
}

func (s *Server) handleTbbo(w http.ResponseWriter, r *http.Request) {
	f, err := parseRangeFilter(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	rows, err := s.repo.QueryTbbo(r.Context(), f)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]any{"count": len(rows), "data": rows})
}

func (s *Server) handleStatistics(w http.ResponseWriter, r *http.Request) {
	rf, err := parseRangeFilter(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	f := repository.StatisticsFilter{RangeFilter: rf}
	if raw := r.URL.Query().Get("stat_type"); raw != "" {
		n, err := strconv.ParseInt(raw, 10, 16)
		if err != nil {
			http.Error(w, "invalid stat_type", http.StatusBadRequest)
			return
		}
		st := int16(n)
		f.StatType = &st
	}
	rows, err := s.repo.QueryStatistics(r.Context(), f)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]any{"count": len(rows), "data": rows})
}

func (s *Server) handleDefinitions(w http.ResponseWriter, r *http.Request) {
	rf, err := parseRangeFilter(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	f := repository.DefinitionFilter{
		RangeFilter:     rf,
		Asset:           r.URL.Query().Get("asset"),
		Exchange:        r.URL.Query().Get("exchange"),
		InstrumentClass: r.URL.Query().Get("instrument_class"),
	}
	rows, err := s.repo.QueryDefinitions(r.Context(), f)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]any{"count": len(rows), "data": rows})
}

func (s *Server) handleSymbols(w http.ResponseWriter, r *http.Request) {
	symbols, err := s.repo.AvailableSymbols(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]any{"count": len(symbols), "symbols": symbols})
}
