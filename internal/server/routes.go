package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/strandworks/crosslink/internal/cycle"
	"github.com/strandworks/crosslink/internal/store"
)

func (s *Server) handleRunCycle(w http.ResponseWriter, r *http.Request) {
	report, err := s.runner.Run(r.Context())
	if err != nil {
		if errors.Is(err, cycle.ErrCycleRunning) {
			writeError(w, http.StatusConflict, "cycle already running")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleLatestReport(w http.ResponseWriter, r *http.Request) {
	row, err := s.db.LatestReport()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if row == nil {
		writeError(w, http.StatusNotFound, "no cycles recorded")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(row.Report)
}

func (s *Server) handleListReports(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	rows, err := s.db.ListReports(limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	reports := make([]json.RawMessage, 0, len(rows))
	for _, row := range rows {
		reports = append(reports, json.RawMessage(row.Report))
	}
	writeJSON(w, http.StatusOK, map[string]any{"cycles": reports})
}

func (s *Server) handleListRules(w http.ResponseWriter, r *http.Request) {
	set, rejected, err := s.runner.Rules()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	invalid := make([]string, 0, len(rejected))
	for _, rec := range rejected {
		invalid = append(invalid, rec.Error())
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"version": set.Version,
		"rules":   set.Rules,
		"invalid": invalid,
	})
}

func (s *Server) handleValidateRules(w http.ResponseWriter, r *http.Request) {
	rejected, err := s.runner.Validate()
	if err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"valid": false,
			"error": err.Error(),
		})
		return
	}

	msgs := make([]string, 0, len(rejected))
	for _, rec := range rejected {
		msgs = append(msgs, rec.Error())
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"valid":  len(msgs) == 0,
		"errors": msgs,
	})
}

func (s *Server) handleListOutcomes(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	outcomes, err := s.db.ListOutcomes(limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	type outcomeJSON struct {
		CycleID string `json:"cycle_id"`
		Rule    string `json:"rule"`
		Source  string `json:"source"`
		Target  string `json:"target"`
		Status  string `json:"status"`
	}
	out := make([]outcomeJSON, 0, len(outcomes))
	for _, o := range outcomes {
		out = append(out, outcomeJSON{
			CycleID: strconv.FormatInt(o.CycleID, 10),
			Rule:    o.Rule,
			Source:  o.Source,
			Target:  o.Target,
			Status:  o.Status,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"outcomes": out})
}

func (s *Server) handleMarkOutcome(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Rule   string `json:"rule"`
		Source string `json:"source"`
		Target string `json:"target"`
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.Status != store.StatusRetained && req.Status != store.StatusReversed {
		writeError(w, http.StatusBadRequest, "status must be retained or reversed")
		return
	}
	if req.Rule == "" || req.Source == "" || req.Target == "" {
		writeError(w, http.StatusBadRequest, "rule, source, and target required")
		return
	}

	marked, err := s.runner.MarkOutcome(req.Rule, req.Source, req.Target, req.Status)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !marked {
		writeError(w, http.StatusNotFound, "no applied outcome matches")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
