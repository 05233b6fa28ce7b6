package server

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/choreguild/choreguild/internal/stats"
	"github.com/choreguild/choreguild/pkg/cerr"
	"github.com/choreguild/choreguild/pkg/clog"
)

type actionRequest struct {
	AssigneeID string `json:"assignee_id"`
	Approver   string `json:"approver,omitempty"`
	Reason     string `json:"reason,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

type statsResponse struct {
	Counters map[string]map[stats.Category]int `json:"counters"`
	Points   map[string]int                    `json:"points"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleListChores(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.orch.Definitions())
}

func (s *Server) handleListInstances(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.orch.Instances(""))
}

func (s *Server) handleListChoreInstances(w http.ResponseWriter, r *http.Request) {
	choreID := chi.URLParam(r, "choreID")
	if _, err := s.orch.Definition(choreID); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.orch.Instances(choreID))
}

func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, statsResponse{
		Counters: s.stats.Snapshot(),
		Points:   s.ledger.Snapshot(),
	})
}

func (s *Server) handleClaim(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeAction(w, r, true)
	if !ok {
		return
	}
	inst, err := s.orch.Claim(r.Context(), chi.URLParam(r, "choreID"), req.AssigneeID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, inst)
}

func (s *Server) handleApprove(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeAction(w, r, true)
	if !ok {
		return
	}
	inst, err := s.orch.Approve(r.Context(), chi.URLParam(r, "choreID"), req.AssigneeID, req.Approver)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, inst)
}

func (s *Server) handleDisapprove(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeAction(w, r, true)
	if !ok {
		return
	}
	inst, err := s.orch.Disapprove(r.Context(), chi.URLParam(r, "choreID"), req.AssigneeID, req.Approver, req.Reason)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, inst)
}

func (s *Server) handleUndo(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeAction(w, r, true)
	if !ok {
		return
	}
	inst, err := s.orch.Undo(r.Context(), chi.URLParam(r, "choreID"), req.AssigneeID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, inst)
}

func (s *Server) handleSkip(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeAction(w, r, true)
	if !ok {
		return
	}
	inst, err := s.orch.Skip(r.Context(), chi.URLParam(r, "choreID"), req.AssigneeID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, inst)
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeAction(w, r, false)
	if !ok {
		return
	}
	choreID := chi.URLParam(r, "choreID")
	if err := s.orch.ManualReset(r.Context(), choreID, req.AssigneeID); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.orch.Instances(choreID))
}

func (s *Server) handleReschedule(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeAction(w, r, false)
	if !ok {
		return
	}
	choreID := chi.URLParam(r, "choreID")
	if err := s.orch.ManualReschedule(r.Context(), choreID, req.AssigneeID); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.orch.Instances(choreID))
}

// decodeAction parses the request body. requireAssignee rejects requests
// missing assignee_id; the manual workflows accept an empty one meaning
// "all assignees".
func decodeAction(w http.ResponseWriter, r *http.Request, requireAssignee bool) (actionRequest, bool) {
	var req actionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, cerr.NewError(cerr.InvalidArgument, "invalid request body", err))
		return req, false
	}
	if requireAssignee && req.AssigneeID == "" {
		writeError(w, r, cerr.Errorf(cerr.InvalidArgument, "assignee_id is required"))
		return req, false
	}
	return req, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	clog.AddError(r.Context(), err)
	code := cerr.CodeOf(err)
	writeJSON(w, code.HTTPCode(), errorResponse{
		Error: cerr.MessageOf(err),
		Code:  code.String(),
	})
}
