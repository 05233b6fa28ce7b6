package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/choreguild/choreguild/internal/chore"
	"github.com/choreguild/choreguild/internal/clock"
	"github.com/choreguild/choreguild/internal/event"
	"github.com/choreguild/choreguild/internal/orchestrator"
	"github.com/choreguild/choreguild/internal/recurrence"
	"github.com/choreguild/choreguild/internal/stats"
)

type nopRepo struct{}

func (nopRepo) Get(context.Context, string, string) (*chore.Instance, error) {
	return nil, chore.NewNotFoundError("instance", "")
}
func (nopRepo) ListByChore(context.Context, string) ([]*chore.Instance, error) { return nil, nil }
func (nopRepo) List(context.Context) ([]*chore.Instance, error)               { return nil, nil }
func (nopRepo) Put(context.Context, ...*chore.Instance) error                 { return nil }
func (nopRepo) DeleteByChore(context.Context, string) error                   { return nil }

func newTestServer(t *testing.T) (*httptest.Server, *orchestrator.Orchestrator) {
	t.Helper()
	bus, err := event.NewEventBus()
	require.NoError(t, err)
	t.Cleanup(func() { _ = bus.Stop() })

	recorder := stats.NewMemory()
	ledger := stats.NewPointsLedger()
	clk := clock.NewFake(time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC))
	orch := orchestrator.New(nopRepo{}, bus, recorder, ledger, clk,
		recurrence.NewCalculator(time.UTC))

	ctx := context.Background()
	require.NoError(t, orch.Load(ctx))
	require.NoError(t, orch.ReplaceDefinitions(ctx, []*chore.Definition{{
		ID:   "dishes",
		Name: "Dishes",
		Schedule: recurrence.Spec{
			Frequency: recurrence.FreqTimesPerDay,
			Times:     []string{"18:00"},
		},
		AssigneeIDs:        []string{"alice"},
		Criteria:           chore.CriteriaIndependent,
		ResetTiming:        chore.ResetAtMidnight,
		OverduePolicy:      chore.OverdueHold,
		PendingClaimPolicy: chore.PendingHold,
		Points:             10,
	}}))

	srv := New("", "0", orch, recorder, ledger)
	ts := httptest.NewServer(srv.httpSrv.Handler)
	t.Cleanup(ts.Close)
	return ts, orch
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(raw))
	require.NoError(t, err)
	return resp
}

func TestHealthz(t *testing.T) {
	ts, _ := newTestServer(t)
	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestClaimEndpoint(t *testing.T) {
	ts, _ := newTestServer(t)

	resp := postJSON(t, ts.URL+"/api/chores/dishes/claim", map[string]string{"assignee_id": "alice"})
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var inst chore.Instance
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&inst))
	assert.Equal(t, chore.StateClaimed, inst.State)
	assert.Equal(t, "alice", inst.ClaimedBy)
}

func TestClaimConflictMapsTo409(t *testing.T) {
	ts, _ := newTestServer(t)

	resp := postJSON(t, ts.URL+"/api/chores/dishes/claim", map[string]string{"assignee_id": "alice"})
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = postJSON(t, ts.URL+"/api/chores/dishes/claim", map[string]string{"assignee_id": "alice"})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	var apiErr errorResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&apiErr))
	assert.Equal(t, "already_exists", apiErr.Code)
	assert.Contains(t, apiErr.Error, "already claimed")
}

func TestMissingAssigneeIsBadRequest(t *testing.T) {
	ts, _ := newTestServer(t)
	resp := postJSON(t, ts.URL+"/api/chores/dishes/claim", map[string]string{})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestUnknownChoreIs404(t *testing.T) {
	ts, _ := newTestServer(t)
	resp := postJSON(t, ts.URL+"/api/chores/laundry/claim", map[string]string{"assignee_id": "alice"})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestApproveEndpointAndStats(t *testing.T) {
	ts, _ := newTestServer(t)

	resp := postJSON(t, ts.URL+"/api/chores/dishes/claim", map[string]string{"assignee_id": "alice"})
	resp.Body.Close()
	resp = postJSON(t, ts.URL+"/api/chores/dishes/approve",
		map[string]string{"assignee_id": "alice", "approver": "dad"})
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var inst chore.Instance
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&inst))
	assert.Equal(t, chore.StateApproved, inst.State)

	statsResp, err := http.Get(ts.URL + "/api/stats")
	require.NoError(t, err)
	defer statsResp.Body.Close()
	var payload struct {
		Counters map[string]map[string]int `json:"counters"`
		Points   map[string]int            `json:"points"`
	}
	require.NoError(t, json.NewDecoder(statsResp.Body).Decode(&payload))
	assert.Equal(t, 10, payload.Points["alice"])
	assert.Equal(t, 1, payload.Counters["alice"]["approved"])
}

func TestListEndpoints(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/api/chores")
	require.NoError(t, err)
	defer resp.Body.Close()
	var defs []*chore.Definition
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&defs))
	require.Len(t, defs, 1)
	assert.Equal(t, "dishes", defs[0].ID)

	resp, err = http.Get(ts.URL + "/api/chores/dishes/instances")
	require.NoError(t, err)
	defer resp.Body.Close()
	var insts []*chore.Instance
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&insts))
	require.Len(t, insts, 1)
	assert.Equal(t, chore.StatePending, insts[0].State)
}

func TestResetEndpointReturnsInstances(t *testing.T) {
	ts, _ := newTestServer(t)

	resp := postJSON(t, ts.URL+"/api/chores/dishes/claim", map[string]string{"assignee_id": "alice"})
	resp.Body.Close()

	resp = postJSON(t, ts.URL+"/api/chores/dishes/reset", map[string]string{})
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var insts []*chore.Instance
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&insts))
	require.Len(t, insts, 1)
	assert.Equal(t, chore.StatePending, insts[0].State)
}
