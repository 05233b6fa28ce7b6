package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"time"

	"github.com/fatih/color"

	"github.com/choreguild/choreguild/internal/chore"
)

// client talks to a running daemon over its JSON API.
type client struct {
	baseURL string
	http    *http.Client
}

func newClient(baseURL string) *client {
	return &client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

type apiError struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func (c *client) post(path string, body any, out any) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return err
	}
	resp, err := c.http.Post(c.baseURL+path, "application/json", bytes.NewReader(raw))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return decodeResponse(resp, out)
}

func (c *client) get(path string, out any) error {
	resp, err := c.http.Get(c.baseURL + path)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return decodeResponse(resp, out)
}

func decodeResponse(resp *http.Response, out any) error {
	if resp.StatusCode >= 400 {
		var apiErr apiError
		if err := json.NewDecoder(resp.Body).Decode(&apiErr); err == nil && apiErr.Error != "" {
			return fmt.Errorf("%s (%s)", apiErr.Error, apiErr.Code)
		}
		return fmt.Errorf("request failed: %s", resp.Status)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

type actionBody struct {
	AssigneeID string `json:"assignee_id,omitempty"`
	Approver   string `json:"approver,omitempty"`
	Reason     string `json:"reason,omitempty"`
}

func (c *client) action(choreID, verb string, body actionBody) error {
	var inst chore.Instance
	if err := c.post("/api/chores/"+url.PathEscape(choreID)+"/"+verb, body, &inst); err != nil {
		return err
	}
	printInstance(&inst)
	return nil
}

func (c *client) claim(choreID, assigneeID string) error {
	return c.action(choreID, "claim", actionBody{AssigneeID: assigneeID})
}

func (c *client) approve(choreID, assigneeID, approver string) error {
	return c.action(choreID, "approve", actionBody{AssigneeID: assigneeID, Approver: approver})
}

func (c *client) disapprove(choreID, assigneeID, approver, reason string) error {
	return c.action(choreID, "disapprove", actionBody{AssigneeID: assigneeID, Approver: approver, Reason: reason})
}

func (c *client) undo(choreID, assigneeID string) error {
	return c.action(choreID, "undo", actionBody{AssigneeID: assigneeID})
}

func (c *client) skip(choreID, assigneeID string) error {
	return c.action(choreID, "skip", actionBody{AssigneeID: assigneeID})
}

func (c *client) reset(choreID, assigneeID string) error {
	var insts []*chore.Instance
	if err := c.post("/api/chores/"+url.PathEscape(choreID)+"/reset", actionBody{AssigneeID: assigneeID}, &insts); err != nil {
		return err
	}
	for _, inst := range insts {
		printInstance(inst)
	}
	return nil
}

func (c *client) reschedule(choreID, assigneeID string) error {
	var insts []*chore.Instance
	if err := c.post("/api/chores/"+url.PathEscape(choreID)+"/reschedule", actionBody{AssigneeID: assigneeID}, &insts); err != nil {
		return err
	}
	for _, inst := range insts {
		printInstance(inst)
	}
	return nil
}

func (c *client) list() error {
	var insts []*chore.Instance
	if err := c.get("/api/instances", &insts); err != nil {
		return err
	}
	for _, inst := range insts {
		printInstance(inst)
	}
	return nil
}

type statsPayload struct {
	Counters map[string]map[string]int `json:"counters"`
	Points   map[string]int            `json:"points"`
}

func (c *client) stats() error {
	var payload statsPayload
	if err := c.get("/api/stats", &payload); err != nil {
		return err
	}
	ids := make([]string, 0, len(payload.Points))
	for id := range payload.Points {
		ids = append(ids, id)
	}
	for id := range payload.Counters {
		if _, ok := payload.Points[id]; !ok {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	for _, id := range ids {
		fmt.Printf("%s  %s\n", color.CyanString(id),
			color.YellowString("%d pt", payload.Points[id]))
		cats := payload.Counters[id]
		names := make([]string, 0, len(cats))
		for name := range cats {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Printf("    %-12s %d\n", name, cats[name])
		}
	}
	return nil
}

func printInstance(inst *chore.Instance) {
	due := "-"
	if inst.DueAt != nil {
		due = inst.DueAt.Local().Format("2006-01-02 15:04")
	}
	fmt.Printf("%-20s %-12s %-20s due %s\n",
		inst.ChoreID, inst.AssigneeID, stateColor(inst.State), due)
}

func stateColor(s chore.State) string {
	switch s {
	case chore.StatePending:
		return color.WhiteString(string(s))
	case chore.StateClaimed:
		return color.YellowString(string(s))
	case chore.StateApproved:
		return color.GreenString(string(s))
	case chore.StateOverdue:
		return color.RedString(string(s))
	case chore.StateSkipped:
		return color.HiBlackString(string(s))
	case chore.StateCompletedByOther:
		return color.BlueString(string(s))
	default:
		return string(s)
	}
}
