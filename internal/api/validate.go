package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/allaspectsdev/budgetd/internal/store"
)

// BudgetPayload is the wire form of a project-budget record. Fields are
// raw JSON so a missing key, a null, and a wrong-typed value can all be
// told apart; type checks belong to ValidateBudget, not the decoder.
type BudgetPayload struct {
	ProjectID                      json.RawMessage `json:"projectId"`
	ProjectName                    json.RawMessage `json:"projectName"`
	Year                           json.RawMessage `json:"year"`
	Currency                       json.RawMessage `json:"currency"`
	InitialBudgetLocal             json.RawMessage `json:"initialBudgetLocal"`
	BudgetUSD                      json.RawMessage `json:"budgetUsd"`
	InitialScheduleEstimateMonths  json.RawMessage `json:"initialScheduleEstimateMonths"`
	AdjustedScheduleEstimateMonths json.RawMessage `json:"adjustedScheduleEstimateMonths"`
	ContingencyRate                json.RawMessage `json:"contingencyRate"`
	EscalationRate                 json.RawMessage `json:"escalationRate"`
	FinalBudgetUSD                 json.RawMessage `json:"finalBudgetUsd"`
}

// ValidateBudget checks a budget payload against the required-field,
// type, and basic range rules. Checks run in a fixed order and the
// first failure wins; the missing-field error names every missing
// field. A present-but-wrong-typed value fails the field's own check,
// so "projectId": "abc" yields the projectId message, not a decode
// error. Numeric fields beyond initialBudgetLocal are accepted without
// range checks.
func ValidateBudget(p *BudgetPayload) error {
	required := []struct {
		name string
		raw  json.RawMessage
	}{
		{"projectId", p.ProjectID},
		{"projectName", p.ProjectName},
		{"year", p.Year},
		{"currency", p.Currency},
		{"initialBudgetLocal", p.InitialBudgetLocal},
		{"budgetUsd", p.BudgetUSD},
		{"initialScheduleEstimateMonths", p.InitialScheduleEstimateMonths},
		{"adjustedScheduleEstimateMonths", p.AdjustedScheduleEstimateMonths},
		{"contingencyRate", p.ContingencyRate},
		{"escalationRate", p.EscalationRate},
		{"finalBudgetUsd", p.FinalBudgetUSD},
	}

	var missing []string
	for _, f := range required {
		if f.raw == nil {
			missing = append(missing, f.name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("Missing required fields: %s", strings.Join(missing, ", "))
	}

	if n, ok := asNumber(p.ProjectID); !ok || n <= 0 {
		return errors.New("Invalid projectId: must be a positive number")
	}
	if s, ok := asString(p.ProjectName); !ok || strings.TrimSpace(s) == "" {
		return errors.New("Invalid projectName: must be a non-empty string")
	}
	if n, ok := asNumber(p.Year); !ok || n < 1000 {
		return errors.New("Invalid year: must be a valid year value (e.g., 2024)")
	}
	if s, ok := asString(p.Currency); !ok || strings.TrimSpace(s) == "" {
		return errors.New("Invalid currency: must be a non-empty string")
	}
	if n, ok := asNumber(p.InitialBudgetLocal); !ok || n < 0 {
		return errors.New("Invalid initialBudgetLocal: must be a non-negative number")
	}

	return nil
}

// asNumber reports whether raw is a JSON number and returns its value.
func asNumber(raw json.RawMessage) (float64, bool) {
	var n float64
	if err := json.Unmarshal(raw, &n); err != nil {
		return 0, false
	}
	return n, true
}

// asString reports whether raw is a JSON string and returns its value.
func asString(raw json.RawMessage) (string, bool) {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, true
}

// Record converts a validated payload into a store record. The fields
// without a validator type rule can still carry a wrong-typed value
// here; those surface as a decode error.
func (p *BudgetPayload) Record() (*store.Project, error) {
	var rec store.Project
	fields := []struct {
		name string
		raw  json.RawMessage
		dst  interface{}
	}{
		{"projectId", p.ProjectID, &rec.ProjectID},
		{"projectName", p.ProjectName, &rec.ProjectName},
		{"year", p.Year, &rec.Year},
		{"currency", p.Currency, &rec.Currency},
		{"initialBudgetLocal", p.InitialBudgetLocal, &rec.InitialBudgetLocal},
		{"budgetUsd", p.BudgetUSD, &rec.BudgetUSD},
		{"initialScheduleEstimateMonths", p.InitialScheduleEstimateMonths, &rec.InitialScheduleEstimateMonths},
		{"adjustedScheduleEstimateMonths", p.AdjustedScheduleEstimateMonths, &rec.AdjustedScheduleEstimateMonths},
		{"contingencyRate", p.ContingencyRate, &rec.ContingencyRate},
		{"escalationRate", p.EscalationRate, &rec.EscalationRate},
		{"finalBudgetUsd", p.FinalBudgetUSD, &rec.FinalBudgetUSD},
	}
	for _, f := range fields {
		if err := json.Unmarshal(f.raw, f.dst); err != nil {
			return nil, fmt.Errorf("decoding %s: %w", f.name, err)
		}
	}
	return &rec, nil
}
