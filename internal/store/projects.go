package store

import (
	"database/sql"
	"fmt"
)

// Project represents a single project-budget record. ProjectID is
// caller-supplied and immutable after creation.
type Project struct {
	ProjectID                      int64   `json:"projectId"`
	ProjectName                    string  `json:"projectName"`
	Year                           int64   `json:"year"`
	Currency                       string  `json:"currency"`
	InitialBudgetLocal             float64 `json:"initialBudgetLocal"`
	BudgetUSD                      float64 `json:"budgetUsd"`
	InitialScheduleEstimateMonths  int64   `json:"initialScheduleEstimateMonths"`
	AdjustedScheduleEstimateMonths int64   `json:"adjustedScheduleEstimateMonths"`
	ContingencyRate                float64 `json:"contingencyRate"`
	EscalationRate                 float64 `json:"escalationRate"`
	FinalBudgetUSD                 float64 `json:"finalBudgetUsd"`
}

const projectColumns = `project_id, project_name, year, currency,
	       initial_budget_local, budget_usd,
	       initial_schedule_estimate_months, adjusted_schedule_estimate_months,
	       contingency_rate, escalation_rate, final_budget_usd`

// FindProjectByID returns all rows matching the given project id, in
// result order. With the primary-key constraint intact this is 0 or 1
// rows, but callers collapse the sequence themselves.
func (s *Store) FindProjectByID(projectID int64) ([]Project, error) {
	rows, err := s.reader.Query(`
		SELECT `+projectColumns+`
		FROM project WHERE project_id = ?`, projectID,
	)
	if err != nil {
		return nil, fmt.Errorf("store: find project %d: %w", projectID, err)
	}
	return scanProjects(rows)
}

// FindProjectsByNameAndYear returns all rows matching both the project
// name and year, in result order.
func (s *Store) FindProjectsByNameAndYear(projectName string, year int64) ([]Project, error) {
	rows, err := s.reader.Query(`
		SELECT `+projectColumns+`
		FROM project WHERE project_name = ? AND year = ?`, projectName, year,
	)
	if err != nil {
		return nil, fmt.Errorf("store: find projects (%s, %d): %w", projectName, year, err)
	}
	return scanProjects(rows)
}

// InsertProject stores a new project record. A duplicate project id
// fails with the primary-key constraint error from the storage engine.
func (s *Store) InsertProject(p *Project) error {
	_, err := s.writer.Exec(`
		INSERT INTO project (
			project_id, project_name, year, currency,
			initial_budget_local, budget_usd,
			initial_schedule_estimate_months, adjusted_schedule_estimate_months,
			contingency_rate, escalation_rate, final_budget_usd
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ProjectID, p.ProjectName, p.Year, p.Currency,
		p.InitialBudgetLocal, p.BudgetUSD,
		p.InitialScheduleEstimateMonths, p.AdjustedScheduleEstimateMonths,
		p.ContingencyRate, p.EscalationRate, p.FinalBudgetUSD,
	)
	if err != nil {
		return fmt.Errorf("store: insert project %d: %w", p.ProjectID, err)
	}
	return nil
}

// UpdateProject overwrites every field except the project id for the
// matching row in a single statement. Returns sql.ErrNoRows (wrapped)
// if no row matched, so a concurrent delete cannot turn the update
// into a silent no-op.
func (s *Store) UpdateProject(projectID int64, p *Project) error {
	result, err := s.writer.Exec(`
		UPDATE project SET
			project_name = ?, year = ?, currency = ?,
			initial_budget_local = ?, budget_usd = ?,
			initial_schedule_estimate_months = ?, adjusted_schedule_estimate_months = ?,
			contingency_rate = ?, escalation_rate = ?, final_budget_usd = ?
		WHERE project_id = ?`,
		p.ProjectName, p.Year, p.Currency,
		p.InitialBudgetLocal, p.BudgetUSD,
		p.InitialScheduleEstimateMonths, p.AdjustedScheduleEstimateMonths,
		p.ContingencyRate, p.EscalationRate, p.FinalBudgetUSD,
		projectID,
	)
	if err != nil {
		return fmt.Errorf("store: update project %d: %w", projectID, err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("store: update project rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("store: update project %d: %w", projectID, sql.ErrNoRows)
	}
	return nil
}

// DeleteProject removes the matching row. Returns sql.ErrNoRows
// (wrapped) if no row matched.
func (s *Store) DeleteProject(projectID int64) error {
	result, err := s.writer.Exec(`DELETE FROM project WHERE project_id = ?`, projectID)
	if err != nil {
		return fmt.Errorf("store: delete project %d: %w", projectID, err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("store: delete project rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("store: delete project %d: %w", projectID, sql.ErrNoRows)
	}
	return nil
}

// scanProjects drains rows into a slice, preserving result order.
func scanProjects(rows *sql.Rows) ([]Project, error) {
	defer rows.Close()

	var results []Project
	for rows.Next() {
		var p Project
		if err := rows.Scan(
			&p.ProjectID, &p.ProjectName, &p.Year, &p.Currency,
			&p.InitialBudgetLocal, &p.BudgetUSD,
			&p.InitialScheduleEstimateMonths, &p.AdjustedScheduleEstimateMonths,
			&p.ContingencyRate, &p.EscalationRate, &p.FinalBudgetUSD,
		); err != nil {
			return nil, fmt.Errorf("store: scan project row: %w", err)
		}
		results = append(results, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: project rows iteration: %w", err)
	}
	return results, nil
}
