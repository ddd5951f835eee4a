package store

// SQL schema constants for the budgetd tables.

const schemaProject = `
CREATE TABLE IF NOT EXISTS project (
    project_id INTEGER PRIMARY KEY,
    project_name TEXT NOT NULL,
    year INTEGER NOT NULL,
    currency TEXT NOT NULL,
    initial_budget_local REAL NOT NULL DEFAULT 0.0,
    budget_usd REAL NOT NULL DEFAULT 0.0,
    initial_schedule_estimate_months INTEGER NOT NULL DEFAULT 0,
    adjusted_schedule_estimate_months INTEGER NOT NULL DEFAULT 0,
    contingency_rate REAL NOT NULL DEFAULT 0.0,
    escalation_rate REAL NOT NULL DEFAULT 0.0,
    final_budget_usd REAL NOT NULL DEFAULT 0.0
);
CREATE INDEX IF NOT EXISTS idx_project_name_year ON project(project_name, year);
`

const schemaMigrations = `
CREATE TABLE IF NOT EXISTS migrations (
    version INTEGER PRIMARY KEY,
    applied_at TEXT NOT NULL
);
`

// allSchemas is the ordered list of schema DDL statements that form
// the initial (version-1) database layout.
var allSchemas = []string{
	schemaProject,
	schemaMigrations,
}
