package core

import (
	"fmt"

	"github.com/google/uuid"
)

// ImportState is the coordinator state a run ended in.
type ImportState string

const (
	StateIdle                       ImportState = "idle"
	StateRowsProcessing             ImportState = "rows_processing"
	StateStructuralValidationFailed ImportState = "structural_validation_failed"
	StateCommitted                  ImportState = "committed"
	StateRolledBack                 ImportState = "rolled_back"
)

// CreatedSecurity records a security created during a run.
type CreatedSecurity struct {
	Symbol string `json:"symbol"`
	Name   string `json:"name"`
	Source string `json:"source"`
	Status string `json:"status"`
}

// FailedSecurity records a security creation that failed.
type FailedSecurity struct {
	Symbol string `json:"symbol"`
	Source string `json:"source"`
	Error  string `json:"error"`
}

const (
	SourceManual      = "manual"
	StatusSuccess     = "success"
	StatusMinimalData = "minimal_data"
)

// Summary holds the exact counts of a run.
type Summary struct {
	ProcessedCount int `json:"processed_count"`
	SuccessCount   int `json:"success_count"`
	ErrorCount     int `json:"error_count"`
	WarningsCount  int `json:"warnings_count"`
}

// ImportResult accumulates the outcome of one import run.
type ImportResult struct {
	ImportID          uuid.UUID         `json:"import_id"`
	Kind              ImportKind        `json:"kind"`
	DryRun            bool              `json:"dry_run"`
	Success           bool              `json:"success"`
	Summary           Summary           `json:"summary"`
	CreatedSecurities []CreatedSecurity `json:"created_securities"`
	FailedSecurities  []FailedSecurity  `json:"failed_securities"`
	Warnings          []string          `json:"warnings"`
	Errors            []string          `json:"errors"`
	HasMoreErrors     bool              `json:"has_more_errors"`

	State ImportState `json:"-"`
}

// NewImportResult returns an empty result in the idle state.
func NewImportResult(id uuid.UUID, kind ImportKind, dryRun bool) *ImportResult {
	return &ImportResult{
		ImportID:          id,
		Kind:              kind,
		DryRun:            dryRun,
		CreatedSecurities: []CreatedSecurity{},
		FailedSecurities:  []FailedSecurity{},
		Warnings:          []string{},
		Errors:            []string{},
		State:             StateIdle,
	}
}

// AddWarning records a warning.
func (r *ImportResult) AddWarning(msg string) {
	r.Warnings = append(r.Warnings, msg)
}

// AddFileError records a file-level error that is not tied to a row.
func (r *ImportResult) AddFileError(msg string) {
	r.Errors = append(r.Errors, msg)
}

// AddRowErrors records the errors of one failed row and counts it once.
func (r *ImportResult) AddRowErrors(line int, msgs ...string) {
	for _, m := range msgs {
		r.Errors = append(r.Errors, fmt.Sprintf("Row %d: %s", line, m))
	}
	r.Summary.ErrorCount++
}

// RecordCreated appends a created security.
func (r *ImportResult) RecordCreated(c CreatedSecurity) {
	r.CreatedSecurities = append(r.CreatedSecurities, c)
}

// RecordFailed appends a failed security creation.
func (r *ImportResult) RecordFailed(f FailedSecurity) {
	r.FailedSecurities = append(r.FailedSecurities, f)
}

// finish derives Success and the warning count.
func (r *ImportResult) finish() {
	r.Summary.WarningsCount = len(r.Warnings)
	r.Success = r.Summary.ErrorCount == 0 && len(r.Errors) == 0
}

// Truncated returns a copy limited to maxWarnings warnings and maxErrors
// errors. Summary counts stay exact; HasMoreErrors is set when errors were cut.
// A non-positive limit disables truncation for that list.
func (r *ImportResult) Truncated(maxWarnings, maxErrors int) *ImportResult {
	out := *r
	if maxWarnings > 0 && len(out.Warnings) > maxWarnings {
		out.Warnings = out.Warnings[:maxWarnings:maxWarnings]
	}
	if maxErrors > 0 && len(out.Errors) > maxErrors {
		out.Errors = out.Errors[:maxErrors:maxErrors]
		out.HasMoreErrors = true
	}
	return &out
}
