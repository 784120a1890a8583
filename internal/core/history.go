package core

import (
	"time"

	"github.com/google/uuid"
)

// ImportRun is the history entry stored for every non-dry-run import.
type ImportRun struct {
	ID                uuid.UUID   `json:"id"`
	AccountID         uuid.UUID   `json:"account_id"`
	Kind              ImportKind  `json:"kind"`
	FileName          string      `json:"file_name"`
	Source            string      `json:"source"`
	Status            ImportState `json:"status"`
	Processed         int         `json:"processed_count"`
	Succeeded         int         `json:"success_count"`
	Failed            int         `json:"error_count"`
	Warnings          int         `json:"warnings_count"`
	CreatedSecurities int         `json:"created_securities"`
	StartedAt         time.Time   `json:"started_at"`
	FinishedAt        time.Time   `json:"finished_at"`
}

// StatusFailed marks a run that stopped on a file-level error.
const StatusFailed ImportState = "failed"

// newImportRun summarizes a finished result.
func newImportRun(req ImportRequest, result *ImportResult, started, finished time.Time) ImportRun {
	status := result.State
	switch status {
	case StateCommitted, StateRolledBack:
	default:
		status = StatusFailed
	}
	source := req.Source
	if source == "" {
		source = "csv"
	}
	return ImportRun{
		ID:                result.ImportID,
		AccountID:         req.AccountID,
		Kind:              req.Kind,
		FileName:          req.FileName,
		Source:            source,
		Status:            status,
		Processed:         result.Summary.ProcessedCount,
		Succeeded:         result.Summary.SuccessCount,
		Failed:            result.Summary.ErrorCount,
		Warnings:          result.Summary.WarningsCount,
		CreatedSecurities: len(result.CreatedSecurities),
		StartedAt:         started.UTC(),
		FinishedAt:        finished.UTC(),
	}
}
