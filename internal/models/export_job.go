package models

import "time"

// Export job states.
const (
	ExportStatusPending   = "PENDING"
	ExportStatusRunning   = "RUNNING"
	ExportStatusCompleted = "COMPLETED"
	ExportStatusFailed    = "FAILED"
)

// Export formats.
const (
	ExportFormatCSV = "csv"
	ExportFormatPDF = "pdf"
)

// ExportJob tracks an asynchronous analytics export.
type ExportJob struct {
	ID          string     `db:"id" json:"id"`
	ClassID     string     `db:"class_id" json:"class_id"`
	Format      string     `db:"format" json:"format"`
	Status      string     `db:"status" json:"status"`
	FilePath    string     `db:"file_path" json:"-"`
	Error       string     `db:"error" json:"error,omitempty"`
	RequestedBy string     `db:"requested_by" json:"requested_by"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	CompletedAt *time.Time `db:"completed_at" json:"completed_at,omitempty"`
}
