package importer

import "time"

// Profile is the read side of an import profile. The management service owns
// the documents; this service only loads them from the shared collection, so
// the struct carries bson tags alone.
type Profile struct {
	ID             string    `bson:"_id,omitempty"`
	Name           string    `bson:"name"`
	Format         string    `bson:"format"`
	Delimiter      string    `bson:"delimiter"`
	HasHeaderRow   bool      `bson:"has_header_row"`
	ColumnMappings []Mapping `bson:"column_mappings"`
	Enabled        bool      `bson:"enabled"`
	CreatedAt      time.Time `bson:"created_at"`
	UpdatedAt      time.Time `bson:"updated_at"`
}

type Mapping struct {
	Source     string `bson:"source"`
	Target     string `bson:"target"`
	Expression string `bson:"expression"`
	Required   bool   `bson:"required"`
}

// Row is one parsed line of an uploaded file. Cells are keyed by the header
// name, or by the 1-based column index rendered as a string when the file
// has no header row. Number is the 1-based row number in the source file,
// header included, so it matches what the uploader sees in a spreadsheet.
type Row struct {
	Number int
	Cells  map[string]string
}

const (
	BatchStatusRunning   = "running"
	BatchStatusCompleted = "completed"
	BatchStatusFailed    = "failed"
)

// ImportBatch records one file upload and its outcome. Row-level problems
// never fail the batch; they are counted and the first maxStoredRowErrors of
// them are kept for display.
type ImportBatch struct {
	ID           string     `json:"id" db:"id"`
	ProfileID    string     `json:"profile_id" db:"profile_id"`
	ProfileName  string     `json:"profile_name" db:"profile_name"`
	FileName     string     `json:"file_name" db:"file_name"`
	ObjectKey    string     `json:"object_key,omitempty" db:"object_key"`
	Status       string     `json:"status" db:"status"`
	TotalRows    int        `json:"total_rows" db:"total_rows"`
	ImportedRows int        `json:"imported_rows" db:"imported_rows"`
	SkippedRows  int        `json:"skipped_rows" db:"skipped_rows"`
	FailedRows   int        `json:"failed_rows" db:"failed_rows"`
	RowErrors    []RowError `json:"row_errors,omitempty" db:"-"`
	Error        string     `json:"error,omitempty" db:"error"`
	CreatedBy    string     `json:"created_by,omitempty" db:"created_by"`
	StartedAt    time.Time  `json:"started_at" db:"started_at"`
	FinishedAt   *time.Time `json:"finished_at,omitempty" db:"finished_at"`
}

type RowError struct {
	Row     int    `json:"row"`
	Column  string `json:"column,omitempty"`
	Message string `json:"message"`
}

const maxStoredRowErrors = 100
