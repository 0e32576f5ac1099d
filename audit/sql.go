package audit

import (
	"context"
	"database/sql"
	"encoding/json"
)

type sqlSink struct {
	db *sql.DB
}

// NewSQLSink stores audit entries in the audit_log table.
func NewSQLSink(db *sql.DB) *sqlSink {
	return &sqlSink{db: db}
}

func (s *sqlSink) Save(ctx context.Context, e Entry) error {
	jsonData, err := json.Marshal(e.Data)
	if err != nil {
		return err
	}
	jsonMetadata, err := json.Marshal(e.Metadata)
	if err != nil {
		return err
	}

	statement := `INSERT INTO audit_log (id, action, data, metadata, recorded_at) VALUES ($1, $2, $3, $4, $5)`
	_, err = s.db.ExecContext(ctx, statement, e.ID, e.Action, jsonData, jsonMetadata, e.RecordedAt)
	return err
}
