package ledger

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"strconv"

	"github.com/cbdcwatch/monitor/internal/model"
)

const auditFile = "audit_verdicts.csv"

var auditHeader = []string{
	"record_uid",
	"judge_id",
	"attempt",
	"status",
	"decision",
	"reasoning",
	"latency_ms",
}

// AuditWriter appends judgment attempts to the audit ledger. Rows are
// never rewritten: the file preserves the full history of disagreements
// and outages, including failed attempts.
type AuditWriter struct {
	path string
}

// Audit returns the append-only audit writer for this store.
func (s *Store) Audit() *AuditWriter {
	return &AuditWriter{path: filepath.Join(s.dir, auditFile)}
}

// Append writes verdicts to the audit ledger, creating the file with a
// header on first use.
func (a *AuditWriter) Append(verdicts ...model.Verdict) error {
	if len(verdicts) == 0 {
		return nil
	}

	_, statErr := os.Stat(a.path)
	needHeader := os.IsNotExist(statErr)

	f, err := os.OpenFile(a.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return &model.PersistenceError{Source: "audit", Err: err}
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if needHeader {
		if err := w.Write(auditHeader); err != nil {
			return &model.PersistenceError{Source: "audit", Err: err}
		}
	}
	for _, v := range verdicts {
		row := []string{
			v.RecordUID,
			string(v.JudgeID),
			strconv.Itoa(v.Attempt),
			string(v.Status),
			string(v.Decision),
			v.Reasoning,
			strconv.FormatInt(v.Latency.Milliseconds(), 10),
		}
		if err := w.Write(row); err != nil {
			return &model.PersistenceError{Source: "audit", Err: err}
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return &model.PersistenceError{Source: "audit", Err: err}
	}
	return nil
}

// ReadAll returns every audit row (minus the header), oldest first.
func (a *AuditWriter) ReadAll() ([][]string, error) {
	rows, err := readRows(a.path)
	if err != nil {
		return nil, &model.PersistenceError{Source: "audit", Err: err}
	}
	return rows, nil
}
