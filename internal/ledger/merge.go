package ledger

import (
	"path/filepath"
	"sort"

	"go.uber.org/zap"

	"github.com/cbdcwatch/monitor/internal/model"
)

// Merge rebuilds the global ledgers as a set-union of every per-source
// ledger currently on disk, keyed by uid with url as fallback. Output
// ordering is deterministic (source, then uid), so merging unchanged
// inputs twice produces byte-identical files. Safe to run standalone to
// recover from a partially-failed run.
func (s *Store) Merge() error {
	if err := s.mergeKind(allSuffix); err != nil {
		return err
	}
	return s.mergeKind(newSuffix)
}

func (s *Store) mergeKind(suffix string) error {
	sources, err := s.Sources()
	if err != nil {
		return err
	}
	sort.Strings(sources)

	idx := newKeyIndex()
	var merged [][]string
	for _, src := range sources {
		path := filepath.Join(s.dir, src+suffix)
		rows, err := readRows(path)
		if err != nil {
			return &model.PersistenceError{Source: src, Err: err}
		}
		// uid order within a source; sources in name order.
		sort.SliceStable(rows, func(i, j int) bool {
			return key(rows[i]) < key(rows[j])
		})
		for _, row := range rows {
			rec := model.RecordFromRow(row)
			if idx.known(rec.UID, rec.URL) {
				continue
			}
			idx.add(rec.UID, rec.URL)
			merged = append(merged, row)
		}
	}

	target := filepath.Join(s.dir, globalKey+suffix)
	if err := writeAtomic(target, model.StandardFields, merged); err != nil {
		return &model.PersistenceError{Source: globalKey, Err: err}
	}

	zap.L().Info("ledger: merged globals",
		zap.String("file", filepath.Base(target)),
		zap.Int("sources", len(sources)),
		zap.Int("records", len(merged)),
	)
	return nil
}

func key(row []string) string {
	if len(row) > 0 {
		return row[0]
	}
	return ""
}

// GlobalNew reads the current global delta ledger as records.
func (s *Store) GlobalNew() ([]model.Record, error) {
	return s.ReadLedger(filepath.Join(s.dir, globalKey+newSuffix))
}

// ReadLedger reads any ledger CSV into records. Missing files yield an
// empty slice.
func (s *Store) ReadLedger(path string) ([]model.Record, error) {
	rows, err := readRows(path)
	if err != nil {
		return nil, &model.PersistenceError{Source: filepath.Base(path), Err: err}
	}
	recs := make([]model.Record, 0, len(rows))
	for _, row := range rows {
		recs = append(recs, model.RecordFromRow(row))
	}
	return recs, nil
}

// WriteRecords writes records to a standalone ledger-format CSV,
// atomically.
func WriteRecords(path string, recs []model.Record) error {
	rows := make([][]string, 0, len(recs))
	for _, rec := range recs {
		rows = append(rows, rec.Row())
	}
	if err := writeAtomic(path, model.StandardFields, rows); err != nil {
		return &model.PersistenceError{Source: filepath.Base(path), Err: err}
	}
	return nil
}
