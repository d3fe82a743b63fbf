// Package ledger maintains the per-source append-only history files,
// the per-run delta files, the dedup index, and the global merge.
//
// Layout under the data directory:
//
//	<source>_standard_all.csv   full history, append-only
//	<source>_standard_new.csv   this run's additions, rebuilt every run
//	GLOBAL_standard_all.csv     union of all per-source histories
//	GLOBAL_standard_new.csv     union of all per-source deltas
//	audit_verdicts.csv          one row per judgment attempt, append-only
package ledger

import (
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/cbdcwatch/monitor/internal/model"
)

const (
	allSuffix = "_standard_all.csv"
	newSuffix = "_standard_new.csv"
	globalKey = "GLOBAL"
)

// Store owns the data directory holding every ledger file.
type Store struct {
	dir string
}

// NewStore creates the data directory if needed and returns a Store.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, &model.PersistenceError{Source: "store", Err: err}
	}
	return &Store{dir: dir}, nil
}

// Dir returns the data directory path.
func (s *Store) Dir() string { return s.dir }

func (s *Store) allPath(source string) string {
	return filepath.Join(s.dir, source+allSuffix)
}

func (s *Store) newPath(source string) string {
	return filepath.Join(s.dir, source+newSuffix)
}

// keyIndex is the explicit per-source dedup state, loaded once at run
// start and owned by a single source's execution unit.
type keyIndex struct {
	uids map[string]struct{}
	urls map[string]struct{}
}

func newKeyIndex() *keyIndex {
	return &keyIndex{
		uids: make(map[string]struct{}),
		urls: make(map[string]struct{}),
	}
}

// known reports whether either dedup key is already present. uid takes
// priority; url catches sources whose identifier scheme is unstable but
// whose URL is canonical.
func (k *keyIndex) known(uid, url string) bool {
	if uid != "" {
		if _, ok := k.uids[uid]; ok {
			return true
		}
	}
	if url != "" {
		if _, ok := k.urls[url]; ok {
			return true
		}
	}
	return false
}

func (k *keyIndex) add(uid, url string) {
	if uid != "" {
		k.uids[uid] = struct{}{}
	}
	if url != "" {
		k.urls[url] = struct{}{}
	}
}

// SourceLedger is one source's history plus this run's delta. It is
// owned exclusively by that source's execution unit during a run.
type SourceLedger struct {
	store    *Store
	source   string
	index    *keyIndex
	history  [][]string // existing rows from the all-file, as read
	accepted []model.Record
	dirty    bool // history rows mutated by backfill
}

// Open loads a source's history and dedup index. Fails soft when no
// prior history exists.
func (s *Store) Open(source string) (*SourceLedger, error) {
	rows, err := readRows(s.allPath(source))
	if err != nil {
		return nil, &model.PersistenceError{Source: source, Err: err}
	}

	idx := newKeyIndex()
	for _, row := range rows {
		rec := model.RecordFromRow(row)
		idx.add(rec.UID, rec.URL)
	}

	zap.L().Debug("ledger: opened source",
		zap.String("source", source),
		zap.Int("history", len(rows)),
	)

	return &SourceLedger{
		store:   s,
		source:  source,
		index:   idx,
		history: rows,
	}, nil
}

// KnownKeys returns the number of distinct uids currently indexed.
func (l *SourceLedger) KnownKeys() int { return len(l.index.uids) }

// Accept appends the record to this run's delta if neither its uid nor
// its url has been seen before, updating the index immediately so
// within-run duplicates from the same collector are also rejected.
// Returns false (no write) for duplicates. Once accepted, a record is
// never later rejected within the same run.
func (l *SourceLedger) Accept(rec model.Record) bool {
	if l.index.known(rec.UID, rec.URL) {
		return false
	}
	l.index.add(rec.UID, rec.URL)
	l.accepted = append(l.accepted, rec)
	return true
}

// Accepted returns the records accepted so far this run. Callers may
// attach arbitration outcomes in place before Flush.
func (l *SourceLedger) Accepted() []model.Record { return l.accepted }

// EmptyContent returns history records whose content column is still
// empty, as backfill candidates.
func (l *SourceLedger) EmptyContent() []model.Record {
	const contentCol = 8
	var out []model.Record
	for _, row := range l.history {
		if len(row) > contentCol && row[contentCol] == "" {
			out = append(out, model.RecordFromRow(row))
		}
	}
	return out
}

// BackfillContent fills the content column of an existing history row
// whose content is empty. Non-empty content is never overwritten.
// Returns true when a row was filled.
func (l *SourceLedger) BackfillContent(uid, content string) bool {
	if content == "" {
		return false
	}
	const contentCol = 8
	for _, row := range l.history {
		if len(row) > contentCol && row[0] == uid && row[contentCol] == "" {
			row[contentCol] = content
			l.dirty = true
			return true
		}
	}
	return false
}

// Flush durably persists the all and new files. The all file is written
// first: a crash between the two renames leaves history a superset of
// the delta, never the reverse. Each file is written to a temporary
// location and renamed into place.
func (l *SourceLedger) Flush() error {
	rows := make([][]string, 0, len(l.history)+len(l.accepted))
	rows = append(rows, l.history...)
	for _, rec := range l.accepted {
		rows = append(rows, rec.Row())
	}

	if err := writeAtomic(l.store.allPath(l.source), model.StandardFields, rows); err != nil {
		return &model.PersistenceError{Source: l.source, Err: err}
	}

	newRows := make([][]string, 0, len(l.accepted))
	for _, rec := range l.accepted {
		newRows = append(newRows, rec.Row())
	}
	if err := writeAtomic(l.store.newPath(l.source), model.StandardFields, newRows); err != nil {
		return &model.PersistenceError{Source: l.source, Err: err}
	}

	zap.L().Info("ledger: flushed",
		zap.String("source", l.source),
		zap.Int("history", len(l.history)),
		zap.Int("new", len(l.accepted)),
		zap.Bool("backfilled", l.dirty),
	)
	l.dirty = false
	return nil
}

// Sources lists every source with an all-ledger on disk, excluding the
// global files.
func (s *Store) Sources() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, &model.PersistenceError{Source: "store", Err: err}
	}
	var sources []string
	for _, e := range entries {
		name := e.Name()
		if !strings.HasSuffix(name, allSuffix) {
			continue
		}
		src := strings.TrimSuffix(name, allSuffix)
		if src == globalKey || src == "" {
			continue
		}
		sources = append(sources, src)
	}
	return sources, nil
}
