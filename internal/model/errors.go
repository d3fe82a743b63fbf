package model

import "fmt"

// ErrorKind labels a failure for alerting and run summaries.
type ErrorKind string

const (
	KindValidation  ErrorKind = "validation"
	KindFetch       ErrorKind = "fetch"
	KindJudgment    ErrorKind = "judgment"
	KindPersistence ErrorKind = "persistence"
)

// ValidationError marks a malformed raw item. The item is skipped and
// logged; it never aborts its source.
type ValidationError struct {
	Source string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: %s: %s", e.Source, e.Reason)
}

// FetchError marks a collector-level network or parse failure. It
// isolates that source only.
type FetchError struct {
	Source string
	Err    error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch: %s: %v", e.Source, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// JudgmentError marks a timeout or error from one judgment service.
type JudgmentError struct {
	JudgeID JudgeID
	Err     error
}

func (e *JudgmentError) Error() string {
	return fmt.Sprintf("judgment: %s: %v", e.JudgeID, e.Err)
}

func (e *JudgmentError) Unwrap() error { return e.Err }

// PersistenceError marks a ledger write or rename failure. It is fatal
// for that source's run: a silent partial ledger would corrupt future
// dedup decisions.
type PersistenceError struct {
	Source string
	Err    error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence: %s: %v", e.Source, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
