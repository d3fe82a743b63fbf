package model

import "time"

// JudgeID identifies one of the two independent judgment services.
type JudgeID string

const (
	JudgeA JudgeID = "judge_a"
	JudgeB JudgeID = "judge_b"
)

// Decision is a judge's (or the arbiter's) include/exclude call.
type Decision string

const (
	DecisionInclude Decision = "include"
	DecisionExclude Decision = "exclude"
)

// VerdictStatus describes how a judgment attempt ended.
type VerdictStatus string

const (
	VerdictOK      VerdictStatus = "ok"
	VerdictTimeout VerdictStatus = "timeout"
	VerdictError   VerdictStatus = "error"
	// VerdictSkipped marks records short-circuited by the keyword
	// prefilter; no network call was made.
	VerdictSkipped VerdictStatus = "skipped"
)

// Verdict is one judgment service's opinion about one record. Verdicts
// are immutable; a retry creates a new Verdict with a higher Attempt.
type Verdict struct {
	RecordUID  string        `json:"record_uid"`
	JudgeID    JudgeID       `json:"judge_id"`
	Attempt    int           `json:"attempt"`
	Decision   Decision      `json:"decision"`
	Confidence float64       `json:"confidence"`
	Reasoning  string        `json:"reasoning"`
	Latency    time.Duration `json:"latency"`
	Status     VerdictStatus `json:"status"`
}

// Agreement describes how the two judges related on a record.
type Agreement string

const (
	AgreementBoth       Agreement = "both_agree"
	AgreementSplit      Agreement = "disagreement"
	AgreementSingle     Agreement = "single_judge_only"
	AgreementNone       Agreement = "no_judge"
	AgreementPrefilter  Agreement = "keyword_prefilter"
)

// Outcome is the arbitration result derived from up to two verdicts.
type Outcome struct {
	RecordUID      string    `json:"record_uid"`
	FinalDecision  Decision  `json:"final_decision"`
	Agreement      Agreement `json:"agreement"`
	AuditReasoning string    `json:"audit_reasoning"`
	JudgeA         *Verdict  `json:"judge_a,omitempty"`
	JudgeB         *Verdict  `json:"judge_b,omitempty"`
}

// Relevant reports whether the record survived arbitration.
func (o *Outcome) Relevant() bool {
	return o != nil && o.FinalDecision == DecisionInclude
}
