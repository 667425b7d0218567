package bootstrap

import (
	"fmt"
	"time"
)

// Outcome tags a StepResult.
type Outcome int

const (
	Success Outcome = iota
	Skipped
	Warning
	Fatal
)

func (o Outcome) String() string {
	switch o {
	case Success:
		return "success"
	case Skipped:
		return "skipped"
	case Warning:
		return "warning"
	case Fatal:
		return "fatal"
	}
	return "unknown"
}

func (o Outcome) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

func (o *Outcome) UnmarshalText(text []byte) error {
	for _, candidate := range []Outcome{Success, Skipped, Warning, Fatal} {
		if candidate.String() == string(text) {
			*o = candidate
			return nil
		}
	}
	return fmt.Errorf("unknown outcome %q", text)
}

// StepResult is the immutable outcome of one verification or seeding unit.
type StepResult struct {
	Step     string   `json:"step"`
	Outcome  Outcome  `json:"outcome"`
	Message  string   `json:"message,omitempty"`
	Detail   string   `json:"detail,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

func succeeded(step, detail string) StepResult {
	return StepResult{Step: step, Outcome: Success, Detail: detail}
}

func skipped(step, detail string) StepResult {
	return StepResult{Step: step, Outcome: Skipped, Detail: detail}
}

func warned(step string, err error) StepResult {
	return StepResult{Step: step, Outcome: Warning, Message: err.Error(), Warnings: []string{err.Error()}}
}

func failed(step string, err error) StepResult {
	return StepResult{Step: step, Outcome: Fatal, Message: err.Error()}
}

// Success is true for succeeded and skipped steps.
func (r StepResult) Success() bool {
	return r.Outcome == Success || r.Outcome == Skipped
}

// InitializationReport is the aggregate result of one bootstrap run.
// Success is false only when a required step (connection or table verification) failed.
type InitializationReport struct {
	Success      bool          `json:"success"`
	ErrorMessage string        `json:"error_message,omitempty"`
	DurationMs   int64         `json:"duration_ms"`
	Warnings     []string      `json:"warnings"`
	Steps        []StepResult  `json:"steps"`
	StartedAt    time.Time     `json:"started_at"`
	Duration     time.Duration `json:"-"`
}

// ProgressEvent is emitted at fixed checkpoints during a run.
type ProgressEvent struct {
	StepName        string `json:"step_name"`
	PercentComplete int    `json:"percent_complete"`
}

// ProgressFunc observes a run. It must not block for long.
type ProgressFunc func(ProgressEvent)

// OperationResult is returned by administrative operations such as ResetState.
type OperationResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// Status is a read-only snapshot of the migration state.
type Status struct {
	TablesVerified       bool `json:"tables_verified"`
	GradingSeeded        bool `json:"grading_seeded"`
	DefaultUsersSeeded   bool `json:"default_users_seeded"`
	SampleDataSeeded     bool `json:"sample_data_seeded"`
	SchemaVersion        int  `json:"schema_version"`
	CurrentVersion       int  `json:"current_version"`
	IsUpToDate           bool `json:"is_up_to_date"`
	CompletionPercentage int  `json:"completion_percentage"`
}

// Phase of the run state machine.
type Phase int32

const (
	Idle Phase = iota
	VerifyingConnection
	VerifyingTables
	SeedingGrading
	SeedingDefaultUsers
	SeedingSampleData
	Finalizing
	Done
	Failed
)

var phaseNames = [...]string{
	Idle:                "idle",
	VerifyingConnection: "verifying_connection",
	VerifyingTables:     "verifying_tables",
	SeedingGrading:      "seeding_grading",
	SeedingDefaultUsers: "seeding_default_users",
	SeedingSampleData:   "seeding_sample_data",
	Finalizing:          "finalizing",
	Done:                "done",
	Failed:              "failed",
}

func (p Phase) String() string {
	if p < 0 || int(p) >= len(phaseNames) {
		return "unknown"
	}
	return phaseNames[p]
}

// Step names, as reported in StepResults, progress events and metrics.
const (
	StepVerifyConnection = "verifyConnection"
	StepVerifyTables     = "verifyTables"
	StepSeedGrading      = "seedGradingScale"
	StepSeedDefaultUsers = "seedDefaultUsers"
	StepSeedSampleData   = "seedSampleData"
	StepFinalize         = "finalize"
)
