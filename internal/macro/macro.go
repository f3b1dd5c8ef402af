// Package macro implements the Recorder/Player state machine: capture of
// navigation/click/type/select/wait/eval events bound to a session, with
// pause/resume/step playback against another (or the same) session.
package macro

import (
	"time"

	"github.com/google/uuid"
)

// ActionKind enumerates the recordable action variants.
type ActionKind string

const (
	ActionNavigation ActionKind = "navigation"
	ActionClick      ActionKind = "click"
	ActionType       ActionKind = "type"
	ActionSelect     ActionKind = "select"
	ActionWait       ActionKind = "wait"
	ActionEval       ActionKind = "eval"
)

// Point is an optional click coordinate.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Action is one recorded step. Fields are populated according to Kind.
type Action struct {
	ID        string     `json:"id"`
	Kind      ActionKind `json:"kind"`
	Timestamp time.Time  `json:"timestamp"`

	URL      string `json:"url,omitempty"`      // navigation
	Selector string `json:"selector,omitempty"` // click/type/select
	Point    *Point `json:"point,omitempty"`    // click
	Text     string `json:"text,omitempty"`     // type
	Value    string `json:"value,omitempty"`    // select
	Ms       int64  `json:"ms,omitempty"`       // wait
	Code     string `json:"code,omitempty"`     // eval
}

func newAction(kind ActionKind) Action {
	return Action{ID: uuid.NewString(), Kind: kind, Timestamp: time.Now()}
}

// Metadata captures the recording's starting conditions for fidelity checks on replay.
type Metadata struct {
	StartURL  string `json:"start_url,omitempty"`
	UserAgent string `json:"user_agent,omitempty"`
	Viewport  struct {
		Width  int `json:"width"`
		Height int `json:"height"`
	} `json:"viewport"`
	Description string `json:"description,omitempty"`
}

// Recording is a persisted, replayable sequence of actions.
type Recording struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	SessionID string    `json:"session_id"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time,omitempty"`
	Actions   []Action  `json:"actions"`
	Metadata  Metadata  `json:"metadata"`
}

// PlaybackOptions controls how Player.Play executes a recording.
type PlaybackOptions struct {
	StartFromStep       int           `json:"start_from_step"`
	EndAtStep           int           `json:"end_at_step"` // 0 means "all"
	DelayBetweenActions time.Duration `json:"delay_between_actions"`
	StepByStep          bool          `json:"step_by_step"`
	ContinueOnError     bool          `json:"continue_on_error"`
}

// ActionError records a single failed step during playback.
type ActionError struct {
	Step     int        `json:"step"`
	Selector string     `json:"selector,omitempty"`
	Kind     ActionKind `json:"kind"`
	Message  string     `json:"message"`
}

// PlayResult summarises one playback run.
type PlayResult struct {
	ExecutedActions int           `json:"executed_actions"`
	TotalActions    int           `json:"total_actions"`
	Errors          []ActionError `json:"errors,omitempty"`
	Complete        bool          `json:"complete"`
}

// Storage is the pluggable persistence capability macros are saved through.
// A default rotating-JSONL implementation lives in storage_file.go; callers
// may supply any implementation satisfying this interface.
type Storage interface {
	Save(rec Recording) error
	Get(id string) (*Recording, bool, error)
	List() ([]Recording, error)
	Delete(id string) (bool, error)
	Update(id string, mutate func(*Recording)) (bool, error)
}
