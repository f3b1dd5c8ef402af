package macro

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Executor is the narrow surface the player drives actions through — the
// tools package supplies an implementation bound to a specific session so
// the macro package stays decoupled from the driver adapter.
type Executor interface {
	Goto(ctx context.Context, url string) error
	Click(ctx context.Context, selector string) error
	Type(ctx context.Context, selector, text string) error
	Select(ctx context.Context, selector, value string) error
	Eval(ctx context.Context, code string) (interface{}, error)
}

// stepSelectorTimeout bounds how long click/type/select wait for their
// selector to appear before failing the step.
const stepSelectorTimeout = 30 * time.Second

// State is a read-only snapshot of a playback in progress.
type State struct {
	MacroID     string `json:"macro_id"`
	SessionID   string `json:"session_id"`
	CurrentStep int    `json:"current_step"`
	Active      bool   `json:"active"`
	Paused      bool   `json:"paused"`
	StartTime   time.Time
}

// Player drives one in-progress playback of a Recording against an Executor.
// Exactly one Player should be active per session at a time — enforcement
// of that rule belongs to the caller (the tool handler owning the session).
type Player struct {
	mu       sync.Mutex
	state    State
	resumeCh chan struct{}
	stopped  bool
}

func NewPlayer(macroID, sessionID string) *Player {
	return &Player{
		state: State{MacroID: macroID, SessionID: sessionID},
	}
}

func (p *Player) Snapshot() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Pause marks the playback paused; the run loop checks this between actions.
func (p *Player) Pause() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state.Paused = true
}

// Resume unblocks a paused playback.
func (p *Player) Resume() {
	p.mu.Lock()
	wasPaused := p.state.Paused
	p.state.Paused = false
	ch := p.resumeCh
	p.mu.Unlock()
	if wasPaused && ch != nil {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// Stop cancels the playback; the loop observes this between actions.
func (p *Player) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopped = true
	p.state.Active = false
}

// Play iterates the recording's actions between opts.StartFromStep and
// opts.EndAtStep, executing each through exec, honouring delay/step/continue
// semantics, and returns a summary once done, stopped, or erroring out.
func (p *Player) Play(ctx context.Context, exec Executor, rec Recording, opts PlaybackOptions) (PlayResult, error) {
	p.mu.Lock()
	p.state.Active = true
	p.state.StartTime = time.Now()
	p.resumeCh = make(chan struct{}, 1)
	p.mu.Unlock()

	end := opts.EndAtStep
	if end <= 0 || end > len(rec.Actions) {
		end = len(rec.Actions)
	}
	start := opts.StartFromStep
	if start < 0 {
		start = 0
	}

	result := PlayResult{TotalActions: end - start}

	for i := start; i < end; i++ {
		p.mu.Lock()
		if p.stopped {
			p.mu.Unlock()
			break
		}
		p.state.CurrentStep = i
		if opts.StepByStep {
			p.state.Paused = true
		}
		paused := p.state.Paused
		resumeCh := p.resumeCh
		p.mu.Unlock()

		if paused || opts.StepByStep {
			select {
			case <-resumeCh:
			case <-ctx.Done():
				p.mu.Lock()
				p.state.Active = false
				p.mu.Unlock()
				return result, ctx.Err()
			}
		}

		action := rec.Actions[i]
		if err := p.executeOne(ctx, exec, action); err != nil {
			result.Errors = append(result.Errors, ActionError{
				Step: i, Selector: action.Selector, Kind: action.Kind, Message: err.Error(),
			})
			if !opts.ContinueOnError {
				break
			}
		}
		result.ExecutedActions++

		if opts.DelayBetweenActions > 0 {
			select {
			case <-time.After(opts.DelayBetweenActions):
			case <-ctx.Done():
				p.mu.Lock()
				p.state.Active = false
				p.mu.Unlock()
				return result, ctx.Err()
			}
		}
	}

	p.mu.Lock()
	p.state.Active = false
	p.mu.Unlock()

	result.Complete = result.ExecutedActions == result.TotalActions
	return result, nil
}

func (p *Player) executeOne(ctx context.Context, exec Executor, action Action) error {
	stepCtx, cancel := context.WithTimeout(ctx, stepSelectorTimeout)
	defer cancel()

	switch action.Kind {
	case ActionNavigation:
		return exec.Goto(stepCtx, action.URL)
	case ActionClick:
		return exec.Click(stepCtx, action.Selector)
	case ActionType:
		return exec.Type(stepCtx, action.Selector, action.Text)
	case ActionSelect:
		return exec.Select(stepCtx, action.Selector, action.Value)
	case ActionWait:
		select {
		case <-time.After(time.Duration(action.Ms) * time.Millisecond):
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	case ActionEval:
		_, err := exec.Eval(stepCtx, action.Code)
		return err
	default:
		return fmt.Errorf("unknown action kind %q", action.Kind)
	}
}
