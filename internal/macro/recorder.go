package macro

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

type activeRecording struct {
	mu        sync.Mutex
	recording Recording
}

// Recorder tracks at most one active recording per session and appends
// actions as tool handlers report them. Non-navigation actions are recorded
// explicitly by the caller on success (RecordClick/RecordType/...); a
// `framenavigated` hook, invoked by the driver adapter's navigation event,
// should call RecordNavigation automatically.
type Recorder struct {
	storage Storage

	mu     sync.Mutex
	active map[string]*activeRecording // sessionID -> recording
}

func NewRecorder(storage Storage) *Recorder {
	return &Recorder{storage: storage, active: make(map[string]*activeRecording)}
}

// StartRecording begins a new recording bound to sessionID; fails if one is
// already active for that session.
func (r *Recorder) StartRecording(sessionID, name, description string, meta Metadata) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.active[sessionID]; exists {
		return "", fmt.Errorf("a recording is already active on session %q", sessionID)
	}

	meta.Description = description
	rec := Recording{
		ID:        uuid.NewString(),
		Name:      name,
		SessionID: sessionID,
		StartTime: time.Now(),
		Metadata:  meta,
	}
	r.active[sessionID] = &activeRecording{recording: rec}
	return rec.ID, nil
}

// IsRecording reports whether sessionID currently has an active recording.
func (r *Recorder) IsRecording(sessionID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.active[sessionID]
	return ok
}

func (r *Recorder) append(sessionID string, action Action) {
	r.mu.Lock()
	ar, ok := r.active[sessionID]
	r.mu.Unlock()
	if !ok {
		return
	}
	ar.mu.Lock()
	ar.recording.Actions = append(ar.recording.Actions, action)
	ar.mu.Unlock()
}

// RecordNavigation appends a navigation action; wired to the driver's
// `framenavigated` event so navigations are captured automatically.
func (r *Recorder) RecordNavigation(sessionID, url string) {
	a := newAction(ActionNavigation)
	a.URL = url
	r.append(sessionID, a)
}

// RecordClick must be called by the click tool handler on success.
func (r *Recorder) RecordClick(sessionID, selector string, point *Point) {
	a := newAction(ActionClick)
	a.Selector = selector
	a.Point = point
	r.append(sessionID, a)
}

// RecordType must be called by the type tool handler on success.
func (r *Recorder) RecordType(sessionID, selector, text string) {
	a := newAction(ActionType)
	a.Selector = selector
	a.Text = text
	r.append(sessionID, a)
}

// RecordSelect must be called by the select tool handler on success.
func (r *Recorder) RecordSelect(sessionID, selector, value string) {
	a := newAction(ActionSelect)
	a.Selector = selector
	a.Value = value
	r.append(sessionID, a)
}

// RecordWait records a wait of ms milliseconds for sessionID. No registered
// tool handler calls it.
func (r *Recorder) RecordWait(sessionID string, ms int64) {
	a := newAction(ActionWait)
	a.Ms = ms
	r.append(sessionID, a)
}

// RecordEval must be called by the eval tool handler on success.
func (r *Recorder) RecordEval(sessionID, code string) {
	a := newAction(ActionEval)
	a.Code = code
	r.append(sessionID, a)
}

// StopRecording finalises the end timestamp, persists via Storage, and
// clears the active slot for sessionID.
func (r *Recorder) StopRecording(sessionID string) (*Recording, error) {
	r.mu.Lock()
	ar, ok := r.active[sessionID]
	if ok {
		delete(r.active, sessionID)
	}
	r.mu.Unlock()

	if !ok {
		return nil, fmt.Errorf("no active recording on session %q", sessionID)
	}

	ar.mu.Lock()
	ar.recording.EndTime = time.Now()
	final := ar.recording
	ar.mu.Unlock()

	if err := r.storage.Save(final); err != nil {
		return nil, fmt.Errorf("save recording: %w", err)
	}
	return &final, nil
}
