// Package conversation holds the per-user draft state collected across the
// multi-step time-entry and registration dialogues. A draft lives only in
// memory and is discarded on completion or cancellation; nothing here touches
// the database.
package conversation

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// State identifies the dialogue step a draft is waiting on.
type State int

const (
	// StateAuthKey waits for the user to send their Redmine API key.
	StateAuthKey State = iota + 1
	// StateSpentOn waits for a date selection from the picker.
	StateSpentOn
	// StateIssue waits for an issue selection from the candidate list.
	StateIssue
	// StateComments waits for a free-text comment.
	StateComments
	// StateHours accumulates hour increments until Done.
	StateHours
)

// DateLayout is the format used for spent-on dates in drafts and callbacks.
const DateLayout = "2006-01-02"

// HourIncrements is the fixed set of hour values offered on the keyboard.
var HourIncrements = []float64{0.1, 0.5, 1, 2, 4, 8}

var (
	// ErrNoDraft is returned when an event arrives for a user without an
	// active draft.
	ErrNoDraft = errors.New("no active draft")
	// ErrBadState is returned when an event is not legal in the draft's
	// current state.
	ErrBadState = errors.New("input not valid for current state")
	// ErrUnknownIssue is returned when an issue selection is not in the
	// candidate set.
	ErrUnknownIssue = errors.New("issue not in candidate set")
)

// Candidate is an issue offered for selection, with its cached display name.
type Candidate struct {
	ID   int64
	Name string
}

// Draft is the state accumulated across one dialogue. Only the fields legal
// for the current state are set: Candidates exists only in StateIssue,
// IssueID/IssueName from StateComments on, Hours only in StateHours.
type Draft struct {
	UserID          int64
	ChatID          int64
	PromptMessageID int

	State      State
	SpentOn    string
	Candidates []Candidate
	IssueID    int64
	IssueName  string
	Comments   string
	Hours      float64
}

// ChooseSpentOn records the selected date and the issue candidates to offer
// next, moving the draft to StateIssue.
func (d *Draft) ChooseSpentOn(date string, candidates []Candidate) error {
	if d.State != StateSpentOn {
		return ErrBadState
	}
	if _, err := time.Parse(DateLayout, date); err != nil {
		return fmt.Errorf("invalid date %q: %w", date, err)
	}

	d.SpentOn = date
	d.Candidates = candidates
	d.State = StateIssue
	return nil
}

// ChooseIssue records the selected issue and drops the candidate list, moving
// the draft to StateComments.
func (d *Draft) ChooseIssue(issueID int64) error {
	if d.State != StateIssue {
		return ErrBadState
	}

	for _, c := range d.Candidates {
		if c.ID == issueID {
			d.IssueID = c.ID
			d.IssueName = c.Name
			d.Candidates = nil
			d.State = StateComments
			return nil
		}
	}
	return ErrUnknownIssue
}

// SetComments records the comment text, moving the draft to StateHours with
// zero accumulated hours.
func (d *Draft) SetComments(text string) error {
	if d.State != StateComments {
		return ErrBadState
	}

	d.Comments = text
	d.Hours = 0
	d.State = StateHours
	return nil
}

// AddHours accumulates one increment tap.
func (d *Draft) AddHours(increment float64) error {
	if d.State != StateHours {
		return ErrBadState
	}
	if increment <= 0 {
		return fmt.Errorf("hour increment must be positive, got %v", increment)
	}

	d.Hours += increment
	return nil
}

// ResetHours clears the accumulated hours back to zero.
func (d *Draft) ResetHours() error {
	if d.State != StateHours {
		return ErrBadState
	}

	d.Hours = 0
	return nil
}

// ReadyToCommit reports whether the draft holds a complete entry.
func (d *Draft) ReadyToCommit() bool {
	return d.State == StateHours && d.Hours > 0
}

// Manager keys drafts by user id and serializes access to them. Each user has
// at most one active draft; starting a new dialogue replaces any previous one.
type Manager struct {
	mu     sync.Mutex
	drafts map[int64]*Draft
}

// NewManager creates an empty draft manager.
func NewManager() *Manager {
	return &Manager{drafts: make(map[int64]*Draft)}
}

// Begin creates a fresh draft for the user in the given initial state,
// replacing any draft already in progress.
func (m *Manager) Begin(userID, chatID int64, state State) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.drafts[userID] = &Draft{
		UserID: userID,
		ChatID: chatID,
		State:  state,
	}
}

// Update runs fn against the user's draft while holding the manager lock.
// It returns ErrNoDraft when the user has no dialogue in progress.
func (m *Manager) Update(userID int64, fn func(*Draft) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	d, ok := m.drafts[userID]
	if !ok {
		return ErrNoDraft
	}
	return fn(d)
}

// Peek returns a copy of the user's draft, if any.
func (m *Manager) Peek(userID int64) (Draft, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	d, ok := m.drafts[userID]
	if !ok {
		return Draft{}, false
	}
	return *d, true
}

// Clear discards the user's draft.
func (m *Manager) Clear(userID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.drafts, userID)
}
