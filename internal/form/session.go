package form

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/pitabwire/cmsadmin/internal/schema"
	"github.com/pitabwire/cmsadmin/internal/store"
	"github.com/pitabwire/cmsadmin/model"
)

// Status is the lifecycle state of a form session.
type Status string

// Session statuses.
const (
	StatusEmpty        Status = "empty"
	StatusLoading      Status = "loading"
	StatusReady        Status = "ready"
	StatusNotFound     Status = "not_found"
	StatusEditing      Status = "editing"
	StatusSubmitting   Status = "submitting"
	StatusSaved        Status = "saved"
	StatusSubmitFailed Status = "submit_failed"
)

// MsgSaveFailed is shown when the store rejects a save.
const MsgSaveFailed = "Unexpected error saving the collection."

// Store is the subset of store.CollectionStore a session needs.
type Store interface {
	Get(ctx context.Context, id string) (store.Document, error)
	Set(ctx context.Context, id string, data map[string]any) error
}

// View is a point-in-time copy of a session.
type View struct {
	SessionID    string               `json:"sessionId"`
	Status       Status               `json:"status"`
	CollectionID string               `json:"collectionId,omitempty"`
	IsNew        bool                 `json:"isNew"`
	Dirty        bool                 `json:"dirty"`
	Message      string               `json:"message,omitempty"`
	Error        *model.ErrorEnvelope `json:"error,omitempty"`
	State        model.FormState      `json:"state"`
}

// Session drives one collection form through load, edit and submit.
//
//	empty → loading → ready | not_found → editing → submitting → saved | submit_failed
//
// saved and submit_failed return to editing on the next change.
type Session struct {
	mu sync.Mutex

	id     string
	codec  *Codec
	store  Store
	status Status

	// persistedID is the id the baseline was loaded from or saved under;
	// empty while the collection does not exist yet.
	persistedID string
	baseStatus  Status

	state    model.FormState
	baseline model.FormState
	message  string
	err      *model.ErrorEnvelope
}

// NewSession creates a session holding an empty form.
func NewSession(id string, codec *Codec, st Store) *Session {
	empty := codec.EmptyFormState()
	return &Session{
		id:         id,
		codec:      codec,
		store:      st,
		status:     StatusEmpty,
		baseStatus: StatusEmpty,
		state:      empty,
		baseline:   empty.Clone(),
	}
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// Load fetches collectionID and moves to ready, or to not_found with the
// id pre-filled. Store failures other than NOT_FOUND return the session to
// empty and are returned.
func (s *Session) Load(ctx context.Context, collectionID string) (View, error) {
	s.mu.Lock()
	if s.status != StatusEmpty {
		defer s.mu.Unlock()
		return s.viewLocked(), s.invalid("load")
	}
	s.status = StatusLoading
	s.mu.Unlock()

	doc, err := s.store.Get(ctx, collectionID)

	s.mu.Lock()
	defer s.mu.Unlock()

	var cfg model.CollectionConfig
	found := err == nil
	if found {
		cfg, found = schema.DecodeConfig(doc.Data)
	}
	switch {
	case err != nil && !model.IsCode(err, model.ErrNotFound):
		s.status = StatusEmpty
		return s.viewLocked(), fmt.Errorf("load collection %q: %w", collectionID, err)
	case !found:
		// Missing and unreadable documents are both offered as new.
		state := s.codec.EmptyFormState()
		state.CollectionID = collectionID
		s.setBaselineLocked(s.codec.Sanitize(state), StatusNotFound)
		s.message = fmt.Sprintf("Collection %q was not found. Create it now or choose another identifier.", collectionID)
	default:
		if cfg.ID == "" {
			cfg.ID = collectionID
		}
		s.setBaselineLocked(s.codec.Sanitize(s.codec.ToFormState(cfg)), StatusReady)
		s.persistedID = collectionID
		s.message = ""
	}
	return s.viewLocked(), nil
}

// Apply changes one field; see Codec.ApplyFieldChange.
func (s *Session) Apply(field string, value any) (View, error) {
	return s.edit(func(st model.FormState) (model.FormState, error) {
		return s.codec.ApplyFieldChange(st, field, value)
	})
}

// AddProperty appends a blank property.
func (s *Session) AddProperty() (View, error) {
	return s.edit(func(st model.FormState) (model.FormState, error) {
		return s.codec.AddProperty(st), nil
	})
}

// RemoveProperty removes the property at index.
func (s *Session) RemoveProperty(index int) (View, error) {
	return s.edit(func(st model.FormState) (model.FormState, error) {
		return s.codec.RemoveProperty(st, index)
	})
}

// TogglePermission flips one permission flag.
func (s *Session) TogglePermission(name string) (View, error) {
	return s.edit(func(st model.FormState) (model.FormState, error) {
		return s.codec.TogglePermission(st, name)
	})
}

// Replace swaps in a whole form state, as when a client pushes its local
// copy.
func (s *Session) Replace(state model.FormState) (View, error) {
	return s.edit(func(model.FormState) (model.FormState, error) {
		return state.Clone(), nil
	})
}

func (s *Session) edit(fn func(model.FormState) (model.FormState, error)) (View, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status == StatusLoading || s.status == StatusSubmitting {
		return s.viewLocked(), s.invalid("edit")
	}
	next, err := fn(s.state)
	if err != nil {
		return s.viewLocked(), err
	}
	s.state = next
	s.status = StatusEditing
	s.err = nil
	s.message = ""
	return s.viewLocked(), nil
}

// Submit sanitizes, validates and saves the form. Validation and store
// failures move the session to submit_failed and are returned; the
// unsaved edits are kept.
func (s *Session) Submit(ctx context.Context) (View, error) {
	s.mu.Lock()
	if s.status == StatusLoading || s.status == StatusSubmitting {
		defer s.mu.Unlock()
		return s.viewLocked(), s.invalid("submit")
	}
	sanitized := s.codec.Sanitize(s.state)
	if err := Validate(sanitized); err != nil {
		defer s.mu.Unlock()
		envelope, _ := err.(*model.ErrorEnvelope)
		s.failLocked(envelope, envelope.Message)
		return s.viewLocked(), err
	}
	s.status = StatusSubmitting
	s.mu.Unlock()

	payload := s.codec.ToConfigPayload(sanitized)
	doc, err := payload.Document()
	if err == nil {
		err = s.store.Set(ctx, payload.ID, doc)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err != nil {
		s.failLocked(model.NewInternalError(), MsgSaveFailed)
		return s.viewLocked(), fmt.Errorf("save collection %q: %w", payload.ID, err)
	}

	verb := "updated"
	if s.persistedID != payload.ID {
		verb = "created"
	}
	s.setBaselineLocked(sanitized, StatusSaved)
	s.persistedID = payload.ID
	s.message = fmt.Sprintf("Collection %q %s successfully.", payload.Name, verb)
	return s.viewLocked(), nil
}

// Reset discards unsaved edits.
func (s *Session) Reset() (View, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status == StatusLoading || s.status == StatusSubmitting {
		return s.viewLocked(), s.invalid("reset")
	}
	s.state = s.baseline.Clone()
	s.status = s.baseStatus
	s.err = nil
	return s.viewLocked(), nil
}

// View returns the current session view.
func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewLocked()
}

// Dirty reports whether the form differs from its baseline after
// sanitizing both.
func (s *Session) Dirty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dirtyLocked()
}

func (s *Session) dirtyLocked() bool {
	return !Equal(s.codec.Sanitize(s.state), s.codec.Sanitize(s.baseline))
}

// Equal compares two form states field by field. Form-local property ids
// are ignored and nil equals empty.
func Equal(a, b model.FormState) bool {
	return cmp.Equal(a, b,
		cmpopts.IgnoreFields(model.PropertyFormState{}, "ID"),
		cmpopts.EquateEmpty(),
	)
}

func (s *Session) setBaselineLocked(state model.FormState, status Status) {
	s.state = state
	s.baseline = state.Clone()
	s.status = status
	s.baseStatus = status
	s.err = nil
}

func (s *Session) failLocked(envelope *model.ErrorEnvelope, msg string) {
	s.status = StatusSubmitFailed
	s.err = envelope
	s.message = msg
}

func (s *Session) invalid(op string) error {
	return model.NewInvalidTransitionError(fmt.Sprintf("cannot %s while the form is %s", op, s.status))
}

func (s *Session) viewLocked() View {
	return View{
		SessionID:    s.id,
		Status:       s.status,
		CollectionID: s.persistedID,
		IsNew:        s.persistedID == "",
		Dirty:        s.dirtyLocked(),
		Message:      s.message,
		Error:        s.err,
		State:        s.state.Clone(),
	}
}
