package form

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pitabwire/cmsadmin/internal/store"
	"github.com/pitabwire/cmsadmin/model"
)

type brokenStore struct {
	getErr error
	setErr error
	*store.MemoryStore
}

func (b *brokenStore) Get(ctx context.Context, id string) (store.Document, error) {
	if b.getErr != nil {
		return store.Document{}, b.getErr
	}
	return b.MemoryStore.Get(ctx, id)
}

func (b *brokenStore) Set(ctx context.Context, id string, data map[string]any) error {
	if b.setErr != nil {
		return b.setErr
	}
	return b.MemoryStore.Set(ctx, id, data)
}

func seededStore(t *testing.T) *store.MemoryStore {
	t.Helper()
	st := store.NewMemoryStore()
	err := st.Set(context.Background(), "loc", map[string]any{
		"id":   "loc",
		"name": "Locations",
		"path": "locations",
		"properties": []any{
			map[string]any{"key": "title", "dataType": "string"},
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	return st
}

func TestSession_loadEditSubmitExisting(t *testing.T) {
	st := seededStore(t)
	s := NewSession("s1", testCodec(), st)
	ctx := context.Background()

	v, err := s.Load(ctx, "loc")
	if err != nil {
		t.Fatal(err)
	}
	if v.Status != StatusReady || v.IsNew || v.Dirty {
		t.Fatalf("after load: status=%s isNew=%v dirty=%v", v.Status, v.IsNew, v.Dirty)
	}
	if v.State.Name != "Locations" || v.State.CollectionID != "loc" {
		t.Errorf("loaded state = %q/%q", v.State.CollectionID, v.State.Name)
	}

	v, err = s.Apply("name", "Places")
	if err != nil {
		t.Fatal(err)
	}
	if v.Status != StatusEditing || !v.Dirty {
		t.Errorf("after edit: status=%s dirty=%v", v.Status, v.Dirty)
	}

	v, err = s.Submit(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if v.Status != StatusSaved || v.Dirty {
		t.Errorf("after submit: status=%s dirty=%v", v.Status, v.Dirty)
	}
	if want := `Collection "Places" updated successfully.`; v.Message != want {
		t.Errorf("Message = %q, want %q", v.Message, want)
	}

	doc, err := st.Get(ctx, "loc")
	if err != nil {
		t.Fatal(err)
	}
	if doc.Data["name"] != "Places" {
		t.Errorf("stored name = %v, want Places", doc.Data["name"])
	}
}

func TestSession_createMissing(t *testing.T) {
	st := store.NewMemoryStore()
	s := NewSession("s1", testCodec(), st)
	ctx := context.Background()

	v, err := s.Load(ctx, "products")
	if err != nil {
		t.Fatal(err)
	}
	if v.Status != StatusNotFound || !v.IsNew {
		t.Fatalf("status=%s isNew=%v, want not_found and new", v.Status, v.IsNew)
	}
	if v.State.CollectionID != "products" {
		t.Errorf("CollectionID = %q, want pre-filled products", v.State.CollectionID)
	}
	if want := `Collection "products" was not found. Create it now or choose another identifier.`; v.Message != want {
		t.Errorf("Message = %q, want %q", v.Message, want)
	}

	for field, value := range map[string]any{
		"name":             "Products",
		"path":             "products",
		"properties.0.key": "title",
	} {
		if _, err := s.Apply(field, value); err != nil {
			t.Fatalf("Apply(%s): %v", field, err)
		}
	}

	v, err = s.Submit(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if want := `Collection "Products" created successfully.`; v.Message != want {
		t.Errorf("Message = %q, want %q", v.Message, want)
	}
	if v.IsNew || v.CollectionID != "products" {
		t.Errorf("after create: isNew=%v collectionId=%q", v.IsNew, v.CollectionID)
	}

	if _, err := s.Apply("description", "All products"); err != nil {
		t.Fatal(err)
	}
	v, err = s.Submit(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if want := `Collection "Products" updated successfully.`; v.Message != want {
		t.Errorf("second submit Message = %q, want %q", v.Message, want)
	}
}

func TestSession_submitValidationFailure(t *testing.T) {
	s := NewSession("s1", testCodec(), store.NewMemoryStore())

	v, err := s.Submit(context.Background())
	if !model.IsCode(err, model.ErrValidationError) {
		t.Fatalf("Submit() error = %v, want VALIDATION_ERROR", err)
	}
	if v.Status != StatusSubmitFailed {
		t.Errorf("Status = %s, want submit_failed", v.Status)
	}
	if v.Message != "Collection ID is required." {
		t.Errorf("Message = %q", v.Message)
	}
	if v.Error == nil || v.Error.Details[0].Code != RuleCollectionIDRequired {
		t.Errorf("Error = %+v", v.Error)
	}

	v, err = s.Apply("collectionId", "products")
	if err != nil {
		t.Fatal(err)
	}
	if v.Status != StatusEditing || v.Error != nil {
		t.Errorf("after edit: status=%s error=%v", v.Status, v.Error)
	}
}

func TestSession_submitStoreFailureKeepsEdits(t *testing.T) {
	st := &brokenStore{MemoryStore: seededStore(t)}
	s := NewSession("s1", testCodec(), st)
	ctx := context.Background()
	if _, err := s.Load(ctx, "loc"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Apply("name", "Places"); err != nil {
		t.Fatal(err)
	}

	st.setErr = errors.New("connection reset")
	v, err := s.Submit(ctx)
	if err == nil {
		t.Fatal("Submit() = nil, want error")
	}
	if v.Status != StatusSubmitFailed || v.Message != MsgSaveFailed {
		t.Errorf("status=%s message=%q", v.Status, v.Message)
	}
	if v.State.Name != "Places" || !v.Dirty {
		t.Errorf("edits lost: name=%q dirty=%v", v.State.Name, v.Dirty)
	}

	st.setErr = nil
	v, err = s.Submit(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if v.Status != StatusSaved {
		t.Errorf("retry Status = %s, want saved", v.Status)
	}
}

func TestSession_loadBackendFailure(t *testing.T) {
	st := &brokenStore{MemoryStore: store.NewMemoryStore(), getErr: model.NewBackendUnavailableError("")}
	s := NewSession("s1", testCodec(), st)

	v, err := s.Load(context.Background(), "loc")
	if !model.IsCode(err, model.ErrBackendUnavailable) {
		t.Fatalf("Load() error = %v, want BACKEND_UNAVAILABLE", err)
	}
	if v.Status != StatusEmpty {
		t.Errorf("Status = %s, want empty", v.Status)
	}

	st.getErr = nil
	if _, err := s.Load(context.Background(), "loc"); err != nil {
		t.Errorf("retry Load() = %v", err)
	}
}

func TestSession_invalidTransitions(t *testing.T) {
	s := NewSession("s1", testCodec(), seededStore(t))
	if _, err := s.Load(context.Background(), "loc"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Load(context.Background(), "loc"); !model.IsCode(err, model.ErrInvalidTransition) {
		t.Errorf("second Load() error = %v, want INVALID_TRANSITION", err)
	}
}

func TestSession_reset(t *testing.T) {
	s := NewSession("s1", testCodec(), seededStore(t))
	if _, err := s.Load(context.Background(), "loc"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.AddProperty(); err != nil {
		t.Fatal(err)
	}
	if _, err := s.TogglePermission("delete"); err != nil {
		t.Fatal(err)
	}
	if !s.Dirty() {
		t.Fatal("Dirty() = false after edits")
	}

	v, err := s.Reset()
	if err != nil {
		t.Fatal(err)
	}
	if v.Status != StatusReady || v.Dirty || len(v.State.Properties) != 1 || v.State.Permissions.Delete {
		t.Errorf("after reset: status=%s dirty=%v props=%d", v.Status, v.Dirty, len(v.State.Properties))
	}
}

// Edits that sanitize away, such as trailing spaces, do not make the form
// dirty.
func TestSession_dirtyIgnoresWhitespace(t *testing.T) {
	s := NewSession("s1", testCodec(), seededStore(t))
	if _, err := s.Load(context.Background(), "loc"); err != nil {
		t.Fatal(err)
	}
	v, err := s.Apply("name", "Locations  ")
	if err != nil {
		t.Fatal(err)
	}
	if v.Dirty {
		t.Error("Dirty = true for a whitespace-only change")
	}
}

func TestSession_replace(t *testing.T) {
	c := testCodec()
	s := NewSession("s1", c, store.NewMemoryStore())
	state := baseState(model.PropertyFormState{Key: "title", DataType: "string"})

	v, err := s.Replace(state)
	if err != nil {
		t.Fatal(err)
	}
	if v.State.CollectionID != "products" || v.Status != StatusEditing {
		t.Errorf("after replace: id=%q status=%s", v.State.CollectionID, v.Status)
	}
	state.Properties[0].Key = "mutated"
	if s.View().State.Properties[0].Key != "title" {
		t.Error("Replace kept a reference to the caller's state")
	}
}

func TestSessions_ownership(t *testing.T) {
	reg := NewSessions(testCodec(), store.NewMemoryStore(), time.Minute)

	s := reg.Open("alice")
	if got, err := reg.Get(s.ID(), "alice"); err != nil || got != s {
		t.Fatalf("Get(owner) = %v, %v", got, err)
	}
	if _, err := reg.Get(s.ID(), "bob"); !model.IsCode(err, model.ErrNotFound) {
		t.Errorf("Get(other) error = %v, want NOT_FOUND", err)
	}
	if _, err := reg.Get("missing", "alice"); !model.IsCode(err, model.ErrNotFound) {
		t.Errorf("Get(missing) error = %v, want NOT_FOUND", err)
	}

	reg.Close(s.ID(), "bob")
	if reg.Len() != 1 {
		t.Errorf("Close by non-owner removed the session")
	}
	reg.Close(s.ID(), "alice")
	if reg.Len() != 0 {
		t.Errorf("Len() = %d after Close, want 0", reg.Len())
	}
}

func TestSessions_defaultTTL(t *testing.T) {
	reg := NewSessions(testCodec(), store.NewMemoryStore(), 0)
	if reg.ttl != defaultSessionTTL {
		t.Errorf("ttl = %v, want %v", reg.ttl, defaultSessionTTL)
	}
	if reg.Codec() == nil {
		t.Error("Codec() = nil")
	}
}
