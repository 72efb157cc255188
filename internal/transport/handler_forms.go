package transport

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/pitabwire/cmsadmin/internal/form"
	"github.com/pitabwire/cmsadmin/internal/observability"
	"github.com/pitabwire/cmsadmin/model"
)

const maxFormBody = 1 << 20

// Change actions accepted by the changes endpoint.
const (
	actionSet              = "set"
	actionAddProperty      = "add_property"
	actionRemoveProperty   = "remove_property"
	actionTogglePermission = "toggle_permission"
	actionReplace          = "replace"
)

type openSessionRequest struct {
	CollectionID string `json:"collectionId"`
}

type changeRequest struct {
	Action string          `json:"action"`
	Field  string          `json:"field"`
	Value  json.RawMessage `json:"value"`
}

// decodeOptionalJSON decodes body into v; an empty body leaves v unchanged.
func decodeOptionalJSON(w http.ResponseWriter, r *http.Request, v any) error {
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxFormBody)).Decode(v)
	if err == nil || errors.Is(err, io.EOF) {
		return nil
	}
	return model.NewBadRequestError("invalid JSON body")
}

func sessionOwner(r *http.Request) string {
	return model.SubjectFrom(r.Context())
}

func handleOpenSession(sessions *form.Sessions, rec Recorder, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body openSessionRequest
		if err := decodeOptionalJSON(w, r, &body); err != nil {
			WriteError(w, err)
			return
		}

		owner := sessionOwner(r)
		s := sessions.Open(owner)
		view := s.View()
		if body.CollectionID != "" {
			ctx, span := observability.StartSpan(r.Context(), "form.load",
				observability.AttrSessionID.String(s.ID()),
				observability.AttrCollectionID.String(body.CollectionID),
			)
			var err error
			view, err = s.Load(ctx, body.CollectionID)
			observability.EndSpanWithError(span, err)
			if err != nil {
				sessions.Close(s.ID(), owner)
				observability.LoggerFrom(ctx, logger).Error("loading collection into form failed",
					zap.String("collection_id", body.CollectionID),
					zap.Error(err),
				)
				WriteError(w, model.NewBackendUnavailableError(""))
				return
			}
		}
		rec.SetFormSessionsOpen(sessions.Len())
		WriteJSON(w, http.StatusCreated, view)
	}
}

// withSession resolves the {sessionId} URL parameter to a session owned by
// the caller.
func withSession(sessions *form.Sessions, fn func(w http.ResponseWriter, r *http.Request, s *form.Session)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, err := sessions.Get(chi.URLParam(r, "sessionId"), sessionOwner(r))
		if err != nil {
			WriteError(w, err)
			return
		}
		fn(w, r, s)
	}
}

func handleGetSession(sessions *form.Sessions) http.HandlerFunc {
	return withSession(sessions, func(w http.ResponseWriter, _ *http.Request, s *form.Session) {
		WriteJSON(w, http.StatusOK, s.View())
	})
}

func handleSessionChange(sessions *form.Sessions) http.HandlerFunc {
	return withSession(sessions, func(w http.ResponseWriter, r *http.Request, s *form.Session) {
		var req changeRequest
		if err := decodeOptionalJSON(w, r, &req); err != nil {
			WriteError(w, err)
			return
		}
		view, err := applyChange(s, req)
		if err != nil {
			WriteError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, view)
	})
}

func applyChange(s *form.Session, req changeRequest) (form.View, error) {
	switch req.Action {
	case actionSet:
		var value any
		if err := unmarshalValue(req.Value, &value); err != nil {
			return form.View{}, err
		}
		return s.Apply(req.Field, value)
	case actionAddProperty:
		return s.AddProperty()
	case actionRemoveProperty:
		var index int
		if err := unmarshalValue(req.Value, &index); err != nil {
			return form.View{}, err
		}
		return s.RemoveProperty(index)
	case actionTogglePermission:
		return s.TogglePermission(req.Field)
	case actionReplace:
		var state model.FormState
		if err := unmarshalValue(req.Value, &state); err != nil {
			return form.View{}, err
		}
		return s.Replace(state)
	default:
		return form.View{}, model.NewBadRequestError(fmt.Sprintf("unknown action %q", req.Action))
	}
}

func unmarshalValue(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return model.NewBadRequestError("value is required")
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return model.NewBadRequestError(fmt.Sprintf("invalid value: %v", err))
	}
	return nil
}

func handleSubmitSession(sessions *form.Sessions, rec Recorder, logger *zap.Logger) http.HandlerFunc {
	return withSession(sessions, func(w http.ResponseWriter, r *http.Request, s *form.Session) {
		mode := "update"
		if s.View().IsNew {
			mode = "create"
		}

		ctx, span := observability.StartSpan(r.Context(), "form.submit",
			observability.AttrSessionID.String(s.ID()),
			observability.AttrSubjectID.String(model.SubjectFrom(r.Context())),
		)
		view, err := s.Submit(ctx)
		observability.EndSpanWithError(span, err)

		var ee *model.ErrorEnvelope
		switch {
		case err == nil:
			rec.RecordFormSubmission(mode, nil)
			observability.LoggerFrom(ctx, logger).Info("collection saved",
				zap.String("collection_id", view.CollectionID),
				zap.String("mode", mode),
			)
			WriteJSON(w, http.StatusOK, view)
		case errors.As(err, &ee) && ee.Code == model.ErrValidationError:
			for _, d := range ee.Details {
				rec.RecordFormValidationFailure(d.Code)
			}
			WriteError(w, ee)
		case errors.As(err, &ee):
			WriteError(w, ee)
		default:
			rec.RecordFormSubmission(mode, err)
			observability.LoggerFrom(ctx, logger).Error("saving collection failed", zap.Error(err))
			WriteError(w, &model.ErrorEnvelope{Code: model.ErrInternalError, Message: form.MsgSaveFailed})
		}
	})
}

func handleResetSession(sessions *form.Sessions) http.HandlerFunc {
	return withSession(sessions, func(w http.ResponseWriter, _ *http.Request, s *form.Session) {
		view, err := s.Reset()
		if err != nil {
			WriteError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, view)
	})
}

func handleCloseSession(sessions *form.Sessions, rec Recorder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessions.Close(chi.URLParam(r, "sessionId"), sessionOwner(r))
		rec.SetFormSessionsOpen(sessions.Len())
		w.WriteHeader(http.StatusNoContent)
	}
}
