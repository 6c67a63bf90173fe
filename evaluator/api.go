package main

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/arena-labs/arena-go/internal/evaluation"
)

type evaluatorAPI struct {
	logger *slog.Logger
	pub    evaluation.Publisher
	svc    *evaluation.Service
}

func newEvaluatorAPI(logger *slog.Logger, pub evaluation.Publisher, svc *evaluation.Service) *evaluatorAPI {
	return &evaluatorAPI{
		logger: logger,
		pub:    pub,
		svc:    svc,
	}
}

func (api *evaluatorAPI) register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/submissions/{submission_id}/evaluate", api.handleEvaluate)
	mux.HandleFunc("POST /api/v1/callbacks", api.handleCallback)
	mux.HandleFunc("POST /api/v1/phases/{phase_id}/rerun", api.handleReRunPhase)
}

type evaluateRequestBody struct {
	IsScoringOnly bool `json:"is_scoring_only"`
}

// handleEvaluate enqueues an evaluation; the queue consumer does the actual
// dispatch so the web tier never waits on manifest and artifact writes.
func (api *evaluatorAPI) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	submissionID := strings.TrimSpace(r.PathValue("submission_id"))
	if submissionID == "" {
		api.writeError(w, r, http.StatusBadRequest, "submission_id_required")
		return
	}

	var body evaluateRequestBody
	if r.ContentLength > 0 {
		if err := decodeJSON(r, &body); err != nil {
			api.writeError(w, r, http.StatusBadRequest, "invalid_json")
			return
		}
	}

	req := evaluation.EvaluateRequest{
		SubmissionID:  submissionID,
		IsScoringOnly: body.IsScoringOnly,
	}
	if err := api.pub.Publish(r.Context(), evaluation.QueueSiteWorker, "", req); err != nil {
		api.logger.Error("enqueue evaluate", "submission_id", submissionID, "error", err)
		api.writeError(w, r, http.StatusInternalServerError, "internal_error")
		return
	}
	api.writeJSON(w, http.StatusAccepted, map[string]any{
		"submission_id": submissionID,
		"status":        "queued",
	})
}

// handleCallback accepts a worker status report over HTTP and enqueues it on
// the submission-updates queue, the same path queue-native callbacks take.
func (api *evaluatorAPI) handleCallback(w http.ResponseWriter, r *http.Request) {
	var cb evaluation.Callback
	if err := decodeJSON(r, &cb); err != nil {
		api.writeError(w, r, http.StatusBadRequest, "invalid_json")
		return
	}
	if strings.TrimSpace(cb.JobID) == "" {
		api.writeError(w, r, http.StatusBadRequest, "job_id_required")
		return
	}
	if strings.TrimSpace(cb.Secret) == "" {
		api.writeError(w, r, http.StatusUnauthorized, "secret_required")
		return
	}

	if err := api.pub.Publish(r.Context(), evaluation.QueueSubmissionUpdates, "", cb); err != nil {
		api.logger.Error("enqueue callback", "job_id", cb.JobID, "error", err)
		api.writeError(w, r, http.StatusInternalServerError, "internal_error")
		return
	}
	api.writeJSON(w, http.StatusAccepted, map[string]any{
		"job_id": cb.JobID,
		"status": "queued",
	})
}

func (api *evaluatorAPI) handleReRunPhase(w http.ResponseWriter, r *http.Request) {
	phaseID := strings.TrimSpace(r.PathValue("phase_id"))
	if phaseID == "" {
		api.writeError(w, r, http.StatusBadRequest, "phase_id_required")
		return
	}

	enqueued, err := api.svc.ReRunPhaseSubmissions(r.Context(), phaseID)
	if err != nil {
		api.logger.Error("re-run phase", "phase_id", phaseID, "error", err)
		api.writeError(w, r, http.StatusInternalServerError, "internal_error")
		return
	}
	api.writeJSON(w, http.StatusOK, map[string]any{
		"phase_id": phaseID,
		"enqueued": enqueued,
	})
}

func (api *evaluatorAPI) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(true)
	_ = enc.Encode(body)
}

func (api *evaluatorAPI) writeError(w http.ResponseWriter, r *http.Request, status int, code string) {
	api.writeJSON(w, status, map[string]any{
		"error":      code,
		"request_id": r.Header.Get("X-Request-Id"),
	})
}

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return err
	}
	if err := dec.Decode(&struct{}{}); err == nil {
		return errors.New("multiple JSON values")
	}
	return nil
}
