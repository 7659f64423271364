package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"server/internal/domain"
)

type jobPayload struct {
	ID             string          `json:"id"`
	ContentID      string          `json:"contentId"`
	Type           domain.JobType  `json:"type"`
	Status         domain.JobStatus `json:"status"`
	Progress       int             `json:"progress"`
	TotalItems     int             `json:"totalItems"`
	CompletedItems int             `json:"completedItems"`
	CurrentStep    string          `json:"currentStep,omitempty"`
	ErrorMessage   string          `json:"errorMessage,omitempty"`
	ErrorCode      string          `json:"errorCode,omitempty"`
	ErrorDetails   json.RawMessage `json:"errorDetails,omitempty"`
	Metadata       json.RawMessage `json:"metadata,omitempty"`
	CreatedAt      time.Time       `json:"createdAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`
}

func jobToPayload(j *domain.GenerationJob) jobPayload {
	return jobPayload{
		ID:             j.ID,
		ContentID:      j.ContentID,
		Type:           j.Type,
		Status:         j.Status,
		Progress:       j.Progress,
		TotalItems:     j.TotalItems,
		CompletedItems: j.CompletedItems,
		CurrentStep:    j.CurrentStep,
		ErrorMessage:   j.ErrorMessage,
		ErrorCode:      j.ErrorCode,
		ErrorDetails:   json.RawMessage(j.ErrorDetails),
		Metadata:       json.RawMessage(j.Metadata),
		CreatedAt:      j.CreatedAt,
		UpdatedAt:      j.UpdatedAt,
	}
}

func jobsToPayload(jobs []domain.GenerationJob) []jobPayload {
	out := make([]jobPayload, len(jobs))
	for i := range jobs {
		out[i] = jobToPayload(&jobs[i])
	}
	return out
}

type createJobRequest struct {
	ContentID  string         `json:"contentId"`
	Type       string         `json:"type"`
	TotalItems int            `json:"totalItems"`
	Metadata   map[string]any `json:"metadata"`
}

// JobsCreate registers a new unit of generation work in pending state.
func (a *App) JobsCreate(w http.ResponseWriter, r *http.Request) {
	var req createJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	if req.ContentID == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "contentId required")
		return
	}
	// Video jobs carry budget checks and are only created through the video
	// generation endpoint.
	jobType := domain.JobType(req.Type)
	switch jobType {
	case domain.JobTypeSingle, domain.JobTypeCarousel, domain.JobTypeComposite:
	default:
		a.error(w, http.StatusBadRequest, "bad_request", "type must be single, carousel or composite")
		return
	}
	totalItems := req.TotalItems
	if totalItems <= 0 {
		totalItems = 1
	}

	job := &domain.GenerationJob{
		ID:         uuid.NewString(),
		ContentID:  req.ContentID,
		Type:       jobType,
		Status:     domain.JobStatusPending,
		TotalItems: totalItems,
	}
	if len(req.Metadata) > 0 {
		meta, err := json.Marshal(req.Metadata)
		if err != nil {
			a.error(w, http.StatusBadRequest, "bad_request", "invalid metadata")
			return
		}
		job.Metadata = meta
	}
	if err := a.Jobs.Create(r.Context(), job); err != nil {
		a.domainError(w, err)
		return
	}
	a.json(w, http.StatusCreated, jobToPayload(job))
}

// JobsGet returns a single job by id.
func (a *App) JobsGet(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "job_id")
	job, err := a.Jobs.GetByID(r.Context(), jobID)
	if err != nil {
		a.domainError(w, err)
		return
	}
	a.json(w, http.StatusOK, jobToPayload(job))
}

// JobsActive returns all pending/generating jobs across every content item.
// Polling clients use this to fan out without per-item requests.
func (a *App) JobsActive(w http.ResponseWriter, r *http.Request) {
	jobs, err := a.Jobs.ListActive(r.Context())
	if err != nil {
		a.domainError(w, err)
		return
	}
	a.json(w, http.StatusOK, map[string]any{"jobs": jobsToPayload(jobs)})
}

type updateJobRequest struct {
	Status         *string        `json:"status"`
	Progress       *int           `json:"progress"`
	CompletedItems *int           `json:"completedItems"`
	CurrentStep    *string        `json:"currentStep"`
	ErrorMessage   *string        `json:"errorMessage"`
	ErrorCode      *string        `json:"errorCode"`
	ErrorDetails   map[string]any `json:"errorDetails"`
	Metadata       map[string]any `json:"metadata"`
}

// JobsUpdate applies a partial update. Fields absent from the payload are left
// unchanged; illegal transitions are rejected.
func (a *App) JobsUpdate(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "job_id")
	var req updateJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}

	u := domain.JobUpdate{
		Progress:       req.Progress,
		CompletedItems: req.CompletedItems,
		CurrentStep:    req.CurrentStep,
		ErrorMessage:   req.ErrorMessage,
		ErrorCode:      req.ErrorCode,
	}
	if req.Status != nil {
		status := domain.JobStatus(*req.Status)
		switch status {
		case domain.JobStatusPending, domain.JobStatusGenerating, domain.JobStatusCompleted, domain.JobStatusFailed:
			u.Status = &status
		default:
			a.error(w, http.StatusBadRequest, "bad_request", "unsupported status")
			return
		}
	}
	if len(req.ErrorDetails) > 0 {
		details, err := json.Marshal(req.ErrorDetails)
		if err != nil {
			a.error(w, http.StatusBadRequest, "bad_request", "invalid errorDetails")
			return
		}
		u.ErrorDetails = details
	}
	if len(req.Metadata) > 0 {
		meta, err := json.Marshal(req.Metadata)
		if err != nil {
			a.error(w, http.StatusBadRequest, "bad_request", "invalid metadata")
			return
		}
		u.Metadata = meta
	}

	job, err := a.Jobs.GetByID(r.Context(), jobID)
	if err != nil {
		a.domainError(w, err)
		return
	}
	if err := job.Validate(u); err != nil {
		a.domainError(w, err)
		return
	}
	updated, err := a.Jobs.Update(r.Context(), jobID, u)
	if err != nil {
		a.domainError(w, err)
		return
	}
	a.json(w, http.StatusOK, jobToPayload(updated))
}

// JobsDelete removes one job, e.g. a client dismissing a failed generation.
func (a *App) JobsDelete(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "job_id")
	if err := a.Jobs.Delete(r.Context(), jobID); err != nil {
		a.domainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ContentJobsList returns jobs for one content item, newest first. With
// ?active=true only pending/generating jobs are included.
func (a *App) ContentJobsList(w http.ResponseWriter, r *http.Request) {
	contentID := chi.URLParam(r, "content_id")
	activeOnly := r.URL.Query().Get("active") == "true"

	jobs, err := a.Jobs.ListByContent(r.Context(), contentID, activeOnly)
	if err != nil {
		a.domainError(w, err)
		return
	}
	a.json(w, http.StatusOK, map[string]any{"jobs": jobsToPayload(jobs)})
}

// ContentJobsCleanup bulk-deletes terminal jobs for a content item once the
// client has acknowledged the outcome.
func (a *App) ContentJobsCleanup(w http.ResponseWriter, r *http.Request) {
	contentID := chi.URLParam(r, "content_id")
	deleted, err := a.Jobs.DeleteTerminalByContent(r.Context(), contentID)
	if err != nil {
		a.domainError(w, err)
		return
	}
	a.json(w, http.StatusOK, map[string]int64{"deleted": deleted})
}
