package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"server/internal/domain"
	"server/internal/providers/image"
	"server/internal/storage"
	"server/internal/usage"
)

type imageGenerateRequest struct {
	Type    string   `json:"type"`
	Prompt  string   `json:"prompt"`
	Prompts []string `json:"prompts"`
	Count   int      `json:"count"`
}

// ImagesGenerate runs a single/carousel/composite image generation for a
// content item. The work executes within this request; the job row it keeps
// updated is what polling clients observe.
func (a *App) ImagesGenerate(w http.ResponseWriter, r *http.Request) {
	contentID := chi.URLParam(r, "content_id")
	var req imageGenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}

	jobType := domain.JobType(req.Type)
	switch jobType {
	case domain.JobTypeSingle, domain.JobTypeCarousel, domain.JobTypeComposite:
	default:
		a.error(w, http.StatusBadRequest, "bad_request", "type must be single, carousel or composite")
		return
	}

	prompts := req.Prompts
	if len(prompts) == 0 {
		if req.Prompt == "" {
			a.error(w, http.StatusBadRequest, "bad_request", "prompt required")
			return
		}
		count := req.Count
		if count <= 0 || jobType == domain.JobTypeSingle {
			count = 1
		}
		for i := 0; i < count; i++ {
			prompts = append(prompts, req.Prompt)
		}
	}
	if jobType == domain.JobTypeSingle && len(prompts) > 1 {
		a.error(w, http.StatusBadRequest, "bad_request", "single generation takes one prompt")
		return
	}

	job := &domain.GenerationJob{
		ID:         uuid.NewString(),
		ContentID:  contentID,
		Type:       jobType,
		Status:     domain.JobStatusPending,
		TotalItems: len(prompts),
	}
	if err := a.Jobs.Create(r.Context(), job); err != nil {
		a.domainError(w, err)
		return
	}
	a.advanceJob(r.Context(), job.ID, domain.JobUpdate{
		Status:      statusPtr(domain.JobStatusGenerating),
		CurrentStep: strPtr(fmt.Sprintf("Generating image 1 of %d", len(prompts))),
	})

	type generatedItem struct {
		URL string `json:"url"`
		Key string `json:"storageKey,omitempty"`
	}
	items := make([]generatedItem, 0, len(prompts))

	for i, prompt := range prompts {
		asset, err := a.Images.Generate(r.Context(), image.GenerateRequest{
			Prompt:    prompt,
			RequestID: fmt.Sprintf("%s-%d", job.ID, i),
		})
		if err != nil {
			a.failJob(r.Context(), job.ID, err)
			a.json(w, http.StatusBadGateway, map[string]any{
				"error":   "generation_failed",
				"message": err.Error(),
				"jobId":   job.ID,
			})
			return
		}
		a.Ledger.Log(usage.Entry{
			Service:   usage.ServiceMedia,
			Model:     a.Cfg.ImageModel,
			Operation: "image-generation",
			Metadata:  map[string]string{"contentId": contentID, "jobId": job.ID},
		})

		item := generatedItem{URL: asset.URL}
		if len(asset.Data) > 0 && a.Store != nil {
			key := storage.AssetKey(contentID, job.ID, i)
			stored, err := a.Store.Write(r.Context(), key, asset.Data)
			if err != nil {
				a.failJob(r.Context(), job.ID, fmt.Errorf("store asset: %w", err))
				a.domainError(w, err)
				return
			}
			item.Key = stored
			if item.URL == "" {
				item.URL = a.Cfg.StorageBaseURL + "/" + stored
			}
		}
		items = append(items, item)

		completed := i + 1
		update := domain.JobUpdate{CompletedItems: &completed}
		if completed < len(prompts) {
			progress := completed * 100 / len(prompts)
			if progress > 99 {
				progress = 99
			}
			step := fmt.Sprintf("Generating image %d of %d", completed+1, len(prompts))
			update.Progress = &progress
			update.CurrentStep = &step
		}
		a.advanceJob(r.Context(), job.ID, update)
	}

	meta, _ := json.Marshal(map[string]any{"items": items})
	updated, err := a.Jobs.Update(r.Context(), job.ID, domain.JobUpdate{
		Status:      statusPtr(domain.JobStatusCompleted),
		Progress:    intPtr(100),
		CurrentStep: strPtr("Done"),
		Metadata:    meta,
	})
	if err != nil {
		a.domainError(w, err)
		return
	}
	a.json(w, http.StatusCreated, map[string]any{"job": jobToPayload(updated)})
}
