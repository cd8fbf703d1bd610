package web

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"cover-studio/internal/domain"
	"cover-studio/internal/domain/model"
	"cover-studio/internal/usecase"
)

type variantRequest struct {
	Style       string `json:"style"`
	Mood        string `json:"mood,omitempty"`
	ColorScheme string `json:"color_scheme,omitempty"`
	Emphasis    string `json:"emphasis,omitempty"`
}

type referenceRequest struct {
	StorageRef string `json:"storage_ref"`
	Kind       string `json:"kind,omitempty"`
}

type generationRequest struct {
	OutputClass  string             `json:"output_class"`
	SubjectTitle string             `json:"subject_title"`
	Variants     []variantRequest   `json:"variants"`
	References   []referenceRequest `json:"references,omitempty"`
}

func (req *generationRequest) toParams(userID, subjectID string) usecase.SubmitParams {
	p := usecase.SubmitParams{
		UserID:       userID,
		SubjectID:    subjectID,
		SubjectTitle: req.SubjectTitle,
		OutputClass:  req.OutputClass,
	}
	for _, v := range req.Variants {
		p.VariantSpecs = append(p.VariantSpecs, model.VariantSpec{
			Style:       v.Style,
			Mood:        v.Mood,
			ColorScheme: v.ColorScheme,
			Emphasis:    v.Emphasis,
		})
	}
	for _, ref := range req.References {
		p.ReferenceInputs = append(p.ReferenceInputs, model.ReferenceInput{
			StorageRef: ref.StorageRef,
			Kind:       ref.Kind,
		})
	}
	return p
}

// writeDomainError maps domain sentinels onto HTTP statuses. Anything
// unmapped is a plain 500 without leaking internals.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrQuotaExceeded):
		http.Error(w, err.Error(), http.StatusTooManyRequests)
	case errors.Is(err, domain.ErrNoVariants), errors.Is(err, domain.ErrInvalidArgument):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, domain.ErrNotFound):
		http.Error(w, "Not found", http.StatusNotFound)
	case errors.Is(err, domain.ErrRegenerateInFlight):
		http.Error(w, "A regeneration is already running for this subject", http.StatusConflict)
	case errors.Is(err, domain.ErrJobQueueFull):
		http.Error(w, "Busy, try again shortly", http.StatusServiceUnavailable)
	default:
		http.Error(w, "Internal error", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func (s *Server) submitHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var req generationRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}

		job, err := s.genUC.Submit(ctx, req.toParams(userIDFrom(r), chi.URLParam(r, "subjectID")))
		if err != nil {
			writeDomainError(w, err)
			return
		}

		writeJSON(w, http.StatusAccepted, struct {
			JobID  string `json:"job_id"`
			Status string `json:"status"`
		}{
			JobID:  job.ID,
			Status: string(job.Status),
		})
	}
}

func (s *Server) regenerateHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var req generationRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}

		job, err := s.genUC.Regenerate(ctx, req.toParams(userIDFrom(r), chi.URLParam(r, "subjectID")))
		if err != nil {
			writeDomainError(w, err)
			return
		}

		writeJSON(w, http.StatusAccepted, struct {
			JobID  string `json:"job_id"`
			Status string `json:"status"`
		}{
			JobID:  job.ID,
			Status: string(job.Status),
		})
	}
}

type assetResponse struct {
	ID              string  `json:"id"`
	SubjectID       string  `json:"subject_id"`
	OutputClass     string  `json:"output_class"`
	Style           string  `json:"style"`
	GenerationOrder int     `json:"generation_order"`
	Version         int     `json:"version"`
	ParentAssetID   *string `json:"parent_asset_id,omitempty"`
	IsSelected      bool    `json:"is_selected"`
	URL             string  `json:"url"`
	SecureURL       string  `json:"secure_url"`
	Width           int     `json:"width,omitempty"`
	Height          int     `json:"height,omitempty"`
	Format          string  `json:"format,omitempty"`
}

func toAssetResponse(a *model.Asset) assetResponse {
	return assetResponse{
		ID:              a.ID,
		SubjectID:       a.SubjectID,
		OutputClass:     a.OutputClass,
		Style:           a.Style,
		GenerationOrder: a.GenerationOrder,
		Version:         a.Version,
		ParentAssetID:   a.ParentAssetID,
		IsSelected:      a.IsSelected,
		URL:             a.URL,
		SecureURL:       a.SecureURL,
		Width:           a.Width,
		Height:          a.Height,
		Format:          a.Format,
	}
}

func (s *Server) jobStatusHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st, err := s.genUC.Status(r.Context(), chi.URLParam(r, "jobID"))
		if err != nil {
			writeDomainError(w, err)
			return
		}

		assets := make([]assetResponse, 0, len(st.Assets))
		for _, a := range st.Assets {
			assets = append(assets, toAssetResponse(a))
		}
		writeJSON(w, http.StatusOK, struct {
			JobID          string               `json:"job_id"`
			Status         string               `json:"status"`
			Progress       int                  `json:"progress"`
			CurrentVariant int                  `json:"current_variant"`
			TotalVariants  int                  `json:"total_variants"`
			Assets         []assetResponse      `json:"assets"`
			Errors         []model.VariantError `json:"errors,omitempty"`
		}{
			JobID:          st.JobID,
			Status:         string(st.Status),
			Progress:       st.Progress,
			CurrentVariant: st.CurrentVariant,
			TotalVariants:  st.TotalVariants,
			Assets:         assets,
			Errors:         st.Errors,
		})
	}
}

func (s *Server) assetsListHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		outputClass := r.URL.Query().Get("output_class")
		if outputClass == "" {
			http.Error(w, "output_class query parameter is required", http.StatusBadRequest)
			return
		}

		list, err := s.assetUC.ListBySubject(r.Context(), chi.URLParam(r, "subjectID"), outputClass)
		if err != nil {
			writeDomainError(w, err)
			return
		}

		data := make([]assetResponse, 0, len(list))
		for _, a := range list {
			data = append(data, toAssetResponse(a))
		}
		writeJSON(w, http.StatusOK, struct {
			Data []assetResponse `json:"data"`
		}{Data: data})
	}
}

func (s *Server) refineHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Instruction string `json:"instruction"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}

		child, err := s.assetUC.Refine(r.Context(), userIDFrom(r), chi.URLParam(r, "assetID"), req.Instruction)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, toAssetResponse(child))
	}
}

func (s *Server) selectHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := s.assetUC.Select(r.Context(), userIDFrom(r), chi.URLParam(r, "assetID"))
		if err != nil {
			writeDomainError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) deleteHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := s.assetUC.Delete(r.Context(), userIDFrom(r), chi.URLParam(r, "assetID"))
		if err != nil {
			writeDomainError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) usageHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rows, err := s.quotaUC.Summary(r.Context(), userIDFrom(r))
		if err != nil {
			writeDomainError(w, err)
			return
		}

		type usageRow struct {
			OutputClass string `json:"output_class"`
			Used        int    `json:"used"`
			Limit       int    `json:"limit"`
			Remaining   int    `json:"remaining"`
			Unlimited   bool   `json:"unlimited"`
		}
		data := make([]usageRow, 0, len(rows))
		for _, row := range rows {
			data = append(data, usageRow{
				OutputClass: row.OutputClass,
				Used:        row.Used,
				Limit:       row.Limit,
				Remaining:   row.Remaining,
				Unlimited:   row.Unlimited,
			})
		}
		writeJSON(w, http.StatusOK, struct {
			Data []usageRow `json:"data"`
		}{Data: data})
	}
}
