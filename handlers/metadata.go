package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"reelparty/models"
	"reelparty/services/metadata"
)

type metadataService interface {
	Search(ctx context.Context, query, mediaType string) ([]models.SearchResult, error)
}

var _ metadataService = (*metadata.Service)(nil)

// MetadataHandler proxies provider lookups the frontend needs directly,
// currently just title search for the shortlist picker.
type MetadataHandler struct {
	Metadata metadataService
}

func NewMetadataHandler(metadataSvc metadataService) *MetadataHandler {
	return &MetadataHandler{Metadata: metadataSvc}
}

// Search looks up titles by name. Query params: q (required), type
// (movie|series, defaults to movie).
func (h *MetadataHandler) Search(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		http.Error(w, `{"error": "query parameter q is required"}`, http.StatusBadRequest)
		return
	}

	results, err := h.Metadata.Search(r.Context(), query, r.URL.Query().Get("type"))
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, metadata.ErrUpstream) {
			status = http.StatusBadGateway
		}
		http.Error(w, err.Error(), status)
		return
	}
	if results == nil {
		results = []models.SearchResult{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(results)
}
