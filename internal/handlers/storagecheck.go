package handlers

import (
	"net/http"
)

// storageCheckResponse reports whether the document bucket is reachable
// and correctly configured.
type storageCheckResponse struct {
	Success bool                   `json:"success"`
	Message string                 `json:"message"`
	Error   string                 `json:"error,omitempty"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// StorageCheck verifies the object storage bucket exists and is publicly
// readable.
func (h *Handler) StorageCheck(w http.ResponseWriter, r *http.Request) {
	if h.objects == nil {
		h.JSON(w, http.StatusOK, storageCheckResponse{
			Success: false,
			Message: "object storage is not configured",
		})
		return
	}

	status, err := h.objects.CheckBucket(r.Context())
	if err != nil {
		h.JSON(w, http.StatusOK, storageCheckResponse{
			Success: false,
			Message: "bucket check failed",
			Error:   err.Error(),
		})
		return
	}

	resp := storageCheckResponse{
		Success: status.Exists && status.PublicRead,
		Details: map[string]interface{}{
			"bucket":      status.Bucket,
			"exists":      status.Exists,
			"public_read": status.PublicRead,
		},
	}
	switch {
	case !status.Exists:
		resp.Message = "bucket does not exist; run storage-setup"
	case !status.PublicRead:
		resp.Message = "bucket exists but is not publicly readable"
	default:
		resp.Message = "bucket is configured correctly"
	}

	h.JSON(w, http.StatusOK, resp)
}
