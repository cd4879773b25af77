package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/AnshRaj112/empowerment-backend/internal/apperr"
	"github.com/AnshRaj112/empowerment-backend/internal/respond"
)

const maxUploadBytes = 10 << 20

// uploadFields are the optional form values copied onto the vault document.
var uploadFields = []string{"title", "category", "description"}

// UploadDocument stores the multipart "file" field and records it as a
// vault document owned by the caller.
func (h *Handler) UploadDocument(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes+maxBodyBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.writeError(w, r, apperr.BadRequest("file exceeds 10MB"))
			return
		}
		h.writeError(w, r, apperr.BadRequest("failed to parse form: %v", err))
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		h.writeError(w, r, apperr.BadRequest("no file provided"))
		return
	}
	defer file.Close()
	if header.Size > maxUploadBytes {
		h.writeError(w, r, apperr.BadRequest("file exceeds 10MB"))
		return
	}

	fields := make(map[string]any, len(uploadFields))
	for _, name := range uploadFields {
		if v := strings.TrimSpace(r.FormValue(name)); v != "" {
			fields[name] = v
		}
	}

	rec, err := h.Records.Upload(r.Context(), uid(r), header.Filename, header.Header.Get("Content-Type"), file, header.Size, fields)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, rec)
}
