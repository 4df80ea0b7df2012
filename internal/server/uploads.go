package server

import (
	"encoding/json"
	"net/http"
	"path"
	"strings"

	"github.com/go-chi/chi/v5"
)

// The upload endpoint speaks multipart rather than JSON, so it bypasses
// huma and hangs directly off the chi router. Fields: file, task_id, notes.
func registerUpload(r chi.Router, basePath string, cfg Config) {
	uploadPath := path.Join(basePath, "submissions")
	maxBody := cfg.Store.MaxSize + 1<<20 // form field overhead

	r.Post(uploadPath, func(w http.ResponseWriter, req *http.Request) {
		principal, authErr := requirePrincipal(req.Context())
		if authErr != nil {
			respondStatusError(w, authErr)
			return
		}
		req.Body = http.MaxBytesReader(w, req.Body, maxBody)
		if err := req.ParseMultipartForm(8 << 20); err != nil {
			respondStatusError(w, newAPIError(http.StatusBadRequest, "invalid multipart body or file too large"))
			return
		}
		taskID := strings.TrimSpace(req.FormValue("task_id"))
		if taskID == "" {
			respondStatusError(w, newAPIError(http.StatusBadRequest, "task_id is required"))
			return
		}
		notes := req.FormValue("notes")
		file, header, err := req.FormFile("file")
		if err != nil {
			respondStatusError(w, newAPIError(http.StatusBadRequest, "file is required"))
			return
		}
		defer file.Close()

		storedPath, err := cfg.Store.Save(header.Filename, file)
		if err != nil {
			respondStatusError(w, handleError(err))
			return
		}
		s, err := cfg.Engine.UploadSubmission(req.Context(), principal, taskID, storedPath, header.Filename, notes)
		if err != nil {
			// the archive is orphaned otherwise
			_ = cfg.Store.Remove(storedPath)
			respondStatusError(w, handleError(err))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(SubmissionEnvelope{Submission: s})
	})
}
