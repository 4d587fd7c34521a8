package api

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// @Summary      Toggle trash flag
// @Description  Flips the trash flag of a file or folder atomically and returns the updated record. Trashed entries disappear from listings but keep their row and media object.
// @Tags         trash
// @Produce      json
// @Security     BearerAuth
// @Param        fileId  path      string  true  "File ID"
// @Success      200     {object}  models.File
// @Failure      401     {string}  string "Unauthorized"
// @Failure      404     {string}  string "Not Found"
// @Failure      500     {string}  string "Internal Server Error"
// @Router       /files/{fileId}/trash [patch]
func (s *Server) ToggleTrashHandler(w http.ResponseWriter, r *http.Request) {
	claims := GetUserFromContext(r.Context())

	fileID := chi.URLParam(r, "fileId")
	if fileID == "" {
		http.Error(w, "File ID is required", http.StatusBadRequest)
		return
	}

	file, err := s.store.ToggleTrash(r.Context(), fileID, claims.UserID)
	if err != nil {
		http.Error(w, "Failed to update file", http.StatusInternalServerError)
		return
	}
	if file == nil {
		http.Error(w, "File not found", http.StatusNotFound)
		return
	}

	if err := s.store.LogEvent(r.Context(), claims.UserID, "file_trash_toggled", file); err != nil {
		log.Printf("WARN: failed to log file_trash_toggled event: %v", err)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(file)
}

// @Summary      List trash
// @Description  Lists all of the caller's trashed files and folders.
// @Tags         trash
// @Produce      json
// @Security     BearerAuth
// @Success      200  {array}   models.File
// @Failure      401  {string}  string "Unauthorized"
// @Failure      500  {string}  string "Internal Server Error"
// @Router       /files/trash [get]
func (s *Server) ListTrashHandler(w http.ResponseWriter, r *http.Request) {
	claims := GetUserFromContext(r.Context())

	files, err := s.store.ListTrash(r.Context(), claims.UserID)
	if err != nil {
		http.Error(w, "Failed to list trash", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(files)
}

// @Summary      Empty trash
// @Description  Permanently deletes everything in the caller's trash. Media host objects of the deleted files are removed best-effort. This action cannot be undone.
// @Tags         trash
// @Security     BearerAuth
// @Success      204  {null}    nil "No Content"
// @Failure      401  {string}  string "Unauthorized"
// @Failure      500  {string}  string "Internal Server Error"
// @Router       /files/trash/empty [delete]
func (s *Server) EmptyTrashHandler(w http.ResponseWriter, r *http.Request) {
	claims := GetUserFromContext(r.Context())

	deleted, err := s.store.EmptyTrash(r.Context(), claims.UserID)
	if err != nil {
		http.Error(w, "Failed to empty trash", http.StatusInternalServerError)
		return
	}

	for i := range deleted {
		if deleted[i].IsFolder {
			continue
		}
		s.deleteFromMediaHost(r.Context(), &deleted[i])
	}

	if err := s.store.LogEvent(r.Context(), claims.UserID, "trash_emptied", map[string]int{"deleted": len(deleted)}); err != nil {
		log.Printf("WARN: failed to log trash_emptied event: %v", err)
	}

	w.WriteHeader(http.StatusNoContent)
}
