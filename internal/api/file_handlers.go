package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"path/filepath"
	"strings"

	"droply/internal/database"
	"droply/internal/mediahost"
	"droply/internal/models"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jaevor/go-nanoid"
)

func (s *Server) generateUniqueID(ctx context.Context) (string, error) {
	maxRetries := 10

	generateID, err := nanoid.Standard(21)
	if err != nil {
		return "", fmt.Errorf("failed to initialize nanoid generator: %w", err)
	}

	for i := 0; i < maxRetries; i++ {
		id := generateID()
		exists, err := s.store.FileExists(ctx, id)
		if err != nil {
			return "", fmt.Errorf("failed to check for file existence: %w", err)
		}
		if !exists {
			return id, nil
		}
	}

	return "", fmt.Errorf("failed to generate a unique ID after %d attempts", maxRetries)
}

type ListFilesResponse struct {
	Files []models.File `json:"files"`
}

// @Summary      List files and folders
// @Description  Lists the caller's entries under the given parent folder, or the top-level entries when no parent is given. Trashed entries are excluded.
// @Tags         files
// @Produce      json
// @Security     BearerAuth
// @Param        userId    query     string  true   "Owner ID, must match the authenticated caller"
// @Param        parentId  query     string  false  "Parent folder ID"
// @Success      200       {object}  ListFilesResponse
// @Failure      400       {string}  string "Bad Request - missing or mismatched userId"
// @Failure      401       {string}  string "Unauthorized"
// @Failure      500       {string}  string "Internal Server Error"
// @Router       /files [get]
func (s *Server) ListFilesHandler(w http.ResponseWriter, r *http.Request) {
	claims := GetUserFromContext(r.Context())

	queryUserID := r.URL.Query().Get("userId")
	if queryUserID == "" || queryUserID != claims.UserID {
		http.Error(w, "Bad Request: Missing userId", http.StatusBadRequest)
		return
	}

	parentIDStr := r.URL.Query().Get("parentId")
	var parentID *string
	if parentIDStr != "" {
		parentID = &parentIDStr
	}

	files, err := s.store.GetFilesByParentID(r.Context(), claims.UserID, parentID)
	if err != nil {
		http.Error(w, "Failed to list files", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(ListFilesResponse{Files: files})
}

type UploadFileResponse struct {
	Message string       `json:"message"`
	NewFile *models.File `json:"newFile"`
}

// @Summary      Upload a file
// @Description  Uploads an image or PDF to the media host and records it under the optional parent folder. Only images and PDFs are accepted.
// @Tags         files
// @Accept       multipart/form-data
// @Produce      json
// @Security     BearerAuth
// @Param        file      formData  file    true   "The binary payload"
// @Param        userId    formData  string  true   "Owner ID, must match the authenticated caller"
// @Param        parentId  formData  string  false  "Parent folder ID"
// @Success      201       {object}  UploadFileResponse
// @Failure      400       {object}  map[string]string "Invalid file type or missing parent folder"
// @Failure      401       {object}  map[string]string "Unauthorized"
// @Failure      500       {object}  map[string]string "Media host or database failure"
// @Router       /files/upload [post]
func (s *Server) UploadFileHandler(w http.ResponseWriter, r *http.Request) {
	claims := GetUserFromContext(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, 1<<30)

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeJSONError(w, "Error parsing multipart form", http.StatusBadRequest)
		return
	}

	if formUserID := r.FormValue("userId"); formUserID != claims.UserID {
		writeJSONError(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	file, handler, err := r.FormFile("file")
	if err != nil {
		writeJSONError(w, "No valid file provided", http.StatusBadRequest)
		return
	}
	defer file.Close()

	parentIDStr := r.FormValue("parentId")
	var parentID *string
	if parentIDStr != "" {
		parent, err := s.store.GetFolderByID(r.Context(), parentIDStr, claims.UserID)
		if err != nil {
			writeJSONError(w, "Failed to validate parent folder", http.StatusInternalServerError)
			return
		}
		if parent == nil {
			writeJSONError(w, "Parent folder not found", http.StatusBadRequest)
			return
		}
		parentID = &parentIDStr
	}

	contentType := handler.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "image/") && contentType != "application/pdf" {
		writeJSONError(w, "Only images and PDFs are allowed", http.StatusBadRequest)
		return
	}

	// Pliki lądują w przestrzeni właściciela, opcjonalnie per folder
	folderPath := "/droply/" + claims.UserID
	if parentID != nil {
		folderPath = "/droply/" + claims.UserID + "/folders/" + *parentID
	}

	originalName := handler.Filename
	if originalName == "" {
		originalName = "upload-" + uuid.New().String()
	}
	uniqueName := uuid.New().String() + filepath.Ext(originalName)

	uploadRes, err := s.media.Upload(r.Context(), mediahost.UploadParams{
		FileName: uniqueName,
		Folder:   folderPath,
		Data:     file,
	})
	if err != nil {
		log.Printf("ERROR: media host upload failed for user %s: %v", claims.UserID, err)
		writeJSONError(w, "Failed to upload to image service. Please try again.", http.StatusInternalServerError)
		return
	}

	fileID, err := s.generateUniqueID(r.Context())
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	var thumbnailURL *string
	if uploadRes.ThumbnailURL != "" {
		thumbnailURL = &uploadRes.ThumbnailURL
	}

	params := database.CreateFileParams{
		ID:           fileID,
		Name:         originalName,
		Path:         uploadRes.FilePath,
		Size:         handler.Size,
		Type:         contentType,
		FileURL:      uploadRes.URL,
		ThumbnailURL: thumbnailURL,
		UserID:       claims.UserID,
		ParentID:     parentID,
		IsFolder:     false,
	}

	newFile, err := s.store.CreateFile(r.Context(), params)
	if err != nil {
		// TODO: posprzątać obiekt na hoście, jeśli zapis do bazy się nie powiódł
		log.Printf("ERROR: failed to create file record for user %s: %v", claims.UserID, err)
		writeJSONError(w, "Failed to save file information. Please try again.", http.StatusInternalServerError)
		return
	}

	if err := s.store.LogEvent(r.Context(), claims.UserID, "file_uploaded", newFile); err != nil {
		log.Printf("WARN: failed to log file_uploaded event: %v", err)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(UploadFileResponse{
		Message: "File uploaded successfully",
		NewFile: newFile,
	})
}

// @Summary      Toggle starred flag
// @Description  Flips the starred flag of a file or folder atomically and returns the updated record.
// @Tags         files
// @Produce      json
// @Security     BearerAuth
// @Param        fileId  path      string  true  "File ID"
// @Success      200     {object}  models.File
// @Failure      401     {string}  string "Unauthorized"
// @Failure      404     {string}  string "Not Found"
// @Failure      500     {string}  string "Internal Server Error"
// @Router       /files/{fileId}/starred [patch]
func (s *Server) ToggleStarredHandler(w http.ResponseWriter, r *http.Request) {
	claims := GetUserFromContext(r.Context())

	fileID := chi.URLParam(r, "fileId")
	if fileID == "" {
		http.Error(w, "File ID is required", http.StatusBadRequest)
		return
	}

	file, err := s.store.ToggleStarred(r.Context(), fileID, claims.UserID)
	if err != nil {
		http.Error(w, "Failed to update file", http.StatusInternalServerError)
		return
	}
	if file == nil {
		http.Error(w, "File not found", http.StatusNotFound)
		return
	}

	if err := s.store.LogEvent(r.Context(), claims.UserID, "file_starred_toggled", file); err != nil {
		log.Printf("WARN: failed to log file_starred_toggled event: %v", err)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(file)
}

type DeleteFileResponse struct {
	Success     bool         `json:"success"`
	Message     string       `json:"message"`
	DeletedFile *models.File `json:"deletedFile"`
}

// @Summary      Delete a file or folder
// @Description  Permanently deletes the record. For files the media host object is deleted best-effort first; host failures never block the database delete. Deleting a folder does not cascade to its children.
// @Tags         files
// @Produce      json
// @Security     BearerAuth
// @Param        fileId  path      string  true  "File ID"
// @Success      200     {object}  DeleteFileResponse
// @Failure      401     {string}  string "Unauthorized"
// @Failure      404     {string}  string "Not Found"
// @Failure      500     {string}  string "Internal Server Error"
// @Router       /files/{fileId}/delete [delete]
func (s *Server) DeleteFileHandler(w http.ResponseWriter, r *http.Request) {
	claims := GetUserFromContext(r.Context())

	fileID := chi.URLParam(r, "fileId")
	if fileID == "" {
		http.Error(w, "File ID is required", http.StatusBadRequest)
		return
	}

	file, err := s.store.GetFileByID(r.Context(), fileID, claims.UserID)
	if err != nil {
		http.Error(w, "Failed to retrieve file", http.StatusInternalServerError)
		return
	}
	if file == nil {
		http.Error(w, "File not found", http.StatusNotFound)
		return
	}

	if !file.IsFolder {
		s.deleteFromMediaHost(r.Context(), file)
	}

	deletedFile, err := s.store.DeleteFile(r.Context(), fileID, claims.UserID)
	if err != nil {
		http.Error(w, "Failed to delete file", http.StatusInternalServerError)
		return
	}
	if deletedFile == nil {
		http.Error(w, "File not found", http.StatusNotFound)
		return
	}

	if err := s.store.LogEvent(r.Context(), claims.UserID, "file_deleted", deletedFile); err != nil {
		log.Printf("WARN: failed to log file_deleted event: %v", err)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(DeleteFileResponse{
		Success:     true,
		Message:     "File deleted successfully",
		DeletedFile: deletedFile,
	})
}

// deleteFromMediaHost removes the host-side object for a file record.
// Failures are logged and swallowed; the database delete must proceed
// regardless.
func (s *Server) deleteFromMediaHost(ctx context.Context, file *models.File) {
	name := mediahost.DeriveFileName(file.FileURL, file.Path)
	if name == "" {
		log.Printf("WARN: could not derive media host name for file %s", file.ID)
		return
	}

	hostID, err := s.media.SearchByName(ctx, name)
	if err != nil {
		log.Printf("WARN: media host search for %q failed: %v", name, err)
	}
	if hostID == "" {
		hostID = name
	}

	if err := s.media.Delete(ctx, hostID); err != nil {
		log.Printf("WARN: media host delete of %q failed: %v", hostID, err)
	}
}

func writeJSONError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"message": message})
}
