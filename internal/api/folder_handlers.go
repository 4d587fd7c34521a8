package api

import (
	"encoding/json"
	"log"
	"net/http"
	"strings"

	"droply/internal/database"
	"droply/internal/models"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"
)

type CreateFolderRequest struct {
	Name     string  `json:"name"`
	ParentID *string `json:"parentId"`
	UserID   string  `json:"userId"`
}

func (req CreateFolderRequest) Validate() error {
	return validation.ValidateStruct(&req,
		validation.Field(&req.Name, validation.Required, validation.Length(1, 255)),
		validation.Field(&req.UserID, validation.Required),
	)
}

type CreateFolderResponse struct {
	Message   string       `json:"message"`
	NewFolder *models.File `json:"newFolder"`
}

// @Summary      Create a folder
// @Description  Creates a folder for the caller, optionally inside an existing parent folder of the same owner.
// @Tags         folders
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        createFolderRequest  body      CreateFolderRequest  true  "Folder data"
// @Success      201                  {object}  CreateFolderResponse
// @Failure      400                  {string}  string "Invalid folder name"
// @Failure      401                  {string}  string "Unauthorized"
// @Failure      404                  {string}  string "Parent folder not found"
// @Failure      500                  {string}  string "Internal Server Error"
// @Router       /folders/create [post]
func (s *Server) CreateFolderHandler(w http.ResponseWriter, r *http.Request) {
	claims := GetUserFromContext(r.Context())

	var req CreateFolderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.UserID == "" {
		req.UserID = claims.UserID
	}

	if err := req.Validate(); err != nil {
		http.Error(w, "Invalid folder name", http.StatusBadRequest)
		return
	}

	if req.UserID != claims.UserID {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	if req.ParentID != nil && *req.ParentID != "" {
		parent, err := s.store.GetFolderByID(r.Context(), *req.ParentID, claims.UserID)
		if err != nil {
			http.Error(w, "Failed to validate parent folder", http.StatusInternalServerError)
			return
		}
		if parent == nil {
			http.Error(w, "Parent folder not found", http.StatusNotFound)
			return
		}
	} else {
		req.ParentID = nil
	}

	folderID, err := s.generateUniqueID(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	params := database.CreateFileParams{
		ID:       folderID,
		Name:     req.Name,
		Path:     "/folders/" + claims.UserID + "/" + uuid.New().String(),
		Size:     0,
		Type:     "folder",
		FileURL:  "",
		UserID:   claims.UserID,
		ParentID: req.ParentID,
		IsFolder: true,
	}

	newFolder, err := s.store.CreateFile(r.Context(), params)
	if err != nil {
		http.Error(w, "Failed to create folder", http.StatusInternalServerError)
		return
	}

	if err := s.store.LogEvent(r.Context(), claims.UserID, "folder_created", newFolder); err != nil {
		log.Printf("WARN: failed to log folder_created event: %v", err)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(CreateFolderResponse{
		Message:   "Folder created successfully",
		NewFolder: newFolder,
	})
}
