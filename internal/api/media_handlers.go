package api

import (
	"encoding/json"
	"log"
	"net/http"

	"droply/internal/database"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// @Summary      Get upload credentials
// @Description  Returns short-lived signed parameters a browser needs to upload directly to the media host.
// @Tags         media
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  mediahost.AuthParams
// @Failure      401  {string}  string "Unauthorized"
// @Router       /imagekit-auth [get]
func (s *Server) ImageKitAuthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.media.UploadAuthParams())
}

type RegisterUploadRequest struct {
	UserID   string             `json:"userId"`
	ImageKit RegisterUploadFile `json:"imagekit"`
}

type RegisterUploadFile struct {
	Name         string  `json:"name"`
	URL          string  `json:"url"`
	FilePath     string  `json:"filePath"`
	ThumbnailURL *string `json:"thumbnailUrl"`
	Size         int64   `json:"size"`
	FileType     string  `json:"fileType"`
}

func (req RegisterUploadRequest) Validate() error {
	return validation.ValidateStruct(&req,
		validation.Field(&req.ImageKit, validation.Required),
	)
}

func (f RegisterUploadFile) Validate() error {
	return validation.ValidateStruct(&f,
		validation.Field(&f.URL, validation.Required),
	)
}

// @Summary      Register a direct upload
// @Description  Records the metadata of a file the browser uploaded straight to the media host with credentials from /imagekit-auth.
// @Tags         media
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        registerUploadRequest  body      RegisterUploadRequest  true  "Upload metadata returned by the media host"
// @Success      201                    {object}  UploadFileResponse
// @Failure      400                    {string}  string "Invalid upload data"
// @Failure      401                    {string}  string "Unauthorized"
// @Failure      500                    {string}  string "Internal Server Error"
// @Router       /upload [post]
func (s *Server) RegisterUploadHandler(w http.ResponseWriter, r *http.Request) {
	claims := GetUserFromContext(r.Context())

	var req RegisterUploadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := req.Validate(); err != nil {
		http.Error(w, "Invalid imagekit data", http.StatusBadRequest)
		return
	}

	name := req.ImageKit.Name
	if name == "" {
		name = "untitled"
	}
	path := req.ImageKit.FilePath
	if path == "" {
		path = "/droply/" + claims.UserID + "/" + name
	}
	fileType := req.ImageKit.FileType
	if fileType == "" {
		fileType = "unknown"
	}

	fileID, err := s.generateUniqueID(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	params := database.CreateFileParams{
		ID:           fileID,
		Name:         name,
		Path:         path,
		Size:         req.ImageKit.Size,
		Type:         fileType,
		FileURL:      req.ImageKit.URL,
		ThumbnailURL: req.ImageKit.ThumbnailURL,
		UserID:       claims.UserID,
		ParentID:     nil,
		IsFolder:     false,
	}

	newFile, err := s.store.CreateFile(r.Context(), params)
	if err != nil {
		http.Error(w, "Failed to save file information", http.StatusInternalServerError)
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
