package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"

	"droply/internal/auth"
	"droply/internal/database"
	"droply/internal/models"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
)

// Funkcja pomocnicza do tworzenia plików/folderów w testach API
func createTestFileAPI(t *testing.T, name string, isFolder bool, parentID *string, userID string) *models.File {
	t.Helper()

	id, err := testServer.generateUniqueID(context.Background())
	require.NoError(t, err)

	params := database.CreateFileParams{
		ID:       id,
		Name:     name,
		Path:     "/droply/" + userID + "/" + name,
		UserID:   userID,
		ParentID: parentID,
		IsFolder: isFolder,
	}
	if isFolder {
		params.Type = "folder"
	} else {
		params.Type = "image/png"
		params.Size = 1234
		params.FileURL = "https://ik.imagekit.io/test/droply/" + userID + "/" + name
	}

	file, err := testServer.store.CreateFile(context.Background(), params)
	require.NoError(t, err)
	return file
}

func newTestRouter() *chi.Mux {
	r := chi.NewRouter()
	r.Get("/api/files", testServer.ListFilesHandler)
	r.Post("/api/files/upload", testServer.UploadFileHandler)
	r.Post("/api/upload", testServer.RegisterUploadHandler)
	r.Post("/api/folders/create", testServer.CreateFolderHandler)
	r.Get("/api/files/trash", testServer.ListTrashHandler)
	r.Delete("/api/files/trash/empty", testServer.EmptyTrashHandler)
	r.Patch("/api/files/{fileId}/starred", testServer.ToggleStarredHandler)
	r.Patch("/api/files/{fileId}/trash", testServer.ToggleTrashHandler)
	r.Delete("/api/files/{fileId}/delete", testServer.DeleteFileHandler)
	r.Get("/api/imagekit-auth", testServer.ImageKitAuthHandler)
	r.Get("/api/events", testServer.GetEventsHandler)
	r.Get("/api/me", testServer.GetCurrentUserHandler)
	return r
}

func doRequest(t *testing.T, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	req = req.WithContext(contextWithClaims(req.Context(), testUserClaims))
	newTestRouter().ServeHTTP(rr, req)
	return rr
}

// Buduje żądanie multipart z kontrolowanym Content-Type części pliku
func newUploadRequest(t *testing.T, filename, contentType, content, userID, parentID string) *http.Request {
	t.Helper()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, filename))
	header.Set("Content-Type", contentType)
	part, err := writer.CreatePart(header)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)

	require.NoError(t, writer.WriteField("userId", userID))
	if parentID != "" {
		require.NoError(t, writer.WriteField("parentId", parentID))
	}
	require.NoError(t, writer.Close())

	req := httptest.NewRequest("POST", "/api/files/upload", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func TestAPI_ListFiles(t *testing.T) {
	parentFolder := createTestFileAPI(t, "List Parent", true, nil, testUserClaims.UserID)
	childFile := createTestFileAPI(t, "List Child.png", false, &parentFolder.ID, testUserClaims.UserID)

	t.Run("requires a matching userId", func(t *testing.T) {
		rr := doRequest(t, httptest.NewRequest("GET", "/api/files", nil))
		require.Equal(t, http.StatusBadRequest, rr.Code)

		rr = doRequest(t, httptest.NewRequest("GET", "/api/files?userId=somebody_else", nil))
		require.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("lists the root directory", func(t *testing.T) {
		rr := doRequest(t, httptest.NewRequest("GET", "/api/files?userId="+testUserClaims.UserID, nil))
		require.Equal(t, http.StatusOK, rr.Code)

		var resp ListFilesResponse
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))

		found := false
		for _, f := range resp.Files {
			require.Nil(t, f.ParentID)
			if f.ID == parentFolder.ID {
				found = true
			}
		}
		require.True(t, found, "Expected to find the created folder in the root listing")
	})

	t.Run("lists a folder's direct children", func(t *testing.T) {
		url := fmt.Sprintf("/api/files?userId=%s&parentId=%s", testUserClaims.UserID, parentFolder.ID)
		rr := doRequest(t, httptest.NewRequest("GET", url, nil))
		require.Equal(t, http.StatusOK, rr.Code)

		var resp ListFilesResponse
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
		require.Len(t, resp.Files, 1)
		require.Equal(t, childFile.ID, resp.Files[0].ID)
	})
}

func TestAPI_UploadFile(t *testing.T) {
	t.Run("uploads a png into a folder", func(t *testing.T) {
		testMediaHost.reset()
		folder := createTestFileAPI(t, "Upload Target", true, nil, testUserClaims.UserID)

		req := newUploadRequest(t, "photo.png", "image/png", "png-bytes", testUserClaims.UserID, folder.ID)
		rr := doRequest(t, req)
		require.Equal(t, http.StatusCreated, rr.Code)

		var resp UploadFileResponse
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
		require.Equal(t, "File uploaded successfully", resp.Message)
		require.NotNil(t, resp.NewFile)
		require.Equal(t, "photo.png", resp.NewFile.Name)
		require.Equal(t, "image/png", resp.NewFile.Type)
		require.False(t, resp.NewFile.IsFolder)
		require.NotNil(t, resp.NewFile.ParentID)
		require.Equal(t, folder.ID, *resp.NewFile.ParentID)
		require.NotEmpty(t, resp.NewFile.FileURL)

		require.Len(t, testMediaHost.uploads, 1)
		require.Equal(t, "/droply/"+testUserClaims.UserID+"/folders/"+folder.ID, testMediaHost.uploads[0].Folder)
		require.Equal(t, "png-bytes", testMediaHost.uploadedData[0])
	})

	t.Run("rejects anything that is not an image or a pdf", func(t *testing.T) {
		testMediaHost.reset()

		req := newUploadRequest(t, "notes.txt", "text/plain", "hello", testUserClaims.UserID, "")
		rr := doRequest(t, req)

		require.Equal(t, http.StatusBadRequest, rr.Code)
		require.Contains(t, rr.Body.String(), "Only images and PDFs are allowed")
		require.Empty(t, testMediaHost.uploads, "Media host must not be called for a rejected upload")
	})

	t.Run("accepts a pdf", func(t *testing.T) {
		testMediaHost.reset()

		req := newUploadRequest(t, "doc.pdf", "application/pdf", "%PDF-1.4", testUserClaims.UserID, "")
		rr := doRequest(t, req)

		require.Equal(t, http.StatusCreated, rr.Code)
		require.Len(t, testMediaHost.uploads, 1)
	})

	t.Run("rejects a mismatched owner", func(t *testing.T) {
		testMediaHost.reset()

		req := newUploadRequest(t, "photo.png", "image/png", "x", "somebody_else", "")
		rr := doRequest(t, req)

		require.Equal(t, http.StatusUnauthorized, rr.Code)
		require.Empty(t, testMediaHost.uploads)
	})

	t.Run("rejects a missing parent folder", func(t *testing.T) {
		testMediaHost.reset()

		req := newUploadRequest(t, "photo.png", "image/png", "x", testUserClaims.UserID, "no_such_folder_______")
		rr := doRequest(t, req)

		require.Equal(t, http.StatusBadRequest, rr.Code)
		require.Contains(t, rr.Body.String(), "Parent folder not found")
		require.Empty(t, testMediaHost.uploads)
	})

	t.Run("surfaces a host failure and persists nothing", func(t *testing.T) {
		testMediaHost.reset()
		testMediaHost.uploadErr = fmt.Errorf("host exploded")

		req := newUploadRequest(t, "photo.png", "image/png", "x", testUserClaims.UserID, "")
		rr := doRequest(t, req)
		require.Equal(t, http.StatusInternalServerError, rr.Code)

		var count int
		err := testServer.store.GetPool().QueryRow(context.Background(),
			"SELECT count(*) FROM files WHERE user_id=$1 AND name='photo.png' AND parent_id IS NULL",
			testUserClaims.UserID).Scan(&count)
		require.NoError(t, err)
		require.Zero(t, count, "No row may be created when the host upload fails")
	})
}

func TestAPI_ToggleStarred(t *testing.T) {
	file := createTestFileAPI(t, "Star Me.png", false, nil, testUserClaims.UserID)

	toggle := func() *models.File {
		rr := doRequest(t, httptest.NewRequest("PATCH", "/api/files/"+file.ID+"/starred", nil))
		require.Equal(t, http.StatusOK, rr.Code)
		var updated models.File
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &updated))
		return &updated
	}

	require.True(t, toggle().IsStarred)
	require.False(t, toggle().IsStarred, "Two toggles must return the file to its original state")

	t.Run("returns 404 for another owner's file", func(t *testing.T) {
		foreign := createTestFileAPI(t, "Foreign.png", false, nil, "user_someone_else")
		rr := doRequest(t, httptest.NewRequest("PATCH", "/api/files/"+foreign.ID+"/starred", nil))
		require.Equal(t, http.StatusNotFound, rr.Code)
	})
}

func TestAPI_DeleteFile(t *testing.T) {
	t.Run("deletes a file and its media host object", func(t *testing.T) {
		testMediaHost.reset()
		file := createTestFileAPI(t, "delete-me.png", false, nil, testUserClaims.UserID)
		testMediaHost.searchResults["delete-me.png"] = "ik_found_42"

		rr := doRequest(t, httptest.NewRequest("DELETE", "/api/files/"+file.ID+"/delete", nil))
		require.Equal(t, http.StatusOK, rr.Code)

		var resp DeleteFileResponse
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
		require.True(t, resp.Success)
		require.Equal(t, file.ID, resp.DeletedFile.ID)

		require.Equal(t, []string{"delete-me.png"}, testMediaHost.searches)
		require.Equal(t, []string{"ik_found_42"}, testMediaHost.deleted)

		gone, err := testServer.store.GetFileByID(context.Background(), file.ID, testUserClaims.UserID)
		require.NoError(t, err)
		require.Nil(t, gone)
	})

	t.Run("falls back to the derived name when the search finds nothing", func(t *testing.T) {
		testMediaHost.reset()
		file := createTestFileAPI(t, "unsearchable.png", false, nil, testUserClaims.UserID)

		rr := doRequest(t, httptest.NewRequest("DELETE", "/api/files/"+file.ID+"/delete", nil))
		require.Equal(t, http.StatusOK, rr.Code)
		require.Equal(t, []string{"unsearchable.png"}, testMediaHost.deleted)
	})

	t.Run("a host failure never blocks the database delete", func(t *testing.T) {
		testMediaHost.reset()
		testMediaHost.deleteErr = fmt.Errorf("host down")
		file := createTestFileAPI(t, "stubborn.png", false, nil, testUserClaims.UserID)

		rr := doRequest(t, httptest.NewRequest("DELETE", "/api/files/"+file.ID+"/delete", nil))
		require.Equal(t, http.StatusOK, rr.Code)

		gone, err := testServer.store.GetFileByID(context.Background(), file.ID, testUserClaims.UserID)
		require.NoError(t, err)
		require.Nil(t, gone)
	})

	t.Run("deleting a folder skips the host and keeps the children", func(t *testing.T) {
		testMediaHost.reset()
		folder := createTestFileAPI(t, "Doomed Folder", true, nil, testUserClaims.UserID)
		child := createTestFileAPI(t, "survivor.png", false, &folder.ID, testUserClaims.UserID)

		rr := doRequest(t, httptest.NewRequest("DELETE", "/api/files/"+folder.ID+"/delete", nil))
		require.Equal(t, http.StatusOK, rr.Code)
		require.Empty(t, testMediaHost.searches)
		require.Empty(t, testMediaHost.deleted)

		files, err := testServer.store.GetFilesByParentID(context.Background(), testUserClaims.UserID, &folder.ID)
		require.NoError(t, err)
		require.Len(t, files, 1)
		require.Equal(t, child.ID, files[0].ID)
	})

	t.Run("returns 404 for another owner's file", func(t *testing.T) {
		foreign := createTestFileAPI(t, "foreign-delete.png", false, nil, "user_someone_else")
		rr := doRequest(t, httptest.NewRequest("DELETE", "/api/files/"+foreign.ID+"/delete", nil))
		require.Equal(t, http.StatusNotFound, rr.Code)
	})
}

func TestAPI_ImageKitAuth(t *testing.T) {
	rr := doRequest(t, httptest.NewRequest("GET", "/api/imagekit-auth", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	var params struct {
		Token     string `json:"token"`
		Expire    int64  `json:"expire"`
		Signature string `json:"signature"`
		PublicKey string `json:"publicKey"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &params))
	require.Equal(t, "fake-token", params.Token)
	require.Equal(t, "public_fake", params.PublicKey)
	require.NotZero(t, params.Expire)
}

func TestAPI_RegisterUpload(t *testing.T) {
	t.Run("records a direct upload", func(t *testing.T) {
		payload := RegisterUploadRequest{
			UserID: testUserClaims.UserID,
			ImageKit: RegisterUploadFile{
				Name:     "direct.png",
				URL:      "https://ik.imagekit.io/test/droply/u/direct.png",
				FilePath: "/droply/u/direct.png",
				Size:     777,
				FileType: "image/png",
			},
		}
		body, _ := json.Marshal(payload)

		rr := doRequest(t, httptest.NewRequest("POST", "/api/upload", bytes.NewReader(body)))
		require.Equal(t, http.StatusCreated, rr.Code)

		var resp UploadFileResponse
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
		require.Equal(t, "direct.png", resp.NewFile.Name)
		require.Equal(t, int64(777), resp.NewFile.Size)
		require.Equal(t, testUserClaims.UserID, resp.NewFile.UserID)
	})

	t.Run("rejects a payload without a url", func(t *testing.T) {
		body, _ := json.Marshal(RegisterUploadRequest{UserID: testUserClaims.UserID})
		rr := doRequest(t, httptest.NewRequest("POST", "/api/upload", bytes.NewReader(body)))
		require.Equal(t, http.StatusBadRequest, rr.Code)
	})
}

func TestAPI_GetCurrentUser(t *testing.T) {
	rr := doRequest(t, httptest.NewRequest("GET", "/api/me", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), testUserClaims.UserID)
}

// Scenariusz z dokumentacji: folder -> upload -> lista -> gwiazdka x2 -> delete
func TestAPI_DashboardScenario(t *testing.T) {
	testMediaHost.reset()
	scenarioUser := &auth.AppClaims{UserID: "user_scenario"}
	withClaims := func(req *http.Request) *httptest.ResponseRecorder {
		rr := httptest.NewRecorder()
		req = req.WithContext(contextWithClaims(req.Context(), scenarioUser))
		newTestRouter().ServeHTTP(rr, req)
		return rr
	}

	// Folder na poziomie root
	body, _ := json.Marshal(CreateFolderRequest{Name: "Scenario", UserID: scenarioUser.UserID})
	rr := withClaims(httptest.NewRequest("POST", "/api/folders/create", bytes.NewReader(body)))
	require.Equal(t, http.StatusCreated, rr.Code)

	var folderResp CreateFolderResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &folderResp))
	require.True(t, folderResp.NewFolder.IsFolder)
	folderID := folderResp.NewFolder.ID

	// Upload do folderu
	req := newUploadRequest(t, "photo.png", "image/png", "pixels", scenarioUser.UserID, folderID)
	rr = withClaims(req)
	require.Equal(t, http.StatusCreated, rr.Code)

	var uploadResp UploadFileResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &uploadResp))
	require.False(t, uploadResp.NewFile.IsFolder)
	require.Equal(t, folderID, *uploadResp.NewFile.ParentID)
	fileID := uploadResp.NewFile.ID

	// Lista zawartości folderu
	rr = withClaims(httptest.NewRequest("GET", fmt.Sprintf("/api/files?userId=%s&parentId=%s", scenarioUser.UserID, folderID), nil))
	require.Equal(t, http.StatusOK, rr.Code)
	var listResp ListFilesResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &listResp))
	require.Len(t, listResp.Files, 1)
	require.Equal(t, fileID, listResp.Files[0].ID)

	// Dwa przełączenia gwiazdki wracają do stanu wyjściowego
	rr = withClaims(httptest.NewRequest("PATCH", "/api/files/"+fileID+"/starred", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	var starred models.File
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &starred))
	require.True(t, starred.IsStarred)

	rr = withClaims(httptest.NewRequest("PATCH", "/api/files/"+fileID+"/starred", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &starred))
	require.False(t, starred.IsStarred)

	// Usunięcie pliku opróżnia folder
	rr = withClaims(httptest.NewRequest("DELETE", "/api/files/"+fileID+"/delete", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	rr = withClaims(httptest.NewRequest("GET", fmt.Sprintf("/api/files?userId=%s&parentId=%s", scenarioUser.UserID, folderID), nil))
	require.Equal(t, http.StatusOK, rr.Code)
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &listResp))
	require.Empty(t, listResp.Files)

	// Dziennik zdarzeń widział wszystkie mutacje
	rr = withClaims(httptest.NewRequest("GET", "/api/events", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	var events []EventResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &events))
	require.Len(t, events, 5)
}
