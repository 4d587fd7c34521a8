package mediahost

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Host is the narrow surface of the external media service the handlers
// depend on. The binary objects live entirely on the host side; we only
// ever upload, look up by name and delete.
type Host interface {
	Upload(ctx context.Context, arg UploadParams) (*UploadResult, error)
	SearchByName(ctx context.Context, name string) (string, error)
	Delete(ctx context.Context, fileID string) error
	UploadAuthParams() AuthParams
}

type UploadParams struct {
	FileName string
	Folder   string
	Data     io.Reader
}

type UploadResult struct {
	FileID       string `json:"fileId"`
	Name         string `json:"name"`
	URL          string `json:"url"`
	ThumbnailURL string `json:"thumbnailUrl"`
	FilePath     string `json:"filePath"`
}

// AuthParams are the short-lived credentials a browser needs for a direct
// upload to the host.
type AuthParams struct {
	Token     string `json:"token"`
	Expire    int64  `json:"expire"`
	Signature string `json:"signature"`
	PublicKey string `json:"publicKey"`
}

type ImageKit struct {
	publicKey   string
	privateKey  string
	urlEndpoint string

	uploadBaseURL string
	apiBaseURL    string
	client        *http.Client
}

func NewImageKit(publicKey, privateKey, urlEndpoint string) *ImageKit {
	return &ImageKit{
		publicKey:     publicKey,
		privateKey:    privateKey,
		urlEndpoint:   urlEndpoint,
		uploadBaseURL: "https://upload.imagekit.io",
		apiBaseURL:    "https://api.imagekit.io",
		client:        &http.Client{Timeout: 60 * time.Second},
	}
}

func (ik *ImageKit) Upload(ctx context.Context, arg UploadParams) (*UploadResult, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	if err := writer.WriteField("fileName", arg.FileName); err != nil {
		return nil, err
	}
	if arg.Folder != "" {
		if err := writer.WriteField("folder", arg.Folder); err != nil {
			return nil, err
		}
	}
	if err := writer.WriteField("useUniqueFileName", "false"); err != nil {
		return nil, err
	}

	part, err := writer.CreateFormFile("file", arg.FileName)
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(part, arg.Data); err != nil {
		return nil, err
	}
	if err := writer.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ik.uploadBaseURL+"/api/v1/files/upload", body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.SetBasicAuth(ik.privateKey, "")

	resp, err := ik.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("imagekit upload request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("imagekit upload failed: %s", readAPIError(resp.Body, resp.StatusCode))
	}

	var result UploadResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("imagekit upload: invalid response: %w", err)
	}
	if result.URL == "" {
		return nil, fmt.Errorf("imagekit upload: response has no url")
	}

	return &result, nil
}

// SearchByName asks the host for a file with exactly this name and returns
// its host-side id, or "" if nothing matched.
func (ik *ImageKit) SearchByName(ctx context.Context, name string) (string, error) {
	query := url.Values{}
	query.Set("name", name)
	query.Set("limit", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ik.apiBaseURL+"/v1/files?"+query.Encode(), nil)
	if err != nil {
		return "", err
	}
	req.SetBasicAuth(ik.privateKey, "")

	resp, err := ik.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("imagekit search request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("imagekit search failed: %s", readAPIError(resp.Body, resp.StatusCode))
	}

	var results []struct {
		FileID string `json:"fileId"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return "", fmt.Errorf("imagekit search: invalid response: %w", err)
	}

	if len(results) == 0 {
		return "", nil
	}
	return results[0].FileID, nil
}

func (ik *ImageKit) Delete(ctx context.Context, fileID string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, ik.apiBaseURL+"/v1/files/"+url.PathEscape(fileID), nil)
	if err != nil {
		return err
	}
	req.SetBasicAuth(ik.privateKey, "")

	resp, err := ik.client.Do(req)
	if err != nil {
		return fmt.Errorf("imagekit delete request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusOK {
		return fmt.Errorf("imagekit delete failed: %s", readAPIError(resp.Body, resp.StatusCode))
	}

	return nil
}

// UploadAuthParams signs short-lived upload credentials for browser-side
// uploads: signature = HMAC-SHA1(token + expire, private key).
func (ik *ImageKit) UploadAuthParams() AuthParams {
	token := uuid.New().String()
	expire := time.Now().Add(30 * time.Minute).Unix()

	mac := hmac.New(sha1.New, []byte(ik.privateKey))
	mac.Write([]byte(token + strconv.FormatInt(expire, 10)))

	return AuthParams{
		Token:     token,
		Expire:    expire,
		Signature: hex.EncodeToString(mac.Sum(nil)),
		PublicKey: ik.publicKey,
	}
}

// DeriveFileName recovers the host-side object name for a stored file: the
// last path segment of the media URL without its query string, falling back
// to the last segment of the stored path. Returns "" when neither yields one.
func DeriveFileName(fileURL, path string) string {
	if fileURL != "" {
		trimmed := fileURL
		if i := strings.Index(trimmed, "?"); i >= 0 {
			trimmed = trimmed[:i]
		}
		if name := lastSegment(trimmed); name != "" {
			return name
		}
	}
	return lastSegment(path)
}

func lastSegment(s string) string {
	s = strings.TrimRight(s, "/")
	if i := strings.LastIndex(s, "/"); i >= 0 {
		return s[i+1:]
	}
	return s
}

func readAPIError(body io.Reader, status int) string {
	var apiErr struct {
		Message string `json:"message"`
	}
	if err := json.NewDecoder(body).Decode(&apiErr); err == nil && apiErr.Message != "" {
		return fmt.Sprintf("status %d: %s", status, apiErr.Message)
	}
	return fmt.Sprintf("status %d", status)
}
