// Package imagehost uploads attached images to a third-party host,
// substituting an ephemeral process-local reference when the upload
// fails for any reason.
package imagehost

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"time"
)

// MaxImageSize caps uploads at 5 MB.
const MaxImageSize = 5 << 20

type Uploader struct {
	UploadURL string
	ClientID  string
	Client    *http.Client

	blobs *BlobStore
}

func NewUploader(uploadURL, clientID string, blobs *BlobStore) *Uploader {
	if uploadURL == "" {
		uploadURL = "https://api.imgur.com/3/image"
	}
	return &Uploader{
		UploadURL: uploadURL,
		ClientID:  clientID,
		Client:    &http.Client{Timeout: 30 * time.Second},
		blobs:     blobs,
	}
}

type uploadResp struct {
	Success bool `json:"success"`
	Data    struct {
		Link string `json:"link"`
	} `json:"data"`
}

// Upload sends the image as a multipart form and returns its public
// link. On any failure it falls back to an ephemeral blob reference;
// ephemeral reports which path was taken.
func (u *Uploader) Upload(ctx context.Context, name string, data []byte, contentType string) (link string, ephemeral bool) {
	link, err := u.upload(ctx, name, data)
	if err == nil {
		return link, false
	}
	slog.Warn("image upload failed, using ephemeral reference", "error", err)

	id, berr := u.blobs.Put(data, contentType)
	if berr != nil {
		// Last resort: reference-less messages still send.
		slog.Error("ephemeral blob store failed", "error", berr)
		return "", true
	}
	return "/blobs/" + id, true
}

func (u *Uploader) upload(ctx context.Context, name string, data []byte) (string, error) {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile("image", name)
	if err != nil {
		return "", err
	}
	if _, err := part.Write(data); err != nil {
		return "", err
	}
	if err := w.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.UploadURL, &body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("Authorization", "Client-ID "+u.ClientID)

	resp, err := u.Client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4*1024))
		return "", fmt.Errorf("image host: status %d", resp.StatusCode)
	}

	var decoded uploadResp
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("image host: %w", err)
	}
	if !decoded.Success || decoded.Data.Link == "" {
		return "", fmt.Errorf("image host: upload rejected")
	}
	return decoded.Data.Link, nil
}
