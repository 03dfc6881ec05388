package services

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"projectnest/internal/config"
)

// AvatarStore keeps uploaded profile images and returns their public URL.
type AvatarStore interface {
	Upload(ctx context.Context, image []byte, filename string) (string, error)
}

type imgurResponse struct {
	Data struct {
		ID   string `json:"id"`
		Link string `json:"link"`
		Type string `json:"type"`
	} `json:"data"`
	Success bool `json:"success"`
	Status  int  `json:"status"`
}

// ImgurStore uploads to an Imgur-compatible image API.
type ImgurStore struct {
	uploadURL string
	clientID  string
	client    *http.Client
}

func NewImgurStore(cfg config.AvatarConfig) *ImgurStore {
	return &ImgurStore{
		uploadURL: cfg.UploadURL,
		clientID:  cfg.ClientID,
		client:    &http.Client{Timeout: 30 * time.Second},
	}
}

func (s *ImgurStore) Upload(ctx context.Context, image []byte, filename string) (string, error) {
	if s.clientID == "" || s.uploadURL == "" {
		return "", fmt.Errorf("avatar upload is not configured: %w", ErrUnavailable)
	}

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	if err := w.WriteField("image", base64.StdEncoding.EncodeToString(image)); err != nil {
		return "", fmt.Errorf("write upload body: %w", err)
	}
	if err := w.WriteField("type", "base64"); err != nil {
		return "", fmt.Errorf("write upload body: %w", err)
	}
	if err := w.WriteField("name", filename); err != nil {
		return "", fmt.Errorf("write upload body: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("write upload body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.uploadURL, &body)
	if err != nil {
		return "", fmt.Errorf("build upload request: %w", err)
	}
	req.Header.Set("Authorization", "Client-ID "+s.clientID)
	req.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("upload avatar: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read upload response: %w", err)
	}
	var out imgurResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("decode upload response (status %d): %w", resp.StatusCode, err)
	}
	if !out.Success || out.Data.Link == "" {
		return "", fmt.Errorf("avatar upload rejected: status %d", out.Status)
	}
	return out.Data.Link, nil
}
