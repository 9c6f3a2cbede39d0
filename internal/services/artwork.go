package services

import (
	"context"
	"fmt"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/desertthunder/tapedeck/internal/shared"
)

var imageExts = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
}

// ArtworkClient downloads cover images.
type ArtworkClient struct {
	api *APIClient
}

// NewArtworkClient creates a downloader. client defaults to [http.DefaultClient].
func NewArtworkClient(userAgent string, client *http.Client) *ArtworkClient {
	return &ArtworkClient{api: NewAPIClient("", userAgent, 0, client)}
}

// Fetch downloads imageURL to destBase plus an extension derived from the
// response content type and returns the written path.
func (a *ArtworkClient) Fetch(ctx context.Context, imageURL, destBase string) (string, error) {
	u, err := url.Parse(imageURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return "", fmt.Errorf("%w: artwork url %q", shared.ErrInvalidArgument, imageURL)
	}

	resp, err := a.api.Get(ctx, imageURL, nil)
	if err != nil {
		return "", err
	}
	if !resp.OK() {
		return "", statusErr(resp.StatusCode)
	}
	if len(resp.Body) == 0 {
		return "", fmt.Errorf("%w: empty artwork response", shared.ErrAPIRequest)
	}

	dest := destBase + imageExt(resp.Headers.Get("Content-Type"), u.Path, resp.Body)
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return "", fmt.Errorf("failed to create artwork folder: %w", err)
	}
	if err := os.WriteFile(dest, resp.Body, 0644); err != nil {
		return "", fmt.Errorf("failed to write artwork: %w", err)
	}
	return dest, nil
}

// imageExt picks an extension from the content type, then the url path, then by sniffing the body.
func imageExt(contentType, urlPath string, body []byte) string {
	if mt, _, err := mime.ParseMediaType(contentType); err == nil {
		if ext, ok := imageExts[mt]; ok {
			return ext
		}
	}
	switch ext := strings.ToLower(path.Ext(urlPath)); ext {
	case ".jpg", ".jpeg":
		return ".jpg"
	case ".png", ".webp":
		return ext
	}
	if ext, ok := imageExts[http.DetectContentType(body)]; ok {
		return ext
	}
	return ".jpg"
}
