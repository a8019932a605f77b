package internal

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// LocalImagePrefix marks an image reference that points into the local image
// store rather than at a remote location.
const LocalImagePrefix = "local_idb_"

// IsRemoteImageURL reports whether ref is an http(s) URL worth fetching.
func IsRemoteImageURL(ref string) bool {
	if ref == "" || strings.HasPrefix(ref, LocalImagePrefix) {
		return false
	}
	u, err := url.Parse(ref)
	if err != nil {
		return false
	}
	return u.Scheme == "http" || u.Scheme == "https"
}

// ImageFetcher downloads legacy remote portraits.
type ImageFetcher struct {
	Client   *http.Client
	MaxBytes int64
}

// NewImageFetcher returns a fetcher with the given timeout and size cap.
func NewImageFetcher(timeout time.Duration, maxBytes int64) *ImageFetcher {
	return &ImageFetcher{
		Client:   &http.Client{Timeout: timeout},
		MaxBytes: maxBytes,
	}
}

// Fetch downloads the image at ref. The media type comes from the response
// Content-Type, or from the content itself when the header is missing or not
// an image type.
func (f *ImageFetcher) Fetch(ctx context.Context, ref string) (*StoredImage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref, nil)
	if err != nil {
		return nil, fmt.Errorf("invalid URL %s: %w", ref, err)
	}

	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("could not fetch image %s: %w", ref, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("could not fetch image %s: HTTP %d", ref, resp.StatusCode)
	}

	limit := f.MaxBytes
	if limit <= 0 {
		limit = 20 << 20
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, fmt.Errorf("could not read image %s: %w", ref, err)
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("image %s exceeds %d bytes", ref, limit)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("image %s is empty", ref)
	}

	mediaType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if !strings.HasPrefix(mediaType, "image/") {
		mediaType = DetectMediaType(data)
	}
	LogDebug("fetched %d bytes (%s) from %s", len(data), mediaType, ref)

	return &StoredImage{Key: ref, MediaType: mediaType, Data: data}, nil
}
