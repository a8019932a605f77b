package codec

import (
	"context"
	"errors"

	"github.com/iksnae/ellipsis-codec/internal"
)

// LocalBackgroundRef is the background reference of a story whose background
// binary sits in the image store.
const LocalBackgroundRef = internal.LocalImagePrefix + "background"

// ImageSource looks up stored images by key.
type ImageSource interface {
	Get(ctx context.Context, key string) (*internal.StoredImage, error)
}

// RemoteFetcher downloads an image from a URL.
type RemoteFetcher interface {
	Fetch(ctx context.Context, ref string) (*internal.StoredImage, error)
}

// AssetResolver finds the images an export needs. Both collaborators are
// optional.
type AssetResolver struct {
	Store   ImageSource
	Fetcher RemoteFetcher
}

// Portrait resolves the portrait of c: first the image store under the
// character id, then the legacy remote image_url. It returns nil when neither
// yields an image. Lookup failures are logged, not returned; only a cancelled
// context is reported as an error.
func (r *AssetResolver) Portrait(ctx context.Context, c *internal.Character) (*internal.StoredImage, error) {
	if r == nil || c == nil {
		return nil, nil
	}
	if r.Store != nil {
		img, err := r.Store.Get(ctx, c.ID)
		switch {
		case err == nil && img != nil && len(img.Data) > 0:
			return img, nil
		case err != nil && !errors.Is(err, internal.ErrImageNotFound):
			internal.LogWarn("portrait lookup for %s failed: %v", c.ID, err)
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if r.Fetcher != nil && internal.IsRemoteImageURL(c.ImageURL) {
		img, err := r.Fetcher.Fetch(ctx, c.ImageURL)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			internal.LogWarn("portrait fetch for %s failed: %v", c.ID, err)
			return nil, nil
		}
		return img, nil
	}
	return nil, nil
}

// Background resolves the stored background of story. Only stories whose
// background reference points into the image store have one.
func (r *AssetResolver) Background(ctx context.Context, story *internal.Story) (*internal.StoredImage, error) {
	if r == nil || r.Store == nil || story == nil || story.BackgroundImageURL != LocalBackgroundRef {
		return nil, nil
	}
	img, err := r.Store.Get(ctx, internal.BackgroundImageKey(story.ID))
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if !errors.Is(err, internal.ErrImageNotFound) {
			internal.LogWarn("background lookup for story %s failed: %v", story.ID, err)
		}
		return nil, nil
	}
	return img, nil
}
