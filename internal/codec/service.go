package codec

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/iksnae/ellipsis-codec/internal"
)

// ImageStore is where imported images are kept.
type ImageStore interface {
	ImageSource
	Put(ctx context.Context, key string, data []byte, mediaType string) error
	Delete(ctx context.Context, key string) error
}

// Service picks the codec for a file or format and moves images between the
// codecs and the image store.
type Service struct {
	deps     Deps
	store    ImageStore
	portrait internal.PortraitOptions
}

// NewService wires a service from the configuration. store may be nil, in
// which case imported images are only returned to the caller.
func NewService(cfg *internal.Config, store *internal.ImageStore) *Service {
	resolver := &AssetResolver{
		Fetcher: internal.NewImageFetcher(cfg.FetchTimeout, cfg.FetchMaxBytes),
	}
	s := &Service{
		portrait: internal.PortraitOptions{MaxHeight: cfg.MaxPortraitHeight, Quality: cfg.PortraitQuality},
	}
	if store != nil {
		resolver.Store = store
		s.store = store
	}
	s.deps = Deps{IDs: internal.UUIDGenerator{}, Assets: resolver, Now: time.Now}.withDefaults()
	return s
}

// NewServiceWithDeps builds a service from explicit collaborators.
func NewServiceWithDeps(deps Deps, store ImageStore, portrait internal.PortraitOptions) *Service {
	return &Service{deps: deps.withDefaults(), store: store, portrait: portrait}
}

// Import reads r, parses it with the codec matching filename's extension and
// stores the images found alongside the story. Stored images are referenced
// from the story through local image refs.
func (s *Service) Import(ctx context.Context, filename string, r io.Reader, opts ImportOptions) (*ImportResult, error) {
	format, err := FormatForFilename(filename)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", filename, err)
	}

	codec, err := NewCodec(format, s.deps)
	if err != nil {
		return nil, err
	}
	if opts.Portrait == (internal.PortraitOptions{}) {
		opts.Portrait = s.portrait
	}
	res, err := codec.Parse(ctx, raw, opts)
	if err != nil {
		return nil, err
	}

	if s.store != nil {
		if err := s.storeImages(ctx, res); err != nil {
			return nil, err
		}
	}
	internal.LogInfo("imported %s as %s story %q (%d characters)", filename, format, res.Story.Name, len(res.Story.Characters))
	return res, nil
}

// storeImages puts the imported portrait and background into the store.
// When a put fails, keys already written by this import are removed again so
// a failed import leaves nothing behind.
func (s *Service) storeImages(ctx context.Context, res *ImportResult) error {
	type pending struct {
		key string
		img *internal.StoredImage
	}
	var puts []pending
	if res.Portrait != nil {
		puts = append(puts, pending{res.PrimaryCharacterID, res.Portrait})
	}
	if res.Background != nil {
		puts = append(puts, pending{internal.BackgroundImageKey(res.Story.ID), res.Background})
	}

	for i, p := range puts {
		if err := s.store.Put(ctx, p.key, p.img.Data, p.img.MediaType); err != nil {
			for _, done := range puts[:i] {
				// the import's context may already be cancelled
				if delErr := s.store.Delete(context.WithoutCancel(ctx), done.key); delErr != nil {
					internal.LogWarn("failed to remove %s after failed import: %v", done.key, delErr)
				}
			}
			return err
		}
	}

	if res.Portrait != nil {
		if c, ok := res.Story.FindCharacter(res.PrimaryCharacterID); ok {
			c.ImageURL = internal.LocalImagePrefix + c.ID
		}
	}
	if res.Background != nil {
		res.Story.BackgroundImageURL = LocalBackgroundRef
	}
	return nil
}

// Export serializes story in format. A nil narrative selects the first
// narrative of the story that carries state; an empty primaryID selects the
// first non-user character.
func (s *Service) Export(ctx context.Context, format Format, story *internal.Story, narrative *internal.Narrative, primaryID string) (*ExportResult, error) {
	if story == nil {
		return nil, internal.NewFormatError("export", "no story given")
	}
	if narrative == nil {
		for i := range story.Narratives {
			if story.Narratives[i].State != nil {
				narrative = &story.Narratives[i]
				break
			}
		}
	}

	codec, err := NewCodec(format, s.deps)
	if err != nil {
		return nil, err
	}
	res, err := codec.Serialize(ctx, ExportRequest{Story: story, Narrative: narrative, PrimaryCharacterID: primaryID})
	if err != nil {
		return nil, err
	}
	internal.LogInfo("exported story %q as %s (%d bytes)", story.Name, format, len(res.Data))
	return res, nil
}
