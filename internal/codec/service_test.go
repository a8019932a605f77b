package codec

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/iksnae/ellipsis-codec/internal"
	"github.com/iksnae/ellipsis-codec/internal/pngmeta"
	"github.com/iksnae/ellipsis-codec/testutil"
)

func newTestService(t *testing.T, store *internal.ImageStore, fetcher RemoteFetcher) *Service {
	t.Helper()
	deps := testDeps(nil)
	var s ImageStore
	if store != nil {
		deps = testDeps(store)
		s = store
	}
	deps.Assets.Fetcher = fetcher
	return NewServiceWithDeps(deps, s, internal.DefaultPortraitOptions())
}

func TestService_ImportStoresImages(t *testing.T) {
	store := newTestStore(t)
	svc := newTestService(t, store, nil)
	raw := testutil.CardPNG(t, v2Card(map[string]interface{}{"name": "Aria", "first_mes": "Hi"}))

	res, err := svc.Import(context.Background(), "aria.png", bytes.NewReader(raw), ImportOptions{})
	if err != nil {
		t.Fatalf("Import() error = %v", err)
	}
	if res.Format != FormatCard {
		t.Errorf("Format = %v, want card", res.Format)
	}

	primary, ok := res.Story.FindCharacter(res.PrimaryCharacterID)
	if !ok {
		t.Fatal("primary character not in story")
	}
	if primary.ImageURL != internal.LocalImagePrefix+primary.ID {
		t.Errorf("ImageURL = %q, want local ref", primary.ImageURL)
	}
	img, err := store.Get(context.Background(), primary.ID)
	if err != nil {
		t.Fatalf("store.Get() error = %v", err)
	}
	if img.MediaType != internal.MediaTypeJPEG {
		t.Errorf("stored MediaType = %q, want image/jpeg", img.MediaType)
	}
}

func TestService_ImportBackground(t *testing.T) {
	store := newTestStore(t)
	svc := newTestService(t, store, nil)
	raw := testutil.ZipFixture(t, map[string][]byte{
		"characters/a/character.json": testutil.MustJSON(t, map[string]string{"name": "Aria"}),
		"scenarios/scenario1.json":    testutil.MustJSON(t, map[string]string{"narrative": "Night"}),
		"images/story_background.png": testutil.PNGFixture(t, 8, 4),
	})

	res, err := svc.Import(context.Background(), "bundle.byaf", bytes.NewReader(raw), ImportOptions{})
	if err != nil {
		t.Fatalf("Import() error = %v", err)
	}
	if res.Story.BackgroundImageURL != LocalBackgroundRef {
		t.Errorf("BackgroundImageURL = %q, want %q", res.Story.BackgroundImageURL, LocalBackgroundRef)
	}
	if _, err := store.Get(context.Background(), internal.BackgroundImageKey(res.Story.ID)); err != nil {
		t.Errorf("background not stored: %v", err)
	}
	if res.Portrait != nil {
		t.Error("background was taken for the portrait")
	}
}

// failingStore is an in-memory image store whose puts fail for keys with the
// given prefix.
type failingStore struct {
	failPrefix string
	images     map[string]*internal.StoredImage
}

func (f *failingStore) Get(_ context.Context, key string) (*internal.StoredImage, error) {
	img, ok := f.images[key]
	if !ok {
		return nil, internal.ErrImageNotFound
	}
	return img, nil
}

func (f *failingStore) Put(_ context.Context, key string, data []byte, mediaType string) error {
	if strings.HasPrefix(key, f.failPrefix) {
		return errors.New("disk full")
	}
	f.images[key] = &internal.StoredImage{Key: key, Data: data, MediaType: mediaType}
	return nil
}

func (f *failingStore) Delete(_ context.Context, key string) error {
	delete(f.images, key)
	return nil
}

func (f *failingStore) keys() []string {
	keys := make([]string, 0, len(f.images))
	for k := range f.images {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func TestService_ImportRollsBackImages(t *testing.T) {
	raw := testutil.ZipFixture(t, map[string][]byte{
		"characters/a/character.json":  testutil.MustJSON(t, map[string]string{"name": "Aria"}),
		"characters/a/images/aria.png": testutil.PNGFixture(t, 4, 4),
		"scenarios/scenario1.json":     testutil.MustJSON(t, map[string]string{"narrative": "Night"}),
		"images/story_background.png":  testutil.PNGFixture(t, 8, 4),
	})

	tests := []struct {
		name       string
		failPrefix string
		wantErr    bool
		wantKeys   int
	}{
		{"background put fails", "bg_", true, 0},
		{"portrait put fails", "new-", true, 0},
		{"all puts succeed", "none", false, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &failingStore{failPrefix: tt.failPrefix, images: map[string]*internal.StoredImage{}}
			svc := NewServiceWithDeps(testDeps(store), store, internal.DefaultPortraitOptions())

			res, err := svc.Import(context.Background(), "bundle.byaf", bytes.NewReader(raw), ImportOptions{})
			if (err != nil) != tt.wantErr {
				t.Fatalf("Import() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got := store.keys(); len(got) != tt.wantKeys {
				t.Errorf("keys left in store = %v, want %d", got, tt.wantKeys)
			}
			if err == nil && res.Story.BackgroundImageURL != LocalBackgroundRef {
				t.Errorf("BackgroundImageURL = %q, want %q", res.Story.BackgroundImageURL, LocalBackgroundRef)
			}
		})
	}
}

func TestService_ImportErrors(t *testing.T) {
	svc := newTestService(t, nil, nil)

	_, err := svc.Import(context.Background(), "notes.txt", bytes.NewReader(nil), ImportOptions{})
	var formatErr *internal.FormatError
	if !errors.As(err, &formatErr) {
		t.Errorf("Import(.txt) error = %v, want *FormatError", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := svc.Import(ctx, "a.json", bytes.NewReader([]byte("{}")), ImportOptions{}); !errors.Is(err, context.Canceled) {
		t.Errorf("Import() with cancelled context error = %v, want context.Canceled", err)
	}
}

func TestService_ExportThroughStore(t *testing.T) {
	store := newTestStore(t)
	svc := newTestService(t, store, nil)
	raw := testutil.CardPNG(t, v2Card(map[string]interface{}{"name": "Aria", "first_mes": "Hello {{user}}"}))

	res, err := svc.Import(context.Background(), "aria.png", bytes.NewReader(raw), ImportOptions{})
	if err != nil {
		t.Fatalf("Import() error = %v", err)
	}

	out, err := svc.Export(context.Background(), FormatCard, res.Story, nil, "")
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	payload, ok, err := pngmeta.ReadChara(out.Data)
	if err != nil || !ok {
		t.Fatalf("ReadChara() = %v, %v", ok, err)
	}
	var card cardV2
	if err := pngmeta.DecodePayload(payload, &card); err != nil {
		t.Fatalf("DecodePayload() error = %v", err)
	}
	if card.Data.Name != "Aria" || card.Data.FirstMes != "Hello {{user}}" {
		t.Errorf("card = %q %q", card.Data.Name, card.Data.FirstMes)
	}
}

func TestService_ExportRemotePortrait(t *testing.T) {
	portrait := testutil.JPEGFixture(t, 4, 4)
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "image/jpeg")
		w.Write(portrait)
	}))
	defer srv.Close()

	story := sampleStory()
	story.Characters[1].ImageURL = srv.URL + "/aria.jpg"
	svc := newTestService(t, nil, internal.NewImageFetcher(5*time.Second, 1<<20))

	out, err := svc.Export(context.Background(), FormatArchive, story, nil, "c1")
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	if hits.Load() != 1 {
		t.Errorf("remote hits = %d, want 1", hits.Load())
	}
	files := readZip(t, out.Data)
	if _, ok := files["characters/c1/images/c1.jpg"]; !ok {
		t.Error("archive is missing the fetched portrait")
	}
}

func TestAssetResolver_StoreBeforeRemote(t *testing.T) {
	remote := testutil.PNGFixture(t, 2, 2)
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Write(remote)
	}))
	defer srv.Close()

	store := newTestStore(t)
	putImage(t, store, "c1", []byte("stored"), internal.MediaTypePNG)
	resolver := &AssetResolver{Store: store, Fetcher: internal.NewImageFetcher(5*time.Second, 1<<20)}

	tests := []struct {
		name     string
		char     internal.Character
		wantData string
		wantNil  bool
		wantHits int32
	}{
		{"stored wins", internal.Character{ID: "c1", ImageURL: srv.URL}, "stored", false, 0},
		{"remote fallback", internal.Character{ID: "c2", ImageURL: srv.URL}, "", false, 1},
		{"local ref not fetched", internal.Character{ID: "c3", ImageURL: "local_idb_c3"}, "", true, 1},
		{"failing remote", internal.Character{ID: "c4", ImageURL: "http://127.0.0.1:1/none.png"}, "", true, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img, err := resolver.Portrait(context.Background(), &tt.char)
			if err != nil {
				t.Fatalf("Portrait() error = %v", err)
			}
			if (img == nil) != tt.wantNil {
				t.Fatalf("Portrait() = %v, wantNil %v", img, tt.wantNil)
			}
			if tt.wantData != "" && string(img.Data) != tt.wantData {
				t.Errorf("Portrait().Data = %q, want %q", img.Data, tt.wantData)
			}
			if got := hits.Load(); got != tt.wantHits {
				t.Errorf("remote hits = %d, want %d", got, tt.wantHits)
			}
		})
	}
}

// nilStore reports a miss as (nil, nil).
type nilStore struct{}

func (nilStore) Get(context.Context, string) (*internal.StoredImage, error) { return nil, nil }

func TestAssetResolver_NilImageIsMiss(t *testing.T) {
	resolver := &AssetResolver{Store: nilStore{}}
	img, err := resolver.Portrait(context.Background(), &internal.Character{ID: "c1"})
	if err != nil || img != nil {
		t.Errorf("Portrait() = %v, %v, want nil, nil", img, err)
	}
}

func TestAssetResolver_Background(t *testing.T) {
	store := newTestStore(t)
	putImage(t, store, internal.BackgroundImageKey("s1"), []byte("bg"), internal.MediaTypePNG)
	resolver := &AssetResolver{Store: store}

	story := &internal.Story{ID: "s1"}
	if img, _ := resolver.Background(context.Background(), story); img != nil {
		t.Error("Background() returned an image for a story without a local background ref")
	}
	story.BackgroundImageURL = LocalBackgroundRef
	img, err := resolver.Background(context.Background(), story)
	if err != nil || img == nil || string(img.Data) != "bg" {
		t.Errorf("Background() = %v, %v, want stored background", img, err)
	}
}
