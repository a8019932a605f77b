package codec

import (
	"context"
	"testing"
	"time"

	"github.com/iksnae/ellipsis-codec/internal"
	"github.com/iksnae/ellipsis-codec/testutil"
)

var fixedNow = time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)

func testDeps(store ImageSource) Deps {
	return Deps{
		IDs:    &internal.SequenceGenerator{Prefix: "new"},
		Assets: &AssetResolver{Store: store},
		Now:    func() time.Time { return fixedNow },
	}
}

func newTestStore(t *testing.T) *internal.ImageStore {
	t.Helper()
	return internal.NewImageStore(testutil.CreateInMemoryDB(t))
}

func putImage(t *testing.T, store *internal.ImageStore, key string, data []byte, mediaType string) {
	t.Helper()
	if err := store.Put(context.Background(), key, data, mediaType); err != nil {
		t.Fatalf("Put(%s) error = %v", key, err)
	}
}

// sampleStory returns a story with a user, a primary character (c1), a
// second character (c2), two lore entries and a narrative (n1) with hidden
// examples, static entries and a world map with named locations.
func sampleStory() *internal.Story {
	worldMap := internal.NewWorldMap()
	town, _ := worldMap.LocationAt(internal.Coords{X: 1, Y: 0})
	town.Name = "Town"
	square, _ := worldMap.LocationAt(internal.Coords{X: 4, Y: 4})
	square.Name = "Square"
	square.Description = "Busy"
	square.Prompt = "Describe"
	square.LocalStaticEntries = []internal.StaticEntry{{ID: "l1", Title: "Well", Content: "Deep {character}"}}

	narrative := internal.Narrative{
		ID:                 "n1",
		Name:               "Night One",
		ActiveCharacterIDs: []string{"u1", "c1", "c2"},
		State: &internal.NarrativeState{
			ChatHistory: []internal.ChatMessage{
				{CharacterID: "u1", Content: "Hi", Type: internal.MessageTypeChat, IsHidden: true},
				{CharacterID: "c1", Content: "Hello {user}", Type: internal.MessageTypeChat, IsHidden: true},
				{CharacterID: "c2", Content: "Hey", Type: internal.MessageTypeChat, IsHidden: true},
				{CharacterID: "c1", Content: "Welcome, {user}.", Type: internal.MessageTypeChat},
				{CharacterID: "u1", Content: "Thanks", Type: internal.MessageTypeChat},
			},
			MessageCounter: 2,
			StaticEntries:  []internal.StaticEntry{{ID: "st1", Title: "Starting Scenario", Content: "A tavern at night."}},
			WorldMap:       worldMap,
		},
	}

	return &internal.Story{
		ID:             "s1",
		Name:           "Moonlit Tavern",
		Tags:           []string{"fantasy"},
		PromptSettings: internal.DefaultPromptSettings(),
		Characters: []internal.Character{
			{ID: "u1", Name: "You", Description: "The protagonist.", IsUser: true, IsActive: true},
			{ID: "c1", Name: "Aria", Description: "A bard of {character}'s guild. She sings.", ModelInstructions: "Act as {character}.", Tags: []string{"bard"}, IsActive: true},
			{ID: "c2", Name: "Bob", IsActive: true},
		},
		DynamicEntries: []internal.DynamicEntry{
			{ID: "d1", Title: "Castle", Triggers: "castle, keep", ContentFields: []string{"Old stones", "Home of {user}"}, CurrentIndex: 1},
			{ID: "d2", Title: "Moon", ContentFields: []string{"Bright"}},
		},
		Scenarios:  []internal.Scenario{},
		Narratives: []internal.Narrative{narrative},
	}
}

func narrativeOf(t *testing.T, story *internal.Story) *internal.NarrativeState {
	t.Helper()
	if len(story.Narratives) == 0 || story.Narratives[0].State == nil {
		t.Fatal("story has no narrative with state")
	}
	return story.Narratives[0].State
}
