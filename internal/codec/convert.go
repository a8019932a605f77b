package codec

import (
	"strings"
	"time"

	"github.com/iksnae/ellipsis-codec/internal"
)

const (
	defaultStoryName = "Imported Character"
	importedChatName = "Imported Chat"
	importedStart    = "Imported Start"
	startingScenario = "Starting Scenario"
	userName         = "You"
	userDescription  = "The protagonist."
)

// builder assembles a fresh story. Every id it hands out comes from ids and
// every timestamp from now.
type builder struct {
	ids internal.IDGenerator
	now time.Time
}

func newBuilder(deps Deps) *builder {
	return &builder{ids: deps.IDs, now: deps.Now()}
}

func (b *builder) stamp() string {
	return timestamp(b.now)
}

func (b *builder) story(name string) *internal.Story {
	return &internal.Story{
		ID:             b.ids.NewID(),
		Name:           name,
		CreatedDate:    b.stamp(),
		LastModified:   b.stamp(),
		Tags:           []string{},
		PromptSettings: internal.DefaultPromptSettings(),
		Characters:     []internal.Character{},
		DynamicEntries: []internal.DynamicEntry{},
		Scenarios:      []internal.Scenario{},
		Narratives:     []internal.Narrative{},
	}
}

func (b *builder) user(shortDescription, instructions string) internal.Character {
	return internal.Character{
		ID:                b.ids.NewID(),
		Name:              userName,
		Description:       userDescription,
		ShortDescription:  shortDescription,
		ModelInstructions: instructions,
		Tags:              []string{},
		IsUser:            true,
		IsActive:          true,
	}
}

func (b *builder) character(name, description, shortDescription, instructions string, tags []string) internal.Character {
	if tags == nil {
		tags = []string{}
	}
	return internal.Character{
		ID:                b.ids.NewID(),
		Name:              name,
		Description:       description,
		ShortDescription:  shortDescription,
		ModelInstructions: instructions,
		Tags:              tags,
		ExtraPortraits:    []string{},
		IsActive:          true,
	}
}

func (b *builder) lore(title, triggers, content string) internal.DynamicEntry {
	return internal.DynamicEntry{
		ID:            b.ids.NewID(),
		Title:         title,
		Triggers:      triggers,
		ContentFields: []string{content},
	}
}

func (b *builder) message(characterID, content string, hidden bool, emotion string) internal.ChatMessage {
	return internal.ChatMessage{
		CharacterID: characterID,
		Content:     content,
		Type:        internal.MessageTypeChat,
		IsHidden:    hidden,
		Emotion:     emotion,
		Timestamp:   b.stamp(),
	}
}

func (b *builder) narrative(name string, activeIDs []string) internal.Narrative {
	return internal.Narrative{
		ID:                 b.ids.NewID(),
		Name:               name,
		LastModified:       b.stamp(),
		ActiveCharacterIDs: append([]string(nil), activeIDs...),
		State: &internal.NarrativeState{
			ChatHistory:   []internal.ChatMessage{},
			StaticEntries: []internal.StaticEntry{},
			WorldMap:      internal.NewWorldMap(),
		},
	}
}

// ensureUser appends the default user character when the story has none.
func (b *builder) ensureUser(story *internal.Story) {
	if _, ok := story.UserCharacter(); ok {
		return
	}
	story.Characters = append([]internal.Character{b.user("The main character.", "Write a response for {user} in a creative and descriptive style.")}, story.Characters...)
	internal.LogDebug("story %s had no user character, added %q", story.ID, userName)
}

// shortDescription is the first sentence of a persona.
func shortDescription(persona string) string {
	first, _, _ := strings.Cut(persona, ".")
	first = strings.TrimSpace(first)
	if first == "" {
		return ""
	}
	return first + "."
}

func defaultOpening(name string) string {
	return "The story of " + name + " begins."
}

func characterIDs(chars []internal.Character) []string {
	ids := make([]string, 0, len(chars))
	for _, c := range chars {
		ids = append(ids, c.ID)
	}
	return ids
}

func cloneEntries(entries []internal.DynamicEntry) []internal.DynamicEntry {
	out := make([]internal.DynamicEntry, len(entries))
	for i, e := range entries {
		e.ContentFields = append([]string(nil), e.ContentFields...)
		if e.TriggeredAtTurn != nil {
			turn := *e.TriggeredAtTurn
			e.TriggeredAtTurn = &turn
		}
		out[i] = e
	}
	return out
}

func cloneMessages(msgs []internal.ChatMessage) []internal.ChatMessage {
	return append([]internal.ChatMessage{}, msgs...)
}

func cloneStatic(entries []internal.StaticEntry) []internal.StaticEntry {
	return append([]internal.StaticEntry{}, entries...)
}

// exportState returns the narrative state an export reads from, falling back
// to an empty state for stubs.
func exportState(n *internal.Narrative) *internal.NarrativeState {
	if n == nil || n.State == nil {
		return &internal.NarrativeState{}
	}
	return n.State
}

// resolvePrimary finds the exported character. An empty id selects the
// story's default primary.
func resolvePrimary(story *internal.Story, id string) (*internal.Character, error) {
	if story == nil {
		return nil, internal.NewFormatError("export", "no story given")
	}
	if id == "" {
		if c, ok := story.DefaultPrimaryCharacter(); ok {
			return c, nil
		}
		return nil, ErrNoPrimaryCharacter
	}
	c, ok := story.FindCharacter(id)
	if !ok {
		return nil, ErrNoPrimaryCharacter
	}
	return c, nil
}

// namedLocations returns the world map cells that carry a name, in grid order.
func namedLocations(m *internal.WorldMap) []internal.Location {
	if m == nil {
		return nil
	}
	var out []internal.Location
	for _, loc := range m.Grid {
		if loc.Name != "" {
			out = append(out, loc)
		}
	}
	return out
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
