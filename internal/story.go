package internal

// Story is the canonical, lossless representation every external format is
// translated to and from.
type Story struct {
	ID                 string   `json:"id"`
	Name               string   `json:"name"`
	CreatedDate        string   `json:"created_date,omitempty"`
	LastModified       string   `json:"last_modified,omitempty"`
	Tags               []string `json:"tags"`
	CreatorNotes       string   `json:"creator_notes,omitempty"`
	BackgroundImageURL string   `json:"backgroundImageURL,omitempty"`

	PromptSettings

	Characters     []Character    `json:"characters"`
	DynamicEntries []DynamicEntry `json:"dynamic_entries"`
	Scenarios      []Scenario     `json:"scenarios"`
	Narratives     []Narrative    `json:"narratives"`

	Extra Extra `json:"-"`
}

// PromptSettings is the set of prompt and presentation settings a scenario
// snapshots at capture time.
type PromptSettings struct {
	SystemPrompt            string  `json:"system_prompt,omitempty"`
	EventMasterBasePrompt   string  `json:"event_master_base_prompt,omitempty"`
	EventMasterPrompt       string  `json:"event_master_prompt,omitempty"`
	PromptPersonaGen        string  `json:"prompt_persona_gen,omitempty"`
	PromptWorldMapGen       string  `json:"prompt_world_map_gen,omitempty"`
	PromptLocationGen       string  `json:"prompt_location_gen,omitempty"`
	PromptEntryGen          string  `json:"prompt_entry_gen,omitempty"`
	PromptLocationMemoryGen string  `json:"prompt_location_memory_gen,omitempty"`
	PromptStoryNotesGen     string  `json:"prompt_story_notes_gen,omitempty"`
	PromptStoryTagsGen      string  `json:"prompt_story_tags_gen,omitempty"`
	Font                    string  `json:"font,omitempty"`
	BubbleOpacity           float64 `json:"bubbleOpacity,omitempty"`
	ChatTextColor           string  `json:"chatTextColor,omitempty"`
}

// Character is a persona taking part in a story. Exactly one character per
// story is expected to carry IsUser.
type Character struct {
	ID                string          `json:"id"`
	Name              string          `json:"name"`
	Description       string          `json:"description"`
	ShortDescription  string          `json:"short_description"`
	ModelInstructions string          `json:"model_instructions"`
	Tags              []string        `json:"tags"`
	ImageURL          string          `json:"image_url"`
	ExtraPortraits    []string        `json:"extra_portraits,omitempty"`
	IsUser            bool            `json:"is_user"`
	IsActive          bool            `json:"is_active"`
	IsNarrator        bool            `json:"is_narrator"`
	Color             *CharacterColor `json:"color,omitempty"`

	Extra Extra `json:"-"`
}

// CharacterColor holds the chat bubble colors of a character.
type CharacterColor struct {
	Base string `json:"base"`
	Bold string `json:"bold"`
}

// DynamicEntry is a lore entry revealed when its triggers match.
type DynamicEntry struct {
	ID              string   `json:"id"`
	Title           string   `json:"title"`
	Triggers        string   `json:"triggers"`
	ContentFields   []string `json:"content_fields"`
	CurrentIndex    int      `json:"current_index"`
	TriggeredAtTurn *int     `json:"triggered_at_turn"`
}

// StaticEntry is a lore entry that is always part of the context.
type StaticEntry struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Content string `json:"content"`
}

// Scenario is an opening for a story together with the settings that were
// active when it was captured.
type Scenario struct {
	ID                 string         `json:"id"`
	Name               string         `json:"name"`
	Message            string         `json:"message"`
	ActiveCharacterIDs []string       `json:"active_character_ids"`
	DynamicEntries     []DynamicEntry `json:"dynamic_entries"`
	StaticEntries      []StaticEntry  `json:"static_entries"`
	ExampleDialogue    []ChatMessage  `json:"example_dialogue"`
	Prompts            PromptSettings `json:"prompts"`
	WorldMap           *WorldMap      `json:"worldMap,omitempty"`

	Extra Extra `json:"-"`
}

// Narrative is one play-through of a story. A narrative without State is a
// stub that only names a narrative stored elsewhere.
type Narrative struct {
	ID                 string          `json:"id"`
	Name               string          `json:"name"`
	LastModified       string          `json:"last_modified,omitempty"`
	ActiveCharacterIDs []string        `json:"active_character_ids,omitempty"`
	State              *NarrativeState `json:"state,omitempty"`

	Extra Extra `json:"-"`
}

// NarrativeState is the mutable part of a narrative.
type NarrativeState struct {
	ChatHistory    []ChatMessage `json:"chat_history"`
	MessageCounter int           `json:"messageCounter"`
	StaticEntries  []StaticEntry `json:"static_entries"`
	WorldMap       *WorldMap     `json:"worldMap,omitempty"`

	Extra Extra `json:"-"`
}

// Message types.
const (
	MessageTypeChat        = "chat"
	MessageTypeSystemEvent = "system_event"
	MessageTypeLoreReveal  = "lore_reveal"
)

// ChatMessage is a single turn of a chat history.
type ChatMessage struct {
	CharacterID string `json:"character_id"`
	Content     string `json:"content"`
	Type        string `json:"type"`
	IsHidden    bool   `json:"isHidden"`
	Emotion     string `json:"emotion,omitempty"`
	Timestamp   string `json:"timestamp,omitempty"`
}

// Coords addresses a cell of the world map.
type Coords struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// OptionalCoords is a map position that may be unset.
type OptionalCoords struct {
	X *int `json:"x"`
	Y *int `json:"y"`
}

// Location is one cell of the world map.
type Location struct {
	Coords             Coords        `json:"coords"`
	Name               string        `json:"name"`
	Description        string        `json:"description"`
	Prompt             string        `json:"prompt"`
	ImageURL           string        `json:"imageUrl"`
	LocalStaticEntries []StaticEntry `json:"local_static_entries"`
}

// WorldMap is the grid of locations a narrative moves through.
type WorldMap struct {
	Grid            []Location     `json:"grid"`
	CurrentLocation *Coords        `json:"currentLocation,omitempty"`
	Destination     OptionalCoords `json:"destination"`
	Path            []Coords       `json:"path"`
}

const (
	defaultGridSize = 8
	defaultGridMid  = 4
)

// NewWorldMap returns the default 8x8 map with the current location in the
// middle of the grid.
func NewWorldMap() *WorldMap {
	grid := make([]Location, 0, defaultGridSize*defaultGridSize)
	for y := 0; y < defaultGridSize; y++ {
		for x := 0; x < defaultGridSize; x++ {
			grid = append(grid, Location{
				Coords:             Coords{X: x, Y: y},
				LocalStaticEntries: []StaticEntry{},
			})
		}
	}
	return &WorldMap{
		Grid:            grid,
		CurrentLocation: &Coords{X: defaultGridMid, Y: defaultGridMid},
		Path:            []Coords{},
	}
}

// LocationAt returns the location at the given coordinates.
func (m *WorldMap) LocationAt(c Coords) (*Location, bool) {
	if m == nil {
		return nil, false
	}
	for i := range m.Grid {
		if m.Grid[i].Coords == c {
			return &m.Grid[i], true
		}
	}
	return nil, false
}

// DefaultPromptSettings returns the prompts a freshly created story carries.
func DefaultPromptSettings() PromptSettings {
	eventMaster := "You are a secret Event Master. Read the chat. Generate a brief, secret instruction for AI characters to introduce a logical but unexpected event."
	return PromptSettings{
		SystemPrompt:            "You are a master storyteller. Follow instructions precisely.",
		EventMasterBasePrompt:   eventMaster,
		EventMasterPrompt:       eventMaster,
		PromptPersonaGen:        "Embellish this character concept into a rich, detailed, and compelling persona description, focusing on detailed appearance, personality, goals, relationships, and backstory. CONCEPT: \"{concept}\"",
		PromptWorldMapGen:       "Based on the following story context, generate a genre-appropriate 8x8 grid of interconnected fantasy locations. The central location (4,4) should be a neutral starting point. Attempt to include locations mentioned in the context.\nCONTEXT:\nCHARACTERS:\n{characters}\n\nSTATIC LORE:\n{static}\n\nRECENT EVENTS:\n{recent}\n\nRespond with a valid JSON object: { \"grid\": [ { \"coords\": {\"x\":int, \"y\":int}, \"name\": \"string\", \"description\": \"string (one-line summary)\", \"prompt\": \"string (a rich, detailed paragraph for the AI)\", \"imageUrl\": \"\" } ] }. The grid must contain exactly 64 locations.",
		PromptLocationGen:       "Generate a rich, detailed, and evocative paragraph-long prompt for a fantasy location named '{name}' which is briefly described as '{description}'. This prompt will be given to an AI storyteller to describe the scene.",
		PromptEntryGen:          "Generate a detailed and informative encyclopedia-style entry for a lore topic titled '{title}'. If relevant, use the following triggers as context: '{triggers}'.",
		PromptLocationMemoryGen: "You are an archivist. Read the following chat transcript that occurred at a specific location. Summarize the key events, character developments, and important facts into a concise, single paragraph. This will serve as a memory for what happened at that location.\n\nTRANSCRIPT:\n{transcript}",
		PromptStoryNotesGen:     "Based on the following story context (characters, lore), generate a brief, 1-2 sentence creator's note or 'blurb' for this story to show in a library.\n\nCONTEXT:\n{context}",
		PromptStoryTagsGen:      "Based on the following story context (characters, lore), generate 3-5 relevant, one-word, comma-separated tags for this story (e.g., fantasy, sci-fi, mystery, horror, romance).\n\nCONTEXT:\n{context}",
		Font:                    "'Inter', sans-serif",
		BubbleOpacity:           0.85,
		ChatTextColor:           "#e5e7eb",
	}
}

// Normalize enforces the dynamic entry invariants: at least one content
// variant and a cursor inside the variant list.
func (e *DynamicEntry) Normalize() {
	if len(e.ContentFields) == 0 {
		e.ContentFields = []string{""}
	}
	if e.CurrentIndex < 0 {
		e.CurrentIndex = 0
	}
	if e.CurrentIndex > len(e.ContentFields)-1 {
		e.CurrentIndex = len(e.ContentFields) - 1
	}
}

// Content returns the variant the cursor currently points at.
func (e DynamicEntry) Content() string {
	e.Normalize()
	return e.ContentFields[e.CurrentIndex]
}

// FindCharacter returns the character with the given id.
func (s *Story) FindCharacter(id string) (*Character, bool) {
	for i := range s.Characters {
		if s.Characters[i].ID == id {
			return &s.Characters[i], true
		}
	}
	return nil, false
}

// UserCharacter returns the first user-role character of the story.
func (s *Story) UserCharacter() (*Character, bool) {
	for i := range s.Characters {
		if s.Characters[i].IsUser {
			return &s.Characters[i], true
		}
	}
	return nil, false
}

// DefaultPrimaryCharacter returns the first non-user character, the one
// exported when the caller makes no explicit choice.
func (s *Story) DefaultPrimaryCharacter() (*Character, bool) {
	for i := range s.Characters {
		if !s.Characters[i].IsUser {
			return &s.Characters[i], true
		}
	}
	return nil, false
}

// FindNarrative returns the narrative with the given id.
func (s *Story) FindNarrative(id string) (*Narrative, bool) {
	for i := range s.Narratives {
		if s.Narratives[i].ID == id {
			return &s.Narratives[i], true
		}
	}
	return nil, false
}

// Stubs returns the narratives reduced to their identifying fields, the form
// in which a story refers to separately stored narratives.
func (s *Story) Stubs() []Narrative {
	stubs := make([]Narrative, 0, len(s.Narratives))
	for _, n := range s.Narratives {
		stubs = append(stubs, Narrative{ID: n.ID, Name: n.Name, LastModified: n.LastModified})
	}
	return stubs
}

// HiddenExamples returns the hidden chat turns of a narrative in order.
func (st *NarrativeState) HiddenExamples() []ChatMessage {
	if st == nil {
		return nil
	}
	var out []ChatMessage
	for _, m := range st.ChatHistory {
		if m.IsHidden && m.Type == MessageTypeChat {
			out = append(out, m)
		}
	}
	return out
}

// FirstVisibleMessage returns the first visible chat turn of a narrative.
func (st *NarrativeState) FirstVisibleMessage() (ChatMessage, bool) {
	if st == nil {
		return ChatMessage{}, false
	}
	for _, m := range st.ChatHistory {
		if !m.IsHidden && m.Type == MessageTypeChat {
			return m, true
		}
	}
	return ChatMessage{}, false
}
