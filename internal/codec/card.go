package codec

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/iksnae/ellipsis-codec/internal"
	"github.com/iksnae/ellipsis-codec/internal/pngmeta"
)

const (
	cardSpec        = "chara_card_v2"
	cardSpecVersion = "2.0"

	cardScanDepth   = 100
	cardTokenBudget = 2048
)

// cardV2 is the envelope of a V2 character card.
type cardV2 struct {
	Spec        string   `json:"spec"`
	SpecVersion string   `json:"spec_version"`
	Data        cardData `json:"data"`
}

type cardData struct {
	Name                    string         `json:"name"`
	Description             string         `json:"description"`
	Personality             string         `json:"personality"`
	Scenario                string         `json:"scenario"`
	FirstMes                string         `json:"first_mes"`
	MesExample              string         `json:"mes_example"`
	CreatorNotes            string         `json:"creator_notes"`
	SystemPrompt            string         `json:"system_prompt"`
	PostHistoryInstructions string         `json:"post_history_instructions"`
	AlternateGreetings      []string       `json:"alternate_greetings"`
	CharacterBook           *characterBook `json:"character_book,omitempty"`
	Tags                    []string       `json:"tags"`
	Creator                 string         `json:"creator"`
	CharacterVersion        string         `json:"character_version"`
	Extensions              map[string]any `json:"extensions"`
}

type characterBook struct {
	Name              string         `json:"name"`
	Description       string         `json:"description"`
	ScanDepth         int            `json:"scan_depth"`
	TokenBudget       int            `json:"token_budget"`
	RecursiveScanning bool           `json:"recursive_scanning"`
	Extensions        map[string]any `json:"extensions"`
	Entries           []bookEntry    `json:"entries"`
}

type bookEntry struct {
	Keys           []string       `json:"keys"`
	Content        string         `json:"content"`
	Enabled        bool           `json:"enabled"`
	InsertionOrder int            `json:"insertion_order"`
	Extensions     map[string]any `json:"extensions"`
	CaseSensitive  bool           `json:"case_sensitive"`
}

// CardCodec reads and writes V2 character cards embedded in PNG images.
type CardCodec struct {
	deps Deps
}

// Format returns FormatCard
func (c *CardCodec) Format() Format {
	return FormatCard
}

// Parse extracts the card from the PNG chara chunk and builds a story from
// it. The PNG itself becomes the portrait of the imported character.
func (c *CardCodec) Parse(ctx context.Context, raw []byte, opts ImportOptions) (*ImportResult, error) {
	payload, ok, err := pngmeta.ReadChara(raw)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, internal.NewFormatError("import", "no character data found in PNG file")
	}
	card, err := decodeCard(payload)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	story, primaryID := c.toStory(card)
	result := &ImportResult{Story: story, Format: FormatCard, PrimaryCharacterID: primaryID}
	if !opts.SkipImages {
		result.Portrait = processImage(primaryID, raw, opts)
	}
	internal.LogDebug("card %q: %d lore entries, %d scenarios", story.Name, len(story.DynamicEntries), len(story.Scenarios))
	return result, nil
}

// decodeCard accepts both the V2 envelope and bare V1 card data.
func decodeCard(payload string) (*cardData, error) {
	var doc json.RawMessage
	if err := pngmeta.DecodePayload(payload, &doc); err != nil {
		return nil, err
	}
	var env struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(doc, &env); err != nil {
		return nil, &internal.ParseError{Source: "card", Key: pngmeta.CharaKeyword, Err: err}
	}
	body := []byte(doc)
	if d := bytes.TrimSpace(env.Data); len(d) > 0 && d[0] == '{' {
		body = d
	}
	var card cardData
	if err := json.Unmarshal(body, &card); err != nil {
		return nil, &internal.ParseError{Source: "card", Key: "data", Err: err}
	}
	return &card, nil
}

func (c *CardCodec) toStory(card *cardData) (*internal.Story, string) {
	b := newBuilder(c.deps)
	name := orDefault(card.Name, defaultStoryName)

	story := b.story(name)
	story.Tags = append([]string{}, card.Tags...)
	story.CreatorNotes = card.CreatorNotes

	persona := card.Description
	if p := strings.TrimSpace(card.Personality); p != "" {
		if persona != "" {
			persona += "\n\n"
		}
		persona += p
	}
	user := b.user("The main character.", "Write a response for {user} in a creative and descriptive style.")
	ai := b.character(name,
		internal.ToInternal(persona),
		shortDescription(card.Description),
		internal.ToInternal(orDefault(card.SystemPrompt, "Act as {character}. Be descriptive and engaging.")),
		append([]string{}, card.Tags...),
	)
	story.Characters = []internal.Character{user, ai}
	active := []string{user.ID, ai.ID}

	if card.CharacterBook != nil {
		for _, entry := range card.CharacterBook.Entries {
			keys := strings.Join(entry.Keys, ", ")
			story.DynamicEntries = append(story.DynamicEntries,
				b.lore(orDefault(keys, "Imported Lore"), keys, internal.ToInternal(entry.Content)))
		}
	}

	var examples []internal.ChatMessage
	for _, turn := range internal.SegmentDialogue(card.MesExample) {
		speaker := ai.ID
		if turn.Speaker == internal.SpeakerUser {
			speaker = user.ID
		}
		examples = append(examples, b.message(speaker, internal.ToInternal(turn.Text), true, ""))
	}

	var statics []internal.StaticEntry
	if s := strings.TrimSpace(card.Scenario); s != "" {
		statics = append(statics, internal.StaticEntry{ID: b.ids.NewID(), Title: startingScenario, Content: internal.ToInternal(s)})
	}

	greetings := append([]string{orDefault(card.FirstMes, defaultOpening(name))}, card.AlternateGreetings...)
	for i, greeting := range greetings {
		scenarioName := importedStart
		if i > 0 {
			scenarioName = fmt.Sprintf("Alternate Start %d", i)
		}
		story.Scenarios = append(story.Scenarios, internal.Scenario{
			ID:                 b.ids.NewID(),
			Name:               scenarioName,
			Message:            internal.ToInternal(greeting),
			ActiveCharacterIDs: append([]string(nil), active...),
			DynamicEntries:     cloneEntries(story.DynamicEntries),
			StaticEntries:      cloneStatic(statics),
			ExampleDialogue:    cloneMessages(examples),
			Prompts:            story.PromptSettings,
			WorldMap:           internal.NewWorldMap(),
		})
	}

	narrative := b.narrative(importedChatName, active)
	narrative.State.ChatHistory = cloneMessages(examples)
	narrative.State.StaticEntries = cloneStatic(statics)
	if opening := story.Scenarios[0].Message; opening != "" {
		narrative.State.ChatHistory = append(narrative.State.ChatHistory, b.message(ai.ID, opening, false, ""))
		narrative.State.MessageCounter = 1
	}
	story.Narratives = append(story.Narratives, narrative)

	return story, ai.ID
}

// Serialize renders the primary character as a card and embeds it in the
// character's portrait.
func (c *CardCodec) Serialize(ctx context.Context, req ExportRequest) (*ExportResult, error) {
	primary, err := resolvePrimary(req.Story, req.PrimaryCharacterID)
	if err != nil {
		return nil, err
	}

	img, err := c.deps.Assets.Portrait(ctx, primary)
	if err != nil {
		return nil, err
	}
	if img == nil {
		return nil, &internal.MissingAssetError{CharacterID: primary.ID, Format: FormatCard.String()}
	}
	pngData, err := internal.ConvertToPNG(img.Data)
	if err != nil {
		return nil, &internal.MissingAssetError{CharacterID: primary.ID, Format: FormatCard.String(), Err: err}
	}
	pngData, err = pngmeta.StripChara(pngData)
	if err != nil {
		return nil, err
	}

	card := buildCard(req.Story, req.Narrative, primary)
	out, err := pngmeta.WriteChara(pngData, card)
	if err != nil {
		return nil, err
	}
	return &ExportResult{
		Data:      out,
		Filename:  ExportFilename(req.Story.Name, FormatCard),
		MediaType: FormatCard.MediaType(),
	}, nil
}

func buildCard(story *internal.Story, narrative *internal.Narrative, primary *internal.Character) *cardV2 {
	state := exportState(narrative)

	active := characterIDs(story.Characters)
	if narrative != nil && len(narrative.ActiveCharacterIDs) > 0 {
		active = narrative.ActiveCharacterIDs
	}
	isActive := make(map[string]bool, len(active))
	for _, id := range active {
		isActive[id] = true
	}

	var desc strings.Builder
	desc.WriteString(primary.Description)
	others := 0
	for _, ch := range story.Characters {
		if ch.IsUser || ch.ID == primary.ID || !isActive[ch.ID] {
			continue
		}
		if others == 0 {
			desc.WriteString("\n\n--- Other Characters ---\n")
		}
		others++
		fmt.Fprintf(&desc, "\nName: %s\nDescription: %s\n",
			orDefault(ch.Name, "Unnamed Character"), orDefault(ch.Description, "(No description)"))
	}

	var turns []internal.DialogueTurn
	for _, m := range state.HiddenExamples() {
		turn := internal.DialogueTurn{Speaker: internal.SpeakerNamed, Text: internal.ToExternal(m.Content)}
		if speaker, ok := story.FindCharacter(m.CharacterID); ok {
			turn.Speaker = internal.SpeakerCharacter
			if speaker.IsUser {
				turn.Speaker = internal.SpeakerUser
			}
		}
		turns = append(turns, turn)
	}

	firstMes := defaultOpening(primary.Name)
	if m, ok := state.FirstVisibleMessage(); ok {
		firstMes = m.Content
	}

	scenes := make([]string, 0, len(state.StaticEntries))
	for _, e := range state.StaticEntries {
		scenes = append(scenes, fmt.Sprintf("[%s]\n%s", orDefault(e.Title, "Untitled Entry"), orDefault(e.Content, "(No content)")))
	}

	return &cardV2{
		Spec:        cardSpec,
		SpecVersion: cardSpecVersion,
		Data: cardData{
			Name:               primary.Name,
			Description:        internal.ToExternal(desc.String()),
			Scenario:           internal.ToExternal(strings.Join(scenes, "\n\n---\n\n")),
			FirstMes:           internal.ToExternal(firstMes),
			MesExample:         internal.RenderCardDialogue(turns),
			CreatorNotes:       story.CreatorNotes,
			SystemPrompt:       internal.ToExternal(primary.ModelInstructions),
			AlternateGreetings: []string{},
			CharacterBook: &characterBook{
				ScanDepth:   cardScanDepth,
				TokenBudget: cardTokenBudget,
				Extensions:  map[string]any{},
				Entries:     cardLore(story, state),
			},
			Tags:       append([]string{}, primary.Tags...),
			Extensions: map[string]any{},
		},
	}
}

// cardLore merges the lore sources in a fixed order: story dynamic entries,
// named world map locations, then the local entries of the current location.
// insertion_order follows that order from 0.
func cardLore(story *internal.Story, state *internal.NarrativeState) []bookEntry {
	entries := []bookEntry{}
	add := func(keys []string, content string) {
		entries = append(entries, bookEntry{
			Keys:           keys,
			Content:        internal.ToExternal(content),
			Enabled:        true,
			InsertionOrder: len(entries),
			Extensions:     map[string]any{},
		})
	}

	for _, e := range story.DynamicEntries {
		add(splitTriggers(orDefault(e.Triggers, e.Title)), e.Content())
	}
	for _, loc := range namedLocations(state.WorldMap) {
		add([]string{loc.Name}, fmt.Sprintf("Location Description: %s\n\nLocation Prompt: %s",
			orDefault(loc.Description, "(No description)"), orDefault(loc.Prompt, "(No prompt)")))
	}
	if m := state.WorldMap; m != nil && m.CurrentLocation != nil {
		if loc, ok := m.LocationAt(*m.CurrentLocation); ok {
			for _, e := range loc.LocalStaticEntries {
				add([]string{strings.ToLower(orDefault(e.Title, "Local Lore"))}, e.Content)
			}
		}
	}
	return entries
}

func splitTriggers(spec string) []string {
	keys := []string{}
	for _, k := range strings.Split(spec, ",") {
		if k = strings.TrimSpace(k); k != "" {
			keys = append(keys, k)
		}
	}
	return keys
}

// processImage normalizes an imported image. Images that cannot be decoded
// are dropped with a warning.
func processImage(key string, data []byte, opts ImportOptions) *internal.StoredImage {
	if len(data) == 0 {
		return nil
	}
	popts := opts.Portrait
	if popts == (internal.PortraitOptions{}) {
		popts = internal.DefaultPortraitOptions()
	}
	out, mediaType, err := internal.ProcessPortrait(data, popts)
	if err != nil {
		internal.LogWarn("skipping image %s: %v", key, err)
		return nil
	}
	return &internal.StoredImage{Key: key, MediaType: mediaType, Data: out}
}
