package codec

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path"
	"regexp"
	"strings"

	"github.com/iksnae/ellipsis-codec/internal"
)

const (
	archiveSchemaVersion = 1
	archiveScenarioPath  = "scenarios/scenario1.json"
	archiveManifestPath  = "manifest.json"
	archiveBackground    = "images/story_background.png"
)

var (
	scenarioMemberRe  = regexp.MustCompile(`(?i)scenario\d*\.json$`)
	characterMemberRe = regexp.MustCompile(`(?i)character\.json$`)
)

type archiveManifest struct {
	SchemaVersion int      `json:"schemaVersion"`
	CreatedAt     string   `json:"createdAt"`
	Characters    []string `json:"characters"`
	Scenarios     []string `json:"scenarios"`
}

type archiveImage struct {
	Path  string `json:"path"`
	Label string `json:"label"`
}

type archiveLore struct {
	ID        string `json:"id"`
	Order     string `json:"order"`
	Key       string `json:"key"`
	Value     string `json:"value"`
	CreatedAt string `json:"createdAt"`
	UpdatedAt string `json:"updatedAt"`
}

type archiveCharacter struct {
	SchemaVersion int            `json:"schemaVersion"`
	Name          string         `json:"name"`
	DisplayName   string         `json:"displayName"`
	Images        []archiveImage `json:"images"`
	CreatedAt     string         `json:"createdAt"`
	UpdatedAt     string         `json:"updatedAt"`
	ID            string         `json:"id"`
	IsNSFW        bool           `json:"isNSFW"`
	Persona       string         `json:"persona"`
	LoreItems     []archiveLore  `json:"loreItems"`
	Tags          []string       `json:"tags"`
}

type archiveMessage struct {
	Text        string  `json:"text"`
	CharacterID *string `json:"characterID"`
}

type archiveScenario struct {
	SchemaVersion            int              `json:"schemaVersion"`
	Title                    string           `json:"title"`
	CanDeleteExampleMessages bool             `json:"canDeleteExampleMessages"`
	ExampleMessages          []archiveMessage `json:"exampleMessages"`
	Model                    string           `json:"model"`
	Temperature              float64          `json:"temperature"`
	TopP                     float64          `json:"topP"`
	MinP                     float64          `json:"minP"`
	FirstMessages            []archiveMessage `json:"firstMessages"`
	FormattingInstructions   string           `json:"formattingInstructions"`
	Grammar                  string           `json:"grammar"`
	RepeatPenalty            float64          `json:"repeatPenalty"`
	RepeatLastN              int              `json:"repeatLastN"`
	TopK                     int              `json:"topK"`
	MinPEnabled              bool             `json:"minPEnabled"`
	Narrative                string           `json:"narrative"`
	PromptTemplate           *string          `json:"promptTemplate"`
	Messages                 []any            `json:"messages"`
}

// ArchiveCodec reads and writes BYAF zip bundles.
type ArchiveCodec struct {
	deps Deps
}

// Format returns FormatArchive
func (c *ArchiveCodec) Format() Format {
	return FormatArchive
}

// Parse unpacks a bundle. The scenario document is located before the
// character document is opened.
func (c *ArchiveCodec) Parse(ctx context.Context, raw []byte, opts ImportOptions) (*ImportResult, error) {
	zr, err := zip.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return nil, &internal.FormatError{Op: "import", Reason: "not a zip archive", Err: err}
	}

	scenarioFile := findMember(zr, func(name string) bool { return scenarioMemberRe.MatchString(name) })
	if scenarioFile == nil {
		return nil, internal.NewFormatError("import", "archive is missing scenario.json")
	}
	var scenario archiveScenario
	if err := readJSONMember(ctx, scenarioFile, &scenario); err != nil {
		return nil, err
	}

	characterFile := findMember(zr, func(name string) bool { return characterMemberRe.MatchString(name) })
	if characterFile == nil {
		return nil, internal.NewFormatError("import", "archive is missing character.json")
	}
	var character archiveCharacter
	if err := readJSONMember(ctx, characterFile, &character); err != nil {
		return nil, err
	}

	story, primaryID := c.toStory(&character, &scenario)
	result := &ImportResult{Story: story, Format: FormatArchive, PrimaryCharacterID: primaryID}
	if opts.SkipImages {
		return result, nil
	}

	if f := findMember(zr, isPortraitMember); f != nil {
		data, err := readMember(ctx, f)
		if err != nil {
			return nil, err
		}
		result.Portrait = processImage(primaryID, data, opts)
	}
	if f := findMember(zr, func(name string) bool { return name == archiveBackground }); f != nil {
		data, err := readMember(ctx, f)
		if err != nil {
			return nil, err
		}
		result.Background = processImage(internal.BackgroundImageKey(story.ID), data, opts)
	}
	return result, nil
}

func isPortraitMember(name string) bool {
	if name == archiveBackground {
		return false
	}
	switch strings.ToLower(path.Ext(name)) {
	case ".png", ".jpg", ".jpeg", ".webp":
		return true
	}
	return false
}

func findMember(zr *zip.Reader, match func(name string) bool) *zip.File {
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		if match(f.Name) {
			return f
		}
	}
	return nil
}

func readMember(ctx context.Context, f *zip.File) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rc, err := f.Open()
	if err != nil {
		return nil, &internal.FormatError{Op: "import", Reason: "cannot open " + f.Name, Err: err}
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, &internal.FormatError{Op: "import", Reason: "cannot read " + f.Name, Err: err}
	}
	return data, nil
}

func readJSONMember(ctx context.Context, f *zip.File, v any) error {
	data, err := readMember(ctx, f)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return &internal.ParseError{Source: "archive", Key: f.Name, Err: err}
	}
	return nil
}

func (c *ArchiveCodec) toStory(ch *archiveCharacter, sc *archiveScenario) (*internal.Story, string) {
	b := newBuilder(c.deps)
	name := orDefault(orDefault(ch.DisplayName, ch.Name), defaultStoryName)

	story := b.story(name)
	story.Tags = append([]string{}, ch.Tags...)

	user := b.user("User.", "Act as User.")
	ai := b.character(name,
		internal.ToInternal(ch.Persona),
		shortDescription(ch.Persona),
		orDefault(sc.FormattingInstructions, "Act as {character}."),
		append([]string{}, ch.Tags...),
	)
	story.Characters = []internal.Character{user, ai}

	nameToID := map[string]string{
		"user":                     user.ID,
		"character":                ai.ID,
		strings.ToLower(user.Name): user.ID,
		strings.ToLower(ai.Name):   ai.ID,
	}
	resolve := func(speaker string) string {
		key := strings.ToLower(speaker)
		if id, ok := nameToID[key]; ok {
			return id
		}
		ghost := b.character(speaker, "Imported character.", "Imported.", "Act as "+speaker+".", nil)
		ghost.ExtraPortraits = nil
		story.Characters = append(story.Characters, ghost)
		nameToID[key] = ghost.ID
		internal.LogDebug("archive speaker %q added as character %s", speaker, ghost.ID)
		return ghost.ID
	}

	var examples []internal.ChatMessage
	for _, m := range sc.ExampleMessages {
		turn := internal.SplitSpeakerPrefix(m.Text)
		speaker := ai.ID
		switch turn.Speaker {
		case internal.SpeakerUser:
			speaker = user.ID
		case internal.SpeakerNamed:
			speaker = resolve(turn.Name)
		}
		examples = append(examples, b.message(speaker, turn.Text, true, "neutral"))
	}

	statics := []internal.StaticEntry{}
	if sc.Narrative != "" {
		statics = append(statics, internal.StaticEntry{ID: b.ids.NewID(), Title: startingScenario, Content: sc.Narrative})
	}

	for _, item := range ch.LoreItems {
		story.DynamicEntries = append(story.DynamicEntries, b.lore(orDefault(item.Key, "Lore"), item.Key, item.Value))
	}

	active := characterIDs(story.Characters)
	opening := defaultOpening(ai.Name)
	if len(sc.FirstMessages) > 0 && sc.FirstMessages[0].Text != "" {
		opening = sc.FirstMessages[0].Text
	}

	story.Scenarios = append(story.Scenarios, internal.Scenario{
		ID:                 b.ids.NewID(),
		Name:               importedStart,
		Message:            opening,
		ActiveCharacterIDs: append([]string(nil), active...),
		DynamicEntries:     cloneEntries(story.DynamicEntries),
		StaticEntries:      cloneStatic(statics),
		ExampleDialogue:    cloneMessages(examples),
		Prompts:            story.PromptSettings,
		WorldMap:           internal.NewWorldMap(),
	})

	narrative := b.narrative(importedChatName, active)
	narrative.State.StaticEntries = cloneStatic(statics)
	narrative.State.ChatHistory = append(cloneMessages(examples), b.message(ai.ID, opening, false, "neutral"))
	narrative.State.MessageCounter = 1
	story.Narratives = append(story.Narratives, narrative)

	return story, ai.ID
}

// Serialize writes the primary character, its lore and the narrative's
// examples as a bundle. The portrait and background are included when they
// can be resolved.
func (c *ArchiveCodec) Serialize(ctx context.Context, req ExportRequest) (*ExportResult, error) {
	primary, err := resolvePrimary(req.Story, req.PrimaryCharacterID)
	if err != nil {
		return nil, err
	}
	portrait, err := c.deps.Assets.Portrait(ctx, primary)
	if err != nil {
		return nil, err
	}
	background, err := c.deps.Assets.Background(ctx, req.Story)
	if err != nil {
		return nil, err
	}

	now := timestamp(c.deps.Now())
	charDir := "characters/" + primary.ID + "/"

	var imageName string
	if portrait != nil {
		mediaType := portrait.MediaType
		if mediaType == "" {
			mediaType = internal.DetectMediaType(portrait.Data)
		}
		imageName = primary.ID + "." + internal.ImageExtension(mediaType)
	}

	members := []struct {
		name string
		doc  any
	}{
		{archiveManifestPath, archiveManifest{
			SchemaVersion: archiveSchemaVersion,
			CreatedAt:     now,
			Characters:    []string{charDir + "character.json"},
			Scenarios:     []string{archiveScenarioPath},
		}},
		{charDir + "character.json", c.buildCharacter(req, primary, imageName, now)},
		{archiveScenarioPath, buildScenario(req, primary)},
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, m := range members {
		data, err := json.MarshalIndent(m.doc, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", m.name, err)
		}
		if err := writeMember(ctx, zw, m.name, data); err != nil {
			return nil, err
		}
	}
	if portrait != nil {
		if err := writeMember(ctx, zw, charDir+"images/"+imageName, portrait.Data); err != nil {
			return nil, err
		}
	}
	if background != nil {
		bg, err := internal.ConvertToPNG(background.Data)
		if err != nil {
			internal.LogWarn("skipping background of story %s: %v", req.Story.ID, err)
		} else if err := writeMember(ctx, zw, archiveBackground, bg); err != nil {
			return nil, err
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("finish archive: %w", err)
	}

	return &ExportResult{
		Data:      buf.Bytes(),
		Filename:  ExportFilename(req.Story.Name, FormatArchive),
		MediaType: FormatArchive.MediaType(),
	}, nil
}

func writeMember(ctx context.Context, zw *zip.Writer, name string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	w, err := zw.Create(name)
	if err != nil {
		return fmt.Errorf("create %s: %w", name, err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}

func (c *ArchiveCodec) buildCharacter(req ExportRequest, primary *internal.Character, imageName, now string) archiveCharacter {
	state := exportState(req.Narrative)

	lore := []archiveLore{}
	for i, e := range req.Story.DynamicEntries {
		id := e.ID
		if id == "" {
			id = c.deps.IDs.NewID()
		}
		lore = append(lore, archiveLore{
			ID:    id,
			Key:   orDefault(e.Triggers, orDefault(e.Title, fmt.Sprintf("Imported Lore %d", i+1))),
			Value: e.Content(),
		})
	}
	for _, loc := range namedLocations(state.WorldMap) {
		lore = append(lore, archiveLore{
			ID:  c.deps.IDs.NewID(),
			Key: loc.Name,
			Value: fmt.Sprintf("Description: %s\n\nPrompt: %s",
				orDefault(loc.Description, "(no description)"), orDefault(loc.Prompt, "(no prompt)")),
		})
	}
	for i := range lore {
		lore[i].Order = fmt.Sprintf("%08d", i)
		lore[i].CreatedAt = now
		lore[i].UpdatedAt = now
	}

	images := []archiveImage{}
	if imageName != "" {
		images = append(images, archiveImage{Path: "images/" + imageName})
	}

	return archiveCharacter{
		SchemaVersion: archiveSchemaVersion,
		Name:          primary.Name,
		DisplayName:   primary.Name,
		Images:        images,
		CreatedAt:     now,
		UpdatedAt:     now,
		ID:            primary.ID,
		Persona:       primary.Description,
		LoreItems:     lore,
		Tags:          append([]string{}, primary.Tags...),
	}
}

func buildScenario(req ExportRequest, primary *internal.Character) archiveScenario {
	state := exportState(req.Narrative)
	primaryID := primary.ID

	examples := []archiveMessage{}
	for _, m := range state.HiddenExamples() {
		msg := archiveMessage{Text: m.Content}
		if speaker, ok := req.Story.FindCharacter(m.CharacterID); ok {
			switch {
			case speaker.IsUser:
				msg.Text = internal.RenderArchiveMessage(internal.DialogueTurn{Speaker: internal.SpeakerUser, Text: m.Content})
			case speaker.ID == primaryID:
				msg.Text = internal.RenderArchiveMessage(internal.DialogueTurn{Speaker: internal.SpeakerCharacter, Text: m.Content})
				msg.CharacterID = &primaryID
			case speaker.Name != "":
				msg.Text = internal.RenderArchiveMessage(internal.DialogueTurn{Speaker: internal.SpeakerNamed, Name: speaker.Name, Text: m.Content})
			}
		}
		examples = append(examples, msg)
	}

	opening := defaultOpening(primary.Name)
	if m, ok := state.FirstVisibleMessage(); ok {
		opening = m.Content
	}

	var narrative string
	for _, e := range state.StaticEntries {
		if e.Title == startingScenario {
			narrative = e.Content
			break
		}
	}

	title := "Exported Scenario"
	if req.Narrative != nil && req.Narrative.Name != "" {
		title = req.Narrative.Name
	}

	return archiveScenario{
		SchemaVersion:            archiveSchemaVersion,
		Title:                    title,
		CanDeleteExampleMessages: true,
		ExampleMessages:          examples,
		Temperature:              1.0,
		TopP:                     0.9,
		MinP:                     0.1,
		FirstMessages:            []archiveMessage{{Text: opening, CharacterID: &primaryID}},
		FormattingInstructions:   primary.ModelInstructions,
		RepeatPenalty:            1.05,
		RepeatLastN:              256,
		TopK:                     30,
		Narrative:                narrative,
		Messages:                 []any{},
	}
}
