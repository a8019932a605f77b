package codec

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/iksnae/ellipsis-codec/internal"
)

// NativeCodec reads and writes the story as plain JSON (pretty-printed)
type NativeCodec struct {
	deps Deps
}

// Format returns FormatNative
func (c *NativeCodec) Format() Format {
	return FormatNative
}

// Parse decodes a story dump and gives every object in it a fresh id.
// Character references are remapped to the new character ids.
func (c *NativeCodec) Parse(ctx context.Context, raw []byte, _ ImportOptions) (*ImportResult, error) {
	var story internal.Story
	if err := json.Unmarshal(raw, &story); err != nil {
		return nil, &internal.ParseError{Source: "native", Key: "story", Err: err}
	}
	if story.ID == "" || story.Name == "" || story.Characters == nil {
		return nil, internal.NewFormatError("import", "invalid story JSON: id, name and characters are required")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	b := newBuilder(c.deps)
	regenerateIDs(b, &story)
	b.ensureUser(&story)

	if story.Tags == nil {
		story.Tags = []string{}
	}
	if story.DynamicEntries == nil {
		story.DynamicEntries = []internal.DynamicEntry{}
	}
	if story.Scenarios == nil {
		story.Scenarios = []internal.Scenario{}
	}
	if story.Narratives == nil {
		story.Narratives = []internal.Narrative{}
	}

	result := &ImportResult{Story: &story, Format: FormatNative}
	if primary, ok := story.DefaultPrimaryCharacter(); ok {
		result.PrimaryCharacterID = primary.ID
	}
	return result, nil
}

func regenerateIDs(b *builder, story *internal.Story) {
	story.ID = b.ids.NewID()

	charIDs := make(map[string]string, len(story.Characters))
	for i := range story.Characters {
		id := b.ids.NewID()
		charIDs[story.Characters[i].ID] = id
		story.Characters[i].ID = id
	}
	remap := func(id string) string {
		if n, ok := charIDs[id]; ok {
			return n
		}
		return id
	}
	remapAll := func(ids []string) {
		for i := range ids {
			ids[i] = remap(ids[i])
		}
	}
	remapHistory := func(msgs []internal.ChatMessage) {
		for i := range msgs {
			msgs[i].CharacterID = remap(msgs[i].CharacterID)
		}
	}
	renewDynamic := func(entries []internal.DynamicEntry) {
		for i := range entries {
			entries[i].ID = b.ids.NewID()
			entries[i].Normalize()
		}
	}
	renewStatic := func(entries []internal.StaticEntry) {
		for i := range entries {
			entries[i].ID = b.ids.NewID()
		}
	}
	renewMap := func(m *internal.WorldMap) {
		if m == nil {
			return
		}
		for i := range m.Grid {
			renewStatic(m.Grid[i].LocalStaticEntries)
		}
	}

	renewDynamic(story.DynamicEntries)
	for i := range story.Scenarios {
		s := &story.Scenarios[i]
		s.ID = b.ids.NewID()
		remapAll(s.ActiveCharacterIDs)
		remapHistory(s.ExampleDialogue)
		renewDynamic(s.DynamicEntries)
		renewStatic(s.StaticEntries)
		renewMap(s.WorldMap)
	}
	for i := range story.Narratives {
		n := &story.Narratives[i]
		n.ID = b.ids.NewID()
		remapAll(n.ActiveCharacterIDs)
		if n.State != nil {
			remapHistory(n.State.ChatHistory)
			renewStatic(n.State.StaticEntries)
			renewMap(n.State.WorldMap)
		}
	}
}

// Serialize dumps the story. When the request carries a narrative, it
// replaces the story's narrative with the same id, or is appended when the
// story has none.
func (c *NativeCodec) Serialize(ctx context.Context, req ExportRequest) (*ExportResult, error) {
	if req.Story == nil {
		return nil, internal.NewFormatError("export", "no story given")
	}
	out := *req.Story
	out.Narratives = append([]internal.Narrative{}, req.Story.Narratives...)
	if n := req.Narrative; n != nil {
		replaced := false
		for i := range out.Narratives {
			if out.Narratives[i].ID == n.ID {
				out.Narratives[i] = *n
				replaced = true
			}
		}
		if !replaced {
			out.Narratives = append(out.Narratives, *n)
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(&out); err != nil {
		return nil, fmt.Errorf("encode story: %w", err)
	}

	return &ExportResult{
		Data:      buf.Bytes(),
		Filename:  ExportFilename(out.Name, FormatNative),
		MediaType: FormatNative.MediaType(),
	}, nil
}
