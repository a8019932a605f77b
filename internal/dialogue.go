package internal

import (
	"regexp"
	"strings"
)

// Speaker identifies who a dialogue turn belongs to.
type Speaker int

const (
	SpeakerCharacter Speaker = iota
	SpeakerUser
	SpeakerNamed
)

// DialogueTurn is one segment of a flattened example dialogue.
type DialogueTurn struct {
	Speaker Speaker
	Name    string // set for SpeakerNamed
	Text    string
}

// speakerMarkerRe matches a line-anchored speaker marker in any of the
// external forms.
var speakerMarkerRe = regexp.MustCompile(`(?m)^[ \t]*(\{\{user\}\}|\{\{char\}\}|#\{user\}|#\{character\}):`)

// namedPrefixRe matches a leading "Name:" on the first line of a message.
var namedPrefixRe = regexp.MustCompile(`^([^:\n]{1,64}):`)

// SegmentDialogue splits a flattened example dialogue into turns. Each
// marker owns the text up to the next marker or the end of the blob. Text
// before the first marker and segments that are empty after trimming are
// discarded.
func SegmentDialogue(blob string) []DialogueTurn {
	blob = strings.ReplaceAll(blob, "<START>", "")
	locs := speakerMarkerRe.FindAllStringSubmatchIndex(blob, -1)
	turns := make([]DialogueTurn, 0, len(locs))
	for i, loc := range locs {
		end := len(blob)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		text := strings.TrimSpace(blob[loc[1]:end])
		if text == "" {
			continue
		}
		turns = append(turns, DialogueTurn{
			Speaker: markerSpeaker(blob[loc[2]:loc[3]]),
			Text:    text,
		})
	}
	return turns
}

// SplitSpeakerPrefix consumes the speaker prefix of a single message. Known
// markers map to the user or the character; any other leading "Name:" yields
// a named speaker. Messages without a prefix belong to the character.
func SplitSpeakerPrefix(message string) DialogueTurn {
	trimmed := strings.TrimSpace(message)
	if loc := speakerMarkerRe.FindStringSubmatchIndex(trimmed); loc != nil && loc[0] == 0 {
		return DialogueTurn{
			Speaker: markerSpeaker(trimmed[loc[2]:loc[3]]),
			Text:    strings.TrimSpace(trimmed[loc[1]:]),
		}
	}
	if m := namedPrefixRe.FindStringSubmatch(trimmed); m != nil {
		name := strings.TrimSpace(m[1])
		if name != "" {
			return DialogueTurn{
				Speaker: SpeakerNamed,
				Name:    name,
				Text:    strings.TrimSpace(trimmed[len(m[0]):]),
			}
		}
	}
	return DialogueTurn{Speaker: SpeakerCharacter, Text: trimmed}
}

// RenderCardDialogue flattens turns into a card example dialogue blob.
func RenderCardDialogue(turns []DialogueTurn) string {
	return renderDialogue(turns, CardTokenUser+":", CardTokenCharacter+":")
}

// RenderArchiveMessage prefixes one message with its archive speaker marker.
// Named speakers keep a plain "Name: " prefix.
func RenderArchiveMessage(turn DialogueTurn) string {
	return renderDialogue([]DialogueTurn{turn}, ArchivePrefixUser, ArchivePrefixCharacter)
}

func renderDialogue(turns []DialogueTurn, userPrefix, charPrefix string) string {
	lines := make([]string, 0, len(turns))
	for _, turn := range turns {
		switch turn.Speaker {
		case SpeakerUser:
			lines = append(lines, userPrefix+"\n"+turn.Text)
		case SpeakerCharacter:
			lines = append(lines, charPrefix+"\n"+turn.Text)
		default:
			if turn.Name != "" {
				lines = append(lines, turn.Name+": "+turn.Text)
			} else {
				lines = append(lines, turn.Text)
			}
		}
	}
	return strings.Join(lines, "\n")
}

func markerSpeaker(marker string) Speaker {
	switch marker {
	case "{{user}}", "#{user}":
		return SpeakerUser
	default:
		return SpeakerCharacter
	}
}
