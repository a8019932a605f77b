package internal

import (
	"reflect"
	"testing"
)

func TestSegmentDialogue(t *testing.T) {
	tests := []struct {
		name string
		blob string
		want []DialogueTurn
	}{
		{
			name: "user then char",
			blob: "{{user}}:\nHi\n{{char}}:\nHello",
			want: []DialogueTurn{
				{Speaker: SpeakerUser, Text: "Hi"},
				{Speaker: SpeakerCharacter, Text: "Hello"},
			},
		},
		{
			name: "inline content and START markers",
			blob: "<START>\n{{char}}: Welcome back.\n{{user}}: Thanks!\n<START>\n{{char}}: Again?",
			want: []DialogueTurn{
				{Speaker: SpeakerCharacter, Text: "Welcome back."},
				{Speaker: SpeakerUser, Text: "Thanks!"},
				{Speaker: SpeakerCharacter, Text: "Again?"},
			},
		},
		{
			name: "multi-line segment",
			blob: "{{char}}:\nLine one.\nLine two.",
			want: []DialogueTurn{
				{Speaker: SpeakerCharacter, Text: "Line one.\nLine two."},
			},
		},
		{
			name: "leading residue discarded",
			blob: "stray preface\n{{user}}: Hi",
			want: []DialogueTurn{
				{Speaker: SpeakerUser, Text: "Hi"},
			},
		},
		{
			name: "empty segments skipped",
			blob: "{{user}}:\n{{char}}: Only me",
			want: []DialogueTurn{
				{Speaker: SpeakerCharacter, Text: "Only me"},
			},
		},
		{
			name: "markers must start a line",
			blob: "{{char}}: I said {{user}}: hi to them",
			want: []DialogueTurn{
				{Speaker: SpeakerCharacter, Text: "I said {{user}}: hi to them"},
			},
		},
		{
			name: "archive markers",
			blob: "#{user}:\nHey\n#{character}:\nHo",
			want: []DialogueTurn{
				{Speaker: SpeakerUser, Text: "Hey"},
				{Speaker: SpeakerCharacter, Text: "Ho"},
			},
		},
		{
			name: "no markers",
			blob: "just prose",
			want: []DialogueTurn{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SegmentDialogue(tt.blob)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("SegmentDialogue() = %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestSplitSpeakerPrefix(t *testing.T) {
	tests := []struct {
		name    string
		message string
		want    DialogueTurn
	}{
		{"archive user", "#{user}:\nHello there", DialogueTurn{Speaker: SpeakerUser, Text: "Hello there"}},
		{"archive character", "#{character}: Hi", DialogueTurn{Speaker: SpeakerCharacter, Text: "Hi"}},
		{"card user", "{{user}}: Yo", DialogueTurn{Speaker: SpeakerUser, Text: "Yo"}},
		{"named", "Alice: Over here!", DialogueTurn{Speaker: SpeakerNamed, Name: "Alice", Text: "Over here!"}},
		{"no prefix", "Just talking.", DialogueTurn{Speaker: SpeakerCharacter, Text: "Just talking."}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SplitSpeakerPrefix(tt.message); got != tt.want {
				t.Errorf("SplitSpeakerPrefix(%q) = %#v, want %#v", tt.message, got, tt.want)
			}
		})
	}
}

func TestRenderCardDialogue(t *testing.T) {
	turns := []DialogueTurn{
		{Speaker: SpeakerUser, Text: "Hi"},
		{Speaker: SpeakerCharacter, Text: "Hello"},
	}
	want := "{{user}}:\nHi\n{{char}}:\nHello"
	if got := RenderCardDialogue(turns); got != want {
		t.Errorf("RenderCardDialogue() = %q, want %q", got, want)
	}

	if got := SegmentDialogue(want); !reflect.DeepEqual(got, turns) {
		t.Errorf("SegmentDialogue(RenderCardDialogue()) = %#v, want %#v", got, turns)
	}
}

func TestRenderArchiveMessage(t *testing.T) {
	tests := []struct {
		turn DialogueTurn
		want string
	}{
		{DialogueTurn{Speaker: SpeakerUser, Text: "Hi"}, "#{user}:\nHi"},
		{DialogueTurn{Speaker: SpeakerCharacter, Text: "Hey"}, "#{character}:\nHey"},
		{DialogueTurn{Speaker: SpeakerNamed, Name: "Bob", Text: "Yo"}, "Bob: Yo"},
		{DialogueTurn{Speaker: SpeakerNamed, Text: "Unattributed"}, "Unattributed"},
	}
	for _, tt := range tests {
		if got := RenderArchiveMessage(tt.turn); got != tt.want {
			t.Errorf("RenderArchiveMessage(%#v) = %q, want %q", tt.turn, got, tt.want)
		}
	}
}
