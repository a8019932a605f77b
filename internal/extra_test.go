package internal

import (
	"encoding/json"
	"testing"
)

func TestExtra_RoundTrip(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "no unknown members",
			in:   `{"id":"c1","name":"Aria"}`,
			want: `{"id":"c1","name":"Aria","description":"","short_description":"","model_instructions":"","tags":null,"image_url":"","is_user":false,"is_active":false,"is_narrator":false}`,
		},
		{
			name: "unknown members appended in name order",
			in:   `{"zeta":[1,2],"id":"c1","created_date":"2024","name":"Aria"}`,
			want: `{"id":"c1","name":"Aria","description":"","short_description":"","model_instructions":"","tags":null,"image_url":"","is_user":false,"is_active":false,"is_narrator":false,"created_date":"2024","zeta":[1,2]}`,
		},
		{
			name: "case-insensitive match is not extra",
			in:   `{"ID":"c1","Name":"Aria"}`,
			want: `{"id":"c1","name":"Aria","description":"","short_description":"","model_instructions":"","tags":null,"image_url":"","is_user":false,"is_active":false,"is_narrator":false}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var c Character
			if err := json.Unmarshal([]byte(tt.in), &c); err != nil {
				t.Fatalf("Unmarshal() error = %v", err)
			}
			got, err := json.Marshal(c)
			if err != nil {
				t.Fatalf("Marshal() error = %v", err)
			}
			if string(got) != tt.want {
				t.Errorf("Marshal() =\n%s\nwant\n%s", got, tt.want)
			}
		})
	}
}

func TestExtra_EmbeddedFieldsAreKnown(t *testing.T) {
	var s Story
	in := `{"id":"s1","name":"Tavern","system_prompt":"Be brief","textSize":16}`
	if err := json.Unmarshal([]byte(in), &s); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if s.SystemPrompt != "Be brief" {
		t.Errorf("SystemPrompt = %q, want Be brief", s.SystemPrompt)
	}
	if _, ok := s.Extra["system_prompt"]; ok {
		t.Error("embedded prompt field was kept as an extra member")
	}
	if string(s.Extra["textSize"]) != "16" {
		t.Errorf("Extra[textSize] = %s, want 16", s.Extra["textSize"])
	}
}
