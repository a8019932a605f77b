package internal

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"
)

// Extra holds the JSON members of an object that have no matching field.
// They are written back after the known fields so stories written by other
// versions of the app survive a round trip.
type Extra map[string]json.RawMessage

var knownFields sync.Map // reflect.Type -> map[string]bool

// fieldNames returns the JSON member names of the struct type t, including
// those promoted from embedded structs.
func fieldNames(t reflect.Type) map[string]bool {
	if names, ok := knownFields.Load(t); ok {
		return names.(map[string]bool)
	}
	names := make(map[string]bool)
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		tag := f.Tag.Get("json")
		if tag == "-" {
			continue
		}
		name, _, _ := strings.Cut(tag, ",")
		if f.Anonymous && name == "" && f.Type.Kind() == reflect.Struct {
			for n := range fieldNames(f.Type) {
				names[n] = true
			}
			continue
		}
		if !f.IsExported() {
			continue
		}
		if name == "" {
			name = f.Name
		}
		names[name] = true
	}
	knownFields.Store(t, names)
	return names
}

// decodeWithExtra decodes data into v, a pointer to a struct without
// UnmarshalJSON, and returns the members v has no field for.
func decodeWithExtra(data []byte, v interface{}) (Extra, error) {
	if err := json.Unmarshal(data, v); err != nil {
		return nil, err
	}
	var members map[string]json.RawMessage
	if err := json.Unmarshal(data, &members); err != nil {
		return nil, err
	}
	known := fieldNames(reflect.TypeOf(v).Elem())
	var extra Extra
	for name, raw := range members {
		if known[name] || knownFold(known, name) {
			continue
		}
		if extra == nil {
			extra = make(Extra)
		}
		extra[name] = raw
	}
	return extra, nil
}

// knownFold reports whether name matches a known field case-insensitively,
// the way encoding/json matches members to fields.
func knownFold(known map[string]bool, name string) bool {
	for k := range known {
		if strings.EqualFold(k, name) {
			return true
		}
	}
	return false
}

// encodeWithExtra encodes v, a struct without MarshalJSON, and appends the
// extra members in name order.
func encodeWithExtra(v interface{}, extra Extra) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	out := bytes.TrimRight(buf.Bytes(), "\n")
	if len(extra) == 0 {
		return out, nil
	}
	if len(out) < 2 || out[len(out)-1] != '}' {
		return nil, fmt.Errorf("encode extra members: %T is not a JSON object", v)
	}

	names := make([]string, 0, len(extra))
	for name := range extra {
		names = append(names, name)
	}
	sort.Strings(names)

	res := make([]byte, 0, len(out)+64*len(names))
	res = append(res, out[:len(out)-1]...)
	for i, name := range names {
		if i > 0 || len(out) > 2 {
			res = append(res, ',')
		}
		key, err := json.Marshal(name)
		if err != nil {
			return nil, err
		}
		res = append(res, key...)
		res = append(res, ':')
		res = append(res, extra[name]...)
	}
	return append(res, '}'), nil
}

func (s *Story) UnmarshalJSON(data []byte) error {
	type plain Story
	var p plain
	extra, err := decodeWithExtra(data, &p)
	if err != nil {
		return err
	}
	*s = Story(p)
	s.Extra = extra
	return nil
}

func (s Story) MarshalJSON() ([]byte, error) {
	type plain Story
	return encodeWithExtra(plain(s), s.Extra)
}

func (c *Character) UnmarshalJSON(data []byte) error {
	type plain Character
	var p plain
	extra, err := decodeWithExtra(data, &p)
	if err != nil {
		return err
	}
	*c = Character(p)
	c.Extra = extra
	return nil
}

func (c Character) MarshalJSON() ([]byte, error) {
	type plain Character
	return encodeWithExtra(plain(c), c.Extra)
}

func (s *Scenario) UnmarshalJSON(data []byte) error {
	type plain Scenario
	var p plain
	extra, err := decodeWithExtra(data, &p)
	if err != nil {
		return err
	}
	*s = Scenario(p)
	s.Extra = extra
	return nil
}

func (s Scenario) MarshalJSON() ([]byte, error) {
	type plain Scenario
	return encodeWithExtra(plain(s), s.Extra)
}

func (n *Narrative) UnmarshalJSON(data []byte) error {
	type plain Narrative
	var p plain
	extra, err := decodeWithExtra(data, &p)
	if err != nil {
		return err
	}
	*n = Narrative(p)
	n.Extra = extra
	return nil
}

func (n Narrative) MarshalJSON() ([]byte, error) {
	type plain Narrative
	return encodeWithExtra(plain(n), n.Extra)
}

func (st *NarrativeState) UnmarshalJSON(data []byte) error {
	type plain NarrativeState
	var p plain
	extra, err := decodeWithExtra(data, &p)
	if err != nil {
		return err
	}
	*st = NarrativeState(p)
	st.Extra = extra
	return nil
}

func (st NarrativeState) MarshalJSON() ([]byte, error) {
	type plain NarrativeState
	return encodeWithExtra(plain(st), st.Extra)
}
