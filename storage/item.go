package storage

import (
	"bytes"
	"encoding/json"
	"strings"
)

// Item is a single named checklist entry. Name is its identity.
//
// Entries are not validated: an element of the document that is not an
// object, lacks a field or carries a mistyped one is kept verbatim and
// written back unchanged. Name is its string "name" field and Checked is
// true only when "checked" is the JSON literal true.
type Item struct {
	Name    string `json:"name"`
	Checked bool   `json:"checked"`

	// raw is the compacted source element when it is anything other than
	// the plain rendering of Name and Checked.
	raw string
}

type plainItem struct {
	Name    string `json:"name"`
	Checked bool   `json:"checked"`
}

// UnmarshalJSON accepts any JSON value.
func (it *Item) UnmarshalJSON(data []byte) error {
	var compact bytes.Buffer
	if err := json.Compact(&compact, data); err != nil {
		return err
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		fields = nil
	}

	var parsed Item
	if v, ok := fields["name"]; ok {
		var name string
		if json.Unmarshal(v, &name) == nil {
			parsed.Name = name
		}
	}
	if v, ok := fields["checked"]; ok {
		var checked bool
		if json.Unmarshal(v, &checked) == nil {
			parsed.Checked = checked
		}
	}

	plain, err := parsed.plain()
	if err != nil {
		return err
	}
	if !bytes.Equal(plain, compact.Bytes()) {
		parsed.raw = compact.String()
	}
	*it = parsed
	return nil
}

// MarshalJSON writes the source element back, with "name" and "checked"
// rewritten in place if Name or Checked were changed.
func (it Item) MarshalJSON() ([]byte, error) {
	if it.raw == "" {
		return it.plain()
	}

	var orig Item
	if err := orig.UnmarshalJSON([]byte(it.raw)); err != nil {
		return nil, err
	}

	raw := it.raw
	var err error
	if orig.Name != it.Name {
		if raw, err = setField(raw, "name", it.Name); err != nil {
			return nil, err
		}
	}
	if orig.Checked != it.Checked {
		if raw, err = setField(raw, "checked", it.Checked); err != nil {
			return nil, err
		}
	}
	return []byte(raw), nil
}

// WithChecked returns a copy of the item with its checked flag set. It fails
// with ErrNotAnObject for entries that are not JSON objects.
func (it Item) WithChecked(checked bool) (Item, error) {
	it.Checked = checked
	data, err := it.MarshalJSON()
	if err != nil {
		return Item{}, err
	}
	var out Item
	if err := out.UnmarshalJSON(data); err != nil {
		return Item{}, err
	}
	return out, nil
}

func (it Item) plain() ([]byte, error) {
	return marshalNoEscape(plainItem{Name: it.Name, Checked: it.Checked})
}

// setField replaces every occurrence of key in the JSON object raw, or
// appends it, keeping the other members and their order.
func setField(raw, key string, value any) (string, error) {
	encoded, err := marshalNoEscape(value)
	if err != nil {
		return "", err
	}

	dec := json.NewDecoder(strings.NewReader(raw))
	if tok, err := dec.Token(); err != nil || tok != json.Delim('{') {
		return "", ErrNotAnObject
	}

	var buf bytes.Buffer
	buf.WriteByte('{')
	found := false
	n := 0
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return "", err
		}
		k, _ := tok.(string)

		var v json.RawMessage
		if err := dec.Decode(&v); err != nil {
			return "", err
		}
		if k == key {
			v = encoded
			found = true
		}
		if err := writeMember(&buf, n, k, v); err != nil {
			return "", err
		}
		n++
	}
	if !found {
		if err := writeMember(&buf, n, key, encoded); err != nil {
			return "", err
		}
	}
	buf.WriteByte('}')
	return buf.String(), nil
}

// writeMember appends "key":value, preceded by a comma unless n is 0.
func writeMember(buf *bytes.Buffer, n int, key string, value []byte) error {
	k, err := marshalNoEscape(key)
	if err != nil {
		return err
	}
	if n > 0 {
		buf.WriteByte(',')
	}
	buf.Write(k)
	buf.WriteByte(':')
	buf.Write(value)
	return nil
}

func marshalNoEscape(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}
