package storage

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode_KeepsEntriesVerbatim(t *testing.T) {
	tests := []struct {
		name        string
		doc         string
		wantName    string
		wantChecked bool
	}{
		{name: "canonical", doc: `[{"name":"Trash","checked":true}]`, wantName: "Trash", wantChecked: true},
		{name: "missing checked", doc: `[{"name":"Trash"}]`, wantName: "Trash"},
		{name: "missing name", doc: `[{"checked":true}]`, wantChecked: true},
		{name: "extra field", doc: `[{"name":"Trash","checked":false,"note":"bins"}]`, wantName: "Trash"},
		{name: "mistyped checked", doc: `[{"name":"Trash","checked":"yes"}]`, wantName: "Trash"},
		{name: "mistyped name", doc: `[{"name":["Trash"],"checked":true}]`, wantChecked: true},
		{name: "number", doc: `[1]`},
		{name: "null", doc: `[null]`},
		{name: "key order", doc: `[{"checked":true,"name":"Trash"}]`, wantName: "Trash", wantChecked: true},
		{name: "escaped name", doc: `[{"name":"Tr\u0061sh","checked":false}]`, wantName: "Trash"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			items, err := Decode([]byte(tt.doc))
			require.NoError(t, err)
			require.Len(t, items, 1)
			assert.Equal(t, tt.wantName, items[0].Name)
			assert.Equal(t, tt.wantChecked, items[0].Checked)

			out, err := marshalNoEscape(items)
			require.NoError(t, err)
			assert.Equal(t, tt.doc, string(out))
		})
	}
}

func TestDecode_CanonicalEntriesEqualLiterals(t *testing.T) {
	items, err := Decode([]byte(`[ {"name": "Trash", "checked": false} ]`))
	require.NoError(t, err)
	assert.Equal(t, []Item{{Name: "Trash"}}, items)
}

func TestItem_WithChecked(t *testing.T) {
	decodeOne := func(t *testing.T, doc string) Item {
		t.Helper()
		items, err := Decode([]byte("[" + doc + "]"))
		require.NoError(t, err)
		require.Len(t, items, 1)
		return items[0]
	}

	tests := []struct {
		name    string
		doc     string
		checked bool
		want    string
	}{
		{name: "canonical", doc: `{"name":"Trash","checked":false}`, checked: true, want: `{"name":"Trash","checked":true}`},
		{name: "patches in place", doc: `{"checked":false,"note":"x","name":"Trash"}`, checked: true, want: `{"checked":true,"note":"x","name":"Trash"}`},
		{name: "replaces mistyped value", doc: `{"name":"Trash","checked":"no"}`, checked: true, want: `{"name":"Trash","checked":true}`},
		{name: "appends missing field", doc: `{"name":"Trash"}`, checked: true, want: `{"name":"Trash","checked":true}`},
		{name: "keeps unchanged mistyped value", doc: `{"name":"Trash","checked":"no"}`, checked: false, want: `{"name":"Trash","checked":"no"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := decodeOne(t, tt.doc).WithChecked(tt.checked)
			require.NoError(t, err)
			assert.Equal(t, tt.checked, got.Checked)

			out, err := got.MarshalJSON()
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(out))
		})
	}

	t.Run("non-object entry", func(t *testing.T) {
		_, err := decodeOne(t, `[true]`).WithChecked(true)
		assert.ErrorIs(t, err, ErrNotAnObject)
	})
}

func TestEncode_IndentsVerbatimEntries(t *testing.T) {
	items, err := Decode([]byte(`[{"name":"Trash","note":"<b>"},2]`))
	require.NoError(t, err)

	data, err := Encode(items)
	require.NoError(t, err)
	assert.Equal(t, "[\n  {\n    \"name\": \"Trash\",\n    \"note\": \"<b>\"\n  },\n  2\n]", string(data))
}

func TestStore_SetCheckedKeepsExtraFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	writeFile(t, path, `[{"name":"Trash","checked":false,"note":"bins"},"loose"]`)

	s, err := Open(path)
	require.NoError(t, err)

	item, err := s.SetChecked(0, true)
	require.NoError(t, err)
	assert.Equal(t, "Trash", item.Name)
	assert.True(t, item.Checked)

	onDisk, err := Decode([]byte(readFile(t, path)))
	require.NoError(t, err)
	out, err := marshalNoEscape(onDisk)
	require.NoError(t, err)
	assert.Equal(t, `[{"name":"Trash","checked":true,"note":"bins"},"loose"]`, string(out))

	_, err = s.SetChecked(1, true)
	assert.ErrorIs(t, err, ErrNotAnObject)
	assert.False(t, s.Items()[1].Checked)
}
