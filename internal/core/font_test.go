package core

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testFontJSON = `{
	"fontinfo": {"familyName": "Test Sans"},
	"parameters": [{"name": "width", "init": 1}],
	"glyphs": {
		"A": {"unicode": 65, "contours": []},
		"B": {"unicode": 66, "solvingOrder": ["x", "y"]}
	}
}`

func TestParseFont_PreservesUnknownFields(t *testing.T) {
	f, err := ParseFont([]byte(testFontJSON))
	require.NoError(t, err)

	info, ok := f.Field("fontinfo")
	require.True(t, ok)
	assert.JSONEq(t, `{"familyName": "Test Sans"}`, string(info))

	require.Contains(t, f.Glyphs, "A")
	uni, ok := f.Glyphs["A"].Field("unicode")
	require.True(t, ok)
	assert.Equal(t, "65", string(uni))
	assert.JSONEq(t, `["x","y"]`, string(f.Glyphs["B"].SolvingOrder))

	out, err := json.Marshal(f)
	require.NoError(t, err)
	assert.JSONEq(t, testFontJSON, string(out))
}

func TestParseFont_Malformed(t *testing.T) {
	for _, src := range []string{`{"glyphs": `, `[1,2]`, `{"glyphs": []}`, `"font"`} {
		_, err := ParseFont([]byte(src))
		var pe *ParseError
		if !errors.As(err, &pe) {
			t.Errorf("ParseFont(%q) error = %v, want *ParseError", src, err)
		}
	}
}

func TestApplySolvingOrders(t *testing.T) {
	f, err := ParseFont([]byte(testFontJSON))
	require.NoError(t, err)

	applied, unknown := f.ApplySolvingOrders(map[string]json.RawMessage{
		"A": json.RawMessage(`3`),
		"B": json.RawMessage(`null`),
		"Z": json.RawMessage(`[1]`),
	})
	assert.Equal(t, 1, applied)
	assert.Equal(t, []string{"Z"}, unknown)
	assert.Equal(t, "3", string(f.Glyphs["A"].SolvingOrder))
	// falsy entries leave the existing order alone
	assert.JSONEq(t, `["x","y"]`, string(f.Glyphs["B"].SolvingOrder))
}

func TestTruthy(t *testing.T) {
	cases := map[string]bool{
		``:       false,
		`null`:   false,
		`false`:  false,
		`0`:      false,
		`0.0`:    false,
		`""`:     false,
		`true`:   true,
		`3`:      true,
		`-1`:     true,
		`"a"`:    true,
		`[]`:     true,
		`{}`:     true,
		` [1] `:  true,
	}
	for in, want := range cases {
		if got := Truthy(json.RawMessage(in)); got != want {
			t.Errorf("Truthy(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestFontKey_StableAcrossClones(t *testing.T) {
	f, err := ParseFont([]byte(testFontJSON))
	require.NoError(t, err)
	c, err := f.Clone()
	require.NoError(t, err)

	k1, err := f.Key()
	require.NoError(t, err)
	k2, err := c.Key()
	require.NoError(t, err)
	assert.Equal(t, k1, k2)

	c.Glyphs["A"].SolvingOrder = json.RawMessage(`1`)
	k3, err := c.Key()
	require.NoError(t, err)
	assert.NotEqual(t, k1, k3)
	assert.Nil(t, f.Glyphs["A"].SolvingOrder, "clone must not alias the original")
}

func TestJobTypeRanks(t *testing.T) {
	for i, jt := range Priorities {
		rank, ok := jt.Rank()
		require.True(t, ok)
		assert.Equal(t, i, rank)
		parsed, ok := ParseJobType(jt.String())
		require.True(t, ok)
		assert.Equal(t, jt, parsed)
	}
	_, ok := JobType(NumJobTypes).Rank()
	assert.False(t, ok)
	_, ok = JobType(-1).Rank()
	assert.False(t, ok)
	_, ok = ParseJobType("font")
	assert.False(t, ok)
}

func TestMessageClone(t *testing.T) {
	m, err := NewMessage(MsgUpdate, Values{"width": 1})
	require.NoError(t, err)
	c := m.Clone()
	c.Data[0] = 'X'
	assert.NotEqual(t, c.Data[0], m.Data[0])

	var v Values
	require.NoError(t, m.Decode(&v))
	assert.Equal(t, 1.0, v["width"])

	empty, err := NewMessage(MsgSVGFont, nil)
	require.NoError(t, err)
	assert.Nil(t, empty.Data)
	assert.Error(t, empty.Decode(&v))
}
