package core

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
)

// FontSource is a parsed font description. Only the glyph table and the
// per-glyph solving order are interpreted; every other field is carried
// through untouched so the worker receives the document it was given.
type FontSource struct {
	Glyphs map[string]*Glyph
	fields map[string]json.RawMessage
}

// Glyph is one entry of the font's glyph table.
type Glyph struct {
	// SolvingOrder is the precomputed computation order for the glyph,
	// or nil when none is known.
	SolvingOrder json.RawMessage
	fields       map[string]json.RawMessage
}

// ParseFont decodes font JSON.
func ParseFont(data []byte) (*FontSource, error) {
	var f FontSource
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, &ParseError{What: "font", Err: err}
	}
	return &f, nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (f *FontSource) UnmarshalJSON(data []byte) error {
	if !isObject(data) {
		return fmt.Errorf("font source must be a JSON object")
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	f.Glyphs = make(map[string]*Glyph)
	if raw, ok := fields["glyphs"]; ok {
		if !isObject(raw) {
			return fmt.Errorf("font glyphs must be a JSON object")
		}
		if err := json.Unmarshal(raw, &f.Glyphs); err != nil {
			return fmt.Errorf("glyphs: %w", err)
		}
		delete(fields, "glyphs")
	}
	f.fields = fields
	return nil
}

// MarshalJSON implements json.Marshaler. Keys are emitted in sorted order,
// so equal fonts always encode to equal bytes.
func (f *FontSource) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(f.fields)+1)
	for k, v := range f.fields {
		out[k] = v
	}
	glyphs := f.Glyphs
	if glyphs == nil {
		glyphs = map[string]*Glyph{}
	}
	out["glyphs"] = glyphs
	return json.Marshal(out)
}

// Field returns a raw top-level field of the font.
func (f *FontSource) Field(name string) (json.RawMessage, bool) {
	v, ok := f.fields[name]
	return v, ok
}

// GlyphIDs returns the glyph ids in sorted order.
func (f *FontSource) GlyphIDs() []string {
	ids := make([]string, 0, len(f.Glyphs))
	for id := range f.Glyphs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// ApplySolvingOrders merges orders into the glyph table. Falsy orders are
// skipped and leave the glyph as it was; ids missing from the glyph table
// are returned in unknown.
func (f *FontSource) ApplySolvingOrders(orders map[string]json.RawMessage) (applied int, unknown []string) {
	for id, order := range orders {
		if !Truthy(order) {
			continue
		}
		g, ok := f.Glyphs[id]
		if !ok || g == nil {
			unknown = append(unknown, id)
			continue
		}
		g.SolvingOrder = append(json.RawMessage(nil), order...)
		applied++
	}
	sort.Strings(unknown)
	return applied, unknown
}

// SolvingOrders collects the known solving orders of all glyphs.
func (f *FontSource) SolvingOrders() map[string]json.RawMessage {
	orders := make(map[string]json.RawMessage)
	for id, g := range f.Glyphs {
		if g != nil && Truthy(g.SolvingOrder) {
			orders[id] = g.SolvingOrder
		}
	}
	return orders
}

// Clone returns a deep copy of f.
func (f *FontSource) Clone() (*FontSource, error) {
	data, err := json.Marshal(f)
	if err != nil {
		return nil, err
	}
	var c FontSource
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

// Key returns a content hash of the font, used to look up cached
// solving orders.
func (f *FontSource) Key() (string, error) {
	data, err := json.Marshal(f)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (g *Glyph) UnmarshalJSON(data []byte) error {
	if !isObject(data) {
		return fmt.Errorf("glyph must be a JSON object")
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	if so, ok := fields["solvingOrder"]; ok {
		g.SolvingOrder = so
		delete(fields, "solvingOrder")
	}
	g.fields = fields
	return nil
}

// MarshalJSON implements json.Marshaler.
func (g *Glyph) MarshalJSON() ([]byte, error) {
	out := make(map[string]json.RawMessage, len(g.fields)+1)
	for k, v := range g.fields {
		out[k] = v
	}
	if g.SolvingOrder != nil {
		out["solvingOrder"] = g.SolvingOrder
	}
	return json.Marshal(out)
}

// Field returns a raw field of the glyph.
func (g *Glyph) Field(name string) (json.RawMessage, bool) {
	v, ok := g.fields[name]
	return v, ok
}

// Truthy applies JavaScript truthiness to an encoded JSON value: null,
// false, 0, "" and an absent value are falsy, everything else is truthy.
func Truthy(raw json.RawMessage) bool {
	v := bytes.TrimSpace(raw)
	if len(v) == 0 {
		return false
	}
	switch v[0] {
	case 'n', 'f':
		return false
	case '"':
		return len(v) > 2
	case '{', '[', 't':
		return true
	}
	var n float64
	if err := json.Unmarshal(v, &n); err != nil {
		return false
	}
	return n != 0
}

func isObject(data []byte) bool {
	v := bytes.TrimSpace(data)
	return len(v) > 0 && v[0] == '{'
}
