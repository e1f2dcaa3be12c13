// Package handlers turns worker answers into typed job results.
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/cryguy/fontworker/internal/core"
	"github.com/cryguy/fontworker/internal/jobqueue"
	"golang.org/x/image/font/sfnt"
	"golang.org/x/net/html"
)

// FontBuffer is a compiled font produced by an update or subset job.
type FontBuffer struct {
	Data      []byte
	Family    string
	NumGlyphs int
}

// FontFile is the result of an otfFont job.
type FontFile struct {
	Name string
	FontBuffer
}

// SVGFont is the result of an svgFont job.
type SVGFont struct {
	Markup     string
	Family     string
	GlyphCount int
}

// Table returns the response handlers for every job type.
func Table() jobqueue.Handlers {
	var t jobqueue.Handlers
	t[core.JobUpdate] = jobqueue.HandlerFunc(fontBuffer)
	t[core.JobSubset] = jobqueue.HandlerFunc(fontBuffer)
	t[core.JobSVGFont] = jobqueue.HandlerFunc(svgFont)
	t[core.JobOTFFont] = jobqueue.HandlerFunc(otfFont)
	return t
}

// fontBuffer handles update and subset answers. Workers that do not build
// a font on every change answer with null, which yields a nil result.
func fontBuffer(msg core.Message) (any, error) {
	if isNull(msg.Data) {
		return nil, nil
	}
	var data []byte
	if err := msg.Decode(&data); err != nil {
		return nil, err
	}
	return ParseFontBuffer(data)
}

type otfAnswer struct {
	Name string `json:"name"`
	Data []byte `json:"data"`
}

func otfFont(msg core.Message) (any, error) {
	var ans otfAnswer
	if err := msg.Decode(&ans); err != nil {
		return nil, err
	}
	if len(ans.Data) == 0 {
		return nil, errors.New("empty font file")
	}
	buf, err := ParseFontBuffer(ans.Data)
	if err != nil {
		return nil, err
	}
	return &FontFile{Name: ans.Name, FontBuffer: *buf}, nil
}

func svgFont(msg core.Message) (any, error) {
	var markup string
	if err := msg.Decode(&markup); err != nil {
		return nil, err
	}
	return ParseSVGFont(markup)
}

// ParseFontBuffer checks that data is an OpenType/TrueType font and reads
// its family name and glyph count.
func ParseFontBuffer(data []byte) (*FontBuffer, error) {
	f, err := sfnt.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("invalid font data: %w", err)
	}
	var b sfnt.Buffer
	family, err := f.Name(&b, sfnt.NameIDFamily)
	if err != nil && !errors.Is(err, sfnt.ErrNotFound) {
		return nil, fmt.Errorf("reading family name: %w", err)
	}
	return &FontBuffer{Data: data, Family: family, NumGlyphs: f.NumGlyphs()}, nil
}

// ParseSVGFont scans SVG font markup for its font-face family and glyphs.
func ParseSVGFont(markup string) (*SVGFont, error) {
	out := &SVGFont{Markup: markup}
	sawFont := false
	z := html.NewTokenizer(strings.NewReader(markup))
	for {
		switch z.Next() {
		case html.ErrorToken:
			if err := z.Err(); err != io.EOF {
				return nil, fmt.Errorf("reading svg font: %w", err)
			}
			if !sawFont {
				return nil, errors.New("markup contains no <font> element")
			}
			return out, nil
		case html.StartTagToken, html.SelfClosingTagToken:
			name, hasAttr := z.TagName()
			switch string(name) {
			case "font":
				sawFont = true
			case "glyph", "missing-glyph":
				out.GlyphCount++
			case "font-face":
				for hasAttr {
					var key, val []byte
					key, val, hasAttr = z.TagAttr()
					if string(key) == "font-family" {
						out.Family = string(val)
					}
				}
			}
		}
	}
}

func isNull(raw json.RawMessage) bool {
	s := strings.TrimSpace(string(raw))
	return s == "" || s == "null"
}
