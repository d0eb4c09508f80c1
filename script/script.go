// Package script classifies text by writing system so generators can
// pick script-appropriate variation strategies.
package script

import "unicode"

// Script identifies the dominant writing system of a piece of text.
type Script string

const (
	// Latin covers ASCII and accented Latin text. It is also the
	// fallthrough when no other script matches.
	Latin Script = "latin"
	// Arabic covers the core Arabic block, its supplements, and the
	// presentation forms.
	Arabic Script = "arabic"
	// Cyrillic covers the core Cyrillic block and its extensions.
	Cyrillic Script = "cyrillic"
	// CJK covers Han, Hiragana, Katakana, and Hangul syllables.
	CJK Script = "cjk"
)

var arabicTable = &unicode.RangeTable{
	R16: []unicode.Range16{
		{Lo: 0x0600, Hi: 0x06FF, Stride: 1},
		{Lo: 0x0750, Hi: 0x077F, Stride: 1},
		{Lo: 0x08A0, Hi: 0x08FF, Stride: 1},
		{Lo: 0xFB50, Hi: 0xFDFF, Stride: 1},
		{Lo: 0xFE70, Hi: 0xFEFF, Stride: 1},
	},
}

var cyrillicTable = &unicode.RangeTable{
	R16: []unicode.Range16{
		{Lo: 0x0400, Hi: 0x04FF, Stride: 1},
		{Lo: 0x0500, Hi: 0x052F, Stride: 1},
		{Lo: 0x2DE0, Hi: 0x2DFF, Stride: 1},
		{Lo: 0xA640, Hi: 0xA69F, Stride: 1},
	},
}

var cjkTable = &unicode.RangeTable{
	R16: []unicode.Range16{
		{Lo: 0x3040, Hi: 0x309F, Stride: 1},
		{Lo: 0x30A0, Hi: 0x30FF, Stride: 1},
		{Lo: 0x3400, Hi: 0x4DBF, Stride: 1},
		{Lo: 0x4E00, Hi: 0x9FFF, Stride: 1},
		{Lo: 0xAC00, Hi: 0xD7AF, Stride: 1},
	},
}

// Detect returns the script of s. Buckets are checked in a fixed
// priority order (Arabic, Cyrillic, CJK) and the first bucket matching
// any rune wins, so mixed-script text classifies by priority rather
// than by majority. Empty or unmatched text is Latin.
func Detect(s string) Script {
	for _, r := range s {
		if unicode.Is(arabicTable, r) {
			return Arabic
		}
	}
	for _, r := range s {
		if unicode.Is(cyrillicTable, r) {
			return Cyrillic
		}
	}
	for _, r := range s {
		if unicode.Is(cjkTable, r) {
			return CJK
		}
	}
	return Latin
}
