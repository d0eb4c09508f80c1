package llm

import (
	"regexp"
	"strings"
)

// Models wrap JSON in markdown fences, annotate it with // comments,
// and leave trailing commas. The extractors below tolerate all three:
// fenced content wins over bare content, and both are cleaned before
// they are handed to the JSON decoder.
var (
	fencedObject  = regexp.MustCompile("(?s)```(?:json)?\\s*\\n?(\\{.*\\})\\s*```")
	bareObject    = regexp.MustCompile(`(?s)\{[\s\S]*\}`)
	fencedArray   = regexp.MustCompile("(?s)```(?:json)?\\s*\\n?(\\[.*\\])\\s*```")
	bareArray     = regexp.MustCompile(`(?s)\[[\s\S]*\]`)
	trailingComma = regexp.MustCompile(`,\s*([}\]])`)
)

// ExtractJSON pulls a JSON object out of a model response. Returns ""
// when no object is present.
func ExtractJSON(content string) string {
	return capture(content, fencedObject, bareObject)
}

// ExtractJSONArray pulls a JSON array out of a model response. Returns
// "" when no array is present.
func ExtractJSONArray(content string) string {
	return capture(content, fencedArray, bareArray)
}

func capture(content string, fenced, bare *regexp.Regexp) string {
	if m := fenced.FindStringSubmatch(content); len(m) > 1 {
		return tidyJSON(m[1])
	}
	if m := bare.FindString(content); m != "" {
		return tidyJSON(m)
	}
	return ""
}

// tidyJSON strips // comments outside string values and trailing commas
// before closing braces or brackets.
func tidyJSON(raw string) string {
	rows := strings.Split(raw, "\n")
	for i, row := range rows {
		rows[i] = trimLineComment(row)
	}
	return trailingComma.ReplaceAllString(strings.Join(rows, "\n"), "$1")
}

// trimLineComment drops a // comment from one line. Slashes inside a
// quoted value never open a comment, so URL values come through intact
// while a real comment after them is still removed.
func trimLineComment(line string) string {
	if !strings.Contains(line, "//") {
		return line
	}
	var inString, inEscape bool
	for i := range len(line) {
		switch c := line[i]; {
		case inEscape:
			inEscape = false
		case c == '\\' && inString:
			inEscape = true
		case c == '"':
			inString = !inString
		case !inString && c == '/' && i+1 < len(line) && line[i+1] == '/':
			return strings.TrimRight(line[:i], " \t")
		}
	}
	return line
}
