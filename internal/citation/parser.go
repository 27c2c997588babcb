package citation

import (
	"strings"
	"unicode"
)

// CiteCommand is the command that introduces a manual citation.
const CiteCommand = "/cite"

// delimiters separate the quote from its author. The second one is spelled
// with a Cyrillic "с", which is what phone keyboards tend to produce.
var delimiters = [][]rune{[]rune("(c)"), []rune("(с)")}

// Parsed is the result of parsing citation syntax.
type Parsed struct {
	Who   string
	What  string
	Spans []Span
}

// Parse splits "<what> (c) <who>" into its parts. Exactly one delimiter must
// be present and both sides must be non-empty. Spans are clipped to the quote
// and rebased onto it.
func Parse(text string, spans []Span) (*Parsed, error) {
	return parseRunes([]rune(text), 0, spans)
}

// ParseCommand parses a "/cite <what> (c) <who>" message. The command may
// carry a bot mention suffix such as "/cite@some_bot".
func ParseCommand(text string, spans []Span) (*Parsed, error) {
	runes := []rune(text)
	start := skipSpace(runes, 0)
	cmd := []rune(CiteCommand)
	if !hasPrefixAt(runes, start, cmd) {
		return nil, ErrParse
	}
	end := start + len(cmd)
	if end < len(runes) && runes[end] == '@' {
		for end < len(runes) && !unicode.IsSpace(runes[end]) {
			end++
		}
	}
	if end < len(runes) && !unicode.IsSpace(runes[end]) {
		// "/citesomething" is a different command.
		return nil, ErrParse
	}
	return parseRunes(runes, end, spans)
}

// IsCiteCommand reports whether text starts with the /cite command.
func IsCiteCommand(text string) bool {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, CiteCommand) {
		return false
	}
	rest := text[len(CiteCommand):]
	return rest == "" || rest[0] == '@' || unicode.IsSpace(rune(rest[0]))
}

func parseRunes(runes []rune, start int, spans []Span) (*Parsed, error) {
	pos, width, count := -1, 0, 0
	for i := start; i < len(runes); i++ {
		for _, d := range delimiters {
			if hasPrefixAt(runes, i, d) {
				if count == 0 {
					pos, width = i, len(d)
				}
				count++
			}
		}
	}
	if count != 1 {
		return nil, ErrParse
	}

	whatFrom, whatTo := trimRegion(runes, start, pos)
	whoFrom, whoTo := trimRegion(runes, pos+width, len(runes))
	if whatFrom == whatTo || whoFrom == whoTo {
		return nil, ErrParse
	}

	return &Parsed{
		Who:   string(runes[whoFrom:whoTo]),
		What:  string(runes[whatFrom:whatTo]),
		Spans: clipSpans(spans, whatFrom, whatTo),
	}, nil
}

// clipSpans keeps the parts of spans that fall inside [from, to) and rebases
// them so that offset 0 is from.
func clipSpans(spans []Span, from, to int) []Span {
	var out []Span
	for _, s := range spans {
		lo := max(s.Offset, from)
		hi := min(s.Offset+s.Length, to)
		if hi <= lo {
			continue
		}
		out = append(out, Span{Offset: lo - from, Length: hi - lo, Style: s.Style})
	}
	return out
}

func trimRegion(runes []rune, from, to int) (int, int) {
	for from < to && unicode.IsSpace(runes[from]) {
		from++
	}
	for to > from && unicode.IsSpace(runes[to-1]) {
		to--
	}
	return from, to
}

func skipSpace(runes []rune, i int) int {
	for i < len(runes) && unicode.IsSpace(runes[i]) {
		i++
	}
	return i
}

func hasPrefixAt(runes []rune, i int, prefix []rune) bool {
	if i+len(prefix) > len(runes) {
		return false
	}
	for j, r := range prefix {
		if runes[i+j] != r {
			return false
		}
	}
	return true
}
