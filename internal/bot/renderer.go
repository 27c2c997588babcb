package bot

import (
	"bytes"
	"embed"
	"fmt"
	"html"
	"html/template"
	"sort"
	"strings"

	"nuclight.org/citebot/internal/citation"
)

// TelegramMaxMessageLength is the maximum length of a Telegram message (4096 chars)
const TelegramMaxMessageLength = 4096

//go:embed templates/*
var templates embed.FS

var citationTmpl *template.Template
var searchTmpl *template.Template
var quizResultTmpl *template.Template

// InitTemplates initializes all templates. Must be called before using any Render* functions.
func InitTemplates() error {
	var err error
	citationTmpl, err = template.New("citation.html").ParseFS(templates, "templates/citation.html")
	if err != nil {
		return fmt.Errorf("parse citation template: %w", err)
	}
	searchTmpl, err = template.New("search.html").ParseFS(templates, "templates/search.html")
	if err != nil {
		return fmt.Errorf("parse search template: %w", err)
	}
	quizResultTmpl, err = template.New("quiz_result.html").ParseFS(templates, "templates/quiz_result.html")
	if err != nil {
		return fmt.Errorf("parse quiz result template: %w", err)
	}
	return nil
}

var styleTags = map[citation.Style]string{
	citation.StyleBold:   "b",
	citation.StyleItalic: "i",
	citation.StyleCode:   "code",
}

var styleOrder = []citation.Style{citation.StyleBold, citation.StyleItalic, citation.StyleCode}

// FormatBody renders a citation body as Telegram HTML. Overlapping spans are
// split at every boundary so tags always nest properly.
func FormatBody(what string, spans []citation.Span) template.HTML {
	runes := []rune(what)
	if len(spans) == 0 {
		return template.HTML(html.EscapeString(what))
	}

	points := map[int]bool{0: true, len(runes): true}
	for _, s := range spans {
		from, to := clampSpan(s, len(runes))
		points[from] = true
		points[to] = true
	}
	bounds := make([]int, 0, len(points))
	for p := range points {
		bounds = append(bounds, p)
	}
	sort.Ints(bounds)

	var sb strings.Builder
	for i := 0; i+1 < len(bounds); i++ {
		from, to := bounds[i], bounds[i+1]
		if from == to {
			continue
		}
		active := activeStyles(spans, from, len(runes))
		for _, st := range active {
			sb.WriteString("<" + styleTags[st] + ">")
		}
		sb.WriteString(html.EscapeString(string(runes[from:to])))
		for j := len(active) - 1; j >= 0; j-- {
			sb.WriteString("</" + styleTags[active[j]] + ">")
		}
	}
	return template.HTML(sb.String())
}

func clampSpan(s citation.Span, n int) (int, int) {
	from := min(max(s.Offset, 0), n)
	to := min(max(s.Offset+s.Length, from), n)
	return from, to
}

func activeStyles(spans []citation.Span, at, n int) []citation.Style {
	on := make(map[citation.Style]bool)
	for _, s := range spans {
		from, to := clampSpan(s, n)
		if from <= at && at < to {
			if _, known := styleTags[s.Style]; known {
				on[s.Style] = true
			}
		}
	}
	var active []citation.Style
	for _, st := range styleOrder {
		if on[st] {
			active = append(active, st)
		}
	}
	return active
}

// CitationView is a citation prepared for the templates.
type CitationView struct {
	Row     int
	Body    template.HTML
	Who     string
	Context string
}

// NewCitationView prepares c for rendering. Only free-text comments are shown;
// the bot's own tag and back-references stay hidden.
func NewCitationView(c *citation.Citation, signature string) CitationView {
	v := CitationView{
		Row:  c.Row,
		Body: FormatBody(c.What, c.Spans),
		Who:  c.Who,
	}
	if _, isRef := citation.ParseBackReference(c.Comment); !isRef && c.Comment != citation.SignatureTag(signature) {
		v.Context = c.Comment
	}
	return v
}

// RenderCitation renders a single citation.
func RenderCitation(v CitationView) (string, error) {
	var buf bytes.Buffer
	if err := citationTmpl.Execute(&buf, v); err != nil {
		return "", err
	}
	return strings.TrimRight(buf.String(), "\n"), nil
}

// SearchData holds data for the search results template
type SearchData struct {
	Results   []CitationView
	Truncated bool
}

// RenderSearchResults renders search hits. If the message exceeds Telegram's
// limit, results are dropped from the end until it fits.
func RenderSearchResults(results []CitationView) (string, error) {
	data := &SearchData{Results: results}
	for {
		var buf bytes.Buffer
		if err := searchTmpl.Execute(&buf, data); err != nil {
			return "", err
		}
		result := buf.String()
		if len([]rune(result)) <= TelegramMaxMessageLength || len(data.Results) <= 1 {
			return result, nil
		}
		data.Results = data.Results[:len(data.Results)-1]
		data.Truncated = true
	}
}

// QuizResultData holds data for the quiz result template
type QuizResultData struct {
	Answer   string
	Guessed  bool
	Citation CitationView
}

// RenderQuizResult renders the announcement of a closed quiz.
func RenderQuizResult(data *QuizResultData) (string, error) {
	var buf bytes.Buffer
	if err := quizResultTmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// HelpMessage returns the help message HTML.
func HelpMessage() (string, error) {
	content, err := templates.ReadFile("templates/help.html")
	if err != nil {
		return "", err
	}
	return string(content), nil
}
