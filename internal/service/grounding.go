package service

import (
	"fmt"
	"slices"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Grounding carries the web search context the backend used.
type Grounding struct {
	Queries     []string
	Sources     []GroundingSource
	Suggestions []string
}

type GroundingSource struct {
	Title string
	URI   string
}

func (g *Grounding) merge(other *Grounding) *Grounding {
	if g == nil {
		g = &Grounding{}
	}
	for _, q := range other.Queries {
		if !slices.Contains(g.Queries, q) {
			g.Queries = append(g.Queries, q)
		}
	}
	for _, s := range other.Sources {
		if !slices.Contains(g.Sources, s) {
			g.Sources = append(g.Sources, s)
		}
	}
	for _, s := range other.Suggestions {
		if !slices.Contains(g.Suggestions, s) {
			g.Suggestions = append(g.Suggestions, s)
		}
	}
	return g
}

func (g *Grounding) Empty() bool {
	return g == nil || (len(g.Queries) == 0 && len(g.Sources) == 0 && len(g.Suggestions) == 0)
}

// Summary renders the grounding for inclusion in a tool result.
func (g *Grounding) Summary() string {
	if g.Empty() {
		return ""
	}
	var sb strings.Builder
	sb.WriteString("Search grounding:")
	if len(g.Queries) > 0 {
		sb.WriteString("\n  queries: " + strings.Join(g.Queries, "; "))
	}
	for _, s := range g.Sources {
		title := s.Title
		if title == "" {
			title = s.URI
		}
		sb.WriteString(fmt.Sprintf("\n  - %s <%s>", title, s.URI))
	}
	if len(g.Suggestions) > 0 {
		sb.WriteString("\n  suggestions: " + strings.Join(g.Suggestions, "; "))
	}
	return sb.String()
}

// ParseSuggestions extracts search suggestion chips from the rendered search
// entry point HTML returned with grounded responses.
func ParseSuggestions(renderedContent string) []string {
	if strings.TrimSpace(renderedContent) == "" {
		return nil
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(renderedContent))
	if err != nil {
		return nil
	}

	var out []string
	doc.Find(".chip").Each(func(_ int, sel *goquery.Selection) {
		text := strings.Join(strings.Fields(sel.Text()), " ")
		if text != "" && !slices.Contains(out, text) {
			out = append(out, text)
		}
	})
	return out
}
