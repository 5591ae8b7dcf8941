package topic

import (
	"strings"
	"unicode"

	"github.com/zhouzirui/panelroom/backend/internal/model/session"
)

// Category groups the keywords that identify a subject area and the insights a bot can bring to it.
type Category struct {
	Name     string
	Keywords []string
	Insights []string
}

// General is returned when no catalog keyword matches.
var General = Category{Name: "general"}

// catalog order breaks score ties.
var catalog = []Category{
	{
		Name:     "technology",
		Keywords: []string{"ai", "software", "development", "programming", "digital", "automation", "innovation"},
		Insights: []string{"industry trends", "technical challenges", "future implications", "best practices"},
	},
	{
		Name:     "leadership",
		Keywords: []string{"management", "team", "leadership", "motivation", "decision-making", "delegation"},
		Insights: []string{"leadership styles", "team dynamics", "conflict resolution", "performance management"},
	},
	{
		Name:     "business",
		Keywords: []string{"strategy", "market", "customer", "revenue", "growth", "competition", "efficiency"},
		Insights: []string{"market analysis", "business models", "competitive advantage", "scalability"},
	},
	{
		Name:     "communication",
		Keywords: []string{"presentation", "networking", "collaboration", "feedback", "negotiation"},
		Insights: []string{"communication styles", "active listening", "persuasion", "cultural sensitivity"},
	},
	{
		Name:     "problem-solving",
		Keywords: []string{"analysis", "solution", "challenge", "innovation", "methodology", "evaluation"},
		Insights: []string{"structured approaches", "creative thinking", "root cause analysis", "implementation"},
	},
}

// Categories returns the catalog in tie-break order.
func Categories() []Category {
	out := make([]Category, len(catalog))
	copy(out, catalog)
	return out
}

// shortKeyword is the length up to which a keyword must match a whole word, so that
// "ai" does not count inside "said" or "explain".
const shortKeyword = 3

// Classify scores each category by how many of its keywords appear in the topic
// and the supplied messages. Matching is case-insensitive; longer keywords match as
// substrings, short ones only as whole words.
func Classify(topic string, recent []session.Message) Category {
	var builder strings.Builder
	builder.WriteString(strings.ToLower(topic))
	for _, msg := range recent {
		builder.WriteByte(' ')
		builder.WriteString(strings.ToLower(msg.Content))
	}
	text := builder.String()
	words := make(map[string]struct{})
	for _, w := range strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		words[w] = struct{}{}
	}

	best := General
	bestScore := 0
	for _, category := range catalog {
		score := 0
		for _, keyword := range category.Keywords {
			if len(keyword) <= shortKeyword {
				if _, ok := words[keyword]; ok {
					score++
				}
				continue
			}
			if strings.Contains(text, keyword) {
				score++
			}
		}
		// strictly greater keeps the earlier category on ties
		if score > bestScore {
			best = category
			bestScore = score
		}
	}
	return best
}
