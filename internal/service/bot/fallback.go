package bot

import (
	"fmt"

	"github.com/zhouzirui/panelroom/backend/internal/model/session"
)

// fallbacks is keyed by persona personality, then session type.
var fallbacks = map[string]map[session.Type]string{
	"analytical and detail-oriented": {
		session.TypeInterview:       "I'd like to understand the methodology behind that approach. Can you walk me through your thought process?",
		session.TypeGroupDiscussion: "Let's break this down systematically. What are the key components we should consider?",
	},
	"creative and enthusiastic": {
		session.TypeInterview:       "That's fascinating! Have you considered any alternative approaches to this challenge?",
		session.TypeGroupDiscussion: "What if we approached this from a completely different angle? I'm thinking about...",
	},
	"diplomatic and balanced": {
		session.TypeInterview:       "I appreciate that perspective. How do you typically handle conflicting viewpoints in your work?",
		session.TypeGroupDiscussion: "I can see merit in both sides of this. What do others think about finding a middle ground?",
	},
	"practical and results-focused": {
		session.TypeInterview:       "Let's focus on the practical implementation. What specific steps would you take to achieve this?",
		session.TypeGroupDiscussion: "That's a good point. How can we translate this into actionable next steps?",
	},
	"collaborative and supportive": {
		session.TypeInterview:       "I really like how you approached that. Can you share more about your collaboration style?",
		session.TypeGroupDiscussion: "Great insight! Building on what you said, I think we could also consider...",
	},
	"challenging and critical thinker": {
		session.TypeInterview:       "That's interesting. What potential challenges or risks do you see with this approach?",
		session.TypeGroupDiscussion: "Before we move forward, shouldn't we consider the potential downsides of this direction?",
	},
}

// Fallback returns the canned line used when generation fails.
func Fallback(personality string, sessionType session.Type, topic string) string {
	if byType, ok := fallbacks[personality]; ok {
		if line, ok := byType[sessionType]; ok {
			return line
		}
	}
	return fmt.Sprintf("That's an interesting perspective on %s. Can you elaborate further?", topic)
}
