package ai

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/zhouzirui/panelroom/backend/internal/analysis/topic"
	"github.com/zhouzirui/panelroom/backend/internal/model/persona"
	"github.com/zhouzirui/panelroom/backend/internal/model/session"
)

func TestBuildBotPromptGroupDiscussion(t *testing.T) {
	alex := persona.Seed()[0]
	recent := []session.Message{
		{Sender: "alice", Content: "Should AI systems explain their decisions?"},
		{Sender: "Sam", Content: "Transparency builds trust."},
	}

	prompt := BuildBotPrompt(PromptInput{
		Persona:     alex,
		Topic:       "AI ethics",
		SessionType: session.TypeGroupDiscussion,
		Category:    topic.Classify("AI ethics", recent),
		Recent:      recent,
		Trigger:     TriggerText,
	})

	assert.Contains(t, prompt, `You are Alex, participating in a group-discussion about "AI ethics".`)
	assert.Contains(t, prompt, "Your GD style: "+alex.DiscussionStyle)
	assert.Contains(t, prompt, "Topic category: technology")
	assert.Contains(t, prompt, "alice: Should AI systems explain their decisions?\nSam: Transparency builds trust.\n")
	assert.Contains(t, prompt, "Current situation: You are in a group discussion.")
	assert.NotContains(t, prompt, "Latest audio message")
	assert.True(t, strings.HasSuffix(prompt, "Your response (plain text only):"))
}

func TestBuildBotPromptInterviewAudio(t *testing.T) {
	morgan := persona.Seed()[5]

	prompt := BuildBotPrompt(PromptInput{
		Persona:     morgan,
		Topic:       "weekend hobbies",
		SessionType: session.TypeInterview,
		Category:    topic.General,
		Transcript:  "I like hiking",
		Trigger:     TriggerAudio,
	})

	assert.Contains(t, prompt, "Your interview style: "+morgan.InterviewStyle)
	assert.Contains(t, prompt, "As an interview participant")
	assert.NotContains(t, prompt, "Topic category:")
	assert.Contains(t, prompt, `Latest audio message: "I like hiking"`)
	assert.Contains(t, prompt, "with the transcript provided")
	assert.Contains(t, prompt, "- Use your interview style: "+morgan.InterviewStyle)
}

func TestSituationPeriodic(t *testing.T) {
	got := Situation(TriggerPeriodic, session.TypeInterview, false)
	assert.True(t, strings.HasPrefix(got, "The conversation needs a boost."))

	got = Situation(TriggerUserMessage, session.TypeInterview, false)
	assert.True(t, strings.HasPrefix(got, "You are in an interview setting."))
}
