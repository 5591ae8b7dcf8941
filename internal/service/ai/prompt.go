package ai

import (
	"fmt"
	"strings"

	"github.com/zhouzirui/panelroom/backend/internal/analysis/topic"
	"github.com/zhouzirui/panelroom/backend/internal/model/persona"
	"github.com/zhouzirui/panelroom/backend/internal/model/session"
)

// Trigger names what caused an actor to speak.
type Trigger string

const (
	TriggerAudio       Trigger = "audio_message"
	TriggerText        Trigger = "text_message"
	TriggerUserMessage Trigger = "user_message"
	TriggerPeriodic    Trigger = "periodic_activity"
)

// PromptInput is everything a bot prompt is built from.
type PromptInput struct {
	Persona     persona.Persona
	Topic       string
	SessionType session.Type
	Category    topic.Category
	Recent      []session.Message
	Transcript  string
	Trigger     Trigger
}

// BuildBotPrompt renders the full prompt for one bot turn.
func BuildBotPrompt(in PromptInput) string {
	var b strings.Builder

	b.WriteString(systemBlock(in))

	b.WriteString("\n\nRecent conversation context:\n")
	for _, msg := range in.Recent {
		fmt.Fprintf(&b, "%s: %s\n", msg.Sender, msg.Content)
	}

	if in.Transcript != "" {
		fmt.Fprintf(&b, "\nLatest audio message: %q\n", in.Transcript)
	}

	fmt.Fprintf(&b, "\nCurrent situation: %s\n", Situation(in.Trigger, in.SessionType, in.Transcript != ""))

	styleLabel, style := "GD", in.Persona.DiscussionStyle
	if in.SessionType == session.TypeInterview {
		styleLabel, style = "interview", in.Persona.InterviewStyle
	}

	b.WriteString("\nInstructions for your response:\n")
	fmt.Fprintf(&b, "- Stay focused on the topic: %q\n", in.Topic)
	fmt.Fprintf(&b, "- Respond naturally as %s with your personality: %s\n", in.Persona.Name, in.Persona.Personality)
	b.WriteString("- Keep response conversational and engaging (1-2 sentences maximum)\n")
	b.WriteString("- Add genuine value to the discussion based on your specialties\n")
	b.WriteString("- If responding to audio, acknowledge and build meaningfully on the content\n")
	fmt.Fprintf(&b, "- Use your %s style: %s\n", styleLabel, style)
	b.WriteString("- Avoid repetitive or generic responses\n")
	b.WriteString("- Ask follow-up questions or provide insights when appropriate\n")
	b.WriteString("- Don't dominate the conversation\n")
	b.WriteString("- Use plain text only - no asterisks (*), markdown, or special formatting\n")
	b.WriteString("- Write as if you're having a natural professional conversation\n")
	fmt.Fprintf(&b, "- Reference relevant %s concepts if applicable\n", in.Category.Name)
	b.WriteString("\nYour response (plain text only):")

	return b.String()
}

func systemBlock(in PromptInput) string {
	p := in.Persona
	var b strings.Builder

	fmt.Fprintf(&b, "You are %s, participating in a %s about %q.\n\n", p.Name, in.SessionType, in.Topic)
	fmt.Fprintf(&b, "Your personality: %s\n", p.Personality)
	fmt.Fprintf(&b, "Your key traits: %s\n", strings.Join(p.Traits, ", "))
	fmt.Fprintf(&b, "Your specialties: %s", strings.Join(p.Specialties, ", "))

	switch in.SessionType {
	case session.TypeInterview:
		fmt.Fprintf(&b, "\nYour interview style: %s\n\n", p.InterviewStyle)
		b.WriteString("As an interview participant, you should:\n")
		b.WriteString("- Ask insightful follow-up questions\n")
		b.WriteString("- Share relevant professional experiences (hypothetical but realistic)\n")
		b.WriteString("- Demonstrate knowledge in your specialty areas\n")
		b.WriteString("- Show genuine interest in the candidate's responses\n")
		b.WriteString("- Provide constructive feedback when appropriate")
	case session.TypeGroupDiscussion:
		fmt.Fprintf(&b, "\nYour GD style: %s\n\n", p.DiscussionStyle)
		b.WriteString("As a group discussion participant, you should:\n")
		b.WriteString("- Build on others' ideas constructively\n")
		b.WriteString("- Share different perspectives and viewpoints\n")
		b.WriteString("- Ask thought-provoking questions\n")
		b.WriteString("- Provide real-world examples or scenarios\n")
		b.WriteString("- Help move the discussion forward\n")
		b.WriteString("- Ensure all voices are heard")
	}

	if in.Category.Name != "" && in.Category.Name != topic.General.Name {
		fmt.Fprintf(&b, "\n\nTopic category: %s\n", in.Category.Name)
		fmt.Fprintf(&b, "Relevant insights you can contribute: %s", strings.Join(in.Category.Insights, ", "))
	}

	return b.String()
}

// Situation describes the moment the actor is speaking into.
func Situation(trigger Trigger, sessionType session.Type, hasTranscript bool) string {
	switch {
	case trigger == TriggerAudio:
		suffix := ""
		if hasTranscript {
			suffix = " with the transcript provided"
		}
		return "Someone just shared an audio message" + suffix + ". Respond naturally and build on their contribution."
	case trigger == TriggerPeriodic:
		return "The conversation needs a boost. Share a relevant insight, ask a thought-provoking question, or introduce a new perspective."
	case sessionType == session.TypeInterview:
		return "You are in an interview setting. Ask insightful questions, share professional insights, or provide constructive feedback."
	default:
		return "You are in a group discussion. Build on ideas, share perspectives, or help move the conversation forward."
	}
}
