package prompt

import (
	"fmt"
	"strings"

	"kbchat-be/internal/entity"
)

// NoContextMarker stands in for the context block when retrieval found nothing.
const NoContextMarker = "No relevant context was found in the knowledge base for this question."

const contextSeparator = "\n\n---\n\n"

// ComposedPrompt is the generation input for one question. Preamble travels as
// the system prompt; Render produces the user-turn text.
type ComposedPrompt struct {
	Preamble     string
	ContextBlock string
	UserQuestion string
}

// Compose is pure: equal inputs give byte-identical prompts.
func Compose(preamble string, chunks []entity.RetrievedChunk, question string) ComposedPrompt {
	return ComposedPrompt{
		Preamble:     preamble,
		ContextBlock: ContextBlock(chunks),
		UserQuestion: question,
	}
}

// ContextBlock renders chunks in the given order, numbered from 1.
func ContextBlock(chunks []entity.RetrievedChunk) string {
	if len(chunks) == 0 {
		return NoContextMarker
	}

	parts := make([]string, 0, len(chunks))
	for i, ch := range chunks {
		var sb strings.Builder
		fmt.Fprintf(&sb, "Context %d:\n", i+1)
		if ch.SourceTag != "" {
			fmt.Fprintf(&sb, "Source: %s\n", ch.SourceTag)
		}
		sb.WriteString(ch.Text)
		parts = append(parts, sb.String())
	}
	return strings.Join(parts, contextSeparator)
}

func (p ComposedPrompt) HasContext() bool {
	return p.ContextBlock != NoContextMarker
}

// Render builds the final user message sent after the prior session turns.
func (p ComposedPrompt) Render() string {
	var prompt strings.Builder
	if p.HasContext() {
		p.writeContextIntro(&prompt)
	} else {
		p.writeNoContextIntro(&prompt)
	}
	p.writeUserQuestion(&prompt)
	p.writeInstruction(&prompt)
	return prompt.String()
}

func (p ComposedPrompt) writeContextIntro(prompt *strings.Builder) {
	prompt.WriteString("Based on the following context from the knowledge base, please answer the user's question.\n\n")
	prompt.WriteString("Retrieved Context:\n")
	prompt.WriteString(p.ContextBlock)
	prompt.WriteString("\n\n")
}

func (p ComposedPrompt) writeNoContextIntro(prompt *strings.Builder) {
	prompt.WriteString(NoContextMarker)
	prompt.WriteString("\n\n")
}

func (p ComposedPrompt) writeUserQuestion(prompt *strings.Builder) {
	prompt.WriteString("User Question: ")
	prompt.WriteString(p.UserQuestion)
	prompt.WriteString("\n\n")
}

func (p ComposedPrompt) writeInstruction(prompt *strings.Builder) {
	if p.HasContext() {
		prompt.WriteString("Please provide a helpful answer based on the context above. If the context doesn't fully answer the question, please say so.")
		return
	}
	prompt.WriteString("Please acknowledge that you don't have specific information about this in the knowledge base, but you can provide general assistance if appropriate.")
}
