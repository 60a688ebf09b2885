package provider

import (
	"fmt"
	"strings"
)

// Summary styles accepted by SummarizeOptions.Style.
const (
	StyleProfessional = "professional"
	StyleBulletPoints = "bullet_points"
	StyleBrief        = "brief"
	StyleDetailed     = "detailed"
)

const summarySystemPrompt = "You are a professional transcription summarizer. " +
	"Work only from the transcription you are given and never invent content."

var summaryTemplates = map[string]string{
	StyleProfessional: `Create a clear, well-structured summary of the following transcription.

Focus on:
- Key discussion points and main topics
- Important decisions or conclusions reached
- Action items or next steps mentioned

Transcription:
%s

Professional summary:`,

	StyleBulletPoints: `Summarize the following transcription into clear bullet points.

Focus on:
- Main topics discussed
- Key decisions or outcomes
- Action items with owners (if mentioned)

Transcription:
%s

Bullet point summary:`,

	StyleBrief: `Provide a brief 2-3 sentence summary of the following transcription,
capturing only the most essential points.

Transcription:
%s

Brief summary:`,

	StyleDetailed: `Create a comprehensive, detailed summary of the following transcription.

Include:
- Executive summary (2-3 sentences)
- Main discussion topics with details
- Decisions made and their rationale
- Action items with deadlines (if mentioned)

Transcription:
%s

Detailed summary:`,
}

// buildSummaryPrompt renders the user prompt for the given style, falling
// back to the professional template for unknown styles.
func buildSummaryPrompt(text string, opts SummarizeOptions) string {
	tmpl, ok := summaryTemplates[opts.Style]
	if !ok {
		tmpl = summaryTemplates[StyleProfessional]
	}

	prompt := fmt.Sprintf(tmpl, text)
	if opts.MaxLength > 0 {
		prompt += fmt.Sprintf("\n\nKeep the summary under %d words.", opts.MaxLength)
	}
	return strings.TrimSpace(prompt)
}
