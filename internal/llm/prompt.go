package llm

import (
	"strings"
	"unicode/utf8"
)

// maxPromptChars caps how much syllabus text goes into a single prompt.
// Hard cap to bound model cost and latency; assignments past the cutoff in
// very long documents will be missed, and callers accept that.
const maxPromptChars = 15000

const truncationMarker = "\n\n[text truncated]"

var promptInstructions = `You are a syllabus parsing assistant. You will be given the plain text of an academic course syllabus. Extract every graded deliverable (assignments, quizzes, exams, papers, projects) into JSON.

Respond with ONLY valid JSON in this exact format:
{
  "items": [
    {"title": "Quiz 1", "type": "quiz", "description": "Covers chapters 1-3.", "due_date": "2025-02-10"},
    {"title": "Research Paper", "type": "paper", "description": "8-10 pages on an approved topic.", "start_date": "2025-03-01", "due_date": "2025-04-15"}
  ]
}

Rules:
- "type" must be one of: assignment, quiz, exam, paper, project
- "due_date" and "start_date" use YYYY-MM-DD format; omit them if the syllabus gives no date
- Include "start_date" only for papers and projects, when the syllabus says when work should begin
- "description" is a one-sentence summary of what the deliverable covers; omit if the syllabus says nothing beyond the title
- If the year is not stated, infer it from surrounding context (semester dates, other dated items)
- Do not invent deliverables that are not in the text
- If the syllabus contains no deliverables at all, return {"items": []}

Syllabus text:
---
`

// BuildPrompt renders the fixed extraction instructions plus a length-bounded
// excerpt of the syllabus text into a single prompt. Pure function of its
// input and the template.
func BuildPrompt(text string) string {
	text, truncated := boundText(text)
	var sb strings.Builder
	sb.WriteString(promptInstructions)
	sb.WriteString(text)
	if truncated {
		sb.WriteString(truncationMarker)
	}
	sb.WriteString("\n---")
	return sb.String()
}

// boundText applies the prompt length ceiling, reporting whether the input
// was cut.
func boundText(text string) (string, bool) {
	if len(text) <= maxPromptChars {
		return text, false
	}
	cut := maxPromptChars
	// Back up to a rune boundary so the cut never splits a multibyte char.
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut], true
}
