package agent

import (
	"fmt"
	"strings"
)

// draftMarker separates prose from the answer block in non-JSON stage
// output, so a usable draft survives even when a model ignores format
// instructions.
const draftMarker = "=== DRAFT_ANSWER ==="

const plannerPromptTemplate = `You are the planning stage of a document question-answering system.

Question: %s
%s
Produce retrieval queries that together cover the question. Expand the
question three ways: literal keyword phrasings, conceptual rephrasings,
and a hypothetical answer fragment whose wording would appear in a
relevant document. At most %d queries.

Also write a short draft answer from what you already know; it seeds
retrieval and is never shown to the user.

Respond with strict JSON only, in this shape:
{"queries": [{"query": "..."}], "draft": "..."}`

const draftPromptTemplate = `You are the drafting stage of a document question-answering system.

Question: %s

Evidence passages:
%s

Write a draft answer to the question grounded strictly in the evidence
above. Cite nothing that the evidence does not support; say plainly when
the evidence is insufficient. Output the draft after the marker line.

%s
`

const synthesizerPromptTemplate = `You are the synthesis stage of a document question-answering system.

Question: %s

Draft answer:
%s

Polish the draft for presentation: clear structure, lists or short
headings where they help. Do not add claims, facts, or qualifiers that
the draft does not contain. Output only the polished answer.`

const judgePromptTemplate = `You are the judging stage of a document question-answering system.

Question: %s

Candidate answer:
%s

Evidence passages the answer must be grounded in:
%s

Decide whether the answer is complete, correct, and grounded in the
evidence. Be conservative: when in doubt, choose retry. On retry,
explain what is wrong and what evidence is missing, and suggest better
retrieval queries.

Respond with strict JSON only, in this shape:
{"decision": "accept" or "retry", "critique": "...", "missing": "...", "suggested_queries": ["..."]}`

func buildPlannerPrompt(question, critique, missing string, suggested []string, remaining, maxQueries int) string {
	var feedback string
	if critique != "" || missing != "" {
		var sb strings.Builder
		sb.WriteString("\nA previous attempt was rejected.\n")
		if critique != "" {
			fmt.Fprintf(&sb, "Critique: %s\n", critique)
		}
		if missing != "" {
			fmt.Fprintf(&sb, "Missing evidence: %s\n", missing)
		}
		if len(suggested) > 0 {
			fmt.Fprintf(&sb, "Suggested queries: %s\n", strings.Join(suggested, "; "))
		}
		fmt.Fprintf(&sb, "Remaining attempts: %d\n", remaining)
		feedback = sb.String()
	}
	return fmt.Sprintf(plannerPromptTemplate, question, feedback, maxQueries)
}

func buildDraftPrompt(question string, evidence []Evidence) string {
	return fmt.Sprintf(draftPromptTemplate, question, formatEvidence(evidence), draftMarker)
}

func buildSynthesizerPrompt(question, draft string) string {
	return fmt.Sprintf(synthesizerPromptTemplate, question, draft)
}

func buildJudgePrompt(question, answer string, evidence []Evidence) string {
	return fmt.Sprintf(judgePromptTemplate, question, answer, formatEvidence(evidence))
}

// formatEvidence renders evidence passages with document attribution.
func formatEvidence(evidence []Evidence) string {
	if len(evidence) == 0 {
		return "(no evidence retrieved)"
	}
	var sb strings.Builder
	for i, e := range evidence {
		fmt.Fprintf(&sb, "[%d] (%s, %s)\n%s\n\n", i+1, e.DocumentName, e.Provenance, e.Text)
	}
	return strings.TrimRight(sb.String(), "\n")
}

// extractMarkerBlock returns the text after the last marker line, or
// the whole trimmed text when the marker is absent.
func extractMarkerBlock(text, marker string) string {
	if idx := strings.LastIndex(text, marker); idx >= 0 {
		return strings.TrimSpace(text[idx+len(marker):])
	}
	return strings.TrimSpace(text)
}
