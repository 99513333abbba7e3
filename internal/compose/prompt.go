package compose

import (
	"fmt"
	"strings"

	"github.com/Shahadat99x/healthcare-assistant-ai/internal/llm"
	"github.com/Shahadat99x/healthcare-assistant-ai/internal/retrieval"
	"github.com/Shahadat99x/healthcare-assistant-ai/internal/session"
)

// systemRules is the fixed preamble for every generation call. Grounding and
// refusal constraints live here as a backstop; the deterministic gates in
// front of the model remain the real enforcement.
const systemRules = "You are a helpful medical triage assistant. Provide clear, safe advice based on the provided TRUSTED SOURCES. " +
	"Do not replace professional care. If urgent, advise calling emergency services. " +
	"NEVER provide a diagnosis. NEVER provide medication dosages (mg/frequency). "

// groundedInstructions constrains the model to the retrieved context.
const groundedInstructions = "INSTRUCTIONS: Use ONLY the provided trusted sources to answer the user's question. " +
	"Cite the sources using their numeric IDs (e.g. [1], [2]) in your response where appropriate. " +
	"DO NOT use filenames or chunk IDs. ONLY use [1], [2], etc. " +
	"If the sources do not cover the user's specific symptoms, state that you cannot find specific guidelines. " +
	"Structure your answer:\n1. Brief Summary\n2. General Triage Advice (strictly based on sources)\n3. When to see a doctor\n"

// ungroundedInstructions keeps the model generic when nothing passed the
// grounding threshold.
const ungroundedInstructions = "INSTRUCTIONS: No relevant local medical guidelines were found. " +
	"State clearly that you cannot provide specific medical advice without sources. " +
	"Provide mostly general safety tips and ask the user to consult a doctor. " +
	"Do NOT hallucinate medical facts."

// BuildPrompt assembles the generation messages: system rules plus optional
// retrieved context, the short session history, then the user message.
// Deterministic for identical inputs.
func (c *Composer) BuildPrompt(message string, history []session.Turn, retr *retrieval.Result, urgency string) []llm.Message {
	var sys strings.Builder
	sys.WriteString(systemRules)

	if retr != nil && retr.Grounded() {
		sys.WriteString("\n\nCONTEXT FROM TRUSTED MEDICAL GUIDELINES:\n")
		for i, cit := range retr.Citations {
			org := cit.Org
			if org == "" {
				org = "Unknown"
			}
			sys.WriteString(fmt.Sprintf("Source [%d] (%s): %s\n", i+1, org, cit.FullText))
		}
		sys.WriteString("\n")
		sys.WriteString(groundedInstructions)
		sys.WriteString(fmt.Sprintf("URGENCY ASSESSMENT: %s.\n", strings.ToUpper(urgency)))
	} else if retr != nil && retr.Status == retrieval.StatusNotGrounded {
		sys.WriteString("\n\nCONTEXT: No relevant medical guidelines found locally.\n\n")
		sys.WriteString(ungroundedInstructions)
	}

	messages := []llm.Message{{Role: "system", Content: sys.String()}}
	for _, t := range history {
		if t.Role == "user" || t.Role == "assistant" {
			messages = append(messages, llm.Message{Role: t.Role, Content: t.Content})
		}
	}
	messages = append(messages, llm.Message{Role: "user", Content: message})
	return messages
}
