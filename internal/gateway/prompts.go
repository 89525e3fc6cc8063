package gateway

import (
	"fmt"
	"strings"

	"github.com/nguyentantai21042004/meeting-flow/internal/contextstore"
	"github.com/nguyentantai21042004/meeting-flow/internal/knowledge"
)

const (
	transcribePrompt = "Please transcribe this audio accurately. Group transcriptions into sections by speaker (e.g. Speaker 1:, Speaker 2:)."

	keywordPromptFormat = `Extract the 3 to 6 most important search keywords or short phrases from the following meeting transcript. Return ONLY the keywords, comma-separated, with no explanation or numbering.

Transcript:
%s`

	defaultUserRequest = "(No specific request provided, generate a standard concise summary following the custom instructions)"

	snippetMaxLen = 500
)

// buildSystemPrompt assembles the summarization system instruction from
// the saved preferences and any external context documents.
func buildSystemPrompt(prefs contextstore.Preferences, externalContext string) string {
	if externalContext == "" {
		externalContext = "No external context provided."
	}
	return fmt.Sprintf(`You are an AI assistant specialized in summarizing meeting audio based on provided business context, external documents, and instructions.
**Business Context:**
%s

**External Context from Documents:**
%s

**Custom Instructions for Summarization:**
%s
`, prefs.BusinessContext, externalContext, prefs.CustomInstructions)
}

// buildUserMessage assembles the summarization request, embedding the
// retrieved knowledge snippets and the caller's instruction.
func buildUserMessage(userPrompt string, snippets []knowledge.Snippet) string {
	var b strings.Builder
	b.WriteString("Please analyze the audio content of the provided file and generate an accurate and concise summary, following the provided instructions. Ensure the output uses basic markdown (like bolding key points **like this**, using italics *like this*, and potentially section headers ## Like This ## if appropriate).\n")

	if len(snippets) > 0 {
		b.WriteString("\n**Relevant Context from the Knowledge Base:**\n")
		for _, sn := range snippets {
			fmt.Fprintf(&b, "- [%s] %s\n", sn.Source, truncateSnippet(sn.Content, snippetMaxLen))
		}
	}

	if userPrompt == "" {
		userPrompt = defaultUserRequest
	}
	fmt.Fprintf(&b, "\n**User's Specific Request for this summary:**\n%s\n", userPrompt)
	return b.String()
}

// truncateSnippet bounds snippet text for prompt inclusion, marking the
// cut with an ellipsis.
func truncateSnippet(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen]) + "..."
}
