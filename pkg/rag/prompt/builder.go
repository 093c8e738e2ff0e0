package prompt

import (
	"fmt"
	"strings"

	"kb-assistant-be/internal/repository/contract"
)

// BuildGrounded assembles the system prompt that constrains the model
// to the retrieved context. Each chunk is labelled with its source
// document and pages so the model can stay anchored, though inline
// citation markers are explicitly forbidden in the output.
func BuildGrounded(chunks []contract.RetrievedChunk, userQuestion string) string {
	var contextParts []string
	for i, c := range chunks {
		contextParts = append(contextParts, fmt.Sprintf(
			"[Source %d] (Document: %s, Page: %s)\n%s",
			i+1, c.DocumentTitle, formatPages(c.Pages), c.Content,
		))
	}
	context := strings.Join(contextParts, "\n\n---\n\n")

	return strings.TrimSpace(fmt.Sprintf(`
You are the CSEC (Computer Science and Engineering Club) AI Assistant.
Your goal is to provide accurate, helpful, and concise answers based ONLY on the provided context.

CONTEXT FROM KNOWLEDGE BASE:
%s

USER QUESTION:
%s

INSTRUCTIONS:
1. Use ONLY the information in the CONTEXT above.
2. If the answer is not in the context, say: "I'm sorry, I don't have enough information in my current documentation to answer that."
3. Use markdown formatting (bolding, lists) for readability.
4. Do NOT use inline citations like [Source 1], [1], or (Source 1) in your response text. The user interface will automatically display the sources for you.
5. Keep your tone professional, encouraging, and club-centric.

STRICT RULE: Do not use any outside knowledge. If the context is missing specific details, state that you don't know based on the documents.
`, context, userQuestion))
}

func formatPages(pages []int) string {
	if len(pages) == 0 {
		return "unknown"
	}
	parts := make([]string, len(pages))
	for i, p := range pages {
		parts[i] = fmt.Sprintf("%d", p)
	}
	return strings.Join(parts, ", ")
}
