package evidence

import "kb-assistant-be/internal/repository/contract"

// Refusal is returned to the client instead of a streamed answer when
// retrieval produced nothing worth grounding on.
type Refusal struct {
	Message     string   `json:"message"`
	Suggestions []string `json:"suggestions"`
}

type Result struct {
	Pass    bool
	Chunks  []contract.RetrievedChunk
	Refusal *Refusal
}

// Check gates answer generation on retrieval quality. Empty results and
// results whose best similarity falls below the threshold both refuse,
// each with its own message.
func Check(chunks []contract.RetrievedChunk, threshold float64) Result {
	if len(chunks) == 0 {
		return Result{
			Pass: false,
			Refusal: &Refusal{
				Message: "I couldn't find any relevant information in the knowledge base to answer your question.",
				Suggestions: []string{
					"Try rephrasing your question with different keywords.",
					"Check if the topic is covered in the documentation.",
					"Contact support for further assistance.",
				},
			},
		}
	}

	maxSimilarity := chunks[0].Similarity
	for _, c := range chunks[1:] {
		if c.Similarity > maxSimilarity {
			maxSimilarity = c.Similarity
		}
	}

	if maxSimilarity < threshold {
		return Result{
			Pass: false,
			Refusal: &Refusal{
				Message: "I found some documents, but they don't seem closely related enough to confidently answer your question.",
				Suggestions: []string{
					"Could you be more specific?",
					"Try asking about a different topic.",
					"The knowledge base might not have this information yet.",
				},
			},
		}
	}

	return Result{Pass: true, Chunks: chunks}
}
