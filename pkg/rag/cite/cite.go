package cite

import (
	"kb-assistant-be/internal/entity"
	"kb-assistant-be/internal/repository/contract"
)

// FromChunks maps each retrieved chunk to a citation, keeping the
// retrieval order so the first citation is the strongest match.
func FromChunks(chunks []contract.RetrievedChunk) []entity.Citation {
	citations := make([]entity.Citation, 0, len(chunks))
	for _, c := range chunks {
		citations = append(citations, entity.Citation{
			ChunkId:       c.ChunkId,
			DocumentTitle: c.DocumentTitle,
			URL:           c.DocumentURL,
			Pages:         c.Pages,
			Section:       c.Section,
		})
	}
	return citations
}
