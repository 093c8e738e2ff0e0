package cite

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kb-assistant-be/internal/repository/contract"
)

func TestFromChunks(t *testing.T) {
	first := uuid.New()
	second := uuid.New()
	chunks := []contract.RetrievedChunk{
		{ChunkId: first, DocumentTitle: "Handbook", DocumentURL: "https://kb/handbook.pdf", Pages: []int{2, 3}, Section: "Membership", Similarity: 0.9},
		{ChunkId: second, DocumentTitle: "Handbook", Pages: []int{7}, Similarity: 0.4},
	}

	citations := FromChunks(chunks)

	require.Len(t, citations, 2)
	assert.Equal(t, first, citations[0].ChunkId)
	assert.Equal(t, "Handbook", citations[0].DocumentTitle)
	assert.Equal(t, "https://kb/handbook.pdf", citations[0].URL)
	assert.Equal(t, []int{2, 3}, citations[0].Pages)
	assert.Equal(t, "Membership", citations[0].Section)
	assert.Equal(t, second, citations[1].ChunkId)
	assert.Empty(t, citations[1].URL)
}

func TestFromChunks_Empty(t *testing.T) {
	citations := FromChunks(nil)
	assert.NotNil(t, citations)
	assert.Empty(t, citations)
}
