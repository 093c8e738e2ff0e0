package chunker

import (
	"fmt"
	"sort"
	"strings"

	"kb-assistant-be/pkg/extract"
)

// Chunk is one sentence-aligned slice of a document's concatenated text.
// CharStart/CharEnd index into the concatenated document text; Pages
// lists every source page the slice overlaps, ascending.
type Chunk struct {
	Index     int
	Content   string
	Pages     []int
	CharStart int
	CharEnd   int
}

type Options struct {
	ChunkSize int
	Overlap   int
}

func DefaultOptions() Options {
	return Options{ChunkSize: 1200, Overlap: 150}
}

type pageRange struct {
	page  int
	start int
	end   int // exclusive
}

type sentence struct {
	text  string
	start int
}

// Split concatenates the page texts and cuts them into overlapping,
// sentence-aligned chunks. Sentences are packed until the chunk reaches
// ChunkSize, so a chunk may run over by its final sentence. The next
// chunk rewinds whole sentences until at least Overlap characters are
// repeated, never rewinding past the previous chunk's second sentence.
func Split(pages []extract.PageText, opts Options) ([]Chunk, error) {
	if opts.ChunkSize <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", opts.ChunkSize)
	}
	if opts.Overlap < 0 {
		return nil, fmt.Errorf("overlap must not be negative, got %d", opts.Overlap)
	}
	if opts.Overlap >= opts.ChunkSize {
		return nil, fmt.Errorf("overlap %d must be smaller than chunk size %d", opts.Overlap, opts.ChunkSize)
	}

	var builder strings.Builder
	var ranges []pageRange
	for _, p := range pages {
		if strings.TrimSpace(p.Text) == "" {
			continue
		}
		if builder.Len() > 0 {
			builder.WriteByte(' ')
		}
		start := builder.Len()
		builder.WriteString(p.Text)
		ranges = append(ranges, pageRange{page: p.Page, start: start, end: builder.Len()})
	}
	full := builder.String()
	if full == "" {
		return nil, nil
	}

	sentences := splitSentences(full)
	if len(sentences) == 0 {
		return nil, nil
	}

	var chunks []Chunk
	i := 0
	for i < len(sentences) {
		startIdx := i
		currentLen := 0
		for i < len(sentences) && currentLen < opts.ChunkSize {
			currentLen += len(sentences[i].text)
			i++
		}

		start := sentences[startIdx].start
		end := sentences[i-1].start + len(sentences[i-1].text)
		raw := full[start:end]
		trimmedLeft := strings.TrimLeft(raw, " \t\n\r")
		start += len(raw) - len(trimmedLeft)
		content := strings.TrimRight(trimmedLeft, " \t\n\r")
		end = start + len(content)

		if content != "" {
			chunks = append(chunks, Chunk{
				Index:     len(chunks),
				Content:   content,
				Pages:     pagesFor(ranges, start, end),
				CharStart: start,
				CharEnd:   end,
			})
		}

		if i < len(sentences) && opts.Overlap > 0 {
			overlapLen := 0
			j := i
			for j > startIdx && overlapLen < opts.Overlap {
				j--
				overlapLen += len(sentences[j].text)
			}
			// A single oversized sentence must still advance the cursor.
			if j == startIdx {
				j = startIdx + 1
			}
			if j < i {
				i = j
			}
		}
	}

	return chunks, nil
}

// splitSentences cuts text after terminal punctuation followed by
// whitespace. Trailing whitespace stays attached to its sentence so
// offsets into the concatenated text remain exact.
func splitSentences(text string) []sentence {
	var out []sentence
	start := 0
	for i := 0; i < len(text); i++ {
		c := text[i]
		if c != '.' && c != '!' && c != '?' {
			continue
		}
		if i+1 < len(text) && !isSpace(text[i+1]) {
			continue
		}
		end := i + 1
		for end < len(text) && isSpace(text[end]) {
			end++
		}
		out = append(out, sentence{text: text[start:end], start: start})
		start = end
		i = end - 1
	}
	if start < len(text) {
		out = append(out, sentence{text: text[start:], start: start})
	}
	return out
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

func pagesFor(ranges []pageRange, start, end int) []int {
	seen := map[int]bool{}
	var pages []int
	for _, r := range ranges {
		if r.start < end && r.end > start && !seen[r.page] {
			seen[r.page] = true
			pages = append(pages, r.page)
		}
	}
	sort.Ints(pages)
	return pages
}
