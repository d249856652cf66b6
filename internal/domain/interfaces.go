package domain

// Document is a unit of extracted text from an uploaded file.
// PDFs produce one Document per page; other formats produce a single one.
type Document struct {
	ID      string
	Source  string
	Page    int
	Content string
}

// Chunk is a part of a document used for indexing.
// Start and End are byte offsets into the owning Document's Content.
type Chunk struct {
	DocumentID string
	ChunkID    string
	Text       string
	Index      int
	Page       int
	Start      int
	End        int
}

// SearchResult represents a matching chunk with a relevance score.
type SearchResult struct {
	Chunk Chunk
	Score float64
}

// Chunker splits documents into chunks suitable for retrieval indexing.
type Chunker interface {
	Chunk(document Document) ([]Chunk, error)
}

// Summarizer produces a brief summary of the provided text.
type Summarizer interface {
	Summarize(text string, maxSentences int) (string, error)
}
