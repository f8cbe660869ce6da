// Package knowledge builds and queries the lexical TF-IDF index used to
// ground prompts in a document corpus.
package knowledge

import (
	"fmt"
	"math"
)

// Index is the persisted artifact. It is built wholesale and replaced
// atomically; it is never mutated after construction.
type Index struct {
	TotalChunks int                `json:"totalChunks"`
	IDF         map[string]float64 `json:"idf"`
	Docs        []Doc              `json:"docs"`
}

type Doc struct {
	Path   string  `json:"path"`
	Title  string  `json:"title"`
	Chunks []Chunk `json:"chunks"`
}

type Chunk struct {
	Text string         `json:"text"`
	TF   map[string]int `json:"tf"`
}

// SourceText is one extracted document ready for chunking.
type SourceText struct {
	Path  string
	Title string
	Text  string
}

// IDF computes the smoothed inverse document frequency
// ln((N+1)/(df+1)) + 1.
func IDF(totalChunks, df int) float64 {
	return math.Log(float64(totalChunks+1)/float64(df+1)) + 1
}

// BuildIndex chunks, tokenizes and weighs the given documents in order.
func BuildIndex(docs []SourceText, chunker Chunker, tok *Tokenizer) *Index {
	b := newIndexBuilder(chunker, tok)
	for _, src := range docs {
		b.add(src)
	}
	return b.finish()
}

// indexBuilder accumulates documents and corpus document frequencies.
type indexBuilder struct {
	chunker Chunker
	tok     *Tokenizer
	idx     *Index
	df      map[string]int
}

func newIndexBuilder(chunker Chunker, tok *Tokenizer) *indexBuilder {
	return &indexBuilder{
		chunker: chunker,
		tok:     tok,
		idx:     &Index{IDF: make(map[string]float64), Docs: []Doc{}},
		df:      make(map[string]int),
	}
}

func (b *indexBuilder) add(src SourceText) Doc {
	doc := Doc{Path: src.Path, Title: src.Title, Chunks: []Chunk{}}
	for _, text := range b.chunker.Split(src.Text) {
		tf := TermFrequency(b.tok.Tokenize(text))
		for term := range tf {
			b.df[term]++
		}
		doc.Chunks = append(doc.Chunks, Chunk{Text: text, TF: tf})
		b.idx.TotalChunks++
	}
	b.idx.Docs = append(b.idx.Docs, doc)
	return doc
}

func (b *indexBuilder) finish() *Index {
	for term, n := range b.df {
		b.idx.IDF[term] = IDF(b.idx.TotalChunks, n)
	}
	return b.idx
}

// Validate checks the artifact invariants: totalChunks matches the chunk
// count and every tf key has an idf entry.
func (idx *Index) Validate() error {
	if idx == nil {
		return fmt.Errorf("index is nil")
	}
	count := 0
	for _, doc := range idx.Docs {
		for ci, ch := range doc.Chunks {
			count++
			for term := range ch.TF {
				if _, ok := idx.IDF[term]; !ok {
					return fmt.Errorf("term %q in %s chunk %d has no idf entry", term, doc.Path, ci)
				}
			}
		}
	}
	if count != idx.TotalChunks {
		return fmt.Errorf("totalChunks is %d but index holds %d chunks", idx.TotalChunks, count)
	}
	return nil
}
