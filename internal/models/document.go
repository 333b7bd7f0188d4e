package models

import "strings"

// EmptyResponse is what a Response renders as when no answer was produced.
const EmptyResponse = "Empty Response"

type Document struct {
	ID       string
	Source   string
	Title    string
	Content  string
	Metadata map[string]interface{}
}

// Node is a chunk of a Document, the unit that gets embedded and retrieved.
type Node struct {
	ID         string
	DocumentID string
	Index      int
	Text       string
	Metadata   map[string]interface{}
	Embedding  []float32
}

type ScoredNode struct {
	Node
	Score float64
}

type Response struct {
	Answer      string
	SourceNodes []ScoredNode
}

func (r *Response) String() string {
	if r == nil || strings.TrimSpace(r.Answer) == "" {
		return EmptyResponse
	}
	return r.Answer
}
