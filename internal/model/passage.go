package model

// Passage is one unit of reference text returned by a similarity search
type Passage struct {
	Text      string  `json:"text"`
	Source    string  `json:"source"`          // Document identifier
	Relevance float64 `json:"relevance"`       // In [0,1], higher is more relevant
	Query     string  `json:"query,omitempty"` // Query that produced the passage
}
