package model

// Source is one retrieved chunk returned alongside a search answer.
type Source struct {
	DocumentID   string  `json:"document_id"`
	DocumentName string  `json:"document_name,omitempty"`
	Text         string  `json:"text"`
	Score        float32 `json:"score"`
}

type SearchResult struct {
	Answer  string   `json:"answer"`
	Sources []Source `json:"sources"`
}
