package lpsn

// Identification is a search match before its detail page is fetched.
type Identification struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Species is the normalized record scraped from a species detail page.
// Optional fields are nil when their label is missing from the page.
type Species struct {
	ID                  string   `json:"id"`
	Name                string   `json:"name"`
	Author              *string  `json:"author,omitempty"`
	Strain              *string  `json:"strain,omitempty"`
	SequenceAccessionNo *string  `json:"sequence_accession_no,omitempty"`
	Etymology           *string  `json:"etymology,omitempty"`
	Refs                []string `json:"refs"`
	Synonyms            []string `json:"synonyms"`
}
