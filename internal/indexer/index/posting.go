package index

// Posting records a document's term frequency for one token.
type Posting struct {
	Ref string  `json:"ref" cbor:"r"`
	TF  float64 `json:"tf" cbor:"t"`
}

type PostingList []Posting

// TermEntry is a flattened trie node: a token with its postings.
type TermEntry struct {
	Term     string      `json:"term" cbor:"t"`
	DocFreq  int         `json:"df" cbor:"d"`
	Postings PostingList `json:"postings" cbor:"p"`
}

// FieldTerms is the flattened postings of one field.
type FieldTerms struct {
	Field   string      `json:"field" cbor:"f"`
	Entries []TermEntry `json:"entries" cbor:"e"`
}
