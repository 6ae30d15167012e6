package stagecraft

import "encoding/json"

// Document is a structured value produced by a generation call. The engine
// never inspects Content beyond storing and forwarding it; Kind declares what
// the payload claims to be (e.g. "concept", "faction").
type Document struct {
	Kind    string          `json:"kind"`
	Content json.RawMessage `json:"content"`
}

// Copy returns a copy of the document with its own content buffer.
func (d *Document) Copy() *Document {
	if d == nil {
		return nil
	}
	content := make(json.RawMessage, len(d.Content))
	copy(content, d.Content)
	return &Document{Kind: d.Kind, Content: content}
}

// NewDocument creates a document of the given kind by marshaling value.
func NewDocument(kind string, value any) (*Document, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	return &Document{Kind: kind, Content: data}, nil
}

func copyDocuments(docs []*Document) []*Document {
	if docs == nil {
		return nil
	}
	out := make([]*Document, len(docs))
	for i, d := range docs {
		out[i] = d.Copy()
	}
	return out
}
