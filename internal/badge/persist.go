package badge

// Document is the persisted form of one user's badge collection.
type Document struct {
	Badges []Record `json:"badges"`
}

// ToPersistable converts records into their persisted document.
func ToPersistable(records []Record) Document {
	out := make([]Record, len(records))
	copy(out, records)
	return Document{Badges: out}
}

// FromPersisted converts a persisted document back into records.
func FromPersisted(doc Document) []Record {
	out := make([]Record, len(doc.Badges))
	copy(out, doc.Badges)
	return out
}
