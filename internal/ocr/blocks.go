package ocr

// BlockKind is the provider's block type.
type BlockKind string

const (
	KindPage          BlockKind = "PAGE"
	KindLine          BlockKind = "LINE"
	KindWord          BlockKind = "WORD"
	KindKeyValueSet   BlockKind = "KEY_VALUE_SET"
	KindTable         BlockKind = "TABLE"
	KindCell          BlockKind = "CELL"
	KindSelection     BlockKind = "SELECTION_ELEMENT"
	RelationshipChild           = "CHILD"
	RelationshipValue           = "VALUE"
	EntityKey                   = "KEY"
	EntityValue                 = "VALUE"
)

// RecognitionBlock is one atomic unit of OCR output. It only lives for the duration
// of a single job's normalization.
type RecognitionBlock struct {
	ID            string         `json:"id"`
	Kind          BlockKind      `json:"kind"`
	Text          string         `json:"text,omitempty"`
	RowIndex      int            `json:"row_index,omitempty"`    // 1-based, 0 when absent
	ColumnIndex   int            `json:"column_index,omitempty"` // 1-based, 0 when absent
	EntityTypes   []string       `json:"entity_types,omitempty"`
	Relationships []Relationship `json:"relationships,omitempty"`
	Selected      bool           `json:"selected,omitempty"`
}

// Relationship links a block to other blocks by id.
type Relationship struct {
	Type string   `json:"type"`
	IDs  []string `json:"ids"`
}

// IsKey reports whether a KEY_VALUE_SET block is the key side of a pair.
func (b RecognitionBlock) IsKey() bool {
	for _, e := range b.EntityTypes {
		if e == EntityKey {
			return true
		}
	}
	return false
}

// Related returns all ids linked through relationships of the given type, in order.
func (b RecognitionBlock) Related(relType string) []string {
	var ids []string
	for _, r := range b.Relationships {
		if r.Type == relType {
			ids = append(ids, r.IDs...)
		}
	}
	return ids
}

// Row returns the 1-based row index, defaulting to 1.
func (b RecognitionBlock) Row() int {
	if b.RowIndex <= 0 {
		return 1
	}
	return b.RowIndex
}

// Column returns the 1-based column index, defaulting to 1.
func (b RecognitionBlock) Column() int {
	if b.ColumnIndex <= 0 {
		return 1
	}
	return b.ColumnIndex
}
