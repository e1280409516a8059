package ocr

import "strings"

// NormalizedDocument is the provider-independent product of one OCR job.
type NormalizedDocument struct {
	Lines     []string     `json:"lines"`
	KeyValues []KeyValue   `json:"key_values"`
	Tables    [][][]string `json:"tables"`
}

// KeyValue is one form field. Keys are unique within a document.
type KeyValue struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Value looks up a key.
func (d NormalizedDocument) Value(key string) (string, bool) {
	for _, kv := range d.KeyValues {
		if kv.Key == key {
			return kv.Value, true
		}
	}
	return "", false
}

// Empty reports whether OCR found nothing usable.
func (d NormalizedDocument) Empty() bool {
	return len(d.Lines) == 0 && len(d.KeyValues) == 0 && len(d.Tables) == 0
}

// Normalize converts raw recognition blocks into lines, key-values and tables.
// It is pure: no I/O, no provider types.
func Normalize(blocks []RecognitionBlock) NormalizedDocument {
	byID := make(map[string]RecognitionBlock, len(blocks))
	for _, b := range blocks {
		if b.ID != "" {
			byID[b.ID] = b
		}
	}

	doc := NormalizedDocument{
		Lines:     []string{},
		KeyValues: []KeyValue{},
		Tables:    [][][]string{},
	}
	keyIndex := map[string]int{}

	for _, b := range blocks {
		switch b.Kind {
		case KindLine:
			doc.Lines = append(doc.Lines, b.Text)

		case KindKeyValueSet:
			if !b.IsKey() {
				continue
			}
			key := childText(b, byID, true)
			value := ""
			for _, vid := range b.Related(RelationshipValue) {
				if vb, ok := byID[vid]; ok {
					value = childText(vb, byID, true)
				}
			}
			if key == "" {
				continue
			}
			// later duplicates overwrite but keep the first position
			if i, ok := keyIndex[key]; ok {
				doc.KeyValues[i].Value = value
				continue
			}
			keyIndex[key] = len(doc.KeyValues)
			doc.KeyValues = append(doc.KeyValues, KeyValue{Key: key, Value: value})

		case KindTable:
			if grid := tableGrid(b, byID); grid != nil {
				doc.Tables = append(doc.Tables, grid)
			}
		}
	}
	return doc
}

// childText concatenates the words under b's CHILD relationships. Selected
// checkboxes render as "X" when withSelections is set.
func childText(b RecognitionBlock, byID map[string]RecognitionBlock, withSelections bool) string {
	var sb strings.Builder
	for _, cid := range b.Related(RelationshipChild) {
		ch, ok := byID[cid]
		if !ok {
			continue
		}
		switch {
		case ch.Kind == KindWord:
			sb.WriteString(ch.Text)
			sb.WriteByte(' ')
		case ch.Kind == KindSelection && withSelections && ch.Selected:
			sb.WriteString("X ")
		}
	}
	return strings.TrimSpace(sb.String())
}

type cell struct {
	row, col int
	text     string
}

// tableGrid expands a TABLE block into a rectangular grid sized by the largest
// observed row/column index. A table without cells yields nil.
func tableGrid(table RecognitionBlock, byID map[string]RecognitionBlock) [][]string {
	var cells []cell
	maxRow, maxCol := 0, 0
	for _, cid := range table.Related(RelationshipChild) {
		c, ok := byID[cid]
		if !ok || c.Kind != KindCell {
			continue
		}
		cl := cell{row: c.Row(), col: c.Column(), text: childText(c, byID, false)}
		cells = append(cells, cl)
		maxRow = max(maxRow, cl.row)
		maxCol = max(maxCol, cl.col)
	}
	if len(cells) == 0 {
		return nil
	}

	grid := make([][]string, maxRow)
	for i := range grid {
		grid[i] = make([]string, maxCol)
	}
	for _, c := range cells {
		grid[c.row-1][c.col-1] = c.text
	}
	return grid
}
