package ocr

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/textract"
	"github.com/aws/aws-sdk-go-v2/service/textract/types"
)

// TextractAPI lets us stub the OCR provider in tests. *textract.Client satisfies it.
type TextractAPI interface {
	StartDocumentAnalysis(ctx context.Context, params *textract.StartDocumentAnalysisInput, optFns ...func(*textract.Options)) (*textract.StartDocumentAnalysisOutput, error)
	GetDocumentAnalysis(ctx context.Context, params *textract.GetDocumentAnalysisInput, optFns ...func(*textract.Options)) (*textract.GetDocumentAnalysisOutput, error)
}

func convertBlocks(dst []RecognitionBlock, src []types.Block) []RecognitionBlock {
	for _, b := range src {
		dst = append(dst, fromTextract(b))
	}
	return dst
}

func fromTextract(b types.Block) RecognitionBlock {
	rb := RecognitionBlock{
		ID:       aws.ToString(b.Id),
		Kind:     BlockKind(b.BlockType),
		Text:     aws.ToString(b.Text),
		Selected: b.SelectionStatus == types.SelectionStatusSelected,
	}
	if b.RowIndex != nil {
		rb.RowIndex = int(*b.RowIndex)
	}
	if b.ColumnIndex != nil {
		rb.ColumnIndex = int(*b.ColumnIndex)
	}
	for _, e := range b.EntityTypes {
		rb.EntityTypes = append(rb.EntityTypes, string(e))
	}
	for _, rel := range b.Relationships {
		rb.Relationships = append(rb.Relationships, Relationship{Type: string(rel.Type), IDs: rel.Ids})
	}
	return rb
}
