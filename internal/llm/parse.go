package llm

import (
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/joseph-ayodele/lumo-backend/constants"
)

const (
	fenceOpen  = "```json"
	fenceClose = "```"
	maxBlocks  = 2
)

// IssueKind classifies a recoverable problem found while parsing model output.
type IssueKind string

const (
	IssueMalformedExtraction IssueKind = "malformed_extraction"
	IssueDroppedMarker       IssueKind = "dropped_marker"
	IssueMalformedAnalysis   IssueKind = "malformed_analysis"
)

type ParseIssue struct {
	Kind   IssueKind `json:"kind"`
	Detail string    `json:"detail"`
}

// ParseResult is everything recovered from one model response. Analysis is nil
// when the second block was missing or undecodable.
type ParseResult struct {
	Extraction ExtractionResult
	Analysis   *AnalysisResult
	Narrative  string
	Issues     []ParseIssue
}

// Parser extracts the fenced json blocks from a model response.
type Parser struct {
	logger *slog.Logger
}

func NewParser(logger *slog.Logger) *Parser {
	if logger == nil {
		logger = slog.Default()
	}
	return &Parser{logger: logger}
}

// ParseResponse parses with the default logger.
func ParseResponse(text string) ParseResult {
	return NewParser(nil).Parse(text)
}

type fencedBlock struct {
	body string
	end  int // offset just past the closing fence
}

// findBlocks scans sequentially for up to maxBlocks fenced json blocks. An opening
// fence without a closing fence ends the scan.
func findBlocks(text string) []fencedBlock {
	var blocks []fencedBlock
	pos := 0
	for len(blocks) < maxBlocks {
		i := strings.Index(text[pos:], fenceOpen)
		if i < 0 {
			break
		}
		start := pos + i + len(fenceOpen)
		j := strings.Index(text[start:], fenceClose)
		if j < 0 {
			break
		}
		end := start + j + len(fenceClose)
		blocks = append(blocks, fencedBlock{body: text[start : start+j], end: end})
		pos = end
	}
	return blocks
}

// Parse never fails. Recoverable problems are reported in Issues.
func (p *Parser) Parse(text string) ParseResult {
	res := ParseResult{Extraction: EmptyExtraction()}

	blocks := findBlocks(text)
	if len(blocks) == 0 {
		p.logger.Warn("llm.parse.no_blocks", "text_len", len(text))
		res.Narrative = text
		return res
	}

	p.parseExtraction(blocks[0].body, &res)
	if len(blocks) > 1 {
		p.parseAnalysis(blocks[1].body, &res)
	}

	tail := text[blocks[len(blocks)-1].end:]
	res.Narrative = strings.TrimLeft(tail, " \t\r\n-")

	p.logger.Info("llm.parse.ok",
		"blocks", len(blocks),
		"markers", len(res.Extraction.TestResults),
		"has_analysis", res.Analysis != nil,
		"issues", len(res.Issues),
		"narrative_len", len(res.Narrative),
	)
	return res
}

func (p *Parser) parseExtraction(body string, res *ParseResult) {
	normalized, notes, err := NormalizeExtractionJSON([]byte(body), p.logger)
	if err != nil {
		p.logger.Warn("llm.parse.extraction_malformed", "error", err)
		res.Issues = append(res.Issues, ParseIssue{Kind: IssueMalformedExtraction, Detail: err.Error()})
		return
	}
	for _, n := range notes {
		if strings.HasSuffix(n, "(no marker)") || strings.HasSuffix(n, "(type)") {
			res.Issues = append(res.Issues, ParseIssue{Kind: IssueDroppedMarker, Detail: n})
		}
	}
	if err := ValidateExtraction(normalized); err != nil {
		p.logger.Warn("llm.parse.extraction_schema_mismatch", "error", err)
	}

	var out ExtractionResult
	if err := json.Unmarshal(normalized, &out); err != nil {
		p.logger.Warn("llm.parse.extraction_malformed", "error", err)
		res.Issues = append(res.Issues, ParseIssue{Kind: IssueMalformedExtraction, Detail: err.Error()})
		return
	}
	if out.TestResults == nil {
		out.TestResults = []Marker{}
	}
	res.Extraction = out
}

func (p *Parser) parseAnalysis(body string, res *ParseResult) {
	repaired := StripTrailingCommas([]byte(body))
	var out AnalysisResult
	if err := json.Unmarshal(repaired, &out); err != nil {
		p.logger.Warn("llm.parse.analysis_malformed", "error", err)
		res.Issues = append(res.Issues, ParseIssue{Kind: IssueMalformedAnalysis, Detail: err.Error()})
		return
	}
	if err := ValidateAnalysis(repaired); err != nil {
		p.logger.Warn("llm.parse.analysis_schema_mismatch", "error", err)
	}
	for i := range out.Sections {
		if out.Sections[i].Icon == "" {
			out.Sections[i].Icon = constants.IconFor(out.Sections[i].Category)
		}
		if out.Sections[i].Markers == nil {
			out.Sections[i].Markers = []string{}
		}
	}
	if missing := out.Uncovered(res.Extraction); len(missing) > 0 {
		p.logger.Warn("llm.parse.markers_uncovered", "markers", missing)
	}
	res.Analysis = &out
}
