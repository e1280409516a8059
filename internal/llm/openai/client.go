package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/joseph-ayodele/lumo-backend/internal/llm"
)

var _ llm.Completer = (*Client)(nil)

type responsesOutput struct {
	OutputText string `json:"output_text"`
	Output     []struct {
		Type    string `json:"type"`
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	} `json:"output"`
}

// text prefers the convenience field and otherwise joins message output parts.
func (r responsesOutput) text() string {
	if r.OutputText != "" {
		return r.OutputText
	}
	var parts []string
	for _, o := range r.Output {
		if o.Type != "message" {
			continue
		}
		for _, c := range o.Content {
			if c.Type == "output_text" {
				parts = append(parts, c.Text)
			}
		}
	}
	return strings.Join(parts, "")
}

// Complete sends one blocking request to the Responses API and returns the output text.
func (c *Client) Complete(ctx context.Context, req llm.CompletionRequest) (string, error) {
	rid := uuid.New().String()
	start := time.Now()

	c.logger.Info("llm.complete.start",
		"req_id", rid,
		"model", c.cfg.Model,
		"effort", c.cfg.ReasoningEffort,
		"verbosity", c.cfg.Verbosity,
		"input_len", len(req.Input),
	)

	body := map[string]any{
		"model":        c.cfg.Model,
		"instructions": req.Instructions,
		"input":        req.Input,
		"reasoning":    map[string]any{"effort": c.cfg.ReasoningEffort},
		"text":         map[string]any{"verbosity": c.cfg.Verbosity},
	}

	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/responses"
	raw, err := llm.SendJSON(ctx, c.http, "complete", endpoint, body, c.headers(), c.logger)
	if err != nil {
		c.logger.Error("llm.complete.http_error",
			"req_id", rid, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return "", err
	}

	var out responsesOutput
	if err := json.Unmarshal(raw, &out); err != nil {
		c.logger.Error("llm.complete.decode_error",
			"req_id", rid, "error", err, "raw_bytes", len(raw),
		)
		return "", &llm.CallError{Op: "complete", Err: fmt.Errorf("decode openai response: %w", err)}
	}
	text := out.text()
	if strings.TrimSpace(text) == "" {
		c.logger.Error("llm.complete.empty", "req_id", rid, "raw_bytes", len(raw))
		return "", &llm.CallError{Op: "complete", Err: errors.New("empty output from model")}
	}

	c.logger.Info("llm.complete.ok",
		"req_id", rid,
		"output_len", len(text),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return text, nil
}
