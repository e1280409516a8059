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

var _ llm.ChatModel = (*Client)(nil)

// Chat runs a chat completion over the system prompt and the given turns.
func (c *Client) Chat(ctx context.Context, req llm.ChatRequest) (string, error) {
	rid := uuid.New().String()
	start := time.Now()

	messages := make([]map[string]any, 0, len(req.Turns)+1)
	if req.System != "" {
		messages = append(messages, map[string]any{"role": "system", "content": req.System})
	}
	images := 0
	for _, t := range req.Turns {
		if t.Image != nil {
			images++
			messages = append(messages, map[string]any{
				"role": string(t.Role),
				"content": []map[string]any{
					{"type": "text", "text": t.Content},
					{"type": "image_url", "image_url": map[string]any{"url": llm.DataURL(*t.Image)}},
				},
			})
			continue
		}
		messages = append(messages, map[string]any{"role": string(t.Role), "content": t.Content})
	}

	c.logger.Info("llm.chat.start",
		"req_id", rid,
		"model", c.cfg.ChatModel,
		"turns", len(req.Turns),
		"images", images,
	)

	body := map[string]any{
		"model":       c.cfg.ChatModel,
		"messages":    messages,
		"temperature": c.cfg.ChatTemperature,
	}
	if req.Temperature != nil {
		body["temperature"] = *req.Temperature
	}
	if req.MaxTokens > 0 {
		body["max_tokens"] = req.MaxTokens
	}

	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"
	raw, err := llm.SendJSON(ctx, c.http, "chat", endpoint, body, c.headers(), c.logger)
	if err != nil {
		c.logger.Error("llm.chat.http_error", "req_id", rid, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds())
		return "", err
	}

	var cc struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(raw, &cc); err != nil {
		return "", &llm.CallError{Op: "chat", Err: fmt.Errorf("decode openai response: %w", err)}
	}
	if len(cc.Choices) == 0 {
		c.logger.Error("llm.chat.no_choices", "req_id", rid, "raw", string(raw))
		return "", &llm.CallError{Op: "chat", Err: errors.New("no choices in openai response")}
	}

	reply := strings.TrimSpace(cc.Choices[0].Message.Content)
	c.logger.Info("llm.chat.ok",
		"req_id", rid,
		"reply_len", len(reply),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return reply, nil
}
