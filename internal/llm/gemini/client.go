// Package gemini is the alternative chat provider backed by Google's Gemini models.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"github.com/google/uuid"
	"google.golang.org/api/option"

	"github.com/joseph-ayodele/lumo-backend/constants"
	"github.com/joseph-ayodele/lumo-backend/internal/llm"
)

const defaultModel = "gemini-1.5-flash-latest"

type Config struct {
	APIKey      string
	Model       string
	Temperature float32
}

type Client struct {
	client      *genai.Client
	model       string
	temperature float32
	logger      *slog.Logger
}

var _ llm.ChatModel = (*Client)(nil)

func NewClient(ctx context.Context, cfg Config, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.APIKey == "" {
		return nil, errors.New("gemini: api key is required")
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	c, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return &Client{client: c, model: cfg.Model, temperature: cfg.Temperature, logger: logger}, nil
}

func (c *Client) Close() error {
	return c.client.Close()
}

// Chat sends the last turn with everything before it as session history.
func (c *Client) Chat(ctx context.Context, req llm.ChatRequest) (string, error) {
	rid := uuid.New().String()
	start := time.Now()

	history, last, err := toContents(req.Turns)
	if err != nil {
		return "", &llm.CallError{Op: "chat", Err: err}
	}

	model := c.client.GenerativeModel(c.model)
	if req.System != "" {
		model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(req.System)}}
	}
	temp := c.temperature
	if req.Temperature != nil {
		temp = *req.Temperature
	}
	model.GenerationConfig.Temperature = &temp
	if req.MaxTokens > 0 {
		maxTokens := int32(req.MaxTokens)
		model.GenerationConfig.MaxOutputTokens = &maxTokens
	}

	c.logger.Info("llm.chat.start", "req_id", rid, "provider", "gemini", "model", c.model, "turns", len(req.Turns))

	cs := model.StartChat()
	cs.History = history
	resp, err := cs.SendMessage(ctx, last.Parts...)
	if err != nil {
		c.logger.Error("llm.chat.failed", "req_id", rid, "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		return "", &llm.CallError{Op: "chat", Err: err}
	}

	reply := responseText(resp)
	if reply == "" {
		return "", &llm.CallError{Op: "chat", Err: errors.New("empty response from gemini")}
	}
	c.logger.Info("llm.chat.ok", "req_id", rid, "reply_len", len(reply), "elapsed_ms", time.Since(start).Milliseconds())
	return reply, nil
}

// toContents maps turns onto genai contents. The final turn must come from the user.
func toContents(turns []llm.ChatTurn) ([]*genai.Content, *genai.Content, error) {
	if len(turns) == 0 {
		return nil, nil, errors.New("conversation is empty")
	}
	contents := make([]*genai.Content, 0, len(turns))
	for _, t := range turns {
		role := "user"
		if t.Role == constants.RoleAssistant {
			role = "model"
		}
		parts := []genai.Part{genai.Text(t.Content)}
		if t.Image != nil {
			parts = append(parts, genai.Blob{MIMEType: t.Image.MIMEType, Data: t.Image.Data})
		}
		contents = append(contents, &genai.Content{Role: role, Parts: parts})
	}
	last := contents[len(contents)-1]
	if last.Role != "user" {
		return nil, nil, errors.New("last turn is not from the user")
	}
	return contents[:len(contents)-1], last, nil
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			sb.WriteString(string(txt))
		}
	}
	return strings.TrimSpace(sb.String())
}
