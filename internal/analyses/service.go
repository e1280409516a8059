// Package analyses stores and lists a user's saved blood test analyses.
package analyses

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/lumo-backend/internal/common"
	"github.com/joseph-ayodele/lumo-backend/internal/entity"
	"github.com/joseph-ayodele/lumo-backend/internal/llm"
	"github.com/joseph-ayodele/lumo-backend/internal/repository"
)

const notFoundMessage = "Analysis not found"

// ChatClearer deletes a user's chat history. *chat.Service satisfies it.
type ChatClearer interface {
	Clear(ctx context.Context, userID string) (int, error)
}

// Record is the full representation returned by create and get.
type Record struct {
	ID         uuid.UUID       `json:"id"`
	UserID     string          `json:"user_id"`
	ParsedData json.RawMessage `json:"parsed_data"`
	Analysis   json.RawMessage `json:"analysis"`
	Title      string          `json:"title"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

func toRecord(a *entity.Analysis) *Record {
	return &Record{
		ID:         a.ID,
		UserID:     a.UserID,
		ParsedData: a.ParsedData,
		Analysis:   a.Analysis,
		Title:      Title(a),
		CreatedAt:  a.CreatedAt,
		UpdatedAt:  a.UpdatedAt,
	}
}

// CreateRequest is the body of POST /analyses.
type CreateRequest struct {
	ParsedData json.RawMessage `json:"parsed_data"`
	Analysis   *string         `json:"analysis"`
	Title      *string         `json:"title"`
}

// AccountDeletion reports what DeleteAccount removed.
type AccountDeletion struct {
	Message             string `json:"message"`
	AnalysesDeleted     int    `json:"analyses_deleted"`
	ChatMessagesDeleted int    `json:"chat_messages_deleted"`
}

// Service handles saved analysis business logic.
type Service struct {
	repo   repository.AnalysisRepository
	chats  ChatClearer
	logger *slog.Logger
}

// NewService creates a new analyses service.
func NewService(repo repository.AnalysisRepository, chats ChatClearer, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, chats: chats, logger: logger}
}

// List returns the user's analyses newest first.
func (s *Service) List(ctx context.Context, userID string) ([]entity.AnalysisSummary, error) {
	rows, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		s.logger.Error("failed to list analyses", "user_id", userID, "error", err)
		return nil, common.WrapError(err, "list analyses")
	}
	out := make([]entity.AnalysisSummary, 0, len(rows))
	for _, a := range rows {
		out = append(out, ToSummary(a))
	}
	s.logger.Info("analyses listed successfully", "user_id", userID, "count", len(out))
	return out, nil
}

// ListFull returns full rows newest first, for export.
func (s *Service) ListFull(ctx context.Context, userID string) ([]*entity.Analysis, error) {
	rows, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, common.WrapError(err, "list analyses")
	}
	return rows, nil
}

// Create validates and stores an analysis for the user.
func (s *Service) Create(ctx context.Context, userID string, req CreateRequest) (*Record, error) {
	if err := validateCreate(req); err != nil {
		s.logger.Warn("invalid create analysis request", "user_id", userID, "error", err)
		return nil, err
	}
	narrative, err := json.Marshal(*req.Analysis)
	if err != nil {
		return nil, common.WrapError(err, "encode analysis")
	}
	a := &entity.Analysis{
		UserID:     userID,
		ParsedData: compact(req.ParsedData),
		Analysis:   narrative,
	}
	if req.Title != nil && strings.TrimSpace(*req.Title) != "" {
		t := strings.TrimSpace(*req.Title)
		a.Title = &t
	}

	saved, err := s.repo.Create(ctx, a)
	if err != nil {
		s.logger.Error("failed to create analysis", "user_id", userID, "error", err)
		return nil, common.WrapError(err, "create analysis")
	}
	s.logger.Info("analysis created successfully", "user_id", userID, "analysis_id", saved.ID)
	return toRecord(saved), nil
}

// Get returns one analysis owned by the user.
func (s *Service) Get(ctx context.Context, userID, id string) (*Record, error) {
	aid, err := uuid.Parse(id)
	if err != nil {
		return nil, common.NotFoundError(notFoundMessage)
	}
	a, err := s.repo.GetForUser(ctx, aid, userID)
	if err != nil {
		return nil, err
	}
	return toRecord(a), nil
}

// Delete removes one analysis owned by the user.
func (s *Service) Delete(ctx context.Context, userID, id string) error {
	aid, err := uuid.Parse(id)
	if err != nil {
		return common.NotFoundError(notFoundMessage)
	}
	if err := s.repo.DeleteForUser(ctx, aid, userID); err != nil {
		return err
	}
	s.logger.Info("analysis deleted successfully", "user_id", userID, "analysis_id", aid)
	return nil
}

// DeleteAccount removes every analysis and chat message of the user.
func (s *Service) DeleteAccount(ctx context.Context, userID string) (AccountDeletion, error) {
	n, err := s.repo.DeleteAllForUser(ctx, userID)
	if err != nil {
		s.logger.Error("failed to delete analyses", "user_id", userID, "error", err)
		return AccountDeletion{}, common.WrapError(err, "delete analyses")
	}
	out := AccountDeletion{Message: "Account data deleted successfully", AnalysesDeleted: n}
	if s.chats != nil {
		m, err := s.chats.Clear(ctx, userID)
		if err != nil {
			return out, err
		}
		out.ChatMessagesDeleted = m
	}
	s.logger.Info("account data deleted", "user_id", userID,
		"analyses", out.AnalysesDeleted, "chat_messages", out.ChatMessagesDeleted)
	return out, nil
}

func validateCreate(req CreateRequest) error {
	v := common.NewValidator()
	v.Field("analysis", req.Analysis, common.Required)
	if err := common.ValidateAndReturnError(v); err != nil {
		return err
	}
	trimmed := bytes.TrimSpace(req.ParsedData)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return common.InvalidInputError("Invalid data: parsed_data must be an object")
	}
	if err := llm.ValidateExtraction(trimmed); err != nil {
		return common.InvalidInputErrorf("Invalid data: %v", err)
	}
	return nil
}

func compact(raw json.RawMessage) json.RawMessage {
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return raw
	}
	return buf.Bytes()
}
