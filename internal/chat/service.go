// Package chat keeps short-lived conversations between a user and the assistant.
package chat

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/lumo-backend/constants"
	"github.com/joseph-ayodele/lumo-backend/internal/common"
	"github.com/joseph-ayodele/lumo-backend/internal/entity"
	"github.com/joseph-ayodele/lumo-backend/internal/extract"
	"github.com/joseph-ayodele/lumo-backend/internal/llm"
	"github.com/joseph-ayodele/lumo-backend/internal/repository"
)

const (
	DefaultWindow    = 30 * time.Minute
	DefaultMaxTokens = 1000
)

// Attachments stores and removes chat attachment objects. *storage.Uploader satisfies it.
type Attachments interface {
	KeyUnder(filename string, segments ...string) string
	StageAt(ctx context.Context, key string, r io.Reader, contentType string) error
	Remove(ctx context.Context, key string)
}

type Config struct {
	Window    time.Duration
	MaxTokens int
}

// FileUpload describes an attachment sent with a chat message.
type FileUpload struct {
	Name        string
	ContentType string
	Size        int64 // declared size; <= 0 when unknown
	Body        io.Reader
}

// FileReply is the result of SendFile.
type FileReply struct {
	Response string
	Kind     constants.FileKind
	FileName string
}

// Service handles chat business logic.
type Service struct {
	messages  repository.MessageRepository
	model     llm.ChatModel
	files     Attachments
	extractor extract.DocumentExtractor // optional, enables PDF context
	cfg       Config
	logger    *slog.Logger
	now       func() time.Time
}

// NewService creates a new chat service. extractor may be nil.
func NewService(messages repository.MessageRepository, model llm.ChatModel, files Attachments,
	extractor extract.DocumentExtractor, cfg Config, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Window <= 0 {
		cfg.Window = DefaultWindow
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	return &Service{
		messages:  messages,
		model:     model,
		files:     files,
		extractor: extractor,
		cfg:       cfg,
		logger:    logger,
		now:       time.Now,
	}
}

// Window returns the default conversation window.
func (s *Service) Window() time.Duration { return s.cfg.Window }

// History purges the user's expired messages and returns the rest, oldest first.
func (s *Service) History(ctx context.Context, userID string, window time.Duration) ([]*entity.ChatMessage, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, common.InvalidInputError("user_id is required")
	}
	if window <= 0 {
		window = s.cfg.Window
	}
	cutoff := s.now().Add(-window)

	n, paths, err := s.messages.PurgeBefore(ctx, userID, cutoff)
	if err != nil {
		s.logger.Error("chat.purge.failed", "user_id", userID, "error", err)
		return nil, common.WrapError(err, "purge chat history")
	}
	if n > 0 {
		s.removeAttachments(ctx, paths)
		s.logger.Info("chat.purge.ok", "user_id", userID, "deleted", n, "attachments", len(paths))
	}

	msgs, err := s.messages.ListSince(ctx, userID, cutoff)
	if err != nil {
		s.logger.Error("chat.history.failed", "user_id", userID, "error", err)
		return nil, common.WrapError(err, "list chat history")
	}
	return msgs, nil
}

// Conversation returns the window as role/content turns ready for the model.
func (s *Service) Conversation(ctx context.Context, userID string, window time.Duration) ([]llm.ChatTurn, error) {
	msgs, err := s.History(ctx, userID, window)
	if err != nil {
		return nil, err
	}
	turns := make([]llm.ChatTurn, 0, len(msgs))
	for _, m := range msgs {
		turns = append(turns, turnFor(m))
	}
	return turns, nil
}

// Send stores the user's message, asks the model and stores the reply.
func (s *Service) Send(ctx context.Context, userID, text string) (string, error) {
	if err := validateMessage(text, true); err != nil {
		return "", err
	}
	rid := uuid.New().String()
	start := time.Now()
	s.logger.Info("chat.send.start", "req_id", rid, "user_id", userID, "chars", utf8.RuneCountInString(text))

	if _, err := s.messages.Create(ctx, &entity.ChatMessage{
		UserID: userID, Role: constants.RoleUser, Content: text, MessageType: constants.MessageText,
	}); err != nil {
		s.logger.Error("chat.send.save_failed", "req_id", rid, "user_id", userID, "error", err)
		return "", common.WrapError(err, "save chat message")
	}

	turns, err := s.Conversation(ctx, userID, s.cfg.Window)
	if err != nil {
		return "", err
	}
	reply, err := s.reply(ctx, rid, userID, turns)
	if err != nil {
		return "", err
	}
	s.logger.Info("chat.send.ok", "req_id", rid, "user_id", userID, "turns", len(turns),
		"elapsed_ms", time.Since(start).Milliseconds())
	return reply, nil
}

// SendFile stores an attachment with an optional caption and asks the model about it.
func (s *Service) SendFile(ctx context.Context, userID string, f FileUpload, caption string) (FileReply, error) {
	if err := validateMessage(caption, false); err != nil {
		return FileReply{}, err
	}
	kind, ok := constants.KindOf(f.ContentType, f.Name)
	if !ok {
		return FileReply{}, common.InvalidInputErrorf("Unsupported file type. Allowed types: %s", constants.AllowedContentTypeList())
	}
	if f.Size > constants.MaxAttachmentBytes {
		return FileReply{}, tooLarge()
	}
	data, err := io.ReadAll(io.LimitReader(f.Body, constants.MaxAttachmentBytes+1))
	if err != nil {
		return FileReply{}, common.InvalidInputErrorf("could not read file: %v", err)
	}
	if int64(len(data)) > constants.MaxAttachmentBytes {
		return FileReply{}, tooLarge()
	}
	if len(data) == 0 {
		return FileReply{}, common.InvalidInputError("file is empty")
	}

	rid := uuid.New().String()
	start := time.Now()
	contentType, _ := constants.CanonicalContentType(f.ContentType, f.Name)
	s.logger.Info("chat.file.start", "req_id", rid, "user_id", userID, "kind", kind, "size", len(data))

	key := s.files.KeyUnder(f.Name, userID)
	if err := s.files.StageAt(ctx, key, bytes.NewReader(data), contentType); err != nil {
		return FileReply{}, common.UpstreamError("Failed to store attachment", err)
	}

	name, size := f.Name, int64(len(data))
	saved, err := s.messages.Create(ctx, &entity.ChatMessage{
		UserID:      userID,
		Role:        constants.RoleUser,
		Content:     strings.TrimSpace(caption),
		MessageType: constants.MessageKindFor(kind),
		FileName:    &name,
		StoragePath: &key,
		ContentType: &contentType,
		FileSize:    &size,
	})
	if err != nil {
		s.logger.Error("chat.file.save_failed", "req_id", rid, "user_id", userID, "key", key, "error", err)
		s.files.Remove(context.WithoutCancel(ctx), key)
		return FileReply{}, common.WrapError(err, "save chat attachment")
	}

	msgs, err := s.History(ctx, userID, s.cfg.Window)
	if err != nil {
		return FileReply{}, err
	}
	turns := make([]llm.ChatTurn, 0, len(msgs)+1)
	current := -1
	for i, m := range msgs {
		if m.ID == saved.ID {
			current = i
		}
		turns = append(turns, turnFor(m))
	}
	if current < 0 {
		turns = append(turns, turnFor(saved))
		current = len(turns) - 1
	}
	switch kind {
	case constants.IMAGE:
		turns[current].Image = &llm.ImagePart{MIMEType: contentType, Data: data}
	case constants.PDF:
		turns[current].Content = s.withDocumentText(ctx, rid, turns[current].Content, data, f.Name, contentType)
	}

	reply, err := s.reply(ctx, rid, userID, turns)
	if err != nil {
		return FileReply{}, err
	}
	s.logger.Info("chat.file.ok", "req_id", rid, "user_id", userID, "key", key,
		"elapsed_ms", time.Since(start).Milliseconds())
	return FileReply{Response: reply, Kind: kind, FileName: f.Name}, nil
}

// Clear deletes every message of the user along with their attachments.
func (s *Service) Clear(ctx context.Context, userID string) (int, error) {
	if strings.TrimSpace(userID) == "" {
		return 0, common.InvalidInputError("user_id is required")
	}
	n, paths, err := s.messages.DeleteAllForUser(ctx, userID)
	if err != nil {
		s.logger.Error("chat.clear.failed", "user_id", userID, "error", err)
		return 0, common.WrapError(err, "clear chat history")
	}
	s.removeAttachments(ctx, paths)
	s.logger.Info("chat.clear.ok", "user_id", userID, "deleted", n, "attachments", len(paths))
	return n, nil
}

// PurgeExpired deletes every user's messages older than window.
func (s *Service) PurgeExpired(ctx context.Context, window time.Duration) (int, error) {
	if window <= 0 {
		window = s.cfg.Window
	}
	n, paths, err := s.messages.PurgeBefore(ctx, "", s.now().Add(-window))
	if err != nil {
		return 0, common.WrapError(err, "purge expired chats")
	}
	s.removeAttachments(ctx, paths)
	return n, nil
}

func (s *Service) reply(ctx context.Context, rid, userID string, turns []llm.ChatTurn) (string, error) {
	start := time.Now()
	reply, err := s.model.Chat(ctx, llm.ChatRequest{
		System:    SystemPrompt,
		Turns:     turns,
		MaxTokens: s.cfg.MaxTokens,
	})
	if err != nil {
		s.logger.Error("chat.model.failed", "req_id", rid, "user_id", userID, "error", err)
		return "", common.UpstreamError("Failed to get AI response", err)
	}
	s.logger.Info("chat.model.ok", "req_id", rid, "chars", len(reply), "elapsed_ms", time.Since(start).Milliseconds())

	if _, err := s.messages.Create(ctx, &entity.ChatMessage{
		UserID: userID, Role: constants.RoleAssistant, Content: reply, MessageType: constants.MessageText,
	}); err != nil {
		s.logger.Error("chat.reply.save_failed", "req_id", rid, "user_id", userID, "error", err)
		return "", common.WrapError(err, "save assistant reply")
	}
	return reply, nil
}

// withDocumentText appends OCR text of a PDF to the turn. Extraction failures keep the turn as is.
func (s *Service) withDocumentText(ctx context.Context, rid, content string, data []byte, name, contentType string) string {
	if s.extractor == nil {
		return content
	}
	res, err := s.extractor.Extract(ctx, bytes.NewReader(data), name, contentType)
	if err != nil {
		s.logger.Warn("chat.file.extract_failed", "req_id", rid, "file_name", name, "error", err)
		return content
	}
	if res.Document.Empty() {
		return content
	}
	return content + "\n\nDocument contents:\n" + llm.FormatDocument(res.Document)
}

func (s *Service) removeAttachments(ctx context.Context, paths []string) {
	ctx = context.WithoutCancel(ctx)
	for _, p := range paths {
		s.files.Remove(ctx, p)
	}
}

func turnFor(m *entity.ChatMessage) llm.ChatTurn {
	content := m.Content
	if strings.TrimSpace(content) == "" && m.FileName != nil {
		content = placeholder(m.MessageType, *m.FileName)
	}
	return llm.ChatTurn{Role: m.Role, Content: content}
}

func placeholder(kind constants.MessageKind, name string) string {
	switch kind {
	case constants.MessagePDF:
		return fmt.Sprintf("[PDF: %s]", name)
	case constants.MessageImage:
		return fmt.Sprintf("[IMAGE: %s]", name)
	default:
		return fmt.Sprintf("[FILE: %s]", name)
	}
}

func validateMessage(text string, required bool) error {
	v := common.NewValidator()
	if required {
		v.Field("message", text, common.Required)
	}
	v.Field("message", text, common.MaxLen(constants.MaxChatMessageChars))
	return common.ValidateAndReturnError(v)
}

func tooLarge() error {
	return common.InvalidInputErrorf("File too large. Maximum size is %dMB", constants.MaxAttachmentBytes>>20)
}
