package chat

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/lumo-backend/constants"
	"github.com/joseph-ayodele/lumo-backend/internal/common"
	"github.com/joseph-ayodele/lumo-backend/internal/entity"
	"github.com/joseph-ayodele/lumo-backend/internal/extract"
	"github.com/joseph-ayodele/lumo-backend/internal/ocr"
	"github.com/joseph-ayodele/lumo-backend/internal/storage"
)

type harness struct {
	svc   *Service
	msgs  *memMessages
	model *fakeModel
	store *storage.MemoryStore
	ext   *fakeExtractor
	clock time.Time
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		model: &fakeModel{reply: "Hi, I'm Lumo."},
		store: storage.NewMemoryStore(),
		ext:   &fakeExtractor{},
		clock: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
	}
	now := func() time.Time { return h.clock }
	h.msgs = newMemMessages(now)
	up := storage.NewUploader(h.store, storage.Config{Prefix: "chat_attachments"}, nil)
	h.svc = NewService(h.msgs, h.model, up, h.ext, Config{}, nil)
	h.svc.now = now
	return h
}

func (h *harness) seed(userID string, role constants.Role, content string, age time.Duration) *entity.ChatMessage {
	m, _ := h.msgs.Create(context.Background(), &entity.ChatMessage{
		UserID: userID, Role: role, Content: content, MessageType: constants.MessageText,
		CreatedAt: h.clock.Add(-age),
	})
	return m
}

func TestNewService_Defaults(t *testing.T) {
	svc := NewService(nil, nil, nil, nil, Config{}, nil)
	assert.Equal(t, 30*time.Minute, svc.Window())
	assert.Equal(t, 1000, svc.cfg.MaxTokens)
}

func TestSend_SavesBothTurnsAndSendsHistory(t *testing.T) {
	h := newHarness(t)
	h.seed("u1", constants.RoleUser, "earlier question", 10*time.Minute)
	h.seed("u1", constants.RoleAssistant, "earlier answer", 9*time.Minute)
	h.seed("u1", constants.RoleUser, "stale", 45*time.Minute)
	h.seed("u2", constants.RoleUser, "someone else", time.Minute)

	reply, err := h.svc.Send(context.Background(), "u1", "What is ALT?")
	require.NoError(t, err)
	assert.Equal(t, "Hi, I'm Lumo.", reply)

	req := h.model.last()
	assert.Equal(t, SystemPrompt, req.System)
	assert.Equal(t, 1000, req.MaxTokens)
	require.Len(t, req.Turns, 3)
	assert.Equal(t, "earlier question", req.Turns[0].Content)
	assert.Equal(t, constants.RoleAssistant, req.Turns[1].Role)
	assert.Equal(t, "What is ALT?", req.Turns[2].Content)

	msgs, err := h.svc.History(context.Background(), "u1", 0)
	require.NoError(t, err)
	require.Len(t, msgs, 4)
	assert.Equal(t, constants.RoleAssistant, msgs[3].Role)
	assert.Equal(t, "Hi, I'm Lumo.", msgs[3].Content)
	// stale row purged, other user untouched
	assert.Equal(t, 5, h.msgs.count())
}

func TestSend_Validation(t *testing.T) {
	h := newHarness(t)
	_, err := h.svc.Send(context.Background(), "u1", "   ")
	assert.True(t, errors.Is(err, common.ErrInvalidInput))

	_, err = h.svc.Send(context.Background(), "u1", strings.Repeat("a", constants.MaxChatMessageChars+1))
	assert.True(t, errors.Is(err, common.ErrInvalidInput))

	_, err = h.svc.Send(context.Background(), "u1", strings.Repeat("é", constants.MaxChatMessageChars))
	assert.NoError(t, err)
	assert.Len(t, h.model.reqs, 1)
}

func TestSend_ModelFailureKeepsUserMessage(t *testing.T) {
	h := newHarness(t)
	h.model.err = errBoom

	_, err := h.svc.Send(context.Background(), "u1", "hello")
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrUpstream))
	assert.True(t, errors.Is(err, errBoom))
	assert.Equal(t, 1, h.msgs.count())
}

func TestHistory_PurgesExpiredAttachments(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	require.NoError(t, h.store.Put(ctx, "chat_attachments/u1/old.png", bytes.NewReader([]byte("x")), "image/png"))
	name, key := "old.png", "chat_attachments/u1/old.png"
	_, _ = h.msgs.Create(ctx, &entity.ChatMessage{
		UserID: "u1", Role: constants.RoleUser, MessageType: constants.MessageImage,
		FileName: &name, StoragePath: &key, CreatedAt: h.clock.Add(-31 * time.Minute),
	})
	h.seed("u1", constants.RoleUser, "recent", 5*time.Minute)

	msgs, err := h.svc.History(ctx, "u1", 30*time.Minute)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "recent", msgs[0].Content)
	assert.Empty(t, h.store.Keys())

	// a custom window keeps more
	h.seed("u1", constants.RoleUser, "older", 50*time.Minute)
	msgs, err = h.svc.History(ctx, "u1", time.Hour)
	require.NoError(t, err)
	assert.Len(t, msgs, 2)
}

func TestHistory_RequiresUser(t *testing.T) {
	h := newHarness(t)
	_, err := h.svc.History(context.Background(), " ", 0)
	assert.True(t, errors.Is(err, common.ErrInvalidInput))
}

func TestConversation_Placeholders(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	img, pdf := "cbc.png", "labs.pdf"
	_, _ = h.msgs.Create(ctx, &entity.ChatMessage{UserID: "u1", Role: constants.RoleUser,
		MessageType: constants.MessageImage, FileName: &img, CreatedAt: h.clock.Add(-3 * time.Minute)})
	_, _ = h.msgs.Create(ctx, &entity.ChatMessage{UserID: "u1", Role: constants.RoleUser,
		MessageType: constants.MessagePDF, FileName: &pdf, CreatedAt: h.clock.Add(-2 * time.Minute)})
	_, _ = h.msgs.Create(ctx, &entity.ChatMessage{UserID: "u1", Role: constants.RoleUser, Content: "see attached",
		MessageType: constants.MessagePDF, FileName: &pdf, CreatedAt: h.clock.Add(-time.Minute)})

	turns, err := h.svc.Conversation(ctx, "u1", 0)
	require.NoError(t, err)
	require.Len(t, turns, 3)
	assert.Equal(t, "[IMAGE: cbc.png]", turns[0].Content)
	assert.Equal(t, "[PDF: labs.pdf]", turns[1].Content)
	assert.Equal(t, "see attached", turns[2].Content)
}

func TestSendFile_Image(t *testing.T) {
	h := newHarness(t)
	data := []byte("\x89PNG fake")

	out, err := h.svc.SendFile(context.Background(), "u1", FileUpload{
		Name: "cbc.png", ContentType: "image/png", Size: int64(len(data)), Body: bytes.NewReader(data),
	}, "")
	require.NoError(t, err)
	assert.Equal(t, constants.IMAGE, out.Kind)
	assert.Equal(t, "cbc.png", out.FileName)
	assert.Equal(t, "Hi, I'm Lumo.", out.Response)
	assert.Zero(t, h.ext.calls)

	keys := h.store.Keys()
	require.Len(t, keys, 1)
	assert.True(t, strings.HasPrefix(keys[0], "chat_attachments/u1/"))
	assert.True(t, strings.HasSuffix(keys[0], "_cbc.png"))

	turns := h.model.last().Turns
	require.Len(t, turns, 1)
	assert.Equal(t, "[IMAGE: cbc.png]", turns[0].Content)
	require.NotNil(t, turns[0].Image)
	assert.Equal(t, "image/png", turns[0].Image.MIMEType)
	assert.Equal(t, data, turns[0].Image.Data)

	msgs, err := h.svc.History(context.Background(), "u1", 0)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, constants.MessageImage, msgs[0].MessageType)
	assert.Equal(t, keys[0], *msgs[0].StoragePath)
	assert.Equal(t, int64(len(data)), *msgs[0].FileSize)
}

func TestSendFile_PDFAddsDocumentText(t *testing.T) {
	h := newHarness(t)
	h.ext.res = extract.Result{Document: ocr.NormalizedDocument{Lines: []string{"Hemoglobin 13.5 g/dL"}}}

	_, err := h.svc.SendFile(context.Background(), "u1", FileUpload{
		Name: "labs.pdf", ContentType: "application/pdf", Body: strings.NewReader("%PDF-1.4"),
	}, "Is this ok?")
	require.NoError(t, err)
	assert.Equal(t, 1, h.ext.calls)

	turn := h.model.last().Turns[0]
	assert.Nil(t, turn.Image)
	assert.True(t, strings.HasPrefix(turn.Content, "Is this ok?\n\nDocument contents:\n"))
	assert.Contains(t, turn.Content, "Hemoglobin 13.5 g/dL")
}

func TestSendFile_PDFExtractionFailureFallsBack(t *testing.T) {
	h := newHarness(t)
	h.ext.err = errBoom

	_, err := h.svc.SendFile(context.Background(), "u1", FileUpload{
		Name: "labs.pdf", ContentType: "application/pdf", Body: strings.NewReader("%PDF-1.4"),
	}, "")
	require.NoError(t, err)
	assert.Equal(t, "[PDF: labs.pdf]", h.model.last().Turns[0].Content)
}

func TestSendFile_RejectsBeforeAnyCall(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.svc.SendFile(ctx, "u1", FileUpload{Name: "a.gif", ContentType: "image/gif", Body: strings.NewReader("x")}, "")
	assert.True(t, errors.Is(err, common.ErrInvalidInput))
	assert.Contains(t, common.PublicMessage(err), "image/jpeg")

	_, err = h.svc.SendFile(ctx, "u1", FileUpload{Name: "a.png", ContentType: "image/png",
		Size: constants.MaxAttachmentBytes + 1, Body: strings.NewReader("x")}, "")
	assert.True(t, errors.Is(err, common.ErrInvalidInput))

	big := bytes.Repeat([]byte("a"), int(constants.MaxAttachmentBytes)+1)
	_, err = h.svc.SendFile(ctx, "u1", FileUpload{Name: "a.png", ContentType: "image/png", Body: bytes.NewReader(big)}, "")
	assert.True(t, errors.Is(err, common.ErrInvalidInput))
	assert.Equal(t, "File too large. Maximum size is 10MB", common.PublicMessage(err))

	assert.Empty(t, h.model.reqs)
	assert.Empty(t, h.store.Keys())
	assert.Zero(t, h.msgs.count())
}

func TestSendFile_InsertFailureRemovesObject(t *testing.T) {
	h := newHarness(t)
	h.msgs.createErr = errBoom

	_, err := h.svc.SendFile(context.Background(), "u1", FileUpload{
		Name: "cbc.jpg", ContentType: "image/jpg", Body: strings.NewReader("jpeg"),
	}, "")
	require.Error(t, err)
	assert.Empty(t, h.store.Keys())
	assert.Len(t, h.store.DeleteAttempts(), 1)
	assert.Empty(t, h.model.reqs)
}

func TestClear_DeletesRowsAndAttachments(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, err := h.svc.SendFile(ctx, "u1", FileUpload{Name: "cbc.png", ContentType: "image/png", Body: strings.NewReader("png")}, "")
	require.NoError(t, err)
	h.seed("u2", constants.RoleUser, "keep", time.Minute)

	n, err := h.svc.Clear(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Empty(t, h.store.Keys())
	assert.Equal(t, 1, h.msgs.count())

	n, err = h.svc.Clear(ctx, "u1")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestPurgeExpired_AllUsers(t *testing.T) {
	h := newHarness(t)
	h.seed("u1", constants.RoleUser, "old", 40*time.Minute)
	h.seed("u2", constants.RoleUser, "old", 35*time.Minute)
	h.seed("u2", constants.RoleUser, "new", time.Minute)

	n, err := h.svc.PurgeExpired(context.Background(), 30*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 1, h.msgs.count())
}
