package server

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/lumo-backend/constants"
	"github.com/joseph-ayodele/lumo-backend/internal/analyses"
	"github.com/joseph-ayodele/lumo-backend/internal/auth"
	"github.com/joseph-ayodele/lumo-backend/internal/chat"
	"github.com/joseph-ayodele/lumo-backend/internal/common"
	"github.com/joseph-ayodele/lumo-backend/internal/entity"
	"github.com/joseph-ayodele/lumo-backend/internal/llm"
	processor "github.com/joseph-ayodele/lumo-backend/internal/pipeline"
	"github.com/joseph-ayodele/lumo-backend/internal/subscriptions"
)

var errBoom = errors.New("boom")

// fakeVerifier accepts "Bearer <user id>" for the listed users.
type fakeVerifier struct {
	users map[string]string // user id -> email
}

func (f *fakeVerifier) VerifyHeader(header string) (auth.Identity, error) {
	tok, err := auth.BearerToken(header)
	if err != nil {
		return auth.Identity{}, err
	}
	email, ok := f.users[tok]
	if !ok {
		return auth.Identity{}, common.NewAppError("UNAUTHORIZED", "Invalid token", common.ErrUnauthorized)
	}
	return auth.Identity{UserID: tok, Email: email}, nil
}

type fakeAnalyzer struct {
	mu          sync.Mutex
	out         processor.Output
	err         error
	calls       int
	contentType string
	body        []byte
	ctxErr      error
}

func (f *fakeAnalyzer) Analyze(ctx context.Context, r io.Reader, _, contentType string) (processor.Output, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.contentType = contentType
	f.body, _ = io.ReadAll(r)
	f.ctxErr = ctx.Err()
	return f.out, f.err
}

type fakeChat struct {
	window   time.Duration
	reply    string
	err      error
	history  []*entity.ChatMessage
	lastUser string
	lastText string
	lastWin  time.Duration
	lastFile chat.FileUpload
	fileBody []byte
	cleared  int
}

func (f *fakeChat) Window() time.Duration { return f.window }

func (f *fakeChat) History(_ context.Context, userID string, window time.Duration) ([]*entity.ChatMessage, error) {
	f.lastUser, f.lastWin = userID, window
	return f.history, f.err
}

func (f *fakeChat) Send(_ context.Context, userID, text string) (string, error) {
	f.lastUser, f.lastText = userID, text
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

func (f *fakeChat) SendFile(_ context.Context, userID string, up chat.FileUpload, caption string) (chat.FileReply, error) {
	f.lastUser, f.lastText, f.lastFile = userID, caption, up
	f.fileBody, _ = io.ReadAll(up.Body)
	if f.err != nil {
		return chat.FileReply{}, f.err
	}
	kind, _ := constants.KindOf(up.ContentType, up.Name)
	return chat.FileReply{Response: f.reply, Kind: kind, FileName: up.Name}, nil
}

func (f *fakeChat) Clear(_ context.Context, userID string) (int, error) {
	f.lastUser = userID
	return f.cleared, f.err
}

type fakeAnalyses struct {
	items    []entity.AnalysisSummary
	records  map[string]*analyses.Record
	created  *analyses.CreateRequest
	deleted  []string
	err      error
	deletion analyses.AccountDeletion
}

func (f *fakeAnalyses) List(context.Context, string) ([]entity.AnalysisSummary, error) {
	return f.items, f.err
}

func (f *fakeAnalyses) Create(_ context.Context, userID string, req analyses.CreateRequest) (*analyses.Record, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.created = &req
	return &analyses.Record{ID: uuid.New(), UserID: userID, ParsedData: req.ParsedData, Title: "Blood Test Analysis"}, nil
}

func (f *fakeAnalyses) Get(_ context.Context, userID, id string) (*analyses.Record, error) {
	rec, ok := f.records[id]
	if !ok || rec.UserID != userID {
		return nil, common.NotFoundError("Analysis not found")
	}
	return rec, nil
}

func (f *fakeAnalyses) Delete(ctx context.Context, userID, id string) error {
	if _, err := f.Get(ctx, userID, id); err != nil {
		return err
	}
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeAnalyses) DeleteAccount(context.Context, string) (analyses.AccountDeletion, error) {
	return f.deletion, f.err
}

type fakeExporter struct {
	from, to *time.Time
	user     string
}

func (f *fakeExporter) ExportAnalysesXLSX(_ context.Context, userID string, from, to *time.Time) ([]byte, error) {
	f.user, f.from, f.to = userID, from, to
	return []byte("PK-xlsx"), nil
}

type fakeSubscriptions struct {
	active    bool
	checkout  subscriptions.CheckoutRequest
	portalURL string
	payload   []byte
	signature string
	err       error
}

func (f *fakeSubscriptions) Checkout(_ context.Context, _ string, req subscriptions.CheckoutRequest) (subscriptions.CheckoutResponse, error) {
	f.checkout = req
	if f.err != nil {
		return subscriptions.CheckoutResponse{}, f.err
	}
	return subscriptions.CheckoutResponse{CheckoutURL: "https://checkout.example/s", SessionID: "cs_1"}, nil
}

func (f *fakeSubscriptions) HasActive(context.Context, string) (bool, error) { return f.active, f.err }

func (f *fakeSubscriptions) Portal(_ context.Context, _, returnURL string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.portalURL + "?return=" + returnURL, nil
}

func (f *fakeSubscriptions) HandleWebhook(_ context.Context, payload []byte, signature string) error {
	f.payload, f.signature = payload, signature
	return f.err
}

type fakeOAuth struct{}

func (fakeOAuth) AuthorizeURL(redirectURL string) (string, error) {
	if redirectURL == "" {
		return "", common.InvalidInputError("redirect_url is required")
	}
	return "https://proj.supabase.co/auth/v1/authorize?provider=google", nil
}

func (fakeOAuth) Callback(callbackURL string) (*auth.User, error) {
	if callbackURL == "" {
		return nil, common.InvalidInputError("callback_url is required")
	}
	first := "Ada"
	return &auth.User{ID: "u1", Email: "ada@example.com", FirstName: &first}, nil
}

func sampleOutput() processor.Output {
	value, unit := "14.2", "g/dL"
	return processor.Output{
		ParsedData: llm.ExtractionResult{TestResults: []llm.Marker{{Marker: "Hemoglobin", Value: &value, Unit: &unit, Status: constants.MarkerNormal}}},
		Analysis:   "All good.",
		CreatedAt:  time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
	}
}
