package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/lumo-backend/constants"
	"github.com/joseph-ayodele/lumo-backend/internal/analyses"
	"github.com/joseph-ayodele/lumo-backend/internal/auth"
	"github.com/joseph-ayodele/lumo-backend/internal/common"
	"github.com/joseph-ayodele/lumo-backend/internal/entity"
)

type testServer struct {
	handler  http.Handler
	analyzer *fakeAnalyzer
	chat     *fakeChat
	analyses *fakeAnalyses
	exporter *fakeExporter
	subs     *fakeSubscriptions
}

func newTestServer(t *testing.T, mutate ...func(*Deps)) *testServer {
	t.Helper()
	ts := &testServer{
		analyzer: &fakeAnalyzer{out: sampleOutput()},
		chat:     &fakeChat{window: 30 * time.Minute, reply: "Hello from Lumo"},
		analyses: &fakeAnalyses{records: map[string]*analyses.Record{}},
		exporter: &fakeExporter{},
		subs:     &fakeSubscriptions{portalURL: "https://billing.example/p"},
	}
	d := Deps{
		Analyzer:      ts.analyzer,
		Chat:          ts.chat,
		Analyses:      ts.analyses,
		Exporter:      ts.exporter,
		Subscriptions: ts.subs,
		OAuth:         fakeOAuth{},
		Verifier:      &fakeVerifier{users: map[string]string{"u1": "ada@example.com", "u2": "bob@example.com"}},
		Now:           func() time.Time { return time.Date(2024, 6, 15, 9, 0, 0, 0, time.UTC) },
	}
	for _, m := range mutate {
		m(&d)
	}
	ts.handler = NewRouter(d)
	return ts
}

func (ts *testServer) do(req *http.Request, user string) *httptest.ResponseRecorder {
	if user != "" {
		req.Header.Set("Authorization", "Bearer "+user)
	}
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

func jsonRequest(method, path string, body any) *http.Request {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

// multipartRequest builds a form with one file part and optional text fields.
func multipartRequest(t *testing.T, path, filename, contentType string, data []byte, fields map[string]string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if filename != "" {
		h := textproto.MIMEHeader{}
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, filename))
		h.Set("Content-Type", contentType)
		part, err := mw.CreatePart(h)
		require.NoError(t, err)
		_, err = part.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestHealth_IsPublic(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(httptest.NewRequest(http.MethodGet, "/api/ai/health", nil), "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","service":"AI Analysis"}`, rec.Body.String())
}

func TestAuth_RejectsMissingAndBadTokens(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(jsonRequest(http.MethodPost, "/api/chat/send", map[string]string{"message": "hi"}), "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Authorization header is required", decodeBody(t, rec)["error"])

	rec = ts.do(jsonRequest(http.MethodPost, "/api/chat/send", map[string]string{"message": "hi"}), "mallory")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Invalid token", decodeBody(t, rec)["error"])
	assert.Empty(t, ts.chat.lastUser)
}

func TestAuth_WithSupabaseVerifier(t *testing.T) {
	const secret = "test-secret"
	ts := newTestServer(t, func(d *Deps) { d.Verifier = auth.NewVerifier(secret, "", nil) })
	sign := func(exp time.Time) string {
		tok := jwt.NewWithClaims(jwt.SigningMethodHS256, auth.Claims{
			Email: "ada@example.com",
			RegisteredClaims: jwt.RegisteredClaims{
				Subject:   "user-123",
				Audience:  jwt.ClaimStrings{auth.DefaultAudience},
				ExpiresAt: jwt.NewNumericDate(exp),
			},
		})
		s, err := tok.SignedString([]byte(secret))
		require.NoError(t, err)
		return s
	}

	rec := ts.do(jsonRequest(http.MethodPost, "/api/chat/send", map[string]string{"message": "hi"}), sign(time.Now().Add(time.Hour)))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "user-123", ts.chat.lastUser)

	rec = ts.do(jsonRequest(http.MethodPost, "/api/chat/send", map[string]string{"message": "hi"}), sign(time.Now().Add(-time.Hour)))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Token has expired", decodeBody(t, rec)["error"])
}

func TestAnalyze_Success(t *testing.T) {
	ts := newTestServer(t)
	req := multipartRequest(t, "/api/ai/analyze", "labs.jpg", "image/jpg", []byte("jpeg-bytes"), nil)

	rec := ts.do(req, "u1")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decodeBody(t, rec)
	assert.Equal(t, "All good.", body["analysis"])
	parsed := body["parsed_data"].(map[string]any)
	results := parsed["test_results"].([]any)
	require.Len(t, results, 1)
	assert.Equal(t, "Hemoglobin", results[0].(map[string]any)["marker"])
	assert.Contains(t, body, "structured_analysis")
	assert.Contains(t, body, "created_at")

	assert.Equal(t, "image/jpeg", ts.analyzer.contentType)
	assert.Equal(t, []byte("jpeg-bytes"), ts.analyzer.body)
}

func TestAnalyze_RejectsBeforePipeline(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(multipartRequest(t, "/api/ai/analyze", "", "", nil, map[string]string{"note": "x"}), "u1")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "No file provided", decodeBody(t, rec)["error"])

	rec = ts.do(multipartRequest(t, "/api/ai/analyze", "labs.gif", "image/gif", []byte("gif"), nil), "u1")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decodeBody(t, rec)["error"], "Invalid file type. Allowed types: image/jpeg")

	assert.Zero(t, ts.analyzer.calls)
}

func TestAnalyze_PipelineFailure(t *testing.T) {
	ts := newTestServer(t)
	ts.analyzer.err = common.UpstreamError("OCR job failed", errBoom)

	rec := ts.do(multipartRequest(t, "/api/ai/analyze", "labs.pdf", "application/pdf", []byte("%PDF"), nil), "u1")
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "Failed to analyze blood test", body["error"])
	assert.Equal(t, "OCR job failed", body["details"])
}

func TestAnalyze_IgnoresClientCancellation(t *testing.T) {
	ts := newTestServer(t)
	req := multipartRequest(t, "/api/ai/analyze", "labs.png", "image/png", []byte("png"), nil)
	ctx, cancel := context.WithCancel(req.Context())
	cancel()

	rec := ts.do(req.WithContext(ctx), "u1")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NoError(t, ts.analyzer.ctxErr)
}

func TestChatSend(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(jsonRequest(http.MethodPost, "/api/chat/send", map[string]string{"user_id": "u1", "message": "What is ALT?"}), "u1")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":true,"response":"Hello from Lumo"}`, rec.Body.String())
	assert.Equal(t, "u1", ts.chat.lastUser)
	assert.Equal(t, "What is ALT?", ts.chat.lastText)
}

func TestChatSend_UserMismatchIsForbidden(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(jsonRequest(http.MethodPost, "/api/chat/send", map[string]string{"user_id": "u2", "message": "hi"}), "u1")
	require.Equal(t, http.StatusForbidden, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, false, body["success"])
	assert.Empty(t, ts.chat.lastUser)
}

func TestChatSend_ServiceErrors(t *testing.T) {
	ts := newTestServer(t)

	ts.chat.err = common.InvalidInputError("message: is required")
	rec := ts.do(jsonRequest(http.MethodPost, "/api/chat/send", map[string]string{}), "u1")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"success":false,"error":"message: is required"}`, rec.Body.String())

	ts.chat.err = common.UpstreamError("Failed to get AI response", errBoom)
	rec = ts.do(jsonRequest(http.MethodPost, "/api/chat/send", map[string]string{"message": "hi"}), "u1")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"success":false,"error":"Failed to get AI response"}`, rec.Body.String())
}

func TestChatSendFile(t *testing.T) {
	ts := newTestServer(t)
	req := multipartRequest(t, "/api/chat/send-file", "report.pdf", "application/pdf", []byte("%PDF-1.4"),
		map[string]string{"message": "what does this say?"})

	rec := ts.do(req, "u1")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"success":true,"response":"Hello from Lumo","file_type":"pdf","file_name":"report.pdf"}`, rec.Body.String())
	assert.Equal(t, "what does this say?", ts.chat.lastText)
	assert.Equal(t, "application/pdf", ts.chat.lastFile.ContentType)
	assert.Equal(t, []byte("%PDF-1.4"), ts.chat.fileBody)
}

func TestChatSendFile_NoFile(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(multipartRequest(t, "/api/chat/send-file", "", "", nil, map[string]string{"message": "hi"}), "u1")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"success":false,"error":"No file provided"}`, rec.Body.String())
}

func TestChatHistory(t *testing.T) {
	ts := newTestServer(t)
	name := "scan.png"
	ts.chat.history = []*entity.ChatMessage{
		{ID: uuid.New(), UserID: "u1", Role: constants.RoleUser, Content: "", MessageType: constants.MessageImage, FileName: &name},
		{ID: uuid.New(), UserID: "u1", Role: constants.RoleAssistant, Content: "Looks fine", MessageType: constants.MessageText},
	}

	rec := ts.do(jsonRequest(http.MethodPost, "/api/chat/history", nil), "u1")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 30*time.Minute, ts.chat.lastWin)
	body := decodeBody(t, rec)
	msgs := body["messages"].([]any)
	require.Len(t, msgs, 2)
	first := msgs[0].(map[string]any)
	assert.Equal(t, "image", first["message_type"])
	assert.Equal(t, "scan.png", first["file_name"])
	assert.NotContains(t, first, "storage_path")

	rec = ts.do(jsonRequest(http.MethodPost, "/api/chat/history", map[string]int{"minutes": 90}), "u1")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 90*time.Minute, ts.chat.lastWin)
}

func TestChatHistory_MinutesOutOfRange(t *testing.T) {
	ts := newTestServer(t)
	for _, m := range []int{0, 1441} {
		rec := ts.do(jsonRequest(http.MethodPost, "/api/chat/history", map[string]int{"minutes": m}), "u1")
		assert.Equal(t, http.StatusBadRequest, rec.Code, "minutes=%d", m)
		assert.Equal(t, false, decodeBody(t, rec)["success"])
	}
}

func TestChatClear(t *testing.T) {
	ts := newTestServer(t)
	ts.chat.cleared = 4
	rec := ts.do(jsonRequest(http.MethodPost, "/api/chat/clear", map[string]string{"user_id": "u1"}), "u1")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":true,"deleted_count":4}`, rec.Body.String())
}

func TestRateLimit_PerUser(t *testing.T) {
	ts := newTestServer(t, func(d *Deps) { d.Limits = Limits{RequestsPerMinute: 1, Burst: 1} })
	send := func(user string) int {
		return ts.do(jsonRequest(http.MethodPost, "/api/chat/send", map[string]string{"message": "hi"}), user).Code
	}

	assert.Equal(t, http.StatusOK, send("u1"))
	assert.Equal(t, http.StatusTooManyRequests, send("u1"))
	assert.Equal(t, http.StatusOK, send("u2"))

	// History is not model-backed and stays available.
	rec := ts.do(jsonRequest(http.MethodPost, "/api/chat/history", nil), "u1")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestUserLimiter_EvictsIdleBuckets(t *testing.T) {
	l := newUserLimiter(1, 1)
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	for i := 0; i < 500; i++ {
		assert.True(t, l.allow(fmt.Sprintf("user-%d", i)))
	}
	assert.False(t, l.allow("user-0"))
	assert.Equal(t, 500, l.size())

	now = now.Add(5 * time.Minute)
	assert.True(t, l.allow("user-0"))
	assert.Equal(t, 500, l.size())

	now = now.Add(minLimiterIdle)
	assert.True(t, l.allow("active"))
	assert.Equal(t, 1, l.size())
}

func TestAnalyses_ListCreateGetDelete(t *testing.T) {
	ts := newTestServer(t)
	id := uuid.New()
	ts.analyses.records[id.String()] = &analyses.Record{ID: id, UserID: "u1", Title: "Blood Test - 2024-05-01"}
	ts.analyses.items = []entity.AnalysisSummary{{ID: id, Title: "Blood Test - 2024-05-01", MarkersCount: 3, Summary: "All markers normal"}}

	rec := ts.do(httptest.NewRequest(http.MethodGet, "/api/analyses/", nil), "u1")
	require.Equal(t, http.StatusOK, rec.Code)
	var items []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &items))
	require.Len(t, items, 1)
	assert.Equal(t, float64(3), items[0]["markers_count"])

	rec = ts.do(jsonRequest(http.MethodPost, "/api/analyses", map[string]any{
		"parsed_data": map[string]any{"test_results": []any{}},
		"analysis":    "narrative",
	}), "u1")
	require.Equal(t, http.StatusCreated, rec.Code)
	require.NotNil(t, ts.analyses.created)
	assert.Equal(t, "narrative", *ts.analyses.created.Analysis)

	rec = ts.do(httptest.NewRequest(http.MethodGet, "/api/analyses/"+id.String(), nil), "u1")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Blood Test - 2024-05-01", decodeBody(t, rec)["title"])

	rec = ts.do(httptest.NewRequest(http.MethodGet, "/api/analyses/"+id.String(), nil), "u2")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"error":"Analysis not found"}`, rec.Body.String())

	rec = ts.do(httptest.NewRequest(http.MethodDelete, "/api/analyses/"+id.String(), nil), "u1")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, []string{id.String()}, ts.analyses.deleted)
}

func TestAnalyses_CreateInvalid(t *testing.T) {
	ts := newTestServer(t)
	ts.analyses.err = common.InvalidInputError("analysis: is required")

	rec := ts.do(jsonRequest(http.MethodPost, "/api/analyses", map[string]any{"parsed_data": map[string]any{}}), "u1")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"Invalid data","details":"analysis: is required"}`, rec.Body.String())

	req := httptest.NewRequest(http.MethodPost, "/api/analyses", strings.NewReader("{not json"))
	rec = ts.do(req, "u1")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid data", decodeBody(t, rec)["error"])
}

func TestAnalyses_Export(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(httptest.NewRequest(http.MethodGet, "/api/analyses/export?from_date=2024-06-01", nil), "u1")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, xlsxContentType, rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "attachment")
	assert.Equal(t, "PK-xlsx", rec.Body.String())
	assert.Equal(t, "u1", ts.exporter.user)
	require.NotNil(t, ts.exporter.from)
	require.NotNil(t, ts.exporter.to)
	assert.Equal(t, time.Date(2024, 6, 16, 0, 0, 0, 0, time.UTC), *ts.exporter.to)

	rec = ts.do(httptest.NewRequest(http.MethodGet, "/api/analyses/export?to_date=June", nil), "u1")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAnalyses_DeleteAccount(t *testing.T) {
	ts := newTestServer(t)
	ts.analyses.deletion = analyses.AccountDeletion{Message: "Account data deleted successfully", AnalysesDeleted: 2, ChatMessagesDeleted: 5}

	rec := ts.do(httptest.NewRequest(http.MethodDelete, "/api/analyses/delete-account", nil), "u1")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"message":"Account data deleted successfully","analyses_deleted":2,"chat_messages_deleted":5}`, rec.Body.String())
}

func TestSubscriptions_Routes(t *testing.T) {
	ts := newTestServer(t)
	ts.subs.active = true

	rec := ts.do(httptest.NewRequest(http.MethodGet, "/api/subscriptions/status", nil), "u1")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"has_active_subscription":true}`, rec.Body.String())

	rec = ts.do(jsonRequest(http.MethodPost, "/api/subscriptions/checkout", map[string]string{"plan": "monthly"}), "u1")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"checkout_url":"https://checkout.example/s","session_id":"cs_1"}`, rec.Body.String())
	assert.Equal(t, "monthly", ts.subs.checkout.Plan)
	assert.Equal(t, "ada@example.com", ts.subs.checkout.Email)

	rec = ts.do(jsonRequest(http.MethodPost, "/api/subscriptions/portal", map[string]string{"return_url": "lumo://back"}), "u1")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "https://billing.example/p?return=lumo://back", decodeBody(t, rec)["url"])
}

func TestSubscriptions_WebhookIsPublic(t *testing.T) {
	ts := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/api/subscriptions/webhook", strings.NewReader(`{"id":"evt_1"}`))
	req.Header.Set("Stripe-Signature", "t=1,v1=abc")

	rec := ts.do(req, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"success"}`, rec.Body.String())
	assert.Equal(t, "t=1,v1=abc", ts.subs.signature)
	assert.JSONEq(t, `{"id":"evt_1"}`, string(ts.subs.payload))

	ts.subs.err = common.NewAppError("INVALID_INPUT", "Invalid signature", common.ErrInvalidInput)
	rec = ts.do(httptest.NewRequest(http.MethodPost, "/api/subscriptions/webhook", strings.NewReader(`{}`)), "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"Invalid signature"}`, rec.Body.String())
}

func TestSubscriptions_NotMountedWithoutBilling(t *testing.T) {
	ts := newTestServer(t, func(d *Deps) { d.Subscriptions = nil })
	rec := ts.do(httptest.NewRequest(http.MethodGet, "/api/subscriptions/status", nil), "u1")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGoogleOAuth(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(jsonRequest(http.MethodPost, "/api/auth/google", map[string]string{"redirect_url": "lumo://auth"}), "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, decodeBody(t, rec)["url"], "provider=google")

	rec = ts.do(jsonRequest(http.MethodPost, "/api/auth/google", map[string]string{}), "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(jsonRequest(http.MethodPost, "/api/auth/google/callback", map[string]string{"callback_url": "lumo://auth#access_token=x"}), "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"user":{"id":"u1","email":"ada@example.com","first_name":"Ada","last_name":null}}`, rec.Body.String())
}
