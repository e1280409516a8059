package analyses

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/lumo-backend/internal/common"
	"github.com/joseph-ayodele/lumo-backend/internal/entity"
	"github.com/joseph-ayodele/lumo-backend/internal/repository"
)

const parsedCBC = `{
  "patient_info": {"name": "Jane", "age": "34", "sex": "F", "test_date": "2024-03-02"},
  "test_results": [
    {"marker": "Hemoglobin", "value": "13.5", "unit": "g/dL", "reference_range": "12-16", "status": "normal"},
    {"marker": "ALT", "value": "60", "unit": "U/L", "reference_range": "7-56", "status": "high"},
    {"marker": "Ferritin", "value": "10", "unit": "ng/mL", "reference_range": "15-150", "status": "low"}
  ]
}`

func newTestService(t *testing.T) (*Service, *fakeChats) {
	t.Helper()
	ctx := context.Background()
	db, err := repository.Open(ctx, repository.Config{DSN: ":memory:"}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { repository.Close(db, nil) })
	require.NoError(t, repository.Migrate(ctx, db, nil))
	chats := &fakeChats{deleted: 7}
	return NewService(repository.NewAnalysisRepository(db, nil), chats, nil), chats
}

func strp(s string) *string { return &s }

func TestTitle(t *testing.T) {
	assert.Equal(t, "March labs", Title(&entity.Analysis{Title: strp("March labs"), ParsedData: []byte(parsedCBC)}))
	assert.Equal(t, "Blood Test - 2024-03-02", Title(&entity.Analysis{ParsedData: []byte(parsedCBC)}))
	assert.Equal(t, "Blood Test - 2024-03-02", Title(&entity.Analysis{Title: strp(""), ParsedData: []byte(parsedCBC)}))
	assert.Equal(t, "Blood Test Analysis", Title(&entity.Analysis{ParsedData: []byte(`{"patient_info":{"test_date":null},"test_results":[]}`)}))
	assert.Equal(t, "Blood Test Analysis", Title(&entity.Analysis{ParsedData: []byte(`[1,2]`)}))
}

func TestSummarize(t *testing.T) {
	n, s := Summarize([]byte(parsedCBC))
	assert.Equal(t, 3, n)
	assert.Equal(t, "2 of 3 markers abnormal", s)

	n, s = Summarize([]byte(`{"test_results":[{"marker":"A","status":"normal"},{"marker":"B","status":"unknown"}]}`))
	assert.Equal(t, 2, n)
	assert.Equal(t, "All markers normal", s)

	n, s = Summarize([]byte(`{"test_results":[]}`))
	assert.Zero(t, n)
	assert.Equal(t, "All markers normal", s)

	n, s = Summarize([]byte(`"not an object"`))
	assert.Zero(t, n)
	assert.Equal(t, "Analysis complete", s)
}

func TestCreateGetListDelete(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	rec, err := svc.Create(ctx, "u1", CreateRequest{
		ParsedData: json.RawMessage(parsedCBC),
		Analysis:   strp("Your ALT is slightly elevated."),
	})
	require.NoError(t, err)
	assert.Equal(t, "Blood Test - 2024-03-02", rec.Title)
	assert.JSONEq(t, `"Your ALT is slightly elevated."`, string(rec.Analysis))
	assert.Equal(t, "u1", rec.UserID)

	time.Sleep(2 * time.Millisecond)
	second, err := svc.Create(ctx, "u1", CreateRequest{
		ParsedData: json.RawMessage(`{"patient_info":{},"test_results":[]}`),
		Analysis:   strp("All good."),
		Title:      strp("  Follow-up  "),
	})
	require.NoError(t, err)
	assert.Equal(t, "Follow-up", second.Title)

	list, err := svc.List(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID)
	assert.Equal(t, "All markers normal", list[0].Summary)
	assert.Equal(t, 3, list[1].MarkersCount)
	assert.Equal(t, "2 of 3 markers abnormal", list[1].Summary)

	got, err := svc.Get(ctx, "u1", rec.ID.String())
	require.NoError(t, err)
	assert.JSONEq(t, parsedCBC, string(got.ParsedData))

	_, err = svc.Get(ctx, "u2", rec.ID.String())
	assert.True(t, errors.Is(err, common.ErrNotFound))
	assert.Equal(t, "Analysis not found", common.PublicMessage(err))

	_, err = svc.Get(ctx, "u1", "not-a-uuid")
	assert.True(t, errors.Is(err, common.ErrNotFound))

	assert.True(t, errors.Is(svc.Delete(ctx, "u2", rec.ID.String()), common.ErrNotFound))
	require.NoError(t, svc.Delete(ctx, "u1", rec.ID.String()))
	assert.True(t, errors.Is(svc.Delete(ctx, "u1", uuid.NewString()), common.ErrNotFound))

	list, err = svc.List(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestCreate_Validation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	cases := map[string]CreateRequest{
		"missing analysis":  {ParsedData: json.RawMessage(parsedCBC)},
		"blank analysis":    {ParsedData: json.RawMessage(parsedCBC), Analysis: strp("  ")},
		"missing parsed":    {Analysis: strp("x")},
		"array parsed":      {ParsedData: json.RawMessage(`[]`), Analysis: strp("x")},
		"no test_results":   {ParsedData: json.RawMessage(`{"patient_info":{}}`), Analysis: strp("x")},
		"bad marker status": {ParsedData: json.RawMessage(`{"test_results":[{"marker":"A","status":"weird"}]}`), Analysis: strp("x")},
	}
	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.Create(ctx, "u1", req)
			assert.True(t, errors.Is(err, common.ErrInvalidInput), "got %v", err)
		})
	}
}

func TestDeleteAccount(t *testing.T) {
	svc, chats := newTestService(t)
	ctx := context.Background()
	for i := 0; i < 2; i++ {
		_, err := svc.Create(ctx, "u1", CreateRequest{ParsedData: json.RawMessage(parsedCBC), Analysis: strp("x")})
		require.NoError(t, err)
	}
	_, err := svc.Create(ctx, "u2", CreateRequest{ParsedData: json.RawMessage(parsedCBC), Analysis: strp("x")})
	require.NoError(t, err)

	out, err := svc.DeleteAccount(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, AccountDeletion{Message: "Account data deleted successfully", AnalysesDeleted: 2, ChatMessagesDeleted: 7}, out)
	assert.Equal(t, []string{"u1"}, chats.users)

	list, err := svc.List(ctx, "u2")
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestDeleteAccount_ChatFailure(t *testing.T) {
	svc, chats := newTestService(t)
	chats.err = errors.New("db down")

	out, err := svc.DeleteAccount(context.Background(), "u1")
	require.Error(t, err)
	assert.Zero(t, out.ChatMessagesDeleted)
}
