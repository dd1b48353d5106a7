package usecase_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/2Raz/mnam-backend-sub001/internal/domain/model"
	"github.com/2Raz/mnam-backend-sub001/internal/domain/provider"
	"github.com/2Raz/mnam-backend-sub001/internal/testutil"
	"github.com/2Raz/mnam-backend-sub001/internal/usecase"
)

// MockAuditRepository is a mock implementation of AuditRepository
type MockAuditRepository struct {
	mock.Mock
}

func (m *MockAuditRepository) CreateAudit(ctx context.Context, record *model.IntegrationAuditRecord) error {
	args := m.Called(ctx, record)
	return args.Error(0)
}

func (m *MockAuditRepository) CreateLog(ctx context.Context, log *model.IntegrationLog) error {
	args := m.Called(ctx, log)
	return args.Error(0)
}

func TestSanitizePayload(t *testing.T) {
	tests := []struct {
		name string
		body string
		want model.JSONB
	}{
		{
			name: "empty",
			body: "",
			want: nil,
		},
		{
			name: "nested credentials",
			body: `{"values":[{"rate":"100.00","api_key":"k"}],"auth":{"Token":"t","user":"u"}}`,
			want: model.JSONB{
				"values": []interface{}{map[string]interface{}{"rate": "100.00", "api_key": "[REDACTED]"}},
				"auth":   map[string]interface{}{"Token": "[REDACTED]", "user": "u"},
			},
		},
		{
			name: "array body",
			body: `[1,2]`,
			want: model.JSONB{"body": []interface{}{float64(1), float64(2)}},
		},
		{
			name: "not json",
			body: `<html>bad gateway</html>`,
			want: model.JSONB{"raw": "<html>bad gateway</html>"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, usecase.SanitizePayload([]byte(tt.body)))
		})
	}

	t.Run("long raw bodies are truncated", func(t *testing.T) {
		got := usecase.SanitizePayload([]byte(strings.Repeat("x", 5000)))
		raw := got["raw"].(string)
		assert.True(t, strings.HasSuffix(raw, "...(truncated)"))
		assert.Less(t, len(raw), 5000)
	})
}

func TestSanitizeHeaders(t *testing.T) {
	got := usecase.SanitizeHeaders(map[string][]string{
		"User-Api-Key":        {"secret"},
		"X-Channex-Signature": {"abc"},
		"Content-Type":        {"application/json"},
		"Accept":              {"a", "b"},
	})

	assert.Equal(t, model.JSONB{
		"User-Api-Key":        "[REDACTED]",
		"X-Channex-Signature": "[REDACTED]",
		"Content-Type":        "application/json",
		"Accept":              "a, b",
	}, got)
}

func TestAuditRecorder_RecordExchange(t *testing.T) {
	store := testutil.NewStore(t)
	ctx := context.Background()
	conn := testutil.Connection(t, store, "P1")

	audits := new(MockAuditRepository)
	var logged *model.IntegrationLog
	audits.On("CreateLog", mock.Anything, mock.AnythingOfType("*model.IntegrationLog")).
		Run(func(args mock.Arguments) { logged = args.Get(1).(*model.IntegrationLog) }).
		Return(nil).
		Twice()

	recorder := usecase.NewAuditRecorder(audits, store.Repos().Connections, zap.NewNop())

	recorder.RecordExchange(ctx, &provider.Exchange{
		ConnectionID: conn.ID,
		OutboxID:     "o-1",
		EventType:    "avail_update",
		Method:       "POST",
		URL:          "https://channex.test/api/v1/availability",
		RequestBody:  []byte(`{"values":[],"api_key":"k"}`),
		StatusCode:   200,
		Duration:     120 * time.Millisecond,
		RequestID:    "req-1",
	})
	require.NotNil(t, logged)
	assert.True(t, logged.Success)
	assert.Equal(t, model.LogTypeAPICall, logged.LogType)
	assert.Equal(t, "[REDACTED]", logged.RequestPayload["api_key"])
	assert.EqualValues(t, 120, logged.DurationMS)

	recorder.RecordExchange(ctx, &provider.Exchange{
		ConnectionID: conn.ID,
		Method:       "POST",
		URL:          "https://channex.test/api/v1/restrictions",
		StatusCode:   503,
		ResponseBody: []byte("unavailable"),
		Err:          errors.New("service unavailable"),
	})
	assert.False(t, logged.Success)
	assert.Equal(t, model.LogTypeError, logged.LogType)
	require.NotNil(t, logged.ResponseStatus)
	assert.Equal(t, 503, *logged.ResponseStatus)
	assert.Equal(t, "service unavailable", model.Deref(logged.ErrorMessage))

	stored, err := store.Repos().Connections.GetByID(ctx, conn.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, stored.RequestsToday)
	audits.AssertExpectations(t)
}

func TestAuditRecorder_RecordAuditNeverFails(t *testing.T) {
	audits := new(MockAuditRepository)
	audits.On("CreateAudit", mock.Anything, mock.MatchedBy(func(r *model.IntegrationAuditRecord) bool {
		return r.Status == model.AuditStatusFailed &&
			model.Deref(r.ErrorMessage) == "boom" &&
			r.PayloadSizeBytes == 2 &&
			r.PayloadHash != nil
	})).Return(errors.New("database is gone")).Once()

	recorder := usecase.NewAuditRecorder(audits, nil, zap.NewNop())
	recorder.RecordAudit(context.Background(), usecase.AuditEntry{
		Direction:  model.DirectionOutbound,
		EntityType: "price_update",
		Payload:    []byte("{}"),
		Status:     model.AuditStatusFailed,
		Err:        errors.New("boom"),
	})
	audits.AssertExpectations(t)
}
