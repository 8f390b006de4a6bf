package rest

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/brunomacedo1203/taskcollab/internal/contextkeys"
	"github.com/brunomacedo1203/taskcollab/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const notificationID = "6f1c2f57-3c1b-4a53-9b2d-3f7a1c9e8d10"

type fakeTokens struct{}

func (fakeTokens) GenerateToken(context.Context, string, time.Duration) (string, error) {
	return "", errors.New("not implemented")
}

func (fakeTokens) ValidateToken(_ context.Context, token string) (*domain.Claims, error) {
	switch token {
	case "":
		return nil, domain.ErrTokenMissing
	case "bad":
		return nil, domain.ErrTokenInvalid
	}
	return &domain.Claims{UserID: token}, nil
}

type fakeListUnread struct {
	gotRecipient string
	gotLimit     int
	items        []domain.Notification
	err          error
}

func (f *fakeListUnread) Execute(_ context.Context, recipientID string, limit int) ([]domain.Notification, error) {
	f.gotRecipient, f.gotLimit = recipientID, limit
	return f.items, f.err
}

type fakeMarkRead struct {
	readAt time.Time
	owner  string
}

func (f *fakeMarkRead) Execute(_ context.Context, id, recipientID string) (*domain.Notification, error) {
	if id != notificationID || recipientID != f.owner {
		return nil, domain.ErrNotificationNotFound
	}
	return &domain.Notification{ID: id, RecipientID: recipientID, ReadAt: &f.readAt}, nil
}

type fakeMetrics struct{}

func (fakeMetrics) IncReceived(string)  {}
func (fakeMetrics) IncProcessed(string) {}
func (fakeMetrics) IncFailed(string)    {}
func (fakeMetrics) Snapshot() domain.MetricsSnapshot {
	return domain.MetricsSnapshot{
		ReceivedByRoutingKey: map[string]int64{"task.created": 2},
		ProcessedByType:      map[string]int64{"task.created": 1},
		FailedByType:         map[string]int64{"task.created": 1},
		Timestamp:            time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

type testServer struct {
	handler  http.Handler
	list     *fakeListUnread
	markRead *fakeMarkRead
	wsHits   int
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ts := &testServer{
		list:     &fakeListUnread{},
		markRead: &fakeMarkRead{owner: "u-1", readAt: time.Date(2026, 2, 3, 4, 5, 6, 0, time.UTC)},
	}
	handlers := NewNotificationHandler(ts.list, ts.markRead, fakeMetrics{}, "notifications-service")
	gateway := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ts.wsHits++
		w.WriteHeader(http.StatusSwitchingProtocols)
	})
	srv := NewServer(ServerConfig{
		Port:        "0",
		WSPath:      "/ws",
		CORSOrigins: []string{"http://app.local"},
	}, handlers, fakeTokens{}, gateway, contextkeys.NoopLogger())
	ts.handler = srv.Handler()
	return ts
}

func (ts *testServer) do(method, target, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestMetricsEndpoint(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{
		"service": "notifications-service",
		"data": {
			"receivedByRoutingKey": {"task.created": 2},
			"processedByType": {"task.created": 1},
			"failedByType": {"task.created": 1},
			"timestamp": "2026-01-01T00:00:00Z"
		}
	}`, rec.Body.String())
}

func TestNotificationsRequireToken(t *testing.T) {
	ts := newTestServer(t)

	assert.Equal(t, http.StatusUnauthorized, ts.do(http.MethodGet, "/notifications", "").Code)
	assert.Equal(t, http.StatusUnauthorized, ts.do(http.MethodGet, "/notifications", "bad").Code)
	assert.Equal(t, http.StatusUnauthorized, ts.do(http.MethodPatch, "/notifications/"+notificationID+"/read", "").Code)
}

func TestListUnread(t *testing.T) {
	ts := newTestServer(t)
	commentID := "c-1"
	ts.list.items = []domain.Notification{{
		ID: notificationID, RecipientID: "u-1", Type: domain.EventTaskCommentCreated, TaskID: "t-1",
		CommentID: &commentID, Title: "New comment", Body: "hello",
		CreatedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}}

	rec := ts.do(http.MethodGet, "/notifications", "u-1")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "u-1", ts.list.gotRecipient)
	assert.Equal(t, 10, ts.list.gotLimit)
	assert.JSONEq(t, `{
		"data": [{
			"id": "`+notificationID+`", "recipientId": "u-1", "type": "task.comment.created", "taskId": "t-1",
			"commentId": "c-1", "title": "New comment", "body": "hello", "readAt": null,
			"createdAt": "2026-03-01T12:00:00Z"
		}],
		"size": 1
	}`, rec.Body.String())
}

func TestListUnreadSize(t *testing.T) {
	tests := []struct {
		query     string
		wantCode  int
		wantLimit int
	}{
		{query: "?size=1", wantCode: http.StatusOK, wantLimit: 1},
		{query: "?size=100", wantCode: http.StatusOK, wantLimit: 100},
		{query: "?size=0", wantCode: http.StatusBadRequest},
		{query: "?size=101", wantCode: http.StatusBadRequest},
		{query: "?size=ten", wantCode: http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			ts := newTestServer(t)
			rec := ts.do(http.MethodGet, "/notifications"+tt.query, "u-1")
			require.Equal(t, tt.wantCode, rec.Code)
			if tt.wantCode == http.StatusOK {
				assert.Equal(t, tt.wantLimit, ts.list.gotLimit)
				assert.JSONEq(t, `{"data":[],"size":0}`, rec.Body.String())
			}
		})
	}
}

func TestListUnreadFailure(t *testing.T) {
	ts := newTestServer(t)
	ts.list.err = errors.New("db down")

	rec := ts.do(http.MethodGet, "/notifications", "u-1")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestMarkRead(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(http.MethodPatch, "/notifications/"+notificationID+"/read", "u-1")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"id":"`+notificationID+`","readAt":"2026-02-03T04:05:06Z"}`, rec.Body.String())

	rec = ts.do(http.MethodPatch, "/notifications/"+notificationID+"/read", "u-2")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = ts.do(http.MethodPatch, "/notifications/not-a-uuid/read", "u-1")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCORSPreflight(t *testing.T) {
	ts := newTestServer(t)
	req := httptest.NewRequest(http.MethodOptions, "/notifications", nil)
	req.Header.Set("Origin", "http://app.local")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)

	assert.Equal(t, "http://app.local", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "86400", rec.Header().Get("Access-Control-Max-Age"))
}

func TestGatewayMountedUnderWSPath(t *testing.T) {
	ts := newTestServer(t)
	ts.do(http.MethodGet, "/ws", "")
	ts.do(http.MethodGet, "/ws/anything", "")
	assert.Equal(t, 2, ts.wsHits)
}

func TestErrorBodyIsJSON(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(http.MethodGet, "/notifications", "")
	var body map[string]string
	require.NoError(t, json.NewDecoder(strings.NewReader(rec.Body.String())).Decode(&body))
	assert.Equal(t, "Unauthorized", body["error"])
}
