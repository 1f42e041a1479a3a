package httprequest

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veilstream/conduit/pkg/protocol"
)

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func TestNewActionRequiresURL(t *testing.T) {
	_, err := NewAction(map[string]any{"method": "GET"})
	assert.ErrorIs(t, err, ErrURLRequired)
}

func TestExecuteSubstitutesURLAndHeaders(t *testing.T) {
	var gotPath, gotAuth string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true})
	}))
	defer server.Close()

	action, err := NewAction(map[string]any{
		"url": server.URL + "/users/$user_id",
		"headers": map[string]any{
			"Authorization": "Bearer $token",
		},
	})
	require.NoError(t, err)

	result, err := action.Execute(context.Background(), protocol.ExecutionContext{
		RuntimeData: map[string]any{"user_id": "u-42", "token": "secret"},
	}, testLogger())
	require.NoError(t, err)

	assert.Equal(t, "/users/u-42", gotPath)
	assert.Equal(t, "Bearer secret", gotAuth)
	assert.Equal(t, http.StatusOK, result["status_code"])

	body, ok := result["body"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, true, body["ok"])
}

func TestExecutePostsSubstitutedBody(t *testing.T) {
	var gotBody []byte

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotBody, _ = io.ReadAll(r.Body)

		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	action, err := NewAction(map[string]any{
		"url":    server.URL,
		"method": "post",
		"body":   `{"name": "$name"}`,
	})
	require.NoError(t, err)

	result, err := action.Execute(context.Background(), protocol.ExecutionContext{
		RuntimeData: map[string]any{"name": "Ada"},
	}, testLogger())
	require.NoError(t, err)

	assert.Equal(t, "POST", action.Method)
	assert.JSONEq(t, `{"name": "Ada"}`, string(gotBody))
	assert.Equal(t, http.StatusCreated, result["status_code"])
}

func TestExecuteErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	action, err := NewAction(map[string]any{"url": server.URL})
	require.NoError(t, err)

	result, err := action.Execute(context.Background(), protocol.ExecutionContext{}, testLogger())
	require.ErrorIs(t, err, ErrHTTPStatus)
	require.NotNil(t, result)
	assert.Equal(t, http.StatusInternalServerError, result["status_code"])
}

func TestExecuteNonJSONBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("plain text"))
	}))
	defer server.Close()

	action, err := NewAction(map[string]any{"url": server.URL})
	require.NoError(t, err)

	result, err := action.Execute(context.Background(), protocol.ExecutionContext{}, testLogger())
	require.NoError(t, err)
	assert.Equal(t, "plain text", result["body"])
}
