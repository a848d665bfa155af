// handlers_session_test.go - Tests for the session JSON API
package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/codewave/panel/internal/models"
	"github.com/codewave/panel/internal/testutil"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"
)

func decodeSnapshot(t *testing.T, rec *httptest.ResponseRecorder) models.SessionSnapshot {
	t.Helper()
	var snap models.SessionSnapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap), rec.Body.String())
	return snap
}

func decodeAPIError(t *testing.T, rec *httptest.ResponseRecorder) APIError {
	t.Helper()
	var apiErr APIError
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &apiErr), rec.Body.String())
	return apiErr
}

func TestSessionAPI_GetSessionIssuesCookie(t *testing.T) {
	env := newTestEnv(t, testutil.NewAnalysisServer(t, http.StatusOK, `{}`))

	rec := env.do(t, httptest.NewRequest(http.MethodGet, "/api/session", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, env.cookie)
	assert.True(t, env.cookie.HttpOnly)

	snap := decodeSnapshot(t, rec)
	assert.Equal(t, env.cookie.Value, snap.ID)
	assert.Equal(t, models.StatusIdle, snap.Status)

	// The same cookie resolves the same session.
	first := env.cookie.Value
	rec = env.do(t, httptest.NewRequest(http.MethodGet, "/api/session", nil))
	assert.Equal(t, first, decodeSnapshot(t, rec).ID)
	assert.Equal(t, 1, env.sessions.Count())
}

func TestSessionAPI_SelectFile(t *testing.T) {
	tests := []struct {
		name        string
		filename    string
		contentType string
		wantStatus  int
		wantCode    string
		wantMessage string
	}{
		{"valid pdf", "cv.pdf", "application/pdf", http.StatusOK, "", ""},
		{"text file", "notes.txt", "text/plain", http.StatusBadRequest, "VALIDATION_ERROR", models.MsgInvalidPDF},
		{"pdf extension wrong type", "cv.pdf", "application/octet-stream", http.StatusBadRequest, "VALIDATION_ERROR", models.MsgInvalidPDF},
		{"image", "photo.png", "image/png", http.StatusBadRequest, "VALIDATION_ERROR", models.MsgInvalidPDF},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, testutil.NewAnalysisServer(t, http.StatusOK, `{}`))

			rec := env.do(t, newFileRequest(t, "/api/session/file", tt.filename, tt.contentType))
			require.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())

			if tt.wantCode == "" {
				snap := decodeSnapshot(t, rec)
				require.NotNil(t, snap.SelectedFile)
				assert.Equal(t, tt.filename, snap.SelectedFile.Name)
				assert.Equal(t, int64(len(pdfBody)), snap.SelectedFile.Size)
				assert.Equal(t, 1, env.store.Len())
				return
			}

			apiErr := decodeAPIError(t, rec)
			assert.Equal(t, tt.wantCode, apiErr.Code)
			assert.Equal(t, tt.wantMessage, apiErr.Message)

			snap := env.panel(t).Snapshot()
			assert.Nil(t, snap.SelectedFile)
			assert.Equal(t, models.MsgInvalidPDF, snap.ErrorMessage)
			assert.Zero(t, env.store.Len())
		})
	}
}

func TestSessionAPI_SelectWithoutFile(t *testing.T) {
	env := newTestEnv(t, testutil.NewAnalysisServer(t, http.StatusOK, `{}`))

	body, ct := multipartFile(t, "", "", "", "")
	req := httptest.NewRequest(http.MethodPost, "/api/session/file", body)
	req.Header.Set(echo.HeaderContentType, ct)
	rec := env.do(t, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "VALIDATION_ERROR", decodeAPIError(t, rec).Code)
}

func TestSessionAPI_SubmitWithoutFile(t *testing.T) {
	env := newTestEnv(t, testutil.NewAnalysisServer(t, http.StatusOK, `{}`))

	rec := env.do(t, httptest.NewRequest(http.MethodPost, "/api/session/upload", nil))
	require.Equal(t, http.StatusPreconditionFailed, rec.Code)

	apiErr := decodeAPIError(t, rec)
	assert.Equal(t, "PRECONDITION_FAILED", apiErr.Code)
	assert.Equal(t, models.MsgNoFileSelected, apiErr.Message)

	snap := env.panel(t).Snapshot()
	assert.Equal(t, models.StatusFailed, snap.Status)
	assert.Equal(t, models.MsgNoFileSelected, snap.ErrorMessage)
	assert.Empty(t, env.analysis.Received())
}

func TestSessionAPI_SubmitAndWait(t *testing.T) {
	srv := testutil.NewAnalysisServerJSON(t, http.StatusOK, map[string]any{
		"filename": "cv.pdf",
		"result":   "Strong candidate",
	})
	env := newTestEnv(t, srv)

	require.Equal(t, http.StatusOK, env.do(t, newFileRequest(t, "/api/session/file", "cv.pdf", "application/pdf")).Code)

	rec := env.do(t, httptest.NewRequest(http.MethodPost, "/api/session/upload?wait=true", nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	snap := decodeSnapshot(t, rec)
	assert.Equal(t, models.StatusSucceeded, snap.Status)
	require.NotNil(t, snap.Result)
	assert.Equal(t, "cv.pdf", snap.Result.Filename)
	assert.Equal(t, "Strong candidate", snap.FormattedAnalysis)
	assert.Empty(t, snap.ErrorMessage)

	received := srv.Received()
	require.Len(t, received, 1)
	assert.Equal(t, "pdf", received[0].FieldName)
	assert.Equal(t, "cv.pdf", received[0].Filename)
	assert.Equal(t, pdfBody, string(received[0].Body))
}

func TestSessionAPI_SubmitServiceErrorIsNotAnAPIError(t *testing.T) {
	srv := testutil.NewAnalysisServer(t, http.StatusBadRequest, `{"error":"Invalid file type"}`)
	env := newTestEnv(t, srv)

	env.do(t, newFileRequest(t, "/api/session/file", "cv.pdf", "application/pdf"))
	rec := env.do(t, httptest.NewRequest(http.MethodPost, "/api/session/upload?wait=1", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	snap := decodeSnapshot(t, rec)
	assert.Equal(t, models.StatusFailed, snap.Status)
	assert.Equal(t, "Invalid file type", snap.ErrorMessage)
	assert.Nil(t, snap.Result)
}

func TestSessionAPI_SubmitWhileUploading(t *testing.T) {
	srv := testutil.NewAnalysisServer(t, http.StatusOK, `{"filename":"cv.pdf","result":"ok"}`)
	srv.Hold()
	env := newTestEnv(t, srv)

	env.do(t, newFileRequest(t, "/api/session/file", "cv.pdf", "application/pdf"))

	rec := env.do(t, httptest.NewRequest(http.MethodPost, "/api/session/upload", nil))
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, models.StatusUploading, decodeSnapshot(t, rec).Status)

	rec = env.do(t, httptest.NewRequest(http.MethodPost, "/api/session/upload", nil))
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "CONFLICT", decodeAPIError(t, rec).Code)

	rec = env.do(t, newFileRequest(t, "/api/session/file", "other.pdf", "application/pdf"))
	assert.Equal(t, http.StatusConflict, rec.Code)

	srv.Release()
	require.Eventually(t, func() bool {
		return env.panel(t).Snapshot().Status == models.StatusSucceeded
	}, 5*time.Second, 10*time.Millisecond)
	assert.Len(t, srv.Received(), 1)
}

func TestSessionAPI_Reset(t *testing.T) {
	srv := testutil.NewAnalysisServer(t, http.StatusOK, `{"filename":"cv.pdf","result":"ok"}`)
	env := newTestEnv(t, srv)

	env.do(t, newFileRequest(t, "/api/session/file", "cv.pdf", "application/pdf"))
	env.do(t, httptest.NewRequest(http.MethodPost, "/api/session/upload?wait=true", nil))

	rec := env.do(t, httptest.NewRequest(http.MethodPost, "/api/session/reset", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	snap := decodeSnapshot(t, rec)
	assert.Equal(t, models.StatusIdle, snap.Status)
	assert.Nil(t, snap.SelectedFile)
	assert.Nil(t, snap.Result)
	assert.Empty(t, snap.ErrorMessage)
	assert.Zero(t, env.store.Len())
}

func TestSessionAPI_Msgpack(t *testing.T) {
	env := newTestEnv(t, testutil.NewAnalysisServer(t, http.StatusOK, `{}`))
	env.do(t, newFileRequest(t, "/api/session/file", "cv.pdf", "application/pdf"))

	req := httptest.NewRequest(http.MethodGet, "/api/session", nil)
	req.Header.Set(echo.HeaderAccept, MIMEApplicationMsgpack)
	rec := env.do(t, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, MIMEApplicationMsgpack, rec.Header().Get(echo.HeaderContentType))

	dec := msgpack.NewDecoder(bytes.NewReader(rec.Body.Bytes()))
	dec.SetCustomStructTag("json")
	var snap models.SessionSnapshot
	require.NoError(t, dec.Decode(&snap))
	assert.Equal(t, env.cookie.Value, snap.ID)
	assert.Equal(t, models.StatusIdle, snap.Status)
	require.NotNil(t, snap.SelectedFile)
	assert.Equal(t, "cv.pdf", snap.SelectedFile.Name)
}

func TestSessionAPI_RawDataExposed(t *testing.T) {
	srv := testutil.NewAnalysisServer(t, http.StatusOK, `{"filename":"cv.pdf","result":{"output":"Summary"},"model":"v2"}`)
	env := newTestEnv(t, srv)

	env.do(t, newFileRequest(t, "/api/session/file", "cv.pdf", "application/pdf"))
	rec := env.do(t, httptest.NewRequest(http.MethodPost, "/api/session/upload?wait=true", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.True(t, strings.Contains(body, `"rawData"`), body)
	assert.Contains(t, body, `"model":"v2"`)
	assert.Contains(t, body, `"formattedAnalysis":"Summary"`)
}
