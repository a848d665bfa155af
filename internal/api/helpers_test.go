package api

import (
	"bytes"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"
	"time"

	"github.com/codewave/panel/internal/analysis"
	"github.com/codewave/panel/internal/session"
	"github.com/codewave/panel/internal/testutil"
	"github.com/codewave/panel/internal/upload"
	"github.com/codewave/panel/internal/web"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
)

const pdfBody = "%PDF-1.4 test resume"

type testEnv struct {
	e        *echo.Echo
	sessions *session.Manager
	store    *testutil.MockStorage
	analysis *testutil.AnalysisServer
	cookie   *http.Cookie
}

// newTestEnv wires the full route table against a fake analysis service.
func newTestEnv(t *testing.T, srv *testutil.AnalysisServer) *testEnv {
	t.Helper()

	store := testutil.NewMockStorage()
	factory := upload.NewFactory(store, analysis.NewClient(srv.Endpoint()), nil)
	sessions := session.NewManager(factory, 10, nil)

	renderer, err := web.NewRenderer()
	require.NoError(t, err)

	e := echo.New()
	e.Renderer = renderer
	SetupMiddleware(e)
	RegisterRoutes(e, NewHandlers(&Dependencies{
		Sessions:         sessions,
		SessionTimeout:   30 * time.Minute,
		AnalysisEndpoint: srv.Endpoint(),
		Version:          "test",
	}))

	return &testEnv{e: e, sessions: sessions, store: store, analysis: srv}
}

// do sends a request carrying the env's session cookie and remembers a
// newly issued one.
func (env *testEnv) do(t *testing.T, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	if env.cookie != nil {
		req.AddCookie(env.cookie)
	}
	rec := httptest.NewRecorder()
	env.e.ServeHTTP(rec, req)
	for _, c := range rec.Result().Cookies() {
		if c.Name == SessionCookie {
			env.cookie = c
		}
	}
	return rec
}

func (env *testEnv) panel(t *testing.T) *upload.Panel {
	t.Helper()
	require.NotNil(t, env.cookie, "no session cookie issued")
	panel, ok := env.sessions.Get(env.cookie.Value)
	require.True(t, ok, "session %s not found", env.cookie.Value)
	return panel
}

// multipartFile builds a form with one file part under field.
func multipartFile(t *testing.T, field, filename, contentType, content string) (io.Reader, string) {
	t.Helper()
	body := new(bytes.Buffer)
	writer := multipart.NewWriter(body)
	if field != "" {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, field, filename))
		h.Set("Content-Type", contentType)
		part, err := writer.CreatePart(h)
		require.NoError(t, err)
		_, err = part.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())
	return body, writer.FormDataContentType()
}

func newFileRequest(t *testing.T, path, filename, contentType string) *http.Request {
	t.Helper()
	body, ct := multipartFile(t, "file", filename, contentType, pdfBody)
	req := httptest.NewRequest(http.MethodPost, path, body)
	req.Header.Set(echo.HeaderContentType, ct)
	return req
}
