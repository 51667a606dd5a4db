package html

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrors(t *testing.T) {
	tests := []struct {
		name       string
		handler    func(w http.ResponseWriter, r *http.Request)
		wantStatus int
		wantBody   string
	}{
		{
			name: "ServerError",
			handler: func(w http.ResponseWriter, r *http.Request) {
				ServerError(w, r, errors.New("boom <b>"))
			},
			wantStatus: http.StatusInternalServerError,
			wantBody:   "boom &lt;b&gt;",
		},
		{
			name: "BadRequest",
			handler: func(w http.ResponseWriter, r *http.Request) {
				BadRequest(w, r, errors.New("bad"))
			},
			wantStatus: http.StatusBadRequest,
			wantBody:   "bad",
		},
		{
			name:       "Forbidden",
			handler:    Forbidden,
			wantStatus: http.StatusForbidden,
			wantBody:   "Access Forbidden",
		},
		{
			name:       "NotFound",
			handler:    NotFound,
			wantStatus: http.StatusNotFound,
			wantBody:   "Page Not Found",
		},
		{
			name: "NotFoundWithMessage",
			handler: func(w http.ResponseWriter, r *http.Request) {
				NotFoundWithMessage(w, r,
					errors.New(`Forward URL does not start with "/r" prefix`))
			},
			wantStatus: http.StatusNotFound,
			wantBody:   "Forward URL does not start with &#34;/r&#34; prefix",
		},
		{
			name: "BadGateway",
			handler: func(w http.ResponseWriter, r *http.Request) {
				BadGateway(w, r, errors.New("dial tcp: connection refused"))
			},
			wantStatus: http.StatusBadGateway,
			wantBody:   "Bad Gateway",
		},
		{
			name: "ServiceUnavailable",
			handler: func(w http.ResponseWriter, r *http.Request) {
				ServiceUnavailable(w, r, errors.New("not ready"))
			},
			wantStatus: http.StatusServiceUnavailable,
			wantBody:   "not ready",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			w := httptest.NewRecorder()
			tt.handler(w, r)

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, tt.wantBody, w.Body.String())
			assert.Equal(t, textPlain, w.Header().Get(contentType))
			assert.Equal(t, cacheNoCache, w.Header().Get(cacheControl))
		})
	}
}

func TestServerError_clientClosed(t *testing.T) {
	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	r := httptest.NewRequest(http.MethodGet, "/", nil).WithContext(ctx)
	w := httptest.NewRecorder()
	BadGateway(w, r, context.Canceled)
	assert.Equal(t, 499, w.Code)
}

func TestRedirect(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()
	Redirect(w, r, "https://example.com/a.mp3")

	assert.Equal(t, http.StatusFound, w.Code)
	loc, err := w.Result().Location()
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/a.mp3", loc.String())
}
