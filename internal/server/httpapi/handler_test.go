package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/photokeeper/internal/common"
	"github.com/dmitrijs2005/photokeeper/internal/logging"
	"github.com/dmitrijs2005/photokeeper/internal/server/submissions"
)

type fakeSubmitter struct {
	got    []submissions.Request
	result *submissions.Result
	err    error
}

func (f *fakeSubmitter) Submit(_ context.Context, req submissions.Request) (*submissions.Result, error) {
	f.got = append(f.got, req)
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

type part struct {
	field, filename, contentType string
	body                         []byte
}

func multipartBody(t *testing.T, parts ...part) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, p := range parts {
		h := make(textproto.MIMEHeader)
		if p.filename != "" {
			h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, p.field, p.filename))
		} else {
			h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q`, p.field))
		}
		if p.contentType != "" {
			h.Set("Content-Type", p.contentType)
		}
		w, err := mw.CreatePart(h)
		require.NoError(t, err)
		_, err = w.Write(p.body)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func newTestRouter(s Submitter, maxUpload int64) http.Handler {
	return NewRouter(NewHandler(s, maxUpload, logging.Nop{}), []string{"*"}, logging.Nop{})
}

func do(t *testing.T, h http.Handler, path string, parts ...part) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	body, ct := multipartBody(t, parts...)
	req := httptest.NewRequest(http.MethodPost, path, body)
	req.Header.Set("Content-Type", ct)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return rec, out
}

func TestSubmit_Success(t *testing.T) {
	s := &fakeSubmitter{result: &submissions.Result{
		ID:        "1-abcdef",
		URL:       "https://cdn/submissions/x_out.jpg",
		Key:       "submissions/x_out.jpg",
		Bytes:     10,
		Watermark: true,
		Original:  &submissions.Artifact{URL: "https://cdn/originals/x.png", Key: "originals/x.png", Bytes: 20, ContentType: "image/png"},
	}}
	h := newTestRouter(s, 1<<20)

	for _, path := range []string{"/api/v1/submissions", "/submit"} {
		rec, out := do(t, h, path,
			part{field: "models", body: []byte(`["dehaze","superres"]`)},
			part{field: "image", filename: "x.png", contentType: "image/png", body: []byte("first")},
			part{field: "image2", filename: "y.png", contentType: "image/png", body: []byte("second")},
			part{field: "email", body: []byte("ann@example.com")},
			part{field: "consent_gallery", body: []byte("true")},
			part{field: "consent_training", body: []byte("0")},
			part{field: "wm", body: []byte("1")},
			part{field: "max_width", body: []byte("800")},
		)
		require.Equal(t, http.StatusOK, rec.Code, path)
		assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
		assert.NotEmpty(t, rec.Header().Get(RequestIDHeader))
		assert.Equal(t, "1-abcdef", out["id"])
		assert.Equal(t, "submissions/x_out.jpg", out["key"])
		assert.Equal(t, float64(10), out["bytes"])
		assert.Equal(t, true, out["watermark"])
		assert.Equal(t, map[string]any{"url": "https://cdn/originals/x.png", "key": "originals/x.png", "bytes": float64(20), "mime": "image/png"}, out["original"])
	}

	got := s.got[0]
	assert.Equal(t, []byte("first"), got.Data, "first file part wins")
	assert.Equal(t, "x.png", got.Filename)
	assert.Equal(t, "image/png", got.ContentType)
	assert.Equal(t, []string{"dehaze", "superres"}, got.Models)
	assert.Equal(t, "ann@example.com", got.Email)
	assert.True(t, got.ConsentGallery)
	assert.False(t, got.ConsentTraining)
	assert.True(t, got.Watermark)
	assert.Equal(t, 800, got.MaxWidth)
}

func TestSubmit_OriginalOmittedWhenNotPersisted(t *testing.T) {
	s := &fakeSubmitter{result: &submissions.Result{ID: "1-abcdef", URL: "u", Key: "k", Bytes: 1}}
	rec, out := do(t, newTestRouter(s, 1<<20), "/submit", part{field: "file", filename: "a.jpg", body: []byte("x")})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, out, "original")
}

func TestSubmit_FilenameFieldOverridesPartName(t *testing.T) {
	s := &fakeSubmitter{result: &submissions.Result{}}
	do(t, newTestRouter(s, 1<<20), "/submit",
		part{field: "file", filename: "blob", body: []byte("x")},
		part{field: "filename", body: []byte("Holiday.jpg")},
	)
	require.Len(t, s.got, 1)
	assert.Equal(t, "Holiday.jpg", s.got[0].Filename)
}

func TestSubmit_EmptyFilePartsAreSkipped(t *testing.T) {
	s := &fakeSubmitter{result: &submissions.Result{}}
	do(t, newTestRouter(s, 1<<20), "/submit",
		part{field: "a", filename: "empty.png", body: nil},
		part{field: "b", filename: "real.png", body: []byte("data")},
	)
	require.Len(t, s.got, 1)
	assert.Equal(t, "real.png", s.got[0].Filename)
}

func TestSubmit_NoFile(t *testing.T) {
	s := &fakeSubmitter{}
	rec, out := do(t, newTestRouter(s, 1<<20), "/submit", part{field: "email", body: []byte("a@b.c")})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "no file provided", out["error"])
	assert.Empty(t, s.got)
}

func TestSubmit_NotMultipart(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/submit", strings.NewReader(`{"a":1}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	newTestRouter(&fakeSubmitter{}, 1<<20).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSubmit_FileTooLarge(t *testing.T) {
	s := &fakeSubmitter{}
	rec, out := do(t, newTestRouter(s, 2<<20), "/submit",
		part{field: "file", filename: "big.jpg", body: bytes.Repeat([]byte("x"), 2<<20+1)})
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Equal(t, float64(2), out["limit_mb"])
	assert.Empty(t, s.got, "nothing reaches the pipeline")
}

func TestSubmit_ErrorMapping(t *testing.T) {
	tests := []struct {
		err     error
		status  int
		message string
	}{
		{common.ErrTooLarge, http.StatusRequestEntityTooLarge, "file too large"},
		{fmt.Errorf("transform: %w", common.ErrUnsupportedFormat), http.StatusUnsupportedMediaType, "unsupported image format"},
		{fmt.Errorf("store derived: %w", common.ErrStorageUnauthorized), http.StatusBadGateway, "storage authorization failed"},
		{fmt.Errorf("store derived: %w", common.ErrStorageTooLarge), http.StatusRequestEntityTooLarge, "storage rejected payload size"},
		{errors.New("disk on fire"), http.StatusInternalServerError, "internal error"},
	}
	for _, tt := range tests {
		t.Run(tt.message, func(t *testing.T) {
			s := &fakeSubmitter{err: tt.err}
			rec, out := do(t, newTestRouter(s, 1<<20), "/submit", part{field: "file", filename: "a.jpg", body: []byte("x")})
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.message, out["error"])
		})
	}
}

func TestSubmit_StorageTooLargeHasNoLimit(t *testing.T) {
	s := &fakeSubmitter{err: common.ErrStorageTooLarge}
	_, out := do(t, newTestRouter(s, 1<<20), "/submit", part{field: "file", filename: "a.jpg", body: []byte("x")})
	assert.NotContains(t, out, "limit_mb")
}

func TestHealth(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestRouter(&fakeSubmitter{}, 0).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestRequestIDIsEchoed(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	rec := httptest.NewRecorder()
	newTestRouter(&fakeSubmitter{}, 0).ServeHTTP(rec, req)
	assert.Equal(t, "abc-123", rec.Header().Get(RequestIDHeader))
}

func TestCORSPreflight(t *testing.T) {
	req := httptest.NewRequest(http.MethodOptions, "/api/v1/submissions", nil)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	newTestRouter(&fakeSubmitter{}, 0).ServeHTTP(rec, req)

	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRecoversFromPanics(t *testing.T) {
	rec := httptest.NewRecorder()
	body, ct := multipartBody(t, part{field: "file", filename: "a.jpg", body: []byte("x")})
	req := httptest.NewRequest(http.MethodPost, "/submit", body)
	req.Header.Set("Content-Type", ct)

	newTestRouter(panicSubmitter{}, 1<<20).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

type panicSubmitter struct{}

func (panicSubmitter) Submit(context.Context, submissions.Request) (*submissions.Result, error) {
	panic("boom")
}
