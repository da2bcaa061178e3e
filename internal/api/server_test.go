package api

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/bhupendraedzeb-hub/programtic-seo/internal/clock/system"
	"github.com/bhupendraedzeb-hub/programtic-seo/internal/hash/sha256"
	"github.com/bhupendraedzeb-hub/programtic-seo/internal/id/uuid"
	"github.com/bhupendraedzeb-hub/programtic-seo/internal/pagegen"
	"github.com/bhupendraedzeb-hub/programtic-seo/internal/pipeline"
	"github.com/bhupendraedzeb-hub/programtic-seo/internal/queue"
	queueMemory "github.com/bhupendraedzeb-hub/programtic-seo/internal/queue/memory"
	"github.com/bhupendraedzeb-hub/programtic-seo/internal/storage/memory"
)

const (
	testSecret = "test-secret"
	testOwner  = "owner-1"
	cityMarkup = `<html><head><title>{{title}}</title><meta name="description" content="x"></head>` +
		`<body><h1>Plumbers in {{city}}</h1></body></html>`
)

type testEnv struct {
	server    *Server
	templates *memory.TemplateStore
	pages     *memory.PageStore
	jobs      *memory.JobStore
	queue     *queueMemory.Queue
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	clock := system.Fixed{At: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	templates := memory.NewTemplateStore()
	pages := memory.NewPageStore()
	jobs := memory.NewJobStore(clock)
	blobs := memory.NewBlobStore("https://cdn.example.com")
	ids := uuid.New()
	gen := pipeline.New(pages, blobs, ids, sha256.New(), clock, pipeline.Config{}, zap.NewNop())
	q := queueMemory.NewQueue(4)
	t.Cleanup(func() { _ = q.Close() })

	server := NewServer(Dependencies{
		Templates: templates,
		Pages:     pages,
		Jobs:      jobs,
		Generator: gen,
		Queue:     q,
		IDs:       ids,
		Clock:     clock,
	}, Config{JWTSecret: testSecret}, zap.NewNop())
	return &testEnv{server: server, templates: templates, pages: pages, jobs: jobs, queue: q}
}

func signToken(t *testing.T, secret, subject string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   subject,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func (e *testEnv) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+signToken(t, testSecret, testOwner))
	rec := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) upload(t *testing.T, templateID, filename, content string) *httptest.ResponseRecorder {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/v1/bulk?template_id="+templateID, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+signToken(t, testSecret, testOwner))
	rec := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) createTemplate(t *testing.T, markup string) pagegen.Template {
	t.Helper()
	payload, err := json.Marshal(map[string]string{"name": "City landing", "html_content": markup})
	require.NoError(t, err)
	rec := e.do(t, http.MethodPost, "/v1/templates", string(payload))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var tmpl pagegen.Template
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tmpl))
	return tmpl
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body["error"]
}

func TestAuthRejectsMissingAndInvalidTokens(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	rec := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/templates", nil))
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, "missing bearer token", decodeError(t, rec))

	req := httptest.NewRequest(http.MethodGet, "/v1/templates", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, "other-secret", testOwner))
	rec = httptest.NewRecorder()
	env.server.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, "invalid token", decodeError(t, rec))

	req = httptest.NewRequest(http.MethodGet, "/v1/templates", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, testSecret, ""))
	rec = httptest.NewRecorder()
	env.server.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHealthzSkipsAuth(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	rec := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestReadyzReportsCheckFailure(t *testing.T) {
	t.Parallel()

	server := NewServer(Dependencies{
		Ready: func(context.Context) error { return errors.New("db down") },
	}, Config{JWTSecret: testSecret}, zap.NewNop())
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestTemplateLifecycle(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	tmpl := env.createTemplate(t, cityMarkup)
	require.Equal(t, testOwner, tmpl.OwnerID)
	require.Equal(t, []string{"title", "city"}, tmpl.Variables)

	rec := env.do(t, http.MethodGet, "/v1/templates/"+tmpl.ID, "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodPut, "/v1/templates/"+tmpl.ID, `{"html_content":"<p>{{state}}</p>"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var updated pagegen.Template
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &updated))
	require.Equal(t, []string{"state"}, updated.Variables)
	require.Equal(t, "City landing", updated.Name)

	rec = env.do(t, http.MethodGet, "/v1/templates", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list []pagegen.Template
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 1)

	rec = env.do(t, http.MethodDelete, "/v1/templates/"+tmpl.ID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"message":"Template deleted"}`, rec.Body.String())

	rec = env.do(t, http.MethodGet, "/v1/templates/"+tmpl.ID, "")
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, "Template not found", decodeError(t, rec))
}

func TestCreateTemplateRequiresFields(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/v1/templates", `{"name":"  "}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, "/v1/templates", `{invalid`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestValidateTemplateReportsFindings(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/v1/templates/validate",
		`{"html_content":"<p onclick=\"x()\">Hello {{name}}</p><script>bad()</script>"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Variables     []string `json:"variables"`
		WordCount     int      `json:"word_count"`
		Issues        []string `json:"issues"`
		Warnings      []string `json:"warnings"`
		SanitizedHTML string   `json:"sanitized_html"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, []string{"name"}, body.Variables)
	require.Positive(t, body.WordCount)
	require.NotEmpty(t, body.Issues)
	require.NotEmpty(t, body.Warnings)
	require.NotContains(t, body.SanitizedHTML, "<script>")
	require.NotContains(t, body.SanitizedHTML, "onclick")
}

func TestCreatePage(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	tmpl := env.createTemplate(t, cityMarkup)

	body := fmt.Sprintf(`{"template_id":%q,"variables":{"title":"Plumbers Austin","city":"Austin"}}`, tmpl.ID)
	rec := env.do(t, http.MethodPost, "/v1/pages", body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var first pagegen.Page
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &first))
	require.Equal(t, "Plumbers Austin", first.Title)
	require.Equal(t, "plumbers-austin", first.Slug)
	require.Contains(t, first.HTMLContent, "Plumbers in Austin")
	require.True(t, strings.HasPrefix(first.StorageURL, "https://cdn.example.com/"))
	require.False(t, first.IsBulk)

	rec = env.do(t, http.MethodPost, "/v1/pages", body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var second pagegen.Page
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &second))
	require.Equal(t, "Plumbers Austin (2)", second.Title)
	require.NotEqual(t, first.Slug, second.Slug)

	rec = env.do(t, http.MethodGet, "/v1/pages", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list []pagegen.Page
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 2)

	rec = env.do(t, http.MethodDelete, "/v1/pages/"+first.ID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"message":"Page deleted"}`, rec.Body.String())

	rec = env.do(t, http.MethodGet, "/v1/pages/"+first.ID, "")
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, "Page not found", decodeError(t, rec))
}

func TestCreatePageDefaultsTitle(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	tmpl := env.createTemplate(t, "<p>{{city}}</p>")

	rec := env.do(t, http.MethodPost, "/v1/pages", fmt.Sprintf(`{"template_id":%q,"variables":{"city":"Reno"}}`, tmpl.ID))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var page pagegen.Page
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	require.Equal(t, DefaultPageTitle, page.Title)
	require.Equal(t, "untitled-page", page.Slug)
}

func TestCreatePageTruncatesLongFields(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	tmpl := env.createTemplate(t, "<p>{{city}}</p>")

	title := strings.Repeat("t", 300)
	meta := strings.Repeat("m", 300)
	body := fmt.Sprintf(`{"template_id":%q,"title":%q,"meta_description":%q,"variables":{"city":"Reno"}}`, tmpl.ID, title, meta)

	rec := env.do(t, http.MethodPost, "/v1/pages", body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var first pagegen.Page
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &first))
	require.Equal(t, strings.Repeat("t", 255), first.Title)
	require.Equal(t, strings.Repeat("m", 255), first.MetaDescription)

	rec = env.do(t, http.MethodPost, "/v1/pages", body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var second pagegen.Page
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &second))
	require.Len(t, second.Title, 255)
	require.True(t, strings.HasSuffix(second.Title, " (2)"))
}

func TestCreatePageErrors(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	tmpl := env.createTemplate(t, cityMarkup)
	broken := env.createTemplate(t, "<p>{{city}}</p>{% if city %}")

	tests := []struct {
		name   string
		body   string
		status int
		msg    string
	}{
		{
			name:   "missing variables",
			body:   fmt.Sprintf(`{"template_id":%q,"variables":{"city":" "}}`, tmpl.ID),
			status: http.StatusBadRequest,
			msg:    "Missing variables: city, title",
		},
		{
			name:   "unknown template",
			body:   `{"template_id":"nope","variables":{}}`,
			status: http.StatusNotFound,
			msg:    "Template not found",
		},
		{
			name:   "missing template id",
			body:   `{"variables":{}}`,
			status: http.StatusBadRequest,
			msg:    "template_id is required",
		},
		{
			name:   "syntax error",
			body:   fmt.Sprintf(`{"template_id":%q,"variables":{"city":"Reno"}}`, broken.ID),
			status: http.StatusBadRequest,
			msg:    "Template syntax error at line 1",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := env.do(t, http.MethodPost, "/v1/pages", tc.body)
			require.Equal(t, tc.status, rec.Code)
			require.Contains(t, decodeError(t, rec), tc.msg)
		})
	}
}

func TestCreateBulkJobQueuesRows(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	tmpl := env.createTemplate(t, cityMarkup)

	rec := env.upload(t, tmpl.ID, "cities.csv", "title,city\nAustin Plumbers,Austin\nReno Plumbers,Reno\n")
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	var job pagegen.BulkJob
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &job))
	require.Equal(t, pagegen.JobStatusQueued, job.Status)
	require.Equal(t, 2, job.TotalRows)
	require.Equal(t, "cities.csv", job.Filename)

	item, err := env.queue.Dequeue(context.Background())
	require.NoError(t, err)
	require.Equal(t, job.ID, item.JobID)
	require.Equal(t, testOwner, item.OwnerID)
	require.Equal(t, tmpl.ID, item.TemplateID)
	require.Len(t, item.Rows, 2)
	require.Equal(t, "Reno", item.Rows[1]["city"])

	rec = env.do(t, http.MethodGet, "/v1/bulk/"+job.ID, "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodGet, "/v1/bulk", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list []pagegen.BulkJob
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 1)

	rec = env.do(t, http.MethodDelete, "/v1/bulk/"+job.ID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"message":"Bulk job deleted"}`, rec.Body.String())

	rec = env.do(t, http.MethodGet, "/v1/bulk/"+job.ID, "")
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, "Job not found", decodeError(t, rec))
}

func TestCreateBulkJobRejectsBadUploads(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	tmpl := env.createTemplate(t, cityMarkup)

	rec := env.upload(t, tmpl.ID, "empty.csv", "title,city\n")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "CSV has no rows", decodeError(t, rec))

	rec = env.upload(t, tmpl.ID, "cities.csv", "name\nAustin\n")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "CSV missing required columns: city, title", decodeError(t, rec))

	rec = env.upload(t, tmpl.ID, "cities.pdf", "title,city\nA,B\n")
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.upload(t, "missing", "cities.csv", "title,city\nA,B\n")
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, "Template not found", decodeError(t, rec))

	require.Zero(t, env.queue.Len())
}

func TestCreateBulkJobMarksJobFailedWhenQueueClosed(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	tmpl := env.createTemplate(t, cityMarkup)
	require.NoError(t, env.queue.Close())

	rec := env.upload(t, tmpl.ID, "cities.csv", "title,city\nA,B\n")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	jobs, err := env.jobs.ListJobs(context.Background(), testOwner, 0)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	require.Equal(t, pagegen.JobStatusFailed, jobs[0].Status)
}

func TestCreateBulkJobRecordsEnqueueFailure(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	tmpl := env.createTemplate(t, cityMarkup)

	producer := &queue.MockProducer{}
	producer.On("Enqueue", mock.Anything, mock.MatchedBy(func(item pagegen.QueueItem) bool {
		return item.OwnerID == testOwner && item.TemplateID == tmpl.ID && len(item.Rows) == 1
	})).Return(errors.New("redis unavailable")).Once()

	clock := system.Fixed{At: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	env.server = NewServer(Dependencies{
		Templates: env.templates,
		Pages:     env.pages,
		Jobs:      env.jobs,
		Queue:     producer,
		IDs:       uuid.New(),
		Clock:     clock,
	}, Config{JWTSecret: testSecret}, zap.NewNop())

	rec := env.upload(t, tmpl.ID, "cities.csv", "title,city\nAustin Plumbers,Austin\n")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.Equal(t, "failed to queue job", decodeError(t, rec))
	producer.AssertExpectations(t)

	jobs, err := env.jobs.ListJobs(context.Background(), testOwner, 0)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	require.Equal(t, pagegen.JobStatusFailed, jobs[0].Status)
	require.Len(t, jobs[0].Errors, 1)
	require.Equal(t, "failed to queue job", jobs[0].Errors[0].Error)
}

func TestJobStatsAndRecent(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	tmpl := env.createTemplate(t, cityMarkup)
	for i := 0; i < 3; i++ {
		rec := env.upload(t, tmpl.ID, "cities.csv", "title,city\nA,B\n")
		require.Equal(t, http.StatusAccepted, rec.Code)
	}

	rec := env.do(t, http.MethodGet, "/v1/jobs/stats", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var stats pagegen.JobStats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	require.Equal(t, 3, stats.Total)
	require.Equal(t, 3, stats.Queued)

	rec = env.do(t, http.MethodGet, "/v1/jobs/recent?limit=2", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var recent []pagegen.BulkJob
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &recent))
	require.Len(t, recent, 2)

	rec = env.do(t, http.MethodGet, "/v1/jobs/recent?limit=abc", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "invalid limit", decodeError(t, rec))
}

func TestOwnersAreIsolated(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	tmpl := env.createTemplate(t, cityMarkup)

	req := httptest.NewRequest(http.MethodGet, "/v1/templates/"+tmpl.ID, nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, testSecret, "owner-2"))
	rec := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStatusFor(t *testing.T) {
	t.Parallel()

	require.Equal(t, http.StatusNotFound, statusFor(fmt.Errorf("wrap: %w", pagegen.ErrJobNotFound)))
	require.Equal(t, http.StatusConflict, statusFor(pagegen.ErrPersistenceExhausted))
	require.Equal(t, http.StatusServiceUnavailable, statusFor(pagegen.ErrStorageUnavailable))
	require.Equal(t, http.StatusBadGateway, statusFor(pagegen.ErrStorageUploadFailed))
	require.Equal(t, http.StatusInternalServerError, statusFor(errors.New("boom")))
}

func TestRequestIDMiddlewareSetsHeader(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	newTestEnv(t).server.Handler().ServeHTTP(rec, req)

	require.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestRequestIDMiddlewareKeepsCallerID(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-ID", "req-42")
	newTestEnv(t).server.Handler().ServeHTTP(rec, req)

	require.Equal(t, "req-42", rec.Header().Get("X-Request-ID"))
}

func TestResponseWriterHijackBehavior(t *testing.T) {
	t.Parallel()

	rw := &responseWriter{ResponseWriter: httptest.NewRecorder()}
	if _, _, err := rw.Hijack(); err == nil || err.Error() != "hijacker not supported" {
		t.Fatalf("expected unsupported hijacker error, got %v", err)
	}

	h := &hijackableRecorder{ResponseRecorder: httptest.NewRecorder()}
	rw = &responseWriter{ResponseWriter: h}
	conn, buf, err := rw.Hijack()
	if err != nil {
		t.Fatalf("expected successful hijack, got %v", err)
	}
	if err := conn.Close(); err != nil {
		t.Fatalf("close hijacked conn: %v", err)
	}
	if err := h.CloseClient(); err != nil {
		t.Fatalf("close hijacked client: %v", err)
	}
	if buf == nil {
		t.Fatal("expected buf to be non-nil")
	}
}

type hijackableRecorder struct {
	*httptest.ResponseRecorder
	client net.Conn
}

func (h *hijackableRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	server, client := net.Pipe()
	h.client = client
	return server, bufio.NewReadWriter(bufio.NewReader(client), bufio.NewWriter(client)), nil
}

func (h *hijackableRecorder) CloseClient() error {
	if h.client != nil {
		if err := h.client.Close(); err != nil {
			return fmt.Errorf("close hijacker client: %w", err)
		}
	}
	return nil
}

type denyAll struct{}

func (denyAll) Allow(string) bool { return false }
func (denyAll) RetryAfter(string) time.Duration { return 1500 * time.Millisecond }

func TestThrottleRejectsWithRetryAfter(t *testing.T) {
	t.Parallel()

	server := NewServer(Dependencies{Limiter: denyAll{}}, Config{JWTSecret: testSecret}, zap.NewNop())
	req := httptest.NewRequest(http.MethodPost, "/v1/pages", strings.NewReader(`{}`))
	req.Header.Set("Authorization", "Bearer "+signToken(t, testSecret, testOwner))
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	require.Equal(t, "2", rec.Header().Get("Retry-After"))
	require.Equal(t, "rate limit exceeded", decodeError(t, rec))
}
