// Package e2etest drives the HTTP API end to end over in-memory stores.
package e2etest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/pennywise/internal/api"
	"github.com/FACorreiaa/pennywise/internal/domain/analytics"
	analyticshandler "github.com/FACorreiaa/pennywise/internal/domain/analytics/handler"
	"github.com/FACorreiaa/pennywise/internal/domain/categorization"
	importhandler "github.com/FACorreiaa/pennywise/internal/domain/import/handler"
	"github.com/FACorreiaa/pennywise/internal/domain/import/repository"
	importservice "github.com/FACorreiaa/pennywise/internal/domain/import/service"
	"github.com/FACorreiaa/pennywise/internal/domain/insights"
	insightshandler "github.com/FACorreiaa/pennywise/internal/domain/insights/handler"
	"github.com/FACorreiaa/pennywise/internal/domain/ledger"
	ledgerhandler "github.com/FACorreiaa/pennywise/internal/domain/ledger/handler"
	"github.com/FACorreiaa/pennywise/pkg/interceptors"
	"github.com/FACorreiaa/pennywise/pkg/llm"
	"github.com/FACorreiaa/pennywise/pkg/metrics"
)

const secret = "e2e-secret"

type jobStore struct {
	mu   sync.Mutex
	jobs map[uuid.UUID]repository.Job
}

func (s *jobStore) Create(_ context.Context, job *repository.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job.ID = uuid.New()
	s.jobs[job.ID] = *job
	return nil
}

func (s *jobStore) MarkRunning(context.Context, uuid.UUID) error { return nil }

func (s *jobStore) Progress(context.Context, uuid.UUID, repository.Counters) error { return nil }

func (s *jobStore) Finish(_ context.Context, job *repository.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = *job
	return nil
}

func (s *jobStore) Get(_ context.Context, ownerID, id uuid.UUID) (*repository.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok || job.OwnerID != ownerID {
		return nil, repository.ErrJobNotFound
	}
	return &job, nil
}

type insightStore struct {
	mu       sync.Mutex
	insights map[string][]insights.Insight
	turns    []insights.ChatTurn
}

func (s *insightStore) Fresh(_ context.Context, ownerID uuid.UUID, days int, now time.Time) ([]insights.Insight, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []insights.Insight
	for _, in := range s.insights[fmt.Sprint(ownerID, days)] {
		if in.ExpiresAt.After(now) {
			out = append(out, in)
		}
	}
	return out, nil
}

func (s *insightStore) Replace(_ context.Context, ownerID uuid.UUID, days int, found []insights.Insight) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.insights[fmt.Sprint(ownerID, days)] = found
	return nil
}

func (s *insightStore) RecentTurns(_ context.Context, ownerID uuid.UUID, limit int) ([]insights.ChatTurn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []insights.ChatTurn
	for _, t := range s.turns {
		if t.OwnerID == ownerID {
			out = append(out, t)
		}
	}
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (s *insightStore) AppendTurns(_ context.Context, turns ...insights.ChatTurn) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.turns = append(s.turns, turns...)
	return nil
}

type noopOverrides struct{}

func (noopOverrides) Save(context.Context, uuid.UUID, string, categorization.Category) error {
	return nil
}

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	m := metrics.New()

	store := ledger.NewMemoryStore()
	jobs := &jobStore{jobs: make(map[uuid.UUID]repository.Job)}
	ingest := importservice.NewService(jobs, ledger.NewReconciler(store, logger, m), logger).WithMetrics(m)
	summaries := analytics.NewService(store, 30)
	engine := insights.NewService(&insightStore{insights: make(map[string][]insights.Insight)}, summaries, llm.Disabled{},
		insights.Config{DefaultDays: 30}, logger, m)

	router := api.NewRouter(api.Handlers{
		Import:    importhandler.NewImportHandler(ingest, 0, logger).WithJobs(jobs),
		Ledger:    ledgerhandler.NewLedgerHandler(store, noopOverrides{}, logger),
		Analytics: analyticshandler.NewAnalyticsHandler(summaries, logger),
		Insights:  insightshandler.NewInsightsHandler(engine, logger),
	}, api.Options{JWTSecret: secret, RateLimitPerSecond: 100, RateLimitBurst: 100}, logger, m)

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv
}

type client struct {
	t     *testing.T
	base  string
	token string
}

func newClient(t *testing.T, srv *httptest.Server) *client {
	token, err := interceptors.IssueToken(secret, uuid.New(), time.Hour)
	require.NoError(t, err)
	return &client{t: t, base: srv.URL, token: token}
}

func (c *client) do(req *http.Request, out any) int {
	c.t.Helper()
	req.Header.Set("Authorization", "Bearer "+c.token)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(c.t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(c.t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func (c *client) get(path string, out any) int {
	req, err := http.NewRequest(http.MethodGet, c.base+path, nil)
	require.NoError(c.t, err)
	return c.do(req, out)
}

func (c *client) postJSON(path, body string, out any) int {
	req, err := http.NewRequest(http.MethodPost, c.base+path, strings.NewReader(body))
	require.NoError(c.t, err)
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *client) upload(name, content string, out any) int {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", name)
	require.NoError(c.t, err)
	_, err = fw.Write([]byte(content))
	require.NoError(c.t, err)
	require.NoError(c.t, mw.Close())

	req, err := http.NewRequest(http.MethodPost, c.base+"/bank-statements/upload", &body)
	require.NoError(c.t, err)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return c.do(req, out)
}

// recentStatement has one salary credit and spending dated within the last
// three weeks, so every row falls inside the default window.
func recentStatement() string {
	today := time.Now().UTC()
	day := func(ago int) string { return today.AddDate(0, 0, -ago).Format("02/01/2006") }

	var b strings.Builder
	b.WriteString("Date,Description,Amount\n")
	fmt.Fprintf(&b, "%s,NEFT CR SALARY ACME CORP,90000.00\n", day(20))
	fmt.Fprintf(&b, "%s,UPI/SWIGGY/1001,-450.00\n", day(15))
	fmt.Fprintf(&b, "%s,UPI/ZOMATO/1002,-380.00\n", day(12))
	fmt.Fprintf(&b, "%s,UPI/BIGBASKET/1003,-2100.00\n", day(10))
	fmt.Fprintf(&b, "%s,UPI/UBER/1004,-260.00\n", day(6))
	fmt.Fprintf(&b, "%s,UPI/SHARMA TUTORIALS/1005,-1500.00\n", day(3))
	return b.String()
}

func TestStatementFlow(t *testing.T) {
	srv := newServer(t)
	c := newClient(t, srv)
	statement := recentStatement()

	var first importservice.UploadResult
	require.Equal(t, http.StatusOK, c.upload("statement.csv", statement, &first))
	assert.Equal(t, 6, first.TotalTransactions)
	assert.Equal(t, 6, first.Inserted)
	assert.Equal(t, repository.StatusSucceeded, first.Status)

	t.Run("reupload adds nothing", func(t *testing.T) {
		var again importservice.UploadResult
		require.Equal(t, http.StatusOK, c.upload("statement.csv", statement, &again))
		assert.Zero(t, again.Inserted)
		assert.Equal(t, 6, again.Duplicates)
	})

	t.Run("job is recorded", func(t *testing.T) {
		var job repository.Job
		require.Equal(t, http.StatusOK, c.get("/ingestion-jobs/"+first.JobID.String(), &job))
		assert.Equal(t, repository.StatusSucceeded, job.Status)
		assert.Equal(t, 6, job.Counters.TransactionsExtracted)
	})

	t.Run("transactions newest first", func(t *testing.T) {
		var txs []ledger.Transaction
		require.Equal(t, http.StatusOK, c.get("/transactions", &txs))
		require.Len(t, txs, 6)
		assert.Contains(t, txs[0].Description, "SHARMA TUTORIALS")
		assert.Equal(t, categorization.Other, txs[0].Category)
		assert.Equal(t, categorization.Income, txs[5].Category)
	})

	t.Run("summary", func(t *testing.T) {
		var snap analytics.Snapshot
		require.Equal(t, http.StatusOK, c.get("/analytics/summary?days=30", &snap))
		assert.Equal(t, 6, snap.TransactionCount)
		assert.Equal(t, "90000", snap.TotalIncome.String())
		assert.Equal(t, "4690", snap.TotalExpenses.String())
		assert.Greater(t, snap.SavingsRate, 0.9)
	})

	t.Run("insights", func(t *testing.T) {
		var found []insights.Insight
		require.Equal(t, http.StatusOK, c.get("/ai/insights", &found))
		require.NotEmpty(t, found)
		kinds := make([]insights.Kind, 0, len(found))
		for _, in := range found {
			kinds = append(kinds, in.Kind)
		}
		assert.Contains(t, kinds, insights.KindSavingsRate)
	})

	t.Run("chat falls back without a model", func(t *testing.T) {
		var reply insights.ChatReply
		require.Equal(t, http.StatusOK, c.postJSON("/ai/chat", `{"message":"How much did I spend on food?"}`, &reply))
		assert.Equal(t, insights.FallbackMessage, reply.Response)
	})

	t.Run("other owners see nothing", func(t *testing.T) {
		stranger := newClient(t, srv)
		var txs []ledger.Transaction
		require.Equal(t, http.StatusOK, stranger.get("/transactions", &txs))
		assert.Empty(t, txs)
	})
}

func TestStatementFlow_UnreadableUpload(t *testing.T) {
	c := newClient(t, newServer(t))

	var body map[string]any
	require.Equal(t, http.StatusUnprocessableEntity, c.upload("notes.csv", "just,some\ntext,here\n", &body))
	assert.Equal(t, true, body["error"])
}
