package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/maltedev/politician-trades/internal/countries"
	"github.com/maltedev/politician-trades/internal/database"
	"github.com/maltedev/politician-trades/internal/jobs"
	"github.com/maltedev/politician-trades/internal/models"
	"github.com/maltedev/politician-trades/internal/scraper"
)

// MockStore is a mock for the read store
type MockStore struct {
	mock.Mock
}

func (m *MockStore) ListTrades(ctx context.Context, f models.TradeFilter) (models.TradePage, error) {
	args := m.Called(ctx, f)
	return args.Get(0).(models.TradePage), args.Error(1)
}

func (m *MockStore) GetTrade(ctx context.Context, id string) (*models.Trade, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Trade), args.Error(1)
}

func (m *MockStore) TradesByPolitician(ctx context.Context, country, name string) ([]models.Trade, error) {
	args := m.Called(ctx, country, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Trade), args.Error(1)
}

func (m *MockStore) ListPoliticians(ctx context.Context, f models.PoliticianFilter) (models.PoliticianPage, error) {
	args := m.Called(ctx, f)
	return args.Get(0).(models.PoliticianPage), args.Error(1)
}

func (m *MockStore) GetPolitician(ctx context.Context, country, name string) (*models.Politician, error) {
	args := m.Called(ctx, country, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Politician), args.Error(1)
}

func (m *MockStore) Ping(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

// MockJobs is a mock for the job service
type MockJobs struct {
	mock.Mock
}

func (m *MockJobs) SubmitCountry(country string, opts scraper.Options) (*jobs.Job, error) {
	args := m.Called(country, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*jobs.Job), args.Error(1)
}

func (m *MockJobs) SubmitAll(opts scraper.Options) (*jobs.Job, error) {
	args := m.Called(opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*jobs.Job), args.Error(1)
}

func (m *MockJobs) GetJob(id string) (*jobs.Job, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*jobs.Job), args.Error(1)
}

func (m *MockJobs) ListJobs() []*jobs.Job {
	return m.Called().Get(0).([]*jobs.Job)
}

func (m *MockJobs) GetStats() jobs.Stats {
	return m.Called().Get(0).(jobs.Stats)
}

type stubScrapers struct{}

func (stubScrapers) AvailableScrapers() []scraper.ScraperInfo {
	return []scraper.ScraperInfo{{Code: "usa", Name: "United States", Enabled: true, Implemented: true}}
}

func (stubScrapers) Statuses() map[string]scraper.CountryStatus {
	return map[string]scraper.CountryStatus{"usa": {Country: "usa", State: scraper.StateSucceeded, Trades: 12}}
}

type stubOutbox struct {
	counts database.Counts
	err    error
}

func (s stubOutbox) Counts(context.Context) (database.Counts, error) {
	return s.counts, s.err
}

type testServer struct {
	store  *MockStore
	jobs   *MockJobs
	outbox OutboxCounter
	router http.Handler
}

func newTestServer(t *testing.T, outbox OutboxCounter) *testServer {
	t.Helper()

	registry := countries.Load(func(key string) (string, bool) {
		if key == "ENABLE_RUSSIA_SCRAPER" {
			return "false", true
		}
		return "", false
	})

	ts := &testServer{store: new(MockStore), jobs: new(MockJobs), outbox: outbox}
	h := NewHandlers(Deps{
		Store:    ts.store,
		Jobs:     ts.jobs,
		Scrapers: stubScrapers{},
		Registry: registry,
		Outbox:   outbox,
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	ts.router = NewRouter(h, RouterConfig{RateLimit: 1000, RateLimitBurst: 1000}, slog.Default())
	return ts
}

func (ts *testServer) do(t *testing.T, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()

	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()

	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestListTrades(t *testing.T) {
	ticker := "AAPL"
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 3, 31, 0, 0, 0, 0, time.UTC)

	t.Run("passes normalized filter to the store", func(t *testing.T) {
		ts := newTestServer(t, nil)

		want := models.TradeFilter{
			Country:    "usa",
			Politician: "pelosi",
			Ticker:     "AAPL",
			StartDate:  &start,
			EndDate:    &end,
			Page:       2,
			Limit:      10,
			SortBy:     models.SortBySize,
			SortOrder:  "asc",
		}
		ts.store.On("ListTrades", mock.Anything, want).Return(models.TradePage{
			Trades: []models.Trade{{
				ID:         "t1",
				Country:    "usa",
				Politician: models.PoliticianRef{Name: "Nancy Pelosi"},
				Trade:      models.TradeDetail{Ticker: &ticker},
			}},
			Total: 11,
			Page:  2,
			Limit: 10,
		}, nil)

		rec := ts.do(t, http.MethodGet,
			"/api/v1/trades?country=USA&politician=pelosi&ticker=aapl&startDate=2025-01-01&endDate=2025-03-31&page=2&limit=10&sortBy=size&sortOrder=ASC", "")

		require.Equal(t, http.StatusOK, rec.Code)
		page := decode[models.TradePage](t, rec)
		assert.Equal(t, 11, page.Total)
		require.Len(t, page.Trades, 1)
		assert.Equal(t, "t1", page.Trades[0].ID)
		ts.store.AssertExpectations(t)
	})

	t.Run("defaults", func(t *testing.T) {
		ts := newTestServer(t, nil)
		ts.store.On("ListTrades", mock.Anything, models.TradeFilter{
			Page: 1, Limit: models.DefaultPageSize, SortBy: models.SortByDate, SortOrder: "desc",
		}).Return(models.TradePage{Trades: []models.Trade{}, Page: 1, Limit: models.DefaultPageSize}, nil)

		rec := ts.do(t, http.MethodGet, "/api/v1/trades", "")
		assert.Equal(t, http.StatusOK, rec.Code)
		ts.store.AssertExpectations(t)
	})

	badRequests := map[string]string{
		"bad date":       "/api/v1/trades?startDate=01.02.2025",
		"reversed range": "/api/v1/trades?startDate=2025-03-01&endDate=2025-01-01",
		"bad page":       "/api/v1/trades?page=two",
		"negative limit": "/api/v1/trades?limit=-5",
		"bad sort key":   "/api/v1/trades?sortBy=volume",
		"bad sort order": "/api/v1/trades?sortOrder=sideways",
	}
	for name, target := range badRequests {
		t.Run(name, func(t *testing.T) {
			ts := newTestServer(t, nil)
			rec := ts.do(t, http.MethodGet, target, "")
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			ts.store.AssertNotCalled(t, "ListTrades", mock.Anything, mock.Anything)
		})
	}

	t.Run("store failure", func(t *testing.T) {
		ts := newTestServer(t, nil)
		ts.store.On("ListTrades", mock.Anything, mock.Anything).Return(models.TradePage{}, errors.New("disk on fire"))

		rec := ts.do(t, http.MethodGet, "/api/v1/trades", "")
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.NotContains(t, rec.Body.String(), "disk on fire")
	})
}

func TestGetTrade(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.store.On("GetTrade", mock.Anything, "t1").Return(&models.Trade{ID: "t1", Country: "germany"}, nil)
	ts.store.On("GetTrade", mock.Anything, "missing").Return(nil, nil)

	rec := ts.do(t, http.MethodGet, "/api/v1/trades/t1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "germany", decode[models.Trade](t, rec).Country)

	rec = ts.do(t, http.MethodGet, "/api/v1/trades/missing", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPoliticians(t *testing.T) {
	t.Run("list", func(t *testing.T) {
		ts := newTestServer(t, nil)
		ts.store.On("ListPoliticians", mock.Anything, models.PoliticianFilter{Country: "usa", Page: 1, Limit: 5}).
			Return(models.PoliticianPage{Politicians: []models.Politician{{Name: "Nancy Pelosi"}}, Total: 1, Page: 1, Limit: 5}, nil)

		rec := ts.do(t, http.MethodGet, "/api/v1/politicians?country=usa&limit=5", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, 1, decode[models.PoliticianPage](t, rec).Total)
	})

	t.Run("detail with trades", func(t *testing.T) {
		ts := newTestServer(t, nil)
		ts.store.On("GetPolitician", mock.Anything, "southKorea", "Kim Min-jun").
			Return(&models.Politician{Country: "southKorea", Name: "Kim Min-jun"}, nil)
		ts.store.On("TradesByPolitician", mock.Anything, "southKorea", "Kim Min-jun").Return(nil, nil)

		rec := ts.do(t, http.MethodGet, "/api/v1/politicians/southkorea/Kim%20Min-jun", "")
		require.Equal(t, http.StatusOK, rec.Code)

		resp := decode[PoliticianResponse](t, rec)
		assert.Equal(t, "Kim Min-jun", resp.Politician.Name)
		assert.NotNil(t, resp.Trades)
		assert.Empty(t, resp.Trades)
	})

	t.Run("missing", func(t *testing.T) {
		ts := newTestServer(t, nil)
		ts.store.On("GetPolitician", mock.Anything, "usa", "Nobody").Return(nil, nil)

		rec := ts.do(t, http.MethodGet, "/api/v1/politicians/usa/Nobody", "")
		assert.Equal(t, http.StatusNotFound, rec.Code)
		ts.store.AssertNotCalled(t, "TradesByPolitician", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestCountries(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.do(t, http.MethodGet, "/api/v1/countries", "")
	require.Equal(t, http.StatusOK, rec.Code)
	all := decode[[]countries.Country](t, rec)
	assert.Len(t, all, 18)

	rec = ts.do(t, http.MethodGet, "/api/v1/countries?region=europe", "")
	require.Equal(t, http.StatusOK, rec.Code)
	for _, c := range decode[[]countries.Country](t, rec) {
		assert.Equal(t, "Europe", c.Region)
	}

	rec = ts.do(t, http.MethodGet, "/api/v1/countries/regions", "")
	require.Equal(t, http.StatusOK, rec.Code)
	regions := decode[[]RegionResponse](t, rec)
	require.NotEmpty(t, regions)
	assert.Equal(t, "North America", regions[0].Region)

	for _, r := range regions {
		if r.Region == "Europe/Asia" {
			assert.Empty(t, r.Countries, "disabled countries are not listed per region")
		}
	}
}

func TestScrapeCountry(t *testing.T) {
	t.Run("queues a job", func(t *testing.T) {
		ts := newTestServer(t, nil)
		ts.jobs.On("SubmitCountry", "usa", scraper.Options{Pages: 3, TxRange: "30d"}).
			Return(&jobs.Job{ID: "job-1", Status: jobs.StatusPending}, nil)

		rec := ts.do(t, http.MethodPost, "/api/v1/scrape/USA", `{"pages":3,"tx_range":"30d"}`)
		require.Equal(t, http.StatusAccepted, rec.Code)

		resp := decode[ScrapeResponse](t, rec)
		assert.Equal(t, "job-1", resp.JobID)
		assert.Equal(t, jobs.StatusPending, resp.Status)
		ts.jobs.AssertExpectations(t)
	})

	t.Run("empty body uses defaults", func(t *testing.T) {
		ts := newTestServer(t, nil)
		ts.jobs.On("SubmitCountry", "germany", scraper.Options{}).
			Return(&jobs.Job{ID: "job-2", Status: jobs.StatusPending}, nil)

		rec := ts.do(t, http.MethodPost, "/api/v1/scrape/germany", "")
		assert.Equal(t, http.StatusAccepted, rec.Code)
	})

	t.Run("unknown country", func(t *testing.T) {
		ts := newTestServer(t, nil)
		rec := ts.do(t, http.MethodPost, "/api/v1/scrape/atlantis", "")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("disabled country", func(t *testing.T) {
		ts := newTestServer(t, nil)
		rec := ts.do(t, http.MethodPost, "/api/v1/scrape/russia", "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "not enabled")
	})

	t.Run("malformed body", func(t *testing.T) {
		ts := newTestServer(t, nil)
		rec := ts.do(t, http.MethodPost, "/api/v1/scrape/usa", `{"pages":`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		ts.jobs.AssertNotCalled(t, "SubmitCountry", mock.Anything, mock.Anything)
	})
}

func TestScrapeAll(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.jobs.On("SubmitAll", scraper.Options{Pages: 1}).Return(&jobs.Job{ID: "job-all", Status: jobs.StatusPending}, nil)

	rec := ts.do(t, http.MethodPost, "/api/v1/scrape", `{"pages":1}`)
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, "job-all", decode[ScrapeResponse](t, rec).JobID)
}

func TestJobs(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.jobs.On("GetJob", "job-1").Return(&jobs.Job{ID: "job-1", Kind: jobs.KindCountry, Status: jobs.StatusRunning}, nil)
	ts.jobs.On("GetJob", "nope").Return(nil, jobs.ErrJobNotFound)
	ts.jobs.On("ListJobs").Return([]*jobs.Job{{ID: "job-1"}})
	ts.jobs.On("GetStats").Return(jobs.Stats{TotalJobs: 1, RunningJobs: 1})

	rec := ts.do(t, http.MethodGet, "/api/v1/jobs/job-1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, jobs.StatusRunning, decode[jobs.Job](t, rec).Status)

	rec = ts.do(t, http.MethodGet, "/api/v1/jobs/nope", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = ts.do(t, http.MethodGet, "/api/v1/jobs", "")
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[JobsResponse](t, rec)
	assert.Len(t, resp.Jobs, 1)
	assert.Equal(t, 1, resp.Stats.RunningJobs)
}

func TestListScrapers(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.do(t, http.MethodGet, "/api/v1/scrapers", "")
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decode[ScrapersResponse](t, rec)
	require.Len(t, resp.Scrapers, 1)
	assert.Equal(t, 12, resp.Statuses["usa"].Trades)
}

func TestHealth(t *testing.T) {
	tests := []struct {
		name       string
		pingErr    error
		outbox     OutboxCounter
		wantCode   int
		wantStatus string
	}{
		{name: "sqlite store", wantCode: http.StatusOK, wantStatus: "ok"},
		{name: "healthy outbox", outbox: stubOutbox{counts: database.Counts{Pending: 3}}, wantCode: http.StatusOK, wantStatus: "ok"},
		{name: "pending backlog", outbox: stubOutbox{counts: database.Counts{Pending: 5000}}, wantCode: http.StatusOK, wantStatus: "warning"},
		{name: "dead letters", outbox: stubOutbox{counts: database.Counts{DeadLetter: 101}}, wantCode: http.StatusServiceUnavailable, wantStatus: "error"},
		{name: "outbox unknown", outbox: stubOutbox{err: errors.New("timeout")}, wantCode: http.StatusOK, wantStatus: "warning"},
		{name: "store down", pingErr: errors.New("refused"), wantCode: http.StatusServiceUnavailable, wantStatus: "error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t, tt.outbox)
			ts.store.On("Ping", mock.Anything).Return(tt.pingErr)

			rec := ts.do(t, http.MethodGet, "/health", "")
			assert.Equal(t, tt.wantCode, rec.Code)
			assert.Equal(t, tt.wantStatus, decode[map[string]any](t, rec)["status"])
		})
	}
}
