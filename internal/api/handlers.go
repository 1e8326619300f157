package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/maltedev/politician-trades/internal/countries"
	"github.com/maltedev/politician-trades/internal/database"
	"github.com/maltedev/politician-trades/internal/jobs"
	"github.com/maltedev/politician-trades/internal/models"
	"github.com/maltedev/politician-trades/internal/scraper"
)

// Store is the read side of the trade store.
type Store interface {
	ListTrades(ctx context.Context, f models.TradeFilter) (models.TradePage, error)
	// GetTrade returns nil, nil when the trade does not exist.
	GetTrade(ctx context.Context, id string) (*models.Trade, error)
	TradesByPolitician(ctx context.Context, country, name string) ([]models.Trade, error)
	ListPoliticians(ctx context.Context, f models.PoliticianFilter) (models.PoliticianPage, error)
	GetPolitician(ctx context.Context, country, name string) (*models.Politician, error)
	Ping(ctx context.Context) error
}

type JobService interface {
	SubmitCountry(country string, opts scraper.Options) (*jobs.Job, error)
	SubmitAll(opts scraper.Options) (*jobs.Job, error)
	GetJob(id string) (*jobs.Job, error)
	ListJobs() []*jobs.Job
	GetStats() jobs.Stats
}

// ScraperStatus reports which scrapers exist and how their last run went.
type ScraperStatus interface {
	AvailableScrapers() []scraper.ScraperInfo
	Statuses() map[string]scraper.CountryStatus
}

// OutboxCounter is only available with the postgres store.
type OutboxCounter interface {
	Counts(ctx context.Context) (database.Counts, error)
}

// Health thresholds on the outbox backlog.
const (
	pendingWarnThreshold     = 1000
	deadLetterErrorThreshold = 100
)

const dateLayout = "2006-01-02"

type Handlers struct {
	store    Store
	jobs     JobService
	scrapers ScraperStatus
	registry *countries.Registry
	outbox   OutboxCounter
	logger   *slog.Logger
}

type Deps struct {
	Store    Store
	Jobs     JobService
	Scrapers ScraperStatus
	Registry *countries.Registry
	// Outbox may be nil.
	Outbox OutboxCounter
	Logger *slog.Logger
}

func NewHandlers(deps Deps) *Handlers {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{
		store:    deps.Store,
		jobs:     deps.Jobs,
		scrapers: deps.Scrapers,
		registry: deps.Registry,
		outbox:   deps.Outbox,
		logger:   logger.With("component", "api"),
	}
}

// ListTrades handles GET /api/v1/trades
func (h *Handlers) ListTrades(w http.ResponseWriter, r *http.Request) {
	filter, err := parseTradeFilter(r.URL.Query())
	if err != nil {
		h.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	page, err := h.store.ListTrades(r.Context(), filter)
	if err != nil {
		h.logger.Error("failed to list trades", "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to list trades")
		return
	}

	h.respondJSON(w, http.StatusOK, page)
}

// GetTrade handles GET /api/v1/trades/{id}
func (h *Handlers) GetTrade(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	trade, err := h.store.GetTrade(r.Context(), id)
	if err != nil {
		h.logger.Error("failed to get trade", "error", err, "id", id)
		h.respondError(w, http.StatusInternalServerError, "failed to get trade")
		return
	}
	if trade == nil {
		h.respondError(w, http.StatusNotFound, "trade not found")
		return
	}

	h.respondJSON(w, http.StatusOK, trade)
}

// ListPoliticians handles GET /api/v1/politicians
func (h *Handlers) ListPoliticians(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := models.PoliticianFilter{
		Country: q.Get("country"),
		Name:    q.Get("name"),
	}

	var err error
	if filter.Page, err = intParam(q, "page"); err != nil {
		h.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if filter.Limit, err = intParam(q, "limit"); err != nil {
		h.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	filter.Normalize()

	page, err := h.store.ListPoliticians(r.Context(), filter)
	if err != nil {
		h.logger.Error("failed to list politicians", "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to list politicians")
		return
	}

	h.respondJSON(w, http.StatusOK, page)
}

// PoliticianResponse is a politician with all of their stored trades.
type PoliticianResponse struct {
	Politician *models.Politician `json:"politician"`
	Trades     []models.Trade     `json:"trades"`
}

// GetPolitician handles GET /api/v1/politicians/{country}/{name}
func (h *Handlers) GetPolitician(w http.ResponseWriter, r *http.Request) {
	country := chi.URLParam(r, "country")
	if c, ok := h.registry.Get(country); ok {
		country = c.Code
	}
	name, err := url.PathUnescape(chi.URLParam(r, "name"))
	if err != nil || strings.TrimSpace(name) == "" {
		h.respondError(w, http.StatusBadRequest, "invalid politician name")
		return
	}

	politician, err := h.store.GetPolitician(r.Context(), country, name)
	if err != nil {
		h.logger.Error("failed to get politician", "error", err, "country", country, "name", name)
		h.respondError(w, http.StatusInternalServerError, "failed to get politician")
		return
	}
	if politician == nil {
		h.respondError(w, http.StatusNotFound, "politician not found")
		return
	}

	trades, err := h.store.TradesByPolitician(r.Context(), country, name)
	if err != nil {
		h.logger.Error("failed to get politician trades", "error", err, "country", country, "name", name)
		h.respondError(w, http.StatusInternalServerError, "failed to get politician trades")
		return
	}
	if trades == nil {
		trades = []models.Trade{}
	}

	h.respondJSON(w, http.StatusOK, PoliticianResponse{Politician: politician, Trades: trades})
}

// ListCountries handles GET /api/v1/countries, optionally narrowed by ?region=
func (h *Handlers) ListCountries(w http.ResponseWriter, r *http.Request) {
	if region := r.URL.Query().Get("region"); region != "" {
		list := h.registry.ByRegion(region)
		if list == nil {
			list = []countries.Country{}
		}
		h.respondJSON(w, http.StatusOK, list)
		return
	}

	h.respondJSON(w, http.StatusOK, h.registry.All())
}

type RegionResponse struct {
	Region    string              `json:"region"`
	Countries []countries.Country `json:"countries"`
}

// ListRegions handles GET /api/v1/countries/regions
func (h *Handlers) ListRegions(w http.ResponseWriter, r *http.Request) {
	regions := h.registry.Regions()
	resp := make([]RegionResponse, 0, len(regions))
	for _, region := range regions {
		list := h.registry.ByRegion(region)
		if list == nil {
			list = []countries.Country{}
		}
		resp = append(resp, RegionResponse{Region: region, Countries: list})
	}

	h.respondJSON(w, http.StatusOK, resp)
}

type ScrapersResponse struct {
	Scrapers []scraper.ScraperInfo            `json:"scrapers"`
	Statuses map[string]scraper.CountryStatus `json:"statuses"`
}

// ListScrapers handles GET /api/v1/scrapers
func (h *Handlers) ListScrapers(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, ScrapersResponse{
		Scrapers: h.scrapers.AvailableScrapers(),
		Statuses: h.scrapers.Statuses(),
	})
}

// ScrapeResponse acknowledges a queued scrape.
type ScrapeResponse struct {
	JobID   string      `json:"job_id"`
	Status  jobs.Status `json:"status"`
	Message string      `json:"message"`
}

// ScrapeCountry handles POST /api/v1/scrape/{country}. The scrape runs in the
// background; poll the returned job for the outcome.
func (h *Handlers) ScrapeCountry(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "country")

	country, ok := h.registry.Get(code)
	if !ok {
		h.respondError(w, http.StatusNotFound, fmt.Sprintf("country %q not found", code))
		return
	}
	if !country.Enabled {
		h.respondError(w, http.StatusBadRequest, fmt.Sprintf("scraper for %s is not enabled", country.Name))
		return
	}

	opts, err := decodeOptions(r)
	if err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	job, err := h.jobs.SubmitCountry(country.Code, opts)
	if err != nil {
		h.logger.Error("failed to create job", "error", err, "country", country.Code)
		h.respondError(w, http.StatusInternalServerError, "failed to create job")
		return
	}

	h.respondJSON(w, http.StatusAccepted, ScrapeResponse{
		JobID:   job.ID,
		Status:  job.Status,
		Message: fmt.Sprintf("Scraping %s started", country.Name),
	})
}

// ScrapeAll handles POST /api/v1/scrape
func (h *Handlers) ScrapeAll(w http.ResponseWriter, r *http.Request) {
	opts, err := decodeOptions(r)
	if err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	job, err := h.jobs.SubmitAll(opts)
	if err != nil {
		h.logger.Error("failed to create job", "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to create job")
		return
	}

	h.respondJSON(w, http.StatusAccepted, ScrapeResponse{
		JobID:   job.ID,
		Status:  job.Status,
		Message: "Scraping all enabled countries started",
	})
}

// GetJob handles GET /api/v1/jobs/{jobID}
func (h *Handlers) GetJob(w http.ResponseWriter, r *http.Request) {
	job, err := h.jobs.GetJob(chi.URLParam(r, "jobID"))
	if err != nil {
		if errors.Is(err, jobs.ErrJobNotFound) {
			h.respondError(w, http.StatusNotFound, "job not found")
			return
		}
		h.logger.Error("failed to get job", "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to get job")
		return
	}

	h.respondJSON(w, http.StatusOK, job)
}

type JobsResponse struct {
	Jobs  []*jobs.Job `json:"jobs"`
	Stats jobs.Stats  `json:"stats"`
}

// ListJobs handles GET /api/v1/jobs
func (h *Handlers) ListJobs(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, JobsResponse{
		Jobs:  h.jobs.ListJobs(),
		Stats: h.jobs.GetStats(),
	})
}

// Health handles GET /health
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	health := map[string]interface{}{
		"status": "ok",
	}
	status := http.StatusOK

	if err := h.store.Ping(ctx); err != nil {
		h.logger.Error("store health check failed", "error", err)
		health["status"] = "error"
		health["message"] = "store unavailable"
		h.respondJSON(w, http.StatusServiceUnavailable, health)
		return
	}

	if h.outbox != nil {
		counts, err := h.outbox.Counts(ctx)
		if err != nil {
			h.logger.Error("failed to count outbox events", "error", err)
			health["status"] = "warning"
			health["message"] = "outbox status unknown"
		} else {
			health["outbox"] = counts
			if counts.Pending > pendingWarnThreshold {
				health["status"] = "warning"
				health["message"] = "High number of pending outbox events"
			}
			if counts.DeadLetter > deadLetterErrorThreshold {
				health["status"] = "error"
				health["message"] = "High number of dead letter events"
				status = http.StatusServiceUnavailable
			}
		}
	}

	h.respondJSON(w, status, health)
}

func parseTradeFilter(q url.Values) (models.TradeFilter, error) {
	f := models.TradeFilter{
		Country:    q.Get("country"),
		Politician: q.Get("politician"),
		Ticker:     q.Get("ticker"),
		Size:       q.Get("size"),
		SortBy:     q.Get("sortBy"),
		SortOrder:  q.Get("sortOrder"),
	}

	var err error
	if f.Page, err = intParam(q, "page"); err != nil {
		return f, err
	}
	if f.Limit, err = intParam(q, "limit"); err != nil {
		return f, err
	}
	if f.StartDate, err = dateParam(q, "startDate"); err != nil {
		return f, err
	}
	if f.EndDate, err = dateParam(q, "endDate"); err != nil {
		return f, err
	}
	if f.StartDate != nil && f.EndDate != nil && f.EndDate.Before(*f.StartDate) {
		return f, errors.New("endDate must not be before startDate")
	}

	switch f.SortBy {
	case "", models.SortByDate, models.SortBySize, models.SortByPolitician, models.SortByTicker:
	default:
		return f, fmt.Errorf("invalid sortBy %q", f.SortBy)
	}
	switch strings.ToLower(f.SortOrder) {
	case "", "asc", "desc":
	default:
		return f, fmt.Errorf("invalid sortOrder %q", f.SortOrder)
	}

	f.Normalize()
	return f, nil
}

func intParam(q url.Values, key string) (int, error) {
	v := q.Get(key)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid %s %q", key, v)
	}
	return n, nil
}

func dateParam(q url.Values, key string) (*time.Time, error) {
	v := q.Get(key)
	if v == "" {
		return nil, nil
	}
	t, err := time.Parse(dateLayout, v)
	if err != nil {
		return nil, fmt.Errorf("invalid %s %q, expected YYYY-MM-DD", key, v)
	}
	return &t, nil
}

// decodeOptions reads optional scrape options from the request body. An
// empty body means defaults.
func decodeOptions(r *http.Request) (scraper.Options, error) {
	var opts scraper.Options
	if r.Body == nil {
		return opts, nil
	}
	if err := json.NewDecoder(r.Body).Decode(&opts); err != nil && !errors.Is(err, io.EOF) {
		return opts, err
	}
	if opts.Pages < 0 {
		return opts, errors.New("pages must not be negative")
	}
	return opts, nil
}

// Helper methods
func (h *Handlers) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handlers) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, map[string]string{"error": message})
}
