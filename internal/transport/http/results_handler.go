package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"bondtape/internal/operations"
	"bondtape/pkg/contracts/domain"
)

// ResultsHandler serves the latest run's summaries, ledger and counters.
type ResultsHandler struct {
	store  *ResultStore
	logger *slog.Logger
}

// NewResultsHandler creates a results handler.
func NewResultsHandler(store *ResultStore, logger *slog.Logger) *ResultsHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ResultsHandler{
		store:  store,
		logger: logger.With(slog.String("handler", "results")),
	}
}

// Routes returns the results routes.
func (h *ResultsHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(render.SetContentType(render.ContentTypeJSON))

	r.Get("/", h.GetRun)
	r.Get("/summaries", h.GetSummaries)
	r.Get("/ledger", h.GetLedger)
	r.Get("/stats", h.GetStats)
	r.Get("/failures", h.GetFailures)

	return r
}

// runMeta is the run without its bulk payloads.
type runMeta struct {
	JobID     string          `json:"job_id"`
	FeedType  domain.FeedType `json:"feed_type"`
	StartedAt time.Time       `json:"started_at"`
	Duration  string          `json:"duration"`
	Batches   int             `json:"batches"`
	Failed    int             `json:"failed_batches"`
	Ledger    int             `json:"ledger_size"`
	Summaries int             `json:"summary_count"`
}

// GetRun handles GET /api/results.
func (h *ResultsHandler) GetRun(w http.ResponseWriter, r *http.Request) {
	result, ok := h.latest(w, r)
	if !ok {
		return
	}
	render.JSON(w, r, runMeta{
		JobID:     result.JobID,
		FeedType:  result.FeedType,
		StartedAt: result.StartedAt,
		Duration:  result.Duration.String(),
		Batches:   result.Batches,
		Failed:    len(result.Failures),
		Ledger:    len(result.Ledger),
		Summaries: len(result.Summaries),
	})
}

// GetSummaries handles GET /api/results/summaries. An optional cusip query
// parameter narrows the response to one instrument.
func (h *ResultsHandler) GetSummaries(w http.ResponseWriter, r *http.Request) {
	result, ok := h.latest(w, r)
	if !ok {
		return
	}
	summaries := result.Summaries
	if cusip := r.URL.Query().Get("cusip"); cusip != "" {
		filtered := make([]domain.SummaryRecord, 0)
		for _, s := range summaries {
			if s.CUSIP == cusip {
				filtered = append(filtered, s)
			}
		}
		summaries = filtered
	}
	render.JSON(w, r, summaries)
}

// GetLedger handles GET /api/results/ledger with the same cusip filter.
func (h *ResultsHandler) GetLedger(w http.ResponseWriter, r *http.Request) {
	result, ok := h.latest(w, r)
	if !ok {
		return
	}
	ledger := result.Ledger
	if cusip := r.URL.Query().Get("cusip"); cusip != "" {
		filtered := make([]domain.ReconciledTrade, 0)
		for _, t := range ledger {
			if t.CUSIP == cusip {
				filtered = append(filtered, t)
			}
		}
		ledger = filtered
	}
	render.JSON(w, r, ledger)
}

// GetStats handles GET /api/results/stats.
func (h *ResultsHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	result, ok := h.latest(w, r)
	if !ok {
		return
	}
	render.JSON(w, r, result.Stats)
}

// GetFailures handles GET /api/results/failures.
func (h *ResultsHandler) GetFailures(w http.ResponseWriter, r *http.Request) {
	result, ok := h.latest(w, r)
	if !ok {
		return
	}
	failures := result.Failures
	if failures == nil {
		failures = []operations.BatchFailure{}
	}
	render.JSON(w, r, failures)
}

// latest fetches the stored run or answers 404 when none has completed.
func (h *ResultsHandler) latest(w http.ResponseWriter, r *http.Request) (*operations.RunResult, bool) {
	result := h.store.Latest()
	if result == nil {
		render.Status(r, http.StatusNotFound)
		render.JSON(w, r, map[string]string{"error": "no completed run"})
		return nil, false
	}
	return result, true
}
