package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"TrendCurator/internal/domain"
	"TrendCurator/internal/usecase"
)

// APIResponse is the envelope for every JSON reply.
type APIResponse struct {
	Status string             `json:"status"`
	Data   *usecase.RunResult `json:"data,omitempty"`
	Error  string             `json:"error,omitempty"`
}

type handler struct {
	runner     Runner
	runTimeout time.Duration
	logger     *slog.Logger
}

func newHandler(runner Runner, runTimeout time.Duration, logger *slog.Logger) *handler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &handler{runner: runner, runTimeout: runTimeout, logger: logger}
}

func (h *handler) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// run triggers a pipeline run and blocks until it finishes. The run is detached from
// the request so a dropped client does not abort enrichment halfway.
func (h *handler) run(w http.ResponseWriter, r *http.Request) {
	ctx := context.WithoutCancel(r.Context())
	if h.runTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.runTimeout)
		defer cancel()
	}

	res, err := h.runner.Run(ctx)
	status := statusFor(err)
	if err != nil {
		h.logger.Error("run request failed", "run_id", res.RunID, "status", status, "error", err)
		resp := APIResponse{Status: "error", Error: err.Error()}
		if res.RunID != "" && !errors.Is(err, domain.ErrFetch) {
			resp.Data = &res
		}
		writeJSON(w, status, resp)
		return
	}

	writeJSON(w, status, APIResponse{Status: "ok", Data: &res})
}

func statusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, domain.ErrFetch):
		return http.StatusServiceUnavailable
	case errors.Is(err, domain.ErrPersist):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	//nolint:errcheck // HTTP response write errors are not recoverable
	json.NewEncoder(w).Encode(data)
}
