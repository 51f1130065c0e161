package api

import (
	"errors"
	"net/http"
	"time"

	"CoinRadar/internal/domain/models"
	domsvc "CoinRadar/internal/domain/service"
	"CoinRadar/internal/service/metrics"
	"CoinRadar/internal/service/ratelimit"
	"CoinRadar/internal/usecase"
	xhttp "CoinRadar/pkg/http"
	xlogger "CoinRadar/pkg/logger"

	"github.com/labstack/echo/v4"
)

// PredictionSource serves the latest ranked results.
type PredictionSource interface {
	Predictions(limit int) usecase.Predictions
}

// RadarEchoHandler exposes rankings, signals, feedback and weights over Echo.
type RadarEchoHandler struct {
	logger      *xlogger.Logger
	predictions PredictionSource
	lifecycle   *usecase.SignalLifecycle
	weights     domsvc.WeightSource
	history     *usecase.MarketHistory
	rl          *ratelimit.Limiter
}

func NewRadarEchoHandler(logger *xlogger.Logger, predictions PredictionSource, lifecycle *usecase.SignalLifecycle,
	weights domsvc.WeightSource, history *usecase.MarketHistory, rl *ratelimit.Limiter,
) *RadarEchoHandler {
	metrics.Register()
	if logger == nil {
		logger = xlogger.Nop()
	}
	return &RadarEchoHandler{logger: logger, predictions: predictions, lifecycle: lifecycle, weights: weights, history: history, rl: rl}
}

func (h *RadarEchoHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.GET("/candidates", h.Candidates)
	g.GET("/signals", h.ListSignals)
	g.GET("/signals/:id", h.GetSignal)
	g.POST("/signals/:id/feedback", h.Feedback, h.limit)
	g.POST("/feedback/callback", h.CallbackFeedback, h.limit)
	g.GET("/feedback/stats", h.FeedbackStats)
	g.GET("/weights", h.Weights)
	g.GET("/symbols/:symbol/history", h.History)
}

// limit throttles feedback writes per client IP.
func (h *RadarEchoHandler) limit(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if h.rl != nil && !h.rl.Allow(c.RealIP()) {
			return xhttp.AppErrorResponse(c, xhttp.NewAppError("ERR_RATE_LIMITED", "", "too many requests", http.StatusTooManyRequests))
		}
		return next(c)
	}
}

func (h *RadarEchoHandler) Candidates(c echo.Context) error {
	start := time.Now()
	req := &models.CandidatesRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	p := h.predictions.Predictions(req.Limit)
	observe("candidates", start, nil)
	c.Response().Header().Set(echo.HeaderCacheControl, "private, max-age=15")
	return xhttp.SuccessResponse(c, p)
}

func (h *RadarEchoHandler) ListSignals(c echo.Context) error {
	start := time.Now()
	req := &models.SignalsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	rows, err := h.lifecycle.ListSignals(c.Request().Context(), models.SignalFilter{
		Status: models.SignalStatus(req.Status),
		Symbol: req.Symbol,
		Limit:  req.Limit,
	})
	observe("signals_list", start, err)
	if err != nil {
		h.logger.Error("list signals error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, toAppError(err))
	}
	if rows == nil {
		rows = []models.Signal{}
	}
	return xhttp.ListResponse(c, rows, int64(len(rows)))
}

func (h *RadarEchoHandler) GetSignal(c echo.Context) error {
	start := time.Now()
	req := &models.SignalRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	sig, err := h.lifecycle.GetSignal(c.Request().Context(), req.ID)
	observe("signals_get", start, err)
	if err != nil {
		return xhttp.AppErrorResponse(c, toAppError(err))
	}
	return xhttp.SuccessResponse(c, sig)
}

func (h *RadarEchoHandler) Feedback(c echo.Context) error {
	start := time.Now()
	req := &models.FeedbackRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	sig, err := h.lifecycle.RecordFeedback(c.Request().Context(), req.ID, req.Outcome, req.Comment)
	observe("feedback", start, err)
	metrics.FeedbackReceived.WithLabelValues(req.Outcome, feedbackResult(err)).Inc()
	if err != nil {
		h.logFeedbackError(err, req.ID)
		return xhttp.AppErrorResponse(c, toAppError(err))
	}
	return xhttp.SuccessResponse(c, sig)
}

func (h *RadarEchoHandler) CallbackFeedback(c echo.Context) error {
	start := time.Now()
	req := &models.CallbackFeedbackRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	sig, err := h.lifecycle.HandleCallback(c.Request().Context(), req.Data, req.Comment)
	observe("feedback_callback", start, err)
	outcome := "unknown"
	if cb, perr := models.ParseCallback(req.Data); perr == nil {
		outcome = string(cb.Outcome)
	}
	metrics.FeedbackReceived.WithLabelValues(outcome, feedbackResult(err)).Inc()
	if err != nil {
		h.logFeedbackError(err, req.Data)
		return xhttp.AppErrorResponse(c, toAppError(err))
	}
	return xhttp.SuccessResponse(c, sig)
}

func (h *RadarEchoHandler) FeedbackStats(c echo.Context) error {
	start := time.Now()
	req := &models.FeedbackStatsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	stats, err := h.lifecycle.Stats(c.Request().Context(), req.Days)
	observe("feedback_stats", start, err)
	if err != nil {
		h.logger.Error("feedback stats error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, toAppError(err))
	}
	return xhttp.SuccessResponse(c, stats)
}

func (h *RadarEchoHandler) Weights(c echo.Context) error {
	return xhttp.SuccessResponse(c, h.weights.Snapshot())
}

func (h *RadarEchoHandler) History(c echo.Context) error {
	start := time.Now()
	req := &models.HistoryRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	res, err := h.history.GetHistory(c.Request().Context(), usecase.HistoryParams{Symbol: req.Symbol, Days: req.Days, Limit: req.Limit})
	observe("history", start, err)
	if err != nil {
		h.logger.Error("history usecase error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, toAppError(err))
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *RadarEchoHandler) logFeedbackError(err error, ref string) {
	if appErr := toAppError(err); appErr.Status >= http.StatusInternalServerError {
		h.logger.Error("feedback error", xlogger.String("ref", ref), xlogger.Error(err))
		return
	}
	h.logger.Info("feedback rejected", xlogger.String("ref", ref), xlogger.Error(err))
}

// toAppError maps domain sentinels onto HTTP errors.
func toAppError(err error) *xhttp.AppError {
	switch {
	case errors.Is(err, models.ErrSignalNotFound):
		return xhttp.NotFoundError("signal not found").WithError(err)
	case errors.Is(err, models.ErrSignalClosed):
		return xhttp.ConflictError("signal already has an outcome").WithError(err)
	case errors.Is(err, models.ErrInvalidOutcome), errors.Is(err, models.ErrInvalidCallback):
		return xhttp.BadRequestError(err.Error()).WithError(err)
	default:
		return xhttp.InternalError("internal error").WithError(err)
	}
}

func feedbackResult(err error) string {
	if err == nil {
		return "accepted"
	}
	switch toAppError(err).Status {
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "closed"
	case http.StatusBadRequest:
		return "invalid"
	default:
		return "error"
	}
}

func observe(endpoint string, start time.Time, err error) {
	metrics.APILatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.APIErrors.WithLabelValues(endpoint).Inc()
	}
}

var _ xhttp.Handler = (*RadarEchoHandler)(nil)
