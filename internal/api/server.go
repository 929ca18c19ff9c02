// Package api exposes the stepping engine over HTTP. The server is
// stateless: every request carries its full context text, and the
// session trace lives with the client.
package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v5"

	"github.com/samcharles93/tokenlens/internal/inference"
	"github.com/samcharles93/tokenlens/internal/logger"
	"github.com/samcharles93/tokenlens/internal/webui"
)

const (
	// ContractVersion names the wire format; it rides on every response
	// body and the ContractHeader.
	ContractVersion = "v1"
	ContractHeader  = "X-NextTokenLens-Contract"

	// MaxPayloadChars caps context_text to keep paste bombs out.
	MaxPayloadChars = 50000

	// Provider identifies the backend class in model_info.
	Provider = "local"
)

// ServerConfig tunes the HTTP layer, not the stepping policy.
type ServerConfig struct {
	// RatePerSecond and RateBurst shape the shared token bucket. Zero rate
	// disables limiting.
	RatePerSecond float64
	RateBurst     int
}

type Server struct {
	stepper *inference.Stepper
	cfg     ServerConfig
	log     logger.Logger
}

func NewServer(stepper *inference.Stepper, cfg ServerConfig, log logger.Logger) *Server {
	if log == nil {
		log = logger.Default()
	}
	if cfg.RateBurst <= 0 {
		cfg.RateBurst = 10
	}
	return &Server{
		stepper: stepper,
		cfg:     cfg,
		log:     log.With("component", "api"),
	}
}

func (s *Server) Register(e *echo.Echo) {
	e.Use(contractHeader())
	e.Use(requestID())
	if s.cfg.RatePerSecond > 0 {
		e.Use(rateLimit(s.cfg.RatePerSecond, s.cfg.RateBurst))
	}

	e.POST("/step", s.handleStep)
	e.POST("/next_dist", s.handleNextDist)
	e.GET("/healthz", s.handleHealthz)
	e.GET("/", s.handleIndex)
}

func (s *Server) handleIndex(c *echo.Context) error {
	page, err := webui.Index()
	if err != nil {
		return writeError(c, http.StatusInternalServerError, "server_error",
			"web ui unavailable", "")
	}
	return c.HTMLBlob(http.StatusOK, page)
}

func (s *Server) handleStep(c *echo.Context) error {
	req, err := decodeJSON[StepRequest](c.Request().Body)
	if err != nil {
		return writeBadRequest(c, err.Error(), "send a JSON body with context_text and top_k")
	}
	if req.TopK == nil || *req.TopK < 1 {
		return writeBadRequest(c, "top_k must be a positive integer",
			"provide a top_k value between 1 and 30 (it is clamped to [5, 30])")
	}
	if len(req.ContextText) > MaxPayloadChars {
		return writeBadRequest(c, fmt.Sprintf("input too large (max %d characters)", MaxPayloadChars),
			"reduce the size of your context_text input")
	}

	opts := inference.StepOptions{
		Text:              req.ContextText,
		TopK:              req.TopK,
		Temperature:       req.Temperature,
		NucleusP:          req.TopP,
		SoftenTerminators: req.SoftenNewlineEOT,
	}
	if req.Mode != "" {
		mode := req.Mode
		opts.Mode = &mode
	}

	result, err := s.stepper.Step(c.Request().Context(), opts)
	if err != nil {
		return s.writeStepError(c, err)
	}

	resp := StepResponse{
		NextDistResponse: NextDistResponse{
			ContextLenTokens: result.ContextLen,
			Truncated:        result.Truncated,
			TopK:             toTokenInfos(result.TopK),
			CoverageTopK:     result.Coverage,
			UsedTopK:         result.UsedK,
			LastToken:        toLastToken(result.LastToken),
			ModelInfo:        s.modelInfo(),
			ContractVersion:  ContractVersion,
		},
		Chosen:     toChosenToken(result.Chosen),
		AppendText: result.AppendText,
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) handleNextDist(c *echo.Context) error {
	req, err := decodeJSON[NextDistRequest](c.Request().Body)
	if err != nil {
		return writeBadRequest(c, err.Error(), "send a JSON body with context_text")
	}
	topK := inference.DefaultTopK
	if req.TopK != nil {
		if *req.TopK < 1 {
			return writeBadRequest(c, "top_k must be a positive integer",
				"provide a top_k value between 1 and 30 (it is clamped to [5, 30])")
		}
		topK = *req.TopK
	}
	if len(req.ContextText) > MaxPayloadChars {
		return writeBadRequest(c, fmt.Sprintf("input too large (max %d characters)", MaxPayloadChars),
			"reduce the size of your context_text input")
	}

	result, err := s.stepper.Distribution(c.Request().Context(), req.ContextText, topK)
	if err != nil {
		return s.writeStepError(c, err)
	}

	resp := NextDistResponse{
		ContextLenTokens: result.ContextLen,
		Truncated:        result.Truncated,
		TopK:             toTokenInfos(result.TopK),
		CoverageTopK:     result.Coverage,
		UsedTopK:         result.UsedK,
		LastToken:        toLastToken(result.LastToken),
		ModelInfo:        s.modelInfo(),
		ContractVersion:  ContractVersion,
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) handleHealthz(c *echo.Context) error {
	if s.stepper == nil {
		return writeError(c, http.StatusServiceUnavailable, "server_error",
			"model not loaded", "server startup may have failed")
	}
	return c.JSON(http.StatusOK, HealthzResponse{
		ModelName:       s.stepper.Scorer().ModelName(),
		VocabSize:       s.stepper.Scorer().VocabSize(),
		ContractVersion: ContractVersion,
	})
}

// writeStepError maps stepping failures to HTTP. Invalid requests are the
// caller's fault; a scorer failure is retryable; non-finite logits are a
// backend fault and the step never happened.
func (s *Server) writeStepError(c *echo.Context, err error) error {
	switch {
	case errors.Is(err, inference.ErrInvalidRequest):
		return writeBadRequest(c, err.Error(), "check your input parameters")
	case errors.Is(err, inference.ErrScorerUnavailable):
		s.log.Error("scorer failed", "error", err)
		return writeError(c, http.StatusServiceUnavailable, "scorer_unavailable",
			err.Error(), "the backend is unavailable; retry the step")
	case errors.Is(err, inference.ErrNumericAnomaly):
		s.log.Error("numeric anomaly", "error", err)
		return writeError(c, http.StatusInternalServerError, "numeric_anomaly",
			err.Error(), "the backend produced non-finite logits")
	default:
		s.log.Error("step failed", "error", err)
		return writeError(c, http.StatusInternalServerError, "server_error",
			err.Error(), "internal server error occurred")
	}
}

func (s *Server) modelInfo() ModelInfo {
	return ModelInfo{
		Provider:  Provider,
		ModelName: s.stepper.Scorer().ModelName(),
		VocabSize: s.stepper.Scorer().VocabSize(),
	}
}
