package api

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v5"

	"github.com/samcharles93/nerloop/internal/annotation"
	"github.com/samcharles93/nerloop/internal/corpus"
	"github.com/samcharles93/nerloop/internal/logger"
	"github.com/samcharles93/nerloop/internal/ner"
)

const mimeJSONL = "application/x-ndjson"

type Server struct {
	provider ModelProvider
	log      logger.Logger
	metrics  *metrics
	clock    func() time.Time
	started  time.Time
}

func NewServer(provider ModelProvider, log logger.Logger) *Server {
	if log == nil {
		log = logger.Discard()
	}
	s := &Server{
		provider: provider,
		log:      log,
		metrics:  newMetrics(),
		clock:    time.Now,
	}
	s.started = s.clock()
	return s
}

func (s *Server) Register(e *echo.Echo) {
	e.GET("/health", s.handleHealth)
	e.GET("/metrics", s.metrics.handler())

	e.GET("/v1/setup", s.handleSetup)
	e.POST("/v1/predict", s.handlePredict)
	e.POST("/v1/predict/batch", s.handlePredictBatch)
}

type HealthResponse struct {
	OK     bool    `json:"ok"`
	Uptime float64 `json:"uptime_seconds"`
}

type SetupResponse struct {
	ModelRun  string    `json:"model_run"`
	BaseRun   string    `json:"base_run,omitempty"`
	Kind      string    `json:"kind"`
	Labels    []string  `json:"labels"`
	CreatedAt time.Time `json:"created_at"`
}

type PredictRequest struct {
	Text  string `json:"text"`
	Model string `json:"model,omitempty"`
}

func (s *Server) handleHealth(c *echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{
		OK:     true,
		Uptime: s.clock().Sub(s.started).Seconds(),
	})
}

func (s *Server) handleSetup(c *echo.Context) error {
	m, err := s.model(c.Request().Context(), c.QueryParam("model"))
	if err != nil {
		return writeModelError(c, err)
	}
	meta := m.Meta()
	labels := m.Labels()
	if labels == nil {
		labels = []string{}
	}
	return c.JSON(http.StatusOK, SetupResponse{
		ModelRun:  meta.RunID,
		BaseRun:   meta.BaseRunID,
		Kind:      meta.Kind,
		Labels:    labels,
		CreatedAt: meta.CreatedAt,
	})
}

func (s *Server) handlePredict(c *echo.Context) error {
	req, err := decodeJSON[PredictRequest](c.Request().Body)
	if err != nil {
		return writeBadRequest(c, err.Error())
	}
	if strings.TrimSpace(req.Text) == "" {
		return writeModelError(c, &RequestError{Param: "text", Msg: "text is required"})
	}
	ctx := c.Request().Context()
	m, err := s.model(ctx, req.Model)
	if err != nil {
		return writeModelError(c, err)
	}
	start := s.clock()
	ents, err := m.Predict(ctx, req.Text)
	s.observe(endpointPredict, start, err, ents)
	if err != nil {
		s.log.Error("predict failed", "error", err)
		return writeModelError(c, err)
	}
	return c.JSON(http.StatusOK, ner.PredictResponse{
		Spans:    ner.SpansOf(req.Text, ents),
		ModelRun: m.Meta().RunID,
	})
}

// handlePredictBatch replaces the labels of every record in a JSONL body
// with the model's prediction. Ids and extra fields pass through.
func (s *Server) handlePredictBatch(c *echo.Context) error {
	recs, err := annotation.ReadAll(c.Request().Body)
	if err != nil {
		return writeBadRequest(c, err.Error())
	}
	ctx := c.Request().Context()
	m, err := s.model(ctx, c.QueryParam("model"))
	if err != nil {
		return writeModelError(c, err)
	}

	s.metrics.batchSize.Observe(float64(len(recs)))
	start := s.clock()
	var buf bytes.Buffer
	w := annotation.NewWriter(&buf)
	for i, rec := range recs {
		if err := ctx.Err(); err != nil {
			return err
		}
		ents, err := m.Predict(ctx, rec.Text)
		s.observeSpans(ents)
		if err != nil {
			s.observe(endpointBatch, start, err, nil)
			s.log.Error("batch predict failed", "record", i+1, "error", err)
			return writeModelError(c, fmt.Errorf("record %d: %w", i+1, err))
		}
		if ents == nil {
			ents = []corpus.Entity{}
		}
		rec.Labels = ents
		if err := w.Write(rec); err != nil {
			return writeModelError(c, err)
		}
	}
	if err := w.Flush(); err != nil {
		return writeModelError(c, err)
	}
	s.observe(endpointBatch, start, nil, nil)
	s.log.Debug("batch predicted", "records", w.Count(), "model_run", m.Meta().RunID)
	return c.Blob(http.StatusOK, mimeJSONL, buf.Bytes())
}

const (
	endpointPredict = "predict"
	endpointBatch   = "batch"
)

func (s *Server) observe(endpoint string, start time.Time, err error, ents []corpus.Entity) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	s.metrics.requests.WithLabelValues(endpoint, status).Inc()
	s.metrics.latency.WithLabelValues(endpoint).Observe(s.clock().Sub(start).Seconds())
	s.observeSpans(ents)
}

func (s *Server) observeSpans(ents []corpus.Entity) {
	for _, e := range ents {
		s.metrics.spans.WithLabelValues(e.Label).Inc()
	}
}

func (s *Server) model(ctx context.Context, modelID string) (ner.Model, error) {
	if s.provider == nil {
		return nil, fmt.Errorf("model provider not configured: %w", ner.ErrNoModel)
	}
	return s.provider.Model(ctx, modelID)
}
