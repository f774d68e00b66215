package ml_service

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/smartwear-tech/go-backend/internal/cfg"
	"github.com/smartwear-tech/go-backend/internal/usecase"
	"github.com/smartwear-tech/go-backend/pkg/e"
	"github.com/smartwear-tech/go-backend/pkg/jitter"
	"github.com/smartwear-tech/go-backend/pkg/logger"
)

const (
	vectorizePath = "/v1/vectorize"
	zeroShotPath  = "/v1/zero-shot"
)

// MLService — HTTP-клиент внешнего ML-сервиса: визуальный энкодер и
// zero-shot классификатор. Конкурентные вызовы ограничены семафором,
// сбои повторяются с экспоненциальной задержкой и джиттером.
type MLService struct {
	addr       string
	client     *http.Client
	sem        chan struct{}
	maxRetries int
	logger     logger.Logger
}

func NewMLService(cfg *cfg.MLServiceCfg, logger logger.Logger) *MLService {
	return &MLService{
		addr:       cfg.Addr,
		client:     &http.Client{Timeout: cfg.Timeout},
		sem:        make(chan struct{}, cfg.MaxConcurrent),
		maxRetries: cfg.MaxRetries,
		logger:     logger,
	}
}

type vectorizeRequest struct {
	Image string `json:"image"`
}

type vectorizeResponse struct {
	Vector       []float32 `json:"vector"`
	ModelVersion string    `json:"model_version"`
}

type zeroShotRequest struct {
	Image   string   `json:"image"`
	Prompts []string `json:"prompts"`
}

type zeroShotResponse struct {
	Scores []float64 `json:"scores"`
}

// Vectorize возвращает эмбеддинг изображения от визуального энкодера.
func (m *MLService) Vectorize(ctx context.Context, req *usecase.VectorizeReq) (*usecase.VectorizeRes, error) {
	const op = "MLService.Vectorize"

	var res vectorizeResponse
	body := vectorizeRequest{Image: base64.StdEncoding.EncodeToString(req.Image)}

	err := m.withRetry(ctx, op, func(ctx context.Context) error {
		return m.postJSON(ctx, vectorizePath, body, &res)
	})
	if err != nil {
		return nil, err
	}

	return usecase.NewVectorizeRes(res.Vector, res.ModelVersion), nil
}

// ClassifyScores возвращает сырые оценки соответствия изображения каждому промпту.
// Порядок оценок совпадает с порядком промптов.
func (m *MLService) ClassifyScores(ctx context.Context, req *usecase.ClassifyReq) ([]float64, error) {
	const op = "MLService.ClassifyScores"

	var res zeroShotResponse
	body := zeroShotRequest{
		Image:   base64.StdEncoding.EncodeToString(req.Image),
		Prompts: req.Prompts,
	}

	err := m.withRetry(ctx, op, func(ctx context.Context) error {
		return m.postJSON(ctx, zeroShotPath, body, &res)
	})
	if err != nil {
		return nil, err
	}

	if len(res.Scores) != len(req.Prompts) {
		return nil, e.Wrap(op, e.ErrMLServiceUnavailable)
	}

	return res.Scores, nil
}

// withRetry выполняет вызов с retry-логикой и экспоненциальной задержкой.
func (m *MLService) withRetry(ctx context.Context, op string, call func(ctx context.Context) error) error {
	const (
		baseJitter = 1 * time.Second
		maxJitter  = 30 * time.Second
	)

	var lastErr error
	for attempt := 0; attempt < m.maxRetries; attempt++ {
		lastErr = call(ctx)
		if lastErr == nil {
			return nil
		}

		if attempt == m.maxRetries-1 {
			break
		}

		sleepTime := jitter.ExponentialBackoff(
			baseJitter,
			maxJitter,
			attempt,
			jitter.DefaultJitter,
		)

		m.logger.Warnf("%s failed, retrying in %v (attempt %d): %v", op, sleepTime, attempt+1, lastErr)
		select {
		case <-time.After(sleepTime):
		case <-ctx.Done():
			return e.Wrap(op, ctx.Err())
		}
	}

	return e.Wrap(op, e.Wrap(fmt.Sprintf("all %d attempts failed: %v", m.maxRetries, lastErr), e.ErrMLServiceUnavailable))
}

// postJSON выполняет один POST с JSON-телом под семафором конкурентности.
func (m *MLService) postJSON(ctx context.Context, path string, body any, out any) error {
	select {
	case m.sem <- struct{}{}:
		defer func() { <-m.sem }()
	case <-ctx.Done():
		return ctx.Err()
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.addr+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("%s: status %d: %s", path, resp.StatusCode, raw)
	}

	return json.NewDecoder(resp.Body).Decode(out)
}
