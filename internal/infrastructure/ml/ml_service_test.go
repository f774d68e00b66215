package ml_service

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/smartwear-tech/go-backend/internal/cfg"
	"github.com/smartwear-tech/go-backend/internal/usecase"
	"github.com/smartwear-tech/go-backend/pkg/e"
	"github.com/smartwear-tech/go-backend/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(addr string, maxRetries int) *MLService {
	return NewMLService(&cfg.MLServiceCfg{
		Addr:          addr,
		Timeout:       5 * time.Second,
		MaxConcurrent: 4,
		MaxRetries:    maxRetries,
	}, logger.NewSlogLogger())
}

func TestVectorize(t *testing.T) {
	image := []byte{0x01, 0x02, 0x03}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, vectorizePath, r.URL.Path)

		var req vectorizeRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, base64.StdEncoding.EncodeToString(image), req.Image)

		json.NewEncoder(w).Encode(vectorizeResponse{
			Vector:       []float32{0.1, 0.2, 0.3},
			ModelVersion: "clip-vit-b32",
		})
	}))
	defer srv.Close()

	svc := newTestService(srv.URL, 1)

	res, err := svc.Vectorize(context.Background(), usecase.NewVectorizeReq(image))
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, res.Vector)
	assert.Equal(t, "clip-vit-b32", res.ModelVersion)
}

func TestClassifyScores(t *testing.T) {
	prompts := []string{"a photo of a dress", "a photo of a hat"}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, zeroShotPath, r.URL.Path)

		var req zeroShotRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, prompts, req.Prompts)

		json.NewEncoder(w).Encode(zeroShotResponse{Scores: []float64{0.9, 0.1}})
	}))
	defer srv.Close()

	svc := newTestService(srv.URL, 1)

	scores, err := svc.ClassifyScores(context.Background(), usecase.NewClassifyReq([]byte{0xFF}, prompts))
	require.NoError(t, err)
	assert.Equal(t, []float64{0.9, 0.1}, scores)
}

func TestClassifyScoresLengthMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(zeroShotResponse{Scores: []float64{0.5}})
	}))
	defer srv.Close()

	svc := newTestService(srv.URL, 1)

	_, err := svc.ClassifyScores(context.Background(), usecase.NewClassifyReq([]byte{0xFF}, []string{"a", "b", "c"}))
	assert.ErrorIs(t, err, e.ErrMLServiceUnavailable)
}

func TestVectorizeExhaustsRetries(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	svc := newTestService(srv.URL, 1)

	_, err := svc.Vectorize(context.Background(), usecase.NewVectorizeReq([]byte{0x01}))
	require.Error(t, err)
	assert.ErrorIs(t, err, e.ErrMLServiceUnavailable)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestVectorizeRetriesThenSucceeds(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			http.Error(w, "warming up", http.StatusServiceUnavailable)
			return
		}
		json.NewEncoder(w).Encode(vectorizeResponse{Vector: []float32{1}, ModelVersion: "v1"})
	}))
	defer srv.Close()

	svc := newTestService(srv.URL, 2)

	res, err := svc.Vectorize(context.Background(), usecase.NewVectorizeReq([]byte{0x01}))
	require.NoError(t, err)
	assert.Equal(t, []float32{1}, res.Vector)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestVectorizeRespectsContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusInternalServerError)
	}))
	defer srv.Close()

	svc := newTestService(srv.URL, 5)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := svc.Vectorize(ctx, usecase.NewVectorizeReq([]byte{0x01}))
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
