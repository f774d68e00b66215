package http

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/smartwear-tech/go-backend/internal/domain"
	"github.com/smartwear-tech/go-backend/internal/usecase"
	"github.com/smartwear-tech/go-backend/pkg/e"
	"github.com/smartwear-tech/go-backend/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSearchUC struct {
	res     *usecase.SearchRes
	err     error
	lastReq *usecase.SearchReq
}

func (s *stubSearchUC) Initialize(ctx context.Context) error {
	return s.err
}

func (s *stubSearchUC) Search(ctx context.Context, req *usecase.SearchReq) (*usecase.SearchRes, error) {
	s.lastReq = req
	if s.err != nil {
		return nil, s.err
	}
	return s.res, nil
}

func (s *stubSearchUC) Invalidate(ctx context.Context) error {
	return nil
}

func multipartSearchRequest(t *testing.T, fields map[string]string, image []byte) *http.Request {
	t.Helper()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if image != nil {
		fw, err := mw.CreateFormFile("image", "query.png")
		require.NoError(t, err)
		_, err = fw.Write(image)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/search", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestSearchHandler(t *testing.T) {
	uc := &stubSearchUC{res: &usecase.SearchRes{
		QueryCategory: domain.CategoryPrediction{Label: "dress", Confidence: 0.87},
		Results: []usecase.SearchResult{
			{
				Product:       usecase.ProductInfo{ID: 2, Name: "red dress", CategoryName: "dress", Price: 59999},
				CombinedScore: 0.91,
				Components:    domain.ComponentScores{Visual: 0.95, Color: 0.9, Category: 1},
			},
		},
	}}
	handler := NewSearchHandler(uc, logger.NewSlogLogger())

	req := multipartSearchRequest(t, map[string]string{"top_k": "3"}, []byte{0x89, 0x50, 0x4E, 0x47})
	rec := httptest.NewRecorder()

	handler.search(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var res searchResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, "dress", res.QueryCategory)
	require.Len(t, res.Results, 1)
	assert.Equal(t, int64(2), res.Results[0].ProductID)
	assert.Equal(t, 0.91, res.Results[0].CombinedScore)

	require.NotNil(t, uc.lastReq)
	assert.Equal(t, 3, uc.lastReq.TopK)
	assert.NotEmpty(t, uc.lastReq.ImageData)
}

func TestSearchHandlerRequiresImage(t *testing.T) {
	handler := NewSearchHandler(&stubSearchUC{}, logger.NewSlogLogger())

	req := multipartSearchRequest(t, map[string]string{"top_k": "3"}, nil)
	rec := httptest.NewRecorder()

	handler.search(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSearchHandlerRejectsNonMultipart(t *testing.T) {
	handler := NewSearchHandler(&stubSearchUC{}, logger.NewSlogLogger())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/search", bytes.NewBufferString("{}"))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	handler.search(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSearchHandlerMLUnavailable(t *testing.T) {
	handler := NewSearchHandler(&stubSearchUC{err: e.Wrap("op", e.ErrMLServiceUnavailable)}, logger.NewSlogLogger())

	req := multipartSearchRequest(t, map[string]string{"image_url": "http://img/q"}, nil)
	rec := httptest.NewRecorder()

	handler.search(rec, req)

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var errRes ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &errRes))
	assert.Equal(t, http.StatusServiceUnavailable, errRes.Code)
}

func TestBuildIndexHandler(t *testing.T) {
	handler := NewSearchHandler(&stubSearchUC{}, logger.NewSlogLogger())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/index", nil)
	rec := httptest.NewRecorder()

	handler.buildIndex(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ready")
}
