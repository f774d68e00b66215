package http

import (
	"net/http"

	"github.com/smartwear-tech/go-backend/internal/usecase"
	"github.com/smartwear-tech/go-backend/pkg/e"
	"github.com/smartwear-tech/go-backend/pkg/logger"
)

type SearchHandler struct {
	searchUsecase usecase.SearchUC
	logger        logger.Logger
}

func NewSearchHandler(searchUsecase usecase.SearchUC, logger logger.Logger) *SearchHandler {
	return &SearchHandler{searchUsecase: searchUsecase, logger: logger}
}

// search
//
//	@Summary		Визуальный поиск похожих товаров
//	@Description	Принимает изображение (файлом или по URL) и возвращает top-K наиболее похожих товаров каталога
//	@Tags			search
//	@Accept			multipart/form-data
//	@Produce		json
//	@Param			image			formData	file	false	"Изображение запроса"
//	@Param			image_url		formData	string	false	"URL изображения запроса"
//	@Param			top_k			formData	integer	false	"Размер выдачи"
//	@Param			visual_weight	formData	number	false	"Вес визуальной схожести"
//	@Param			color_weight	formData	number	false	"Вес цветовой схожести"
//	@Param			category_weight	formData	number	false	"Вес категорийной схожести"
//	@Success		200				{object}	map[string]interface{}
//	@Failure		400				{object}	ErrorResponse
//	@Router			/search [post]
func (s *SearchHandler) search(w http.ResponseWriter, r *http.Request) {
	const (
		maxTotalRequestSize = 32 << 20
		maxMemory           = 32 << 20
	)

	r.Body = http.MaxBytesReader(w, r.Body, maxTotalRequestSize)

	if err := ensureMultipartForm(r, maxMemory); err != nil {
		s.logger.Warnf("%d %s: %s", http.StatusBadRequest, e.ErrStatusBadRequest.Error(), r.Header.Get("Content-Type"))
		WriteError(w, err)
		return
	}

	req, err := s.parseSearchRequest(r)
	if err != nil {
		s.logger.Warnf("%d %s: %s", http.StatusBadRequest, e.ErrStatusBadRequest.Error(), err.Error())
		WriteError(w, err)
		return
	}

	res, err := s.searchUsecase.Search(r.Context(), req)
	if err != nil {
		s.logger.Warnf("%s", err.Error())
		WriteError(w, err)
		return
	}

	WriteSuccess(w, http.StatusOK, toSearchResponse(res))
}

// buildIndex
//
//	@Summary		Построение поискового индекса
//	@Description	Явно строит индекс визуального поиска, не дожидаясь первого запроса
//	@Tags			search
//	@Produce		json
//	@Success		200	{object}	map[string]interface{}
//	@Failure		503	{object}	ErrorResponse
//	@Router			/index [post]
func (s *SearchHandler) buildIndex(w http.ResponseWriter, r *http.Request) {
	if err := s.searchUsecase.Initialize(r.Context()); err != nil {
		s.logger.Warnf("%s", err.Error())
		WriteError(w, err)
		return
	}

	WriteSuccess(w, http.StatusOK, map[string]interface{}{
		"status": "ready",
	})
}

func (s *SearchHandler) parseSearchRequest(r *http.Request) (*usecase.SearchReq, error) {
	var imageData []byte
	if files := r.MultipartForm.File["image"]; len(files) > 0 {
		image, err := parseImage(files)
		if err != nil {
			return nil, err
		}
		imageData = image.Data
	}

	imageURL := r.FormValue("image_url")
	if len(imageData) == 0 && imageURL == "" {
		return nil, e.ErrQueryImageRequired
	}

	topK, err := parseTopK(r.FormValue("top_k"))
	if err != nil {
		return nil, err
	}

	weights, err := parseWeights(
		r.FormValue("visual_weight"),
		r.FormValue("color_weight"),
		r.FormValue("category_weight"),
	)
	if err != nil {
		return nil, err
	}

	return &usecase.SearchReq{
		ImageData: imageData,
		ImageURL:  imageURL,
		TopK:      topK,
		Weights:   weights,
	}, nil
}

type searchResultResponse struct {
	ProductID     int64   `json:"product_id"`
	Name          string  `json:"name"`
	Category      string  `json:"category"`
	Price         int64   `json:"price"`
	ImageKey      string  `json:"image_key,omitempty"`
	ImageURL      string  `json:"image_url,omitempty"`
	CombinedScore float64 `json:"combined_score"`
	VisualScore   float64 `json:"visual_score"`
	ColorScore    float64 `json:"color_score"`
	CategoryScore float64 `json:"category_score"`
}

type searchResponse struct {
	QueryCategory   string                 `json:"query_category"`
	QueryConfidence float64                `json:"query_confidence"`
	Results         []searchResultResponse `json:"results"`
}

func toSearchResponse(res *usecase.SearchRes) searchResponse {
	results := make([]searchResultResponse, 0, len(res.Results))
	for _, r := range res.Results {
		results = append(results, searchResultResponse{
			ProductID:     r.Product.ID,
			Name:          r.Product.Name,
			Category:      r.Product.CategoryName,
			Price:         r.Product.Price,
			ImageKey:      r.Product.ImageKey,
			ImageURL:      r.Product.ImageURL,
			CombinedScore: r.CombinedScore,
			VisualScore:   r.Components.Visual,
			ColorScore:    r.Components.Color,
			CategoryScore: r.Components.Category,
		})
	}

	return searchResponse{
		QueryCategory:   res.QueryCategory.Label,
		QueryConfidence: res.QueryCategory.Confidence,
		Results:         results,
	}
}
