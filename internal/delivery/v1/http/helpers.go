package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/smartwear-tech/go-backend/internal/usecase"
	"github.com/smartwear-tech/go-backend/pkg/e"
	"github.com/jimlawless/whereami"
	"github.com/shopspring/decimal"
)

type ErrorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type ProductMetadata struct {
	Name         string
	CategoryName string
	Price        int64
}

func NewErrorResponse(code int, message string) *ErrorResponse {
	return &ErrorResponse{
		Code:    code,
		Message: message,
	}
}

func ToHTTPResponse(err error) (int, string) {
	switch {
	case errors.Is(err, e.ErrStatusBadRequest):
		return http.StatusBadRequest, e.ErrStatusBadRequest.Error()
	case errors.Is(err, e.ErrExpectedMultipart):
		return http.StatusBadRequest, e.ErrExpectedMultipart.Error()
	case errors.Is(err, e.ErrMissingFields):
		return http.StatusBadRequest, e.ErrMissingFields.Error()
	case errors.Is(err, e.ErrInvalidPrice):
		return http.StatusBadRequest, e.ErrInvalidPrice.Error()
	case errors.Is(err, e.ErrPricePrecision):
		return http.StatusBadRequest, e.ErrPricePrecision.Error()
	case errors.Is(err, e.ErrNoImages):
		return http.StatusBadRequest, e.ErrNoImages.Error()
	case errors.Is(err, e.ErrQueryImageRequired):
		return http.StatusBadRequest, e.ErrQueryImageRequired.Error()
	case errors.Is(err, e.ErrInvalidTopK):
		return http.StatusBadRequest, e.ErrInvalidTopK.Error()
	case errors.Is(err, e.ErrNegativeWeight):
		return http.StatusBadRequest, e.ErrNegativeWeight.Error()
	case errors.Is(err, e.ErrProductNameRequired):
		return http.StatusBadRequest, e.ErrProductNameRequired.Error()
	case errors.Is(err, e.ErrPriceMustBePositive):
		return http.StatusBadRequest, e.ErrPriceMustBePositive.Error()
	case errors.Is(err, e.ErrNoProducts):
		return http.StatusBadRequest, e.ErrNoProducts.Error()
	case errors.Is(err, e.ErrFileTooLarge):
		return http.StatusRequestEntityTooLarge, e.ErrFileTooLarge.Error()
	case errors.Is(err, e.ErrUnsupportedMediaType):
		return http.StatusUnsupportedMediaType, e.ErrUnsupportedMediaType.Error()
	case errors.Is(err, e.ErrImageUnavailable):
		return http.StatusUnprocessableEntity, e.ErrImageUnavailable.Error()
	case errors.Is(err, e.ErrImageUndecodable):
		return http.StatusUnprocessableEntity, e.ErrImageUndecodable.Error()
	case errors.Is(err, e.ErrImageUnreadable):
		return http.StatusUnprocessableEntity, e.ErrImageUnreadable.Error()
	case errors.Is(err, e.ErrMLServiceUnavailable):
		return http.StatusServiceUnavailable, e.ErrMLServiceUnavailable.Error()
	default:
		return http.StatusInternalServerError, e.ErrInternalServerError.Error()
	}
}

func WriteError(w http.ResponseWriter, err error) {
	code, msg := ToHTTPResponse(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(NewErrorResponse(code, msg))
}

func WriteSuccess(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// parsePriceToCents converts a string like "599.99" or "600" to int64 cents.
// Returns error if:
// - invalid format
// - more than 2 decimal places
// - negative value
// - exceeds reasonable limit (e.g. 10^9 rubles)
func parsePriceToCents(s string) (int64, error) {
	if strings.TrimSpace(s) == "" {
		return 0, errors.New("price is empty")
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, e.ErrInvalidPrice
	}

	// Reject negative
	if d.LessThan(decimal.Zero) {
		return 0, e.ErrInvalidPrice
	}

	// Enforce max value (1 billion rubles)
	maxPrice := decimal.NewFromInt(1_000_000_000)
	if d.GreaterThan(maxPrice) {
		return 0, e.ErrInvalidPrice
	}

	// Check decimal places
	if d.Exponent() < -2 {
		return 0, e.ErrPricePrecision // "price must have at most 2 decimal places"
	}

	// Convert to cents: multiply by 100 and round
	cents := d.Mul(decimal.NewFromInt(100)).Round(0)

	return cents.IntPart(), nil
}

func ensureMultipartForm(r *http.Request, maxMemory int64) error {
	if !strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		return e.Wrap(whereami.WhereAmI(), e.ErrExpectedMultipart)
	}
	return r.ParseMultipartForm(maxMemory)
}

func parseProductForm(r *http.Request) (*ProductMetadata, error) {
	name := r.FormValue("name")
	category := r.FormValue("category")
	priceStr := r.FormValue("price")

	if name == "" || category == "" || priceStr == "" {
		return nil, e.Wrap(fmt.Sprintf("name: %s, category: %s, price: %s", name, category, priceStr), e.ErrMissingFields)
	}

	priceCents, err := parsePriceToCents(priceStr)
	if err != nil {
		return nil, err
	}

	return &ProductMetadata{
		Name:         name,
		CategoryName: category,
		Price:        priceCents,
	}, nil
}

// parseImage читает единственный файл из multipart-поля.
func parseImage(files []*multipart.FileHeader) (usecase.ProductImage, error) {
	const maxFileSize = 15 << 20

	if len(files) == 0 {
		return usecase.ProductImage{}, e.ErrNoImages
	}

	fh := files[0]
	data, mimeType, err := readFile(fh, maxFileSize)
	if err != nil {
		return usecase.ProductImage{}, err
	}

	return *usecase.NewProductImage(data, mimeType, int64(len(data)), fh.Filename), nil
}

func readFile(fh *multipart.FileHeader, maxSize int64) ([]byte, string, error) {
	src, err := fh.Open()
	if err != nil {
		return nil, "", e.ErrInternalServerError
	}
	defer src.Close()

	data, err := io.ReadAll(src)
	if err != nil {
		return nil, "", e.ErrInternalServerError
	}
	if int64(len(data)) > maxSize {
		return nil, "", e.Wrap(fh.Filename, e.ErrFileTooLarge)
	}

	mimeType := http.DetectContentType(data[:min(len(data), 512)])
	return data, mimeType, nil
}

// parseTopK читает опциональное значение top_k; пустая строка означает значение по умолчанию.
func parseTopK(s string) (int, error) {
	if strings.TrimSpace(s) == "" {
		return 0, nil
	}

	topK, err := strconv.Atoi(s)
	if err != nil || topK <= 0 {
		return 0, e.ErrInvalidTopK
	}

	return topK, nil
}

// parseWeights читает опциональные веса сигналов. Заданы должны быть либо все
// три, либо ни одного.
func parseWeights(visual, color, category string) (*usecase.FusionWeights, error) {
	if visual == "" && color == "" && category == "" {
		return nil, nil
	}
	if visual == "" || color == "" || category == "" {
		return nil, e.Wrap("all three weights must be provided together", e.ErrMissingFields)
	}

	parse := func(s string) (float64, error) {
		w, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, e.ErrNegativeWeight
		}
		if w < 0 {
			return 0, e.ErrNegativeWeight
		}
		return w, nil
	}

	v, err := parse(visual)
	if err != nil {
		return nil, err
	}
	c, err := parse(color)
	if err != nil {
		return nil, err
	}
	cat, err := parse(category)
	if err != nil {
		return nil, err
	}

	return &usecase.FusionWeights{Visual: v, Color: c, Category: cat}, nil
}

// parseIDs разбирает список идентификаторов из query-параметра ids=1,2,3.
func parseIDs(s string) ([]int64, error) {
	if strings.TrimSpace(s) == "" {
		return nil, e.ErrNoProducts
	}

	parts := strings.Split(s, ",")
	ids := make([]int64, 0, len(parts))
	for _, part := range parts {
		id, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
		if err != nil {
			return nil, e.Wrap(part, e.ErrStatusBadRequest)
		}
		ids = append(ids, id)
	}

	return ids, nil
}
