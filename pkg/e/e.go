package e

import "fmt"

var (
	// Внутренние ошибки с транзакциями
	ErrTransactionNotFound = fmt.Errorf("transaction not found")

	// Внутренние ошибки с векторами
	ErrEmptyVectors         = fmt.Errorf("empty vectors")
	ErrVectorEmbeddingEmpty = fmt.Errorf("vector embedding is empty")
	ErrVectorSizeMismatch   = fmt.Errorf("vector size mismatch")

	// Ошибки визуального поиска.
	// Ошибки отдельного изображения каталога восстановимы: продукт пропускается.
	// Ошибки ML-сервиса фатальны для всей операции: без векторов ранжировать нечего.
	ErrImageUnavailable     = fmt.Errorf("image unavailable")
	ErrImageUndecodable     = fmt.Errorf("image undecodable")
	ErrImageUnreadable      = fmt.Errorf("image unreadable")
	ErrNoPixels             = fmt.Errorf("image has no pixels")
	ErrMLServiceUnavailable = fmt.Errorf("ml service unavailable")
	ErrQueryImageRequired   = fmt.Errorf("query image or image url is required")
	ErrNegativeWeight       = fmt.Errorf("fusion weights must be non-negative")

	// 400 Bad Request
	ErrStatusBadRequest     = fmt.Errorf("bad request")
	ErrExpectedMultipart    = fmt.Errorf("expected multipart/form-data")
	ErrMissingFields        = fmt.Errorf("missing required fields")
	ErrInvalidPrice         = fmt.Errorf("invalid price")
	ErrPricePrecision       = fmt.Errorf("price must have at most 2 decimal places")
	ErrInvalidTopK          = fmt.Errorf("top_k must be positive")
	ErrTooManyImages        = fmt.Errorf("too many images")
	ErrNoImages             = fmt.Errorf("no images provided")
	ErrFileTooLarge         = fmt.Errorf("file too large")
	ErrUnsupportedMediaType = fmt.Errorf("unsupported media type")
	ErrProductNameRequired  = fmt.Errorf("product name is required")
	ErrPriceMustBePositive  = fmt.Errorf("price must be positive")
	ErrNoProducts           = fmt.Errorf("no products requested")

	// 500 Internal Server Error
	ErrInternalServerError = fmt.Errorf("internal server error")

	// Конфигурация
	ErrIncorrectEnvVariable = fmt.Errorf("incorrect env variable")
)

// Wrap оборачивает ошибку
func Wrap(msg string, err error) error {
	return fmt.Errorf("%s: %w", msg, err)
}
