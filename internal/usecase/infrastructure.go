package usecase

import "context"

// MlServiceInfra — клиент внешнего ML-сервиса: визуальный энкодер и zero-shot классификатор.
type MlServiceInfra interface {
	Vectorize(ctx context.Context, req *VectorizeReq) (*VectorizeRes, error)
	// ClassifyScores возвращает сырые (до softmax) оценки схожести изображения
	// с каждым текстовым промптом.
	ClassifyScores(ctx context.Context, req *ClassifyReq) ([]float64, error)
}

type ImagesInfra interface {
	UploadImage(ctx context.Context, req *UploadImageReq) (string, error)
	GetImage(ctx context.Context, key string) ([]byte, error)
	CleanupImages(keys []string)
}

// ImageFetcher скачивает изображение по внешнему URL.
type ImageFetcher interface {
	FetchBytes(ctx context.Context, url string) ([]byte, error)
}

type MessageProducer interface {
	WriteMessage(ctx context.Context, req *WriteMessageReq) error
}
