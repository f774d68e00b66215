package usecase

import "github.com/smartwear-tech/go-backend/internal/domain"

// PRODUCT USECASE

// AddNewProductReq — запрос на добавление нового продукта.
// Продукт несёт ровно одно репрезентативное изображение.
type AddNewProductReq struct {
	Name         string
	CategoryName string
	Price        int64
	Image        ProductImage
}

// ProductImage представляет изображение, загруженное через multipart/form-data.
type ProductImage struct {
	Data     []byte // байты изображения
	MimeType string // Content-Type из multipart (image/jpeg)
	Size     int64  // фактический размер в байтах
	Name     string // оригинальное имя файла (для логов)
}

// GetProductsReq запрос информации о продуктах по их идентификаторам.
type GetProductsReq struct {
	IDs []int64
}

// GetProductsRes — ответ с данными запрошенных продуктов.
type GetProductsRes struct {
	Products         []ProductInfo
	NotFoundProducts []int64
}

// ProductInfo — DTO с информацией о продукте для внешнего использования.
type ProductInfo struct {
	ID           int64
	Name         string
	CategoryName string
	Price        int64
	ImageKey     string
	ImageURL     string
}

// SEARCH USECASE

// SearchReq — запрос визуального поиска: либо байты изображения,
// либо внешний URL. TopK и Weights опциональны, нулевые значения
// заменяются настройками по умолчанию.
type SearchReq struct {
	ImageData []byte
	ImageURL  string
	TopK      int
	Weights   *FusionWeights
}

// FusionWeights — веса смешивания трёх сигналов схожести.
// Перед скорингом веса нормируются на их сумму.
type FusionWeights struct {
	Visual   float64
	Color    float64
	Category float64
}

// SearchRes — ранжированный список наиболее похожих продуктов.
type SearchRes struct {
	QueryCategory domain.CategoryPrediction
	Results       []SearchResult
}

// SearchResult — один продукт выдачи с итоговой оценкой и её разложением.
type SearchResult struct {
	Product       ProductInfo
	CombinedScore float64
	Components    domain.ComponentScores
}

// CatalogProduct — плоская строка каталога, входная единица построения индекса.
type CatalogProduct struct {
	ID           string
	Name         string
	CategoryName string
	ImageKey     string
	ImageURL     string
}

// INFRASTRUCTURE

// WriteMessageReq — событие изменения каталога для шины сообщений.
type WriteMessageReq struct {
	ProductID    int64
	Name         string
	CategoryName string
	ImageKey     string
	ModelVersion string
}

// VectorizeReq — запрос на векторизацию одного изображения.
type VectorizeReq struct {
	Image []byte
}

// VectorizeRes — результат векторизации изображения.
type VectorizeRes struct {
	Vector       []float32
	ModelVersion string
}

// ClassifyReq — запрос zero-shot классификации: изображение и набор промптов.
type ClassifyReq struct {
	Image   []byte
	Prompts []string
}

// UploadImageReq — запрос на загрузку изображения продукта в S3.
type UploadImageReq struct {
	Name  string
	Image ProductImage
}

// REPOSITORIES

type UpsertProductRes struct {
	Product   *domain.Product
	NoChanges bool
}

// MAPPERS

func NewUpsertProductRes(product *domain.Product, noChanges bool) *UpsertProductRes {
	return &UpsertProductRes{
		Product:   product,
		NoChanges: noChanges,
	}
}

func NewProductInfo(id int64, name string, category string, price int64, imageKey string, imageURL string) ProductInfo {
	return ProductInfo{
		ID:           id,
		Name:         name,
		CategoryName: category,
		Price:        price,
		ImageKey:     imageKey,
		ImageURL:     imageURL,
	}
}

func NewAddNewProductReq(name string, categoryName string, price int64, image ProductImage) *AddNewProductReq {
	return &AddNewProductReq{
		Name:         name,
		CategoryName: categoryName,
		Price:        price,
		Image:        image,
	}
}

func NewProductImage(data []byte, mimeType string, size int64, name string) *ProductImage {
	return &ProductImage{
		Data:     data,
		MimeType: mimeType,
		Size:     size,
		Name:     name,
	}
}

func NewGetProductsRes(products []ProductInfo, notFound []int64) *GetProductsRes {
	return &GetProductsRes{
		Products:         products,
		NotFoundProducts: notFound,
	}
}

func NewVectorizeRes(vector []float32, modelVersion string) *VectorizeRes {
	return &VectorizeRes{
		Vector:       vector,
		ModelVersion: modelVersion,
	}
}

func NewUploadImageReq(name string, image ProductImage) *UploadImageReq {
	return &UploadImageReq{
		Name:  name,
		Image: image,
	}
}

func NewVectorizeReq(image []byte) *VectorizeReq {
	return &VectorizeReq{
		Image: image,
	}
}

func NewClassifyReq(image []byte, prompts []string) *ClassifyReq {
	return &ClassifyReq{
		Image:   image,
		Prompts: prompts,
	}
}

func NewWriteMessageReq(product *domain.Product, categoryName string, modelVersion string) *WriteMessageReq {
	return &WriteMessageReq{
		ProductID:    product.ID,
		Name:         product.Name,
		CategoryName: categoryName,
		ImageKey:     product.ImageKey,
		ModelVersion: modelVersion,
	}
}

func NewSearchResult(product ProductInfo, scored domain.ScoredResult) SearchResult {
	return SearchResult{
		Product:       product,
		CombinedScore: scored.CombinedScore,
		Components:    scored.Components,
	}
}
