package usecase

import (
	"context"
	"strings"
	"time"

	"github.com/smartwear-tech/go-backend/internal/domain"
	"github.com/smartwear-tech/go-backend/pkg/e"
	"github.com/smartwear-tech/go-backend/pkg/logger"
	transaction "github.com/avito-tech/go-transaction-manager/drivers/pgxv5/v2"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// ProductUseCase реализует бизнес-логику управления каталогом продуктов.
type ProductUseCase struct {
	productRepo   ProductRepository
	categoryRepo  CategoryRepository
	dbPool        transaction.Transactional
	mlService     MlServiceInfra
	imagesInfra   ImagesInfra
	embeddingRepo EmbeddingRepository
	producer      MessageProducer
	logger        logger.Logger
	cacheRepo     CacheRepository
}

func NewProductUC(
	productRepo ProductRepository,
	categoryRepo CategoryRepository,
	dbPool transaction.Transactional,
	mlService MlServiceInfra,
	imagesInfra ImagesInfra,
	embeddingRepo EmbeddingRepository,
	producer MessageProducer,
	logger logger.Logger,
	cacheRepo CacheRepository,
) *ProductUseCase {
	return &ProductUseCase{
		productRepo:   productRepo,
		categoryRepo:  categoryRepo,
		dbPool:        dbPool,
		mlService:     mlService,
		imagesInfra:   imagesInfra,
		embeddingRepo: embeddingRepo,
		producer:      producer,
		logger:        logger,
		cacheRepo:     cacheRepo,
	}
}

// RegisterNewProduct обрабатывает добавление нового продукта: изображение,
// категория, вектор в Qdrant, событие в шину и сброс поискового индекса.
func (p *ProductUseCase) RegisterNewProduct(ctx context.Context, req *AddNewProductReq) error {
	const op = "ProductUseCase.RegisterNewProduct"

	// Валидация данных
	var err error
	err = p.validateProduct(req)
	if err != nil {
		return e.Wrap(op, err)
	}

	var (
		imageKey string
		uploaded bool
	)

	ctx, tx, err := transaction.NewTransaction(ctx, pgx.TxOptions{}, p.dbPool)
	if err != nil {
		return e.Wrap(op, err)
	}
	// Если произошла ошибка, происходит Rollback транзакции и очистка загруженного изображения
	defer func() {
		if err != nil {
			if tx.IsActive() {
				tx.Rollback(ctx)
			}

			if uploaded && imageKey != "" {
				p.logger.Warnf(
					"Cleaning up orphaned image after transaction failure. product_name: %s, error: %v",
					req.Name,
					e.Wrap(op, err),
				)

				p.imagesInfra.CleanupImages([]string{imageKey})
			}
		}
	}()
	ctx = context.WithValue(ctx, "tx", tx.Transaction())

	// идемпотентное создание категории
	category, err := p.createCategory(ctx, req.CategoryName)
	if err != nil {
		return e.Wrap(op, err)
	}

	// Отправка изображения на ML Service для получения вектора
	vector, err := p.getVector(ctx, req.Image)
	if err != nil {
		return e.Wrap(op, err)
	}

	// Сохранение изображения в MinIO
	imageKey, err = p.uploadImage(ctx, req.Name, req.Image)
	if err != nil {
		return e.Wrap(op, err)
	}
	uploaded = true

	// идемпотентное создание продукта
	product, err := p.upsertProduct(ctx, req.Name, req.Price, category.ID, imageKey)
	if err != nil {
		return e.Wrap(op, err)
	}

	// Сохранение вектора с дополнительной информацией (S3 key, Product ID, Category, Model Version)
	err = p.upsertEmbedding(ctx, product.Product.ID, imageKey, category.Name, vector)
	if err != nil {
		return e.Wrap(op, err)
	}

	// Коммит изменений в бд
	err = tx.Commit(ctx)
	if err != nil {
		return e.Wrap(op, err)
	}

	// Удаление из кэша старых данных товара
	if err := p.cacheRepo.DeleteProducts(ctx, []int64{product.Product.ID}); err != nil {
		p.logger.Warnf("Failed to delete products from cache: %v", e.Wrap(op, err))
	}

	// Событие изменения каталога для downstream-потребителей
	if err := p.producer.WriteMessage(ctx, NewWriteMessageReq(product.Product, category.Name, vector.ModelVersion)); err != nil {
		p.logger.Warnf("Failed to publish catalog event: %v", e.Wrap(op, err))
	}

	return nil
}

// GetProductsInfo возвращает информацию о продуктах по их идентификаторам.
func (p *ProductUseCase) GetProductsInfo(ctx context.Context, req *GetProductsReq) (*GetProductsRes, error) {
	const op = "ProductUseCase.GetProductsInfo"

	// Валидация
	if len(req.IDs) == 0 {
		return nil, e.Wrap(op, e.ErrNoProducts)
	}

	// Поиск продуктов в хэше
	cacheProductsMap, err := p.cacheRepo.GetProducts(ctx, req.IDs)
	var nonCacheable []int64
	if err != nil {
		nonCacheable = append(nonCacheable, req.IDs...)
	} else {
		for _, productId := range req.IDs {
			if _, ok := cacheProductsMap[productId]; !ok {
				nonCacheable = append(nonCacheable, productId)
			}
		}
	}

	// Получение продуктов из БД
	var productsInfoFromDB []ProductInfo
	if len(nonCacheable) > 0 {
		productsInfoFromDB, err = p.getProductsInfo(ctx, nonCacheable)
		if err != nil {
			return nil, e.Wrap(op, err)
		}

		// Фоновое добавление продуктов в хэш
		go func() {
			bgCtx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
			defer cancel()

			if err := p.cacheRepo.SetProducts(bgCtx, productsInfoFromDB); err != nil {
				p.logger.Warnf("Failed to cache products in background: %v", e.Wrap(op, err))
			}
		}()
	}

	dbProductsMap := make(map[int64]ProductInfo, len(productsInfoFromDB))
	for _, productInfo := range productsInfoFromDB {
		dbProductsMap[productInfo.ID] = productInfo
	}

	// Формирование результата
	result := make([]ProductInfo, 0, len(req.IDs))
	notFoundProducts := make([]int64, 0)
	for _, id := range req.IDs {
		if pr, ok := cacheProductsMap[id]; ok {
			result = append(result, pr)
		} else if pr, ok := dbProductsMap[id]; ok {
			result = append(result, pr)
		} else {
			notFoundProducts = append(notFoundProducts, id)
		}
	}

	return NewGetProductsRes(result, notFoundProducts), nil
}

// getProductsInfo делегирует запрос репозиторию продуктов.
func (p *ProductUseCase) getProductsInfo(ctx context.Context, ids []int64) ([]ProductInfo, error) {
	return p.productRepo.GetProductsInfo(ctx, ids)
}

// getVector запрашивает векторное представление изображения у ML-сервиса.
func (p *ProductUseCase) getVector(ctx context.Context, image ProductImage) (*VectorizeRes, error) {
	vector, err := p.mlService.Vectorize(ctx, NewVectorizeReq(image.Data))
	if err != nil {
		return nil, err
	}

	if len(vector.Vector) == 0 {
		return nil, e.ErrEmptyVectors
	}

	return vector, nil
}

// upsertProduct идемпотентно создаёт или обновляет продукт.
func (p *ProductUseCase) upsertProduct(ctx context.Context, name string, price int64, categoryID int64, imageKey string) (*UpsertProductRes, error) {
	return p.productRepo.Upsert(ctx, domain.NewProduct(name, price, categoryID, imageKey, ""))
}

// createCategory идемпотентно создаёт категорию.
func (p *ProductUseCase) createCategory(ctx context.Context, categoryName string) (*domain.Category, error) {
	return p.categoryRepo.Create(ctx, domain.NewCategory(categoryName))
}

// uploadImage сохраняет изображение продукта в MinIO.
func (p *ProductUseCase) uploadImage(ctx context.Context, name string, image ProductImage) (string, error) {
	return p.imagesInfra.UploadImage(ctx, NewUploadImageReq(name, image))
}

// upsertEmbedding сохраняет вектор изображения в Qdrant с привязкой к продукту и объекту MinIO.
func (p *ProductUseCase) upsertEmbedding(ctx context.Context, productID int64, imageKey string, categoryName string, vector *VectorizeRes) error {
	if len(vector.Vector) == 0 {
		return e.ErrVectorEmbeddingEmpty
	}

	payload := domain.NewPayload(productID, imageKey, categoryName, vector.ModelVersion)
	embedding := domain.NewEmbedding(uuid.NewString(), vector.Vector, payload)

	return p.embeddingRepo.Upsert(ctx, []domain.Embedding{*embedding})
}

// validateProduct проверяет корректность входных данных запроса на добавление продукта.
func (p *ProductUseCase) validateProduct(req *AddNewProductReq) error {
	if strings.TrimSpace(req.Name) == "" {
		return e.ErrProductNameRequired
	}

	if req.Price <= 0 {
		return e.ErrPriceMustBePositive
	}

	if len(req.Image.Data) == 0 {
		return e.ErrNoImages
	}

	return nil
}
