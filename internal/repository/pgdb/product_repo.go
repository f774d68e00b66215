package pgdb

import (
	"context"
	"strconv"

	"github.com/smartwear-tech/go-backend/internal/domain"
	"github.com/smartwear-tech/go-backend/internal/repository/pgdb/converter"
	"github.com/smartwear-tech/go-backend/internal/usecase"
	"github.com/smartwear-tech/go-backend/pkg/e"
	"github.com/smartwear-tech/go-backend/pkg/tr"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jimlawless/whereami"
)

// ProductRepo реализует репозиторий продуктов поверх PostgreSQL.
type ProductRepo struct {
	pool *pgxpool.Pool
	conv converter.ProductConverter
}

func NewProductRepo(pool *pgxpool.Pool, conv converter.ProductConverter) *ProductRepo {
	return &ProductRepo{
		pool: pool,
		conv: conv,
	}
}

// Upsert идемпотентно создаёт или обновляет продукт по уникальному имени,
// Запись обновляется только при изменении цены, категории или изображения.
func (p *ProductRepo) Upsert(ctx context.Context, product *domain.Product) (*usecase.UpsertProductRes, error) {
	tx, err := tr.TxFromCtx(ctx)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	// VALUES ($1, $2, $3, $4, $5) name, price, category_id, image_key, image_url
	query := `
		WITH upsert AS (
		INSERT INTO products (name, price, category_id, image_key, image_url)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (name)
		DO UPDATE SET
			price = EXCLUDED.price,
			category_id = EXCLUDED.category_id,
			image_key = EXCLUDED.image_key,
			image_url = EXCLUDED.image_url,
			updated_at = NOW()
		WHERE
			products.price IS DISTINCT FROM EXCLUDED.price OR
			products.category_id IS DISTINCT FROM EXCLUDED.category_id OR
			products.image_key IS DISTINCT FROM EXCLUDED.image_key OR
			products.image_url IS DISTINCT FROM EXCLUDED.image_url
		RETURNING
			id, name, price, category_id, image_key, image_url, created_at, updated_at, is_archived
		)
		SELECT
			id, name, price, category_id, image_key, image_url, created_at, updated_at, is_archived,
			false AS no_changes
		FROM upsert
		
		UNION ALL
		
		SELECT
			id, name, price, category_id, image_key, image_url, created_at, updated_at, is_archived,
			true AS no_changes
		FROM products
		WHERE name = $1
		  AND NOT EXISTS (SELECT 1 FROM upsert);
	`

	model := p.conv.ToModel(product)
	var scanned converter.ProductModel
	var noChanges bool
	err = tx.QueryRow(ctx, query, model.Name, model.Price, model.CategoryID, model.ImageKey, model.ImageURL).
		Scan(
			&scanned.ID, &scanned.Name, &scanned.Price, &scanned.CategoryID,
			&scanned.ImageKey, &scanned.ImageURL,
			&scanned.CreatedAt, &scanned.UpdatedAt, &scanned.IsArchived, &noChanges,
		)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	return usecase.NewUpsertProductRes(p.conv.ToEntity(&scanned), noChanges), nil
}

// GetProductsInfo возвращает информацию о продуктах по их идентификаторам, включая название категории.
func (p *ProductRepo) GetProductsInfo(ctx context.Context, ids []int64) ([]usecase.ProductInfo, error) {
	query := `
		SELECT pr.id, pr.name, pr.price, cat.name,
			COALESCE(pr.image_key, ''), COALESCE(pr.image_url, '')
		FROM products pr
		JOIN categories cat ON pr.category_id = cat.id
		WHERE pr.id = ANY($1)
	`

	rows, err := p.pool.Query(ctx, query, ids)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}
	defer rows.Close()

	result := make([]usecase.ProductInfo, 0)
	for rows.Next() {
		var product usecase.ProductInfo
		if err := rows.Scan(
			&product.ID, &product.Name, &product.Price, &product.CategoryName,
			&product.ImageKey, &product.ImageURL,
		); err != nil {
			return nil, e.Wrap(whereami.WhereAmI(), err)
		}

		result = append(result, product)
	}

	return result, nil
}

// ListCatalog возвращает неархивированные продукты каталога в порядке добавления.
// Порядок важен: ранжирование поиска разрешает ничьи порядком каталога.
func (p *ProductRepo) ListCatalog(ctx context.Context) ([]usecase.CatalogProduct, error) {
	query := `
		SELECT pr.id, pr.name, COALESCE(cat.name, ''),
			COALESCE(pr.image_key, ''), COALESCE(pr.image_url, '')
		FROM products pr
		LEFT JOIN categories cat ON pr.category_id = cat.id
		WHERE NOT pr.is_archived
		ORDER BY pr.id
	`

	rows, err := p.pool.Query(ctx, query)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}
	defer rows.Close()

	result := make([]usecase.CatalogProduct, 0)
	for rows.Next() {
		var (
			id      int64
			product usecase.CatalogProduct
		)
		if err := rows.Scan(&id, &product.Name, &product.CategoryName, &product.ImageKey, &product.ImageURL); err != nil {
			return nil, e.Wrap(whereami.WhereAmI(), err)
		}
		product.ID = strconv.FormatInt(id, 10)

		result = append(result, product)
	}

	return result, nil
}
