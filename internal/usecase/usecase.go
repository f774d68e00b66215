package usecase

import "context"

// SearchUC — движок визуального поиска, потребляется слоем доставки.
// Слой доставки сбрасывает индекс после успешного изменения каталога.
type SearchUC interface {
	Initialize(ctx context.Context) error
	Search(ctx context.Context, req *SearchReq) (*SearchRes, error)
	Invalidate(ctx context.Context) error
}

type ProductUC interface {
	RegisterNewProduct(ctx context.Context, req *AddNewProductReq) error
	GetProductsInfo(ctx context.Context, req *GetProductsReq) (*GetProductsRes, error)
}
