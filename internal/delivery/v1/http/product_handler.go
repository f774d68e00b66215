package http

import (
	"net/http"

	"github.com/smartwear-tech/go-backend/internal/usecase"
	"github.com/smartwear-tech/go-backend/pkg/e"
	"github.com/smartwear-tech/go-backend/pkg/logger"
)

type ProductHandler struct {
	productUsecase usecase.ProductUC
	searchUsecase  usecase.SearchUC
	logger         logger.Logger
}

func NewProductHandler(productUsecase usecase.ProductUC, searchUsecase usecase.SearchUC, logger logger.Logger) *ProductHandler {
	return &ProductHandler{
		productUsecase: productUsecase,
		searchUsecase:  searchUsecase,
		logger:         logger,
	}
}

// registerNewProduct
//
//	@Summary		Регистрация нового товара
//	@Description	Создает новый товар в каталоге с репрезентативным изображением
//	@Tags			products
//	@Accept			multipart/form-data
//	@Produce		json
//	@Param			name		formData	string			true	"Название товара"
//	@Param			category	formData	string			true	"Категория"
//	@Param			price		formData	number			true	"Цена"
//	@Param			image		formData	file			true	"Изображение товара"
//	@Success		201			{object}	map[string]interface{}	"Успешное создание"
//	@Failure		400			{object}	ErrorResponse	"Ошибка валидации"
//	@Router			/products [post]
func (p *ProductHandler) registerNewProduct(w http.ResponseWriter, r *http.Request) {
	const (
		maxTotalRequestSize = 32 << 20
		maxMemory           = 32 << 20
	)

	r.Body = http.MaxBytesReader(w, r.Body, maxTotalRequestSize)

	if err := ensureMultipartForm(r, maxMemory); err != nil {
		p.logger.Warnf("%d %s: %s", http.StatusBadRequest, e.ErrStatusBadRequest.Error(), r.Header.Get("Content-Type"))
		WriteError(w, err)
		return
	}

	prMeta, err := parseProductForm(r)
	if err != nil {
		p.logger.Warnf("%d %s: %s", http.StatusBadRequest, e.ErrStatusBadRequest.Error(), err.Error())
		WriteError(w, err)
		return
	}

	image, err := parseImage(r.MultipartForm.File["image"])
	if err != nil {
		p.logger.Warnf("%d %s: %s", http.StatusBadRequest, e.ErrStatusBadRequest.Error(), err.Error())
		WriteError(w, err)
		return
	}

	err = p.productUsecase.RegisterNewProduct(r.Context(), usecase.NewAddNewProductReq(prMeta.Name, prMeta.CategoryName, prMeta.Price, image))
	if err != nil {
		p.logger.Warnf("%s", err.Error())
		WriteError(w, err)
		return
	}

	// Каталог изменился, индекс визуального поиска перестроится лениво
	if err := p.searchUsecase.Invalidate(r.Context()); err != nil {
		p.logger.Warnf("failed to invalidate search index: %s", err.Error())
	}

	WriteSuccess(w, http.StatusCreated, map[string]interface{}{
		"created": true,
	})
}

// getProductsInfo
//
//	@Summary		Информация о товарах
//	@Description	Возвращает карточки товаров по списку идентификаторов
//	@Tags			products
//	@Produce		json
//	@Param			ids	query		string			true	"Идентификаторы через запятую"
//	@Success		200	{object}	map[string]interface{}
//	@Failure		400	{object}	ErrorResponse
//	@Router			/products [get]
func (p *ProductHandler) getProductsInfo(w http.ResponseWriter, r *http.Request) {
	ids, err := parseIDs(r.URL.Query().Get("ids"))
	if err != nil {
		p.logger.Warnf("%d %s: %s", http.StatusBadRequest, e.ErrStatusBadRequest.Error(), err.Error())
		WriteError(w, err)
		return
	}

	res, err := p.productUsecase.GetProductsInfo(r.Context(), &usecase.GetProductsReq{IDs: ids})
	if err != nil {
		p.logger.Warnf("%s", err.Error())
		WriteError(w, err)
		return
	}

	WriteSuccess(w, http.StatusOK, res)
}
