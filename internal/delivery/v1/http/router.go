package http

import (
	_ "github.com/smartwear-tech/go-backend/docs" // Импорт сгенерированных файлов
	"github.com/smartwear-tech/go-backend/internal/usecase"
	"github.com/smartwear-tech/go-backend/pkg/logger"
	"github.com/go-chi/chi/v5"
	httpSwagger "github.com/swaggo/http-swagger/v2"
)

type Router struct {
	router *chi.Mux
	logger logger.Logger
}

func NewRouter(router *chi.Mux, logger logger.Logger) *Router {
	return &Router{router: router, logger: logger}
}

func (r *Router) Init(prUC usecase.ProductUC, searchUC usecase.SearchUC) {
	r.router.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("http://localhost:8080/swagger/doc.json"), // ссылка на JSON
	))

	r.router.Route("/api/v1", func(v1 chi.Router) {
		prHandler := NewProductHandler(prUC, searchUC, r.logger)
		registerProductRoutes(v1, prHandler)

		searchHandler := NewSearchHandler(searchUC, r.logger)
		registerSearchRoutes(v1, searchHandler)
	})
}

func registerProductRoutes(router chi.Router, prHandler *ProductHandler) {
	router.Route("/products", func(pr chi.Router) {
		pr.Post("/", prHandler.registerNewProduct)
		pr.Get("/", prHandler.getProductsInfo)
	})
}

func registerSearchRoutes(router chi.Router, searchHandler *SearchHandler) {
	router.Post("/search", searchHandler.search)
	router.Post("/index", searchHandler.buildIndex)
}
