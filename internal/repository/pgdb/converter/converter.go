//go:generate goverter gen github.com/smartwear-tech/go-backend/internal/repository/pgdb/converter
package converter

import (
	"time"

	"github.com/smartwear-tech/go-backend/internal/domain"
)

// ProductConverter преобразует сущности Product между domain и моделью PostgreSQL.
// goverter:converter
// goverter:extend ConvertTime
// goverter:extend ConvertPointerTime
// goverter:extend ConvertOptionalString
// goverter:extend ConvertStringPointer
type ProductConverter interface {
	ToModel(entity *domain.Product) *ProductModel
	ToEntity(model *ProductModel) *domain.Product
}

// CategoryConverter преобразует сущности Category между domain и моделью PostgreSQL.
// goverter:converter
// goverter:extend ConvertTime
// goverter:extend ConvertPointerTime
type CategoryConverter interface {
	ToModel(entity *domain.Category) *CategoryModel
	ToEntity(model *CategoryModel) *domain.Category
}

func ConvertPointerTime(t *time.Time) *time.Time {
	return t
}

func ConvertTime(t time.Time) time.Time {
	return t
}

// ConvertOptionalString разворачивает nullable-колонку в строку.
func ConvertOptionalString(s *string) string {
	if s == nil {
		return ""
	}

	return *s
}

// ConvertStringPointer сворачивает пустую строку в NULL.
func ConvertStringPointer(s string) *string {
	if s == "" {
		return nil
	}

	return &s
}
