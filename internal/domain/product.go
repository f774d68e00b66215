package domain

import "time"

// Product описывает продукт каталога.
// Репрезентативное изображение хранится либо в S3 (ImageKey),
// либо по внешнему URL (ImageURL) — наследие скрейпленного каталога.
type Product struct {
	ID         int64
	Name       string
	Price      int64 // Цена хранится в копейках
	CategoryID int64
	ImageKey   string
	ImageURL   string
	CreatedAt  time.Time
	UpdatedAt  *time.Time
	IsArchived bool
}

func NewProduct(name string, price int64, categoryID int64, imageKey string, imageURL string) *Product {
	return &Product{
		Name:       name,
		Price:      price,
		CategoryID: categoryID,
		ImageKey:   imageKey,
		ImageURL:   imageURL,
	}
}
