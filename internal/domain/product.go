package domain

import "time"

type Product struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Price       int64     `json:"price"`
	Category    string    `json:"category"`
	Tags        []string  `json:"tags"`
	Stock       int       `json:"stock"`
	ImageRef    string    `json:"image_ref"`
	CreatedAt   time.Time `json:"created_at"`
}

// LineItem builds a cart line for the product in the given size.
func (p Product) LineItem(size string) CartLineItem {
	return CartLineItem{
		ProductID: p.ID,
		Name:      p.Name,
		UnitPrice: p.Price,
		Size:      size,
		ImageRef:  p.ImageRef,
	}
}
