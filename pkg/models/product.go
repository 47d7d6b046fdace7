package models

import "time"

type Product struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Price       float64   `json:"price"`
	Description string    `json:"description"`
	ImageURL    string    `json:"imageURL"`
	CreatedAt   time.Time `json:"createdAt"`
}

type CreateProductRequest struct {
	Title       string   `json:"title"`
	Price       *float64 `json:"price"`
	Description string   `json:"description"`
	ImageURL    string   `json:"imageURL"`
}

type CreateProductResponse struct {
	ID      string `json:"id"`
	Message string `json:"message"`
}
