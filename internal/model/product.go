package model

import "time"

// Product represents a catalog entry persisted in the `products`
// table. Price must be positive and Stock non-negative; both are
// validated at the service layer before any write.
//
// Fields:
//  ID          – primary key identifier.
//  Name        – human-friendly product name.
//  Description – optional free-text description.
//  Price       – unit price, must be > 0.
//  Stock       – units on hand, must be >= 0.
//  CreatedAt   – creation timestamp.
//  UpdatedAt   – last update timestamp.
type Product struct {
	ID          uint64    `json:"id"`          // products.id
	Name        string    `json:"name"`        // products.name
	Description string    `json:"description"` // products.description
	Price       float64   `json:"price"`       // products.price
	Stock       int       `json:"stock"`       // products.stock
	CreatedAt   time.Time `json:"created_at"`  // products.created_at
	UpdatedAt   time.Time `json:"updated_at"`  // products.updated_at
}
