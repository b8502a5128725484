package store

import (
	"context"
	"database/sql"
	"fmt"

	"boutique-api/internal/models"

	"github.com/jmoiron/sqlx"
)

// GetProductByID retrieves a product by ID
func (s *Store) GetProductByID(ctx context.Context, id int64) (*models.Product, error) {
	var product models.Product
	err := s.db.GetContext(ctx, &product, "SELECT * FROM products WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %d", models.ErrProductNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// GetProductsByIDs retrieves multiple products by IDs
func (s *Store) GetProductsByIDs(ctx context.Context, ids []int64) ([]models.Product, error) {
	if len(ids) == 0 {
		return []models.Product{}, nil
	}

	query, args, err := sqlx.In("SELECT * FROM products WHERE id IN (?)", ids)
	if err != nil {
		return nil, err
	}
	query = s.db.Rebind(query)

	var products []models.Product
	err = s.db.SelectContext(ctx, &products, query, args...)
	return products, err
}

// ListProducts retrieves all products ordered by id
func (s *Store) ListProducts(ctx context.Context) ([]models.Product, error) {
	var products []models.Product
	err := s.db.SelectContext(ctx, &products, "SELECT * FROM products ORDER BY id")
	return products, err
}

// GetProductSize retrieves a size row, checking it belongs to the product.
func (s *Store) GetProductSize(ctx context.Context, sizeID, productID int64) (*models.ProductSize, error) {
	var size models.ProductSize
	err := s.db.GetContext(ctx, &size,
		"SELECT * FROM product_sizes WHERE id = $1 AND product_id = $2", sizeID, productID)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: size %d for product %d", models.ErrSizeNotFound, sizeID, productID)
	}
	if err != nil {
		return nil, err
	}
	return &size, nil
}

// GetSizesByProductID retrieves all size variants for a product
func (s *Store) GetSizesByProductID(ctx context.Context, productID int64) ([]models.ProductSize, error) {
	var sizes []models.ProductSize
	err := s.db.SelectContext(ctx, &sizes,
		"SELECT * FROM product_sizes WHERE product_id = $1 ORDER BY id", productID)
	return sizes, err
}

// ListProductSizes retrieves all size rows ordered by product
func (s *Store) ListProductSizes(ctx context.Context) ([]models.ProductSize, error) {
	var sizes []models.ProductSize
	err := s.db.SelectContext(ctx, &sizes,
		"SELECT * FROM product_sizes ORDER BY product_id, id")
	return sizes, err
}

// ListCategories retrieves all categories
func (s *Store) ListCategories(ctx context.Context) ([]models.Category, error) {
	var categories []models.Category
	err := s.db.SelectContext(ctx, &categories, "SELECT * FROM categories ORDER BY id")
	return categories, err
}
