package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"storefront-service/internal/models"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

type Store struct {
	db *sqlx.DB
}

// NewStore creates a new database store
func NewStore(databaseURL string) (*Store, error) {
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// GetProductByID retrieves a product by ID
func (s *Store) GetProductByID(ctx context.Context, id int64) (*models.Product, error) {
	var product models.Product
	err := s.db.GetContext(ctx, &product, "SELECT * FROM products WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, &models.NotFoundError{Resource: "product", ID: id}
	}
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// GetVariantByID retrieves a variant by ID, scoped to its parent product.
func (s *Store) GetVariantByID(ctx context.Context, productID, variantID int64) (*models.ProductVariant, error) {
	var variant models.ProductVariant
	err := s.db.GetContext(ctx, &variant,
		"SELECT * FROM product_variants WHERE id = $1 AND product_id = $2", variantID, productID)
	if err == sql.ErrNoRows {
		return nil, &models.NotFoundError{Resource: "variant", ID: variantID}
	}
	if err != nil {
		return nil, err
	}
	return &variant, nil
}

// GetProducts retrieves all products, optionally filtered by category.
func (s *Store) GetProducts(ctx context.Context, categoryID *int64) ([]models.Product, error) {
	var products []models.Product
	if categoryID != nil {
		err := s.db.SelectContext(ctx, &products,
			"SELECT * FROM products WHERE category_id = $1 ORDER BY id", *categoryID)
		return products, err
	}
	err := s.db.SelectContext(ctx, &products, "SELECT * FROM products ORDER BY id")
	return products, err
}

// GetVariantsByProductID retrieves all variants of a product.
func (s *Store) GetVariantsByProductID(ctx context.Context, productID int64) ([]models.ProductVariant, error) {
	var variants []models.ProductVariant
	err := s.db.SelectContext(ctx, &variants,
		"SELECT * FROM product_variants WHERE product_id = $1 ORDER BY id", productID)
	return variants, err
}

// GetCategories retrieves all categories
func (s *Store) GetCategories(ctx context.Context) ([]models.Category, error) {
	var categories []models.Category
	err := s.db.SelectContext(ctx, &categories, "SELECT * FROM categories ORDER BY id")
	return categories, err
}

// GetBrands retrieves all brands
func (s *Store) GetBrands(ctx context.Context) ([]models.Brand, error) {
	var brands []models.Brand
	err := s.db.SelectContext(ctx, &brands, "SELECT * FROM brands ORDER BY id")
	return brands, err
}

// CreateProduct inserts a product row.
func (s *Store) CreateProduct(ctx context.Context, p *models.Product) error {
	query := `
		INSERT INTO products (name, description, price, stock, category_id, brand_id, image_url)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at`

	return s.db.GetContext(ctx, p, query,
		p.Name, p.Description, p.Price, p.Stock, p.CategoryID, p.BrandID, p.ImageURL)
}

// UpdateProduct updates a product row.
func (s *Store) UpdateProduct(ctx context.Context, p *models.Product) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE products
		SET name = $1, description = $2, price = $3, stock = $4,
		    category_id = $5, brand_id = $6, image_url = $7, updated_at = NOW()
		WHERE id = $8`,
		p.Name, p.Description, p.Price, p.Stock, p.CategoryID, p.BrandID, p.ImageURL, p.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &models.NotFoundError{Resource: "product", ID: p.ID}
	}
	return nil
}

// DeleteProduct deletes a product and its variants.
func (s *Store) DeleteProduct(ctx context.Context, id int64) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM product_variants WHERE product_id = $1", id); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, "DELETE FROM products WHERE id = $1", id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &models.NotFoundError{Resource: "product", ID: id}
	}
	return tx.Commit()
}

// CreateVariant inserts a variant. A default variant demotes any existing
// default of the same product, keeping at most one default per product.
func (s *Store) CreateVariant(ctx context.Context, v *models.ProductVariant) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if v.IsDefault {
		if _, err := tx.ExecContext(ctx,
			"UPDATE product_variants SET is_default = FALSE, updated_at = NOW() WHERE product_id = $1 AND is_default",
			v.ProductID); err != nil {
			return err
		}
	}

	query := `
		INSERT INTO product_variants (product_id, price, stock, sku, variant_values, is_default)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at`

	if err := tx.GetContext(ctx, v, query,
		v.ProductID, v.Price, v.Stock, v.SKU, v.Values, v.IsDefault); err != nil {
		return err
	}
	return tx.Commit()
}

// UpdateVariant updates a variant row, preserving the single-default invariant.
func (s *Store) UpdateVariant(ctx context.Context, v *models.ProductVariant) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if v.IsDefault {
		if _, err := tx.ExecContext(ctx,
			"UPDATE product_variants SET is_default = FALSE, updated_at = NOW() WHERE product_id = $1 AND is_default AND id <> $2",
			v.ProductID, v.ID); err != nil {
			return err
		}
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE product_variants
		SET price = $1, stock = $2, sku = $3, variant_values = $4, is_default = $5, updated_at = NOW()
		WHERE id = $6 AND product_id = $7`,
		v.Price, v.Stock, v.SKU, v.Values, v.IsDefault, v.ID, v.ProductID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &models.NotFoundError{Resource: "variant", ID: v.ID}
	}
	return tx.Commit()
}

// DeleteVariant deletes a variant row.
func (s *Store) DeleteVariant(ctx context.Context, productID, variantID int64) error {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM product_variants WHERE id = $1 AND product_id = $2", variantID, productID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &models.NotFoundError{Resource: "variant", ID: variantID}
	}
	return nil
}

// CreateCategory inserts a category row.
func (s *Store) CreateCategory(ctx context.Context, c *models.Category) error {
	query := `
		INSERT INTO categories (name, slug)
		VALUES ($1, $2)
		RETURNING id, created_at, updated_at`

	return s.db.GetContext(ctx, c, query, c.Name, c.Slug)
}

// UpdateCategory updates a category row.
func (s *Store) UpdateCategory(ctx context.Context, c *models.Category) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE categories SET name = $1, slug = $2, updated_at = NOW() WHERE id = $3",
		c.Name, c.Slug, c.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &models.NotFoundError{Resource: "category", ID: c.ID}
	}
	return nil
}

// DeleteCategory deletes a category row.
func (s *Store) DeleteCategory(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM categories WHERE id = $1", id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &models.NotFoundError{Resource: "category", ID: id}
	}
	return nil
}

// CreateBrand inserts a brand row.
func (s *Store) CreateBrand(ctx context.Context, b *models.Brand) error {
	query := `
		INSERT INTO brands (name)
		VALUES ($1)
		RETURNING id, created_at, updated_at`

	return s.db.GetContext(ctx, b, query, b.Name)
}

// UpdateBrand updates a brand row.
func (s *Store) UpdateBrand(ctx context.Context, b *models.Brand) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE brands SET name = $1, updated_at = NOW() WHERE id = $2", b.Name, b.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &models.NotFoundError{Resource: "brand", ID: b.ID}
	}
	return nil
}

// DeleteBrand deletes a brand, refusing while products still reference it.
func (s *Store) DeleteBrand(ctx context.Context, id int64) error {
	var count int
	if err := s.db.GetContext(ctx, &count,
		"SELECT COUNT(*) FROM products WHERE brand_id = $1", id); err != nil {
		return err
	}
	if count > 0 {
		return &models.BrandInUseError{BrandID: id, ProductCount: count}
	}

	res, err := s.db.ExecContext(ctx, "DELETE FROM brands WHERE id = $1", id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &models.NotFoundError{Resource: "brand", ID: id}
	}
	return nil
}
