package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/tutorhub-api/internal/models"
	"github.com/noah-isme/tutorhub-api/pkg/database"
)

const productColumns = `id, name, slug, description, price, stock, image_path, created_at, updated_at`

// ProductRepository persists catalog products.
type ProductRepository struct {
	db *sqlx.DB
}

// NewProductRepository constructs the repository.
func NewProductRepository(db *sqlx.DB) *ProductRepository {
	return &ProductRepository{db: db}
}

// List returns products ordered by name with optional text search.
func (r *ProductRepository) List(ctx context.Context, filter models.ProductFilter) ([]models.Product, int, error) {
	var conditions []string
	var args []interface{}

	if q := strings.TrimSpace(filter.Query); q != "" {
		args = append(args, "%"+q+"%")
		conditions = append(conditions, fmt.Sprintf("(name ILIKE $%d OR description ILIKE $%d)", len(args), len(args)))
	}

	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	page, size := normalisePage(filter.Page, filter.PageSize)
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT %s FROM products%s ORDER BY name ASC LIMIT %d OFFSET %d", productColumns, where, size, offset)
	products := make([]models.Product, 0)
	if err := r.db.SelectContext(ctx, &products, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list products: %w", err)
	}
	for i := range products {
		products[i].HasImage = products[i].ImagePath != nil && *products[i].ImagePath != ""
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM products"+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count products: %w", err)
	}
	return products, total, nil
}

// FindByID returns a product.
func (r *ProductRepository) FindByID(ctx context.Context, id string) (*models.Product, error) {
	query := fmt.Sprintf("SELECT %s FROM products WHERE id = $1", productColumns)
	var product models.Product
	if err := r.db.GetContext(ctx, &product, query, id); err != nil {
		if err == sql.ErrNoRows || database.IsInvalidText(err) {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("find product: %w", err)
	}
	product.HasImage = product.ImagePath != nil && *product.ImagePath != ""
	return &product, nil
}

// Create inserts a product.
func (r *ProductRepository) Create(ctx context.Context, product *models.Product) error {
	if product.ID == "" {
		product.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	product.CreatedAt = now
	product.UpdatedAt = now

	const query = `INSERT INTO products (id, name, slug, description, price, stock, image_path, created_at, updated_at)
VALUES (:id, :name, :slug, :description, :price, :stock, :image_path, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, product); err != nil {
		return fmt.Errorf("create product: %w", err)
	}
	return nil
}

// Update rewrites the editable fields of a product.
func (r *ProductRepository) Update(ctx context.Context, product *models.Product) error {
	product.UpdatedAt = time.Now().UTC()
	const query = `UPDATE products SET name = :name, slug = :slug, description = :description, price = :price, stock = :stock, updated_at = :updated_at WHERE id = :id`
	res, err := r.db.NamedExecContext(ctx, query, product)
	if err != nil {
		return fmt.Errorf("update product: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// SetImagePath stores the storage key of a product image.
func (r *ProductRepository) SetImagePath(ctx context.Context, id, path string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE products SET image_path = $2, updated_at = $3 WHERE id = $1`, id, path, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("set product image: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
