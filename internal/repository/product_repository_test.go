package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/tutorhub-api/internal/models"
)

var productRowColumns = []string{"id", "name", "slug", "description", "price", "stock", "image_path", "created_at", "updated_at"}

func TestProductRepositoryListSearches(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewProductRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows(productRowColumns).
		AddRow("p1", "Chess Set", "chess-set", "Wooden", "49.90", 3, "products/p1.png", now, now).
		AddRow("p2", "Chess Clock", "chess-clock", "Digital", "25.00", 1, nil, now, now)
	mock.ExpectQuery(regexp.QuoteMeta("FROM products WHERE (name ILIKE $1 OR description ILIKE $1) ORDER BY name ASC LIMIT 10 OFFSET 10")).
		WithArgs("%chess%").
		WillReturnRows(rows)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM products WHERE")).
		WithArgs("%chess%").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(12))

	products, total, err := repo.List(context.Background(), models.ProductFilter{Query: "chess", Page: 2, PageSize: 10})
	require.NoError(t, err)
	require.Len(t, products, 2)
	assert.Equal(t, 12, total)
	assert.InDelta(t, 49.90, products[0].Price, 0.001)
	assert.True(t, products[0].HasImage)
	assert.False(t, products[1].HasImage)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProductRepositoryFindByIDNotFound(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewProductRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM products WHERE id = $1")).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByID(context.Background(), "missing")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindByIDMalformedIdentifierIsNotFound(t *testing.T) {
	malformed := &pq.Error{Code: "22P02", Message: `invalid input syntax for type uuid: "abc"`}

	tests := []struct {
		name  string
		query string
		find  func(*sqlx.DB) error
	}{
		{"product", "FROM products WHERE id = $1", func(db *sqlx.DB) error {
			_, err := NewProductRepository(db).FindByID(context.Background(), "abc")
			return err
		}},
		{"lesson", "WHERE l.id = $1", func(db *sqlx.DB) error {
			_, err := NewLessonRepository(db).FindByID(context.Background(), "abc")
			return err
		}},
		{"enrollment", "WHERE e.id = $1", func(db *sqlx.DB) error {
			_, err := NewEnrollmentRepository(db).FindByID(context.Background(), "abc")
			return err
		}},
		{"skill", "FROM skills WHERE id = $1", func(db *sqlx.DB) error {
			_, err := NewSkillRepository(db).FindByID(context.Background(), "abc")
			return err
		}},
		{"user", "FROM users WHERE id = $1", func(db *sqlx.DB) error {
			_, err := NewUserRepository(db).FindByID(context.Background(), "abc")
			return err
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, cleanup := newMock(t)
			defer cleanup()

			mock.ExpectQuery(regexp.QuoteMeta(tt.query)).WithArgs("abc").WillReturnError(malformed)

			assert.ErrorIs(t, tt.find(db), sql.ErrNoRows)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestCartRepositoryRemoveItemMalformedIdentifier(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM cart_items WHERE id = $1 AND cart_id = $2")).
		WithArgs("abc", "cart-1").
		WillReturnError(&pq.Error{Code: "22P02"})

	err := NewCartRepository(db).RemoveItem(context.Background(), "cart-1", "abc")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProductRepositoryCreateAndUpdate(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewProductRepository(db)

	mock.ExpectExec("INSERT INTO products").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("UPDATE products SET name").WillReturnResult(sqlmock.NewResult(0, 0))

	product := &models.Product{Name: "Chess Set", Slug: "chess-set", Price: 10}
	require.NoError(t, repo.Create(context.Background(), product))
	assert.NotEmpty(t, product.ID)

	err := repo.Update(context.Background(), product)
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProductRepositorySetImagePath(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewProductRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE products SET image_path = $2, updated_at = $3 WHERE id = $1")).
		WithArgs("p1", "products/p1.png", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.SetImagePath(context.Background(), "p1", "products/p1.png"))
	assert.NoError(t, mock.ExpectationsWereMet())
}
