package service

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/tutorhub-api/internal/models"
	"github.com/noah-isme/tutorhub-api/pkg/config"
	appErrors "github.com/noah-isme/tutorhub-api/pkg/errors"
	"github.com/noah-isme/tutorhub-api/pkg/storage"
)

type mockProductRepo struct {
	products  map[string]*models.Product
	listCalls int
	seq       int
}

func newMockProductRepo() *mockProductRepo {
	return &mockProductRepo{products: map[string]*models.Product{}}
}

func (m *mockProductRepo) List(ctx context.Context, filter models.ProductFilter) ([]models.Product, int, error) {
	m.listCalls++
	out := make([]models.Product, 0)
	for _, p := range m.products {
		if filter.Query == "" || strings.Contains(strings.ToLower(p.Name), strings.ToLower(filter.Query)) {
			out = append(out, *p)
		}
	}
	return out, len(out), nil
}

func (m *mockProductRepo) FindByID(ctx context.Context, id string) (*models.Product, error) {
	p, ok := m.products[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copy := *p
	copy.HasImage = copy.ImagePath != nil
	return &copy, nil
}

func (m *mockProductRepo) Create(ctx context.Context, product *models.Product) error {
	for _, p := range m.products {
		if p.Slug == product.Slug {
			return &pq.Error{Code: "23505", Constraint: "products_slug_key"}
		}
	}
	m.seq++
	product.ID = fmt.Sprintf("product-%d", m.seq)
	copy := *product
	m.products[product.ID] = &copy
	return nil
}

func (m *mockProductRepo) Update(ctx context.Context, product *models.Product) error {
	if _, ok := m.products[product.ID]; !ok {
		return sql.ErrNoRows
	}
	copy := *product
	m.products[product.ID] = &copy
	return nil
}

func (m *mockProductRepo) SetImagePath(ctx context.Context, id, path string) error {
	p, ok := m.products[id]
	if !ok {
		return sql.ErrNoRows
	}
	p.ImagePath = &path
	return nil
}

type productFixture struct {
	svc   *ProductService
	repo  *mockProductRepo
	cache *stubCacheRepo
	audit *mockAuditWriter
	store *storage.LocalStorage
}

func newProductFixture(t *testing.T) productFixture {
	t.Helper()
	repo := newMockProductRepo()
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	signer := storage.NewSignedURLSigner("test-secret", time.Hour)
	cacheRepo := &stubCacheRepo{}
	cache := NewCacheService(cacheRepo, nil, CacheTTLs{}, zap.NewNop(), true)
	audit := &mockAuditWriter{}
	svc := NewProductService(repo, store, signer, audit, cache, nil, zap.NewNop(), ProductConfig{
		APIPrefix: "/api/v1",
		Media:     config.MediaConfig{MaxFileSizeBytes: 16, AllowedMIMEs: []string{"image/png", "image/jpeg"}},
	})
	return productFixture{svc: svc, repo: repo, cache: cacheRepo, audit: audit, store: store}
}

func TestProductServiceCreateDerivesSlug(t *testing.T) {
	f := newProductFixture(t)

	product, err := f.svc.Create(context.Background(), managerActor, models.ProductRequest{Name: "  Guitar Strings (Nylon) ", Price: 12.5, Stock: 3}, models.RequestMeta{})
	require.NoError(t, err)
	assert.Equal(t, "Guitar Strings (Nylon)", product.Name)
	assert.Equal(t, "guitar-strings-nylon", product.Slug)
	require.Len(t, f.audit.logs, 1)
	assert.Equal(t, models.AuditActionProductWrite, f.audit.logs[0].Action)

	_, err = f.svc.Create(context.Background(), managerActor, models.ProductRequest{Name: "guitar strings nylon", Price: 1}, models.RequestMeta{})
	assert.ErrorIs(t, err, appErrors.ErrConflict)
}

func TestProductServiceWritesRequireManager(t *testing.T) {
	f := newProductFixture(t)

	_, err := f.svc.Create(context.Background(), teacherActor, models.ProductRequest{Name: "Metronome", Price: 20}, models.RequestMeta{})
	assert.ErrorIs(t, err, appErrors.ErrForbidden)

	_, err = f.svc.Create(context.Background(), managerActor, models.ProductRequest{Name: "Metronome", Price: -1}, models.RequestMeta{})
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	_, err = f.svc.Update(context.Background(), managerActor, "missing", models.ProductRequest{Name: "Metronome", Price: 1}, models.RequestMeta{})
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestProductServiceListIsCachedUntilWrite(t *testing.T) {
	f := newProductFixture(t)
	ctx := context.Background()
	_, err := f.svc.Create(ctx, managerActor, models.ProductRequest{Name: "Metronome", Price: 20}, models.RequestMeta{})
	require.NoError(t, err)

	items, pagination, hit, err := f.svc.List(ctx, models.ProductFilter{})
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Len(t, items, 1)
	assert.Equal(t, 1, pagination.TotalCount)

	_, _, hit, err = f.svc.List(ctx, models.ProductFilter{})
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, 1, f.repo.listCalls)

	_, err = f.svc.Create(ctx, managerActor, models.ProductRequest{Name: "Tuner", Price: 15}, models.RequestMeta{})
	require.NoError(t, err)
	assert.Contains(t, f.cache.deleted, "tutorhub:catalog:*")

	items, _, hit, err = f.svc.List(ctx, models.ProductFilter{})
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Len(t, items, 2)
}

func TestProductServiceImageUploadAndDownload(t *testing.T) {
	f := newProductFixture(t)
	ctx := context.Background()
	product, err := f.svc.Create(ctx, managerActor, models.ProductRequest{Name: "Metronome", Price: 20}, models.RequestMeta{})
	require.NoError(t, err)

	_, err = f.svc.ImageLink(ctx, product.ID)
	assert.ErrorIs(t, err, appErrors.ErrNotFound)

	updated, err := f.svc.UploadImage(ctx, managerActor, product.ID, ImageUpload{ContentType: "image/png", Size: 4, Body: strings.NewReader("\x89PNG")})
	require.NoError(t, err)
	assert.True(t, updated.HasImage)
	assert.Equal(t, "products/"+product.ID+".png", *updated.ImagePath)

	link, err := f.svc.ImageLink(ctx, product.ID)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(link.URL, "/api/v1/media/"))

	media, err := f.svc.OpenMedia(strings.TrimPrefix(link.URL, "/api/v1/media/"))
	require.NoError(t, err)
	defer media.File.Close()
	body, err := io.ReadAll(media.File)
	require.NoError(t, err)
	assert.Equal(t, "\x89PNG", string(body))
	assert.Equal(t, "image/png", media.ContentType)

	_, err = f.svc.OpenMedia("forged.token.value.sig")
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestProductServiceImageUploadChecks(t *testing.T) {
	f := newProductFixture(t)
	ctx := context.Background()
	product, err := f.svc.Create(ctx, managerActor, models.ProductRequest{Name: "Metronome", Price: 20}, models.RequestMeta{})
	require.NoError(t, err)

	_, err = f.svc.UploadImage(ctx, managerActor, product.ID, ImageUpload{ContentType: "application/pdf", Size: 4, Body: strings.NewReader("%PDF")})
	assert.ErrorIs(t, err, appErrors.ErrUnsupportedMedia)

	_, err = f.svc.UploadImage(ctx, managerActor, product.ID, ImageUpload{ContentType: "image/png", Size: 64, Body: strings.NewReader(strings.Repeat("x", 64))})
	assert.ErrorIs(t, err, appErrors.ErrPayloadTooLarge)

	_, err = f.svc.UploadImage(ctx, studentActor, product.ID, ImageUpload{ContentType: "image/png", Size: 4, Body: strings.NewReader("\x89PNG")})
	assert.ErrorIs(t, err, appErrors.ErrForbidden)
}

func TestProductServiceImageReplacementRemovesOldFile(t *testing.T) {
	f := newProductFixture(t)
	ctx := context.Background()
	product, err := f.svc.Create(ctx, managerActor, models.ProductRequest{Name: "Tuner", Price: 15}, models.RequestMeta{})
	require.NoError(t, err)

	first, err := f.svc.UploadImage(ctx, managerActor, product.ID, ImageUpload{ContentType: "image/png", Size: 4, Body: strings.NewReader("\x89PNG")})
	require.NoError(t, err)
	oldPath := *first.ImagePath

	second, err := f.svc.UploadImage(ctx, managerActor, product.ID, ImageUpload{ContentType: "image/jpeg", Size: 3, Body: strings.NewReader("\xff\xd8\xff")})
	require.NoError(t, err)
	assert.Equal(t, "products/"+product.ID+".jpg", *second.ImagePath)

	_, err = f.store.Open(oldPath)
	assert.Error(t, err)
	file, err := f.store.Open(*second.ImagePath)
	require.NoError(t, err)
	file.Close()
}
