package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"path"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gosimple/slug"
	"go.uber.org/zap"

	"github.com/noah-isme/tutorhub-api/internal/models"
	"github.com/noah-isme/tutorhub-api/internal/policy"
	"github.com/noah-isme/tutorhub-api/pkg/cache"
	"github.com/noah-isme/tutorhub-api/pkg/config"
	"github.com/noah-isme/tutorhub-api/pkg/database"
	appErrors "github.com/noah-isme/tutorhub-api/pkg/errors"
)


var imageExtensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
	"image/gif":  ".gif",
}

type productRepository interface {
	List(ctx context.Context, filter models.ProductFilter) ([]models.Product, int, error)
	FindByID(ctx context.Context, id string) (*models.Product, error)
	Create(ctx context.Context, product *models.Product) error
	Update(ctx context.Context, product *models.Product) error
	SetImagePath(ctx context.Context, id, path string) error
}

type mediaStorage interface {
	SaveStream(filename string, r io.Reader) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
}

type mediaSigner interface {
	Generate(ownerID, relPath string) (string, time.Time, error)
	Parse(token string, allowExpired bool) (ownerID, relPath string, expiresAt time.Time, err error)
}

// ProductConfig tunes catalog caching and image handling.
type ProductConfig struct {
	APIPrefix string
	Media     config.MediaConfig
}

// ImageUpload describes an incoming product image.
type ImageUpload struct {
	ContentType string
	Size        int64
	Body        io.Reader
}

// MediaFile is an opened stored file ready to stream.
type MediaFile struct {
	File        *os.File
	ContentType string
	Name        string
}

type productListPayload struct {
	Items []models.Product `json:"items"`
	Total int              `json:"total"`
}

// ProductService manages the catalog and product images.
type ProductService struct {
	repo      productRepository
	storage   mediaStorage
	signer    mediaSigner
	audit     auditWriter
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger
	cfg       ProductConfig
}

// NewProductService constructs a ProductService.
func NewProductService(repo productRepository, storage mediaStorage, signer mediaSigner, audit auditWriter, cacheSvc *CacheService, validate *validator.Validate, logger *zap.Logger, cfg ProductConfig) *ProductService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.APIPrefix == "" {
		cfg.APIPrefix = "/api/v1"
	}
	if cfg.Media.MaxFileSizeBytes <= 0 {
		cfg.Media.MaxFileSizeBytes = 5 * 1024 * 1024
	}
	if len(cfg.Media.AllowedMIMEs) == 0 {
		cfg.Media.AllowedMIMEs = []string{"image/jpeg", "image/png", "image/webp"}
	}
	return &ProductService{
		repo:      repo,
		storage:   storage,
		signer:    signer,
		audit:     audit,
		cache:     cacheSvc,
		validator: validate,
		logger:    logger,
		cfg:       cfg,
	}
}

// List returns a catalog page. The bool reports whether the page came from cache.
func (s *ProductService) List(ctx context.Context, filter models.ProductFilter) ([]models.Product, *models.Pagination, bool, error) {
	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 || filter.PageSize > 100 {
		filter.PageSize = 20
	}
	filter.Query = strings.TrimSpace(filter.Query)
	key := cache.CatalogKey(filter.Query, filter.Page, filter.PageSize)

	var cached productListPayload
	if s.cache != nil {
		if hit, err := s.cache.Get(ctx, key, &cached); err == nil && hit {
			return cached.Items, models.NewPagination(filter.Page, filter.PageSize, cached.Total), true, nil
		}
	}

	items, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list products")
	}
	if s.cache != nil {
		_ = s.cache.Set(ctx, key, productListPayload{Items: items, Total: total})
	}
	return items, models.NewPagination(filter.Page, filter.PageSize, total), false, nil
}

// Get returns a single product.
func (s *ProductService) Get(ctx context.Context, id string) (*models.Product, error) {
	product, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "product not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load product")
	}
	return product, nil
}

// Create adds a product. The slug is derived from the name.
func (s *ProductService) Create(ctx context.Context, actor policy.Subject, req models.ProductRequest, meta models.RequestMeta) (*models.Product, error) {
	if err := s.authorize(actor); err != nil {
		return nil, err
	}
	if err := s.validate(&req); err != nil {
		return nil, err
	}
	product := &models.Product{}
	applyProductRequest(product, req)
	if err := s.repo.Create(ctx, product); err != nil {
		return nil, mapProductWriteError(err)
	}
	s.invalidate(ctx)
	s.record(ctx, actor.ID, product, meta)
	return product, nil
}

// Update rewrites a product's fields, re-deriving the slug.
func (s *ProductService) Update(ctx context.Context, actor policy.Subject, id string, req models.ProductRequest, meta models.RequestMeta) (*models.Product, error) {
	if err := s.authorize(actor); err != nil {
		return nil, err
	}
	if err := s.validate(&req); err != nil {
		return nil, err
	}
	product, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	applyProductRequest(product, req)
	if err := s.repo.Update(ctx, product); err != nil {
		return nil, mapProductWriteError(err)
	}
	s.invalidate(ctx)
	s.record(ctx, actor.ID, product, meta)
	return product, nil
}

// UploadImage stores a product image on disk and links it to the product.
func (s *ProductService) UploadImage(ctx context.Context, actor policy.Subject, id string, upload ImageUpload) (*models.Product, error) {
	if err := s.authorize(actor); err != nil {
		return nil, err
	}
	if upload.Size > s.cfg.Media.MaxFileSizeBytes {
		return nil, appErrors.Clone(appErrors.ErrPayloadTooLarge, fmt.Sprintf("image exceeds %d bytes", s.cfg.Media.MaxFileSizeBytes))
	}
	contentType := strings.ToLower(strings.TrimSpace(strings.Split(upload.ContentType, ";")[0]))
	if !s.allowedMIME(contentType) {
		return nil, appErrors.Clone(appErrors.ErrUnsupportedMedia, fmt.Sprintf("content type %q is not allowed", contentType))
	}
	product, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	ext, ok := imageExtensions[contentType]
	if !ok {
		ext = ".bin"
		if exts, _ := mime.ExtensionsByType(contentType); len(exts) > 0 {
			ext = exts[0]
		}
	}
	name := path.Join("products", product.ID+ext)
	stored, err := s.storage.SaveStream(name, io.LimitReader(upload.Body, s.cfg.Media.MaxFileSizeBytes+1))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store image")
	}
	if err := s.repo.SetImagePath(ctx, product.ID, stored); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "product not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save product image")
	}
	if previous := product.ImagePath; previous != nil && *previous != stored {
		if err := s.storage.Delete(*previous); err != nil {
			s.logger.Warn("failed to remove replaced product image", zap.String("path", *previous), zap.Error(err))
		}
	}
	product.ImagePath = &stored
	product.HasImage = true
	s.invalidate(ctx)
	return product, nil
}

// ImageLink returns a signed, expiring download URL for a product image.
func (s *ProductService) ImageLink(ctx context.Context, id string) (*models.ProductImageLink, error) {
	product, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !product.HasImage {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "product has no image")
	}
	token, expiresAt, err := s.signer.Generate(product.ID, *product.ImagePath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign image link")
	}
	url := fmt.Sprintf("%s/media/%s", strings.TrimRight(s.cfg.APIPrefix, "/"), token)
	return &models.ProductImageLink{URL: url, ExpiresAt: expiresAt}, nil
}

// OpenMedia resolves a signed token to the stored file.
func (s *ProductService) OpenMedia(token string) (*MediaFile, error) {
	_, relPath, _, err := s.signer.Parse(token, false)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "media link is invalid or expired")
	}
	file, err := s.storage.Open(relPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "media not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open media")
	}
	contentType := mime.TypeByExtension(path.Ext(relPath))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return &MediaFile{File: file, ContentType: contentType, Name: path.Base(relPath)}, nil
}

func (s *ProductService) authorize(actor policy.Subject) error {
	if !policy.Can(actor, policy.ActionManageProducts, policy.Anything) {
		return appErrors.Clone(appErrors.ErrForbidden, "only managers can manage products")
	}
	return nil
}

func (s *ProductService) validate(req *models.ProductRequest) error {
	req.Name = strings.TrimSpace(req.Name)
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid product payload")
	}
	if slug.Make(req.Name) == "" {
		return appErrors.Clone(appErrors.ErrValidation, "product name must contain letters or digits")
	}
	return nil
}

func (s *ProductService) allowedMIME(contentType string) bool {
	for _, allowed := range s.cfg.Media.AllowedMIMEs {
		if strings.EqualFold(allowed, contentType) {
			return true
		}
	}
	return false
}

func (s *ProductService) invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	_ = s.cache.InvalidateCatalog(ctx)
}

func (s *ProductService) record(ctx context.Context, actorID string, product *models.Product, meta models.RequestMeta) {
	if s.audit == nil {
		return
	}
	payload, _ := json.Marshal(map[string]interface{}{"name": product.Name, "slug": product.Slug, "price": product.Price, "stock": product.Stock})
	if err := s.audit.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     &actorID,
		Action:     models.AuditActionProductWrite,
		Resource:   "products",
		ResourceID: &product.ID,
		NewValues:  payload,
		IPAddress:  meta.IP,
		UserAgent:  meta.UserAgent,
	}); err != nil {
		s.logger.Warn("failed to record product audit log", zap.Error(err))
	}
}

func applyProductRequest(product *models.Product, req models.ProductRequest) {
	product.Name = req.Name
	product.Slug = slug.Make(req.Name)
	product.Description = strings.TrimSpace(req.Description)
	product.Price = req.Price
	product.Stock = req.Stock
}

func mapProductWriteError(err error) error {
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return appErrors.Clone(appErrors.ErrNotFound, "product not found")
	case database.IsUniqueViolation(err, "products_slug_key"):
		return appErrors.Clone(appErrors.ErrConflict, "a product with this name already exists")
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save product")
}
