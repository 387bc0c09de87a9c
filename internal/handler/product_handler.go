package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/tutorhub-api/internal/models"
	"github.com/noah-isme/tutorhub-api/internal/policy"
	"github.com/noah-isme/tutorhub-api/internal/service"
	"github.com/noah-isme/tutorhub-api/pkg/cache"
	appErrors "github.com/noah-isme/tutorhub-api/pkg/errors"
	"github.com/noah-isme/tutorhub-api/pkg/response"
)

type productService interface {
	List(ctx context.Context, filter models.ProductFilter) ([]models.Product, *models.Pagination, bool, error)
	Get(ctx context.Context, id string) (*models.Product, error)
	Create(ctx context.Context, actor policy.Subject, req models.ProductRequest, meta models.RequestMeta) (*models.Product, error)
	Update(ctx context.Context, actor policy.Subject, id string, req models.ProductRequest, meta models.RequestMeta) (*models.Product, error)
	UploadImage(ctx context.Context, actor policy.Subject, id string, upload service.ImageUpload) (*models.Product, error)
	ImageLink(ctx context.Context, id string) (*models.ProductImageLink, error)
	OpenMedia(token string) (*service.MediaFile, error)
}

// ProductHandler exposes the product catalog and product media.
type ProductHandler struct {
	service productService
}

// NewProductHandler constructs the handler.
func NewProductHandler(svc productService) *ProductHandler {
	return &ProductHandler{service: svc}
}

// List godoc
// @Summary List products
// @Tags Products
// @Produce json
// @Param query query string false "Matches name or description"
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /products [get]
func (h *ProductHandler) List(c *gin.Context) {
	filter := models.ProductFilter{
		Query:    c.Query("query"),
		Page:     queryInt(c, "page"),
		PageSize: queryInt(c, "page_size"),
	}
	items, pagination, hit, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, pagination, cacheMeta(c, cache.FamilyCatalog, hit))
}

// Get godoc
// @Summary Product detail
// @Tags Products
// @Produce json
// @Param id path string true "Product ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /products/{id} [get]
func (h *ProductHandler) Get(c *gin.Context) {
	product, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, product, nil)
}

// Create godoc
// @Summary Create product
// @Tags Products
// @Accept json
// @Produce json
// @Param payload body models.ProductRequest true "Product"
// @Success 201 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Security BearerAuth
// @Router /products [post]
func (h *ProductHandler) Create(c *gin.Context) {
	actor, ok := subjectFromContext(c)
	if !ok {
		return
	}
	var req models.ProductRequest
	if !bindJSON(c, &req) {
		return
	}
	product, err := h.service.Create(c.Request.Context(), actor, req, requestMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, product)
}

// Update godoc
// @Summary Update product
// @Tags Products
// @Accept json
// @Produce json
// @Param id path string true "Product ID"
// @Param payload body models.ProductRequest true "Product"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Security BearerAuth
// @Router /products/{id} [put]
func (h *ProductHandler) Update(c *gin.Context) {
	actor, ok := subjectFromContext(c)
	if !ok {
		return
	}
	var req models.ProductRequest
	if !bindJSON(c, &req) {
		return
	}
	product, err := h.service.Update(c.Request.Context(), actor, c.Param("id"), req, requestMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, product, nil)
}

// UploadImage godoc
// @Summary Upload product image
// @Tags Products
// @Accept multipart/form-data
// @Produce json
// @Param id path string true "Product ID"
// @Param file formData file true "Image"
// @Success 200 {object} response.Envelope
// @Failure 413 {object} response.Envelope
// @Failure 415 {object} response.Envelope
// @Security BearerAuth
// @Router /products/{id}/image [post]
func (h *ProductHandler) UploadImage(c *gin.Context) {
	actor, ok := subjectFromContext(c)
	if !ok {
		return
	}
	header, err := c.FormFile("file")
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "file is required"))
		return
	}
	file, err := header.Open()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "unable to read upload"))
		return
	}
	defer file.Close() //nolint:errcheck

	contentType := header.Header.Get("Content-Type")
	if contentType == "" || strings.HasPrefix(contentType, "application/octet-stream") {
		sniff := make([]byte, 512)
		n, _ := file.Read(sniff)
		contentType = http.DetectContentType(sniff[:n])
		if _, err := file.Seek(0, 0); err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "unable to read upload"))
			return
		}
	}

	product, err := h.service.UploadImage(c.Request.Context(), actor, c.Param("id"), service.ImageUpload{
		ContentType: contentType,
		Size:        header.Size,
		Body:        file,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, product, nil)
}

// ImageLink godoc
// @Summary Signed product image URL
// @Tags Products
// @Produce json
// @Param id path string true "Product ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /products/{id}/image [get]
func (h *ProductHandler) ImageLink(c *gin.Context) {
	link, err := h.service.ImageLink(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, link, nil)
}

// Media godoc
// @Summary Download media by signed token
// @Tags Products
// @Produce octet-stream
// @Param token path string true "Signed token"
// @Success 200 {file} file
// @Failure 404 {object} response.Envelope
// @Router /media/{token} [get]
func (h *ProductHandler) Media(c *gin.Context) {
	media, err := h.service.OpenMedia(c.Param("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	defer media.File.Close() //nolint:errcheck

	info, err := media.File.Stat()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read media"))
		return
	}
	c.DataFromReader(http.StatusOK, info.Size(), media.ContentType, media.File, map[string]string{
		"Cache-Control": "private, max-age=300",
	})
}
