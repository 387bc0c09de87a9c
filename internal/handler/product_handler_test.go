package handler

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/tutorhub-api/internal/middleware"
	"github.com/noah-isme/tutorhub-api/internal/models"
	"github.com/noah-isme/tutorhub-api/internal/policy"
	"github.com/noah-isme/tutorhub-api/internal/service"
	appErrors "github.com/noah-isme/tutorhub-api/pkg/errors"
)

var (
	managerClaims = &models.JWTClaims{UserID: "manager-1", Username: "carol", Role: models.RoleManager}
	pngImage      = append([]byte("\x89PNG\r\n\x1a\n"), bytes.Repeat([]byte{0}, 32)...)
)

type fakeProductSrv struct {
	listHit   bool
	uploadErr error

	uploaded  service.ImageUpload
	body      []byte
	productID string
	actor     policy.Subject
}

func (f *fakeProductSrv) List(context.Context, models.ProductFilter) ([]models.Product, *models.Pagination, bool, error) {
	return []models.Product{{ID: "p1", Name: "Metronome"}}, models.NewPagination(1, 20, 1), f.listHit, nil
}

func (f *fakeProductSrv) Get(_ context.Context, id string) (*models.Product, error) {
	if id != "p1" {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "product not found")
	}
	return &models.Product{ID: "p1", Name: "Metronome"}, nil
}

func (f *fakeProductSrv) Create(_ context.Context, _ policy.Subject, req models.ProductRequest, _ models.RequestMeta) (*models.Product, error) {
	return &models.Product{ID: "p2", Name: req.Name}, nil
}

func (f *fakeProductSrv) Update(_ context.Context, _ policy.Subject, id string, req models.ProductRequest, _ models.RequestMeta) (*models.Product, error) {
	return &models.Product{ID: id, Name: req.Name}, nil
}

func (f *fakeProductSrv) UploadImage(_ context.Context, actor policy.Subject, id string, upload service.ImageUpload) (*models.Product, error) {
	f.actor = actor
	f.productID = id
	f.uploaded = upload
	body, err := io.ReadAll(upload.Body)
	if err != nil {
		return nil, err
	}
	f.body = body
	if f.uploadErr != nil {
		return nil, f.uploadErr
	}
	return &models.Product{ID: id, Name: "Metronome", HasImage: true}, nil
}

func (f *fakeProductSrv) ImageLink(context.Context, string) (*models.ProductImageLink, error) {
	return &models.ProductImageLink{URL: "/api/v1/media/token"}, nil
}

func (f *fakeProductSrv) OpenMedia(string) (*service.MediaFile, error) {
	return nil, appErrors.Clone(appErrors.ErrNotFound, "media not found")
}

// uploadContext builds a multipart request with one "file" part. An empty contentType leaves
// the part header to multipart's application/octet-stream default.
func uploadContext(t *testing.T, claims *models.JWTClaims, contentType string, payload []byte) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	var (
		part io.Writer
		err  error
	)
	if contentType == "" {
		part, err = writer.CreateFormFile("file", "metronome.bin")
	} else {
		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition", `form-data; name="file"; filename="metronome"`)
		header.Set("Content-Type", contentType)
		part, err = writer.CreatePart(header)
	}
	require.NoError(t, err)
	_, err = part.Write(payload)
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	c, rec := newTestContext(http.MethodPost, "/products/p1/image", claims)
	c.Request, _ = http.NewRequest(http.MethodPost, "/products/p1/image", &buf)
	c.Request.Header.Set("Content-Type", writer.FormDataContentType())
	c.Params = gin.Params{{Key: "id", Value: "p1"}}
	return c, rec
}

func TestProductHandlerUploadImageSniffsGenericContentType(t *testing.T) {
	srv := &fakeProductSrv{}
	handler := NewProductHandler(srv)

	c, rec := uploadContext(t, managerClaims, "", pngImage)
	handler.UploadImage(c)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", srv.uploaded.ContentType)
	assert.Equal(t, int64(len(pngImage)), srv.uploaded.Size)
	assert.Equal(t, pngImage, srv.body, "body is rewound after sniffing")
	assert.Equal(t, "p1", srv.productID)
	assert.Equal(t, "manager-1", srv.actor.ID)
	assert.Equal(t, true, decodeEnvelope(t, rec).Data["has_image"])
}

func TestProductHandlerUploadImageKeepsDeclaredContentType(t *testing.T) {
	srv := &fakeProductSrv{}
	handler := NewProductHandler(srv)

	c, rec := uploadContext(t, managerClaims, "image/jpeg", pngImage)
	handler.UploadImage(c)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/jpeg", srv.uploaded.ContentType)
}

func TestProductHandlerUploadImageMapsServiceErrors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"too large", appErrors.Clone(appErrors.ErrPayloadTooLarge, "image exceeds 16 bytes"), http.StatusRequestEntityTooLarge, appErrors.ErrPayloadTooLarge.Code},
		{"unsupported", appErrors.Clone(appErrors.ErrUnsupportedMedia, `content type "text/plain" is not allowed`), http.StatusUnsupportedMediaType, appErrors.ErrUnsupportedMedia.Code},
		{"missing product", appErrors.Clone(appErrors.ErrNotFound, "product not found"), http.StatusNotFound, appErrors.ErrNotFound.Code},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := NewProductHandler(&fakeProductSrv{uploadErr: tt.err})

			c, rec := uploadContext(t, managerClaims, "", pngImage)
			handler.UploadImage(c)

			assert.Equal(t, tt.status, rec.Code)
			envelope := decodeEnvelope(t, rec)
			require.NotNil(t, envelope.Error)
			assert.Equal(t, tt.code, envelope.Error.Code)
		})
	}
}

func TestProductHandlerUploadImageRequiresFile(t *testing.T) {
	srv := &fakeProductSrv{}
	handler := NewProductHandler(srv)

	c, rec := newTestContext(http.MethodPost, "/products/p1/image", managerClaims)
	c.Params = gin.Params{{Key: "id", Value: "p1"}}
	handler.UploadImage(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, srv.productID)

	c, rec = uploadContext(t, nil, "", pngImage)
	handler.UploadImage(c)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestProductHandlerListReportsCatalogCache(t *testing.T) {
	handler := NewProductHandler(&fakeProductSrv{listHit: true})

	c, rec := newTestContext(http.MethodGet, "/products?query=metro", studentClaims)
	middleware.WithResponseMeta()(c)
	handler.List(c)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "HIT", rec.Header().Get(middleware.CacheHeader))
	envelope := decodeEnvelope(t, rec)
	assert.Equal(t, "catalog", envelope.Meta["cache"])
	assert.Equal(t, true, envelope.Meta["cache_hit"])
}

func TestProductHandlerGetNotFound(t *testing.T) {
	handler := NewProductHandler(&fakeProductSrv{})

	c, rec := newTestContext(http.MethodGet, "/products/nope", studentClaims)
	c.Params = gin.Params{{Key: "id", Value: "nope"}}
	handler.Get(c)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
