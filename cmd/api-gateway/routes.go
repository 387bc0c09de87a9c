package main

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/noah-isme/tutorhub-api/internal/handler"
	"github.com/noah-isme/tutorhub-api/internal/middleware"
	"github.com/noah-isme/tutorhub-api/internal/models"
	"github.com/noah-isme/tutorhub-api/pkg/config"
)

type routeDeps struct {
	auth        *handler.AuthHandler
	users       *handler.UserHandler
	skills      *handler.SkillHandler
	lessons     *handler.LessonHandler
	enrollments *handler.EnrollmentHandler
	products    *handler.ProductHandler
	cart        *handler.CartHandler
	ops         *handler.MetricsHandler

	tokens middleware.TokenValidator
	carts  middleware.CartProvider
	audit  middleware.AuditWriter
	logger *zap.Logger
}

func registerRoutes(r *gin.Engine, cfg *config.Config, deps routeDeps) {
	r.GET("/health", deps.ops.Health)
	r.GET("/ready", deps.ops.Ready)
	r.GET("/metrics", deps.ops.Prometheus)
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	auth.POST("/register", deps.auth.Register)
	auth.POST("/login", deps.auth.Login)
	auth.POST("/refresh", deps.auth.Refresh)

	// Media links carry their own signature.
	api.GET("/media/:token", deps.products.Media)

	secured := api.Group("")
	secured.Use(middleware.JWT(deps.tokens), middleware.EnsureCart(deps.carts, deps.logger))

	secured.POST("/auth/logout", deps.auth.Logout)
	secured.GET("/auth/me", deps.auth.Me)

	manager := middleware.RBAC(models.RoleManager)
	audit := func(action, resource string) gin.HandlerFunc {
		return middleware.Audit(deps.audit, deps.logger, action, resource)
	}

	secured.GET("/skills", deps.skills.List)
	secured.POST("/skills", manager, audit("SKILL_CREATE", "skills"), deps.skills.Create)
	secured.PUT("/skills/:id", manager, audit("SKILL_UPDATE", "skills"), deps.skills.Update)

	users := secured.Group("/users", manager)
	users.GET("", deps.users.List)
	users.POST("", deps.users.Create)
	users.GET("/:id", deps.users.Get)
	users.PUT("/:id", deps.users.Update)

	secured.GET("/teachers/:id/lessons", manager, deps.lessons.TeacherLessons)

	lessons := secured.Group("/lessons")
	lessons.GET("", deps.lessons.List)
	lessons.POST("", deps.lessons.Create)
	lessons.GET("/available", deps.lessons.Available)
	lessons.GET("/:id", deps.lessons.Get)
	lessons.PUT("/:id", deps.lessons.Update)
	lessons.DELETE("/:id", deps.lessons.Delete)
	lessons.GET("/:id/schedule/export", audit("SCHEDULE_EXPORT", "lessons"), deps.lessons.ExportSchedule)
	lessons.GET("/:id/enrollments", deps.enrollments.ListForLesson)
	lessons.POST("/:id/enrollments", deps.enrollments.Request)

	secured.POST("/enrollments/:id/:action", deps.enrollments.Decide)

	secured.GET("/dashboard/teacher", deps.lessons.TeacherDashboard)
	secured.GET("/dashboard/student", deps.lessons.StudentDashboard)

	products := secured.Group("/products")
	products.GET("", deps.products.List)
	products.GET("/:id", deps.products.Get)
	products.GET("/:id/image", deps.products.ImageLink)
	products.POST("", manager, deps.products.Create)
	products.PUT("/:id", manager, deps.products.Update)
	products.POST("/:id/image", manager, audit("PRODUCT_IMAGE_UPLOAD", "products"), deps.products.UploadImage)

	secured.GET("/cart", deps.cart.Detail)
	secured.POST("/cart/items/:productId", deps.cart.Add)
	secured.DELETE("/cart/items/:itemId", deps.cart.Remove)
	secured.GET("/checkout", deps.cart.Summary)
	secured.POST("/checkout", deps.cart.Checkout)
}
