package server

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/noah-isme/course-catalog-api/internal/handler"
	"github.com/noah-isme/course-catalog-api/internal/middleware"
	"github.com/noah-isme/course-catalog-api/internal/models"
	"github.com/noah-isme/course-catalog-api/internal/service"
	"github.com/noah-isme/course-catalog-api/pkg/config"
	"github.com/noah-isme/course-catalog-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/course-catalog-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/course-catalog-api/pkg/middleware/requestid"
)

// Handlers groups every HTTP handler mounted by the router.
type Handlers struct {
	Courses      *handler.CourseHandler
	Lifecycle    *handler.LifecycleHandler
	Enrollments  *handler.EnrollmentHandler
	Progress     *handler.ProgressHandler
	Reviews      *handler.ReviewHandler
	Media        *handler.MediaHandler
	Certificates *handler.CertificateHandler
	Metrics      *handler.MetricsHandler
}

// Dependencies are the cross-cutting collaborators of the router.
type Dependencies struct {
	Config  *config.Config
	Logger  *zap.Logger
	Tokens  *service.TokenService
	Metrics *service.MetricsService
}

// NewRouter assembles the gin engine with middleware and every route.
func NewRouter(deps Dependencies, h Handlers) *gin.Engine {
	cfg := deps.Config
	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(deps.Logger))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(deps.Metrics))

	r.GET("/health", h.Metrics.Health)
	r.GET("/ready", h.Metrics.Ready)
	r.GET("/metrics", h.Metrics.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	authors := middleware.RequireRoles(models.RoleInstructor, models.RoleAdmin)
	students := middleware.RequireRoles(models.RoleStudent)

	api := r.Group(cfg.APIPrefix)
	viewer := middleware.OptionalJWT(deps.Tokens)
	api.GET("/courses", viewer, h.Courses.List)
	api.GET("/courses/search", viewer, h.Courses.Search)
	api.GET("/courses/:id", viewer, h.Courses.Get)
	api.GET("/courses/:id/reviews", h.Reviews.List)
	api.GET("/media/:token", h.Media.Download)

	secured := api.Group("", middleware.JWT(deps.Tokens))

	secured.POST("/courses", authors, h.Courses.Create)
	secured.POST("/courses/validate", authors, h.Courses.Validate)
	secured.PATCH("/courses/:id", authors, h.Courses.Update)
	secured.DELETE("/courses/:id", authors, h.Courses.Delete)
	secured.POST("/courses/:id/publish", authors, h.Lifecycle.Publish)
	secured.POST("/courses/:id/unpublish", authors, h.Lifecycle.Unpublish)
	secured.POST("/courses/:id/archive", authors, h.Lifecycle.Archive)
	secured.POST("/courses/:id/thumbnail", authors, h.Media.UploadThumbnail)
	secured.POST("/courses/:id/modules/:moduleId/videos", authors, h.Media.UploadVideo)
	secured.GET("/courses/:id/roster", authors, h.Certificates.Roster)

	secured.GET("/courses/:id/enrollment", students, h.Enrollments.Check)
	secured.POST("/courses/:id/enroll", students, h.Enrollments.Enroll)
	secured.POST("/courses/:id/drop", students, h.Enrollments.Drop)
	secured.GET("/me/enrollments", students, h.Enrollments.ListMine)
	secured.PUT("/courses/:id/modules/:moduleId/completion", students, h.Progress.SetModuleCompletion)
	secured.GET("/courses/:id/progress", students, h.Progress.Get)
	secured.PUT("/courses/:id/reviews", students, h.Reviews.Upsert)
	secured.GET("/courses/:id/certificate", students, h.Certificates.Certificate)

	return r
}
