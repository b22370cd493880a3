package server

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/course-catalog-api/internal/handler"
	"github.com/noah-isme/course-catalog-api/internal/models"
	"github.com/noah-isme/course-catalog-api/internal/service"
	"github.com/noah-isme/course-catalog-api/pkg/config"
)

func newTestRouter(t *testing.T, env string) (*gin.Engine, *service.TokenService) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	tokens := service.NewTokenService(service.TokenConfig{Secret: "router-secret"})
	metrics := service.NewMetricsService()
	cfg := &config.Config{Env: env, APIPrefix: "/api/v1"}

	router := NewRouter(Dependencies{Config: cfg, Logger: zap.NewNop(), Tokens: tokens, Metrics: metrics}, Handlers{
		Courses:      handler.NewCourseHandler(nil),
		Lifecycle:    handler.NewLifecycleHandler(nil),
		Enrollments:  handler.NewEnrollmentHandler(nil),
		Progress:     handler.NewProgressHandler(nil, nil),
		Reviews:      handler.NewReviewHandler(nil),
		Media:        handler.NewMediaHandler(nil),
		Certificates: handler.NewCertificateHandler(nil),
		Metrics:      handler.NewMetricsHandler(metrics, nil, nil),
	})
	return router, tokens
}

func routeSet(router *gin.Engine) map[string]bool {
	set := make(map[string]bool)
	for _, route := range router.Routes() {
		set[route.Method+" "+route.Path] = true
	}
	return set
}

func TestRouterRegistersCatalogRoutes(t *testing.T) {
	router, _ := newTestRouter(t, config.EnvDevelopment)
	routes := routeSet(router)

	for _, want := range []string{
		"GET /health",
		"GET /ready",
		"GET /metrics",
		"GET /docs/*any",
		"GET /api/v1/courses",
		"POST /api/v1/courses",
		"GET /api/v1/courses/search",
		"POST /api/v1/courses/validate",
		"GET /api/v1/courses/:id",
		"PATCH /api/v1/courses/:id",
		"DELETE /api/v1/courses/:id",
		"POST /api/v1/courses/:id/publish",
		"POST /api/v1/courses/:id/unpublish",
		"POST /api/v1/courses/:id/archive",
		"POST /api/v1/courses/:id/thumbnail",
		"POST /api/v1/courses/:id/modules/:moduleId/videos",
		"GET /api/v1/media/:token",
		"GET /api/v1/courses/:id/enrollment",
		"POST /api/v1/courses/:id/enroll",
		"POST /api/v1/courses/:id/drop",
		"GET /api/v1/me/enrollments",
		"PUT /api/v1/courses/:id/modules/:moduleId/completion",
		"GET /api/v1/courses/:id/progress",
		"GET /api/v1/courses/:id/reviews",
		"PUT /api/v1/courses/:id/reviews",
		"GET /api/v1/courses/:id/certificate",
		"GET /api/v1/courses/:id/roster",
	} {
		assert.True(t, routes[want], "missing route %s", want)
	}
}

func TestRouterHidesDocsInProduction(t *testing.T) {
	router, _ := newTestRouter(t, config.EnvProduction)
	assert.False(t, routeSet(router)["GET /docs/*any"])
}

func TestRouterGuardsAuthoringAndLearnerRoutes(t *testing.T) {
	router, tokens := newTestRouter(t, config.EnvDevelopment)

	do := func(method, path, token string) int {
		req := httptest.NewRequest(method, path, nil)
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w.Code
	}

	assert.Equal(t, http.StatusOK, do(http.MethodGet, "/health", ""))
	assert.Equal(t, http.StatusUnauthorized, do(http.MethodPost, "/api/v1/courses", ""))
	assert.Equal(t, http.StatusUnauthorized, do(http.MethodPost, "/api/v1/courses/c1/enroll", ""))

	student, err := tokens.IssueToken("stu-1", models.RoleStudent, "", time.Hour)
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, do(http.MethodPost, "/api/v1/courses", student))
	assert.Equal(t, http.StatusForbidden, do(http.MethodGet, "/api/v1/courses/c1/roster", student))

	instructor, err := tokens.IssueToken("inst-1", models.RoleInstructor, "", time.Hour)
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, do(http.MethodPost, "/api/v1/courses/c1/enroll", instructor))
	assert.Equal(t, http.StatusForbidden, do(http.MethodPut, "/api/v1/courses/c1/reviews", instructor))
}
