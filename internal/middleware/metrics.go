package middleware

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/tutorhub-api/internal/service"
)

const (
	unmatchedRoute = "unmatched"

	areaAuth    = "auth"
	areaPeople  = "people"
	areaLessons = "lessons"
	areaShop    = "shop"
	areaOps     = "ops"
	areaOther   = "other"
)

// routeAreas groups the first path segment under the API prefix into dashboard-sized areas.
var routeAreas = map[string]string{
	"auth":        areaAuth,
	"users":       areaPeople,
	"skills":      areaPeople,
	"teachers":    areaLessons,
	"lessons":     areaLessons,
	"enrollments": areaLessons,
	"dashboard":   areaLessons,
	"products":    areaShop,
	"media":       areaShop,
	"cart":        areaShop,
	"checkout":    areaShop,
}

// Metrics records request count and latency labelled by route template and API area.
// Unrouted requests share one label so scanners cannot inflate series cardinality.
func Metrics(metricsSvc *service.MetricsService, apiPrefix string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if metricsSvc == nil {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = unmatchedRoute
		}
		metricsSvc.ObserveHTTPRequest(c.Request.Method, route, RouteArea(route, apiPrefix), c.Writer.Status(), time.Since(start))
	}
}

// RouteArea maps a route template to the API area it belongs to.
func RouteArea(route, apiPrefix string) string {
	if route == unmatchedRoute {
		return areaOther
	}
	rest, ok := strings.CutPrefix(route, strings.TrimSuffix(apiPrefix, "/")+"/")
	if !ok || apiPrefix == "" {
		return areaOps
	}
	segment, _, _ := strings.Cut(rest, "/")
	if area, found := routeAreas[segment]; found {
		return area
	}
	return areaOther
}
