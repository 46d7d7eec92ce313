package http

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/quietroute/optout-api/internal/business/optout"
	"github.com/quietroute/optout-api/internal/platform/metrics"
	"github.com/quietroute/optout-api/internal/platform/smarty"
)

// Router wires HTTP handlers.
type Router struct {
	svc     *optout.Service
	origins string
}

func NewRouter(svc *optout.Service, allowedOrigins string) *gin.Engine {
	r := &Router{svc: svc, origins: allowedOrigins}

	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery(), r.corsMiddleware())

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api")
	{
		api.POST("/opt-outs", r.registerOptOut)
		api.GET("/route-stats", r.getRouteStats)
		api.GET("/leaderboard", r.getLeaderboard)
	}

	return router
}

func (r *Router) corsMiddleware() gin.HandlerFunc {
	origins := strings.Split(r.origins, ",")
	trimmed := make([]string, 0, len(origins))
	for _, o := range origins {
		if t := strings.TrimSpace(o); t != "" {
			trimmed = append(trimmed, t)
		}
	}
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		allowed := "*"
		for _, o := range trimmed {
			if o == "*" || o == origin {
				allowed = origin
				break
			}
		}
		c.Header("Access-Control-Allow-Origin", allowed)
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		if c.Request.Method == http.MethodOptions {
			c.Status(http.StatusNoContent)
			c.Abort()
			return
		}
		c.Next()
	}
}

type registerReq struct {
	Address      string  `json:"address"`
	ZipCode      string  `json:"zipCode"`
	CarrierRoute string  `json:"carrierRoute"`
	City         string  `json:"city"`
	State        string  `json:"state"`
	Latitude     float64 `json:"latitude"`
	Longitude    float64 `json:"longitude"`
	Email        string  `json:"email"`
}

func (r *Router) registerOptOut(c *gin.Context) {
	var req registerReq
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}

	result, err := r.svc.Register(c.Request.Context(), optout.RegistrationRequest{
		Address:      req.Address,
		ZipCode:      req.ZipCode,
		CarrierRoute: req.CarrierRoute,
		City:         req.City,
		State:        req.State,
		Lat:          req.Latitude,
		Lng:          req.Longitude,
		Email:        req.Email,
	})
	if err != nil {
		status, msg := classifyError(err)
		c.JSON(status, gin.H{"error": msg})
		return
	}
	c.JSON(http.StatusOK, result)
}

func (r *Router) getRouteStats(c *gin.Context) {
	zipRoute := strings.TrimSpace(c.Query("zipRoute"))
	if zipRoute == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "zipRoute is required"})
		return
	}

	view, err := r.svc.RouteStats(c.Request.Context(), zipRoute)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "stats temporarily unavailable"})
		return
	}
	c.JSON(http.StatusOK, view)
}

func (r *Router) getLeaderboard(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "25"))
	sortBy := c.DefaultQuery("sortBy", optout.SortByPercent)

	view, err := r.svc.Leaderboard(c.Request.Context(), sortBy, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "leaderboard temporarily unavailable"})
		return
	}
	c.JSON(http.StatusOK, view)
}

// classifyError maps service errors onto the response taxonomy: validation
// 400, resolver misses 422, resolver outage 503, anything else a generic
// 500 with no internals leaked.
func classifyError(err error) (int, string) {
	switch {
	case errors.Is(err, optout.ErrInvalidRequest):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, smarty.ErrAddressNotFound):
		metrics.ResolverFailures.WithLabelValues("not_found").Inc()
		return http.StatusUnprocessableEntity, "address could not be found; check the street, city, and state"
	case errors.Is(err, smarty.ErrNoCarrierRoute):
		metrics.ResolverFailures.WithLabelValues("no_route").Inc()
		return http.StatusUnprocessableEntity, "no carrier route is available for this address"
	case errors.Is(err, smarty.ErrUnavailable):
		metrics.ResolverFailures.WithLabelValues("unavailable").Inc()
		return http.StatusServiceUnavailable, "address lookup is temporarily unavailable"
	default:
		return http.StatusInternalServerError, "registration failed; nothing was recorded"
	}
}
