package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/rl1809/storefront/internal/logging"
)

const (
	sessionName     = "storefront_session"
	sessionUserKey  = "user_id"
	requestIDHeader = "X-Request-ID"

	maxUploadMemory = 8 << 20
)

type RouterConfig struct {
	SessionSecret string
	// UploadDir is served under /img
	UploadDir string
	Gatherer  prometheus.Gatherer
}

func NewRouter(h *HTTPHandler, cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.MaxMultipartMemory = maxUploadMemory
	r.Use(gin.Recovery(), h.observe())

	store := cookie.NewStore([]byte(cfg.SessionSecret))
	store.Options(sessions.Options{Path: "/", HttpOnly: true, SameSite: http.SameSiteLaxMode})
	r.Use(sessions.Sessions(sessionName, store))

	if cfg.UploadDir != "" {
		r.Static("/img", cfg.UploadDir)
	}
	if cfg.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{})))
	}
	r.GET("/health", h.HealthCheck)

	products := r.Group("/products")
	products.POST("", h.CreateProduct)
	products.GET("/all", h.ListProducts)
	products.GET("/search", h.SearchProducts)
	products.GET("/category/:cateId", h.ListByCategory)
	products.GET("/category/:cateId/search", h.ListByCategory)
	products.GET("/:prodNo", h.GetProduct)
	products.PUT("/:prodNo", h.UpdateProduct)
	products.DELETE("/:prodNo", h.DeleteProduct)

	r.POST("/orders", h.PlaceOrder)
	r.GET("/orders", h.ListOrders)

	r.POST("/user", h.Register)
	r.POST("/login", h.Login)
	r.POST("/logout", h.Logout)
	r.POST("/user/find-id", h.FindUserID)
	r.POST("/user/reset-pw", h.ResetPassword)
	r.GET("/user/profile", h.Profile)
	r.PUT("/user/profile", h.UpdateProfile)

	r.GET("/qna", h.ListQuestions)
	r.POST("/question", h.PostQuestion)
	r.POST("/answer", h.PostAnswer)

	r.POST("/emp", h.HireEmployee)
	r.DELETE("/emp/:eno", h.RemoveEmployee)
	r.GET("/emp/:ename/:job/:deptno", h.ListEmployees)

	return r
}

// observe injects a request-scoped logger and a server span, then records the
// access log and HTTP metrics once the handler chain is done.
func (h *HTTPHandler) observe() gin.HandlerFunc {
	tracer := otel.Tracer("storefront.http")
	prop := otel.GetTextMapPropagator()

	return func(c *gin.Context) {
		start := time.Now()

		rid := c.GetHeader(requestIDHeader)
		if rid == "" {
			rid = uuid.NewString()
		}
		c.Header(requestIDHeader, rid)

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}

		ctx := prop.Extract(c.Request.Context(), propagation.HeaderCarrier(c.Request.Header))
		ctx, span := tracer.Start(ctx, c.Request.Method+" "+route,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String("http.method", c.Request.Method),
				attribute.String("http.route", route),
			),
		)
		defer span.End()

		ctx = logging.WithRequestID(logging.ContextWithLogger(ctx, h.logger), rid)
		c.Request = c.Request.WithContext(ctx)
		reqLogger := logging.FromContext(ctx)

		c.Next()

		status := c.Writer.Status()
		span.SetAttributes(attribute.Int("http.status_code", status))
		h.metrics.ObserveHTTP(c.Request.Method, route, strconv.Itoa(status), time.Since(start))
		reqLogger.Info("http_access",
			zap.String("method", c.Request.Method),
			zap.String("route", route),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", status),
			zap.Int64("latency_ms", time.Since(start).Milliseconds()),
		)
	}
}
