package handler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/rl1809/storefront/internal/core/domain"
	"github.com/rl1809/storefront/internal/core/service"
	"github.com/rl1809/storefront/internal/logging"
	"github.com/rl1809/storefront/internal/metrics"
)

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type HTTPHandler struct {
	orders    *service.OrderService
	products  *service.ProductService
	accounts  *service.AccountService
	board     *service.BoardService
	employees *service.EmployeeService
	store     Pinger
	logger    *zap.Logger
	metrics   *metrics.Metrics
}

type Services struct {
	Orders    *service.OrderService
	Products  *service.ProductService
	Accounts  *service.AccountService
	Board     *service.BoardService
	Employees *service.EmployeeService
}

func NewHTTPHandler(svc Services, store Pinger, logger *zap.Logger, m *metrics.Metrics) *HTTPHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTTPHandler{
		orders:    svc.Orders,
		products:  svc.Products,
		accounts:  svc.Accounts,
		board:     svc.Board,
		employees: svc.Employees,
		store:     store,
		logger:    logger,
		metrics:   m,
	}
}

type Response struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
}

func ok(c *gin.Context, data any) {
	c.JSON(http.StatusOK, Response{Success: true, Data: data})
}

func fail(c *gin.Context, err error) {
	status, msg := statusFor(err)
	if status >= http.StatusInternalServerError {
		logging.FromContext(c.Request.Context()).Error("request_failed", zap.Int("status", status), zap.Error(err))
	}
	c.JSON(status, Response{Success: false, Message: msg})
}

// statusFor maps an error to an HTTP status and a message safe to show clients.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden, err.Error()
	case errors.Is(err, domain.ErrInsufficientStock):
		return http.StatusBadRequest, "insufficient stock"
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized, err.Error()
	case errors.Is(err, domain.ErrDuplicateRequest):
		return http.StatusConflict, "duplicate request"
	case errors.Is(err, domain.ErrConflict):
		return http.StatusConflict, err.Error()
	case errors.Is(err, domain.ErrStoreUnavailable):
		return http.StatusServiceUnavailable, "service unavailable"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

func invalid(format string, args ...any) error {
	return fmt.Errorf(format+": %w", append(args, domain.ErrInvalidInput)...)
}

func sessionUser(c *gin.Context) string {
	id, _ := sessions.Default(c).Get(sessionUserKey).(string)
	return id
}

func pathInt64(c *gin.Context, name string) (int64, error) {
	n, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil {
		return 0, invalid("%s must be a number", name)
	}
	return n, nil
}

func formInt(c *gin.Context, name string) (int64, error) {
	v := strings.TrimSpace(c.PostForm(name))
	if v == "" {
		return 0, invalid("%s is required", name)
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, invalid("%s must be a number", name)
	}
	return n, nil
}

func (h *HTTPHandler) HealthCheck(c *gin.Context) {
	if h.store != nil {
		if err := h.store.Ping(c.Request.Context()); err != nil {
			logging.FromContext(c.Request.Context()).Warn("health_check_failed", zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// ---------- products ----------

func productFields(c *gin.Context) (domain.ProductFields, error) {
	cate, err := formInt(c, "prodCate")
	if err != nil {
		return domain.ProductFields{}, err
	}
	price, err := formInt(c, "prodPrice")
	if err != nil {
		return domain.ProductFields{}, err
	}
	count, err := formInt(c, "prodCount")
	if err != nil {
		return domain.ProductFields{}, err
	}
	return domain.ProductFields{
		Name:        c.PostForm("prodName"),
		Description: c.PostForm("prodDes"),
		Category:    int(cate),
		Price:       price,
		Count:       int(count),
	}, nil
}

// imageUpload opens the optional productImage file. The returned closer is never nil.
func imageUpload(c *gin.Context) (*service.ImageUpload, func(), error) {
	noop := func() {}
	fh, err := c.FormFile("productImage")
	if errors.Is(err, http.ErrMissingFile) {
		return nil, noop, nil
	}
	if err != nil {
		return nil, noop, invalid("productImage")
	}

	var f multipart.File
	if f, err = fh.Open(); err != nil {
		return nil, noop, fmt.Errorf("open upload: %w", err)
	}
	return &service.ImageUpload{Filename: fh.Filename, Content: f}, func() { f.Close() }, nil
}

func (h *HTTPHandler) CreateProduct(c *gin.Context) {
	fields, err := productFields(c)
	if err != nil {
		fail(c, err)
		return
	}
	seller := c.PostForm("prodSeller")
	if strings.TrimSpace(seller) == "" {
		seller = sessionUser(c)
	}

	img, closeImg, err := imageUpload(c)
	if err != nil {
		fail(c, err)
		return
	}
	defer closeImg()

	prodNo, err := h.products.CreateProduct(c.Request.Context(), fields, seller, img)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, gin.H{"prodNo": prodNo})
}

func (h *HTTPHandler) UpdateProduct(c *gin.Context) {
	prodNo, err := pathInt64(c, "prodNo")
	if err != nil {
		fail(c, err)
		return
	}
	fields, err := productFields(c)
	if err != nil {
		fail(c, err)
		return
	}
	requester := c.PostForm("loggedInUser")
	if strings.TrimSpace(requester) == "" {
		requester = sessionUser(c)
	}

	img, closeImg, err := imageUpload(c)
	if err != nil {
		fail(c, err)
		return
	}
	defer closeImg()

	if err := h.products.UpdateProduct(c.Request.Context(), prodNo, fields, requester, img); err != nil {
		fail(c, err)
		return
	}
	ok(c, nil)
}

type deleteProductRequest struct {
	Seller string `json:"seller"`
}

func (h *HTTPHandler) DeleteProduct(c *gin.Context) {
	prodNo, err := pathInt64(c, "prodNo")
	if err != nil {
		fail(c, err)
		return
	}

	// the body is optional; an empty one, chunked or not, decodes to EOF
	var req deleteProductRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		fail(c, invalid("invalid request body"))
		return
	}
	if strings.TrimSpace(req.Seller) == "" {
		req.Seller = sessionUser(c)
	}

	if err := h.products.DeleteProduct(c.Request.Context(), prodNo, req.Seller); err != nil {
		fail(c, err)
		return
	}
	ok(c, nil)
}

func (h *HTTPHandler) GetProduct(c *gin.Context) {
	prodNo, err := pathInt64(c, "prodNo")
	if err != nil {
		fail(c, err)
		return
	}
	p, err := h.products.GetProduct(c.Request.Context(), prodNo)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, p)
}

func (h *HTTPHandler) listProducts(c *gin.Context, filter domain.ProductFilter) {
	products, err := h.products.ListProducts(c.Request.Context(), filter)
	if err != nil {
		fail(c, err)
		return
	}
	if products == nil {
		products = []domain.Product{}
	}
	ok(c, products)
}

func (h *HTTPHandler) ListProducts(c *gin.Context) {
	h.listProducts(c, domain.ProductFilter{})
}

func (h *HTTPHandler) SearchProducts(c *gin.Context) {
	h.listProducts(c, domain.ProductFilter{Keyword: c.Query("keyword")})
}

func (h *HTTPHandler) ListByCategory(c *gin.Context) {
	cate, err := strconv.Atoi(c.Param("cateId"))
	if err != nil || cate <= 0 {
		fail(c, invalid("cateId must be a positive number"))
		return
	}
	h.listProducts(c, domain.ProductFilter{Category: cate, Keyword: c.Query("keyword")})
}

// ---------- orders ----------

type placeOrderRequest struct {
	RequestID string `json:"requestId"`
	ProdNo    int64  `json:"prodNo"`
	Count     int    `json:"ordCount"`
	Buyer     string `json:"ordBuyer"`
	Seller    string `json:"ordSeller"`
}

func (h *HTTPHandler) PlaceOrder(c *gin.Context) {
	var req placeOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, invalid("invalid request body"))
		return
	}
	if rid := c.GetHeader(requestIDHeader); rid != "" && req.RequestID == "" {
		req.RequestID = rid
	}
	if strings.TrimSpace(req.Buyer) == "" {
		req.Buyer = sessionUser(c)
	}

	order, err := h.orders.PlaceOrder(c.Request.Context(), service.PlaceOrderInput{
		RequestID: req.RequestID,
		ProdNo:    req.ProdNo,
		Count:     req.Count,
		Buyer:     req.Buyer,
		Seller:    req.Seller,
	})
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, order)
}

func (h *HTTPHandler) ListOrders(c *gin.Context) {
	buyer := c.Query("buyerId")
	if buyer == "" {
		buyer = sessionUser(c)
	}
	orders, err := h.orders.ListOrders(c.Request.Context(), buyer)
	if err != nil {
		fail(c, err)
		return
	}
	if orders == nil {
		orders = []domain.OrderSummary{}
	}
	ok(c, orders)
}
