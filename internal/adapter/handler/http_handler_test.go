package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/crypto/bcrypt"

	"github.com/rl1809/storefront/internal/adapter/storage"
	"github.com/rl1809/storefront/internal/core/domain"
	"github.com/rl1809/storefront/internal/core/service"
	"github.com/rl1809/storefront/internal/metrics"
)

// Mock catalog backing both the order and product services.
type mockCatalog struct {
	mu       sync.Mutex
	products map[int64]*domain.Product
	orders   []domain.Order
	next     int64
	err      error
}

func newMockCatalog() *mockCatalog {
	return &mockCatalog{products: make(map[int64]*domain.Product)}
}

func (m *mockCatalog) PlaceOrder(ctx context.Context, o domain.Order) (domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return domain.Order{}, m.err
	}
	p, ok := m.products[o.ProdNo]
	if !ok {
		return domain.Order{}, domain.ErrNotFound
	}
	if p.Count < o.Count {
		return domain.Order{}, domain.ErrInsufficientStock
	}
	p.Count -= o.Count
	o.OrdNo = int64(len(m.orders) + 1)
	o.Seller = p.Seller
	m.orders = append(m.orders, o)
	return o, nil
}

func (m *mockCatalog) ListOrdersByBuyer(ctx context.Context, buyer string) ([]domain.OrderSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.OrderSummary
	for _, o := range m.orders {
		if o.Buyer == buyer {
			out = append(out, domain.OrderSummary{OrdNo: o.OrdNo, ProdNo: o.ProdNo, Count: o.Count, Buyer: o.Buyer})
		}
	}
	return out, nil
}

func (m *mockCatalog) CreateProduct(ctx context.Context, p domain.Product, imgPath string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.next++
	p.ProdNo = m.next
	p.ImgPath = imgPath
	m.products[p.ProdNo] = &p
	return p.ProdNo, nil
}

func (m *mockCatalog) UpdateProduct(ctx context.Context, prodNo int64, f domain.ProductFields, requester, imgPath string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[prodNo]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if requester != "" && requester != p.Seller {
		return nil, domain.ErrForbidden
	}
	p.Name, p.Count = f.Name, f.Count
	return nil, nil
}

func (m *mockCatalog) DeleteProduct(ctx context.Context, prodNo int64, seller string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[prodNo]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if p.Seller != seller {
		return nil, domain.ErrForbidden
	}
	delete(m.products, prodNo)
	return nil, nil
}

func (m *mockCatalog) GetProduct(ctx context.Context, prodNo int64) (*domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[prodNo]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *mockCatalog) ListProducts(ctx context.Context, f domain.ProductFilter) ([]domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	var out []domain.Product
	for _, p := range m.products {
		if f.Category == 0 || f.Category == p.Category {
			out = append(out, *p)
		}
	}
	return out, nil
}

type mockFiles struct {
	mu     sync.Mutex
	stored map[string]string
}

func (m *mockFiles) Store(ctx context.Context, name string, r io.Reader) (string, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	p := "img/" + name
	m.stored[p] = string(b)
	return p, nil
}

func (m *mockFiles) Delete(ctx context.Context, p string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.stored, p)
	return nil
}

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

type testServer struct {
	router  *gin.Engine
	catalog *mockCatalog
	files   *mockFiles
	orders  *service.OrderService
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := "file:" + strings.ReplaceAll(t.Name(), "/", "_") + "?mode=memory&cache=shared"
	db, err := storage.OpenDirectory("sqlite", dsn, nil)
	if err != nil {
		t.Fatalf("open directory: %v", err)
	}
	sqlDB, _ := db.DB()
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	dir := storage.NewGormDirectory(db)

	catalog := newMockCatalog()
	files := &mockFiles{stored: make(map[string]string)}
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	orders := service.NewOrderService(catalog, nil, 100)
	t.Cleanup(orders.Close)
	go func() {
		for range orders.GetOrderQueue() {
		}
	}()

	h := NewHTTPHandler(Services{
		Orders:    orders,
		Products:  service.NewProductService(catalog, files),
		Accounts:  service.NewAccountService(dir, service.WithBcryptCost(bcrypt.MinCost)),
		Board:     service.NewBoardService(dir),
		Employees: service.NewEmployeeService(dir),
	}, pingFunc(func(context.Context) error { return nil }), nil, m)

	return &testServer{
		router:  NewRouter(h, RouterConfig{SessionSecret: "test-secret", Gatherer: reg}),
		catalog: catalog,
		files:   files,
		orders:  orders,
	}
}

func (s *testServer) do(t *testing.T, method, path string, body any, cookies ...*http.Cookie) (*httptest.ResponseRecorder, Response) {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}
	return s.serve(t, req)
}

func (s *testServer) serve(t *testing.T, req *http.Request) (*httptest.ResponseRecorder, Response) {
	t.Helper()
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	var resp Response
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decode response %q: %v", w.Body.String(), err)
		}
	}
	return w, resp
}

func multipartProduct(t *testing.T, method, path string, fields map[string]string, file string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		mw.WriteField(k, v)
	}
	if file != "" {
		fw, err := mw.CreateFormFile("productImage", file)
		if err != nil {
			t.Fatalf("create form file: %v", err)
		}
		fw.Write([]byte("png-bytes"))
	}
	mw.Close()

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func productForm(seller string) map[string]string {
	return map[string]string{
		"prodName": "lamp", "prodDes": "desk lamp", "prodCate": "3",
		"prodPrice": "15000", "prodCount": "5", "prodSeller": seller,
	}
}

func TestHealthCheck(t *testing.T) {
	s := newTestServer(t)

	w, _ := s.do(t, http.MethodGet, "/health", nil)
	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}
	if w.Header().Get(requestIDHeader) == "" {
		t.Error("expected generated request id header")
	}
}

func TestCreateProduct_Multipart(t *testing.T) {
	s := newTestServer(t)

	w, resp := s.serve(t, multipartProduct(t, http.MethodPost, "/products", productForm("seller-1"), "lamp.png"))
	if w.Code != http.StatusOK || !resp.Success {
		t.Fatalf("expected success, got %d %s", w.Code, w.Body.String())
	}
	if s.files.stored["img/lamp.png"] != "png-bytes" {
		t.Errorf("expected uploaded file stored, got %v", s.files.stored)
	}

	p, err := s.catalog.GetProduct(context.Background(), 1)
	if err != nil {
		t.Fatalf("product not created: %v", err)
	}
	if p.Seller != "seller-1" || p.Count != 5 || p.Price != 15000 || p.ImgPath != "img/lamp.png" {
		t.Errorf("unexpected product: %+v", p)
	}
}

func TestCreateProduct_BadNumber(t *testing.T) {
	s := newTestServer(t)

	form := productForm("seller-1")
	form["prodCount"] = "five"
	w, resp := s.serve(t, multipartProduct(t, http.MethodPost, "/products", form, ""))
	if w.Code != http.StatusBadRequest || resp.Success {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestProductRoutes(t *testing.T) {
	s := newTestServer(t)
	s.serve(t, multipartProduct(t, http.MethodPost, "/products", productForm("seller-1"), ""))

	w, resp := s.do(t, http.MethodGet, "/products/1", nil)
	if w.Code != http.StatusOK || !resp.Success {
		t.Errorf("expected product, got %d", w.Code)
	}
	w, _ = s.do(t, http.MethodGet, "/products/99", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
	w, _ = s.do(t, http.MethodGet, "/products/abc", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
	w, resp = s.do(t, http.MethodGet, "/products/category/3", nil)
	if w.Code != http.StatusOK || len(resp.Data.([]any)) != 1 {
		t.Errorf("expected one product in category, got %d %v", w.Code, resp.Data)
	}
	w, resp = s.do(t, http.MethodGet, "/products/category/7/search?keyword=lamp", nil)
	if w.Code != http.StatusOK || len(resp.Data.([]any)) != 0 {
		t.Errorf("expected empty list, got %d %v", w.Code, resp.Data)
	}

	w, _ = s.serve(t, multipartProduct(t, http.MethodPut, "/products/1", map[string]string{
		"prodName": "lamp", "prodDes": "d", "prodCate": "3", "prodPrice": "1", "prodCount": "1", "loggedInUser": "intruder",
	}, ""))
	if w.Code != http.StatusForbidden {
		t.Errorf("expected 403 for foreign update, got %d", w.Code)
	}

	w, _ = s.do(t, http.MethodDelete, "/products/1", map[string]string{"seller": "intruder"})
	if w.Code != http.StatusForbidden {
		t.Errorf("expected 403 for foreign delete, got %d", w.Code)
	}
	w, _ = s.do(t, http.MethodDelete, "/products/1", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 without seller, got %d", w.Code)
	}
	w, _ = s.do(t, http.MethodDelete, "/products/1", map[string]string{"seller": "seller-1"})
	if w.Code != http.StatusOK {
		t.Errorf("expected 200 for owner delete, got %d", w.Code)
	}
}

func TestDeleteProduct_EmptyChunkedBodyUsesSession(t *testing.T) {
	s := newTestServer(t)
	s.serve(t, multipartProduct(t, http.MethodPost, "/products", productForm("seller-1"), ""))

	s.do(t, http.MethodPost, "/user", map[string]string{"userId": "seller-1", "userPw": "secret", "userName": "Seller"})
	w, _ := s.do(t, http.MethodPost, "/login", map[string]string{"userId": "seller-1", "userPw": "secret"})
	if w.Code != http.StatusOK {
		t.Fatalf("login failed: %d %s", w.Code, w.Body.String())
	}
	cookies := w.Result().Cookies()

	req := httptest.NewRequest(http.MethodDelete, "/products/1", strings.NewReader(""))
	req.ContentLength = -1
	req.TransferEncoding = []string{"chunked"}
	for _, c := range cookies {
		req.AddCookie(c)
	}
	w, resp := s.serve(t, req)
	if w.Code != http.StatusOK || !resp.Success {
		t.Fatalf("expected owner delete via session, got %d %s", w.Code, w.Body.String())
	}
	if _, err := s.catalog.GetProduct(context.Background(), 1); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected product removed, got %v", err)
	}

	w, _ = s.do(t, http.MethodDelete, "/products/1", "{not json")
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for malformed body, got %d", w.Code)
	}
}

func TestListProducts_StoreDown(t *testing.T) {
	s := newTestServer(t)
	s.catalog.err = errors.Join(domain.ErrStoreUnavailable, errors.New("dial tcp: refused"))

	w, resp := s.do(t, http.MethodGet, "/products/all", nil)
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", w.Code)
	}
	if strings.Contains(resp.Message, "refused") {
		t.Errorf("expected internal detail hidden, got %q", resp.Message)
	}
}

func TestPlaceOrder_HTTP(t *testing.T) {
	s := newTestServer(t)
	s.serve(t, multipartProduct(t, http.MethodPost, "/products", productForm("seller-1"), ""))

	w, resp := s.do(t, http.MethodPost, "/orders", map[string]any{"prodNo": 1, "ordCount": 4, "ordBuyer": "buyer-1"})
	if w.Code != http.StatusOK || !resp.Success {
		t.Fatalf("expected success, got %d %s", w.Code, w.Body.String())
	}

	w, _ = s.do(t, http.MethodPost, "/orders", map[string]any{"prodNo": 1, "ordCount": 4, "ordBuyer": "buyer-1"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for insufficient stock, got %d", w.Code)
	}
	w, _ = s.do(t, http.MethodPost, "/orders", map[string]any{"prodNo": 42, "ordCount": 1, "ordBuyer": "buyer-1"})
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
	w, _ = s.do(t, http.MethodPost, "/orders", map[string]any{"prodNo": 1, "ordCount": 0, "ordBuyer": "buyer-1"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for zero count, got %d", w.Code)
	}

	w, resp = s.do(t, http.MethodGet, "/orders?buyerId=buyer-1", nil)
	if w.Code != http.StatusOK || len(resp.Data.([]any)) != 1 {
		t.Errorf("expected one order, got %d %v", w.Code, resp.Data)
	}
	w, _ = s.do(t, http.MethodGet, "/orders", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 without buyer, got %d", w.Code)
	}
}

func TestAccountFlow(t *testing.T) {
	s := newTestServer(t)

	w, _ := s.do(t, http.MethodPost, "/user", map[string]string{
		"userId": "alice", "userPw": "secret", "userName": "Alice", "userTel": "010-1111-2222", "userAddress": "Seoul",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("register failed: %d %s", w.Code, w.Body.String())
	}
	w, _ = s.do(t, http.MethodPost, "/user", map[string]string{"userId": "alice", "userPw": "x", "userName": "A"})
	if w.Code != http.StatusConflict {
		t.Errorf("expected 409 for duplicate id, got %d", w.Code)
	}

	w, _ = s.do(t, http.MethodPost, "/login", map[string]string{"userId": "alice", "userPw": "wrong"})
	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", w.Code)
	}

	w, resp := s.do(t, http.MethodPost, "/login", map[string]string{"userId": " alice ", "userPw": "secret"})
	if w.Code != http.StatusOK || !resp.Success {
		t.Fatalf("login failed: %d", w.Code)
	}
	cookies := w.Result().Cookies()
	if len(cookies) == 0 {
		t.Fatal("expected session cookie")
	}

	w, resp = s.do(t, http.MethodGet, "/user/profile", nil, cookies...)
	if w.Code != http.StatusOK || resp.Data.(map[string]any)["userName"] != "Alice" {
		t.Errorf("expected own profile, got %d %v", w.Code, resp.Data)
	}
	w, _ = s.do(t, http.MethodGet, "/user/profile?userId=bob", nil, cookies...)
	if w.Code != http.StatusForbidden {
		t.Errorf("expected 403 for other profile, got %d", w.Code)
	}

	w, _ = s.do(t, http.MethodPut, "/user/profile", map[string]string{
		"userName": "Alicia", "userTel": "bad", "userAddress": "Busan",
	}, cookies...)
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for bad tel, got %d", w.Code)
	}

	w, resp = s.do(t, http.MethodPost, "/user/find-id", map[string]string{"userName": "Alice", "userTel": "010-1111-2222"})
	if w.Code != http.StatusOK || resp.Data.(map[string]any)["userId"] != "alice" {
		t.Errorf("expected alice, got %d %v", w.Code, resp.Data)
	}

	w, resp = s.do(t, http.MethodPost, "/user/reset-pw", map[string]string{"userId": "alice", "userName": "Alice"})
	if w.Code != http.StatusOK {
		t.Fatalf("reset failed: %d", w.Code)
	}
	temp := resp.Data.(map[string]any)["tempPassword"].(string)
	w, _ = s.do(t, http.MethodPost, "/login", map[string]string{"userId": "alice", "userPw": temp})
	if w.Code != http.StatusOK {
		t.Errorf("expected login with temporary password, got %d", w.Code)
	}

	w, _ = s.do(t, http.MethodPost, "/logout", nil, cookies...)
	if w.Code != http.StatusOK {
		t.Errorf("expected logout ok, got %d", w.Code)
	}
}

func TestBoardAndEmployees(t *testing.T) {
	s := newTestServer(t)

	w, resp := s.do(t, http.MethodPost, "/question", map[string]string{"qTitle": "refund?", "qContent": "how", "qWriter": "alice"})
	if w.Code != http.StatusOK {
		t.Fatalf("question failed: %d", w.Code)
	}
	qNo := resp.Data.(map[string]any)["qNo"]

	w, _ = s.do(t, http.MethodPost, "/answer", map[string]any{"qNo": qNo, "aContent": "within 7 days", "aWriter": "admin"})
	if w.Code != http.StatusOK {
		t.Errorf("answer failed: %d", w.Code)
	}
	w, _ = s.do(t, http.MethodPost, "/answer", map[string]any{"qNo": 999, "aContent": "x", "aWriter": "admin"})
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
	w, resp = s.do(t, http.MethodGet, "/qna", nil)
	if w.Code != http.StatusOK || len(resp.Data.([]any)) != 1 {
		t.Errorf("expected one question, got %v", resp.Data)
	}

	w, _ = s.do(t, http.MethodPost, "/emp", map[string]any{"empno": 7369, "ename": "SMITH", "job": "CLERK", "hiredate": "2024-03-01", "deptno": 20})
	if w.Code != http.StatusOK {
		t.Fatalf("hire failed: %d %s", w.Code, w.Body.String())
	}
	w, resp = s.do(t, http.MethodGet, "/emp/ALL/ALL/-1", nil)
	if w.Code != http.StatusOK || len(resp.Data.([]any)) != 1 {
		t.Errorf("expected one employee, got %v", resp.Data)
	}
	w, resp = s.do(t, http.MethodGet, "/emp/ALL/CLERK/30", nil)
	if w.Code != http.StatusOK || len(resp.Data.([]any)) != 0 {
		t.Errorf("expected none in dept 30, got %v", resp.Data)
	}
	w, _ = s.do(t, http.MethodDelete, "/emp/7369", nil)
	if w.Code != http.StatusOK {
		t.Errorf("expected fire ok, got %d", w.Code)
	}
	w, _ = s.do(t, http.MethodDelete, "/emp/7369", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t)
	s.do(t, http.MethodGet, "/health", nil)

	w, _ := s.do(t, http.MethodGet, "/metrics", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `http_requests_total{method="GET",route="/health",status="200"} 1`) {
		t.Errorf("expected health request counted, got:\n%s", w.Body.String())
	}
}
