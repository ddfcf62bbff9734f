package service

import (
	"context"
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/rl1809/storefront/internal/core/domain"
)

// Mock catalog: products and orders kept in memory under one lock so stock
// checks behave like a locked row.
type mockCatalog struct {
	mu       sync.Mutex
	products map[int64]*domain.Product
	images   map[int64][]string
	orders   []domain.Order
	nextProd int64
	nextOrd  int64
	failWith error
}

func newMockCatalog() *mockCatalog {
	return &mockCatalog{
		products: make(map[int64]*domain.Product),
		images:   make(map[int64][]string),
	}
}

func (m *mockCatalog) seed(seller string, count int, img string) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextProd++
	m.products[m.nextProd] = &domain.Product{
		ProdNo: m.nextProd, Name: "p", Description: "d", Category: 1, Count: count, Seller: seller,
	}
	if img != "" {
		m.images[m.nextProd] = []string{img}
	}
	return m.nextProd
}

func (m *mockCatalog) stock(prodNo int64) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.products[prodNo].Count
}

func (m *mockCatalog) PlaceOrder(ctx context.Context, o domain.Order) (domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failWith != nil {
		return domain.Order{}, m.failWith
	}
	p, ok := m.products[o.ProdNo]
	if !ok {
		return domain.Order{}, domain.ErrNotFound
	}
	if p.Count < o.Count {
		return domain.Order{}, domain.ErrInsufficientStock
	}
	p.Count -= o.Count
	m.nextOrd++
	o.OrdNo = m.nextOrd
	if o.Seller == "" {
		o.Seller = p.Seller
	}
	m.orders = append(m.orders, o)
	return o, nil
}

func (m *mockCatalog) ListOrdersByBuyer(ctx context.Context, buyer string) ([]domain.OrderSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := []domain.OrderSummary{}
	for _, o := range m.orders {
		if o.Buyer == buyer {
			out = append(out, domain.OrderSummary{OrdNo: o.OrdNo, ProdNo: o.ProdNo, Count: o.Count, Buyer: o.Buyer, Seller: o.Seller})
		}
	}
	return out, nil
}

func (m *mockCatalog) CreateProduct(ctx context.Context, p domain.Product, imgPath string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failWith != nil {
		return 0, m.failWith
	}
	m.nextProd++
	p.ProdNo = m.nextProd
	m.products[p.ProdNo] = &p
	if imgPath != "" {
		m.images[p.ProdNo] = []string{imgPath}
	}
	return p.ProdNo, nil
}

func (m *mockCatalog) owned(prodNo int64, requester string) (*domain.Product, error) {
	p, ok := m.products[prodNo]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if requester != "" && p.Seller != requester {
		return nil, domain.ErrForbidden
	}
	return p, nil
}

func (m *mockCatalog) UpdateProduct(ctx context.Context, prodNo int64, f domain.ProductFields, requester, imgPath string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, err := m.owned(prodNo, requester)
	if err != nil {
		return nil, err
	}
	p.Name, p.Description, p.Category, p.Price, p.Count = f.Name, f.Description, f.Category, f.Price, f.Count
	if imgPath == "" {
		return nil, nil
	}
	old := m.images[prodNo]
	m.images[prodNo] = []string{imgPath}
	return old, nil
}

func (m *mockCatalog) DeleteProduct(ctx context.Context, prodNo int64, seller string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, err := m.owned(prodNo, seller); err != nil {
		return nil, err
	}
	removed := m.images[prodNo]
	delete(m.images, prodNo)
	delete(m.products, prodNo)
	kept := m.orders[:0]
	for _, o := range m.orders {
		if o.ProdNo != prodNo {
			kept = append(kept, o)
		}
	}
	m.orders = kept
	return removed, nil
}

func (m *mockCatalog) GetProduct(ctx context.Context, prodNo int64) (*domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.products[prodNo]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *p
	cp.ImgPath = domain.DefaultImagePath
	if imgs := m.images[prodNo]; len(imgs) > 0 {
		cp.ImgPath = imgs[0]
	}
	return &cp, nil
}

func (m *mockCatalog) ListProducts(ctx context.Context, f domain.ProductFilter) ([]domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := []domain.Product{}
	for _, p := range m.products {
		if f.Category != 0 && p.Category != f.Category {
			continue
		}
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProdNo < out[j].ProdNo })
	return out, nil
}

// Mock CacheRepository
type mockCacheRepo struct {
	mu             sync.Mutex
	idempotencySet map[string]bool
	err            error
}

func newMockCacheRepo() *mockCacheRepo {
	return &mockCacheRepo{idempotencySet: make(map[string]bool)}
}

func (m *mockCacheRepo) SetIdempotency(ctx context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.err != nil {
		return false, m.err
	}
	if m.idempotencySet[key] {
		return false, nil
	}
	m.idempotencySet[key] = true
	return true, nil
}

func (m *mockCacheRepo) ReleaseIdempotency(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.idempotencySet, key)
	return nil
}

func (m *mockCacheRepo) has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.idempotencySet[key]
}

// Mock FileStorage
type mockFiles struct {
	mu        sync.Mutex
	stored    map[string][]byte
	n         int
	deleteErr error
}

func newMockFiles() *mockFiles {
	return &mockFiles{stored: make(map[string][]byte)}
}

func (m *mockFiles) Store(ctx context.Context, name string, r io.Reader) (string, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.n++
	p := fmt.Sprintf("img/upload-%d-%s", m.n, name)
	m.stored[p] = b
	return p, nil
}

func (m *mockFiles) Delete(ctx context.Context, p string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.deleteErr != nil {
		return m.deleteErr
	}
	delete(m.stored, p)
	return nil
}

func (m *mockFiles) exists(p string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.stored[p]
	return ok
}

func (m *mockFiles) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.stored)
}

// Mock directory for the account, board and employee services.
type mockDirectory struct {
	mu        sync.Mutex
	users     map[string]domain.User
	questions []domain.Question
	nextA     int64
	employees map[int64]domain.Employee
}

func newMockDirectory() *mockDirectory {
	return &mockDirectory{
		users:     make(map[string]domain.User),
		employees: make(map[int64]domain.Employee),
	}
}

func (m *mockDirectory) CreateUser(ctx context.Context, u domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[u.UserID]; ok {
		return domain.ErrConflict
	}
	for _, other := range m.users {
		if u.Tel != "" && other.Tel == u.Tel {
			return domain.ErrConflict
		}
	}
	m.users[u.UserID] = u
	return nil
}

func (m *mockDirectory) GetUser(ctx context.Context, id string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &u, nil
}

func (m *mockDirectory) FindUserID(ctx context.Context, name, tel string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Name == name && u.Tel == tel {
			return u.UserID, nil
		}
	}
	return "", domain.ErrNotFound
}

func (m *mockDirectory) TelTaken(ctx context.Context, tel, except string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Tel == tel && u.UserID != except {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockDirectory) UpdateUser(ctx context.Context, u domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.users[u.UserID]
	if !ok {
		return domain.ErrNotFound
	}
	if u.PasswordHash == "" {
		u.PasswordHash = cur.PasswordHash
	}
	m.users[u.UserID] = u
	return nil
}

func (m *mockDirectory) ListQuestions(ctx context.Context) ([]domain.Question, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.Question(nil), m.questions...), nil
}

func (m *mockDirectory) CreateQuestion(ctx context.Context, q domain.Question) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	q.QNo = int64(len(m.questions) + 1)
	q.Answers = []domain.Answer{}
	m.questions = append(m.questions, q)
	return q.QNo, nil
}

func (m *mockDirectory) CreateAnswer(ctx context.Context, a domain.Answer) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.questions {
		if m.questions[i].QNo == a.QNo {
			m.nextA++
			a.ANo = m.nextA
			m.questions[i].Answers = append(m.questions[i].Answers, a)
			return a.ANo, nil
		}
	}
	return 0, domain.ErrNotFound
}

func (m *mockDirectory) CreateEmployee(ctx context.Context, e domain.Employee) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.employees[e.EmpNo]; ok {
		return domain.ErrConflict
	}
	m.employees[e.EmpNo] = e
	return nil
}

func (m *mockDirectory) DeleteEmployee(ctx context.Context, empNo int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.employees[empNo]; !ok {
		return domain.ErrNotFound
	}
	delete(m.employees, empNo)
	return nil
}

func (m *mockDirectory) ListEmployees(ctx context.Context, f domain.EmployeeFilter) ([]domain.Employee, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []domain.Employee{}
	for _, e := range m.employees {
		if f.Name != domain.MatchAll && f.Name != e.Name {
			continue
		}
		if f.Job != domain.MatchAll && f.Job != e.Job {
			continue
		}
		if f.DeptNo != domain.MatchAllDept && f.DeptNo != e.DeptNo {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

var errStoreDown = fmt.Errorf("%w: connection refused", domain.ErrStoreUnavailable)
