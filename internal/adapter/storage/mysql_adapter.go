package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rl1809/storefront/internal/core/domain"
)

const (
	lockStockQuery   = `SELECT prod_count, prod_seller FROM products WHERE prod_no = ? FOR UPDATE`
	lockSellerQuery  = `SELECT prod_seller FROM products WHERE prod_no = ? FOR UPDATE`
	imagePathsQuery  = `SELECT img_path FROM product_images WHERE prod_no = ?`
	insertOrderStmt  = `INSERT INTO orders (prod_no, ord_count, ord_buyer, ord_seller, created_at) VALUES (?, ?, ?, ?, ?)`
	decrementStmt    = `UPDATE products SET prod_count = prod_count - ? WHERE prod_no = ? AND prod_count >= ?`
	insertProdStmt   = `INSERT INTO products (prod_name, prod_des, prod_cate, prod_price, prod_count, prod_seller, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`
	insertImageStmt  = `INSERT INTO product_images (prod_no, img_path) VALUES (?, ?)`
	updateProdStmt   = `UPDATE products SET prod_name = ?, prod_des = ?, prod_cate = ?, prod_price = ?, prod_count = ? WHERE prod_no = ?`
	deleteImagesStmt = `DELETE FROM product_images WHERE prod_no = ?`
	deleteOrdersStmt = `DELETE FROM orders WHERE prod_no = ?`
	deleteProdStmt   = `DELETE FROM products WHERE prod_no = ?`

	// one image per product by policy; MAX keeps the join single-row if the table ever holds more
	productSelect = `SELECT p.prod_no, p.prod_name, p.prod_des, p.prod_cate, p.prod_price, p.prod_count, p.prod_seller, p.created_at, COALESCE(i.img_path, '')
		FROM products p
		LEFT JOIN (SELECT prod_no, MAX(img_path) AS img_path FROM product_images GROUP BY prod_no) i ON p.prod_no = i.prod_no`

	ordersByBuyerQuery = `SELECT o.ord_no, o.prod_no, o.ord_count, o.ord_buyer, o.ord_seller, p.prod_name, COALESCE(i.img_path, '')
		FROM orders o
		JOIN products p ON o.prod_no = p.prod_no
		LEFT JOIN (SELECT prod_no, MAX(img_path) AS img_path FROM product_images GROUP BY prod_no) i ON p.prod_no = i.prod_no
		WHERE o.ord_buyer = ?
		ORDER BY o.ord_no DESC`
)

type MySQLAdapter struct {
	db *sql.DB
}

func NewMySQLAdapter(db *sql.DB) *MySQLAdapter {
	return &MySQLAdapter{db: db}
}

// createdAt stamps rows the caller left unset. The driver sends a zero time as
// '0000-00-00', which strict sql_mode rejects.
func createdAt(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t
}

func (m *MySQLAdapter) Ping(ctx context.Context) error {
	return classify(m.db.PingContext(ctx))
}

func (m *MySQLAdapter) PlaceOrder(ctx context.Context, order domain.Order) (domain.Order, error) {
	err := withTx(ctx, m.db, func(tx *sql.Tx) error {
		var stock int
		var seller string
		err := tx.QueryRowContext(ctx, lockStockQuery, order.ProdNo).Scan(&stock, &seller)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("product %d: %w", order.ProdNo, domain.ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("lock product: %w", classify(err))
		}

		if stock < order.Count {
			return fmt.Errorf("product %d has %d left, requested %d: %w",
				order.ProdNo, stock, order.Count, domain.ErrInsufficientStock)
		}
		if order.Seller == "" {
			order.Seller = seller
		}

		result, err := tx.ExecContext(ctx, insertOrderStmt,
			order.ProdNo, order.Count, order.Buyer, order.Seller, createdAt(order.CreatedAt),
		)
		if err != nil {
			return fmt.Errorf("insert order: %w", classify(err))
		}
		order.OrdNo, err = result.LastInsertId()
		if err != nil {
			return fmt.Errorf("order id: %w", err)
		}

		result, err = tx.ExecContext(ctx, decrementStmt, order.Count, order.ProdNo, order.Count)
		if err != nil {
			return fmt.Errorf("decrement stock: %w", classify(err))
		}
		rows, _ := result.RowsAffected()
		if rows == 0 {
			return fmt.Errorf("decrement stock: %w", domain.ErrInsufficientStock)
		}
		return nil
	})
	if err != nil {
		return domain.Order{}, err
	}
	return order, nil
}

func (m *MySQLAdapter) ListOrdersByBuyer(ctx context.Context, buyer string) ([]domain.OrderSummary, error) {
	rows, err := m.db.QueryContext(ctx, ordersByBuyerQuery, buyer)
	if err != nil {
		return nil, fmt.Errorf("query orders: %w", classify(err))
	}
	defer rows.Close()

	orders := []domain.OrderSummary{}
	for rows.Next() {
		var o domain.OrderSummary
		if err := rows.Scan(&o.OrdNo, &o.ProdNo, &o.Count, &o.Buyer, &o.Seller, &o.ProdName, &o.ImgPath); err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		if o.ImgPath == "" {
			o.ImgPath = domain.DefaultImagePath
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

func (m *MySQLAdapter) CreateProduct(ctx context.Context, p domain.Product, imgPath string) (int64, error) {
	var prodNo int64
	err := withTx(ctx, m.db, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, insertProdStmt,
			p.Name, p.Description, p.Category, p.Price, p.Count, p.Seller, createdAt(p.CreatedAt),
		)
		if err != nil {
			return fmt.Errorf("insert product: %w", classify(err))
		}
		prodNo, err = result.LastInsertId()
		if err != nil {
			return fmt.Errorf("product id: %w", err)
		}

		if imgPath == "" {
			return nil
		}
		if _, err := tx.ExecContext(ctx, insertImageStmt, prodNo, imgPath); err != nil {
			return fmt.Errorf("insert image: %w", classify(err))
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return prodNo, nil
}

func (m *MySQLAdapter) UpdateProduct(ctx context.Context, prodNo int64, f domain.ProductFields, requester, imgPath string) ([]string, error) {
	var replaced []string
	err := withTx(ctx, m.db, func(tx *sql.Tx) error {
		if err := checkOwner(ctx, tx, prodNo, requester); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, updateProdStmt,
			f.Name, f.Description, f.Category, f.Price, f.Count, prodNo,
		); err != nil {
			return fmt.Errorf("update product: %w", classify(err))
		}

		if imgPath == "" {
			return nil
		}

		var err error
		replaced, err = imagePaths(ctx, tx, prodNo)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, deleteImagesStmt, prodNo); err != nil {
			return fmt.Errorf("delete images: %w", classify(err))
		}
		if _, err := tx.ExecContext(ctx, insertImageStmt, prodNo, imgPath); err != nil {
			return fmt.Errorf("insert image: %w", classify(err))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return replaced, nil
}

func (m *MySQLAdapter) DeleteProduct(ctx context.Context, prodNo int64, seller string) ([]string, error) {
	var removed []string
	err := withTx(ctx, m.db, func(tx *sql.Tx) error {
		if err := checkOwner(ctx, tx, prodNo, seller); err != nil {
			return err
		}

		var err error
		removed, err = imagePaths(ctx, tx, prodNo)
		if err != nil {
			return err
		}

		// children before parent
		if _, err := tx.ExecContext(ctx, deleteImagesStmt, prodNo); err != nil {
			return fmt.Errorf("delete images: %w", classify(err))
		}
		if _, err := tx.ExecContext(ctx, deleteOrdersStmt, prodNo); err != nil {
			return fmt.Errorf("delete orders: %w", classify(err))
		}
		result, err := tx.ExecContext(ctx, deleteProdStmt, prodNo)
		if err != nil {
			return fmt.Errorf("delete product: %w", classify(err))
		}
		rows, _ := result.RowsAffected()
		if rows == 0 {
			return fmt.Errorf("product %d: %w", prodNo, domain.ErrNotFound)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return removed, nil
}

func (m *MySQLAdapter) GetProduct(ctx context.Context, prodNo int64) (*domain.Product, error) {
	row := m.db.QueryRowContext(ctx, productSelect+` WHERE p.prod_no = ?`, prodNo)

	p, err := scanProduct(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("product %d: %w", prodNo, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query product: %w", classify(err))
	}
	return &p, nil
}

func (m *MySQLAdapter) ListProducts(ctx context.Context, filter domain.ProductFilter) ([]domain.Product, error) {
	var (
		conds []string
		args  []any
	)
	if filter.Category > 0 {
		conds = append(conds, "p.prod_cate = ?")
		args = append(args, filter.Category)
	}
	if filter.Keyword != "" {
		conds = append(conds, "p.prod_name LIKE ?")
		args = append(args, "%"+filter.Keyword+"%")
	}

	query := productSelect
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY p.prod_no"

	rows, err := m.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query products: %w", classify(err))
	}
	defer rows.Close()

	products := []domain.Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanProduct(s scanner) (domain.Product, error) {
	var p domain.Product
	err := s.Scan(&p.ProdNo, &p.Name, &p.Description, &p.Category, &p.Price, &p.Count,
		&p.Seller, &p.CreatedAt, &p.ImgPath)
	if err != nil {
		return domain.Product{}, err
	}
	if p.ImgPath == "" {
		p.ImgPath = domain.DefaultImagePath
	}
	return p, nil
}

// checkOwner locks the product row and verifies requester against the stored seller.
// An empty requester skips the ownership check but still requires the row.
func checkOwner(ctx context.Context, tx *sql.Tx, prodNo int64, requester string) error {
	var seller string
	err := tx.QueryRowContext(ctx, lockSellerQuery, prodNo).Scan(&seller)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("product %d: %w", prodNo, domain.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("lock product: %w", classify(err))
	}
	if requester != "" && requester != seller {
		return fmt.Errorf("product %d owned by another seller: %w", prodNo, domain.ErrForbidden)
	}
	return nil
}

func imagePaths(ctx context.Context, tx *sql.Tx, prodNo int64) ([]string, error) {
	rows, err := tx.QueryContext(ctx, imagePathsQuery, prodNo)
	if err != nil {
		return nil, fmt.Errorf("query images: %w", classify(err))
	}
	defer rows.Close()

	var paths []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("scan image: %w", err)
		}
		paths = append(paths, p)
	}
	return paths, rows.Err()
}
