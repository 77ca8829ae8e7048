package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

var ErrNotFound = errors.New("not found")

type Repository struct {
	db *sql.DB
}

func openSQLite(path string) (*sql.DB, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	db, err := sql.Open("sqlite3", fmt.Sprintf("%s?_busy_timeout=5000&_foreign_keys=on", path))
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	return db, nil
}

func NewRepository(ctx context.Context, dbPath string) (*Repository, error) {
	db, err := openSQLite(dbPath)
	if err != nil {
		return nil, err
	}
	r := &Repository{db: db}
	if err := r.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return r, nil
}

func (r *Repository) migrate(ctx context.Context) error {
	const schema = `
CREATE TABLE IF NOT EXISTS products(
  id    INTEGER PRIMARY KEY,
  title TEXT    NOT NULL,
  price REAL    NOT NULL,
  image TEXT    NOT NULL DEFAULT ''
);
CREATE TABLE IF NOT EXISTS stock(
  product_id INTEGER PRIMARY KEY REFERENCES products(id),
  amount     INTEGER NOT NULL DEFAULT 0 CHECK (amount >= 0),
  updated_at INTEGER NOT NULL DEFAULT (strftime('%s','now'))
);
`
	_, err := r.db.ExecContext(ctx, schema)
	return err
}

func (r *Repository) Close() error { return r.db.Close() }

var seedShoes = []struct {
	Product
	amount int
}{
	{Product{1, "Tênis de Caminhada Leve Confortável", 179.9, "https://rocketseat-cdn.s3-sa-east-1.amazonaws.com/modulo-redux/tenis1.jpg"}, 3},
	{Product{2, "Tênis VR Caminhada Confortável Detalhes Couro Masculino", 139.9, "https://rocketseat-cdn.s3-sa-east-1.amazonaws.com/modulo-redux/tenis2.jpg"}, 5},
	{Product{3, "Tênis Adidas Duramo Lite 2.0", 219.9, "https://rocketseat-cdn.s3-sa-east-1.amazonaws.com/modulo-redux/tenis3.jpg"}, 2},
	{Product{4, "Tênis de Caminhada Leve Confortável", 179.9, "https://rocketseat-cdn.s3-sa-east-1.amazonaws.com/modulo-redux/tenis1.jpg"}, 1},
	{Product{5, "Tênis VR Caminhada Confortável Detalhes Couro Masculino", 139.9, "https://rocketseat-cdn.s3-sa-east-1.amazonaws.com/modulo-redux/tenis2.jpg"}, 5},
	{Product{6, "Tênis Adidas Duramo Lite 2.0", 219.9, "https://rocketseat-cdn.s3-sa-east-1.amazonaws.com/modulo-redux/tenis3.jpg"}, 10},
}

// Seed inserts the storefront shoes. Existing rows are left alone so edited
// stock survives restarts.
func (r *Repository) Seed(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, s := range seedShoes {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO products(id,title,price,image) VALUES(?,?,?,?) ON CONFLICT(id) DO NOTHING`,
			s.ID, s.Title, s.Price, s.Image); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO stock(product_id,amount) VALUES(?,?) ON CONFLICT(product_id) DO NOTHING`,
			s.ID, s.amount); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (r *Repository) ListProducts(ctx context.Context) ([]Product, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id,title,price,image FROM products ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Product{}
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.Title, &p.Price, &p.Image); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *Repository) GetProduct(ctx context.Context, id int64) (Product, error) {
	var p Product
	err := r.db.QueryRowContext(ctx, `SELECT id,title,price,image FROM products WHERE id=?`, id).
		Scan(&p.ID, &p.Title, &p.Price, &p.Image)
	if errors.Is(err, sql.ErrNoRows) {
		return Product{}, fmt.Errorf("product %d: %w", id, ErrNotFound)
	}
	return p, err
}

func (r *Repository) ListStock(ctx context.Context) ([]Stock, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT product_id,amount FROM stock ORDER BY product_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Stock{}
	for rows.Next() {
		var s Stock
		if err := rows.Scan(&s.ID, &s.Amount); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *Repository) GetStock(ctx context.Context, id int64) (Stock, error) {
	s := Stock{ID: id}
	err := r.db.QueryRowContext(ctx, `SELECT amount FROM stock WHERE product_id=?`, id).Scan(&s.Amount)
	if errors.Is(err, sql.ErrNoRows) {
		return Stock{}, fmt.Errorf("stock %d: %w", id, ErrNotFound)
	}
	return s, err
}

// SetStock overwrites the amount for a known product.
func (r *Repository) SetStock(ctx context.Context, id int64, amount int) (Stock, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE stock SET amount=?, updated_at=strftime('%s','now') WHERE product_id=?`, amount, id)
	if err != nil {
		return Stock{}, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return Stock{}, fmt.Errorf("stock %d: %w", id, ErrNotFound)
	}
	return Stock{ID: id, Amount: amount}, nil
}
