// This file defines repository methods for the product catalog. Products
// own their visits and analytics snapshot: deleting a product removes both
// in the same transaction so no orphaned analytics row survives.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/iliyamo/product-watch/internal/model"
)

// ProductRepo encapsulates all queries against the `products` table.
type ProductRepo struct {
	db *sql.DB
}

func NewProductRepo(db *sql.DB) *ProductRepo {
	return &ProductRepo{db: db}
}

// Create inserts a new product. On success the ID field is populated with
// the auto-generated value and a follow-up SELECT fills the timestamp
// columns so callers receive a fully populated record.
func (r *ProductRepo) Create(ctx context.Context, p *model.Product) error {
	res, err := r.db.ExecContext(ctx,
		"INSERT INTO products (name, description, price, stock) VALUES (?,?,?,?)",
		p.Name, p.Description, p.Price, p.Stock)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	p.ID = uint64(id)
	return r.db.QueryRowContext(ctx,
		"SELECT created_at, updated_at FROM products WHERE id=?", p.ID).
		Scan(&p.CreatedAt, &p.UpdatedAt)
}

// GetByID fetches a product by id, returning ErrNotFound when absent.
func (r *ProductRepo) GetByID(ctx context.Context, id uint64) (*model.Product, error) {
	const q = "SELECT id, name, description, price, stock, created_at, updated_at FROM products WHERE id=? LIMIT 1"
	var p model.Product
	err := r.db.QueryRowContext(ctx, q, id).
		Scan(&p.ID, &p.Name, &p.Description, &p.Price, &p.Stock, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

// List returns one page of products, newest first, plus the total count of
// rows matching the filter. The name filter is a case-insensitive substring
// match; empty means no filtering.
func (r *ProductRepo) List(ctx context.Context, skip, limit int, name string) ([]model.Product, int64, error) {
	cond := "1=1"
	args := []any{}
	if name != "" {
		cond = "LOWER(name) LIKE ?"
		args = append(args, "%"+strings.ToLower(name)+"%")
	}

	var total int64
	if err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM products WHERE "+cond, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	dataSQL := `SELECT id, name, description, price, stock, created_at, updated_at
		FROM products WHERE ` + cond + `
		ORDER BY created_at DESC, id DESC
		LIMIT ? OFFSET ?`
	argsData := append(append([]any{}, args...), limit, skip)

	rows, err := r.db.QueryContext(ctx, dataSQL, argsData...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := make([]model.Product, 0, limit)
	for rows.Next() {
		var p model.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.Price, &p.Stock, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, 0, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// Update writes the merged product row back. The caller is expected to have
// loaded the row first (so ErrNotFound surfaces there); rows-affected is not
// checked because MySQL reports zero for no-op updates.
func (r *ProductRepo) Update(ctx context.Context, p *model.Product) error {
	const q = `UPDATE products
	           SET name=?, description=?, price=?, stock=?, updated_at=CURRENT_TIMESTAMP
	           WHERE id=?`
	if _, err := r.db.ExecContext(ctx, q, p.Name, p.Description, p.Price, p.Stock, p.ID); err != nil {
		return err
	}
	return r.db.QueryRowContext(ctx,
		"SELECT updated_at FROM products WHERE id=?", p.ID).Scan(&p.UpdatedAt)
}

// Delete removes a product together with its visits and analytics snapshot.
// The deletion occurs within a transaction to maintain integrity; without it
// a crash between statements could leave analytics derived from visits that
// no longer exist.
func (r *ProductRepo) Delete(ctx context.Context, id uint64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		} else {
			err = tx.Commit()
		}
	}()

	if _, err = tx.ExecContext(ctx, "DELETE FROM visits WHERE product_id=?", id); err != nil {
		return err
	}
	if _, err = tx.ExecContext(ctx, "DELETE FROM product_analytics WHERE product_id=?", id); err != nil {
		return err
	}
	var res sql.Result
	if res, err = tx.ExecContext(ctx, "DELETE FROM products WHERE id=?", id); err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		err = ErrNotFound
		return err
	}
	return nil
}
