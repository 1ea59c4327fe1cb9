package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/atmx/sales-engine/internal/model"
)

// PostgresStore implements Store using PostgreSQL as the source of truth.
// All monetary values are stored as NUMERIC for exact decimal precision.
// Every table carries an ordinal column so reads return import order.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL-backed store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// readTx runs fn in a read-only REPEATABLE READ transaction, so every query
// in fn sees the same committed import.
func (s *PostgresStore) readTx(ctx context.Context, fn func(pgx.Tx) error) error {
	return pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{
		IsoLevel:   pgx.RepeatableRead,
		AccessMode: pgx.ReadOnly,
	}, fn)
}

// Snapshot reads all tables inside one transaction.
func (s *PostgresStore) Snapshot(ctx context.Context) (*model.Dataset, error) {
	var ds model.Dataset
	err := s.readTx(ctx, func(tx pgx.Tx) (err error) {
		if ds.Products, err = listProducts(ctx, tx); err != nil {
			return err
		}
		if ds.Sellers, err = listSellers(ctx, tx); err != nil {
			return err
		}
		if ds.Customers, err = listCustomers(ctx, tx); err != nil {
			return err
		}
		ds.PurchaseRecords, err = listPurchaseRecords(ctx, tx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &ds, nil
}

func (s *PostgresStore) ListProducts(ctx context.Context) ([]model.Product, error) {
	return listProducts(ctx, s.pool)
}

func (s *PostgresStore) ListSellers(ctx context.Context) ([]model.Seller, error) {
	return listSellers(ctx, s.pool)
}

func (s *PostgresStore) ListCustomers(ctx context.Context) ([]model.Customer, error) {
	return listCustomers(ctx, s.pool)
}

// ListPurchaseRecords reads receipts and line items in one transaction.
func (s *PostgresStore) ListPurchaseRecords(ctx context.Context) ([]model.PurchaseRecord, error) {
	var records []model.PurchaseRecord
	err := s.readTx(ctx, func(tx pgx.Tx) (err error) {
		records, err = listPurchaseRecords(ctx, tx)
		return err
	})
	return records, err
}

func listProducts(ctx context.Context, q querier) ([]model.Product, error) {
	rows, err := q.Query(ctx,
		`SELECT sku, name, category, purchase_price::TEXT, sale_price::TEXT
		 FROM products ORDER BY ordinal`)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	var products []model.Product
	for rows.Next() {
		var p model.Product
		var purchaseS, saleS string
		if err := rows.Scan(&p.SKU, &p.Name, &p.Category, &purchaseS, &saleS); err != nil {
			return nil, err
		}
		if p.PurchasePrice, err = parseDecimal("purchase_price", purchaseS); err != nil {
			return nil, err
		}
		if p.SalePrice, err = parseDecimal("sale_price", saleS); err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

func listSellers(ctx context.Context, q querier) ([]model.Seller, error) {
	rows, err := q.Query(ctx,
		`SELECT id, first_name, last_name, start_date, position
		 FROM sellers ORDER BY ordinal`)
	if err != nil {
		return nil, fmt.Errorf("list sellers: %w", err)
	}
	defer rows.Close()

	var sellers []model.Seller
	for rows.Next() {
		var sl model.Seller
		if err := rows.Scan(&sl.ID, &sl.FirstName, &sl.LastName, &sl.StartDate, &sl.Position); err != nil {
			return nil, err
		}
		sellers = append(sellers, sl)
	}
	return sellers, rows.Err()
}

func listCustomers(ctx context.Context, q querier) ([]model.Customer, error) {
	rows, err := q.Query(ctx,
		`SELECT id, first_name, last_name, phone, email
		 FROM customers ORDER BY ordinal`)
	if err != nil {
		return nil, fmt.Errorf("list customers: %w", err)
	}
	defer rows.Close()

	var customers []model.Customer
	for rows.Next() {
		var c model.Customer
		if err := rows.Scan(&c.ID, &c.FirstName, &c.LastName, &c.Phone, &c.Email); err != nil {
			return nil, err
		}
		customers = append(customers, c)
	}
	return customers, rows.Err()
}

// listPurchaseRecords reads receipts and line items in two queries and
// stitches them together by record ordinal. q should be a transaction.
func listPurchaseRecords(ctx context.Context, q querier) ([]model.PurchaseRecord, error) {
	rows, err := q.Query(ctx,
		`SELECT ordinal, receipt_id, date, seller_id, customer_id,
		        total_amount::TEXT, total_discount::TEXT
		 FROM purchase_records ORDER BY ordinal`)
	if err != nil {
		return nil, fmt.Errorf("list purchase records: %w", err)
	}
	defer rows.Close()

	var records []model.PurchaseRecord
	byOrdinal := make(map[int]int)
	for rows.Next() {
		var r model.PurchaseRecord
		var ordinal int
		var totalS, discountS string
		if err := rows.Scan(&ordinal, &r.ReceiptID, &r.Date, &r.SellerID, &r.CustomerID,
			&totalS, &discountS); err != nil {
			return nil, err
		}
		if r.TotalAmount, err = parseDecimal("total_amount", totalS); err != nil {
			return nil, err
		}
		if r.TotalDiscount, err = parseDecimal("total_discount", discountS); err != nil {
			return nil, err
		}
		byOrdinal[ordinal] = len(records)
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rows.Close()

	itemRows, err := q.Query(ctx,
		`SELECT record_ordinal, sku, quantity, sale_price::TEXT, discount::TEXT
		 FROM purchase_items ORDER BY record_ordinal, line`)
	if err != nil {
		return nil, fmt.Errorf("list purchase items: %w", err)
	}
	defer itemRows.Close()

	var items []ordinalItem
	for itemRows.Next() {
		var oi ordinalItem
		var priceS, discountS string
		if err := itemRows.Scan(&oi.ordinal, &oi.item.SKU, &oi.item.Quantity, &priceS, &discountS); err != nil {
			return nil, err
		}
		if oi.item.SalePrice, err = parseDecimal("sale_price", priceS); err != nil {
			return nil, err
		}
		if oi.item.Discount, err = parseDecimal("discount", discountS); err != nil {
			return nil, err
		}
		items = append(items, oi)
	}
	if err := itemRows.Err(); err != nil {
		return nil, err
	}

	if err := attachItems(records, byOrdinal, items); err != nil {
		return nil, err
	}
	return records, nil
}

// ordinalItem is a line item tagged with the ordinal of its receipt.
type ordinalItem struct {
	ordinal int
	item    model.PurchaseItem
}

// attachItems appends items to their receipts in the given order. byOrdinal
// maps a receipt ordinal to its index in records.
func attachItems(records []model.PurchaseRecord, byOrdinal map[int]int, items []ordinalItem) error {
	for _, oi := range items {
		i, ok := byOrdinal[oi.ordinal]
		if !ok {
			return fmt.Errorf("purchase item references missing record ordinal %d", oi.ordinal)
		}
		records[i].Items = append(records[i].Items, oi.item)
	}
	return nil
}

// ImportDataset replaces every table's contents in a single transaction.
func (s *PostgresStore) ImportDataset(ctx context.Context, ds *model.Dataset) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx,
			`TRUNCATE purchase_items, purchase_records, customers, sellers, products`); err != nil {
			return fmt.Errorf("truncate dataset: %w", err)
		}

		batch := &pgx.Batch{}
		for i, p := range ds.Products {
			batch.Queue(
				`INSERT INTO products (ordinal, sku, name, category, purchase_price, sale_price)
				 VALUES ($1, $2, $3, $4, $5::NUMERIC, $6::NUMERIC)`,
				i, p.SKU, p.Name, p.Category, p.PurchasePrice.String(), p.SalePrice.String(),
			)
		}
		for i, sl := range ds.Sellers {
			batch.Queue(
				`INSERT INTO sellers (ordinal, id, first_name, last_name, start_date, position)
				 VALUES ($1, $2, $3, $4, $5, $6)`,
				i, sl.ID, sl.FirstName, sl.LastName, sl.StartDate, sl.Position,
			)
		}
		for i, c := range ds.Customers {
			batch.Queue(
				`INSERT INTO customers (ordinal, id, first_name, last_name, phone, email)
				 VALUES ($1, $2, $3, $4, $5, $6)`,
				i, c.ID, c.FirstName, c.LastName, c.Phone, c.Email,
			)
		}
		for i, r := range ds.PurchaseRecords {
			batch.Queue(
				`INSERT INTO purchase_records (ordinal, receipt_id, date, seller_id, customer_id, total_amount, total_discount)
				 VALUES ($1, $2, $3, $4, $5, $6::NUMERIC, $7::NUMERIC)`,
				i, r.ReceiptID, r.Date, r.SellerID, r.CustomerID,
				r.TotalAmount.String(), r.TotalDiscount.String(),
			)
			for line, it := range r.Items {
				batch.Queue(
					`INSERT INTO purchase_items (record_ordinal, line, sku, quantity, sale_price, discount)
					 VALUES ($1, $2, $3, $4, $5::NUMERIC, $6::NUMERIC)`,
					i, line, it.SKU, it.Quantity, it.SalePrice.String(), it.Discount.String(),
				)
			}
		}

		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("import dataset: %w", err)
		}
		return nil
	})
}

func parseDecimal(column, s string) (decimal.Decimal, error) {
	v, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse %s %q: %w", column, s, err)
	}
	return v, nil
}
