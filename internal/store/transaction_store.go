package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/vbonduro/cashreg/internal/domain"
)

const transactionColumns = `id, customer_id, total, tax, payment_method, items, timestamp, id_verified, remote_order_id`

// TransactionStore records completed sales. Transactions are written once at
// checkout and are never amended afterwards.
type TransactionStore struct {
	db *sql.DB
}

func NewTransactionStore(db *sql.DB) *TransactionStore {
	return &TransactionStore{db: db}
}

func (s *TransactionStore) Create(ctx context.Context, tx *domain.Transaction) (int64, error) {
	items, err := json.Marshal(tx.Items)
	if err != nil {
		return 0, fmt.Errorf("failed to encode transaction items: %w: %v", domain.ErrValidation, err)
	}

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO transactions (customer_id, total, tax, payment_method, items, timestamp, id_verified, remote_order_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, tx.CustomerID, tx.Total, tx.Tax, required(tx.PaymentMethod), string(items), formatTimestamp(tx.Timestamp),
		tx.IDVerified, nullString(tx.RemoteOrderID))
	if err != nil {
		return 0, classify("create transaction", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert id: %w: %v", domain.ErrStorage, err)
	}
	return id, nil
}

func (s *TransactionStore) GetByID(ctx context.Context, id int64) (*domain.Transaction, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE id = ?`, id)
	tx, err := scanTransaction(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return tx, err
}

func (s *TransactionStore) List(ctx context.Context) ([]*domain.Transaction, error) {
	return s.query(ctx, "list transactions", `
		SELECT `+transactionColumns+` FROM transactions ORDER BY id DESC
	`)
}

func (s *TransactionStore) ListByCustomer(ctx context.Context, customerID int64) ([]*domain.Transaction, error) {
	return s.query(ctx, "list customer transactions", `
		SELECT `+transactionColumns+` FROM transactions WHERE customer_id = ? ORDER BY id DESC
	`, customerID)
}

func (s *TransactionStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM transactions`).Scan(&n); err != nil {
		return 0, classify("count transactions", err)
	}
	return n, nil
}

func (s *TransactionStore) Update(_ context.Context, _ *domain.Transaction) error {
	return fmt.Errorf("failed to update transaction: %w", domain.ErrImmutable)
}

func (s *TransactionStore) Delete(_ context.Context, _ int64) error {
	return fmt.Errorf("failed to delete transaction: %w", domain.ErrImmutable)
}

func (s *TransactionStore) query(ctx context.Context, op, query string, args ...any) ([]*domain.Transaction, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, classify(op, err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			slog.Error("failed to close rows", "error", err)
		}
	}()

	var txs []*domain.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		txs = append(txs, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(op, err)
	}
	return txs, nil
}

func scanTransaction(sc scanner) (*domain.Transaction, error) {
	tx := &domain.Transaction{}
	var customerID sql.NullInt64
	var items, timestamp string
	var remoteID sql.NullString
	err := sc.Scan(&tx.ID, &customerID, &tx.Total, &tx.Tax, &tx.PaymentMethod, &items, &timestamp,
		&tx.IDVerified, &remoteID)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, classify("scan transaction", err)
	}

	if customerID.Valid {
		id := customerID.Int64
		tx.CustomerID = &id
	}
	tx.RemoteOrderID = remoteID.String
	if err := json.Unmarshal([]byte(items), &tx.Items); err != nil {
		return nil, fmt.Errorf("failed to decode items of transaction %d: %w: %v", tx.ID, domain.ErrStorage, err)
	}
	if tx.Timestamp, err = parseTime(domain.TimestampLayout, timestamp); err != nil {
		return nil, err
	}
	return tx, nil
}
