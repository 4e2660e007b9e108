// Package storage persists users, sessions, accounts and transactions of
// the development backend in SQLite.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"bilancio/internal/core"
	"bilancio/internal/log"
)

var (
	ErrNotFound   = errors.New("not found")
	ErrEmailTaken = errors.New("email already registered")
)

// UserRecord is a stored user with its bcrypt password hash.
type UserRecord struct {
	core.User
	PasswordHash string
}

type SQLiteRepository struct {
	db     *sql.DB
	logger *log.Logger
	now    func() time.Time
}

func NewSQLiteRepository(dbPath string, logger *log.Logger) (*SQLiteRepository, error) {
	if logger == nil {
		logger = log.Default(log.ComponentStorage)
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	version, err := RunMigrations(dbPath)
	if err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// One connection: SQLite has a single writer and pragmas are per connection.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	logger.Info("SQLite repository ready", "path", dbPath, "schema_version", version)
	return &SQLiteRepository{db: db, logger: logger, now: time.Now}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping reports whether the database answers.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *SQLiteRepository) timestamp() string {
	return r.now().Format(core.TimestampLayout)
}

func formatID(id int64) core.ID {
	return core.ID(strconv.FormatInt(id, 10))
}

func parseID(id core.ID) (int64, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(id.String()), 10, 64)
	if err != nil {
		return 0, ErrNotFound
	}
	return n, nil
}

// CreateUser stores a user. The email is compared case-insensitively.
func (r *SQLiteRepository) CreateUser(ctx context.Context, name, email, passwordHash string) (core.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if _, err := r.GetUserByEmail(ctx, email); err == nil {
		return core.User{}, ErrEmailTaken
	} else if !errors.Is(err, ErrNotFound) {
		return core.User{}, err
	}

	res, err := r.db.ExecContext(ctx,
		`INSERT INTO users (name, email, password_hash, created_at) VALUES (?, ?, ?, ?)`,
		strings.TrimSpace(name), email, passwordHash, r.timestamp())
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE") {
			return core.User{}, ErrEmailTaken
		}
		return core.User{}, fmt.Errorf("insert user: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return core.User{}, fmt.Errorf("user id: %w", err)
	}

	r.logger.InfoContext(ctx, "User created", log.FieldUserID, id)
	return core.User{ID: formatID(id), Name: strings.TrimSpace(name), Email: email}, nil
}

func (r *SQLiteRepository) GetUserByEmail(ctx context.Context, email string) (UserRecord, error) {
	var (
		rec UserRecord
		id  int64
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, email, password_hash FROM users WHERE email = ?`,
		strings.ToLower(strings.TrimSpace(email))).
		Scan(&id, &rec.Name, &rec.Email, &rec.PasswordHash)
	if errors.Is(err, sql.ErrNoRows) {
		return UserRecord{}, ErrNotFound
	}
	if err != nil {
		return UserRecord{}, fmt.Errorf("get user: %w", err)
	}
	rec.ID = formatID(id)
	return rec, nil
}

// CreateSession binds token to a user until expiresAt.
func (r *SQLiteRepository) CreateSession(ctx context.Context, token string, userID core.ID, expiresAt time.Time) error {
	uid, err := parseID(userID)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO sessions (token, user_id, expires_at) VALUES (?, ?, ?)`,
		token, uid, expiresAt.Unix())
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

// SessionUser returns the user owning a live session.
func (r *SQLiteRepository) SessionUser(ctx context.Context, token string) (core.User, error) {
	var (
		user core.User
		id   int64
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT u.id, u.name, u.email FROM sessions s JOIN users u ON u.id = s.user_id
		 WHERE s.token = ? AND s.expires_at > ?`,
		token, r.now().Unix()).Scan(&id, &user.Name, &user.Email)
	if errors.Is(err, sql.ErrNoRows) {
		return core.User{}, ErrNotFound
	}
	if err != nil {
		return core.User{}, fmt.Errorf("get session: %w", err)
	}
	user.ID = formatID(id)
	return user, nil
}

func (r *SQLiteRepository) DeleteSession(ctx context.Context, token string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE token = ?`, token); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// DeleteExpiredSessions removes sessions past their expiry and returns how
// many were removed.
func (r *SQLiteRepository) DeleteExpiredSessions(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at <= ?`, r.now().Unix())
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", err)
	}
	return res.RowsAffected()
}

const accountColumns = `a.id, a.name,
	COALESCE(SUM(CASE t.type WHEN 'income' THEN t.amount_cents WHEN 'expense' THEN -t.amount_cents END), 0)`

func scanAccount(scan func(...any) error) (core.Account, error) {
	var (
		acc core.Account
		id  int64
	)
	if err := scan(&id, &acc.Name, &acc.Sum.Cents); err != nil {
		return core.Account{}, err
	}
	acc.ID = formatID(id)
	return acc, nil
}

// ListAccounts returns the user's accounts with their balances.
func (r *SQLiteRepository) ListAccounts(ctx context.Context, userID core.ID) ([]core.Account, error) {
	uid, err := parseID(userID)
	if err != nil {
		return nil, err
	}
	rows, err := r.db.QueryContext(ctx, `SELECT `+accountColumns+`
		FROM accounts a LEFT JOIN transactions t ON t.account_id = a.id
		WHERE a.user_id = ? GROUP BY a.id ORDER BY a.id`, uid)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	accounts := make([]core.Account, 0)
	for rows.Next() {
		acc, err := scanAccount(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		accounts = append(accounts, acc)
	}
	return accounts, rows.Err()
}

func (r *SQLiteRepository) GetAccount(ctx context.Context, userID, id core.ID) (core.Account, error) {
	uid, err := parseID(userID)
	if err != nil {
		return core.Account{}, err
	}
	aid, err := parseID(id)
	if err != nil {
		return core.Account{}, err
	}
	row := r.db.QueryRowContext(ctx, `SELECT `+accountColumns+`
		FROM accounts a LEFT JOIN transactions t ON t.account_id = a.id
		WHERE a.user_id = ? AND a.id = ? GROUP BY a.id`, uid, aid)
	acc, err := scanAccount(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Account{}, ErrNotFound
	}
	if err != nil {
		return core.Account{}, fmt.Errorf("get account: %w", err)
	}
	return acc, nil
}

func (r *SQLiteRepository) CreateAccount(ctx context.Context, userID core.ID, name string) (core.Account, error) {
	uid, err := parseID(userID)
	if err != nil {
		return core.Account{}, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return core.Account{}, core.ErrEmptyName
	}
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO accounts (user_id, name, created_at) VALUES (?, ?, ?)`, uid, name, r.timestamp())
	if err != nil {
		return core.Account{}, fmt.Errorf("insert account: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return core.Account{}, fmt.Errorf("account id: %w", err)
	}

	r.logger.InfoContext(ctx, "Account created",
		log.FieldAccountID, id,
		log.FieldUserID, uid)
	return core.Account{ID: formatID(id), Name: name}, nil
}

// DeleteAccount removes an account and its transactions.
func (r *SQLiteRepository) DeleteAccount(ctx context.Context, userID, id core.ID) error {
	uid, err := parseID(userID)
	if err != nil {
		return err
	}
	aid, err := parseID(id)
	if err != nil {
		return err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `DELETE FROM accounts WHERE id = ? AND user_id = ?`, aid, uid)
	if err != nil {
		return fmt.Errorf("delete account: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM transactions WHERE account_id = ?`, aid); err != nil {
		return fmt.Errorf("delete account transactions: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	r.logger.InfoContext(ctx, "Account deleted",
		log.FieldAccountID, aid,
		log.FieldUserID, uid)
	return nil
}

func scanTransaction(scan func(...any) error) (core.Transaction, error) {
	var (
		tx                core.Transaction
		id, accountID     int64
		txType, createdAt string
	)
	if err := scan(&id, &accountID, &tx.Name, &tx.Sum.Cents, &txType, &createdAt); err != nil {
		return core.Transaction{}, err
	}
	ts, err := core.ParseTimestamp(createdAt)
	if err != nil {
		return core.Transaction{}, err
	}
	tx.ID = formatID(id)
	tx.AccountID = formatID(accountID)
	tx.Type = core.TransactionType(txType)
	tx.CreatedAt = ts
	return tx, nil
}

const transactionColumns = `t.id, t.account_id, t.name, t.amount_cents, t.type, t.created_at`

// ListTransactions returns an account's transactions, newest first.
func (r *SQLiteRepository) ListTransactions(ctx context.Context, userID, accountID core.ID) ([]core.Transaction, error) {
	if _, err := r.GetAccount(ctx, userID, accountID); err != nil {
		return nil, err
	}
	aid, _ := parseID(accountID)

	rows, err := r.db.QueryContext(ctx, `SELECT `+transactionColumns+`
		FROM transactions t WHERE t.account_id = ? ORDER BY t.id DESC`, aid)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	txs := make([]core.Transaction, 0)
	for rows.Next() {
		tx, err := scanTransaction(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		txs = append(txs, tx)
	}
	return txs, rows.Err()
}

// CreateTransaction records nt on one of the user's accounts.
func (r *SQLiteRepository) CreateTransaction(ctx context.Context, userID core.ID, nt core.NewTransaction) (core.Transaction, error) {
	if err := nt.Validate(); err != nil {
		return core.Transaction{}, err
	}
	if _, err := r.GetAccount(ctx, userID, nt.AccountID); err != nil {
		return core.Transaction{}, err
	}
	aid, _ := parseID(nt.AccountID)

	created := r.timestamp()
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO transactions (account_id, name, amount_cents, type, created_at) VALUES (?, ?, ?, ?, ?)`,
		aid, strings.TrimSpace(nt.Name), nt.Sum.Cents, string(nt.Type), created)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("insert transaction: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return core.Transaction{}, fmt.Errorf("transaction id: %w", err)
	}
	ts, _ := core.ParseTimestamp(created)

	r.logger.InfoContext(ctx, "Transaction saved to SQLite",
		log.FieldTxID, id,
		log.FieldAccountID, aid,
		log.FieldTxType, string(nt.Type),
		log.FieldAmount, nt.Sum.Cents)

	return core.Transaction{
		ID:        formatID(id),
		AccountID: nt.AccountID,
		Name:      strings.TrimSpace(nt.Name),
		Sum:       nt.Sum,
		Type:      nt.Type,
		CreatedAt: ts,
	}, nil
}

// DeleteTransaction removes a transaction owned by the user and returns it.
func (r *SQLiteRepository) DeleteTransaction(ctx context.Context, userID, id core.ID) (core.Transaction, error) {
	uid, err := parseID(userID)
	if err != nil {
		return core.Transaction{}, err
	}
	tid, err := parseID(id)
	if err != nil {
		return core.Transaction{}, err
	}

	row := r.db.QueryRowContext(ctx, `SELECT `+transactionColumns+`
		FROM transactions t JOIN accounts a ON a.id = t.account_id
		WHERE t.id = ? AND a.user_id = ?`, tid, uid)
	tx, err := scanTransaction(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Transaction{}, ErrNotFound
	}
	if err != nil {
		return core.Transaction{}, fmt.Errorf("get transaction: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, `DELETE FROM transactions WHERE id = ?`, tid); err != nil {
		return core.Transaction{}, fmt.Errorf("delete transaction: %w", err)
	}

	r.logger.InfoContext(ctx, "Transaction deleted",
		log.FieldTxID, tid,
		log.FieldAccountID, tx.AccountID.String())
	return tx, nil
}
