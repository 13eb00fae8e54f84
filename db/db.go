package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	log "github.com/sirupsen/logrus"
)

const (
	DefaultConnMaxIdleTimeSeconds = 10
	DefaultConnMaxLifetimeSeconds = 300
)

// PoolConfig represents tunables for the sql.DB pool.
type PoolConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxIdleTime time.Duration
	ConnMaxLifetime time.Duration
}

var DefaultPoolConfig = PoolConfig{
	MaxOpenConns:    20,
	MaxIdleConns:    2,
	ConnMaxIdleTime: DefaultConnMaxIdleTimeSeconds * time.Second,
	ConnMaxLifetime: DefaultConnMaxLifetimeSeconds * time.Second,
}

// SQLExecuter is the subset of *sqlx.DB and *sqlx.Tx methods the data layer
// depends on, so queries can run either on the pool or inside a transaction.
type SQLExecuter interface {
	DriverName() string
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	sqlx.PreparerContext
	sqlx.QueryerContext
	Rebind(query string) string
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
}

// DBTransaction is an interface that wraps the sqlx.Tx struct methods.
type DBTransaction interface {
	SQLExecuter
	Rollback() error
	Commit() error
}

// DBConnectionPool wraps the sqlx.DB struct methods used by the application.
type DBConnectionPool interface {
	SQLExecuter
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (DBTransaction, error)
	Close() error
	Ping(ctx context.Context) error
	SqlDB() *sql.DB
}

// DBConnectionPoolImplementation is a wrapper around sqlx.DB that implements DBConnectionPool.
type DBConnectionPoolImplementation struct {
	*sqlx.DB
}

func (db *DBConnectionPoolImplementation) BeginTxx(ctx context.Context, opts *sql.TxOptions) (DBTransaction, error) {
	return db.DB.BeginTxx(ctx, opts)
}

func (db *DBConnectionPoolImplementation) Ping(ctx context.Context) error {
	return db.DB.PingContext(ctx)
}

func (db *DBConnectionPoolImplementation) SqlDB() *sql.DB {
	return db.DB.DB
}

var (
	_ DBConnectionPool = (*DBConnectionPoolImplementation)(nil)
	_ SQLExecuter      = (*sqlx.DB)(nil)
	_ SQLExecuter      = (*sqlx.Tx)(nil)
	_ DBTransaction    = (*sqlx.Tx)(nil)
)

// PostCommitFn runs after the surrounding transaction commits. It is used for
// cache invalidation and notification dispatch, which must never run before
// the commit and whose failures must not roll back committed state.
type PostCommitFn func(ctx context.Context)

// RunInTransactionWithResult runs atomicFn inside a database transaction and
// returns its result. The transaction is rolled back on any error.
func RunInTransactionWithResult[T any](ctx context.Context, pool DBConnectionPool, opts *sql.TxOptions, atomicFn func(dbTx DBTransaction) (T, error)) (result T, err error) {
	dbTx, err := pool.BeginTxx(ctx, opts)
	if err != nil {
		return *new(T), fmt.Errorf("beginning db transaction: %w", err)
	}

	defer func() {
		TxRollback(ctx, dbTx, err, "rolling back transaction due to error")
	}()

	result, err = atomicFn(dbTx)
	if err != nil {
		return *new(T), NewTransactionExecutionError(err)
	}

	if err = dbTx.Commit(); err != nil {
		return *new(T), fmt.Errorf("committing db transaction: %w", err)
	}

	return result, nil
}

// RunInTransaction runs atomicFn inside a database transaction.
func RunInTransaction(ctx context.Context, pool DBConnectionPool, opts *sql.TxOptions, atomicFn func(dbTx DBTransaction) error) error {
	_, err := RunInTransactionWithResult(ctx, pool, opts, func(dbTx DBTransaction) (struct{}, error) {
		return struct{}{}, atomicFn(dbTx)
	})
	return err
}

// RunInTransactionWithPostCommit is RunInTransactionWithResult for operations
// that need side effects after the commit. The post-commit functions returned
// by atomicFn run only if the commit succeeds, in order, on a best-effort
// basis.
func RunInTransactionWithPostCommit[T any](ctx context.Context, pool DBConnectionPool, opts *sql.TxOptions, atomicFn func(dbTx DBTransaction) (T, []PostCommitFn, error)) (T, error) {
	var postCommitFns []PostCommitFn
	result, err := RunInTransactionWithResult(ctx, pool, opts, func(dbTx DBTransaction) (T, error) {
		res, fns, fnErr := atomicFn(dbTx)
		postCommitFns = fns
		return res, fnErr
	})
	if err != nil {
		return *new(T), err
	}

	for _, fn := range postCommitFns {
		if fn != nil {
			fn(ctx)
		}
	}
	return result, nil
}

// TxRollback rolls back the transaction if err is non-nil.
func TxRollback(ctx context.Context, dbTx DBTransaction, err error, logMessage string) {
	if err == nil {
		return
	}
	if IsTransactionExecutionError(err) {
		log.WithContext(ctx).Debugf("%s: %s", logMessage, err.Error())
	} else {
		log.WithContext(ctx).Errorf("%s: %s", logMessage, err.Error())
	}
	if errRollback := dbTx.Rollback(); errRollback != nil && !errors.Is(errRollback, sql.ErrTxDone) {
		log.WithContext(ctx).Errorf("error in database transaction rollback: %s", errRollback.Error())
	}
}

// OpenDBConnectionPoolWithConfig opens a new database connection pool. It
// returns an error if it can't connect to the database.
func OpenDBConnectionPoolWithConfig(dataSourceName string, cfg PoolConfig) (DBConnectionPool, error) {
	sqlxDB, err := sqlx.Open("postgres", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("opening db connection pool: %w", err)
	}

	sqlxDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlxDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlxDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
	sqlxDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if err = sqlxDB.Ping(); err != nil {
		return nil, fmt.Errorf("pinging db connection pool: %w", err)
	}

	return &DBConnectionPoolImplementation{DB: sqlxDB}, nil
}

// OpenDBConnectionPool opens a new database connection pool with default settings.
func OpenDBConnectionPool(dataSourceName string) (DBConnectionPool, error) {
	return OpenDBConnectionPoolWithConfig(dataSourceName, DefaultPoolConfig)
}

// CloseRows closes the given rows and logs an error if it can't close them.
func CloseRows(ctx context.Context, rows *sqlx.Rows) {
	if err := rows.Close(); err != nil {
		log.WithContext(ctx).Errorf("failed to close rows: %v", err)
	}
}

// TransactionExecutionError represents an error that occurred during the
// execution of the atomic function, as opposed to errors from transaction
// handling itself.
type TransactionExecutionError struct {
	err error
}

func NewTransactionExecutionError(err error) *TransactionExecutionError {
	return &TransactionExecutionError{err: err}
}

func (t *TransactionExecutionError) Error() string {
	return fmt.Sprintf("transaction execution error: %s", t.err.Error())
}

func (t *TransactionExecutionError) Unwrap() error {
	return t.err
}

// IsTransactionExecutionError checks if the given error originated from the atomic function execution.
func IsTransactionExecutionError(err error) bool {
	var eErr *TransactionExecutionError
	return errors.As(err, &eErr)
}
