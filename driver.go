package norm

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"
)

// DriverSession implements [Session] over the official Neo4j driver. It owns
// the driver and one write session; close it when done.
type DriverSession struct {
	driver  neo4j.DriverWithContext
	session neo4j.SessionWithContext
	db      string
	log     *zap.Logger
}

// NewDriverSession connects to the database described by cfg and verifies
// connectivity before returning.
func NewDriverSession(ctx context.Context, cfg Config) (*DriverSession, error) {
	auth := neo4j.NoAuth()
	if cfg.Username != "" {
		auth = neo4j.BasicAuth(cfg.Username, cfg.Password, "")
	}

	driver, err := neo4j.NewDriverWithContext(cfg.URI, auth)
	if err != nil {
		return nil, fmt.Errorf("norm: failed to create driver: %w", err)
	}

	if err := driver.VerifyConnectivity(ctx); err != nil {
		_ = driver.Close(ctx)

		return nil, fmt.Errorf("norm: failed to connect: %w", err)
	}

	sessionCfg := neo4j.SessionConfig{
		AccessMode: neo4j.AccessModeWrite,
	}
	if cfg.Database != "" {
		sessionCfg.DatabaseName = cfg.Database
	}

	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}

	return &DriverSession{
		driver:  driver,
		session: driver.NewSession(ctx, sessionCfg),
		db:      cfg.Database,
		log:     log,
	}, nil
}

// Run executes one parameterized query and collects the result rows.
func (d *DriverSession) Run(ctx context.Context, cypher string, params map[string]any) (*Result, error) {
	d.log.Debug("running query", zap.String("cypher", cypher))

	result, err := d.session.Run(ctx, cypher, params)
	if err != nil {
		return nil, fmt.Errorf("norm: query execution failed: %w", err)
	}

	records, err := result.Collect(ctx)
	if err != nil {
		return nil, fmt.Errorf("norm: failed to collect results: %w", err)
	}

	return collectResult(records), nil
}

// Begin starts an explicit transaction. Queries run through the returned
// [Transaction] are isolated until Commit; use it to make multi-query
// operations like Replace atomic.
func (d *DriverSession) Begin(ctx context.Context) (*Transaction, error) {
	tx, err := d.session.BeginTransaction(ctx)
	if err != nil {
		return nil, fmt.Errorf("norm: failed to begin transaction: %w", err)
	}

	return &Transaction{tx: tx, log: d.log}, nil
}

// Close releases the session and the underlying driver.
func (d *DriverSession) Close(ctx context.Context) error {
	if d.session != nil {
		if err := d.session.Close(ctx); err != nil {
			return fmt.Errorf("norm: failed to close session: %w", err)
		}
	}

	if d.driver != nil {
		if err := d.driver.Close(ctx); err != nil {
			return fmt.Errorf("norm: failed to close driver: %w", err)
		}
	}

	return nil
}

// Transaction wraps an explicit Neo4j transaction as a [Session].
type Transaction struct {
	tx  neo4j.ExplicitTransaction
	log *zap.Logger
}

// Run executes one parameterized query within the transaction.
func (t *Transaction) Run(ctx context.Context, cypher string, params map[string]any) (*Result, error) {
	t.log.Debug("running query in transaction", zap.String("cypher", cypher))

	result, err := t.tx.Run(ctx, cypher, params)
	if err != nil {
		return nil, fmt.Errorf("norm: query execution failed: %w", err)
	}

	records, err := result.Collect(ctx)
	if err != nil {
		return nil, fmt.Errorf("norm: failed to collect results: %w", err)
	}

	return collectResult(records), nil
}

// Commit commits the transaction.
func (t *Transaction) Commit(ctx context.Context) error {
	return t.tx.Commit(ctx)
}

// Rollback aborts the transaction.
func (t *Transaction) Rollback(ctx context.Context) error {
	return t.tx.Rollback(ctx)
}

func collectResult(records []*neo4j.Record) *Result {
	res := &Result{}
	if len(records) > 0 {
		res.Keys = records[0].Keys
	}

	res.Rows = make([][]any, len(records))
	for i, record := range records {
		res.Rows[i] = record.Values
	}

	return res
}

var (
	_ Session = (*DriverSession)(nil)
	_ Session = (*Transaction)(nil)
)
