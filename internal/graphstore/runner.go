// Package graphstore wraps the Bolt driver used to reach the graph store
// (Memgraph or Neo4j) and maps stored nodes onto tagged Go structs.
package graphstore

import (
	"context"
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// Runner executes Cypher against the store. Run uses a managed transaction;
// RunAutoCommit uses an implicit one, which Memgraph requires for index
// manipulation and for some procedure calls.
type Runner interface {
	// Run executes a query and returns a fully-buffered result.
	Run(ctx context.Context, query string, params map[string]any) (*neo4j.EagerResult, error)
	// RunAutoCommit executes a query outside an explicit transaction.
	RunAutoCommit(ctx context.Context, query string, params map[string]any) (*neo4j.EagerResult, error)
}

//---

// Executor is the Runner backed by the official Bolt driver. Every call is
// bounded by QueryTimeout unless the context carries its own call timeout
// (see WithCallTimeout).
type Executor struct {
	Driver       neo4j.DriverWithContext
	DBName       string
	QueryTimeout time.Duration
}

// NewExecutor creates the driver. It does not contact the store; use Verify
// or WaitUntilAvailable for that.
//
// An empty username selects no authentication, which is the Memgraph default.
// An empty dbName leaves database selection to the server.
func NewExecutor(uri, username, password, dbName string, timeout time.Duration) (*Executor, error) {
	auth := neo4j.NoAuth()
	if username != "" {
		auth = neo4j.BasicAuth(username, password, "")
	}
	driver, err := neo4j.NewDriverWithContext(uri, auth)
	if err != nil {
		return nil, fmt.Errorf("could not create graph store driver: %w", err)
	}
	return &Executor{Driver: driver, DBName: dbName, QueryTimeout: timeout}, nil
}

// Verify checks connectivity to the store.
func (e *Executor) Verify(ctx context.Context) error {
	ctx, cancel := e.bound(ctx)
	defer cancel()
	return e.Driver.VerifyConnectivity(ctx)
}

// Close releases the driver's connections.
func (e *Executor) Close(ctx context.Context) error {
	return e.Driver.Close(ctx)
}

// Run executes a query with ExecuteQuery, which retries transient failures
// and manages the session and transaction.
//
// Parameters:
//   - ctx: The context for the query execution. QueryTimeout applies unless
//     ctx carries a call timeout.
//   - query: The Cypher query string to execute.
//   - params: A map of parameters to be used in the query.
//
// Returns:
//   - The eagerly collected records of the query.
//   - An error if the query could not be executed.
func (e *Executor) Run(ctx context.Context, query string, params map[string]any) (*neo4j.EagerResult, error) {
	ctx, cancel := e.bound(ctx)
	defer cancel()

	opts := []neo4j.ExecuteQueryConfigurationOption{}
	if e.DBName != "" {
		opts = append(opts, neo4j.ExecuteQueryWithDatabase(e.DBName))
	}
	result, err := neo4j.ExecuteQuery(ctx, e.Driver, query, params, neo4j.EagerResultTransformer, opts...)
	if err != nil {
		return nil, fmt.Errorf("error executing graph store query: %w", err)
	}
	return result, nil
}

// RunAutoCommit executes a query in an implicit transaction and buffers the
// result the same way Run does.
func (e *Executor) RunAutoCommit(ctx context.Context, query string, params map[string]any) (*neo4j.EagerResult, error) {
	ctx, cancel := e.bound(ctx)
	defer cancel()

	session := e.Driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   neo4j.AccessModeWrite,
		DatabaseName: e.DBName,
	})
	defer session.Close(ctx)

	res, err := session.Run(ctx, query, params)
	if err != nil {
		return nil, fmt.Errorf("error executing graph store query: %w", err)
	}
	keys, err := res.Keys()
	if err != nil {
		return nil, fmt.Errorf("error reading graph store result: %w", err)
	}
	records, err := res.Collect(ctx)
	if err != nil {
		return nil, fmt.Errorf("error reading graph store result: %w", err)
	}
	summary, err := res.Consume(ctx)
	if err != nil {
		return nil, fmt.Errorf("error reading graph store result: %w", err)
	}
	return &neo4j.EagerResult{Keys: keys, Records: records, Summary: summary}, nil
}

func (e *Executor) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	timeout := e.QueryTimeout
	if d, ok := callTimeout(ctx); ok {
		timeout = d
	}
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}
