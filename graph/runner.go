// Package graph exports the relational dataset into Neo4j as a property graph.
package graph

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/studieren/dualstore/config"
)

// Runner executes one Cypher statement and buffers its result.
type Runner interface {
	Run(ctx context.Context, query string, params map[string]interface{}) (*neo4j.EagerResult, error)
}

// Neo4jRunner runs statements through neo4j.ExecuteQuery against one database.
type Neo4jRunner struct {
	Driver   neo4j.DriverWithContext
	Database string
}

func NewNeo4jRunner(cfg config.Neo4j) (*Neo4jRunner, error) {
	driver, err := neo4j.NewDriverWithContext(cfg.URI, neo4j.BasicAuth(cfg.Username, cfg.Password, ""))
	if err != nil {
		return nil, fmt.Errorf("could not create neo4j driver: %w", err)
	}
	return &Neo4jRunner{Driver: driver, Database: cfg.Database}, nil
}

func (r *Neo4jRunner) Verify(ctx context.Context) error {
	return r.Driver.VerifyConnectivity(ctx)
}

func (r *Neo4jRunner) Close(ctx context.Context) error {
	return r.Driver.Close(ctx)
}

func (r *Neo4jRunner) Run(ctx context.Context, query string, params map[string]interface{}) (*neo4j.EagerResult, error) {
	result, err := neo4j.ExecuteQuery(
		ctx,
		r.Driver,
		query,
		params,
		neo4j.EagerResultTransformer,
		neo4j.ExecuteQueryWithDatabase(r.Database),
	)
	if err != nil {
		return nil, fmt.Errorf("error executing neo4j query: %w", err)
	}
	return result, nil
}
