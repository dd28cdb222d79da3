package neo4j

import (
	"context"
	"fmt"
	"strings"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/kirillkom/docsearch/internal/core/domain"
	"github.com/kirillkom/docsearch/internal/core/ports"
)

var _ ports.DocumentRegistry = (*Registry)(nil)

type queryFunc func(ctx context.Context, cypher string, params map[string]any, read bool) (*neo4j.EagerResult, error)

// Registry stores entries as (:Document {id, title, createdAt}) nodes.
type Registry struct {
	driver neo4j.DriverWithContext
	query  queryFunc
}

func Open(ctx context.Context, uri, user, password, database string) (*Registry, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(user, password, ""))
	if err != nil {
		return nil, fmt.Errorf("create neo4j driver: %w", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		_ = driver.Close(ctx)
		return nil, fmt.Errorf("verify neo4j connectivity: %w", err)
	}

	r := &Registry{driver: driver}
	r.query = func(ctx context.Context, cypher string, params map[string]any, read bool) (*neo4j.EagerResult, error) {
		opts := []neo4j.ExecuteQueryConfigurationOption{}
		if database != "" {
			opts = append(opts, neo4j.ExecuteQueryWithDatabase(database))
		}
		if read {
			opts = append(opts, neo4j.ExecuteQueryWithReadersRouting())
		}
		return neo4j.ExecuteQuery(ctx, driver, cypher, params, neo4j.EagerResultTransformer, opts...)
	}
	return r, nil
}

func (r *Registry) Close(ctx context.Context) error {
	if r.driver == nil {
		return nil
	}
	return r.driver.Close(ctx)
}

func (r *Registry) EnsureConstraint(ctx context.Context) error {
	_, err := r.query(ctx, `CREATE CONSTRAINT document_id_unique IF NOT EXISTS FOR (d:Document) REQUIRE d.id IS UNIQUE`, nil, false)
	if err != nil {
		return fmt.Errorf("create document constraint: %w", err)
	}
	return nil
}

func (r *Registry) Put(ctx context.Context, id, title string) error {
	_, err := r.query(ctx, `
MERGE (d:Document {id: $id})
ON CREATE SET d.createdAt = timestamp()
SET d.title = $title`, map[string]any{"id": id, "title": title}, false)
	if err != nil {
		return domain.WrapError(domain.ErrRegistryUnavailable, "registry put", err)
	}
	return nil
}

func (r *Registry) Get(ctx context.Context, id string) (*domain.RegistryEntry, bool, error) {
	res, err := r.query(ctx, `MATCH (d:Document {id: $id}) RETURN d.id AS id, d.title AS title`, map[string]any{"id": id}, true)
	if err != nil {
		return nil, false, domain.WrapError(domain.ErrRegistryUnavailable, "registry get", err)
	}
	if len(res.Records) == 0 {
		return nil, false, nil
	}
	entry, err := toEntry(res.Records[0])
	if err != nil {
		return nil, false, domain.WrapError(domain.ErrRegistryUnavailable, "registry get", err)
	}
	return &entry, true, nil
}

func (r *Registry) Count(ctx context.Context) (int64, error) {
	res, err := r.query(ctx, `MATCH (d:Document) RETURN count(d) AS n`, nil, true)
	if err != nil {
		return 0, domain.WrapError(domain.ErrRegistryUnavailable, "registry count", err)
	}
	if len(res.Records) == 0 {
		return 0, nil
	}
	n, _, err := neo4j.GetRecordValue[int64](res.Records[0], "n")
	if err != nil {
		return 0, domain.WrapError(domain.ErrRegistryUnavailable, "registry count", err)
	}
	return n, nil
}

func (r *Registry) SearchByTitle(ctx context.Context, pattern string) ([]domain.RegistryEntry, error) {
	term := strings.TrimSpace(pattern)
	if term == "" {
		return []domain.RegistryEntry{}, nil
	}

	res, err := r.query(ctx, `
MATCH (d:Document)
WHERE toLower(d.title) CONTAINS toLower($term)
RETURN d.id AS id, d.title AS title
ORDER BY d.createdAt, d.id`, map[string]any{"term": term}, true)
	if err != nil {
		return nil, domain.WrapError(domain.ErrRegistryUnavailable, "registry search", err)
	}

	out := make([]domain.RegistryEntry, 0, len(res.Records))
	for _, rec := range res.Records {
		entry, err := toEntry(rec)
		if err != nil {
			return nil, domain.WrapError(domain.ErrRegistryUnavailable, "registry search", err)
		}
		out = append(out, entry)
	}
	return out, nil
}

func toEntry(rec *neo4j.Record) (domain.RegistryEntry, error) {
	id, _, err := neo4j.GetRecordValue[string](rec, "id")
	if err != nil {
		return domain.RegistryEntry{}, fmt.Errorf("read id: %w", err)
	}
	title, _, err := neo4j.GetRecordValue[string](rec, "title")
	if err != nil {
		return domain.RegistryEntry{}, fmt.Errorf("read title: %w", err)
	}
	return domain.RegistryEntry{ID: id, Title: title}, nil
}
