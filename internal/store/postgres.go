// Package store answers pipeline reads from PostgreSQL.
package store

import (
	"context"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"

	"github.com/vidtube/backend/internal/db"
	"github.com/vidtube/backend/internal/query"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// PostgresSource implements query.Source over the relational schema. Predicates are translated
// into WHERE clauses so only matching rows leave the database.
type PostgresSource struct {
	pool db.Pool
}

// NewPostgresSource constructs a source reading through pool.
func NewPostgresSource(pool db.Pool) *PostgresSource {
	return &PostgresSource{pool: pool}
}

// Find implements query.Source.
func (s *PostgresSource) Find(ctx context.Context, collection string, where query.Predicate) ([]query.Document, error) {
	stmt, args, err := selectStatement(collection, where)
	if err != nil {
		return nil, err
	}

	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", collection, err)
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	var docs []query.Document
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", collection, err)
		}
		doc := make(query.Document, len(values))
		for i, fd := range fields {
			doc.Set(fd.Name, normalize(values[i]))
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", collection, err)
	}
	return docs, nil
}

func selectStatement(collection string, where query.Predicate) (string, []any, error) {
	t, ok := tables[collection]
	if !ok {
		return "", nil, fmt.Errorf("unknown collection %q", collection)
	}

	cols := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		cols[i] = fmt.Sprintf("%s AS %q", c.Select, c.Field)
	}
	builder := psql.Select(cols...).From(t.Name)
	if where != nil {
		cond, err := translate(t, where)
		if err != nil {
			return "", nil, fmt.Errorf("%s: %w", collection, err)
		}
		builder = builder.Where(cond)
	}
	stmt, args, err := builder.ToSql()
	if err != nil {
		return "", nil, fmt.Errorf("build %s query: %w", collection, err)
	}
	return stmt, args, nil
}

func translate(t table, p query.Predicate) (sq.Sqlizer, error) {
	filter := func(field string) (string, error) {
		c, ok := t.column(field)
		if !ok || c.Filter == "" {
			return "", fmt.Errorf("%w: field %q of %s", query.ErrUnsupportedPredicate, field, t.Name)
		}
		return c.Filter, nil
	}

	switch pred := p.(type) {
	case query.Eq:
		col, err := filter(pred.Field)
		if err != nil {
			return nil, err
		}
		return sq.Eq{col: pred.Value}, nil
	case query.In:
		col, err := filter(pred.Field)
		if err != nil {
			return nil, err
		}
		return sq.Eq{col: pred.Values}, nil
	case query.Exists:
		col, err := filter(pred.Field)
		if err != nil {
			return nil, err
		}
		return sq.NotEq{col: nil}, nil
	case query.ContainsFold:
		col, err := filter(pred.Field)
		if err != nil {
			return nil, err
		}
		return sq.ILike{col: "%" + escapeLike(pred.Substr) + "%"}, nil
	case query.Or:
		out := make(sq.Or, 0, len(pred))
		for _, child := range pred {
			cond, err := translate(t, child)
			if err != nil {
				return nil, err
			}
			out = append(out, cond)
		}
		if len(out) == 0 {
			return sq.Expr("FALSE"), nil
		}
		return out, nil
	case query.And:
		out := make(sq.And, 0, len(pred))
		for _, child := range pred {
			cond, err := translate(t, child)
			if err != nil {
				return nil, err
			}
			out = append(out, cond)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: %T", query.ErrUnsupportedPredicate, p)
	}
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

// normalize converts driver values into the shapes pipelines expect.
func normalize(v any) any {
	switch val := v.(type) {
	case []string:
		out := make([]any, len(val))
		for i, s := range val {
			out[i] = s
		}
		return out
	case int32:
		return int64(val)
	case float32:
		return float64(val)
	default:
		return v
	}
}

var _ query.Source = (*PostgresSource)(nil)
