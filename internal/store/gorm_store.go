package store

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"gorm.io/gorm"
)

// Procedure is a named atomic operation executed inside one transaction.
type Procedure func(tx *gorm.DB, args Row) (Row, error)

// GormStore implements Store on a gorm connection. Postgres in production,
// sqlite for development and tests.
type GormStore struct {
	db         *gorm.DB
	procedures map[string]Procedure
}

// NewGormStore returns a store with the built-in procedures registered.
func NewGormStore(db *gorm.DB) *GormStore {
	s := &GormStore{db: db, procedures: make(map[string]Procedure)}
	for name, p := range builtinProcedures() {
		s.Register(name, p)
	}
	return s
}

// Register adds or replaces a named procedure.
func (s *GormStore) Register(name string, p Procedure) {
	s.procedures[name] = p
}

// DB exposes the underlying connection for migrations.
func (s *GormStore) DB() *gorm.DB {
	return s.db
}

func (s *GormStore) Select(ctx context.Context, table string, q Query) ([]Row, error) {
	return selectRows(s.db.WithContext(ctx), table, q)
}

func selectRows(db *gorm.DB, table string, q Query) ([]Row, error) {
	if err := checkIdent(table); err != nil {
		return nil, err
	}
	where, args, err := whereClause(q.Filters)
	if err != nil {
		return nil, err
	}

	tx := db.Table(table)
	if where != "" {
		tx = tx.Where(where, args...)
	}
	for _, o := range q.Order {
		if err := checkIdent(o.Column); err != nil {
			return nil, err
		}
		dir := " ASC"
		if o.Desc {
			dir = " DESC"
		}
		tx = tx.Order(o.Column + dir)
	}
	if q.Limit > 0 {
		tx = tx.Limit(q.Limit)
	}

	var found []map[string]any
	if err := tx.Find(&found).Error; err != nil {
		return nil, err
	}
	rows := make([]Row, len(found))
	for i, m := range found {
		rows[i] = Row(m)
	}
	return rows, nil
}

func (s *GormStore) Insert(ctx context.Context, table string, rows ...Row) ([]Row, error) {
	if len(rows) == 0 {
		return nil, nil
	}
	query, args, _, err := insertStatement(table, rows)
	if err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Exec(query+" ON CONFLICT DO NOTHING", args...).Error; err != nil {
		return nil, err
	}
	return copyRows(rows), nil
}

func (s *GormStore) Upsert(ctx context.Context, table string, conflict []string, rows ...Row) ([]Row, error) {
	if len(rows) == 0 {
		return nil, nil
	}
	if len(conflict) == 0 {
		return nil, fmt.Errorf("store: upsert into %s needs conflict columns", table)
	}
	query, args, cols, err := insertStatement(table, rows)
	if err != nil {
		return nil, err
	}

	isConflict := make(map[string]bool, len(conflict))
	for _, c := range conflict {
		if err := checkIdent(c); err != nil {
			return nil, err
		}
		isConflict[c] = true
	}
	var sets []string
	for _, c := range cols {
		if !isConflict[c] {
			sets = append(sets, c+" = excluded."+c)
		}
	}
	query += " ON CONFLICT (" + strings.Join(conflict, ", ") + ")"
	if len(sets) == 0 {
		query += " DO NOTHING"
	} else {
		query += " DO UPDATE SET " + strings.Join(sets, ", ")
	}

	if err := s.db.WithContext(ctx).Exec(query, args...).Error; err != nil {
		return nil, err
	}
	return copyRows(rows), nil
}

func (s *GormStore) Update(ctx context.Context, table string, filters []Filter, values Row) ([]Row, error) {
	if err := checkIdent(table); err != nil {
		return nil, err
	}
	if len(filters) == 0 {
		return nil, fmt.Errorf("store: refusing unfiltered update of %s", table)
	}
	where, whereArgs, err := whereClause(filters)
	if err != nil {
		return nil, err
	}
	cols := sortedKeys(values)
	if len(cols) == 0 {
		return nil, fmt.Errorf("store: empty update of %s", table)
	}
	sets := make([]string, len(cols))
	args := make([]any, 0, len(cols)+len(whereArgs))
	for i, c := range cols {
		if err := checkIdent(c); err != nil {
			return nil, err
		}
		sets[i] = c + " = ?"
		args = append(args, values[c])
	}
	args = append(args, whereArgs...)

	var updated []Row
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		before, err := selectRows(tx, table, Query{Filters: filters})
		if err != nil || len(before) == 0 {
			return err
		}
		stmt := "UPDATE " + table + " SET " + strings.Join(sets, ", ") + " WHERE " + where
		if err := tx.Exec(stmt, args...).Error; err != nil {
			return err
		}
		updated, err = selectRows(tx, table, Query{Filters: refilter(before, filters)})
		return err
	})
	return updated, err
}

func (s *GormStore) Delete(ctx context.Context, table string, filters []Filter) ([]Row, error) {
	if err := checkIdent(table); err != nil {
		return nil, err
	}
	if len(filters) == 0 {
		return nil, fmt.Errorf("store: refusing unfiltered delete from %s", table)
	}
	where, args, err := whereClause(filters)
	if err != nil {
		return nil, err
	}

	var deleted []Row
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		deleted, err = selectRows(tx, table, Query{Filters: filters})
		if err != nil || len(deleted) == 0 {
			return err
		}
		return tx.Exec("DELETE FROM "+table+" WHERE "+where, args...).Error
	})
	return deleted, err
}

func (s *GormStore) Call(ctx context.Context, procedure string, args Row) (Row, error) {
	p, ok := s.procedures[procedure]
	if !ok {
		return nil, fmt.Errorf("store: unknown procedure %q", procedure)
	}
	var out Row
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		out, err = p(tx, args)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func insertStatement(table string, rows []Row) (string, []any, []string, error) {
	if err := checkIdent(table); err != nil {
		return "", nil, nil, err
	}
	seen := map[string]bool{}
	var cols []string
	for _, r := range rows {
		for k := range r {
			if !seen[k] {
				if err := checkIdent(k); err != nil {
					return "", nil, nil, err
				}
				seen[k] = true
				cols = append(cols, k)
			}
		}
	}
	sort.Strings(cols)

	placeholder := "(" + strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ") + ")"
	tuples := make([]string, len(rows))
	args := make([]any, 0, len(rows)*len(cols))
	for i, r := range rows {
		tuples[i] = placeholder
		for _, c := range cols {
			args = append(args, r[c])
		}
	}
	query := "INSERT INTO " + table + " (" + strings.Join(cols, ", ") + ") VALUES " + strings.Join(tuples, ", ")
	return query, args, cols, nil
}

// refilter narrows a re-select to the rows touched by an update, by id when
// the table has one, so updates to filter columns still find their rows.
func refilter(rows []Row, filters []Filter) []Filter {
	ids := make([]any, 0, len(rows))
	for _, r := range rows {
		id, ok := r["id"]
		if !ok {
			return filters
		}
		ids = append(ids, id)
	}
	return []Filter{In("id", ids)}
}

func sortedKeys(r Row) []string {
	keys := make([]string, 0, len(r))
	for k := range r {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func copyRows(rows []Row) []Row {
	out := make([]Row, len(rows))
	for i, r := range rows {
		c := make(Row, len(r))
		for k, v := range r {
			c[k] = v
		}
		out[i] = c
	}
	return out
}
