package strata

import (
	"context"
	"fmt"
	"maps"
	"slices"

	"go.uber.org/zap"

	"github.com/syssam/strata/dialect"
	"github.com/syssam/strata/dialect/sql"
	"github.com/syssam/strata/internal/batch"
	"github.com/syssam/strata/schema/field"
)

// Save inserts the record if it is new, or updates its dirty fields
// otherwise. Saving a clean persisted record issues no statement.
func (r *Record) Save(ctx context.Context) error {
	if r.exists {
		return r.update(ctx, OpUpdateOne)
	}
	return r.insert(ctx)
}

// Update fills the record with attrs and saves it.
func (r *Record) Update(ctx context.Context, attrs map[string]any) error {
	if err := r.Fill(attrs); err != nil {
		return err
	}
	return r.Save(ctx)
}

func (r *Record) insert(ctx context.Context) error {
	m := r.model
	snapshot := maps.Clone(r.attributes)
	restore := func() { r.attributes = snapshot }
	if r.attributes[m.key] == nil && !m.keyPolicy.Increment() {
		key, err := m.GenerateKey()
		if err != nil {
			return err
		}
		r.attributes[m.key] = key
	}
	if m.timestamps {
		now := r.conn.clock()
		if r.attributes[m.createdAt] == nil {
			r.attributes[m.createdAt] = now
		}
		if r.attributes[m.updatedAt] == nil {
			r.attributes[m.updatedAt] = now
		}
	}
	if m.versioned && r.attributes[m.version] == nil {
		r.attributes[m.version] = int64(1)
	}
	mu := &Mutation{op: OpCreate, model: m, record: r, fields: maps.Clone(r.attributes)}
	if err := m.evalMutation(ctx, mu); err != nil {
		restore()
		return err
	}
	ins := sql.Insert(m.table).Dialect(r.conn.dialect())
	for _, name := range slices.Sorted(maps.Keys(r.attributes)) {
		v := r.attributes[name]
		if name == m.key && v == nil {
			continue
		}
		dv, err := m.fields[name].Type.Value(v)
		if err != nil {
			restore()
			return NewMutationError(m.name, "insert", err)
		}
		ins.Set(name, dv)
	}
	readback := r.attributes[m.key] == nil
	if err := r.execInsert(ctx, ins, readback); err != nil {
		restore()
		return NewMutationError(m.name, "insert", err)
	}
	r.exists = true
	r.SyncOriginal()
	return nil
}

// execInsert issues the insert and stores the database assigned key.
func (r *Record) execInsert(ctx context.Context, ins *sql.InsertBuilder, readback bool) error {
	m := r.model
	if !readback {
		_, err := r.conn.result(ctx, ins)
		return err
	}
	if r.conn.dialect() == dialect.Postgres {
		rows, err := r.conn.query(ctx, ins.Returning(m.key))
		if err != nil {
			return constraintError(err)
		}
		if len(rows) != 1 {
			return fmt.Errorf("unexpected number of returned rows: %d", len(rows))
		}
		key, err := m.fields[m.key].Type.Coerce(rows[0][m.key])
		if err != nil {
			return err
		}
		r.attributes[m.key] = key
		return nil
	}
	res, err := r.conn.result(ctx, ins)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading inserted id: %w", err)
	}
	r.attributes[m.key] = id
	return nil
}

// update writes the dirty fields of a persisted record. The attributes are
// merged and synced only when the write succeeds.
func (r *Record) update(ctx context.Context, op Op) error {
	dirty := r.Dirty()
	if len(dirty) == 0 {
		return nil
	}
	if err := r.write(ctx, op, dirty); err != nil {
		return err
	}
	r.SyncOriginal()
	return nil
}

// write issues a conditional UPDATE of changes plus the updated timestamp
// and next version. On success only the written columns are merged into
// the attributes and the original snapshot; other pending edits stay dirty.
func (r *Record) write(ctx context.Context, op Op, changes map[string]any) error {
	m := r.model
	payload := maps.Clone(changes)
	if m.timestamps {
		if _, ok := changes[m.updatedAt]; !ok {
			payload[m.updatedAt] = r.conn.clock()
		}
	}
	preds := []sql.Predicate{sql.EQ(m.key, r.persistedKey())}
	var version any
	if m.versioned {
		version = r.original[m.version]
		next, err := nextVersion(version)
		if err != nil {
			return NewMutationError(m.name, "update", err)
		}
		payload[m.version] = next
		preds = append(preds, versionPredicate(m.version, version))
	}
	mu := &Mutation{op: op, model: m, record: r, fields: payload}
	if err := m.evalMutation(ctx, mu); err != nil {
		return err
	}
	upd := sql.Update(m.table).Dialect(r.conn.dialect())
	for _, name := range slices.Sorted(maps.Keys(payload)) {
		v, err := m.fields[name].Type.Value(payload[name])
		if err != nil {
			return NewMutationError(m.name, "update", err)
		}
		upd.Set(name, v)
	}
	upd.Where(append(preds, mu.preds...)...)
	affected, err := r.conn.execute(ctx, upd)
	if err != nil {
		return NewMutationError(m.name, "update", err)
	}
	if affected == 0 && m.versioned {
		r.conn.logger.Warn("strata: optimistic lock conflict",
			zap.String("model", m.name), zap.Any("key", r.persistedKey()), zap.Any("version", version))
		return &OptimisticLockError{Model: m.name, Key: r.persistedKey(), Version: version}
	}
	maps.Copy(r.attributes, payload)
	maps.Copy(r.original, payload)
	return nil
}

// Delete deletes the record. Models with soft deletes set the tombstone
// through an update instead of removing the row.
func (r *Record) Delete(ctx context.Context) error {
	if !r.exists {
		return &UnsupportedOperationError{Model: r.model.name, Op: "delete", Reason: "record is not persisted"}
	}
	if !r.model.softDeletes {
		return r.forceDelete(ctx)
	}
	return r.touchTombstone(ctx, r.conn.clock(), OpDeleteOne)
}

// Restore clears the tombstone of a soft-deleted record.
func (r *Record) Restore(ctx context.Context) error {
	if !r.model.softDeletes {
		return &UnsupportedOperationError{Model: r.model.name, Op: "restore", Reason: "model does not use soft deletes"}
	}
	if !r.exists {
		return &UnsupportedOperationError{Model: r.model.name, Op: "restore", Reason: "record is not persisted"}
	}
	return r.touchTombstone(ctx, nil, OpUpdateOne)
}

// touchTombstone writes the tombstone, the updated timestamp and the next
// version, leaving unrelated pending edits unsaved. Clearing a tombstone
// that is not set issues no statement.
func (r *Record) touchTombstone(ctx context.Context, v any, op Op) error {
	col := r.model.deletedAt
	if v == nil && isNil(r.original[col]) {
		r.attributes[col] = nil
		return nil
	}
	return r.write(ctx, op, map[string]any{col: v})
}

// ForceDelete removes the row regardless of soft deletes.
func (r *Record) ForceDelete(ctx context.Context) error {
	if !r.exists {
		return &UnsupportedOperationError{Model: r.model.name, Op: "force delete", Reason: "record is not persisted"}
	}
	return r.forceDelete(ctx)
}

func (r *Record) forceDelete(ctx context.Context) error {
	m := r.model
	preds := []sql.Predicate{sql.EQ(m.key, r.persistedKey())}
	var version any
	if m.versioned {
		version = r.original[m.version]
		preds = append(preds, versionPredicate(m.version, version))
	}
	mu := &Mutation{op: OpDeleteOne, model: m, record: r}
	if err := m.evalMutation(ctx, mu); err != nil {
		return err
	}
	del := sql.Delete(m.table).Dialect(r.conn.dialect()).Where(append(preds, mu.preds...)...)
	affected, err := r.conn.execute(ctx, del)
	if err != nil {
		return NewMutationError(m.name, "delete", err)
	}
	if affected == 0 && m.versioned {
		r.conn.logger.Warn("strata: optimistic lock conflict",
			zap.String("model", m.name), zap.Any("key", r.persistedKey()), zap.Any("version", version))
		return &OptimisticLockError{Model: m.name, Key: r.persistedKey(), Version: version}
	}
	r.exists = false
	return nil
}

// Refresh reloads the attributes from the database, trashed rows included,
// and clears the relation cache.
func (r *Record) Refresh(ctx context.Context) error {
	if !r.exists {
		return &UnsupportedOperationError{Model: r.model.name, Op: "refresh", Reason: "record is not persisted"}
	}
	fresh, err := newQuery(r.model, r.conn).WithTrashed().FindOrFail(ctx, r.persistedKey())
	if err != nil {
		return err
	}
	r.attributes = fresh.attributes
	r.SyncOriginal()
	r.relations = make(map[string]any)
	return nil
}

// persistedKey returns the key the row was stored with.
func (r *Record) persistedKey() any {
	if k, ok := r.original[r.model.key]; ok && k != nil {
		return k
	}
	return r.attributes[r.model.key]
}

func versionPredicate(col string, v any) sql.Predicate {
	if v == nil {
		return sql.IsNull(col)
	}
	return sql.EQ(col, v)
}

func nextVersion(v any) (int64, error) {
	if v == nil {
		return 1, nil
	}
	n, err := field.TypeInt.Coerce(v)
	if err != nil {
		return 0, err
	}
	i, ok := batch.Normalize(n).(int64)
	if !ok {
		return 0, fmt.Errorf("version %v is not an integer", v)
	}
	return i + 1, nil
}
