package memory

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/hookrelay/hookrelay/db/dao"
	"github.com/hookrelay/hookrelay/db/errs"
	"github.com/hookrelay/hookrelay/db/query"
	"github.com/hookrelay/hookrelay/pkg/clock"
	"github.com/hookrelay/hookrelay/pkg/contextx"
	"github.com/hookrelay/hookrelay/pkg/types"
)

// Table is a non-durable table of entities keyed by id. Reads return
// copies, so a reader never observes a later write through its result.
type Table[T any] struct {
	*store[T]
	clock  clock.Clock
	opts   dao.Options
	unique [][]string

	propagate dao.PropagateHandler
}

type store[T any] struct {
	mux  sync.RWMutex
	rows map[string]*T
}

type TableOptions struct {
	dao.Options
	Clock   clock.Clock
	Unique  [][]string
	Handler dao.PropagateHandler
}

func NewTable[T any](opts TableOptions) *Table[T] {
	if opts.Clock == nil {
		opts.Clock = clock.Real()
	}
	return &Table[T]{
		store:     &store[T]{rows: make(map[string]*T)},
		clock:     opts.Clock,
		opts:      opts.Options,
		unique:    opts.Unique,
		propagate: opts.Handler,
	}
}

// Scoped returns a view of the same rows restricted to the owner id
// carried by the context.
func (t *Table[T]) Scoped() *Table[T] {
	view := *t
	view.opts.Owner = true
	return &view
}

func (t *Table[T]) now() types.Time {
	return types.NewTime(t.clock.Now().Truncate(time.Millisecond))
}

func (t *Table[T]) notify(ctx context.Context, id string, entity interface{}) {
	if t.opts.CachePropagate && t.propagate != nil {
		t.propagate(ctx, &t.opts, id, entity)
	}
}

func (t *Table[T]) visible(ctx context.Context, entity *T) bool {
	if !t.opts.Owner {
		return true
	}
	owner := contextx.GetOwnerID(ctx)
	if owner == "" {
		return true
	}
	v, _ := dao.ColumnValue(entity, "owner_id")
	return v == owner
}

func (t *Table[T]) Get(ctx context.Context, id string) (*T, error) {
	t.mux.RLock()
	defer t.mux.RUnlock()
	entity, ok := t.rows[id]
	if !ok || !t.visible(ctx, entity) {
		return nil, nil
	}
	return clone(entity), nil
}

// Find returns the first row whose column equals value.
func (t *Table[T]) Find(ctx context.Context, column string, value interface{}) (*T, error) {
	t.mux.RLock()
	defer t.mux.RUnlock()
	for _, entity := range t.rows {
		if matches(entity, map[string]interface{}{column: value}) && t.visible(ctx, entity) {
			return clone(entity), nil
		}
	}
	return nil, nil
}

// Filter returns copies of the rows accepted by fn, ordered by id.
func (t *Table[T]) Filter(ctx context.Context, fn func(*T) bool) []*T {
	t.mux.RLock()
	defer t.mux.RUnlock()
	list := make([]*T, 0)
	for _, entity := range t.rows {
		if t.visible(ctx, entity) && fn(entity) {
			list = append(list, clone(entity))
		}
	}
	sort.Slice(list, func(i, j int) bool {
		return idOf(list[i]) < idOf(list[j])
	})
	return list
}

func (t *Table[T]) Insert(ctx context.Context, entity *T) error {
	t.mux.Lock()
	id := idOf(entity)
	if _, ok := t.rows[id]; ok {
		t.mux.Unlock()
		return errs.NewDBError(fmt.Errorf("%w: (id)=(%s)", errs.ErrUniqueViolation, id))
	}
	if err := t.checkUnique(entity, id); err != nil {
		t.mux.Unlock()
		return err
	}
	now := t.now()
	for _, column := range []string{"created_at", "updated_at", "received_at"} {
		setColumn(entity, column, now)
	}
	t.rows[id] = clone(entity)
	t.mux.Unlock()

	t.notify(ctx, id, entity)
	return nil
}

func (t *Table[T]) Update(ctx context.Context, entity *T) error {
	t.mux.Lock()
	id := idOf(entity)
	current, ok := t.rows[id]
	if !ok || !t.visible(ctx, current) {
		t.mux.Unlock()
		return dao.ErrNoRows
	}
	if err := t.checkUnique(entity, id); err != nil {
		t.mux.Unlock()
		return err
	}
	for _, column := range []string{"created_at", "owner_id"} {
		if v, ok := dao.ColumnValue(current, column); ok {
			setColumn(entity, column, v)
		}
	}
	setColumn(entity, "updated_at", t.now())
	t.rows[id] = clone(entity)
	t.mux.Unlock()

	t.notify(ctx, id, entity)
	return nil
}

// Modify applies fn to the stored row under the write lock. fn reports
// whether it changed the row.
func (t *Table[T]) Modify(id string, fn func(*T) bool) bool {
	t.mux.Lock()
	defer t.mux.Unlock()
	entity, ok := t.rows[id]
	if !ok {
		return false
	}
	if !fn(entity) {
		return false
	}
	setColumn(entity, "updated_at", t.now())
	return true
}

func (t *Table[T]) Delete(ctx context.Context, id string) (bool, error) {
	t.mux.Lock()
	entity, ok := t.rows[id]
	if !ok || !t.visible(ctx, entity) {
		t.mux.Unlock()
		return false, nil
	}
	delete(t.rows, id)
	t.mux.Unlock()

	t.notify(ctx, id, nil)
	return true, nil
}

// DeleteWhere removes the rows accepted by fn.
func (t *Table[T]) DeleteWhere(fn func(*T) bool) int64 {
	t.mux.Lock()
	defer t.mux.Unlock()
	var n int64
	for id, entity := range t.rows {
		if fn(entity) {
			delete(t.rows, id)
			n++
		}
	}
	return n
}

func (t *Table[T]) Count(ctx context.Context, where map[string]interface{}) (int64, error) {
	t.mux.RLock()
	defer t.mux.RUnlock()
	var n int64
	for _, entity := range t.rows {
		if t.visible(ctx, entity) && matches(entity, where) {
			n++
		}
	}
	return n, nil
}

func (t *Table[T]) List(ctx context.Context, q query.Queryer) ([]*T, error) {
	where := q.WhereMap()
	list := t.Filter(ctx, func(entity *T) bool {
		return matches(entity, where)
	})

	orders := q.Orders()
	if len(orders) > 0 {
		sort.SliceStable(list, func(i, j int) bool {
			for _, order := range orders {
				a, _ := dao.ColumnValue(list[i], order.Column)
				b, _ := dao.ColumnValue(list[j], order.Column)
				c := compare(a, b)
				if c == 0 {
					continue
				}
				if order.Sort == query.DESC {
					return c > 0
				}
				return c < 0
			}
			return false
		})
	}

	if q.Limit() != 0 {
		offset := int(q.Offset())
		if offset >= len(list) {
			return make([]*T, 0), nil
		}
		end := offset + int(q.Limit())
		if end > len(list) {
			end = len(list)
		}
		list = list[offset:end]
	}
	return list, nil
}

func (t *Table[T]) Page(ctx context.Context, q query.Queryer) ([]*T, int64, error) {
	total, err := t.Count(ctx, q.WhereMap())
	if err != nil {
		return nil, 0, err
	}
	list, err := t.List(ctx, q)
	return list, total, err
}

func (t *Table[T]) checkUnique(entity *T, id string) error {
	for _, columns := range t.unique {
		where := make(map[string]interface{}, len(columns))
		for _, column := range columns {
			v, _ := dao.ColumnValue(entity, column)
			where[column] = v
		}
		for otherID, other := range t.rows {
			if otherID != id && matches(other, where) {
				values := make([]string, 0, len(columns))
				for _, column := range columns {
					values = append(values, fmt.Sprint(deref(where[column])))
				}
				return errs.NewDBError(fmt.Errorf("%w: (%s)=(%s)", errs.ErrUniqueViolation,
					strings.Join(columns, ", "), strings.Join(values, ", ")))
			}
		}
	}
	return nil
}

func idOf(entity interface{}) string {
	v, _ := dao.ColumnValue(entity, "id")
	s, _ := v.(string)
	return s
}

func matches(entity interface{}, where map[string]interface{}) bool {
	for column, expected := range where {
		v, ok := dao.ColumnValue(entity, column)
		if !ok {
			return false
		}
		if fmt.Sprint(deref(v)) != fmt.Sprint(deref(expected)) {
			return false
		}
	}
	return true
}

func deref(v interface{}) interface{} {
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return nil
		}
		rv = rv.Elem()
	}
	if !rv.IsValid() {
		return nil
	}
	return rv.Interface()
}

func compare(a, b interface{}) int {
	a, b = deref(a), deref(b)
	switch x := a.(type) {
	case types.Time:
		if y, ok := b.(types.Time); ok {
			return x.Compare(y.Time)
		}
	case int:
		if y, ok := b.(int); ok {
			return x - y
		}
	case int64:
		if y, ok := b.(int64); ok {
			switch {
			case x < y:
				return -1
			case x > y:
				return 1
			}
			return 0
		}
	}
	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
}

// setColumn assigns value to the field mapped to column if the types match.
func setColumn(entity interface{}, column string, value interface{}) {
	setField(reflect.ValueOf(entity).Elem(), column, reflect.ValueOf(value))
}

func setField(v reflect.Value, column string, value reflect.Value) bool {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if field.Anonymous && field.Type.Kind() == reflect.Struct {
			if setField(v.Field(i), column, value) {
				return true
			}
			continue
		}
		name := field.Tag.Get("db")
		if name == "" {
			name = strings.ToLower(field.Name)
		}
		if name == column && v.Field(i).CanSet() && value.Type().AssignableTo(field.Type) {
			v.Field(i).Set(value)
			return true
		}
	}
	return false
}

func isUniqueViolation(err error) bool {
	return errors.Is(err, errs.ErrUniqueViolation)
}
