package dao

import (
	"context"
	"database/sql"
	"errors"
	"reflect"

	sq "github.com/Masterminds/squirrel"
	"github.com/hookrelay/hookrelay/db/errs"
	"github.com/hookrelay/hookrelay/db/query"
	"github.com/hookrelay/hookrelay/pkg/contextx"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

var (
	ErrNoRows = sql.ErrNoRows
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// Queryable is an interface to be used interchangeably for sqlx.Db and sqlx.Tx
type Queryable interface {
	sqlx.ExtContext
	GetContext(context.Context, interface{}, string, ...interface{}) error
	SelectContext(context.Context, interface{}, string, ...interface{}) error
}

type PropagateHandler func(ctx context.Context, opts *Options, id string, entity interface{})

type Options struct {
	Table      string
	EntityName string
	// Owner scopes every statement to the owner id carried by the context.
	Owner          bool
	CachePropagate bool
	CacheName      string

	propagateHandler PropagateHandler
}

type OptionFunc func(*Options)

func WithPropagateHandler(fn PropagateHandler) OptionFunc {
	return func(o *Options) {
		o.propagateHandler = fn
	}
}

func WithOwner(owner bool) OptionFunc {
	return func(o *Options) {
		o.Owner = owner
	}
}

type DAO[T any] struct {
	log  *zap.SugaredLogger
	db   *sqlx.DB
	opts Options
}

func NewDAO[T any](db *sqlx.DB, opts Options, fns ...OptionFunc) *DAO[T] {
	for _, fn := range fns {
		fn(&opts)
	}
	dao := DAO[T]{
		log:  zap.S(),
		db:   db,
		opts: opts,
	}
	return &dao
}

func (dao *DAO[T]) debugSQL(sql string, args []interface{}) {
	dao.log.Debugf("[dao] execute: %s", sql)
}

func (dao *DAO[T]) DB(ctx context.Context) Queryable {
	if ctx == nil {
		ctx = context.TODO()
	}

	if tx, ok := TxFromContext(ctx); ok {
		return tx
	}

	return dao.db
}

func (dao *DAO[T]) UnsafeDB(ctx context.Context) Queryable {
	db := dao.DB(ctx)

	if tx, ok := db.(*sqlx.Tx); ok {
		return tx.Unsafe()
	}

	return db.(*sqlx.DB).Unsafe()
}

func (dao *DAO[T]) owner(ctx context.Context) (string, bool) {
	if !dao.opts.Owner {
		return "", false
	}
	owner := contextx.GetOwnerID(ctx)
	return owner, owner != ""
}

func (dao *DAO[T]) propagate(ctx context.Context, id string, entity interface{}) {
	if dao.opts.CachePropagate && dao.opts.propagateHandler != nil {
		dao.opts.propagateHandler(ctx, &dao.opts, id, entity)
	}
}

type whereable[B any] interface {
	Where(pred interface{}, args ...interface{}) B
}

func scoped[B whereable[B]](dao interface {
	owner(context.Context) (string, bool)
}, ctx context.Context, builder B) B {
	if owner, ok := dao.owner(ctx); ok {
		return builder.Where(sq.Eq{"owner_id": owner})
	}
	return builder
}

func (dao *DAO[T]) Get(ctx context.Context, id string) (*T, error) {
	return dao.selectByField(ctx, "id", id)
}

func (dao *DAO[T]) selectByField(ctx context.Context, field string, value string) (entity *T, err error) {
	builder := scoped(dao, ctx, psql.Select("*").From(dao.opts.Table).Where(sq.Eq{field: value}))
	statement, args := builder.MustSql()
	dao.debugSQL(statement, args)
	entity = new(T)
	err = dao.UnsafeDB(ctx).GetContext(ctx, entity, statement, args...)
	if errors.Is(err, ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return entity, nil
}

func (dao *DAO[T]) Delete(ctx context.Context, id string) (bool, error) {
	builder := scoped(dao, ctx, psql.Delete(dao.opts.Table).Where(sq.Eq{"id": id}))
	statement, args := builder.MustSql()
	dao.debugSQL(statement, args)
	result, err := dao.DB(ctx).ExecContext(ctx, statement, args...)
	if err != nil {
		return false, err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	if rows > 0 {
		dao.propagate(ctx, id, nil)
	}
	return rows > 0, nil
}

func (dao *DAO[T]) Page(ctx context.Context, q query.Queryer) (list []*T, total int64, err error) {
	total, err = dao.Count(ctx, q.WhereMap())
	if err != nil {
		return
	}
	list, err = dao.List(ctx, q)
	return
}

func (dao *DAO[T]) Count(ctx context.Context, where map[string]interface{}) (total int64, err error) {
	builder := psql.Select("COUNT(*)").From(dao.opts.Table)
	if len(where) > 0 {
		builder = builder.Where(sq.Eq(where))
	}
	builder = scoped(dao, ctx, builder)
	statement, args := builder.MustSql()
	dao.debugSQL(statement, args)
	err = dao.DB(ctx).GetContext(ctx, &total, statement, args...)
	return
}

func (dao *DAO[T]) List(ctx context.Context, q query.Queryer) (list []*T, err error) {
	builder := psql.Select("*").From(dao.opts.Table)
	where := q.WhereMap()
	if len(where) > 0 {
		builder = builder.Where(sq.Eq(where))
	}
	builder = scoped(dao, ctx, builder)
	if q.Limit() != 0 {
		builder = builder.Offset(uint64(q.Offset()))
		builder = builder.Limit(uint64(q.Limit()))
	}
	for _, order := range q.Orders() {
		builder = builder.OrderBy(order.String())
	}
	statement, args := builder.MustSql()
	dao.debugSQL(statement, args)
	list = make([]*T, 0)
	err = dao.UnsafeDB(ctx).SelectContext(ctx, &list, statement, args...)
	return
}

func (dao *DAO[T]) Insert(ctx context.Context, entity *T) error {
	columns := make([]string, 0)
	values := make([]interface{}, 0)
	EachField(entity, func(f reflect.StructField, v reflect.Value, column string) {
		switch column {
		case "created_at", "updated_at", "received_at": // database defaults
		default:
			columns = append(columns, column)
			values = append(values, v.Interface())
		}
	})
	statement, args := psql.Insert(dao.opts.Table).Columns(columns...).Values(values...).
		Suffix("RETURNING *").
		MustSql()
	dao.debugSQL(statement, args)
	err := dao.UnsafeDB(ctx).QueryRowxContext(ctx, statement, args...).StructScan(entity)
	if err != nil {
		return errs.ConvertError(err)
	}
	dao.propagate(ctx, entityID(entity), entity)
	return nil
}

func (dao *DAO[T]) update(ctx context.Context, id string, maps map[string]interface{}) (int64, error) {
	builder := scoped(dao, ctx, psql.Update(dao.opts.Table).SetMap(maps).Where(sq.Eq{"id": id}))
	statement, args := builder.MustSql()
	dao.debugSQL(statement, args)
	result, err := dao.DB(ctx).ExecContext(ctx, statement, args...)
	if err != nil {
		return 0, errs.ConvertError(err)
	}
	return result.RowsAffected()
}

// Update writes every column of entity. It returns ErrNoRows when the row
// does not exist.
func (dao *DAO[T]) Update(ctx context.Context, entity *T) error {
	var id string
	builder := psql.Update(dao.opts.Table)
	EachField(entity, func(f reflect.StructField, v reflect.Value, column string) {
		switch column {
		case "id":
			id = v.Interface().(string)
		case "created_at", "owner_id": // immutable
		case "updated_at":
			builder = builder.Set(column, sq.Expr("NOW()"))
		default:
			builder = builder.Set(column, v.Interface())
		}
	})
	builder = scoped(dao, ctx, builder.Where(sq.Eq{"id": id}))
	statement, args := builder.Suffix("RETURNING *").MustSql()
	dao.debugSQL(statement, args)
	err := dao.UnsafeDB(ctx).QueryRowxContext(ctx, statement, args...).StructScan(entity)
	if err != nil {
		return errs.ConvertError(err)
	}
	dao.propagate(ctx, id, entity)
	return nil
}
