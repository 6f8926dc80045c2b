package query

const (
	DefaultPageSize = 20
	MaxPageSize     = 1000
)

type Sort string

const (
	ASC  Sort = "ASC"
	DESC Sort = "DESC"
)

// Order sorts by one column; later orders break ties of earlier ones.
type Order struct {
	Column string
	Sort   Sort
}

func (o Order) String() string {
	return o.Column + " " + string(o.Sort)
}

// Queryer is what the postgres and memory DAOs need to run a list.
type Queryer interface {
	Offset() int64
	Limit() int64
	WhereMap() map[string]interface{}
	Orders() []*Order
}

// Query carries paging and ordering. A zero Query lists every row.
type Query struct {
	offset int64
	limit  int64
	orders []*Order
}

// Page selects page pageNo, counted from 1. A size below 1 falls back to
// DefaultPageSize and sizes above MaxPageSize are capped.
func (q *Query) Page(pageNo, pageSize int) {
	if pageNo < 1 {
		pageNo = 1
	}
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	q.offset = int64(pageNo-1) * int64(pageSize)
	q.limit = int64(pageSize)
}

func (q *Query) Offset() int64 {
	return q.offset
}

func (q *Query) Limit() int64 {
	return q.limit
}

func (q *Query) WhereMap() map[string]interface{} {
	return nil
}

func (q *Query) Orders() []*Order {
	return q.orders
}

func (q *Query) Order(column string, sort Sort) {
	q.orders = append(q.orders, &Order{Column: column, Sort: sort})
}

// Newest orders by id descending. Ids are KSUIDs, so this is creation order.
func (q *Query) Newest() {
	q.Order("id", DESC)
}
