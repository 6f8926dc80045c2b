package health

import "context"

type Status string

const (
	StatusUp   = "UP"
	StatusDown = "DOWN"
)

type Indicator struct {
	Name  string
	Check func(ctx context.Context) error
}
