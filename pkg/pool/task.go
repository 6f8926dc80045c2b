package pool

import "github.com/hookrelay/hookrelay/pkg/safe"

type Task interface {
	Execute()
}

type task struct {
	fn func()
}

func (t *task) Execute() {
	defer safe.Recover("pool")
	t.fn()
}
