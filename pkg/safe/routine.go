package safe

import (
	"runtime"

	"go.uber.org/zap"
)

// Recover logs a recovered panic with its stack. It must be deferred directly.
func Recover(name string) {
	if err := recover(); err != nil {
		buf := make([]byte, 2048)
		n := runtime.Stack(buf, false)
		buf = buf[:n]

		zap.S().Errorf("[%s] panic recovered: %v\n %s", name, err, buf)
	}
}

// Go runs fn in a goroutine that cannot crash the process.
func Go(fn func()) {
	go func() {
		defer Recover("goroutine")
		fn()
	}()
}
