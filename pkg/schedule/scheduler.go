package schedule

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

var (
	ErrTaskAdded    = errors.New("task already added")
	ErrTaskSchedule = errors.New("task requires an interval or a spec")
)

// Task runs Do either every Interval (first run after InitialDelay) or
// on the cron Spec, such as "@daily" or "0 3 * * *".
type Task struct {
	id cron.EntryID

	Name         string
	InitialDelay time.Duration
	Interval     time.Duration
	Spec         string
	Do           func()
}

type Scheduler interface {
	AddTask(task *Task) error
	GetTask(name string) *Task
	Start()
	Stop()
}

var _ Scheduler = &DefaultScheduler{}

type IntervalSchedule struct {
	once         sync.Once
	InitialDelay time.Duration
	Interval     time.Duration
}

func (s *IntervalSchedule) Next(t time.Time) time.Time {
	interval := s.Interval
	s.once.Do(func() {
		if s.InitialDelay > 0 {
			interval = s.InitialDelay
		}
	})
	return t.Add(interval)
}

type cronLogger struct {
	log *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debugw("[scheduler] "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Errorw("[scheduler] "+msg, append(keysAndValues, "error", err)...)
}

type DefaultScheduler struct {
	cron  *cron.Cron
	tasks map[string]*Task
	mux   sync.RWMutex
}

func NewScheduler(log *zap.SugaredLogger) Scheduler {
	logger := cronLogger{log: log}
	return &DefaultScheduler{
		cron: cron.New(
			cron.WithLogger(logger),
			cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
		),
		tasks: make(map[string]*Task),
	}
}

func (s *DefaultScheduler) AddTask(task *Task) error {
	s.mux.Lock()
	defer s.mux.Unlock()

	if _, exists := s.tasks[task.Name]; exists {
		return ErrTaskAdded
	}

	var schedule cron.Schedule
	switch {
	case task.Spec != "":
		parsed, err := cron.ParseStandard(task.Spec)
		if err != nil {
			return err
		}
		schedule = parsed
	case task.Interval > 0:
		schedule = &IntervalSchedule{
			InitialDelay: task.InitialDelay,
			Interval:     task.Interval,
		}
	default:
		return ErrTaskSchedule
	}

	task.id = s.cron.Schedule(schedule, cron.FuncJob(task.Do))
	s.tasks[task.Name] = task
	return nil
}

func (s *DefaultScheduler) GetTask(name string) *Task {
	s.mux.RLock()
	defer s.mux.RUnlock()
	return s.tasks[name]
}

func (s *DefaultScheduler) Start() {
	s.cron.Start()
}

// Stop waits for running tasks to finish.
func (s *DefaultScheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

// Every runs fn immediately and then every interval until ctx is done.
func Every(ctx context.Context, fn func(), interval time.Duration) {
	go func() {
		fn()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				fn()
			}
		}
	}()
}
