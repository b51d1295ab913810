package daemon

import (
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

const (
	// leadDuration is how long before a scheduled recalibration the
	// upcoming notification fires.
	leadDuration     = time.Minute * 5
	preCheckMaxTimes = 30
	preCheckInterval = time.Second * 10
)

// NotifyFunc receives scheduler notifications: the upcoming run time
// (time.Time) or a task/precheck error (error).
type NotifyFunc func(data any)

// TaskFunc runs one recalibration, or one precheck before it.
type TaskFunc func() error

// Scheduler runs a line's recalibration on a cron schedule. The precheck
// gates each run: while it fails the run is retried for a while and then
// skipped, so a sweep never starts on a busy or unreachable bench.
type Scheduler struct {
	OnUpcoming NotifyFunc
	OnError    NotifyFunc
	Task       TaskFunc
	PreCheck   TaskFunc

	parser cron.Parser

	schedule cron.Schedule
	nextRun  time.Time

	mu      sync.Mutex
	running bool

	controlCh chan controlMsg
	stopCh    chan struct{}
}

// internal control kinds, not visible to API clients
type controlKind int

const (
	ctrlRecalculate controlKind = iota // schedule changed or cleared
	ctrlPostpone                       // next run moved later
	ctrlSkip                           // next run dropped
)

type controlMsg struct {
	kind controlKind
	data any
}

func NewScheduler(task, preCheck TaskFunc, onUpcoming, onError NotifyFunc) *Scheduler {
	if task == nil {
		panic("task function cannot be nil")
	}

	return &Scheduler{
		OnUpcoming: onUpcoming,
		OnError:    onError,
		Task:       task,
		PreCheck:   preCheck,
		parser:     cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor),
		controlCh:  make(chan controlMsg, 4),
		stopCh:     make(chan struct{}),
	}
}

func (s *Scheduler) Stop() {
	select {
	case <-s.stopCh: // already closed
	default:
		close(s.stopCh)
	}
}

func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.running = true
	go s.runScheduled()
}

// Schedule installs a cron expression, replacing any previous one. The next
// run is recomputed from now.
func (s *Scheduler) Schedule(cronExpr string) error {
	sh, err := s.parser.Parse(cronExpr)
	if err != nil {
		return err
	}

	s.mu.Lock()
	running := s.running
	if !running {
		s.schedule = sh
		s.nextRun = sh.Next(time.Now())
	}
	s.mu.Unlock()

	if running {
		s.trySendControl(ctrlRecalculate, sh)
	}
	return nil
}

// Unschedule clears the schedule. Pending runs are dropped; a recalibration
// already underway is not interrupted.
func (s *Scheduler) Unschedule() {
	s.mu.Lock()
	s.schedule = nil
	s.nextRun = time.Time{}
	running := s.running
	s.mu.Unlock()

	if running {
		s.trySendControl(ctrlRecalculate, nil)
	}
}

// Postpone moves the next run later by d. The postponed time must still fall
// before the following cron occurrence.
func (s *Scheduler) Postpone(d time.Duration) error {
	if d <= 0 {
		return errors.New("postpone duration must be positive")
	}

	s.mu.Lock()
	if s.schedule == nil || s.nextRun.IsZero() {
		s.mu.Unlock()
		return errors.New("no recalibration scheduled to postpone")
	}
	orig := s.nextRun
	next := s.schedule.Next(orig).Truncate(time.Second)
	running := s.running
	s.mu.Unlock()

	if !running {
		return errors.New("no recalibration scheduled to postpone")
	}

	pp := orig.Add(d).Truncate(time.Second)
	if pp.Compare(next) >= 0 {
		return errors.New("postpone duration too long")
	}

	s.trySendControl(ctrlPostpone, pp)
	return nil
}

// Skip drops the next run and advances to the occurrence after it.
func (s *Scheduler) Skip() error {
	s.mu.Lock()
	if s.schedule == nil || s.nextRun.IsZero() {
		s.mu.Unlock()
		return errors.New("no recalibration scheduled to skip")
	}
	s.nextRun = s.schedule.Next(s.nextRun)
	running := s.running
	s.mu.Unlock()

	if running {
		s.trySendControl(ctrlSkip, nil)
	}
	return nil
}

func (s *Scheduler) Status() (nextRun time.Time, running bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	nextRun = s.nextRun
	running = s.running
	return
}

func (s *Scheduler) runScheduled() {
	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
		logrus.Debug("recalibration scheduler stopped")
	}()

	logrus.Debug("recalibration scheduler started")

	for {
		leading := true

		attempts := 0
		var precheckErr error

		schedule, nextRun := s.snapshot()
		var timer *time.Timer
		if schedule == nil || nextRun.IsZero() {
			timer = time.NewTimer(time.Hour * 10000) // idle until a control message arrives
		} else {
			wait := time.Until(nextRun) - leadDuration
			if wait < 0 {
				wait = 0
			}
			timer = time.NewTimer(wait)
		}

		for {
			select {
			case <-timer.C:
				if schedule == nil || nextRun.IsZero() {
					break
				}

				if leading {
					logrus.Debugf("upcoming recalibration at %s", nextRun.Format(time.DateTime))
					leading = false
					runWait := time.Until(nextRun)
					if runWait < 0 {
						runWait = 0
					}
					timer.Reset(runWait)
					s.sendNotify(nextRun)
					continue
				}

				logrus.Debugf("running scheduled recalibration at %s", nextRun.Format(time.DateTime))

				if s.PreCheck != nil {
					if err := s.PreCheck(); err != nil {
						if precheckErr == nil || err.Error() != precheckErr.Error() {
							precheckErr = err
							s.sendError(errors.Errorf("precheck failed: %v", err))
						}

						attempts++
						if attempts <= preCheckMaxTimes {
							logrus.Debugf("precheck failed (%d/%d): %v; retrying in %s", attempts, preCheckMaxTimes, err, preCheckInterval)
							timer.Reset(preCheckInterval)
							continue
						}

						// The bench never freed up; drop this occurrence.
						timer.Stop()
						s.advanceNextRun()
						break
					}
				}

				timer.Stop()

				go func() {
					if err := s.Task(); err != nil {
						s.sendError(errors.Errorf("recalibration failed: %v", err))
					}
				}()
				s.advanceNextRun()
			case <-s.stopCh:
				timer.Stop()
				return
			case msg := <-s.controlCh:
				logrus.WithFields(logrus.Fields{
					"kind": msg.kind,
					"data": msg.data,
				}).Debug("received control msg")

				switch msg.kind {
				case ctrlRecalculate:
					timer.Stop()
					if sh, ok := msg.data.(cron.Schedule); ok {
						s.mu.Lock()
						s.schedule = sh
						s.nextRun = sh.Next(time.Now())
						s.mu.Unlock()
					}
					// nil data means unscheduled; the outer loop
					// re-snapshots and goes idle.
				case ctrlPostpone: // only moves the current occurrence
					pp := msg.data.(time.Time)
					s.mu.Lock()
					s.nextRun = pp
					s.mu.Unlock()
					nextRun = pp
					timer.Reset(time.Until(pp))
					continue
				case ctrlSkip: // Skip already advanced nextRun
					timer.Stop()
				}
			}

			break
		}
	}
}

func (s *Scheduler) snapshot() (cron.Schedule, time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.schedule, s.nextRun
}

func (s *Scheduler) advanceNextRun() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.schedule == nil {
		return
	}
	s.nextRun = s.schedule.Next(s.nextRun)
}

func (s *Scheduler) sendNotify(runAt time.Time) {
	if s.OnUpcoming == nil {
		return
	}

	go s.OnUpcoming(runAt)
}

func (s *Scheduler) sendError(err error) {
	if s.OnError == nil {
		return
	}

	go s.OnError(err)
}

func (s *Scheduler) trySendControl(kind controlKind, data any) {
	select {
	case s.controlCh <- controlMsg{kind: kind, data: data}:
	default:
	}
}
