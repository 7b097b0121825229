// Package eventloop runs the single cooperative goroutine that owns a tracking
// session's mutable state. Every sensor reading, timer expiry and network
// completion is posted to the loop as a function and executed in order.
package eventloop

import (
	"bytes"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
	"time"
)

const defaultInboxSize = 64

// Loop executes posted functions one at a time on a dedicated goroutine.
type Loop struct {
	inbox chan func()
	quit  chan struct{}
	done  chan struct{}

	startOnce sync.Once
	quitOnce  sync.Once
	onExit    func()

	// owner is the id of the loop goroutine, zero until it starts.
	owner atomic.Uint64
}

// New creates a loop. onExit, when non-nil, runs on the loop goroutine after
// the last posted function and before Wait returns.
func New(onExit func()) *Loop {
	return &Loop{
		inbox:  make(chan func(), defaultInboxSize),
		quit:   make(chan struct{}),
		done:   make(chan struct{}),
		onExit: onExit,
	}
}

// Start launches the loop goroutine. Calling Start more than once is a no-op.
func (l *Loop) Start() {
	l.startOnce.Do(func() {
		go l.run()
	})
}

func (l *Loop) run() {
	defer close(l.done)
	l.owner.Store(goroutineID())
	for {
		select {
		case <-l.quit:
			l.exit()
			return
		case fn := <-l.inbox:
			// quit wins over queued work so nothing runs after Quit.
			select {
			case <-l.quit:
				l.exit()
				return
			default:
			}
			fn()
		}
	}
}

func (l *Loop) exit() {
	if l.onExit != nil {
		l.onExit()
	}
}

// Post queues fn for execution on the loop. It reports false, dropping fn,
// once the loop is quitting. Post blocks while the inbox is full.
func (l *Loop) Post(fn func()) bool {
	select {
	case <-l.quit:
		return false
	default:
	}
	select {
	case l.inbox <- fn:
		return true
	case <-l.quit:
		return false
	}
}

// OnLoop reports whether the caller is running on the loop goroutine.
func (l *Loop) OnLoop() bool {
	id := l.owner.Load()
	return id != 0 && id == goroutineID()
}

// Call runs fn on the loop and waits for it. It reports false if the loop
// quit before fn ran. Called from the loop goroutine itself, fn runs inline.
func (l *Loop) Call(fn func()) bool {
	if l.OnLoop() {
		select {
		case <-l.quit:
			return false
		default:
		}
		fn()
		return true
	}
	ran := make(chan struct{})
	if !l.Post(func() {
		fn()
		close(ran)
	}) {
		return false
	}
	select {
	case <-ran:
		return true
	case <-l.done:
		return false
	}
}

// Quit asks the loop to exit. Safe to call from any goroutine, including the
// loop itself, and more than once.
func (l *Loop) Quit() {
	l.quitOnce.Do(func() {
		close(l.quit)
	})
}

// Wait blocks until the loop goroutine has exited. From the loop goroutine
// it would never return; use Quit there instead.
func (l *Loop) Wait() {
	<-l.done
}

// Done is closed when the loop goroutine has exited.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}

// goroutineID parses the current goroutine's id from its stack header,
// "goroutine 42 [running]:".
func goroutineID() uint64 {
	var buf [64]byte
	b := buf[:runtime.Stack(buf[:], false)]
	b = bytes.TrimPrefix(b, []byte("goroutine "))
	if i := bytes.IndexByte(b, ' '); i >= 0 {
		b = b[:i]
	}
	id, _ := strconv.ParseUint(string(b), 10, 64)
	return id
}

// Timer is a one-shot timer whose callback runs on the loop.
type Timer struct {
	t       *time.Timer
	mu      sync.Mutex
	stopped bool
}

// After schedules fn to run on the loop after d. Stopping the timer from the
// loop goroutine guarantees fn never runs, even if it already fired and is
// waiting in the inbox.
func (l *Loop) After(d time.Duration, fn func()) *Timer {
	tm := &Timer{}
	tm.t = time.AfterFunc(d, func() {
		l.Post(func() {
			if tm.isStopped() {
				return
			}
			fn()
		})
	})
	return tm
}

// Stop cancels the timer. Stopping a nil or already stopped timer is a no-op.
func (t *Timer) Stop() {
	if t == nil {
		return
	}
	t.mu.Lock()
	t.stopped = true
	t.mu.Unlock()
	t.t.Stop()
}

func (t *Timer) isStopped() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stopped
}

// Ticker delivers periodic callbacks on the loop.
type Ticker struct {
	t    *time.Ticker
	stop chan struct{}
	once sync.Once
}

// Every schedules fn to run on the loop every d until the ticker is stopped
// or the loop quits.
func (l *Loop) Every(d time.Duration, fn func()) *Ticker {
	tk := &Ticker{t: time.NewTicker(d), stop: make(chan struct{})}
	go func() {
		for {
			select {
			case <-tk.stop:
				return
			case <-l.quit:
				return
			case <-tk.t.C:
				l.Post(func() {
					select {
					case <-tk.stop:
						return
					default:
					}
					fn()
				})
			}
		}
	}()
	return tk
}

// Stop halts the ticker. Safe to call on nil and more than once.
func (t *Ticker) Stop() {
	if t == nil {
		return
	}
	t.once.Do(func() {
		t.t.Stop()
		close(t.stop)
	})
}
