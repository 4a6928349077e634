package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Sink mirrors liveness marks to an external store.
type Sink interface {
	MarkAlive(ctx context.Context, routine string, at time.Time) error
}

// Liveness tracks the last tick of each routine. A routine is stale once its
// mark is older than maxAge.
type Liveness struct {
	mu     sync.RWMutex
	marks  map[string]time.Time
	maxAge time.Duration
	sink   Sink
	log    *zap.Logger
	now    func() time.Time
}

func New(maxAge time.Duration, sink Sink, log *zap.Logger) *Liveness {
	if log == nil {
		log = zap.NewNop()
	}
	return &Liveness{
		marks:  make(map[string]time.Time),
		maxAge: maxAge,
		sink:   sink,
		log:    log,
		now:    time.Now,
	}
}

// Register adds routines that must report. Until their first mark they
// count as alive from the moment of registration.
func (l *Liveness) Register(routines ...string) {
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, r := range routines {
		if _, ok := l.marks[r]; !ok {
			l.marks[r] = now
		}
	}
}

func (l *Liveness) MarkAlive(ctx context.Context, routine string) {
	now := l.now()
	l.mu.Lock()
	l.marks[routine] = now
	l.mu.Unlock()
	if l.sink == nil {
		return
	}
	if err := l.sink.MarkAlive(ctx, routine, now); err != nil {
		l.log.Warn("liveness sink failed", zap.String("routine", routine), zap.Error(err))
	}
}

type RoutineStatus struct {
	LastAlive time.Time `json:"last_alive"`
	AgeMS     int64     `json:"age_ms"`
	Stale     bool      `json:"stale"`
}

type Status struct {
	Healthy  bool                     `json:"healthy"`
	Routines map[string]RoutineStatus `json:"routines"`
}

func (l *Liveness) Status() Status {
	now := l.now()
	l.mu.RLock()
	defer l.mu.RUnlock()
	st := Status{Healthy: true, Routines: make(map[string]RoutineStatus, len(l.marks))}
	for name, at := range l.marks {
		age := now.Sub(at)
		stale := l.maxAge > 0 && age > l.maxAge
		if stale {
			st.Healthy = false
		}
		st.Routines[name] = RoutineStatus{LastAlive: at, AgeMS: age.Milliseconds(), Stale: stale}
	}
	return st
}

// Stale lists routines whose mark has expired, sorted by name.
func (l *Liveness) Stale() []string {
	var out []string
	for name, rs := range l.Status().Routines {
		if rs.Stale {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// Handler serves the status as JSON, with 503 when any routine is stale.
func (l *Liveness) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		st := l.Status()
		w.Header().Set("Content-Type", "application/json")
		if !st.Healthy {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(st)
	})
}
