package main

import (
	"math"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// Timeout bounds and default from spec.md §3/§4.2, in microseconds.
const (
	MinTimeoutUS     = 50_000
	DefaultTimeoutUS = 200_000
	MaxTimeoutUS     = 12_000_000
)

// WallClock is the injectable clock used throughout the resolver so
// tests can substitute a clockwork.FakeClock for deterministic EWMA
// behavior.
var WallClock = clockwork.NewRealClock()

// globalState is one Address's process-wide RTT/timeout estimator.
type globalState struct {
	rttEstimateUS int64
	rttVarianceUS int64
	timeoutUS     int64
	backedOff     bool
	lastUpdate    time.Time
	hasLastUpdate bool
}

func newGlobalState() *globalState {
	return &globalState{timeoutUS: DefaultTimeoutUS}
}

// GlobalServerState is the process-wide, address-keyed RTT/variance/
// timeout estimator from spec.md §4.2. It outlives any single
// resolution and is shared by all of them under mu.
type GlobalServerState struct {
	mu     sync.Mutex
	byAddr map[Address]*globalState
	clock  clockwork.Clock
}

// NewGlobalServerState returns an estimator store using the package
// WallClock. Tests construct one directly with a fake clock instead.
func NewGlobalServerState() *GlobalServerState {
	return &GlobalServerState{
		byAddr: make(map[Address]*globalState),
		clock:  WallClock,
	}
}

// NewGlobalServerStateWithClock is the test-friendly constructor.
func NewGlobalServerStateWithClock(clock clockwork.Clock) *GlobalServerState {
	return &GlobalServerState{
		byAddr: make(map[Address]*globalState),
		clock:  clock,
	}
}

func (g *GlobalServerState) stateFor(addr Address) *globalState {
	s := g.byAddr[addr]
	if s == nil {
		s = newGlobalState()
		g.byAddr[addr] = s
	}
	return s
}

// Update records an RTT observation of newRTTus microseconds for addr,
// per spec.md §4.2's time-decaying EWMA.
func (g *GlobalServerState) Update(addr Address, newRTTus int64) {
	g.mu.Lock()
	defer g.mu.Unlock()

	s := g.stateFor(addr)
	now := g.clock.Now()

	if s.rttEstimateUS == 0 {
		s.rttEstimateUS = newRTTus
		s.lastUpdate = now
		s.hasLastUpdate = true
		return
	}

	dt := 0.0
	if s.hasLastUpdate {
		dt = now.Sub(s.lastUpdate).Seconds()
	}
	f := math.Exp(-dt) / 2

	old := s.rttEstimateUS
	s.rttEstimateUS = int64(math.Round(float64(old)*f + float64(newRTTus)*(1-f)))
	delta := float64(old - s.rttEstimateUS)
	s.rttVarianceUS = int64(math.Round((1 - f) * (float64(s.rttVarianceUS) + f*f*delta*delta)))

	s.lastUpdate = now
	s.hasLastUpdate = true

	s.timeoutUS = clampInt64(s.rttEstimateUS+4*s.rttVarianceUS, MinTimeoutUS, MaxTimeoutUS)
}

// PacketLost records a timeout observation for addr: backs off and at
// least doubles the current timeout, capped at MaxTimeoutUS.
func (g *GlobalServerState) PacketLost(addr Address) {
	g.mu.Lock()
	defer g.mu.Unlock()

	s := g.stateFor(addr)
	s.backedOff = true
	s.timeoutUS = clampInt64(s.timeoutUS*2, MinTimeoutUS, MaxTimeoutUS)
}

// TimeoutFor returns the current timeout for addr, or DefaultTimeoutUS
// if addr has never been observed.
func (g *GlobalServerState) TimeoutFor(addr Address) int64 {
	g.mu.Lock()
	defer g.mu.Unlock()

	s := g.byAddr[addr]
	if s == nil {
		return DefaultTimeoutUS
	}
	return s.timeoutUS
}

func clampInt64(v, lo, hi int64) int64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// LocalServerState is the per-(name, address) bookkeeping kept for the
// life of a single top-level resolution, per spec.md §4.2.
type LocalServerState struct {
	Errors int
	NoA    bool
	NoAAAA bool
}

// CannotResolveName is true once both address families have been tried
// and failed for this nameserver name.
func (l *LocalServerState) CannotResolveName() bool {
	return l.NoA && l.NoAAAA
}

// LocalState is the per-resolution map of (name,address) -> LocalServerState.
// It is created fresh per top-level resolution and discarded on return;
// it is not safe for concurrent use by more than one resolution.
type LocalState struct {
	byServer map[Server]*LocalServerState
}

// NewLocalState returns an empty per-resolution state map.
func NewLocalState() *LocalState {
	return &LocalState{byServer: make(map[Server]*LocalServerState)}
}

// For returns the LocalServerState for srv, creating it on first use.
func (l *LocalState) For(srv Server) *LocalServerState {
	s := l.byServer[srv]
	if s == nil {
		s = &LocalServerState{}
		l.byServer[srv] = s
	}
	return s
}
