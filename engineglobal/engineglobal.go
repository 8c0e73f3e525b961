// Package engineglobal holds the process-wide state described in §3
// ("Global Engine State"): the set of live Network handles and an
// initialized flag. Initialization is idempotent and automatic on first
// Network creation; shutdown tears down every still-live Network. Init and
// Shutdown are not reference-counted: one Shutdown resets the registry
// however many times Init ran before it.
package engineglobal

import (
	"fmt"
	"os"
	"sync"

	"github.com/shirou/gopsutil/process"
	"github.com/tebeka/atexit"
)

// Handle is what a Network registers itself as: just enough for the
// registry to tear it down on shutdown, without engineglobal importing
// the network package (which registers itself here, so the dependency
// must run the other way).
type Handle interface {
	// Teardown tears down the Network: uninitializes and removes every
	// region. Safe to call multiple times.
	Teardown()
}

var (
	mu          sync.Mutex
	initialized bool
	live        = map[int]Handle{}
	nextID      = 0
	atexitOnce  sync.Once
)

// Init is idempotent; it runs automatically on first Network creation.
// Exported so callers (and tests) can force it explicitly.
func Init() {
	mu.Lock()
	defer mu.Unlock()
	if initialized {
		return
	}
	initialized = true
	atexitOnce.Do(func() {
		atexit.Register(Shutdown)
	})
}

// Register records a newly constructed Network's handle and returns a
// token that must be passed to Unregister when that Network is torn down
// directly (as opposed to via Shutdown). Calling Register also runs
// Init.
func Register(h Handle) int {
	Init()
	mu.Lock()
	defer mu.Unlock()
	id := nextID
	nextID++
	live[id] = h
	return id
}

// Unregister drops a Network's handle from the live set without tearing
// it down — used when a Network is destroyed by its owner directly.
func Unregister(token int) {
	mu.Lock()
	defer mu.Unlock()
	delete(live, token)
}

// LiveCount returns the number of Networks currently registered.
func LiveCount() int {
	mu.Lock()
	defer mu.Unlock()
	return len(live)
}

// Shutdown tears down every still-live Network and resets the registry.
// Idempotent.
func Shutdown() {
	mu.Lock()
	handles := make([]Handle, 0, len(live))
	for _, h := range live {
		handles = append(handles, h)
	}
	live = map[int]Handle{}
	initialized = false
	mu.Unlock()

	for _, h := range handles {
		h.Teardown()
	}
}

// Stats is a read-only diagnostic reporting the hosting process's
// resource usage alongside the live-Network count (§5 "Multiple Networks
// in one process are independent"). It never participates in engine
// logic.
type Stats struct {
	LiveNetworks  int
	ResidentBytes uint64
	CPUPercent    float64
}

// ReadStats gathers process resource usage via gopsutil. Errors are
// swallowed into zero fields rather than propagated — this is a
// best-effort diagnostic, not something engine logic depends on.
func ReadStats() Stats {
	s := Stats{LiveNetworks: LiveCount()}

	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return s
	}
	if mem, err := p.MemoryInfo(); err == nil && mem != nil {
		s.ResidentBytes = mem.RSS
	}
	if pct, err := p.CPUPercent(); err == nil {
		s.CPUPercent = pct
	}
	return s
}

// String renders Stats for log lines.
func (s Stats) String() string {
	return fmt.Sprintf("networks=%d rss=%dB cpu=%.1f%%", s.LiveNetworks, s.ResidentBytes, s.CPUPercent)
}
