package carve

import (
	"sync/atomic"
	"time"
)

// MaxProgressRate bounds how often Engine.Progress snapshots are pushed to
// the collaborator.
const MaxProgressRate = time.Second / 10 // 10 Hz

// Counters holds the atomically-updated state backing Progress snapshots.
// It is the only mutable global-like state in the engine: a fixed set of
// process-wide counters accessed exclusively via atomic operations.
type Counters struct {
	pass             atomic.Int32
	bytesProcessed   atomic.Uint64
	bytesTotal       atomic.Uint64
	headersJPEG      atomic.Uint64
	headersPNG       atomic.Uint64
	footersJPEG      atomic.Uint64
	footersPNG       atomic.Uint64
	pairsMatched     atomic.Uint64
	filesExtracted   atomic.Uint64
	orphansRecovered atomic.Uint64
	orphansFailed    atomic.Uint64
	startedAt        time.Time
}

// NewCounters returns a Counters with its clock started.
func NewCounters(startedAt time.Time) *Counters {
	c := &Counters{startedAt: startedAt}
	c.pass.Store(1)
	return c
}

func (c *Counters) SetPass(p int32)               { c.pass.Store(p) }
func (c *Counters) AddBytesProcessed(n uint64)     { c.bytesProcessed.Add(n) }
func (c *Counters) SetBytesTotal(n uint64)         { c.bytesTotal.Store(n) }
func (c *Counters) AddPairsMatched(n uint64)       { c.pairsMatched.Add(n) }
func (c *Counters) AddFilesExtracted(n uint64)     { c.filesExtracted.Add(n) }
func (c *Counters) AddOrphansRecovered(n uint64)   { c.orphansRecovered.Add(n) }
func (c *Counters) AddOrphansFailed(n uint64)      { c.orphansFailed.Add(n) }

func (c *Counters) AddHeaderFound(f Format) {
	if f == JPEG {
		c.headersJPEG.Add(1)
	} else {
		c.headersPNG.Add(1)
	}
}

func (c *Counters) AddFooterFound(f Format) {
	if f == JPEG {
		c.footersJPEG.Add(1)
	} else {
		c.footersPNG.Add(1)
	}
}

// Progress is a point-in-time snapshot emitted to the invoking collaborator.
type Progress struct {
	Pass             int32
	BytesProcessed   uint64
	BytesTotal       uint64
	HeadersFound     map[string]uint64
	FootersFound     map[string]uint64
	PairsMatched     uint64
	FilesExtracted   uint64
	OrphansRecovered uint64
	OrphansFailed    uint64
	ElapsedMs        int64
}

// Snapshot reads every counter into an immutable Progress value.
func (c *Counters) Snapshot() Progress {
	return Progress{
		Pass:           c.pass.Load(),
		BytesProcessed: c.bytesProcessed.Load(),
		BytesTotal:     c.bytesTotal.Load(),
		HeadersFound: map[string]uint64{
			JPEG.String(): c.headersJPEG.Load(),
			PNG.String():  c.headersPNG.Load(),
		},
		FootersFound: map[string]uint64{
			JPEG.String(): c.footersJPEG.Load(),
			PNG.String():  c.footersPNG.Load(),
		},
		PairsMatched:     c.pairsMatched.Load(),
		FilesExtracted:   c.filesExtracted.Load(),
		OrphansRecovered: c.orphansRecovered.Load(),
		OrphansFailed:    c.orphansFailed.Load(),
		ElapsedMs:        time.Since(c.startedAt).Milliseconds(),
	}
}

// ProgressFunc is invoked by the engine with each throttled Progress
// snapshot. Implementations must not block for long; the engine does not
// skip work waiting for a slow consumer beyond the throttle interval.
type ProgressFunc func(Progress)

// progressThrottle rate-limits calls to a ProgressFunc to at most
// MaxProgressRate, always letting the first and forcing the final call
// through regardless of timing.
type progressThrottle struct {
	fn       ProgressFunc
	last     time.Time
	interval time.Duration
}

func newProgressThrottle(fn ProgressFunc) *progressThrottle {
	return &progressThrottle{fn: fn, interval: MaxProgressRate}
}

func (p *progressThrottle) emit(snap Progress, force bool) {
	if p.fn == nil {
		return
	}
	now := time.Now()
	if !force && now.Sub(p.last) < p.interval {
		return
	}
	p.last = now
	p.fn(snap)
}
