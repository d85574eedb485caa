package pressure

import (
	"context"
	"math/rand"
	"runtime"
	"sync"
	"sync/atomic"
	"time"
)

// fillChunk bounds how much of a buffer is written between cancellation checks.
const fillChunk = 16 << 20

// Generator runs allocation bursts. It is safe to run several bursts at once.
type Generator struct {
	opt Options

	seq         atomic.Int64
	active      atomic.Int64
	bursts      atomic.Int64
	allocations atomic.Int64
	bytes       atomic.Int64
}

// New creates a Generator; zero Options fields take package defaults.
func New(opt Options) *Generator {
	opt.normalize()
	return &Generator{opt: opt}
}

// Options returns the normalized options.
func (g *Generator) Options() Options {
	return g.opt
}

// RunBurst spawns the workers, cancels them once BurstDuration has elapsed
// (or ctx is done) and returns after every worker has exited.
func (g *Generator) RunBurst(ctx context.Context) {
	g.bursts.Add(1)
	g.active.Add(1)
	defer g.active.Add(-1)

	burstCtx, cancel := context.WithTimeout(ctx, g.opt.BurstDuration)
	defer cancel()

	base := g.opt.Seed + g.seq.Add(1)*int64(g.opt.Workers)

	var wg sync.WaitGroup
	wg.Add(g.opt.Workers)
	for i := 0; i < g.opt.Workers; i++ {
		rnd := rand.New(rand.NewSource(base + int64(i)))
		go func() {
			defer wg.Done()
			g.work(burstCtx, rnd)
		}()
	}

	<-burstCtx.Done()
	wg.Wait()
}

// Launch starts a burst without waiting for it.
func (g *Generator) Launch(ctx context.Context) *Burst {
	b := &Burst{started: time.Now(), done: make(chan struct{})}
	go func() {
		defer close(b.done)
		g.RunBurst(ctx)
	}()
	return b
}

// Bursts returns the number of bursts started so far.
func (g *Generator) Bursts() int64 { return g.bursts.Load() }

// ActiveBursts returns the number of bursts whose workers have not all exited.
func (g *Generator) ActiveBursts() int64 { return g.active.Load() }

// Allocations returns the number of buffers allocated so far.
func (g *Generator) Allocations() int64 { return g.allocations.Load() }

// BytesAllocated returns the total size of all buffers allocated so far.
func (g *Generator) BytesAllocated() int64 { return g.bytes.Load() }

func (g *Generator) work(ctx context.Context, rnd *rand.Rand) {
	done := ctx.Done()
	span := g.opt.MaxSize - g.opt.MinSize
	for {
		select {
		case <-done:
			return
		default:
		}

		size := g.opt.MinSize + rnd.Intn(span)
		g.allocations.Add(1)
		g.bytes.Add(int64(size))

		buf := make([]byte, size)
		fill(done, buf, 'a')
		runtime.KeepAlive(buf)

		if g.opt.PauseProbability > 0 && rnd.Float64() < g.opt.PauseProbability {
			if !sleep(done, g.opt.PauseDuration) {
				return
			}
		}
	}
}

// fill writes b across buf by doubling copies, stopping early once done closes.
func fill(done <-chan struct{}, buf []byte, b byte) bool {
	if len(buf) == 0 {
		return true
	}
	buf[0] = b
	for filled := 1; filled < len(buf); {
		n := filled
		if n > fillChunk {
			n = fillChunk
		}
		filled += copy(buf[filled:], buf[:n])
		select {
		case <-done:
			return false
		default:
		}
	}
	return true
}

func sleep(done <-chan struct{}, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-done:
		return false
	}
}

// Burst is a handle on a launched burst.
type Burst struct {
	started time.Time
	done    chan struct{}
}

// Started returns when the burst was launched.
func (b *Burst) Started() time.Time { return b.started }

// Done is closed once every worker of the burst has exited.
func (b *Burst) Done() <-chan struct{} { return b.done }

// Wait blocks until the burst has fully settled.
func (b *Burst) Wait() {
	if b == nil {
		return
	}
	<-b.done
}
