package pressure

import "time"

const (
	DefaultWorkers          = 32
	DefaultBurstDuration    = time.Second
	DefaultMinSize          = 65 * 1024
	DefaultMaxSize          = 500 * 1024 * 1024
	DefaultPauseProbability = 0.05
	DefaultPauseDuration    = 50 * time.Millisecond
)

// Options configure a Generator.
type Options struct {
	Workers          int           // concurrent workers per burst
	BurstDuration    time.Duration // wall-clock length of one burst
	MinSize          int           // smallest allocation in bytes (inclusive)
	MaxSize          int           // largest allocation in bytes (exclusive)
	PauseProbability float64       // chance per allocation of a short sleep
	PauseDuration    time.Duration // length of that sleep
	Seed             int64         // 0 seeds from the clock
}

func (o *Options) normalize() {
	if o.Workers <= 0 {
		o.Workers = DefaultWorkers
	}
	if o.BurstDuration <= 0 {
		o.BurstDuration = DefaultBurstDuration
	}
	if o.MinSize <= 0 {
		o.MinSize = DefaultMinSize
	}
	if o.MaxSize <= 0 {
		o.MaxSize = DefaultMaxSize
	}
	if o.MaxSize <= o.MinSize {
		o.MaxSize = o.MinSize + 1
	}
	if o.PauseProbability < 0 {
		o.PauseProbability = 0
	}
	if o.PauseProbability > 1 {
		o.PauseProbability = 1
	}
	if o.PauseDuration < 0 {
		o.PauseDuration = 0
	}
	if o.Seed == 0 {
		o.Seed = time.Now().UnixNano()
	}
}
