package scheduler

// Stats are counters kept by a scheduler over its whole lifetime.
type Stats struct {
	// Threads created and reclaimed, including threads reclaimed at the end
	// of a deadlocked or aborted session.
	Created uint64
	Exited  uint64

	// Highest number of threads alive at the same time.
	MaxLive uint64

	// Number of times a thread was switched into.
	Switches uint64

	// Calls to Yield, including the ones that were a no-op.
	Yields uint64

	// Number of SemaphoreWait calls that blocked.
	BlockedWaits uint64
}

// Stats returns a copy of the scheduler counters.
func (s *Scheduler) Stats() Stats {
	return s.stats
}

// Description describes a metric that can be read with ReadMetrics.
type Description struct {
	Name        string
	Description string
	Kind        ValueKind
	Cumulative  bool
}

// Sample is a metric name and its value, filled in by ReadMetrics.
type Sample struct {
	Name  string
	Value Value
}

// ValueKind is the type of a metric value.
type ValueKind int

const (
	KindBad ValueKind = iota
	KindUint64
)

// Value is the value of a metric.
type Value struct {
	kind ValueKind
	v    uint64
}

// Kind returns the type of the value, KindBad for an unknown metric.
func (v Value) Kind() ValueKind {
	return v.kind
}

// Uint64 returns the value of a KindUint64 metric.
func (v Value) Uint64() uint64 {
	if v.kind != KindUint64 {
		panic("scheduler: called Uint64 on a non-uint64 metric value")
	}
	return v.v
}

var allMetrics = []Description{
	{Name: "/gthread/threads/created:threads", Description: "Threads created.", Kind: KindUint64, Cumulative: true},
	{Name: "/gthread/threads/exited:threads", Description: "Threads reclaimed.", Kind: KindUint64, Cumulative: true},
	{Name: "/gthread/threads/live:threads", Description: "Threads currently alive.", Kind: KindUint64},
	{Name: "/gthread/threads/max-live:threads", Description: "Highest number of threads alive at once.", Kind: KindUint64},
	{Name: "/gthread/threads/ready:threads", Description: "Threads in the ready queue.", Kind: KindUint64},
	{Name: "/gthread/threads/blocked:threads", Description: "Threads blocked in Join or JoinAll.", Kind: KindUint64},
	{Name: "/gthread/switches:switches", Description: "Switches into a thread.", Kind: KindUint64, Cumulative: true},
	{Name: "/gthread/yields:calls", Description: "Calls to Yield.", Kind: KindUint64, Cumulative: true},
	{Name: "/gthread/semaphores/live:semaphores", Description: "Semaphores not yet destroyed.", Kind: KindUint64},
	{Name: "/gthread/semaphores/blocked-waits:calls", Description: "Semaphore waits that blocked.", Kind: KindUint64, Cumulative: true},
	{Name: "/gthread/stack/bytes:bytes", Description: "Stack accounted for live threads.", Kind: KindUint64},
}

// AllMetrics returns the descriptions of all metrics of a scheduler.
func AllMetrics() []Description {
	return append([]Description(nil), allMetrics...)
}

// ReadMetrics fills in the value of each sample. Samples with an unknown name
// get a KindBad value.
func (s *Scheduler) ReadMetrics(m []Sample) {
	for i := range m {
		v, ok := s.metric(m[i].Name)
		if !ok {
			m[i].Value = Value{}
			continue
		}
		m[i].Value = Value{kind: KindUint64, v: v}
	}
}

func (s *Scheduler) metric(name string) (uint64, bool) {
	switch name {
	case "/gthread/threads/created:threads":
		return s.stats.Created, true
	case "/gthread/threads/exited:threads":
		return s.stats.Exited, true
	case "/gthread/threads/live:threads":
		return uint64(s.threads.len()), true
	case "/gthread/threads/max-live:threads":
		return s.stats.MaxLive, true
	case "/gthread/threads/ready:threads":
		return uint64(s.ready.Len()), true
	case "/gthread/threads/blocked:threads":
		return uint64(len(s.blocked)), true
	case "/gthread/switches:switches":
		return s.stats.Switches, true
	case "/gthread/yields:calls":
		return s.stats.Yields, true
	case "/gthread/semaphores/live:semaphores":
		return uint64(s.semaphores.len()), true
	case "/gthread/semaphores/blocked-waits:calls":
		return s.stats.BlockedWaits, true
	case "/gthread/stack/bytes:bytes":
		return uint64(s.threads.len()) * uint64(s.config.StackSize), true
	}
	return 0, false
}
