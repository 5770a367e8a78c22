// Package progress defines the Sink interface batch operations report
// through. It carries no global state: virtual-texture construction
// (vt.Build) and virtual-texture extraction (vt.ExtractAll) each accept
// one explicit sink instead of reaching for a singleton. Archive write
// and archive extraction in package pak do not take a Sink; they report
// through the OnItem callbacks of their options structs.
package progress

// Phase names a stage of a batch operation. Virtual-texture
// construction emits these verbatim; other operations use a subset.
type Phase string

// Construction phases.
const (
	PhasePreparing      Phase = "preparing"
	PhaseExtractingTiles Phase = "extracting_tiles"
	PhaseCompressing    Phase = "compressing"
	PhaseWritingGTS     Phase = "writing_gts"
	PhaseWritingGTP     Phase = "writing_gtp"
	PhaseComplete       Phase = "complete"
)

// Sink receives progress events from a batch operation. vt.Build and
// vt.ExtractAll call every method from the caller's own goroutine. A
// sink shared between operations running concurrently must synchronize
// internally.
type Sink interface {
	// OnPhase announces a phase transition.
	OnPhase(phase Phase)
	// OnItem reports progress within the current phase: current/total
	// counts, or a file name when there is no meaningful count.
	OnItem(current, total int, name string)
	// OnDone is called exactly once, whether the operation succeeded or
	// failed. err is nil on success.
	OnDone(err error)
}

// NopSink discards every event. Use it when the caller doesn't care
// about progress; it is the zero value of Sink usage, not a default
// baked into any operation.
type NopSink struct{}

func (NopSink) OnPhase(Phase)          {}
func (NopSink) OnItem(int, int, string) {}
func (NopSink) OnDone(error)            {}

// Func adapts a set of closures to the Sink interface for callers who
// only care about one or two of the three events.
type Func struct {
	Phase func(Phase)
	Item  func(current, total int, name string)
	Done  func(error)
}

func (f Func) OnPhase(p Phase) {
	if f.Phase != nil {
		f.Phase(p)
	}
}

func (f Func) OnItem(current, total int, name string) {
	if f.Item != nil {
		f.Item(current, total, name)
	}
}

func (f Func) OnDone(err error) {
	if f.Done != nil {
		f.Done(err)
	}
}

// OrNop returns sink unless it is nil, in which case it returns NopSink{}.
func OrNop(sink Sink) Sink {
	if sink == nil {
		return NopSink{}
	}
	return sink
}
