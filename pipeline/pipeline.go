package pipeline

import (
	"encoding/binary"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/vinayprograms/quiesce/logging"
	"github.com/vinayprograms/quiesce/objection"
	"github.com/vinayprograms/quiesce/sim"
)

// Value is the data word carried through the pipeline.
type Value = uint16

// Tracer records sampled values. *trace.Recorder implements it.
type Tracer interface {
	Sample(at time.Duration, source string, value uint64)
}

// Env carries the collaborators every component needs.
type Env struct {
	Kernel   *sim.Kernel
	Registry *objection.Registry
	Log      *logging.Logger
	Tracer   Tracer
}

func (e Env) logger(name string) *logging.Logger {
	if e.Log == nil {
		return logging.New().WithComponent(name)
	}
	return e.Log.WithComponent(name)
}

func (e Env) sample(name, signal string, value uint64) {
	if e.Tracer == nil {
		return
	}
	e.Tracer.Sample(e.Kernel.Now(), name+"."+signal, value)
}

// Transform is the function the behavior implements and the observer
// predicts: the complemented xxhash of the value, truncated to a word.
func Transform(v Value) Value {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	return Value(^xxhash.Sum64(b[:]))
}

func boolValue(b bool) uint64 {
	if b {
		return 1
	}
	return 0
}
