// Package tunable is the robot's table of named telemetry values. The
// odometry publishes into it from the control loop and the screen and status
// log read it from their own goroutines.
package tunable

import (
	"math"
	"sync"
	"sync/atomic"
)

type Tunable struct {
	Name string
	bits uint64
}

func (t *Tunable) Set(v float64) {
	atomic.StoreUint64(&t.bits, math.Float64bits(v))
}

func (t *Tunable) Get() float64 {
	return math.Float64frombits(atomic.LoadUint64(&t.bits))
}

type Value struct {
	Name  string
	Value float64
}

type Table struct {
	lock   sync.RWMutex
	all    []*Tunable
	byName map[string]*Tunable
}

func NewTable() *Table {
	return &Table{
		byName: map[string]*Tunable{},
	}
}

// Create returns the named tunable, adding it with the given value if it
// doesn't exist yet.
func (t *Table) Create(name string, value float64) *Tunable {
	t.lock.RLock()
	existing := t.byName[name]
	t.lock.RUnlock()
	if existing != nil {
		return existing
	}

	t.lock.Lock()
	defer t.lock.Unlock()
	if existing := t.byName[name]; existing != nil {
		return existing
	}
	newTunable := &Tunable{Name: name}
	newTunable.Set(value)
	t.all = append(t.all, newTunable)
	t.byName[name] = newTunable
	return newTunable
}

// Publish sets the named value, creating it on first use.
func (t *Table) Publish(name string, value float64) {
	t.Create(name, value).Set(value)
}

func (t *Table) Get(name string) (float64, bool) {
	t.lock.RLock()
	tunable := t.byName[name]
	t.lock.RUnlock()
	if tunable == nil {
		return 0, false
	}
	return tunable.Get(), true
}

// Snapshot returns every value in the order they were created.
func (t *Table) Snapshot() []Value {
	t.lock.RLock()
	defer t.lock.RUnlock()
	values := make([]Value, len(t.all))
	for i, tunable := range t.all {
		values[i] = Value{Name: tunable.Name, Value: tunable.Get()}
	}
	return values
}
