// Package sim provides in-memory implementations of the five hardware
// services so the station can run and be tested without a bench.
package sim

import "sync"

// faults is a per-operation error injector shared by the simulated devices.
type faults struct {
	mu sync.Mutex
	m  map[string]error
}

// FailWith makes the named operation return err. Passing nil clears it.
func (f *faults) failWith(op string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.m == nil {
		f.m = make(map[string]error)
	}
	if err == nil {
		delete(f.m, op)
		return
	}
	f.m[op] = err
}

func (f *faults) get(op string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.m[op]
}
