// sink.go fans log entries out to in-process observers.
//
// Sinks run synchronously on the logging goroutine and must not block.
// A panicking sink is not recovered.

package log

import "sync"

// Sink receives every entry written through Log.
type Sink func(Entry)

var (
	sinkMu sync.RWMutex
	sinks  = map[int]Sink{}
	nextID int
)

// AddSink registers s and returns a function that removes it.
func AddSink(s Sink) (remove func()) {
	sinkMu.Lock()
	defer sinkMu.Unlock()
	id := nextID
	nextID++
	sinks[id] = s
	return func() {
		sinkMu.Lock()
		defer sinkMu.Unlock()
		delete(sinks, id)
	}
}

func deliver(e Entry) {
	sinkMu.RLock()
	defer sinkMu.RUnlock()
	for _, s := range sinks {
		s(e)
	}
}
