package topology

import "time"

// Partial data kinds reported to the Recorder
const (
	PartialHistogram = "histogram"
	PartialInventory = "inventory"
	PartialPanic     = "panic"
)

// Recorder receives build instrumentation. internal/metrics provides the Prometheus one.
type Recorder interface {
	RecordBuild(kind, result string, elapsed time.Duration)
	RecordDanglingReference(direction string)
	RecordPartialData(kind string)
	RecordDiscrepancy()
}

type nopRecorder struct{}

func (nopRecorder) RecordBuild(string, string, time.Duration) {}
func (nopRecorder) RecordDanglingReference(string)            {}
func (nopRecorder) RecordPartialData(string)                  {}
func (nopRecorder) RecordDiscrepancy()                        {}

func orNop(r Recorder) Recorder {
	if r == nil {
		return nopRecorder{}
	}
	return r
}
