package histogram

import (
	"time"

	"github.com/GoSim-25-26J-441/topology-core/pkg/models"
)

// Histogram is a latency distribution of calls to one service type.
// Histograms are values: every operation returns a new histogram.
type Histogram struct {
	Type     models.ServiceType `json:"-"`
	Fast     int64              `json:"fast"`
	Normal   int64              `json:"normal"`
	Slow     int64              `json:"slow"`
	VerySlow int64              `json:"very_slow"`
	Error    int64              `json:"error"`
}

// New creates an empty histogram for a service type
func New(t models.ServiceType) Histogram {
	return Histogram{Type: t}
}

// Of creates a histogram with the given bucket counts
func Of(t models.ServiceType, fast, normal, slow, verySlow, errors int64) Histogram {
	return Histogram{Type: t, Fast: fast, Normal: normal, Slow: slow, VerySlow: verySlow, Error: errors}
}

// Add sums two histograms of independent calls. It is commutative and associative.
func (h Histogram) Add(other Histogram) Histogram {
	h.Fast += other.Fast
	h.Normal += other.Normal
	h.Slow += other.Slow
	h.VerySlow += other.VerySlow
	h.Error += other.Error
	return h
}

// Union merges two observations of the same calls, taking the larger count per bucket.
// It is commutative, associative and idempotent, so a call seen by both the caller
// and the callee is counted once.
func (h Histogram) Union(other Histogram) Histogram {
	h.Fast = max(h.Fast, other.Fast)
	h.Normal = max(h.Normal, other.Normal)
	h.Slow = max(h.Slow, other.Slow)
	h.VerySlow = max(h.VerySlow, other.VerySlow)
	h.Error = max(h.Error, other.Error)
	return h
}

// WithType returns a copy attributed to another service type
func (h Histogram) WithType(t models.ServiceType) Histogram {
	h.Type = t
	return h
}

// AddCount adds n calls to one bucket
func (h Histogram) AddCount(bucket Bucket, n int64) Histogram {
	switch bucket {
	case BucketFast:
		h.Fast += n
	case BucketNormal:
		h.Normal += n
	case BucketSlow:
		h.Slow += n
	case BucketVerySlow:
		h.VerySlow += n
	case BucketError:
		h.Error += n
	}
	return h
}

// AddSample records one call classified with schema
func (h Histogram) AddSample(schema Schema, elapsed time.Duration, isError bool) Histogram {
	return h.AddCount(schema.Classify(elapsed, isError), 1)
}

// Count returns the count of one bucket
func (h Histogram) Count(bucket Bucket) int64 {
	switch bucket {
	case BucketFast:
		return h.Fast
	case BucketNormal:
		return h.Normal
	case BucketSlow:
		return h.Slow
	case BucketVerySlow:
		return h.VerySlow
	case BucketError:
		return h.Error
	default:
		return 0
	}
}

// Total returns the number of calls in the histogram
func (h Histogram) Total() int64 {
	return h.Fast + h.Normal + h.Slow + h.VerySlow + h.Error
}

// IsEmpty reports whether the histogram holds no calls
func (h Histogram) IsEmpty() bool {
	return h.Total() == 0
}

// SameCounts compares bucket counts, ignoring the service type
func (h Histogram) SameCounts(other Histogram) bool {
	return h.Fast == other.Fast && h.Normal == other.Normal && h.Slow == other.Slow &&
		h.VerySlow == other.VerySlow && h.Error == other.Error
}

// Labeled returns the bucket counts keyed by the schema's slot names
func (h Histogram) Labeled(schema Schema) map[string]int64 {
	names := schema.SlotNames()
	return map[string]int64{
		names[0]: h.Fast,
		names[1]: h.Normal,
		names[2]: h.Slow,
		names[3]: h.VerySlow,
		names[4]: h.Error,
	}
}
