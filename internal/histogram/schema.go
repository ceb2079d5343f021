package histogram

import (
	"fmt"
	"time"

	"github.com/GoSim-25-26J-441/topology-core/pkg/config"
	"github.com/GoSim-25-26J-441/topology-core/pkg/models"
)

// Bucket is one latency class of a histogram
type Bucket int

const (
	BucketFast Bucket = iota
	BucketNormal
	BucketSlow
	BucketVerySlow
	BucketError
)

// Schema holds the latency thresholds for a family of service types.
// A call faster than Fast is fast, faster than Normal is normal, faster than Slow is slow;
// anything else is very slow. Errors are counted separately regardless of latency.
type Schema struct {
	Name   string        `json:"name"`
	Fast   time.Duration `json:"fast"`
	Normal time.Duration `json:"normal"`
	Slow   time.Duration `json:"slow"`
}

// Validate checks that thresholds are positive and increasing
func (s Schema) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("schema name cannot be empty")
	}
	if s.Fast <= 0 || s.Normal <= s.Fast || s.Slow <= s.Normal {
		return fmt.Errorf("schema %s: thresholds must be positive and increasing (fast %v, normal %v, slow %v)", s.Name, s.Fast, s.Normal, s.Slow)
	}
	return nil
}

// Classify returns the bucket a single call falls into
func (s Schema) Classify(elapsed time.Duration, isError bool) Bucket {
	switch {
	case isError:
		return BucketError
	case elapsed < s.Fast:
		return BucketFast
	case elapsed < s.Normal:
		return BucketNormal
	case elapsed < s.Slow:
		return BucketSlow
	default:
		return BucketVerySlow
	}
}

// SlotNames returns the display names of the five buckets, e.g. "1s", "3s", "5s", "Slow", "Error"
func (s Schema) SlotNames() [5]string {
	return [5]string{formatThreshold(s.Fast), formatThreshold(s.Normal), formatThreshold(s.Slow), "Slow", "Error"}
}

func formatThreshold(d time.Duration) string {
	if d%time.Second == 0 {
		return fmt.Sprintf("%ds", int64(d/time.Second))
	}
	return fmt.Sprintf("%dms", d.Milliseconds())
}

// Schemas maps schema names to thresholds
type Schemas map[string]Schema

// DefaultSchemas returns the built-in normal and fast schemas
func DefaultSchemas() Schemas {
	return Schemas{
		models.SchemaNormal: {Name: models.SchemaNormal, Fast: time.Second, Normal: 3 * time.Second, Slow: 5 * time.Second},
		models.SchemaFast:   {Name: models.SchemaFast, Fast: 100 * time.Millisecond, Normal: 300 * time.Millisecond, Slow: 500 * time.Millisecond},
	}
}

// For returns the schema of a service type, falling back to the normal schema
func (s Schemas) For(t models.ServiceType) Schema {
	if schema, ok := s[t.Schema]; ok {
		return schema
	}
	if schema, ok := s[models.SchemaNormal]; ok {
		return schema
	}
	return DefaultSchemas()[models.SchemaNormal]
}

// SchemasFromConfig returns the built-in schemas extended or overridden by cfgs
func SchemasFromConfig(cfgs []config.HistogramSchema) (Schemas, error) {
	schemas := DefaultSchemas()
	for _, c := range cfgs {
		fast, normal, slow, err := c.Thresholds()
		if err != nil {
			return nil, fmt.Errorf("schema %s: %w", c.Name, err)
		}
		s := Schema{Name: c.Name, Fast: fast, Normal: normal, Slow: slow}
		if err := s.Validate(); err != nil {
			return nil, err
		}
		schemas[s.Name] = s
	}
	return schemas, nil
}
