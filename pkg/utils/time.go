package utils

import (
	"context"
	"time"
)

// SlotSizes are the time-series resolutions a window can be sampled at, finest first.
var SlotSizes = []time.Duration{
	time.Minute,
	5 * time.Minute,
	10 * time.Minute,
	30 * time.Minute,
	time.Hour,
	6 * time.Hour,
	12 * time.Hour,
	24 * time.Hour,
}

// TruncateToSlot aligns t to the start of the slot containing it.
// Alignment is done on the Unix epoch so every process agrees on slot boundaries.
func TruncateToSlot(t time.Time, slot time.Duration) time.Time {
	if slot <= 0 {
		return t
	}
	ms := t.UnixMilli()
	size := slot.Milliseconds()
	aligned := ms - ms%size
	if ms < 0 && ms%size != 0 {
		aligned -= size
	}
	return time.UnixMilli(aligned).In(t.Location())
}

// ChooseSlotSize returns the finest slot size that splits span into at most maxSlots slots.
// The coarsest size is returned when none fits.
func ChooseSlotSize(span time.Duration, maxSlots int) time.Duration {
	if maxSlots <= 0 {
		maxSlots = 1
	}
	for _, size := range SlotSizes {
		slots := (span + size - 1) / size
		if int64(slots) <= int64(maxSlots) {
			return size
		}
	}
	return SlotSizes[len(SlotSizes)-1]
}

// UnixMs converts a time to Unix milliseconds
func UnixMs(t time.Time) int64 {
	return t.UnixMilli()
}

// FromUnixMs converts Unix milliseconds to a UTC time
func FromUnixMs(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

// MinTime returns the earlier of two times
func MinTime(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}

// MaxTime returns the later of two times
func MaxTime(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}

// SleepContext waits for d or until ctx is done, whichever comes first.
func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
