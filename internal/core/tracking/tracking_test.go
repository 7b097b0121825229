package tracking

import (
	"math"
	"testing"
	"time"

	"github.com/paulmach/orb"

	"github.com/99minutos/courier-tracking/internal/core/domain"
)

var start = time.Date(2026, time.October, 13, 10, 0, 0, 0, time.UTC)

func at(lat, lng, accuracy float64) domain.Position {
	return domain.Position{Latitude: lat, Longitude: lng, AccuracyMeters: accuracy, Timestamp: start}
}

// northOf moves p meters due north.
func northOf(p domain.Position, meters float64) domain.Position {
	p.Latitude += meters / orb.EarthRadius * 180 / math.Pi
	p.Timestamp = p.Timestamp.Add(time.Second)
	return p
}

// ---------------------------------------------------------------------------
// Filter
// ---------------------------------------------------------------------------

func TestFilter_RejectsPoorAccuracyRegardlessOfMovement(t *testing.T) {
	f := NewFilter(DefaultFilterConfig())
	last := at(19.4326, -99.1332, 10)

	far := northOf(last, 5000)
	far.AccuracyMeters = 150
	if f.Accept(far, &last) {
		t.Error("accuracy 150 must be rejected even after moving 5 km")
	}
	first := at(19.4326, -99.1332, 150)
	if got := f.Evaluate(first, nil); got != RejectedAccuracy {
		t.Errorf("expected %s, got %s", RejectedAccuracy, got)
	}
}

func TestFilter_SuppressesJitter(t *testing.T) {
	f := NewFilter(DefaultFilterConfig())
	last := at(19.4326, -99.1332, 10)

	if got := f.Evaluate(northOf(last, 3), &last); got != RejectedNoise {
		t.Errorf("3 m move: expected %s, got %s", RejectedNoise, got)
	}
	if !f.Accept(northOf(last, 6), &last) {
		t.Error("6 m move should be accepted")
	}
}

func TestFilter_AcceptsFirstReadingAndBoundary(t *testing.T) {
	f := NewFilter(DefaultFilterConfig())
	if !f.Accept(at(19.4326, -99.1332, 100), nil) {
		t.Error("accuracy exactly 100 must be accepted")
	}
	if f.Evaluate(at(91, 0, 5), nil) != RejectedInvalid {
		t.Error("out of range latitude must be rejected")
	}
	if f.Evaluate(at(0, 0, -1), nil) != RejectedInvalid {
		t.Error("negative accuracy must be rejected")
	}
}

// ---------------------------------------------------------------------------
// History
// ---------------------------------------------------------------------------

func TestHistory_EvictsOldest(t *testing.T) {
	h := NewHistory(DefaultHistoryCapacity)
	p := at(19.4326, -99.1332, 10)
	var first domain.Position
	for i := 0; i < 51; i++ {
		p = northOf(p, 10)
		if i == 0 {
			first = p
		}
		h.Append(p)
	}

	if h.Len() != 50 {
		t.Fatalf("expected 50 entries, got %d", h.Len())
	}
	all := h.All()
	if all[0] == first {
		t.Error("oldest entry was not evicted")
	}
	if last, ok := h.Last(); !ok || last != p {
		t.Error("last entry mismatch")
	}
	for i := 1; i < len(all); i++ {
		if !all[i].Timestamp.After(all[i-1].Timestamp) {
			t.Fatalf("insertion order broken at %d", i)
		}
	}
}

func TestHistory_AllReturnsCopy(t *testing.T) {
	h := NewHistory(3)
	h.Append(at(1, 1, 5))
	snapshot := h.All()
	snapshot[0].Latitude = 42

	if got, _ := h.Last(); got.Latitude != 1 {
		t.Error("mutating All() result leaked into the buffer")
	}
}

func TestHistory_Empty(t *testing.T) {
	h := NewHistory(0)
	if h.Capacity() != DefaultHistoryCapacity {
		t.Errorf("expected default capacity, got %d", h.Capacity())
	}
	if _, ok := h.Last(); ok {
		t.Error("empty history must not have a last entry")
	}
	if h.Len() != 0 || len(h.All()) != 0 {
		t.Error("new history must be empty")
	}
}
