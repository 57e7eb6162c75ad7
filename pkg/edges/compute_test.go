package edges

import (
	"reflect"
	"testing"
)

func TestCapTopMSortsByWeightDescendingThenIDAscending(t *testing.T) {
	cands := []candidate{
		{targetID: "b", weight: 0.5},
		{targetID: "a", weight: 0.9},
		{targetID: "c", weight: 0.9},
	}
	got := capTopM(cands, 2)
	want := []candidate{{targetID: "a", weight: 0.9}, {targetID: "c", weight: 0.9}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestCapTopMNoTruncationWhenUnderLimit(t *testing.T) {
	cands := []candidate{{targetID: "a", weight: 0.1}}
	got := capTopM(cands, 5)
	if len(got) != 1 {
		t.Fatalf("expected no truncation, got %v", got)
	}
}

func TestJaccardCountsComputesOverlapAndUnion(t *testing.T) {
	pointerSet := map[string]bool{"red": true, "blue": true, "green": true}
	overlap, union := jaccardCounts(pointerSet, []string{"blue", "green", "yellow"})
	if overlap != 2 {
		t.Fatalf("expected overlap 2, got %d", overlap)
	}
	if union != 4 {
		t.Fatalf("expected union 4, got %d", union)
	}
}

func TestJaccardCountsNoOverlap(t *testing.T) {
	pointerSet := map[string]bool{"red": true}
	overlap, union := jaccardCounts(pointerSet, []string{"blue"})
	if overlap != 0 {
		t.Fatalf("expected overlap 0, got %d", overlap)
	}
	if union != 2 {
		t.Fatalf("expected union 2, got %d", union)
	}
}

func TestSessionTagsOfFiltersToSessionNamespace(t *testing.T) {
	got := sessionTagsOf([]string{"session:abc", "topic:foo", "session:def"})
	want := []string{"session:abc", "session:def"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestSessionTagsOfEmptyWhenNoneMatch(t *testing.T) {
	got := sessionTagsOf([]string{"topic:foo"})
	if len(got) != 0 {
		t.Fatalf("expected no session tags, got %v", got)
	}
}
