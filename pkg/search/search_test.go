package search

import (
	"testing"
	"time"

	"github.com/rcrt-io/rcrt/pkg/models"
)

func TestOverlapRatioComputesFractionOfCandidateKeywords(t *testing.T) {
	ratio := overlapRatio([]string{"alpha", "beta"}, models.StringSet{"alpha", "gamma"})
	if ratio != 0.5 {
		t.Fatalf("expected 0.5, got %v", ratio)
	}
}

func TestOverlapRatioZeroWhenNoQueryTokens(t *testing.T) {
	if got := overlapRatio(nil, models.StringSet{"alpha"}); got != 0 {
		t.Fatalf("expected 0, got %v", got)
	}
}

func TestOverlapRatioZeroWhenCandidateHasNoKeywords(t *testing.T) {
	if got := overlapRatio([]string{"alpha"}, nil); got != 0 {
		t.Fatalf("expected 0, got %v", got)
	}
}

func TestSortResultsOrdersByScoreDescending(t *testing.T) {
	results := []Result{
		{Score: 0.2, Summary: models.Summary{ID: "a"}},
		{Score: 0.9, Summary: models.Summary{ID: "b"}},
	}
	sortResults(results)
	if results[0].Summary.ID != "b" {
		t.Fatalf("expected b first, got %s", results[0].Summary.ID)
	}
}

func TestSortResultsTieBreaksOnUpdatedAtThenID(t *testing.T) {
	now := time.Now()
	older := now.Add(-time.Hour)
	results := []Result{
		{Score: 0.5, Summary: models.Summary{ID: "z", UpdatedAt: older}},
		{Score: 0.5, Summary: models.Summary{ID: "a", UpdatedAt: now}},
		{Score: 0.5, Summary: models.Summary{ID: "b", UpdatedAt: now}},
	}
	sortResults(results)
	if results[0].Summary.ID != "a" || results[1].Summary.ID != "b" || results[2].Summary.ID != "z" {
		t.Fatalf("unexpected tie-break order: %+v", results)
	}
}

func TestKeywordTokensUsesSharedExtractRoutine(t *testing.T) {
	got := keywordTokens("deploy failed for service", []string{"urgent"})
	found := false
	for _, tok := range got {
		if tok == "urgent" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected pointer tag 'urgent' in tokens, got %v", got)
	}
}
