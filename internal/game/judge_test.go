package game

import (
	"testing"

	"github.com/hirameki/rail-mission/internal/catalog"
)

func intp(v int) *int { return &v }

func TestWeightedTotalDefaults(t *testing.T) {
	// 0.45*50 + 0.35*100 + 0.20*10 = 59.5, rounds to 60.
	got := WeightedTotal(nil, catalog.Scores{Rescue: 50, Crowd: 100, Delay: 10})
	if got != 60 {
		t.Errorf("WeightedTotal = %d, want 60", got)
	}
}

func TestWeightedTotalCardWeights(t *testing.T) {
	card := &catalog.Card{Weights: catalog.Weights{Rescue: 1, Crowd: 0, Delay: 0}}
	got := WeightedTotal(card, catalog.Scores{Rescue: 73, Crowd: 0, Delay: 0})
	if got != 73 {
		t.Errorf("WeightedTotal = %d, want 73", got)
	}
}

func TestWeightedTotalMonotonic(t *testing.T) {
	base := catalog.Scores{Rescue: 40, Crowd: 40, Delay: 40}
	ref := WeightedTotal(nil, base)
	bumps := []catalog.Scores{
		{Rescue: 60, Crowd: 40, Delay: 40},
		{Rescue: 40, Crowd: 60, Delay: 40},
		{Rescue: 40, Crowd: 40, Delay: 60},
	}
	for _, s := range bumps {
		if got := WeightedTotal(nil, s); got < ref {
			t.Errorf("WeightedTotal(%+v) = %d, below baseline %d", s, got, ref)
		}
	}
}

func TestJudgeVacuousThresholds(t *testing.T) {
	// A card with no thresholds always passes, even at zero.
	j := Judge(&catalog.Card{}, catalog.Scores{})
	if !j.Pass {
		t.Fatalf("expected pass with no thresholds, got %+v", j)
	}
	if j.Reason != "" {
		t.Errorf("reason on pass: %q", j.Reason)
	}
	if j.Title != TitleRecoveryCrew {
		t.Errorf("title = %q, want %q", j.Title, TitleRecoveryCrew)
	}
}

func TestJudgeReasonPriority(t *testing.T) {
	card := &catalog.Card{Pass: catalog.PassThresholds{
		RescueMin: intp(50),
		CrowdMin:  intp(50),
		DelayMin:  intp(50),
		TotalMin:  intp(99),
	}}

	tests := []struct {
		name   string
		scores catalog.Scores
		reason string
	}{
		{"rescue outranks all", catalog.Scores{Rescue: 0, Crowd: 0, Delay: 0}, reasonRescue},
		{"crowd next", catalog.Scores{Rescue: 80, Crowd: 0, Delay: 0}, reasonCrowd},
		{"delay next", catalog.Scores{Rescue: 80, Crowd: 80, Delay: 0}, reasonDelay},
		{"total last", catalog.Scores{Rescue: 80, Crowd: 80, Delay: 80}, reasonTotal},
	}
	for _, tt := range tests {
		j := Judge(card, tt.scores)
		if j.Pass {
			t.Errorf("%s: unexpected pass", tt.name)
		}
		if j.Reason != tt.reason {
			t.Errorf("%s: reason = %q, want %q", tt.name, j.Reason, tt.reason)
		}
		if j.Title != TitleTrainee {
			t.Errorf("%s: failure title = %q, want %q", tt.name, j.Title, TitleTrainee)
		}
	}
}

func TestJudgeTitleBands(t *testing.T) {
	// Uniform scores make the weighted total equal the score itself.
	tests := []struct {
		scores catalog.Scores
		title  string
	}{
		{catalog.Scores{Rescue: 100, Crowd: 100, Delay: 100}, TitleLegend},
		{catalog.Scores{Rescue: 92, Crowd: 92, Delay: 92}, TitleLegend},
		{catalog.Scores{Rescue: 91, Crowd: 91, Delay: 91}, TitleStationmaster},
		{catalog.Scores{Rescue: 84, Crowd: 84, Delay: 84}, TitleStationmaster},
		{catalog.Scores{Rescue: 83, Crowd: 83, Delay: 83}, TitleAceDispatcher},
		{catalog.Scores{Rescue: 76, Crowd: 76, Delay: 76}, TitleAceDispatcher},
		{catalog.Scores{Rescue: 75, Crowd: 75, Delay: 75}, TitleRecoveryCrew},
		{catalog.Scores{Rescue: 0, Crowd: 0, Delay: 0}, TitleRecoveryCrew},
	}
	for _, tt := range tests {
		j := Judge(&catalog.Card{}, tt.scores)
		if !j.Pass {
			t.Errorf("scores %+v: expected pass", tt.scores)
		}
		if j.Title != tt.title {
			t.Errorf("scores %+v: title = %q, want %q", tt.scores, j.Title, tt.title)
		}
	}
}

func TestJudgeTotalThreshold(t *testing.T) {
	card := &catalog.Card{Pass: catalog.PassThresholds{TotalMin: intp(60)}}

	j := Judge(card, catalog.Scores{Rescue: 50, Crowd: 100, Delay: 10})
	if !j.Pass || j.Total != 60 {
		t.Errorf("expected pass at total 60, got %+v", j)
	}

	j = Judge(card, catalog.Scores{Rescue: 50, Crowd: 98, Delay: 10})
	if j.Pass {
		t.Errorf("expected failure below total threshold, got %+v", j)
	}
}
