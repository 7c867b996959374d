package game

import (
	"testing"

	"github.com/hirameki/rail-mission/internal/catalog"
)

func loadCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	cat, err := catalog.Load()
	if err != nil {
		t.Fatalf("catalog.Load failed: %v", err)
	}
	return cat
}

func TestSanitizeRules(t *testing.T) {
	cat := loadCatalog(t)

	tests := []struct {
		name string
		in   []Rule
		want [2]Rule
	}{
		{
			"empty input yields defaults",
			nil,
			[2]Rule{{"always", "none"}, {"always", "none"}},
		},
		{
			"known pairs pass through",
			[]Rule{{"crowd_bad", "add_local"}, {"always", "reroute"}},
			[2]Rule{{"crowd_bad", "add_local"}, {"always", "reroute"}},
		},
		{
			"unknown ids fall back",
			[]Rule{{"bogus_cond", "add_local"}, {"fault", "bogus_action"}},
			[2]Rule{{"always", "add_local"}, {"fault", "none"}},
		},
		{
			"third pair ignored",
			[]Rule{{"always", "announce"}, {"always", "reroute"}, {"always", "add_local"}},
			[2]Rule{{"always", "announce"}, {"always", "reroute"}},
		},
	}
	for _, tt := range tests {
		if got := SanitizeRules(cat, tt.in); got != tt.want {
			t.Errorf("%s: SanitizeRules = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestEnforceConstraintsBannedAction(t *testing.T) {
	card := &catalog.Card{BannedActions: []string{"shuttle_bus"}}
	in := [2]Rule{{"always", "shuttle_bus"}, {"delay_bad", "reroute"}}

	got := EnforceConstraints(card, in)
	if got[0].ActionID != "none" {
		t.Errorf("banned action survived: %v", got[0])
	}
	if got[0].CondID != "always" {
		t.Errorf("condition of banned rule changed: %v", got[0])
	}
	if got[1] != (Rule{"delay_bad", "reroute"}) {
		t.Errorf("unrelated rule changed: %v", got[1])
	}
}

func TestEnforceConstraintsSingleRule(t *testing.T) {
	card := &catalog.Card{OnlyOneRule: true}
	in := [2]Rule{{"fault", "reroute"}, {"crowd_bad", "add_local"}}

	got := EnforceConstraints(card, in)
	if got[0] != (Rule{"fault", "reroute"}) {
		t.Errorf("first slot changed: %v", got[0])
	}
	if got[1] != (Rule{"always", "none"}) {
		t.Errorf("second slot not forced inert: %v", got[1])
	}
}

func TestEnforceConstraintsIdempotent(t *testing.T) {
	cards := []*catalog.Card{
		nil,
		{BannedActions: []string{"reroute"}},
		{OnlyOneRule: true},
		{BannedActions: []string{"add_local"}, OnlyOneRule: true},
	}
	in := [2]Rule{{"crowd_bad", "add_local"}, {"fault", "reroute"}}

	for i, card := range cards {
		once := EnforceConstraints(card, in)
		twice := EnforceConstraints(card, once)
		if once != twice {
			t.Errorf("card %d: enforcement not idempotent: %v then %v", i, once, twice)
		}
	}
}

func TestEnforceConstraintsFillsEmptyIDs(t *testing.T) {
	got := EnforceConstraints(nil, [2]Rule{{}, {"", "announce"}})
	if got[0] != (Rule{"always", "none"}) {
		t.Errorf("empty slot not normalized: %v", got[0])
	}
	if got[1] != (Rule{"always", "announce"}) {
		t.Errorf("empty condition not normalized: %v", got[1])
	}
}
