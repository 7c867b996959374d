package game

import (
	"github.com/hirameki/rail-mission/internal/catalog"
)

// SanitizeRules normalizes up to two proposed rule pairs into exactly two
// well-formed slots: unknown conditions fall back to "always", unknown
// actions to "none".
func SanitizeRules(cat *catalog.Catalog, proposed []Rule) [2]Rule {
	out := defaultRules()
	for i := 0; i < 2 && i < len(proposed); i++ {
		r := proposed[i]
		if cat.HasCondition(r.CondID) {
			out[i].CondID = r.CondID
		}
		if cat.HasAction(r.ActionID) {
			out[i].ActionID = r.ActionID
		}
	}
	return out
}

// EnforceConstraints applies the card's rule constraints: banned actions
// are forced to "none" (the condition is untouched) and a single-rule
// card always gets an inert second slot. The operation is idempotent and
// is applied both at planning time and again at depart.
func EnforceConstraints(card *catalog.Card, rules [2]Rule) [2]Rule {
	out := rules
	for i := range out {
		if out[i].CondID == "" {
			out[i].CondID = catalog.CondIDAlways
		}
		if out[i].ActionID == "" {
			out[i].ActionID = catalog.ActionNone
		}
		if card != nil && card.IsBanned(out[i].ActionID) {
			out[i].ActionID = catalog.ActionNone
		}
	}
	if card != nil && card.OnlyOneRule {
		out[1] = Rule{CondID: catalog.CondIDAlways, ActionID: catalog.ActionNone}
	}
	return out
}
