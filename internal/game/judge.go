package game

import (
	"github.com/shopspring/decimal"

	"github.com/hirameki/rail-mission/internal/catalog"
)

// Default score weights used when a card defines none.
var defaultWeights = catalog.Weights{Rescue: 0.45, Crowd: 0.35, Delay: 0.20}

// Earned titles, from the baseline up. The baseline title doubles as the
// failure title.
const (
	TitleTrainee       = "Trainee Station Attendant"
	TitleRecoveryCrew  = "Recovery Crew Member"
	TitleAceDispatcher = "Ace Dispatcher"
	TitleStationmaster = "Acting Stationmaster"
	TitleLegend        = "Legendary Dispatch Chief"
)

// Failure reasons, reported by priority: rescue, then crowd, then delay,
// then overall balance.
const (
	reasonRescue = "Rescue did not arrive in time. Try prioritizing the rescue crew."
	reasonCrowd  = "The platforms stayed crowded. Try relief locals, announcements or a track change."
	reasonDelay  = "Delays never settled. Try short-turning, rerouting or thinning service."
	reasonTotal  = "The overall balance fell just short. Try a different combination."
)

// Judgement is the computed outcome of a finished run.
type Judgement struct {
	Pass   bool
	Total  int
	Reason string
	Title  string
}

// WeightedTotal computes the rounded weighted sum of the three scores
// using the card's weights, or the defaults when the card defines none.
func WeightedTotal(card *catalog.Card, scores catalog.Scores) int {
	w := defaultWeights
	if card != nil && !card.Weights.IsZero() {
		w = card.Weights
	}
	total := decimal.NewFromFloat(w.Rescue).Mul(decimal.NewFromInt(int64(scores.Rescue))).
		Add(decimal.NewFromFloat(w.Crowd).Mul(decimal.NewFromInt(int64(scores.Crowd)))).
		Add(decimal.NewFromFloat(w.Delay).Mul(decimal.NewFromInt(int64(scores.Delay))))
	return int(total.Round(0).IntPart())
}

// Judge evaluates the final scores against the card's pass thresholds.
// An undefined threshold is vacuously satisfied. The title bands are
// checked highest first and apply only on a pass; a failure always earns
// the baseline title.
func Judge(card *catalog.Card, scores catalog.Scores) Judgement {
	total := WeightedTotal(card, scores)

	var pass catalog.PassThresholds
	if card != nil {
		pass = card.Pass
	}

	rescueOK := pass.RescueMin == nil || scores.Rescue >= *pass.RescueMin
	crowdOK := pass.CrowdMin == nil || scores.Crowd >= *pass.CrowdMin
	delayOK := pass.DelayMin == nil || scores.Delay >= *pass.DelayMin
	totalOK := pass.TotalMin == nil || total >= *pass.TotalMin

	ok := rescueOK && crowdOK && delayOK && totalOK

	reason := ""
	switch {
	case !rescueOK:
		reason = reasonRescue
	case !crowdOK:
		reason = reasonCrowd
	case !delayOK:
		reason = reasonDelay
	case !totalOK:
		reason = reasonTotal
	}

	title := TitleTrainee
	switch {
	case ok && total >= 92:
		title = TitleLegend
	case ok && total >= 84:
		title = TitleStationmaster
	case ok && total >= 76:
		title = TitleAceDispatcher
	case ok:
		title = TitleRecoveryCrew
	}

	return Judgement{Pass: ok, Total: total, Reason: reason, Title: title}
}
