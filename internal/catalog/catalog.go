// Package catalog holds the static mission data the engine runs against:
// mission cards, rule conditions and rule actions. The catalog is loaded
// once at startup and is read-only afterwards.
package catalog

import (
	_ "embed"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var embeddedCatalog []byte

// Difficulty is a card's tier. NORMAL decks draw from every card.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "EASY"
	DifficultyNormal Difficulty = "NORMAL"
	DifficultyHard   Difficulty = "HARD"
)

// ValidDifficulty reports whether d is one of the three known tiers.
func ValidDifficulty(d Difficulty) bool {
	switch d {
	case DifficultyEasy, DifficultyNormal, DifficultyHard:
		return true
	}
	return false
}

// Scores is the session's three bounded score dimensions.
type Scores struct {
	Rescue int `json:"rescue" yaml:"rescue"`
	Crowd  int `json:"crowd" yaml:"crowd"`
	Delay  int `json:"delay" yaml:"delay"`
}

// Delta is a signed per-dimension adjustment applied to Scores.
type Delta struct {
	Rescue int `json:"rescue" yaml:"rescue"`
	Crowd  int `json:"crowd" yaml:"crowd"`
	Delay  int `json:"delay" yaml:"delay"`
}

// IsZero reports whether the delta changes nothing.
func (d Delta) IsZero() bool {
	return d.Rescue == 0 && d.Crowd == 0 && d.Delay == 0
}

// PassThresholds are a card's minimums. A nil field is vacuously satisfied.
type PassThresholds struct {
	RescueMin *int `json:"rescueMin,omitempty" yaml:"rescue_min"`
	CrowdMin  *int `json:"crowdMin,omitempty" yaml:"crowd_min"`
	DelayMin  *int `json:"delayMin,omitempty" yaml:"delay_min"`
	TotalMin  *int `json:"totalMin,omitempty" yaml:"total_min"`
}

// Weights scale each score dimension into the weighted total.
type Weights struct {
	Rescue float64 `json:"rescue" yaml:"rescue"`
	Crowd  float64 `json:"crowd" yaml:"crowd"`
	Delay  float64 `json:"delay" yaml:"delay"`
}

// IsZero reports whether no weights were configured on the card.
func (w Weights) IsZero() bool {
	return w.Rescue == 0 && w.Crowd == 0 && w.Delay == 0
}

// RuleRef is a recommended (condition, action) pairing shown to players.
type RuleRef struct {
	CondID   string `json:"condId" yaml:"cond"`
	ActionID string `json:"actionId" yaml:"action"`
}

// Card is one immutable mission scenario.
type Card struct {
	ID            string         `json:"id" yaml:"id"`
	Title         string         `json:"title" yaml:"title"`
	Brief         string         `json:"brief" yaml:"brief"`
	Objective     string         `json:"objective" yaml:"objective"`
	Constraints   []string       `json:"constraints" yaml:"constraints"`
	Hint          string         `json:"hint,omitempty" yaml:"hint"`
	Difficulty    Difficulty     `json:"difficulty" yaml:"difficulty"`
	Tags          []string       `json:"tags" yaml:"tags"`
	InitScores    Scores         `json:"initScores" yaml:"init_scores"`
	BaseStep      Delta          `json:"baseStep" yaml:"base_step"`
	Friction      *Delta         `json:"friction,omitempty" yaml:"friction"`
	Pass          PassThresholds `json:"pass" yaml:"pass"`
	Weights       Weights        `json:"weights" yaml:"weights"`
	Recommended   []RuleRef      `json:"recommended,omitempty" yaml:"recommended"`
	BannedActions []string       `json:"bannedActions" yaml:"banned_actions"`
	OnlyOneRule   bool           `json:"onlyOneRule" yaml:"only_one_rule"`
}

// HasTag reports whether the card carries the given free-form tag.
func (c *Card) HasTag(tag string) bool {
	for _, t := range c.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// IsBanned reports whether the action may not appear in an active rule
// for this card.
func (c *Card) IsBanned(actionID string) bool {
	for _, b := range c.BannedActions {
		if b == actionID {
			return true
		}
	}
	return false
}

// Condition kinds understood by the predicate evaluator.
const (
	CondAlways     = "always"      // holds unconditionally
	CondTag        = "tag"         // card carries a tag
	CondScoreBelow = "score_below" // a score dimension is under a threshold
	CondMinTags    = "min_tags"    // card carries at least N tags
)

// Condition is a named predicate over live session state.
type Condition struct {
	ID        string `json:"id" yaml:"id"`
	Label     string `json:"label" yaml:"label"`
	Kind      string `json:"-" yaml:"kind"`
	Tag       string `json:"-" yaml:"tag"`
	Metric    string `json:"-" yaml:"metric"`
	Threshold int    `json:"-" yaml:"threshold"`
	MinTags   int    `json:"-" yaml:"min_tags"`
}

// Action is a named deterministic score-delta effect.
type Action struct {
	ID     string `json:"id" yaml:"id"`
	Label  string `json:"label" yaml:"label"`
	Desc   string `json:"desc,omitempty" yaml:"desc"`
	Effect Delta  `json:"effect" yaml:"effect"`
}

// Meta carries free-form catalog metadata passed through to clients.
type Meta struct {
	Name    string `json:"name" yaml:"name"`
	Version string `json:"version" yaml:"version"`
}

// Catalog is the full static data set.
type Catalog struct {
	Meta       Meta        `json:"meta" yaml:"meta"`
	Cards      []Card      `json:"cards" yaml:"cards"`
	Conditions []Condition `json:"conditions" yaml:"conditions"`
	Actions    []Action    `json:"actions" yaml:"actions"`

	cardsByID   map[string]*Card
	condsByID   map[string]*Condition
	actionsByID map[string]*Action
}

// ActionNone is the inert action every rule slot defaults to.
const ActionNone = "none"

// CondIDAlways is the condition every rule slot defaults to.
const CondIDAlways = "always"

// Load parses and indexes the embedded catalog.
func Load() (*Catalog, error) {
	return Parse(embeddedCatalog)
}

// Parse parses and indexes catalog YAML. It validates the structural
// requirements the engine depends on; a failure here is a configuration
// error and should abort startup.
func Parse(data []byte) (*Catalog, error) {
	var cat Catalog
	if err := yaml.Unmarshal(data, &cat); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	if len(cat.Cards) == 0 {
		return nil, fmt.Errorf("catalog has no cards")
	}

	cat.cardsByID = make(map[string]*Card, len(cat.Cards))
	for i := range cat.Cards {
		c := &cat.Cards[i]
		if c.ID == "" {
			return nil, fmt.Errorf("card %d has no id", i)
		}
		if !ValidDifficulty(c.Difficulty) {
			return nil, fmt.Errorf("card %s: unknown difficulty %q", c.ID, c.Difficulty)
		}
		if _, dup := cat.cardsByID[c.ID]; dup {
			return nil, fmt.Errorf("duplicate card id %s", c.ID)
		}
		cat.cardsByID[c.ID] = c
	}

	cat.condsByID = make(map[string]*Condition, len(cat.Conditions))
	for i := range cat.Conditions {
		c := &cat.Conditions[i]
		switch c.Kind {
		case CondAlways, CondTag, CondScoreBelow, CondMinTags:
		default:
			return nil, fmt.Errorf("condition %s: unknown kind %q", c.ID, c.Kind)
		}
		cat.condsByID[c.ID] = c
	}
	if _, ok := cat.condsByID[CondIDAlways]; !ok {
		return nil, fmt.Errorf("catalog must define the %q condition", CondIDAlways)
	}

	cat.actionsByID = make(map[string]*Action, len(cat.Actions))
	for i := range cat.Actions {
		a := &cat.Actions[i]
		cat.actionsByID[a.ID] = a
	}
	if _, ok := cat.actionsByID[ActionNone]; !ok {
		return nil, fmt.Errorf("catalog must define the %q action", ActionNone)
	}

	for _, card := range cat.Cards {
		for _, banned := range card.BannedActions {
			if _, ok := cat.actionsByID[banned]; !ok {
				return nil, fmt.Errorf("card %s bans unknown action %q", card.ID, banned)
			}
		}
	}

	return &cat, nil
}

// Card returns the card with the given id, or nil.
func (c *Catalog) Card(id string) *Card {
	return c.cardsByID[id]
}

// ResolveCardID looks a card up by user-entered id, left-padding bare
// numeric ids to two digits so "1" finds card "01".
func (c *Catalog) ResolveCardID(id string) *Card {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil
	}
	if len(id) == 1 {
		id = "0" + id
	}
	return c.cardsByID[id]
}

// HasCondition reports whether the id names a known condition.
func (c *Catalog) HasCondition(id string) bool {
	_, ok := c.condsByID[id]
	return ok
}

// HasAction reports whether the id names a known action.
func (c *Catalog) HasAction(id string) bool {
	_, ok := c.actionsByID[id]
	return ok
}

// Action returns a known action by id, or nil.
func (c *Catalog) Action(id string) *Action {
	return c.actionsByID[id]
}

// CardsForDifficulty returns ids of the cards eligible for a deck of the
// given tier. NORMAL decks draw from the entire catalog.
func (c *Catalog) CardsForDifficulty(d Difficulty) []string {
	ids := make([]string, 0, len(c.Cards))
	for i := range c.Cards {
		if d == DifficultyNormal || c.Cards[i].Difficulty == d {
			ids = append(ids, c.Cards[i].ID)
		}
	}
	return ids
}

// CondHolds evaluates a condition against a card's tags and the live
// scores. Unknown condition ids never hold.
func (c *Catalog) CondHolds(condID string, card *Card, scores Scores) bool {
	cond, ok := c.condsByID[condID]
	if !ok {
		return false
	}
	switch cond.Kind {
	case CondAlways:
		return true
	case CondTag:
		return card != nil && card.HasTag(cond.Tag)
	case CondMinTags:
		return card != nil && len(card.Tags) >= cond.MinTags
	case CondScoreBelow:
		switch cond.Metric {
		case "rescue":
			return scores.Rescue < cond.Threshold
		case "crowd":
			return scores.Crowd < cond.Threshold
		case "delay":
			return scores.Delay < cond.Threshold
		}
	}
	return false
}
