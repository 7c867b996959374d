// Package game implements the authoritative per-kiosk session engine:
// the state machine, rule enforcement, the simulation clock, judgement
// and the stale-session watchdog.
package game

import (
	"time"

	"github.com/hirameki/rail-mission/internal/catalog"
	"github.com/hirameki/rail-mission/internal/store"
)

// State is a session's position in the kiosk flow.
type State string

const (
	StateAttract  State = "ATTRACT"
	StateBriefing State = "BRIEFING"
	StatePlanning State = "PLANNING"
	StateReady    State = "READY"
	StateRunning  State = "RUNNING"
	StateResult   State = "RESULT"
	StateCert     State = "CERT"
)

// Mode selects the run length.
type Mode string

const (
	ModeNormal Mode = "NORMAL" // 10 steps
	ModeQuick  Mode = "QUICK"  // 5 steps
)

// ValidMode reports whether m is a known mode.
func ValidMode(m Mode) bool {
	return m == ModeNormal || m == ModeQuick
}

// StepsForMode returns the total step count a run of the mode takes.
func StepsForMode(m Mode) int {
	if m == ModeQuick {
		return 5
	}
	return 10
}

// Rule is one of a session's two (condition, action) slots.
type Rule struct {
	CondID   string `json:"condId"`
	ActionID string `json:"actionId"`
}

func defaultRules() [2]Rule {
	return [2]Rule{
		{CondID: catalog.CondIDAlways, ActionID: catalog.ActionNone},
		{CondID: catalog.CondIDAlways, ActionID: catalog.ActionNone},
	}
}

// Result is the judged outcome of a completed run.
type Result struct {
	Pass      bool      `json:"pass"`
	Total     int       `json:"total"`
	Reason    string    `json:"reason"`
	Title     string    `json:"title"`
	Code      string    `json:"code"`
	Timestamp time.Time `json:"timestamp"`
}

const historyLimit = 10

// Session is the authoritative per-kiosk record. It is owned by the
// engine and mutated only while the engine's mutex is held.
type Session struct {
	KioskID      string
	SessionID    string
	State        State
	Difficulty   catalog.Difficulty
	Mode         Mode
	Card         *catalog.Card
	Rules        [2]Rule
	Step         int
	TotalSteps   int
	Scores       catalog.Scores
	Result       *Result
	LastResults  []store.ResultRecord
	CreatedAt    time.Time
	LastActiveAt time.Time
	LastEventAt  time.Time

	// running guards against a second simulation starting while one is
	// in flight for this kiosk.
	running bool

	// runToken identifies the run a ticking goroutine belongs to. Start,
	// depart and reset each bump it, so an orphaned clock from an earlier
	// run always finds a mismatch and stops.
	runToken uint64
}

// Snapshot is the sanitized, client-safe view of a session.
type Snapshot struct {
	KioskID      string               `json:"kioskId"`
	SessionID    string               `json:"sessionId"`
	State        State                `json:"state"`
	Difficulty   catalog.Difficulty   `json:"difficulty"`
	Mode         Mode                 `json:"mode"`
	CardID       string               `json:"cardId,omitempty"`
	Card         *catalog.Card        `json:"card"`
	Rules        [2]Rule              `json:"rules"`
	Step         int                  `json:"step"`
	TotalSteps   int                  `json:"totalSteps"`
	Scores       catalog.Scores       `json:"scores"`
	Result       *Result              `json:"result"`
	LastResults  []store.ResultRecord `json:"lastResults"`
	LastActiveAt int64                `json:"lastActiveAt"`
}

func (s *Session) snapshot() Snapshot {
	snap := Snapshot{
		KioskID:      s.KioskID,
		SessionID:    s.SessionID,
		State:        s.State,
		Difficulty:   s.Difficulty,
		Mode:         s.Mode,
		Card:         s.Card,
		Rules:        s.Rules,
		Step:         s.Step,
		TotalSteps:   s.TotalSteps,
		Scores:       s.Scores,
		LastActiveAt: s.LastActiveAt.UnixMilli(),
	}
	if s.Card != nil {
		snap.CardID = s.Card.ID
	}
	if s.Result != nil {
		res := *s.Result
		snap.Result = &res
	}
	snap.LastResults = append([]store.ResultRecord(nil), s.LastResults...)
	return snap
}

// Defaults are the settings applied to newly created sessions.
type Defaults struct {
	Difficulty catalog.Difficulty `json:"difficulty"`
	Mode       Mode               `json:"mode"`
}

// FollowAuto makes the display mirror whichever kiosk was most recently
// active.
const FollowAuto = "AUTO"

// AdminSettings is the process-wide operator configuration.
type AdminSettings struct {
	DisplayFollow string   `json:"displayFollow"`
	SoundEnabled  bool     `json:"soundEnabled"`
	Defaults      Defaults `json:"defaults"`
}
