package game

import (
	"context"
	"log"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hirameki/rail-mission/internal/catalog"
	"github.com/hirameki/rail-mission/internal/deck"
	"github.com/hirameki/rail-mission/internal/store"
)

// Listener receives sanitized state pushes after every mutation. The hub
// implements it to fan snapshots out to connected clients.
type Listener interface {
	// SessionChanged delivers one kiosk's fresh snapshot. displayTarget
	// is the kiosk id the display should currently mirror.
	SessionChanged(snap Snapshot, settings AdminSettings, displayTarget string)
	// SessionsChanged delivers the full session list for admin viewers.
	SessionsChanged(snaps []Snapshot, settings AdminSettings)
}

// RejectHook observes control messages that were silently dropped by a
// state-machine guard. Purely diagnostic; client-visible behavior is
// unchanged whether or not a hook is installed.
type RejectHook func(kioskID, msgType string, state State)

// Config carries the engine tunables. Zero values select the production
// defaults; tests shrink the intervals.
type Config struct {
	TickInterval  time.Duration // simulation step cadence, default 650ms
	SweepInterval time.Duration // watchdog period, default 15s
	IdleTimeout   time.Duration // mid-flow staleness window, default 120s
	Seed          int64         // deal/code RNG seed, 0 means time-based
}

func (c Config) withDefaults() Config {
	if c.TickInterval <= 0 {
		c.TickInterval = 650 * time.Millisecond
	}
	if c.SweepInterval <= 0 {
		c.SweepInterval = 15 * time.Second
	}
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = 120 * time.Second
	}
	if c.Seed == 0 {
		c.Seed = time.Now().UnixNano()
	}
	return c
}

// Engine owns every session and all process-wide game state. All state is
// explicit, so tests can run multiple independent engines.
type Engine struct {
	mu         sync.Mutex
	cat        *catalog.Catalog
	dealer     *deck.Dealer
	rng        *rand.Rand
	sessions   map[string]*Session
	settings   AdminSettings
	lastActive string

	cfg        Config
	listener   Listener
	rejectHook RejectHook
	sink       store.Sink
	logger     *log.Logger
}

// New constructs an engine over the catalog. sink may be nil to disable
// result persistence (tests); logger may be nil for the default logger.
func New(cat *catalog.Catalog, cfg Config, sink store.Sink, logger *log.Logger) *Engine {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = log.Default()
	}
	return &Engine{
		cat:      cat,
		dealer:   deck.New(cat, rand.NewSource(cfg.Seed)),
		rng:      rand.New(rand.NewSource(cfg.Seed + 1)),
		sessions: make(map[string]*Session),
		settings: AdminSettings{
			DisplayFollow: FollowAuto,
			SoundEnabled:  true,
			Defaults:      Defaults{Difficulty: catalog.DifficultyNormal, Mode: ModeNormal},
		},
		lastActive: "1",
		cfg:        cfg,
		sink:       sink,
		logger:     logger,
	}
}

// SetListener installs the snapshot fan-out target. Call before serving.
func (e *Engine) SetListener(l Listener) {
	e.mu.Lock()
	e.listener = l
	e.mu.Unlock()
}

// SetRejectHook installs the dropped-message diagnostic hook.
func (e *Engine) SetRejectHook(h RejectHook) {
	e.mu.Lock()
	e.rejectHook = h
	e.mu.Unlock()
}

// Catalog returns the static catalog the engine runs against.
func (e *Engine) Catalog() *catalog.Catalog {
	return e.cat
}

// Settings returns a copy of the current admin settings.
func (e *Engine) Settings() AdminSettings {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.settings
}

// DisplayTarget resolves which kiosk the display should mirror right now.
func (e *Engine) DisplayTarget() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.displayTargetLocked()
}

func (e *Engine) displayTargetLocked() string {
	if e.settings.DisplayFollow == FollowAuto {
		return e.lastActive
	}
	return e.settings.DisplayFollow
}

// sessionLocked returns the kiosk's session, creating it with attract
// defaults on first reference.
func (e *Engine) sessionLocked(kioskID string) *Session {
	if s, ok := e.sessions[kioskID]; ok {
		return s
	}
	now := time.Now()
	s := &Session{
		KioskID:      kioskID,
		SessionID:    uuid.NewString(),
		State:        StateAttract,
		Difficulty:   e.settings.Defaults.Difficulty,
		Mode:         e.settings.Defaults.Mode,
		Rules:        defaultRules(),
		TotalSteps:   StepsForMode(e.settings.Defaults.Mode),
		Scores:       catalog.Scores{Rescue: 50, Crowd: 50, Delay: 50},
		CreatedAt:    now,
		LastActiveAt: now,
		LastEventAt:  now,
	}
	e.sessions[kioskID] = s
	return s
}

func (e *Engine) touchLocked(s *Session) {
	now := time.Now()
	s.LastActiveAt = now
	s.LastEventAt = now
	e.lastActive = s.KioskID
}

func (e *Engine) snapshotsLocked() []Snapshot {
	out := make([]Snapshot, 0, len(e.sessions))
	for _, s := range e.sessions {
		out = append(out, s.snapshot())
	}
	return out
}

// publishLocked captures everything a push needs while the lock is held
// and returns a closure the caller invokes after unlocking. kioskID may
// be empty to skip the single-session push; list selects the admin-wide
// session list push.
func (e *Engine) publishLocked(kioskID string, list bool) func() {
	l := e.listener
	if l == nil {
		return func() {}
	}
	settings := e.settings
	target := e.displayTargetLocked()
	var snap Snapshot
	if kioskID != "" {
		snap = e.sessionLocked(kioskID).snapshot()
	}
	var snaps []Snapshot
	if list {
		snaps = e.snapshotsLocked()
	}
	return func() {
		if kioskID != "" {
			l.SessionChanged(snap, settings, target)
		}
		if list {
			l.SessionsChanged(snaps, settings)
		}
	}
}

func (e *Engine) rejectLocked(kioskID, msgType string, state State) func() {
	h := e.rejectHook
	if h == nil {
		return func() {}
	}
	return func() { h(kioskID, msgType, state) }
}

// KioskHello registers first contact from a kiosk: the session is created
// if needed, the kiosk becomes the most recently active one, and both the
// session and the admin list are pushed.
func (e *Engine) KioskHello(kioskID string) {
	e.mu.Lock()
	s := e.sessionLocked(kioskID)
	e.lastActive = s.KioskID
	push := e.publishLocked(kioskID, true)
	e.mu.Unlock()
	push()
}

// DisplayHello registers a display connection. A non-empty kiosk id pins
// the follow target to that kiosk, as the original appliance does.
func (e *Engine) DisplayHello(kioskID string) {
	e.mu.Lock()
	if kioskID != "" {
		e.settings.DisplayFollow = kioskID
	}
	push := e.publishLocked(e.displayTargetLocked(), true)
	e.mu.Unlock()
	push()
}

// AdminHello pushes the full session list to admin viewers.
func (e *Engine) AdminHello() {
	e.mu.Lock()
	push := e.publishLocked("", true)
	e.mu.Unlock()
	push()
}

// SetMode updates a kiosk's difficulty and run mode. Invalid values are
// ignored field by field; totalSteps tracks the mode immediately.
func (e *Engine) SetMode(kioskID string, difficulty catalog.Difficulty, mode Mode) {
	e.mu.Lock()
	s := e.sessionLocked(kioskID)
	e.touchLocked(s)
	if ValidMode(mode) {
		s.Mode = mode
	}
	if catalog.ValidDifficulty(difficulty) {
		s.Difficulty = difficulty
	}
	s.TotalSteps = StepsForMode(s.Mode)
	push := e.publishLocked(kioskID, true)
	e.mu.Unlock()
	push()
}

// Start deals a card (or resolves the requested one) and moves the
// session from any state into BRIEFING with fresh rules and scores. An
// unresolvable card id is silently ignored.
func (e *Engine) Start(kioskID, cardID string) {
	e.mu.Lock()
	s := e.sessionLocked(kioskID)
	e.touchLocked(s)

	var card *catalog.Card
	if cardID != "" {
		card = e.cat.ResolveCardID(cardID)
	} else {
		card = e.dealer.Next(s.Difficulty)
	}
	if card == nil {
		reject := e.rejectLocked(kioskID, "kiosk_start", s.State)
		e.mu.Unlock()
		reject()
		return
	}

	s.Card = card
	s.State = StateBriefing
	s.Rules = defaultRules()
	s.Step = 0
	s.Result = nil
	s.running = false
	s.runToken++
	s.Scores = card.InitScores

	push := e.publishLocked(kioskID, true)
	e.mu.Unlock()
	push()
}

// ToPlanning advances BRIEFING to PLANNING.
func (e *Engine) ToPlanning(kioskID string) {
	e.transition(kioskID, "kiosk_to_planning", StateBriefing, StatePlanning)
}

// ToReady advances PLANNING to READY.
func (e *Engine) ToReady(kioskID string) {
	e.transition(kioskID, "kiosk_to_ready", StatePlanning, StateReady)
}

// ShowCert advances RESULT to CERT.
func (e *Engine) ShowCert(kioskID string) {
	e.transition(kioskID, "kiosk_show_cert", StateResult, StateCert)
}

func (e *Engine) transition(kioskID, msgType string, from, to State) {
	e.mu.Lock()
	s := e.sessionLocked(kioskID)
	e.touchLocked(s)
	if s.State != from {
		reject := e.rejectLocked(kioskID, msgType, s.State)
		e.mu.Unlock()
		reject()
		return
	}
	s.State = to
	push := e.publishLocked(kioskID, false)
	e.mu.Unlock()
	push()
}

// SetRules replaces the session's rule slots during planning. Proposed
// pairs are sanitized against the catalog and then constrained by the
// card.
func (e *Engine) SetRules(kioskID string, proposed []Rule) {
	e.mu.Lock()
	s := e.sessionLocked(kioskID)
	e.touchLocked(s)
	if s.State != StatePlanning {
		reject := e.rejectLocked(kioskID, "kiosk_set_rules", s.State)
		e.mu.Unlock()
		reject()
		return
	}
	s.Rules = EnforceConstraints(s.Card, SanitizeRules(e.cat, proposed))
	push := e.publishLocked(kioskID, false)
	e.mu.Unlock()
	push()
}

// Retry returns a finished session to PLANNING with the same card and
// rules, scores re-seeded from the card's initial triple.
func (e *Engine) Retry(kioskID string) {
	e.mu.Lock()
	s := e.sessionLocked(kioskID)
	e.touchLocked(s)
	if (s.State != StateResult && s.State != StateCert) || s.Card == nil {
		reject := e.rejectLocked(kioskID, "kiosk_retry", s.State)
		e.mu.Unlock()
		reject()
		return
	}
	s.State = StatePlanning
	s.Step = 0
	s.Result = nil
	s.Scores = s.Card.InitScores
	push := e.publishLocked(kioskID, false)
	e.mu.Unlock()
	push()
}

// Reset functionally destroys and recreates the session in place: a new
// session id, attract state, cleared card, rules and result. Allowed from
// any state.
func (e *Engine) Reset(kioskID string) {
	e.mu.Lock()
	e.resetLocked(kioskID)
	push := e.publishLocked(kioskID, true)
	e.mu.Unlock()
	push()
}

func (e *Engine) resetLocked(kioskID string) {
	s := e.sessionLocked(kioskID)
	now := time.Now()
	s.SessionID = uuid.NewString()
	s.State = StateAttract
	s.Card = nil
	s.Rules = defaultRules()
	s.Step = 0
	s.TotalSteps = StepsForMode(s.Mode)
	s.Scores = catalog.Scores{Rescue: 50, Crowd: 50, Delay: 50}
	s.Result = nil
	s.running = false
	s.runToken++
	s.LastActiveAt = now
	s.LastEventAt = now
}

// SetDisplayFollow updates the display follow target. Empty means AUTO.
func (e *Engine) SetDisplayFollow(follow string) {
	e.mu.Lock()
	if follow == "" {
		follow = FollowAuto
	}
	e.settings.DisplayFollow = follow
	push := e.publishLocked(e.displayTargetLocked(), true)
	e.mu.Unlock()
	push()
}

// SetDefaults updates the defaults applied to newly created sessions.
// Invalid values are ignored field by field.
func (e *Engine) SetDefaults(difficulty catalog.Difficulty, mode Mode) {
	e.mu.Lock()
	if catalog.ValidDifficulty(difficulty) {
		e.settings.Defaults.Difficulty = difficulty
	}
	if ValidMode(mode) {
		e.settings.Defaults.Mode = mode
	}
	push := e.publishLocked("", true)
	e.mu.Unlock()
	push()
}

// SessionState reports a kiosk's current state, for tests and diagnostics.
func (e *Engine) SessionState(kioskID string) (State, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, ok := e.sessions[kioskID]
	if !ok {
		return "", false
	}
	return s.State, true
}

// SessionSnapshot returns the sanitized view of one kiosk, creating the
// session on first reference.
func (e *Engine) SessionSnapshot(kioskID string) Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sessionLocked(kioskID).snapshot()
}

// Snapshots returns the sanitized view of every session.
func (e *Engine) Snapshots() []Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotsLocked()
}

// RunWatchdog sweeps on the configured period and force-resets any
// session stuck mid-flow beyond the idle window. It blocks until ctx is
// done.
func (e *Engine) RunWatchdog(ctx context.Context) {
	ticker := time.NewTicker(e.cfg.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.sweep()
		}
	}
}

func (e *Engine) sweep() {
	now := time.Now()
	e.mu.Lock()
	var stale []string
	for kioskID, s := range e.sessions {
		if s.State == StateAttract {
			continue
		}
		if now.Sub(s.LastEventAt) > e.cfg.IdleTimeout {
			stale = append(stale, kioskID)
		}
	}
	e.mu.Unlock()

	for _, kioskID := range stale {
		e.logger.Printf("watchdog reset kiosk=%s idle>%s", kioskID, e.cfg.IdleTimeout)
		e.Reset(kioskID)
	}
}
