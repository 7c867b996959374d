package game

import (
	"context"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/hirameki/rail-mission/internal/catalog"
)

func newTestEngine(t *testing.T, cfg Config) *Engine {
	t.Helper()
	if cfg.Seed == 0 {
		cfg.Seed = 42
	}
	return New(loadCatalog(t), cfg, nil, nil)
}

// waitForState polls until the kiosk reaches want or the deadline passes.
func waitForState(t *testing.T, e *Engine, kioskID string, want State) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if st, ok := e.SessionState(kioskID); ok && st == want {
			return
		}
		time.Sleep(time.Millisecond)
	}
	st, _ := e.SessionState(kioskID)
	t.Fatalf("kiosk %s never reached %s, stuck at %s", kioskID, want, st)
}

// recordingListener collects pushes for assertions.
type recordingListener struct {
	mu       sync.Mutex
	snaps    []Snapshot
	targets  []string
	listLens []int
}

func (l *recordingListener) SessionChanged(snap Snapshot, _ AdminSettings, displayTarget string) {
	l.mu.Lock()
	l.snaps = append(l.snaps, snap)
	l.targets = append(l.targets, displayTarget)
	l.mu.Unlock()
}

func (l *recordingListener) SessionsChanged(snaps []Snapshot, _ AdminSettings) {
	l.mu.Lock()
	l.listLens = append(l.listLens, len(snaps))
	l.mu.Unlock()
}

func (l *recordingListener) last() (Snapshot, string, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.snaps) == 0 {
		return Snapshot{}, "", false
	}
	return l.snaps[len(l.snaps)-1], l.targets[len(l.targets)-1], true
}

func TestKioskHelloCreatesAttractSession(t *testing.T) {
	e := newTestEngine(t, Config{})
	l := &recordingListener{}
	e.SetListener(l)

	e.KioskHello("2")

	snap, target, ok := l.last()
	if !ok {
		t.Fatal("no snapshot pushed")
	}
	if snap.KioskID != "2" || snap.State != StateAttract {
		t.Errorf("snapshot = kiosk %s state %s", snap.KioskID, snap.State)
	}
	if snap.Scores != (catalog.Scores{Rescue: 50, Crowd: 50, Delay: 50}) {
		t.Errorf("fresh scores = %+v", snap.Scores)
	}
	if snap.TotalSteps != 10 {
		t.Errorf("totalSteps = %d, want 10", snap.TotalSteps)
	}
	if target != "2" {
		t.Errorf("AUTO display target = %q, want the kiosk that just spoke", target)
	}
}

func TestSetModeUpdatesStepsImmediately(t *testing.T) {
	e := newTestEngine(t, Config{})
	e.KioskHello("1")

	e.SetMode("1", catalog.DifficultyHard, ModeQuick)
	snap := e.SessionSnapshot("1")
	if snap.Mode != ModeQuick || snap.TotalSteps != 5 {
		t.Errorf("mode %s steps %d, want QUICK/5", snap.Mode, snap.TotalSteps)
	}
	if snap.Difficulty != catalog.DifficultyHard {
		t.Errorf("difficulty = %s", snap.Difficulty)
	}

	// Invalid values are ignored field by field.
	e.SetMode("1", "IMPOSSIBLE", "MARATHON")
	snap = e.SessionSnapshot("1")
	if snap.Mode != ModeQuick || snap.Difficulty != catalog.DifficultyHard {
		t.Errorf("invalid set_mode changed fields: %s/%s", snap.Difficulty, snap.Mode)
	}
}

func TestStartResolvesShortCardID(t *testing.T) {
	e := newTestEngine(t, Config{})
	e.Start("1", "1")

	snap := e.SessionSnapshot("1")
	if snap.State != StateBriefing {
		t.Fatalf("state = %s, want BRIEFING", snap.State)
	}
	if snap.CardID != "01" {
		t.Errorf("cardId = %q, want 01", snap.CardID)
	}
	if snap.Scores != snap.Card.InitScores {
		t.Errorf("scores %+v not seeded from card init %+v", snap.Scores, snap.Card.InitScores)
	}
}

func TestStartUnknownCardRejected(t *testing.T) {
	e := newTestEngine(t, Config{})
	var rejected []string
	e.SetRejectHook(func(kioskID, msgType string, state State) {
		rejected = append(rejected, msgType)
	})

	e.KioskHello("1")
	e.Start("1", "99")

	if st, _ := e.SessionState("1"); st != StateAttract {
		t.Errorf("state = %s, want ATTRACT", st)
	}
	if len(rejected) != 1 || rejected[0] != "kiosk_start" {
		t.Errorf("reject hook calls = %v", rejected)
	}
}

func TestTransitionGuards(t *testing.T) {
	e := newTestEngine(t, Config{})
	var rejected int
	e.SetRejectHook(func(string, string, State) { rejected++ })

	e.KioskHello("1")

	// Out-of-order controls are dropped without changing state.
	e.ToPlanning("1")
	e.ToReady("1")
	e.Depart("1")
	e.ShowCert("1")
	if st, _ := e.SessionState("1"); st != StateAttract {
		t.Fatalf("state = %s after rejected controls", st)
	}
	if rejected != 4 {
		t.Errorf("reject hook fired %d times, want 4", rejected)
	}

	e.Start("1", "01")
	e.ToPlanning("1")
	e.ToReady("1")
	if st, _ := e.SessionState("1"); st != StateReady {
		t.Fatalf("state = %s, want READY", st)
	}
}

func TestSetRulesOnlyDuringPlanning(t *testing.T) {
	e := newTestEngine(t, Config{})
	e.Start("1", "01")

	e.SetRules("1", []Rule{{CondID: "always", ActionID: "add_local"}})
	if got := e.SessionSnapshot("1").Rules; got != defaultRules() {
		t.Errorf("rules changed outside PLANNING: %v", got)
	}

	e.ToPlanning("1")
	e.SetRules("1", []Rule{{CondID: "always", ActionID: "add_local"}})
	got := e.SessionSnapshot("1").Rules
	want := [2]Rule{{"always", "add_local"}, {"always", "none"}}
	if got != want {
		t.Errorf("rules = %v, want %v", got, want)
	}
}

func TestSetRulesAppliesCardConstraints(t *testing.T) {
	e := newTestEngine(t, Config{})
	// Card 03 bans shuttle_bus.
	e.Start("1", "03")
	e.ToPlanning("1")

	e.SetRules("1", []Rule{
		{CondID: "crowd_bad", ActionID: "shuttle_bus"},
		{CondID: "always", ActionID: "announce"},
	})
	got := e.SessionSnapshot("1").Rules
	if got[0] != (Rule{"crowd_bad", "none"}) {
		t.Errorf("banned action survived planning: %v", got[0])
	}
	if got[1] != (Rule{"always", "announce"}) {
		t.Errorf("second rule = %v", got[1])
	}
}

func TestFullRun(t *testing.T) {
	e := newTestEngine(t, Config{TickInterval: time.Millisecond})
	e.Start("1", "01")
	e.ToPlanning("1")
	e.SetRules("1", []Rule{{CondID: "always", ActionID: "add_local"}})
	e.ToReady("1")
	e.Depart("1")

	waitForState(t, e, "1", StateResult)

	snap := e.SessionSnapshot("1")
	if snap.Step != 10 {
		t.Errorf("step = %d, want 10", snap.Step)
	}
	want := catalog.Scores{Rescue: 50, Crowd: 100, Delay: 10}
	if snap.Scores != want {
		t.Errorf("final scores = %+v, want %+v", snap.Scores, want)
	}
	res := snap.Result
	if res == nil {
		t.Fatal("no result on finished run")
	}
	if !res.Pass || res.Total != 60 {
		t.Errorf("result pass=%v total=%d, want pass at 60", res.Pass, res.Total)
	}
	if res.Title != TitleRecoveryCrew {
		t.Errorf("title = %q, want %q", res.Title, TitleRecoveryCrew)
	}
	if !regexp.MustCompile(`^\d{4}$`).MatchString(res.Code) {
		t.Errorf("code = %q, want four digits", res.Code)
	}
	if len(snap.LastResults) != 1 {
		t.Errorf("history length = %d, want 1", len(snap.LastResults))
	}

	e.ShowCert("1")
	if st, _ := e.SessionState("1"); st != StateCert {
		t.Errorf("state = %s, want CERT", st)
	}
}

func TestDepartWhileRunningRejected(t *testing.T) {
	// Long ticks keep the run in flight for the whole test.
	e := newTestEngine(t, Config{TickInterval: time.Minute})
	var rejected int
	e.SetRejectHook(func(string, string, State) { rejected++ })

	e.Start("1", "01")
	e.ToPlanning("1")
	e.ToReady("1")
	e.Depart("1")
	e.Depart("1")

	if rejected != 1 {
		t.Errorf("second depart not rejected, hook fired %d times", rejected)
	}
	if st, _ := e.SessionState("1"); st != StateRunning {
		t.Errorf("state = %s, want RUNNING", st)
	}
}

func TestResetRotatesSessionID(t *testing.T) {
	e := newTestEngine(t, Config{})
	e.Start("1", "01")
	before := e.SessionSnapshot("1")

	e.Reset("1")
	after := e.SessionSnapshot("1")

	if after.SessionID == before.SessionID {
		t.Error("reset kept the session id")
	}
	if after.State != StateAttract || after.Card != nil || after.Result != nil {
		t.Errorf("reset left state %s card %v result %v", after.State, after.Card, after.Result)
	}
	if after.Scores != (catalog.Scores{Rescue: 50, Crowd: 50, Delay: 50}) {
		t.Errorf("reset scores = %+v", after.Scores)
	}
}

func TestResetCancelsRun(t *testing.T) {
	e := newTestEngine(t, Config{TickInterval: 5 * time.Millisecond})
	e.Start("1", "01")
	e.ToPlanning("1")
	e.ToReady("1")
	e.Depart("1")
	e.Reset("1")

	// Give the orphaned run loop time to tick against the new session.
	time.Sleep(50 * time.Millisecond)

	snap := e.SessionSnapshot("1")
	if snap.State != StateAttract || snap.Step != 0 {
		t.Errorf("stale run touched the reset session: state %s step %d", snap.State, snap.Step)
	}
}

func TestRestartMidRunStopsOldClock(t *testing.T) {
	e := newTestEngine(t, Config{TickInterval: 20 * time.Millisecond})
	e.Start("1", "01")
	e.ToPlanning("1")
	e.ToReady("1")
	e.Depart("1")

	// Restart the whole flow before the first tick lands. The superseded
	// clock must not tick alongside the new one.
	e.Start("1", "01")
	e.ToPlanning("1")
	e.SetRules("1", []Rule{{CondID: "always", ActionID: "add_local"}})
	e.ToReady("1")
	e.Depart("1")

	waitForState(t, e, "1", StateResult)
	snap := e.SessionSnapshot("1")
	if snap.Step != snap.TotalSteps {
		t.Errorf("step = %d, want exactly %d", snap.Step, snap.TotalSteps)
	}
	want := catalog.Scores{Rescue: 50, Crowd: 100, Delay: 10}
	if snap.Scores != want {
		t.Errorf("final scores = %+v, want %+v", snap.Scores, want)
	}
	if len(snap.LastResults) != 1 {
		t.Errorf("history length = %d, want a single finished run", len(snap.LastResults))
	}
}

func TestRetryKeepsCardAndRules(t *testing.T) {
	e := newTestEngine(t, Config{TickInterval: time.Millisecond})
	e.Start("1", "01")
	e.ToPlanning("1")
	e.SetRules("1", []Rule{{CondID: "always", ActionID: "add_local"}})
	e.ToReady("1")
	e.Depart("1")
	waitForState(t, e, "1", StateResult)

	e.Retry("1")
	snap := e.SessionSnapshot("1")
	if snap.State != StatePlanning {
		t.Fatalf("state = %s, want PLANNING", snap.State)
	}
	if snap.CardID != "01" {
		t.Errorf("retry changed card: %q", snap.CardID)
	}
	if snap.Rules[0] != (Rule{"always", "add_local"}) {
		t.Errorf("retry dropped rules: %v", snap.Rules)
	}
	if snap.Scores != snap.Card.InitScores {
		t.Errorf("retry scores = %+v, want re-seeded %+v", snap.Scores, snap.Card.InitScores)
	}
	if snap.Result != nil || snap.Step != 0 {
		t.Errorf("retry kept result %v step %d", snap.Result, snap.Step)
	}
}

func TestHistoryCapped(t *testing.T) {
	e := newTestEngine(t, Config{TickInterval: time.Millisecond})
	e.SetMode("1", catalog.DifficultyEasy, ModeQuick)
	e.Start("1", "01")
	e.ToPlanning("1")

	for i := 0; i < historyLimit+2; i++ {
		e.ToReady("1")
		e.Depart("1")
		waitForState(t, e, "1", StateResult)
		e.Retry("1")
	}

	snap := e.SessionSnapshot("1")
	if len(snap.LastResults) != historyLimit {
		t.Errorf("history length = %d, want %d", len(snap.LastResults), historyLimit)
	}
}

func TestDisplayFollow(t *testing.T) {
	e := newTestEngine(t, Config{})
	e.KioskHello("1")
	e.KioskHello("2")
	if got := e.DisplayTarget(); got != "2" {
		t.Errorf("AUTO target = %q, want last active kiosk", got)
	}

	e.SetDisplayFollow("1")
	e.KioskHello("2")
	if got := e.DisplayTarget(); got != "1" {
		t.Errorf("pinned target = %q, want 1", got)
	}

	e.SetDisplayFollow("")
	if got := e.DisplayTarget(); got != "2" {
		t.Errorf("target after unpin = %q, want last active", got)
	}

	e.DisplayHello("1")
	if got := e.DisplayTarget(); got != "1" {
		t.Errorf("display hello with kiosk id did not pin: %q", got)
	}
}

func TestSetDefaultsAppliesToNewSessions(t *testing.T) {
	e := newTestEngine(t, Config{})
	e.SetDefaults(catalog.DifficultyHard, ModeQuick)

	snap := e.SessionSnapshot("7")
	if snap.Difficulty != catalog.DifficultyHard || snap.Mode != ModeQuick {
		t.Errorf("new session = %s/%s, want HARD/QUICK", snap.Difficulty, snap.Mode)
	}
	if snap.TotalSteps != 5 {
		t.Errorf("totalSteps = %d, want 5", snap.TotalSteps)
	}
}

func TestWatchdogResetsStalledSession(t *testing.T) {
	e := newTestEngine(t, Config{
		SweepInterval: 10 * time.Millisecond,
		IdleTimeout:   30 * time.Millisecond,
	})
	e.Start("1", "01")
	before := e.SessionSnapshot("1").SessionID

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go e.RunWatchdog(ctx)

	waitForState(t, e, "1", StateAttract)
	if after := e.SessionSnapshot("1").SessionID; after == before {
		t.Error("watchdog reset kept the session id")
	}
}

func TestWatchdogIgnoresAttract(t *testing.T) {
	e := newTestEngine(t, Config{
		SweepInterval: 5 * time.Millisecond,
		IdleTimeout:   10 * time.Millisecond,
	})
	e.KioskHello("1")
	before := e.SessionSnapshot("1").SessionID

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go e.RunWatchdog(ctx)

	time.Sleep(50 * time.Millisecond)
	if after := e.SessionSnapshot("1").SessionID; after != before {
		t.Error("watchdog reset an idle attract session")
	}
}

func TestDealWithoutCardID(t *testing.T) {
	e := newTestEngine(t, Config{})
	e.SetMode("1", catalog.DifficultyEasy, ModeNormal)
	e.Start("1", "")

	snap := e.SessionSnapshot("1")
	if snap.State != StateBriefing || snap.Card == nil {
		t.Fatalf("deal failed: state %s card %v", snap.State, snap.Card)
	}
	if snap.Card.Difficulty != catalog.DifficultyEasy {
		t.Errorf("dealt %s card %s for an EASY session", snap.Card.Difficulty, snap.CardID)
	}
}
