package game

import (
	"fmt"
	"time"

	"github.com/hirameki/rail-mission/internal/catalog"
	"github.com/hirameki/rail-mission/internal/store"
)

func clamp(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

func applyDelta(s *catalog.Scores, d catalog.Delta) {
	s.Rescue = clamp(s.Rescue + d.Rescue)
	s.Crowd = clamp(s.Crowd + d.Crowd)
	s.Delay = clamp(s.Delay + d.Delay)
}

func subtractDelta(s *catalog.Scores, d catalog.Delta) {
	s.Rescue = clamp(s.Rescue - d.Rescue)
	s.Crowd = clamp(s.Crowd - d.Crowd)
	s.Delay = clamp(s.Delay - d.Delay)
}

func (e *Engine) code4Locked() string {
	return fmt.Sprintf("%04d", 1000+e.rng.Intn(9000))
}

// Depart begins a simulation run for a READY session. The run lock keeps
// a second depart from double-starting the clock; constraint enforcement
// is reapplied here in case a stale rule payload raced a card change.
func (e *Engine) Depart(kioskID string) {
	e.mu.Lock()
	s := e.sessionLocked(kioskID)
	e.touchLocked(s)
	if s.State != StateReady || s.Card == nil || s.running {
		reject := e.rejectLocked(kioskID, "kiosk_depart", s.State)
		e.mu.Unlock()
		reject()
		return
	}

	s.running = true
	s.State = StateRunning
	s.Step = 0
	s.TotalSteps = StepsForMode(s.Mode)
	s.Scores = s.Card.InitScores
	s.Rules = EnforceConstraints(s.Card, s.Rules)
	s.runToken++
	token := s.runToken

	push := e.publishLocked(kioskID, false)
	e.mu.Unlock()
	push()

	go e.runLoop(kioskID, token)
}

// runLoop drives one run at the configured cadence. The run is bound to
// the token captured at depart: a restart or reset bumps the token, so a
// late tick from a superseded run finds a mismatch and the loop stops
// without touching the session.
func (e *Engine) runLoop(kioskID string, token uint64) {
	ticker := time.NewTicker(e.cfg.TickInterval)
	defer ticker.Stop()
	for range ticker.C {
		if !e.stepRun(kioskID, token) {
			return
		}
	}
}

// stepRun advances the run one step and reports whether ticking should
// continue.
func (e *Engine) stepRun(kioskID string, token uint64) bool {
	e.mu.Lock()
	s, ok := e.sessions[kioskID]
	if !ok || s.runToken != token || s.State != StateRunning {
		e.mu.Unlock()
		return false
	}

	s.Step++

	// Baseline drift, then rule slots in order, then friction. Scores are
	// clamped after every application.
	applyDelta(&s.Scores, s.Card.BaseStep)
	for _, r := range s.Rules {
		if r.ActionID == catalog.ActionNone {
			continue
		}
		if !e.cat.CondHolds(r.CondID, s.Card, s.Scores) {
			continue
		}
		if a := e.cat.Action(r.ActionID); a != nil {
			applyDelta(&s.Scores, a.Effect)
		}
	}
	if s.Card.Friction != nil {
		subtractDelta(&s.Scores, *s.Card.Friction)
	}

	now := time.Now()
	s.LastActiveAt = now
	s.LastEventAt = now
	e.lastActive = kioskID

	finished := s.Step >= s.TotalSteps
	var rec *store.ResultRecord
	if finished {
		j := Judge(s.Card, s.Scores)
		s.Result = &Result{
			Pass:      j.Pass,
			Total:     j.Total,
			Reason:    j.Reason,
			Title:     j.Title,
			Code:      e.code4Locked(),
			Timestamp: now,
		}
		s.State = StateResult
		s.running = false
		rec = resultRecord(s)
		s.LastResults = append([]store.ResultRecord{*rec}, s.LastResults...)
		if len(s.LastResults) > historyLimit {
			s.LastResults = s.LastResults[:historyLimit]
		}
	}

	push := e.publishLocked(kioskID, finished)
	e.mu.Unlock()

	if rec != nil && e.sink != nil {
		if err := e.sink.Append(rec); err != nil {
			e.logger.Printf("result append failed kiosk=%s card=%s: %v", kioskID, rec.CardID, err)
		}
	}
	push()
	return !finished
}

// resultRecord denormalizes a finished session into a persistable row.
// Callers hold the engine lock.
func resultRecord(s *Session) *store.ResultRecord {
	return &store.ResultRecord{
		Time:       s.Result.Timestamp,
		KioskID:    s.KioskID,
		Difficulty: string(s.Difficulty),
		Mode:       string(s.Mode),
		CardID:     s.Card.ID,
		CardTitle:  s.Card.Title,
		Pass:       s.Result.Pass,
		Total:      s.Result.Total,
		Code:       s.Result.Code,
		Rescue:     s.Scores.Rescue,
		Crowd:      s.Scores.Crowd,
		Delay:      s.Scores.Delay,
		Rule1:      store.RulePair{CondID: s.Rules[0].CondID, ActionID: s.Rules[0].ActionID},
		Rule2:      store.RulePair{CondID: s.Rules[1].CondID, ActionID: s.Rules[1].ActionID},
	}
}
