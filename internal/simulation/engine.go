// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sentrixa Contributors

package simulation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sentrixa-lab/sentrixa/internal/store"
	sxerr "github.com/sentrixa-lab/sentrixa/pkg/errors"
)

// Fallback attacker lines used when generation returns no text.
const (
	FallbackOpener   = "Hello, this is an urgent message regarding your account."
	FallbackFollowUp = "Are you still there? This is important."
)

// Default pacing.
const (
	DefaultTurnDelay  = 2 * time.Second
	DefaultGraceDelay = 1 * time.Second
)

// Config wires an Engine to its collaborators.
type Config struct {
	Generator Generator
	Analyzer  Analyzer
	// Exporter receives every report of a non-manual termination unless
	// DisableAutoExport is set. Optional.
	Exporter Exporter
	// Incidents is the archive. Defaults to an in-memory store.
	Incidents store.IncidentStore
	Logger    *slog.Logger

	// TurnDelay paces attacker turns; GraceDelay separates a fired
	// termination from synthesis. Zero means no delay.
	TurnDelay  time.Duration
	GraceDelay time.Duration
	// RiskThreshold defaults to DefaultRiskThreshold.
	RiskThreshold int
	// MaxRiskPerTurn caps a single reported delta. Zero means uncapped.
	MaxRiskPerTurn int
	// CollaboratorTimeout bounds each Generate/Analyze call. Zero means none.
	CollaboratorTimeout time.Duration
	DisableAutoExport   bool
	EventBuffer         int

	// Now and Rand are overridable for tests.
	Now  func() time.Time
	Rand func(n int) int
}

// Validate checks that the Config has all required fields set.
func (c Config) Validate() error {
	if c.Generator == nil {
		return sxerr.New(sxerr.CodeSimulationConfigInvalid, "simulation: Generator is required")
	}
	if c.Analyzer == nil {
		return sxerr.New(sxerr.CodeSimulationConfigInvalid, "simulation: Analyzer is required")
	}
	if c.TurnDelay < 0 || c.GraceDelay < 0 || c.CollaboratorTimeout < 0 {
		return sxerr.New(sxerr.CodeSimulationConfigInvalid, "simulation: delays and timeouts must not be negative")
	}
	if c.RiskThreshold < 0 || c.RiskThreshold > MaxRisk {
		return sxerr.Errorf(sxerr.CodeSimulationConfigInvalid, "simulation: risk threshold %d out of range [0,%d]", c.RiskThreshold, MaxRisk)
	}
	if c.MaxRiskPerTurn < 0 {
		return sxerr.Errorf(sxerr.CodeSimulationConfigInvalid, "simulation: max risk per turn %d must not be negative", c.MaxRiskPerTurn)
	}
	return nil
}

// Engine owns the single active session. Every mutation runs on one lane
// and is guarded by the session epoch, so continuations that resume after
// a kill or a newer Start become no-ops.
type Engine struct {
	cfg       Config
	log       *slog.Logger
	incidents store.IncidentStore
	lane      *lane
	events    *broadcaster

	// Owned by the lane.
	epoch uint64
	sess  *session

	baseCtx context.Context
	cancel  context.CancelFunc

	mu     sync.Mutex // guards closed and wg.Add
	closed bool
	wg     sync.WaitGroup
}

// New creates an Engine with an idle session.
func New(cfg Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.RiskThreshold == 0 {
		cfg.RiskThreshold = DefaultRiskThreshold
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Rand == nil {
		cfg.Rand = rand.IntN
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	incidents := cfg.Incidents
	if incidents == nil {
		incidents = store.NewMemoryIncidentStore()
	}

	ctx, cancel := context.WithCancel(context.Background())
	e := &Engine{
		cfg:       cfg,
		log:       log,
		incidents: incidents,
		lane:      newLane(log),
		events:    newBroadcaster(cfg.EventBuffer),
		baseCtx:   ctx,
		cancel:    cancel,
	}
	e.sess = e.idleSession()
	return e, nil
}

func (e *Engine) idleSession() *session {
	now := e.cfg.Now()
	s := &session{
		id:        newSessionID(),
		epoch:     e.epoch,
		status:    StatusIdle,
		startTime: now,
		stop:      make(chan struct{}),
	}
	close(s.stop)
	return s
}

// Start replaces the current session with a new active one, appends the
// opening attacker message and schedules the first turn. A session that was
// still active is abandoned without a report. If the opener cannot be
// generated the new session falls back to idle and the error is returned.
func (e *Engine) Start(ctx context.Context) (Snapshot, error) {
	if err := e.checkOpen(); err != nil {
		return Snapshot{}, err
	}

	var (
		epoch uint64
		sid   string
	)
	err := e.lane.do(ctx, func() error {
		e.sess.halt()
		e.epoch++
		now := e.cfg.Now()
		e.sess = &session{
			id:        newSessionID(),
			epoch:     e.epoch,
			status:    StatusActive,
			startTime: now,
			stop:      make(chan struct{}),
		}
		epoch, sid = e.epoch, e.sess.id
		e.publish(Event{Kind: EventSessionStarted, SessionID: sid, Epoch: epoch, Time: now})
		return nil
	})
	if err != nil {
		return Snapshot{}, err
	}
	e.log.Info("simulation session started", "session_id", sid, "epoch", epoch)

	text, err := e.generate(ctx, sid, nil)
	if err != nil {
		err = sxerr.Wrap(err, sxerr.CodeSimulationGenerationFailure, "generating opening message",
			sxerr.FieldSessionID(sid), sxerr.FieldEpoch(epoch))
		_ = e.lane.do(context.Background(), func() error {
			if e.sess.live(epoch) {
				e.sess.status = StatusIdle
				e.sess.halt()
			}
			return nil
		})
		e.turnFailed(epoch, sid, "generation", err)
		return Snapshot{}, err
	}
	if strings.TrimSpace(text) == "" {
		text = FallbackOpener
	}

	var (
		snap    Snapshot
		history []store.Message
		live    bool
	)
	err = e.lane.do(context.Background(), func() error {
		if !e.sess.live(epoch) || e.sess.pending != "" {
			snap = e.sess.snapshot()
			return nil
		}
		msg := e.appendMessage(store.SenderAttacker, "msg", text)
		history = cloneMessages(e.sess.messages)
		snap = e.sess.snapshot()
		live = true
		e.publish(Event{Kind: EventMessage, SessionID: sid, Epoch: epoch, Time: msg.Timestamp, Message: &msg})
		return nil
	})
	if err != nil {
		return Snapshot{}, err
	}
	if !live {
		e.staleContinuation(epoch, sid, "opener")
		return snap, nil
	}

	if !e.spawn(func() { e.drive(epoch, sid, history, text) }) {
		return snap, sxerr.New(sxerr.CodeSimulationClosed, "simulation engine is closed")
	}
	return snap, nil
}

// turnOutcome is what processTurn decided for the session.
type turnOutcome struct {
	stale   bool
	reason  Reason
	history []store.Message
	stop    <-chan struct{}
}

// drive runs the attacker/defender loop for one session epoch until the
// session terminates, is superseded, or a collaborator fails.
func (e *Engine) drive(epoch uint64, sid string, history []store.Message, latest string) {
	ctx := e.baseCtx
	for {
		out, err := e.processTurn(ctx, epoch, sid, history, latest)
		if err != nil || out.stale {
			return
		}

		if out.reason != "" {
			if !e.sleep(out.stop, e.cfg.GraceDelay) {
				e.staleContinuation(epoch, sid, "grace")
				return
			}
			report, err := e.finalize(epoch, out.reason)
			if err != nil {
				e.log.Error("finalizing session", "session_id", sid, "epoch", epoch, "error", err)
			}
			if report != nil {
				e.autoExport(ctx, epoch, report)
			}
			return
		}

		if !e.sleep(out.stop, e.cfg.TurnDelay) {
			e.staleContinuation(epoch, sid, "turn_delay")
			return
		}

		next, ok, err := e.nextAttackerTurn(ctx, epoch, sid, out.history)
		if err != nil || !ok {
			return
		}
		history, latest = next, next[len(next)-1].Content
	}
}

// processTurn asks the Analyzer about the latest attacker message and, if
// the session is still live, merges telemetry, applies the risk delta,
// appends the defender reply and evaluates termination.
func (e *Engine) processTurn(ctx context.Context, epoch uint64, sid string, history []store.Message, latest string) (turnOutcome, error) {
	analysis, err := e.analyze(ctx, sid, history, latest)
	if err != nil {
		err = sxerr.Wrap(err, sxerr.CodeSimulationAnalysisFailure, "analyzing attacker message",
			sxerr.FieldSessionID(sid), sxerr.FieldEpoch(epoch))
		e.turnFailed(epoch, sid, "analysis", err)
		return turnOutcome{}, err
	}

	var out turnOutcome
	err = e.lane.do(context.Background(), func() error {
		s := e.sess
		if !s.live(epoch) || s.pending != "" {
			out.stale = true
			return nil
		}

		now := e.cfg.Now()
		stamped := s.telemetry.Append(s.id, now, analysis.Telemetry...)
		s.riskScore = IncrementRisk(s.riskScore, analysis.RiskIncrease, e.cfg.MaxRiskPerTurn)
		if category := detectedCategory(stamped); category != "" {
			s.scamCategory = category
		}
		msg := e.appendMessage(store.SenderDefender, "def", analysis.DefensiveResponse)

		if len(stamped) > 0 {
			e.publish(Event{Kind: EventTelemetry, SessionID: s.id, Epoch: epoch, Time: now, Telemetry: stamped, RiskScore: s.riskScore})
		}
		e.publish(Event{Kind: EventRisk, SessionID: s.id, Epoch: epoch, Time: now, RiskScore: s.riskScore})
		e.publish(Event{Kind: EventMessage, SessionID: s.id, Epoch: epoch, Time: now, Message: &msg, RiskScore: s.riskScore})

		out.reason = Evaluate(s.riskScore, e.cfg.RiskThreshold, stamped)
		if out.reason != "" {
			s.pending = out.reason
			e.log.Info("termination condition fired",
				"session_id", s.id, "epoch", epoch, "reason", out.reason, "risk_score", s.riskScore)
		}
		out.history = cloneMessages(s.messages)
		out.stop = s.stop
		return nil
	})
	if err != nil {
		return turnOutcome{}, err
	}
	if out.stale {
		e.staleContinuation(epoch, sid, "analysis")
	}
	return out, nil
}

// nextAttackerTurn generates and appends the next attacker message. ok is
// false when the session is no longer live.
func (e *Engine) nextAttackerTurn(ctx context.Context, epoch uint64, sid string, history []store.Message) ([]store.Message, bool, error) {
	if !e.isLive(epoch) {
		e.staleContinuation(epoch, sid, "generation")
		return nil, false, nil
	}

	text, err := e.generate(ctx, sid, history)
	if err != nil {
		err = sxerr.Wrap(err, sxerr.CodeSimulationGenerationFailure, "generating attacker message",
			sxerr.FieldSessionID(sid), sxerr.FieldEpoch(epoch))
		e.turnFailed(epoch, sid, "generation", err)
		return nil, false, err
	}
	if strings.TrimSpace(text) == "" {
		text = FallbackFollowUp
	}

	var next []store.Message
	err = e.lane.do(context.Background(), func() error {
		if !e.sess.live(epoch) || e.sess.pending != "" {
			return nil
		}
		msg := e.appendMessage(store.SenderAttacker, "att", text)
		next = cloneMessages(e.sess.messages)
		e.publish(Event{Kind: EventMessage, SessionID: sid, Epoch: epoch, Time: msg.Timestamp, Message: &msg, RiskScore: e.sess.riskScore})
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	if next == nil {
		e.staleContinuation(epoch, sid, "attacker_append")
		return nil, false, nil
	}
	return next, true, nil
}

// Kill terminates the active session immediately with an emergency kill.
// The report is archived but not exported automatically.
func (e *Engine) Kill(ctx context.Context) (*store.IncidentReport, error) {
	var report *store.IncidentReport
	err := e.lane.do(ctx, func() error {
		if e.sess.status != StatusActive {
			return sxerr.New(sxerr.CodeSimulationSessionInactive, "no active session to kill",
				sxerr.FieldSessionID(e.sess.id))
		}
		var err error
		report, err = e.terminate(e.sess, ReasonManualKill)
		return err
	})
	return report, err
}

// finalize terminates the session for epoch if it is still live. It is a
// no-op returning a nil report otherwise, which makes termination one-shot.
func (e *Engine) finalize(epoch uint64, reason Reason) (*store.IncidentReport, error) {
	var report *store.IncidentReport
	err := e.lane.do(context.Background(), func() error {
		if !e.sess.live(epoch) {
			return nil
		}
		var err error
		report, err = e.terminate(e.sess, reason)
		return err
	})
	return report, err
}

// terminate runs on the lane. The session is terminated even if archiving
// fails; the report is returned alongside the error.
func (e *Engine) terminate(s *session, reason Reason) (*store.IncidentReport, error) {
	now := e.cfg.Now()
	report := Synthesize(Synthesis{
		SessionID:    s.id,
		RiskScore:    s.riskScore,
		ScamCategory: s.scamCategory,
		Messages:     s.messages,
		Telemetry:    &s.telemetry,
		Reason:       reason,
		Now:          now,
		Suffix:       e.cfg.Rand(1000),
	})

	s.status = StatusTerminated
	s.pending = ""
	s.halt()
	end := s.telemetry.Append(s.id, now, store.TelemetryEvent{
		Type: store.EventSessionEnd,
		Data: store.SessionEndData{Reason: string(reason), RiskScore: s.riskScore},
	})

	e.log.Info("simulation session terminated",
		"session_id", s.id,
		"epoch", s.epoch,
		"reason", reason,
		"risk_score", s.riskScore,
		"incident_id", report.IncidentID)

	var archiveErr error
	if err := e.incidents.Prepend(context.Background(), &report); err != nil {
		archiveErr = sxerr.Wrap(err, sxerr.CodeStoreDatabaseFailure, "archiving incident report",
			sxerr.FieldIncidentID(report.IncidentID))
		e.log.Error("archiving incident report", "incident_id", report.IncidentID, "error", err)
	}

	published := report.Clone()
	e.publish(Event{
		Kind:      EventSessionTerminated,
		SessionID: s.id,
		Epoch:     s.epoch,
		Time:      now,
		Telemetry: end,
		RiskScore: s.riskScore,
		Reason:    reason,
		Report:    &published,
	})
	return &report, archiveErr
}

func (e *Engine) autoExport(ctx context.Context, epoch uint64, report *store.IncidentReport) {
	if e.cfg.Exporter == nil || e.cfg.DisableAutoExport {
		return
	}
	location, err := e.cfg.Exporter.Export(ctx, report)
	if err != nil {
		e.log.Warn("automatic export failed", "incident_id", report.IncidentID, "error", err)
		e.publish(Event{Kind: EventExportFailed, SessionID: report.SessionID, Epoch: epoch, Time: e.cfg.Now(), Error: err.Error()})
		return
	}
	e.log.Info("incident report exported", "incident_id", report.IncidentID, "location", location)
	e.publish(Event{Kind: EventReportExported, SessionID: report.SessionID, Epoch: epoch, Time: e.cfg.Now(), Location: location})
}

// Export hands an archived report to the Exporter on demand.
func (e *Engine) Export(ctx context.Context, incidentID string) (string, error) {
	if e.cfg.Exporter == nil {
		return "", sxerr.New(sxerr.CodeExportWriteFailure, "no exporter configured")
	}
	report, err := e.Report(ctx, incidentID)
	if err != nil {
		return "", err
	}
	return e.cfg.Exporter.Export(ctx, report)
}

// Report returns an archived report by incident id.
func (e *Engine) Report(ctx context.Context, incidentID string) (*store.IncidentReport, error) {
	report, err := e.incidents.Get(ctx, incidentID)
	if err != nil {
		if sxerr.IsNotFound(err) {
			return nil, sxerr.Wrap(err, sxerr.CodeSimulationReportNotFound, "incident report not found",
				sxerr.FieldIncidentID(incidentID))
		}
		return nil, err
	}
	return report, nil
}

// Reports lists archived reports, most recent first.
func (e *Engine) Reports(ctx context.Context, opts store.ListOpts) ([]*store.IncidentReport, error) {
	return e.incidents.List(ctx, opts)
}

// Similar returns up to k archived reports whose fingerprints are closest
// to the given incident.
func (e *Engine) Similar(ctx context.Context, incidentID string, k int) ([]store.SimilarIncident, error) {
	idx, ok := e.incidents.(store.SimilarityIndex)
	if !ok {
		return nil, sxerr.New(sxerr.CodeStoreInvalidInput, "incident archive does not support similarity search")
	}
	out, err := idx.Similar(ctx, incidentID, k)
	if err != nil {
		if sxerr.IsNotFound(err) {
			return nil, sxerr.Wrap(err, sxerr.CodeSimulationReportNotFound, "incident report not found",
				sxerr.FieldIncidentID(incidentID))
		}
		return nil, err
	}
	return out, nil
}

// Reset clears the archive and replaces the session with a fresh idle one,
// discarding any in-flight continuation.
func (e *Engine) Reset(ctx context.Context) error {
	return e.lane.do(ctx, func() error {
		if err := e.incidents.Clear(ctx); err != nil {
			return err
		}
		e.sess.halt()
		e.epoch++
		e.sess = e.idleSession()
		e.publish(Event{Kind: EventReset, SessionID: e.sess.id, Epoch: e.epoch, Time: e.sess.startTime})
		e.log.Info("simulation data reset", "epoch", e.epoch)
		return nil
	})
}

// Snapshot returns a copy of the current session.
func (e *Engine) Snapshot(ctx context.Context) (Snapshot, error) {
	var snap Snapshot
	err := e.lane.do(ctx, func() error {
		snap = e.sess.snapshot()
		return nil
	})
	return snap, err
}

// StatusView is the dashboard summary of the lab.
type StatusView struct {
	Status        SystemStatus `json:"status"`
	Reports       int          `json:"reports"`
	RiskScore     int          `json:"risk_score"`
	SessionID     string       `json:"session_id"`
	SessionStatus Status       `json:"session_status"`
}

// Status reports system pressure from the archive size and live risk.
func (e *Engine) Status(ctx context.Context) (StatusView, error) {
	snap, err := e.Snapshot(ctx)
	if err != nil {
		return StatusView{}, err
	}
	n, err := e.incidents.Count(ctx)
	if err != nil {
		return StatusView{}, err
	}
	return StatusView{
		Status:        ComputeStatus(n, snap.RiskScore),
		Reports:       n,
		RiskScore:     snap.RiskScore,
		SessionID:     snap.ID,
		SessionStatus: snap.Status,
	}, nil
}

// Subscribe returns a channel of engine events and a function that
// unsubscribes and closes it.
func (e *Engine) Subscribe() (<-chan Event, func()) {
	return e.events.subscribe()
}

// Close stops all continuations, waits for them and releases the lane.
// In-flight collaborator calls observe a cancelled context. The incident
// store is owned by the caller and is not closed.
func (e *Engine) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	e.mu.Unlock()

	e.cancel()
	_ = e.lane.do(context.Background(), func() error {
		e.sess.halt()
		return nil
	})
	e.wg.Wait()
	e.lane.close()
	e.events.close()
	return nil
}

func (e *Engine) checkOpen() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return sxerr.New(sxerr.CodeSimulationClosed, "simulation engine is closed")
	}
	return nil
}

func (e *Engine) spawn(fn func()) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return false
	}
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		fn()
	}()
	return true
}

func (e *Engine) isLive(epoch uint64) bool {
	live := false
	_ = e.lane.do(context.Background(), func() error {
		live = e.sess.live(epoch) && e.sess.pending == ""
		return nil
	})
	return live
}

// sleep waits for d unless stop closes or the engine shuts down first.
func (e *Engine) sleep(stop <-chan struct{}, d time.Duration) bool {
	if d <= 0 {
		select {
		case <-stop:
			return false
		case <-e.baseCtx.Done():
			return false
		default:
			return true
		}
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-stop:
		return false
	case <-e.baseCtx.Done():
		return false
	}
}

func (e *Engine) generate(ctx context.Context, sid string, history []store.Message) (string, error) {
	ctx, cancel := e.callContext(ctx)
	defer cancel()
	text, err := e.cfg.Generator.Generate(ctx, sid, history)
	return text, e.classify(err)
}

func (e *Engine) analyze(ctx context.Context, sid string, history []store.Message, latest string) (*Analysis, error) {
	ctx, cancel := e.callContext(ctx)
	defer cancel()
	analysis, err := e.cfg.Analyzer.Analyze(ctx, sid, history, latest)
	if err != nil {
		return nil, e.classify(err)
	}
	if analysis == nil {
		return nil, sxerr.New(sxerr.CodeSimulationAnalysisFailure, "analyzer returned no result")
	}
	return analysis, nil
}

func (e *Engine) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.cfg.CollaboratorTimeout > 0 {
		return context.WithTimeout(ctx, e.cfg.CollaboratorTimeout)
	}
	return context.WithCancel(ctx)
}

func (e *Engine) classify(err error) error {
	if err != nil && errors.Is(err, context.DeadlineExceeded) && sxerr.CodeOf(err) == "" {
		return sxerr.Errorf(sxerr.CodeSimulationTimeout, "collaborator call timed out: %w", err)
	}
	return err
}

// appendMessage runs on the lane.
func (e *Engine) appendMessage(sender store.Sender, prefix, content string) store.Message {
	now := e.cfg.Now()
	msg := store.Message{
		ID:        fmt.Sprintf("%s_%d_%d", prefix, now.UnixMilli(), len(e.sess.messages)+1),
		Sender:    sender,
		Content:   content,
		Timestamp: now,
	}
	e.sess.messages = append(e.sess.messages, msg)
	return msg
}

func (e *Engine) turnFailed(epoch uint64, sid, stage string, err error) {
	e.log.Warn("turn abandoned", "session_id", sid, "epoch", epoch, "stage", stage, "error", err)
	e.publish(Event{Kind: EventTurnFailed, SessionID: sid, Epoch: epoch, Time: e.cfg.Now(), Stage: stage, Error: err.Error()})
}

func (e *Engine) staleContinuation(epoch uint64, sid, at string) {
	e.log.Debug("stale continuation discarded", "session_id", sid, "epoch", epoch, "at", at)
}

func (e *Engine) publish(ev Event) {
	e.events.publish(ev)
}

func detectedCategory(events []store.TelemetryEvent) string {
	for _, ev := range events {
		if d, ok := ev.Data.(store.DetectionData); ok && d.ScamCategory != "" {
			return d.ScamCategory
		}
	}
	return ""
}

func newSessionID() string {
	return "sess_" + uuid.NewString()
}

func cloneMessages(msgs []store.Message) []store.Message {
	out := make([]store.Message, len(msgs))
	copy(out, msgs)
	return out
}
