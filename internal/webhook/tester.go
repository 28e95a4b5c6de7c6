package webhook

import (
	"context"
	"errors"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrTestInProgress is returned when a test is started (or reset) while one is pending.
var ErrTestInProgress = errors.New("a webhook test is already in progress")

// TestState is a node of the webhook test state machine:
// idle -> testing -> {success, failed, timed_out} -> idle.
type TestState string

const (
	TestIdle     TestState = "idle"
	TestTesting  TestState = "testing"
	TestSuccess  TestState = "success"
	TestFailed   TestState = "failed"
	TestTimedOut TestState = "timed_out"
)

// TestStatus is what the settings screen shows for the test affordance.
type TestStatus struct {
	State            TestState  `json:"state"`
	Message          string     `json:"message,omitempty"`
	Reply            string     `json:"reply,omitempty"`
	StartedAt        *time.Time `json:"started_at,omitempty"`
	FinishedAt       *time.Time `json:"finished_at,omitempty"`
	RemainingSeconds int        `json:"remaining_seconds,omitempty"`
}

type testRun struct {
	status TestStatus
	gen    uint64
	reset  *time.Timer
}

// pending identifies one in-flight probe.
type pending struct {
	run     *testRun
	gen     uint64
	started time.Time
}

// StatusListener is notified after every state transition.
type StatusListener func(userID uuid.UUID, status TestStatus)

// Tester runs PING probes through a Sender and tracks one state machine per user.
type Tester struct {
	sender     Sender
	timeout    time.Duration
	resetAfter time.Duration
	log        *zap.Logger

	mu       sync.Mutex
	runs     map[uuid.UUID]*testRun
	listener StatusListener
}

// NewTester builds a Tester. timeout is only used for the countdown shown
// while a test is pending; the sender enforces the real deadline.
func NewTester(sender Sender, timeout, resetAfter time.Duration, logger *zap.Logger) *Tester {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tester{
		sender:     sender,
		timeout:    timeout,
		resetAfter: resetAfter,
		log:        logger.Named("webhook_tester"),
		runs:       make(map[uuid.UUID]*testRun),
	}
}

// OnChange registers a listener for state transitions. It replaces any previous one.
func (t *Tester) OnChange(l StatusListener) {
	t.mu.Lock()
	t.listener = l
	t.mu.Unlock()
}

// Run sends a PING to target and blocks until the sender resolves. A missing
// URL fails immediately without leaving idle. Starting a test while another
// one is pending for the same user returns ErrTestInProgress.
func (t *Tester) Run(ctx context.Context, userID uuid.UUID, target Target, sessionID string) (TestStatus, error) {
	p, status, err := t.begin(userID, target)
	if err != nil {
		return status, err
	}
	return t.finish(ctx, userID, p, target, sessionID), nil
}

// Start is Run without waiting: it returns the testing status and finishes
// the probe in the background. ctx should outlive the caller's request.
func (t *Tester) Start(ctx context.Context, userID uuid.UUID, target Target, sessionID string) (TestStatus, error) {
	p, status, err := t.begin(userID, target)
	if err != nil {
		return status, err
	}
	go t.finish(ctx, userID, p, target, sessionID)
	return status, nil
}

func (t *Tester) begin(userID uuid.UUID, target Target) (pending, TestStatus, error) {
	if target.URL == "" {
		return pending{}, t.Status(userID), &RelayError{Kind: KindConfig}
	}

	t.mu.Lock()
	run := t.runLocked(userID)
	if run.status.State == TestTesting {
		status := t.withCountdown(run.status)
		t.mu.Unlock()
		return pending{}, status, ErrTestInProgress
	}
	if run.reset != nil {
		run.reset.Stop()
		run.reset = nil
	}
	run.gen++
	p := pending{run: run, gen: run.gen, started: time.Now()}
	run.status = TestStatus{State: TestTesting, StartedAt: &p.started}
	testing := t.withCountdown(run.status)
	t.mu.Unlock()

	t.notify(userID, testing)
	return p, testing, nil
}

func (t *Tester) finish(ctx context.Context, userID uuid.UUID, p pending, target Target, sessionID string) TestStatus {
	started := p.started
	t.log.Info("webhook test started", zap.String("user_id", userID.String()), zap.String("session_id", sessionID))
	reply, err := t.sender.Send(ctx, target, PingMessage, sessionID)

	finished := time.Now()
	final := TestStatus{StartedAt: &started, FinishedAt: &finished}
	switch {
	case err == nil:
		final.State = TestSuccess
		final.Message = "Webhook test successful! Check your webhook endpoint for the received PING."
		if reply != nil {
			final.Reply = reply.Text
		}
	case errors.Is(err, ErrTimeout):
		final.State = TestTimedOut
		final.Message = "Webhook test " + err.Error() + ". The webhook might be taking too long to respond."
	default:
		final.State = TestFailed
		final.Message = "Webhook test failed: " + err.Error()
	}

	t.mu.Lock()
	if p.run.gen != p.gen {
		// superseded while the probe was in flight
		t.mu.Unlock()
		return final
	}
	p.run.status = final
	if final.State == TestSuccess && t.resetAfter > 0 {
		p.run.reset = time.AfterFunc(t.resetAfter, func() { t.autoReset(userID, p.gen) })
	}
	t.mu.Unlock()
	t.notify(userID, final)

	t.log.Info("webhook test finished",
		zap.String("user_id", userID.String()),
		zap.String("state", string(final.State)),
		zap.Duration("elapsed", finished.Sub(started)))
	return final
}

// Status returns the user's current test status with a live countdown while testing.
func (t *Tester) Status(userID uuid.UUID) TestStatus {
	t.mu.Lock()
	defer t.mu.Unlock()
	run, ok := t.runs[userID]
	if !ok {
		return TestStatus{State: TestIdle}
	}
	return t.withCountdown(run.status)
}

// Reset returns a finished test to idle. Resetting while testing is refused.
func (t *Tester) Reset(userID uuid.UUID) (TestStatus, error) {
	t.mu.Lock()
	run, ok := t.runs[userID]
	if !ok {
		t.mu.Unlock()
		return TestStatus{State: TestIdle}, nil
	}
	if run.status.State == TestTesting {
		status := t.withCountdown(run.status)
		t.mu.Unlock()
		return status, ErrTestInProgress
	}
	if run.reset != nil {
		run.reset.Stop()
		run.reset = nil
	}
	run.gen++
	run.status = TestStatus{State: TestIdle}
	t.mu.Unlock()

	idle := TestStatus{State: TestIdle}
	t.notify(userID, idle)
	return idle, nil
}

func (t *Tester) autoReset(userID uuid.UUID, gen uint64) {
	t.mu.Lock()
	run, ok := t.runs[userID]
	if !ok || run.gen != gen || run.status.State != TestSuccess {
		t.mu.Unlock()
		return
	}
	run.status = TestStatus{State: TestIdle}
	run.reset = nil
	t.mu.Unlock()
	t.notify(userID, TestStatus{State: TestIdle})
}

func (t *Tester) runLocked(userID uuid.UUID) *testRun {
	run, ok := t.runs[userID]
	if !ok {
		run = &testRun{status: TestStatus{State: TestIdle}}
		t.runs[userID] = run
	}
	return run
}

func (t *Tester) withCountdown(s TestStatus) TestStatus {
	if s.State != TestTesting || s.StartedAt == nil {
		return s
	}
	remaining := t.timeout - time.Since(*s.StartedAt)
	if remaining < 0 {
		remaining = 0
	}
	s.RemainingSeconds = int(math.Ceil(remaining.Seconds()))
	return s
}

func (t *Tester) notify(userID uuid.UUID, status TestStatus) {
	t.mu.Lock()
	l := t.listener
	t.mu.Unlock()
	if l != nil {
		l(userID, status)
	}
}
