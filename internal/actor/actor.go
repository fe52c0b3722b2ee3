// Package actor owns the portal session: a small state machine around one
// browser-driven login, plus the operations the tools expose. All methods
// are called serially by the dispatcher.
package actor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/ufpa-tools/sigaa-mcp/internal/artifacts"
	"github.com/ufpa-tools/sigaa-mcp/internal/observability"
	"github.com/ufpa-tools/sigaa-mcp/internal/planner"
	"github.com/ufpa-tools/sigaa-mcp/internal/portal"
)

// Browser is the engine surface the actor drives
type Browser interface {
	Open(ctx context.Context) error
	Close() error
	IsOpen() bool
	Navigate(ctx context.Context, url string) error
	CurrentURL(ctx context.Context) (string, error)
	PageText(ctx context.Context) (string, error)
	ExtractBySelector(ctx context.Context, selector string) (string, error)
	Fill(ctx context.Context, selector, value string) error
	Click(ctx context.Context, selector string) error
	ClickByText(ctx context.Context, text string) error
	Screenshot(ctx context.Context, path string) error
}

// TaskPlanner runs free-form goals against the live session
type TaskPlanner interface {
	Run(ctx context.Context, driver planner.Driver, goal string, maxSteps int) (*planner.TaskReport, error)
}

// Config holds portal endpoints and credentials
type Config struct {
	BaseURL  string
	LoginURL string
	Username string
	Password string
}

// Actor drives one authenticated portal session
type Actor struct {
	cfg     Config
	engine  Browser
	planner TaskPlanner
	store   *artifacts.Store

	downloadDir     string
	completeTimeout time.Duration

	// creds are the credentials in effect, so recovery re-logins use the
	// same pair the caller last authenticated with
	creds               credentials
	state               State
	student             portal.StudentInfo
	loginAt             time.Time
	lastActivity        time.Time
	consecutiveFailures int
}

type credentials struct {
	username string
	password string
}

// New creates an actor in the logged-out state. The planner may be nil,
// in which case free-form tasks are rejected.
func New(cfg Config, engine Browser, taskPlanner TaskPlanner, store *artifacts.Store, downloadDir string, completeTimeout time.Duration) *Actor {
	return &Actor{
		cfg:             cfg,
		engine:          engine,
		planner:         taskPlanner,
		store:           store,
		downloadDir:     downloadDir,
		completeTimeout: completeTimeout,
		creds:           credentials{username: cfg.Username, password: cfg.Password},
		state:           StateLoggedOut,
	}
}

// State returns the current session state
func (a *Actor) State() State {
	return a.state
}

func (a *Actor) setState(to State) {
	if a.state == to {
		return
	}
	if !canTransition(a.state, to) {
		log.Error().
			Str("from", string(a.state)).
			Str("to", string(to)).
			Msg("Invalid session state transition")
		return
	}
	log.Info().
		Str("from", string(a.state)).
		Str("to", string(to)).
		Msg("Session state changed")
	observability.RecordSessionAudit(string(to), "success", map[string]interface{}{
		"from": string(a.state),
	})
	a.state = to
}

func (a *Actor) touch() {
	a.lastActivity = time.Now()
	a.consecutiveFailures = 0
}

// LoginResult reports the outcome of a login attempt
type LoginResult struct {
	AlreadyActive bool               `json:"already_active"`
	Student       portal.StudentInfo `json:"student"`
}

// LoginRequest carries login options. Username and password override the
// configured credentials when set.
type LoginRequest struct {
	Username string
	Password string
	Force    bool
}

// Login establishes an authenticated session. With Force, an existing
// session is discarded and rebuilt.
func (a *Actor) Login(ctx context.Context, req LoginRequest) (*LoginResult, error) {
	if a.state == StateActive && !req.Force {
		return &LoginResult{AlreadyActive: true, Student: a.student}, nil
	}
	if a.state == StateActive || a.state == StateDegraded {
		a.setState(StateLoggedOut)
	}

	a.creds = credentials{username: a.cfg.Username, password: a.cfg.Password}
	if req.Username != "" {
		a.creds.username = req.Username
	}
	if req.Password != "" {
		a.creds.password = req.Password
	}

	if err := a.loginOnce(ctx); err != nil {
		// A rejected override must not poison later auto-logins
		a.creds = credentials{username: a.cfg.Username, password: a.cfg.Password}
		return nil, err
	}
	return &LoginResult{Student: a.student}, nil
}

// loginOnce performs one full login flow from whatever state we are in.
// On success the state is Active; on failure it is LoggedOut.
func (a *Actor) loginOnce(ctx context.Context) error {
	a.setState(StateLoggingIn)

	fail := func(err error) error {
		a.consecutiveFailures++
		a.setState(StateLoggedOut)
		return err
	}

	if !a.engine.IsOpen() {
		if err := a.engine.Open(ctx); err != nil {
			return fail(err)
		}
	}

	if err := a.engine.Navigate(ctx, a.cfg.LoginURL); err != nil {
		return fail(err)
	}
	if err := a.engine.Fill(ctx, portal.SelectorUsername, a.creds.username); err != nil {
		return fail(fmt.Errorf("login form: %w", err))
	}
	if err := a.engine.Fill(ctx, portal.SelectorPassword, a.creds.password); err != nil {
		return fail(fmt.Errorf("login form: %w", err))
	}
	if err := a.engine.Click(ctx, portal.SelectorLoginSubmit); err != nil {
		return fail(fmt.Errorf("login submit: %w", err))
	}

	url, err := a.engine.CurrentURL(ctx)
	if err != nil {
		return fail(err)
	}
	content, err := a.engine.PageText(ctx)
	if err != nil {
		return fail(err)
	}

	if !portal.IsAuthenticatedPage(url, content) {
		reason := "invalid credentials or unexpected login response"
		if msg, err := a.engine.ExtractBySelector(ctx, portal.SelectorLoginError); err == nil {
			if msg = strings.TrimSpace(msg); msg != "" {
				reason = msg
			}
		}
		return fail(&AuthError{Reason: reason})
	}

	a.student = portal.ExtractStudentInfo(content)
	a.loginAt = time.Now()
	a.setState(StateActive)
	a.touch()

	log.Info().Str("enrollment", a.student.Enrollment).Msg("Portal login succeeded")
	return nil
}

// Logout ends the session. Portal logout is best effort; the local state
// always resets.
func (a *Actor) Logout(ctx context.Context) error {
	if a.state == StateActive && a.engine.IsOpen() {
		if err := a.engine.ClickByText(ctx, "Sair"); err != nil {
			log.Warn().Err(err).Msg("Portal logout click failed, closing session anyway")
		}
	}

	if err := a.engine.Close(); err != nil {
		log.Warn().Err(err).Msg("Browser close failed during logout")
	}

	a.setState(StateLoggedOut)
	a.student = portal.StudentInfo{}
	a.loginAt = time.Time{}
	return nil
}

// EnsureActive guarantees a usable session, logging in with the stored
// credentials when there is none yet. Degraded sessions go through
// recovery first.
func (a *Actor) EnsureActive(ctx context.Context) error {
	switch a.state {
	case StateActive:
		return nil
	case StateDegraded:
		return a.Recover(ctx)
	default:
		if a.creds.username == "" {
			return ErrNotLoggedIn
		}
		return a.loginOnce(ctx)
	}
}

// recoveryAttempts bounds how many re-logins a degraded session gets
// before it is abandoned.
const recoveryAttempts = 2

// Recover re-establishes a degraded session. After recoveryAttempts
// failures the session is torn down and ErrUnrecoverable returned.
func (a *Actor) Recover(ctx context.Context) error {
	if a.state != StateDegraded {
		return fmt.Errorf("recover called in state %s", a.state)
	}

	var lastErr error
	for attempt := 1; attempt <= recoveryAttempts; attempt++ {
		log.Info().Int("attempt", attempt).Msg("Attempting session recovery")
		if err := a.loginOnce(ctx); err != nil {
			lastErr = err
			// loginOnce left us LoggedOut; go back to Degraded for the
			// next attempt
			if attempt < recoveryAttempts {
				a.state = StateDegraded
			}
			continue
		}
		return nil
	}

	if err := a.engine.Close(); err != nil {
		log.Warn().Err(err).Msg("Browser close failed after recovery exhaustion")
	}
	log.Error().Err(lastErr).Msg("Session recovery exhausted")
	return fmt.Errorf("%w: %v", ErrUnrecoverable, lastErr)
}

// MarkDegraded flags an active session as needing recovery
func (a *Actor) MarkDegraded() {
	if a.state == StateActive {
		a.consecutiveFailures++
		a.setState(StateDegraded)
	}
}

// checkSession verifies the portal did not bounce us back to the login
// screen. Called after operations that navigate.
func (a *Actor) checkSession(ctx context.Context) error {
	url, err := a.engine.CurrentURL(ctx)
	if err != nil {
		return err
	}
	content, err := a.engine.PageText(ctx)
	if err != nil {
		return err
	}
	if portal.IsLoginPage(url, content) {
		a.MarkDegraded()
		return ErrSessionExpired
	}
	a.touch()
	return nil
}

// SessionStatus is the answer to a status-check request
type SessionStatus struct {
	State               State              `json:"state"`
	LoggedIn            bool               `json:"logged_in"`
	OnPortal            bool               `json:"on_portal"`
	CurrentURL          string             `json:"current_url,omitempty"`
	Student             portal.StudentInfo `json:"student,omitempty"`
	SessionAge          string             `json:"session_age,omitempty"`
	LastActivity        string             `json:"last_activity,omitempty"`
	ConsecutiveFailures int                `json:"consecutive_failures,omitempty"`
}

// Status reports the session state. For live sessions it also verifies
// the portal still recognizes us, degrading the state if not.
func (a *Actor) Status(ctx context.Context) (*SessionStatus, error) {
	status := &SessionStatus{
		State:               a.state,
		LoggedIn:            a.state == StateActive,
		ConsecutiveFailures: a.consecutiveFailures,
	}
	if !a.lastActivity.IsZero() {
		status.LastActivity = a.lastActivity.UTC().Format(time.RFC3339)
	}
	if !a.loginAt.IsZero() {
		status.SessionAge = time.Since(a.loginAt).Round(time.Second).String()
	}

	if a.state != StateActive || !a.engine.IsOpen() {
		return status, nil
	}

	url, err := a.engine.CurrentURL(ctx)
	if err != nil {
		return status, nil
	}
	status.CurrentURL = url
	status.Student = a.student

	content, err := a.engine.PageText(ctx)
	if err == nil {
		status.OnPortal = portal.IsAuthenticatedPage(url, content)
		if portal.IsLoginPage(url, content) {
			a.MarkDegraded()
			status.State = a.state
			status.LoggedIn = false
			status.ConsecutiveFailures = a.consecutiveFailures
		}
	}
	return status, nil
}

// Probe is the keepalive check: it looks at the current page and degrades
// the session if the portal logged us out.
func (a *Actor) Probe(ctx context.Context) error {
	if a.state != StateActive {
		return nil
	}
	err := a.checkSession(ctx)
	if errors.Is(err, ErrSessionExpired) {
		log.Warn().Msg("Keepalive probe found an expired session")
		return nil
	}
	return err
}
