package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/input"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"go.uber.org/zap"
)

// Outcome vocabulary surfaced to the dispatcher and the control panel. Every
// delivery attempt ends in exactly one of these (or "Error: <detail>").
const (
	statusSent            = "Message sent successfully"
	statusAlreadyMessaged = "Already messaged previously"
	statusSkippedSession  = "Skipped - already sent this session"
	statusSessionMissing  = "Session not found"
	statusSessionError    = "Session error"
	statusProfileNotFound = "Profile not found"
	statusUIBlocked       = "Could not click message button"
	statusInRequests      = "Message in requests"
	statusUnverified      = "Message verification failed"
	statusStopped         = "Process stopped by user"
)

const requestsRestrictionText = "You can send more messages after your invite is accepted"

const defaultUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"

// Engine performs one send attempt end-to-end: fresh browsing context,
// session replay, profile navigation, conversation open, paced typing,
// delivery verification. The context is torn down on every exit path.
type Engine struct {
	config *Config
	store  *SessionStore
	pacer  *Pacer
	log    *zap.Logger

	mu   sync.Mutex
	seen map[string]struct{}
}

func NewEngine(config *Config, store *SessionStore, pacer *Pacer, log *zap.Logger) *Engine {
	return &Engine{
		config: config,
		store:  store,
		pacer:  pacer,
		log:    log,
		seen:   make(map[string]struct{}),
	}
}

func (e *Engine) sentThisSession(target string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.seen[target]
	return ok
}

func (e *Engine) markSent(target string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.seen[target] = struct{}{}
}

// SendDM drives the full delivery procedure for one recipient and returns a
// terminal outcome string. No failure here aborts the batch; the dispatcher
// records whatever comes back and moves on.
func (e *Engine) SendDM(target, message string, followFirst bool) string {
	if e.sentThisSession(target) {
		e.log.Info("skipping, already sent this session", zap.String("target", target))
		return statusSkippedSession
	}

	cookies, err := e.store.Load()
	if err != nil {
		return statusSessionMissing
	}

	browser, cleanup, err := newBrowser(e.config, e.config.Headless)
	if err != nil {
		e.log.Error("browser launch failed", zap.String("target", target), zap.Error(err))
		return "Error: " + err.Error()
	}
	defer cleanup()

	page, err := newStealthPage(browser)
	if err != nil {
		return "Error: " + err.Error()
	}

	e.pacer.humanDelay(1500*time.Millisecond, 4500*time.Millisecond)

	if err := e.loadSession(page, browser, cookies); err != nil {
		e.log.Warn("session replay failed", zap.String("target", target), zap.Error(err))
		return statusSessionError
	}

	outcome, err := e.deliver(page, target, message, followFirst)
	if err != nil {
		e.captureScreenshot(page, target)
		e.log.Error("delivery failed", zap.String("target", target), zap.Error(err))
		return "Error: " + err.Error()
	}

	if outcome == statusSent {
		e.markSent(target)
	}
	return outcome
}

// loadSession opens the home page, injects the stored cookies and reloads so
// the next navigation is authenticated.
func (e *Engine) loadSession(page *rod.Page, browser *rod.Browser, cookies []SessionCookie) error {
	if err := page.Navigate(e.config.BaseURL); err != nil {
		return fmt.Errorf("failed to open home page: %w", err)
	}
	if err := page.WaitLoad(); err != nil {
		return fmt.Errorf("home page failed to load: %w", err)
	}
	e.pacer.humanDelay(2*time.Second, 6*time.Second)

	if err := browser.SetCookies(e.store.cookieParams(cookies)); err != nil {
		return fmt.Errorf("failed to set cookies: %w", err)
	}

	if err := page.Reload(); err != nil {
		return fmt.Errorf("failed to reload after cookies: %w", err)
	}
	if err := page.WaitLoad(); err != nil {
		return fmt.Errorf("reload failed to finish: %w", err)
	}
	e.pacer.humanDelay(1500*time.Millisecond, 4500*time.Millisecond)
	return nil
}

// deliver walks the profile-to-verification portion of the state machine.
// Ordering: follow (optional) -> message button -> notification dismissal ->
// composition surface -> restriction check -> type -> submit -> verify.
func (e *Engine) deliver(page *rod.Page, target, message string, followFirst bool) (string, error) {
	profileURL := fmt.Sprintf("%s/%s/", e.config.BaseURL, target)
	if err := page.Navigate(profileURL); err != nil {
		return "", fmt.Errorf("failed to open profile: %w", err)
	}
	if err := page.WaitLoad(); err != nil {
		return "", fmt.Errorf("profile failed to load: %w", err)
	}
	e.pacer.humanDelay(3*time.Second, 7*time.Second)

	if e.profileMissing(page) {
		return statusProfileNotFound, nil
	}

	if followFirst {
		e.followProfile(page)
	}

	if !e.clickMessageButton(page) {
		return statusUIBlocked, nil
	}

	e.dismissNotificationPrompt(page)

	textboxTimeout := time.Duration(e.config.TextboxTimeoutSeconds) * time.Second
	box, err := resolveFirst(page, textboxTimeout, messageBoxLocators)
	if err != nil {
		return statusUIBlocked, nil
	}

	if e.pageContains(page, requestsRestrictionText) {
		return statusInRequests, nil
	}

	typed := e.typeMessage(box, message) == nil
	if typed {
		e.pacer.humanDelay(1*time.Second, 3*time.Second)
		typed = e.submit(box) == nil
	}
	if typed && e.verifyDelivered(page, message) {
		return statusSent, nil
	}

	// Direct interaction failed to land the message; fall back to scripted
	// focus plus raw text insertion before giving up.
	if err := e.injectMessage(page, message); err == nil && e.verifyDelivered(page, message) {
		return statusSent, nil
	}

	return statusUnverified, nil
}

func (e *Engine) profileMissing(page *rod.Page) bool {
	info, err := page.Info()
	if err == nil && strings.Contains(info.Title, "Page Not Found") {
		return true
	}
	return e.pageContains(page, "Sorry, this page isn't available.")
}

// followProfile is best-effort: the control is absent when the account is
// already followed, so failure to resolve it never fails the delivery.
func (e *Engine) followProfile(page *rod.Page) {
	timeout := time.Duration(e.config.ButtonTimeoutSeconds) * time.Second
	btn, err := resolveFirst(page, timeout, followButtonLocators)
	if err != nil {
		e.log.Debug("follow control not found, proceeding unfollowed", zap.Error(err))
		return
	}

	e.pacer.humanDelay(1*time.Second, 3*time.Second)
	if err := btn.Click(proto.InputMouseButtonLeft, 1); err != nil {
		e.log.Debug("follow click failed, proceeding unfollowed", zap.Error(err))
		return
	}
	e.pacer.humanDelay(2*time.Second, 4*time.Second)
}

// clickMessageButton resolves the Message control. The visible label must
// read exactly "message" (case-insensitive); overlapping markup on unrelated
// controls makes the bare locator match too loose on its own.
func (e *Engine) clickMessageButton(page *rod.Page) bool {
	timeout := time.Duration(e.config.ButtonTimeoutSeconds) * time.Second

	for _, alt := range messageButtonLocators {
		el, err := lookup(page, timeout, alt)
		if err != nil {
			continue
		}
		if err := el.WaitVisible(); err != nil {
			continue
		}

		label, err := el.Text()
		if err != nil || !strings.EqualFold(strings.TrimSpace(label), "message") {
			continue
		}

		e.pacer.humanDelay(1*time.Second, 3*time.Second)
		if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
			continue
		}
		e.pacer.humanDelay(2*time.Second, 4*time.Second)
		return true
	}
	return false
}

// dismissNotificationPrompt clears the transient notification-permission
// dialog when one appears. Best-effort, never fatal.
func (e *Engine) dismissNotificationPrompt(page *rod.Page) {
	e.pacer.humanDelay(1*time.Second, 3*time.Second)

	btn, err := resolveFirst(page, 2*time.Second, notificationDismissLocators)
	if err != nil {
		return
	}

	e.pacer.humanDelay(500*time.Millisecond, 2*time.Second)
	if err := btn.Click(proto.InputMouseButtonLeft, 1); err != nil {
		e.log.Debug("notification dismiss click failed", zap.Error(err))
		return
	}
	e.pacer.humanDelay(1*time.Second, 3*time.Second)
}

func (e *Engine) typeMessage(box *rod.Element, message string) error {
	if err := box.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return fmt.Errorf("failed to focus message box: %w", err)
	}
	e.pacer.humanDelay(1*time.Second, 2*time.Second)

	if !e.config.HumanTyping {
		return box.Input(message)
	}

	style := e.pacer.PickStyle()
	for _, r := range message {
		if err := box.Input(string(r)); err != nil {
			return fmt.Errorf("keystroke failed: %w", err)
		}
		time.Sleep(e.pacer.CharDelay(style))
		if pause := e.pacer.Hesitation(); pause > 0 {
			time.Sleep(pause)
		}
	}
	return nil
}

func (e *Engine) submit(box *rod.Element) error {
	if err := box.Type(input.Enter); err != nil {
		return err
	}
	e.pacer.humanDelay(2*time.Second, 4*time.Second)
	return nil
}

// injectMessage is the scripted fallback for when direct interaction cannot
// focus the composition surface.
func (e *Engine) injectMessage(page *rod.Page, message string) error {
	res, err := page.Eval(`() => {
		var box = document.querySelector('div[role="textbox"]');
		if (box) {
			box.click();
			box.focus();
			return true;
		}
		return false;
	}`)
	if err != nil {
		return err
	}
	if !res.Value.Bool() {
		return errors.New("no message box to focus")
	}

	time.Sleep(1 * time.Second)
	if err := page.InsertText(message); err != nil {
		return err
	}
	if err := page.Keyboard.Press(input.Enter); err != nil {
		return err
	}
	e.pacer.humanDelay(2*time.Second, 4*time.Second)
	return nil
}

// verifyDelivered looks for a prefix of the sent text in the conversation
// surface. Absence is reported as unverified, never upgraded to success.
func (e *Engine) verifyDelivered(page *rod.Page, message string) bool {
	timeout := time.Duration(e.config.VerifyTimeoutSeconds) * time.Second
	_, err := page.Timeout(timeout).ElementR("div", regexp.QuoteMeta(messagePrefix(message)))
	return err == nil
}

// messagePrefix is the first 20 characters of the message, what the
// verification step searches the conversation for.
func messagePrefix(message string) string {
	runes := []rune(message)
	if len(runes) > 20 {
		runes = runes[:20]
	}
	return string(runes)
}

func (e *Engine) pageContains(page *rod.Page, text string) bool {
	html, err := page.HTML()
	return err == nil && strings.Contains(html, text)
}

// captureScreenshot saves a diagnostic screenshot keyed by recipient and
// timestamp. Failure to capture is swallowed.
func (e *Engine) captureScreenshot(page *rod.Page, target string) {
	if page == nil {
		return
	}

	data, err := page.Screenshot(false, nil)
	if err != nil {
		e.log.Debug("screenshot capture failed", zap.String("target", target), zap.Error(err))
		return
	}

	name := fmt.Sprintf("error_%s_%d.png", target, time.Now().Unix())
	path := filepath.Join(e.config.ScreenshotsDir, name)
	if err := os.WriteFile(path, data, 0644); err != nil {
		e.log.Debug("screenshot write failed", zap.String("path", path), zap.Error(err))
		return
	}
	e.log.Info("error screenshot saved", zap.String("path", path))
}

// newBrowser launches a fresh browsing context. With profile isolation on,
// every attempt gets a throwaway user-data dir that is removed on teardown.
func newBrowser(config *Config, headless bool) (*rod.Browser, func(), error) {
	// Leakless deadlocks on Windows, see go-rod/rod#853.
	useLeakless := runtime.GOOS != "windows"

	l := launcher.New().
		Leakless(useLeakless).
		Headless(headless)

	profileDir := ""
	if config.IsolateProfiles {
		profileDir = filepath.Join(config.ProfilesDir, fmt.Sprintf("profile_%d", time.Now().UnixNano()))
		l = l.UserDataDir(profileDir)
	}

	// Prefer system Chrome; falls back to rod's managed Chromium download.
	if chromePath, ok := launcher.LookPath(); ok {
		l = l.Bin(chromePath)
	}

	url, err := l.Launch()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	browser := rod.New().ControlURL(url)
	if err := browser.Connect(); err != nil {
		l.Cleanup()
		return nil, nil, fmt.Errorf("failed to connect to browser: %w", err)
	}

	cleanup := func() {
		_ = browser.Close()
		l.Cleanup()
		if profileDir != "" {
			_ = os.RemoveAll(profileDir)
		}
	}
	return browser, cleanup, nil
}

func newStealthPage(browser *rod.Browser) (*rod.Page, error) {
	page, err := stealth.Page(browser)
	if err != nil {
		return nil, fmt.Errorf("failed to create stealth page: %w", err)
	}

	err = page.SetUserAgent(&proto.NetworkSetUserAgentOverride{
		UserAgent: defaultUserAgent,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to set user agent: %w", err)
	}
	return page, nil
}
