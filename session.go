package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/go-rod/rod/lib/input"
	"github.com/go-rod/rod/lib/proto"
	"go.uber.org/zap"
)

// ErrSessionMissing is returned when no session has been captured yet or the
// stored one cannot be read.
var ErrSessionMissing = errors.New("session not found")

// identityCookie is the cookie that carries the logged-in account id.
const identityCookie = "ds_user_id"

// SessionCookie is one authentication token of a captured session.
type SessionCookie struct {
	Name     string  `json:"name"`
	Value    string  `json:"value"`
	Domain   string  `json:"domain"`
	Path     string  `json:"path"`
	Secure   bool    `json:"secure"`
	HTTPOnly bool    `json:"httpOnly"`
	Expires  float64 `json:"expires"`
}

// SessionStore persists a single cookie-set slot. A new login replaces the
// prior session wholesale; no history of old sessions is kept.
type SessionStore struct {
	path string
}

func NewSessionStore(path string) *SessionStore {
	return &SessionStore{path: path}
}

func (s *SessionStore) Save(cookies []SessionCookie) error {
	data, err := json.MarshalIndent(cookies, "", "    ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, data, 0600)
}

func (s *SessionStore) Load() ([]SessionCookie, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, ErrSessionMissing
	}

	var cookies []SessionCookie
	if err := json.Unmarshal(data, &cookies); err != nil {
		return nil, ErrSessionMissing
	}
	return cookies, nil
}

// Identity extracts the account identity from a cookie set. Returns "" when
// the identity cookie is absent.
func (s *SessionStore) Identity(cookies []SessionCookie) string {
	for _, c := range cookies {
		if c.Name == identityCookie {
			return c.Value
		}
	}
	return ""
}

// AccountID loads the stored session and derives its identity in one step.
func (s *SessionStore) AccountID() (string, error) {
	cookies, err := s.Load()
	if err != nil {
		return "", err
	}

	id := s.Identity(cookies)
	if id == "" {
		return "", ErrSessionMissing
	}
	return id, nil
}

func (s *SessionStore) cookieParams(cookies []SessionCookie) []*proto.NetworkCookieParam {
	params := make([]*proto.NetworkCookieParam, 0, len(cookies))
	for _, c := range cookies {
		params = append(params, &proto.NetworkCookieParam{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Secure:   c.Secure,
			HTTPOnly: c.HTTPOnly,
			Expires:  proto.TimeSinceEpoch(c.Expires),
		})
	}
	return params
}

// CaptureLogin drives a visible browser through the login form, waits for the
// identity cookie to appear (leaving time for the operator to clear 2FA or a
// checkpoint), then persists the full cookie set as the new session.
func (s *SessionStore) CaptureLogin(cfg *Config, log *zap.Logger, username, password string) error {
	// Login is always interactive, never headless.
	browser, cleanup, err := newBrowser(cfg, false)
	if err != nil {
		return fmt.Errorf("failed to launch browser: %w", err)
	}
	defer cleanup()

	page, err := newStealthPage(browser)
	if err != nil {
		return fmt.Errorf("failed to create page: %w", err)
	}

	if err := page.Navigate(cfg.BaseURL + "/accounts/login/"); err != nil {
		return fmt.Errorf("failed to navigate to login page: %w", err)
	}
	if err := page.WaitLoad(); err != nil {
		return fmt.Errorf("login page failed to load: %w", err)
	}

	fieldTimeout := time.Duration(cfg.TextboxTimeoutSeconds) * time.Second

	userField, err := resolveFirst(page, fieldTimeout, loginUsernameLocators)
	if err != nil {
		return fmt.Errorf("could not find username field: %w", err)
	}
	if err := userField.Input(username); err != nil {
		return fmt.Errorf("could not type username: %w", err)
	}

	passField, err := resolveFirst(page, fieldTimeout, loginPasswordLocators)
	if err != nil {
		return fmt.Errorf("could not find password field: %w", err)
	}
	if err := passField.Input(password); err != nil {
		return fmt.Errorf("could not type password: %w", err)
	}

	submit, err := resolveFirst(page, fieldTimeout, loginSubmitLocators)
	if err != nil {
		return fmt.Errorf("could not find login button: %w", err)
	}
	if err := submit.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return fmt.Errorf("could not click login button: %w", err)
	}
	_ = page.Keyboard.Press(input.Enter)

	log.Info("waiting for login to complete",
		zap.Int("timeout_seconds", cfg.LoginWaitSeconds))

	deadline := time.Now().Add(time.Duration(cfg.LoginWaitSeconds) * time.Second)
	for {
		cookies, err := s.readBrowserCookies(page)
		if err == nil && s.Identity(cookies) != "" {
			if err := s.Save(cookies); err != nil {
				return fmt.Errorf("failed to save session: %w", err)
			}
			log.Info("session saved", zap.String("account", s.Identity(cookies)))
			return nil
		}

		if time.Now().After(deadline) {
			return fmt.Errorf("login did not complete within %ds", cfg.LoginWaitSeconds)
		}
		time.Sleep(2 * time.Second)
	}
}

func (s *SessionStore) readBrowserCookies(page cookiePage) ([]SessionCookie, error) {
	raw, err := page.Cookies(nil)
	if err != nil {
		return nil, err
	}

	cookies := make([]SessionCookie, 0, len(raw))
	for _, c := range raw {
		cookies = append(cookies, SessionCookie{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Secure:   c.Secure,
			HTTPOnly: c.HTTPOnly,
			Expires:  float64(c.Expires),
		})
	}
	return cookies, nil
}

// cookiePage is the slice of rod's page surface the store reads cookies from.
type cookiePage interface {
	Cookies(urls []string) ([]*proto.NetworkCookie, error)
}
