package main

import (
	"errors"
	"time"

	"github.com/go-rod/rod"
)

// ErrNoLocatorMatched is returned once every alternative descriptor for a
// logical control has been exhausted.
var ErrNoLocatorMatched = errors.New("no locator matched")

// Descriptor is one way of finding a logical control in the target UI. The
// target ships several concurrent markup variants, so every interactive step
// is expressed as an ordered list of descriptors; supporting a new variant
// means appending one, never touching the flow.
type Descriptor struct {
	Name  string
	Query string
	XPath bool
}

// resolveFirst tries each descriptor in order, waiting up to timeout for it to
// become visible, and returns the first hit.
func resolveFirst(page *rod.Page, timeout time.Duration, alts []Descriptor) (*rod.Element, error) {
	for _, alt := range alts {
		el, err := lookup(page, timeout, alt)
		if err != nil {
			continue
		}
		if err := el.WaitVisible(); err != nil {
			continue
		}
		return el, nil
	}
	return nil, ErrNoLocatorMatched
}

func lookup(page *rod.Page, timeout time.Duration, d Descriptor) (*rod.Element, error) {
	p := page.Timeout(timeout)
	if d.XPath {
		return p.ElementX(d.Query)
	}
	return p.Element(d.Query)
}

// Descriptor lists for every control the delivery flow touches, highest
// priority first. Ported from the selector sets that survived the target's
// successive redesigns.
var (
	followButtonLocators = []Descriptor{
		{Name: "follow-ap3a", Query: "//div[contains(@class, 'ap3a') and text()='Follow']", XPath: true},
		{Name: "follow-dir-auto", Query: "//div[@dir='auto' and text()='Follow']", XPath: true},
		{Name: "follow-button-role", Query: "//button[text()='Follow']", XPath: true},
	}

	messageButtonLocators = []Descriptor{
		{Name: "message-x1i10hfl", Query: "//div[contains(@class, 'x1i10hfl') and contains(text(), 'Message')]", XPath: true},
		{Name: "message-role-button", Query: "//div[contains(@role, 'button') and text()='Message']", XPath: true},
		{Name: "message-acan", Query: "//div[contains(@class, '_acan') and text()='Message']", XPath: true},
	}

	notificationDismissLocators = []Descriptor{
		{Name: "notnow-a9", Query: "//button[contains(@class, '_a9--')]", XPath: true},
		{Name: "notnow-button", Query: "//button[text()='Not Now']", XPath: true},
		{Name: "notnow-div", Query: "//div[text()='Not Now']", XPath: true},
	}

	messageBoxLocators = []Descriptor{
		{Name: "textbox-role", Query: "//div[@role='textbox']", XPath: true},
		{Name: "textbox-aria", Query: "//div[contains(@aria-label, 'Message')]", XPath: true},
		{Name: "textbox-textarea", Query: "//textarea[contains(@placeholder, 'Message')]", XPath: true},
	}

	loginUsernameLocators = []Descriptor{
		{Name: "login-username", Query: "input[name='username']"},
		{Name: "login-username-aria", Query: "//input[contains(@aria-label, 'username')]", XPath: true},
	}

	loginPasswordLocators = []Descriptor{
		{Name: "login-password", Query: "input[name='password']"},
		{Name: "login-password-aria", Query: "//input[contains(@aria-label, 'Password')]", XPath: true},
	}

	loginSubmitLocators = []Descriptor{
		{Name: "login-submit", Query: "button[type='submit']"},
		{Name: "login-submit-text", Query: "//button//div[text()='Log in']", XPath: true},
	}
)
