package sandbox

import (
	"fmt"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

// Driver connects to a remote Chromium instance over CDP and positions its
// window on the sandbox's tiling grid, translating
// _adspower_prepare_window's connect-over-cdp + setWindowBounds sequence.
type Driver struct {
	browser *rod.Browser
}

// Connect attaches to an already-running Chromium instance reachable at
// wsEndpoint (a DevTools websocket URL, as returned by a fingerprinted
// profile launch).
func Connect(wsEndpoint string) (*Driver, error) {
	browser := rod.New().ControlURL(wsEndpoint)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("sandbox: connect to %s: %w", wsEndpoint, err)
	}
	return &Driver{browser: browser}, nil
}

// PlaceWindow reuses the remote instance's existing page (opening one only
// if none exists) and sets its outer window bounds to the given tile,
// avoiding the original's documented "large then small" resize flicker by
// setting bounds exactly once.
func (d *Driver) PlaceWindow(bounds WindowBoundsPX) error {
	pages, err := d.browser.Pages()
	if err != nil {
		return fmt.Errorf("sandbox: list pages: %w", err)
	}

	var page *rod.Page
	if len(pages) > 0 {
		page = pages[0]
	} else {
		page, err = d.browser.Page(proto.TargetCreateTarget{})
		if err != nil {
			return fmt.Errorf("sandbox: open page: %w", err)
		}
	}

	window, err := proto.BrowserGetWindowForTarget{}.Call(d.browser)
	if err != nil {
		return fmt.Errorf("sandbox: resolve window: %w", err)
	}

	left := float64(bounds.Left)
	top := float64(bounds.Top)
	width := float64(bounds.Width)
	height := float64(bounds.Height)

	err = proto.BrowserSetWindowBounds{
		WindowID: window.WindowID,
		Bounds: &proto.BrowserBounds{
			Left:   &left,
			Top:    &top,
			Width:  &width,
			Height: &height,
		},
	}.Call(d.browser)
	if err != nil {
		return fmt.Errorf("sandbox: set window bounds: %w", err)
	}

	return page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:  int(bounds.Width),
		Height: int(bounds.Height),
	})
}

// Disconnect closes this driver's CDP connection. It does not terminate
// the remote browser process, which the fingerprint profile provider (not
// this driver) owns and tears down via its own API.
func (d *Driver) Disconnect() error {
	return d.browser.Close()
}

// WindowBoundsPX is a window position/size in device pixels, the unit
// PlaceWindow expects (DIP conversion, if the remote display has a scale
// factor other than 1.0, is the caller's responsibility — see
// _adspower_prepare_window's _to_dip helper for the reference conversion).
type WindowBoundsPX struct {
	Left, Top, Width, Height int
}
