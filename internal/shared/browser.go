package shared

import (
	"fmt"
	"net/url"
	"os/exec"
	"runtime"
)

// openers maps GOOS to the command that hands a URL to the desktop.
var openers = map[string][]string{
	"darwin":  {"open"},
	"linux":   {"xdg-open"},
	"freebsd": {"xdg-open"},
	"windows": {"rundll32", "url.dll,FileProtocolHandler"},
}

// OpenBrowser opens an http(s) URL, such as the camera stream, in the default browser.
func OpenBrowser(rawURL string) error {
	cmd, err := browserCommand(runtime.GOOS, rawURL)
	if err != nil {
		return err
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to open browser: %w", err)
	}
	go cmd.Wait()
	return nil
}

func browserCommand(goos, rawURL string) (*exec.Cmd, error) {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: not an http url: %q", ErrInvalidArgument, rawURL)
	}

	opener, ok := openers[goos]
	if !ok {
		return nil, fmt.Errorf("unsupported platform: %s", goos)
	}
	args := append(append([]string{}, opener[1:]...), u.String())
	return exec.Command(opener[0], args...), nil
}
