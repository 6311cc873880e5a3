package server

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// schemePattern is the RFC 3986 scheme grammar.
var schemePattern = regexp.MustCompile(`^[a-z][a-z0-9+.-]*$`)

// blockedRedirectSchemes can execute content in the browser or read local
// files, so they are never valid redirect targets.
var blockedRedirectSchemes = map[string]bool{
	"javascript": true,
	"data":       true,
	"vbscript":   true,
	"file":       true,
	"about":      true,
	"blob":       true,
}

var (
	errRelativeRedirect = errors.New("redirect_uri must be absolute")
	errRedirectFragment = errors.New("redirect_uri must not contain a fragment")
	errRedirectNoHost   = errors.New("http(s) redirect_uri must have a host")
)

// validateRedirectURI accepts absolute http(s) URIs with a host and
// custom-scheme URIs used by native clients (e.g. cursor://callback).
func validateRedirectURI(raw string) error {
	parsed, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid redirect_uri: %w", err)
	}
	if parsed.Scheme == "" {
		return errRelativeRedirect
	}
	if parsed.Fragment != "" || strings.Contains(raw, "#") {
		return errRedirectFragment
	}

	scheme := strings.ToLower(parsed.Scheme)
	if !schemePattern.MatchString(scheme) {
		return fmt.Errorf("invalid redirect_uri scheme %q", parsed.Scheme)
	}
	if blockedRedirectSchemes[scheme] {
		return fmt.Errorf("redirect_uri scheme %q is not allowed", scheme)
	}
	if (scheme == "http" || scheme == "https") && parsed.Host == "" {
		return errRedirectNoHost
	}
	return nil
}
