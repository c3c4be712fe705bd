package bypass

import (
	"bytes"
	"net/http"
	"slices"
	"strings"
)

// Response is the part of a page fetch that detectors inspect.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Detector reports whether a bot protection layer answered instead of the
// storefront, and which one.
type Detector func(r Response) (detected bool, source string)

// signature describes how one vendor's challenge page looks.
type signature struct {
	source   string
	statuses []int
	servers  []string
	headers  []string
	bodies   []string
	// bodyAll requires every body marker rather than any.
	bodyAll bool
}

var signatures = []signature{
	{
		source:   "Cloudflare",
		statuses: []int{http.StatusForbidden, http.StatusServiceUnavailable},
		servers:  []string{"cloudflare"},
		bodies:   []string{"cf-browser-verification", "cloudflare-nginx", "cf-turnstile", "Attention Required! | Cloudflare"},
	},
	{
		source:   "Akamai",
		statuses: []int{http.StatusForbidden},
		servers:  []string{"akamai"},
		bodies:   []string{"Reference #", "Access Denied"},
		bodyAll:  true,
	},
	{
		source:   "DataDome",
		statuses: []int{http.StatusForbidden},
		servers:  []string{"datadome"},
		headers:  []string{"X-DataDome", "X-DataDome-Response"},
		bodies:   []string{"geo.captcha-delivery.com", "datadome"},
	},
	{
		source:   "PerimeterX",
		statuses: []int{http.StatusForbidden},
		headers:  []string{"X-Px-Captcha"},
		bodies:   []string{"client.perimeterx.net", "px-captcha", "_pxBlock"},
	},
	{
		source:   "Imperva",
		statuses: []int{http.StatusForbidden, http.StatusOK},
		headers:  []string{"X-Iinfo"},
		bodies:   []string{"_Incapsula_Resource", "Incapsula incident ID"},
	},
	{
		// Storefront platforms answer 429 with a throttling page.
		source:   "RateLimit",
		statuses: []int{http.StatusTooManyRequests},
	},
}

func (s signature) detect(r Response) (bool, string) {
	if !slices.Contains(s.statuses, r.StatusCode) {
		return false, ""
	}
	if len(s.servers) == 0 && len(s.headers) == 0 && len(s.bodies) == 0 {
		return true, s.source
	}

	server := strings.ToLower(r.Header.Get("Server"))
	for _, marker := range s.servers {
		if strings.Contains(server, marker) {
			return true, s.source
		}
	}
	for _, h := range s.headers {
		if r.Header.Get(h) != "" {
			return true, s.source
		}
	}
	if len(s.bodies) == 0 {
		return false, ""
	}

	matched := 0
	for _, marker := range s.bodies {
		if bytes.Contains(r.Body, []byte(marker)) {
			matched++
		}
	}
	if s.bodyAll {
		return matched == len(s.bodies), s.source
	}
	return matched > 0, s.source
}

// DefaultDetectors returns a detector per known protection vendor.
func DefaultDetectors() []Detector {
	detectors := make([]Detector, len(signatures))
	for i, sig := range signatures {
		detectors[i] = sig.detect
	}
	return detectors
}

// Analyze runs r through detectors and returns the first vendor that
// matched. An empty source means the page was served normally.
func Analyze(r Response, detectors []Detector) (source string, challenged bool) {
	for _, d := range detectors {
		if detected, src := d(r); detected {
			return src, true
		}
	}
	return "", false
}
