package bypass

import (
	"net/http"
	"testing"
)

func header(kv ...string) http.Header {
	h := http.Header{}
	for i := 0; i+1 < len(kv); i += 2 {
		h.Set(kv[i], kv[i+1])
	}
	return h
}

func TestAnalyze(t *testing.T) {
	tests := []struct {
		name   string
		resp   Response
		source string
	}{
		{"plain product page", Response{StatusCode: 200, Header: header("Server", "nginx"), Body: []byte("<title>Skillet</title>")}, ""},
		{"cloudflare server", Response{StatusCode: 403, Header: header("Server", "cloudflare"), Body: []byte("Access Denied")}, "Cloudflare"},
		{"cloudflare body", Response{StatusCode: 503, Header: header(), Body: []byte("<html>... cf-turnstile ...</html>")}, "Cloudflare"},
		{"cloudflare on 200 ignored", Response{StatusCode: 200, Header: header("Server", "cloudflare")}, ""},
		{"akamai server", Response{StatusCode: 403, Header: header("Server", "AkamaiGHost")}, "Akamai"},
		{"akamai body", Response{StatusCode: 403, Header: header(), Body: []byte("Access Denied... Reference #123.456")}, "Akamai"},
		{"akamai partial body", Response{StatusCode: 403, Header: header(), Body: []byte("Reference #123.456")}, ""},
		{"datadome header", Response{StatusCode: 403, Header: header("X-DataDome", "1")}, "DataDome"},
		{"datadome body", Response{StatusCode: 403, Header: header(), Body: []byte("script src='https://geo.captcha-delivery.com/...'")}, "DataDome"},
		{"perimeterx header", Response{StatusCode: 403, Header: header("X-Px-Captcha", "required")}, "PerimeterX"},
		{"perimeterx body", Response{StatusCode: 403, Header: header(), Body: []byte("window._pxBlock = true;")}, "PerimeterX"},
		{"imperva interstitial", Response{StatusCode: 200, Header: header(), Body: []byte(`<script src="/_Incapsula_Resource?x=1">`)}, "Imperva"},
		{"throttled", Response{StatusCode: 429, Header: header()}, "RateLimit"},
	}

	detectors := DefaultDetectors()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			source, challenged := Analyze(tt.resp, detectors)
			if source != tt.source {
				t.Errorf("expected source %q, got %q", tt.source, source)
			}
			if challenged != (tt.source != "") {
				t.Errorf("expected challenged=%v, got %v", tt.source != "", challenged)
			}
		})
	}
}

func TestAnalyze_NoDetectors(t *testing.T) {
	if _, challenged := Analyze(Response{StatusCode: 403, Header: header("Server", "cloudflare")}, nil); challenged {
		t.Error("expected no detection without detectors")
	}
}
