package scrape

import (
	"errors"
	"testing"
)

func TestResolveDomain(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		url  string
		want string
	}{
		{name: "plain https", url: "https://events.example.com/calendar", want: "events.example.com"},
		{name: "keeps port", url: "http://localhost:8080/x", want: "localhost:8080"},
		{name: "lowercases host", url: "https://Events.Example.COM/x", want: "events.example.com"},
		{name: "no scheme", url: "example.com/path", want: ""},
		{name: "malformed", url: "http://\x7f bad", want: ""},
		{name: "empty", url: "", want: ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := ResolveDomain(tc.url); got != tc.want {
				t.Fatalf("ResolveDomain(%q) = %q, want %q", tc.url, got, tc.want)
			}
		})
	}
}

func TestValidateScrapeURL(t *testing.T) {
	t.Parallel()

	valid := []string{
		"https://example.com/events",
		"http://localhost:9000/",
	}
	for _, u := range valid {
		if err := ValidateScrapeURL(u); err != nil {
			t.Fatalf("ValidateScrapeURL(%q) = %v, want nil", u, err)
		}
	}

	invalid := []string{
		"",
		"   ",
		"ftp://example.com/file",
		"example.com/no-scheme",
		"https://",
	}
	for _, u := range invalid {
		err := ValidateScrapeURL(u)
		if err == nil {
			t.Fatalf("ValidateScrapeURL(%q) = nil, want error", u)
		}
		var verr *ValidationError
		if !errors.As(err, &verr) {
			t.Fatalf("ValidateScrapeURL(%q) returned %T, want *ValidationError", u, err)
		}
	}
}
