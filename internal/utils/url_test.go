package utils

import "testing"

func TestNormalizeURL(t *testing.T) {
	normalized, domain, err := NormalizeURL("https://Example.com/path?utm_source=test&x=1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if domain != "example.com" {
		t.Fatalf("unexpected domain: %s", domain)
	}
	if normalized != "https://example.com/path?x=1" {
		t.Fatalf("unexpected normalized url: %s", normalized)
	}
}

func TestDomainMatch(t *testing.T) {
	allow := map[string]struct{}{"good.com": {}}
	block := map[string]struct{}{"bad.com": {}}
	allowed, blocked := DomainMatch("good.com", allow, block)
	if !allowed || blocked {
		t.Fatalf("expected allow only")
	}
	allowed, blocked = DomainMatch("bad.com", allow, block)
	if allowed || !blocked {
		t.Fatalf("expected block only")
	}
}

func TestExtractURLs(t *testing.T) {
	urls := ExtractURLs("see https://a.com/x and <http://b.org> too")
	if len(urls) != 2 || urls[0] != "https://a.com/x" || urls[1] != "http://b.org" {
		t.Fatalf("unexpected urls: %v", urls)
	}
}

func TestFindInvite(t *testing.T) {
	cases := map[string]string{
		"join https://discord.gg/abc123 now":         "https://discord.gg/abc123",
		"join discord.gg/abc123":                     "https://discord.gg/abc123",
		"https://DISCORD.com/invite/xyz?utm_source=x": "https://discord.com/invite/xyz",
		"https://discordapp.com/invite/xyz":          "https://discordapp.com/invite/xyz",
	}
	for content, want := range cases {
		got, ok := FindInvite(content)
		if !ok || got != want {
			t.Fatalf("FindInvite(%q) = %q, %v; want %q", content, got, ok, want)
		}
	}

	for _, content := range []string{
		"https://discord.com/channels/1/2",
		"https://notdiscord.gg.example.com/page",
		"https://example.com/discord.gg",
		"plain text",
	} {
		if got, ok := FindInvite(content); ok {
			t.Fatalf("FindInvite(%q) matched %q", content, got)
		}
	}
}
