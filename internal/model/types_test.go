package model

import "testing"

func TestChannelFor(t *testing.T) {
	if got := ChannelFor("claude", "0196d2e3-aaaa-bbbb"); got != "claude:0196d2e3" {
		t.Fatalf("ChannelFor: %q", got)
	}
	if got := ChannelFor("codex", "short"); got != "codex:short" {
		t.Fatalf("short id: %q", got)
	}
}

func TestChannelBackend(t *testing.T) {
	cases := []struct {
		channel, want string
	}{
		{"claude:abc12345", "claude"},
		{"openclaw:x", "openclaw"},
		{":orphan", ""},
		{"nosep", ""},
	}
	for _, c := range cases {
		if got := ChannelBackend(c.channel); got != c.want {
			t.Fatalf("ChannelBackend(%q) = %q, want %q", c.channel, got, c.want)
		}
	}
}

func TestDisplayNamePrecedence(t *testing.T) {
	n := Notification{Name: "override", Metadata: map[string]string{MetaAutoName: "derived"}}
	if n.DisplayName() != "override" {
		t.Fatalf("override must win: %q", n.DisplayName())
	}
	n.Name = ""
	if n.DisplayName() != "derived" {
		t.Fatalf("fallback to derived: %q", n.DisplayName())
	}
}

func TestLocationIsZero(t *testing.T) {
	if !(Location{}).IsZero() {
		t.Fatalf("empty location must be zero")
	}
	if (Location{PaneID: "%1"}).IsZero() {
		t.Fatalf("pane-only location is not zero")
	}
}
