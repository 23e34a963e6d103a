package redisstore

import (
	"testing"
	"time"
)

func TestKeyIsScopedByCard(t *testing.T) {
	s := NewStore(nil, time.Minute)
	if got := s.key("CARD1"); got != "parking:active:CARD1" {
		t.Fatalf("unexpected key %q", got)
	}
}

func TestDefaultTTL(t *testing.T) {
	if s := NewStore(nil, 0); s.ttl != defaultTTL {
		t.Fatalf("expected default ttl, got %s", s.ttl)
	}
}
