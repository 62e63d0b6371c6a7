package application

import (
	"testing"
	"time"

	"relay-gateway/relay/domain"
)

type fakeLimiter struct {
	allow bool
}

func (f fakeLimiter) Allow() bool { return f.allow }

type fakeStore struct {
	lim domain.Limiter
}

func (s fakeStore) Get(domain.Key) domain.Limiter { return s.lim }

func TestAdmission_Decide_AllowsWhenNoStore(t *testing.T) {
	adm := Admission{}
	dec := adm.Decide("k")
	if !dec.Allowed {
		t.Fatalf("expected allowed")
	}
	if dec.RetryAfter != 0 {
		t.Fatalf("expected RetryAfter=0 when allowed, got %s", dec.RetryAfter)
	}
}

func TestAdmission_Decide_AllowsWhenLimiterAllows(t *testing.T) {
	adm := Admission{Store: fakeStore{lim: fakeLimiter{allow: true}}, RetryAfter: 5 * time.Second}
	if dec := adm.Decide("k"); !dec.Allowed {
		t.Fatalf("expected allowed")
	}
}

func TestAdmission_Decide_BlocksWithRetryAfterDefault(t *testing.T) {
	adm := Admission{Store: fakeStore{lim: fakeLimiter{allow: false}}}
	dec := adm.Decide("k")
	if dec.Allowed {
		t.Fatalf("expected blocked")
	}
	if dec.RetryAfter != 1*time.Second {
		t.Fatalf("expected default RetryAfter=1s, got %s", dec.RetryAfter)
	}
}

func TestAdmission_Decide_BlocksWithConfiguredRetryAfter(t *testing.T) {
	adm := Admission{Store: fakeStore{lim: fakeLimiter{allow: false}}, RetryAfter: 2500 * time.Millisecond}
	dec := adm.Decide("k")
	if dec.Allowed {
		t.Fatalf("expected blocked")
	}
	if dec.RetryAfter != 2500*time.Millisecond {
		t.Fatalf("expected RetryAfter=2.5s, got %s", dec.RetryAfter)
	}
}
