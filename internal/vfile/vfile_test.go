package vfile

import (
	"strings"
	"testing"
)

func TestMintProducesWellFormedURI(t *testing.T) {
	r := New()
	h, u := r.Mint("AINSERT")
	if !strings.HasPrefix(string(u), "hlasm://") || !strings.HasSuffix(string(u), "/AINSERT.hlasm") {
		t.Errorf("unexpected URI shape: %s", u)
	}
	if got, ok := r.Lookup(u); !ok || got != h {
		t.Errorf("Lookup(%s) = %v, %v; want %v, true", u, got, ok, h)
	}
}

func TestMintAllocatesDistinctURIsForSameName(t *testing.T) {
	r := New()
	_, u1 := r.Mint("COPYMEM")
	_, u2 := r.Mint("COPYMEM")
	if u1 == u2 {
		t.Error("expected distinct URIs for two mints of the same name")
	}
}

func TestPublishBumpsGeneration(t *testing.T) {
	r := New()
	h, _ := r.Mint("MAC1")
	v1 := r.Publish(h, "first")
	v2 := r.Publish(h, "second")
	if v2.Generation <= v1.Generation {
		t.Errorf("expected generation to increase, got %d then %d", v1.Generation, v2.Generation)
	}
	if r.Stale(h, v1) != true {
		t.Error("v1 should be stale after a second publish")
	}
	if r.Stale(h, v2) != false {
		t.Error("v2 should not be stale immediately after publish")
	}
}

func TestViewReflectsLatestPublish(t *testing.T) {
	r := New()
	h, _ := r.Mint("X")
	r.Publish(h, "hello")
	v := r.View(h)
	if v.Text != "hello" {
		t.Errorf("View.Text = %q, want hello", v.Text)
	}
}
