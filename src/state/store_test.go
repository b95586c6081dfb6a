package state

import (
	"fmt"
	"sync"
	"testing"
)

func TestStore_GetUnset(t *testing.T) {
	s := NewStore()
	if _, ok := s.Get("missing"); ok {
		t.Error("Get(missing) reported ok for a key never set")
	}
}

func TestStore_SetGet(t *testing.T) {
	s := NewStore()
	s.Set("mode", 3)
	s.Set("mode", 4)

	got, ok := s.Get("mode")
	if !ok || got != 4 {
		t.Errorf("Get(mode) = %d, %v, want 4, true", got, ok)
	}
}

func TestKeyStateKey(t *testing.T) {
	if got := KeyStateKey(65); got != "*Key65" {
		t.Errorf("KeyStateKey(65) = %q, want %q", got, "*Key65")
	}
	if !IsInternal(KeyStateKey(65)) {
		t.Error("key state keys must be internal")
	}
	if IsInternal("layer") {
		t.Error("user key reported as internal")
	}
}

func TestStore_CompareAndSet(t *testing.T) {
	s := NewStore()

	if !s.CompareAndSet("k", 0, 1) {
		t.Fatal("CompareAndSet on unset key with old=0 should succeed")
	}
	if s.CompareAndSet("k", 0, 1) {
		t.Error("second CompareAndSet(0 -> 1) should fail")
	}
	if got, _ := s.Get("k"); got != 1 {
		t.Errorf("k = %d, want 1", got)
	}
}

func TestStore_ResetKeepsInternalKeys(t *testing.T) {
	s := NewStore()
	s.Set("layer", 2)
	s.Set("stale", 9)
	s.Set(KeyStateKey(65), 1)

	s.Reset(map[string]int{"layer": 0, "fresh": 5})

	tests := []struct {
		key    string
		want   int
		wantOK bool
	}{
		{"layer", 0, true},
		{"fresh", 5, true},
		{"stale", 0, false},
		{KeyStateKey(65), 1, true},
	}
	for _, tt := range tests {
		got, ok := s.Get(tt.key)
		if ok != tt.wantOK || got != tt.want {
			t.Errorf("Get(%q) = %d, %v, want %d, %v", tt.key, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestStore_SnapshotUserOnly(t *testing.T) {
	s := NewStore()
	s.Set("layer", 1)
	s.Set(KeyStateKey(10), 1)

	user := s.Snapshot(true)
	if len(user) != 1 || user["layer"] != 1 {
		t.Errorf("Snapshot(true) = %v, want map[layer:1]", user)
	}
	if all := s.Snapshot(false); len(all) != 2 {
		t.Errorf("Snapshot(false) has %d keys, want 2", len(all))
	}
}

func TestStore_Observer(t *testing.T) {
	s := NewStore()
	var seen []string
	s.SetObserver(func(key string, value int) {
		seen = append(seen, fmt.Sprintf("%s=%d", key, value))
	})

	s.Set("a", 1)
	s.CompareAndSet("a", 1, 2)
	s.CompareAndSet("a", 1, 3)

	if len(seen) != 2 || seen[0] != "a=1" || seen[1] != "a=2" {
		t.Errorf("observer saw %v, want [a=1 a=2]", seen)
	}
}

func TestStore_Concurrent(t *testing.T) {
	s := NewStore()
	var wg sync.WaitGroup

	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			key := fmt.Sprintf("k%d", n%4)
			for j := 0; j < 500; j++ {
				s.Set(key, j)
				s.Get(key)
				s.Snapshot(false)
			}
		}(i)
	}
	wg.Wait()

	if s.Len() != 4 {
		t.Errorf("Len() = %d, want 4", s.Len())
	}
}
