package permission

import (
	"errors"
	"fmt"
	"sync"
	"testing"
)

func TestRegistryInternIsStable(t *testing.T) {
	r, err := NewRegistry(0)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}

	a, _ := r.Intern("Clients")
	b, _ := r.Intern("Contracts")
	again, _ := r.Intern("Clients")
	if a != again {
		t.Fatalf("expected stable bit, got %d then %d", a, again)
	}
	if a == b {
		t.Fatal("expected distinct bits for distinct names")
	}
	if name, ok := r.Name(b); !ok || name != "Contracts" {
		t.Fatalf("unexpected name lookup %q %v", name, ok)
	}
	if _, ok := r.Bit("Trainers"); ok {
		t.Fatal("Bit must not intern")
	}
	if r.Count() != 2 {
		t.Fatalf("expected 2 names, got %d", r.Count())
	}
}

func TestRegistryBounds(t *testing.T) {
	if _, err := NewRegistry(-1); err == nil {
		t.Fatal("expected error for negative maxBits")
	}

	r, _ := NewRegistry(2)
	if _, err := r.Intern(""); err == nil {
		t.Fatal("expected error for empty name")
	}
	r.Intern("a")
	r.Intern("b")
	if _, err := r.Intern("c"); !errors.Is(err, ErrRegistryFull) {
		t.Fatalf("expected ErrRegistryFull, got %v", err)
	}
	if _, err := r.Intern("a"); err != nil {
		t.Fatalf("existing name must still resolve: %v", err)
	}
}

func TestRegistryConcurrentIntern(t *testing.T) {
	r, _ := NewRegistry(0)

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				if _, err := r.Intern(fmt.Sprintf("perm-%d", i)); err != nil {
					t.Errorf("intern: %v", err)
					return
				}
			}
		}()
	}
	wg.Wait()

	if r.Count() != 100 {
		t.Fatalf("expected 100 interned names, got %d", r.Count())
	}
}
