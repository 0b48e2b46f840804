package ingeststate

import (
	"sync"
	"testing"
)

func TestSyncMap_BasicOperations(t *testing.T) {
	sm := NewSyncMap[string, int]()

	sm.Store("one", 1)
	sm.Store("two", 2)

	if val, ok := sm.Load("one"); !ok || val != 1 {
		t.Errorf("Load(one) = %v, %v; want 1, true", val, ok)
	}

	if val, ok := sm.Load("two"); !ok || val != 2 {
		t.Errorf("Load(two) = %v, %v; want 2, true", val, ok)
	}

	if val, ok := sm.Load("three"); ok {
		t.Errorf("Load(three) = %v, %v; want 0, false", val, ok)
	}
}

func TestSyncMap_Delete(t *testing.T) {
	sm := NewSyncMap[string, int]()

	sm.Store("key1", 1)
	sm.Store("key2", 2)

	sm.Delete("key1")

	if _, ok := sm.Load("key1"); ok {
		t.Error("Load(key1) should return false after Delete")
	}
	if _, ok := sm.Load("key2"); !ok {
		t.Error("Load(key2) should still be present")
	}

	// Delete non-existent key should not panic.
	sm.Delete("nonexistent")
}

func TestSyncMap_Keys(t *testing.T) {
	sm := NewSyncMap[string, struct{}]()

	if keys := sm.Keys(); len(keys) != 0 {
		t.Errorf("Keys() on empty map = %v; want empty", keys)
	}

	sm.Store("batch-1", struct{}{})
	sm.Store("batch-2", struct{}{})
	sm.Store("batch-3", struct{}{})
	sm.Delete("batch-2")

	keys := sm.Keys()
	if len(keys) != 2 {
		t.Fatalf("Keys() len = %d; want 2", len(keys))
	}

	seen := map[string]bool{}
	for _, k := range keys {
		seen[k] = true
	}
	if !seen["batch-1"] || !seen["batch-3"] {
		t.Errorf("Keys() = %v; want batch-1 and batch-3", keys)
	}
	if seen["batch-2"] {
		t.Errorf("Keys() = %v; should not contain deleted batch-2", keys)
	}
}

func TestSyncMap_ConcurrentAccess(t *testing.T) {
	sm := NewSyncMap[int, int]()
	numGoroutines := 100
	numOperations := 1000

	var wg sync.WaitGroup

	for i := range numGoroutines {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := range numOperations {
				key := id*numOperations + j
				sm.Store(key, key*2)
			}
		}(i)
	}

	for i := range numGoroutines {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := range numOperations {
				key := id*numOperations + j
				sm.Load(key)
			}
		}(i)
	}

	wg.Wait()

	if len(sm.Keys()) != numGoroutines*numOperations {
		t.Errorf("len(Keys()) = %v; want %v", len(sm.Keys()), numGoroutines*numOperations)
	}
}

func TestSyncMap_TypeSafety(t *testing.T) {
	intMap := NewSyncMap[string, int]()
	intMap.Store("count", 42)
	if val, _ := intMap.Load("count"); val != 42 {
		t.Errorf("int map: got %v, want 42", val)
	}

	stringMap := NewSyncMap[string, string]()
	stringMap.Store("name", "batch-a1b2c3")
	if val, _ := stringMap.Load("name"); val != "batch-a1b2c3" {
		t.Errorf("string map: got %v, want batch-a1b2c3", val)
	}

	// String -> struct{}, the shape CancelRegistry actually uses.
	flagMap := NewSyncMap[string, struct{}]()
	flagMap.Store("batch-1", struct{}{})
	if _, ok := flagMap.Load("batch-1"); !ok {
		t.Error("flag map: failed to retrieve stored flag")
	}
}

func TestSyncMap_ZeroValue(t *testing.T) {
	intMap := NewSyncMap[string, int]()
	if val, ok := intMap.Load("missing"); ok || val != 0 {
		t.Errorf("Load(missing) = %v, %v; want 0, false", val, ok)
	}

	stringMap := NewSyncMap[string, string]()
	if val, ok := stringMap.Load("missing"); ok || val != "" {
		t.Errorf("Load(missing) = %v, %v; want empty string, false", val, ok)
	}
}
