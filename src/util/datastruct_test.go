package util

import (
	"strconv"
	"testing"
	"time"
)

func TestSyncMap(t *testing.T) {
	syncMap := NewSyncMap[string, string]()

	if !syncMap.IsEmpty() {
		t.FailNow()
	}

	syncMap.Put("test", "value0")
	if syncMap.Size() != 1 {
		t.FailNow()
	}
	syncMap.Put("test", "value1")
	syncMap.Put("test2", "value2")
	syncMap.Put("test3", "value3")

	if v, _ := syncMap.Get("test3"); v != "value3" {
		t.Fatal("expect key test3 value ")
	}
	if v, _ := syncMap.Get("test"); v != "value1" {
		t.Fatal("expect key test value is value1")
	}
	if _, ok := syncMap.Get("test4"); ok {
		t.Fatal("expect no test4 key")
	}
	if syncMap.GetOrDefault("test4", "default") != "default" {
		t.Fatal("expect default value for test4")
	}

	type finish struct{}
	it := 1000
	finishSig := make(chan *finish, it)
	go func() {
		for k := range [1000]int{1} {
			go func(i int) {
				syncMap.Put("test"+strconv.Itoa(i), "value")
				finishSig <- &finish{}
			}(k)
		}
	}()

	ticker := time.NewTicker(4 * time.Second)
	defer ticker.Stop()
	finalCount := 0
	for finalCount != it {
		select {
		case <-finishSig:
			finalCount++
		case <-ticker.C:
			t.Fatal("time out wait for put() loop to complete")
		}
	}
	if syncMap.Size() != it+1 {
		t.Fatalf("expect size to be %d", it+1)
	}

	if v, _ := syncMap.Get("test345"); v != "value" {
		t.Fatal("expect key test345 value ")
	}
	if v, _ := syncMap.Get("test"); v != "value1" {
		t.Fatal("expect key test value is value1")
	}

	if previous, ok := syncMap.Replace("test", "value2"); !ok || previous != "value1" {
		t.Fatal("Replace expect key test previous value is value1")
	}
	if v, _ := syncMap.Get("test"); v != "value2" {
		t.Fatal("Replace expect key test new value is value2")
	}

	if _, ok := syncMap.Remove("test"); !ok {
		t.Fatal("Remove expect key test to exist")
	}
	if _, ok := syncMap.Get("test"); ok {
		t.Fatal("expect test removed")
	}
}

func TestSyncMapValues(t *testing.T) {
	syncMap := NewSyncMap[int, string]()
	syncMap.Put(3, "c")
	syncMap.Put(1, "a")
	syncMap.Put(2, "b")

	values := syncMap.Values(func(a, b int) bool { return a < b })
	if len(values) != 3 || values[0] != "a" || values[1] != "b" || values[2] != "c" {
		t.Fatalf("unexpected order %v", values)
	}
}
