package actor

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestDoSerializesAccess(t *testing.T) {
	a := Start(0, nil)
	defer a.Stop()

	var counter int64
	var wg sync.WaitGroup
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := a.Do(context.Background(), func(ctx context.Context) (interface{}, error) {
				cur := atomic.LoadInt64(&counter)
				atomic.StoreInt64(&counter, cur+1)
				return nil, nil
			})
			if err != nil {
				t.Errorf("Do: %v", err)
			}
		}()
	}
	wg.Wait()

	if counter != 200 {
		t.Fatalf("counter = %d, want 200", counter)
	}
}

func TestRegistryCreatesOncePerKey(t *testing.T) {
	r := NewRegistry(0)
	a1 := r.Get("alice")
	a2 := r.Get("alice")
	if a1 != a2 {
		t.Fatal("expected the same actor for the same key")
	}
	if r.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", r.Len())
	}
}

func TestIdleExpiry(t *testing.T) {
	r := NewRegistry(20 * time.Millisecond)
	r.Get("bob")
	if r.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", r.Len())
	}
	time.Sleep(100 * time.Millisecond)
	if r.Len() != 0 {
		t.Fatalf("Len() = %d, want 0 after idle expiry", r.Len())
	}
}

func TestDoReturnsErrorFromOp(t *testing.T) {
	a := Start(0, nil)
	defer a.Stop()

	wantErr := context.Canceled
	_, err := a.Do(context.Background(), func(ctx context.Context) (interface{}, error) {
		return nil, wantErr
	})
	if err != wantErr {
		t.Fatalf("err = %v, want %v", err, wantErr)
	}
}
