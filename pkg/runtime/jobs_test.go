package runtime

import (
	"context"
	"testing"
	"time"
)

func TestNextJobIsFIFO(t *testing.T) {
	s := NewDefaultJobSource()
	var order []int
	for i := 1; i <= 3; i++ {
		i := i
		s.Post(func() error { order = append(order, i); return nil })
	}
	for {
		job, ok := s.NextJob()
		if !ok {
			break
		}
		if err := job(); err != nil {
			t.Fatal(err)
		}
	}
	if len(order) != 3 || order[0] != 1 || order[2] != 3 {
		t.Errorf("Expected [1 2 3], got %v", order)
	}
}

func TestAwaitJobWithoutPendingOps(t *testing.T) {
	s := NewDefaultJobSource()
	if _, ok := s.AwaitJob(context.Background()); ok {
		t.Error("Expected no job when nothing is pending")
	}
}

func TestAwaitJobBlocksForExternalOp(t *testing.T) {
	s := NewDefaultJobSource()
	s.BeginExternalOp()
	done := make(chan struct{})
	go func() {
		time.Sleep(10 * time.Millisecond)
		s.Complete(func() error { close(done); return nil })
	}()
	job, ok := s.AwaitJob(context.Background())
	if !ok {
		t.Fatal("Expected a job from the completed operation")
	}
	_ = job()
	select {
	case <-done:
	default:
		t.Error("Expected the posted job to be returned")
	}
	if s.HasPendingExternalOps() {
		t.Error("Expected no pending operations after Complete")
	}
}

func TestAwaitJobHonoursContext(t *testing.T) {
	s := NewDefaultJobSource()
	s.BeginExternalOp()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, ok := s.AwaitJob(ctx); ok {
		t.Error("Expected AwaitJob to give up when the context ends")
	}
}
