package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRegister(t *testing.T) {
	s := New(context.Background(), time.Second)
	noop := func(context.Context) error { return nil }

	tests := []struct {
		name    string
		task    string
		spec    string
		wantErr bool
	}{
		{"valid", "rates", "0 */30 * * * *", false},
		{"descriptor", "resync", "@every 1h", false},
		{"duplicate", "rates", "0 0 * * * *", true},
		{"five fields", "bad", "*/5 * * * *", true},
		{"garbage", "worse", "whenever", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := s.Register(tt.task, tt.spec, noop)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Register(%q) error = %v, wantErr %v", tt.spec, err, tt.wantErr)
			}
		})
	}
	if got := len(s.cron.Entries()); got != 2 {
		t.Fatalf("entries = %d, want 2", got)
	}
}

func TestRunNow(t *testing.T) {
	s := New(context.Background(), 50*time.Millisecond)
	var sawDeadline bool
	boom := errors.New("provider down")
	_ = s.Register("rates", "@every 1h", func(ctx context.Context) error {
		_, sawDeadline = ctx.Deadline()
		return boom
	})

	if err := s.RunNow("rates"); !errors.Is(err, boom) {
		t.Fatalf("RunNow error = %v", err)
	}
	if !sawDeadline {
		t.Fatal("task context should carry the timeout")
	}
	if err := s.RunNow("missing"); err == nil {
		t.Fatal("unknown task should fail")
	}
}

func TestStartStop(t *testing.T) {
	s := New(context.Background(), 0)
	ran := make(chan struct{}, 1)
	_ = s.Register("tick", "* * * * * *", func(context.Context) error {
		select {
		case ran <- struct{}{}:
		default:
		}
		return nil
	})
	s.Start()
	select {
	case <-ran:
	case <-time.After(3 * time.Second):
		t.Fatal("task did not run")
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	s.Stop(ctx)
}
