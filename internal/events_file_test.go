// events_file_test.go
package internal

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

func appendLine(t *testing.T, path, line string) {
	t.Helper()
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatalf("open for append: %v", err)
	}
	defer f.Close()
	if _, err := f.WriteString(line); err != nil {
		t.Fatalf("append: %v", err)
	}
}

func TestFileLogPublishAndTail(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events", "ledger.jsonl")
	fl, err := NewFileLog(path, testLogger())
	if err != nil {
		t.Fatalf("NewFileLog: %v", err)
	}
	defer fl.Close()

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		ev := NewEvent(EventBurnStart, fmt.Sprintf("burn %d", i), StateBurning)
		if err := fl.Publish(ctx, ev); err != nil {
			t.Fatalf("publish %d: %v", i, err)
		}
	}

	if got := fl.Count(); got != 5 {
		t.Fatalf("count: got %d want 5", got)
	}

	tail := fl.Tail(3)
	if len(tail) != 3 {
		t.Fatalf("tail length: got %d want 3", len(tail))
	}
	// oldest first
	if tail[0].Message != "burn 2" || tail[2].Message != "burn 4" {
		t.Fatalf("tail order wrong: %q .. %q", tail[0].Message, tail[2].Message)
	}

	if got := fl.Tail(0); len(got) != 5 {
		t.Fatalf("tail(0) should return everything, got %d", len(got))
	}
	if got := fl.Tail(50); len(got) != 5 {
		t.Fatalf("oversized tail request should cap at stored events, got %d", len(got))
	}
}

func TestFileLogReopenRestoresState(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.jsonl")
	ctx := context.Background()

	fl, err := NewFileLog(path, testLogger())
	if err != nil {
		t.Fatalf("NewFileLog: %v", err)
	}
	for i := 0; i < 3; i++ {
		if err := fl.Publish(ctx, NewEvent(EventFailSafe, fmt.Sprintf("ev %d", i), StateIdle)); err != nil {
			t.Fatalf("publish: %v", err)
		}
	}
	if err := fl.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	fl2, err := NewFileLog(path, testLogger())
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer fl2.Close()

	if got := fl2.Count(); got != 3 {
		t.Fatalf("count after reopen: got %d want 3", got)
	}
	tail := fl2.Tail(0)
	if len(tail) != 3 || tail[2].Message != "ev 2" {
		t.Fatalf("tail after reopen: %+v", tail)
	}

	// appends continue past the restored content
	if err := fl2.Publish(ctx, NewEvent(EventStartup, "back online", StateIdle)); err != nil {
		t.Fatalf("publish after reopen: %v", err)
	}
	if got := fl2.Count(); got != 4 {
		t.Fatalf("count after append: got %d want 4", got)
	}
}

func TestFileLogTailCapacity(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.jsonl")
	fl, err := NewFileLog(path, testLogger())
	if err != nil {
		t.Fatalf("NewFileLog: %v", err)
	}
	defer fl.Close()

	ctx := context.Background()
	for i := 0; i < tailCapacity+20; i++ {
		if err := fl.Publish(ctx, NewEvent(EventBurnEnd, fmt.Sprintf("ev %d", i), StateIdle)); err != nil {
			t.Fatalf("publish %d: %v", i, err)
		}
	}
	if got := fl.Count(); got != int64(tailCapacity+20) {
		t.Fatalf("count: got %d", got)
	}
	tail := fl.Tail(0)
	if len(tail) != tailCapacity {
		t.Fatalf("tail must cap at %d, got %d", tailCapacity, len(tail))
	}
	if tail[len(tail)-1].Message != fmt.Sprintf("ev %d", tailCapacity+19) {
		t.Fatalf("newest event missing from tail: %q", tail[len(tail)-1].Message)
	}
}

func TestFileLogRejectsCorruptLedger(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.jsonl")
	fl, err := NewFileLog(path, testLogger())
	if err != nil {
		t.Fatalf("NewFileLog: %v", err)
	}
	if err := fl.Publish(context.Background(), NewEvent(EventStartup, "ok", StateIdle)); err != nil {
		t.Fatalf("publish: %v", err)
	}
	fl.Close()

	appendLine(t, path, "{not json\n")
	if _, err := NewFileLog(path, testLogger()); err == nil {
		t.Fatalf("corrupt ledger accepted")
	}
}

func TestMultiSinkFansOut(t *testing.T) {
	path1 := filepath.Join(t.TempDir(), "a.jsonl")
	path2 := filepath.Join(t.TempDir(), "b.jsonl")
	a, err := NewFileLog(path1, testLogger())
	if err != nil {
		t.Fatalf("NewFileLog a: %v", err)
	}
	defer a.Close()
	b, err := NewFileLog(path2, testLogger())
	if err != nil {
		t.Fatalf("NewFileLog b: %v", err)
	}
	defer b.Close()

	sink := NewMultiSink(testLogger(), a, nil, b)
	if err := sink.Publish(context.Background(), NewEvent(EventBurnStart, "fan out", StateBurning)); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if a.Count() != 1 || b.Count() != 1 {
		t.Fatalf("counts: %d / %d want 1 / 1", a.Count(), b.Count())
	}
}

func TestNewEventStampsIdentityAndTime(t *testing.T) {
	a := NewEvent(EventBurnStart, "one", StateBurning)
	b := NewEvent(EventBurnStart, "one", StateBurning)
	if a.ID == "" || b.ID == "" || a.ID == b.ID {
		t.Fatalf("event ids must be unique and non-empty: %q %q", a.ID, b.ID)
	}
	if a.Timestamp == 0 {
		t.Fatalf("event timestamp not stamped")
	}
	if a.State != "Burning" {
		t.Fatalf("event state: got %q", a.State)
	}
}
