package pool

import (
	"testing"
	"time"
)

func TestTimer(t *testing.T) {
	timer := GetTimer(time.Millisecond)
	<-timer.C
	ReleaseTimer(timer)

	// A reused timer must not fire immediately from a stale tick.
	timer = GetTimer(time.Hour)
	select {
	case <-timer.C:
		t.Fatal("stale tick")
	case <-time.After(10 * time.Millisecond):
	}
	ResetAndDrainTimer(timer, time.Millisecond)
	<-timer.C
	ReleaseTimer(timer)
	ReleaseTimer(nil)
}

func TestBuf(t *testing.T) {
	b := GetBuf()
	b.WriteString("hello")
	ReleaseBuf(b)

	b = GetBuf()
	if b.Len() != 0 {
		t.Fatal("pooled buffer not reset")
	}
	ReleaseBuf(b)
	ReleaseBuf(nil)
}
