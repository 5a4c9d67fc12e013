package progress

import "testing"

func TestChannelReporterDropsWhenFull(t *testing.T) {
	ch := make(chan Update, 1)
	r := NewChannelReporter(ch)
	r.Report(Update{Path: "a"})
	r.Report(Update{Path: "b"}) // must not block

	if got := <-ch; got.Path != "a" {
		t.Errorf("got %q, want a", got.Path)
	}
	select {
	case u := <-ch:
		t.Errorf("unexpected second update %v", u)
	default:
	}
	if r.Dropped() != 1 {
		t.Errorf("Dropped = %d, want 1", r.Dropped())
	}
}

func TestMultiFansOut(t *testing.T) {
	var a, b int
	m := Multi(FuncReporter(func(Update) { a++ }), nil, FuncReporter(func(Update) { b++ }), NoopReporter{})

	m.Report(Update{Stage: StageDone})
	m.Report(Update{Stage: StageDone})

	if a != 2 || b != 2 {
		t.Errorf("a=%d b=%d, want 2 and 2", a, b)
	}
}

func TestMultiCollapses(t *testing.T) {
	if _, ok := Multi().(NoopReporter); !ok {
		t.Error("Multi() should be a no-op reporter")
	}
	if _, ok := Multi(nil, NoopReporter{}).(NoopReporter); !ok {
		t.Error("a single reporter should be returned as is")
	}
}
