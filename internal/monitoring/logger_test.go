package monitoring

import "testing"

func TestSetLogger(t *testing.T) {
	original := Logf
	defer func() { Logf = original }()

	called := false
	SetLogger(func(format string, v ...interface{}) { called = true })
	Logf("test message")
	if !called {
		t.Error("custom logger was not called")
	}

	// nil installs a no-op logger; Logf must not panic or call anything.
	called = false
	SetLogger(nil)
	Logf("test message")
	if called {
		t.Error("no-op logger should not have triggered callback")
	}
}

func TestDebugf(t *testing.T) {
	original := Logf
	defer func() {
		Logf = original
		SetDebug(false)
	}()

	calls := 0
	SetLogger(func(format string, v ...interface{}) { calls++ })

	SetDebug(false)
	Debugf("suppressed")
	if calls != 0 {
		t.Errorf("expected 0 calls with debug off, got %d", calls)
	}

	SetDebug(true)
	Debugf("emitted")
	if calls != 1 {
		t.Errorf("expected 1 call with debug on, got %d", calls)
	}
}

func TestCountersSnapshot(t *testing.T) {
	var c PipelineCounters
	c.SamplesIn.Add(10)
	c.SamplesDropped.Add(2)
	c.Publishes.Add(3)
	c.PublishDrops.Add(1)

	snap := c.Snapshot()
	if snap.SamplesIn != 10 {
		t.Errorf("SamplesIn = %d, want 10", snap.SamplesIn)
	}
	if snap.SamplesDropped != 2 {
		t.Errorf("SamplesDropped = %d, want 2", snap.SamplesDropped)
	}
	if snap.Publishes != 3 || snap.PublishDrops != 1 {
		t.Errorf("publish counters = %d/%d, want 3/1", snap.Publishes, snap.PublishDrops)
	}
}
