package frame

import (
	"net"
	"testing"
	"time"

	"github.com/d2718/grel/internal/wire"
)

func pipePair(t *testing.T) (*Frame, *Frame) {
	t.Helper()
	a, b := net.Pipe()
	fa, err := New(a)
	if err != nil {
		t.Fatalf("New(a): %v", err)
	}
	fb, err := New(b)
	if err != nil {
		t.Fatalf("New(b): %v", err)
	}
	t.Cleanup(func() {
		fa.Shutdown()
		fb.Shutdown()
	})
	return fa, fb
}

func TestBlockingSendGet(t *testing.T) {
	a, b := pipePair(t)

	msg := wire.Text{Who: "alice", Lines: []string{"hello"}}
	enc, err := wire.Encode(msg)
	if err != nil {
		t.Fatal(err)
	}

	done := make(chan error, 1)
	go func() {
		done <- a.BlockingSend(enc, time.Millisecond)
	}()

	got, err := b.BlockingGet(time.Millisecond)
	if err != nil {
		t.Fatalf("BlockingGet: %v", err)
	}
	if err := <-done; err != nil {
		t.Fatalf("BlockingSend: %v", err)
	}
	gotText, ok := got.(wire.Text)
	if !ok || gotText.Who != "alice" || len(gotText.Lines) != 1 || gotText.Lines[0] != "hello" {
		t.Errorf("got %#v, want %#v", got, msg)
	}
}

func TestTryGetIncompleteReturnsNotFound(t *testing.T) {
	a, b := pipePair(t)

	enc, err := wire.Encode(wire.Ping{})
	if err != nil {
		t.Fatal(err)
	}
	// Write only the first half of the encoded bytes.
	half := len(enc) / 2
	if half == 0 {
		t.Fatal("encoded Ping too short to split")
	}

	go func() {
		a.BlockingSend(enc[:half], time.Millisecond)
	}()

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		b.Suck()
		if b.RecvBufferSize() > 0 {
			break
		}
		time.Sleep(time.Millisecond)
	}

	_, found, err := b.TryGet()
	if err != nil {
		t.Fatalf("TryGet on partial data: %v", err)
	}
	if found {
		t.Error("TryGet reported a complete message from a truncated buffer")
	}
}

func TestConcatenatedMessagesDecodeInOrder(t *testing.T) {
	a, b := pipePair(t)

	msgs := []wire.Msg{wire.Name("alice"), wire.Ping{}, wire.Join("lobby")}
	var stream []byte
	for _, m := range msgs {
		enc, err := wire.Encode(m)
		if err != nil {
			t.Fatal(err)
		}
		stream = append(stream, enc...)
	}

	go func() {
		a.BlockingSend(stream, time.Millisecond)
	}()

	for _, want := range msgs {
		got, err := b.BlockingGet(time.Millisecond)
		if err != nil {
			t.Fatalf("BlockingGet: %v", err)
		}
		if got != want {
			t.Errorf("got %#v, want %#v", got, want)
		}
	}
}

func TestSendAndRecvBufferSizes(t *testing.T) {
	a, _ := pipePair(t)
	if a.SendBufferSize() != 0 {
		t.Errorf("fresh Frame has nonzero send buffer size %d", a.SendBufferSize())
	}
	if a.RecvBufferSize() != 0 {
		t.Errorf("fresh Frame has nonzero recv buffer size %d", a.RecvBufferSize())
	}
	a.Enqueue([]byte(`"Ping"`))
	if a.SendBufferSize() != 6 {
		t.Errorf("SendBufferSize() = %d, want 6", a.SendBufferSize())
	}
}

func TestBlockingGetDeadlineSucceedsBeforeTimeout(t *testing.T) {
	a, b := pipePair(t)

	enc, err := wire.Encode(wire.Name("bob"))
	if err != nil {
		t.Fatal(err)
	}
	go func() {
		a.BlockingSend(enc, time.Millisecond)
	}()

	got, err := b.BlockingGetDeadline(time.Millisecond, time.Second)
	if err != nil {
		t.Fatalf("BlockingGetDeadline: %v", err)
	}
	if got != wire.Name("bob") {
		t.Errorf("got %#v, want Name(\"bob\")", got)
	}
}

func TestBlockingGetDeadlineTimesOutWithNoData(t *testing.T) {
	_, b := pipePair(t)

	start := time.Now()
	_, err := b.BlockingGetDeadline(time.Millisecond, 20*time.Millisecond)
	if err == nil {
		t.Fatal("expected a timeout error, got nil")
	}
	if elapsed := time.Since(start); elapsed < 20*time.Millisecond {
		t.Errorf("returned after only %s, before the deadline elapsed", elapsed)
	}
}

func TestAddrIsNeverEmpty(t *testing.T) {
	a, _ := pipePair(t)
	// net.Pipe connections have no meaningful remote address, but Addr
	// should never panic and should return something non-empty.
	if a.Addr() == "" {
		t.Error("Addr() returned empty string")
	}
}
