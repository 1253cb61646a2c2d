package msgchannel

import (
	"testing"

	"github.com/nodecast/actorrt/localbus"
	"github.com/nodecast/actorrt/transport"
)

func TestSendReceiveScalar(t *testing.T) {
	c := localbus.NewCluster(2, 0)
	a, b := c.Channel(0), c.Channel(1)

	if err := SendValue(a, 1, 5, int32(42)); err != nil {
		t.Fatal(err)
	}

	var msg Message
	ok, err := msg.Receive(b, transport.AnySource, 5)
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatalf("expected a message to be waiting")
	}
	if msg.Source() != 0 || msg.Tag() != 5 {
		t.Fatalf("got source=%d tag=%d, want source=0 tag=5", msg.Source(), msg.Tag())
	}
	if got := Data[int32](&msg); got != 42 {
		t.Fatalf("got %d, want 42", got)
	}
}

func TestSendReceiveArray(t *testing.T) {
	c := localbus.NewCluster(2, 0)
	a, b := c.Channel(0), c.Channel(1)

	values := []float64{1.1, 2.2, 3.3}
	if err := Send(a, 1, 0, values); err != nil {
		t.Fatal(err)
	}

	var msg Message
	ok, err := msg.Receive(b, transport.AnySource, transport.AnyTag)
	if err != nil || !ok {
		t.Fatalf("receive failed: ok=%v err=%v", ok, err)
	}

	if n := ElementCount[float64](&msg); n != 3 {
		t.Fatalf("ElementCount = %d, want 3", n)
	}

	out := make([]float64, 3)
	DataInto(&msg, out, 3)
	for i, v := range values {
		if out[i] != v {
			t.Fatalf("out[%d] = %v, want %v", i, out[i], v)
		}
	}
}

func TestReceiveFalseWhenEmpty(t *testing.T) {
	c := localbus.NewCluster(2, 0)
	b := c.Channel(1)

	var msg Message
	ok, err := msg.Receive(b, transport.AnySource, transport.AnyTag)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatalf("expected no message waiting")
	}
}

func TestPerSourceFIFO(t *testing.T) {
	c := localbus.NewCluster(2, 0)
	a, b := c.Channel(0), c.Channel(1)

	if err := SendValue(a, 1, 1, int64(100)); err != nil {
		t.Fatal(err)
	}
	if err := SendValue(a, 1, 1, int64(200)); err != nil {
		t.Fatal(err)
	}

	var m1, m2 Message
	if ok, err := m1.Receive(b, transport.AnySource, 1); err != nil || !ok {
		t.Fatalf("first receive failed: ok=%v err=%v", ok, err)
	}
	if ok, err := m2.Receive(b, transport.AnySource, 1); err != nil || !ok {
		t.Fatalf("second receive failed: ok=%v err=%v", ok, err)
	}

	if got := Data[int64](&m1); got != 100 {
		t.Fatalf("m1 = %d, want 100", got)
	}
	if got := Data[int64](&m2); got != 200 {
		t.Fatalf("m2 = %d, want 200", got)
	}
}

func TestTagIndependenceReversePoll(t *testing.T) {
	c := localbus.NewCluster(2, 0)
	a, b := c.Channel(0), c.Channel(1)

	for tag := 0; tag <= 4; tag++ {
		if err := SendValue(a, 1, tag, int32(tag*10)); err != nil {
			t.Fatal(err)
		}
	}

	for tag := 4; tag >= 0; tag-- {
		var msg Message
		ok, err := msg.Receive(b, transport.AnySource, tag)
		if err != nil || !ok {
			t.Fatalf("receive for tag %d failed: ok=%v err=%v", tag, ok, err)
		}
		if msg.Tag() != tag {
			t.Fatalf("got tag %d, want %d", msg.Tag(), tag)
		}
		if got := Data[int32](&msg); got != int32(tag*10) {
			t.Fatalf("tag %d: got %d, want %d", tag, got, tag*10)
		}
	}

	var msg Message
	ok, err := msg.Receive(b, transport.AnySource, transport.AnyTag)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatalf("expected no messages left after draining all five tags")
	}
}
