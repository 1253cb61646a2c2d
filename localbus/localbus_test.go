package localbus

import (
	"sync"
	"testing"

	"github.com/nodecast/actorrt/transport"
)

func TestSendRecvFIFO(t *testing.T) {
	c := NewCluster(2, 0)
	a := c.Channel(0)
	b := c.Channel(1)

	if err := a.BufferedSend(1, 7, []byte("m1")); err != nil {
		t.Fatal(err)
	}
	if err := a.BufferedSend(1, 7, []byte("m2")); err != nil {
		t.Fatal(err)
	}

	buf := make([]byte, 2)
	if err := b.Recv(0, 7, buf); err != nil {
		t.Fatal(err)
	}
	if string(buf) != "m1" {
		t.Fatalf("got %q, want m1", buf)
	}
	if err := b.Recv(0, 7, buf); err != nil {
		t.Fatal(err)
	}
	if string(buf) != "m2" {
		t.Fatalf("got %q, want m2", buf)
	}
}

func TestIprobeNonBlocking(t *testing.T) {
	c := NewCluster(2, 0)
	a := c.Channel(0)
	b := c.Channel(1)

	res, err := b.Iprobe(transport.AnySource, transport.AnyTag)
	if err != nil {
		t.Fatal(err)
	}
	if res.Waiting {
		t.Fatalf("expected no message waiting")
	}

	if err := a.BufferedSend(1, 3, []byte("hi")); err != nil {
		t.Fatal(err)
	}

	res, err = b.Iprobe(transport.AnySource, transport.AnyTag)
	if err != nil {
		t.Fatal(err)
	}
	if !res.Waiting || res.Source != 0 || res.Tag != 3 || res.ByteCount != 2 {
		t.Fatalf("unexpected probe result: %+v", res)
	}
}

func TestDupIsolatesChannels(t *testing.T) {
	c := NewCluster(2, 0)

	var wg sync.WaitGroup
	dups := make([]transport.Channel, 2)
	for r := 0; r < 2; r++ {
		wg.Add(1)
		go func(r int) {
			defer wg.Done()
			d, err := c.Channel(r).Dup()
			if err != nil {
				t.Error(err)
				return
			}
			dups[r] = d
		}(r)
	}
	wg.Wait()

	if err := c.Channel(0).BufferedSend(1, 1, []byte("base")); err != nil {
		t.Fatal(err)
	}
	if err := dups[0].BufferedSend(1, 1, []byte("dup")); err != nil {
		t.Fatal(err)
	}

	buf := make([]byte, 3)
	if err := dups[1].Recv(0, 1, buf); err != nil {
		t.Fatal(err)
	}
	if string(buf) != "dup" {
		t.Fatalf("dup channel got %q, want %q", buf, "dup")
	}

	res, err := dups[1].Iprobe(transport.AnySource, transport.AnyTag)
	if err != nil {
		t.Fatal(err)
	}
	if res.Waiting {
		t.Fatalf("dup channel should not see the base channel's remaining message")
	}
}

func TestBarrierRendezvous(t *testing.T) {
	c := NewCluster(3, 0)

	var wg sync.WaitGroup
	for r := 0; r < 3; r++ {
		wg.Add(1)
		go func(r int) {
			defer wg.Done()
			if err := c.Channel(r).Barrier(); err != nil {
				t.Error(err)
			}
		}(r)
	}
	wg.Wait()
}

func TestAllreduceSum(t *testing.T) {
	c := NewCluster(4, 0)

	var wg sync.WaitGroup
	totals := make([]int, 4)
	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func(r int) {
			defer wg.Done()
			total, err := c.Channel(r).AllreduceSum(r + 1)
			if err != nil {
				t.Error(err)
				return
			}
			totals[r] = total
		}(r)
	}
	wg.Wait()

	for r, total := range totals {
		if total != 10 {
			t.Fatalf("rank %d: allreduce total = %d, want 10", r, total)
		}
	}
}

func TestCapacityExceeded(t *testing.T) {
	c := NewCluster(2, 4)
	a := c.Channel(0)

	if err := a.BufferedSend(1, 0, []byte("ab")); err != nil {
		t.Fatal(err)
	}
	err := a.BufferedSend(1, 0, []byte("abc"))
	if err != transport.ErrCapacityExceeded {
		t.Fatalf("expected ErrCapacityExceeded, got %v", err)
	}
}
