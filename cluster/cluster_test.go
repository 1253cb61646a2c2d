package cluster

import (
	"testing"

	"github.com/nodecast/actorrt/config"
)

func TestJoinAndAddress(t *testing.T) {
	topo := NewTopology(3)
	if topo.Complete() {
		t.Fatalf("expected incomplete topology before any joins")
	}

	for r := 0; r < 3; r++ {
		if err := topo.Join(r, tcpAddr{s: "127.0.0.1:900" + string(rune('0'+r))}); err != nil {
			t.Fatal(err)
		}
	}
	if !topo.Complete() {
		t.Fatalf("expected complete topology after all ranks joined")
	}

	addr, ok := topo.Address(1)
	if !ok || addr.String() != "127.0.0.1:9001" {
		t.Fatalf("address(1) = %v, %v", addr, ok)
	}
}

func TestLeaveRemovesAddress(t *testing.T) {
	topo := NewTopology(2)
	if err := topo.Join(0, tcpAddr{s: "a"}); err != nil {
		t.Fatal(err)
	}
	topo.Leave(0)
	if _, ok := topo.Address(0); ok {
		t.Fatalf("expected rank 0 to be gone after Leave")
	}
}

func TestJoinRejectsOutOfRangeRank(t *testing.T) {
	topo := NewTopology(2)
	if err := topo.Join(5, tcpAddr{s: "a"}); err == nil {
		t.Fatalf("expected an error for an out-of-range rank")
	}
}

func TestWatchEmitsJoinAndLeave(t *testing.T) {
	topo := NewTopology(1)
	events := topo.Watch()

	if err := topo.Join(0, tcpAddr{s: "a"}); err != nil {
		t.Fatal(err)
	}
	topo.Leave(0)

	ev := <-events
	if ev.Type != RankJoined || ev.Rank != 0 {
		t.Fatalf("first event = %+v, want RankJoined/0", ev)
	}
	ev = <-events
	if ev.Type != RankLeft || ev.Rank != 0 {
		t.Fatalf("second event = %+v, want RankLeft/0", ev)
	}
}

func TestFromPeers(t *testing.T) {
	cc := config.ClusterConfig{
		Size: 2,
		Peers: []config.PeerAddr{
			{Rank: 0, Address: "10.0.0.1:9000"},
			{Rank: 1, Address: "10.0.0.2:9000"},
		},
	}
	topo, err := FromPeers(cc)
	if err != nil {
		t.Fatal(err)
	}
	if !topo.Complete() {
		t.Fatalf("expected complete topology from a full peer list")
	}
}
