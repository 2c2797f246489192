package pchan_test

import (
	"testing"

	"github.com/openhcl/paravisor-core/internal/pchan"
)

func TestFIFOOrdering(t *testing.T) {
	sender, receiver := pchan.New[int]()

	if err := sender.Send(1); err != nil {
		t.Fatalf("send: %v", err)
	}
	if err := sender.Send(2); err != nil {
		t.Fatalf("send: %v", err)
	}

	v, err := receiver.Recv()
	if err != nil || v != 1 {
		t.Fatalf("recv: got (%v, %v), want (1, nil)", v, err)
	}
	v, err = receiver.Recv()
	if err != nil || v != 2 {
		t.Fatalf("recv: got (%v, %v), want (2, nil)", v, err)
	}
}

// S4 (spec.md S4): Channel: send 1, send_priority 99 -> first recv = 99,
// second = 1.
func TestPriorityJumpsQueue(t *testing.T) {
	sender, receiver := pchan.New[int]()

	if err := sender.Send(1); err != nil {
		t.Fatalf("send: %v", err)
	}
	if err := sender.SendPriority(99); err != nil {
		t.Fatalf("send_priority: %v", err)
	}

	v, err := receiver.Recv()
	if err != nil || v != 99 {
		t.Fatalf("recv: got (%v, %v), want (99, nil)", v, err)
	}
	v, err = receiver.Recv()
	if err != nil || v != 1 {
		t.Fatalf("recv: got (%v, %v), want (1, nil)", v, err)
	}
}

func TestSendBatch(t *testing.T) {
	sender, receiver := pchan.New[int]()

	n, err := sender.SendBatch([]int{1, 2, 3})
	if err != nil || n != 3 {
		t.Fatalf("send_batch: got (%v, %v), want (3, nil)", n, err)
	}
	got := receiver.TryRecvBatch(8)
	want := []int{1, 2, 3}
	if len(got) != len(want) {
		t.Fatalf("try_recv_batch: got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("try_recv_batch: got %v, want %v", got, want)
		}
	}
}

func TestDisconnectAfterSendersDropped(t *testing.T) {
	sender, receiver := pchan.New[int]()
	sender.Close()

	_, err := receiver.Recv()
	if err != pchan.ErrDisconnected {
		t.Fatalf("recv after senders dropped: got %v, want ErrDisconnected", err)
	}
}

func TestDisconnectAfterReceiversDropped(t *testing.T) {
	sender, receiver := pchan.New[int]()
	receiver.Close()

	err := sender.Send(1)
	if err != pchan.ErrDisconnected {
		t.Fatalf("send after receivers dropped: got %v, want ErrDisconnected", err)
	}
}

func TestTryRecvEmptyWhileConnected(t *testing.T) {
	_, receiver := pchan.New[int]()

	_, err := receiver.TryRecv()
	if err != nil {
		t.Fatalf("try_recv on empty connected channel: got %v, want nil (zero value, no error)", err)
	}
}

func TestPeekDoesNotRemove(t *testing.T) {
	sender, receiver := pchan.New[string]()
	_ = sender.Send("a")

	v, ok := receiver.Peek()
	if !ok || v != "a" {
		t.Fatalf("peek: got (%v, %v), want (a, true)", v, ok)
	}
	v, err := receiver.Recv()
	if err != nil || v != "a" {
		t.Fatalf("recv after peek: got (%v, %v), want (a, nil)", v, err)
	}
}
