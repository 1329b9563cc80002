package ports

import (
	"net"
	"testing"
)

func TestFindSkipsReserved(t *testing.T) {
	a := &Allocator{Start: 15400, End: 15410}

	first, err := a.Find(nil)
	if err != nil {
		t.Fatalf("find failed: %v", err)
	}

	second, err := a.Find(map[int]bool{first: true})
	if err != nil {
		t.Fatalf("find failed: %v", err)
	}
	if second == first {
		t.Errorf("reserved port %d was handed out again", first)
	}
}

func TestFindSkipsBoundPort(t *testing.T) {
	a := &Allocator{Start: 15420, End: 15430}

	l, err := net.Listen("tcp", "127.0.0.1:15420")
	if err != nil {
		t.Skipf("cannot bind test port: %v", err)
	}
	defer l.Close()

	got, err := a.Find(nil)
	if err != nil {
		t.Fatalf("find failed: %v", err)
	}
	if got == 15420 {
		t.Error("bound port was handed out")
	}
}

func TestFindExhausted(t *testing.T) {
	a := &Allocator{Start: 15440, End: 15441}

	if _, err := a.Find(map[int]bool{15440: true, 15441: true}); err == nil {
		t.Fatal("expected error when the whole range is reserved")
	}
}

func TestIsAvailable(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("cannot bind: %v", err)
	}
	defer l.Close()
	port := l.Addr().(*net.TCPAddr).Port

	if IsAvailable(port) {
		t.Errorf("port %d is bound but reported available", port)
	}
}
