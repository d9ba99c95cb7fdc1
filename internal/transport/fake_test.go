package transport

import "testing"

func TestFakeTransportWriteAccumulates(t *testing.T) {
	f := NewFakeTransport(nil)
	if err := f.Write([]byte{1, 2, 3}, DefaultTimeout); err != nil {
		t.Fatal(err)
	}
	if err := f.Write([]byte{4, 5}, DefaultTimeout); err != nil {
		t.Fatal(err)
	}
	want := []byte{1, 2, 3, 4, 5}
	if len(f.Outbox) != len(want) {
		t.Fatalf("got %v, want %v", f.Outbox, want)
	}
	for i := range want {
		if f.Outbox[i] != want[i] {
			t.Fatalf("byte %d: got %d want %d", i, f.Outbox[i], want[i])
		}
	}
}

func TestFakeTransportReadExact(t *testing.T) {
	f := NewFakeTransport([]byte{1, 2, 3, 4, 5, 6, 7, 8, 9})
	got, err := f.Read(9, DefaultTimeout)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 9 {
		t.Fatalf("got %d bytes", len(got))
	}
}

func TestFakeTransportReadStopsOnShortRead(t *testing.T) {
	f := NewFakeTransport([]byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10})
	f.ShortReadAt = 0
	got, err := f.Read(10, DefaultTimeout)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) >= 10 {
		t.Fatalf("expected a short read, got %d bytes", len(got))
	}
}

func TestFakeTransportCloseIsObservable(t *testing.T) {
	f := NewFakeTransport(nil)
	if f.Closed() {
		t.Fatal("expected not closed initially")
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}
	if !f.Closed() {
		t.Fatal("expected closed after Close")
	}
}
