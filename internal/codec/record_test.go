package codec

import "testing"

func sampleDescriptor() Descriptor {
	return Descriptor{
		TotalSize: 8,
		Fields: []Field{
			{Name: "signature", Offset: 0, Width: 4, Kind: KindInt},
			{Name: "name", Offset: 4, Width: 4, Kind: KindString},
		},
	}
}

func TestDecodeEncodeRecordRoundTrip(t *testing.T) {
	d := sampleDescriptor()
	buf := make([]byte, 8)
	WriteInt(buf, 0, 4, 0xC0FFEEAD)
	WriteString(buf, 4, 4, "ab")

	rec, err := DecodeRecord(d, buf)
	if err != nil {
		t.Fatal(err)
	}
	if rec["signature"] != uint32(0xC0FFEEAD) {
		t.Errorf("signature: got %v", rec["signature"])
	}
	if rec["name"] != "ab" {
		t.Errorf("name: got %v", rec["name"])
	}

	out := make([]byte, 8)
	if err := EncodeRecord(d, out, rec, 0); err != nil {
		t.Fatal(err)
	}
	for i := range buf {
		if buf[i] != out[i] {
			t.Fatalf("byte %d: got 0x%02X, want 0x%02X", i, out[i], buf[i])
		}
	}
}

func TestDecodeRecordRejectsWrongTotalSize(t *testing.T) {
	d := sampleDescriptor()
	if _, err := DecodeRecord(d, make([]byte, 7)); err == nil {
		t.Error("expected error for mismatched total size")
	}
}

func TestEncodeRecordToleratesLargerBuffer(t *testing.T) {
	d := sampleDescriptor()
	buf := make([]byte, 32)
	value := map[string]any{"signature": uint32(1), "name": "x"}
	if err := EncodeRecord(d, buf, value, 10); err != nil {
		t.Fatal(err)
	}
	got, _ := ReadInt(buf, 10, 4)
	if got != 1 {
		t.Errorf("got %d", got)
	}
}

func TestEncodeRecordLeavesAbsentFieldsUntouched(t *testing.T) {
	d := sampleDescriptor()
	buf := make([]byte, 8)
	buf[0] = 0xAA
	value := map[string]any{"name": "zz"}
	if err := EncodeRecord(d, buf, value, 0); err != nil {
		t.Fatal(err)
	}
	if buf[0] != 0xAA {
		t.Errorf("signature bytes touched despite absent field: %v", buf[:4])
	}
}

func TestDecodeRecordNamesOffendingField(t *testing.T) {
	d := Descriptor{Fields: []Field{{Name: "bogus", Offset: 10, Width: 4, Kind: KindInt}}}
	_, err := DecodeRecord(d, make([]byte, 4))
	if err == nil {
		t.Fatal("expected error")
	}
	if !contains(err.Error(), "bogus") {
		t.Errorf("error %q does not name offending field", err.Error())
	}
}

func contains(s, substr string) bool {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return true
		}
	}
	return false
}
