package codec

import (
	"bytes"
	"errors"
	"testing"
)

type sample struct {
	Name  string `json:"name" msgpack:"name"`
	Score int    `json:"score" msgpack:"score"`
	Blob  []byte `json:"blob" msgpack:"blob"`
}

func TestCodecsRoundTrip(t *testing.T) {
	in := sample{Name: "hello", Score: 42, Blob: bytes.Repeat([]byte("abcd"), 512)}
	for _, c := range []Codec{Msgpack{}, JSON{}, Compressed(Msgpack{}), Compressed(JSON{})} {
		data, err := c.Marshal(in)
		if err != nil {
			t.Fatalf("%s marshal: %v", c.Name(), err)
		}
		var out sample
		if err := c.Unmarshal(data, &out); err != nil {
			t.Fatalf("%s unmarshal: %v", c.Name(), err)
		}
		if out.Name != in.Name || out.Score != in.Score || !bytes.Equal(out.Blob, in.Blob) {
			t.Fatalf("%s round trip mismatch: %+v", c.Name(), out)
		}
	}
}

func TestCompressedShrinksRepetitivePayload(t *testing.T) {
	in := sample{Blob: bytes.Repeat([]byte{7}, 4096)}
	plain, _ := Msgpack{}.Marshal(in)
	packed, err := Compressed(Msgpack{}).Marshal(in)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if len(packed) >= len(plain) {
		t.Fatalf("compressed size %d not smaller than %d", len(packed), len(plain))
	}
	if packed[0] != flagLZ4 {
		t.Fatalf("flag = %d, want lz4", packed[0])
	}
}

func TestCompressedStoresTinyPayloadRaw(t *testing.T) {
	packed, err := Compressed(Msgpack{}).Marshal(1)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if packed[0] != flagRaw {
		t.Fatalf("flag = %d, want raw", packed[0])
	}
	var n int
	if err := Compressed(Msgpack{}).Unmarshal(packed, &n); err != nil || n != 1 {
		t.Fatalf("unmarshal = %d, %v", n, err)
	}
}

func TestCompressedRejectsCorruptInput(t *testing.T) {
	var v sample
	for _, data := range [][]byte{nil, {1, 2}, {9, 0, 0, 0, 0}} {
		if err := Compressed(Msgpack{}).Unmarshal(data, &v); !errors.Is(err, ErrCorrupt) {
			t.Fatalf("Unmarshal(%v) err = %v, want ErrCorrupt", data, err)
		}
	}
}

func TestByName(t *testing.T) {
	cases := []struct {
		name     string
		compress bool
		want     string
	}{
		{"", false, "msgpack"},
		{"msgpack", true, "msgpack+lz4"},
		{"json", false, "json"},
	}
	for _, tc := range cases {
		c, err := ByName(tc.name, tc.compress)
		if err != nil {
			t.Fatalf("ByName(%q): %v", tc.name, err)
		}
		if c.Name() != tc.want {
			t.Fatalf("ByName(%q).Name() = %q, want %q", tc.name, c.Name(), tc.want)
		}
	}
	if _, err := ByName("gob", false); !errors.Is(err, ErrUnknownCodec) {
		t.Fatalf("ByName(gob) err = %v", err)
	}
}
