package codec

import (
	"reflect"
	"testing"
	"time"
)

// testCodecs is a map of codec name to factory function
var testCodecs = map[string]func() ICodec{
	"JSON": NewJSONCodec,
	"GOB":  NewGOBCodec,
}

type track struct {
	Name     string
	Path     string
	Size     int64
	Tags     []string
	AddedAt  time.Time
	Duration time.Duration
}

// testValues creates a set of values with different fields filled
func testValues() []track {
	return []track{
		{},
		{Name: "song.mp3", Path: "/music/song.mp3", Size: 1024},
		{
			Name:     "voice memo.wav",
			Path:     "/tmp/voice memo.wav",
			Size:     1 << 32,
			Tags:     []string{"memo", "2024"},
			AddedAt:  time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
			Duration: 3 * time.Minute,
		},
	}
}

// TestCodecRoundTrip tests that values can be encoded and decoded correctly
func TestCodecRoundTrip(t *testing.T) {
	for name, factory := range testCodecs {
		t.Run(name, func(t *testing.T) {
			c := factory()

			for i, v := range testValues() {
				data, err := c.Encode(v)
				if err != nil {
					t.Errorf("Failed to encode value %d: %v", i, err)
					continue
				}

				var result track
				if err := c.Decode(data, &result); err != nil {
					t.Errorf("Failed to decode value %d: %v", i, err)
					continue
				}

				if !reflect.DeepEqual(v, result) {
					t.Errorf("Value %d doesn't match after round trip:\nOriginal: %+v\nResult: %+v", i, v, result)
				}
			}
		})
	}
}

// TestCodecIndependentRecords makes sure every record decodes on its own
func TestCodecIndependentRecords(t *testing.T) {
	for name, factory := range testCodecs {
		t.Run(name, func(t *testing.T) {
			c := factory()
			first, _ := c.Encode(track{Name: "a"})
			second, _ := c.Encode(track{Name: "b"})

			var result track
			if err := c.Decode(second, &result); err != nil || result.Name != "b" {
				t.Errorf("Failed to decode the second record on its own: %v (%+v)", err, result)
			}
			if err := c.Decode(first, &result); err != nil || result.Name != "a" {
				t.Errorf("Failed to decode the first record on its own: %v (%+v)", err, result)
			}
		})
	}
}

func TestRawCodec(t *testing.T) {
	c := NewRawCodec()

	in := []byte("payload")
	data, err := c.Encode(in)
	if err != nil {
		t.Fatalf("Failed to encode: %v", err)
	}
	in[0] = 'X'

	var out []byte
	if err := c.Decode(data, &out); err != nil || string(out) != "payload" {
		t.Errorf("Expected payload, got %q (%v)", out, err)
	}

	var s string
	data, _ = c.Encode("text")
	if err := c.Decode(data, &s); err != nil || s != "text" {
		t.Errorf("Expected text, got %q (%v)", s, err)
	}

	if _, err := c.Encode(42); err == nil {
		t.Errorf("Expected an error for an int")
	}
	var n int
	if err := c.Decode(data, &n); err == nil {
		t.Errorf("Expected an error when decoding into an int")
	}
}

func TestByName(t *testing.T) {
	for _, name := range []string{"json", "gob", "raw"} {
		c, err := ByName(name)
		if err != nil {
			t.Fatalf("Codec %s not found: %v", name, err)
		}
		if c.Name() != name {
			t.Errorf("Expected codec %s, got %s", name, c.Name())
		}
	}
	if _, err := ByName("yaml"); err == nil {
		t.Errorf("Expected an error for an unknown codec")
	}
}

// BenchmarkEncode benchmarks encoding for all implementations
func BenchmarkEncode(b *testing.B) {
	v := testValues()[2]
	for name, factory := range testCodecs {
		b.Run(name, func(b *testing.B) {
			c := factory()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				if _, err := c.Encode(v); err != nil {
					b.Fatalf("Failed to encode: %v", err)
				}
			}
		})
	}
}

// BenchmarkDecode benchmarks decoding for all implementations
func BenchmarkDecode(b *testing.B) {
	v := testValues()[2]
	for name, factory := range testCodecs {
		b.Run(name, func(b *testing.B) {
			c := factory()
			data, _ := c.Encode(v)
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				var result track
				if err := c.Decode(data, &result); err != nil {
					b.Fatalf("Failed to decode: %v", err)
				}
			}
		})
	}
}
