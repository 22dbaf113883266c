package checkpoint

import (
	"bytes"
	"context"
	"encoding/binary"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mdm-linkage/internal/faults"
	"github.com/mdm-linkage/internal/matrix"
)

func randomMatrix(seed int64, n int) matrix.Matrix {
	rng := rand.New(rand.NewSource(seed))
	m := matrix.New()
	for len(m) < n {
		lo := rng.Int63n(1_000_000) + 1
		hi := lo + rng.Int63n(5_000) + 1
		m[matrix.PairKey{Lo: lo, Hi: hi}] = rng.Float64()
	}
	return m
}

func TestRoundTrip(t *testing.T) {
	inputs := map[string]matrix.Matrix{
		"empty":  matrix.New(),
		"single": {{Lo: 1, Hi: 2}: 1},
		"edge scores": {
			{Lo: 1, Hi: 2}:             0,
			{Lo: 1, Hi: 3}:             math.Nextafter(1, 0),
			{Lo: 7, Hi: math.MaxInt64}: 0.1 + 0.2,
		},
		"random": randomMatrix(42, 5_000),
	}

	for _, codec := range []Codec{CodecNone, CodecLZ4, CodecZstd} {
		for name, in := range inputs {
			t.Run(codec.String()+"/"+name, func(t *testing.T) {
				var buf bytes.Buffer
				require.NoError(t, Encode(&buf, in, codec))

				out, err := Decode(&buf)
				require.NoError(t, err)
				assert.True(t, matrix.Equal(in, out), "decoded matrix differs")
			})
		}
	}
}

func TestCompressionShrinksRepetitiveInput(t *testing.T) {
	m := matrix.New()
	for i := int64(1); i <= 10_000; i++ {
		m[matrix.PairKey{Lo: i, Hi: i + 1}] = 1
	}

	var plain, packed bytes.Buffer
	require.NoError(t, Encode(&plain, m, CodecNone))
	require.NoError(t, Encode(&packed, m, CodecZstd))
	assert.Less(t, packed.Len(), plain.Len())
}

func TestDecodeCorrupt(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, randomMatrix(1, 100), CodecNone))
	good := buf.Bytes()

	flipped := append([]byte(nil), good...)
	flipped[len(flipped)/2] ^= 0xFF

	tests := map[string][]byte{
		"empty":     nil,
		"bad magic": append([]byte("XXXX"), good[4:]...),
		"truncated": good[:len(good)-10],
		"bit flip":  flipped,
	}
	for name, data := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Decode(bytes.NewReader(data))
			assert.ErrorIs(t, err, ErrCorrupt)
		})
	}
}

// withLength frames body under a header claiming size decoded bytes
func withLength(codec Codec, size uint64, body []byte) []byte {
	data := append([]byte(nil), magic[:]...)
	data = append(data, formatVersion, byte(codec))
	data = binary.AppendUvarint(data, size)
	data = append(data, body...)
	return append(data, 0, 0, 0, 0)
}

func TestDecodeOversizedLength(t *testing.T) {
	var zbuf bytes.Buffer
	require.NoError(t, Encode(&zbuf, randomMatrix(2, 50), CodecZstd))
	good := zbuf.Bytes()
	_, n := binary.Uvarint(good[headerSize:])
	zstdBody := good[headerSize+n : len(good)-4]

	garbage := bytes.Repeat([]byte{0x5a}, 16)
	tests := []struct {
		name string
		data []byte
	}{
		{"lz4 out of range", withLength(CodecLZ4, 1<<63, garbage)},
		{"zstd out of range", withLength(CodecZstd, 1<<63, garbage)},
		{"none out of range", withLength(CodecNone, 1<<63, garbage)},
		{"lz4 beyond block bound", withLength(CodecLZ4, 1<<30, garbage)},
		{"zstd garbage body", withLength(CodecZstd, 1<<30, garbage)},
		{"zstd frame size mismatch", withLength(CodecZstd, 1<<30, zstdBody)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var err error
			require.NotPanics(t, func() { _, err = Decode(bytes.NewReader(tt.data)) })
			assert.ErrorIs(t, err, ErrCorrupt)
		})
	}
}

func TestParseCodec(t *testing.T) {
	for name, want := range map[string]Codec{"": CodecNone, "none": CodecNone, "LZ4": CodecLZ4, " zstd ": CodecZstd} {
		got, err := ParseCodec(name)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseCodec("gzip")
	assert.Error(t, err)
}

func TestFileStore(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "names.bin")
	in := randomMatrix(9, 1_000)

	for _, codec := range []Codec{CodecNone, CodecLZ4, CodecZstd} {
		store := NewFileStore(codec)
		require.NoError(t, store.Save(ctx, path, in))

		out, err := store.Load(ctx, path)
		require.NoError(t, err)
		assert.True(t, matrix.Equal(in, out), codec.String())
	}

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temporary files left behind")
}

func TestFileStoreErrors(t *testing.T) {
	ctx := context.Background()
	store := NewFileStore(CodecNone)

	_, err := store.Load(ctx, filepath.Join(t.TempDir(), "missing.bin"))
	assert.ErrorIs(t, err, faults.ErrResource)

	garbage := filepath.Join(t.TempDir(), "garbage.bin")
	require.NoError(t, os.WriteFile(garbage, []byte("not a checkpoint"), 0o644))
	_, err = store.Load(ctx, garbage)
	assert.ErrorIs(t, err, faults.ErrResource)
	assert.ErrorIs(t, err, ErrCorrupt)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	assert.ErrorIs(t, store.Save(cancelled, garbage, matrix.New()), faults.ErrResource)
}

func TestOpenFileBackend(t *testing.T) {
	store, closeFn, err := Open(context.Background(), Options{Backend: "file", Codec: "zstd"})
	require.NoError(t, err)
	defer closeFn()
	assert.IsType(t, &FileStore{}, store)

	_, _, err = Open(context.Background(), Options{Backend: "tape"})
	assert.Error(t, err)

	_, _, err = Open(context.Background(), Options{Codec: "gzip"})
	assert.Error(t, err)
}

func TestS3Key(t *testing.T) {
	s := NewS3Store(nil, "bucket", "runs/2026", CodecZstd)
	assert.Equal(t, "runs/2026/names.bin", s.key("names.bin"))

	s = NewS3Store(nil, "bucket", "", CodecZstd)
	assert.Equal(t, "names.bin", s.key("names.bin"))
}
