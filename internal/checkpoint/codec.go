// Package checkpoint persists similarity matrices between pipeline stages.
//
// The binary form written by the file and s3 backends is:
//
//	[magic "MDMX"][version uint8][codec uint8][payload length uvarint]
//	[body, compressed with codec][crc32 (IEEE) of the payload, little endian]
//
// The payload is the pair count followed by the keys in (Lo, Hi) order, each
// as uvarint(Lo - previous Lo) and uvarint(Hi - Lo), then the score as raw
// IEEE-754 bits.
package checkpoint

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"math"
	"strings"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"github.com/mdm-linkage/internal/matrix"
)

const (
	formatVersion uint8 = 1
	headerSize          = 6
)

var magic = [4]byte{'M', 'D', 'M', 'X'}

// Codec selects the body compression
type Codec uint8

const (
	CodecNone Codec = 0
	CodecLZ4  Codec = 1
	CodecZstd Codec = 2
)

func (c Codec) String() string {
	switch c {
	case CodecNone:
		return "none"
	case CodecLZ4:
		return "lz4"
	case CodecZstd:
		return "zstd"
	default:
		return fmt.Sprintf("codec(%d)", uint8(c))
	}
}

// ParseCodec maps a configured codec name to a Codec
func ParseCodec(name string) (Codec, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "none", "":
		return CodecNone, nil
	case "lz4":
		return CodecLZ4, nil
	case "zstd":
		return CodecZstd, nil
	default:
		return 0, fmt.Errorf("unknown checkpoint codec %q", name)
	}
}

// ErrCorrupt is returned for checkpoints that fail header or checksum checks
var ErrCorrupt = errors.New("corrupt checkpoint")

var (
	zstdEncoderPool sync.Pool
	zstdDecoderPool sync.Pool
)

func getZstdEncoder() (*zstd.Encoder, error) {
	if v := zstdEncoderPool.Get(); v != nil {
		return v.(*zstd.Encoder), nil
	}
	return zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
}

func getZstdDecoder() (*zstd.Decoder, error) {
	if v := zstdDecoderPool.Get(); v != nil {
		return v.(*zstd.Decoder), nil
	}
	return zstd.NewReader(nil)
}

// Encode writes m to w
func Encode(w io.Writer, m matrix.Matrix, codec Codec) error {
	payload := encodePayload(m)

	body, used, err := compress(payload, codec)
	if err != nil {
		return err
	}

	header := make([]byte, 0, headerSize+binary.MaxVarintLen64)
	header = append(header, magic[:]...)
	header = append(header, formatVersion, byte(used))
	header = binary.AppendUvarint(header, uint64(len(payload)))

	var trailer [4]byte
	binary.LittleEndian.PutUint32(trailer[:], crc32.ChecksumIEEE(payload))

	bw := bufio.NewWriter(w)
	for _, part := range [][]byte{header, body, trailer[:]} {
		if _, err := bw.Write(part); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// Decode reads a matrix written by Encode
func Decode(r io.Reader) (matrix.Matrix, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	if len(data) < headerSize+1+4 || !bytes.Equal(data[:4], magic[:]) {
		return nil, fmt.Errorf("%w: bad header", ErrCorrupt)
	}
	if data[4] != formatVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrCorrupt, data[4])
	}
	codec := Codec(data[5])

	size, n := binary.Uvarint(data[headerSize:])
	if n <= 0 || headerSize+n > len(data)-4 {
		return nil, fmt.Errorf("%w: bad payload length", ErrCorrupt)
	}
	body := data[headerSize+n : len(data)-4]
	sum := binary.LittleEndian.Uint32(data[len(data)-4:])

	if err := checkPayloadSize(size, body, codec); err != nil {
		return nil, err
	}
	payload, err := decompress(body, codec, int(size))
	if err != nil {
		return nil, err
	}
	if crc32.ChecksumIEEE(payload) != sum {
		return nil, fmt.Errorf("%w: checksum mismatch", ErrCorrupt)
	}
	return decodePayload(payload)
}

// maxPayload bounds the decoded size of a single checkpoint
const maxPayload = 1 << 40

// lz4 blocks expand at most 255 bytes per input byte
const lz4MaxRatio = 255

// checkPayloadSize rejects header sizes the body cannot produce, before
// any buffer is sized from them
func checkPayloadSize(size uint64, body []byte, codec Codec) error {
	if size > maxPayload || size > math.MaxInt {
		return fmt.Errorf("%w: payload length %d out of range", ErrCorrupt, size)
	}
	switch codec {
	case CodecLZ4:
		if size > uint64(len(body))*lz4MaxRatio+16 {
			return fmt.Errorf("%w: payload length %d exceeds lz4 bound of %d body bytes", ErrCorrupt, size, len(body))
		}
	case CodecZstd:
		var h zstd.Header
		if err := h.Decode(body); err != nil {
			return fmt.Errorf("%w: %v", ErrCorrupt, err)
		}
		if h.HasFCS && h.FrameContentSize != size {
			return fmt.Errorf("%w: zstd frame holds %d bytes, header says %d", ErrCorrupt, h.FrameContentSize, size)
		}
	}
	return nil
}

func encodePayload(m matrix.Matrix) []byte {
	keys := m.Keys()
	buf := make([]byte, 0, binary.MaxVarintLen64+len(keys)*12)
	buf = binary.AppendUvarint(buf, uint64(len(keys)))

	var prevLo int64
	for _, k := range keys {
		buf = binary.AppendUvarint(buf, uint64(k.Lo-prevLo))
		buf = binary.AppendUvarint(buf, uint64(k.Hi-k.Lo))
		buf = binary.LittleEndian.AppendUint64(buf, math.Float64bits(m[k]))
		prevLo = k.Lo
	}
	return buf
}

func decodePayload(buf []byte) (matrix.Matrix, error) {
	count, n := binary.Uvarint(buf)
	if n <= 0 {
		return nil, fmt.Errorf("%w: bad pair count", ErrCorrupt)
	}
	buf = buf[n:]
	// every pair takes at least 10 bytes
	if count > uint64(len(buf)/10) {
		return nil, fmt.Errorf("%w: pair count %d exceeds payload", ErrCorrupt, count)
	}

	m := make(matrix.Matrix, count)
	var lo int64
	for i := uint64(0); i < count; i++ {
		dLo, n := binary.Uvarint(buf)
		if n <= 0 {
			return nil, fmt.Errorf("%w: truncated key %d", ErrCorrupt, i)
		}
		buf = buf[n:]
		dHi, n := binary.Uvarint(buf)
		if n <= 0 || dHi == 0 {
			return nil, fmt.Errorf("%w: truncated key %d", ErrCorrupt, i)
		}
		buf = buf[n:]
		if len(buf) < 8 {
			return nil, fmt.Errorf("%w: truncated score %d", ErrCorrupt, i)
		}
		lo += int64(dLo)
		key := matrix.PairKey{Lo: lo, Hi: lo + int64(dHi)}
		m[key] = math.Float64frombits(binary.LittleEndian.Uint64(buf))
		buf = buf[8:]
	}
	if len(buf) != 0 {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrCorrupt, len(buf))
	}
	return m, nil
}

// compress returns the body and the codec actually applied. Input lz4 cannot
// shrink is stored uncompressed.
func compress(payload []byte, codec Codec) ([]byte, Codec, error) {
	switch codec {
	case CodecNone:
		return payload, CodecNone, nil
	case CodecLZ4:
		dst := make([]byte, lz4.CompressBlockBound(len(payload)))
		n, err := lz4.CompressBlock(payload, dst, nil)
		if err != nil {
			return nil, 0, err
		}
		if n == 0 {
			return payload, CodecNone, nil
		}
		return dst[:n], CodecLZ4, nil
	case CodecZstd:
		enc, err := getZstdEncoder()
		if err != nil {
			return nil, 0, err
		}
		defer zstdEncoderPool.Put(enc)
		return enc.EncodeAll(payload, nil), CodecZstd, nil
	default:
		return nil, 0, fmt.Errorf("unknown checkpoint codec %d", codec)
	}
}

func decompress(body []byte, codec Codec, size int) ([]byte, error) {
	switch codec {
	case CodecNone:
		if len(body) != size {
			return nil, fmt.Errorf("%w: payload is %d bytes, header says %d", ErrCorrupt, len(body), size)
		}
		return body, nil
	case CodecLZ4:
		out := make([]byte, size)
		n, err := lz4.UncompressBlock(body, out)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
		}
		if n != size {
			return nil, fmt.Errorf("%w: payload is %d bytes, header says %d", ErrCorrupt, n, size)
		}
		return out, nil
	case CodecZstd:
		dec, err := getZstdDecoder()
		if err != nil {
			return nil, err
		}
		defer zstdDecoderPool.Put(dec)
		// the buffer grows with the decoded frames; the size is only a hint
		hint := size
		if limit := len(body) * 16; hint > limit {
			hint = limit
		}
		out, err := dec.DecodeAll(body, make([]byte, 0, hint))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
		}
		if len(out) != size {
			return nil, fmt.Errorf("%w: payload is %d bytes, header says %d", ErrCorrupt, len(out), size)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: unknown codec %d", ErrCorrupt, codec)
	}
}
