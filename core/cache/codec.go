package cache

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/cespare/xxhash/v2"
	"github.com/klauspost/compress/zstd"
)

// codec turns values into the string payloads kept by the store.
// Compressed payloads are zstd frames in standard base64.
type codec struct {
	enc *zstd.Encoder
	dec *zstd.Decoder
}

func newCodec() (*codec, error) {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		_ = enc.Close()
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}
	return &codec{enc: enc, dec: dec}, nil
}

func (c *codec) encode(v any, compress bool) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	if !compress {
		return string(raw), nil
	}
	return base64.StdEncoding.EncodeToString(c.enc.EncodeAll(raw, nil)), nil
}

func (c *codec) decode(payload string, compressed bool, out any) error {
	raw := []byte(payload)
	if compressed {
		frame, err := base64.StdEncoding.DecodeString(payload)
		if err != nil {
			return fmt.Errorf("decode base64: %w", err)
		}
		if raw, err = c.dec.DecodeAll(frame, nil); err != nil {
			return fmt.Errorf("decompress: %w", err)
		}
	}
	return json.Unmarshal(raw, out)
}

func (c *codec) close() {
	_ = c.enc.Close()
	c.dec.Close()
}

// checksum returns the hex xxhash64 of a stored payload.
func checksum(payload string) string {
	return strconv.FormatUint(xxhash.Sum64String(payload), 16)
}
