package websocket

import (
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/flate"
)

// deflateCodec implements RFC 7692 permessage-deflate without context
// takeover: each message is compressed/decompressed independently using
// klauspost/compress/flate, the pack's faster drop-in for compress/flate.
type deflateCodec struct{}

func newDeflateCodec() *deflateCodec { return &deflateCodec{} }

// deflateTail is the 4-byte trailer (00 00 ff ff) RFC 7692 §7.2.1 says a
// sender must strip from the end of the raw DEFLATE stream before
// transmitting, and a receiver must re-append before decompressing.
var deflateTail = []byte{0x00, 0x00, 0xff, 0xff}

func (d *deflateCodec) compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	fw, err := flate.NewWriter(&buf, flate.BestSpeed)
	if err != nil {
		return nil, fmt.Errorf("websocket: deflate writer: %w", err)
	}
	if _, err := fw.Write(data); err != nil {
		return nil, err
	}
	if err := fw.Flush(); err != nil {
		return nil, err
	}
	out := buf.Bytes()
	out = bytes.TrimSuffix(out, deflateTail)
	return out, nil
}

func (d *deflateCodec) decompress(data []byte) ([]byte, error) {
	data = append(append([]byte(nil), data...), deflateTail...)
	fr := flate.NewReader(bytes.NewReader(data))
	defer fr.Close()
	out, err := io.ReadAll(fr)
	if err != nil {
		return nil, fmt.Errorf("websocket: deflate decompress: %w", err)
	}
	return out, nil
}
