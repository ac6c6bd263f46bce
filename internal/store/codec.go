package store

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/vmihailenco/msgpack/v5"
)

// maxRecordBytes guards against reading a corrupted length prefix as a huge
// allocation request.
const maxRecordBytes = 256 << 20 // 256 MiB

// encodeRecord msgpack-marshals v and writes it as a single length-prefixed
// record: a 4-byte big-endian length followed by that many bytes of msgpack
// payload. This is the on-disk shape of every blob this package persists —
// one record per file.
func encodeRecord(w io.Writer, v interface{}) error {
	payload, err := msgpack.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}
	if len(payload) > maxRecordBytes {
		return fmt.Errorf("record too large: %d bytes", len(payload))
	}
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(payload)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return fmt.Errorf("write record length: %w", err)
	}
	if _, err := w.Write(payload); err != nil {
		return fmt.Errorf("write record payload: %w", err)
	}
	return nil
}

// decodeRecord reads one length-prefixed record written by encodeRecord and
// unmarshals it into v. io.EOF (no bytes at all) is returned verbatim so
// callers can treat "no file" and "empty file" as default-on-missing.
func decodeRecord(r io.Reader, v interface{}) error {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		if err == io.ErrUnexpectedEOF {
			return fmt.Errorf("truncated record length prefix: %w", err)
		}
		return err
	}
	n := binary.BigEndian.Uint32(lenBuf[:])
	if n > maxRecordBytes {
		return fmt.Errorf("record length %d exceeds maximum %d", n, maxRecordBytes)
	}
	payload := make([]byte, n)
	if _, err := io.ReadFull(r, payload); err != nil {
		return fmt.Errorf("read record payload: %w", err)
	}
	if err := msgpack.Unmarshal(payload, v); err != nil {
		return fmt.Errorf("unmarshal record: %w", err)
	}
	return nil
}

// encodeRecordBytes is a convenience used by atomic saves: produce the full
// file content for a single record in one buffer so it can be written in one
// Fs call before the rename.
func encodeRecordBytes(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	if err := encodeRecord(&buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
