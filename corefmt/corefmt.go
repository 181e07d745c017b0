// Package corefmt defines the wire forms a generator state snapshot travels in.
//
// Snapshots are opaque byte blobs (see core.StateArray). Two transports:
//
//   - JSON/HTTP text: base64url without padding. URL-safe, so a snapshot can
//     ride in a dev-panel query string as well as in a JSON body.
//   - Binary files: uvarint length-prefixed frames written back to back. The
//     bank package stores snapshot libraries (.bin) this way; SplitBlobFrames
//     slices them out with zero copy so mmap-backed banks never materialize
//     the payloads.
package corefmt

import (
	"encoding/base64"
	"encoding/binary"
	"io"

	"github.com/zintix-labs/gridlab/errs"
)

// EncodeBase64URL renders b in unpadded base64url, the text-safe snapshot form.
func EncodeBase64URL(b []byte) string {
	return base64.RawURLEncoding.EncodeToString(b)
}

// DecodeBase64URL decodes text produced by EncodeBase64URL.
func DecodeBase64URL(s string) ([]byte, error) {
	b, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return nil, errs.Wrap(err, "decode base64url failed")
	}
	return b, nil
}

// WriteBlobFrame writes one length-prefixed frame into w:
//
//	frame := uvarint(len(payload)) || payload
//
// Frames concatenate into a bank file; SplitBlobFrames reads them back.
func WriteBlobFrame(w io.Writer, payload []byte) error {
	var hdr [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(hdr[:], uint64(len(payload)))
	if _, err := w.Write(hdr[:n]); err != nil {
		return errs.Wrap(err, "write blob frame header failed")
	}
	if _, err := w.Write(payload); err != nil {
		return errs.Wrap(err, "write blob frame payload failed")
	}
	return nil
}

// SplitBlobFrames splits concatenated length-prefixed frames.
//
// The returned frames are subslices of data, not copies. A caller that mmaps
// the underlying file must keep the mapping alive while the frames are in use.
func SplitBlobFrames(data []byte) ([][]byte, error) {
	frames := make([][]byte, 0, 64)
	off := 0
	for off < len(data) {
		ln, n := binary.Uvarint(data[off:])
		if n <= 0 {
			return nil, errs.Warnf("blob frame: invalid varint header at offset %d", off)
		}
		off += n
		if uint64(len(data)-off) < ln {
			return nil, errs.Warnf("blob frame: truncated payload at offset %d", off)
		}
		frames = append(frames, data[off:off+int(ln)])
		off += int(ln)
	}
	return frames, nil
}
