package format

import (
	"fmt"

	digest "github.com/opencontainers/go-digest"

	archexerrors "github.com/flaneur2020/archex/archex/errors"
)

// Method selects the transform a record's payload requires.
type Method byte

// These are the processing methods a record may declare.
const (
	MethodNone   Method = 0x00
	MethodZlib   Method = 0x01
	MethodLZMA   Method = 0x02
	MethodFernet Method = 0x03
)

var methodTags = map[Method]string{
	MethodNone:   "none",
	MethodZlib:   "zlib",
	MethodLZMA:   "lzma",
	MethodFernet: "fernet",
}

// String returns the tag written to the metadata ledger.
func (m Method) String() string {
	if tag, ok := methodTags[m]; ok {
		return tag
	}
	return fmt.Sprintf("unknown(0x%02x)", byte(m))
}

// Valid returns a nil err iff this Method is known.
func (m Method) Valid() error {
	if _, ok := methodTags[m]; ok {
		return nil
	}
	return archexerrors.ErrUnknownMethod.WithDetail("method", fmt.Sprintf("0x%02x", byte(m)))
}

// ParseMethodTag maps a ledger tag back to its Method.
func ParseMethodTag(tag string) (Method, error) {
	for m, t := range methodTags {
		if t == tag {
			return m, nil
		}
	}
	return 0, archexerrors.ErrUnknownMethod.WithDetail("tag", tag)
}

// FernetKeySize is the length of the url-safe base64 key that prefixes a
// Fernet payload.
const FernetKeySize = 44

// FileRecord is one decoded archive entry. Payload aliases the stream it was
// decoded from and is only valid while that stream is.
type FileRecord struct {
	Name          string
	OriginalSize  uint64
	ProcessedSize uint64
	Method        Method
	Payload       []byte
	// Offset is where the record starts in the stream.
	Offset int
}

// Digest returns the sha256 digest of the payload.
func (r *FileRecord) Digest() digest.Digest {
	return digest.FromBytes(r.Payload)
}

// SplitFernet splits a Fernet payload into its key segment and token.
// A payload of exactly FernetKeySize bytes yields an empty token.
func SplitFernet(payload []byte) (key, token []byte, err error) {
	if len(payload) < FernetKeySize {
		return nil, nil, archexerrors.ErrMalformedPayload.
			WithMessage("fernet payload too short for key").
			WithDetail("size", len(payload)).
			WithDetail("need", FernetKeySize)
	}
	return payload[:FernetKeySize], payload[FernetKeySize:], nil
}
