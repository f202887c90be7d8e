// Package transform is the payload transform service: it turns a record's
// processed payload back into the original file content named by its method.
package transform

import (
	"context"

	"github.com/flaneur2020/archex/archex/format"
)

// Request describes one record to transform.
type Request struct {
	Name   string
	Method format.Method
	// Key is the Fernet key segment; nil for every other method.
	Key []byte
	// Data is the payload, or the Fernet token when Key is set.
	Data         []byte
	DestPath     string
	OriginalSize uint64
}

// Result reports a completed transform.
type Result struct {
	Written int64
}

// Transformer performs the transform for one record and writes DestPath.
// Implementations must be safe for concurrent use when the extractor runs
// with more than one worker.
type Transformer interface {
	Transform(ctx context.Context, req *Request) (*Result, error)
}

// NewRequest builds the request for a decoded record, splitting the Fernet
// key segment from its token.
func NewRequest(rec *format.FileRecord, destPath string) (*Request, error) {
	req := &Request{
		Name:         rec.Name,
		Method:       rec.Method,
		Data:         rec.Payload,
		DestPath:     destPath,
		OriginalSize: rec.OriginalSize,
	}
	if rec.Method == format.MethodFernet {
		key, token, err := format.SplitFernet(rec.Payload)
		if err != nil {
			return nil, err
		}
		req.Key = key
		req.Data = token
	}
	return req, nil
}
