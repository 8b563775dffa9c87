package importer

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"time"
)

const (
	// DefaultMaxFileSize caps uploads before they are buffered.
	DefaultMaxFileSize = 50 * 1024 * 1024

	// DefaultHashTimeout bounds how long hashing a single upload may take.
	DefaultHashTimeout = 30 * time.Second

	hashChunkSize = 1 << 20
)

// ErrHashTimeout is returned when hashing exceeds its deadline.
var ErrHashTimeout = errors.New("file hashing timed out")

// FileTooLargeError reports an upload over the configured size limit.
type FileTooLargeError struct {
	Size  int64
	Limit int64
}

func (e *FileTooLargeError) Error() string {
	return fmt.Sprintf("file size %d exceeds limit %d", e.Size, e.Limit)
}

// hashAndBuffer streams the reader through SHA-256 while copying it into
// memory, checking the context between chunks so a slow or hostile stream
// cannot stall an import indefinitely. It returns the lowercase hex digest,
// the buffered content and its size.
func hashAndBuffer(ctx context.Context, r io.Reader, maxSize int64) (string, []byte, int64, error) {
	h := sha256.New()
	var buf bytes.Buffer
	chunk := make([]byte, hashChunkSize)
	var size int64

	for {
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return "", nil, 0, fmt.Errorf("%w after %d bytes", ErrHashTimeout, size)
			}
			return "", nil, 0, ctx.Err()
		default:
		}

		n, err := r.Read(chunk)
		if n > 0 {
			size += int64(n)
			if maxSize > 0 && size > maxSize {
				return "", nil, 0, &FileTooLargeError{Size: size, Limit: maxSize}
			}
			h.Write(chunk[:n])
			buf.Write(chunk[:n])
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", nil, 0, fmt.Errorf("read upload: %w", err)
		}
	}

	return hex.EncodeToString(h.Sum(nil)), buf.Bytes(), size, nil
}
