// Package hasher implements the discovery worker's streaming content hash
// (spec.md §4.3 "Hasher contract"): fixed-size chunked reads, incremental
// progress, lowercase-hex SHA-256 digest.
package hasher

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"

	"github.com/gbolabs/photoindex/internal/cmn"
)

// ChunkSize sits within spec.md's stated target of 64 KiB - 1 MiB.
const ChunkSize = 256 * 1024

// Progress is emitted after each chunk.
type Progress struct {
	BytesRead  int64
	TotalBytes int64
}

// HashFile streams path in ChunkSize chunks, invoking onProgress after
// each chunk, and returns the lowercase-hex SHA-256 digest.
func HashFile(ctx context.Context, path string, onProgress func(Progress)) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", cmn.NewIO("hash_open_failed", "failed to open file for hashing", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", cmn.NewIO("hash_stat_failed", "failed to stat file for hashing", err)
	}

	h := sha256.New()
	buf := make([]byte, ChunkSize)
	var read int64
	for {
		select {
		case <-ctx.Done():
			return "", cmn.NewCancelled("hash_cancelled", "hashing cancelled")
		default:
		}

		n, err := f.Read(buf)
		if n > 0 {
			h.Write(buf[:n])
			read += int64(n)
			if onProgress != nil {
				onProgress(Progress{BytesRead: read, TotalBytes: info.Size()})
			}
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", cmn.NewIO("hash_read_failed", "failed to read file for hashing", err)
		}
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
