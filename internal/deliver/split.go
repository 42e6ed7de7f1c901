package deliver

import (
	"fmt"
	"io"
	"os"

	apperrors "github.com/hookdump/hookdump/internal/errors"
)

// splitBufferSize bounds the splitter's peak memory regardless of source
// file size: each chunk is copied through this one buffer, trading extra
// read syscalls for an O(1) memory ceiling on multi-gigabyte artifacts.
const splitBufferSize = 64 * 1024

// Split cuts sourcePath into sequential chunks of at most maxChunkBytes
// and returns their paths in order. A source that already fits is
// returned as-is without copying. Chunk paths derive from the source path
// (".part1", ".part2", ...), so re-splitting the same path overwrites the
// previous parts.
//
// On failure, chunks written so far stay on disk; the caller owns
// cleanup. The source file is never deleted.
func Split(sourcePath string, maxChunkBytes int64) ([]string, error) {
	if maxChunkBytes <= 0 {
		return nil, apperrors.New(apperrors.TypeConfig, "max chunk size must be positive", "Set webhook.max_file_bytes to the platform's upload ceiling.")
	}

	fi, err := os.Stat(sourcePath)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.TypeResource, "failed to stat source file", "Ensure the artifact exists and is readable.")
	}
	fileSize := fi.Size()

	if fileSize <= maxChunkBytes {
		return []string{sourcePath}, nil
	}

	src, err := os.Open(sourcePath)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.TypeResource, "failed to open source file", "Ensure the artifact exists and is readable.")
	}
	defer src.Close()

	numChunks := (fileSize + maxChunkBytes - 1) / maxChunkBytes
	paths := make([]string, 0, numChunks)
	buf := make([]byte, splitBufferSize)

	var start int64
	for i := int64(0); i < numChunks; i++ {
		length := maxChunkBytes
		if rem := fileSize - start; rem < length {
			length = rem
		}

		partPath := fmt.Sprintf("%s.part%d", sourcePath, i+1)
		if err := writeChunk(src, partPath, length, buf); err != nil {
			return nil, err
		}

		paths = append(paths, partPath)
		start += length
	}

	return paths, nil
}

// writeChunk copies exactly length bytes from src into a new file at path.
// A short read means the source shrank underneath us, which is surfaced
// as an error rather than silently producing an undersized chunk.
func writeChunk(src io.Reader, path string, length int64, buf []byte) error {
	dst, err := os.Create(path)
	if err != nil {
		return apperrors.Wrap(err, apperrors.TypeResource, "failed to create chunk file", "Check free disk space and directory permissions.")
	}

	var written int64
	for written < length {
		toRead := int64(len(buf))
		if rem := length - written; rem < toRead {
			toRead = rem
		}

		n, rerr := src.Read(buf[:toRead])
		if n > 0 {
			if _, werr := dst.Write(buf[:n]); werr != nil {
				dst.Close()
				return apperrors.Wrap(werr, apperrors.TypeResource, "failed to write chunk", "Check free disk space.")
			}
			written += int64(n)
		}
		if rerr != nil {
			if rerr == io.EOF {
				break
			}
			dst.Close()
			return apperrors.Wrap(rerr, apperrors.TypeResource, "failed to read source file", "The artifact may have been removed mid-split.")
		}
	}

	if written != length {
		dst.Close()
		return apperrors.New(apperrors.TypeResource,
			fmt.Sprintf("source file truncated mid-split: wanted %d bytes for %s, got %d", length, path, written),
			"The artifact changed while being split; re-run the backup.")
	}

	return dst.Close()
}
