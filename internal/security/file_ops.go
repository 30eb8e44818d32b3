// internal/security/file_ops.go
package security

import (
	"crypto/rand"
	"fmt"
	"io"
	"os"
	"path/filepath"

	kerrors "krypton.module/internal/errors"
)

// SecureFileDelete overwrites a file with random data three times before
// removing it. A missing file is not an error.
func SecureFileDelete(filePath string) error {
	fileInfo, err := os.Stat(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return kerrors.FromOSError(err, filePath)
	}

	fileSize := fileInfo.Size()
	if fileSize == 0 {
		return os.Remove(filePath)
	}

	file, err := os.OpenFile(filePath, os.O_WRONLY, 0)
	if err != nil {
		return kerrors.FromOSError(err, filePath)
	}
	defer file.Close()

	const overwritePasses = 3
	buffer := make([]byte, min(4096, int(fileSize)))

	for pass := 0; pass < overwritePasses; pass++ {
		if _, err := file.Seek(0, io.SeekStart); err != nil {
			return kerrors.NewFileSystemError("seek", filePath, err)
		}

		remaining := fileSize
		for remaining > 0 {
			chunkSize := min(int64(len(buffer)), remaining)
			randomChunk := buffer[:chunkSize]
			if _, err := rand.Read(randomChunk); err != nil {
				return kerrors.NewFileSystemError("overwrite", filePath, err)
			}
			if _, err := file.Write(randomChunk); err != nil {
				return kerrors.NewFileSystemError("overwrite", filePath, err)
			}
			remaining -= chunkSize
		}

		if err := file.Sync(); err != nil {
			return kerrors.NewFileSystemError("sync", filePath, err)
		}
	}

	file.Close()
	if err := os.Remove(filePath); err != nil {
		return kerrors.NewFileSystemError("delete", filePath, err)
	}
	return nil
}

// SecureCreateTempFile creates a 0600 temporary file in dir (the system temp
// dir when empty) holding content.
func SecureCreateTempFile(dir, pattern string, content []byte) (string, error) {
	tempFile, err := os.CreateTemp(dir, pattern)
	if err != nil {
		return "", kerrors.NewFileSystemError("create temp file", filepath.Join(dir, pattern), err)
	}
	filePath := tempFile.Name()

	fail := func(op string, err error) (string, error) {
		tempFile.Close()
		os.Remove(filePath)
		return "", kerrors.NewFileSystemError(op, filePath, err)
	}

	if err := tempFile.Chmod(0600); err != nil {
		return fail("chmod", err)
	}
	if len(content) > 0 {
		if _, err := tempFile.Write(content); err != nil {
			return fail("write", err)
		}
	}
	if err := tempFile.Sync(); err != nil {
		return fail("sync", err)
	}
	if err := tempFile.Close(); err != nil {
		os.Remove(filePath)
		return "", fmt.Errorf("failed to close temp file: %w", err)
	}
	return filePath, nil
}
