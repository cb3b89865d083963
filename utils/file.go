package utils

import (
	"fmt"
	"io"
	"mime/multipart"
)

// MaxImportBytes caps the size of a card-deck file.
const MaxImportBytes = 2 * 1024 * 1024

// ReadUploadedFile reads a multipart upload into memory, refusing files over MaxImportBytes.
func ReadUploadedFile(fileHeader *multipart.FileHeader) ([]byte, error) {
	if fileHeader.Size > MaxImportBytes {
		return nil, fmt.Errorf("file too large (max %d bytes)", MaxImportBytes)
	}

	file, err := fileHeader.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, MaxImportBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	if len(data) > MaxImportBytes {
		return nil, fmt.Errorf("file too large (max %d bytes)", MaxImportBytes)
	}
	return data, nil
}
