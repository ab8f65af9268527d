package storage

import (
	"bytes"
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"

	"podnotes/pkg/domain"
)

// TranscriptContentType is the content type of transcript blobs.
const TranscriptContentType = "application/gzip"

// TranscriptPath is the object path of an episode transcript.
func TranscriptPath(showID, episodeID string) string {
	return fmt.Sprintf("%s/%s.jsonl.gz", showID, episodeID)
}

// EncodeTranscriptFile serializes f as a single JSON line and gzips it.
func EncodeTranscriptFile(f domain.TranscriptFile) ([]byte, error) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if err := json.NewEncoder(zw).Encode(f); err != nil {
		return nil, fmt.Errorf("encode transcript file: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("compress transcript file: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeTranscriptFile reverses EncodeTranscriptFile.
func DecodeTranscriptFile(data []byte) (domain.TranscriptFile, error) {
	var f domain.TranscriptFile
	zr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return f, fmt.Errorf("open transcript file: %w", err)
	}
	defer zr.Close()

	raw, err := io.ReadAll(zr)
	if err != nil {
		return f, fmt.Errorf("decompress transcript file: %w", err)
	}
	if err := json.Unmarshal(raw, &f); err != nil {
		return f, fmt.Errorf("decode transcript file: %w", err)
	}
	return f, nil
}
