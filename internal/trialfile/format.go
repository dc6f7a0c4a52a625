package trialfile

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Format identifies an on-disk layout.
type Format int

// Format constants.
const (
	FormatV1    Format = 1
	FormatV2    Format = 2
	FormatArrow Format = 3
)

// MaxDecompressedSize is the maximum allowed size of a decompressed V2 payload (200MB).
const MaxDecompressedSize = 200 * 1024 * 1024

// arrowMagic opens every Arrow IPC file.
const arrowMagic = "ARROW1"

// String returns the name accepted by ParseFormat.
func (f Format) String() string {
	switch f {
	case FormatV1:
		return "json"
	case FormatV2:
		return "gzip"
	case FormatArrow:
		return "arrow"
	default:
		return fmt.Sprintf("format(%d)", int(f))
	}
}

// ParseFormat maps a format name to a Format.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "json", "v1":
		return FormatV1, nil
	case "gzip", "v2":
		return FormatV2, nil
	case "arrow", "ipc":
		return FormatArrow, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownFormat, s)
}

// Header is the plain-text first line of a V2 file.
type Header struct {
	Version    Format            `json:"version"`
	ID         string            `json:"id"`
	CreatedAt  time.Time         `json:"created_at"`
	Checksum   string            `json:"checksum"`
	Kind       string            `json:"kind"`
	TrialCount int               `json:"trial_count"`
	Configs    int               `json:"config_count"`
	Compressed bool              `json:"compressed"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

func headerFor(r *Record, version Format) Header {
	return Header{
		Version:    version,
		ID:         r.ID,
		CreatedAt:  r.CreatedAt,
		Kind:       r.Kind.String(),
		TrialCount: len(r.StimulusSet),
		Configs:    len(r.Configs),
	}
}

// DetectFormat reads the first bytes of a file to determine its layout.
// Arrow files start with the IPC magic, V2 files with a header line carrying
// "version":2, and V1 files are plain JSON starting with '{'.
func DetectFormat(path string) (Format, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("opening file: %w", err)
	}
	defer f.Close()

	magic := make([]byte, len(arrowMagic))
	n, err := io.ReadFull(f, magic)
	if err == nil && string(magic) == arrowMagic {
		return FormatArrow, nil
	}
	if n == 0 {
		return 0, fmt.Errorf("file is empty")
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return 0, fmt.Errorf("rewinding file: %w", err)
	}

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), MaxDecompressedSize)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return 0, fmt.Errorf("reading first line: %w", err)
		}
		return 0, fmt.Errorf("file is empty")
	}

	firstLine := strings.TrimSpace(scanner.Text())
	if firstLine == "" {
		return 0, fmt.Errorf("first line is empty")
	}

	var header Header
	if err := json.Unmarshal([]byte(firstLine), &header); err == nil {
		if header.Version == FormatV2 {
			return FormatV2, nil
		}
	}

	if firstLine[0] == '{' {
		return FormatV1, nil
	}

	return 0, ErrUnknownFormat
}

// WriteV1 writes r as indented JSON.
func WriteV1(path string, r *Record) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("creating directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("creating file: %w", err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(r); err != nil {
		return fmt.Errorf("encoding trials: %w", err)
	}
	return nil
}

// ReadV1 reads a plain JSON file.
func ReadV1(path string) (*Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading file: %w", err)
	}

	var r Record
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("parsing trials: %w", err)
	}
	return &r, nil
}

// WriteV2 writes r as a header line followed by a gzip-compressed payload.
// level is a compress/gzip level.
func WriteV2(path string, r *Record, level int, metadata map[string]string) (*Header, error) {
	payload, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("marshaling payload: %w", err)
	}

	var compressed bytes.Buffer
	gzw, err := gzip.NewWriterLevel(&compressed, level)
	if err != nil {
		return nil, fmt.Errorf("creating gzip writer: %w", err)
	}
	if _, err := gzw.Write(payload); err != nil {
		return nil, fmt.Errorf("compressing payload: %w", err)
	}
	if err := gzw.Close(); err != nil {
		return nil, fmt.Errorf("closing gzip writer: %w", err)
	}

	header := headerFor(r, FormatV2)
	header.Checksum = checksum(compressed.Bytes())
	header.Compressed = true
	header.Metadata = metadata

	headerBytes, err := json.Marshal(header)
	if err != nil {
		return nil, fmt.Errorf("marshaling header: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("creating directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return nil, fmt.Errorf("creating file: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(headerBytes, '\n')); err != nil {
		return nil, fmt.Errorf("writing header: %w", err)
	}
	if _, err := f.Write(compressed.Bytes()); err != nil {
		return nil, fmt.Errorf("writing compressed payload: %w", err)
	}

	return &header, nil
}

// ReadV2 reads a V2 file, verifies the checksum, and decompresses the payload.
func ReadV2(path string) (*Record, error) {
	header, payload, err := readV2Parts(path)
	if err != nil {
		return nil, err
	}
	if err := verify(header, payload); err != nil {
		return nil, err
	}

	gzr, err := gzip.NewReader(bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("creating gzip reader: %w", err)
	}
	defer gzr.Close()

	limitedReader := io.LimitReader(gzr, MaxDecompressedSize+1)
	decompressed, err := io.ReadAll(limitedReader)
	if err != nil {
		return nil, fmt.Errorf("decompressing payload: %w", err)
	}
	if int64(len(decompressed)) > MaxDecompressedSize {
		return nil, fmt.Errorf("decompressed payload exceeds maximum size of %d bytes", MaxDecompressedSize)
	}

	var r Record
	if err := json.Unmarshal(decompressed, &r); err != nil {
		return nil, fmt.Errorf("parsing trials: %w", err)
	}
	return &r, nil
}

// ReadV2Header reads only the header line from a V2 file without decompressing.
func ReadV2Header(path string) (*Header, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening file: %w", err)
	}
	defer f.Close()

	return readHeader(bufio.NewReader(f))
}

// VerifyChecksum checks the integrity of a V2 file without decompressing it.
func VerifyChecksum(path string) error {
	header, payload, err := readV2Parts(path)
	if err != nil {
		return err
	}
	return verify(header, payload)
}

func readV2Parts(path string) (*Header, []byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("opening file: %w", err)
	}
	defer f.Close()

	reader := bufio.NewReader(f)
	header, err := readHeader(reader)
	if err != nil {
		return nil, nil, err
	}

	payload, err := io.ReadAll(reader)
	if err != nil {
		return nil, nil, fmt.Errorf("reading compressed payload: %w", err)
	}
	return header, payload, nil
}

func readHeader(reader *bufio.Reader) (*Header, error) {
	headerLine, err := reader.ReadBytes('\n')
	if err != nil {
		return nil, fmt.Errorf("reading header line: %w", err)
	}

	var header Header
	if err := json.Unmarshal(bytes.TrimSpace(headerLine), &header); err != nil {
		return nil, fmt.Errorf("parsing header: %w", err)
	}
	if header.Version != FormatV2 {
		return nil, fmt.Errorf("expected V2 format, got version %d", header.Version)
	}
	return &header, nil
}

func verify(header *Header, payload []byte) error {
	if actual := checksum(payload); actual != header.Checksum {
		return fmt.Errorf("%w: expected %s, got %s", ErrChecksum, header.Checksum, actual)
	}
	return nil
}

func checksum(data []byte) string {
	hash := sha256.Sum256(data)
	return "sha256:" + hex.EncodeToString(hash[:])
}
