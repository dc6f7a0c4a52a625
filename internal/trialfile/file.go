package trialfile

import (
	"compress/gzip"
	"fmt"

	"github.com/nvandessel/psiz/internal/trials"
)

// SaveOptions controls Save. A zero Level selects gzip.DefaultCompression;
// Metadata is only written by the V2 layout.
type SaveOptions struct {
	Format   Format
	Level    int
	Metadata map[string]string
}

// Save writes t to path in the requested layout and returns the record that
// was written.
func Save(path string, t trials.Trials, opts SaveOptions) (*Record, error) {
	if t == nil {
		return nil, fmt.Errorf("saving trials: nil container")
	}
	r := NewRecord(t)
	if err := WriteRecord(path, r, opts); err != nil {
		return nil, err
	}
	return r, nil
}

// WriteRecord writes an existing record.
func WriteRecord(path string, r *Record, opts SaveOptions) error {
	switch opts.Format {
	case FormatV1:
		return WriteV1(path, r)
	case 0, FormatV2:
		level := opts.Level
		if level == 0 {
			level = gzip.DefaultCompression
		}
		_, err := WriteV2(path, r, level, opts.Metadata)
		return err
	case FormatArrow:
		return WriteArrow(path, r)
	default:
		return fmt.Errorf("%w: %d", ErrUnknownFormat, int(opts.Format))
	}
}

// ReadRecord detects the layout of path and decodes it without rebuilding
// the container.
func ReadRecord(path string) (*Record, Format, error) {
	format, err := DetectFormat(path)
	if err != nil {
		return nil, 0, fmt.Errorf("detecting format: %w", err)
	}

	var r *Record
	switch format {
	case FormatV1:
		r, err = ReadV1(path)
	case FormatV2:
		r, err = ReadV2(path)
	case FormatArrow:
		r, err = ReadArrow(path)
	}
	if err != nil {
		return nil, format, err
	}
	return r, format, nil
}

// Load reads path and rebuilds the container it holds.
func Load(path string) (trials.Trials, error) {
	r, _, err := ReadRecord(path)
	if err != nil {
		return nil, err
	}
	return r.Trials()
}
