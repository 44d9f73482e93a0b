package board

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/cespare/xxhash/v2"
	"gopkg.in/yaml.v3"
)

// Format is a board file encoding.
type Format string

const (
	YAML Format = "yaml"
	JSON Format = "json"
)

// FormatOf picks the encoding from a file extension. Anything that is not
// .json is read as YAML.
func FormatOf(path string) Format {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return JSON
	}
	return YAML
}

// Decode reads and validates a board.
func Decode(r io.Reader, f Format) (*Board, error) {
	var b Board
	switch f {
	case JSON:
		dec := json.NewDecoder(r)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&b); err != nil {
			return nil, fmt.Errorf("board: decode json: %w", err)
		}
	default:
		dec := yaml.NewDecoder(r)
		dec.KnownFields(true)
		if err := dec.Decode(&b); err != nil {
			return nil, fmt.Errorf("board: decode yaml: %w", err)
		}
	}
	if err := b.normalize(); err != nil {
		return nil, err
	}
	return &b, nil
}

// Encode writes b in the given format.
func Encode(w io.Writer, b *Board, f Format) error {
	switch f {
	case JSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(b)
	default:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(b); err != nil {
			return err
		}
		return enc.Close()
	}
}

// Load reads a board file.
func Load(path string) (*Board, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	b, err := Decode(f, FormatOf(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return b, nil
}

// Save writes b to path, replacing the file atomically.
func Save(path string, b *Board) error {
	var buf bytes.Buffer
	if err := Encode(&buf, b, FormatOf(path)); err != nil {
		return fmt.Errorf("board: encode %s: %w", path, err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// Fingerprint hashes the routed geometry. Boards with the same layers and
// routes have the same fingerprint regardless of their name.
func (b *Board) Fingerprint() uint64 {
	d := xxhash.New()
	var scratch [8]byte
	putInt := func(v int64) {
		binary.LittleEndian.PutUint64(scratch[:], uint64(v))
		_, _ = d.Write(scratch[:])
	}
	putFloat := func(v float64) {
		binary.LittleEndian.PutUint64(scratch[:], math.Float64bits(v))
		_, _ = d.Write(scratch[:])
	}
	putFloat(b.AgainstFactor)
	for _, l := range b.Layers {
		_, _ = d.WriteString(l.Name)
		_, _ = d.WriteString(string(l.Preferred))
	}
	for _, t := range b.Traces {
		putInt(int64(t.ID))
		for _, p := range t.Points {
			putFloat(p.X)
			putFloat(p.Y)
		}
		for _, l := range t.Layers {
			putInt(int64(l))
		}
	}
	return d.Sum64()
}
