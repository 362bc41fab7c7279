// Package codec implements the two interchangeable persistence
// encodings: compact binary (encoding/gob, also reused as the
// wire-transport codec) and JSON (encoding/json, human-readable). It
// also owns the incremental best-individual file naming scheme.
package codec

import (
	"bytes"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/evoswarm/evoswarm/config"
	"github.com/evoswarm/evoswarm/evoerr"
)

// Record is the on-the-wire/on-disk shape of one scored wrapper: the
// individual payload (of the caller's concrete type T) plus its cached
// fitness. Record is generic in T rather than holding an `any` so that
// a JSON round trip preserves the concrete type: unmarshaling into
// `any` would otherwise decode any struct as a bare map, losing T.
type Record[T any] struct {
	Individual T
	Fitness    float64
}

// EncodeRecord serializes a Record[T] using the given format.
func EncodeRecord[T any](format config.FileFormat, rec Record[T]) ([]byte, error) {
	return Encode(format, rec)
}

// DecodeRecord deserializes data into a Record[T] using the given
// format.
func DecodeRecord[T any](format config.FileFormat, data []byte, out *Record[T]) error {
	return Decode(format, data, out)
}

// EncodeRecords serializes a slice of Record[T], used for whole-
// population persistence.
func EncodeRecords[T any](format config.FileFormat, recs []Record[T]) ([]byte, error) {
	return Encode(format, recs)
}

// DecodeRecords deserializes data into a slice of Record[T].
func DecodeRecords[T any](format config.FileFormat, data []byte, out *[]Record[T]) error {
	return Decode(format, data, out)
}

// Encode serializes v using the given format. v should not contain a
// struct-typed value boxed in an `any`/interface field if the JSON
// format will be used for decoding later — see Record[T] above.
func Encode(format config.FileFormat, v any) ([]byte, error) {
	switch format {
	case config.Binary:
		var buf bytes.Buffer
		if err := gob.NewEncoder(&buf).Encode(v); err != nil {
			return nil, evoerr.Serialization(err)
		}
		return buf.Bytes(), nil
	case config.JSON:
		data, err := json.Marshal(v)
		if err != nil {
			return nil, evoerr.Serialization(err)
		}
		return data, nil
	default:
		return nil, evoerr.ParseEnum("file_format", format.String())
	}
}

// Decode deserializes data into v using the given format.
func Decode(format config.FileFormat, data []byte, v any) error {
	switch format {
	case config.Binary:
		if err := gob.NewDecoder(bytes.NewReader(data)).Decode(v); err != nil {
			return evoerr.Serialization(err)
		}
		return nil
	case config.JSON:
		if err := json.Unmarshal(data, v); err != nil {
			return evoerr.Serialization(err)
		}
		return nil
	default:
		return evoerr.ParseEnum("file_format", format.String())
	}
}

// WriteFile atomically writes data to path: a temp file in the same
// directory is written and fsynced, then renamed over the destination,
// so a crash mid-write never leaves a partially-written population or
// individual file behind.
func WriteFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".evoswarm-tmp-*")
	if err != nil {
		return evoerr.IO(err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return evoerr.IO(err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return evoerr.IO(err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return evoerr.IO(err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return evoerr.IO(err)
	}
	return nil
}

// ReadFile reads the raw bytes at path, wrapping any error as an
// IoError.
func ReadFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, evoerr.IO(err)
	}
	return data, nil
}

// IndividualFileName builds the incremental best-individual snapshot
// name: individual_{N}.{ext}, N starting at 0 and incrementing on every
// new-best persistence.
func IndividualFileName(n uint64, format config.FileFormat) string {
	return fmt.Sprintf("individual_%d.%s", n, format.Ext())
}
