package catalog

import (
	"bytes"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/robertmeta/kongress-cli/model"
)

//go:embed ConferenceData.json
var bundledData embed.FS

// ErrNotArray is returned by Decode when the document is not a JSON array.
var ErrNotArray = errors.New("catalog document is not a JSON array")

// Source is one JSON document holding an array of conferences.
// Open returns an error wrapping fs.ErrNotExist when the document is absent.
type Source interface {
	Name() string
	Open() (io.ReadCloser, error)
}

// WritableSource is a Source that conferences can be appended to.
type WritableSource interface {
	Source
	Append(c model.Conference) error
}

// FSSource reads a catalog document from a file system, typically the
// read-only conference data bundled into the binary.
type FSSource struct {
	FS   fs.FS
	Path string
}

// Bundled returns the conference data shipped with kongress-cli.
func Bundled() *FSSource {
	return &FSSource{FS: bundledData, Path: "ConferenceData.json"}
}

// Name returns the document path.
func (s *FSSource) Name() string {
	return s.Path
}

// Open opens the document.
func (s *FSSource) Open() (io.ReadCloser, error) {
	return s.FS.Open(s.Path)
}

// FileSource is a user-writable catalog document on disk.
type FileSource struct {
	Path string
}

// NewFileSource creates a FileSource for path.
func NewFileSource(path string) *FileSource {
	return &FileSource{Path: path}
}

// Name returns the file path.
func (s *FileSource) Name() string {
	return s.Path
}

// Open opens the file, creating its parent directory if needed.
func (s *FileSource) Open() (io.ReadCloser, error) {
	if err := os.MkdirAll(filepath.Dir(s.Path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create catalog directory: %w", err)
	}
	return os.Open(s.Path)
}

// Append adds a conference to the end of the file. A malformed existing file
// is left untouched and reported as an error.
func (s *FileSource) Append(c model.Conference) error {
	if err := c.Validate(); err != nil {
		return err
	}

	var conferences []model.Conference

	f, err := s.Open()
	switch {
	case err == nil:
		conferences, err = Decode(f)
		f.Close()
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", s.Path, err)
		}
	case errors.Is(err, fs.ErrNotExist):
	default:
		return err
	}

	conferences = append(conferences, c)
	return writeFile(s.Path, conferences)
}

func writeFile(path string, conferences []model.Conference) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".conferences-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := Encode(tmp, conferences); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	return os.Rename(tmpName, path)
}

// Decode reads a JSON array of conferences.
//
// An empty document holds no conferences. Fields are read leniently: a
// missing field or a field of the wrong type yields the empty value, and an
// array element that is not an object yields an empty conference. Only a
// document that is not an array fails.
func Decode(r io.Reader) ([]model.Conference, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}

	if len(bytes.TrimSpace(data)) == 0 {
		return []model.Conference{}, nil
	}

	var elements []json.RawMessage
	if err := json.Unmarshal(data, &elements); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotArray, err)
	}

	conferences := make([]model.Conference, 0, len(elements))
	for _, raw := range elements {
		conferences = append(conferences, decodeConference(raw))
	}

	return conferences, nil
}

func decodeConference(raw json.RawMessage) model.Conference {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return model.Conference{}
	}

	return model.Conference{
		ID:             stringField(obj, "id"),
		Name:           stringField(obj, "name"),
		Description:    stringField(obj, "description"),
		ICalURL:        stringField(obj, "icalUrl"),
		Days:           stringsField(obj, "days"),
		VenueImageURL:  stringField(obj, "venueImageUrl"),
		VenueLatitude:  stringField(obj, "venueLatitude"),
		VenueLongitude: stringField(obj, "venueLongitude"),
		VenueOsmURL:    stringField(obj, "venueOsmUrl"),
		TimeZoneID:     stringField(obj, "timeZoneId"),
	}
}

func stringField(obj map[string]json.RawMessage, key string) string {
	var s string
	if raw, ok := obj[key]; ok {
		if err := json.Unmarshal(raw, &s); err != nil {
			return ""
		}
	}
	return s
}

func stringsField(obj map[string]json.RawMessage, key string) []string {
	raw, ok := obj[key]
	if !ok {
		return []string{}
	}

	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return []string{}
	}

	days := make([]string, 0, len(items))
	for _, item := range items {
		var s string
		if err := json.Unmarshal(item, &s); err != nil {
			continue
		}
		days = append(days, s)
	}
	return days
}

// Encode writes conferences as an indented JSON array.
func Encode(w io.Writer, conferences []model.Conference) error {
	if conferences == nil {
		conferences = []model.Conference{}
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(conferences); err != nil {
		return fmt.Errorf("failed to encode catalog: %w", err)
	}
	return nil
}
