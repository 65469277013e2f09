// Package schedule loads named schedule texts and picks the ones a question
// refers to.
package schedule

import (
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"
)

const (
	// TextSuffix marks schedule files in the preloaded directory.
	TextSuffix = ".txt"
	// PDFSuffix marks PDF schedules, loaded only when PDF extraction is enabled.
	PDFSuffix = ".pdf"
)

// Blob is one named schedule document.
type Blob struct {
	Name    string `json:"name"`
	Content string `json:"content"`
}

// Collection maps schedule names to their blobs.
type Collection map[string]Blob

// Names returns the collection keys in ascending order.
func (c Collection) Names() []string {
	names := make([]string, 0, len(c))
	for name := range c {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Upload is a file supplied with a single request.
type Upload interface {
	Filename() string
	Open() (io.ReadCloser, error)
}

type multipartUpload struct {
	fh *multipart.FileHeader
}

func (u multipartUpload) Filename() string { return u.fh.Filename }

func (u multipartUpload) Open() (io.ReadCloser, error) { return u.fh.Open() }

// UploadsFromMultipart adapts multipart file headers to Uploads.
func UploadsFromMultipart(files []*multipart.FileHeader) []Upload {
	uploads := make([]Upload, 0, len(files))
	for _, fh := range files {
		uploads = append(uploads, multipartUpload{fh: fh})
	}
	return uploads
}

// Option configures a Store.
type Option func(*Store)

// WithPDF enables loading PDF schedules alongside text ones.
func WithPDF(enabled bool) Option {
	return func(s *Store) { s.extractPDF = enabled }
}

// WithLogger sets the logger used for skipped-file diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// Store reads schedules from a directory and from request uploads. It keeps
// no state between calls: the directory is re-read every time.
type Store struct {
	dir        string
	extractPDF bool
	logger     *slog.Logger
}

// NewStore creates a Store rooted at dir.
func NewStore(dir string, opts ...Option) *Store {
	s := &Store{dir: dir, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Dir returns the preloaded schedule directory.
func (s *Store) Dir() string {
	return s.dir
}

// KeyFor derives a schedule name from a file name by stripping the text
// suffix (or the PDF suffix when allowPDF is set).
func KeyFor(filename string, allowPDF bool) string {
	if allowPDF && strings.HasSuffix(filename, PDFSuffix) {
		return strings.TrimSuffix(filename, PDFSuffix)
	}
	return strings.TrimSuffix(filename, TextSuffix)
}

// LoadPreloaded reads every schedule file in the store directory, creating
// the directory when it does not exist. Unreadable files are logged and
// skipped. An error is returned only when the directory itself cannot be
// created or listed.
func (s *Store) LoadPreloaded() (Collection, error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating schedule directory: %w", err)
	}

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("listing schedule directory: %w", err)
	}

	data := make(Collection)
	for _, entry := range entries {
		name := entry.Name()
		if !s.accepts(name) {
			continue
		}
		path := filepath.Join(s.dir, name)
		info, err := os.Stat(path)
		if err != nil || !info.Mode().IsRegular() {
			continue
		}

		content, err := s.readFile(path)
		if err != nil {
			s.logger.Warn("skipping schedule file", "file", name, "error", err)
			continue
		}
		key := KeyFor(name, s.extractPDF)
		data[key] = Blob{Name: key, Content: content}
	}
	return data, nil
}

// LoadUploaded decodes request uploads. A file that cannot be read or is not
// valid UTF-8 is logged and skipped.
func (s *Store) LoadUploaded(files []Upload) Collection {
	data := make(Collection)
	for _, f := range files {
		name := f.Filename()
		content, err := s.readUpload(f)
		if err != nil {
			s.logger.Warn("skipping uploaded schedule", "file", name, "error", err)
			continue
		}
		key := KeyFor(name, s.extractPDF)
		data[key] = Blob{Name: key, Content: content}
	}
	return data
}

// Merge returns the union of both collections. Uploaded entries replace
// preloaded entries with the same name. Neither input is modified.
func Merge(preloaded, uploaded Collection) Collection {
	merged := make(Collection, len(preloaded)+len(uploaded))
	for k, v := range preloaded {
		merged[k] = v
	}
	for k, v := range uploaded {
		merged[k] = v
	}
	return merged
}

func (s *Store) accepts(name string) bool {
	if strings.HasSuffix(name, TextSuffix) {
		return true
	}
	return s.extractPDF && strings.HasSuffix(name, PDFSuffix)
}

func (s *Store) readFile(path string) (string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	if s.extractPDF && strings.HasSuffix(path, PDFSuffix) {
		return extractPDF(raw)
	}
	text, err := decodeUTF8(raw)
	if err != nil {
		return "", err
	}
	return normalizeNewlines(text), nil
}

func (s *Store) readUpload(f Upload) (string, error) {
	rc, err := f.Open()
	if err != nil {
		return "", err
	}
	defer rc.Close()

	raw, err := io.ReadAll(rc)
	if err != nil {
		return "", err
	}
	if s.extractPDF && strings.HasSuffix(f.Filename(), PDFSuffix) {
		return extractPDF(raw)
	}
	return decodeUTF8(raw)
}

func decodeUTF8(raw []byte) (string, error) {
	if !utf8.Valid(raw) {
		return "", fmt.Errorf("content is not valid UTF-8")
	}
	return string(raw), nil
}

// normalizeNewlines converts CRLF and lone CR line endings to LF, matching a
// text-mode read of the file.
func normalizeNewlines(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\r", "\n")
}
