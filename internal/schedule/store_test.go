package schedule

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memUpload struct {
	name string
	data []byte
	err  error
}

func (u memUpload) Filename() string { return u.name }

func (u memUpload) Open() (io.ReadCloser, error) {
	if u.err != nil {
		return nil, u.err
	}
	return io.NopCloser(bytes.NewReader(u.data)), nil
}

func quietLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewTextHandler(buf, nil))
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestLoadPreloaded_ReadsTextFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "week_1_schedule.txt", "Mon: Math")
	writeFile(t, dir, "general_schedule.txt", "Daily standup")
	writeFile(t, dir, "notes.md", "ignored")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested.txt"), 0o755))

	s := NewStore(dir)
	got, err := s.LoadPreloaded()
	require.NoError(t, err)

	assert.Equal(t, []string{"general_schedule", "week_1_schedule"}, got.Names())
	assert.Equal(t, "Mon: Math", got["week_1_schedule"].Content)
	assert.Equal(t, "week_1_schedule", got["week_1_schedule"].Name)
}

func TestLoadPreloaded_CreatesMissingDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "preloaded_schedules")

	got, err := NewStore(dir).LoadPreloaded()
	require.NoError(t, err)
	assert.Empty(t, got)

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestLoadPreloaded_SkipsInvalidUTF8(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "good.txt", "ok")
	writeFile(t, dir, "bad.txt", string([]byte{0xff, 0xfe, 0x00}))

	var logs bytes.Buffer
	got, err := NewStore(dir, WithLogger(quietLogger(&logs))).LoadPreloaded()
	require.NoError(t, err)

	assert.Equal(t, []string{"good"}, got.Names())
	assert.Contains(t, logs.String(), "bad.txt")
}

func TestLoadPreloaded_NormalizesNewlines(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "crlf.txt", "a\r\nb\rc")

	got, err := NewStore(dir).LoadPreloaded()
	require.NoError(t, err)
	assert.Equal(t, "a\nb\nc", got["crlf"].Content)
}

func TestLoadPreloaded_RereadsEveryCall(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(dir)

	first, err := s.LoadPreloaded()
	require.NoError(t, err)
	assert.Empty(t, first)

	writeFile(t, dir, "late.txt", "added later")
	second, err := s.LoadPreloaded()
	require.NoError(t, err)
	assert.Equal(t, "added later", second["late"].Content)
}

func TestLoadPreloaded_PDFIgnoredByDefault(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "exam.pdf", "%PDF-1.4 not really")

	got, err := NewStore(dir).LoadPreloaded()
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestLoadPreloaded_BrokenPDFSkipped(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "exam.pdf", "definitely not a pdf")
	writeFile(t, dir, "week_1_schedule.txt", "Mon")

	var logs bytes.Buffer
	got, err := NewStore(dir, WithPDF(true), WithLogger(quietLogger(&logs))).LoadPreloaded()
	require.NoError(t, err)
	assert.Equal(t, []string{"week_1_schedule"}, got.Names())
	assert.Contains(t, logs.String(), "exam.pdf")
}

func TestLoadUploaded(t *testing.T) {
	var logs bytes.Buffer
	s := NewStore(t.TempDir(), WithLogger(quietLogger(&logs)))

	got := s.LoadUploaded([]Upload{
		memUpload{name: "week_1_schedule.txt", data: []byte("uploaded week")},
		memUpload{name: "raw", data: []byte("no suffix")},
		memUpload{name: "crlf.txt", data: []byte("a\r\nb")},
		memUpload{name: "broken.txt", err: errors.New("disk gone")},
		memUpload{name: "binary.txt", data: []byte{0xc3, 0x28}},
	})

	assert.Equal(t, []string{"crlf", "raw", "week_1_schedule"}, got.Names())
	assert.Equal(t, "uploaded week", got["week_1_schedule"].Content)
	assert.Equal(t, "no suffix", got["raw"].Content)
	assert.Equal(t, "a\r\nb", got["crlf"].Content, "uploads are not newline-normalized")
	assert.Contains(t, logs.String(), "broken.txt")
	assert.Contains(t, logs.String(), "binary.txt")
}

func TestUploadsFromMultipart(t *testing.T) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("files", "general_schedule.txt")
	require.NoError(t, err)
	_, err = fw.Write([]byte("from form"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest("POST", "/", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	require.NoError(t, req.ParseMultipartForm(1<<20))

	uploads := UploadsFromMultipart(req.MultipartForm.File["files"])
	require.Len(t, uploads, 1)

	got := NewStore(t.TempDir()).LoadUploaded(uploads)
	assert.Equal(t, "from form", got["general_schedule"].Content)
}

func TestMerge_UploadedWins(t *testing.T) {
	preloaded := Collection{"x": {Name: "x", Content: "old"}, "y": {Name: "y", Content: "keep"}}
	uploaded := Collection{"x": {Name: "x", Content: "new"}}

	merged := Merge(preloaded, uploaded)

	assert.Equal(t, "new", merged["x"].Content)
	assert.Equal(t, "keep", merged["y"].Content)
	assert.Equal(t, "old", preloaded["x"].Content, "inputs must not be modified")
}

func TestMerge_Nil(t *testing.T) {
	merged := Merge(nil, nil)
	require.NotNil(t, merged)
	assert.Empty(t, merged)
}

func TestKeyFor(t *testing.T) {
	tests := []struct {
		in       string
		allowPDF bool
		want     string
	}{
		{"week_1_schedule.txt", false, "week_1_schedule"},
		{"plain", false, "plain"},
		{"a.txt.txt", false, "a.txt"},
		{"exam.pdf", false, "exam.pdf"},
		{"exam.pdf", true, "exam"},
	}
	for _, tt := range tests {
		if got := KeyFor(tt.in, tt.allowPDF); got != tt.want {
			t.Errorf("KeyFor(%q, %v) = %q, want %q", tt.in, tt.allowPDF, got, tt.want)
		}
	}
}

func TestCollectionNames_Sorted(t *testing.T) {
	c := Collection{"b": {}, "a": {}, "c": {}}
	assert.Equal(t, "a,b,c", strings.Join(c.Names(), ","))
}
