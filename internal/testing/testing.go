// package testing contains shared testing utilities
package testing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/desertthunder/tapedeck/internal/media"
	"github.com/desertthunder/tapedeck/internal/models"
	"github.com/desertthunder/tapedeck/internal/shared"
)

// MockAcquirer is a test double for tasks.Acquirer. It writes a small raw file named after
// the source id into the folder it is given, or Dir when that is empty, unless Err (or
// FailFor) says otherwise.
type MockAcquirer struct {
	Label   string
	Dir     string
	Err     error
	FailFor map[string]error // keyed by track title
	Delay   time.Duration
	Raw     models.RawAudio // metadata copied into every result

	calls atomic.Int64
}

func (m *MockAcquirer) Name() string {
	if m.Label == "" {
		return "mock"
	}
	return m.Label
}

// Calls returns how many times Acquire ran.
func (m *MockAcquirer) Calls() int { return int(m.calls.Load()) }

func (m *MockAcquirer) Acquire(ctx context.Context, track models.Track, dir string) (*models.RawAudio, error) {
	m.calls.Add(1)
	if m.Delay > 0 {
		select {
		case <-time.After(m.Delay):
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %w", shared.ErrAborted, ctx.Err())
		}
	}
	if err, ok := m.FailFor[track.Title]; ok {
		return nil, err
	}
	if m.Err != nil {
		return nil, m.Err
	}

	id := track.SourceID
	if id == "" {
		id = shared.GenerateID()
	}
	if dir == "" {
		dir = m.Dir
	}
	path := filepath.Join(dir, id+".webm")
	if err := os.WriteFile(path, []byte("raw"), 0o644); err != nil {
		return nil, err
	}
	raw := m.Raw
	raw.Path = path
	raw.SourceID = id
	return &raw, nil
}

// MockEncoder is a test double for tasks.Encoder that writes outDir/name.<ext>.
type MockEncoder struct {
	Err      error
	DelayFor map[string]time.Duration // keyed by output name

	mu      sync.Mutex
	outputs []string
}

func (m *MockEncoder) Transcode(ctx context.Context, input, outDir, name string, preset media.Preset) (string, error) {
	if m.Err != nil {
		return "", m.Err
	}
	if d := m.DelayFor[name]; d > 0 {
		select {
		case <-time.After(d):
		case <-ctx.Done():
		}
	}
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("%w: %w", shared.ErrAborted, err)
	}
	if _, err := os.Stat(input); err != nil {
		return "", fmt.Errorf("%w: %w", shared.ErrEncoderFailed, err)
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return "", err
	}
	out := filepath.Join(outDir, name+preset.Container.Ext())
	if err := os.WriteFile(out, []byte("encoded"), 0o644); err != nil {
		return "", err
	}

	m.mu.Lock()
	m.outputs = append(m.outputs, out)
	m.mu.Unlock()
	return out, nil
}

// Outputs returns every path written so far.
func (m *MockEncoder) Outputs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.outputs...)
}

// MockTagger is a test double for tasks.Tagger and tasks.ArtworkEmbedder.
type MockTagger struct {
	Err        error
	ArtworkErr error

	mu      sync.Mutex
	tags    map[string]media.Tags
	artwork map[string][]byte
}

func (m *MockTagger) WriteTags(ctx context.Context, path string, tags media.Tags) error {
	if m.Err != nil {
		return m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.tags == nil {
		m.tags = map[string]media.Tags{}
	}
	m.tags[path] = tags
	return nil
}

func (m *MockTagger) EmbedArtwork(ctx context.Context, path string, image []byte) error {
	if m.ArtworkErr != nil {
		return m.ArtworkErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.artwork == nil {
		m.artwork = map[string][]byte{}
	}
	m.artwork[path] = append([]byte(nil), image...)
	return nil
}

// Tags returns the tags written to path.
func (m *MockTagger) Tags(path string) (media.Tags, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tags[path]
	return t, ok
}

// Artwork returns the image embedded into path.
func (m *MockTagger) Artwork(path string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.artwork[path]
	return b, ok
}

// MockArtworkSource is a test double for tasks.ArtworkSource that writes Data to destBase.jpg.
type MockArtworkSource struct {
	Data []byte
	Err  error

	mu    sync.Mutex
	bases []string
}

func (m *MockArtworkSource) Fetch(ctx context.Context, url, destBase string) (string, error) {
	m.mu.Lock()
	m.bases = append(m.bases, destBase)
	m.mu.Unlock()

	if m.Err != nil {
		return "", m.Err
	}
	if err := os.MkdirAll(filepath.Dir(destBase), 0o755); err != nil {
		return "", err
	}
	path := destBase + ".jpg"
	return path, os.WriteFile(path, m.Data, 0o644)
}

// Bases returns every destination base requested so far.
func (m *MockArtworkSource) Bases() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.bases...)
}

// MockLookup is a test double for tasks.MetadataLookup.
type MockLookup struct {
	Result *models.LookupResult
	Err    error

	mu      sync.Mutex
	queries []string
}

func (m *MockLookup) Lookup(ctx context.Context, query string) (*models.LookupResult, error) {
	m.mu.Lock()
	m.queries = append(m.queries, query)
	m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	if m.Result == nil {
		return nil, shared.ErrNoMatch
	}
	r := *m.Result
	return &r, nil
}

// Queries returns every query looked up so far.
func (m *MockLookup) Queries() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.queries...)
}

// NewTrack builds a youtube track fixture.
func NewTrack(title string, artists ...string) models.Track {
	return models.Track{
		Title:       title,
		Artists:     artists,
		Platform:    models.PlatformYouTube,
		SourceID:    shared.SanitizeFileName(title),
		TrackNumber: 1,
	}
}

// NewCollection builds an album fixture with n numbered tracks by artist.
func NewCollection(title, artist string, n int) models.Collection {
	c := models.Collection{Title: title, Platform: models.PlatformYouTube, Kind: models.KindAlbum}
	for i := range n {
		t := NewTrack(fmt.Sprintf("%s %02d", title, i+1), artist)
		t.SourceID = fmt.Sprintf("%s-%02d", shared.SanitizeFileName(title), i+1)
		t.TrackNumber = i + 1
		t.Album = title
		c.Tracks = append(c.Tracks, t)
	}
	return c
}

// Eventually polls cond every 10ms until it holds or timeout elapses.
func Eventually(t *testing.T, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("condition not met within %v: %s", timeout, msg)
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// LimitedWriter fails after a certain number of writes
type LimitedWriter struct {
	maxWrites int
	written   int
	target    io.Writer
}

func (l *LimitedWriter) Write(p []byte) (n int, err error) {
	if l.written >= l.maxWrites {
		return 0, errors.New("write limit exceeded")
	}
	l.written++
	return l.target.Write(p)
}

func NewLimitedWriter(maxWrites, written int, target io.Writer) LimitedWriter {
	return LimitedWriter{maxWrites: maxWrites, written: written, target: target}
}

// MockRoundTripper allows custom HTTP responses for testing
type MockRoundTripper struct {
	response *http.Response
	err      error
}

func NewMockRoundTripper(r *http.Response, e error) *MockRoundTripper {
	return &MockRoundTripper{response: r, err: e}
}

func (m *MockRoundTripper) RoundTrip(*http.Request) (*http.Response, error) {
	return m.response, m.err
}

func MustGetwd(t *testing.T) string {
	t.Helper()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Failed to get working directory: %v", err)
	}
	return wd
}

func MustChdir(t *testing.T, dir string) {
	t.Helper()
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("Failed to change directory to %s: %v", dir, err)
	}
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func AssertFileNotExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("File should not exist: %s", path)
	}
}

func AssertDirExists(t *testing.T, path string) {
	t.Helper()
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		t.Errorf("Directory does not exist: %s", path)
		return
	}
	if !info.IsDir() {
		t.Errorf("Path is not a directory: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}
