package cookiestore

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"aliscan/pkg/logger"
)

// DefaultPath is used when no cookies file is configured.
const DefaultPath = "session_cookies.json"

const savedAtLayout = "2006-01-02 15:04:05 UTC"

// fileFormat is the on-disk layout. It stays compatible with cookie files written
// by the earlier Playwright tooling.
type fileFormat struct {
	SavedAt   string   `json:"saved_at"`
	Timestamp int64    `json:"timestamp"`
	Cookies   []Cookie `json:"cookies"`
	UserAgent string   `json:"user_agent"`
	ProxyUsed bool     `json:"proxy_used"`
}

// Store persists a CookieSet as JSON. It assumes a single writing process.
type Store struct {
	fs   afero.Fs
	mu   sync.Mutex
	path string
	now  func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithFs swaps the file system, mainly for tests.
func WithFs(fs afero.Fs) Option {
	return func(s *Store) { s.fs = fs }
}

// WithClock overrides the clock used for expiry filtering.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New creates a store for path on the OS file system.
func New(path string, opts ...Option) *Store {
	if path == "" {
		path = DefaultPath
	}
	s := &Store{fs: afero.NewOsFs(), path: path, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Path returns the current cookies file path.
func (s *Store) Path() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.path
}

// SetPath changes where cookies are loaded from and saved to.
func (s *Store) SetPath(path string) {
	if path == "" {
		path = DefaultPath
	}
	s.mu.Lock()
	s.path = path
	s.mu.Unlock()
	logger.Info("Cookies file set", zap.String("path", path))
}

// Load reads the cookie file and drops expired cookies.
//
// A missing file yields an empty set and no error. Malformed content yields an
// empty set together with a *CorruptStoreError so callers can log and carry on.
func (s *Store) Load() (CookieSet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := afero.ReadFile(s.fs, s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logger.Debug("No cookies file yet", zap.String("path", s.path))
			return CookieSet{}, nil
		}
		return CookieSet{}, fmt.Errorf("read cookies file %s: %w", s.path, err)
	}

	var ff fileFormat
	if err := json.Unmarshal(data, &ff); err != nil {
		return CookieSet{}, &CorruptStoreError{Path: s.path, Err: err}
	}
	if ff.Cookies == nil {
		return CookieSet{}, &CorruptStoreError{Path: s.path, Err: ErrNoCookiesField}
	}

	set := CookieSet{
		UserAgent: ff.UserAgent,
		ProxyUsed: ff.ProxyUsed,
	}
	if ff.Timestamp > 0 {
		set.SavedAt = time.Unix(ff.Timestamp, 0).UTC()
	}
	for _, c := range ff.Cookies {
		if c.Name == "" {
			continue
		}
		set.Put(c)
	}

	total := set.Len()
	set = FilterExpired(set, s.now())
	logger.Debug("Loaded cookies",
		zap.String("path", s.path),
		zap.Int("valid", set.Len()),
		zap.Int("expired", total-set.Len()),
		zap.String("saved_at", ff.SavedAt))

	return set, nil
}

// Save writes the set atomically: temp file in the same directory, fsync, rename.
func (s *Store) Save(set CookieSet) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().UTC()
	if set.SavedAt.IsZero() {
		set.SavedAt = now
	}
	cookies := set.Cookies
	if cookies == nil {
		cookies = []Cookie{}
	}
	ff := fileFormat{
		SavedAt:   set.SavedAt.UTC().Format(savedAtLayout),
		Timestamp: set.SavedAt.Unix(),
		Cookies:   cookies,
		UserAgent: set.UserAgent,
		ProxyUsed: set.ProxyUsed,
	}

	data, err := json.MarshalIndent(ff, "", "  ")
	if err != nil {
		return fmt.Errorf("encode cookies: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := s.fs.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create cookies directory: %w", err)
	}

	tmp, err := afero.TempFile(s.fs, dir, "."+filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp cookies file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		s.fs.Remove(tmpName)
		return fmt.Errorf("write temp cookies file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		s.fs.Remove(tmpName)
		return fmt.Errorf("sync temp cookies file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		s.fs.Remove(tmpName)
		return fmt.Errorf("close temp cookies file: %w", err)
	}
	if err := s.fs.Rename(tmpName, s.path); err != nil {
		s.fs.Remove(tmpName)
		return fmt.Errorf("replace cookies file: %w", err)
	}

	logger.Info("Saved cookies", zap.String("path", s.path), zap.Int("count", len(cookies)))
	return nil
}
