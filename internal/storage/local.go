package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/rs/zerolog/log"
)

const zstdExt = ".zst"

// LocalStore keeps uploads on the local filesystem. This is the default
// blob driver for OSS / development.
//
// Directory structure:
//
//	{basePath}/{owner}/{unixmillis}-{filename}[.zst]
type LocalStore struct {
	basePath string
	compress bool
	now      func() time.Time
}

// NewLocalStore creates a file-based store. If basePath is empty it
// defaults to "~/.chartgenie/uploads". With compress set, objects are
// written zstd-compressed.
func NewLocalStore(basePath string, compress bool) *LocalStore {
	if basePath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			basePath = filepath.Join(os.TempDir(), "chartgenie", "uploads")
		} else {
			basePath = filepath.Join(home, ".chartgenie", "uploads")
		}
	}
	return &LocalStore{basePath: basePath, compress: compress, now: time.Now}
}

func (s *LocalStore) Kind() string { return "local" }

func (s *LocalStore) Put(_ context.Context, owner, filename string, r io.Reader) (string, error) {
	loc := Locator(owner, filename, s.now())
	fpath := filepath.Join(s.basePath, filepath.FromSlash(loc))
	if s.compress {
		fpath += zstdExt
	}
	if err := os.MkdirAll(filepath.Dir(fpath), 0o755); err != nil {
		return "", fmt.Errorf("create upload dir: %w", err)
	}

	f, err := os.Create(fpath)
	if err != nil {
		return "", fmt.Errorf("create upload file: %w", err)
	}

	var n int64
	if s.compress {
		zw, zerr := zstd.NewWriter(f)
		if zerr != nil {
			f.Close()
			return "", fmt.Errorf("create zstd writer: %w", zerr)
		}
		n, err = io.Copy(zw, r)
		if cerr := zw.Close(); err == nil {
			err = cerr
		}
	} else {
		n, err = io.Copy(f, r)
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(fpath)
		return "", fmt.Errorf("write upload %s: %w", loc, err)
	}

	log.Debug().
		Str("path", fpath).
		Int64("bytes", n).
		Bool("compressed", s.compress).
		Msg("Stored upload to local file")
	return loc, nil
}

func (s *LocalStore) Get(_ context.Context, loc string) (io.ReadCloser, error) {
	if !ValidLocator(loc) {
		return nil, fmt.Errorf("invalid locator %q", loc)
	}
	fpath := filepath.Join(s.basePath, filepath.FromSlash(loc))

	// Objects written with compression on carry the .zst suffix, so a
	// store can read back uploads from before the setting changed.
	if f, err := os.Open(fpath + zstdExt); err == nil {
		zr, zerr := zstd.NewReader(f)
		if zerr != nil {
			f.Close()
			return nil, fmt.Errorf("open zstd reader: %w", zerr)
		}
		return &zstdReadCloser{Decoder: zr, file: f}, nil
	}

	f, err := os.Open(fpath)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("open upload %s: %w", loc, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("open upload %s: %w", loc, err)
	}
	return f, nil
}

func (s *LocalStore) Delete(_ context.Context, loc string) error {
	if !ValidLocator(loc) {
		return fmt.Errorf("invalid locator %q", loc)
	}
	fpath := filepath.Join(s.basePath, filepath.FromSlash(loc))
	for _, p := range []string{fpath, fpath + zstdExt} {
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("delete upload %s: %w", loc, err)
		}
	}
	return nil
}

// HealthCheck verifies the base path is writable.
func (s *LocalStore) HealthCheck(_ context.Context) error {
	if err := os.MkdirAll(s.basePath, 0o755); err != nil {
		return fmt.Errorf("upload path not writable: %w", err)
	}
	testFile := filepath.Join(s.basePath, ".healthcheck")
	if err := os.WriteFile(testFile, []byte("ok"), 0o644); err != nil {
		return fmt.Errorf("upload path not writable: %w", err)
	}
	os.Remove(testFile)
	return nil
}

type zstdReadCloser struct {
	*zstd.Decoder
	file *os.File
}

func (z *zstdReadCloser) Close() error {
	z.Decoder.Close()
	return z.file.Close()
}
