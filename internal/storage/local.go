// Package storage keeps uploaded cover files on the local filesystem under a media root.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/example/image-posts/internal/config"
)

// UploadDir is the directory, relative to the media root, that holds every cover.
const UploadDir = "images"

const (
	fallbackName = "cover"
	suffixLen    = 7
	maxAttempts  = 100
)

var (
	ErrEmptyFile    = errors.New("the submitted file is empty")
	ErrInvalidPath  = errors.New("path escapes the media root")
	ErrNameConflict = errors.New("no free file name left")
)

type Local struct {
	root   string
	policy string
}

func NewLocal(root, policy string) (*Local, error) {
	switch policy {
	case config.PolicySuffix, config.PolicyOverwrite, config.PolicyUUID:
	default:
		return nil, fmt.Errorf("unknown collision policy %q", policy)
	}
	if err := os.MkdirAll(filepath.Join(root, UploadDir), 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &Local{root: root, policy: policy}, nil
}

// Pending is a written upload that still has to be kept or dropped once the
// post row is decided. Path is what the post's cover column stores.
type Pending struct {
	Path string

	local *Local
	// Overwrite uploads sit in tmp until Commit renames them over Path, so an
	// existing cover is only replaced on success.
	overwrite bool
	tmp       string
}

// Commit makes the upload visible at Path.
func (p *Pending) Commit() error {
	if p.tmp == "" {
		return nil
	}
	target := p.local.abs(p.Path)
	if _, err := os.Stat(target); err == nil {
		log.Printf("storage: overwriting existing file %s", p.Path)
	}
	if err := os.Rename(p.tmp, target); err != nil {
		return fmt.Errorf("replace %s: %w", p.Path, err)
	}
	p.tmp = ""
	return nil
}

// Discard drops the upload. An overwrite target is never removed: earlier
// posts may point at it.
func (p *Pending) Discard() error {
	if !p.overwrite {
		return p.local.remove(p.Path)
	}
	if p.tmp == "" {
		return nil
	}
	err := os.Remove(p.tmp)
	p.tmp = ""
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// Save writes r under images/. A reader that yields no bytes is rejected with
// ErrEmptyFile and leaves nothing behind.
func (l *Local) Save(ctx context.Context, filename string, r io.Reader) (*Pending, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	name := CleanName(filename)

	var (
		f       *os.File
		pending = &Pending{local: l}
		err     error
	)
	switch l.policy {
	case config.PolicyOverwrite:
		pending.Path = path.Join(UploadDir, name)
		pending.overwrite = true
		f, err = os.CreateTemp(filepath.Join(l.root, UploadDir), "."+name+".*.tmp")
		if err == nil {
			pending.tmp = f.Name()
			err = f.Chmod(0o644)
		}
	case config.PolicyUUID:
		pending.Path = path.Join(UploadDir, uuid.NewString()+path.Ext(name))
		f, err = os.OpenFile(l.abs(pending.Path), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	default:
		f, pending.Path, err = l.createAvailable(name)
	}
	if err != nil {
		if f != nil {
			_ = f.Close()
			_ = pending.Discard()
		}
		return nil, fmt.Errorf("open %s: %w", pending.Path, err)
	}

	n, copyErr := io.Copy(f, r)
	closeErr := f.Close()
	if copyErr == nil && n == 0 {
		copyErr = ErrEmptyFile
	}
	if copyErr == nil {
		copyErr = closeErr
	}
	if copyErr != nil {
		_ = pending.Discard()
		if errors.Is(copyErr, ErrEmptyFile) {
			return nil, ErrEmptyFile
		}
		return nil, fmt.Errorf("write %s: %w", pending.Path, copyErr)
	}
	return pending, nil
}

// createAvailable claims images/<name>, or images/<stem>_<random><ext> when that is taken.
// O_EXCL keeps two concurrent uploads from claiming the same path.
func (l *Local) createAvailable(name string) (*os.File, string, error) {
	rel := path.Join(UploadDir, name)
	ext := path.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	for i := 0; i < maxAttempts; i++ {
		f, err := os.OpenFile(l.abs(rel), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err == nil {
			if i > 0 {
				log.Printf("storage: %s already taken, saved as %s", path.Join(UploadDir, name), rel)
			}
			return f, rel, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return nil, rel, err
		}
		rel = path.Join(UploadDir, stem+"_"+randomSuffix()+ext)
	}
	return nil, rel, ErrNameConflict
}

// remove deletes a stored file. Missing files are not an error.
func (l *Local) remove(rel string) error {
	p, err := l.resolve(rel)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

func (l *Local) resolve(rel string) (string, error) {
	clean := path.Clean("/" + rel)[1:]
	if clean == "" || clean != strings.TrimPrefix(rel, "./") {
		return "", ErrInvalidPath
	}
	return l.abs(clean), nil
}

func (l *Local) abs(rel string) string {
	return filepath.Join(l.root, filepath.FromSlash(rel))
}

var randomSuffix = func() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:suffixLen]
}

// CleanName reduces an uploaded file name to a safe base name: directories are dropped,
// spaces become underscores and anything outside [A-Za-z0-9._-] is removed.
func CleanName(filename string) string {
	base := filename
	if i := strings.LastIndexAny(base, `/\`); i >= 0 {
		base = base[i+1:]
	}
	base = strings.ReplaceAll(strings.TrimSpace(base), " ", "_")

	var b strings.Builder
	for _, r := range base {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '_', r == '-':
			b.WriteRune(r)
		}
	}
	name := b.String()
	if strings.Trim(name, ".") == "" {
		return fallbackName
	}
	return name
}
