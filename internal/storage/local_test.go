package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/image-posts/internal/config"
)

func newLocal(t *testing.T, policy string) *Local {
	t.Helper()
	l, err := NewLocal(t.TempDir(), policy)
	require.NoError(t, err)
	return l
}

// save stores content and commits it straight away.
func save(t *testing.T, l *Local, name, content string) string {
	t.Helper()
	p, err := l.Save(context.Background(), name, strings.NewReader(content))
	require.NoError(t, err)
	require.NoError(t, p.Commit())
	return p.Path
}

func readStored(t *testing.T, l *Local, rel string) string {
	t.Helper()
	b, err := os.ReadFile(l.abs(rel))
	require.NoError(t, err)
	return string(b)
}

func listUploads(t *testing.T, l *Local) []string {
	t.Helper()
	entries, err := os.ReadDir(filepath.Join(l.root, UploadDir))
	require.NoError(t, err)
	names := []string{}
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestCleanName(t *testing.T) {
	tests := map[string]string{
		"sunset.jpg":            "sunset.jpg",
		"my holiday pic.png":    "my_holiday_pic.png",
		"../../etc/passwd":      "passwd",
		`C:\Users\me\photo.jpg`: "photo.jpg",
		"été.gif":               "t.gif",
		"":                      "cover",
		"..":                    "cover",
		"$$$":                   "cover",
	}
	for in, want := range tests {
		assert.Equal(t, want, CleanName(in), "CleanName(%q)", in)
	}
}

func TestNewLocalRejectsUnknownPolicy(t *testing.T) {
	_, err := NewLocal(t.TempDir(), "ignore")
	require.Error(t, err)
}

func TestSaveKeepsOriginalName(t *testing.T) {
	l := newLocal(t, config.PolicySuffix)

	rel := save(t, l, "sunset.jpg", "jpeg-bytes")
	assert.Equal(t, "images/sunset.jpg", rel)
	assert.Equal(t, "jpeg-bytes", readStored(t, l, rel))
}

func TestSaveSuffixPolicyOnCollision(t *testing.T) {
	l := newLocal(t, config.PolicySuffix)

	first := save(t, l, "photo.jpg", "one")
	second := save(t, l, "photo.jpg", "two")

	assert.Equal(t, "images/photo.jpg", first)
	assert.NotEqual(t, first, second)
	assert.Regexp(t, `^images/photo_[0-9a-f]{7}\.jpg$`, second)
	assert.Equal(t, "one", readStored(t, l, first))
	assert.Equal(t, "two", readStored(t, l, second))
}

func TestSaveSuffixPolicyConcurrent(t *testing.T) {
	l := newLocal(t, config.PolicySuffix)
	ctx := context.Background()

	const n = 8
	paths := make([]string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p, err := l.Save(ctx, "photo.jpg", strings.NewReader("x"))
			if assert.NoError(t, err) {
				paths[i] = p.Path
			}
		}(i)
	}
	wg.Wait()

	seen := map[string]bool{}
	for _, p := range paths {
		assert.False(t, seen[p], "duplicate path %s", p)
		seen[p] = true
	}
}

func TestSaveSuffixPolicyRunsOutOfNames(t *testing.T) {
	l := newLocal(t, config.PolicySuffix)
	orig := randomSuffix
	randomSuffix = func() string { return "aaaaaaa" }
	t.Cleanup(func() { randomSuffix = orig })

	save(t, l, "photo.jpg", "one")
	save(t, l, "photo.jpg", "two")

	_, err := l.Save(context.Background(), "photo.jpg", strings.NewReader("three"))
	require.ErrorIs(t, err, ErrNameConflict)
	assert.ElementsMatch(t, []string{"photo.jpg", "photo_aaaaaaa.jpg"}, listUploads(t, l))
}

func TestSaveOverwritePolicy(t *testing.T) {
	l := newLocal(t, config.PolicyOverwrite)

	first := save(t, l, "photo.jpg", "one")
	second := save(t, l, "photo.jpg", "two")

	assert.Equal(t, "images/photo.jpg", first)
	assert.Equal(t, first, second)
	assert.Equal(t, "two", readStored(t, l, first))
	assert.Equal(t, []string{"photo.jpg"}, listUploads(t, l))
}

func TestOverwriteOnlyReplacesOnCommit(t *testing.T) {
	l := newLocal(t, config.PolicyOverwrite)
	rel := save(t, l, "photo.jpg", "one")

	p, err := l.Save(context.Background(), "photo.jpg", strings.NewReader("two"))
	require.NoError(t, err)
	assert.Equal(t, rel, p.Path)
	assert.Equal(t, "one", readStored(t, l, rel), "target untouched before commit")

	require.NoError(t, p.Discard())
	assert.Equal(t, "one", readStored(t, l, rel))
	assert.Equal(t, []string{"photo.jpg"}, listUploads(t, l), "temp file cleaned up")
}

func TestDiscardAfterOverwriteCommitKeepsTarget(t *testing.T) {
	l := newLocal(t, config.PolicyOverwrite)

	p, err := l.Save(context.Background(), "photo.jpg", strings.NewReader("two"))
	require.NoError(t, err)
	require.NoError(t, p.Commit())
	require.NoError(t, p.Discard())
	assert.Equal(t, "two", readStored(t, l, p.Path))
}

func TestOverwriteEmptyFileKeepsExisting(t *testing.T) {
	l := newLocal(t, config.PolicyOverwrite)
	rel := save(t, l, "photo.jpg", "one")

	_, err := l.Save(context.Background(), "photo.jpg", strings.NewReader(""))
	require.ErrorIs(t, err, ErrEmptyFile)
	assert.Equal(t, "one", readStored(t, l, rel))
	assert.Equal(t, []string{"photo.jpg"}, listUploads(t, l))
}

func TestSaveUUIDPolicy(t *testing.T) {
	l := newLocal(t, config.PolicyUUID)

	rel := save(t, l, "photo.JPG", "x")
	assert.Regexp(t, `^images/[0-9a-f-]{36}\.JPG$`, rel)
}

func TestSaveEmptyFile(t *testing.T) {
	l := newLocal(t, config.PolicySuffix)

	_, err := l.Save(context.Background(), "empty.jpg", strings.NewReader(""))
	require.ErrorIs(t, err, ErrEmptyFile)
	assert.Empty(t, listUploads(t, l))
}

func TestSaveCancelledContext(t *testing.T) {
	l := newLocal(t, config.PolicySuffix)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := l.Save(ctx, "a.jpg", strings.NewReader("x"))
	require.ErrorIs(t, err, context.Canceled)
}

func TestDiscardRemovesNewFile(t *testing.T) {
	l := newLocal(t, config.PolicySuffix)

	p, err := l.Save(context.Background(), "a.jpg", strings.NewReader("x"))
	require.NoError(t, err)
	require.NoError(t, p.Discard())
	require.NoError(t, p.Discard(), "discarding twice is fine")
	assert.Empty(t, listUploads(t, l))
}

func TestResolveRejectsEscapes(t *testing.T) {
	l := newLocal(t, config.PolicySuffix)

	for _, rel := range []string{"../secret", "images/../../x", "", "/"} {
		assert.ErrorIs(t, l.remove(rel), ErrInvalidPath, rel)
	}
}
