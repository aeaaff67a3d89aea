// Package keys derives object-storage keys for submissions.
//
// A key has the form
//
//	{role}/{yyyy}/{mm}/{dd}/{epoch-ms}-{hex6}/{base}{suffix}
//
// The date folders only make the bucket browsable; uniqueness comes from
// the submission id.
package keys

import (
	"crypto/rand"
	"fmt"
	"io"
	"path"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/dmitrijs2005/photokeeper/internal/common"
	"golang.org/x/text/unicode/norm"
)

// Role selects the top-level prefix of a key.
type Role string

const (
	RoleOriginal Role = "originals"
	RoleDerived  Role = "submissions"
)

const (
	// DerivedSuffix is appended to every transform output.
	DerivedSuffix = "_out.jpg"
	// DefaultBaseName replaces names that sanitize to nothing.
	DefaultBaseName = "image"

	maxBaseNameLen = 64
	maxExtLen      = 10
	suffixBytes    = 3
	maxDraws       = 16
)

// IDGenerator issues submission ids of the form {epoch-ms}-{hex6}.
//
// Ids handed out within the same millisecond are remembered, and a repeated
// random suffix is redrawn, so one process never issues the same id twice.
type IDGenerator struct {
	now  func() time.Time
	rand io.Reader

	mu     sync.Mutex
	bucket int64
	issued map[string]struct{}
}

// NewIDGenerator uses the wall clock and crypto/rand.
func NewIDGenerator() *IDGenerator {
	return NewIDGeneratorWith(time.Now, rand.Reader)
}

// NewIDGeneratorWith allows injecting the clock and entropy source.
func NewIDGeneratorWith(now func() time.Time, r io.Reader) *IDGenerator {
	return &IDGenerator{now: now, rand: r, issued: make(map[string]struct{})}
}

// NewID returns a fresh id and the instant it was issued at.
func (g *IDGenerator) NewID() (string, time.Time, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	t := g.now().UTC()
	ms := t.UnixMilli()
	if ms != g.bucket {
		g.bucket = ms
		clear(g.issued)
	}

	for i := 0; i < maxDraws; i++ {
		suffix, err := common.ReadRandHexString(g.rand, suffixBytes)
		if err != nil {
			return "", time.Time{}, fmt.Errorf("random suffix: %w", err)
		}
		id := fmt.Sprintf("%d-%s", ms, suffix)
		if _, dup := g.issued[id]; dup {
			continue
		}
		g.issued[id] = struct{}{}
		return id, t, nil
	}

	return "", time.Time{}, common.ErrIDExhausted
}

// FolderDate renders t as yyyy/mm/dd in UTC.
func FolderDate(t time.Time) string {
	return t.UTC().Format("2006/01/02")
}

// Derive builds the storage key for one artifact of a submission.
// baseName is expected to be sanitized already.
func Derive(role Role, submissionID, baseName, suffix, folderDate string) string {
	return path.Join(string(role), folderDate, submissionID, baseName+suffix)
}

// Sanitize turns a caller-supplied file name into a storage-safe base name:
// directories and the final extension are dropped, the rest is NFKD
// normalized and every rune outside [A-Za-z0-9_-] becomes '_'. The result
// is at most 64 characters and never empty.
func Sanitize(name string) string {
	name = lastElement(name)
	if i := strings.LastIndexByte(name, '.'); i > 0 {
		name = name[:i]
	}
	name = norm.NFKD.String(name)

	var b strings.Builder
	for _, r := range name {
		if b.Len() >= maxBaseNameLen {
			break
		}
		if isSafe(r) {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}

	if b.Len() == 0 {
		return DefaultBaseName
	}
	return b.String()
}

// Extension returns the lower-cased final extension of name including the
// dot, restricted to ASCII letters and digits. Unusable extensions yield "".
func Extension(name string) string {
	name = lastElement(name)
	i := strings.LastIndexByte(name, '.')
	if i <= 0 || i == len(name)-1 {
		return ""
	}
	ext := strings.ToLower(name[i+1:])
	if len(ext) > maxExtLen || !utf8.ValidString(ext) {
		return ""
	}
	for _, r := range ext {
		if !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9') {
			return ""
		}
	}
	return "." + ext
}

func lastElement(name string) string {
	if i := strings.LastIndexAny(name, `/\`); i >= 0 {
		return name[i+1:]
	}
	return name
}

func isSafe(r rune) bool {
	return r >= 'a' && r <= 'z' ||
		r >= 'A' && r <= 'Z' ||
		r >= '0' && r <= '9' ||
		r == '_' || r == '-'
}
