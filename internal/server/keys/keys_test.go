package keys

import (
	"bytes"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/photokeeper/internal/common"
)

var safeName = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestSanitize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"photo.jpg", "photo"},
		{"../../etc/passwd", "passwd"},
		{`C:\Users\me\My Photo.final.png`, "My_Photo_final"},
		{"grand-mère_1952.jpeg", "grand-me_re_1952"},
		{"ﬁle.png", "file"},
		{"", DefaultBaseName},
		{".png", "_png"},
		{"///", DefaultBaseName},
		{"a b\x00c", "a_b_c"},
		{strings.Repeat("x", 100) + ".jpg", strings.Repeat("x", 64)},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Sanitize(tt.in))
		})
	}
}

func TestSanitize_IdempotentAndSafe(t *testing.T) {
	inputs := []string{
		"photo.jpg", "../x/../y.tar.gz", "日本語の写真.heic", "  spaced  name ", "ü", "%2e%2e%2f",
		"name-with_allowed-123", strings.Repeat("é", 80), "a.b.c.d", "\t\n", "emoji 📷 shot.webp",
	}
	for _, in := range inputs {
		once := Sanitize(in)
		assert.Equal(t, once, Sanitize(once), "input %q", in)
		assert.Regexp(t, safeName, once, "input %q", in)
	}
}

func TestExtension(t *testing.T) {
	assert.Equal(t, ".jpg", Extension("photo.JPG"))
	assert.Equal(t, ".png", Extension("dir/a.b.png"))
	assert.Equal(t, "", Extension("noext"))
	assert.Equal(t, "", Extension(".hidden"))
	assert.Equal(t, "", Extension("trailing."))
	assert.Equal(t, "", Extension("weird.p/g"))
	assert.Equal(t, "", Extension("x.j$g"))
	assert.Equal(t, "", Extension("x.averyveryverylongext"))
}

func TestDerive(t *testing.T) {
	ts := time.Date(2024, 3, 7, 23, 59, 0, 0, time.UTC)

	assert.Equal(t,
		"submissions/2024/03/07/1709855940000-abcdef/photo_out.jpg",
		Derive(RoleDerived, "1709855940000-abcdef", "photo", DerivedSuffix, FolderDate(ts)))
	assert.Equal(t,
		"originals/2024/03/07/1709855940000-abcdef/photo.png",
		Derive(RoleOriginal, "1709855940000-abcdef", "photo", ".png", FolderDate(ts)))
}

func TestFolderDate_UsesUTC(t *testing.T) {
	loc := time.FixedZone("plus5", 5*3600)
	ts := time.Date(2024, 1, 1, 2, 0, 0, 0, loc)
	assert.Equal(t, "2023/12/31", FolderDate(ts))
}

func TestNewID_Format(t *testing.T) {
	ts := time.UnixMilli(1700000000123)
	g := NewIDGeneratorWith(fixedClock(ts), bytes.NewReader([]byte{0x01, 0x02, 0x03}))

	id, issued, err := g.NewID()
	require.NoError(t, err)
	assert.Equal(t, "1700000000123-010203", id)
	assert.Equal(t, ts.UTC(), issued)
}

func TestNewID_ForcedCollisionIsRedrawn(t *testing.T) {
	ts := time.UnixMilli(1700000000000)
	// The second draw repeats the first; the generator must skip it.
	entropy := bytes.NewReader([]byte{
		0xaa, 0xbb, 0xcc,
		0xaa, 0xbb, 0xcc,
		0x11, 0x22, 0x33,
	})
	g := NewIDGeneratorWith(fixedClock(ts), entropy)

	first, _, err := g.NewID()
	require.NoError(t, err)
	second, _, err := g.NewID()
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
	assert.Equal(t, "1700000000000-112233", second)

	k1 := Derive(RoleDerived, first, "same", DerivedSuffix, FolderDate(ts))
	k2 := Derive(RoleDerived, second, "same", DerivedSuffix, FolderDate(ts))
	assert.NotEqual(t, k1, k2)
}

type repeatReader struct{ b byte }

func (r repeatReader) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = r.b
	}
	return len(p), nil
}

func TestNewID_ExhaustedWhenEntropyStuck(t *testing.T) {
	g := NewIDGeneratorWith(fixedClock(time.UnixMilli(1)), repeatReader{b: 7})

	_, _, err := g.NewID()
	require.NoError(t, err)
	_, _, err = g.NewID()
	assert.ErrorIs(t, err, common.ErrIDExhausted)
}

func TestNewID_NewMillisecondResetsMemory(t *testing.T) {
	ms := int64(1000)
	g := NewIDGeneratorWith(func() time.Time { return time.UnixMilli(ms) }, repeatReader{b: 9})

	a, _, err := g.NewID()
	require.NoError(t, err)
	ms++
	b, _, err := g.NewID()
	require.NoError(t, err)

	assert.Equal(t, "1000-090909", a)
	assert.Equal(t, "1001-090909", b)
}

func TestNewID_ConcurrentSameMillisecondUnique(t *testing.T) {
	g := NewIDGeneratorWith(fixedClock(time.UnixMilli(42)), NewIDGenerator().rand)

	const n = 200
	ids := make(chan string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id, _, err := g.NewID()
			if err == nil {
				ids <- id
			}
		}()
	}
	wg.Wait()
	close(ids)

	seen := map[string]bool{}
	for id := range ids {
		assert.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
	assert.Len(t, seen, n)
}
