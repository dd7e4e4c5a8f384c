package exif

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/riiicil/autometa/internal/pkg/stats"
	"github.com/riiicil/autometa/internal/pkg/stop"
	"github.com/riiicil/autometa/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	stats.Init()
	os.Exit(m.Run())
}

func fakeExiftool(t *testing.T, path string) {
	t.Helper()
	orig := lookPath
	lookPath = func(string) (string, error) { return path, nil }
	t.Cleanup(func() { lookPath = orig })
}

func testMetadata() *models.Metadata {
	return &models.Metadata{
		Title:       "Red fox in snow",
		Description: "A fox walking through fresh snow",
		Tags:        []string{"fox", "snow"},
	}
}

func TestSanitizeTitle(t *testing.T) {
	assert.Equal(t, "Red fox.", SanitizeTitle("Red fox"))
	assert.Equal(t, "Red fox - winter.", SanitizeTitle("Red fox: winter"))
	assert.Equal(t, "Fox in snow.", SanitizeTitle("Fox\nin\tsnow"))
	assert.Equal(t, "", SanitizeTitle(""))

	long := strings.Repeat("word ", 50) + "tail. " + strings.Repeat("more ", 20)
	out := SanitizeTitle(long)
	assert.LessOrEqual(t, len(out), 200)
	assert.True(t, strings.HasSuffix(out, "."), "truncation ends on a sentence boundary")
}

func TestSanitizeText(t *testing.T) {
	assert.Equal(t, "a - b, c.d", SanitizeText("a: b, c.d", 0))
	assert.Equal(t, "hello world", SanitizeText("hello   world!!!", 0))
	assert.Equal(t, "abcde", SanitizeText("abcdefgh", 5))
}

func TestSanitizeKeyword(t *testing.T) {
	assert.Equal(t, "fox", SanitizeKeyword("fox!"))
	assert.Equal(t, "red fox", SanitizeKeyword("  red   fox  "))
	assert.Equal(t, "", SanitizeKeyword("!!!"))
	assert.LessOrEqual(t, len(SanitizeKeyword(strings.Repeat("x", 100))), 64)
}

func TestSanitizeRuneSafety(t *testing.T) {
	// multibyte input never yields invalid UTF-8, whatever the cap
	for _, s := range []string{
		strings.Repeat("日本語", 40),
		"café " + strings.Repeat("é", 100),
	} {
		assert.True(t, utf8.ValidString(SanitizeText(s, 64)))
		assert.True(t, utf8.ValidString(SanitizeTitle(s)))
		assert.True(t, utf8.ValidString(SanitizeKeyword(s)))
	}
}

func TestCleanKeywordsDedupes(t *testing.T) {
	out := cleanKeywords([]string{"fox", "Fox!", "fox", "snow"}, 10)
	assert.Equal(t, []string{"fox", "Fox", "snow"}, out)
}

func TestStrategyFor(t *testing.T) {
	assert.Equal(t, strategyXMPIPTC, strategyFor("a.jpg"))
	assert.Equal(t, strategyXMPIPTC, strategyFor("a.JPEG"))
	assert.Equal(t, strategyXMPOnly, strategyFor("a.mp4"))
	assert.Equal(t, strategyEPS, strategyFor("a.eps"))
	assert.Equal(t, strategyGeneric, strategyFor("a.png"))
}

func TestEmbedCancelled(t *testing.T) {
	token := stop.NewToken()
	token.Stop()

	proceed, status := Embed(token, "in.jpg", "out.jpg", testMetadata(), 10)
	assert.False(t, proceed)
	assert.Equal(t, StatusCancelled, status)
}

func TestEmbedCopiesInputWhenOutputMissing(t *testing.T) {
	fakeExiftool(t, "/bin/true")
	if _, err := os.Stat("/bin/true"); err != nil {
		t.Skip("no /bin/true on this platform")
	}

	dir := t.TempDir()
	input := filepath.Join(dir, "in.jpg")
	output := filepath.Join(dir, "out.jpg")
	require.NoError(t, os.WriteFile(input, []byte("image bytes"), 0644))

	proceed, status := Embed(stop.NewToken(), input, output, testMetadata(), 10)
	assert.True(t, proceed)
	assert.Equal(t, StatusOK, status)

	data, err := os.ReadFile(output)
	require.NoError(t, err)
	assert.Equal(t, "image bytes", string(data))
}

func TestEmbedCopyFailure(t *testing.T) {
	dir := t.TempDir()
	proceed, status := Embed(stop.NewToken(), filepath.Join(dir, "missing.jpg"), filepath.Join(dir, "out.jpg"), testMetadata(), 10)
	assert.False(t, proceed)
	assert.Equal(t, StatusFailed, status)
}

func TestEmbedNoMetadata(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "in.jpg")
	require.NoError(t, os.WriteFile(input, []byte("x"), 0644))

	proceed, status := Embed(stop.NewToken(), input, filepath.Join(dir, "out.jpg"), &models.Metadata{}, 10)
	assert.True(t, proceed)
	assert.Equal(t, StatusNoMetadata, status)
}

func TestEmbedToolNotFound(t *testing.T) {
	orig := lookPath
	lookPath = func(string) (string, error) { return "", os.ErrNotExist }
	t.Cleanup(func() { lookPath = orig })

	dir := t.TempDir()
	input := filepath.Join(dir, "in.jpg")
	require.NoError(t, os.WriteFile(input, []byte("x"), 0644))

	proceed, status := Embed(stop.NewToken(), input, filepath.Join(dir, "out.jpg"), testMetadata(), 10)
	assert.True(t, proceed)
	assert.Equal(t, StatusToolNotFound, status)
}

func TestEmbedWriteFailure(t *testing.T) {
	fakeExiftool(t, "/bin/false")
	if _, err := os.Stat("/bin/false"); err != nil {
		t.Skip("no /bin/false on this platform")
	}

	dir := t.TempDir()
	input := filepath.Join(dir, "in.jpg")
	require.NoError(t, os.WriteFile(input, []byte("x"), 0644))

	proceed, status := Embed(stop.NewToken(), input, filepath.Join(dir, "out.jpg"), testMetadata(), 10)
	assert.True(t, proceed)
	assert.Equal(t, StatusFailed, status)
}

func TestWriteArgsJPEG(t *testing.T) {
	args := writeArgs("out.jpg", "Title.", "Desc", []string{"fox", "snow"})
	joined := strings.Join(args, " ")
	assert.Contains(t, joined, "-XMP-dc:Title=Title.")
	assert.Contains(t, joined, "-IPTC:ObjectName=Title.")
	assert.Contains(t, joined, "-XMP-dc:Subject+=fox")
	assert.Contains(t, joined, "-IPTC:Keywords+=snow")
	assert.Equal(t, "out.jpg", args[len(args)-1])
}

func TestWriteArgsEPS(t *testing.T) {
	args := writeArgs("out.eps", "Title.", "Desc", []string{"fox"})
	joined := strings.Join(args, " ")
	assert.Contains(t, joined, "-Title=Title.")
	assert.Contains(t, joined, "-Keywords+=fox")
	assert.NotContains(t, joined, "-XMP-dc:Subject")
}
