package loader

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ziadkadry99/hostkb/internal/chunker"
)

func writeFile(t *testing.T, dir, rel, content string) string {
	t.Helper()
	path := filepath.Join(dir, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDiscover(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "villa/listing.md", "# Villa\n")
	writeFile(t, dir, "villa/rules.txt", "No parties.")
	writeFile(t, dir, "villa/photo.jpg", "not text")
	writeFile(t, dir, "villa/drafts/old.md", "# Old\n")
	writeFile(t, dir, "bin.md", "abc\x00def")
	writeFile(t, dir, ".git/notes.md", "# internal\n")

	files, err := Discover([]string{
		filepath.Join(dir, "**", "*"),
		filepath.Join(dir, "villa", "listing.md"),
	}, Options{Exclude: []string{"**/drafts/**"}})
	require.NoError(t, err)

	var names []string
	for _, f := range files {
		rel, _ := filepath.Rel(dir, f.Path)
		names = append(names, filepath.ToSlash(rel))
	}
	assert.Equal(t, []string{"villa/listing.md", "villa/rules.txt"}, names)
	assert.Equal(t, FormatMarkdown, files[0].Format)
	assert.Equal(t, FormatText, files[1].Format)
}

func TestDiscoverSkipsLargeFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "big.txt", "0123456789")

	files, err := Discover([]string{filepath.Join(dir, "*.txt")}, Options{MaxFileSize: 5})
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestDiscoverInvalidPattern(t *testing.T) {
	_, err := Discover([]string{"docs/[a-"}, Options{})
	assert.Error(t, err)
}

func TestMarkdownToText(t *testing.T) {
	src := `# Villa Azur

A **bright** villa with a [sea view](https://example.com/view).

## Prices

| Season | Rate |
|--------|------|
| High   | 250  |
| Low    | 150  |

## Amenities

- Pool
- Fast wifi
  - fibre, 500 Mb

` + "```\nWifi: azur / sunshine42\n```\n"

	out, title := MarkdownToText([]byte(src))

	assert.Equal(t, "Villa Azur", title)
	assert.Contains(t, out, "# Villa Azur\n\nA bright villa with a sea view.")
	assert.Contains(t, out, "## Prices\n\nSeason | Rate\nHigh | 250\nLow | 150")
	assert.Contains(t, out, "- Pool\n- Fast wifi\n  - fibre, 500 Mb")
	assert.Contains(t, out, "Wifi: azur / sunshine42")
	assert.NotContains(t, out, "**")
	assert.NotContains(t, out, "https://")
	assert.NotContains(t, out, "\n\n\n")
}

func TestMarkdownSectionsStillChunk(t *testing.T) {
	src := "# Studio\n\nCosy studio.\n\n## Prices\n\n*90 EUR* per night.\n\n## Check-in\n\nFrom 4pm.\n"
	out, _ := MarkdownToText([]byte(src))

	var titles []string
	for _, p := range chunker.Chunk(out, 512) {
		titles = append(titles, p.Title)
	}
	assert.Equal(t, []string{"pricing", "check_in_out", chunker.TitleOther}, titles)
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	md := writeFile(t, dir, "guide.md", "# Welcome guide\n\nKeys are in the box.\n")
	txt := writeFile(t, dir, "house-rules.txt", "No smoking.  \r\nQuiet after 10pm.\r\n")

	doc, err := Load(md)
	require.NoError(t, err)
	assert.Equal(t, "Welcome guide", doc.Title)
	assert.Equal(t, FormatMarkdown, doc.Format)
	assert.Len(t, doc.Hash, 64)

	doc, err = Load(txt)
	require.NoError(t, err)
	assert.Equal(t, "house-rules", doc.Title)
	assert.Equal(t, "No smoking.\nQuiet after 10pm.", doc.Text)

	_, err = Load(filepath.Join(dir, "missing.md"))
	assert.Error(t, err)
}
