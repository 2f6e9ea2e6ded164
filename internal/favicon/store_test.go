package favicon_test

import (
	"bytes"
	"encoding/base64"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mcstatus/internal/favicon"
)

func pngBytes(t *testing.T, c color.Color) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	img.Set(1, 1, c)
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func dataURI(b []byte) string {
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(b)
}

func TestSave_DataURI(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "icons")
	s := favicon.NewStore(dir)
	assert.Equal(t, dir, s.Dir())
	raw := pngBytes(t, color.White)

	path, err := s.Save("survival", dataURI(raw))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "survival.png"), path)
	assert.Equal(t, s.Path("survival"), path)

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, raw, got)
}

func TestSave_RejectsIDsThatAreNotFileNames(t *testing.T) {
	dir := t.TempDir()
	s := favicon.NewStore(dir)
	uri := dataURI(pngBytes(t, color.White))

	for _, id := range []string{"", ".", "..", "eu/survival", `eu\survival`} {
		_, err := s.Save(id, uri)
		assert.ErrorIs(t, err, favicon.ErrInvalidID, "id %q", id)
	}
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestSave_BarePayloadWithLineBreaks(t *testing.T) {
	s := favicon.NewStore(t.TempDir())
	raw := pngBytes(t, color.Black)
	enc := base64.StdEncoding.EncodeToString(raw)
	wrapped := enc[:10] + "\n" + enc[10:20] + "\r\n" + enc[20:]

	path, err := s.Save("creative", wrapped)
	require.NoError(t, err)
	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, raw, got)
}

func TestSave_LeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	s := favicon.NewStore(dir)
	_, err := s.Save("a", dataURI(pngBytes(t, color.White)))
	require.NoError(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "a.png", entries[0].Name())
}

func TestSave_Rejects(t *testing.T) {
	cases := map[string]string{
		"empty":      "data:image/png;base64,",
		"not base64": "data:image/png;base64,@@@@",
		"not png":    dataURI([]byte("GIF89a not a png at all")),
	}
	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			dir := filepath.Join(t.TempDir(), "icons")
			s := favicon.NewStore(dir)
			_, err := s.Save("x", data)
			require.Error(t, err)

			_, statErr := os.Stat(s.Path("x"))
			assert.True(t, errors.Is(statErr, os.ErrNotExist), "nothing written on failure")
		})
	}
}

func TestDecode_Empty(t *testing.T) {
	_, err := favicon.Decode("")
	assert.True(t, errors.Is(err, favicon.ErrEmpty))
}
