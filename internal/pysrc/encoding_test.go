package pysrc

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectEncodingDefault(t *testing.T) {
	result := DetectEncoding([]byte("x = 1\n"))
	assert.Equal(t, "utf-8", result.Encoding)
	assert.False(t, result.HasBOM)
	assert.False(t, result.Declared)
}

func TestDetectEncodingBOM(t *testing.T) {
	data := append([]byte{0xEF, 0xBB, 0xBF}, []byte("x = 1\n")...)
	result := DetectEncoding(data)
	assert.Equal(t, "utf-8", result.Encoding)
	assert.True(t, result.HasBOM)

	assert.Equal(t, "x = 1\n", NormalizeToUTF8(data, result))
}

func TestDetectEncodingDeclaration(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"emacs style", "# -*- coding: latin-1 -*-\nx = 1\n", "iso-8859-1"},
		{"vim style", "# vim: set fileencoding=cp1252 :\nx = 1\n", "windows-1252"},
		{"second line", "#!/usr/bin/env python\n# coding: utf-8\nx = 1\n", "utf-8"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := DetectEncoding([]byte(tt.src))
			assert.Equal(t, tt.want, result.Encoding)
			assert.True(t, result.Declared)
		})
	}
}

func TestDetectEncodingThirdLineIgnored(t *testing.T) {
	src := "x = 1\ny = 2\n# coding: latin-1\n"
	result := DetectEncoding([]byte(src))
	assert.Equal(t, "utf-8", result.Encoding)
	assert.False(t, result.Declared)
}

func TestDetectEncodingStatisticalFallback(t *testing.T) {
	t.Run("undeclared single byte western", func(t *testing.T) {
		result := DetectEncoding([]byte("s = 'caf\xe9'\n"))
		assert.Equal(t, "windows-1252", result.Encoding)
		assert.False(t, result.Declared)
	})

	t.Run("utf-16le without BOM", func(t *testing.T) {
		// "é = 1\n" encoded little-endian
		data := []byte{0xE9, 0x00, 0x20, 0x00, 0x3D, 0x00, 0x20, 0x00, 0x31, 0x00, 0x0A, 0x00}
		result := DetectEncoding(data)
		require.Equal(t, "utf-16le", result.Encoding)
		assert.Equal(t, "é = 1\n", NormalizeToUTF8(data, result))
	})

	t.Run("utf-16be without BOM", func(t *testing.T) {
		data := []byte{0x00, 0xE9, 0x00, 0x20, 0x00, 0x3D, 0x00, 0x20, 0x00, 0x31, 0x00, 0x0A}
		result := DetectEncoding(data)
		assert.Equal(t, "utf-16be", result.Encoding)
	})
}

func TestNormalizeToUTF8Latin1(t *testing.T) {
	// "caf<e-acute>" in latin-1
	data := []byte("# -*- coding: latin-1 -*-\ns = 'caf\xe9'\n")
	result := DetectEncoding(data)
	require.Equal(t, "iso-8859-1", result.Encoding)

	decoded := NormalizeToUTF8(data, result)
	assert.Contains(t, decoded, "café")
}

func TestReadFileAsUTF8(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mod.py")
	require.NoError(t, os.WriteFile(path, []byte("x = 1\n"), 0644))

	content, result, err := ReadFileAsUTF8(path)
	require.NoError(t, err)
	assert.Equal(t, "x = 1\n", content)
	assert.Equal(t, "utf-8", result.Encoding)
}

func TestReadFileAsUTF8Missing(t *testing.T) {
	_, _, err := ReadFileAsUTF8(filepath.Join(t.TempDir(), "nope.py"))
	assert.Error(t, err)
}
