package cli

import (
	"bufio"
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetSimpleText(t *testing.T) {
	var out bytes.Buffer
	r := bufio.NewReader(strings.NewReader("  Kyoto trip  \n"))

	got, err := GetSimpleText(r, "Enter title", &out)
	require.NoError(t, err)
	assert.Equal(t, "Kyoto trip", got)
	assert.Contains(t, out.String(), "Enter title")
}

func TestGetSimpleTextPartialLineAtEOF(t *testing.T) {
	var out bytes.Buffer
	r := bufio.NewReader(strings.NewReader("no newline"))

	got, err := GetSimpleText(r, "Enter title", &out)
	require.NoError(t, err)
	assert.Equal(t, "no newline", got)
}

func TestGetSecretUsesTerminalReader(t *testing.T) {
	orig := readPassword
	readPassword = func(fd int) ([]byte, error) { return []byte(" tok-123 "), nil }
	t.Cleanup(func() { readPassword = orig })

	var out bytes.Buffer
	got, err := GetSecret("Enter session token", &out)
	require.NoError(t, err)
	assert.Equal(t, "tok-123", got)
	assert.Contains(t, out.String(), "Enter session token")
}
