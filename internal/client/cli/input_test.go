package cli

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAskLine(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr error
	}{
		{name: "trims", input: "  buy milk \n", want: "buy milk"},
		{name: "last line without newline", input: "walk dog", want: "walk dog"},
		{name: "empty input", input: "", wantErr: io.EOF},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			got, err := askLine(bufio.NewReader(strings.NewReader(tt.input)), &out, "Title")
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, "Title: ", out.String())
		})
	}
}

func TestAskSecret(t *testing.T) {
	orig := termReadPassword
	t.Cleanup(func() { termReadPassword = orig })

	termReadPassword = func(int) ([]byte, error) { return []byte("pw"), nil }
	var out bytes.Buffer
	got, err := askSecret(&out, "Password")
	require.NoError(t, err)
	assert.Equal(t, []byte("pw"), got)
	assert.Equal(t, "Password: \n", out.String())

	termReadPassword = func(int) ([]byte, error) { return nil, errors.New("not a terminal") }
	_, err = askSecret(&out, "Password")
	require.Error(t, err)
}

func TestConfirm(t *testing.T) {
	for input, want := range map[string]bool{"y\n": true, "YES\n": true, "no\n": false, "\n": false} {
		var out bytes.Buffer
		got, err := confirm(bufio.NewReader(strings.NewReader(input)), &out, "Discard?")
		require.NoError(t, err)
		assert.Equal(t, want, got, "input %q", input)
		assert.Equal(t, "Discard? [y/N]: ", out.String())
	}
}
