package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wsfuzz/internal/domain"
)

// execute runs the root command with stdin and an absent config file.
func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetIn(strings.NewReader(stdin))
	base := []string{"--config", filepath.Join(t.TempDir(), "absent.yaml"), "--log-level", "error"}
	root.SetArgs(append(base, args...))
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "", "version")
	require.NoError(t, err)
	assert.Contains(t, out, "wsfuzz dev")
}

func TestDetectCommand(t *testing.T) {
	tests := []struct {
		name  string
		stdin string
		args  []string
		want  string
	}{
		{"socket.io lines", "0{\"sid\":\"abc\",\"upgrades\":[]}\n42[\"chat\",\"hi\"]\n", nil, "socket.io"},
		{"graphql json array", `["{\"type\":\"connection_init\",\"payload\":{}}"]`, []string{"--json-input"}, "graphql-ws"},
		{"empty", "", nil, "raw"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := execute(t, tt.stdin, append([]string{"detect"}, tt.args...)...)
			require.NoError(t, err)
			assert.Equal(t, tt.want, strings.TrimSpace(out))
		})
	}
}

func TestDetectCommandReadsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "capture.txt")
	require.NoError(t, os.WriteFile(path, []byte("SEND\ndestination:/q\n\n\x00\n"), 0o600))
	out, err := execute(t, "", "detect", path)
	require.NoError(t, err)
	assert.NotEmpty(t, strings.TrimSpace(out))
}

func TestDecodeCommandSetRewritesField(t *testing.T) {
	out, err := execute(t, `42["login",{"user":"bob"}]`+"\n", "decode", "--set", "user=admin")
	require.NoError(t, err)
	assert.Contains(t, out, "socket.io login")
	assert.Contains(t, out, `42["login",{"user":"admin"}]`)
}

func TestDecodeCommandJSON(t *testing.T) {
	stdin := "> 42[\"ping_me\",{\"a\":1}]\n< 2\n"
	out, err := execute(t, stdin, "decode", "--directions", "--json", "--protocol", "socket.io")
	require.NoError(t, err)

	var entries []domain.FrameEntry
	require.NoError(t, json.Unmarshal([]byte(out), &entries))
	require.Len(t, entries, 2)
	assert.Equal(t, domain.DirectionToPeer, entries[0].Direction)
	assert.Equal(t, "ping_me", entries[0].EventName)
	assert.Equal(t, domain.DirectionFromPeer, entries[1].Direction)
	assert.True(t, entries[1].IsControl)
	assert.Equal(t, domain.ProtocolSocketIO, entries[1].Protocol)
}

func TestDecodeCommandRejectsBadInput(t *testing.T) {
	_, err := execute(t, "x\n", "decode", "--set", "novalue")
	assert.Error(t, err)

	_, err = execute(t, "x\n", "decode", "--protocol", "carrier-pigeon")
	assert.Error(t, err)
}

func TestPayloadsCommand(t *testing.T) {
	out, err := execute(t, "", "payloads")
	require.NoError(t, err)
	assert.Contains(t, out, "Socket.IO Events")

	out, err = execute(t, "", "payloads", "show", "socket.io namespaces")
	require.NoError(t, err)
	assert.Contains(t, strings.Split(strings.TrimSpace(out), "\n"), "/admin")

	_, err = execute(t, "", "payloads", "show", "nope")
	assert.ErrorIs(t, err, domain.ErrPayloadSetNotFound)
}

func TestFuzzCommandValidatesBeforeConnecting(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"missing url", []string{"--template", "x", "--payload", "1"}},
		{"missing template", []string{"--url", "ws://127.0.0.1:1", "--payload", "1"}},
		{"nothing to mutate", []string{"--url", "ws://127.0.0.1:1", "--template", `{"a":1}`, "--payload", "1"}},
		{"no payloads", []string{"--url", "ws://127.0.0.1:1", "--template", `{"a":1}`, "--field", "a"}},
		{"bad encoding", []string{"--url", "ws://127.0.0.1:1", "--template", `{"a":1}`, "--field", "a", "--payload", "1", "--encoding", "rot13"}},
		{"bad range", []string{"--url", "ws://127.0.0.1:1", "--template", `{"a":1}`, "--field", "a", "--range", "9-1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, "", append([]string{"fuzz"}, tt.args...)...)
			assert.Error(t, err)
		})
	}
}
