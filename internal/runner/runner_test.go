package runner

import (
	"context"
	"os/exec"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecRunCapturesStdout(t *testing.T) {
	if _, err := exec.LookPath("echo"); err != nil {
		t.Skip("echo not available")
	}
	out, errb, err := NewExec(nil).Run(context.Background(), "echo", "nota", "fiscal")
	require.NoError(t, err)
	assert.Equal(t, "nota fiscal", strings.TrimSpace(string(out)))
	assert.Empty(t, errb)
}

func TestExecRunMissingBinary(t *testing.T) {
	_, _, err := NewExec(nil).Run(context.Background(), "definitely-not-a-real-binary-xyz")
	assert.Error(t, err)
}

func TestExecRunHonorsCancel(t *testing.T) {
	if _, err := exec.LookPath("sleep"); err != nil {
		t.Skip("sleep not available")
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err := NewExec(nil).Run(ctx, "sleep", "5")
	assert.Error(t, err)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", Truncate("abc", 5))
	assert.Equal(t, "ab...(truncated)", Truncate("abcdef", 2))
}

func TestFuncAdapter(t *testing.T) {
	var got []string
	r := Func(func(_ context.Context, name string, args ...string) ([]byte, []byte, error) {
		got = append([]string{name}, args...)
		return []byte("ok"), nil, nil
	})
	out, _, err := r.Run(context.Background(), "tesseract", "in.png", "stdout")
	require.NoError(t, err)
	assert.Equal(t, "ok", string(out))
	assert.Equal(t, []string{"tesseract", "in.png", "stdout"}, got)
}
