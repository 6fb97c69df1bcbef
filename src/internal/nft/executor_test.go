package nft

import (
	"context"
	"net/netip"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/maksimkurb/keen-dnsset/src/internal/errors"
)

// writeFakeNft creates a shell script standing in for nft. It writes its
// single argument to out and exits with the given code.
func writeFakeNft(t *testing.T, exitCode string) (script, out string) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts are not supported on windows")
	}

	dir := t.TempDir()
	script = filepath.Join(dir, "nft")
	out = filepath.Join(dir, "args")
	content := "#!/bin/sh\nprintf '%s' \"$1\" > " + out + "\necho 'Error: No such file or directory' >&2\nexit " + exitCode + "\n"
	require.NoError(t, os.WriteFile(script, []byte(content), 0o755))
	return script, out
}

func testCommand() *Command {
	cmd := NewCommand()
	cmd.AddElement(&Target{Family: FamilyInet, Table: "filter", Set: "vpn", ElemType: ElemIPv4Addr},
		netip.MustParseAddr("93.184.216.34"))
	return cmd
}

func TestCLIExecutor_PassesScriptAsSingleArgument(t *testing.T) {
	script, out := writeFakeNft(t, "0")
	e := NewCLIExecutor(script)

	require.NoError(t, e.CheckExecutable())
	require.NoError(t, e.Execute(context.Background(), testCommand()))

	got, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "add element inet filter vpn { 93.184.216.34 }; ", string(got))
	assert.NoError(t, e.Close())
}

func TestCLIExecutor_FinishesAfterCancel(t *testing.T) {
	script, out := writeFakeNft(t, "0")
	e := NewCLIExecutor(script)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, e.Execute(ctx, testCommand()))

	got, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "add element inet filter vpn { 93.184.216.34 }; ", string(got))
}

func TestCLIExecutor_ReportsFailure(t *testing.T) {
	script, _ := writeFakeNft(t, "1")
	e := NewCLIExecutor(script)

	err := e.Execute(context.Background(), testCommand())
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.New(apperrors.ErrCodeExec, ""))
	assert.Contains(t, err.Error(), "No such file or directory")
}

func TestCLIExecutor_SkipsEmptyCommand(t *testing.T) {
	e := NewCLIExecutor("/nonexistent/nft")
	assert.NoError(t, e.Execute(context.Background(), NewCommand()))
	assert.Error(t, e.CheckExecutable())
}

func TestCLIExecutorFactory(t *testing.T) {
	factory := CLIExecutorFactory("")
	e1, err := factory()
	require.NoError(t, err)
	e2, err := factory()
	require.NoError(t, err)
	assert.NotSame(t, e1, e2)
	assert.Equal(t, "nft command (nft)", e1.(*CLIExecutor).String())
}

func TestDryRunExecutor(t *testing.T) {
	e := &DryRunExecutor{}
	require.NoError(t, e.Execute(context.Background(), testCommand()))
	assert.Equal(t, []string{"add element inet filter vpn { 93.184.216.34 }; "}, e.Commands)
}

func TestParseTimeout(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Duration
		wantErr bool
	}{
		{"", 0, false},
		{"3600", time.Hour, false},
		{"1h4s", time.Hour + 4*time.Second, false},
		{"1d", 24 * time.Hour, false},
		{"2d12h", 60 * time.Hour, false},
		{"500ms", 500 * time.Millisecond, false},
		{"forever", 0, true},
		{"xd", 0, true},
		{"-5m", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseTimeout(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
