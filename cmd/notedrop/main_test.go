package main

import (
	"bytes"
	"context"
	"net"
	"net/http"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"notedrop/internal/auth"
	"notedrop/internal/config"
	"notedrop/internal/logging"
)

func runCmd(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestHashPasswordArg(t *testing.T) {
	out, err := runCmd(t, "", "hash-password", "--cost", "4", "s3cret")
	require.NoError(t, err)
	hash := strings.TrimSpace(out)
	assert.True(t, auth.VerifyPassword(hash, "s3cret"))
	c, err := bcrypt.Cost([]byte(hash))
	require.NoError(t, err)
	assert.Equal(t, 4, c)
}

func TestHashPasswordStdin(t *testing.T) {
	out, err := runCmd(t, "from-stdin\n", "hash-password", "--cost", "4")
	require.NoError(t, err)
	assert.True(t, auth.VerifyPassword(strings.TrimSpace(out), "from-stdin"))
}

func TestHashPasswordEmpty(t *testing.T) {
	_, err := runCmd(t, "", "hash-password", "--cost", "4")
	assert.Error(t, err)
}

func TestMigrateCommand(t *testing.T) {
	t.Setenv("NOTEDROP_DATABASE_URL", filepath.Join(t.TempDir(), "cli.db"))

	out, err := runCmd(t, "", "migrate")
	require.NoError(t, err)
	assert.Equal(t, "schema at version 1\n", out)

	out, err = runCmd(t, "", "migrate")
	require.NoError(t, err)
	assert.Equal(t, "schema at version 1\n", out)
}

func TestMigrateRejectsBadConfig(t *testing.T) {
	t.Setenv("NOTEDROP_DATABASE_DRIVER", "mysql")
	_, err := runCmd(t, "", "migrate")
	assert.Error(t, err)
}

func TestRootRejectsArgs(t *testing.T) {
	_, err := runCmd(t, "", "extra")
	assert.Error(t, err)
}

func freeAddr(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())
	return addr
}

func TestServeStartsAndShutsDown(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("NOTEDROP_DATABASE_URL", filepath.Join(dir, "serve.db"))
	t.Setenv("NOTEDROP_UPLOAD_DIR", filepath.Join(dir, "uploads"))
	t.Setenv("NOTEDROP_ADDR", freeAddr(t))
	cfg, err := config.Load()
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- serve(ctx, cfg, logging.Discard()) }()

	url := "http://" + cfg.Addr + "/health"
	require.Eventually(t, func() bool {
		resp, err := http.Get(url)
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 50*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("serve did not return after cancel")
	}
}
