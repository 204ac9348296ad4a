package main

import (
	"context"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/tbourn/chatsync/internal/config"
	"github.com/tbourn/chatsync/internal/domain"
)

func TestOpenStores_LocalMigrates(t *testing.T) {
	cfg := config.Config{Storage: config.StorageConfig{
		Mode:      config.StorageLocal,
		LocalPath: filepath.Join(t.TempDir(), "node.db"),
	}}
	local, remote, err := openStores(cfg)
	if err != nil {
		t.Fatalf("openStores: %v", err)
	}
	if remote != nil {
		t.Fatalf("remote opened in local mode")
	}
	for _, m := range []any{&domain.PlayerRecord{}, &domain.IdentityRecord{}, &domain.ServerRecord{}, &domain.MailRecord{}} {
		if !local.Migrator().HasTable(m) {
			t.Fatalf("table for %T missing", m)
		}
	}
}

func TestOpenStores_RemoteUnsupportedDialect(t *testing.T) {
	cfg := config.Config{Storage: config.StorageConfig{
		Mode:          config.StorageRemote,
		LocalPath:     filepath.Join(t.TempDir(), "node.db"),
		RemoteDialect: "oracle",
	}}
	if _, _, err := openStores(cfg); err == nil {
		t.Fatalf("expected dialect error")
	}
}

func TestListen_StopsOnCancel(t *testing.T) {
	srv := newServer(config.Config{Port: "0", ReadHeaderTimeout: time.Second}, http.NotFoundHandler())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- listen(ctx, srv, zerolog.Nop()) }()

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("listen: %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("listen did not return after cancel")
	}
}
