package storage

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestChatRepository_PermitIsAppendOnly(t *testing.T) {
	db := newTestDB(t)
	repo := NewChatRepository(db)
	ctx := context.Background()

	added, err := repo.Permit(ctx, -100)
	if err != nil || !added {
		t.Fatalf("Permit = %v, %v", added, err)
	}
	added, err = repo.Permit(ctx, -100)
	if err != nil || added {
		t.Fatalf("repeated Permit = %v, %v", added, err)
	}
	if _, err := repo.Permit(ctx, 55); err != nil {
		t.Fatalf("Permit failed: %v", err)
	}

	ok, _ := repo.IsPermitted(ctx, -100)
	if !ok {
		t.Error("chat not permitted")
	}
	ok, _ = repo.IsPermitted(ctx, -200)
	if ok {
		t.Error("unknown chat permitted")
	}

	ids, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(ids) != 2 || ids[0] != -100 || ids[1] != 55 {
		t.Errorf("ids = %v", ids)
	}
}

func TestBanRepository(t *testing.T) {
	db := newTestDB(t)
	repo := NewBanRepository(db)
	ctx := context.Background()

	if err := repo.Ban(ctx, 7, "vasya"); err != nil {
		t.Fatalf("Ban failed: %v", err)
	}
	if err := repo.Ban(ctx, 7, "vasya2"); err != nil {
		t.Fatalf("repeated Ban failed: %v", err)
	}
	if ok, _ := repo.IsBanned(ctx, 7); !ok {
		t.Error("user not banned")
	}

	removed, err := repo.Unban(ctx, 7)
	if err != nil || !removed {
		t.Fatalf("Unban = %v, %v", removed, err)
	}
	removed, _ = repo.Unban(ctx, 7)
	if removed {
		t.Error("second Unban reported a removal")
	}
}

func TestSettingsRepository_EnsurePassphrase(t *testing.T) {
	db := newTestDB(t)
	repo := NewSettingsRepository(db)
	ctx := context.Background()

	if err := repo.EnsurePassphrase(ctx, ""); err != nil {
		t.Fatalf("EnsurePassphrase failed: %v", err)
	}
	if p, _ := repo.Passphrase(ctx); p != "" {
		t.Errorf("empty seed stored %q", p)
	}

	if err := repo.EnsurePassphrase(ctx, "secret"); err != nil {
		t.Fatalf("EnsurePassphrase failed: %v", err)
	}
	if err := repo.EnsurePassphrase(ctx, "other"); err != nil {
		t.Fatalf("EnsurePassphrase failed: %v", err)
	}
	if p, _ := repo.Passphrase(ctx); p != "secret" {
		t.Errorf("passphrase = %q, want secret", p)
	}

	if err := repo.Set(ctx, passphraseKey, "rotated"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if p, _ := repo.Passphrase(ctx); p != "rotated" {
		t.Errorf("passphrase = %q, want rotated", p)
	}
}

func TestChangeWatcher_FiresOnForeignWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "citebot.db")
	local, err := NewDB(path)
	if err != nil {
		t.Fatalf("NewDB failed: %v", err)
	}
	defer local.Close()
	if err := local.Migrate(); err != nil {
		t.Fatalf("Migrate failed: %v", err)
	}
	foreign, err := NewDB(path)
	if err != nil {
		t.Fatalf("NewDB failed: %v", err)
	}
	defer foreign.Close()

	ctx := context.Background()
	calls := 0
	w := NewChangeWatcher(local, time.Second, func(context.Context) error {
		calls++
		return nil
	}, discardLogger())

	last, err := local.DataVersion(ctx)
	if err != nil {
		t.Fatalf("DataVersion failed: %v", err)
	}

	if err := NewSettingsRepository(local).Set(ctx, "k", "v"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	last = w.check(ctx, last)
	if calls != 0 {
		t.Fatalf("own write triggered the watcher")
	}

	if err := NewSettingsRepository(foreign).Set(ctx, "k", "v2"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	last = w.check(ctx, last)
	if calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}

	w.check(ctx, last)
	if calls != 1 {
		t.Errorf("unchanged version triggered the watcher again")
	}
}

func TestChangeWatcher_FiresOnStart(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	calls := 0
	w := NewChangeWatcher(db, time.Second, func(context.Context) error {
		calls++
		return nil
	}, discardLogger())

	last, err := w.start(ctx)
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}

	w.check(ctx, last)
	if calls != 1 {
		t.Errorf("unchanged version triggered the watcher again")
	}
}

func TestChangeWatcher_StartsDespiteHandlerError(t *testing.T) {
	db := newTestDB(t)

	w := NewChangeWatcher(db, time.Second, func(context.Context) error {
		return errors.New("cache down")
	}, discardLogger())

	if _, err := w.start(context.Background()); err != nil {
		t.Errorf("start failed: %v", err)
	}
}
