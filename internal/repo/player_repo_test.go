package repo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/tbourn/chatsync/internal/domain"
)

func TestUpsertPlayer_InsertThenReplace(t *testing.T) {
	db := newTestDB(t, true)
	ctx := context.Background()
	id := uuid.NewString()
	t0 := time.Now().UTC().Truncate(time.Second)

	if err := UpsertPlayer(ctx, db, &domain.PlayerRecord{UUID: id, Name: "Steve", ModifiedAt: t0}); err != nil {
		t.Fatalf("insert: %v", err)
	}
	got, err := GetPlayer(ctx, db, id)
	if err != nil {
		t.Fatalf("GetPlayer: %v", err)
	}
	if got.NameKey != "steve" || string(got.Data) != "{}" {
		t.Fatalf("defaults not applied: %+v", got)
	}

	err = UpsertPlayer(ctx, db, &domain.PlayerRecord{
		UUID: id, Name: "Steve", Nick: "Stevie", Data: []byte(`{"chatColor":"red"}`), ModifiedAt: t0.Add(time.Minute),
	})
	if err != nil {
		t.Fatalf("replace: %v", err)
	}
	got, err = GetPlayer(ctx, db, "STEVIE")
	if err != nil {
		t.Fatalf("GetPlayer by alias: %v", err)
	}
	if got.Nick != "Stevie" || string(got.Data) != `{"chatColor":"red"}` {
		t.Fatalf("row not replaced: %+v", got)
	}

	var n int64
	db.Model(&domain.PlayerRecord{}).Count(&n)
	if n != 1 {
		t.Fatalf("expected one row, got %d", n)
	}
}

func TestGetPlayer_NotFound(t *testing.T) {
	db := newTestDB(t, true)
	_, err := GetPlayer(context.Background(), db, "nobody")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	_, err = GetPlayer(context.Background(), db, uuid.NewString())
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound by uuid, got %v", err)
	}
}

func TestGetPlayer_NameReusePrefersNewest(t *testing.T) {
	db := newTestDB(t, true)
	ctx := context.Background()
	old, cur := uuid.NewString(), uuid.NewString()
	t0 := time.Now().UTC()
	_ = UpsertPlayer(ctx, db, &domain.PlayerRecord{UUID: old, Name: "Alex", ModifiedAt: t0.Add(-time.Hour)})
	_ = UpsertPlayer(ctx, db, &domain.PlayerRecord{UUID: cur, Name: "alex", ModifiedAt: t0})

	got, err := GetPlayer(ctx, db, "Alex")
	if err != nil || got.UUID != cur {
		t.Fatalf("expected newest record %s, got %+v err=%v", cur, got, err)
	}
}

func TestListPlayers_OrderedByName(t *testing.T) {
	db := newTestDB(t, true)
	ctx := context.Background()
	for _, n := range []string{"zed", "Alex", "mia"} {
		_ = UpsertPlayer(ctx, db, &domain.PlayerRecord{UUID: uuid.NewString(), Name: n, ModifiedAt: time.Now()})
	}
	got, err := ListPlayers(ctx, db)
	if err != nil {
		t.Fatalf("ListPlayers: %v", err)
	}
	if len(got) != 3 || got[0].Name != "Alex" || got[1].Name != "mia" || got[2].Name != "zed" {
		t.Fatalf("unexpected order: %+v", got)
	}
}

func TestPurgePlayers_EmptyAndInactive(t *testing.T) {
	db := newTestDB(t, true)
	ctx := context.Background()
	now := time.Now().UTC()

	keep := uuid.NewString()
	_ = UpsertPlayer(ctx, db, &domain.PlayerRecord{UUID: keep, Name: "active", Data: []byte(`{"chatColor":"red"}`), ModifiedAt: now})
	_ = UpsertPlayer(ctx, db, &domain.PlayerRecord{UUID: uuid.NewString(), Name: "empty", Data: []byte(`{}`), ModifiedAt: now})
	_ = UpsertPlayer(ctx, db, &domain.PlayerRecord{UUID: uuid.NewString(), Name: "stale", Data: []byte(`{"chatColor":"red"}`), ModifiedAt: now.Add(-48 * time.Hour)})

	n, err := PurgePlayers(ctx, db, now.Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("PurgePlayers: %v", err)
	}
	if n != 2 {
		t.Fatalf("purged %d; want 2", n)
	}
	rest, _ := ListPlayers(ctx, db)
	if len(rest) != 1 || rest[0].UUID != keep {
		t.Fatalf("unexpected survivors: %+v", rest)
	}

	if n, err := PurgePlayers(ctx, db, now.Add(-24*time.Hour)); err != nil || n != 0 {
		t.Fatalf("second purge = %d, %v; want 0, nil", n, err)
	}
}

func TestPurgePlayers_NoTable(t *testing.T) {
	db := newTestDB(t, false)
	if _, err := PurgePlayers(context.Background(), db, time.Now()); err == nil {
		t.Fatalf("expected error without table")
	}
}
