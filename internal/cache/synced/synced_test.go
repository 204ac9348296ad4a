package synced

import (
	"testing"

	"github.com/google/uuid"
)

func TestUpload_ReplacesWholesale(t *testing.T) {
	c := New()
	alex, steve := uuid.New(), uuid.New()
	c.Upload(map[string]Player{
		"Alex":  {UUID: alex, Nick: "Al", Server: "lobby"},
		"Steve": {UUID: steve, Server: "survival"},
	})
	if c.Len() != 2 {
		t.Fatalf("Len = %d", c.Len())
	}

	c.Upload(map[string]Player{"Alex": {UUID: alex, Server: "lobby"}})

	if _, ok := c.FromName("Steve"); ok {
		t.Fatalf("Steve should be gone by name")
	}
	if _, ok := c.FromUUID(steve); ok {
		t.Fatalf("Steve should be gone by uuid")
	}
	if c.HasServer("survival") {
		t.Fatalf("survival should be gone")
	}
	if got := c.Servers(); len(got) != 1 || got[0] != "lobby" {
		t.Fatalf("Servers = %v", got)
	}
	if p, ok := c.FromName("Alex"); !ok || p.Name != "Alex" {
		t.Fatalf("name should default to the map key: %+v", p)
	}
}

func TestFromName_AliasIgnoresCase(t *testing.T) {
	c := New()
	c.Upload(map[string]Player{"Alex": {Nick: "Al", Server: "lobby"}})
	if _, ok := c.FromName("aL"); !ok {
		t.Fatalf("alias lookup should ignore case")
	}
	if _, ok := c.FromName("nobody"); ok {
		t.Fatalf("unexpected hit")
	}
}

func TestAll_SortedAndIgnoring(t *testing.T) {
	c := New()
	x := uuid.New()
	c.Upload(map[string]Player{
		"zed": {Server: "a", IgnoringAll: true},
		"amy": {Server: "b", Ignored: []uuid.UUID{x}},
	})
	all := c.All()
	if all[0].Name != "amy" || all[1].Name != "zed" {
		t.Fatalf("All order = %v", all)
	}
	if !all[0].IsIgnoring(x) || all[0].IsIgnoring(uuid.New()) || !all[1].IsIgnoring(uuid.New()) {
		t.Fatalf("IsIgnoring wrong")
	}
}
