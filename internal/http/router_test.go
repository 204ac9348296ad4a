package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/chatsync/internal/cache/synced"
	"github.com/tbourn/chatsync/internal/config"
	"github.com/tbourn/chatsync/internal/domain"
	"github.com/tbourn/chatsync/internal/http/handlers"
	"github.com/tbourn/chatsync/internal/http/middleware"
	"github.com/tbourn/chatsync/internal/node"
	"github.com/tbourn/chatsync/internal/relay"
	"github.com/tbourn/chatsync/internal/repo"
	"github.com/tbourn/chatsync/internal/services"
	"github.com/tbourn/chatsync/internal/store"
	"github.com/tbourn/chatsync/internal/syncproto"
)

const testToken = "s3cret"

func testConfig() config.Config {
	return config.Config{
		APIBasePath: "/api/v1",
		NodeName:    "lobby",
		RateRPS:     1000,
		RateBurst:   1000,
		Sync:        config.SyncConfig{Token: testToken},
		OTEL:        config.OTELConfig{ServiceName: "chatsync-test"},
	}
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:router_%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func newNodeRouter(t *testing.T) (*gin.Engine, *node.Node) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	n, err := node.New(node.Options{
		Name:         "lobby",
		Mode:         store.ModeLocal,
		Local:        newTestDB(t),
		SyncInterval: time.Hour,
	})
	if err != nil {
		t.Fatalf("node: %v", err)
	}
	if err := n.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = n.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	r := gin.New()
	RegisterNodeRoutes(r, n, testConfig())
	return r, n
}

func do(r http.Handler, method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return v
}

func TestNodeRoutes_HealthMetricsFallbacks(t *testing.T) {
	r, _ := newNodeRouter(t)

	w := do(r, http.MethodGet, "/health", nil)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"node":"lobby"`) {
		t.Fatalf("health = %d %s", w.Code, w.Body.String())
	}
	if w.Header().Get("X-Request-ID") == "" {
		t.Fatalf("missing request id")
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "" && got != "*" {
		t.Fatalf("ACAO = %q", got)
	}

	if w := do(r, http.MethodGet, "/metrics", nil); w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "chatsync_http_requests_total") {
		t.Fatalf("metrics = %d", w.Code)
	}

	w = do(r, http.MethodGet, "/nope", nil)
	if w.Code != http.StatusNotFound || decode[handlers.ErrorResponse](t, w).Code != handlers.ErrCodeNotFound {
		t.Fatalf("no route = %d %s", w.Code, w.Body.String())
	}
	w = do(r, http.MethodPatch, "/health", nil)
	if w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("no method = %d", w.Code)
	}
}

func TestNodeRoutes_SessionProfileFlow(t *testing.T) {
	r, _ := newNodeRouter(t)
	steve := uuid.New()

	w := do(r, http.MethodPost, "/api/v1/sessions", map[string]any{"uuid": steve.String(), "name": "Steve"})
	if w.Code != http.StatusCreated {
		t.Fatalf("join = %d %s", w.Code, w.Body.String())
	}
	if res := decode[services.JoinResult](t, w); res.Profile.Identity.UUID != steve || !res.Profile.Online {
		t.Fatalf("join result = %+v", res)
	}

	w = do(r, http.MethodGet, "/api/v1/players/steve", nil)
	if w.Code != http.StatusOK || decode[services.Profile](t, w).Identity.Name != "Steve" {
		t.Fatalf("lookup = %d %s", w.Code, w.Body.String())
	}

	w = do(r, http.MethodPut, "/api/v1/players/Steve/mute", map[string]string{"duration": "3600", "reason": "spam"})
	if w.Code != http.StatusOK || !decode[services.Profile](t, w).Muted {
		t.Fatalf("mute = %d %s", w.Code, w.Body.String())
	}

	w = do(r, http.MethodGet, "/api/v1/sessions/"+steve.String()+"/inbox", nil)
	notes := decode[[]map[string]any](t, w)
	if w.Code != http.StatusOK || len(notes) != 1 || !strings.Contains(notes[0]["text"].(string), "spam") {
		t.Fatalf("inbox = %d %s", w.Code, w.Body.String())
	}

	if w := do(r, http.MethodPut, "/api/v1/players/Steve/mute", map[string]string{"duration": "soon"}); w.Code != http.StatusBadRequest {
		t.Fatalf("bad duration = %d", w.Code)
	}
	if w := do(r, http.MethodGet, "/api/v1/players/ghost", nil); w.Code != http.StatusNotFound {
		t.Fatalf("unknown player = %d", w.Code)
	}
	if w := do(r, http.MethodGet, "/api/v1/sessions/not-a-uuid/inbox", nil); w.Code != http.StatusBadRequest {
		t.Fatalf("bad uuid = %d", w.Code)
	}

	if w := do(r, http.MethodDelete, "/api/v1/sessions/"+steve.String(), nil); w.Code != http.StatusNoContent {
		t.Fatalf("quit = %d", w.Code)
	}
	w = do(r, http.MethodDelete, "/api/v1/sessions/"+steve.String(), nil)
	if w.Code != http.StatusConflict || decode[handlers.ErrorResponse](t, w).Code != handlers.ErrCodeNotOnline {
		t.Fatalf("second quit = %d %s", w.Code, w.Body.String())
	}
}

func TestNodeRoutes_MailAndActor(t *testing.T) {
	r, _ := newNodeRouter(t)
	alex, steve := uuid.New(), uuid.New()
	for id, name := range map[uuid.UUID]string{alex: "Alex", steve: "Steve"} {
		if w := do(r, http.MethodPost, "/api/v1/sessions", map[string]any{"uuid": id.String(), "name": name}); w.Code != http.StatusCreated {
			t.Fatalf("join %s = %d", name, w.Code)
		}
	}

	w := do(r, http.MethodPost, "/api/v1/mail", map[string]any{"to": []string{"Steve"}, "body": "hi"}, middleware.HeaderActor, "Alex")
	if w.Code != http.StatusCreated {
		t.Fatalf("send = %d %s", w.Code, w.Body.String())
	}
	var m struct {
		ID         uuid.UUID `json:"id"`
		SenderName string    `json:"sender_name"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &m); err != nil || m.SenderName != "Alex" {
		t.Fatalf("mail = %s, %v", w.Body.String(), err)
	}

	w = do(r, http.MethodGet, "/api/v1/players/Steve/mail", nil)
	if w.Code != http.StatusOK || len(decode[[]map[string]any](t, w)) != 1 {
		t.Fatalf("inbox = %d %s", w.Code, w.Body.String())
	}
	if w := do(r, http.MethodGet, "/api/v1/mail/"+m.ID.String()+"?reader="+steve.String(), nil); w.Code != http.StatusOK {
		t.Fatalf("read = %d", w.Code)
	}
	if w := do(r, http.MethodDelete, "/api/v1/mail/"+m.ID.String()+"?reader="+steve.String(), nil); w.Code != http.StatusNoContent {
		t.Fatalf("delete = %d", w.Code)
	}
	if w := do(r, http.MethodPost, "/api/v1/mail", map[string]any{"to": []string{}, "body": "x"}); w.Code != http.StatusBadRequest {
		t.Fatalf("no recipients = %d", w.Code)
	}
}

func TestNodeRoutes_ServerAndNetwork(t *testing.T) {
	r, _ := newNodeRouter(t)

	region := map[string]any{
		"name":      "spawn",
		"world":     "overworld",
		"primary":   domain.Point{X: -5, Y: 0, Z: -5},
		"secondary": domain.Point{X: 5, Y: 64, Z: 5},
	}
	if w := do(r, http.MethodPost, "/api/v1/server/regions", region); w.Code != http.StatusCreated {
		t.Fatalf("add region = %d %s", w.Code, w.Body.String())
	}
	if w := do(r, http.MethodPost, "/api/v1/server/regions", region); w.Code != http.StatusConflict {
		t.Fatalf("duplicate region = %d", w.Code)
	}
	w := do(r, http.MethodGet, "/api/v1/server/regions?world=overworld&x=1&y=2&z=3", nil)
	if w.Code != http.StatusOK || len(decode[[]map[string]any](t, w)) != 1 {
		t.Fatalf("regions at = %d %s", w.Code, w.Body.String())
	}
	if w := do(r, http.MethodGet, "/api/v1/server/regions?world=overworld&x=a", nil); w.Code != http.StatusBadRequest {
		t.Fatalf("bad coords = %d", w.Code)
	}

	if w := do(r, http.MethodPut, "/api/v1/server/mute", map[string]string{"duration": "15m"}); w.Code != http.StatusNoContent {
		t.Fatalf("global mute = %d", w.Code)
	}
	w = do(r, http.MethodGet, "/api/v1/server", nil)
	if w.Code != http.StatusOK || !decode[services.ServerStatus](t, w).GlobalMute {
		t.Fatalf("status = %d %s", w.Code, w.Body.String())
	}

	w = do(r, http.MethodGet, "/api/v1/network", nil)
	if w.Code != http.StatusOK || decode[services.Network](t, w).Node != "lobby" {
		t.Fatalf("network = %d %s", w.Code, w.Body.String())
	}
	if w := do(r, http.MethodGet, "/api/v1/network/stats", nil); w.Code != http.StatusOK {
		t.Fatalf("stats = %d", w.Code)
	}
}

func TestNodeRoutes_PacketIngest(t *testing.T) {
	r, n := newNodeRouter(t)
	steve := uuid.New()
	if w := do(r, http.MethodPost, "/api/v1/sessions", map[string]any{"uuid": steve.String(), "name": "Steve"}); w.Code != http.StatusCreated {
		t.Fatalf("join = %d", w.Code)
	}

	p, err := syncproto.NewPacket(syncproto.TypePlayersSync, "relay", uuid.Nil, syncproto.PlayersSync{
		Players: map[string]synced.Player{"Alex": {Name: "Alex", UUID: uuid.New(), Server: "survival"}},
	})
	if err != nil {
		t.Fatalf("packet: %v", err)
	}

	if w := do(r, http.MethodPost, syncproto.IngestPath, p); w.Code != http.StatusUnauthorized {
		t.Fatalf("missing token = %d", w.Code)
	}

	auth := []string{syncproto.HeaderToken, testToken, syncproto.HeaderNode, "relay"}
	w := do(r, http.MethodPost, syncproto.IngestPath, p, auth...)
	if w.Code != http.StatusAccepted || !decode[handlers.IngestResponse](t, w).Applied {
		t.Fatalf("ingest = %d %s", w.Code, w.Body.String())
	}
	w = do(r, http.MethodPost, syncproto.IngestPath, p, auth...)
	if w.Code != http.StatusAccepted || decode[handlers.IngestResponse](t, w).Applied {
		t.Fatalf("duplicate = %d %s", w.Code, w.Body.String())
	}

	snap, err := n.Network.Snapshot(context.Background())
	if err != nil || len(snap.Players) != 1 || snap.Players[0].Name != "Alex" {
		t.Fatalf("projection = %+v, %v", snap.Players, err)
	}

	w = do(r, http.MethodPost, syncproto.IngestPath, syncproto.Packet{Type: "teleport", Server: "survival"}, auth...)
	if w.Code != http.StatusUnprocessableEntity || decode[handlers.ErrorResponse](t, w).Code != handlers.ErrCodeProtocolMismatch {
		t.Fatalf("unknown type = %d %s", w.Code, w.Body.String())
	}
	if w := do(r, http.MethodPost, syncproto.IngestPath, map[string]string{"server": "x"}, auth...); w.Code != http.StatusBadRequest {
		t.Fatalf("missing type = %d", w.Code)
	}
}

type recordingPeer struct {
	got chan syncproto.Packet
}

func (p *recordingPeer) Publish(_ context.Context, pkt syncproto.Packet) error {
	p.got <- pkt
	return nil
}

func TestRelayRoutes(t *testing.T) {
	gin.SetMode(gin.TestMode)
	survival := &recordingPeer{got: make(chan syncproto.Packet, 4)}
	rl := relay.New(map[string]syncproto.Publisher{
		"lobby":    &recordingPeer{got: make(chan syncproto.Packet, 4)},
		"survival": survival,
	}, relay.Options{Interval: time.Hour})

	r := gin.New()
	cfg := testConfig()
	cfg.NodeName = "relay"
	RegisterRelayRoutes(r, rl, cfg)
	auth := []string{syncproto.HeaderToken, testToken, syncproto.HeaderNode, "lobby"}

	rep, _ := syncproto.NewPacket(syncproto.TypePlayersReport, "lobby", domain.ConsoleID, syncproto.PlayersReport{
		Players: []synced.Player{{Name: "Steve", UUID: uuid.New()}},
	})
	if w := do(r, http.MethodPost, syncproto.RelayPath, rep, auth...); w.Code != http.StatusAccepted {
		t.Fatalf("report = %d %s", w.Code, w.Body.String())
	}
	w := do(r, http.MethodGet, "/relay/nodes", nil)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"lobby"`) || !strings.Contains(w.Body.String(), "Steve") {
		t.Fatalf("nodes = %d %s", w.Code, w.Body.String())
	}

	upd, _ := syncproto.NewPacket(syncproto.TypeReplyUpdate, "lobby", domain.ConsoleID, syncproto.ReplyUpdate{Target: uuid.New()})
	if w := do(r, http.MethodPost, syncproto.RelayPath, upd, auth...); w.Code != http.StatusAccepted {
		t.Fatalf("forward = %d", w.Code)
	}
	select {
	case got := <-survival.got:
		if got.Type != syncproto.TypeReplyUpdate {
			t.Fatalf("forwarded %s", got.Type)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("packet not forwarded to the other node")
	}

	w = do(r, http.MethodPost, syncproto.RelayPath, syncproto.Packet{Type: "teleport", Server: "lobby"}, auth...)
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("unknown = %d", w.Code)
	}
}
