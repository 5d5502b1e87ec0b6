package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	initdata "github.com/telegram-mini-apps/init-data-golang"

	"miniapp-games/internal/clock"
	"miniapp-games/internal/config"
	"miniapp-games/internal/handlers"
	"miniapp-games/internal/middleware"
	"miniapp-games/internal/models"
	"miniapp-games/internal/services"
)

const botToken = "123456:TEST"

func init() {
	gin.SetMode(gin.TestMode)
}

// zeroSource always draws the lowest value: the first cell holds the
// mine and crash points come from the bottom of the first band.
type zeroSource struct{}

func (zeroSource) Float64() float64 { return 0 }
func (zeroSource) IntN(int) int     { return 0 }

// fakeIssuer prices invoices like the bot and hands out a fixed link.
type fakeIssuer struct {
	tables *config.GameTables
	users  []int64
}

func (f *fakeIssuer) CreateInvoiceLink(userID, stars int64, promo string) (services.Invoice, error) {
	f.users = append(f.users, userID)
	inv, err := services.PrepareInvoice(f.tables.TopUp, userID, stars, promo)
	if err != nil {
		return inv, err
	}
	inv.Link = "https://t.me/$" + inv.Payload
	return inv, nil
}

type testServer struct {
	router *gin.Engine
	clock  *clock.Fake
	jwt    *services.JWTService
	engine *services.GameEngine
	users  *services.RedisService
	issuer *fakeIssuer
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	log, _ := test.NewNullLogger()
	mr := miniredis.RunT(t)
	users := services.NewRedisServiceWithClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))

	tables := config.DefaultTables()
	clk := clock.NewFake(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	outcomes := services.NewOutcomeGenerator(zeroSource{}, tables.Crash.Bands)
	engine := services.NewGameEngine(services.NewMemoryStore(), tables, outcomes, services.NopBroadcaster{}, clk, log)
	t.Cleanup(engine.Shutdown)
	jwtService := services.NewJWTService("secret", time.Hour)

	authHandler := handlers.NewAuthHandler(users, jwtService, botToken, time.Hour, log)
	userHandler := handlers.NewUserHandler(users, engine, log)
	gameHandler := handlers.NewGameHandler(engine, log)
	rewardsHandler := handlers.NewRewardsHandler(engine, log)
	issuer := &fakeIssuer{tables: tables}
	topUpHandler := handlers.NewTopUpHandler(issuer, log)

	r := gin.New()
	r.POST("/auth/telegram", authHandler.Authenticate)
	api := r.Group("/api", middleware.AuthMiddleware(jwtService, users, log))
	api.GET("/me", userHandler.GetCurrentUser)
	api.POST("/logout", userHandler.Logout)
	api.POST("/bonus/daily", userHandler.ClaimDailyBonus)
	api.GET("/history", userHandler.GetHistory)
	api.GET("/tasks", userHandler.GetTasks)
	api.POST("/tasks/:id/claim", userHandler.ClaimTask)
	api.GET("/balance", gameHandler.GetBalance)
	api.POST("/mines/start", gameHandler.StartMines)
	api.POST("/mines/reveal", gameHandler.RevealMine)
	api.POST("/mines/cashout", gameHandler.CashoutMines)
	api.POST("/crash/bet", gameHandler.PlaceCrashBet)
	api.POST("/crash/cashout", gameHandler.CashoutCrash)
	api.GET("/drops", rewardsHandler.GetPendingDrop)
	api.POST("/drops/:id/sell", rewardsHandler.SellDrop)
	api.GET("/inventory", rewardsHandler.GetInventory)
	api.POST("/cases/open", rewardsHandler.OpenCase)
	api.POST("/cases/prizes/:id/claim", rewardsHandler.ClaimCasePrize)
	api.POST("/topup/invoice", topUpHandler.CreateInvoice)

	return &testServer{router: r, clock: clk, jwt: jwtService, engine: engine, users: users, issuer: issuer}
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) (int, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return w.Code, out
}

// token issues a token with a live login session, as Authenticate would.
func (s *testServer) token(t *testing.T, userID int64) string {
	t.Helper()
	token, sessionID, err := s.jwt.GenerateToken(userID)
	require.NoError(t, err)
	session := &models.UserSession{SessionID: sessionID, CreatedAt: time.Now(), LastAccessed: time.Now()}
	require.NoError(t, s.users.StoreUserSession(context.Background(), userID, session, time.Hour))
	return token
}

func initData(userJSON string) string {
	authDate := time.Now()
	values := url.Values{}
	values.Set("auth_date", strconv.FormatInt(authDate.Unix(), 10))
	values.Set("user", userJSON)
	values.Set("hash", initdata.Sign(map[string]string{"user": userJSON}, botToken, authDate))
	return values.Encode()
}

func TestTelegramLoginAndProfile(t *testing.T) {
	s := newTestServer(t)

	code, body := s.do(t, http.MethodPost, "/auth/telegram", "", gin.H{"init_data": "hash=deadbeef"})
	assert.Equal(t, http.StatusUnauthorized, code)

	code, body = s.do(t, http.MethodPost, "/auth/telegram", "", gin.H{"init_data": initData(`{"id":501,"first_name":"Vera"}`)})
	require.Equal(t, http.StatusOK, code, body)
	token := body["token"].(string)

	code, body = s.do(t, http.MethodGet, "/api/me", token, nil)
	require.Equal(t, http.StatusOK, code, body)
	profile := body["profile"].(map[string]any)
	assert.Equal(t, "Vera", profile["display_name"])
	assert.Equal(t, float64(501), profile["user_id"])

	code, _ = s.do(t, http.MethodPost, "/api/logout", token, nil)
	assert.Equal(t, http.StatusOK, code)
	code, _ = s.do(t, http.MethodGet, "/api/me", token, nil)
	assert.Equal(t, http.StatusUnauthorized, code)
	code, _ = s.do(t, http.MethodPost, "/api/mines/start", token, gin.H{"grid_size": 3, "mine_count": 1, "bet": 100})
	assert.Equal(t, http.StatusUnauthorized, code)
	code, _ = s.do(t, http.MethodGet, "/api/balance", token, nil)
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestTokenWithoutLoginSessionIsRejected(t *testing.T) {
	s := newTestServer(t)
	token, _, err := s.jwt.GenerateToken(12)
	require.NoError(t, err)

	code, _ := s.do(t, http.MethodPost, "/api/crash/bet", token, gin.H{"bet": 100})
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestMinesEndpoints(t *testing.T) {
	s := newTestServer(t)
	token := s.token(t, 7)
	start := gin.H{"grid_size": 3, "mine_count": 1, "bet": 100}

	code, body := s.do(t, http.MethodPost, "/api/mines/start", token, gin.H{"grid_size": 3, "mine_count": 1, "bet": 100, "currency": "bronze"})
	assert.Equal(t, http.StatusBadRequest, code, body)

	code, body = s.do(t, http.MethodPost, "/api/mines/start", token, gin.H{"grid_size": 4, "mine_count": 1, "bet": 100})
	assert.Equal(t, http.StatusBadRequest, code, body)

	code, body = s.do(t, http.MethodPost, "/api/mines/start", token, gin.H{"grid_size": 3, "mine_count": 1, "bet": 5000})
	assert.Equal(t, http.StatusPaymentRequired, code, body)

	code, body = s.do(t, http.MethodPost, "/api/mines/start", token, start)
	require.Equal(t, http.StatusOK, code, body)

	code, body = s.do(t, http.MethodPost, "/api/mines/start", token, start)
	assert.Equal(t, http.StatusConflict, code, body)

	code, body = s.do(t, http.MethodPost, "/api/mines/reveal", token, gin.H{"cell": 4})
	require.Equal(t, http.StatusOK, code, body)
	assert.Equal(t, false, body["ignored"])

	code, body = s.do(t, http.MethodPost, "/api/mines/cashout", token, nil)
	require.Equal(t, http.StatusOK, code, body)
	result := body["result"].(map[string]any)
	assert.Equal(t, float64(180), result["payout"])

	// stale calls after resolution are ignored
	code, body = s.do(t, http.MethodPost, "/api/mines/cashout", token, nil)
	require.Equal(t, http.StatusOK, code, body)
	assert.Equal(t, true, body["ignored"])

	code, body = s.do(t, http.MethodGet, "/api/balance", token, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(1080), body["balances"].(map[string]any)["silver"])

	s.clock.Advance(800 * time.Millisecond)
	code, body = s.do(t, http.MethodGet, "/api/drops", token, nil)
	require.Equal(t, http.StatusOK, code)
	drop := body["drop"].(map[string]any)

	code, body = s.do(t, http.MethodPost, "/api/drops/"+drop["id"].(string)+"/sell", token, nil)
	require.Equal(t, http.StatusOK, code, body)
	assert.Equal(t, float64(90), body["price"])

	code, _ = s.do(t, http.MethodPost, "/api/drops/"+drop["id"].(string)+"/sell", token, nil)
	assert.Equal(t, http.StatusConflict, code)

	code, body = s.do(t, http.MethodGet, "/api/history", token, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, body["games"], 1)
}

func TestCrashBetDuringCountdown(t *testing.T) {
	s := newTestServer(t)
	token := s.token(t, 8)

	code, body := s.do(t, http.MethodPost, "/api/crash/bet", token, gin.H{"bet": 100})
	assert.Equal(t, http.StatusConflict, code, body)

	s.clock.Advance(5 * time.Second)
	code, body = s.do(t, http.MethodPost, "/api/crash/bet", token, gin.H{"bet": 100})
	require.Equal(t, http.StatusOK, code, body)

	code, body = s.do(t, http.MethodPost, "/api/crash/cashout", token, nil)
	require.Equal(t, http.StatusOK, code, body)
	assert.Equal(t, float64(100), body["result"].(map[string]any)["payout"])
}

func TestDailyBonusCooldownStatus(t *testing.T) {
	s := newTestServer(t)
	token := s.token(t, 9)

	code, body := s.do(t, http.MethodPost, "/api/bonus/daily", token, nil)
	require.Equal(t, http.StatusOK, code, body)
	assert.Equal(t, float64(1100), body["balances"].(map[string]any)["silver"])

	code, body = s.do(t, http.MethodPost, "/api/bonus/daily", token, nil)
	assert.Equal(t, http.StatusTooManyRequests, code)
	assert.Equal(t, float64(24), body["hours_left"])
}

func TestTasksAndCases(t *testing.T) {
	s := newTestServer(t)
	token := s.token(t, 10)

	code, _ := s.do(t, http.MethodPost, "/api/tasks/99/claim", token, nil)
	assert.Equal(t, http.StatusNotFound, code)
	code, _ = s.do(t, http.MethodPost, "/api/tasks/abc/claim", token, nil)
	assert.Equal(t, http.StatusBadRequest, code)

	code, body := s.do(t, http.MethodPost, "/api/tasks/1/claim", token, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, false, body["claimed"])

	code, _ = s.do(t, http.MethodPost, "/api/cases/open", token, gin.H{"case_id": "golden"})
	assert.Equal(t, http.StatusBadRequest, code)

	code, body = s.do(t, http.MethodPost, "/api/cases/open", token, gin.H{"case_id": "basic"})
	require.Equal(t, http.StatusOK, code, body)
	prize := body["prize"].(map[string]any)
	assert.Equal(t, "rocket", prize["type"])

	code, body = s.do(t, http.MethodPost, "/api/cases/prizes/"+prize["id"].(string)+"/claim", token, nil)
	require.Equal(t, http.StatusOK, code, body)
	assert.Equal(t, float64(1010), body["balances"].(map[string]any)["silver"])

	code, body = s.do(t, http.MethodGet, "/api/tasks", token, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, body["tasks"], 5)
}

func TestTopUpInvoiceLink(t *testing.T) {
	s := newTestServer(t)
	token := s.token(t, 13)

	code, _ := s.do(t, http.MethodPost, "/api/topup/invoice", "", gin.H{"stars": 100})
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Empty(t, s.issuer.users)

	// client-side coins are ignored
	code, body := s.do(t, http.MethodPost, "/api/topup/invoice", token, gin.H{"stars": 100, "coins": 100000, "promo": "vesna26"})
	require.Equal(t, http.StatusOK, code, body)
	assert.Equal(t, "https://t.me/$stars_100_120_13", body["invoice_link"])
	assert.Equal(t, float64(120), body["coins"])
	assert.Equal(t, "VESNA26", body["promo"])
	assert.Equal(t, []int64{13}, s.issuer.users)

	code, _ = s.do(t, http.MethodPost, "/api/topup/invoice", token, gin.H{"stars": 77})
	assert.Equal(t, http.StatusBadRequest, code)
	code, _ = s.do(t, http.MethodPost, "/api/topup/invoice", token, gin.H{})
	assert.Equal(t, http.StatusBadRequest, code)
}

// downStore cannot read accounts.
type downStore struct {
	*services.MemoryStore
}

func (downStore) LoadAccount(context.Context, int64) (*models.Account, error) {
	return nil, errors.New("dial tcp: connection refused")
}

func TestUnreadableAccountIsUnavailable(t *testing.T) {
	log, _ := test.NewNullLogger()
	tables := config.DefaultTables()
	clk := clock.NewFake(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	engine := services.NewGameEngine(downStore{services.NewMemoryStore()}, tables, services.NewOutcomeGenerator(zeroSource{}, tables.Crash.Bands), services.NopBroadcaster{}, clk, log)
	t.Cleanup(engine.Shutdown)
	jwtService := services.NewJWTService("secret", time.Hour)
	gameHandler := handlers.NewGameHandler(engine, log)

	r := gin.New()
	api := r.Group("/api", middleware.AuthMiddleware(jwtService, nil, log))
	api.GET("/balance", gameHandler.GetBalance)
	api.POST("/mines/start", gameHandler.StartMines)
	s := &testServer{router: r, clock: clk, jwt: jwtService, engine: engine}

	token, _, err := jwtService.GenerateToken(14)
	require.NoError(t, err)

	code, body := s.do(t, http.MethodGet, "/api/balance", token, nil)
	assert.Equal(t, http.StatusServiceUnavailable, code, body)
	code, _ = s.do(t, http.MethodPost, "/api/mines/start", token, gin.H{"grid_size": 3, "mine_count": 1, "bet": 100})
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Zero(t, engine.ActiveSessions())
}
