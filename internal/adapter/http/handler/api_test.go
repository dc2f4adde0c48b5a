package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	httpHandler "tiered-ledger/internal/adapter/http/handler"
	"tiered-ledger/internal/adapter/http/middleware"
	"tiered-ledger/internal/adapter/storage/memory"
	redisStorage "tiered-ledger/internal/adapter/storage/redis"
	"tiered-ledger/internal/core/domain"
	"tiered-ledger/internal/core/ports"
	"tiered-ledger/internal/service"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	feedSecret  = "feed-secret"
	testAESKey  = "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"
	housePin    = "111111"
	superPin    = "222222"
	masterPin   = "333333"
	playerPin   = "444444"
	passwordFmt = "%s-password"
)

// testApp runs the full HTTP stack over the in-memory store and miniredis.
type testApp struct {
	router *gin.Engine
	audit  *memory.AuditRepo
	sigSvc *service.HMACSignatureService
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	gin.SetMode(gin.TestMode)

	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	store := memory.NewStore()
	accounts := memory.NewAccountRepo(store)
	txRepo := memory.NewTransactionRepo(store)
	modes := memory.NewPaymentModeRepo(store)
	settlements := memory.NewSettlementRepo(store)
	adjustments := memory.NewPLAdjustmentRepo(store)
	idempRepo := memory.NewIdempotencyRepo(store)
	auditRepo := memory.NewAuditRepo(store)

	log := zerolog.Nop()
	hashSvc := service.NewArgon2HashServiceWithParams(service.Argon2Params{
		Time: 1, Memory: 8 * 1024, Threads: 1, KeyLen: 32, SaltLen: 16,
	})
	encSvc, err := service.NewAESEncryptionService(testAESKey)
	require.NoError(t, err)
	sigSvc := service.NewHMACSignatureService()
	tokenSvc := service.NewJWTTokenService("test-jwt-secret-key-32bytes!!", time.Hour, "test-issuer")

	accountSvc := service.NewAccountService(accounts, hashSvc, log)
	credSvc := service.NewCredentialService(accounts, hashSvc, redisStorage.NewAttemptLimiter(rdb), 5, 15*time.Minute, log)
	balanceSvc := service.NewBalanceService(accounts, txRepo, adjustments, settlements, log)
	ledgerSvc := service.NewLedgerService(txRepo, balanceSvc, log)

	router := httpHandler.SetupRouter(httpHandler.RouterDeps{
		AuthSvc:        service.NewAuthService(accounts, credSvc, tokenSvc),
		AccountSvc:     accountSvc,
		BalanceSvc:     balanceSvc,
		CredentialSvc:  credSvc,
		WorkflowSvc:    service.NewWorkflowService(accounts, modes, txRepo, ledgerSvc, credSvc, store, log),
		SettlementSvc:  service.NewSettlementService(accounts, settlements, ledgerSvc, balanceSvc, credSvc, store, log),
		GameResultSvc:  service.NewGameResultService(accounts, adjustments, idempRepo, redisStorage.NewIdempotencyCache(rdb), ledgerSvc, balanceSvc, store, log),
		PaymentModeSvc: service.NewPaymentModeService(accounts, modes, encSvc, log),
		ReportingSvc:   service.NewReportingService(accounts, txRepo, balanceSvc),
		SigSvc:         sigSvc,
		TokenSvc:       tokenSvc,
		NonceStore:     redisStorage.NewNonceStore(rdb),
		RateLimitStore: redisStorage.NewRateLimitStore(rdb),
		AuditSvc:       service.NewAuditService(auditRepo, log),
		HealthCheckers: []ports.HealthChecker{store, redisStorage.NewHealthCheck(rdb)},
		GameFeedSecret: feedSecret,
		Logger:         log,
	})

	_, err = accountSvc.EnsurePowerhouse(context.Background(), "house", fmt.Sprintf(passwordFmt, "house"), housePin)
	require.NoError(t, err)

	return &testApp{router: router, audit: auditRepo, sigSvc: sigSvc}
}

type envelope struct {
	Data      json.RawMessage `json:"data"`
	ErrorCode string          `json:"error_code"`
	Detail    string          `json:"detail"`
	RequestID string          `json:"request_id"`
}

type result struct {
	status int
	header http.Header
	body   envelope
}

func (r result) decode(t *testing.T, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(r.body.Data, v), string(r.body.Data))
}

func (a *testApp) do(t *testing.T, method, path, token string, body any) result {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)

	var env envelope
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	}
	return result{status: w.Code, header: w.Header(), body: env}
}

func (a *testApp) pushResult(t *testing.T, nonce string, payload any) result {
	t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(t, err)

	path := "/api/v1/internal/game-results/"
	ts := time.Now().Unix()
	sig := a.sigSvc.Sign(feedSecret, a.sigSvc.BuildCanonicalString(http.MethodPost, path, ts, nonce, string(raw)))

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(middleware.HeaderSignature, sig)
	req.Header.Set(middleware.HeaderTimestamp, strconv.FormatInt(ts, 10))
	req.Header.Set(middleware.HeaderNonce, nonce)
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)

	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return result{status: w.Code, header: w.Header(), body: env}
}

func (a *testApp) login(t *testing.T, username string) string {
	t.Helper()
	res := a.do(t, http.MethodPost, "/api/v1/auth/login/", "", gin.H{
		"username": username,
		"password": fmt.Sprintf(passwordFmt, username),
	})
	require.Equal(t, http.StatusOK, res.status, res.body.Detail)
	var session struct {
		Token string `json:"token"`
	}
	res.decode(t, &session)
	return session.Token
}

func (a *testApp) createChild(t *testing.T, token string, callerRole domain.Role, role domain.Role, username, pin string) uuid.UUID {
	t.Helper()
	res := a.do(t, http.MethodPost, "/api/v1/"+string(callerRole)+"/accounts/", token, gin.H{
		"role":     role,
		"username": username,
		"password": fmt.Sprintf(passwordFmt, username),
		"pin":      pin,
	})
	require.Equal(t, http.StatusCreated, res.status, res.body.Detail)
	var acct domain.Account
	res.decode(t, &acct)
	return acct.ID
}

// tree is a seeded powerhouse > super > master > player chain with tokens.
type tree struct {
	houseToken, superToken, masterToken, playerToken string
	superID, masterID, playerID                      uuid.UUID
}

func (a *testApp) seedTree(t *testing.T) tree {
	t.Helper()
	var tr tree
	tr.houseToken = a.login(t, "house")
	tr.superID = a.createChild(t, tr.houseToken, domain.RolePowerhouse, domain.RoleSuper, "super1", superPin)
	tr.superToken = a.login(t, "super1")
	tr.masterID = a.createChild(t, tr.superToken, domain.RoleSuper, domain.RoleMaster, "master1", masterPin)
	tr.masterToken = a.login(t, "master1")
	tr.playerID = a.createChild(t, tr.masterToken, domain.RoleMaster, domain.RolePlayer, "player1", playerPin)
	tr.playerToken = a.login(t, "player1")
	return tr
}

func (a *testApp) mainBalance(t *testing.T, token string, role domain.Role, id uuid.UUID) decimal.Decimal {
	t.Helper()
	res := a.do(t, http.MethodGet, fmt.Sprintf("/api/v1/%s/accounts/%s/balance/", role, id), token, nil)
	require.Equal(t, http.StatusOK, res.status, res.body.Detail)
	var summary domain.BalanceSummary
	res.decode(t, &summary)
	return summary.MainBalance
}

func TestAPI_HealthCheck(t *testing.T) {
	app := newTestApp(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	app.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"redis"`)
	assert.Contains(t, w.Body.String(), `"memory"`)
}

func TestAPI_LoginFailure(t *testing.T) {
	app := newTestApp(t)

	res := app.do(t, http.MethodPost, "/api/v1/auth/login/", "", gin.H{"username": "house", "password": "nope-nope"})
	assert.Equal(t, http.StatusUnauthorized, res.status)
	assert.Equal(t, "AUTH_001", res.body.ErrorCode)
	assert.NotEmpty(t, res.body.RequestID)
	assert.NotEmpty(t, res.header.Get("X-RateLimit-Limit"))
}

func TestAPI_RoleMustMatchToken(t *testing.T) {
	app := newTestApp(t)
	tr := app.seedTree(t)

	res := app.do(t, http.MethodGet, "/api/v1/super/settlements/", tr.masterToken, nil)
	assert.Equal(t, http.StatusForbidden, res.status)
	assert.Equal(t, "AUTH_004", res.body.ErrorCode)

	res = app.do(t, http.MethodPost, "/api/v1/master/settlement/"+tr.masterID.String()+"/", tr.masterToken, gin.H{"pin": masterPin})
	assert.Equal(t, http.StatusForbidden, res.status)

	res = app.do(t, http.MethodGet, "/api/v1/master/deposits/", "", nil)
	assert.Equal(t, http.StatusUnauthorized, res.status)
	assert.Equal(t, "AUTH_003", res.body.ErrorCode)
}

func TestAPI_HierarchyIsEnforced(t *testing.T) {
	app := newTestApp(t)
	tr := app.seedTree(t)

	// a player cannot look at its master
	res := app.do(t, http.MethodGet, "/api/v1/player/accounts/"+tr.masterID.String()+"/", tr.playerToken, nil)
	assert.Equal(t, http.StatusForbidden, res.status)
	assert.Equal(t, "ACCT_003", res.body.ErrorCode)

	// the powerhouse sees every player beneath it
	res = app.do(t, http.MethodGet, "/api/v1/powerhouse/accounts/"+tr.superID.String()+"/descendants/?role=player", tr.houseToken, nil)
	require.Equal(t, http.StatusOK, res.status)
	var players []domain.Account
	res.decode(t, &players)
	require.Len(t, players, 1)
	assert.Equal(t, tr.playerID, players[0].ID)
}

func TestAPI_DepositWorkflow(t *testing.T) {
	app := newTestApp(t)
	tr := app.seedTree(t)

	res := app.do(t, http.MethodPost, "/api/v1/master/payment-modes/", tr.masterToken, gin.H{
		"type": "ewallet", "label": "GCash", "account_name": "Master One", "account_number": "09171234567",
	})
	require.Equal(t, http.StatusCreated, res.status, res.body.Detail)
	var mode domain.PaymentMode
	res.decode(t, &mode)
	assert.NotContains(t, string(res.body.Data), "09171234567")

	res = app.do(t, http.MethodPost, "/api/v1/player/deposits/create/", tr.playerToken, gin.H{
		"account_id":      tr.playerID,
		"amount":          "100.00",
		"payment_mode_id": mode.ID,
	})
	require.Equal(t, http.StatusCreated, res.status, res.body.Detail)
	var pending domain.Transaction
	res.decode(t, &pending)
	assert.Equal(t, domain.TransactionStatusPending, pending.Status)

	// queued requests do not move balances
	assert.True(t, app.mainBalance(t, tr.masterToken, domain.RoleMaster, tr.playerID).IsZero())

	res = app.do(t, http.MethodGet, "/api/v1/master/deposits/?status=pending", tr.masterToken, nil)
	require.Equal(t, http.StatusOK, res.status)
	var list struct {
		Items []domain.Transaction `json:"items"`
		Total int64                `json:"total"`
	}
	res.decode(t, &list)
	assert.Equal(t, int64(1), list.Total)

	// the player cannot approve its own request
	res = app.do(t, http.MethodPost, "/api/v1/player/deposits/"+pending.ID.String()+"/approve/", tr.playerToken, gin.H{"pin": playerPin})
	assert.Equal(t, http.StatusForbidden, res.status)

	// approving through the withdrawals route is refused
	res = app.do(t, http.MethodPost, "/api/v1/master/withdrawals/"+pending.ID.String()+"/approve/", tr.masterToken, gin.H{"pin": masterPin})
	assert.Equal(t, "LEDGER_005", res.body.ErrorCode)

	res = app.do(t, http.MethodPost, "/api/v1/master/deposits/"+pending.ID.String()+"/approve/", tr.masterToken, gin.H{"pin": "000000"})
	assert.Equal(t, http.StatusForbidden, res.status)
	assert.Equal(t, "AUTH_002", res.body.ErrorCode)

	res = app.do(t, http.MethodPost, "/api/v1/master/deposits/"+pending.ID.String()+"/approve/", tr.masterToken, gin.H{"pin": masterPin})
	require.Equal(t, http.StatusOK, res.status, res.body.Detail)

	res = app.do(t, http.MethodPost, "/api/v1/master/deposits/"+pending.ID.String()+"/approve/", tr.masterToken, gin.H{"pin": masterPin})
	assert.Equal(t, http.StatusConflict, res.status)
	assert.Equal(t, "LEDGER_003", res.body.ErrorCode)

	assert.True(t, app.mainBalance(t, tr.masterToken, domain.RoleMaster, tr.playerID).Equal(decimal.NewFromInt(100)))

	// a rejected withdrawal leaves the balance alone
	res = app.do(t, http.MethodPost, "/api/v1/player/withdrawals/create/", tr.playerToken, gin.H{
		"account_id": tr.playerID,
		"amount":     "40",
	})
	require.Equal(t, http.StatusCreated, res.status, res.body.Detail)
	var withdrawal domain.Transaction
	res.decode(t, &withdrawal)

	res = app.do(t, http.MethodPost, "/api/v1/master/withdrawals/"+withdrawal.ID.String()+"/reject/", tr.masterToken, gin.H{"reason": "slip mismatch"})
	require.Equal(t, http.StatusOK, res.status, res.body.Detail)
	assert.True(t, app.mainBalance(t, tr.masterToken, domain.RoleMaster, tr.playerID).Equal(decimal.NewFromInt(100)))

	res = app.do(t, http.MethodGet, "/api/v1/powerhouse/accounts/"+tr.playerID.String()+"/reconcile/", tr.houseToken, nil)
	require.Equal(t, http.StatusOK, res.status)
	var rec domain.Reconciliation
	res.decode(t, &rec)
	assert.True(t, rec.InSync)

	require.Eventually(t, func() bool {
		var created, approved bool
		for _, e := range app.audit.Entries() {
			if e.ResourceID != pending.ID.String() {
				continue
			}
			switch e.Action {
			case domain.AuditActionCreateRequest:
				created = true
			case domain.AuditActionApprove:
				approved = true
			}
		}
		return created && approved
	}, 2*time.Second, 20*time.Millisecond)
}

func TestAPI_DirectCredits(t *testing.T) {
	app := newTestApp(t)
	tr := app.seedTree(t)

	res := app.do(t, http.MethodPost, "/api/v1/master/bonuses/direct/", tr.masterToken, gin.H{
		"account_id": tr.playerID, "amount": "15.50", "pin": masterPin,
	})
	require.Equal(t, http.StatusCreated, res.status, res.body.Detail)

	res = app.do(t, http.MethodPost, "/api/v1/super/commissions/direct/", tr.superToken, gin.H{
		"account_id": tr.masterID, "amount": "20", "pin": superPin,
	})
	require.Equal(t, http.StatusCreated, res.status, res.body.Detail)

	// bonuses are for players only
	res = app.do(t, http.MethodPost, "/api/v1/super/bonuses/direct/", tr.superToken, gin.H{
		"account_id": tr.masterID, "amount": "5", "pin": superPin,
	})
	assert.Equal(t, http.StatusBadRequest, res.status)

	res = app.do(t, http.MethodPost, "/api/v1/master/withdrawals/direct/", tr.masterToken, gin.H{
		"account_id": tr.playerID, "amount": "1", "pin": masterPin,
	})
	assert.Equal(t, http.StatusPaymentRequired, res.status)
	assert.Equal(t, "LEDGER_001", res.body.ErrorCode)

	assert.True(t, app.mainBalance(t, tr.superToken, domain.RoleSuper, tr.masterID).Equal(decimal.NewFromInt(20)))
}

func TestAPI_GameResultsAndSettlement(t *testing.T) {
	app := newTestApp(t)
	tr := app.seedTree(t)

	res := app.do(t, http.MethodPost, "/api/v1/master/deposits/direct/", tr.masterToken, gin.H{
		"account_id": tr.playerID, "amount": "100", "pin": masterPin,
	})
	require.Equal(t, http.StatusCreated, res.status, res.body.Detail)

	round := gin.H{"player_id": tr.playerID, "round_ref": "R-1001", "amount": "-30"}
	res = app.pushResult(t, "nonce-1", round)
	require.Equal(t, http.StatusOK, res.status, res.body.Detail)

	// replayed nonce
	res = app.pushResult(t, "nonce-1", round)
	assert.Equal(t, http.StatusForbidden, res.status)
	assert.Equal(t, "SEC_004", res.body.ErrorCode)

	// same round under a fresh nonce is applied once
	res = app.pushResult(t, "nonce-2", round)
	require.Equal(t, http.StatusOK, res.status, res.body.Detail)
	assert.True(t, app.mainBalance(t, tr.masterToken, domain.RoleMaster, tr.playerID).Equal(decimal.NewFromInt(70)))

	res = app.do(t, http.MethodPost, "/api/v1/super/settlement/"+tr.masterID.String()+"/", tr.superToken, gin.H{"pin": superPin})
	require.Equal(t, http.StatusCreated, res.status, res.body.Detail)

	res = app.do(t, http.MethodPost, "/api/v1/super/settlement/"+tr.masterID.String()+"/", tr.superToken, gin.H{"pin": superPin})
	assert.Equal(t, http.StatusUnprocessableEntity, res.status)
	assert.Equal(t, "SETTLE_001", res.body.ErrorCode)

	res = app.do(t, http.MethodGet, "/api/v1/master/settlements/", tr.masterToken, nil)
	require.Equal(t, http.StatusOK, res.status)
	var records []domain.SettlementRecord
	res.decode(t, &records)
	assert.Len(t, records, 1)

	res = app.do(t, http.MethodGet, "/api/v1/powerhouse/accounting-report/?period=day", tr.houseToken, nil)
	assert.Equal(t, http.StatusOK, res.status)
}

func TestAPI_Credentials(t *testing.T) {
	app := newTestApp(t)
	tr := app.seedTree(t)

	res := app.do(t, http.MethodPost, "/api/v1/master/player/"+tr.playerID.String()+"/regenerate-pin/", tr.masterToken, gin.H{
		"password": fmt.Sprintf(passwordFmt, "master1"),
	})
	require.Equal(t, http.StatusOK, res.status, res.body.Detail)
	var regen struct {
		Pin string `json:"pin"`
	}
	res.decode(t, &regen)
	assert.Len(t, regen.Pin, 6)

	// userType must name the target's tier
	res = app.do(t, http.MethodPost, "/api/v1/super/player/"+tr.masterID.String()+"/reset-password/", tr.superToken, gin.H{
		"password":     fmt.Sprintf(passwordFmt, "super1"),
		"new_password": "brand-new-pass",
	})
	assert.Equal(t, http.StatusBadRequest, res.status)

	res = app.do(t, http.MethodPost, "/api/v1/super/master/"+tr.masterID.String()+"/reset-password/", tr.superToken, gin.H{
		"password":     fmt.Sprintf(passwordFmt, "super1"),
		"new_password": "brand-new-pass",
	})
	require.Equal(t, http.StatusOK, res.status, res.body.Detail)

	res = app.do(t, http.MethodPost, "/api/v1/auth/login/", "", gin.H{"username": "master1", "password": "brand-new-pass"})
	assert.Equal(t, http.StatusOK, res.status)
}

func TestAPI_ConcurrentWithdrawalsNeverOverdraw(t *testing.T) {
	app := newTestApp(t)
	tr := app.seedTree(t)

	res := app.do(t, http.MethodPost, "/api/v1/master/deposits/direct/", tr.masterToken, gin.H{
		"account_id": tr.playerID, "amount": "100", "pin": masterPin,
	})
	require.Equal(t, http.StatusCreated, res.status, res.body.Detail)

	const workers = 20
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		statuses = map[int]int{}
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			raw, _ := json.Marshal(gin.H{"account_id": tr.playerID, "amount": "10", "pin": masterPin})
			req := httptest.NewRequest(http.MethodPost, "/api/v1/master/withdrawals/direct/", bytes.NewReader(raw))
			req.Header.Set("Content-Type", "application/json")
			req.Header.Set("Authorization", "Bearer "+tr.masterToken)
			w := httptest.NewRecorder()
			app.router.ServeHTTP(w, req)

			mu.Lock()
			statuses[w.Code]++
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 10, statuses[http.StatusCreated], "%v", statuses)
	assert.Equal(t, 10, statuses[http.StatusPaymentRequired], "%v", statuses)
	assert.True(t, app.mainBalance(t, tr.masterToken, domain.RoleMaster, tr.playerID).IsZero())
}
