package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cashback-service/internal/affiliate"
	"cashback-service/internal/models"
	"cashback-service/internal/repository"
	"cashback-service/internal/services"
	"cashback-service/pkg/common"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubReconciler struct {
	network affiliate.Network
	payload map[string]interface{}
	resp    *common.WebhookResponse
	err     error
}

func (s *stubReconciler) HandlePostback(_ context.Context, network affiliate.Network, payload map[string]interface{}) (*common.WebhookResponse, error) {
	s.network, s.payload = network, payload
	return s.resp, s.err
}

type stubTracker struct {
	req services.TrackLinkRequest
}

func (s *stubTracker) TrackLink(_ context.Context, req services.TrackLinkRequest) (*services.TrackLinkResponse, error) {
	s.req = req
	if req.URL == "" || req.UserID == "" || req.Network == "" {
		return nil, common.InvalidInput("Missing required parameters: url, userId, network")
	}
	return &services.TrackLinkResponse{Success: true, TrackedURL: "https://t/1"}, nil
}

// stubTransactions embeds the interface so tests only override what they use.
type stubTransactions struct {
	Transactions
	filter    repository.TransactionFilter
	logFilter repository.PostbackLogFilter
	confirmed []string
}

func (s *stubTransactions) List(_ context.Context, f repository.TransactionFilter) ([]models.TransactionView, error) {
	s.filter = f
	return []models.TransactionView{}, nil
}

func (s *stubTransactions) PostbackLogs(_ context.Context, f repository.PostbackLogFilter) ([]models.PostbackLog, error) {
	s.logFilter = f
	return nil, common.Internal("Failed to fetch postback logs", errors.New("db down"))
}

func (s *stubTransactions) ConfirmCashback(_ context.Context, id, status, notes string) (*services.ConfirmResult, error) {
	s.confirmed = []string{id, status, notes}
	return &services.ConfirmResult{Success: true, TransactionID: id, Message: "Transaction " + status + " successfully"}, nil
}

type stubContract struct {
	Contract
	nftErr error
}

func (s *stubContract) Info(context.Context) services.ContractInfo {
	return services.ContractInfo{Address: "0xcc", Name: "Cashback NFT"}
}

func (s *stubContract) MinterRole(context.Context) (string, error) {
	return "", common.Integration("Failed to read MINTER_ROLE from contract", errors.New("execution reverted"))
}

func (s *stubContract) NFT(context.Context, string) (*services.ChainNFTDetail, error) {
	return nil, s.nftErr
}

type stubGranter struct {
	res services.RoleGrantResult
}

func (s *stubGranter) GrantMinterRole(_ context.Context, address string) (services.RoleGrantResult, error) {
	if address == "" {
		return services.RoleGrantResult{}, common.InvalidInput("Address is required")
	}
	return s.res, nil
}

type stubScheduler struct {
	res *services.RetryResult
}

func (s *stubScheduler) Schedule(_ context.Context, id string) (*services.RetryResult, error) {
	s.res.TransactionID = id
	return s.res, nil
}

type fixture struct {
	router       *gin.Engine
	postbacks    *stubReconciler
	tracking     *stubTracker
	transactions *stubTransactions
	contract     *stubContract
	granter      *stubGranter
	scheduler    *stubScheduler
}

func newFixture(cfg RouterConfig) *fixture {
	f := &fixture{
		postbacks:    &stubReconciler{resp: &common.WebhookResponse{Success: true, Message: "Transaction recorded successfully"}},
		tracking:     &stubTracker{},
		transactions: &stubTransactions{},
		contract:     &stubContract{},
		granter:      &stubGranter{},
		scheduler:    &stubScheduler{res: &services.RetryResult{Success: true, Queued: true}},
	}
	h := &Handler{
		Postbacks:    f.postbacks,
		Tracking:     f.tracking,
		Transactions: f.transactions,
		Contract:     f.contract,
		Roles:        f.granter,
		MintRetry:    f.scheduler,
		Now:          func() time.Time { return time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC) },
	}
	f.router = NewRouter(h, cfg)
	return f
}

func (f *fixture) do(method, path, contentType, body string, header ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestHealthAndNotFound(t *testing.T) {
	f := newFixture(RouterConfig{})

	w := f.do(http.MethodGet, "/api/health", "", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "OK", decode(t, w)["status"])
	assert.Equal(t, "2024-03-01T12:00:00.000Z", decode(t, w)["timestamp"])

	w = f.do(http.MethodGet, "/api/nothing", "", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Endpoint not found", decode(t, w)["error"])
}

func TestWebhookJSON(t *testing.T) {
	f := newFixture(RouterConfig{})

	w := f.do(http.MethodPost, "/api/webhook/rakuten", "application/json",
		`{"u1":"user_7_1700000001000_token_abc123","sale_amount":250.5}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, affiliate.NetworkRakuten, f.postbacks.network)
	assert.Equal(t, "user_7_1700000001000_token_abc123", f.postbacks.payload["u1"])
	assert.Equal(t, json.Number("250.5"), f.postbacks.payload["sale_amount"])
	assert.Equal(t, "Transaction recorded successfully", decode(t, w)["message"])
}

func TestWebhookForm(t *testing.T) {
	f := newFixture(RouterConfig{})

	form := url.Values{"AwinTransactionPush": {`{"clickRef":"user_42_1700000000000"}`}}
	w := f.do(http.MethodPost, "/api/webhook/awin", "application/x-www-form-urlencoded", form.Encode())
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, affiliate.NetworkAwin, f.postbacks.network)
	assert.Equal(t, `{"clickRef":"user_42_1700000000000"}`, f.postbacks.payload["AwinTransactionPush"])
}

func TestWebhookErrors(t *testing.T) {
	f := newFixture(RouterConfig{})

	f.postbacks.err = common.InvalidInput("Invalid click reference")
	w := f.do(http.MethodPost, "/api/webhook/awin", "application/json", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Invalid click reference", decode(t, w)["error"])

	f.postbacks.err = common.NotFound("Partner not found")
	w = f.do(http.MethodPost, "/api/webhook/awin", "application/json", `{}`)
	assert.Equal(t, http.StatusNotFound, w.Code)

	f.postbacks.err = common.Internal("Failed to record transaction", errors.New("deadlock"))
	w = f.do(http.MethodPost, "/api/webhook/awin", "application/json", `{}`)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	body := decode(t, w)
	assert.Equal(t, "Failed to record transaction", body["error"])
	assert.NotContains(t, body, "details")
}

func TestTrackLinkBinding(t *testing.T) {
	f := newFixture(RouterConfig{})

	w := f.do(http.MethodPost, "/api/track-link", "application/json",
		`{"url":"https://loja.com","userId":"42","network":"awin","tokenId":"abc"}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "abc", f.tracking.req.TokenID)
	assert.Equal(t, "https://t/1", decode(t, w)["trackedUrl"])

	w = f.do(http.MethodPost, "/api/track-link", "application/json", `{"url":"https://loja.com"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Missing required parameters: url, userId, network", decode(t, w)["error"])
}

func TestTransactionsQuery(t *testing.T) {
	f := newFixture(RouterConfig{})

	w := f.do(http.MethodGet, "/api/transactions/42?status=pending&network=awin&limit=abc&offset=10", "", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, repository.TransactionFilter{UserID: "42", Status: "pending", Network: "awin", Limit: 50, Offset: 10}, f.transactions.filter)
	assert.Contains(t, decode(t, w), "transactions")
}

func TestPostbackLogsFilter(t *testing.T) {
	f := newFixture(RouterConfig{})

	w := f.do(http.MethodGet, "/api/admin/postback-logs?network=awin&processed=false", "", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "Failed to fetch postback logs", decode(t, w)["error"])
	require.NotNil(t, f.transactions.logFilter.Processed)
	assert.False(t, *f.transactions.logFilter.Processed)
	assert.Equal(t, 100, f.transactions.logFilter.Limit)
}

func TestConfirmCashback(t *testing.T) {
	f := newFixture(RouterConfig{})

	w := f.do(http.MethodPost, "/api/admin/confirm-cashback/t1", "application/json", `{"status":"confirmed","notes":"ok"}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"t1", "confirmed", "ok"}, f.transactions.confirmed)
	assert.Equal(t, "Transaction confirmed successfully", decode(t, w)["message"])
}

func TestGrantMinterRole(t *testing.T) {
	f := newFixture(RouterConfig{})

	w := f.do(http.MethodPost, "/api/admin/grant-minter-role", "application/json", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Address is required", decode(t, w)["error"])

	f.granter.res = services.RoleGrantResult{Error: "signer lacks DEFAULT_ADMIN_ROLE"}
	w = f.do(http.MethodPost, "/api/admin/grant-minter-role", "application/json", `{"address":"0xabc"}`)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, false, decode(t, w)["success"])

	f.granter.res = services.RoleGrantResult{Success: true, TransactionHash: "0xfeed"}
	w = f.do(http.MethodPost, "/api/admin/grant-minter-role", "application/json", `{"address":"0xabc"}`)
	assert.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "MINTER_ROLE granted successfully", body["message"])
	assert.Equal(t, "0xfeed", body["transactionHash"])
	assert.Equal(t, "0xabc", body["address"])
}

func TestRetryMintQueued(t *testing.T) {
	f := newFixture(RouterConfig{})

	w := f.do(http.MethodPost, "/api/admin/retry-mint/t9", "", "")
	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, "t9", decode(t, w)["transactionId"])
}

func TestContractErrors(t *testing.T) {
	f := newFixture(RouterConfig{})

	w := f.do(http.MethodGet, "/api/contract/minter-role", "", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	body := decode(t, w)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "Failed to read MINTER_ROLE from contract", body["error"])
	assert.Equal(t, "execution reverted", body["details"])

	f.contract.nftErr = common.NotFound("NFT not found")
	w = f.do(http.MethodGet, "/api/contract/nft/77", "", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "77", decode(t, w)["tokenId"])

	w = f.do(http.MethodGet, "/api/contract/info", "", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Cashback NFT", decode(t, w)["contract"].(map[string]interface{})["name"])
}

func TestAdminRoutesRequireTokenWhenConfigured(t *testing.T) {
	f := newFixture(RouterConfig{AdminJWTSecret: "s3cret"})

	w := f.do(http.MethodPost, "/api/admin/retry-mint/t9", "", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// Public routes stay open.
	w = f.do(http.MethodGet, "/api/health", "", "")
	assert.Equal(t, http.StatusOK, w.Code)
}
