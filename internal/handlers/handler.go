package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"cashback-service/internal/affiliate"
	"cashback-service/internal/models"
	"cashback-service/internal/repository"
	"cashback-service/internal/services"
	"cashback-service/pkg/common"
)

type Reconciler interface {
	HandlePostback(ctx context.Context, network affiliate.Network, payload map[string]interface{}) (*common.WebhookResponse, error)
}

type LinkTracker interface {
	TrackLink(ctx context.Context, req services.TrackLinkRequest) (*services.TrackLinkResponse, error)
}

type Transactions interface {
	List(ctx context.Context, f repository.TransactionFilter) ([]models.TransactionView, error)
	Purchases(ctx context.Context, userID string) ([]services.Purchase, error)
	Stats(ctx context.Context, userID string) (repository.TransactionStats, error)
	UserNFTs(ctx context.Context, userID string) ([]services.UserNFT, error)
	PostbackLogs(ctx context.Context, f repository.PostbackLogFilter) ([]models.PostbackLog, error)
	ConfirmCashback(ctx context.Context, transactionID, status, notes string) (*services.ConfirmResult, error)
	UpdateNFTStatus(ctx context.Context, tokenID, status, notes string) (*services.NFTStatusResult, error)
}

type Ownership interface {
	WalletNFTs(ctx context.Context, wallet string) (*services.WalletNFTsResponse, error)
	NFTByToken(ctx context.Context, tokenID string) (*services.NFTDetailResponse, error)
	ContractWalletNFTs(ctx context.Context, wallet string) (*services.ContractWalletNFTsResponse, error)
}

type Contract interface {
	Info(ctx context.Context) services.ContractInfo
	MinterRole(ctx context.Context) (string, error)
	DefaultAdminRole(ctx context.Context) (string, error)
	HasRole(ctx context.Context, role, address string) (bool, error)
	MyRoles(ctx context.Context) (*services.MyRoles, error)
	NFT(ctx context.Context, tokenID string) (*services.ChainNFTDetail, error)
}

type RoleGranter interface {
	GrantMinterRole(ctx context.Context, address string) (services.RoleGrantResult, error)
}

type MintScheduler interface {
	Schedule(ctx context.Context, transactionID string) (*services.RetryResult, error)
}

var (
	_ Reconciler    = (*services.PostbackService)(nil)
	_ LinkTracker   = (*services.TrackingService)(nil)
	_ Transactions  = (*services.TransactionService)(nil)
	_ Ownership     = (*services.OwnershipService)(nil)
	_ Contract      = (*services.ContractService)(nil)
	_ RoleGranter   = (*services.NFTService)(nil)
	_ MintScheduler = (*services.MintRetryService)(nil)
)

// Handler serves the HTTP API on top of the services.
type Handler struct {
	Postbacks    Reconciler
	Tracking     LinkTracker
	Transactions Transactions
	Ownership    Ownership
	Contract     Contract
	Roles        RoleGranter
	MintRetry    MintScheduler
	Now          func() time.Time
}

func (h *Handler) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

// respondError writes err as `{error, details?, debug?}` with the status of its kind.
func respondError(c *gin.Context, err error) {
	appErr := common.AsAppError(err)
	if appErr.Kind == common.KindInternal || appErr.Kind == common.KindIntegration {
		logrus.WithError(err).WithFields(logrus.Fields{
			"method": c.Request.Method,
			"path":   c.FullPath(),
		}).Error("Request failed")
	}
	c.JSON(common.StatusFor(appErr.Kind), common.NewErrorResponse(appErr))
}

// respondContractError is the `{success:false, error, details}` shape the
// contract endpoints use.
func respondContractError(c *gin.Context, err error) {
	appErr := common.AsAppError(err)
	body := gin.H{"success": false, "error": appErr.Message}
	if appErr.Err != nil {
		body["details"] = appErr.Err.Error()
	}
	if appErr.Kind == common.KindIntegration || appErr.Kind == common.KindInternal {
		logrus.WithError(err).WithField("path", c.FullPath()).Error("Contract request failed")
	}
	c.JSON(common.StatusFor(appErr.Kind), body)
}

// readPayload decodes a JSON or form-encoded request body into a flat map.
// Form fields with a single value are unwrapped to strings.
func readPayload(c *gin.Context) (map[string]interface{}, error) {
	payload := map[string]interface{}{}

	if strings.HasPrefix(c.ContentType(), "application/json") {
		dec := json.NewDecoder(c.Request.Body)
		dec.UseNumber()
		if err := dec.Decode(&payload); err != nil && err != io.EOF {
			return nil, err
		}
		return payload, nil
	}

	if err := c.Request.ParseForm(); err != nil {
		return nil, err
	}
	for k, v := range c.Request.PostForm {
		if len(v) == 1 {
			payload[k] = v[0]
		} else {
			payload[k] = v
		}
	}
	return payload, nil
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, common.HealthResponse{
		Status:    "OK",
		Timestamp: h.now().UTC().Format("2006-01-02T15:04:05.000Z"),
	})
}

func NotFound(c *gin.Context) {
	c.JSON(http.StatusNotFound, common.ErrorResponse{Error: "Endpoint not found"})
}
