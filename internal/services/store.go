package services

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"cashback-service/internal/affiliate"
	"cashback-service/internal/chain"
	"cashback-service/internal/models"
	"cashback-service/internal/repository"
)

// Store is the persistence the services need. repository.GormStore implements it.
type Store interface {
	FindTransaction(ctx context.Context, network affiliate.Network, transactionID string) (*models.AffiliateTransaction, error)
	GetTransaction(ctx context.Context, id string) (*models.AffiliateTransaction, error)
	GetTransactionByTokenID(ctx context.Context, tokenID string) (*models.AffiliateTransaction, error)
	CreateTransaction(ctx context.Context, t *models.AffiliateTransaction) error
	UpdateTransaction(ctx context.Context, id string, updates map[string]interface{}) error
	ListTransactionViews(ctx context.Context, f repository.TransactionFilter) ([]models.TransactionView, error)
	ListTransactionsByWallet(ctx context.Context, wallet string) ([]models.AffiliateTransaction, error)
	ListPendingMints(ctx context.Context, limit int) ([]models.AffiliateTransaction, error)
	UserStats(ctx context.Context, userID string) (repository.TransactionStats, error)

	GetUser(ctx context.Context, id string) (*models.WalletUser, error)
	GetPartner(ctx context.Context, id string) (*models.Partner, error)
	FindPartnerByAdvertiser(ctx context.Context, network affiliate.Network, advertiserID string) (*models.Partner, error)
	FindPartnerByDomain(ctx context.Context, domain string) (*models.Partner, error)
	ListPartners(ctx context.Context, limit int) ([]models.Partner, error)
	GetFanToken(ctx context.Context, id string) (*models.FanToken, error)

	CreateStoreClick(ctx context.Context, c *models.StoreClick) error
	CreatePostbackLog(ctx context.Context, l *models.PostbackLog) error
	ListPostbackLogs(ctx context.Context, f repository.PostbackLogFilter) ([]models.PostbackLog, error)
}

// NFTContract is the on-chain surface of the cashback NFT. chain.Client implements it.
type NFTContract interface {
	Ready() bool
	SignerAddress() (common.Address, error)
	ContractAddress() common.Address
	ChainID() int64
	NetworkName() string

	HasRole(ctx context.Context, role common.Hash, account common.Address) (bool, error)
	GrantRole(ctx context.Context, role common.Hash, account common.Address) (common.Hash, error)
	RoleID(ctx context.Context, method string) (common.Hash, error)

	NextTokenIDToMint(ctx context.Context) (*big.Int, error)
	MintTo(ctx context.Context, to common.Address, uri string) (chain.MintReceipt, error)

	TotalSupply(ctx context.Context) (*big.Int, error)
	OwnerOf(ctx context.Context, tokenID *big.Int) (common.Address, error)
	TokenURI(ctx context.Context, tokenID *big.Int) (string, error)

	Name(ctx context.Context) (string, error)
	Symbol(ctx context.Context) (string, error)
	Owner(ctx context.Context) (common.Address, error)
	SupportsInterface(ctx context.Context, id [4]byte) (bool, error)
}

// MintEnqueuer schedules a later mint attempt for a transaction.
type MintEnqueuer interface {
	EnqueueMintRetry(ctx context.Context, transactionID string) error
}

var (
	_ Store       = (*repository.GormStore)(nil)
	_ NFTContract = (*chain.Client)(nil)
)
