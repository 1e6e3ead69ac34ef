// Package app wires the services shared by the server, worker and CLI binaries.
package app

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"cashback-service/internal/affiliate"
	"cashback-service/internal/chain"
	"cashback-service/internal/config"
	"cashback-service/internal/handlers"
	"cashback-service/internal/repository"
	"cashback-service/internal/services"
)

const contractInfoTTL = 5 * time.Minute

type App struct {
	Config *config.AppConfig
	Store  *repository.GormStore
	Chain  *chain.Client

	NFT          *services.NFTService
	Postbacks    *services.PostbackService
	Tracking     *services.TrackingService
	Transactions *services.TransactionService
	Ownership    *services.OwnershipService
	Contract     *services.ContractService
	MintRetry    *services.MintRetryService
}

// New builds every service. queue may be nil, in which case mint retries run
// inline instead of through the worker.
func New(cfg *config.AppConfig, db *gorm.DB, queue services.MintEnqueuer) (*App, error) {
	client, err := chain.NewClient(chain.Config{
		RPCURL:          cfg.ChainRPCURL,
		ChainID:         cfg.ChainID,
		NetworkName:     cfg.ChainName,
		ContractAddress: cfg.NFTContractAddress,
		PrivateKey:      cfg.SignerPrivateKey,
	})
	if err != nil {
		return nil, err
	}

	store := repository.NewGormStore(db)
	helper := services.NewHelperService(store)
	nft := services.NewNFTService(store, client, cfg.NFTImageURL, cfg.RPCTimeout)

	return &App{
		Config: cfg,
		Store:  store,
		Chain:  client,

		NFT:       nft,
		Postbacks: services.NewPostbackService(store, helper, nft, affiliate.NewParser(cfg.DefaultCurrency)),
		Tracking: services.NewTrackingService(store, affiliate.TrackingConfig{
			AwinBaseURL:        cfg.AwinBaseURL,
			AwinPublisherID:    cfg.AwinPublisherID,
			RakutenBaseURL:     cfg.RakutenBaseURL,
			RakutenPublisherID: cfg.RakutenPublisherID,
		}),
		Transactions: services.NewTransactionService(store),
		Ownership:    services.NewOwnershipService(store, client, cfg.NFTImageURL, cfg.OwnershipConcurrency),
		Contract:     services.NewContractService(client, contractInfoTTL),
		MintRetry:    services.NewMintRetryService(store, nft, queue, cfg.MintRetryBatch),
	}, nil
}

// InitChain connects the chain client. Failure is logged and the process keeps
// serving: reads and minting report the client as not ready until a restart.
func (a *App) InitChain(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := a.Chain.Init(ctx); err != nil {
		logrus.WithError(err).WithField("state", a.Chain.State().String()).Error("Failed to initialize chain client")
	}
}

func (a *App) Handler() *handlers.Handler {
	return &handlers.Handler{
		Postbacks:    a.Postbacks,
		Tracking:     a.Tracking,
		Transactions: a.Transactions,
		Ownership:    a.Ownership,
		Contract:     a.Contract,
		Roles:        a.NFT,
		MintRetry:    a.MintRetry,
	}
}

func (a *App) Close() {
	a.Chain.Close()
}
