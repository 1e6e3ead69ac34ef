package services

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"cashback-service/internal/models"
	"cashback-service/internal/repository"
	"cashback-service/pkg/common"
)

const tokenStandard = "ERC721"

type BlockchainInfo struct {
	Network         string `json:"network"`
	ChainID         int64  `json:"chainId"`
	ContractAddress string `json:"contractAddress"`
	TokenID         string `json:"tokenId"`
	TokenStandard   string `json:"tokenStandard"`
}

// ChainNFT is a token found on-chain for a wallet.
type ChainNFT struct {
	TokenID         string                 `json:"tokenId"`
	Owner           string                 `json:"owner"`
	TokenURI        string                 `json:"tokenURI"`
	Metadata        map[string]interface{} `json:"metadata"`
	ContractAddress string                 `json:"contractAddress"`
	Blockchain      BlockchainInfo         `json:"blockchain"`
}

type TransactionDetails struct {
	ID               string          `json:"id"`
	TransactionID    string          `json:"transactionId"`
	OrderID          *string         `json:"orderId"`
	ClickReference   string          `json:"clickReference"`
	SaleAmount       decimal.Decimal `json:"saleAmount"`
	CommissionAmount decimal.Decimal `json:"commissionAmount"`
	CashbackPercent  decimal.Decimal `json:"cashbackPercent"`
	CashbackAmount   decimal.Decimal `json:"cashbackAmount"`
	Currency         string          `json:"currency"`
	AffiliateNetwork string          `json:"affiliateNetwork"`
	AdvertiserID     string          `json:"advertiserId"`
	Status           string          `json:"status"`
	TransactionDate  time.Time       `json:"transactionDate"`
	ConfirmationDate *time.Time      `json:"confirmationDate"`
	AdminNotes       *string         `json:"adminNotes"`
	FanTokenID       *string         `json:"fanTokenId"`
}

type PartnerInfo struct {
	ID       string           `json:"id"`
	Name     *string          `json:"name"`
	Logo     *string          `json:"logo"`
	URL      *string          `json:"url"`
	BaseRate *decimal.Decimal `json:"baseRate"`
}

// WalletNFT is an on-chain token joined with its payout record, if any.
type WalletNFT struct {
	TokenID            string                 `json:"tokenId"`
	ContractAddress    string                 `json:"contractAddress"`
	Owner              string                 `json:"owner"`
	TokenURI           string                 `json:"tokenURI"`
	Name               interface{}            `json:"name"`
	Description        interface{}            `json:"description"`
	Image              interface{}            `json:"image"`
	Attributes         interface{}            `json:"attributes"`
	TransactionDetails *TransactionDetails    `json:"transactionDetails"`
	Partner            *PartnerInfo           `json:"partner"`
	Blockchain         BlockchainInfo         `json:"blockchain"`
	Properties         map[string]interface{} `json:"properties"`
}

type WalletSummary struct {
	TotalNFTs               int             `json:"totalNFTs"`
	NFTsWithTransactionData int             `json:"nftsWithTransactionData"`
	NFTsBlockchainOnly      int             `json:"nftsBlockchainOnly"`
	TotalCashbackEarned     decimal.Decimal `json:"totalCashbackEarned"`
	TotalPurchaseValue      decimal.Decimal `json:"totalPurchaseValue"`
	ConfirmedNFTs           int             `json:"confirmedNFTs"`
	PendingNFTs             int             `json:"pendingNFTs"`
	NetworksUsed            []string        `json:"networksUsed"`
	PartnersUsed            []string        `json:"partnersUsed"`
	Currencies              []string        `json:"currencies"`
}

type DataSource struct {
	Blockchain         bool   `json:"blockchain"`
	Database           bool   `json:"database"`
	ContractAddress    string `json:"contractAddress"`
	TotalSupplyOnChain string `json:"totalSupplyOnChain"`
}

type WalletNFTsResponse struct {
	Success       bool          `json:"success"`
	WalletAddress string        `json:"walletAddress"`
	Summary       WalletSummary `json:"summary"`
	NFTs          []WalletNFT   `json:"nfts"`
	DataSource    DataSource    `json:"dataSource"`
}

type ContractSummary struct {
	Address     string `json:"address"`
	Name        string `json:"name"`
	Symbol      string `json:"symbol"`
	TotalSupply string `json:"totalSupply"`
	Network     string `json:"network"`
	ChainID     int64  `json:"chainId"`
}

// ContractWalletNFTsResponse is the chain-only ownership view.
type ContractWalletNFTsResponse struct {
	Success       bool                   `json:"success"`
	WalletAddress string                 `json:"walletAddress"`
	Contract      ContractSummary        `json:"contract"`
	Summary       map[string]interface{} `json:"summary"`
	NFTs          []ChainNFT             `json:"nfts"`
}

type NFTDetailResponse struct {
	TokenID         string                       `json:"tokenId"`
	ContractAddress string                       `json:"contractAddress"`
	Metadata        NFTMetadata                  `json:"metadata"`
	Owner           string                       `json:"owner"`
	Transaction     *models.AffiliateTransaction `json:"transaction"`
}

// OwnershipService answers "which cashback NFTs does this wallet hold".
// The contract has no owner index, so every token id below totalSupply is
// probed with ownerOf.
type OwnershipService struct {
	Store       Store
	Contract    NFTContract
	ImageURL    string
	Concurrency int
}

func NewOwnershipService(store Store, contract NFTContract, imageURL string, concurrency int) *OwnershipService {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &OwnershipService{
		Store:       store,
		Contract:    contract,
		ImageURL:    imageURL,
		Concurrency: concurrency,
	}
}

func invalidWallet(addr string) bool {
	return len(addr) != 42 || !strings.HasPrefix(addr, "0x")
}

func (s *OwnershipService) blockchainInfo(tokenID string) BlockchainInfo {
	return BlockchainInfo{
		Network:         s.Contract.NetworkName(),
		ChainID:         s.Contract.ChainID(),
		ContractAddress: s.Contract.ContractAddress().Hex(),
		TokenID:         tokenID,
		TokenStandard:   tokenStandard,
	}
}

// ScanWallet returns the tokens owned by wallet in ascending token id order,
// along with the totalSupply that bounded the scan. Tokens whose ownerOf call
// fails are skipped.
func (s *OwnershipService) ScanWallet(ctx context.Context, wallet string) ([]ChainNFT, *big.Int, error) {
	supply, err := s.Contract.TotalSupply(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("reading totalSupply: %w", err)
	}
	if !supply.IsInt64() {
		return nil, nil, fmt.Errorf("totalSupply %s out of range", supply)
	}
	total := supply.Int64()
	target := strings.ToLower(wallet)

	logger := logrus.WithFields(logrus.Fields{"wallet": target, "total_supply": total})
	logger.Debug("Scanning token ownership")

	found := make([]*ChainNFT, total)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.Concurrency)

	for i := int64(0); i < total; i++ {
		id := i
		g.Go(func() error {
			tokenID := big.NewInt(id)
			owner, err := s.Contract.OwnerOf(gctx, tokenID)
			if err != nil {
				logger.WithError(err).WithField("token_id", id).Debug("Error checking token")
				return nil
			}
			if strings.ToLower(owner.Hex()) != target {
				return nil
			}

			nft := &ChainNFT{
				TokenID:         tokenID.String(),
				Owner:           strings.ToLower(owner.Hex()),
				ContractAddress: s.Contract.ContractAddress().Hex(),
				Blockchain:      s.blockchainInfo(tokenID.String()),
			}
			uri, err := s.Contract.TokenURI(gctx, tokenID)
			if err != nil {
				logger.WithError(err).WithField("token_id", id).Debug("Could not read tokenURI")
			} else {
				nft.TokenURI = uri
				nft.Metadata = DecodeTokenURI(uri)
			}
			found[id] = nft
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	nfts := make([]ChainNFT, 0)
	for _, nft := range found {
		if nft != nil {
			nfts = append(nfts, *nft)
		}
	}
	logger.WithField("found", len(nfts)).Info("Wallet NFT scan complete")
	return nfts, supply, nil
}

// WalletNFTs is the combined on-chain and database view of a wallet's NFTs.
// A database failure degrades to chain-only data.
func (s *OwnershipService) WalletNFTs(ctx context.Context, wallet string) (*WalletNFTsResponse, error) {
	if invalidWallet(wallet) {
		return nil, common.InvalidInput("Invalid wallet address format. Must be a valid Ethereum address.")
	}
	wallet = strings.ToLower(wallet)

	chainNFTs, supply, err := s.ScanWallet(ctx, wallet)
	if err != nil {
		logrus.WithError(err).WithField("wallet", wallet).Error("Wallet NFT scan failed")
		return nil, common.Integration("Internal server error", err)
	}

	dbOK := true
	txs, err := s.Store.ListTransactionsByWallet(ctx, wallet)
	if err != nil {
		logrus.WithError(err).WithField("wallet", wallet).Error("Database error, continuing with blockchain data only")
		dbOK = false
	}

	nfts := make([]WalletNFT, 0, len(chainNFTs))
	for _, nft := range chainNFTs {
		nfts = append(nfts, s.enrich(nft, MatchTransaction(txs, nft.TokenID)))
	}

	return &WalletNFTsResponse{
		Success:       true,
		WalletAddress: wallet,
		Summary:       Summarize(nfts),
		NFTs:          nfts,
		DataSource: DataSource{
			Blockchain:         true,
			Database:           dbOK,
			ContractAddress:    s.Contract.ContractAddress().Hex(),
			TotalSupplyOnChain: supply.String(),
		},
	}, nil
}

// MatchTransaction finds the payout record for an on-chain token. An exact
// nft_token_id match wins. Otherwise a transaction with no recorded token id
// whose position in txs equals the token id is used; this positional match is
// best effort and breaks when rows are reordered or deleted.
func MatchTransaction(txs []models.AffiliateTransaction, tokenID string) *models.AffiliateTransaction {
	for i := range txs {
		if txs[i].NFTTokenID != nil && *txs[i].NFTTokenID == tokenID {
			return &txs[i]
		}
	}

	var pos int
	if _, err := fmt.Sscan(tokenID, &pos); err != nil || pos < 0 || pos >= len(txs) {
		return nil
	}
	if txs[pos].NFTTokenID == nil {
		return &txs[pos]
	}
	return nil
}

func metaField(meta map[string]interface{}, key string) (interface{}, bool) {
	if meta == nil {
		return nil, false
	}
	v, ok := meta[key]
	if !ok || v == nil {
		return nil, false
	}
	if str, isStr := v.(string); isStr && str == "" {
		return nil, false
	}
	return v, true
}

func metaOr(meta map[string]interface{}, key string, fallback interface{}) interface{} {
	if v, ok := metaField(meta, key); ok {
		return v
	}
	return fallback
}

func (s *OwnershipService) enrich(nft ChainNFT, tx *models.AffiliateTransaction) WalletNFT {
	out := WalletNFT{
		TokenID:         nft.TokenID,
		ContractAddress: nft.ContractAddress,
		Owner:           nft.Owner,
		TokenURI:        nft.TokenURI,
		Image:           metaOr(nft.Metadata, "image", s.ImageURL),
		Blockchain:      nft.Blockchain,
	}

	if tx == nil {
		out.Name = metaOr(nft.Metadata, "name", "Unknown NFT #"+nft.TokenID)
		out.Description = metaOr(nft.Metadata, "description", fmt.Sprintf("NFT #%s from blockchain", nft.TokenID))
		out.Attributes = metaOr(nft.Metadata, "attributes", []NFTAttribute{})
		out.Properties = map[string]interface{}{
			"source":             "blockchain_only",
			"hasTransactionData": false,
		}
		return out
	}

	partnerName := "Unknown Partner"
	var partner PartnerInfo
	partner.ID = tx.PartnerID
	if tx.Partner != nil {
		partnerName = tx.Partner.Name
		partner.Name = &tx.Partner.Name
		partner.Logo = &tx.Partner.Logo
		partner.URL = &tx.Partner.URL
		partner.BaseRate = &tx.Partner.BaseRate
	}
	currency := strings.ToUpper(tx.Currency)

	attrs := []NFTAttribute{
		{TraitType: "Partner", Value: partnerName},
		{TraitType: "Cashback Amount", Value: tx.CashbackAmount.String()},
		{TraitType: "Currency", Value: currency},
		{TraitType: "Purchase Amount", Value: tx.SaleAmount.String()},
		{TraitType: "Status", Value: tx.Status},
		{TraitType: "Date", Value: tx.TransactionDate.UTC().Format(time.RFC3339)},
	}
	if tx.FanTokenID != nil {
		attrs = append(attrs, NFTAttribute{TraitType: "Fan Token ID", Value: *tx.FanTokenID})
	}

	out.Name = metaOr(nft.Metadata, "name", "Cashback NFT – "+partnerName)
	out.Description = metaOr(nft.Metadata, "description",
		fmt.Sprintf("Cashback reward of %s$%s from %s", currency, tx.CashbackAmount.String(), partnerName))
	out.Attributes = metaOr(nft.Metadata, "attributes", attrs)
	out.TransactionDetails = &TransactionDetails{
		ID:               tx.ID,
		TransactionID:    tx.TransactionID,
		OrderID:          tx.OrderID,
		ClickReference:   tx.ClickReference,
		SaleAmount:       tx.SaleAmount,
		CommissionAmount: tx.CommissionAmount,
		CashbackPercent:  tx.CashbackPercent,
		CashbackAmount:   tx.CashbackAmount,
		Currency:         tx.Currency,
		AffiliateNetwork: tx.AffiliateNetwork,
		AdvertiserID:     tx.AdvertiserID,
		Status:           tx.Status,
		TransactionDate:  tx.TransactionDate,
		ConfirmationDate: tx.ConfirmationDate,
		AdminNotes:       tx.AdminNotes,
		FanTokenID:       tx.FanTokenID,
	}
	out.Partner = &partner
	out.Properties = map[string]interface{}{
		"cashbackEarned":    tx.CashbackAmount,
		"purchaseValue":     tx.SaleAmount,
		"cashbackRate":      tx.CashbackPercent,
		"affiliateNetwork":  tx.AffiliateNetwork,
		"partnerName":       partner.Name,
		"transactionStatus": tx.Status,
		"mintDate":          tx.CreatedAt,
		"lastUpdated":       tx.UpdatedAt,
	}
	return out
}

// Summarize aggregates the NFTs that have a payout record.
func Summarize(nfts []WalletNFT) WalletSummary {
	sum := WalletSummary{
		TotalNFTs:           len(nfts),
		TotalCashbackEarned: decimal.Zero,
		TotalPurchaseValue:  decimal.Zero,
		NetworksUsed:        []string{},
		PartnersUsed:        []string{},
		Currencies:          []string{},
	}
	seen := map[string]bool{}
	addUnique := func(list *[]string, kind, v string) {
		if v == "" || seen[kind+":"+v] {
			return
		}
		seen[kind+":"+v] = true
		*list = append(*list, v)
	}

	for _, nft := range nfts {
		d := nft.TransactionDetails
		if d == nil {
			continue
		}
		sum.NFTsWithTransactionData++
		sum.TotalCashbackEarned = sum.TotalCashbackEarned.Add(d.CashbackAmount)
		sum.TotalPurchaseValue = sum.TotalPurchaseValue.Add(d.SaleAmount)
		switch d.Status {
		case models.StatusConfirmed:
			sum.ConfirmedNFTs++
		case models.StatusPending:
			sum.PendingNFTs++
		}
		addUnique(&sum.NetworksUsed, "network", d.AffiliateNetwork)
		if nft.Partner != nil && nft.Partner.Name != nil {
			addUnique(&sum.PartnersUsed, "partner", *nft.Partner.Name)
		}
		addUnique(&sum.Currencies, "currency", d.Currency)
	}
	sum.NFTsBlockchainOnly = sum.TotalNFTs - sum.NFTsWithTransactionData
	return sum
}

// NFTByToken serves token detail from the payout record, not the chain.
func (s *OwnershipService) NFTByToken(ctx context.Context, tokenID string) (*NFTDetailResponse, error) {
	tx, err := s.Store.GetTransactionByTokenID(ctx, tokenID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, common.NotFound("NFT not found")
		}
		logrus.WithError(err).WithField("token_id", tokenID).Error("Error fetching NFT")
		return nil, common.Internal("NFT not found or error fetching data", err)
	}

	partnerName := "Unknown Partner"
	if tx.Partner != nil {
		partnerName = tx.Partner.Name
	}
	currency := strings.ToUpper(tx.Currency)

	return &NFTDetailResponse{
		TokenID:         tokenID,
		ContractAddress: s.Contract.ContractAddress().Hex(),
		Metadata: NFTMetadata{
			Name:        "Cashback NFT - " + partnerName,
			Description: fmt.Sprintf("Cashback reward for purchase at %s. Amount: %s$%s", partnerName, currency, tx.CashbackAmount.String()),
			Image:       s.ImageURL,
			Attributes: []NFTAttribute{
				{TraitType: "Partner", Value: partnerName},
				{TraitType: "Cashback Amount", Value: tx.CashbackAmount.String()},
				{TraitType: "Currency", Value: currency},
				{TraitType: "Purchase Amount", Value: tx.SaleAmount.String()},
				{TraitType: "Status", Value: tx.Status},
				{TraitType: "Date", Value: tx.TransactionDate.UTC().Format(time.RFC3339)},
			},
		},
		Owner:       tx.WalletAddress,
		Transaction: tx,
	}, nil
}

// ContractWalletNFTs is the chain-only variant of WalletNFTs.
func (s *OwnershipService) ContractWalletNFTs(ctx context.Context, wallet string) (*ContractWalletNFTsResponse, error) {
	if invalidWallet(wallet) {
		return nil, common.InvalidInput("Invalid wallet address format. Must be a valid Ethereum address.")
	}
	wallet = strings.ToLower(wallet)

	nfts, supply, err := s.ScanWallet(ctx, wallet)
	if err != nil {
		return nil, common.Integration("Failed to fetch NFTs from contract", err)
	}

	info := ContractSummary{
		Address:     s.Contract.ContractAddress().Hex(),
		TotalSupply: supply.String(),
		Network:     s.Contract.NetworkName(),
		ChainID:     s.Contract.ChainID(),
	}
	if name, err := s.Contract.Name(ctx); err == nil {
		info.Name = name
	}
	if symbol, err := s.Contract.Symbol(ctx); err == nil {
		info.Symbol = symbol
	}

	return &ContractWalletNFTsResponse{
		Success:       true,
		WalletAddress: wallet,
		Contract:      info,
		Summary: map[string]interface{}{
			"totalNFTs":       len(nfts),
			"contractAddress": info.Address,
			"network":         info.Network,
		},
		NFTs: nfts,
	}, nil
}
