package services

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/patrickmn/go-cache"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"

	"cashback-service/internal/chain"
	"cashback-service/internal/models"
	"cashback-service/pkg/common"
)

const metadataURIPrefix = "data:application/json;base64,"

type NFTAttribute struct {
	TraitType string `json:"trait_type"`
	Value     string `json:"value"`
}

type NFTMetadata struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Image       string         `json:"image"`
	Attributes  []NFTAttribute `json:"attributes"`
}

type MintRequest struct {
	WalletAddress   string
	PartnerName     string
	CashbackAmount  decimal.Decimal
	SaleAmount      decimal.Decimal
	Currency        string
	Status          string
	TransactionDate time.Time
	FanTokenID      string
}

// MintResult is the outcome of a mint attempt. Failures are reported here,
// never as a Go error, and still carry the metadata that was built.
type MintResult struct {
	Success         bool
	TokenID         string
	ContractAddress string
	TransactionHash string
	Metadata        *NFTMetadata
	MetadataURI     string
	Error           string
}

type RoleGrantResult struct {
	Success         bool   `json:"success"`
	AlreadyGranted  bool   `json:"alreadyGranted,omitempty"`
	TransactionHash string `json:"transactionHash,omitempty"`
	Error           string `json:"error,omitempty"`
}

// Minter mints a cashback NFT for a reconciled transaction.
type Minter interface {
	Mint(ctx context.Context, req MintRequest) MintResult
}

type NFTService struct {
	Store    Store
	Contract NFTContract
	ImageURL string
	Timeout  time.Duration

	symbols *cache.Cache
}

func NewNFTService(store Store, contract NFTContract, imageURL string, timeout time.Duration) *NFTService {
	return &NFTService{
		Store:    store,
		Contract: contract,
		ImageURL: imageURL,
		Timeout:  timeout,
		symbols:  cache.New(30*time.Minute, time.Hour),
	}
}

func (s *NFTService) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.Timeout)
}

// fanTokenSymbol looks up the symbol for a fan token id; "" when unknown.
func (s *NFTService) fanTokenSymbol(ctx context.Context, id string) string {
	if id == "" {
		return ""
	}
	if v, ok := s.symbols.Get(id); ok {
		return v.(string)
	}

	ft, err := s.Store.GetFanToken(ctx, id)
	if err != nil {
		logrus.WithError(err).WithField("fan_token_id", id).Warn("Fan token not found")
		return ""
	}
	s.symbols.SetDefault(id, ft.Symbol)
	return ft.Symbol
}

func (s *NFTService) BuildMetadata(ctx context.Context, req MintRequest) NFTMetadata {
	symbol := s.fanTokenSymbol(ctx, req.FanTokenID)
	currency := strings.ToUpper(req.Currency)

	description := fmt.Sprintf("Cashback reward of %s$%s from %s", currency, req.CashbackAmount.String(), req.PartnerName)
	if symbol != "" {
		description += fmt.Sprintf(" (%s Fan Token)", symbol)
	}

	status := req.Status
	if status == "" {
		status = models.StatusPending
	}

	attrs := []NFTAttribute{
		{TraitType: "Partner", Value: req.PartnerName},
		{TraitType: "Cashback Amount", Value: req.CashbackAmount.String()},
		{TraitType: "Currency", Value: currency},
		{TraitType: "Purchase Amount", Value: req.SaleAmount.String()},
		{TraitType: "Status", Value: status},
		{TraitType: "Date", Value: req.TransactionDate.UTC().Format(time.RFC3339)},
	}
	if symbol != "" {
		attrs = append(attrs, NFTAttribute{TraitType: "Fan Token", Value: symbol})
	}

	return NFTMetadata{
		Name:        "Cashback NFT – " + req.PartnerName,
		Description: description,
		Image:       s.ImageURL,
		Attributes:  attrs,
	}
}

func EncodeMetadataURI(meta NFTMetadata) (string, error) {
	b, err := json.Marshal(meta)
	if err != nil {
		return "", err
	}
	return metadataURIPrefix + base64.StdEncoding.EncodeToString(b), nil
}

// DecodeTokenURI turns a tokenURI into metadata: data URIs are decoded, http(s)
// URIs are wrapped as external_uri, anything else yields nil.
func DecodeTokenURI(uri string) map[string]interface{} {
	switch {
	case strings.HasPrefix(uri, metadataURIPrefix):
		raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(uri, metadataURIPrefix))
		if err != nil {
			return nil
		}
		var meta map[string]interface{}
		if err := json.Unmarshal(raw, &meta); err != nil {
			return nil
		}
		return meta
	case strings.HasPrefix(uri, "http"):
		return map[string]interface{}{"external_uri": uri}
	}
	return nil
}

func (s *NFTService) Mint(ctx context.Context, req MintRequest) MintResult {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	meta := s.BuildMetadata(ctx, req)
	result := MintResult{
		Metadata:        &meta,
		ContractAddress: s.Contract.ContractAddress().Hex(),
	}
	logger := logrus.WithField("wallet", req.WalletAddress)

	uri, err := EncodeMetadataURI(meta)
	if err != nil {
		result.Error = err.Error()
		return result
	}
	result.MetadataURI = uri

	if !ValidWalletAddress(req.WalletAddress) {
		logger.Error("Invalid user wallet address")
		result.Error = "Invalid user wallet address"
		return result
	}

	if !s.Contract.Ready() {
		logger.Error("Account not initialized")
		result.Error = chain.ErrSignerNotReady.Error()
		return result
	}

	signer, err := s.Contract.SignerAddress()
	if err != nil {
		result.Error = err.Error()
		return result
	}

	hasRole, err := s.Contract.HasRole(ctx, chain.MinterRole, signer)
	if err != nil {
		logger.WithError(err).Warn("Could not verify MINTER_ROLE, minting anyway")
	} else if !hasRole {
		logger.WithField("signer", signer.Hex()).Warn("Signer does not have MINTER_ROLE, attempting to grant")
		grant := s.grant(ctx, chain.MinterRole, signer)
		if !grant.Success {
			result.Error = "Signer does not have MINTER_ROLE and auto-grant failed: " + grant.Error
			return result
		}
	}

	nextID, err := s.Contract.NextTokenIDToMint(ctx)
	if err != nil {
		logger.WithError(err).Warn("Could not read next token id")
	}

	receipt, err := s.Contract.MintTo(ctx, ethcommon.HexToAddress(req.WalletAddress), uri)
	if err != nil {
		logger.WithError(err).Error("Error in NFT minting process")
		result.Error = err.Error()
		return result
	}

	switch {
	case receipt.TokenID != nil:
		result.TokenID = receipt.TokenID.String()
	case nextID != nil:
		result.TokenID = nextID.String()
	}
	result.Success = true
	result.TransactionHash = receipt.TxHash.Hex()

	logger.WithFields(logrus.Fields{"token_id": result.TokenID, "tx": result.TransactionHash}).Info("NFT minted")
	return result
}

// EnsureMinterRole grants MINTER_ROLE to address unless it already holds it.
// The signer must hold DEFAULT_ADMIN_ROLE for a grant to succeed.
func (s *NFTService) EnsureMinterRole(ctx context.Context, address ethcommon.Address) RoleGrantResult {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	has, err := s.Contract.HasRole(ctx, chain.MinterRole, address)
	if err == nil && has {
		return RoleGrantResult{Success: true, AlreadyGranted: true}
	}
	return s.grant(ctx, chain.MinterRole, address)
}

func (s *NFTService) grant(ctx context.Context, role ethcommon.Hash, address ethcommon.Address) RoleGrantResult {
	if !s.Contract.Ready() {
		return RoleGrantResult{Error: chain.ErrSignerNotReady.Error()}
	}

	hash, err := s.Contract.GrantRole(ctx, role, address)
	if err != nil {
		logrus.WithError(err).WithField("address", address.Hex()).Error("Error granting role")
		return RoleGrantResult{Error: err.Error()}
	}

	logrus.WithFields(logrus.Fields{"address": address.Hex(), "role": role.Hex(), "tx": hash.Hex()}).Info("Role granted")
	return RoleGrantResult{Success: true, TransactionHash: hash.Hex()}
}

// GrantMinterRole is the admin entry point for role recovery.
func (s *NFTService) GrantMinterRole(ctx context.Context, address string) (RoleGrantResult, error) {
	if address == "" {
		return RoleGrantResult{}, common.InvalidInput("Address is required")
	}
	if !ethcommon.IsHexAddress(address) {
		return RoleGrantResult{}, common.InvalidInput("Invalid address")
	}
	return s.EnsureMinterRole(ctx, ethcommon.HexToAddress(address)), nil
}

// MintUpdates is the column set merged into a transaction after a mint attempt.
func MintUpdates(result MintResult) map[string]interface{} {
	updates := map[string]interface{}{}
	if result.Metadata != nil {
		if b, err := json.Marshal(result.Metadata); err == nil {
			updates["nft_metadata"] = datatypes.JSON(b)
		}
	}

	if !result.Success {
		updates["nft_mint_status"] = models.MintStatusPendingContractUpdate
		return updates
	}

	updates["nft_token_id"] = strPtr(result.TokenID)
	updates["nft_contract_address"] = result.ContractAddress
	updates["nft_transaction_hash"] = result.TransactionHash
	updates["nft_mint_status"] = models.MintStatusMinted
	return updates
}

// AnnotateStatus rewrites the Status attribute in stored NFT metadata. It
// returns false when there is no metadata to annotate.
func AnnotateStatus(metadata datatypes.JSON, status string) (datatypes.JSON, bool) {
	if len(metadata) == 0 || string(metadata) == "null" {
		return nil, false
	}

	var meta NFTMetadata
	if err := json.Unmarshal(metadata, &meta); err != nil {
		return nil, false
	}

	found := false
	for i := range meta.Attributes {
		if meta.Attributes[i].TraitType == "Status" {
			meta.Attributes[i].Value = status
			found = true
		}
	}
	if !found {
		meta.Attributes = append(meta.Attributes, NFTAttribute{TraitType: "Status", Value: status})
	}

	b, err := json.Marshal(meta)
	if err != nil {
		return nil, false
	}
	return datatypes.JSON(b), true
}

// StatusUpdates is the column set for a status transition, including the NFT
// annotation when the transaction carries metadata.
func StatusUpdates(t *models.AffiliateTransaction, status string, now time.Time) map[string]interface{} {
	updates := map[string]interface{}{"status": status}
	if status == models.StatusConfirmed {
		updates["confirmation_date"] = now
	} else {
		updates["confirmation_date"] = nil
	}
	if annotated, ok := AnnotateStatus(t.NFTMetadata, status); ok {
		updates["nft_metadata"] = annotated
	}
	return updates
}
