package services

import (
	"context"
	"math/big"
	"strings"
	"time"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"

	"cashback-service/internal/chain"
	"cashback-service/pkg/common"
)

const contractInfoKey = "contract-info"

type ContractInfo struct {
	Address             string          `json:"address"`
	Network             string          `json:"network"`
	ChainID             int64           `json:"chainId"`
	Name                string          `json:"name"`
	Symbol              string          `json:"symbol"`
	TotalSupply         string          `json:"totalSupply"`
	Owner               string          `json:"owner"`
	SupportedInterfaces map[string]bool `json:"supportedInterfaces"`
}

type RoleStatus struct {
	Hash    string `json:"hash"`
	HasRole bool   `json:"hasRole"`
}

type MyRoles struct {
	Address string                `json:"address"`
	Roles   map[string]RoleStatus `json:"roles"`
}

type ChainNFTDetail struct {
	Success         bool                   `json:"success"`
	TokenID         string                 `json:"tokenId"`
	ContractAddress string                 `json:"contractAddress"`
	Owner           string                 `json:"owner"`
	TokenURI        string                 `json:"tokenURI"`
	Metadata        map[string]interface{} `json:"metadata"`
	Blockchain      BlockchainInfo         `json:"blockchain"`
}

// ContractService exposes read-only views of the NFT contract for operators.
type ContractService struct {
	Contract NFTContract

	cache *cache.Cache
}

func NewContractService(contract NFTContract, ttl time.Duration) *ContractService {
	return &ContractService{
		Contract: contract,
		cache:    cache.New(ttl, 2*ttl),
	}
}

// Info reports contract identity and supported interfaces. Individual read
// failures leave the field at its zero value.
func (s *ContractService) Info(ctx context.Context) ContractInfo {
	if v, ok := s.cache.Get(contractInfoKey); ok {
		return v.(ContractInfo)
	}

	info := ContractInfo{
		Address:             s.Contract.ContractAddress().Hex(),
		Network:             s.Contract.NetworkName(),
		ChainID:             s.Contract.ChainID(),
		TotalSupply:         "0",
		SupportedInterfaces: map[string]bool{},
	}
	if name, err := s.Contract.Name(ctx); err == nil {
		info.Name = name
	}
	if symbol, err := s.Contract.Symbol(ctx); err == nil {
		info.Symbol = symbol
	}
	if supply, err := s.Contract.TotalSupply(ctx); err == nil {
		info.TotalSupply = supply.String()
	}
	if owner, err := s.Contract.Owner(ctx); err == nil {
		info.Owner = owner.Hex()
	}
	for name, id := range chain.InterfaceIDs {
		ok, err := s.Contract.SupportsInterface(ctx, id)
		info.SupportedInterfaces[name] = err == nil && ok
	}

	s.cache.SetDefault(contractInfoKey, info)
	return info
}

func (s *ContractService) MinterRole(ctx context.Context) (string, error) {
	role, err := s.Contract.RoleID(ctx, "MINTER_ROLE")
	if err != nil {
		return "", common.Integration("Failed to read MINTER_ROLE from contract", err)
	}
	return role.Hex(), nil
}

func (s *ContractService) DefaultAdminRole(ctx context.Context) (string, error) {
	role, err := s.Contract.RoleID(ctx, "DEFAULT_ADMIN_ROLE")
	if err != nil {
		return "", common.Integration("Failed to read DEFAULT_ADMIN_ROLE from contract", err)
	}
	return role.Hex(), nil
}

func (s *ContractService) HasRole(ctx context.Context, role, address string) (bool, error) {
	roleID, ok := chain.RoleByName(role)
	if !ok {
		return false, common.InvalidInput("Invalid role")
	}
	if !ethcommon.IsHexAddress(address) {
		return false, common.InvalidInput("Invalid address")
	}

	has, err := s.Contract.HasRole(ctx, roleID, ethcommon.HexToAddress(address))
	if err != nil {
		return false, common.Integration("Failed to check role", err)
	}
	return has, nil
}

// MyRoles reports the signer's admin and minter membership.
func (s *ContractService) MyRoles(ctx context.Context) (*MyRoles, error) {
	signer, err := s.Contract.SignerAddress()
	if err != nil {
		return nil, common.Integration("Failed to check roles", err)
	}

	out := &MyRoles{Address: signer.Hex(), Roles: map[string]RoleStatus{}}
	for name, role := range map[string]ethcommon.Hash{
		"DEFAULT_ADMIN_ROLE": chain.DefaultAdminRole,
		"MINTER_ROLE":        chain.MinterRole,
	} {
		has, err := s.Contract.HasRole(ctx, role, signer)
		if err != nil {
			return nil, common.Integration("Failed to check roles", err)
		}
		out.Roles[name] = RoleStatus{Hash: role.Hex(), HasRole: has}
	}
	return out, nil
}

// NFT reads a single token straight from the contract.
func (s *ContractService) NFT(ctx context.Context, tokenID string) (*ChainNFTDetail, error) {
	id, ok := new(big.Int).SetString(tokenID, 10)
	if !ok || id.Sign() < 0 {
		return nil, common.InvalidInput("Invalid token id")
	}

	owner, err := s.Contract.OwnerOf(ctx, id)
	if err != nil {
		if nonexistentToken(err) {
			return nil, common.NotFound("NFT not found")
		}
		logrus.WithError(err).WithField("token_id", tokenID).Error("Error fetching NFT from contract")
		return nil, common.Integration("Failed to fetch NFT from contract", err)
	}
	uri, err := s.Contract.TokenURI(ctx, id)
	if err != nil {
		return nil, common.Integration("Failed to fetch NFT from contract", err)
	}

	contract := s.Contract.ContractAddress().Hex()
	return &ChainNFTDetail{
		Success:         true,
		TokenID:         id.String(),
		ContractAddress: contract,
		Owner:           strings.ToLower(owner.Hex()),
		TokenURI:        uri,
		Metadata:        DecodeTokenURI(uri),
		Blockchain: BlockchainInfo{
			Network:         s.Contract.NetworkName(),
			ChainID:         s.Contract.ChainID(),
			ContractAddress: contract,
			TokenID:         id.String(),
			TokenStandard:   tokenStandard,
		},
	}, nil
}

func nonexistentToken(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "invalid token ID") || strings.Contains(msg, "nonexistent token")
}
