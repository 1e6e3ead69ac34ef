// Package chain talks to the cashback NFT contract over JSON-RPC.
package chain

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/sirupsen/logrus"
)

var (
	ErrNotConnected      = errors.New("chain client not connected")
	ErrSignerNotReady    = errors.New("Account not initialized")
	ErrTransactionFailed = errors.New("transaction reverted")
)

type Config struct {
	RPCURL          string
	ChainID         int64
	NetworkName     string
	ContractAddress string
	PrivateKey      string
}

// State is the readiness of a Client. Reads need StateReadOnly, writes need StateReady.
type State int

const (
	StateUninitialized State = iota
	StateReadOnly
	StateReady
)

func (s State) String() string {
	switch s {
	case StateReadOnly:
		return "read_only"
	case StateReady:
		return "ready"
	}
	return "uninitialized"
}

// MintReceipt describes a mined mintTo call. TokenID is nil when the
// receipt carried no Transfer event from the contract.
type MintReceipt struct {
	TxHash  common.Hash
	TokenID *big.Int
}

type Client struct {
	cfg     Config
	abi     abi.ABI
	address common.Address
	chainID *big.Int

	mu       sync.RWMutex
	state    State
	eth      *ethclient.Client
	contract *bind.BoundContract
	signer   *bind.TransactOpts
	from     common.Address

	// serializes nonce assignment for outgoing transactions
	txMu sync.Mutex
}

func NewClient(cfg Config) (*Client, error) {
	if !common.IsHexAddress(cfg.ContractAddress) {
		return nil, fmt.Errorf("invalid contract address %q", cfg.ContractAddress)
	}
	parsed, err := parseABI()
	if err != nil {
		return nil, fmt.Errorf("parse contract abi: %w", err)
	}
	return &Client{
		cfg:     cfg,
		abi:     parsed,
		address: common.HexToAddress(cfg.ContractAddress),
		chainID: big.NewInt(cfg.ChainID),
	}, nil
}

// Init dials the node, checks the chain id and loads the signer. A missing
// or invalid key leaves the client in StateReadOnly and is returned as an error.
func (c *Client) Init(ctx context.Context) error {
	eth, err := ethclient.DialContext(ctx, c.cfg.RPCURL)
	if err != nil {
		return fmt.Errorf("dial %s: %w", c.cfg.RPCURL, err)
	}

	remoteID, err := eth.ChainID(ctx)
	if err != nil {
		eth.Close()
		return fmt.Errorf("read chain id: %w", err)
	}
	if remoteID.Cmp(c.chainID) != 0 {
		eth.Close()
		return fmt.Errorf("chain id mismatch: node reports %s, configured %s", remoteID, c.chainID)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.eth = eth
	c.contract = bind.NewBoundContract(c.address, c.abi, eth, eth, eth)
	c.state = StateReadOnly

	key, err := loadKey(c.cfg.PrivateKey)
	if err != nil {
		return err
	}
	opts, err := bind.NewKeyedTransactorWithChainID(key, c.chainID)
	if err != nil {
		return fmt.Errorf("build transactor: %w", err)
	}
	c.signer = opts
	c.from = crypto.PubkeyToAddress(key.PublicKey)
	c.state = StateReady

	logrus.WithFields(logrus.Fields{
		"network":  c.cfg.NetworkName,
		"chain_id": c.cfg.ChainID,
		"contract": c.address.Hex(),
		"signer":   c.from.Hex(),
	}).Info("chain client initialized")
	return nil
}

func loadKey(hexKey string) (*ecdsa.PrivateKey, error) {
	hexKey = strings.TrimPrefix(strings.TrimSpace(hexKey), "0x")
	if hexKey == "" {
		return nil, errors.New("no signer private key configured")
	}
	key, err := crypto.HexToECDSA(hexKey)
	if err != nil {
		return nil, fmt.Errorf("invalid signer private key: %w", err)
	}
	return key, nil
}

func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.eth != nil {
		c.eth.Close()
	}
	c.eth = nil
	c.contract = nil
	c.signer = nil
	c.state = StateUninitialized
}

func (c *Client) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

func (c *Client) Ready() bool {
	return c.State() == StateReady
}

func (c *Client) SignerAddress() (common.Address, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.state != StateReady {
		return common.Address{}, ErrSignerNotReady
	}
	return c.from, nil
}

func (c *Client) ContractAddress() common.Address {
	return c.address
}

func (c *Client) ChainID() int64 {
	return c.cfg.ChainID
}

func (c *Client) NetworkName() string {
	return c.cfg.NetworkName
}

func (c *Client) reader() (*bind.BoundContract, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.contract == nil {
		return nil, ErrNotConnected
	}
	return c.contract, nil
}

func (c *Client) call(ctx context.Context, method string, params ...interface{}) ([]interface{}, error) {
	contract, err := c.reader()
	if err != nil {
		return nil, err
	}
	var out []interface{}
	if err := contract.Call(&bind.CallOpts{Context: ctx}, &out, method, params...); err != nil {
		return nil, fmt.Errorf("%s: %w", method, err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%s: empty result", method)
	}
	return out, nil
}

func (c *Client) callBigInt(ctx context.Context, method string, params ...interface{}) (*big.Int, error) {
	out, err := c.call(ctx, method, params...)
	if err != nil {
		return nil, err
	}
	return *abi.ConvertType(out[0], new(*big.Int)).(**big.Int), nil
}

func (c *Client) callString(ctx context.Context, method string, params ...interface{}) (string, error) {
	out, err := c.call(ctx, method, params...)
	if err != nil {
		return "", err
	}
	return *abi.ConvertType(out[0], new(string)).(*string), nil
}

func (c *Client) callAddress(ctx context.Context, method string, params ...interface{}) (common.Address, error) {
	out, err := c.call(ctx, method, params...)
	if err != nil {
		return common.Address{}, err
	}
	return *abi.ConvertType(out[0], new(common.Address)).(*common.Address), nil
}

func (c *Client) callBool(ctx context.Context, method string, params ...interface{}) (bool, error) {
	out, err := c.call(ctx, method, params...)
	if err != nil {
		return false, err
	}
	return *abi.ConvertType(out[0], new(bool)).(*bool), nil
}

func (c *Client) Name(ctx context.Context) (string, error) {
	return c.callString(ctx, "name")
}

func (c *Client) Symbol(ctx context.Context) (string, error) {
	return c.callString(ctx, "symbol")
}

func (c *Client) Owner(ctx context.Context) (common.Address, error) {
	return c.callAddress(ctx, "owner")
}

func (c *Client) TotalSupply(ctx context.Context) (*big.Int, error) {
	return c.callBigInt(ctx, "totalSupply")
}

func (c *Client) NextTokenIDToMint(ctx context.Context) (*big.Int, error) {
	return c.callBigInt(ctx, "nextTokenIdToMint")
}

func (c *Client) OwnerOf(ctx context.Context, tokenID *big.Int) (common.Address, error) {
	return c.callAddress(ctx, "ownerOf", tokenID)
}

func (c *Client) TokenURI(ctx context.Context, tokenID *big.Int) (string, error) {
	return c.callString(ctx, "tokenURI", tokenID)
}

func (c *Client) SupportsInterface(ctx context.Context, id [4]byte) (bool, error) {
	return c.callBool(ctx, "supportsInterface", id)
}

func (c *Client) HasRole(ctx context.Context, role common.Hash, account common.Address) (bool, error) {
	return c.callBool(ctx, "hasRole", [32]byte(role), account)
}

// RoleID reads a role constant (MINTER_ROLE, DEFAULT_ADMIN_ROLE) from the contract.
func (c *Client) RoleID(ctx context.Context, method string) (common.Hash, error) {
	out, err := c.call(ctx, method)
	if err != nil {
		return common.Hash{}, err
	}
	return common.Hash(*abi.ConvertType(out[0], new([32]byte)).(*[32]byte)), nil
}

// GrantRole sends grantRole(role, account) from the signer and waits for it to be mined.
func (c *Client) GrantRole(ctx context.Context, role common.Hash, account common.Address) (common.Hash, error) {
	receipt, err := c.transact(ctx, "grantRole", [32]byte(role), account)
	if err != nil {
		return common.Hash{}, err
	}
	return receipt.TxHash, nil
}

// MintTo sends mintTo(to, uri) and waits for it to be mined. The minted token
// id is taken from the receipt's Transfer event.
func (c *Client) MintTo(ctx context.Context, to common.Address, uri string) (MintReceipt, error) {
	receipt, err := c.transact(ctx, "mintTo", to, uri)
	if err != nil {
		return MintReceipt{}, err
	}
	return MintReceipt{TxHash: receipt.TxHash, TokenID: c.mintedTokenID(receipt)}, nil
}

func (c *Client) mintedTokenID(receipt *types.Receipt) *big.Int {
	for _, l := range receipt.Logs {
		if l.Address != c.address || len(l.Topics) != 4 || l.Topics[0] != transferTopic {
			continue
		}
		if l.Topics[1] != (common.Hash{}) {
			continue
		}
		return new(big.Int).SetBytes(l.Topics[3].Bytes())
	}
	return nil
}

func (c *Client) transact(ctx context.Context, method string, params ...interface{}) (*types.Receipt, error) {
	c.mu.RLock()
	contract, signer, eth := c.contract, c.signer, c.eth
	c.mu.RUnlock()
	if contract == nil {
		return nil, ErrNotConnected
	}
	if signer == nil {
		return nil, ErrSignerNotReady
	}

	opts := *signer
	opts.Context = ctx

	c.txMu.Lock()
	tx, err := contract.Transact(&opts, method, params...)
	c.txMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", method, err)
	}

	logrus.WithFields(logrus.Fields{"method": method, "tx": tx.Hash().Hex()}).Info("transaction sent")

	receipt, err := bind.WaitMined(ctx, eth, tx)
	if err != nil {
		return nil, fmt.Errorf("%s: wait mined %s: %w", method, tx.Hash().Hex(), err)
	}
	if receipt.Status == types.ReceiptStatusFailed {
		return receipt, fmt.Errorf("%s %s: %w", method, tx.Hash().Hex(), ErrTransactionFailed)
	}
	return receipt, nil
}
