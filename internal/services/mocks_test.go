package services

import (
	"context"
	"errors"
	"math/big"
	"sort"
	"strings"
	"sync"
	"time"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"

	"cashback-service/internal/affiliate"
	"cashback-service/internal/chain"
	"cashback-service/internal/models"
	"cashback-service/internal/repository"
)

// memStore is an in-memory Store for service tests.
type memStore struct {
	mu sync.Mutex

	txs       map[string]*models.AffiliateTransaction
	users     map[string]*models.WalletUser
	partners  map[string]*models.Partner
	fanTokens map[string]*models.FanToken
	logs      []models.PostbackLog
	clicks    []models.StoreClick

	createCalls int
	seq         int

	// beforeCreate runs inside CreateTransaction; tests use it to simulate a
	// concurrent insert of the same transaction.
	beforeCreate func(t *models.AffiliateTransaction)
	listErr      error
	walletErr    error
}

func newMemStore() *memStore {
	return &memStore{
		txs:       map[string]*models.AffiliateTransaction{},
		users:     map[string]*models.WalletUser{},
		partners:  map[string]*models.Partner{},
		fanTokens: map[string]*models.FanToken{},
	}
}

func (s *memStore) addUser(id, wallet string) *models.WalletUser {
	u := &models.WalletUser{ID: id, WalletAddress: wallet, Email: id + "@example.com"}
	s.users[id] = u
	return u
}

func (s *memStore) addPartner(id, name string, rate int64, awinID, rakutenID string) *models.Partner {
	p := &models.Partner{ID: id, Name: name, URL: "https://www." + strings.ToLower(name) + ".com", BaseRate: decimal.NewFromInt(rate)}
	if awinID != "" {
		p.AwinAdvertiserID = &awinID
	}
	if rakutenID != "" {
		p.RakutenAdvertiserID = &rakutenID
	}
	s.partners[id] = p
	return p
}

func (s *memStore) addTx(t models.AffiliateTransaction) *models.AffiliateTransaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.ID == "" {
		s.seq++
		t.ID = "tx-" + big.NewInt(int64(s.seq)).String()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now()
	}
	s.txs[t.ID] = &t
	return &t
}

func (s *memStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.txs)
}

func (s *memStore) get(id string) models.AffiliateTransaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.txs[id]
}

func (s *memStore) onlyTx() models.AffiliateTransaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.txs {
		return *t
	}
	return models.AffiliateTransaction{}
}

func (s *memStore) withPartner(t models.AffiliateTransaction) models.AffiliateTransaction {
	if p, ok := s.partners[t.PartnerID]; ok {
		cp := *p
		t.Partner = &cp
	}
	return t
}

func (s *memStore) FindTransaction(ctx context.Context, network affiliate.Network, transactionID string) (*models.AffiliateTransaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.txs {
		if t.AffiliateNetwork == string(network) && t.TransactionID == transactionID {
			cp := *t
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s *memStore) GetTransaction(ctx context.Context, id string) (*models.AffiliateTransaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.txs[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (s *memStore) GetTransactionByTokenID(ctx context.Context, tokenID string) (*models.AffiliateTransaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.txs {
		if t.NFTTokenID != nil && *t.NFTTokenID == tokenID {
			cp := s.withPartner(*t)
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s *memStore) CreateTransaction(ctx context.Context, t *models.AffiliateTransaction) error {
	if s.beforeCreate != nil {
		hook := s.beforeCreate
		s.beforeCreate = nil
		hook(t)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.createCalls++
	for _, existing := range s.txs {
		if existing.AffiliateNetwork == t.AffiliateNetwork && existing.TransactionID == t.TransactionID {
			return repository.ErrDuplicate
		}
	}
	if t.ID == "" {
		s.seq++
		t.ID = "tx-" + big.NewInt(int64(s.seq)).String()
	}
	t.CreatedAt = time.Now()
	t.UpdatedAt = t.CreatedAt
	cp := *t
	s.txs[t.ID] = &cp
	return nil
}

func (s *memStore) UpdateTransaction(ctx context.Context, id string, updates map[string]interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.txs[id]
	if !ok {
		return repository.ErrNotFound
	}
	for k, v := range updates {
		switch k {
		case "status":
			t.Status = v.(string)
		case "confirmation_date":
			if v == nil {
				t.ConfirmationDate = nil
			} else {
				d := v.(time.Time)
				t.ConfirmationDate = &d
			}
		case "nft_metadata":
			t.NFTMetadata = v.(datatypes.JSON)
		case "nft_mint_status":
			st := v.(string)
			t.NFTMintStatus = &st
		case "nft_token_id":
			t.NFTTokenID = v.(*string)
		case "nft_contract_address":
			st := v.(string)
			t.NFTContractAddress = &st
		case "nft_transaction_hash":
			st := v.(string)
			t.NFTTransactionHash = &st
		case "admin_notes":
			t.AdminNotes = v.(*string)
		default:
			return errors.New("unexpected column " + k)
		}
	}
	t.UpdatedAt = time.Now()
	return nil
}

func (s *memStore) sorted(match func(*models.AffiliateTransaction) bool) []models.AffiliateTransaction {
	var out []models.AffiliateTransaction
	for _, t := range s.txs {
		if match(t) {
			out = append(out, s.withPartner(*t))
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].TransactionDate.After(out[j].TransactionDate)
	})
	return out
}

func (s *memStore) ListTransactionViews(ctx context.Context, f repository.TransactionFilter) ([]models.TransactionView, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rows := s.sorted(func(t *models.AffiliateTransaction) bool {
		return t.UserID == f.UserID &&
			(f.Status == "" || t.Status == f.Status) &&
			(f.Network == "" || t.AffiliateNetwork == f.Network) &&
			(!f.OnlyMinted || t.NFTTokenID != nil)
	})

	var out []models.TransactionView
	for _, t := range rows {
		v := models.TransactionView{AffiliateTransaction: t}
		if t.Partner != nil {
			v.PartnerName = &t.Partner.Name
			v.PartnerLogo = &t.Partner.Logo
			v.PartnerURL = &t.Partner.URL
		}
		v.AffiliateTransaction.Partner = nil
		out = append(out, v)
	}
	if f.Offset > len(out) {
		return nil, nil
	}
	out = out[f.Offset:]
	if f.Limit > 0 && f.Limit < len(out) {
		out = out[:f.Limit]
	}
	return out, nil
}

func (s *memStore) ListTransactionsByWallet(ctx context.Context, wallet string) ([]models.AffiliateTransaction, error) {
	if s.walletErr != nil {
		return nil, s.walletErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sorted(func(t *models.AffiliateTransaction) bool {
		return strings.EqualFold(t.WalletAddress, wallet)
	}), nil
}

func (s *memStore) ListPendingMints(ctx context.Context, limit int) ([]models.AffiliateTransaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.AffiliateTransaction
	for _, t := range s.txs {
		if t.NFTMintStatus != nil && *t.NFTMintStatus == models.MintStatusPendingContractUpdate && t.NFTTokenID == nil {
			out = append(out, *t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *memStore) UserStats(ctx context.Context, userID string) (repository.TransactionStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stats := repository.TransactionStats{TotalSales: decimal.Zero, TotalCashback: decimal.Zero}
	for _, t := range s.txs {
		if t.UserID != userID {
			continue
		}
		stats.TotalTransactions++
		stats.TotalSales = stats.TotalSales.Add(t.SaleAmount)
		stats.TotalCashback = stats.TotalCashback.Add(t.CashbackAmount)
		switch t.Status {
		case models.StatusConfirmed:
			stats.ConfirmedTransactions++
		case models.StatusPending:
			stats.PendingTransactions++
		}
		switch t.AffiliateNetwork {
		case string(affiliate.NetworkAwin):
			stats.AwinTransactions++
		case string(affiliate.NetworkRakuten):
			stats.RakutenTransactions++
		}
	}
	return stats, nil
}

func (s *memStore) GetUser(ctx context.Context, id string) (*models.WalletUser, error) {
	u, ok := s.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *memStore) GetPartner(ctx context.Context, id string) (*models.Partner, error) {
	p, ok := s.partners[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (s *memStore) FindPartnerByAdvertiser(ctx context.Context, network affiliate.Network, advertiserID string) (*models.Partner, error) {
	for _, p := range s.partners {
		id := p.AwinAdvertiserID
		if network == affiliate.NetworkRakuten {
			id = p.RakutenAdvertiserID
		}
		if id != nil && *id == advertiserID {
			cp := *p
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s *memStore) FindPartnerByDomain(ctx context.Context, domain string) (*models.Partner, error) {
	for _, p := range s.partners {
		if strings.Contains(strings.ToLower(p.URL), strings.ToLower(domain)) {
			cp := *p
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s *memStore) ListPartners(ctx context.Context, limit int) ([]models.Partner, error) {
	var out []models.Partner
	for _, p := range s.partners {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *memStore) GetFanToken(ctx context.Context, id string) (*models.FanToken, error) {
	ft, ok := s.fanTokens[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *ft
	return &cp, nil
}

func (s *memStore) CreateStoreClick(ctx context.Context, c *models.StoreClick) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clicks = append(s.clicks, *c)
	return nil
}

func (s *memStore) CreatePostbackLog(ctx context.Context, l *models.PostbackLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logs = append(s.logs, *l)
	return nil
}

func (s *memStore) ListPostbackLogs(ctx context.Context, f repository.PostbackLogFilter) ([]models.PostbackLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.PostbackLog
	for _, l := range s.logs {
		if f.Network != "" && l.AffiliateNetwork != f.Network {
			continue
		}
		if f.Processed != nil && l.Processed != *f.Processed {
			continue
		}
		out = append(out, l)
	}
	return out, nil
}

// fakeContract is an in-memory NFTContract.
type fakeContract struct {
	mu sync.Mutex

	ready   bool
	signer  ethcommon.Address
	address ethcommon.Address
	roles   map[ethcommon.Hash]map[ethcommon.Address]bool

	owners map[int64]ethcommon.Address
	uris   map[int64]string
	next   int64

	hasRoleErr error
	grantErr   error
	mintErr    error
	ownerErr   map[int64]error

	mintCalls  int
	grantCalls int
}

func newFakeContract() *fakeContract {
	return &fakeContract{
		ready:   true,
		signer:  ethcommon.HexToAddress("0x00000000000000000000000000000000000000aa"),
		address: ethcommon.HexToAddress("0x00000000000000000000000000000000000000cc"),
		roles: map[ethcommon.Hash]map[ethcommon.Address]bool{
			chain.MinterRole:       {},
			chain.DefaultAdminRole: {},
		},
		owners:   map[int64]ethcommon.Address{},
		uris:     map[int64]string{},
		ownerErr: map[int64]error{},
	}
}

func (c *fakeContract) grantTo(role ethcommon.Hash, addr ethcommon.Address) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.roles[role] == nil {
		c.roles[role] = map[ethcommon.Address]bool{}
	}
	c.roles[role][addr] = true
}

func (c *fakeContract) setToken(id int64, owner ethcommon.Address, uri string) {
	c.owners[id] = owner
	c.uris[id] = uri
	if id >= c.next {
		c.next = id + 1
	}
}

func (c *fakeContract) Ready() bool { return c.ready }

func (c *fakeContract) SignerAddress() (ethcommon.Address, error) {
	if !c.ready {
		return ethcommon.Address{}, chain.ErrSignerNotReady
	}
	return c.signer, nil
}

func (c *fakeContract) ContractAddress() ethcommon.Address { return c.address }
func (c *fakeContract) ChainID() int64                     { return 88882 }
func (c *fakeContract) NetworkName() string                { return "Spicy Testnet (Chiliz)" }

func (c *fakeContract) HasRole(ctx context.Context, role ethcommon.Hash, account ethcommon.Address) (bool, error) {
	if c.hasRoleErr != nil {
		return false, c.hasRoleErr
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.roles[role][account], nil
}

func (c *fakeContract) GrantRole(ctx context.Context, role ethcommon.Hash, account ethcommon.Address) (ethcommon.Hash, error) {
	c.mu.Lock()
	c.grantCalls++
	c.mu.Unlock()
	if c.grantErr != nil {
		return ethcommon.Hash{}, c.grantErr
	}
	c.grantTo(role, account)
	return ethcommon.HexToHash("0x01"), nil
}

func (c *fakeContract) RoleID(ctx context.Context, method string) (ethcommon.Hash, error) {
	switch method {
	case "MINTER_ROLE":
		return chain.MinterRole, nil
	case "DEFAULT_ADMIN_ROLE":
		return chain.DefaultAdminRole, nil
	}
	return ethcommon.Hash{}, errors.New("no method " + method)
}

func (c *fakeContract) NextTokenIDToMint(ctx context.Context) (*big.Int, error) {
	return big.NewInt(c.next), nil
}

func (c *fakeContract) MintTo(ctx context.Context, to ethcommon.Address, uri string) (chain.MintReceipt, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mintCalls++
	if c.mintErr != nil {
		return chain.MintReceipt{}, c.mintErr
	}
	if !c.roles[chain.MinterRole][c.signer] {
		return chain.MintReceipt{}, errors.New("execution reverted: AccessControl: missing role")
	}
	id := c.next
	c.next++
	c.owners[id] = to
	c.uris[id] = uri
	return chain.MintReceipt{TxHash: ethcommon.HexToHash("0xbeef"), TokenID: big.NewInt(id)}, nil
}

func (c *fakeContract) TotalSupply(ctx context.Context) (*big.Int, error) {
	return big.NewInt(c.next), nil
}

func (c *fakeContract) OwnerOf(ctx context.Context, tokenID *big.Int) (ethcommon.Address, error) {
	id := tokenID.Int64()
	if err := c.ownerErr[id]; err != nil {
		return ethcommon.Address{}, err
	}
	owner, ok := c.owners[id]
	if !ok {
		return ethcommon.Address{}, errors.New("ERC721: invalid token ID")
	}
	return owner, nil
}

func (c *fakeContract) TokenURI(ctx context.Context, tokenID *big.Int) (string, error) {
	return c.uris[tokenID.Int64()], nil
}

func (c *fakeContract) Name(ctx context.Context) (string, error)   { return "Cashback NFT", nil }
func (c *fakeContract) Symbol(ctx context.Context) (string, error) { return "CBNFT", nil }

func (c *fakeContract) Owner(ctx context.Context) (ethcommon.Address, error) {
	return c.signer, nil
}

func (c *fakeContract) SupportsInterface(ctx context.Context, id [4]byte) (bool, error) {
	return true, nil
}

// recordingMinter counts mint calls and returns a canned result.
type recordingMinter struct {
	calls  []MintRequest
	result MintResult
}

func (m *recordingMinter) Mint(ctx context.Context, req MintRequest) MintResult {
	m.calls = append(m.calls, req)
	return m.result
}

type recordingEnqueuer struct {
	ids []string
	err error
}

func (e *recordingEnqueuer) EnqueueMintRetry(ctx context.Context, transactionID string) error {
	if e.err != nil {
		return e.err
	}
	e.ids = append(e.ids, transactionID)
	return nil
}
