package testutil

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/korepay/settlement-backend/internal/domain"
	"github.com/shopspring/decimal"
)

// MockVendorTransactionRepository is a mock implementation of domain.VendorTransactionRepository
type MockVendorTransactionRepository struct {
	Transactions map[int32]*domain.VendorTransaction
	GetByIDsFn   func(ids []int32) ([]*domain.VendorTransaction, error)
}

// NewMockVendorTransactionRepository creates a new MockVendorTransactionRepository
func NewMockVendorTransactionRepository() *MockVendorTransactionRepository {
	return &MockVendorTransactionRepository{
		Transactions: make(map[int32]*domain.VendorTransaction),
	}
}

// GetByIDs retrieves transactions by their IDs, skipping unknown IDs
func (m *MockVendorTransactionRepository) GetByIDs(ids []int32) ([]*domain.VendorTransaction, error) {
	if m.GetByIDsFn != nil {
		return m.GetByIDsFn(ids)
	}
	var result []*domain.VendorTransaction
	for _, id := range ids {
		if txn, ok := m.Transactions[id]; ok {
			result = append(result, txn)
		}
	}
	return result, nil
}

// ListUnsettled returns unsettled transactions matching the terminal sets within the window
func (m *MockVendorTransactionRepository) ListUnsettled(mids, tids []string, windowStart, windowEnd time.Time) ([]*domain.VendorTransaction, error) {
	midSet := make(map[string]bool)
	for _, mid := range mids {
		midSet[mid] = true
	}
	tidSet := make(map[string]bool)
	for _, tid := range tids {
		tidSet[tid] = true
	}

	var result []*domain.VendorTransaction
	for _, txn := range m.Transactions {
		if txn.Settled {
			continue
		}
		if !midSet[txn.MID] && !tidSet[txn.TID] {
			continue
		}
		if txn.TransactedAt.Before(windowStart) || !txn.TransactedAt.Before(windowEnd) {
			continue
		}
		result = append(result, txn)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

// AddTransaction adds a transaction to the mock repository (helper for tests)
func (m *MockVendorTransactionRepository) AddTransaction(txn *domain.VendorTransaction) {
	m.Transactions[txn.ID] = txn
}

// MockSettlementBatchRepository is a mock implementation of domain.SettlementBatchRepository.
// CandidateStore optionally links it to a candidate mock so ReplaceCandidates
// is visible through candidate queries.
type MockSettlementBatchRepository struct {
	Batches        map[int32]*domain.SettlementBatch
	NextID         int32
	CandidateStore *MockSettlementCandidateRepository
	UpdateStatusFn func(id int32, from, to domain.BatchStatus) error
	mu             sync.Mutex
}

// NewMockSettlementBatchRepository creates a new MockSettlementBatchRepository
func NewMockSettlementBatchRepository() *MockSettlementBatchRepository {
	return &MockSettlementBatchRepository{
		Batches: make(map[int32]*domain.SettlementBatch),
		NextID:  1,
	}
}

// GetOrCreateActive returns the existing active batch for the owner and cycle, or stores the given one
func (m *MockSettlementBatchRepository) GetOrCreateActive(batch *domain.SettlementBatch) (*domain.SettlementBatch, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.Batches {
		if existing.OwnerID == batch.OwnerID && existing.OwnerType == batch.OwnerType && existing.CycleKey == batch.CycleKey &&
			(existing.Status == domain.BatchStatusOpen || existing.Status == domain.BatchStatusProcessing) {
			return existing, false, nil
		}
	}

	batch.ID = m.NextID
	m.NextID++
	batch.CreatedAt = time.Now()
	m.Batches[batch.ID] = batch
	return batch, true, nil
}

// GetByID retrieves a batch by ID
func (m *MockSettlementBatchRepository) GetByID(id int32) (*domain.SettlementBatch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if batch, ok := m.Batches[id]; ok {
		return batch, nil
	}
	return nil, domain.ErrBatchNotFound
}

// UpdateStatus transitions the batch between statuses, enforcing the expected from status
func (m *MockSettlementBatchRepository) UpdateStatus(id int32, from, to domain.BatchStatus) error {
	if m.UpdateStatusFn != nil {
		return m.UpdateStatusFn(id, from, to)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	batch, ok := m.Batches[id]
	if !ok {
		return domain.ErrBatchNotFound
	}
	if batch.Status != from {
		return domain.ErrBatchStatusConflict
	}
	batch.Status = to
	return nil
}

// UpdateTotals persists the batch's aggregate figures
func (m *MockSettlementBatchRepository) UpdateTotals(id int32, totals domain.BatchTotals) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	batch, ok := m.Batches[id]
	if !ok {
		return domain.ErrBatchNotFound
	}
	batch.BatchTotals = totals
	return nil
}

// ReplaceCandidates swaps the batch's candidate set in the linked candidate mock
func (m *MockSettlementBatchRepository) ReplaceCandidates(batchID int32, candidates []*domain.SettlementCandidate, totals domain.BatchTotals) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	batch, ok := m.Batches[batchID]
	if !ok {
		return domain.ErrBatchNotFound
	}
	if batch.Status != domain.BatchStatusOpen {
		return domain.ErrBatchNotOpen
	}
	batch.BatchTotals = totals

	if m.CandidateStore != nil {
		m.CandidateStore.replaceForBatch(batchID, candidates)
	}
	return nil
}

// MockSettlementCandidateRepository is a mock implementation of
// domain.SettlementCandidateRepository. TransactionStore and WalletStore
// optionally link it to the transaction and wallet mocks so Settle mirrors the
// real repository's atomic unit of work.
type MockSettlementCandidateRepository struct {
	Candidates       map[int32]*domain.SettlementCandidate
	NextID           int32
	TransactionStore *MockVendorTransactionRepository
	WalletStore      *MockWalletRepository
	SettleFn         func(exec domain.SettlementExecution) error
	mu               sync.Mutex
}

// NewMockSettlementCandidateRepository creates a new MockSettlementCandidateRepository
func NewMockSettlementCandidateRepository() *MockSettlementCandidateRepository {
	return &MockSettlementCandidateRepository{
		Candidates: make(map[int32]*domain.SettlementCandidate),
		NextID:     1,
	}
}

func (m *MockSettlementCandidateRepository) replaceForBatch(batchID int32, candidates []*domain.SettlementCandidate) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, c := range m.Candidates {
		if c.BatchID == batchID {
			delete(m.Candidates, id)
		}
	}
	for _, c := range candidates {
		c.ID = m.NextID
		m.NextID++
		m.Candidates[c.ID] = c
	}
}

// ListByBatch lists all candidates of a batch in id order
func (m *MockSettlementCandidateRepository) ListByBatch(batchID int32) ([]*domain.SettlementCandidate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.listLocked(batchID, ""), nil
}

// ListSelected lists SELECTED candidates of a batch in id order
func (m *MockSettlementCandidateRepository) ListSelected(batchID int32) ([]*domain.SettlementCandidate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.listLocked(batchID, domain.CandidateStatusSelected), nil
}

func (m *MockSettlementCandidateRepository) listLocked(batchID int32, status domain.CandidateStatus) []*domain.SettlementCandidate {
	var result []*domain.SettlementCandidate
	for id := int32(1); id < m.NextID; id++ {
		c, ok := m.Candidates[id]
		if !ok || c.BatchID != batchID {
			continue
		}
		if status != "" && c.Status != status {
			continue
		}
		result = append(result, c)
	}
	return result
}

// MarkFailed records a candidate failure with a reason
func (m *MockSettlementCandidateRepository) MarkFailed(id int32, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.Candidates[id]
	if !ok {
		return domain.ErrNotFound
	}
	c.Status = domain.CandidateStatusFailed
	c.FailureReason = &reason
	return nil
}

// ResetFailed flips all FAILED candidates of the batch back to SELECTED
func (m *MockSettlementCandidateRepository) ResetFailed(batchID int32) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var reset int64
	for _, c := range m.Candidates {
		if c.BatchID == batchID && c.Status == domain.CandidateStatusFailed {
			c.Status = domain.CandidateStatusSelected
			c.FailureReason = nil
			reset++
		}
	}
	return reset, nil
}

// Settle performs the candidate's settlement against the linked mocks
func (m *MockSettlementCandidateRepository) Settle(exec domain.SettlementExecution) error {
	if m.SettleFn != nil {
		return m.SettleFn(exec)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.Candidates[exec.CandidateID]
	if !ok {
		return domain.ErrNotFound
	}

	if m.TransactionStore != nil {
		txn, ok := m.TransactionStore.Transactions[exec.TransactionID]
		if !ok {
			return domain.ErrTransactionNotFound
		}
		if txn.Settled {
			return domain.ErrAlreadySettled
		}
		settledAt := exec.SettledAt
		txn.Settled = true
		txn.SettledAt = &settledAt
		txn.SettlementBatchID = &exec.BatchID
	}

	if m.WalletStore != nil {
		if _, err := m.WalletStore.ApplyDelta(exec.OwnerID, exec.OwnerType, exec.Net,
			fmt.Sprintf("settlement batch %d transaction %d", exec.BatchID, exec.TransactionID)); err != nil {
			return err
		}
	}

	settledAt := exec.SettledAt
	c.Fee = exec.Fee
	c.Net = exec.Net
	c.Status = domain.CandidateStatusSettled
	c.SettledAt = &settledAt
	return nil
}

// Progress returns candidate status counts for the batch
func (m *MockSettlementCandidateRepository) Progress(batchID int32) (*domain.BatchProgress, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	progress := &domain.BatchProgress{}
	for _, c := range m.Candidates {
		if c.BatchID != batchID {
			continue
		}
		progress.Total++
		switch c.Status {
		case domain.CandidateStatusSettled:
			progress.Settled++
		case domain.CandidateStatusFailed:
			progress.Failed++
		default:
			progress.Pending++
		}
	}
	return progress, nil
}

// TotalsFromSettled recomputes batch totals from settled candidate rows
func (m *MockSettlementCandidateRepository) TotalsFromSettled(batchID int32) (*domain.BatchTotals, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	totals := &domain.BatchTotals{
		GrossAmount: decimal.Zero,
		FeeAmount:   decimal.Zero,
		NetAmount:   decimal.Zero,
	}
	for _, c := range m.Candidates {
		if c.BatchID != batchID || c.Status != domain.CandidateStatusSettled {
			continue
		}
		totals.TransactionCount++
		totals.GrossAmount = totals.GrossAmount.Add(c.Amount)
		totals.FeeAmount = totals.FeeAmount.Add(c.Fee)
		totals.NetAmount = totals.NetAmount.Add(c.Net)
	}
	return totals, nil
}

// AddCandidate adds a candidate to the mock repository (helper for tests)
func (m *MockSettlementCandidateRepository) AddCandidate(c *domain.SettlementCandidate) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if c.ID == 0 {
		c.ID = m.NextID
	}
	if c.ID >= m.NextID {
		m.NextID = c.ID + 1
	}
	m.Candidates[c.ID] = c
}

// MockWalletRepository is a mock implementation of domain.WalletRepository
type MockWalletRepository struct {
	Wallets      map[string]*domain.Wallet
	Entries      []string
	NextID       int32
	ApplyDeltaFn func(ownerID int32, ownerType domain.OwnerType, delta decimal.Decimal, reason string) (*domain.Wallet, error)
	mu           sync.Mutex
}

// NewMockWalletRepository creates a new MockWalletRepository
func NewMockWalletRepository() *MockWalletRepository {
	return &MockWalletRepository{
		Wallets: make(map[string]*domain.Wallet),
		NextID:  1,
	}
}

func walletKey(ownerID int32, ownerType domain.OwnerType) string {
	return fmt.Sprintf("%s:%d", ownerType, ownerID)
}

// GetByOwner retrieves a wallet by its owner
func (m *MockWalletRepository) GetByOwner(ownerID int32, ownerType domain.OwnerType) (*domain.Wallet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if wallet, ok := m.Wallets[walletKey(ownerID, ownerType)]; ok {
		return wallet, nil
	}
	return nil, domain.ErrWalletNotFound
}

// ApplyDelta adds delta to the wallet's available balance
func (m *MockWalletRepository) ApplyDelta(ownerID int32, ownerType domain.OwnerType, delta decimal.Decimal, reason string) (*domain.Wallet, error) {
	if m.ApplyDeltaFn != nil {
		return m.ApplyDeltaFn(ownerID, ownerType, delta, reason)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	wallet, ok := m.Wallets[walletKey(ownerID, ownerType)]
	if !ok {
		return nil, domain.ErrWalletNotFound
	}

	newBalance := wallet.AvailableBalance.Add(delta)
	if delta.IsNegative() && newBalance.IsNegative() {
		return nil, domain.ErrInsufficientBalance
	}

	now := time.Now()
	wallet.AvailableBalance = newBalance
	wallet.LastUpdatedAmount = delta
	wallet.LastUpdatedAt = &now
	m.Entries = append(m.Entries, reason)
	return wallet, nil
}

// AddWallet adds a wallet to the mock repository (helper for tests)
func (m *MockWalletRepository) AddWallet(wallet *domain.Wallet) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if wallet.ID == 0 {
		wallet.ID = m.NextID
		m.NextID++
	}
	m.Wallets[walletKey(wallet.OwnerID, wallet.OwnerType)] = wallet
}

// MockPricingRepository is a mock implementation of domain.PricingRepository
type MockPricingRepository struct {
	Schemes      []*domain.PricingScheme
	CardRates    map[string]*domain.CardRate
	ChannelRates map[string]*domain.ChannelRate
}

// NewMockPricingRepository creates a new MockPricingRepository
func NewMockPricingRepository() *MockPricingRepository {
	return &MockPricingRepository{
		CardRates:    make(map[string]*domain.CardRate),
		ChannelRates: make(map[string]*domain.ChannelRate),
	}
}

// GetActiveScheme returns the most recent scheme valid on the given date
func (m *MockPricingRepository) GetActiveScheme(ownerID int32, ownerType domain.OwnerType, productID int32, onDate time.Time) (*domain.PricingScheme, error) {
	var best *domain.PricingScheme
	for _, scheme := range m.Schemes {
		if scheme.OwnerID != ownerID || scheme.OwnerType != ownerType {
			continue
		}
		if productID != 0 && scheme.ProductID != productID {
			continue
		}
		if scheme.EffectiveFrom.After(onDate) {
			continue
		}
		if scheme.EffectiveTo != nil && scheme.EffectiveTo.Before(onDate) {
			continue
		}
		if best == nil || scheme.EffectiveFrom.After(best.EffectiveFrom) {
			best = scheme
		}
	}
	if best == nil {
		return nil, domain.ErrNoPricingScheme
	}
	return best, nil
}

// GetCardRate retrieves the rate row for a card type within a scheme
func (m *MockPricingRepository) GetCardRate(schemeID int32, cardType string) (*domain.CardRate, error) {
	if rate, ok := m.CardRates[fmt.Sprintf("%d:%s", schemeID, cardType)]; ok {
		return rate, nil
	}
	return nil, domain.ErrNoRate
}

// GetChannelRate retrieves the rate row for a channel within a scheme
func (m *MockPricingRepository) GetChannelRate(schemeID int32, channel string) (*domain.ChannelRate, error) {
	if rate, ok := m.ChannelRates[fmt.Sprintf("%d:%s", schemeID, channel)]; ok {
		return rate, nil
	}
	return nil, domain.ErrNoRate
}

// AddCardRate adds a card rate to the mock repository (helper for tests)
func (m *MockPricingRepository) AddCardRate(rate *domain.CardRate) {
	m.CardRates[fmt.Sprintf("%d:%s", rate.SchemeID, rate.CardType)] = rate
}

// AddChannelRate adds a channel rate to the mock repository (helper for tests)
func (m *MockPricingRepository) AddChannelRate(rate *domain.ChannelRate) {
	m.ChannelRates[fmt.Sprintf("%d:%s", rate.SchemeID, rate.Channel)] = rate
}

// MockMerchantRepository is a mock implementation of domain.MerchantRepository
type MockMerchantRepository struct {
	Merchants map[int32]*domain.Merchant
	Terminals map[int32][]*domain.Terminal
}

// NewMockMerchantRepository creates a new MockMerchantRepository
func NewMockMerchantRepository() *MockMerchantRepository {
	return &MockMerchantRepository{
		Merchants: make(map[int32]*domain.Merchant),
		Terminals: make(map[int32][]*domain.Terminal),
	}
}

// GetByID retrieves a merchant by ID
func (m *MockMerchantRepository) GetByID(id int32) (*domain.Merchant, error) {
	if merchant, ok := m.Merchants[id]; ok {
		return merchant, nil
	}
	return nil, domain.ErrMerchantNotFound
}

// ListByFranchise lists the merchants belonging to a franchise
func (m *MockMerchantRepository) ListByFranchise(franchiseID int32) ([]*domain.Merchant, error) {
	ids := make([]int32, 0, len(m.Merchants))
	for id := range m.Merchants {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var result []*domain.Merchant
	for _, id := range ids {
		merchant := m.Merchants[id]
		if merchant.FranchiseID != nil && *merchant.FranchiseID == franchiseID {
			result = append(result, merchant)
		}
	}
	return result, nil
}

// ListTerminals lists a merchant's terminals
func (m *MockMerchantRepository) ListTerminals(merchantID int32) ([]*domain.Terminal, error) {
	return m.Terminals[merchantID], nil
}

// ListTerminalsByProduct narrows the terminal set to one product
func (m *MockMerchantRepository) ListTerminalsByProduct(merchantID, productID int32) ([]*domain.Terminal, error) {
	var result []*domain.Terminal
	for _, t := range m.Terminals[merchantID] {
		if t.ProductID == productID {
			result = append(result, t)
		}
	}
	return result, nil
}

// AddMerchant adds a merchant to the mock repository (helper for tests)
func (m *MockMerchantRepository) AddMerchant(merchant *domain.Merchant) {
	m.Merchants[merchant.ID] = merchant
}

// AddTerminal adds a terminal to the mock repository (helper for tests)
func (m *MockMerchantRepository) AddTerminal(t *domain.Terminal) {
	m.Terminals[t.MerchantID] = append(m.Terminals[t.MerchantID], t)
}

// MockFranchiseRepository is a mock implementation of domain.FranchiseRepository
type MockFranchiseRepository struct {
	Franchises map[int32]*domain.Franchise
}

// NewMockFranchiseRepository creates a new MockFranchiseRepository
func NewMockFranchiseRepository() *MockFranchiseRepository {
	return &MockFranchiseRepository{
		Franchises: make(map[int32]*domain.Franchise),
	}
}

// GetByID retrieves a franchise by ID
func (m *MockFranchiseRepository) GetByID(id int32) (*domain.Franchise, error) {
	if franchise, ok := m.Franchises[id]; ok {
		return franchise, nil
	}
	return nil, domain.ErrFranchiseNotFound
}

// AddFranchise adds a franchise to the mock repository (helper for tests)
func (m *MockFranchiseRepository) AddFranchise(franchise *domain.Franchise) {
	m.Franchises[franchise.ID] = franchise
}
