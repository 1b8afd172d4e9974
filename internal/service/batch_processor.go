package service

import (
	"context"
	"sync"
	"time"

	"github.com/korepay/settlement-backend/internal/domain"
	"github.com/korepay/settlement-backend/internal/websocket"
	"github.com/rs/zerolog"
)

// BatchProcessor drives settlement batches asynchronously. Process and Resume
// transition the batch and enqueue it; a fixed pool of workers settles
// candidates one unit of work at a time. All progress lives in the database,
// so polling and resume survive a restart.
type BatchProcessor struct {
	batchRepo      domain.SettlementBatchRepository
	candidateRepo  domain.SettlementCandidateRepository
	txRepo         domain.VendorTransactionRepository
	pricingService *PricingService
	eventPublisher websocket.EventPublisher
	logger         zerolog.Logger

	tasks    chan processTask
	workers  int
	stopCh   chan struct{}
	doneWg   sync.WaitGroup
	mu       sync.Mutex
	inFlight map[int32]struct{}
	running  bool
}

type processTask struct {
	batchID int32
}

// BatchProcessorConfig holds tuning knobs for the processor
type BatchProcessorConfig struct {
	Workers   int // Number of concurrent batch workers
	QueueSize int // Buffered task queue capacity
}

// DefaultBatchProcessorConfig returns sensible defaults
func DefaultBatchProcessorConfig() BatchProcessorConfig {
	return BatchProcessorConfig{
		Workers:   2,
		QueueSize: 64,
	}
}

// NewBatchProcessor creates a new BatchProcessor
func NewBatchProcessor(
	batchRepo domain.SettlementBatchRepository,
	candidateRepo domain.SettlementCandidateRepository,
	txRepo domain.VendorTransactionRepository,
	pricingService *PricingService,
	logger zerolog.Logger,
	config BatchProcessorConfig,
) *BatchProcessor {
	if config.Workers <= 0 {
		config.Workers = DefaultBatchProcessorConfig().Workers
	}
	if config.QueueSize <= 0 {
		config.QueueSize = DefaultBatchProcessorConfig().QueueSize
	}

	return &BatchProcessor{
		batchRepo:      batchRepo,
		candidateRepo:  candidateRepo,
		txRepo:         txRepo,
		pricingService: pricingService,
		logger:         logger.With().Str("component", "batch_processor").Logger(),
		tasks:          make(chan processTask, config.QueueSize),
		workers:        config.Workers,
		stopCh:         make(chan struct{}),
		inFlight:       make(map[int32]struct{}),
	}
}

// SetEventPublisher sets the event publisher for real-time updates
func (p *BatchProcessor) SetEventPublisher(publisher websocket.EventPublisher) {
	p.eventPublisher = publisher
}

func (p *BatchProcessor) publishEvent(batch *domain.SettlementBatch, event websocket.Event) {
	if p.eventPublisher != nil {
		p.eventPublisher.Publish(websocket.OwnerKey(string(batch.OwnerType), batch.OwnerID), event)
	}
}

// Start launches the worker pool
func (p *BatchProcessor) Start(ctx context.Context) {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return
	}
	p.running = true
	p.mu.Unlock()

	p.logger.Info().Int("workers", p.workers).Msg("Starting batch processor")

	for i := 0; i < p.workers; i++ {
		p.doneWg.Add(1)
		go p.run(ctx)
	}
}

// Stop drains the workers. In-flight batches stay PROCESSING and are
// recovered through Resume after restart.
func (p *BatchProcessor) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	p.mu.Unlock()

	p.logger.Info().Msg("Stopping batch processor")
	close(p.stopCh)
	p.doneWg.Wait()
	p.logger.Info().Msg("Batch processor stopped")
}

// IsRunning reports whether the worker pool is running
func (p *BatchProcessor) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// Process transitions an OPEN batch to PROCESSING and enqueues it. The
// conditional status update rejects a concurrent double-run of the same batch.
func (p *BatchProcessor) Process(batchID int32) error {
	if err := p.markInFlight(batchID); err != nil {
		return err
	}

	if err := p.batchRepo.UpdateStatus(batchID, domain.BatchStatusOpen, domain.BatchStatusProcessing); err != nil {
		p.clearInFlight(batchID)
		if err == domain.ErrBatchStatusConflict {
			return p.statusConflict(batchID)
		}
		return err
	}

	if err := p.enqueue(batchID); err != nil {
		// Roll the status back so the batch is not stranded in PROCESSING.
		if revertErr := p.batchRepo.UpdateStatus(batchID, domain.BatchStatusProcessing, domain.BatchStatusOpen); revertErr != nil {
			p.logger.Error().Err(revertErr).Int32("batch_id", batchID).Msg("Failed to revert batch status after enqueue failure")
		}
		return err
	}

	if batch, err := p.batchRepo.GetByID(batchID); err == nil {
		p.publishEvent(batch, websocket.BatchProcessing(batch))
	}
	return nil
}

// Resume resets FAILED candidates to SELECTED and re-enqueues the batch.
// Batches in FAILED status resume normally; a batch stranded in PROCESSING
// (crash or restart) is also accepted, since settled candidates are skipped.
// Safe to call repeatedly.
func (p *BatchProcessor) Resume(batchID int32) error {
	if err := p.markInFlight(batchID); err != nil {
		return err
	}

	batch, err := p.batchRepo.GetByID(batchID)
	if err != nil {
		p.clearInFlight(batchID)
		return err
	}

	switch batch.Status {
	case domain.BatchStatusFailed:
		if err := p.batchRepo.UpdateStatus(batchID, domain.BatchStatusFailed, domain.BatchStatusProcessing); err != nil {
			p.clearInFlight(batchID)
			if err == domain.ErrBatchStatusConflict {
				return p.statusConflict(batchID)
			}
			return err
		}
	case domain.BatchStatusProcessing:
		// Stranded by a crash; no transition needed.
	default:
		p.clearInFlight(batchID)
		return domain.ErrBatchNotResumable
	}

	reset, err := p.candidateRepo.ResetFailed(batchID)
	if err != nil {
		p.clearInFlight(batchID)
		return err
	}
	p.logger.Info().Int32("batch_id", batchID).Int64("reset", reset).Msg("Resuming settlement batch")

	if err := p.enqueue(batchID); err != nil {
		// Roll the status back so the batch stays FAILED and plainly resumable.
		if batch.Status == domain.BatchStatusFailed {
			if revertErr := p.batchRepo.UpdateStatus(batchID, domain.BatchStatusProcessing, domain.BatchStatusFailed); revertErr != nil {
				p.logger.Error().Err(revertErr).Int32("batch_id", batchID).Msg("Failed to revert batch status after enqueue failure")
			}
		}
		return err
	}

	p.publishEvent(batch, websocket.BatchResuming(batch))
	return nil
}

func (p *BatchProcessor) markInFlight(batchID int32) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.inFlight[batchID]; ok {
		return domain.ErrBatchAlreadyProcessing
	}
	p.inFlight[batchID] = struct{}{}
	return nil
}

func (p *BatchProcessor) clearInFlight(batchID int32) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.inFlight, batchID)
}

func (p *BatchProcessor) enqueue(batchID int32) error {
	select {
	case p.tasks <- processTask{batchID: batchID}:
		return nil
	default:
		p.clearInFlight(batchID)
		return domain.ErrQueueFull
	}
}

func (p *BatchProcessor) statusConflict(batchID int32) error {
	batch, err := p.batchRepo.GetByID(batchID)
	if err != nil {
		return err
	}
	if batch.Status == domain.BatchStatusProcessing {
		return domain.ErrBatchAlreadyProcessing
	}
	return domain.ErrBatchNotOpen
}

func (p *BatchProcessor) run(ctx context.Context) {
	defer p.doneWg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.stopCh:
			return
		case task := <-p.tasks:
			p.runBatch(ctx, task.batchID)
		}
	}
}

// runBatch settles the batch's SELECTED candidates in id order, each in its
// own unit of work, then recomputes totals and sets the final status.
func (p *BatchProcessor) runBatch(ctx context.Context, batchID int32) {
	defer p.clearInFlight(batchID)

	startTime := time.Now()

	batch, err := p.batchRepo.GetByID(batchID)
	if err != nil {
		p.logger.Error().Err(err).Int32("batch_id", batchID).Msg("Failed to load batch")
		return
	}

	candidates, err := p.candidateRepo.ListSelected(batchID)
	if err != nil {
		p.logger.Error().Err(err).Int32("batch_id", batchID).Msg("Failed to list candidates")
		return
	}

	transactions, err := p.loadTransactions(candidates)
	if err != nil {
		p.logger.Error().Err(err).Int32("batch_id", batchID).Msg("Failed to load candidate transactions")
		return
	}

	settled := 0
	failed := 0
	for _, candidate := range candidates {
		select {
		case <-ctx.Done():
			// Leave the batch PROCESSING; Resume picks up where we stopped.
			p.logger.Warn().Int32("batch_id", batchID).Msg("Context cancelled mid-batch")
			return
		case <-p.stopCh:
			p.logger.Warn().Int32("batch_id", batchID).Msg("Stop signal mid-batch")
			return
		default:
		}

		if err := p.settleCandidate(batch, candidate, transactions[candidate.TransactionID]); err != nil {
			failed++
			if markErr := p.candidateRepo.MarkFailed(candidate.ID, err.Error()); markErr != nil {
				p.logger.Error().Err(markErr).Int32("candidate_id", candidate.ID).Msg("Failed to record candidate failure")
			}
			p.publishEvent(batch, websocket.CandidateFailed(candidate))
			p.logger.Warn().
				Err(err).
				Int32("batch_id", batchID).
				Int32("candidate_id", candidate.ID).
				Int32("transaction_id", candidate.TransactionID).
				Msg("Candidate settlement failed")
			continue
		}
		settled++
		p.publishEvent(batch, websocket.CandidateSettled(candidate))
	}

	p.finishBatch(batch, startTime, settled, failed)
}

// settleCandidate performs steps a-d of the per-candidate unit of work: fee
// resolution up front, then the conditional settled flip, wallet credit and
// candidate update atomically in the repository.
func (p *BatchProcessor) settleCandidate(batch *domain.SettlementBatch, candidate *domain.SettlementCandidate, txn *domain.VendorTransaction) error {
	if txn == nil {
		return domain.ErrTransactionNotFound
	}
	if txn.Settled {
		return domain.ErrAlreadySettled
	}

	var productID int32
	if batch.ProductID != nil {
		productID = *batch.ProductID
	}

	fee, err := p.pricingService.ResolveFee(batch.OwnerID, batch.OwnerType, productID, txn.CardType, txn.Channel, candidate.Amount, txn.TransactedAt)
	if err != nil {
		return err
	}

	net := candidate.Amount.Sub(fee)
	now := time.Now().UTC()

	err = p.candidateRepo.Settle(domain.SettlementExecution{
		CandidateID:   candidate.ID,
		BatchID:       batch.ID,
		TransactionID: candidate.TransactionID,
		OwnerID:       batch.OwnerID,
		OwnerType:     batch.OwnerType,
		Fee:           fee,
		Net:           net,
		SettledAt:     now,
	})
	if err != nil {
		return err
	}

	candidate.Fee = fee
	candidate.Net = net
	candidate.Status = domain.CandidateStatusSettled
	candidate.SettledAt = &now
	return nil
}

func (p *BatchProcessor) loadTransactions(candidates []*domain.SettlementCandidate) (map[int32]*domain.VendorTransaction, error) {
	if len(candidates) == 0 {
		return nil, nil
	}

	ids := make([]int32, len(candidates))
	for i, c := range candidates {
		ids[i] = c.TransactionID
	}

	transactions, err := p.txRepo.GetByIDs(ids)
	if err != nil {
		return nil, err
	}

	byID := make(map[int32]*domain.VendorTransaction, len(transactions))
	for _, txn := range transactions {
		byID[txn.ID] = txn
	}
	return byID, nil
}

func (p *BatchProcessor) finishBatch(batch *domain.SettlementBatch, startTime time.Time, settled, failed int) {
	totals, err := p.candidateRepo.TotalsFromSettled(batch.ID)
	if err != nil {
		p.logger.Error().Err(err).Int32("batch_id", batch.ID).Msg("Failed to recompute totals")
		return
	}
	if err := p.batchRepo.UpdateTotals(batch.ID, *totals); err != nil {
		p.logger.Error().Err(err).Int32("batch_id", batch.ID).Msg("Failed to persist totals")
		return
	}

	progress, err := p.candidateRepo.Progress(batch.ID)
	if err != nil {
		p.logger.Error().Err(err).Int32("batch_id", batch.ID).Msg("Failed to read progress")
		return
	}

	// FAILED here means "needs resume", not terminal ruin: settled candidates
	// stay settled and only the failed remainder is retried.
	final := domain.BatchStatusCompleted
	if progress.Failed > 0 || progress.Pending > 0 {
		final = domain.BatchStatusFailed
	}
	if err := p.batchRepo.UpdateStatus(batch.ID, domain.BatchStatusProcessing, final); err != nil {
		p.logger.Error().Err(err).Int32("batch_id", batch.ID).Msg("Failed to set final status")
		return
	}

	if refreshed, err := p.batchRepo.GetByID(batch.ID); err == nil {
		batch = refreshed
	}
	if final == domain.BatchStatusCompleted {
		p.publishEvent(batch, websocket.BatchCompleted(batch))
	} else {
		p.publishEvent(batch, websocket.BatchFailed(batch))
	}

	p.logger.Info().
		Int32("batch_id", batch.ID).
		Int("settled", settled).
		Int("failed", failed).
		Str("status", string(final)).
		Dur("elapsed", time.Since(startTime)).
		Msg("Finished settlement batch")
}
