// Package pool implements the core transaction pool: the multi-indexed
// entry map (PoolMap, in poolmap.go), RBF admission policy (rbf.go),
// commit-candidate selection (scanner.go) and the TxPool façade in this
// file that owns all of it and applies aggregate accounting plus eviction
// policy (spec.md 2).
package pool

import (
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"github.com/xiaolou86/ckb/config"
	"github.com/xiaolou86/ckb/core"
	"github.com/xiaolou86/ckb/log"
	"github.com/xiaolou86/ckb/reject"
	"github.com/xiaolou86/ckb/snapshot"
	"github.com/xiaolou86/ckb/util"
)

// committedHashCacheSize bounds the committed-short-id LRU (spec.md 4.8).
const committedHashCacheSize = 100_000

// TxPool is the façade owning the pool map, the committed-hash cache, the
// optional recent-reject cache and the chain snapshot reference. All
// mutating methods require the caller to hold an exclusive lock; all
// reader methods require at least a shared one (spec.md 5) — the pool
// itself does not lock. Unlike the teacher's TxMempool (holys-copernicus),
// which embeds sync.RWMutex, the lock is left to callers so they can
// compose it with their own wider critical sections.
type TxPool struct {
	config  config.TxPoolConfig
	poolMap *PoolMap

	committedTxHashCache *lru.Cache

	totalTxSize   uint64
	totalTxCycles uint64

	snapshot snapshot.Snapshot

	recentReject *reject.Store
	expiryMs     int64
}

// New builds a TxPool bound to snapshot, opening the recent-reject cache
// if configured (spec.md pool.rs build_recent_reject).
func New(cfg config.TxPoolConfig, snap snapshot.Snapshot) *TxPool {
	cache, err := lru.New(committedHashCacheSize)
	if err != nil {
		// Only fails on a non-positive size, which committedHashCacheSize
		// never is.
		panic(err)
	}

	p := &TxPool{
		config:               cfg,
		poolMap:              NewPoolMap(cfg.MaxAncestorsCount),
		committedTxHashCache: cache,
		snapshot:             snap,
		expiryMs:             int64(cfg.ExpiryDuration() / time.Millisecond),
	}
	p.recentReject = buildRecentReject(cfg)
	return p
}

func buildRecentReject(cfg config.TxPoolConfig) *reject.Store {
	if cfg.RecentReject == "" {
		log.Warn("recent reject database is disabled")
		return nil
	}
	days := cfg.KeepRejectedTxHashesDays
	if days < 1 {
		days = 1
	}
	ttl := time.Duration(days) * 24 * time.Hour
	store, err := reject.New(cfg.RecentReject, cfg.KeepRejectedTxHashesCount, ttl)
	if err != nil {
		log.Error("failed to open recent reject database %s: %v", cfg.RecentReject, err)
		return nil
	}
	return store
}

// Config returns the pool's configuration.
func (p *TxPool) Config() config.TxPoolConfig { return p.config }

// StatusSize returns how many entries currently sit in status.
func (p *TxPool) StatusSize(status Status) int {
	return len(p.poolMap.GetByStatus(status))
}

// TotalTxSize is the sum of every entry's virtual size.
func (p *TxPool) TotalTxSize() uint64 { return p.totalTxSize }

// TotalTxCycles is the sum of every entry's verification-cycle cost.
func (p *TxPool) TotalTxCycles() uint64 { return p.totalTxCycles }

// EnableRBF reports whether the pool's configuration enables RBF admission.
func (p *TxPool) EnableRBF() bool { return p.config.EnableRBF() }

func (p *TxPool) updateStaticsForAdd(size, cycles uint64) {
	p.totalTxSize += size
	p.totalTxCycles += cycles
}

func (p *TxPool) updateStaticsForRemove(size, cycles uint64) {
	if size > p.totalTxSize {
		log.Error("total_tx_size %d overflow by sub %d", p.totalTxSize, size)
	}
	if cycles > p.totalTxCycles {
		log.Error("total_tx_cycles %d overflow by sub %d", p.totalTxCycles, cycles)
	}
	p.totalTxSize = saturatingSubU64(p.totalTxSize, size)
	p.totalTxCycles = saturatingSubU64(p.totalTxCycles, cycles)
}

// AddPending admits e into the Pending status.
func (p *TxPool) AddPending(e *Entry) (bool, error) {
	ok, err := p.poolMap.AddEntry(e, StatusPending)
	if err != nil {
		return false, err
	}
	p.updateStaticsForAdd(e.Size, e.Cycles)
	return ok, nil
}

// AddGap admits e directly into the Gap status (a transaction that is
// proposed but still uncommittable).
func (p *TxPool) AddGap(e *Entry) (bool, error) {
	ok, err := p.poolMap.AddEntry(e, StatusGap)
	if err != nil {
		return false, err
	}
	p.updateStaticsForAdd(e.Size, e.Cycles)
	return ok, nil
}

// AddProposed admits e directly into the Proposed status.
func (p *TxPool) AddProposed(e *Entry) (bool, error) {
	ok, err := p.poolMap.AddEntry(e, StatusProposed)
	if err != nil {
		return false, err
	}
	p.updateStaticsForAdd(e.Size, e.Cycles)
	return ok, nil
}

// ContainsShortID reports whether the pool holds an entry for id.
func (p *TxPool) ContainsShortID(id util.ShortID) bool {
	_, ok := p.poolMap.GetByID(id)
	return ok
}

// GetPoolEntry returns the entry for id, if present.
func (p *TxPool) GetPoolEntry(id util.ShortID) (*Entry, bool) {
	return p.poolMap.GetByID(id)
}

// GetTxWithCycles returns the transaction and cycle cost recorded for id.
func (p *TxPool) GetTxWithCycles(id util.ShortID) (*core.Transaction, uint64, bool) {
	e, ok := p.poolMap.GetByID(id)
	if !ok {
		return nil, 0, false
	}
	return e.Tx, e.Cycles, true
}

// GetTxFromPool returns the transaction for id, if it is currently in the
// pool (committed transactions are not found here; see
// GetTxFromPoolOrStore).
func (p *TxPool) GetTxFromPool(id util.ShortID) (*core.Transaction, bool) {
	e, ok := p.poolMap.GetByID(id)
	if !ok {
		return nil, false
	}
	return e.Tx, true
}

// MinReplaceFee returns the minimum fee a replacement for the entry
// currently occupying id's slot in the pool would need, or false if RBF
// is disabled.
func (p *TxPool) MinReplaceFee(id util.ShortID, newSize uint64) (util.Capacity, bool) {
	if !p.EnableRBF() {
		return 0, false
	}
	e, ok := p.poolMap.GetByID(id)
	if !ok {
		return 0, false
	}
	fee, err := minReplaceFee([]*Entry{e}, newSize, p.config.MinRBFRate)
	if err != nil {
		return 0, false
	}
	return fee, true
}

// RemoveCommittedTxs reconciles the pool against a newly committed block:
// each committed transaction's entry (if any) is removed and reported via
// OnCommitted, any pool entry sharing an input with it is evicted as a
// conflict and reported via OnReject, and — once every tx is processed —
// any detached header dependency is resolved the same way (spec.md 4.8).
func (p *TxPool) RemoveCommittedTxs(txs []*core.Transaction, detachedHeaders []util.Hash, cb Callbacks) {
	for _, tx := range txs {
		log.Debug("try remove_committed_tx %s", tx.Hash)
		p.removeCommittedTx(tx, cb)
		p.committedTxHashCache.Add(tx.ShortID(), tx.Hash)
	}
	if len(detachedHeaders) > 0 {
		for _, cr := range p.poolMap.ResolveConflictHeaderDep(detachedHeaders) {
			p.updateStaticsForRemove(cr.Entry.Size, cr.Entry.Cycles)
			cb.callReject(p, cr.Entry, cr.Reject)
		}
	}
}

func (p *TxPool) removeCommittedTx(tx *core.Transaction, cb Callbacks) {
	if e := p.poolMap.RemoveEntry(tx.ShortID()); e != nil {
		log.Debug("remove_committed_tx for %s", tx.Hash)
		p.updateStaticsForRemove(e.Size, e.Cycles)
		cb.callCommitted(p, e)
	}
	for _, cr := range p.poolMap.ResolveConflict(tx) {
		p.updateStaticsForRemove(cr.Entry.Size, cr.Entry.Cycles)
		cb.callReject(p, cr.Entry, cr.Reject)
	}
}

// RemoveExpired removes every entry whose timestamp+expiry has elapsed as
// of nowMs. Deliberately does not cascade to descendants (spec.md 9 open
// question (a)): children of an expired parent remain in the pool, losing
// their in-pool parent and gaining it back as an external reference the
// next resolve must satisfy against the snapshot.
func (p *TxPool) RemoveExpired(nowMs int64, cb Callbacks) {
	var toRemove []util.ShortID
	for _, status := range []Status{StatusPending, StatusGap, StatusProposed} {
		for _, e := range p.poolMap.GetByStatus(status) {
			if p.expiryMs+e.Timestamp <= nowMs {
				toRemove = append(toRemove, e.ShortID)
			}
		}
	}
	for _, id := range toRemove {
		e, ok := p.poolMap.GetByID(id)
		if !ok {
			continue
		}
		log.Debug("remove_expired %s timestamp(%d)", e.Tx.Hash, e.Timestamp)
		p.poolMap.RemoveEntry(id)
		p.updateStaticsForRemove(e.Size, e.Cycles)
		cb.callReject(p, e, errExpiry(e.Timestamp))
	}
}

// LimitSize evicts entries, lowest-score first within Pending, then Gap,
// then Proposed, until total_tx_size is back within max_tx_pool_size
// (spec.md 4.7).
func (p *TxPool) LimitSize(cb Callbacks) {
	for p.totalTxSize > p.config.MaxTxPoolSize {
		id, ok := p.nextEvictEntry()
		if !ok {
			return
		}
		removed := p.poolMap.RemoveEntryAndDescendants(id)
		for _, e := range removed {
			log.Debug("removed by size limit %s timestamp(%d)", e.Tx.Hash, e.Timestamp)
			p.updateStaticsForRemove(e.Size, e.Cycles)
			reason := fmt.Sprintf("the fee_rate for this transaction is: %d", e.EffectiveFeeRate())
			cb.callReject(p, e, errFull(reason))
		}
	}
}

func (p *TxPool) nextEvictEntry() (util.ShortID, bool) {
	for _, status := range []Status{StatusPending, StatusGap, StatusProposed} {
		if id, ok := p.poolMap.NextEvictEntry(status); ok {
			return id, true
		}
	}
	return util.ShortID{}, false
}

// RemoveByDetachedProposal handles a reorg detaching proposals: every id
// currently in Gap or Proposed is removed with its descendants, has its
// statistics reset, and is re-added as Pending in ancestors-first order so
// children never fail to link their parent (spec.md 4.3, 4.8, 9).
// Entries already Pending are left untouched.
func (p *TxPool) RemoveByDetachedProposal(ids []util.ShortID) {
	for _, id := range ids {
		e, ok := p.poolMap.GetByID(id)
		if !ok {
			continue
		}
		if e.Status == StatusPending {
			continue
		}
		entries := p.poolMap.RemoveEntryAndDescendants(id)
		sortByAncestorsCountAsc(entries)
		for _, entry := range entries {
			p.updateStaticsForRemove(entry.Size, entry.Cycles)
			entry.resetStatisticState()
			_, err := p.AddPending(entry)
			log.Debug("remove_by_detached_proposal from %s add_pending err=%v", entry.Tx.Hash, err)
		}
	}
}

func sortByAncestorsCountAsc(entries []*Entry) {
	for i := 1; i < len(entries); i++ {
		for j := i; j > 0 && entries[j-1].AncestorsCount > entries[j].AncestorsCount; j-- {
			entries[j-1], entries[j] = entries[j], entries[j-1]
		}
	}
}

// RemoveTx removes id (and its descendants, if any) unconditionally, for
// explicit caller-driven removal outside the reorg/eviction/expiry paths.
func (p *TxPool) RemoveTx(id util.ShortID) bool {
	entries := p.poolMap.RemoveEntryAndDescendants(id)
	if len(entries) == 0 {
		return false
	}
	for _, e := range entries {
		p.updateStaticsForRemove(e.Size, e.Cycles)
	}
	return true
}

// GapRTX transitions id from Pending to Gap. Returns Duplicated if already
// Gap, Malformed if id is unknown or not Pending (spec.md 4.3).
func (p *TxPool) GapRTX(id util.ShortID) error {
	e, ok := p.poolMap.GetByID(id)
	if !ok {
		return errMalformed("invalid short_id")
	}
	if e.Status == StatusGap {
		return errDuplicated(e.Tx.Hash)
	}
	if e.Status != StatusPending {
		return errMalformed(fmt.Sprintf("gap_rtx: %s is %s, not Pending", e.Tx.Hash, e.Status))
	}
	log.Debug("gap_rtx: %s => %s", e.Tx.Hash, id)
	p.poolMap.SetEntry(id, StatusGap)
	return nil
}

// ProposedRTX transitions id to Proposed. Returns Duplicated if already
// Proposed, Malformed if id is unknown (spec.md 4.3).
func (p *TxPool) ProposedRTX(id util.ShortID) error {
	e, ok := p.poolMap.GetByID(id)
	if !ok {
		return errMalformed("invalid short_id")
	}
	if e.Status == StatusProposed {
		return errDuplicated(e.Tx.Hash)
	}
	log.Debug("proposed_rtx: %s => %s", e.Tx.Hash, id)
	p.poolMap.SetEntry(id, StatusProposed)
	return nil
}

// GetProposals returns up to limit Pending short ids not present in
// exclusion — candidates for the next block's proposal section.
func (p *TxPool) GetProposals(limit int, exclusion map[util.ShortID]struct{}) map[util.ShortID]struct{} {
	out := make(map[util.ShortID]struct{}, limit)
	p.poolMap.FillProposals(limit, exclusion, out)
	return out
}

// PackageProposals wraps GetProposals, additionally excluding the
// proposals already claimed by the given uncle blocks (spec.md 6,
// SPEC_FULL 6 package_proposals).
func (p *TxPool) PackageProposals(limit int, uncleProposals map[util.ShortID]struct{}) map[util.ShortID]struct{} {
	return p.GetProposals(limit, uncleProposals)
}

// GetTxFromPoolOrStore resolves id against the live pool first, falling
// back to the committed-hash cache plus the chain snapshot (SPEC_FULL 6).
func (p *TxPool) GetTxFromPoolOrStore(id util.ShortID) (*core.Transaction, bool) {
	if tx, ok := p.GetTxFromPool(id); ok {
		return tx, true
	}
	v, ok := p.committedTxHashCache.Peek(id)
	if !ok {
		return nil, false
	}
	hash := v.(util.Hash)
	tx, _, found := p.snapshot.GetTransaction(hash)
	return tx, found
}

// TxPoolIDs lists the transaction hashes of both actionable buckets (spec.md 6).
type TxPoolIDs struct {
	Pending  []util.Hash
	Proposed []util.Hash
}

// GetIDs returns every transaction hash currently pending (Pending+Gap,
// score order) or proposed (score order).
func (p *TxPool) GetIDs() TxPoolIDs {
	var ids TxPoolIDs
	for _, e := range p.poolMap.ScoreSortedIterByStatuses([]Status{StatusPending, StatusGap}) {
		ids.Pending = append(ids.Pending, e.Tx.Hash)
	}
	for _, e := range p.poolMap.ScoreSortedIterByStatuses([]Status{StatusProposed}) {
		ids.Proposed = append(ids.Proposed, e.Tx.Hash)
	}
	return ids
}

// TxPoolEntryInfo is the detailed per-transaction view (spec.md 6).
type TxPoolEntryInfo struct {
	Pending  map[util.Hash]Info
	Proposed map[util.Hash]Info
}

// GetAllEntryInfo returns Info for every pooled transaction, split the
// same way GetIDs is.
func (p *TxPool) GetAllEntryInfo() TxPoolEntryInfo {
	info := TxPoolEntryInfo{Pending: make(map[util.Hash]Info), Proposed: make(map[util.Hash]Info)}
	for _, e := range p.poolMap.ScoreSortedIterByStatuses([]Status{StatusPending, StatusGap}) {
		info.Pending[e.Tx.Hash] = e.ToInfo()
	}
	for _, e := range p.poolMap.ScoreSortedIterByStatuses([]Status{StatusProposed}) {
		info.Proposed[e.Tx.Hash] = e.ToInfo()
	}
	return info
}

// DrainAllTransactions empties the pool, returning every contained
// transaction: Proposed entries first (selected via the commit scanner,
// respecting ancestor order and the pool's current aggregate limits as
// the drain ceiling), then the remaining Pending and Gap entries appended
// as-is (SPEC_FULL 6, grounded on pool.rs drain_all_transactions).
func (p *TxPool) DrainAllTransactions() []*core.Transaction {
	scanner := NewCommitTxsScanner(p.poolMap)
	selected, _, _ := scanner.TxsToCommit(p.totalTxSize, p.totalTxCycles)

	var txs []*core.Transaction
	for _, e := range selected {
		txs = append(txs, e.Tx)
	}
	for _, e := range p.poolMap.GetByStatus(StatusPending) {
		txs = append(txs, e.Tx)
	}
	for _, e := range p.poolMap.GetByStatus(StatusGap) {
		txs = append(txs, e.Tx)
	}

	p.totalTxSize = 0
	p.totalTxCycles = 0
	p.poolMap.Clear()
	return txs
}

// Clear drops every entry and index, replaces the snapshot reference, and
// resets the committed-hash cache and aggregates (spec.md 4.8).
func (p *TxPool) Clear(snap snapshot.Snapshot) {
	p.poolMap.Clear()
	p.snapshot = snap
	cache, err := lru.New(committedHashCacheSize)
	if err != nil {
		panic(err)
	}
	p.committedTxHashCache = cache
	p.totalTxSize = 0
	p.totalTxCycles = 0
}

// PackageTxs runs the commit scanner and logs a summary when anything was
// selected (spec.md 4.4, 6).
func (p *TxPool) PackageTxs(maxBlockCycles, txsSizeLimit uint64) ([]*Entry, uint64, uint64) {
	entries, size, cycles := NewCommitTxsScanner(p.poolMap).TxsToCommit(txsSizeLimit, maxBlockCycles)
	if len(entries) > 0 {
		log.Info("[get_block_template] candidate txs count: %d, size: %d/%d, cycles: %d/%d",
			len(entries), size, txsSizeLimit, cycles, maxBlockCycles)
	}
	return entries, size, cycles
}

// ResolveTxFromPool resolves tx against the pool's unspent outputs
// overlaid on the chain snapshot (spec.md 4.6). When rbf is true, outputs
// consumed by potential conflict entries remain visible so the resolver
// does not spuriously fail on missing inputs while a replacement is being
// evaluated.
func (p *TxPool) ResolveTxFromPool(tx *core.Transaction, rbf bool) (*snapshot.ResolvedTransaction, error) {
	provider := snapshot.NewOverlayCellProvider(newPoolCell(p.poolMap, rbf), p.snapshot)
	rtx, err := snapshot.ResolveTransaction(tx, provider)
	if err != nil {
		return nil, errResolve(err)
	}
	return rtx, nil
}

// CheckRTXFromPool re-validates that rtx's resolved inputs are still live
// against the current pool and snapshot (spec.md 4.6).
func (p *TxPool) CheckRTXFromPool(rtx *snapshot.ResolvedTransaction) error {
	provider := snapshot.NewOverlayCellProvider(newPoolCell(p.poolMap, false), p.snapshot)
	for _, in := range rtx.Transaction.Inputs {
		if cell, status := provider.GetCell(in.PreviousOutput); status != snapshot.CellLive || cell == nil {
			return errResolve(&snapshot.ResolveError{OutPoint: in.PreviousOutput, Reason: "no longer live"})
		}
	}
	return nil
}
