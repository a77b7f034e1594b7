package monitor

import (
	"go.uber.org/atomic"
)

type SyncErrors struct {
	Build                  atomic.Uint64 `json:"build"`
	Update                 atomic.Uint64 `json:"update"`
	Merge                  atomic.Uint64 `json:"merge"`
	ChainInconsistency     atomic.Uint64 `json:"chain_inconsistency"`
	ReferentialConsistency atomic.Uint64 `json:"referential_consistency"`
	StoreLoad              atomic.Uint64 `json:"store_load"`
	StoreAppend            atomic.Uint64 `json:"store_append"`
	Shutdown               atomic.Uint64 `json:"shutdown"`
}

type SyncState struct {
	StartTimestamp      atomic.Int64  `json:"start_timestamp"`
	UpForSeconds        atomic.Uint64 `json:"up_for_seconds"`
	LastUpdateTimestamp atomic.Int64  `json:"last_update_timestamp"`

	SessionsStarted  atomic.Uint64 `json:"sessions_started"`
	SessionsFinished atomic.Uint64 `json:"sessions_finished"`
	UpdatesApplied   atomic.Uint64 `json:"updates_applied"`
	TxsApplied       atomic.Uint64 `json:"txs_applied"`
	ChangesetsSaved  atomic.Uint64 `json:"changesets_saved"`

	TipHeight                       atomic.Int64   `json:"tip_height"`
	AverageBlocksProcessedPerMinute atomic.Float64 `json:"average_blocks_processed_per_minute"`

	// Satoshis
	ConfirmedBalance atomic.Int64 `json:"confirmed_balance"`
	PendingBalance   atomic.Int64 `json:"pending_balance"`
	ImmatureBalance  atomic.Int64 `json:"immature_balance"`
}

type PublisherErrors struct {
	Publish           atomic.Uint64 `json:"publish"`
	PersistentFailure atomic.Uint64 `json:"persistent_failure"`
}

type PublisherState struct {
	MessagesPublished atomic.Uint64 `json:"messages_published"`
}

type Report struct {
	Sync struct {
		State  SyncState  `json:"state"`
		Errors SyncErrors `json:"errors"`
	} `json:"sync"`

	Publisher struct {
		State  PublisherState  `json:"state"`
		Errors PublisherErrors `json:"errors"`
	} `json:"publisher"`
}
