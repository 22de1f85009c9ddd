package models

import "time"

// BundledTransfer funds attached to a cross-chain message
type BundledTransfer struct {
	Asset  string `json:"asset"`
	Amount string `json:"amount"` // decimal string
}

// CrossChainMessage wire payload exchanged between orchestrator instances.
// ID is assigned by the transport at send time and is unique per message.
// Confirmations and failure notices reference the originating message
// through RefMessageID.
type CrossChainMessage struct {
	ID            string           `json:"id"`
	Type          OperationType    `json:"type"`
	SourceChainID uint32           `json:"source_chain_id"`
	DestChainID   uint32           `json:"dest_chain_id"`
	StrategyID    string           `json:"strategy_id"`
	PoolID        string           `json:"pool_id,omitempty"`
	Asset         string           `json:"asset"`
	Amount        string           `json:"amount"`                 // principal, decimal string
	YieldAmount   string           `json:"yield_amount,omitempty"` // confirmations only
	RefMessageID  string           `json:"ref_message_id,omitempty"`
	Reason        string           `json:"reason,omitempty"` // failure notices only
	Transfer      *BundledTransfer `json:"transfer,omitempty"`
	SentAt        time.Time        `json:"sent_at"`
}
