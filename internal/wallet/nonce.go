package wallet

import (
	"context"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

type NonceSource interface {
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
}

// NonceManager hands out sequential nonces for one account and serializes
// submissions. A failed submission resyncs from the pending nonce.
type NonceManager struct {
	mu      sync.Mutex
	source  NonceSource
	account common.Address
	next    uint64
	synced  bool
	log     *zap.Logger
}

func NewNonceManager(source NonceSource, account common.Address, log *zap.Logger) *NonceManager {
	if log == nil {
		log = zap.NewNop()
	}
	return &NonceManager{source: source, account: account, log: log}
}

// Sync seeds the next nonce from the chain's pending nonce.
func (n *NonceManager) Sync(ctx context.Context) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.syncLocked(ctx)
}

func (n *NonceManager) syncLocked(ctx context.Context) error {
	nonce, err := n.source.PendingNonceAt(ctx, n.account)
	if err != nil {
		n.synced = false
		return fmt.Errorf("pending nonce for %s: %w", n.account.Hex(), err)
	}
	n.next = nonce
	n.synced = true
	return nil
}

// Use calls send with the next nonce while holding the lock. The nonce is
// consumed only when send succeeds.
func (n *NonceManager) Use(ctx context.Context, send func(nonce uint64) error) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if !n.synced {
		if err := n.syncLocked(ctx); err != nil {
			return err
		}
	}
	nonce := n.next
	if err := send(nonce); err != nil {
		if syncErr := n.syncLocked(ctx); syncErr != nil {
			n.log.Warn("nonce resync failed", zap.Uint64("nonce", nonce), zap.Error(syncErr))
		}
		return err
	}
	n.next = nonce + 1
	return nil
}

// Next reports the nonce the next submission would use.
func (n *NonceManager) Next() (uint64, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.next, n.synced
}
