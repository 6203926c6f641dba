package notify

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/wkamthorn/campuswallet/internal/logger"
)

// Channel the accounts trigger publishes balance updates to
const pgChannel = "account_changes"

const reconnectDelay = time.Second

// AccountChange is one committed balance update. Postgres delivers
// notifications on commit only, so subscribers never observe an
// intermediate state.
type AccountChange struct {
	AccountID uuid.UUID       `json:"id"`
	Balance   decimal.Decimal `json:"balance"`
}

// Broker fans account changes out to per-account subscribers.
// Delivery is best effort: a subscriber that is not keeping up loses
// events rather than blocking the feed.
type Broker struct {
	mu   sync.RWMutex
	subs map[uuid.UUID]map[chan AccountChange]struct{}
}

func NewBroker() *Broker {
	return &Broker{
		subs: make(map[uuid.UUID]map[chan AccountChange]struct{}),
	}
}

// Subscribe to changes of one account. Call cancel when done,
// afterwards the channel is closed and must not be read as live data.
func (b *Broker) Subscribe(accountID uuid.UUID) (<-chan AccountChange, func()) {
	ch := make(chan AccountChange, 8)

	b.mu.Lock()
	if b.subs[accountID] == nil {
		b.subs[accountID] = make(map[chan AccountChange]struct{})
	}
	b.subs[accountID][ch] = struct{}{}
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()

		if _, ok := b.subs[accountID][ch]; !ok {
			return
		}
		delete(b.subs[accountID], ch)
		if len(b.subs[accountID]) == 0 {
			delete(b.subs, accountID)
		}
		close(ch)
	}

	return ch, cancel
}

func (b *Broker) Publish(change AccountChange) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for ch := range b.subs[change.AccountID] {
		select {
		case ch <- change:
		default:
		}
	}
}

// Listener holds one pool connection on LISTEN and feeds the broker.
type Listener struct {
	pool   *pgxpool.Pool
	broker *Broker
	logger logger.Logger
}

func NewListener(pool *pgxpool.Pool, broker *Broker, l logger.Logger) *Listener {
	return &Listener{
		pool:   pool,
		broker: broker,
		logger: l,
	}
}

// Run blocks until ctx is cancelled, reconnecting after any
// connection failure.
func (l *Listener) Run(ctx context.Context) error {
	for {
		err := l.listen(ctx)

		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		l.logger.Warn("change feed connection lost, reconnecting", "error", err)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(reconnectDelay):
		}
	}
}

func (l *Listener) listen(ctx context.Context) error {
	poolConn, err := l.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer poolConn.Release()

	conn := poolConn.Conn()
	if _, err := conn.Exec(ctx, "LISTEN "+pgChannel); err != nil {
		return err
	}

	for {
		notification, err := conn.WaitForNotification(ctx)
		if err != nil {
			return err
		}

		var change AccountChange
		if err := json.Unmarshal([]byte(notification.Payload), &change); err != nil {
			l.logger.Error("malformed change feed payload", "payload", notification.Payload, "error", err)
			continue
		}

		l.broker.Publish(change)
	}
}
