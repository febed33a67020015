// Package memory is an in-process Store used by tests and the
// STORE_DRIVER=memory development mode. Transactions are serialized by a
// single mutex and rolled back by restoring a snapshot.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"pearlbingo/internal/models"
	"pearlbingo/internal/repositories"

	"github.com/shopspring/decimal"
)

type data struct {
	seq          uint
	users        map[uint]models.User
	wallets      map[uint]models.Wallet
	transactions map[uint]models.Transaction
	deposits     map[uint]models.DepositRequest
	gatewayTxs   map[uint]models.GatewayTransaction
	events       map[uint]models.WebhookEvent
	games        map[uint]models.Game
	cards        map[uint]models.BingoCard
}

func newData() *data {
	return &data{
		users:        map[uint]models.User{},
		wallets:      map[uint]models.Wallet{},
		transactions: map[uint]models.Transaction{},
		deposits:     map[uint]models.DepositRequest{},
		gatewayTxs:   map[uint]models.GatewayTransaction{},
		events:       map[uint]models.WebhookEvent{},
		games:        map[uint]models.Game{},
		cards:        map[uint]models.BingoCard{},
	}
}

func (d *data) next() uint {
	d.seq++
	return d.seq
}

func cloneMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (d *data) snapshot() *data {
	return &data{
		seq:          d.seq,
		users:        cloneMap(d.users),
		wallets:      cloneMap(d.wallets),
		transactions: cloneMap(d.transactions),
		deposits:     cloneMap(d.deposits),
		gatewayTxs:   cloneMap(d.gatewayTxs),
		events:       cloneMap(d.events),
		games:        cloneMap(d.games),
		cards:        cloneMap(d.cards),
	}
}

// Store implements repositories.Store in memory.
type Store struct {
	mu   *sync.Mutex
	d    **data
	inTx bool
	now  func() time.Time
}

// NewStore returns an empty Store.
func NewStore() *Store {
	d := newData()
	return &Store{mu: &sync.Mutex{}, d: &d, now: time.Now}
}

// SetClock overrides the timestamp source for created rows.
func (s *Store) SetClock(now func() time.Time) { s.now = now }

func (s *Store) lock() func() {
	if s.inTx {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

func (s *Store) state() *data { return *s.d }

func (s *Store) WithinTx(ctx context.Context, fn func(tx repositories.Store) error) error {
	if s.inTx {
		return fn(s)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snap := s.state().snapshot()
	tx := &Store{mu: s.mu, d: s.d, inTx: true, now: s.now}
	if err := fn(tx); err != nil {
		*s.d = snap
		return err
	}
	return nil
}

func (s *Store) Wallets() repositories.WalletRepository             { return walletRepo{s} }
func (s *Store) Transactions() repositories.TransactionRepository   { return transactionRepo{s} }
func (s *Store) Deposits() repositories.DepositRepository           { return depositRepo{s} }
func (s *Store) WebhookEvents() repositories.WebhookEventRepository { return eventRepo{s} }
func (s *Store) Users() repositories.UserRepository                 { return userRepo{s} }
func (s *Store) Games() repositories.GameRepository                 { return gameRepo{s} }
func (s *Store) GatewayTransactions() repositories.GatewayTransactionRepository {
	return gatewayRepo{s}
}

// wallets

type walletRepo struct{ s *Store }

func (r walletRepo) GetByUserID(_ context.Context, userID uint) (*models.Wallet, error) {
	defer r.s.lock()()
	for _, w := range r.s.state().wallets {
		if w.UserID == userID {
			return &w, nil
		}
	}
	return nil, repositories.ErrNotFound
}

func (r walletRepo) Ensure(_ context.Context, wallet *models.Wallet) error {
	defer r.s.lock()()
	d := r.s.state()
	for _, w := range d.wallets {
		if w.UserID == wallet.UserID {
			return nil
		}
	}
	wallet.ID = d.next()
	wallet.CreatedAt = r.s.now()
	wallet.UpdatedAt = wallet.CreatedAt
	d.wallets[wallet.ID] = *wallet
	return nil
}

func (r walletRepo) LockByUserIDs(_ context.Context, userIDs ...uint) ([]*models.Wallet, error) {
	defer r.s.lock()()
	want := map[uint]bool{}
	for _, id := range userIDs {
		want[id] = true
	}
	var out []*models.Wallet
	for _, w := range r.s.state().wallets {
		if want[w.UserID] {
			w := w
			out = append(out, &w)
		}
	}
	if len(out) != len(want) {
		return nil, repositories.ErrNotFound
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r walletRepo) Update(_ context.Context, wallet *models.Wallet) error {
	defer r.s.lock()()
	d := r.s.state()
	if _, ok := d.wallets[wallet.ID]; !ok {
		return repositories.ErrNotFound
	}
	wallet.UpdatedAt = r.s.now()
	d.wallets[wallet.ID] = *wallet
	return nil
}

// transactions

type transactionRepo struct{ s *Store }

func (r transactionRepo) Create(_ context.Context, tx *models.Transaction) error {
	defer r.s.lock()()
	d := r.s.state()
	for _, t := range d.transactions {
		if t.Reference == tx.Reference {
			return repositories.ErrDuplicate
		}
	}
	tx.ID = d.next()
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = r.s.now()
	}
	tx.UpdatedAt = tx.CreatedAt
	d.transactions[tx.ID] = *tx
	return nil
}

func (r transactionRepo) UpdateStatus(_ context.Context, id uint, status string) error {
	defer r.s.lock()()
	d := r.s.state()
	t, ok := d.transactions[id]
	if !ok {
		return repositories.ErrNotFound
	}
	t.Status = status
	t.UpdatedAt = r.s.now()
	d.transactions[id] = t
	return nil
}

func (r transactionRepo) List(_ context.Context, f repositories.TransactionFilter) ([]models.Transaction, int64, error) {
	defer r.s.lock()()
	types := map[models.TransactionType]bool{}
	for _, t := range f.Types {
		types[t] = true
	}
	var all []models.Transaction
	for _, t := range r.s.state().transactions {
		if t.UserID != f.UserID {
			continue
		}
		if len(types) > 0 && !types[t.Type] {
			continue
		}
		if f.From != nil && t.CreatedAt.Before(*f.From) {
			continue
		}
		if f.To != nil && !t.CreatedAt.Before(*f.To) {
			continue
		}
		all = append(all, t)
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].ID > all[j].ID
		}
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})

	total := int64(len(all))
	if f.Offset >= len(all) {
		return []models.Transaction{}, total, nil
	}
	all = all[f.Offset:]
	if f.Limit > 0 && f.Limit < len(all) {
		all = all[:f.Limit]
	}
	return all, total, nil
}

func (r transactionRepo) SumSigned(_ context.Context, userID uint) (decimal.Decimal, error) {
	defer r.s.lock()()
	total := decimal.Zero
	for _, t := range r.s.state().transactions {
		if t.UserID == userID {
			total = total.Add(t.SignedAmount())
		}
	}
	return total, nil
}

func (r transactionRepo) SumByTypes(_ context.Context, userID uint, types []models.TransactionType, from, to time.Time) (decimal.Decimal, error) {
	defer r.s.lock()()
	match := map[models.TransactionType]bool{}
	for _, t := range types {
		match[t] = true
	}
	total := decimal.Zero
	for _, t := range r.s.state().transactions {
		if t.UserID != userID || !match[t.Type] || t.Status != models.TransactionStatusCompleted {
			continue
		}
		if t.CreatedAt.Before(from) || !t.CreatedAt.Before(to) {
			continue
		}
		total = total.Add(t.Amount)
	}
	return total, nil
}

func (r transactionRepo) FindByExternalReference(_ context.Context, userID uint, txType models.TransactionType, ref string) (*models.Transaction, error) {
	defer r.s.lock()()
	for _, t := range r.s.state().transactions {
		if t.UserID == userID && t.Type == txType && t.ExternalReference == ref {
			return &t, nil
		}
	}
	return nil, repositories.ErrNotFound
}

// deposits

type depositRepo struct{ s *Store }

func (r depositRepo) Create(_ context.Context, dep *models.DepositRequest) error {
	defer r.s.lock()()
	d := r.s.state()
	dep.ID = d.next()
	dep.CreatedAt = r.s.now()
	dep.UpdatedAt = dep.CreatedAt
	d.deposits[dep.ID] = *dep
	return nil
}

func (r depositRepo) GetByID(_ context.Context, id uint) (*models.DepositRequest, error) {
	defer r.s.lock()()
	dep, ok := r.s.state().deposits[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return &dep, nil
}

func (r depositRepo) LockByID(ctx context.Context, id uint) (*models.DepositRequest, error) {
	return r.GetByID(ctx, id)
}

func (r depositRepo) Update(_ context.Context, dep *models.DepositRequest) error {
	defer r.s.lock()()
	d := r.s.state()
	if _, ok := d.deposits[dep.ID]; !ok {
		return repositories.ErrNotFound
	}
	dep.UpdatedAt = r.s.now()
	d.deposits[dep.ID] = *dep
	return nil
}

func (r depositRepo) ListExpired(_ context.Context, now time.Time, limit int) ([]models.DepositRequest, error) {
	defer r.s.lock()()
	var out []models.DepositRequest
	for _, dep := range r.s.state().deposits {
		if dep.Status == models.DepositStatusPending && !dep.ExpiresAt.After(now) {
			out = append(out, dep)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ExpiresAt.Before(out[j].ExpiresAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// gateway transactions

type gatewayRepo struct{ s *Store }

func (r gatewayRepo) Create(_ context.Context, g *models.GatewayTransaction) error {
	defer r.s.lock()()
	d := r.s.state()
	for _, existing := range d.gatewayTxs {
		if g.ExternalChargeID != "" && existing.ExternalChargeID == g.ExternalChargeID {
			return repositories.ErrDuplicate
		}
	}
	g.ID = d.next()
	g.CreatedAt = r.s.now()
	g.UpdatedAt = g.CreatedAt
	d.gatewayTxs[g.ID] = *g
	return nil
}

func (r gatewayRepo) GetByID(_ context.Context, id uint) (*models.GatewayTransaction, error) {
	defer r.s.lock()()
	g, ok := r.s.state().gatewayTxs[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return &g, nil
}

func (r gatewayRepo) GetByExternalChargeID(_ context.Context, chargeID string) (*models.GatewayTransaction, error) {
	defer r.s.lock()()
	for _, g := range r.s.state().gatewayTxs {
		if g.ExternalChargeID == chargeID {
			return &g, nil
		}
	}
	return nil, repositories.ErrNotFound
}

func (r gatewayRepo) ListByDepositRequestID(_ context.Context, depositID uint) ([]models.GatewayTransaction, error) {
	defer r.s.lock()()
	var out []models.GatewayTransaction
	for _, g := range r.s.state().gatewayTxs {
		if g.DepositRequestID == depositID {
			out = append(out, g)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r gatewayRepo) Update(_ context.Context, g *models.GatewayTransaction) error {
	defer r.s.lock()()
	d := r.s.state()
	if _, ok := d.gatewayTxs[g.ID]; !ok {
		return repositories.ErrNotFound
	}
	g.UpdatedAt = r.s.now()
	d.gatewayTxs[g.ID] = *g
	return nil
}

// webhook events

type eventRepo struct{ s *Store }

func (r eventRepo) GetByExternalID(_ context.Context, externalID string) (*models.WebhookEvent, error) {
	defer r.s.lock()()
	for _, e := range r.s.state().events {
		if e.ExternalEventID == externalID {
			return &e, nil
		}
	}
	return nil, repositories.ErrNotFound
}

func (r eventRepo) Create(_ context.Context, e *models.WebhookEvent) error {
	defer r.s.lock()()
	d := r.s.state()
	for _, existing := range d.events {
		if existing.ExternalEventID == e.ExternalEventID {
			return repositories.ErrDuplicate
		}
	}
	e.ID = d.next()
	if e.ReceivedAt.IsZero() {
		e.ReceivedAt = r.s.now()
	}
	d.events[e.ID] = *e
	return nil
}

func (r eventRepo) LockByExternalID(ctx context.Context, externalID string) (*models.WebhookEvent, error) {
	return r.GetByExternalID(ctx, externalID)
}

func (r eventRepo) Update(_ context.Context, e *models.WebhookEvent) error {
	defer r.s.lock()()
	d := r.s.state()
	if _, ok := d.events[e.ID]; !ok {
		return repositories.ErrNotFound
	}
	d.events[e.ID] = *e
	return nil
}

// users

type userRepo struct{ s *Store }

func (r userRepo) Create(_ context.Context, u *models.User) error {
	defer r.s.lock()()
	d := r.s.state()
	for _, existing := range d.users {
		if existing.Username == u.Username || existing.Email == u.Email {
			return repositories.ErrDuplicate
		}
	}
	u.ID = d.next()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = r.s.now()
	}
	u.UpdatedAt = r.s.now()
	if u.Role == "" {
		u.Role = models.RoleUser
	}
	d.users[u.ID] = *u
	return nil
}

func (r userRepo) GetByID(_ context.Context, id uint) (*models.User, error) {
	defer r.s.lock()()
	u, ok := r.s.state().users[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return &u, nil
}

func (r userRepo) GetByUsername(_ context.Context, username string) (*models.User, error) {
	defer r.s.lock()()
	for _, u := range r.s.state().users {
		if u.Username == username {
			return &u, nil
		}
	}
	return nil, repositories.ErrNotFound
}

func (r userRepo) Update(_ context.Context, u *models.User) error {
	defer r.s.lock()()
	d := r.s.state()
	if _, ok := d.users[u.ID]; !ok {
		return repositories.ErrNotFound
	}
	u.UpdatedAt = r.s.now()
	d.users[u.ID] = *u
	return nil
}

// games

type gameRepo struct{ s *Store }

func (r gameRepo) Create(_ context.Context, g *models.Game) error {
	defer r.s.lock()()
	d := r.s.state()
	g.ID = d.next()
	if g.Status == "" {
		g.Status = models.GameStatusWaiting
	}
	g.CreatedAt = r.s.now()
	g.UpdatedAt = g.CreatedAt
	d.games[g.ID] = *g
	return nil
}

func (r gameRepo) GetByID(_ context.Context, id uint) (*models.Game, error) {
	defer r.s.lock()()
	g, ok := r.s.state().games[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return &g, nil
}

func (r gameRepo) CountPlayers(_ context.Context, gameID uint) (int64, error) {
	defer r.s.lock()()
	players := map[uint]struct{}{}
	for _, c := range r.s.state().cards {
		if c.GameID == gameID {
			players[c.UserID] = struct{}{}
		}
	}
	return int64(len(players)), nil
}

func (r gameRepo) HasPlayer(_ context.Context, gameID, userID uint) (bool, error) {
	defer r.s.lock()()
	for _, c := range r.s.state().cards {
		if c.GameID == gameID && c.UserID == userID {
			return true, nil
		}
	}
	return false, nil
}

func (r gameRepo) CreateCards(_ context.Context, cards []*models.BingoCard) error {
	defer r.s.lock()()
	d := r.s.state()
	for _, c := range cards {
		c.ID = d.next()
		c.CreatedAt = r.s.now()
		d.cards[c.ID] = *c
	}
	return nil
}

func (r gameRepo) ListCards(_ context.Context, gameID, userID uint) ([]models.BingoCard, error) {
	defer r.s.lock()()
	var out []models.BingoCard
	for _, c := range r.s.state().cards {
		if c.GameID == gameID && c.UserID == userID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
