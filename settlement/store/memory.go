// Package store provides an in-memory Store implementation for tests/dev.
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/driveway/settlement-engine/settlement"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu            sync.RWMutex
	bookings      map[settlement.BookingID]settlement.Booking
	hosts         map[settlement.HostID]settlement.RentalHost
	payouts       map[settlement.PayoutID]settlement.RentalPayout
	payoutBooking map[settlement.BookingID]settlement.PayoutID
	audit         []settlement.AuditEntry
}

func NewMemory() *Memory {
	return &Memory{
		bookings:      make(map[settlement.BookingID]settlement.Booking),
		hosts:         make(map[settlement.HostID]settlement.RentalHost),
		payouts:       make(map[settlement.PayoutID]settlement.RentalPayout),
		payoutBooking: make(map[settlement.BookingID]settlement.PayoutID),
	}
}

// =============================================================================
// SEED HELPERS (tests and demo fixtures)
// =============================================================================

func (m *Memory) PutBooking(b settlement.Booking) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bookings[b.ID] = b
}

func (m *Memory) PutHost(h settlement.RentalHost) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hosts[h.ID] = h
}

func (m *Memory) GetBooking(id settlement.BookingID) (settlement.Booking, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.bookings[id]
	return b, ok
}

func (m *Memory) ListPayouts() []settlement.RentalPayout {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]settlement.RentalPayout, 0, len(m.payouts))
	for _, p := range m.payouts {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (m *Memory) AuditEntries() []settlement.AuditEntry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]settlement.AuditEntry, len(m.audit))
	copy(out, m.audit)
	return out
}

// =============================================================================
// BOOKING STORE
// =============================================================================

func (m *Memory) QueryBookings(_ context.Context, filter settlement.BookingFilter, skip, take int) ([]settlement.Booking, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var matched []settlement.Booking
	for _, b := range m.bookings {
		if matchesFilter(b, filter) {
			matched = append(matched, b)
		}
	}

	// Deterministic pagination: trip end, then ID.
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].TripEnd.Equal(matched[j].TripEnd) {
			return matched[i].TripEnd.Before(matched[j].TripEnd)
		}
		return matched[i].ID < matched[j].ID
	})

	if skip >= len(matched) {
		return nil, nil
	}
	matched = matched[skip:]
	if take > 0 && take < len(matched) {
		matched = matched[:take]
	}

	out := make([]settlement.Booking, len(matched))
	copy(out, matched)
	return out, nil
}

func matchesFilter(b settlement.Booking, f settlement.BookingFilter) bool {
	if f.Status != nil && b.Status != *f.Status {
		return false
	}
	if f.PaymentStatus != nil && b.PaymentStatus != *f.PaymentStatus {
		return false
	}
	if f.HostID != nil && b.HostID != *f.HostID {
		return false
	}
	if f.StartDate != nil && b.TripEnd.Before(*f.StartDate) {
		return false
	}
	if f.EndDate != nil && b.TripEnd.After(*f.EndDate) {
		return false
	}
	return true
}

func (m *Memory) UpdateBookingFinancials(_ context.Context, id settlement.BookingID, fields settlement.BookingFinancialFields) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.bookings[id]
	if !ok {
		return settlement.ErrBookingNotFound
	}
	b.ServiceFee = fields.ServiceFee
	b.Taxes = fields.Taxes
	b.TotalAmount = fields.TotalAmount
	m.bookings[id] = b
	return nil
}

// =============================================================================
// HOST STORE
// =============================================================================

func (m *Memory) GetHost(_ context.Context, id settlement.HostID) (*settlement.RentalHost, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	h, ok := m.hosts[id]
	if !ok {
		return nil, settlement.ErrHostNotFound
	}
	copied := h
	return &copied, nil
}

func (m *Memory) GetHostFleetSize(_ context.Context, id settlement.HostID) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	h, ok := m.hosts[id]
	if !ok {
		return 0, settlement.ErrHostNotFound
	}
	return h.FleetSize, nil
}

func (m *Memory) IncrementHostPayoutCounters(_ context.Context, id settlement.HostID, delta settlement.CounterDelta) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	h, ok := m.hosts[id]
	if !ok {
		return settlement.ErrHostNotFound
	}
	h.TotalPayoutsAmount = h.TotalPayoutsAmount.Add(delta.Amount)
	h.TotalPayoutsCount += delta.Count
	h.TotalTrips += delta.Trips
	m.hosts[id] = h
	return nil
}

func (m *Memory) OverwriteHostPayoutCounters(_ context.Context, id settlement.HostID, totals settlement.CounterTotals) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	h, ok := m.hosts[id]
	if !ok {
		return settlement.ErrHostNotFound
	}
	h.TotalPayoutsAmount = totals.Amount
	h.TotalPayoutsCount = totals.Count
	if totals.Trips != nil {
		h.TotalTrips = *totals.Trips
	}
	m.hosts[id] = h
	return nil
}

func (m *Memory) ListHostIDs(_ context.Context) ([]settlement.HostID, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := make([]settlement.HostID, 0, len(m.hosts))
	for id := range m.hosts {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

// =============================================================================
// PAYOUT STORE
// =============================================================================

func (m *Memory) PayoutExistsForBooking(_ context.Context, bookingID settlement.BookingID) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.payoutBooking[bookingID]
	return ok, nil
}

func (m *Memory) InsertPayout(_ context.Context, payout settlement.RentalPayout) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.payoutBooking[payout.BookingID]; ok {
		return &settlement.DuplicatePayoutError{BookingID: payout.BookingID, PayoutID: existing}
	}
	m.payouts[payout.ID] = payout
	m.payoutBooking[payout.BookingID] = payout.ID
	return nil
}

func (m *Memory) GetPayoutByBooking(_ context.Context, bookingID settlement.BookingID) (*settlement.RentalPayout, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.payoutBooking[bookingID]
	if !ok {
		return nil, settlement.ErrPayoutNotFound
	}
	p := m.payouts[id]
	return &p, nil
}

func (m *Memory) UpdatePayout(_ context.Context, id settlement.PayoutID, update settlement.PayoutUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.payouts[id]
	if !ok {
		return settlement.ErrPayoutNotFound
	}
	p.GrossEarnings = update.GrossEarnings
	p.PlatformFee = update.PlatformFee
	p.ProcessingFee = update.ProcessingFee
	p.NetPayout = update.NetPayout
	p.Amount = update.Amount
	m.payouts[id] = p
	return nil
}

func (m *Memory) GroupPayoutsByHost(_ context.Context, statuses []settlement.PayoutStatus) ([]settlement.HostPayoutGroup, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	wanted := make(map[settlement.PayoutStatus]bool, len(statuses))
	for _, s := range statuses {
		wanted[s] = true
	}

	groups := make(map[settlement.HostID]*settlement.HostPayoutGroup)
	for _, p := range m.payouts {
		if len(wanted) > 0 && !wanted[p.Status] {
			continue
		}
		g, ok := groups[p.HostID]
		if !ok {
			g = &settlement.HostPayoutGroup{HostID: p.HostID}
			groups[p.HostID] = g
		}
		g.Sum = g.Sum.Add(p.NetPayout)
		g.Count++
	}

	out := make([]settlement.HostPayoutGroup, 0, len(groups))
	for _, g := range groups {
		out = append(out, *g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].HostID < out[j].HostID })
	return out, nil
}

// =============================================================================
// AUDIT LOG
// =============================================================================

func (m *Memory) AppendAuditLog(_ context.Context, entry settlement.AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	m.audit = append(m.audit, entry)
	return nil
}

func (m *Memory) QueryAuditLog(_ context.Context, filter settlement.AuditFilter) ([]settlement.AuditEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []settlement.AuditEntry
	for i := len(m.audit) - 1; i >= 0; i-- {
		e := m.audit[i]
		if filter.EntityType != nil && e.EntityType != *filter.EntityType {
			continue
		}
		if filter.EntityID != nil && e.EntityID != *filter.EntityID {
			continue
		}
		if filter.Action != nil && e.Action != *filter.Action {
			continue
		}
		if filter.From != nil && e.CreatedAt.Before(*filter.From) {
			continue
		}
		if filter.To != nil && e.CreatedAt.After(*filter.To) {
			continue
		}
		out = append(out, e)
		if filter.Limit > 0 && len(out) >= filter.Limit {
			break
		}
	}
	return out, nil
}

// =============================================================================
// TRANSACTIONAL MEMORY STORE
// =============================================================================

// TxMemory wraps Memory with transaction support.
type TxMemory struct {
	*Memory
	txMu sync.Mutex
}

func NewTxMemory() *TxMemory {
	return &TxMemory{Memory: NewMemory()}
}

// WithTx executes fn against the store, restoring a snapshot on error.
// Serialized: the memory store runs one transaction at a time.
func (tm *TxMemory) WithTx(ctx context.Context, fn func(settlement.Store) error) error {
	tm.txMu.Lock()
	defer tm.txMu.Unlock()

	snapshot := tm.snapshot()
	if err := fn(tm.Memory); err != nil {
		tm.restore(snapshot)
		return err
	}
	return nil
}

type memorySnapshot struct {
	bookings      map[settlement.BookingID]settlement.Booking
	hosts         map[settlement.HostID]settlement.RentalHost
	payouts       map[settlement.PayoutID]settlement.RentalPayout
	payoutBooking map[settlement.BookingID]settlement.PayoutID
	audit         []settlement.AuditEntry
}

func (tm *TxMemory) snapshot() memorySnapshot {
	tm.mu.RLock()
	defer tm.mu.RUnlock()

	s := memorySnapshot{
		bookings:      make(map[settlement.BookingID]settlement.Booking, len(tm.bookings)),
		hosts:         make(map[settlement.HostID]settlement.RentalHost, len(tm.hosts)),
		payouts:       make(map[settlement.PayoutID]settlement.RentalPayout, len(tm.payouts)),
		payoutBooking: make(map[settlement.BookingID]settlement.PayoutID, len(tm.payoutBooking)),
		audit:         append([]settlement.AuditEntry{}, tm.audit...),
	}
	for k, v := range tm.bookings {
		s.bookings[k] = v
	}
	for k, v := range tm.hosts {
		s.hosts[k] = v
	}
	for k, v := range tm.payouts {
		s.payouts[k] = v
	}
	for k, v := range tm.payoutBooking {
		s.payoutBooking[k] = v
	}
	return s
}

func (tm *TxMemory) restore(s memorySnapshot) {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	tm.bookings = s.bookings
	tm.hosts = s.hosts
	tm.payouts = s.payouts
	tm.payoutBooking = s.payoutBooking
	tm.audit = s.audit
}
