package reservation

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pearlevents/event-booking/internal/model"
)

func newTestService(tickets ...model.Ticket) (*Service, *MemoryStore) {
	store := NewMemoryStore()
	for _, t := range tickets {
		store.AddTicket(t)
	}
	return NewService(store), store
}

func uintPtr(v uint64) *uint64 { return &v }
func qtyPtr(v uint32) *uint32  { return &v }

func TestCreateBookingReservesStock(t *testing.T) {
	svc, store := newTestService(model.Ticket{ID: 1, EventID: 10, Type: "VIP", PriceCents: 5000, Quantity: 10})

	b, err := svc.CreateBooking(context.Background(), 1, 3, 42)
	require.NoError(t, err)
	require.NotNil(t, b)
	assert.Equal(t, uint64(42), b.UserID)
	assert.Equal(t, uint64(10), b.EventID, "event id copied from the tier's owning event")
	assert.Equal(t, uint32(3), b.Quantity)
	assert.NotZero(t, b.ID)

	tk, ok := store.Ticket(1)
	require.True(t, ok)
	assert.Equal(t, uint32(7), tk.Available)
	assert.Equal(t, uint32(3), tk.Sold())
}

func TestCreateBookingUnknownTicket(t *testing.T) {
	svc, _ := newTestService()
	_, err := svc.CreateBooking(context.Background(), 99, 1, 1)
	assert.ErrorIs(t, err, ErrTicketNotFound)
}

func TestCreateBookingZeroQuantity(t *testing.T) {
	svc, store := newTestService(model.Ticket{ID: 1, EventID: 10, Quantity: 10})
	_, err := svc.CreateBooking(context.Background(), 1, 0, 1)
	assert.ErrorIs(t, err, ErrInvalidQuantity)
	assert.Equal(t, 0, store.BookingCount())
}

func TestCreateBookingExactCapacityThenFail(t *testing.T) {
	// Tier capacity 10, zero bookings: booking all 10 succeeds, the
	// next request of 1 fails and availability stays at 0.
	svc, store := newTestService(model.Ticket{ID: 1, EventID: 10, Quantity: 10})

	_, err := svc.CreateBooking(context.Background(), 1, 10, 7)
	require.NoError(t, err)
	tk, _ := store.Ticket(1)
	assert.Equal(t, uint32(0), tk.Available)

	_, err = svc.CreateBooking(context.Background(), 1, 1, 7)
	var insufficient *InsufficientStockError
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, uint32(1), insufficient.Requested)
	assert.Equal(t, uint32(0), insufficient.Available)

	tk, _ = store.Ticket(1)
	assert.Equal(t, uint32(0), tk.Available, "failed create must not touch stock")
	assert.Equal(t, 1, store.BookingCount())
}

func TestConcurrentCreateNeverOversells(t *testing.T) {
	const capacity = 25
	const callers = 100
	svc, store := newTestService(model.Ticket{ID: 1, EventID: 10, Quantity: capacity})

	var wg sync.WaitGroup
	results := make(chan error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(user uint64) {
			defer wg.Done()
			_, err := svc.CreateBooking(context.Background(), 1, 1, user)
			results <- err
		}(uint64(i + 1))
	}
	wg.Wait()
	close(results)

	var wins, losses int
	for err := range results {
		if err == nil {
			wins++
			continue
		}
		var insufficient *InsufficientStockError
		require.ErrorAs(t, err, &insufficient)
		losses++
	}
	assert.Equal(t, capacity, wins, "exactly min(N, C) bookings succeed")
	assert.Equal(t, callers-capacity, losses)

	tk, _ := store.Ticket(1)
	assert.Equal(t, uint32(0), tk.Available)
	assert.Equal(t, capacity, store.BookingCount())
}

func TestCancelRestoresAvailability(t *testing.T) {
	svc, store := newTestService(model.Ticket{ID: 1, EventID: 10, Quantity: 10})

	before, _ := store.Ticket(1)
	b, err := svc.CreateBooking(context.Background(), 1, 4, 42)
	require.NoError(t, err)

	err = svc.CancelBooking(context.Background(), b.ID, Actor{UserID: 42})
	require.NoError(t, err)

	after, _ := store.Ticket(1)
	assert.Equal(t, before.Available, after.Available, "create then cancel round-trips availability")
	assert.Equal(t, 0, store.BookingCount())
}

func TestCancelAuthorization(t *testing.T) {
	svc, store := newTestService(model.Ticket{ID: 1, EventID: 10, Quantity: 10})
	b, err := svc.CreateBooking(context.Background(), 1, 2, 42)
	require.NoError(t, err)

	err = svc.CancelBooking(context.Background(), b.ID, Actor{UserID: 43})
	assert.ErrorIs(t, err, ErrForbidden)
	tk, _ := store.Ticket(1)
	assert.Equal(t, uint32(8), tk.Available, "forbidden cancel must not release stock")

	// Admins may cancel anyone's booking.
	err = svc.CancelBooking(context.Background(), b.ID, Actor{UserID: 1, Admin: true})
	assert.NoError(t, err)
}

func TestCancelUnknownBooking(t *testing.T) {
	svc, _ := newTestService()
	err := svc.CancelBooking(context.Background(), 404, Actor{UserID: 1})
	assert.ErrorIs(t, err, ErrBookingNotFound)
}

func TestUpdateNoOp(t *testing.T) {
	svc, store := newTestService(model.Ticket{ID: 1, EventID: 10, Quantity: 10})
	b, err := svc.CreateBooking(context.Background(), 1, 3, 42)
	require.NoError(t, err)
	availBefore, _ := store.Ticket(1)

	got, err := svc.UpdateBooking(context.Background(), b.ID,
		UpdateRequest{TicketID: uintPtr(1), Quantity: qtyPtr(3)}, Actor{UserID: 42})
	require.NoError(t, err)
	assert.Equal(t, b.Quantity, got.Quantity)
	assert.Equal(t, b.TicketID, got.TicketID)
	assert.Equal(t, b.UpdatedAt, got.UpdatedAt, "no-op update leaves the booking untouched")

	availAfter, _ := store.Ticket(1)
	assert.Equal(t, availBefore.Available, availAfter.Available)
}

func TestUpdateQuantityIncrease(t *testing.T) {
	// Booking of 3 on a capacity-10 tier (available 7): raising to 5
	// needs a delta of 2 and leaves 5 available.
	svc, store := newTestService(model.Ticket{ID: 1, EventID: 10, Quantity: 10})
	b, err := svc.CreateBooking(context.Background(), 1, 3, 42)
	require.NoError(t, err)

	got, err := svc.UpdateBooking(context.Background(), b.ID,
		UpdateRequest{Quantity: qtyPtr(5)}, Actor{UserID: 42})
	require.NoError(t, err)
	assert.Equal(t, uint32(5), got.Quantity)

	tk, _ := store.Ticket(1)
	assert.Equal(t, uint32(5), tk.Available)
}

func TestUpdateQuantityIncreaseInsufficient(t *testing.T) {
	svc, store := newTestService(model.Ticket{ID: 1, EventID: 10, Quantity: 10})
	b, err := svc.CreateBooking(context.Background(), 1, 8, 42)
	require.NoError(t, err)

	_, err = svc.UpdateBooking(context.Background(), b.ID,
		UpdateRequest{Quantity: qtyPtr(11)}, Actor{UserID: 42})
	var insufficient *InsufficientStockError
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, uint32(3), insufficient.Requested, "only the delta is requested on a same-tier increase")
	assert.Equal(t, uint32(2), insufficient.Available)

	stored, _ := store.Booking(b.ID)
	assert.Equal(t, uint32(8), stored.Quantity, "failed update preserves the booking")
	tk, _ := store.Ticket(1)
	assert.Equal(t, uint32(2), tk.Available)
}

func TestUpdateQuantityDecreaseAlwaysSucceeds(t *testing.T) {
	// Even a fully sold out tier accepts a decrease: releasing never fails.
	svc, store := newTestService(model.Ticket{ID: 1, EventID: 10, Quantity: 10})
	b, err := svc.CreateBooking(context.Background(), 1, 10, 42)
	require.NoError(t, err)

	got, err := svc.UpdateBooking(context.Background(), b.ID,
		UpdateRequest{Quantity: qtyPtr(4)}, Actor{UserID: 42})
	require.NoError(t, err)
	assert.Equal(t, uint32(4), got.Quantity)

	tk, _ := store.Ticket(1)
	assert.Equal(t, uint32(6), tk.Available)
}

func TestUpdateSwitchTier(t *testing.T) {
	// Booking of 4 on tier A (capacity 10, available 6): switching to
	// tier B (capacity 10, available 10) requires B to cover the full
	// 4, returns A to 10 and leaves B at 6.
	svc, store := newTestService(
		model.Ticket{ID: 1, EventID: 10, Quantity: 10},
		model.Ticket{ID: 2, EventID: 20, Quantity: 10},
	)
	b, err := svc.CreateBooking(context.Background(), 1, 4, 42)
	require.NoError(t, err)

	got, err := svc.UpdateBooking(context.Background(), b.ID,
		UpdateRequest{TicketID: uintPtr(2)}, Actor{UserID: 42})
	require.NoError(t, err)
	assert.Equal(t, uint64(2), got.TicketID)
	assert.Equal(t, uint64(20), got.EventID, "denormalized event id follows the new tier")
	assert.Equal(t, uint32(4), got.Quantity)

	a, _ := store.Ticket(1)
	bTier, _ := store.Ticket(2)
	assert.Equal(t, uint32(10), a.Available)
	assert.Equal(t, uint32(6), bTier.Available)
}

func TestUpdateSwitchTierChecksFullQuantity(t *testing.T) {
	// The new tier must cover the full new quantity, not a delta: a
	// booking of 5 cannot move onto a tier with only 3 left even
	// though the old tier is about to get 5 back.
	svc, store := newTestService(
		model.Ticket{ID: 1, EventID: 10, Quantity: 10},
		model.Ticket{ID: 2, EventID: 10, Quantity: 3},
	)
	b, err := svc.CreateBooking(context.Background(), 1, 5, 42)
	require.NoError(t, err)

	_, err = svc.UpdateBooking(context.Background(), b.ID,
		UpdateRequest{TicketID: uintPtr(2)}, Actor{UserID: 42})
	var insufficient *InsufficientStockError
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, uint64(2), insufficient.TicketID)
	assert.Equal(t, uint32(5), insufficient.Requested)
	assert.Equal(t, uint32(3), insufficient.Available)

	a, _ := store.Ticket(1)
	bTier, _ := store.Ticket(2)
	assert.Equal(t, uint32(5), a.Available, "failed switch releases nothing")
	assert.Equal(t, uint32(3), bTier.Available)
	stored, _ := store.Booking(b.ID)
	assert.Equal(t, uint64(1), stored.TicketID)
}

func TestUpdateSwitchTierWithNewQuantity(t *testing.T) {
	svc, store := newTestService(
		model.Ticket{ID: 1, EventID: 10, Quantity: 10},
		model.Ticket{ID: 2, EventID: 10, Quantity: 10},
	)
	b, err := svc.CreateBooking(context.Background(), 1, 5, 42)
	require.NoError(t, err)

	got, err := svc.UpdateBooking(context.Background(), b.ID,
		UpdateRequest{TicketID: uintPtr(2), Quantity: qtyPtr(2)}, Actor{UserID: 42})
	require.NoError(t, err)
	assert.Equal(t, uint32(2), got.Quantity)

	a, _ := store.Ticket(1)
	bTier, _ := store.Ticket(2)
	assert.Equal(t, uint32(10), a.Available)
	assert.Equal(t, uint32(8), bTier.Available)
}

func TestUpdateSwitchToUnknownTier(t *testing.T) {
	svc, store := newTestService(model.Ticket{ID: 1, EventID: 10, Quantity: 10})
	b, err := svc.CreateBooking(context.Background(), 1, 2, 42)
	require.NoError(t, err)

	_, err = svc.UpdateBooking(context.Background(), b.ID,
		UpdateRequest{TicketID: uintPtr(99)}, Actor{UserID: 42})
	assert.ErrorIs(t, err, ErrTicketNotFound)

	tk, _ := store.Ticket(1)
	assert.Equal(t, uint32(8), tk.Available, "failed switch rolls back completely")
}

func TestUpdateAuthorization(t *testing.T) {
	svc, _ := newTestService(model.Ticket{ID: 1, EventID: 10, Quantity: 10})
	b, err := svc.CreateBooking(context.Background(), 1, 2, 42)
	require.NoError(t, err)

	_, err = svc.UpdateBooking(context.Background(), b.ID,
		UpdateRequest{Quantity: qtyPtr(3)}, Actor{UserID: 43})
	assert.ErrorIs(t, err, ErrForbidden)

	got, err := svc.UpdateBooking(context.Background(), b.ID,
		UpdateRequest{Quantity: qtyPtr(3)}, Actor{UserID: 9, Admin: true})
	require.NoError(t, err)
	assert.Equal(t, uint32(3), got.Quantity)
}

func TestInvariantHoldsUnderMixedConcurrentOperations(t *testing.T) {
	// Hammer two tiers with concurrent creates, updates, switches and
	// cancels, then verify 0 <= available <= capacity on both tiers
	// and that availability equals capacity minus the sum over live
	// bookings.
	svc, store := newTestService(
		model.Ticket{ID: 1, EventID: 10, Quantity: 30},
		model.Ticket{ID: 2, EventID: 10, Quantity: 20},
	)

	ctx := context.Background()
	var wg sync.WaitGroup
	for i := 0; i < 60; i++ {
		wg.Add(1)
		go func(user uint64) {
			defer wg.Done()
			b, err := svc.CreateBooking(ctx, 1+user%2, 1+uint32(user%3), user)
			if err != nil {
				return
			}
			actor := Actor{UserID: user}
			switch user % 4 {
			case 0:
				_, _ = svc.UpdateBooking(ctx, b.ID, UpdateRequest{Quantity: qtyPtr(1)}, actor)
			case 1:
				other := uint64(1)
				if b.TicketID == 1 {
					other = 2
				}
				_, _ = svc.UpdateBooking(ctx, b.ID, UpdateRequest{TicketID: &other}, actor)
			case 2:
				_ = svc.CancelBooking(ctx, b.ID, actor)
			}
		}(uint64(i + 1))
	}
	wg.Wait()

	sold := map[uint64]uint32{}
	for _, b := range store.Bookings() {
		sold[b.TicketID] += b.Quantity
	}
	for _, tierID := range []uint64{1, 2} {
		tk, ok := store.Ticket(tierID)
		require.True(t, ok)
		assert.LessOrEqual(t, tk.Available, tk.Quantity)
		assert.Equal(t, tk.Quantity-tk.Available, sold[tierID],
			"availability must equal capacity minus committed quantities on tier %d", tierID)
	}
}

func TestInTxRollbackOnFailure(t *testing.T) {
	// Any error mid-transaction restores pre-call state exactly.
	store := NewMemoryStore()
	store.AddTicket(model.Ticket{ID: 1, EventID: 10, Quantity: 5})

	sentinel := errors.New("boom")
	err := store.InTx(context.Background(), func(tx Tx) error {
		if err := tx.AdjustAvailable(context.Background(), 1, -3); err != nil {
			return err
		}
		return sentinel
	})
	require.ErrorIs(t, err, sentinel)

	tk, _ := store.Ticket(1)
	assert.Equal(t, uint32(5), tk.Available)
}
