package order

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tavolo/loyalty-core/internal/domain/wallet"
)

// --- Mock implementations ---

type memOrderRepo struct {
	orders   map[uuid.UUID]*Order
	messages []Message
	seq      int

	lastUpdate *StatusUpdate
	lastCancel *CancelParams
	cancelErr  error
	updateErr  error

	// beforeUpdate runs between the service's read and its status write,
	// standing in for a concurrent writer.
	beforeUpdate func()
}

func newMemOrderRepo(orders ...*Order) *memOrderRepo {
	byID := make(map[uuid.UUID]*Order, len(orders))
	for _, o := range orders {
		byID[o.ID] = o
	}
	return &memOrderRepo{orders: byID}
}

func (r *memOrderRepo) Create(_ context.Context, o *Order) error {
	r.orders[o.ID] = o
	return nil
}

func (r *memOrderRepo) GetByID(_ context.Context, id uuid.UUID) (*Order, error) {
	o, ok := r.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (r *memOrderRepo) NextNumber(_ context.Context) (string, error) {
	r.seq++
	return fmt.Sprintf("ORD-%06d", r.seq), nil
}

func (r *memOrderRepo) UpdateStatus(_ context.Context, u StatusUpdate) error {
	if r.updateErr != nil {
		return r.updateErr
	}
	if r.beforeUpdate != nil {
		r.beforeUpdate()
	}
	o := r.orders[u.OrderID]
	// Compare-and-set, mirroring the guarded UPDATE in the Postgres repo.
	if o.Status != u.From {
		return &InvalidTransitionError{From: o.Status, Attempted: u.Status}
	}
	r.lastUpdate = &u
	o.Status = u.Status
	if u.RiderID != nil && o.RiderID == nil {
		o.RiderID = u.RiderID
		o.RiderAssignedAt = &u.At
	}
	return nil
}

func (r *memOrderRepo) AssignRider(_ context.Context, orderID, riderID uuid.UUID, at time.Time) error {
	o := r.orders[orderID]
	o.RiderID = &riderID
	o.RiderAssignedAt = &at
	return nil
}

func (r *memOrderRepo) MarkPaid(_ context.Context, orderID uuid.UUID) error {
	o, ok := r.orders[orderID]
	if !ok {
		return ErrNotFound
	}
	o.PaymentStatus = PaymentPaid
	return nil
}

func (r *memOrderRepo) Cancel(_ context.Context, p CancelParams) error {
	if r.cancelErr != nil {
		return r.cancelErr
	}
	r.lastCancel = &p
	o := r.orders[p.OrderID]
	o.Status = StatusCancelled
	o.CancelledAt = &p.At
	o.CancellationReason = p.Reason
	if p.Refund != nil {
		o.PaymentStatus = PaymentRefunded
	}
	return nil
}

func (r *memOrderRepo) CreateMessage(_ context.Context, m *Message) error {
	r.messages = append(r.messages, *m)
	return nil
}

func (r *memOrderRepo) MessagesByOrder(_ context.Context, orderID uuid.UUID) ([]Message, error) {
	var out []Message
	for _, m := range r.messages {
		if m.OrderID == orderID {
			out = append(out, m)
		}
	}
	return out, nil
}

type memRiderRepo struct {
	byID map[uuid.UUID]*Rider
}

func newMemRiderRepo(riders ...*Rider) *memRiderRepo {
	byID := make(map[uuid.UUID]*Rider, len(riders))
	for _, r := range riders {
		byID[r.ID] = r
	}
	return &memRiderRepo{byID: byID}
}

func (r *memRiderRepo) GetByID(_ context.Context, id uuid.UUID) (*Rider, error) {
	rider, ok := r.byID[id]
	if !ok {
		return nil, ErrRiderNotFound
	}
	return rider, nil
}

// --- Helpers ---

func testOrder(typ Type, status Status) *Order {
	return &Order{
		ID:            uuid.New(),
		Number:        "ORD-000042",
		RestaurantID:  uuid.New(),
		CustomerID:    uuid.New(),
		BranchID:      uuid.New(),
		Type:          typ,
		Status:        status,
		Subtotal:      decimal.RequireFromString("50.00"),
		TotalAmount:   decimal.RequireFromString("50.00"),
		PaymentMethod: "wallet",
		PaymentStatus: PaymentPending,
		CreatedAt:     time.Now().Add(-time.Hour),
	}
}

func activeRider() *Rider {
	return &Rider{ID: uuid.New(), Name: "Sam", Phone: "555-0101", IsActive: true}
}

// --- Tests ---

func TestAccept_FromPending(t *testing.T) {
	o := testOrder(TypePickup, StatusPending)
	svc := NewService(newMemOrderRepo(o), newMemRiderRepo())

	got, err := svc.Accept(context.Background(), o.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusAccepted, got.Status)
	assert.NotNil(t, got.AcceptedAt)
}

func TestAccept_SkippingAheadRejected(t *testing.T) {
	o := testOrder(TypePickup, StatusPending)
	svc := NewService(newMemOrderRepo(o), newMemRiderRepo())

	_, err := svc.MarkReady(context.Background(), o.ID)

	var itErr *InvalidTransitionError
	require.ErrorAs(t, err, &itErr)
	assert.Equal(t, StatusPending, itErr.From)
	assert.Equal(t, StatusReady, itErr.Attempted)
}

func TestAccept_ConcurrentCancelNotOverwritten(t *testing.T) {
	o := testOrder(TypePickup, StatusPending)
	repo := newMemOrderRepo(o)
	svc := NewService(repo, newMemRiderRepo())

	// A cancellation lands between the service's read and its write.
	repo.beforeUpdate = func() {
		repo.orders[o.ID].Status = StatusCancelled
	}

	_, err := svc.Accept(context.Background(), o.ID)

	var itErr *InvalidTransitionError
	require.ErrorAs(t, err, &itErr)
	assert.Equal(t, StatusCancelled, itErr.From)
	assert.Equal(t, StatusCancelled, repo.orders[o.ID].Status)
}

func TestMarkCompleted_PickupFromReady(t *testing.T) {
	o := testOrder(TypePickup, StatusReady)
	svc := NewService(newMemOrderRepo(o), newMemRiderRepo())

	got, err := svc.MarkCompleted(context.Background(), o.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, got.Status)
	assert.NotNil(t, got.CompletedAt)
}

func TestMarkCompleted_DeliveryNeedsDispatchFirst(t *testing.T) {
	o := testOrder(TypeDelivery, StatusReady)
	svc := NewService(newMemOrderRepo(o), newMemRiderRepo())

	_, err := svc.MarkCompleted(context.Background(), o.ID)

	var itErr *InvalidTransitionError
	require.ErrorAs(t, err, &itErr)
}

func TestMarkOnTheWay_DispatchStampsRiderAndStatusTogether(t *testing.T) {
	o := testOrder(TypeDelivery, StatusReady)
	rider := activeRider()
	repo := newMemOrderRepo(o)
	svc := NewService(repo, newMemRiderRepo(rider))

	got, err := svc.MarkOnTheWay(context.Background(), o.ID, rider.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusOutForDelivery, got.Status)
	require.NotNil(t, got.RiderID)
	assert.Equal(t, rider.ID, *got.RiderID)
	assert.NotNil(t, got.RiderAssignedAt)

	// One repository write carried both.
	require.NotNil(t, repo.lastUpdate)
	assert.Equal(t, StatusOutForDelivery, repo.lastUpdate.Status)
	require.NotNil(t, repo.lastUpdate.RiderID)
}

func TestMarkOnTheWay_PickupRejected(t *testing.T) {
	o := testOrder(TypePickup, StatusReady)
	rider := activeRider()
	svc := NewService(newMemOrderRepo(o), newMemRiderRepo(rider))

	_, err := svc.MarkOnTheWay(context.Background(), o.ID, rider.ID)

	var itErr *InvalidTransitionError
	require.ErrorAs(t, err, &itErr)
}

func TestMarkOnTheWay_InactiveRider(t *testing.T) {
	o := testOrder(TypeDelivery, StatusReady)
	rider := activeRider()
	rider.IsActive = false
	svc := NewService(newMemOrderRepo(o), newMemRiderRepo(rider))

	_, err := svc.MarkOnTheWay(context.Background(), o.ID, rider.ID)
	require.ErrorIs(t, err, ErrRiderInactive)
}

func TestMarkOnTheWay_PreAssignedRiderAccepted(t *testing.T) {
	o := testOrder(TypeDelivery, StatusReady)
	rider := activeRider()
	now := time.Now()
	o.RiderID = &rider.ID
	o.RiderAssignedAt = &now
	svc := NewService(newMemOrderRepo(o), newMemRiderRepo(rider))

	got, err := svc.MarkOnTheWay(context.Background(), o.ID, rider.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusOutForDelivery, got.Status)
}

func TestMarkOnTheWay_DifferentRiderRejected(t *testing.T) {
	o := testOrder(TypeDelivery, StatusReady)
	assigned := activeRider()
	other := activeRider()
	now := time.Now()
	o.RiderID = &assigned.ID
	o.RiderAssignedAt = &now
	svc := NewService(newMemOrderRepo(o), newMemRiderRepo(assigned, other))

	_, err := svc.MarkOnTheWay(context.Background(), o.ID, other.ID)
	require.ErrorIs(t, err, ErrRiderAlreadyAssigned)
}

func TestAssignRider_AtReady(t *testing.T) {
	o := testOrder(TypeDelivery, StatusReady)
	rider := activeRider()
	svc := NewService(newMemOrderRepo(o), newMemRiderRepo(rider))

	got, err := svc.AssignRider(context.Background(), o.ID, rider.ID)
	require.NoError(t, err)
	// Status does not advance; dispatch is a separate call.
	assert.Equal(t, StatusReady, got.Status)
	require.NotNil(t, got.RiderID)
	assert.Equal(t, rider.ID, *got.RiderID)
}

func TestAssignRider_BeforeReadyRejected(t *testing.T) {
	o := testOrder(TypeDelivery, StatusPreparing)
	rider := activeRider()
	svc := NewService(newMemOrderRepo(o), newMemRiderRepo(rider))

	_, err := svc.AssignRider(context.Background(), o.ID, rider.ID)

	var itErr *InvalidTransitionError
	require.ErrorAs(t, err, &itErr)
	assert.Equal(t, StatusPreparing, itErr.From)
}

func TestAssignRider_SecondRiderRejected(t *testing.T) {
	o := testOrder(TypeDelivery, StatusReady)
	first := activeRider()
	second := activeRider()
	now := time.Now()
	o.RiderID = &first.ID
	o.RiderAssignedAt = &now
	svc := NewService(newMemOrderRepo(o), newMemRiderRepo(first, second))

	_, err := svc.AssignRider(context.Background(), o.ID, second.ID)
	require.ErrorIs(t, err, ErrRiderAlreadyAssigned)
}

func TestAssignRider_UnknownRider(t *testing.T) {
	o := testOrder(TypeDelivery, StatusReady)
	svc := NewService(newMemOrderRepo(o), newMemRiderRepo())

	_, err := svc.AssignRider(context.Background(), o.ID, uuid.New())
	require.ErrorIs(t, err, ErrRiderNotFound)
}

func TestCancel_UnpaidOrderNoRefund(t *testing.T) {
	o := testOrder(TypePickup, StatusPending)
	repo := newMemOrderRepo(o)
	svc := NewService(repo, newMemRiderRepo())

	got, err := svc.Cancel(context.Background(), o.ID, "customer changed mind")
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, got.Status)
	assert.Equal(t, "customer changed mind", got.CancellationReason)
	assert.Equal(t, PaymentPending, got.PaymentStatus)
	require.NotNil(t, repo.lastCancel)
	assert.Nil(t, repo.lastCancel.Refund)
}

func TestCancel_ReasonOptional(t *testing.T) {
	o := testOrder(TypePickup, StatusPending)
	repo := newMemOrderRepo(o)
	svc := NewService(repo, newMemRiderRepo())

	got, err := svc.Cancel(context.Background(), o.ID, "")
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, got.Status)
	assert.Empty(t, got.CancellationReason)
}

func TestCancel_PaidOrderCarriesRefund(t *testing.T) {
	o := testOrder(TypeDelivery, StatusPreparing)
	o.PaymentStatus = PaymentPaid
	repo := newMemOrderRepo(o)
	svc := NewService(repo, newMemRiderRepo())

	got, err := svc.Cancel(context.Background(), o.ID, "kitchen closed")
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, got.Status)
	assert.Equal(t, PaymentRefunded, got.PaymentStatus)

	require.NotNil(t, repo.lastCancel)
	refund := repo.lastCancel.Refund
	require.NotNil(t, refund)
	assert.Equal(t, wallet.EntryRefund, refund.Type)
	assert.True(t, o.TotalAmount.Equal(refund.Amount))
	assert.Equal(t, wallet.RefOrder, refund.ReferenceType)
	assert.Equal(t, o.ID.String(), refund.ReferenceID)
}

func TestCancel_CompletedOrderRejected(t *testing.T) {
	o := testOrder(TypePickup, StatusCompleted)
	svc := NewService(newMemOrderRepo(o), newMemRiderRepo())

	_, err := svc.Cancel(context.Background(), o.ID, "too late")

	var itErr *InvalidTransitionError
	require.ErrorAs(t, err, &itErr)
}

func TestCancel_RepositoryFailureLeavesOrderUntouched(t *testing.T) {
	o := testOrder(TypePickup, StatusPending)
	o.PaymentStatus = PaymentPaid
	repo := newMemOrderRepo(o)
	repo.cancelErr = fmt.Errorf("refund write failed")
	svc := NewService(repo, newMemRiderRepo())

	_, err := svc.Cancel(context.Background(), o.ID, "nope")
	require.Error(t, err)

	stored, getErr := repo.GetByID(context.Background(), o.ID)
	require.NoError(t, getErr)
	assert.Equal(t, StatusPending, stored.Status)
	assert.Equal(t, PaymentPaid, stored.PaymentStatus)
}

func TestCanMessage(t *testing.T) {
	now := time.Now()

	cases := []struct {
		name   string
		status Status
		age    time.Duration
		want   bool
	}{
		{"pending and old enough", StatusPending, 15 * time.Minute, true},
		{"accepted and old enough", StatusAccepted, 10 * time.Minute, true},
		{"preparing and old enough", StatusPreparing, time.Hour, true},
		{"pending but too fresh", StatusPending, 9 * time.Minute, false},
		{"ready never messages", StatusReady, time.Hour, false},
		{"completed never messages", StatusCompleted, time.Hour, false},
		{"cancelled never messages", StatusCancelled, time.Hour, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			o := testOrder(TypePickup, tc.status)
			o.CreatedAt = now.Add(-tc.age)
			assert.Equal(t, tc.want, CanMessage(o, now))
		})
	}
}

func TestSendMessage_StoresWhenOpen(t *testing.T) {
	o := testOrder(TypePickup, StatusAccepted)
	o.CreatedAt = time.Now().Add(-20 * time.Minute)
	repo := newMemOrderRepo(o)
	svc := NewService(repo, newMemRiderRepo())

	staffID := uuid.New()
	m, err := svc.SendMessage(context.Background(), o.ID, SenderStaff, staffID, "your order is on the grill")
	require.NoError(t, err)
	assert.Equal(t, SenderStaff, m.SenderType)
	assert.Equal(t, staffID, m.SenderID)

	msgs, err := svc.Messages(context.Background(), o.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "your order is on the grill", msgs[0].Body)
}

func TestSendMessage_TooEarly(t *testing.T) {
	o := testOrder(TypePickup, StatusPending)
	o.CreatedAt = time.Now().Add(-time.Minute)
	svc := NewService(newMemOrderRepo(o), newMemRiderRepo())

	_, err := svc.SendMessage(context.Background(), o.ID, SenderCustomer, uuid.New(), "where is my food")
	require.ErrorIs(t, err, ErrMessagingClosed)
}

func TestSendMessage_EmptyBody(t *testing.T) {
	o := testOrder(TypePickup, StatusAccepted)
	o.CreatedAt = time.Now().Add(-20 * time.Minute)
	svc := NewService(newMemOrderRepo(o), newMemRiderRepo())

	_, err := svc.SendMessage(context.Background(), o.ID, SenderCustomer, uuid.New(), "   ")

	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
}

func TestGet_UnknownOrder(t *testing.T) {
	svc := NewService(newMemOrderRepo(), newMemRiderRepo())

	_, err := svc.Get(context.Background(), uuid.New())
	require.ErrorIs(t, err, ErrNotFound)
}
