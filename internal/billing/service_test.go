package billing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/portfolieo/portfolio-api/internal/clock/system"
	ledgermemory "github.com/portfolieo/portfolio-api/internal/ledger/memory"
	"github.com/portfolieo/portfolio-api/internal/portfolio"
	"github.com/portfolieo/portfolio-api/internal/storage/memory"
)

type fakeGateway struct {
	event        Event
	parseErr     error
	customers    int
	checkoutUser string
	canceled     string
	info         SubscriptionInfo
}

func (g *fakeGateway) ParseWebhook([]byte, string) (Event, error) {
	return g.event, g.parseErr
}

func (g *fakeGateway) CreateCustomer(context.Context, portfolio.User) (string, error) {
	g.customers++
	return "cus_new", nil
}

func (g *fakeGateway) CreateCheckoutSession(_ context.Context, customerID, userID string) (string, error) {
	g.checkoutUser = userID
	return "https://checkout.example/" + customerID, nil
}

func (g *fakeGateway) CancelAtPeriodEnd(_ context.Context, subscriptionID string) (SubscriptionInfo, error) {
	g.canceled = subscriptionID
	return SubscriptionInfo{HasSubscription: true, Status: "active", CancelAtPeriodEnd: true}, nil
}

func (g *fakeGateway) GetSubscription(context.Context, string) (SubscriptionInfo, error) {
	return g.info, nil
}

type countingStore struct {
	*memory.Store
	writes int
}

func (s *countingStore) SetSubscription(ctx context.Context, id string, state portfolio.SubscriptionState) error {
	s.writes++
	return s.Store.SetSubscription(ctx, id, state)
}

func newStore() *countingStore {
	store := memory.NewStore()
	store.PutUser(portfolio.User{
		ID:               "user-1",
		Email:            "a@example.com",
		StripeCustomerID: portfolio.Optional("cus_1"),
	})
	return &countingStore{Store: store}
}

func TestHandleEventCheckoutThenDelete(t *testing.T) {
	t.Parallel()

	store := newStore()
	svc := NewService(store, nil, nil, nil)
	ctx := context.Background()

	require.NoError(t, svc.HandleEvent(ctx, Event{
		ID: "evt_1", Type: EventCheckoutCompleted, UserID: "user-1", SubscriptionID: portfolio.Optional("sub_1"),
	}))
	user, err := store.GetUser(ctx, "user-1")
	require.NoError(t, err)
	assert.True(t, user.IsPremium)
	assert.Equal(t, "sub_1", portfolio.Deref(user.StripeSubscriptionID))

	deleted := Event{ID: "evt_2", Type: EventSubscriptionDeleted, CustomerID: "cus_1", SubscriptionID: portfolio.Optional("sub_1")}
	require.NoError(t, svc.HandleEvent(ctx, deleted))
	deleted.ID = "evt_3"
	require.NoError(t, svc.HandleEvent(ctx, deleted))

	user, err = store.GetUser(ctx, "user-1")
	require.NoError(t, err)
	assert.False(t, user.IsPremium)
	assert.Nil(t, user.StripeSubscriptionID)
	assert.Equal(t, 2, store.writes, "second delete leaves state unchanged")
}

func TestHandleEventIgnoresUnknownUsersAndTypes(t *testing.T) {
	t.Parallel()

	store := newStore()
	svc := NewService(store, nil, nil, nil)
	ctx := context.Background()

	require.NoError(t, svc.HandleEvent(ctx, Event{Type: EventCheckoutCompleted, UserID: "ghost"}))
	require.NoError(t, svc.HandleEvent(ctx, Event{Type: EventCheckoutCompleted}))
	require.NoError(t, svc.HandleEvent(ctx, Event{Type: EventSubscriptionDeleted, CustomerID: "cus_unknown"}))
	require.NoError(t, svc.HandleEvent(ctx, Event{Type: "invoice.paid", CustomerID: "cus_1"}))
	assert.Zero(t, store.writes)
}

func TestHandleEventSkipsRedeliveries(t *testing.T) {
	t.Parallel()

	store := newStore()
	ledger := ledgermemory.New(time.Hour, system.New())
	svc := NewService(store, nil, ledger, nil)
	ctx := context.Background()

	ev := Event{ID: "evt_1", Type: EventSubscriptionUpdated, CustomerID: "cus_1", Status: "active", SubscriptionID: portfolio.Optional("sub_1")}
	require.NoError(t, svc.HandleEvent(ctx, ev))
	require.NoError(t, store.SetSubscription(ctx, "user-1", portfolio.SubscriptionState{}))
	store.writes = 0

	require.NoError(t, svc.HandleEvent(ctx, ev))
	user, err := store.GetUser(ctx, "user-1")
	require.NoError(t, err)
	assert.False(t, user.IsPremium, "redelivered event was not applied again")
	assert.Zero(t, store.writes)
}

type failingStore struct {
	*countingStore
}

func (failingStore) SetSubscription(context.Context, string, portfolio.SubscriptionState) error {
	return errors.New("db down")
}

func TestHandleEventReleasesClaimOnFailure(t *testing.T) {
	t.Parallel()

	ledger := ledgermemory.New(time.Hour, system.New())
	ev := Event{ID: "evt_1", Type: EventCheckoutCompleted, UserID: "user-1"}

	failing := NewService(failingStore{newStore()}, nil, ledger, nil)
	require.Error(t, failing.HandleEvent(context.Background(), ev))

	store := newStore()
	require.NoError(t, NewService(store, nil, ledger, nil).HandleEvent(context.Background(), ev))
	assert.Equal(t, 1, store.writes, "retry after failure is processed")
}

func TestHandleWebhook(t *testing.T) {
	t.Parallel()

	store := newStore()
	require.ErrorIs(t, NewService(store, nil, nil, nil).HandleWebhook(context.Background(), nil, ""), ErrDisabled)

	bad := &fakeGateway{parseErr: ErrInvalidSignature}
	require.ErrorIs(t, NewService(store, bad, nil, nil).HandleWebhook(context.Background(), []byte("{}"), "sig"), ErrInvalidSignature)
	assert.Zero(t, store.writes)

	good := &fakeGateway{event: Event{ID: "evt_1", Type: EventCheckoutCompleted, UserID: "user-1"}}
	require.NoError(t, NewService(store, good, nil, nil).HandleWebhook(context.Background(), []byte("{}"), "sig"))
	assert.Equal(t, 1, store.writes)
}

func TestCheckout(t *testing.T) {
	t.Parallel()

	store := memory.NewStore()
	store.PutUser(portfolio.User{ID: "fresh", Email: "f@example.com"})
	store.PutUser(portfolio.User{ID: "paid", IsPremium: true, StripeSubscriptionID: portfolio.Optional("sub_9")})
	gw := &fakeGateway{}
	svc := NewService(store, gw, nil, nil)
	ctx := context.Background()

	location, err := svc.Checkout(ctx, "fresh")
	require.NoError(t, err)
	assert.Equal(t, "https://checkout.example/cus_new", location)
	assert.Equal(t, "fresh", gw.checkoutUser)

	user, err := store.GetUser(ctx, "fresh")
	require.NoError(t, err)
	assert.Equal(t, "cus_new", portfolio.Deref(user.StripeCustomerID))

	_, err = svc.Checkout(ctx, "fresh")
	require.NoError(t, err)
	assert.Equal(t, 1, gw.customers, "existing customer is reused")

	_, err = svc.Checkout(ctx, "paid")
	require.ErrorIs(t, err, ErrAlreadySubscribed)

	_, err = svc.Checkout(ctx, "ghost")
	require.ErrorIs(t, err, portfolio.ErrNotFound)
}

func TestCancelAndSubscription(t *testing.T) {
	t.Parallel()

	store := memory.NewStore()
	store.PutUser(portfolio.User{ID: "free"})
	store.PutUser(portfolio.User{ID: "paid", IsPremium: true, StripeSubscriptionID: portfolio.Optional("sub_9")})
	gw := &fakeGateway{info: SubscriptionInfo{HasSubscription: true, Status: "active"}}
	svc := NewService(store, gw, nil, nil)
	ctx := context.Background()

	_, err := svc.Cancel(ctx, "free")
	require.ErrorIs(t, err, ErrNoSubscription)

	info, err := svc.Cancel(ctx, "paid")
	require.NoError(t, err)
	assert.True(t, info.CancelAtPeriodEnd)
	assert.Equal(t, "sub_9", gw.canceled)

	user, err := store.GetUser(ctx, "paid")
	require.NoError(t, err)
	assert.True(t, user.IsPremium, "premium lasts until the period ends")

	info, err = svc.Subscription(ctx, "free")
	require.NoError(t, err)
	assert.False(t, info.HasSubscription)

	info, err = svc.Subscription(ctx, "paid")
	require.NoError(t, err)
	assert.Equal(t, "active", info.Status)
}
