package billing

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/launchdeck/launchdeck/app/models"
)

// fakeRepository is an in-memory Repository for service tests.
type fakeRepository struct {
	users    map[string]*models.User
	settings map[uint]*models.UserSettings
	subs     []*models.Subscription
	payments map[string]*models.Payment

	nextUserID uint
	nextSubID  uint
	nextPayID  uint

	createUserErr  error
	missNextLookup bool
}

func newFakeRepository() *fakeRepository {
	return &fakeRepository{
		users:    map[string]*models.User{},
		settings: map[uint]*models.UserSettings{},
		payments: map[string]*models.Payment{},
	}
}

func (f *fakeRepository) UserByEmail(email string) (*models.User, error) {
	if f.missNextLookup {
		f.missNextLookup = false
		return nil, gorm.ErrRecordNotFound
	}
	if u, ok := f.users[models.NormalizeEmail(email)]; ok {
		return u, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeRepository) CreateUser(user *models.User) error {
	if f.createUserErr != nil {
		err := f.createUserErr
		f.createUserErr = nil
		return err
	}
	email := models.NormalizeEmail(user.Email)
	if _, exists := f.users[email]; exists {
		return gorm.ErrDuplicatedKey
	}
	f.nextUserID++
	user.ID = f.nextUserID
	user.Email = email
	f.users[email] = user
	return nil
}

func (f *fakeRepository) EnsureUserSettings(userID uint) (*models.UserSettings, error) {
	if s, ok := f.settings[userID]; ok {
		return s, nil
	}
	s := &models.UserSettings{UserID: userID, Plan: models.SubscriptionPlanStarter, NotifyBillingEmail: true}
	f.settings[userID] = s
	return s, nil
}

func (f *fakeRepository) SaveUserSettings(us *models.UserSettings) error {
	f.settings[us.UserID] = us
	return nil
}

func (f *fakeRepository) CreateSubscription(sub *models.Subscription) error {
	f.nextSubID++
	sub.ID = f.nextSubID
	f.subs = append(f.subs, sub)
	return nil
}

func (f *fakeRepository) SaveSubscription(sub *models.Subscription) error {
	for i, s := range f.subs {
		if s.ID == sub.ID {
			f.subs[i] = sub
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

func (f *fakeRepository) SubscriptionByProviderID(providerID string) (*models.Subscription, error) {
	if providerID == "" {
		return nil, gorm.ErrRecordNotFound
	}
	for _, s := range f.subs {
		if s.ProviderSubscriptionID == providerID {
			return s, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeRepository) MostRecentSubscriptionByUser(userID uint) (*models.Subscription, error) {
	for i := len(f.subs) - 1; i >= 0; i-- {
		if f.subs[i].UserID == userID {
			return f.subs[i], nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeRepository) UpsertPaymentByTransactionID(payment *models.Payment) (bool, error) {
	if existing, ok := f.payments[payment.TransactionID]; ok {
		existing.UserID = payment.UserID
		existing.SubscriptionID = payment.SubscriptionID
		existing.Amount = payment.Amount
		existing.Currency = payment.Currency
		existing.Status = payment.Status
		existing.PaymentMethod = payment.PaymentMethod
		*payment = *existing
		return false, nil
	}
	f.nextPayID++
	payment.ID = f.nextPayID
	f.payments[payment.TransactionID] = payment
	return true, nil
}

func (f *fakeRepository) PaymentByTransactionID(transactionID string) (*models.Payment, error) {
	if transactionID == "" {
		return nil, gorm.ErrRecordNotFound
	}
	if p, ok := f.payments[transactionID]; ok {
		return p, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeRepository) MostRecentPaymentByUser(userID uint) (*models.Payment, error) {
	var latest *models.Payment
	for _, p := range f.payments {
		if p.UserID != userID {
			continue
		}
		if latest == nil || p.ID > latest.ID {
			latest = p
		}
	}
	if latest == nil {
		return nil, gorm.ErrRecordNotFound
	}
	return latest, nil
}

func (f *fakeRepository) SavePayment(payment *models.Payment) error {
	f.payments[payment.TransactionID] = payment
	return nil
}

func makeEvent(t *testing.T, eventType string, data map[string]any) *Event {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	return &Event{ID: "evt_" + eventType, Type: eventType, Data: raw}
}

func TestProcessEvent_UnknownTypeNotHandled(t *testing.T) {
	repo := newFakeRepository()
	svc := NewService(repo)

	outcome := svc.ProcessEvent(context.Background(), &Event{ID: "evt_1", Type: "payment_intent.succeeded"})
	assert.False(t, outcome.Handled)
	assert.NoError(t, outcome.Err)
	assert.Empty(t, repo.users)
	assert.Empty(t, repo.payments)
}

func TestCheckoutCompleted_CreatesUserAndPayment(t *testing.T) {
	repo := newFakeRepository()
	svc := NewService(repo)

	event := makeEvent(t, "checkout.completed", map[string]any{
		"checkoutId":    "ch_1",
		"customerEmail": "Buyer@Example.COM",
		"customerName":  "Buyer One",
		"amount":        2999,
		"currency":      "USD",
		"paymentMethod": "card",
	})

	outcome := svc.ProcessEvent(context.Background(), event)
	require.True(t, outcome.Handled)
	require.NoError(t, outcome.Err)

	user, ok := repo.users["buyer@example.com"]
	require.True(t, ok)
	assert.True(t, user.EmailVerified)
	assert.Equal(t, "Buyer One", user.Name)

	payment := repo.payments["ch_1"]
	require.NotNil(t, payment)
	assert.Equal(t, user.ID, payment.UserID)
	assert.Equal(t, "29.99", payment.Amount)
	assert.Equal(t, "usd", payment.Currency)
	assert.Equal(t, models.PaymentStatusCompleted, payment.Status)
	assert.Equal(t, "card", payment.PaymentMethod)
}

func TestCheckoutCompleted_RedeliveryDoesNotDuplicate(t *testing.T) {
	repo := newFakeRepository()
	svc := NewService(repo)

	event := makeEvent(t, "checkout.completed", map[string]any{
		"checkoutId":    "ch_1",
		"customerEmail": "buyer@example.com",
		"amount":        2999,
	})

	for i := 0; i < 3; i++ {
		outcome := svc.ProcessEvent(context.Background(), event)
		require.NoError(t, outcome.Err)
	}

	assert.Len(t, repo.payments, 1)
	assert.Len(t, repo.users, 1)
}

func TestCheckoutCompleted_MissingCheckoutID(t *testing.T) {
	repo := newFakeRepository()
	svc := NewService(repo)

	event := makeEvent(t, "checkout.completed", map[string]any{
		"customerEmail": "buyer@example.com",
	})

	outcome := svc.ProcessEvent(context.Background(), event)
	assert.True(t, outcome.Handled)
	assert.Error(t, outcome.Err)
	assert.Empty(t, repo.payments)
}

func TestCheckoutExpired_UnknownCheckoutIsBenign(t *testing.T) {
	repo := newFakeRepository()
	svc := NewService(repo)

	event := makeEvent(t, "checkout.expired", map[string]any{
		"checkoutId": "ch_never_seen",
	})

	outcome := svc.ProcessEvent(context.Background(), event)
	assert.True(t, outcome.Handled)
	assert.NoError(t, outcome.Err)
}

func TestSubscriptionCreated_MapsPlanAndSyncsSettings(t *testing.T) {
	repo := newFakeRepository()
	svc := NewService(repo)

	event := makeEvent(t, "subscription.created", map[string]any{
		"subscriptionId": "sub_1",
		"customerEmail":  "buyer@example.com",
		"plan":           "PRO",
		"status":         "active",
		"billingCycle":   "yearly",
	})

	outcome := svc.ProcessEvent(context.Background(), event)
	require.True(t, outcome.Handled)
	require.NoError(t, outcome.Err)

	require.Len(t, repo.subs, 1)
	sub := repo.subs[0]
	assert.Equal(t, "sub_1", sub.ProviderSubscriptionID)
	assert.Equal(t, models.SubscriptionPlanPro, sub.Plan)
	assert.Equal(t, models.SubscriptionStatusActive, sub.Status)
	assert.Equal(t, models.BillingCycleYearly, sub.BillingCycle)

	user := repo.users["buyer@example.com"]
	require.NotNil(t, user)
	settings := repo.settings[user.ID]
	require.NotNil(t, settings)
	assert.Equal(t, models.SubscriptionPlanPro, settings.Plan)
}

func TestSubscriptionCreated_RedeliveryRefreshesExistingRow(t *testing.T) {
	repo := newFakeRepository()
	svc := NewService(repo)

	event := makeEvent(t, "subscription.created", map[string]any{
		"subscriptionId": "sub_1",
		"customerEmail":  "buyer@example.com",
		"plan":           "pro",
	})

	require.NoError(t, svc.ProcessEvent(context.Background(), event).Err)
	require.NoError(t, svc.ProcessEvent(context.Background(), event).Err)

	assert.Len(t, repo.subs, 1)
}

func TestSubscriptionCreated_TrialBoundariesDeriveTrialing(t *testing.T) {
	repo := newFakeRepository()
	svc := NewService(repo)

	event := makeEvent(t, "subscription.created", map[string]any{
		"subscriptionId": "sub_trial",
		"customerEmail":  "buyer@example.com",
		"plan":           "pro",
		"status":         "active",
		"trialStart":     "2026-01-01T00:00:00Z",
		"trialEnd":       "2026-01-15T00:00:00Z",
	})

	outcome := svc.ProcessEvent(context.Background(), event)
	require.NoError(t, outcome.Err)
	require.Len(t, repo.subs, 1)
	assert.Equal(t, models.SubscriptionStatusTrialing, repo.subs[0].Status)
}

func TestSubscriptionUpdated_FallsBackToMostRecent(t *testing.T) {
	repo := newFakeRepository()
	svc := NewService(repo)

	created := makeEvent(t, "subscription.created", map[string]any{
		"subscriptionId": "sub_1",
		"customerEmail":  "buyer@example.com",
		"plan":           "pro",
	})
	require.NoError(t, svc.ProcessEvent(context.Background(), created).Err)

	// Legacy event without a subscription id.
	updated := makeEvent(t, "subscription.updated", map[string]any{
		"customerEmail": "buyer@example.com",
		"status":        "past_due",
	})
	outcome := svc.ProcessEvent(context.Background(), updated)
	require.NoError(t, outcome.Err)
	assert.Equal(t, models.SubscriptionStatusPastDue, repo.subs[0].Status)
}

func TestSubscriptionUpdated_PlanChangeSyncsSettings(t *testing.T) {
	repo := newFakeRepository()
	svc := NewService(repo)

	created := makeEvent(t, "subscription.created", map[string]any{
		"subscriptionId": "sub_1",
		"customerEmail":  "buyer@example.com",
		"plan":           "pro",
	})
	require.NoError(t, svc.ProcessEvent(context.Background(), created).Err)

	updated := makeEvent(t, "subscription.updated", map[string]any{
		"subscriptionId": "sub_1",
		"customerEmail":  "buyer@example.com",
		"plan":           "business",
	})
	require.NoError(t, svc.ProcessEvent(context.Background(), updated).Err)

	user := repo.users["buyer@example.com"]
	assert.Equal(t, models.SubscriptionPlanBusiness, repo.subs[0].Plan)
	assert.Equal(t, models.SubscriptionPlanBusiness, repo.settings[user.ID].Plan)
}

func TestSubscriptionCancelled(t *testing.T) {
	repo := newFakeRepository()
	svc := NewService(repo)

	created := makeEvent(t, "subscription.created", map[string]any{
		"subscriptionId": "sub_1",
		"customerEmail":  "buyer@example.com",
		"plan":           "pro",
	})
	require.NoError(t, svc.ProcessEvent(context.Background(), created).Err)

	cancelled := makeEvent(t, "subscription.cancelled", map[string]any{
		"subscriptionId":    "sub_1",
		"customerEmail":     "buyer@example.com",
		"cancelAtPeriodEnd": true,
	})
	require.NoError(t, svc.ProcessEvent(context.Background(), cancelled).Err)

	assert.Equal(t, models.SubscriptionStatusCanceled, repo.subs[0].Status)
	assert.True(t, repo.subs[0].CancelAtPeriodEnd)
}

func TestSubscriptionRenewed_ReactivatesAndMovesPeriod(t *testing.T) {
	repo := newFakeRepository()
	svc := NewService(repo)

	created := makeEvent(t, "subscription.created", map[string]any{
		"subscriptionId": "sub_1",
		"customerEmail":  "buyer@example.com",
		"plan":           "pro",
		"status":         "past_due",
	})
	require.NoError(t, svc.ProcessEvent(context.Background(), created).Err)

	renewed := makeEvent(t, "subscription.renewed", map[string]any{
		"subscriptionId":     "sub_1",
		"customerEmail":      "buyer@example.com",
		"currentPeriodStart": "2026-02-01T00:00:00Z",
		"currentPeriodEnd":   "2026-03-01T00:00:00Z",
	})
	require.NoError(t, svc.ProcessEvent(context.Background(), renewed).Err)

	sub := repo.subs[0]
	assert.Equal(t, models.SubscriptionStatusActive, sub.Status)
	require.NotNil(t, sub.CurrentPeriodStart)
	require.NotNil(t, sub.CurrentPeriodEnd)
}

func TestLicenseActivated_SetsMaskedPrefix(t *testing.T) {
	repo := newFakeRepository()
	svc := NewService(repo)

	user := &models.User{Name: "buyer", Email: "buyer@example.com"}
	require.NoError(t, repo.CreateUser(user))

	event := makeEvent(t, "license.activated", map[string]any{
		"customerEmail": "buyer@example.com",
		"licenseKey":    "LIC-1234-5678-9012",
	})
	outcome := svc.ProcessEvent(context.Background(), event)
	require.NoError(t, outcome.Err)

	settings := repo.settings[user.ID]
	require.NotNil(t, settings)
	assert.True(t, settings.LicenseActivated)
	assert.Equal(t, "LIC-1234****", settings.LicenseKeyPrefix)
	assert.NotNil(t, settings.LicenseActivatedAt)
}

func TestLicenseActivated_UnknownUserErrors(t *testing.T) {
	repo := newFakeRepository()
	svc := NewService(repo)

	event := makeEvent(t, "license.activated", map[string]any{
		"customerEmail": "nobody@example.com",
		"licenseKey":    "LIC-1",
	})
	outcome := svc.ProcessEvent(context.Background(), event)
	assert.True(t, outcome.Handled)
	assert.Error(t, outcome.Err)
	assert.Empty(t, repo.users)
}

func TestLicenseDeactivated_ClearsFlag(t *testing.T) {
	repo := newFakeRepository()
	svc := NewService(repo)

	user := &models.User{Name: "buyer", Email: "buyer@example.com"}
	require.NoError(t, repo.CreateUser(user))

	activate := makeEvent(t, "license.activated", map[string]any{
		"customerEmail": "buyer@example.com",
		"licenseKey":    "LIC-1234-5678",
	})
	require.NoError(t, svc.ProcessEvent(context.Background(), activate).Err)

	deactivate := makeEvent(t, "license.deactivated", map[string]any{
		"customerEmail": "buyer@example.com",
	})
	require.NoError(t, svc.ProcessEvent(context.Background(), deactivate).Err)

	settings := repo.settings[user.ID]
	assert.False(t, settings.LicenseActivated)
	assert.NotNil(t, settings.LicenseDeactivatedAt)
}

func TestTransactionCompleted_LinksSubscriptionByProviderID(t *testing.T) {
	repo := newFakeRepository()
	svc := NewService(repo)

	created := makeEvent(t, "subscription.created", map[string]any{
		"subscriptionId": "sub_1",
		"customerEmail":  "buyer@example.com",
		"plan":           "pro",
	})
	require.NoError(t, svc.ProcessEvent(context.Background(), created).Err)

	tx := makeEvent(t, "transaction.completed", map[string]any{
		"transactionId":  "tx_1",
		"customerEmail":  "buyer@example.com",
		"subscriptionId": "sub_1",
		"amount":         9999,
		"currency":       "eur",
	})
	require.NoError(t, svc.ProcessEvent(context.Background(), tx).Err)

	payment := repo.payments["tx_1"]
	require.NotNil(t, payment)
	require.NotNil(t, payment.SubscriptionID)
	assert.Equal(t, repo.subs[0].ID, *payment.SubscriptionID)
	assert.Equal(t, "99.99", payment.Amount)
	assert.Equal(t, "eur", payment.Currency)
}

func TestTransactionCompleted_OneOffWithoutSubscription(t *testing.T) {
	repo := newFakeRepository()
	svc := NewService(repo)

	tx := makeEvent(t, "transaction.completed", map[string]any{
		"transactionId": "tx_solo",
		"customerEmail": "buyer@example.com",
		"amount":        500,
	})
	require.NoError(t, svc.ProcessEvent(context.Background(), tx).Err)

	payment := repo.payments["tx_solo"]
	require.NotNil(t, payment)
	assert.Nil(t, payment.SubscriptionID)
	assert.Equal(t, "5.00", payment.Amount)
}

func TestTransactionFailed_MarksPaymentFailed(t *testing.T) {
	repo := newFakeRepository()
	svc := NewService(repo)

	completed := makeEvent(t, "transaction.completed", map[string]any{
		"transactionId": "tx_1",
		"customerEmail": "buyer@example.com",
		"amount":        2999,
	})
	require.NoError(t, svc.ProcessEvent(context.Background(), completed).Err)

	failed := makeEvent(t, "transaction.failed", map[string]any{
		"transactionId": "tx_1",
		"customerEmail": "buyer@example.com",
	})
	require.NoError(t, svc.ProcessEvent(context.Background(), failed).Err)

	assert.Equal(t, models.PaymentStatusFailed, repo.payments["tx_1"].Status)
}

func TestRefundProcessed_RefundsPaymentAndCancelsSubscription(t *testing.T) {
	repo := newFakeRepository()
	svc := NewService(repo)

	created := makeEvent(t, "subscription.created", map[string]any{
		"subscriptionId": "sub_1",
		"customerEmail":  "buyer@example.com",
		"plan":           "pro",
	})
	require.NoError(t, svc.ProcessEvent(context.Background(), created).Err)

	tx := makeEvent(t, "transaction.completed", map[string]any{
		"transactionId":  "tx_1",
		"customerEmail":  "buyer@example.com",
		"subscriptionId": "sub_1",
		"amount":         2999,
	})
	require.NoError(t, svc.ProcessEvent(context.Background(), tx).Err)

	refund := makeEvent(t, "refund.processed", map[string]any{
		"transactionId":  "tx_1",
		"customerEmail":  "buyer@example.com",
		"subscriptionId": "sub_1",
	})
	require.NoError(t, svc.ProcessEvent(context.Background(), refund).Err)

	assert.Equal(t, models.PaymentStatusRefunded, repo.payments["tx_1"].Status)
	assert.Equal(t, models.SubscriptionStatusCanceled, repo.subs[0].Status)
}

func TestRefundProcessed_WithoutSubscriptionLeavesSubsAlone(t *testing.T) {
	repo := newFakeRepository()
	svc := NewService(repo)

	tx := makeEvent(t, "transaction.completed", map[string]any{
		"transactionId": "tx_1",
		"customerEmail": "buyer@example.com",
		"amount":        2999,
	})
	require.NoError(t, svc.ProcessEvent(context.Background(), tx).Err)

	refund := makeEvent(t, "refund.processed", map[string]any{
		"transactionId": "tx_1",
		"customerEmail": "buyer@example.com",
	})
	require.NoError(t, svc.ProcessEvent(context.Background(), refund).Err)

	assert.Equal(t, models.PaymentStatusRefunded, repo.payments["tx_1"].Status)
	assert.Empty(t, repo.subs)
}

func TestGetOrCreateUserByEmail_DuplicateRaceFallsBackToLookup(t *testing.T) {
	repo := newFakeRepository()
	svc := NewService(repo)

	winner := &models.User{Name: "buyer", Email: "buyer@example.com"}
	require.NoError(t, repo.CreateUser(winner))

	// Simulate losing an insert race: lookup misses, insert reports duplicate.
	repo.missNextLookup = true
	repo.createUserErr = gorm.ErrDuplicatedKey

	user, created, err := svc.GetOrCreateUserByEmail("buyer@example.com", "")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, winner.ID, user.ID)
}

func TestGetOrCreateUserByEmail_NameFallsBackToLocalPart(t *testing.T) {
	repo := newFakeRepository()
	svc := NewService(repo)

	user, created, err := svc.GetOrCreateUserByEmail("Some.Buyer@Example.com", "")
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "some.buyer", user.Name)
	assert.Equal(t, "some.buyer@example.com", user.Email)
}

func TestGetOrCreateUserByEmail_EmptyEmail(t *testing.T) {
	svc := NewService(newFakeRepository())

	_, _, err := svc.GetOrCreateUserByEmail("   ", "name")
	assert.Error(t, err)
}
