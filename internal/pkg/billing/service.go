package billing

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/launchdeck/launchdeck/app/models"
	"gorm.io/gorm"
)

// Service reconciles Creem webhook events onto local user, subscription and
// payment records. Handlers are idempotent with respect to event redelivery:
// payments upsert by external transaction id, subscriptions resolve by
// provider subscription id (falling back to the user's most recent row for
// legacy events that omit it), license flags are plain set/unset.
type Service struct {
	repo Repository
}

// NewService creates a reconciliation service from an injected repository.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// NewServiceFromDB creates a reconciliation service from a GORM DB handle.
func NewServiceFromDB(db *gorm.DB) *Service {
	return NewService(NewRepository(db))
}

// Outcome reports what happened to a single event. A reconciliation error
// never bubbles into the HTTP response; the dispatcher surfaces it through
// the activity log so operators can detect dropped effects.
type Outcome struct {
	Handled bool
	Err     error
}

// ProcessEvent routes the event to its type-specific handler. Unknown types
// return Handled=false and are acknowledged upstream without side effects so
// future provider event types never break delivery.
func (s *Service) ProcessEvent(ctx context.Context, event *Event) Outcome {
	_ = ctx
	switch EventType(event.Type) {
	case EventCheckoutCompleted:
		return Outcome{Handled: true, Err: s.handleCheckoutCompleted(event)}
	case EventCheckoutExpired:
		return Outcome{Handled: true, Err: s.handleCheckoutExpired(event)}
	case EventSubscriptionCreated:
		return Outcome{Handled: true, Err: s.handleSubscriptionCreated(event)}
	case EventSubscriptionUpdated:
		return Outcome{Handled: true, Err: s.handleSubscriptionUpdated(event)}
	case EventSubscriptionCancelled:
		return Outcome{Handled: true, Err: s.handleSubscriptionCancelled(event)}
	case EventSubscriptionRenewed:
		return Outcome{Handled: true, Err: s.handleSubscriptionRenewed(event)}
	case EventLicenseActivated:
		return Outcome{Handled: true, Err: s.handleLicenseActivated(event)}
	case EventLicenseDeactivated:
		return Outcome{Handled: true, Err: s.handleLicenseDeactivated(event)}
	case EventTransactionCompleted:
		return Outcome{Handled: true, Err: s.handleTransactionCompleted(event)}
	case EventTransactionFailed:
		return Outcome{Handled: true, Err: s.handleTransactionFailed(event)}
	case EventRefundProcessed:
		return Outcome{Handled: true, Err: s.handleRefundProcessed(event)}
	default:
		return Outcome{Handled: false}
	}
}

// GetOrCreateUserByEmail resolves an email to a local user, creating one when
// a payment event references an unknown customer. Creation marks the email
// verified (payment implies a working inbox) and tolerates the rare race of
// two concurrent deliveries for the same new address via the unique index.
func (s *Service) GetOrCreateUserByEmail(email, displayName string) (*models.User, bool, error) {
	normalized := models.NormalizeEmail(email)
	if normalized == "" {
		return nil, false, errors.New("customer email is required")
	}

	user, err := s.repo.UserByEmail(normalized)
	if err == nil {
		return user, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, err
	}

	name := strings.TrimSpace(displayName)
	if name == "" {
		name = models.EmailLocalPart(normalized)
	}

	user = &models.User{
		Name:          name,
		Email:         normalized,
		Role:          models.ROLE_USER,
		Status:        models.STATUS_ACTIVE,
		EmailVerified: true,
	}
	if err := s.repo.CreateUser(user); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			// Lost the race against a concurrent delivery; use the winner's row.
			existing, lookupErr := s.repo.UserByEmail(normalized)
			if lookupErr != nil {
				return nil, false, lookupErr
			}
			return existing, false, nil
		}
		return nil, false, err
	}

	if _, err := s.repo.EnsureUserSettings(user.ID); err != nil {
		return nil, false, err
	}
	return user, true, nil
}

func (s *Service) handleCheckoutCompleted(event *Event) error {
	payload, err := event.DecodeCheckout()
	if err != nil {
		return fmt.Errorf("decode checkout payload: %w", err)
	}
	if strings.TrimSpace(payload.CheckoutID) == "" {
		return errors.New("checkout.completed without checkoutId")
	}

	user, _, err := s.GetOrCreateUserByEmail(payload.CustomerEmail, payload.CustomerName)
	if err != nil {
		return err
	}

	payment := &models.Payment{
		UserID:        user.ID,
		Amount:        AmountFromMinorUnits(payload.Amount),
		Currency:      normalizeCurrency(payload.Currency),
		Status:        models.PaymentStatusCompleted,
		TransactionID: payload.CheckoutID,
		PaymentMethod: payload.PaymentMethod,
	}
	_, err = s.repo.UpsertPaymentByTransactionID(payment)
	return err
}

func (s *Service) handleCheckoutExpired(event *Event) error {
	payload, err := event.DecodeCheckout()
	if err != nil {
		return fmt.Errorf("decode checkout payload: %w", err)
	}

	payment, err := s.repo.PaymentByTransactionID(strings.TrimSpace(payload.CheckoutID))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// Checkout never completed locally; nothing to mark failed.
			return nil
		}
		return err
	}
	payment.Status = models.PaymentStatusFailed
	return s.repo.SavePayment(payment)
}

func (s *Service) handleSubscriptionCreated(event *Event) error {
	payload, err := event.DecodeSubscription()
	if err != nil {
		return fmt.Errorf("decode subscription payload: %w", err)
	}

	user, _, err := s.GetOrCreateUserByEmail(payload.CustomerEmail, payload.CustomerName)
	if err != nil {
		return err
	}

	status := DeriveSubscriptionStatus(payload.Status, payload.TrialStart.TimePtr() != nil, payload.TrialEnd.TimePtr() != nil)
	cancelAtPeriodEnd := payload.CancelAtPeriodEnd != nil && *payload.CancelAtPeriodEnd

	providerID := strings.TrimSpace(payload.SubscriptionID)
	if providerID != "" {
		// Redelivery: the subscription already exists, refresh it instead of
		// inserting a duplicate.
		if existing, err := s.repo.SubscriptionByProviderID(providerID); err == nil {
			existing.Plan = MapProviderPlan(payload.Plan)
			existing.Status = status
			existing.BillingCycle = NormalizeBillingCycle(payload.BillingCycle)
			existing.CurrentPeriodStart = payload.CurrentPeriodStart.TimePtr()
			existing.CurrentPeriodEnd = payload.CurrentPeriodEnd.TimePtr()
			existing.CancelAtPeriodEnd = cancelAtPeriodEnd
			return s.repo.SaveSubscription(existing)
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
	}

	sub := &models.Subscription{
		UserID:                 user.ID,
		ProviderSubscriptionID: providerID,
		Plan:                   MapProviderPlan(payload.Plan),
		Status:                 status,
		BillingCycle:           NormalizeBillingCycle(payload.BillingCycle),
		CurrentPeriodStart:     payload.CurrentPeriodStart.TimePtr(),
		CurrentPeriodEnd:       payload.CurrentPeriodEnd.TimePtr(),
		CancelAtPeriodEnd:      cancelAtPeriodEnd,
	}
	if err := s.repo.CreateSubscription(sub); err != nil {
		return err
	}
	return s.syncUserPlan(user.ID, sub.Plan)
}

func (s *Service) handleSubscriptionUpdated(event *Event) error {
	payload, err := event.DecodeSubscription()
	if err != nil {
		return fmt.Errorf("decode subscription payload: %w", err)
	}

	sub, err := s.resolveSubscription(payload)
	if err != nil {
		return err
	}

	if strings.TrimSpace(payload.Status) != "" {
		sub.Status = MapProviderStatus(payload.Status)
	}
	if t := payload.CurrentPeriodStart.TimePtr(); t != nil {
		sub.CurrentPeriodStart = t
	}
	if t := payload.CurrentPeriodEnd.TimePtr(); t != nil {
		sub.CurrentPeriodEnd = t
	}
	if payload.CancelAtPeriodEnd != nil {
		sub.CancelAtPeriodEnd = *payload.CancelAtPeriodEnd
	}
	if strings.TrimSpace(payload.Plan) != "" {
		sub.Plan = MapProviderPlan(payload.Plan)
	}
	if err := s.repo.SaveSubscription(sub); err != nil {
		return err
	}
	return s.syncUserPlan(sub.UserID, sub.Plan)
}

func (s *Service) handleSubscriptionCancelled(event *Event) error {
	payload, err := event.DecodeSubscription()
	if err != nil {
		return fmt.Errorf("decode subscription payload: %w", err)
	}

	sub, err := s.resolveSubscription(payload)
	if err != nil {
		return err
	}

	sub.Status = models.SubscriptionStatusCanceled
	sub.CancelAtPeriodEnd = payload.CancelAtPeriodEnd != nil && *payload.CancelAtPeriodEnd
	return s.repo.SaveSubscription(sub)
}

func (s *Service) handleSubscriptionRenewed(event *Event) error {
	payload, err := event.DecodeSubscription()
	if err != nil {
		return fmt.Errorf("decode subscription payload: %w", err)
	}

	sub, err := s.resolveSubscription(payload)
	if err != nil {
		return err
	}

	sub.Status = models.SubscriptionStatusActive
	if t := payload.CurrentPeriodStart.TimePtr(); t != nil {
		sub.CurrentPeriodStart = t
	}
	if t := payload.CurrentPeriodEnd.TimePtr(); t != nil {
		sub.CurrentPeriodEnd = t
	}
	return s.repo.SaveSubscription(sub)
}

func (s *Service) handleLicenseActivated(event *Event) error {
	payload, err := event.DecodeLicense()
	if err != nil {
		return fmt.Errorf("decode license payload: %w", err)
	}

	settings, err := s.settingsForEmail(payload.CustomerEmail)
	if err != nil {
		return err
	}
	settings.ActivateLicense(MaskLicenseKey(payload.LicenseKey))
	return s.repo.SaveUserSettings(settings)
}

func (s *Service) handleLicenseDeactivated(event *Event) error {
	payload, err := event.DecodeLicense()
	if err != nil {
		return fmt.Errorf("decode license payload: %w", err)
	}

	settings, err := s.settingsForEmail(payload.CustomerEmail)
	if err != nil {
		return err
	}
	settings.DeactivateLicense()
	return s.repo.SaveUserSettings(settings)
}

func (s *Service) handleTransactionCompleted(event *Event) error {
	payload, err := event.DecodeTransaction()
	if err != nil {
		return fmt.Errorf("decode transaction payload: %w", err)
	}
	if strings.TrimSpace(payload.TransactionID) == "" {
		return errors.New("transaction.completed without transactionId")
	}

	user, _, err := s.GetOrCreateUserByEmail(payload.CustomerEmail, payload.CustomerName)
	if err != nil {
		return err
	}

	// Link to a subscription when one can be resolved; payments without a
	// subscription (one-off purchases) stay unlinked.
	var subscriptionID *uint
	if sub, err := s.repo.SubscriptionByProviderID(strings.TrimSpace(payload.SubscriptionID)); err == nil {
		subscriptionID = &sub.ID
	} else if errors.Is(err, gorm.ErrRecordNotFound) {
		if sub, err := s.repo.MostRecentSubscriptionByUser(user.ID); err == nil {
			subscriptionID = &sub.ID
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
	} else {
		return err
	}

	payment := &models.Payment{
		UserID:         user.ID,
		SubscriptionID: subscriptionID,
		Amount:         AmountFromMinorUnits(payload.Amount),
		Currency:       normalizeCurrency(payload.Currency),
		Status:         models.PaymentStatusCompleted,
		TransactionID:  strings.TrimSpace(payload.TransactionID),
		PaymentMethod:  payload.PaymentMethod,
	}
	_, err = s.repo.UpsertPaymentByTransactionID(payment)
	return err
}

func (s *Service) handleTransactionFailed(event *Event) error {
	payload, err := event.DecodeTransaction()
	if err != nil {
		return fmt.Errorf("decode transaction payload: %w", err)
	}

	payment, err := s.resolvePayment(payload)
	if err != nil {
		return err
	}
	payment.Status = models.PaymentStatusFailed
	return s.repo.SavePayment(payment)
}

func (s *Service) handleRefundProcessed(event *Event) error {
	payload, err := event.DecodeTransaction()
	if err != nil {
		return fmt.Errorf("decode transaction payload: %w", err)
	}

	payment, err := s.resolvePayment(payload)
	if err != nil {
		return err
	}
	payment.Status = models.PaymentStatusRefunded
	if err := s.repo.SavePayment(payment); err != nil {
		return err
	}

	// A refund tied to a subscription also cancels it.
	if strings.TrimSpace(payload.SubscriptionID) == "" || models.NormalizeEmail(payload.CustomerEmail) == "" {
		return nil
	}
	sub, err := s.repo.SubscriptionByProviderID(strings.TrimSpace(payload.SubscriptionID))
	if errors.Is(err, gorm.ErrRecordNotFound) {
		user, lookupErr := s.repo.UserByEmail(payload.CustomerEmail)
		if lookupErr != nil {
			return lookupErr
		}
		sub, err = s.repo.MostRecentSubscriptionByUser(user.ID)
	}
	if err != nil {
		return err
	}
	sub.Status = models.SubscriptionStatusCanceled
	return s.repo.SaveSubscription(sub)
}

// resolveSubscription targets the row for a lifecycle update: by provider
// subscription id when the event carries one, otherwise the customer's most
// recent subscription (documented last-write-wins fallback).
func (s *Service) resolveSubscription(payload *SubscriptionPayload) (*models.Subscription, error) {
	if providerID := strings.TrimSpace(payload.SubscriptionID); providerID != "" {
		sub, err := s.repo.SubscriptionByProviderID(providerID)
		if err == nil {
			return sub, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
	}

	user, err := s.repo.UserByEmail(payload.CustomerEmail)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("no user for email %q", models.NormalizeEmail(payload.CustomerEmail))
		}
		return nil, err
	}
	sub, err := s.repo.MostRecentSubscriptionByUser(user.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("no subscription for user %d", user.ID)
		}
		return nil, err
	}
	return sub, nil
}

// resolvePayment targets a payment by transaction id first, falling back to
// the customer's most recent payment when the event omits the id.
func (s *Service) resolvePayment(payload *TransactionPayload) (*models.Payment, error) {
	if txID := strings.TrimSpace(payload.TransactionID); txID != "" {
		payment, err := s.repo.PaymentByTransactionID(txID)
		if err == nil {
			return payment, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
	}

	user, err := s.repo.UserByEmail(payload.CustomerEmail)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("no user for email %q", models.NormalizeEmail(payload.CustomerEmail))
		}
		return nil, err
	}
	payment, err := s.repo.MostRecentPaymentByUser(user.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("no payment for user %d", user.ID)
		}
		return nil, err
	}
	return payment, nil
}

// settingsForEmail resolves an existing user's settings row; license events
// never create users.
func (s *Service) settingsForEmail(email string) (*models.UserSettings, error) {
	user, err := s.repo.UserByEmail(email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("no user for email %q", models.NormalizeEmail(email))
		}
		return nil, err
	}
	return s.repo.EnsureUserSettings(user.ID)
}

// syncUserPlan mirrors the subscription plan into the user's settings so
// entitlements pick it up without a join.
func (s *Service) syncUserPlan(userID uint, plan string) error {
	settings, err := s.repo.EnsureUserSettings(userID)
	if err != nil {
		return err
	}
	if settings.Plan == plan {
		return nil
	}
	settings.Plan = plan
	return s.repo.SaveUserSettings(settings)
}

func normalizeCurrency(currency string) string {
	c := strings.ToLower(strings.TrimSpace(currency))
	if c == "" {
		return "usd"
	}
	return c
}
