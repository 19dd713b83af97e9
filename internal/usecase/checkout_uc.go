package usecase

import (
	"context"

	"github.com/rs/zerolog"

	"qarzdaftari/internal/domain"
	"qarzdaftari/internal/domain/model"
	"qarzdaftari/internal/domain/ports/adapter"
	"qarzdaftari/internal/domain/ports/repository"
	"qarzdaftari/internal/infra/logging"
)

// Compile-time check
var _ CheckoutUseCase = (*checkoutUC)(nil)

// PaymentIntent is what the purchasing UI gets back from initiate-payment.
type PaymentIntent struct {
	PaymentURL      string             `json:"paymentUrl"`
	Provider        model.ProviderName `json:"provider"`
	Amount          int64              `json:"amount"`
	Plan            model.PlanType     `json:"planType"`
	Cycle           model.BillingCycle `json:"billingCycle"`
	DiscountPercent int                `json:"discount"`
	Months          int                `json:"months"`
}

type CheckoutUseCase interface {
	// Initiate validates the purchase request and returns the provider
	// redirect URL with a fresh transaction identifier embedded.
	Initiate(ctx context.Context, userID, plan, provider, cycle string) (*PaymentIntent, error)
	// History returns the user's append-only payment and subscription trail.
	History(ctx context.Context, userID string) ([]*model.PaymentTransaction, []*model.Subscription, error)
}

type checkoutUC struct {
	users     repository.UserRepository
	payments  repository.PaymentRepository
	subs      repository.SubscriptionRepository
	providers map[model.ProviderName]adapter.PaymentProvider
	pricing   model.Pricing
	log       *zerolog.Logger
}

func NewCheckoutUseCase(users repository.UserRepository, payments repository.PaymentRepository, subs repository.SubscriptionRepository, providers []adapter.PaymentProvider, pricing model.Pricing, logger *zerolog.Logger) *checkoutUC {
	byName := make(map[model.ProviderName]adapter.PaymentProvider, len(providers))
	for _, p := range providers {
		byName[p.Name()] = p
	}
	l := logger.With().Str("component", "CheckoutUC").Logger()
	return &checkoutUC{users: users, payments: payments, subs: subs, providers: byName, pricing: pricing, log: &l}
}

func (u *checkoutUC) Initiate(ctx context.Context, userID, planStr, providerStr, cycleStr string) (*PaymentIntent, error) {
	plan, err := model.ParsePlanType(planStr)
	if err != nil {
		return nil, err
	}
	cycle, err := model.ParseBillingCycle(cycleStr)
	if err != nil {
		return nil, err
	}
	provider, ok := u.providers[model.ProviderName(providerStr)]
	if !ok {
		return nil, domain.ErrInvalidArgument
	}

	user, err := u.users.FindByID(ctx, repository.NoTX, userID)
	if err != nil {
		return nil, err
	}
	if plan.IsDowngradeFrom(user.Plan) {
		return nil, domain.ErrDowngradeNotAllowed
	}

	amount, err := u.pricing.Quote(plan, cycle)
	if err != nil {
		return nil, err
	}

	txid := model.NewTransactionID(userID, plan, cycle)
	url := provider.PaymentURL(txid, amount)

	logging.With(ctx, u.log).Info().Str("plan", string(plan)).
		Str("cycle", string(cycle)).Str("provider", providerStr).Int64("amount", amount).
		Msg("payment initiated")

	return &PaymentIntent{
		PaymentURL:      url,
		Provider:        provider.Name(),
		Amount:          amount,
		Plan:            plan,
		Cycle:           cycle,
		DiscountPercent: cycle.DiscountPercent(),
		Months:          cycle.Months(),
	}, nil
}

func (u *checkoutUC) History(ctx context.Context, userID string) ([]*model.PaymentTransaction, []*model.Subscription, error) {
	payments, err := u.payments.ListByUser(ctx, repository.NoTX, userID, 100)
	if err != nil {
		return nil, nil, err
	}
	subs, err := u.subs.ListByUser(ctx, repository.NoTX, userID)
	if err != nil {
		return nil, nil, err
	}
	return payments, subs, nil
}
