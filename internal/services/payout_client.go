// internal/services/payout_client.go
package services

import (
	"fmt"

	"github.com/stripe/stripe-go/v74"
	"github.com/stripe/stripe-go/v74/account"
	"github.com/stripe/stripe-go/v74/transfer"

	"github.com/modelmint/modelmint-backend/internal/config"
)

type AccountStatus struct {
	ChargesEnabled   bool `json:"charges_enabled"`
	PayoutsEnabled   bool `json:"payouts_enabled"`
	DetailsSubmitted bool `json:"details_submitted"`
}

// PayoutProvider is the payout leg of the payment processor: creating
// transfers to connected accounts and reading onboarding status.
type PayoutProvider interface {
	CreateTransfer(amountCents int64, destinationAccountID, transferGroup string) (string, error)
	RetrieveAccountStatus(accountID string) (*AccountStatus, error)
}

type stripePayoutClient struct{}

func NewStripePayoutClient(cfg *config.Config) PayoutProvider {
	stripe.Key = cfg.Payment.StripeSecretKey
	return &stripePayoutClient{}
}

func (c *stripePayoutClient) CreateTransfer(amountCents int64, destinationAccountID, transferGroup string) (string, error) {
	params := &stripe.TransferParams{
		Amount:        stripe.Int64(amountCents),
		Currency:      stripe.String(string(stripe.CurrencyUSD)),
		Destination:   stripe.String(destinationAccountID),
		TransferGroup: stripe.String(transferGroup),
	}

	t, err := transfer.New(params)
	if err != nil {
		return "", fmt.Errorf("failed to create transfer: %w", err)
	}
	return t.ID, nil
}

func (c *stripePayoutClient) RetrieveAccountStatus(accountID string) (*AccountStatus, error) {
	a, err := account.GetByID(accountID, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve account: %w", err)
	}

	return &AccountStatus{
		ChargesEnabled:   a.ChargesEnabled,
		PayoutsEnabled:   a.PayoutsEnabled,
		DetailsSubmitted: a.DetailsSubmitted,
	}, nil
}
