package clients

import (
	"context"
	"errors"

	"github.com/sharifboss/bookhaven/internal/checkout"
	"github.com/sharifboss/bookhaven/internal/order"
)

// PaymentClient talks to the external payment provider. It covers both sides
// of a charge: creating an intent for a server-computed amount, and confirming
// that intent with a tokenized payment method.
type PaymentClient struct{ c *Client }

func NewPaymentClient(c *Client) *PaymentClient { return &PaymentClient{c: c} }

type createIntentRequest struct {
	AmountCents int64  `json:"amountCents"`
	Currency    string `json:"currency"`
}

type createIntentResponse struct {
	ID           string `json:"id"`
	ClientSecret string `json:"clientSecret"`
}

// CreateIntent implements order.IntentCreator.
func (pc *PaymentClient) CreateIntent(ctx context.Context, amountCents int64, currency string) (order.Intent, error) {
	var out createIntentResponse
	err := pc.c.PostJSON(ctx, "/v1/payment_intents", createIntentRequest{
		AmountCents: amountCents,
		Currency:    currency,
	}, &out)
	if err != nil {
		return order.Intent{}, err
	}
	return order.Intent{ID: out.ID, ClientSecret: out.ClientSecret}, nil
}

type confirmRequest struct {
	ClientSecret string `json:"clientSecret"`
	CardToken    string `json:"cardToken"`
	Name         string `json:"name"`
	Email        string `json:"email"`
}

type confirmResponse struct {
	PaymentID string `json:"paymentId"`
	Status    string `json:"status"`
}

// Confirm implements checkout.Provider. A declined charge surfaces as
// checkout.ErrPaymentDeclined so the flow can distinguish it from transport
// failures.
func (pc *PaymentClient) Confirm(ctx context.Context, intent checkout.PaymentIntent, card checkout.Card) (checkout.Confirmation, error) {
	var out confirmResponse
	err := pc.c.PostJSON(ctx, "/v1/payment_intents/confirm", confirmRequest{
		ClientSecret: intent.ClientSecret,
		CardToken:    card.Token,
		Name:         card.Name,
		Email:        card.Email,
	}, &out)
	if err != nil {
		var ue *UpstreamError
		if errors.As(err, &ue) && ue.Status == 402 {
			return checkout.Confirmation{}, checkout.ErrPaymentDeclined
		}
		return checkout.Confirmation{}, err
	}
	if out.Status != "" && out.Status != "succeeded" {
		return checkout.Confirmation{}, checkout.ErrPaymentDeclined
	}
	return checkout.Confirmation{PaymentID: out.PaymentID}, nil
}
