package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
)

func (s *Server) registerBillingRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "createCheckout",
		Method:      http.MethodPost,
		Path:        apiPrefix + "/billing/checkout",
		Summary:     "Start subscription checkout",
		Description: "Returns a hosted checkout URL for the monthly subscription",
		Tags:        []string{"Billing"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleCreateCheckout)

	huma.Register(s.api, huma.Operation{
		OperationID: "cancelSubscription",
		Method:      http.MethodPost,
		Path:        apiPrefix + "/billing/cancel",
		Summary:     "Cancel subscription",
		Tags:        []string{"Billing"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleCancelSubscription)

	huma.Register(s.api, huma.Operation{
		OperationID: "getSubscriptionStatus",
		Method:      http.MethodGet,
		Path:        apiPrefix + "/billing/status",
		Summary:     "Subscription status",
		Tags:        []string{"Billing"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleGetSubscriptionStatus)

	huma.Register(s.api, huma.Operation{
		OperationID:  "billingWebhook",
		Method:       http.MethodPost,
		Path:         apiPrefix + "/billing/webhook",
		Summary:      "Payment provider webhook",
		Description:  "Receives signed subscription events from the payment provider",
		Tags:         []string{"Billing"},
		MaxBodyBytes: 1 << 20,
	}, s.handleBillingWebhook)
}

// === DTOs ===

// CheckoutOutput wraps a checkout URL for Huma.
type CheckoutOutput struct {
	Body struct {
		URL string `json:"url" doc:"Hosted checkout page"`
	}
}

// SubscriptionStatusOutput wraps a subscription status for Huma.
type SubscriptionStatusOutput struct {
	Body struct {
		Status   string `json:"status" doc:"inactive, trialing, active or canceled"`
		IsActive bool   `json:"is_active" doc:"Whether paywalled actions are allowed"`
	}
}

// WebhookInput carries the raw signed payload.
type WebhookInput struct {
	Signature string `header:"Stripe-Signature" doc:"Provider signature header"`
	RawBody   []byte
}

// WebhookOutput acknowledges a webhook.
type WebhookOutput struct {
	Body struct {
		Received bool `json:"received" doc:"Always true when accepted"`
	}
}

// === Handlers ===

func (s *Server) handleCreateCheckout(ctx context.Context, _ *struct{}) (*CheckoutOutput, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}
	res, err := s.services.Billing.CreateCheckout(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := &CheckoutOutput{}
	out.Body.URL = res.URL
	return out, nil
}

func (s *Server) handleCancelSubscription(ctx context.Context, _ *struct{}) (*SubscriptionStatusOutput, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}
	res, err := s.services.Billing.CancelSubscription(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := &SubscriptionStatusOutput{}
	out.Body.Status = string(res.Status)
	out.Body.IsActive = res.IsActive
	return out, nil
}

func (s *Server) handleGetSubscriptionStatus(ctx context.Context, _ *struct{}) (*SubscriptionStatusOutput, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}
	res, err := s.services.Billing.Status(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := &SubscriptionStatusOutput{}
	out.Body.Status = string(res.Status)
	out.Body.IsActive = res.IsActive
	return out, nil
}

func (s *Server) handleBillingWebhook(ctx context.Context, input *WebhookInput) (*WebhookOutput, error) {
	if err := s.services.Billing.HandleWebhook(ctx, input.RawBody, input.Signature); err != nil {
		return nil, err
	}
	out := &WebhookOutput{}
	out.Body.Received = true
	return out, nil
}
