/**
 * @description
 * Payment document providers. GatewayClient asks an external billing gateway
 * for a boleto/slip and payment link; LocalProvider renders a PDF slip on disk.
 */
package paymentdoc

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/transfa/collections-service/internal/domain"
)

type gatewayRequest struct {
	Reference string `json:"reference"`
	ClientID  string `json:"client_id"`
	Amount    string `json:"amount"`
	DueDate   string `json:"due_date"`
}

type gatewayAnswer struct {
	DocumentRef string `json:"document_ref"`
	PaymentLink string `json:"payment_link"`
}

// GatewayClient creates payment documents through the billing gateway API.
type GatewayClient struct {
	client *resty.Client
}

// NewGatewayClient creates a GatewayClient for baseURL.
func NewGatewayClient(baseURL, apiKey string) *GatewayClient {
	c := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(15*time.Second).
		SetHeader("Content-Type", "application/json")
	if apiKey != "" {
		c.SetHeader("X-API-Key", apiKey)
	}
	return &GatewayClient{client: c}
}

// Generate registers the charge with the gateway.
func (g *GatewayClient) Generate(ctx context.Context, charge domain.Charge) (string, string, error) {
	req := g.client.R().
		SetContext(ctx).
		SetBody(gatewayRequest{
			Reference: charge.ID,
			ClientID:  charge.ClientID,
			Amount:    charge.Amount.StringFixed(2),
			DueDate:   charge.DueDate.Format(domain.DateLayout),
		})

	resp, err := req.Post("/v1/payment-documents")
	if err != nil {
		return "", "", err
	}

	switch resp.StatusCode() {
	case http.StatusOK, http.StatusCreated:
		var answer gatewayAnswer
		if err := json.Unmarshal(resp.Body(), &answer); err != nil {
			return "", "", fmt.Errorf("decode gateway response: %w", err)
		}
		if answer.DocumentRef == "" {
			return "", "", fmt.Errorf("gateway returned no document reference")
		}
		return answer.DocumentRef, answer.PaymentLink, nil
	default:
		return "", "", fmt.Errorf("payment gateway request status: %d", resp.StatusCode())
	}
}
