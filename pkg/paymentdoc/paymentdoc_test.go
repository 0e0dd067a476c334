package paymentdoc

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/transfa/collections-service/internal/domain"
)

func testCharge() domain.Charge {
	return domain.Charge{
		ID:       "ch-1",
		ClientID: "cl-1",
		Amount:   decimal.RequireFromString("2500"),
		DueDate:  time.Date(2026, 9, 24, 0, 0, 0, 0, time.UTC),
		Status:   domain.ChargeStatusPending,
		Notes:    "installment 1/3",
	}
}

func TestGatewayClientGenerate(t *testing.T) {
	var got gatewayRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/payment-documents", r.URL.Path)
		assert.Equal(t, "key-123", r.Header.Get("X-API-Key"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"document_ref":"boleto-991","payment_link":"https://gw.example.com/p/991"}`))
	}))
	defer srv.Close()

	doc, link, err := NewGatewayClient(srv.URL+"/", "key-123").Generate(context.Background(), testCharge())
	require.NoError(t, err)
	assert.Equal(t, "boleto-991", doc)
	assert.Equal(t, "https://gw.example.com/p/991", link)
	assert.Equal(t, gatewayRequest{Reference: "ch-1", ClientID: "cl-1", Amount: "2500.00", DueDate: "2026-09-24"}, got)
}

func TestGatewayClientErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-API-Key") == "" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(`{"payment_link":"x"}`))
	}))
	defer srv.Close()

	_, _, err := NewGatewayClient(srv.URL, "").Generate(context.Background(), testCharge())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")

	_, _, err = NewGatewayClient(srv.URL, "k").Generate(context.Background(), testCharge())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no document reference")
}

func TestLocalProviderWritesSlip(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "slips")
	p := NewLocalProvider(dir, "https://pay.example.com/")

	doc, link, err := p.Generate(context.Background(), testCharge())
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "charge_ch-1.pdf"), doc)
	assert.Equal(t, "https://pay.example.com/pay/ch-1", link)

	data, err := os.ReadFile(doc)
	require.NoError(t, err)
	assert.True(t, len(data) > 4 && string(data[:4]) == "%PDF")
}

func TestLocalProviderWithoutLinkBase(t *testing.T) {
	p := NewLocalProvider(t.TempDir(), "")
	_, link, err := p.Generate(context.Background(), testCharge())
	require.NoError(t, err)
	assert.Empty(t, link)
}
