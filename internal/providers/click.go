package providers

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/okhunjon/sportpay-bot/internal/config"
	"github.com/okhunjon/sportpay-bot/internal/signature"
	"github.com/okhunjon/sportpay-bot/types"
)

const clickMerchantAPI = "https://api.click.uz/v2/merchant"

// ClickClient talks to the Click merchant API. Auth is a per-request MD5
// digest header over (merchant user id, unix time, secret).
type ClickClient struct {
	cfg     config.Click
	baseURL string
	http    *http.Client
}

func NewClickClient(cfg config.Click) *ClickClient {
	return &ClickClient{cfg: cfg, baseURL: clickMerchantAPI, http: newHTTPClient()}
}

func (c *ClickClient) headers() map[string]string {
	return map[string]string{
		"Auth": signature.AuthHeader(c.cfg.MerchantUserID, c.cfg.Secret, time.Now()),
	}
}

// CreateCardToken starts tokenization for a card and triggers the SMS to
// the cardholder. Returns the temporary token and the partly-masked phone
// number Click sent the code to.
func (c *ClickClient) CreateCardToken(ctx context.Context, cardNumber, expireDate string) (token, phone string, err error) {
	cardNumber = digitsOnly(cardNumber)
	if len(cardNumber) < 16 || len(cardNumber) > 19 {
		return "", "", fmt.Errorf("card number must be 16-19 digits, got %d", len(cardNumber))
	}
	expireDate = digitsOnly(expireDate)
	if len(expireDate) == 6 {
		expireDate = expireDate[:4]
	}
	if len(expireDate) != 4 {
		return "", "", fmt.Errorf("expire date must be MMYY")
	}

	var out struct {
		ErrorCode int    `json:"error_code"`
		ErrorNote string `json:"error_note"`
		CardToken string `json:"card_token"`
		Phone     string `json:"phone_number"`
	}
	err = postJSON(ctx, c.http, c.baseURL+"/card_token/request", c.headers(), map[string]any{
		"service_id":  c.cfg.ServiceID,
		"card_number": cardNumber,
		"expire_date": expireDate,
		"temporary":   false,
	}, &out)
	if err != nil {
		return "", "", err
	}
	if out.ErrorCode != 0 {
		return "", "", fmt.Errorf("click card_token/request: %s (code %d)", out.ErrorNote, out.ErrorCode)
	}
	return out.CardToken, out.Phone, nil
}

// VerifyCardToken confirms the SMS code and returns the masked card
// number Click associates with the token.
func (c *ClickClient) VerifyCardToken(ctx context.Context, token string, smsCode int) (maskedNumber string, err error) {
	var out struct {
		ErrorCode  int    `json:"error_code"`
		ErrorNote  string `json:"error_note"`
		CardNumber string `json:"card_number"`
	}
	err = postJSON(ctx, c.http, c.baseURL+"/card_token/verify", c.headers(), map[string]any{
		"service_id": c.cfg.ServiceID,
		"card_token": token,
		"sms_code":   smsCode,
	}, &out)
	if err != nil {
		return "", err
	}
	if out.ErrorCode != 0 {
		return "", fmt.Errorf("click card_token/verify: %s (code %d)", out.ErrorNote, out.ErrorCode)
	}
	return out.CardNumber, nil
}

// Charge pays the plan price from a stored token.
func (c *ClickClient) Charge(ctx context.Context, token string, amountTiyin int64, correlationID string) (types.ChargeResult, error) {
	var out struct {
		ErrorCode    int    `json:"error_code"`
		ErrorNote    string `json:"error_note"`
		PaymentID    int64  `json:"payment_id"`
		ClickTransID int64  `json:"click_trans_id"`
	}
	err := postJSON(ctx, c.http, c.baseURL+"/card_token/payment", c.headers(), map[string]any{
		"service_id":            c.cfg.ServiceID,
		"card_token":            token,
		"amount":                formatSomAmount(amountTiyin),
		"transaction_parameter": correlationID,
	}, &out)
	if err != nil {
		return types.ChargeResult{}, err
	}
	if out.ErrorCode != 0 {
		log.Printf("click charge rejected: code=%d note=%s", out.ErrorCode, out.ErrorNote)
		return types.ChargeResult{ErrorCode: out.ErrorCode}, nil
	}
	receipt := out.PaymentID
	if receipt == 0 {
		receipt = out.ClickTransID
	}
	return types.ChargeResult{Success: true, ReceiptID: fmt.Sprintf("click-%d", receipt)}, nil
}

// RemoveToken revokes a stored token on the Click side.
func (c *ClickClient) RemoveToken(ctx context.Context, token string) error {
	url := fmt.Sprintf("%s/card_token/%s/%s", c.baseURL, c.cfg.ServiceID, token)
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Auth", signature.AuthHeader(c.cfg.MerchantUserID, c.cfg.Secret, time.Now()))

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("click token delete returned %s", resp.Status)
	}
	return nil
}

func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// formatSomAmount renders tiyin as the decimal so'm string the Click API
// expects.
func formatSomAmount(tiyin int64) string {
	return fmt.Sprintf("%d.%02d", tiyin/100, tiyin%100)
}
