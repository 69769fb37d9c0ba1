package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"

	"github.com/okhunjon/sportpay-bot/internal/config"
	"github.com/okhunjon/sportpay-bot/types"
)

const paymeSubscribeAPI = "https://checkout.paycom.uz/api"

// PaymeClient talks to the Payme Subscribe API (JSON-RPC over HTTP with
// an X-Auth header). Receipt amounts are tiyin on the wire, matching our
// storage unit.
type PaymeClient struct {
	cfg     config.Payme
	baseURL string
	http    *http.Client

	nextID int64
}

func NewPaymeClient(cfg config.Payme) *PaymeClient {
	return &PaymeClient{cfg: cfg, baseURL: paymeSubscribeAPI, http: newHTTPClient()}
}

type paymeError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type paymeResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *paymeError     `json:"error"`
}

func (p *PaymeClient) call(ctx context.Context, method string, params any, result any) error {
	p.nextID++
	headers := map[string]string{
		"X-Auth": p.cfg.SubsAPIID + ":" + p.cfg.SubsAPIKey,
	}
	var resp paymeResponse
	err := postJSON(ctx, p.http, p.baseURL, headers, map[string]any{
		"id":     p.nextID,
		"method": method,
		"params": params,
	}, &resp)
	if err != nil {
		return err
	}
	if resp.Error != nil {
		return fmt.Errorf("payme %s: %s (code %d)", method, resp.Error.Message, resp.Error.Code)
	}
	if result == nil {
		return nil
	}
	return json.Unmarshal(resp.Result, result)
}

type paymeCard struct {
	Number string `json:"number"`
	Expire string `json:"expire"`
	Token  string `json:"token"`
	Verify bool   `json:"verify"`
}

// CreateCardToken tokenizes a card for recurring use. The token is not
// chargeable until verified.
func (p *PaymeClient) CreateCardToken(ctx context.Context, cardNumber, expireDate string) (token string, err error) {
	var out struct {
		Card paymeCard `json:"card"`
	}
	err = p.call(ctx, "cards.create", map[string]any{
		"card": map[string]string{"number": digitsOnly(cardNumber), "expire": digitsOnly(expireDate)},
		"save": true,
	}, &out)
	if err != nil {
		return "", err
	}
	return out.Card.Token, nil
}

// RequestVerifyCode asks Payme to text the cardholder and returns the
// masked phone number it was sent to.
func (p *PaymeClient) RequestVerifyCode(ctx context.Context, token string) (phone string, err error) {
	var out struct {
		Sent  bool   `json:"sent"`
		Phone string `json:"phone"`
	}
	err = p.call(ctx, "cards.get_verify_code", map[string]any{"token": token}, &out)
	if err != nil {
		return "", err
	}
	if !out.Sent {
		return "", fmt.Errorf("payme did not send a verification code")
	}
	return out.Phone, nil
}

// VerifyCardToken confirms the SMS code and returns the masked card
// number.
func (p *PaymeClient) VerifyCardToken(ctx context.Context, token string, code int) (maskedNumber string, err error) {
	var out struct {
		Card paymeCard `json:"card"`
	}
	err = p.call(ctx, "cards.verify", map[string]any{"token": token, "code": strconv.Itoa(code)}, &out)
	if err != nil {
		return "", err
	}
	if !out.Card.Verify {
		return "", fmt.Errorf("payme card not verified")
	}
	return out.Card.Number, nil
}

// Charge creates a receipt for the amount and pays it with the stored
// token.
func (p *PaymeClient) Charge(ctx context.Context, token string, amountTiyin int64, correlationID string) (types.ChargeResult, error) {
	var created struct {
		Receipt struct {
			ID string `json:"_id"`
		} `json:"receipt"`
	}
	err := p.call(ctx, "receipts.create", map[string]any{
		"amount": amountTiyin,
		"account": map[string]string{
			"order_id": correlationID,
		},
	}, &created)
	if err != nil {
		return types.ChargeResult{}, err
	}

	var paid struct {
		Receipt struct {
			ID    string `json:"_id"`
			State int    `json:"state"`
		} `json:"receipt"`
	}
	err = p.call(ctx, "receipts.pay", map[string]any{
		"id":    created.Receipt.ID,
		"token": token,
	}, &paid)
	if err != nil {
		// The receipt stays unpaid on the Payme side; it expires there.
		log.Printf("payme receipt %s pay failed: %v", created.Receipt.ID, err)
		return types.ChargeResult{}, err
	}

	// State 4 is a settled receipt.
	if paid.Receipt.State != 4 {
		return types.ChargeResult{ErrorCode: paid.Receipt.State}, nil
	}
	return types.ChargeResult{Success: true, ReceiptID: "payme-" + paid.Receipt.ID}, nil
}

// RemoveToken revokes a stored token.
func (p *PaymeClient) RemoveToken(ctx context.Context, token string) error {
	var out struct {
		Success bool `json:"success"`
	}
	if err := p.call(ctx, "cards.remove", map[string]any{"token": token}, &out); err != nil {
		return err
	}
	if !out.Success {
		return fmt.Errorf("payme declined token removal")
	}
	return nil
}
