package providers

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/okhunjon/sportpay-bot/internal/config"
	"github.com/okhunjon/sportpay-bot/types"
)

// UzcardClient talks to the Uzcard aggregator API (basic auth). Its
// payments come back with an OFD fiscal QR link that we forward to the
// subscriber.
type UzcardClient struct {
	cfg  config.Uzcard
	http *http.Client
}

func NewUzcardClient(cfg config.Uzcard) *UzcardClient {
	return &UzcardClient{cfg: cfg, http: newHTTPClient()}
}

func (u *UzcardClient) headers() map[string]string {
	return map[string]string{
		"Authorization": "Basic " + basicAuth(u.cfg.Login, u.cfg.Password),
	}
}

type uzcardEnvelope struct {
	ErrorCode    int    `json:"errorCode"`
	ErrorMessage string `json:"errorMessage"`
}

// CreateUserCard registers a card and triggers the confirmation SMS.
// Returns the session id used to confirm.
func (u *UzcardClient) CreateUserCard(ctx context.Context, cardNumber, expireDate string) (session string, err error) {
	var out struct {
		uzcardEnvelope
		Result struct {
			Session string `json:"session"`
		} `json:"result"`
	}
	err = postJSON(ctx, u.http, u.cfg.BaseURL+"/UserCard/createUserCard", u.headers(), map[string]any{
		"cardNumber": digitsOnly(cardNumber),
		"expireDate": digitsOnly(expireDate),
	}, &out)
	if err != nil {
		return "", err
	}
	if out.ErrorCode != 0 {
		return "", fmt.Errorf("uzcard createUserCard: %s (code %d)", out.ErrorMessage, out.ErrorCode)
	}
	return out.Result.Session, nil
}

// ConfirmUserCard completes registration with the SMS code and returns
// the chargeable card id plus the masked number.
func (u *UzcardClient) ConfirmUserCard(ctx context.Context, session, otp string) (cardID, maskedNumber string, err error) {
	var out struct {
		uzcardEnvelope
		Result struct {
			CardID string `json:"cardId"`
			Number string `json:"number"`
		} `json:"result"`
	}
	err = postJSON(ctx, u.http, u.cfg.BaseURL+"/UserCard/confirmUserCardCreate", u.headers(), map[string]any{
		"session": session,
		"otp":     otp,
	}, &out)
	if err != nil {
		return "", "", err
	}
	if out.ErrorCode != 0 {
		return "", "", fmt.Errorf("uzcard confirmUserCardCreate: %s (code %d)", out.ErrorMessage, out.ErrorCode)
	}
	return out.Result.CardID, out.Result.Number, nil
}

// Charge debits a registered card. Amounts are tiyin on this API.
func (u *UzcardClient) Charge(ctx context.Context, token string, amountTiyin int64, correlationID string) (types.ChargeResult, error) {
	var out struct {
		uzcardEnvelope
		Result struct {
			UtrnNo    string `json:"utrnNo"`
			QRCodeURL string `json:"qrCodeUrl"`
		} `json:"result"`
	}
	err := postJSON(ctx, u.http, u.cfg.BaseURL+"/Payment/payment", u.headers(), map[string]any{
		"cardId": token,
		"amount": amountTiyin,
		"extId":  correlationID,
	}, &out)
	if err != nil {
		return types.ChargeResult{}, err
	}
	if out.ErrorCode != 0 {
		log.Printf("uzcard charge rejected: code=%d message=%s", out.ErrorCode, out.ErrorMessage)
		return types.ChargeResult{ErrorCode: out.ErrorCode}, nil
	}
	return types.ChargeResult{
		Success:   true,
		ReceiptID: "uzcard-" + out.Result.UtrnNo,
		QRCodeURL: out.Result.QRCodeURL,
	}, nil
}

// RemoveToken deletes a registered card.
func (u *UzcardClient) RemoveToken(ctx context.Context, token string) error {
	var out uzcardEnvelope
	err := postJSON(ctx, u.http, u.cfg.BaseURL+"/UserCard/deleteUserCard", u.headers(), map[string]any{
		"cardId": token,
	}, &out)
	if err != nil {
		return err
	}
	if out.ErrorCode != 0 {
		return fmt.Errorf("uzcard deleteUserCard: %s (code %d)", out.ErrorMessage, out.ErrorCode)
	}
	return nil
}
