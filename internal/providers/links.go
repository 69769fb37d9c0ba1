package providers

import (
	"fmt"
	"net/url"

	"github.com/okhunjon/sportpay-bot/internal/config"
)

const clickPayURL = "https://my.click.uz/services/pay"

// ClickPayLink builds the redirect-checkout URL for a one-time Click
// payment. The plan id travels as transaction_param and comes back to us
// as merchant_trans_id; the user id rides in additional_param1 and comes
// back as param2.
func ClickPayLink(cfg config.Click, botURL string, planID, userID int64, amountTiyin int64) string {
	q := url.Values{}
	q.Set("service_id", cfg.ServiceID)
	q.Set("merchant_id", cfg.MerchantID)
	q.Set("amount", formatSomAmount(amountTiyin))
	q.Set("transaction_param", fmt.Sprintf("%d", planID))
	q.Set("return_url", botURL)
	q.Set("additional_param1", fmt.Sprintf("%d", userID))
	return clickPayURL + "?" + q.Encode()
}
