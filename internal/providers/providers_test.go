package providers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/okhunjon/sportpay-bot/internal/config"
)

func TestClickChargeSuccess(t *testing.T) {
	var gotAuth string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/card_token/payment" {
			t.Fatalf("path = %s", r.URL.Path)
		}
		gotAuth = r.Header.Get("Auth")
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Fatal(err)
		}
		json.NewEncoder(w).Encode(map[string]any{"error_code": 0, "payment_id": 9912})
	}))
	defer srv.Close()

	c := NewClickClient(config.Click{ServiceID: "22806", MerchantUserID: "31855", Secret: "s3cr3t"})
	c.baseURL = srv.URL

	res, err := c.Charge(context.Background(), "tok", 555500, "corr-1")
	if err != nil {
		t.Fatal(err)
	}
	if !res.Success || res.ReceiptID != "click-9912" {
		t.Fatalf("result = %+v", res)
	}
	if gotBody["amount"] != "5555.00" {
		t.Fatalf("amount sent = %v, want decimal so'm", gotBody["amount"])
	}
	if parts := strings.Split(gotAuth, ":"); len(parts) != 3 || parts[0] != "31855" {
		t.Fatalf("Auth header = %q", gotAuth)
	}
}

func TestClickChargeRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"error_code": -5017, "error_note": "Insufficient funds"})
	}))
	defer srv.Close()

	c := NewClickClient(config.Click{ServiceID: "22806"})
	c.baseURL = srv.URL

	res, err := c.Charge(context.Background(), "tok", 555500, "corr-1")
	if err != nil {
		t.Fatal(err)
	}
	if res.Success {
		t.Fatal("rejected charge reported success")
	}
	if res.ErrorCode != -5017 {
		t.Fatalf("error code = %d", res.ErrorCode)
	}
}

func TestPaymeChargeSettlesReceipt(t *testing.T) {
	var methods []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if auth := r.Header.Get("X-Auth"); auth != "mid:key" {
			t.Fatalf("X-Auth = %q", auth)
		}
		var req struct {
			Method string `json:"method"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatal(err)
		}
		methods = append(methods, req.Method)
		switch req.Method {
		case "receipts.create":
			json.NewEncoder(w).Encode(map[string]any{"result": map[string]any{"receipt": map[string]any{"_id": "r77"}}})
		case "receipts.pay":
			json.NewEncoder(w).Encode(map[string]any{"result": map[string]any{"receipt": map[string]any{"_id": "r77", "state": 4}}})
		default:
			t.Fatalf("unexpected method %s", req.Method)
		}
	}))
	defer srv.Close()

	p := NewPaymeClient(config.Payme{SubsAPIID: "mid", SubsAPIKey: "key"})
	p.baseURL = srv.URL

	res, err := p.Charge(context.Background(), "tok", 555500, "corr-2")
	if err != nil {
		t.Fatal(err)
	}
	if !res.Success || res.ReceiptID != "payme-r77" {
		t.Fatalf("result = %+v", res)
	}
	if len(methods) != 2 || methods[0] != "receipts.create" || methods[1] != "receipts.pay" {
		t.Fatalf("methods = %v", methods)
	}
}

func TestUzcardChargeCarriesQR(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.Header.Get("Authorization"), "Basic ") {
			t.Fatalf("Authorization = %q", r.Header.Get("Authorization"))
		}
		json.NewEncoder(w).Encode(map[string]any{
			"errorCode": 0,
			"result":    map[string]any{"utrnNo": "555001", "qrCodeUrl": "https://ofd.uz/check/555001"},
		})
	}))
	defer srv.Close()

	u := NewUzcardClient(config.Uzcard{BaseURL: srv.URL, Login: "l", Password: "p"})

	res, err := u.Charge(context.Background(), "card-9", 555500, "corr-3")
	if err != nil {
		t.Fatal(err)
	}
	if !res.Success || res.QRCodeURL != "https://ofd.uz/check/555001" {
		t.Fatalf("result = %+v", res)
	}
}

func TestClickPayLink(t *testing.T) {
	link := ClickPayLink(config.Click{ServiceID: "22806", MerchantID: "11935"}, "https://t.me/sportpay_bot", 3, 42, 555500)

	u, err := url.Parse(link)
	if err != nil {
		t.Fatal(err)
	}
	q := u.Query()
	if q.Get("transaction_param") != "3" || q.Get("additional_param1") != "42" {
		t.Fatalf("query = %v", q)
	}
	if q.Get("amount") != "5555.00" {
		t.Fatalf("amount = %s", q.Get("amount"))
	}
	if q.Get("return_url") != "https://t.me/sportpay_bot" {
		t.Fatalf("return_url = %s", q.Get("return_url"))
	}
}
