// Package web exposes the HTTP surface: the Click merchant callback and
// a health probe. The handler only decodes the form and serializes the
// protocol response; every decision lives in the billing layer.
package web

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/okhunjon/sportpay-bot/internal/billing"
)

type Server struct {
	callbacks *billing.Callbacks
}

func NewServer(callbacks *billing.Callbacks) *Server {
	return &Server{callbacks: callbacks}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	r.Post("/payments/click", s.handleClickCallback)
	return r
}

// handleClickCallback decodes the gateway's form post verbatim into the
// callback request. Protocol failures still answer 200: the error code in
// the JSON body is the wire contract, HTTP status is not.
func (s *Server) handleClickCallback(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		log.Printf("web: click callback form parse: %v", err)
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	req := billing.CallbackRequest{
		ClickTransID:      r.PostFormValue("click_trans_id"),
		ServiceID:         r.PostFormValue("service_id"),
		MerchantTransID:   r.PostFormValue("merchant_trans_id"),
		MerchantPrepareID: r.PostFormValue("merchant_prepare_id"),
		Amount:            r.PostFormValue("amount"),
		Action:            r.PostFormValue("action"),
		SignTime:          r.PostFormValue("sign_time"),
		SignString:        r.PostFormValue("sign_string"),
		Param2:            r.PostFormValue("param2"),
		Param3:            r.PostFormValue("param3"),
	}
	if errStr := r.PostFormValue("error"); errStr != "" {
		if code, err := strconv.Atoi(errStr); err == nil {
			req.Error = code
		}
	}

	resp := s.callbacks.HandleCallback(r.Context(), req)

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		log.Printf("web: click callback encode: %v", err)
	}
}
