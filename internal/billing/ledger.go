package billing

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/okhunjon/sportpay-bot/internal/signature"
	"github.com/okhunjon/sportpay-bot/store"
	"github.com/okhunjon/sportpay-bot/types"
)

// PurchaseApplier receives a confirmed payment and advances the buyer's
// subscription window. Implemented by *Engine.
type PurchaseApplier interface {
	ApplyPurchase(ctx context.Context, user *types.User, plan *types.Plan, provider types.Provider) error
}

// Callbacks handles the Click two-phase merchant callback protocol.
// Every guard failure maps to a protocol error code in the response;
// nothing here is returned as a Go error to the web layer, because bad
// signatures and replays are steady-state traffic, not faults.
type Callbacks struct {
	verifier *signature.Verifier
	users    types.UserStore
	plans    types.PlanStore
	ledger   types.LedgerStore
	engine   PurchaseApplier
}

func NewCallbacks(verifier *signature.Verifier, users types.UserStore, plans types.PlanStore, ledger types.LedgerStore, engine PurchaseApplier) *Callbacks {
	return &Callbacks{
		verifier: verifier,
		users:    users,
		plans:    plans,
		ledger:   ledger,
		engine:   engine,
	}
}

func (c *Callbacks) HandleCallback(ctx context.Context, req CallbackRequest) CallbackResponse {
	switch req.Action {
	case ActionPrepare:
		return c.prepare(req)
	case ActionComplete:
		return c.complete(ctx, req)
	default:
		return respond(req, CodeActionNotFound)
	}
}

func (c *Callbacks) signatureFields(req CallbackRequest) signature.Fields {
	return signature.Fields{
		TransID:         req.ClickTransID,
		ServiceID:       req.ServiceID,
		MerchantTransID: req.MerchantTransID,
		PrepareID:       req.MerchantPrepareID,
		Amount:          req.Amount,
		Action:          req.Action,
		SignTime:        req.SignTime,
	}
}

func (c *Callbacks) prepare(req CallbackRequest) CallbackResponse {
	if !c.verifier.VerifyPrepare(c.signatureFields(req), req.SignString) {
		log.Printf("click prepare: bad signature for trans %s", req.ClickTransID)
		return respond(req, CodeSignFailed)
	}

	planID, err := strconv.ParseInt(req.MerchantTransID, 10, 64)
	if err != nil {
		return respond(req, CodeBadRequest)
	}
	userID, err := strconv.ParseInt(req.Param2, 10, 64)
	if err != nil {
		return respond(req, CodeBadRequest)
	}
	amount, err := parseAmountTiyin(req.Amount)
	if err != nil {
		return respond(req, CodeInvalidAmount)
	}

	existing, err := c.ledger.FindByTransID(req.ClickTransID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		log.Printf("click prepare: ledger lookup failed: %v", err)
		return respond(req, CodeBadRequest)
	}
	if existing != nil {
		if existing.Status.Terminal() {
			return respond(req, CodeAlreadyPaid)
		}
		// Re-delivered prepare for a still-pending transaction: answer
		// with the original prepare id instead of minting a second row.
		resp := respond(req, CodeSuccess)
		resp.MerchantPrepareID = existing.PrepareID
		return resp
	}

	plan, err := c.plans.GetPlan(planID)
	if err != nil {
		return respond(req, CodeUserNotFound)
	}

	prepareID := time.Now().UnixMilli()
	created, err := c.ledger.CreatePending(types.Transaction{
		Provider:    types.ProviderClick,
		PaymentType: types.PaymentOnetime,
		TransID:     req.ClickTransID,
		AmountTiyin: amount,
		Status:      types.TransactionPending,
		PrepareID:   prepareID,
		UserID:      userID,
		PlanID:      planID,
		Service:     plan.Service,
	})
	if err != nil {
		log.Printf("click prepare: insert failed: %v", err)
		return respond(req, CodeBadRequest)
	}
	if !created {
		// Lost a race with a concurrent delivery of the same prepare.
		return respond(req, CodeAlreadyPaid)
	}

	resp := respond(req, CodeSuccess)
	resp.MerchantPrepareID = prepareID
	return resp
}

func (c *Callbacks) complete(ctx context.Context, req CallbackRequest) CallbackResponse {
	if !c.verifier.VerifyComplete(c.signatureFields(req), req.SignString) {
		log.Printf("click complete: bad signature for trans %s", req.ClickTransID)
		return respond(req, CodeSignFailed)
	}

	userID, err := strconv.ParseInt(req.Param2, 10, 64)
	if err != nil {
		return respond(req, CodeBadRequest)
	}
	user, err := c.users.GetUser(userID)
	if err != nil {
		return respond(req, CodeUserNotFound)
	}

	planID, err := strconv.ParseInt(req.MerchantTransID, 10, 64)
	if err != nil {
		return respond(req, CodeBadRequest)
	}
	plan, err := c.plans.GetPlan(planID)
	if err != nil {
		return respond(req, CodeUserNotFound)
	}

	prepareID, err := strconv.ParseInt(req.MerchantPrepareID, 10, 64)
	if err != nil {
		return respond(req, CodeTransactionNotFound)
	}
	prepared, err := c.ledger.FindPrepared(req.ClickTransID, prepareID)
	if err != nil {
		return respond(req, CodeTransactionNotFound)
	}

	// Some gateways deliver complete twice; the paid check is keyed on the
	// prepare correlation, independent of the pending lookup above.
	paid, err := c.ledger.HasPaidPrepare(prepareID, planID)
	if err != nil {
		log.Printf("click complete: paid lookup failed: %v", err)
		return respond(req, CodeBadRequest)
	}
	if paid {
		return respond(req, CodeAlreadyPaid)
	}

	amount, err := parseAmountTiyin(req.Amount)
	if err != nil || amount != plan.PriceTiyin {
		log.Printf("click complete: amount mismatch: got %q, plan %d expects %d tiyin", req.Amount, plan.ID, plan.PriceTiyin)
		return respond(req, CodeInvalidAmount)
	}

	if prepared.Status == types.TransactionCanceled {
		return respond(req, CodeTransactionCanceled)
	}

	if req.Error > 0 {
		if _, err := c.ledger.MarkFailed(req.ClickTransID, req.Error); err != nil {
			log.Printf("click complete: mark failed error: %v", err)
		}
		return CallbackResponse{
			ClickTransID:    req.ClickTransID,
			MerchantTransID: req.MerchantTransID,
			Error:           req.Error,
			ErrorNote:       "Failed",
		}
	}

	changed, err := c.ledger.MarkPaid(req.ClickTransID, time.Now())
	if err != nil {
		log.Printf("click complete: mark paid error: %v", err)
		return respond(req, CodeBadRequest)
	}
	if !changed {
		return respond(req, CodeAlreadyPaid)
	}

	// The payment is committed: a failed renewal must not fail the
	// callback, or the gateway would retry an already-paid transaction.
	if err := c.engine.ApplyPurchase(ctx, user, plan, types.ProviderClick); err != nil {
		log.Printf("click complete: apply purchase for user %d: %v", user.ID, err)
	}

	resp := respond(req, CodeSuccess)
	resp.MerchantConfirmID = prepared.ID
	return resp
}

// parseAmountTiyin converts the gateway's decimal so'm amount ("5555.00")
// to integer tiyin. Comparisons downstream are exact int64, never float.
// Anything the gateway does not actually send — negative amounts, more
// than two fractional digits — is rejected, not coerced.
func parseAmountTiyin(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, errors.New("empty amount")
	}
	if s[0] == '-' || s[0] == '+' {
		return 0, fmt.Errorf("signed amount %q", s)
	}
	whole, frac, hasFrac := strings.Cut(s, ".")
	n, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return 0, err
	}
	if !hasFrac {
		return n * 100, nil
	}
	if len(frac) == 0 || len(frac) > 2 {
		return 0, fmt.Errorf("malformed fraction in amount %q", s)
	}
	for len(frac) < 2 {
		frac += "0"
	}
	f, err := strconv.ParseInt(frac, 10, 64)
	if err != nil {
		return 0, err
	}
	return n*100 + f, nil
}
