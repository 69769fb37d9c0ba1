package billing

// Click callback action codes, as they appear on the wire.
const (
	ActionPrepare  = "0"
	ActionComplete = "1"
)

// Click protocol result codes. Zero is success; anything negative is
// reported back to the gateway verbatim.
const (
	CodeSuccess             = 0
	CodeSignFailed          = -1
	CodeInvalidAmount       = -2
	CodeActionNotFound      = -3
	CodeAlreadyPaid         = -4
	CodeUserNotFound        = -5
	CodeTransactionNotFound = -6
	CodeBadRequest          = -8
	CodeTransactionCanceled = -9
)

var errorNotes = map[int]string{
	CodeSuccess:             "Success",
	CodeSignFailed:          "SIGN CHECK FAILED!",
	CodeInvalidAmount:       "Incorrect parameter amount",
	CodeActionNotFound:      "Action not found",
	CodeAlreadyPaid:         "Already paid",
	CodeUserNotFound:        "User does not exist",
	CodeTransactionNotFound: "Transaction does not exist",
	CodeBadRequest:          "Error in request from click",
	CodeTransactionCanceled: "Transaction canceled",
}

// CallbackRequest is the decoded form body of a Click prepare/complete
// callback. Amount, action and prepare id stay strings because the
// signature covers their exact wire representation. merchant_trans_id
// carries the plan id; param2 carries the buying user's id.
type CallbackRequest struct {
	ClickTransID      string
	ServiceID         string
	MerchantTransID   string
	MerchantPrepareID string
	Amount            string
	Action            string
	Error             int
	SignTime          string
	SignString        string
	Param2            string
	Param3            string
}

// CallbackResponse is serialized back to the gateway as JSON.
type CallbackResponse struct {
	ClickTransID      string `json:"click_trans_id"`
	MerchantTransID   string `json:"merchant_trans_id"`
	MerchantPrepareID int64  `json:"merchant_prepare_id,omitempty"`
	MerchantConfirmID int64  `json:"merchant_confirm_id,omitempty"`
	Error             int    `json:"error"`
	ErrorNote         string `json:"error_note"`
}

func respond(req CallbackRequest, code int) CallbackResponse {
	return CallbackResponse{
		ClickTransID:    req.ClickTransID,
		MerchantTransID: req.MerchantTransID,
		Error:           code,
		ErrorNote:       errorNotes[code],
	}
}
