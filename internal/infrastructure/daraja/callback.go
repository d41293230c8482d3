package daraja

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/yourorg/rentledger/internal/domain"
)

// Callback is the body Daraja posts to the callback URL once the customer
// has answered (or ignored) the STK prompt.
type Callback struct {
	Body struct {
		STKCallback struct {
			MerchantRequestID string      `json:"MerchantRequestID"`
			CheckoutRequestID string      `json:"CheckoutRequestID"`
			ResultCode        json.Number `json:"ResultCode"`
			ResultDesc        string      `json:"ResultDesc"`
			CallbackMetadata  *struct {
				Item []struct {
					Name  string `json:"Name"`
					Value any    `json:"Value"`
				} `json:"Item"`
			} `json:"CallbackMetadata"`
		} `json:"stkCallback"`
	} `json:"Body"`
}

// ParseCallback decodes a Daraja STK callback into a provider-neutral
// result. A missing ResultCode is treated as a failure.
func ParseCallback(raw []byte) (domain.ChargeResult, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var cb Callback
	if err := dec.Decode(&cb); err != nil {
		return domain.ChargeResult{}, domain.Validationf("malformed daraja callback: %v", err)
	}

	stk := cb.Body.STKCallback
	res := domain.ChargeResult{
		CheckoutRequestID: stk.CheckoutRequestID,
		MerchantRequestID: stk.MerchantRequestID,
		ResultCode:        1,
		ResultDesc:        stk.ResultDesc,
		Raw:               raw,
	}
	if stk.ResultCode != "" {
		code, err := stk.ResultCode.Int64()
		if err != nil {
			return domain.ChargeResult{}, domain.Validationf("daraja callback ResultCode %q is not an integer", stk.ResultCode)
		}
		res.ResultCode = int(code)
	}
	if stk.CallbackMetadata == nil {
		return res, nil
	}

	for _, item := range stk.CallbackMetadata.Item {
		switch item.Name {
		case "Amount":
			amount, err := decimalValue(item.Value)
			if err != nil {
				return domain.ChargeResult{}, domain.Validationf("daraja callback Amount: %v", err)
			}
			res.Amount = &amount
		case "MpesaReceiptNumber":
			res.ReceiptNumber = stringValue(item.Value)
		case "PhoneNumber":
			res.PhoneNumber = stringValue(item.Value)
		}
	}
	return res, nil
}

func decimalValue(v any) (decimal.Decimal, error) {
	switch x := v.(type) {
	case json.Number:
		return decimal.NewFromString(x.String())
	case string:
		return decimal.NewFromString(x)
	default:
		return decimal.Decimal{}, fmt.Errorf("unexpected value %v", v)
	}
}

func stringValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case json.Number:
		return x.String()
	case string:
		return x
	default:
		return fmt.Sprint(x)
	}
}
