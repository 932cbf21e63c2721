package models

import "time"

// PaymentOutcome is the gateway's signal per charge attempt. The engine
// never initiates a charge; the caller feeds outcomes in after the fact.
type PaymentOutcome string

const (
	PaymentApproved PaymentOutcome = "APPROVED"
	PaymentDeclined PaymentOutcome = "DECLINED"
)

// PaymentDecline is one recorded decline inside the sliding fraud window.
type PaymentDecline struct {
	AccountEmail string
	DeclinedAt   time.Time
}
