package domain

// VerificationResult classifies a candidate payment transaction against the
// expected sender, receiver, and amount. Only Valid may drive a paid
// transition; Unconfirmed and NotFound are retryable outcomes.
type VerificationResult string

const (
	VerificationValid           VerificationResult = "valid"
	VerificationAmountMismatch  VerificationResult = "amount_mismatch"
	VerificationAddressMismatch VerificationResult = "address_mismatch"
	VerificationUnconfirmed     VerificationResult = "unconfirmed"
	VerificationNotFound        VerificationResult = "not_found"
)
