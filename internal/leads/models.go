package leads

import (
	"strings"
	"time"
)

// Lead is one contact row in a campaign dataset.
//
// Email fields may exist in uploaded datasets but are never used for
// dialing; they are carried so a dataset round-trips without losing columns.
type Lead struct {
	FirstName string `json:"first_name" db:"first_name"`
	LastName  string `json:"last_name" db:"last_name"`
	Address   string `json:"address" db:"address"`
	City      string `json:"city" db:"city"`
	Zip       string `json:"zip" db:"zip"`
	Phone     string `json:"phone" db:"phone"`
	Email     string `json:"email,omitempty" db:"email"`
	Email2    string `json:"email2,omitempty" db:"email2"`

	CallStatus
}

// CallStatus is the mutable outcome record of a lead. It is written exactly
// once per call attempt: by the reconciler on a real outcome, or
// synthetically by the scheduler on suppression or timeout.
type CallStatus struct {
	Status            string `json:"status" db:"status"`
	EndedReason       string `json:"ended_reason,omitempty" db:"ended_reason"`
	SuccessEvaluation string `json:"success_evaluation,omitempty" db:"success_evaluation"`
	Transcript        string `json:"transcript,omitempty" db:"transcript"`
}

const (
	StatusNotCalled = "not-called"
	StatusCalled    = "called"
)

// Outcome is what gets persisted into a lead row when a call attempt ends.
type Outcome struct {
	EndedReason       string
	SuccessEvaluation string
	Transcript        string
}

// RowRef identifies one lead row inside one dataset.
type RowRef struct {
	DatasetID string
	RowIndex  int
}

// Dataset is the metadata record for one uploaded lead list.
type Dataset struct {
	ID        string    `json:"dataset_id" db:"id"`
	Name      string    `json:"name" db:"name"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// PhoneDigits strips everything but digits from a phone number.
func PhoneDigits(phone string) string {
	var b strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteByte(byte(r))
		}
	}
	return b.String()
}

// NormalizeZip reduces a postal code to its first five digits.
func NormalizeZip(zip string) string {
	d := PhoneDigits(strings.TrimSpace(zip))
	if len(d) > 5 {
		d = d[:5]
	}
	return d
}

// Eligible reports whether a lead may be dialed: never called before, a
// phone number with at least ten digits, and a postal-code match when the
// campaign targets one.
func Eligible(l Lead, targetZip string) bool {
	if strings.ToLower(strings.TrimSpace(l.Status)) != StatusNotCalled {
		return false
	}
	if len(PhoneDigits(l.Phone)) < 10 {
		return false
	}
	if tz := NormalizeZip(targetZip); tz != "" {
		if NormalizeZip(l.Zip) != tz {
			return false
		}
	}
	return true
}

// SamePhone compares two phone numbers by their last ten digits.
func SamePhone(a, b string) bool {
	da, db := lastTen(PhoneDigits(a)), lastTen(PhoneDigits(b))
	return da != "" && da == db
}

func lastTen(digits string) string {
	if len(digits) > 10 {
		return digits[len(digits)-10:]
	}
	return digits
}
