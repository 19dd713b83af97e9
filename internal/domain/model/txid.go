package model

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jaevor/go-nanoid"

	"qarzdaftari/internal/domain"
)

// TransactionID is the opaque identifier embedded in the outbound payment
// request and parsed back out of the inbound callback. Wire shape:
//
//	{user_id}_{plan}_{cycle}_{unix_ms}_{suffix}
//
// The suffix is a short nanoid so that two purchases by the same user in the
// same millisecond never collide. The parser also accepts the older shapes
// without suffix and without cycle ({user}_{plan}_{ts}), which still round
// through providers that stored them.
type TransactionID struct {
	UserID    string
	Plan      PlanType
	Cycle     BillingCycle // empty when the legacy 3-part shape omitted it
	CreatedAt time.Time
	Suffix    string
}

const txidSuffixLen = 8

// newSuffix is swapped out in tests.
var newSuffix = func() string {
	gen, err := nanoid.Standard(txidSuffixLen)
	if err != nil {
		// nanoid.Standard only fails on invalid length
		panic(err)
	}
	return gen()
}

// NewTransactionID builds a fresh identifier for one purchase attempt.
func NewTransactionID(userID string, plan PlanType, cycle BillingCycle) TransactionID {
	return TransactionID{
		UserID:    userID,
		Plan:      plan,
		Cycle:     cycle,
		CreatedAt: time.Now(),
		Suffix:    newSuffix(),
	}
}

// String encodes the identifier for the provider round trip.
func (t TransactionID) String() string {
	return fmt.Sprintf("%s_%s_%s_%d_%s", t.UserID, t.Plan, t.Cycle, t.CreatedAt.UnixMilli(), t.Suffix)
}

// ParseTransactionID decodes an identifier from a provider callback.
// It fails closed: any shape it cannot fully account for is rejected rather
// than partially applied.
func ParseTransactionID(s string) (TransactionID, error) {
	parts := strings.Split(s, "_")
	if len(parts) < 3 {
		return TransactionID{}, domain.ErrMalformedIdentifier
	}
	if parts[0] == "" {
		return TransactionID{}, domain.ErrMalformedIdentifier
	}
	plan, err := ParsePlanType(parts[1])
	if err != nil {
		return TransactionID{}, domain.ErrMalformedIdentifier
	}

	id := TransactionID{UserID: parts[0], Plan: plan}
	rest := parts[2:]

	// Billing cycle is "semi_annual" in one shape, which itself splits on "_".
	switch {
	case rest[0] == "semi" && len(rest) > 1 && rest[1] == "annual":
		id.Cycle = CycleSemiAnnual
		rest = rest[2:]
	case BillingCycle(rest[0]) == CycleMonthly || BillingCycle(rest[0]) == CycleAnnual:
		id.Cycle = BillingCycle(rest[0])
		rest = rest[1:]
	}

	if len(rest) == 0 {
		return TransactionID{}, domain.ErrMalformedIdentifier
	}
	ms, err := strconv.ParseInt(rest[0], 10, 64)
	if err != nil {
		return TransactionID{}, domain.ErrMalformedIdentifier
	}
	id.CreatedAt = time.UnixMilli(ms)
	rest = rest[1:]

	switch len(rest) {
	case 0:
		// legacy identifier without random suffix
	case 1:
		if rest[0] == "" {
			return TransactionID{}, domain.ErrMalformedIdentifier
		}
		id.Suffix = rest[0]
	default:
		return TransactionID{}, domain.ErrMalformedIdentifier
	}
	return id, nil
}
