package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/basylab/balug/internal/model"
)

// ResetParams holds the password reset ceilings and windows.
type ResetParams struct {
	CodeTTL         time.Duration
	ResendCooldown  time.Duration
	MaxResends      int
	BlockDuration   time.Duration
	MaxCodeAttempts int
	// ThrottleDelays is indexed by the number of failed verify attempts so far.
	// Counts past the end reuse the last entry.
	ThrottleDelays []time.Duration
}

func DefaultResetParams() ResetParams {
	return ResetParams{
		CodeTTL:         5 * time.Minute,
		ResendCooldown:  60 * time.Second,
		MaxResends:      5,
		BlockDuration:   30 * time.Minute,
		MaxCodeAttempts: 5,
		ThrottleDelays: []time.Duration{
			0,
			5 * time.Second,
			10 * time.Second,
			15 * time.Second,
			20 * time.Second,
		},
	}
}

func (p ResetParams) Validate() error {
	if p.CodeTTL <= 0 {
		return errors.New("code TTL must be positive")
	}
	if p.ResendCooldown <= 0 {
		return errors.New("resend cooldown must be positive")
	}
	if p.BlockDuration <= 0 {
		return errors.New("block duration must be positive")
	}
	if p.MaxResends <= 0 {
		return errors.New("max resends must be positive")
	}
	if p.MaxCodeAttempts <= 0 {
		return errors.New("max code attempts must be positive")
	}
	if len(p.ThrottleDelays) == 0 {
		return errors.New("throttle delays must not be empty")
	}
	for i, d := range p.ThrottleDelays {
		if d < 0 {
			return fmt.Errorf("throttle delay %d is negative", i)
		}
		if i > 0 && d < p.ThrottleDelays[i-1] {
			return fmt.Errorf("throttle delay %d is shorter than the one before it", i)
		}
	}
	return nil
}

type ResendDenial int

const (
	ResendAllowed ResendDenial = iota
	ResendDeniedBlocked
	ResendDeniedCooldown
	ResendDeniedLimit
)

func (d ResendDenial) String() string {
	switch d {
	case ResendAllowed:
		return "allowed"
	case ResendDeniedBlocked:
		return "blocked"
	case ResendDeniedCooldown:
		return "cooldown"
	case ResendDeniedLimit:
		return "limit"
	default:
		return "unknown"
	}
}

type ResendDecision struct {
	Allowed    bool
	Reason     ResendDenial
	RetryAfter time.Duration
}

// ResetPolicy evaluates reset state against a point in time. It performs no I/O.
type ResetPolicy struct {
	params ResetParams
}

func NewResetPolicy(params ResetParams) (*ResetPolicy, error) {
	err := params.Validate()
	if err != nil {
		return nil, fmt.Errorf("invalid password reset params: %w", err)
	}

	params.ThrottleDelays = append([]time.Duration(nil), params.ThrottleDelays...)
	return &ResetPolicy{params: params}, nil
}

func (p *ResetPolicy) Params() ResetParams {
	return p.params
}

func (p *ResetPolicy) HasActiveCode(st model.ResetState, now time.Time) bool {
	return st.Secret != nil && st.CodeExpiresAt != nil && st.CodeExpiresAt.After(now)
}

func (p *ResetPolicy) IsResendBlocked(st model.ResetState, now time.Time) bool {
	return st.ResendBlocked && st.ResendBlockedUntil != nil && st.ResendBlockedUntil.After(now)
}

// BlockExpired reports a block flag whose window has passed. Callers must
// persist ClearExpiredBlock before acting on the state.
func (p *ResetPolicy) BlockExpired(st model.ResetState, now time.Time) bool {
	return st.ResendBlocked && (st.ResendBlockedUntil == nil || !st.ResendBlockedUntil.After(now))
}

// ClearExpiredBlock returns st with the resend block lifted and the resend
// counter reset, plus the fields that changed.
func (p *ResetPolicy) ClearExpiredBlock(st model.ResetState) (model.ResetState, model.ResetFields) {
	next := st.Clone()
	next.ResendBlocked = false
	next.ResendBlockedUntil = nil
	next.ResendCount = 0
	return next, model.FieldsClearBlock
}

// CanResend expects an expired block to have been cleared already.
func (p *ResetPolicy) CanResend(st model.ResetState, now time.Time) ResendDecision {
	if p.IsResendBlocked(st, now) {
		return ResendDecision{Reason: ResendDeniedBlocked, RetryAfter: st.ResendBlockedUntil.Sub(now)}
	}
	if st.CooldownEndsAt != nil && st.CooldownEndsAt.After(now) {
		return ResendDecision{Reason: ResendDeniedCooldown, RetryAfter: st.CooldownEndsAt.Sub(now)}
	}
	if st.ResendCount >= p.params.MaxResends {
		return ResendDecision{Reason: ResendDeniedLimit, RetryAfter: p.params.BlockDuration}
	}
	return ResendDecision{Allowed: true, Reason: ResendAllowed}
}

// NextVerifyAt returns when the next verify attempt is accepted, or nil if it
// is accepted now.
func (p *ResetPolicy) NextVerifyAt(st model.ResetState, now time.Time) *time.Time {
	if st.LastVerifyAttemptAt == nil || st.VerifyAttempts <= 0 {
		return nil
	}

	idx := min(st.VerifyAttempts, len(p.params.ThrottleDelays)-1)
	next := st.LastVerifyAttemptAt.Add(p.params.ThrottleDelays[idx])
	if !next.After(now) {
		return nil
	}
	return &next
}

func (p *ResetPolicy) RemainingResends(st model.ResetState) int {
	return max(0, p.params.MaxResends-st.ResendCount)
}

func (p *ResetPolicy) RemainingCodeAttempts(st model.ResetState) int {
	return max(0, p.params.MaxCodeAttempts-st.VerifyAttempts)
}

func (p *ResetPolicy) Status(st model.ResetState, now time.Time) model.ResetStatus {
	blocked := p.IsResendBlocked(st, now)
	remainingResends := p.RemainingResends(st)

	var canResendAt *time.Time
	if st.CooldownEndsAt != nil && st.CooldownEndsAt.After(now) {
		t := *st.CooldownEndsAt
		canResendAt = &t
	}

	var blockedUntil *time.Time
	if blocked {
		t := *st.ResendBlockedUntil
		blockedUntil = &t
	}

	var expiresAt *time.Time
	if st.CodeExpiresAt != nil {
		t := *st.CodeExpiresAt
		expiresAt = &t
	}

	if blocked {
		remainingResends = 0
	}

	return model.ResetStatus{
		CanResend:               !blocked && canResendAt == nil && remainingResends > 0,
		RemainingResendAttempts: remainingResends,
		CanResendAt:             canResendAt,
		RemainingCodeAttempts:   p.RemainingCodeAttempts(st),
		CanTryCodeAt:            p.NextVerifyAt(st, now),
		IsResendBlocked:         blocked,
		ResendBlockedUntil:      blockedUntil,
		CodeExpiresAt:           expiresAt,
	}
}

// Issue is the state written by a first issuance: a fresh code and every
// counter reset.
func (p *ResetPolicy) Issue(secret string, now time.Time) (model.ResetState, model.ResetFields) {
	expiresAt := now.Add(p.params.CodeTTL)
	return model.ResetState{
		Secret:        &secret,
		CodeExpiresAt: &expiresAt,
	}, model.FieldsAll
}

// Reissue is the state written by a resend.
func (p *ResetPolicy) Reissue(st model.ResetState, secret string, now time.Time) (model.ResetState, model.ResetFields) {
	next := st.Clone()
	expiresAt := now.Add(p.params.CodeTTL)
	cooldownEndsAt := now.Add(p.params.ResendCooldown)
	next.Secret = &secret
	next.CodeExpiresAt = &expiresAt
	next.ResendCount = st.ResendCount + 1
	next.CooldownEndsAt = &cooldownEndsAt
	next.VerifyAttempts = 0
	return next, model.FieldsReissue
}

// Block is the state written when the resend ceiling is hit.
func (p *ResetPolicy) Block(st model.ResetState, now time.Time) (model.ResetState, model.ResetFields) {
	next := st.Clone()
	until := now.Add(p.params.BlockDuration)
	next.ResendBlocked = true
	next.ResendBlockedUntil = &until
	return next, model.FieldsBlock
}

// ClaimAttempt is the state written before a code is checked: the attempt
// counter and its timestamp, so concurrent checks of the same code are counted.
func (p *ResetPolicy) ClaimAttempt(st model.ResetState, now time.Time) (model.ResetState, model.ResetFields) {
	next := st.Clone()
	at := now
	next.VerifyAttempts = st.VerifyAttempts + 1
	next.LastVerifyAttemptAt = &at
	return next, model.FieldVerifyAttempts | model.FieldLastVerifyAttemptAt
}

// FailAttempt records a wrong code. burned is true once the attempt budget is
// spent, in which case the code is cleared too.
func (p *ResetPolicy) FailAttempt(st model.ResetState, now time.Time) (next model.ResetState, fields model.ResetFields, burned bool) {
	next, fields = p.ClaimAttempt(st, now)

	if next.VerifyAttempts >= p.params.MaxCodeAttempts {
		next.Secret = nil
		next.CodeExpiresAt = nil
		fields |= model.FieldSecret | model.FieldCodeExpiresAt
		burned = true
	}
	return next, fields, burned
}
