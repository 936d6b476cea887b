// Package gate implements the Evaluation Gate (C13): a pure, fail-fast
// rule chain over a Decision, grounded directly on the fixed-order gate
// rule-chain shape in internal/domain/gates/evaluate.go.
package gate

import "time"

// Decision is a candidate action awaiting gate approval.
type Decision struct {
	Symbol        string
	Side          string
	Confidence    float64
	Risk          float64
	TsValidUntil  time.Time
	PolicyVersion string
}

// PolicySnapshot is the immutable set of rule parameters in force when a
// decision is evaluated. A gate result clones it for audit.
type PolicySnapshot struct {
	MinConfidence  float64
	BlockedSymbols map[string]bool
	AllowedSides   map[string]bool
	RiskCap        float64
	CooldownMs     int64
}

// Clone returns a deep copy of the snapshot, suitable for embedding in a
// result that must remain stable even if the live policy changes later.
func (p PolicySnapshot) Clone() PolicySnapshot {
	blocked := make(map[string]bool, len(p.BlockedSymbols))
	for k, v := range p.BlockedSymbols {
		blocked[k] = v
	}
	sides := make(map[string]bool, len(p.AllowedSides))
	for k, v := range p.AllowedSides {
		sides[k] = v
	}
	return PolicySnapshot{
		MinConfidence:  p.MinConfidence,
		BlockedSymbols: blocked,
		AllowedSides:   sides,
		RiskCap:        p.RiskCap,
		CooldownMs:     p.CooldownMs,
	}
}

// State is the cooldown-relevant mutable context the gate consults: the
// timestamp of the last decision seen for each (symbol, side) pair.
type State struct {
	LastDecisionAt map[string]time.Time // key: symbol+"|"+side
}

func cooldownKey(symbol, side string) string { return symbol + "|" + side }

// Outcome is either REJECTED (permanent for this decision) or SKIPPED
// (transient, e.g. cooldown) or APPROVED.
type Outcome string

const (
	Approved Outcome = "APPROVED"
	Rejected Outcome = "REJECTED"
	Skipped  Outcome = "SKIPPED"
)

// Reason codes, in the fixed evaluation order.
const (
	ReasonTimeExpired    = "TIME_EXPIRED"
	ReasonLowConfidence  = "LOW_CONFIDENCE"
	ReasonPolicyViolation = "POLICY_VIOLATION"
	ReasonCooldown       = "COOLDOWN"
)

// Result records a gate decision with an audit-stable policy snapshot.
type Result struct {
	Outcome       Outcome
	Reason        string
	Policy        PolicySnapshot
	PolicyVersion string
}

// EvaluateDecision applies the rule chain in fixed order, returning on the
// first rule that fails: validity, confidence, policy/blacklist, cooldown.
func EvaluateDecision(d Decision, policy PolicySnapshot, state *State, now time.Time) Result {
	snapshot := policy.Clone()
	result := Result{Policy: snapshot, PolicyVersion: d.PolicyVersion}

	if now.After(d.TsValidUntil) {
		result.Outcome, result.Reason = Rejected, ReasonTimeExpired
		return result
	}
	if d.Confidence < policy.MinConfidence {
		result.Outcome, result.Reason = Rejected, ReasonLowConfidence
		return result
	}
	if policy.BlockedSymbols[d.Symbol] {
		result.Outcome, result.Reason = Rejected, ReasonPolicyViolation
		return result
	}
	if len(policy.AllowedSides) > 0 && !policy.AllowedSides[d.Side] {
		result.Outcome, result.Reason = Rejected, ReasonPolicyViolation
		return result
	}
	if d.Risk > policy.RiskCap {
		result.Outcome, result.Reason = Rejected, ReasonPolicyViolation
		return result
	}

	if state != nil {
		if last, ok := state.LastDecisionAt[cooldownKey(d.Symbol, d.Side)]; ok {
			if now.Sub(last) < time.Duration(policy.CooldownMs)*time.Millisecond {
				result.Outcome, result.Reason = Skipped, ReasonCooldown
				return result
			}
		}
	}

	result.Outcome = Approved
	return result
}
