package domain

import (
	"context"
	"fmt"
)

// HighAltitude reports whether an altitude crosses the 3000m warning threshold.
// The boundary itself is not high altitude.
func HighAltitude(meters int) bool {
	return meters > 3000
}

// AltitudeRiskLevel classifies altitude exposure as a step function of meters.
func AltitudeRiskLevel(meters int) AltitudeRisk {
	switch {
	case meters < 2500:
		return RiskLow
	case meters < 3500:
		return RiskModerate
	case meters < 4500:
		return RiskHigh
	case meters < 5500:
		return RiskVeryHigh
	default:
		return RiskExtreme
	}
}

// ClampDiscountPercent bounds a discount percentage to [0,100].
func ClampDiscountPercent(p float64) float64 {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}

// FinalCost computes the discounted cost from an original cost and a percent.
// The percent is clamped before applying.
func FinalCost(originalCost, discountPercent float64) float64 {
	return originalCost * (1 - ClampDiscountPercent(discountPercent)/100)
}

// NormalizeTrekPricing enforces the pricing invariants on a trek in place:
// the discount percent is clamped to [0,100]; a discounted trek's cost is
// recomputed from the original cost; an undiscounted trek carries zero percent
// and cost equal to the original cost. A zero original cost on an undiscounted
// trek is backfilled from the cost so older records stay coherent.
func NormalizeTrekPricing(t *Trek) {
	t.DiscountPercent = ClampDiscountPercent(t.DiscountPercent)
	if t.HasDiscount {
		t.Cost = FinalCost(t.OriginalCost, t.DiscountPercent)
		return
	}
	t.DiscountPercent = 0
	if t.OriginalCost == 0 {
		t.OriginalCost = t.Cost
	}
	t.Cost = t.OriginalCost
}

// NormalizeEmergencyResolution stamps or clears the resolution timestamp so it
// is set exactly when the status is Resolved. The now string must already be in
// DateTimeLayout form; an existing stamp on a resolved report is preserved.
func NormalizeEmergencyResolution(e *Emergency, now string) {
	if e.Status == StatusResolved {
		if e.ResolvedAtStr == "" {
			e.ResolvedAtStr = now
		}
		return
	}
	e.ResolvedAtStr = ""
}

// RuleView provides read-only access to domain entities for rule evaluation.
type RuleView interface {
	ListAttractions() []Attraction
	ListGuides() []Guide
	ListUsers() []User
	ListTreks() []Trek
	ListBookings() []Booking
	ListEmergencies() []Emergency
	FindAttraction(id int) (Attraction, bool)
	FindGuide(email string) (Guide, bool)
	FindUser(email string) (User, bool)
	FindTrek(id int) (Trek, bool)
}

// Rule defines an evaluation executed against a pending mutation.
type Rule interface {
	Name() string
	Evaluate(ctx context.Context, view RuleView, changes []Change) (Result, error)
}

// RulesEngine orchestrates rule evaluation.
type RulesEngine struct {
	rules []Rule
}

// NewRulesEngine constructs an engine instance.
func NewRulesEngine() *RulesEngine {
	return &RulesEngine{}
}

// Register appends a rule to the engine.
func (e *RulesEngine) Register(rule Rule) {
	e.rules = append(e.rules, rule)
}

// Evaluate executes all registered rules and aggregates their results.
// A nil engine evaluates to an empty result.
func (e *RulesEngine) Evaluate(ctx context.Context, view RuleView, changes []Change) (Result, error) {
	if e == nil {
		return Result{}, nil
	}
	var combined Result
	for _, rule := range e.rules {
		res, err := rule.Evaluate(ctx, view, changes)
		if err != nil {
			return Result{}, err
		}
		combined.Merge(res)
	}
	return combined, nil
}

// TrekPricingRule blocks treks whose persisted pricing fields contradict the
// discount invariant. Stores normalize pricing before evaluation, so a
// violation here means a caller bypassed normalization.
type TrekPricingRule struct{}

// Name identifies the rule in violations.
func (TrekPricingRule) Name() string { return "trek-pricing" }

// Evaluate checks created or updated treks for pricing drift.
func (r TrekPricingRule) Evaluate(_ context.Context, _ RuleView, changes []Change) (Result, error) {
	var res Result
	for _, ch := range changes {
		if ch.Entity != EntityTrek || ch.Action == ActionDelete {
			continue
		}
		trek, ok := ch.After.(Trek)
		if !ok {
			continue
		}
		if trek.DiscountPercent < 0 || trek.DiscountPercent > 100 {
			res.Violations = append(res.Violations, Violation{
				Rule:     r.Name(),
				Severity: SeverityBlock,
				Message:  fmt.Sprintf("discount percent %.2f outside [0,100]", trek.DiscountPercent),
				Entity:   EntityTrek,
				EntityID: fmt.Sprintf("%d", trek.ID),
			})
			continue
		}
		want := trek.OriginalCost
		if trek.HasDiscount {
			want = FinalCost(trek.OriginalCost, trek.DiscountPercent)
		}
		if diff := trek.Cost - want; diff > 1e-6 || diff < -1e-6 {
			res.Violations = append(res.Violations, Violation{
				Rule:     r.Name(),
				Severity: SeverityBlock,
				Message:  fmt.Sprintf("cost %.2f does not match derived cost %.2f", trek.Cost, want),
				Entity:   EntityTrek,
				EntityID: fmt.Sprintf("%d", trek.ID),
			})
		}
	}
	return res, nil
}

// ReferentialAdvisoryRule warns when a created or updated record points at a
// missing foreign record. Dangling references are representable by design
// (deletes do not cascade), so the severity never blocks.
type ReferentialAdvisoryRule struct{}

// Name identifies the rule in violations.
func (ReferentialAdvisoryRule) Name() string { return "referential-advisory" }

// Evaluate flags unresolved foreign keys on treks, bookings, and emergencies.
func (r ReferentialAdvisoryRule) Evaluate(_ context.Context, view RuleView, changes []Change) (Result, error) {
	var res Result
	warn := func(entity EntityType, id, msg string) {
		res.Violations = append(res.Violations, Violation{
			Rule:     r.Name(),
			Severity: SeverityWarn,
			Message:  msg,
			Entity:   entity,
			EntityID: id,
		})
	}
	for _, ch := range changes {
		if ch.Action == ActionDelete {
			continue
		}
		switch ch.Entity {
		case EntityTrek:
			trek, ok := ch.After.(Trek)
			if !ok {
				continue
			}
			id := fmt.Sprintf("%d", trek.ID)
			if _, ok := view.FindAttraction(trek.AttractionID); !ok {
				warn(EntityTrek, id, fmt.Sprintf("attraction %d not found", trek.AttractionID))
			}
			if trek.GuideEmail != "" {
				if _, ok := view.FindGuide(trek.GuideEmail); !ok {
					warn(EntityTrek, id, fmt.Sprintf("guide %s not found", trek.GuideEmail))
				}
			}
		case EntityBooking:
			booking, ok := ch.After.(Booking)
			if !ok {
				continue
			}
			id := fmt.Sprintf("%d", booking.ID)
			if _, ok := view.FindTrek(booking.TrekID); !ok {
				warn(EntityBooking, id, fmt.Sprintf("trek %d not found", booking.TrekID))
			}
			if _, ok := view.FindUser(booking.UserEmail); !ok {
				warn(EntityBooking, id, fmt.Sprintf("user %s not found", booking.UserEmail))
			}
			if booking.GuideEmail != "" {
				if _, ok := view.FindGuide(booking.GuideEmail); !ok {
					warn(EntityBooking, id, fmt.Sprintf("guide %s not found", booking.GuideEmail))
				}
			}
		case EntityEmergency:
			emergency, ok := ch.After.(Emergency)
			if !ok {
				continue
			}
			if _, ok := view.FindGuide(emergency.GuideEmail); !ok {
				warn(EntityEmergency, fmt.Sprintf("%d", emergency.ID), fmt.Sprintf("guide %s not found", emergency.GuideEmail))
			}
		}
	}
	return res, nil
}

// DefaultRulesEngine returns an engine loaded with the standard rule set.
func DefaultRulesEngine() *RulesEngine {
	engine := NewRulesEngine()
	engine.Register(TrekPricingRule{})
	engine.Register(ReferentialAdvisoryRule{})
	return engine
}
