package router

import (
	"github.com/vitalis-health/ai-routing/models"
)

// candidate is one eligible provider with the live data strategies score on.
type candidate struct {
	config        *models.ProviderConfig
	health        models.ProviderHealth
	estimatedCost float64
}

// strategy picks one provider from the eligible set. Implementations must
// be deterministic: ties resolve to the earlier candidate in the slice.
type strategy interface {
	Select(eligible []candidate, req *models.RoutingRequest) *candidate
}

// strategyFor maps the request strategy to its implementation. The set is
// closed; an unknown value returns nil.
func strategyFor(s models.Strategy) strategy {
	switch s {
	case models.StrategyCostOptimized:
		return costOptimized{}
	case models.StrategyLatencyOptimized:
		return latencyOptimized{}
	case models.StrategyQualityOptimized:
		return qualityOptimized{}
	case models.StrategyHealthcareSpecific:
		return healthcareSpecific{}
	case models.StrategyEmergencyPriority:
		return emergencyPriority{}
	case models.StrategyLoadBalanced:
		return loadBalanced{}
	default:
		return nil
	}
}

// pickBest returns the first candidate with the strictly highest score.
func pickBest(eligible []candidate, score func(c *candidate) float64) *candidate {
	var best *candidate
	var bestScore float64
	for i := range eligible {
		s := score(&eligible[i])
		if best == nil || s > bestScore {
			best = &eligible[i]
			bestScore = s
		}
	}
	return best
}

// costOptimized minimizes the estimated cost for the request's token profile.
type costOptimized struct{}

func (costOptimized) Select(eligible []candidate, _ *models.RoutingRequest) *candidate {
	return pickBest(eligible, func(c *candidate) float64 {
		return -c.estimatedCost
	})
}

// latencyOptimized minimizes the tracked moving-average latency.
type latencyOptimized struct{}

func (latencyOptimized) Select(eligible []candidate, _ *models.RoutingRequest) *candidate {
	return pickBest(eligible, func(c *candidate) float64 {
		return -c.health.LatencyMs
	})
}

// qualityOptimized maximizes the tracked success rate.
type qualityOptimized struct{}

func (qualityOptimized) Select(eligible []candidate, _ *models.RoutingRequest) *candidate {
	return pickBest(eligible, func(c *candidate) float64 {
		return c.health.SuccessRate
	})
}

// healthcareSpecific weighs compliance completeness 40%, performance 30%,
// inverse cost 20% and use-case affinity 10%.
type healthcareSpecific struct{}

func (healthcareSpecific) Select(eligible []candidate, req *models.RoutingRequest) *candidate {
	return pickBest(eligible, func(c *candidate) float64 {
		compliance := complianceCompleteness(c.config)
		performance := 0.5*(c.health.SuccessRate/100.0) + 0.5*inverseLatency(c.health.LatencyMs)
		cost := inverseCost(c.estimatedCost)
		affinity := 0.0
		for _, uc := range c.config.UseCaseAffinity {
			if uc == req.Context.UseCase {
				affinity = 1.0
				break
			}
		}
		return 0.40*compliance + 0.30*performance + 0.20*cost + 0.10*affinity
	})
}

// emergencyPriority is latency-first over fully-compliant providers only.
type emergencyPriority struct{}

func (emergencyPriority) Select(eligible []candidate, _ *models.RoutingRequest) *candidate {
	var best *candidate
	var bestScore float64
	for i := range eligible {
		if complianceCompleteness(eligible[i].config) < 1.0 {
			continue
		}
		s := -eligible[i].health.LatencyMs
		if best == nil || s > bestScore {
			best = &eligible[i]
			bestScore = s
		}
	}
	return best
}

// loadBalanced scores success_rate − latency/1000 so load drifts toward
// healthy, fast providers without any external coordination state.
type loadBalanced struct{}

func (loadBalanced) Select(eligible []candidate, _ *models.RoutingRequest) *candidate {
	return pickBest(eligible, func(c *candidate) float64 {
		return c.health.SuccessRate - c.health.LatencyMs/1000.0
	})
}

var allComplianceFlags = []models.ComplianceFlag{
	models.ComplianceLGPD,
	models.ComplianceANVISA,
	models.ComplianceCFM,
}

// complianceCompleteness is the fraction of known regulatory flags the
// provider holds; 1.0 means fully compliant.
func complianceCompleteness(p *models.ProviderConfig) float64 {
	held := 0
	for _, flag := range allComplianceFlags {
		if p.HasCompliance([]models.ComplianceFlag{flag}) {
			held++
		}
	}
	return float64(held) / float64(len(allComplianceFlags))
}

func inverseLatency(latencyMs float64) float64 {
	return 1.0 / (1.0 + latencyMs/1000.0)
}

func inverseCost(cost float64) float64 {
	return 1.0 / (1.0 + cost*100.0)
}
