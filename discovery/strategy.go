package discovery

// Strategy selects one endpoint out of several.
type Strategy string

const (
	StrategyRandom     Strategy = "random"
	StrategyRoundRobin Strategy = "round_robin"
	StrategyWeighted   Strategy = "weighted"
)

// Query defines parameters for picking a single endpoint.
type Query struct {
	Service  string
	Protocol string
	Strategy Strategy
	// HealthyOnly drops endpoints whose Health is not HealthHealthy.
	HealthyOnly bool
}
