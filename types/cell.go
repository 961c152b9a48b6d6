package types

// Cell is one grid unit. Source and Conduction are fixed once a grid is
// built, relaxation only ever writes Temperature.
type Cell struct {
	Source      float64 // Heat source intensity, lower bound on Temperature
	Temperature float64
	Conduction  float64 // Blend factor in [0,1]
}
