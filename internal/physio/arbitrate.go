package physio

// Selection is the arbitration outcome for one cycle.
type Selection uint8

const (
	SelectNone      Selection = iota // No strict winner: fail-safe stop
	SelectEnergy                     // Energy need won
	SelectTegument                   // Tegument need won
	SelectIntegrity                  // Integrity need won
)

// String returns the selection name for logs and records.
func (s Selection) String() string {
	switch s {
	case SelectEnergy:
		return "energy"
	case SelectTegument:
		return "tegument"
	case SelectIntegrity:
		return "integrity"
	default:
		return "none"
	}
}

// Arbitrate runs winner-take-all over the three motivations. A need
// wins only when its motivation is strictly greater than both others;
// any tie for the maximum yields SelectNone. Stateless: no hysteresis,
// no randomness.
func Arbitrate(energy, tegument, integrity float64) Selection {
	switch {
	case energy > tegument && energy > integrity:
		return SelectEnergy
	case tegument > energy && tegument > integrity:
		return SelectTegument
	case integrity > energy && integrity > tegument:
		return SelectIntegrity
	default:
		return SelectNone
	}
}
