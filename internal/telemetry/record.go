// Package telemetry defines the per-cycle diagnostic record and its
// CSV output stream.
package telemetry

// CycleRecord is the diagnostic snapshot emitted once per control
// cycle: the full physiological state, the arbitration outcome, the
// emitted command and the damage flag.
type CycleRecord struct {
	Cycle uint64 `csv:"cycle" db:"cycle" json:"cycle"`

	EnergyVar    float64 `csv:"energy_var" db:"energy_var" json:"energy_var"`
	TegumentVar  float64 `csv:"tegument_var" db:"tegument_var" json:"tegument_var"`
	IntegrityVar float64 `csv:"integrity_var" db:"integrity_var" json:"integrity_var"`

	EnergyDef    float64 `csv:"energy_def" db:"energy_def" json:"energy_def"`
	TegumentDef  float64 `csv:"tegument_def" db:"tegument_def" json:"tegument_def"`
	IntegrityDef float64 `csv:"integrity_def" db:"integrity_def" json:"integrity_def"`

	EnergyCue    float64 `csv:"energy_cue" db:"energy_cue" json:"energy_cue"`
	TegumentCue  float64 `csv:"tegument_cue" db:"tegument_cue" json:"tegument_cue"`
	IntegrityCue float64 `csv:"integrity_cue" db:"integrity_cue" json:"integrity_cue"`

	EnergyMot    float64 `csv:"energy_mot" db:"energy_mot" json:"energy_mot"`
	TegumentMot  float64 `csv:"tegument_mot" db:"tegument_mot" json:"tegument_mot"`
	IntegrityMot float64 `csv:"integrity_mot" db:"integrity_mot" json:"integrity_mot"`

	Winner string  `csv:"winner" db:"winner" json:"winner"`
	Left   float64 `csv:"left" db:"cmd_left" json:"left"`
	Right  float64 `csv:"right" db:"cmd_right" json:"right"`
	Damage bool    `csv:"damage" db:"damage" json:"damage"`
}
