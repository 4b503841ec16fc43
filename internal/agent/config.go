package agent

// Config is the subset of application configuration the Agent Controller
// needs to drive one turn.
type Config struct {
	Model          string
	Temperature    float64 // spec.md §4.10 step 2: always 0, the loop owns this knob
	MaxIterations  int     // spec.md §4.10 step 5, default 10
	MemoryTopK     int     // default 3
	MemoryMinScore float64 // default 0.3
}

// DefaultConfig returns spec.md §4.10's literal numbers.
func DefaultConfig() Config {
	return Config{Temperature: 0, MaxIterations: 10, MemoryTopK: 3, MemoryMinScore: 0.3}
}
