package strategies

// Signal is a discrete directional recommendation.
type Signal int

const (
	None  Signal = 0
	Long  Signal = 1
	Short Signal = -1
)

func (s Signal) String() string {
	switch s {
	case Long:
		return "long"
	case Short:
		return "short"
	default:
		return "none"
	}
}
