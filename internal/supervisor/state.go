package supervisor

// State is the supervisor lifecycle state. Stopped and Running are resting
// states; Starting is transient and always resolves to one of the other two.
type State int

const (
	Stopped State = iota
	Starting
	Running
)

func (s State) String() string {
	switch s {
	case Stopped:
		return "stopped"
	case Starting:
		return "starting"
	case Running:
		return "running"
	}
	return "unknown"
}

// Variant is how the backend gets launched, decided per start attempt by
// probing the deployment directory.
type Variant int

const (
	VariantNone Variant = iota
	VariantExecutable
	VariantInterpreter
	VariantDev
)

func (v Variant) String() string {
	switch v {
	case VariantExecutable:
		return "executable"
	case VariantInterpreter:
		return "interpreter"
	case VariantDev:
		return "dev"
	}
	return "none"
}
