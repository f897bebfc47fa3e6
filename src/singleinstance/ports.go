package singleinstance

const (
	DefaultPortStart = 49600
	DefaultPortEnd   = 49610
)

// PortRange is an inclusive TCP port range on the loopback interface.
type PortRange struct {
	Start int
	End   int
}

func DefaultPorts() PortRange { return PortRange{Start: DefaultPortStart, End: DefaultPortEnd} }

// normalize falls back to defaults for unset values and clamps to [1024, 65535].
func (r PortRange) normalize() PortRange {
	if r.Start == 0 {
		r.Start = DefaultPortStart
	}
	if r.End == 0 {
		r.End = DefaultPortEnd
	}
	if r.Start < 1024 {
		r.Start = 1024
	}
	if r.End > 65535 {
		r.End = 65535
	}
	if r.End < r.Start {
		r.Start, r.End = r.End, r.Start
	}
	return r
}
