package matcher

// Static is an in-memory Properties implementation for code paths that run
// without a udev database, such as tests in this and dependent packages.
type Static struct {
	Values map[string]string
	Up     *Static
}

// Property implements Properties.
func (s *Static) Property(key string) (string, bool) {
	v, ok := s.Values[key]
	return v, ok
}

// Parent implements Properties.
func (s *Static) Parent() Properties {
	if s.Up == nil {
		return nil
	}
	return s.Up
}

// Chain builds a Static device from property maps ordered device first,
// root last.
func Chain(levels ...map[string]string) *Static {
	var parent *Static
	for i := len(levels) - 1; i >= 0; i-- {
		parent = &Static{Values: levels[i], Up: parent}
	}
	return parent
}
