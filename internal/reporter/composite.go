package reporter

// CompositeReporter fans every event out to a fixed list of Reporters, e.g.
// a colored TerminalReporter plus a LogReporter writing the same run to disk.
type CompositeReporter struct {
	reporters []Reporter
}

// NewCompositeReporter builds a CompositeReporter broadcasting to each of rs.
func NewCompositeReporter(rs ...Reporter) *CompositeReporter {
	return &CompositeReporter{reporters: rs}
}

func (c *CompositeReporter) Stage(name, message string) {
	for _, r := range c.reporters {
		r.Stage(name, message)
	}
}

func (c *CompositeReporter) Progress(p Progress) {
	for _, r := range c.reporters {
		r.Progress(p)
	}
}

func (c *CompositeReporter) Warning(message string) {
	for _, r := range c.reporters {
		r.Warning(message)
	}
}

func (c *CompositeReporter) Error(err error) {
	for _, r := range c.reporters {
		r.Error(err)
	}
}

func (c *CompositeReporter) Complete(summary Summary) {
	for _, r := range c.reporters {
		r.Complete(summary)
	}
}

func (c *CompositeReporter) Verbose(message string) {
	for _, r := range c.reporters {
		r.Verbose(message)
	}
}
