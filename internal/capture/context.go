package capture

// Context is one consumer's capture state against one adapter group: an
// ordered sequence of per-session state slots, in session order. Slots are
// created only by the group's Setup, so a context can never drift out of
// lockstep with the session list except by misuse across re-initialization,
// which is a programming error and panics.
//
// A Context is not safe for concurrent use. A consumer capturing on two
// goroutines must register two contexts.
type Context struct {
	states []SessionState
}

// NewContext returns an empty context ready for AdapterGroup.Setup.
func NewContext() *Context {
	return &Context{}
}

func (c *Context) size() int { return len(c.states) }

func (c *Context) clear() { c.states = nil }

// DesktopContext is one consumer's capture state against a Coordinator: one
// group-level Context per adapter group, in group order. Created empty and
// populated only by Coordinator.Setup.
type DesktopContext struct {
	contexts []*Context
}

// NewDesktopContext returns an empty context ready for Coordinator.Setup.
func NewDesktopContext() *DesktopContext {
	return &DesktopContext{}
}

func (c *DesktopContext) size() int { return len(c.contexts) }

func (c *DesktopContext) clear() { c.contexts = nil }
