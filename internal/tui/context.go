package tui

// ViewContext provides read-only context to panels for rendering.
type ViewContext struct {
	ContentWidth int
	Loading      bool // a fetch is in flight and no snapshot has loaded yet
}

// compact reports whether panels should shrink to fit a narrow terminal.
func (c ViewContext) compact() bool {
	return c.ContentWidth < 80
}
