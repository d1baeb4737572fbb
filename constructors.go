package dwranging

import "github.com/ystepanoff/dwranging/ranging"

// New builds an engine over an explicit driver; attach callbacks, then start
// it with StartAsTag or StartAsAnchor.
func New(driver Driver, opts ...Option) *Engine {
	return ranging.New(driver, opts...)
}

// NewTag builds and starts a tag in one call.
func NewTag(driver Driver, eui string, mode Mode, randomShort bool) (*Engine, error) {
	e := ranging.New(driver)
	if err := e.StartAsTag(eui, mode, randomShort); err != nil {
		return nil, err
	}
	return e, nil
}

// NewAnchor builds and starts an anchor in one call.
func NewAnchor(driver Driver, eui string, mode Mode, randomShort bool) (*Engine, error) {
	e := ranging.New(driver)
	if err := e.StartAsAnchor(eui, mode, randomShort); err != nil {
		return nil, err
	}
	return e, nil
}
