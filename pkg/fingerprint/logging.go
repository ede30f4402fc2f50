package fingerprint

import "github.com/rs/zerolog"

// SetLogger redirects this Detector's loader/detector diagnostics.
// The default is zerolog.Nop(), so a Detector is silent until a caller
// opts in.
func (d *Detector) SetLogger(l zerolog.Logger) {
	d.log = l
}

// WithLogger returns an Option that sets the Detector's logger, for call sites
// that prefer a functional-option style over SetLogger.
func WithLogger(l zerolog.Logger) Option {
	return func(d *Detector) { d.log = l }
}

// Option configures a Detector at construction time.
type Option func(*Detector)
