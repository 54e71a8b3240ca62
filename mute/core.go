// Package mute resolves which mute and volume control points of an input
// device actually work, and reads and writes through them with verification.
//
// Drivers disagree on where the mute control lives: some expose it per
// channel, some only on the main element, some only under the global or even
// the output scope of an input device. The package therefore probes every
// plausible (scope, channel) combination, groups the hits into candidate
// target groups, and writes speculatively: each candidate is written, read
// back, and rolled back if the value did not stick, until one works.
//
// A Core holds no state between calls. Callers serialise access to it.
package mute

import (
	log "github.com/sirupsen/logrus"
	"golang.org/x/text/language"

	"github.com/flokli/mute-agent/hal"
)

// Core is the entry point of the package.
type Core struct {
	backend hal.Backend
	log     log.FieldLogger
	lang    language.Tag
}

type Option func(*Core)

// WithLogger sets the logger. It defaults to the logrus standard logger.
func WithLogger(l log.FieldLogger) Option {
	return func(c *Core) {
		c.log = l
	}
}

// WithLanguage sets the language used to collate device names.
func WithLanguage(tag language.Tag) Option {
	return func(c *Core) {
		c.lang = tag
	}
}

func New(backend hal.Backend, opts ...Option) *Core {
	c := &Core{
		backend: backend,
		log:     log.StandardLogger(),
		lang:    language.Und,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}
