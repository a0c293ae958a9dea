// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package imager

import "go.uber.org/zap"

// Options adjust image generation.
type Options struct {
	// Logger receives per-partition layout reporting.
	Logger *zap.Logger
}

// Option is a function that sets some option.
type Option func(*Options)

// WithLogger sets the logger for image generation.
func WithLogger(logger *zap.Logger) Option {
	return func(o *Options) {
		o.Logger = logger
	}
}

func applyOptions(opts ...Option) Options {
	options := Options{
		Logger: zap.NewNop(),
	}

	for _, opt := range opts {
		opt(&options)
	}

	return options
}
