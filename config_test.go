// Copyright © 2026, SAS Institute Inc., Cary, NC, USA.  All Rights Reserved.
// SPDX-License-Identifier: BSD-3-Clause

package gemdoc

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewDefaultConfig_Validates(t *testing.T) {
	cfg := NewDefaultConfig()
	assert.NoError(t, cfg.Validate())
}

func TestConfig_Validate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{"too many concurrent docs", func(c *Config) { c.MaxConcurrentDocs = 11 }, false},
		{"zero concurrent docs", func(c *Config) { c.MaxConcurrentDocs = 0 }, false},
		{"zero redirects", func(c *Config) { c.MaxRedirects = 0 }, false},
		{"missing timeout", func(c *Config) { c.FetchTimeout = 0 }, false},
		{"missing source filename", func(c *Config) { c.SourceFilename = "" }, false},
		{"flate enabled", func(c *Config) { c.FlateEncodeStreams = true }, true},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			cfg := NewDefaultConfig()
			c.mutate(cfg)
			err := cfg.Validate()
			if c.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}
