// Copyright © 2026, SAS Institute Inc., Cary, NC, USA.  All Rights Reserved.
// SPDX-License-Identifier: BSD-3-Clause

package gemdoc

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/sassoftware/gemdoc/logger"
)

type Config struct {
	MaxConcurrentDocs  int           `validate:"min=1,max=10"`
	MaxRedirects       int           `validate:"min=1,max=10"`
	FetchTimeout       time.Duration `validate:"required"`
	SourceFilename     string        `validate:"required"`
	FlateEncodeStreams bool
	DebugOn            bool
	Logger             logger.LogFunc
}

func NewDefaultConfig() *Config {
	return &Config{
		MaxConcurrentDocs:  5,
		MaxRedirects:       5,
		FetchTimeout:       30 * time.Second,
		SourceFilename:     "source.gmi",
		FlateEncodeStreams: false,
		DebugOn:            false,
	}
}

func (cfg *Config) Validate() error {
	logger.Debug("Validating Config Object")
	validate := validator.New()
	return validate.Struct(cfg)
}
