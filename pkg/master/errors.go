// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Dobot Team

package master

import "errors"

// Error categories returned by Configure. Use errors.Is to test for them;
// configuration errors also wrap *axis.ConfigError where one applies.
var (
	ErrConfig   = errors.New("master: invalid configuration")
	ErrSequence = errors.New("master: invalid lifecycle transition")
	ErrLink     = errors.New("master: link unavailable")
)
