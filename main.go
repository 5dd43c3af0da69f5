// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Dobot Team
//
// Servo Master - Ethernet servo master and link analyzer
//
// A CLI tool for running the cycle engine against a servo slave and for
// decoding master/slave traffic in human-readable format.

package main

import (
	"os"

	"github.com/Dobot-Team/dobot-ethernet-master-sdk/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
