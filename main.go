// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad
//
// ifrad - PRDTIR01 RS-485 instrument tool
//
// A CLI tool for decoding PRDTIR01 frames and driving the acquisition
// command workflow of RS-485 measurement boards.

package main

import (
	"os"

	"github.com/Thermoquad/ifrad/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
