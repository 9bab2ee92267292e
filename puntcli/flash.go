// Copyright 2020 Sebastian Lehmann. All rights reserved.
// Use of this source code is governed by a GNU-style
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"os"
	"strconv"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	flagAddress string
	flagLength  uint32
	flagNoRun   bool
)

var flashCmd = &cobra.Command{
	Use:   "flash IMAGE",
	Short: "Erase, program and verify a firmware image",
	Long: `Erase, program and verify a firmware image.

IMAGE is either an Intel HEX file (.hex) or a raw binary. Raw binaries are
placed at --address, or at the application flash base if no address is
given.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, target, err := openTarget()
		if err != nil {
			return err
		}
		defer ctx.Close()
		defer target.Close()

		address, haveAddress, err := parseAddress(flagAddress)
		if err != nil {
			return err
		}
		if !haveAddress {
			address = target.Info.ApplicationBase
		}

		data, address, err := loadImage(args[0], address)
		if err != nil {
			return err
		}

		log.Infof("Flashing %d bytes at 0x%08x", len(data), address)

		erase, err := target.EraseArea(address, len(data))
		if err != nil {
			return err
		}
		if err := runWithProgress("Erasing page", erase); err != nil {
			return err
		}

		program, err := target.ProgramAt(data, address)
		if err != nil {
			return err
		}
		if err := runWithProgress("Programming byte", program); err != nil {
			return err
		}

		if err := target.Verify(data, address); err != nil {
			return err
		}
		log.Info("Verification ok")

		if flagNoRun {
			return nil
		}
		return target.ExitBootloader()
	},
}

var readCmd = &cobra.Command{
	Use:   "read FILE",
	Short: "Read flash contents into a file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, target, err := openTarget()
		if err != nil {
			return err
		}
		defer ctx.Close()
		defer target.Close()

		address, haveAddress, err := parseAddress(flagAddress)
		if err != nil {
			return err
		}
		if !haveAddress {
			address = target.Info.ApplicationBase
		}

		length := int(flagLength)
		if length == 0 {
			length = target.Info.ApplicationSize - int(address-target.Info.ApplicationBase)
		}

		buffer := make([]byte, length)
		read, err := target.ReadAt(buffer, address)
		if err != nil {
			return err
		}
		if err := runWithProgress("Reading byte", read); err != nil {
			return err
		}

		return os.WriteFile(args[0], buffer, 0644)
	},
}

var eraseCmd = &cobra.Command{
	Use:   "erase",
	Short: "Erase a flash area",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, target, err := openTarget()
		if err != nil {
			return err
		}
		defer ctx.Close()
		defer target.Close()

		address, haveAddress, err := parseAddress(flagAddress)
		if err != nil {
			return err
		}
		if !haveAddress {
			address = target.Info.ApplicationBase
		}

		length := int(flagLength)
		if length == 0 {
			length = target.Info.ApplicationSize - int(address-target.Info.ApplicationBase)
		}

		erase, err := target.EraseArea(address, length)
		if err != nil {
			return err
		}
		return runWithProgress("Erasing page", erase)
	},
}

func parseAddress(s string) (uint32, bool, error) {
	if s == "" {
		return 0, false, nil
	}

	value, err := strconv.ParseUint(s, 0, 32)
	if err != nil {
		return 0, false, fmt.Errorf("invalid address %q: %w", s, err)
	}

	return uint32(value), true, nil
}

func init() {
	for _, cmd := range []*cobra.Command{flashCmd, readCmd, eraseCmd} {
		cmd.Flags().StringVarP(&flagAddress, "address", "a", "",
			"start address (defaults to the application flash base)")
	}

	readCmd.Flags().Uint32VarP(&flagLength, "length", "l", 0,
		"number of bytes (defaults to the rest of the application flash)")
	eraseCmd.Flags().Uint32VarP(&flagLength, "length", "l", 0,
		"number of bytes (defaults to the rest of the application flash)")

	flashCmd.Flags().BoolVar(&flagNoRun, "no-run", false,
		"stay in the bootloader instead of starting the application")
}
