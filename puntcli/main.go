// Copyright 2020 Sebastian Lehmann. All rights reserved.
// Use of this source code is governed by a GNU-style
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"os"

	"github.com/bbnote/gopunt"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	prefixed "github.com/x-cray/logrus-prefixed-formatter"
)

var (
	flagSerial  string
	flagVerbose bool
)

var rootCmd = &cobra.Command{
	Use:   "puntcli",
	Short: "Flash tool for microcontrollers running the punt bootloader",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		log.SetFormatter(&prefixed.TextFormatter{FullTimestamp: true})

		if flagVerbose {
			log.SetLevel(log.DebugLevel)
			gopunt.SetLogger(log.StandardLogger())
		}
	},
	SilenceUsage: true,
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List connected punt targets",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, err := gopunt.NewContext()
		if err != nil {
			return err
		}
		defer ctx.Close()

		targets, err := ctx.FindTargets()
		if err != nil {
			return err
		}

		if len(targets) == 0 {
			log.Info("No punt targets found")
			return nil
		}

		for _, t := range targets {
			fmt.Printf("Bus %03d Device %03d  Serial %s\n",
				t.BusNumber, t.BusAddress, t.Serial)
		}
		return nil
	},
}

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show bootloader and flash metadata of a target",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, target, err := openTarget()
		if err != nil {
			return err
		}
		defer ctx.Close()
		defer target.Close()

		fmt.Print(target.Info)
		return nil
	},
}

var exitCmd = &cobra.Command{
	Use:   "exit",
	Short: "Leave the bootloader and start the application",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, target, err := openTarget()
		if err != nil {
			return err
		}
		defer ctx.Close()
		defer target.Close()

		if err := target.ExitBootloader(); err != nil {
			return err
		}

		log.Info("Target left bootloader mode")
		return nil
	},
}

// openTarget applies the --serial selection policy and opens the chosen
// target.
func openTarget() (*gopunt.Context, *gopunt.Target, error) {
	ctx, err := gopunt.NewContext()
	if err != nil {
		return nil, nil, err
	}

	info, err := ctx.PickTarget(flagSerial)
	if err != nil {
		ctx.Close()
		return nil, nil, err
	}

	target, err := ctx.Open(info)
	if err != nil {
		ctx.Close()
		return nil, nil, err
	}

	log.Debugf("Opened target %s", info.Serial)
	return ctx, target, nil
}

// runWithProgress drives an operation step by step and renders the
// progress on stdout.
func runWithProgress(verb string, op gopunt.Operation) error {
	total := op.Total()

	for {
		progress, ok, err := op.Step()
		if err != nil {
			fmt.Println()
			return err
		}
		if !ok {
			break
		}
		fmt.Printf("\r%s %d/%d", verb, progress, total)
	}

	if total > 0 {
		fmt.Println()
	}
	return nil
}

func main() {
	rootCmd.PersistentFlags().StringVarP(&flagSerial, "serial", "s", "",
		"serial number of the target to use")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false,
		"enable debug logging")

	rootCmd.AddCommand(listCmd, infoCmd, flashCmd, readCmd, eraseCmd, exitCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
