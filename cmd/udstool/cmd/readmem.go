package cmd

import (
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/manifoldco/promptui"
	"github.com/roffe/godiag/pkg/bar"
	"github.com/roffe/godiag/pkg/ecusim"
	"github.com/roffe/godiag/pkg/uds"
	"github.com/spf13/cobra"
)

const flagBlockSize = "block"

func init() {
	readmemCmd.Flags().Uint16(flagBlockSize, uds.DefaultMemoryBlockSize, "bytes per ReadMemoryByAddress request")
	readmemCmd.Flags().String(flagMask, "", "unlock with this XOR key mask (hex) before reading")
	rootCmd.AddCommand(readmemCmd)
}

var readmemCmd = &cobra.Command{
	Use:   "readmem <address> <length> [file]",
	Short: "read ECU memory, hexdump to stdout or save to file",
	Args:  cobra.RangeArgs(2, 3),
	RunE: func(cmd *cobra.Command, args []string) error {
		address, err := strconv.ParseUint(args[0], 0, 32)
		if err != nil {
			return fmt.Errorf("invalid address: %w", err)
		}
		length, err := strconv.ParseUint(args[1], 0, 32)
		if err != nil || length == 0 {
			return fmt.Errorf("invalid length %q", args[1])
		}
		var filename string
		if len(args) == 3 {
			filename = args[2]
			if _, err := os.Stat(filename); err == nil {
				log.Printf("%s already exists, overwrite?", filename)
				if !yesNo() {
					return nil
				}
			}
		}
		blockSize, _ := cmd.Flags().GetUint16(flagBlockSize)
		mask, err := maskFlag(cmd)
		if err != nil {
			return err
		}

		s, err := openSession(cmd)
		if err != nil {
			return err
		}
		defer s.Close()
		ctx := cmd.Context()

		if len(mask) > 0 {
			if err := s.uds.Unlock(ctx, s.id, ecusim.XORKey(mask)); err != nil {
				return err
			}
		}

		var progress uds.ProgressFunc
		if filename != "" {
			progress = bar.Progress(bar.New(int(length), fmt.Sprintf("reading 0x%X", address)))
		}
		start := time.Now()
		data, err := s.uds.ReadMemory(ctx, s.id, uint32(address), int(length), blockSize, progress)
		if err != nil {
			if uds.IsNegativeResponse(err, uds.NRCSecurityAccessDenied) {
				return errors.New("security access denied, use --mask to unlock first")
			}
			return err
		}
		if filename == "" {
			fmt.Print(hex.Dump(data))
			return nil
		}
		if err := os.WriteFile(filename, data, 0644); err != nil {
			return fmt.Errorf("failed to write dump file: %w", err)
		}
		log.Printf("read %d bytes to %s, took %s", len(data), filename, time.Since(start).Round(time.Millisecond))
		return nil
	},
}

func yesNo() bool {
	prompt := promptui.Select{
		Label:    "[Yes/No]",
		HideHelp: true,
		Items:    []string{"Yes", "No"},
	}
	_, result, err := prompt.Run()
	if err != nil {
		log.Fatalf("Prompt failed %v\n", err)
	}
	return result == "Yes"
}
