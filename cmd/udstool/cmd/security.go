package cmd

import (
	"encoding/hex"
	"fmt"
	"strconv"

	"github.com/roffe/godiag/pkg/ecusim"
	"github.com/spf13/cobra"
)

const flagMask = "mask"

func init() {
	unlockCmd.Flags().String(flagMask, "5A5A5A5A", "XOR key mask (hex)")
	rootCmd.AddCommand(sessionCmd, seedCmd, keyCmd, unlockCmd)
}

var sessionCmd = &cobra.Command{
	Use:   "session <id>",
	Short: "change diagnostic session, 1 = default, 2 = programming, 3 = extended",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseUint(args[0], 0, 8)
		if err != nil {
			return fmt.Errorf("invalid session: %w", err)
		}
		s, err := openSession(cmd)
		if err != nil {
			return err
		}
		defer s.Close()
		if err := s.uds.SetDiagnosticSession(cmd.Context(), s.id, byte(id)); err != nil {
			return err
		}
		fmt.Println(okColor(fmt.Sprintf("session 0x%02X active", id)))
		return nil
	},
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "request security access seed",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession(cmd)
		if err != nil {
			return err
		}
		defer s.Close()
		seed, err := s.uds.RequestSecuritySeed(cmd.Context(), s.id)
		if err != nil {
			return err
		}
		fmt.Printf("seed: %X\n", seed)
		return nil
	},
}

var keyCmd = &cobra.Command{
	Use:   "key <hex>",
	Short: "send security access key",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, err := hex.DecodeString(args[0])
		if err != nil {
			return fmt.Errorf("invalid key: %w", err)
		}
		s, err := openSession(cmd)
		if err != nil {
			return err
		}
		defer s.Close()
		if err := s.uds.SendSecurityKey(cmd.Context(), s.id, key); err != nil {
			return err
		}
		fmt.Println(okColor("key accepted"))
		return nil
	},
}

var unlockCmd = &cobra.Command{
	Use:   "unlock",
	Short: "request seed and answer with seed XOR mask",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		mask, err := maskFlag(cmd)
		if err != nil {
			return err
		}
		s, err := openSession(cmd)
		if err != nil {
			return err
		}
		defer s.Close()
		if err := s.uds.Unlock(cmd.Context(), s.id, ecusim.XORKey(mask)); err != nil {
			return err
		}
		fmt.Println(okColor("security access granted"))
		return nil
	},
}

func maskFlag(cmd *cobra.Command) ([]byte, error) {
	m, _ := cmd.Flags().GetString(flagMask)
	mask, err := hex.DecodeString(m)
	if err != nil {
		return nil, fmt.Errorf("invalid mask: %w", err)
	}
	return mask, nil
}
