package cmd

import (
	"fmt"
	"strconv"

	"github.com/fatih/color"
	"github.com/roffe/godiag"
	"github.com/spf13/cobra"
)

var (
	dtcColor = color.New(color.FgRed, color.Bold).SprintFunc()
	okColor  = color.New(color.FgGreen).SprintFunc()
)

func init() {
	rootCmd.AddCommand(adaptersCmd, vinCmd, dtcCmd, didCmd, testerCmd)
}

var adaptersCmd = &cobra.Command{
	Use:   "adapters",
	Short: "list available adapters and serial ports",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		for _, a := range godiag.ListAdapters() {
			fmt.Printf("%s\n  %s\n", a.String(), a.Capabilities.String())
		}
		printPorts()
	},
}

var vinCmd = &cobra.Command{
	Use:   "vin",
	Short: "read the vehicle identification number",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession(cmd)
		if err != nil {
			return err
		}
		defer s.Close()
		vin, err := s.uds.ReadVIN(cmd.Context(), s.id)
		if err != nil {
			return err
		}
		fmt.Println("VIN:", vin)
		return nil
	},
}

var dtcCmd = &cobra.Command{
	Use:   "dtc",
	Short: "show stored DTC's",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession(cmd)
		if err != nil {
			return err
		}
		defer s.Close()
		dtcs, err := s.uds.ReadTroubleCodes(cmd.Context(), s.id)
		if err != nil {
			return err
		}
		if len(dtcs) == 0 {
			fmt.Println(okColor("no DTC's stored"))
			return nil
		}
		for i, d := range dtcs {
			fmt.Printf("#%d %s (%02X %02X)\n", i+1, dtcColor(d.String()), d[0], d[1])
		}
		return nil
	},
}

var didCmd = &cobra.Command{
	Use:   "did <identifier>",
	Short: "read data by identifier",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		did, err := strconv.ParseUint(args[0], 0, 16)
		if err != nil {
			return fmt.Errorf("invalid identifier: %w", err)
		}
		s, err := openSession(cmd)
		if err != nil {
			return err
		}
		defer s.Close()
		data, err := s.uds.ReadDataByIdentifier(cmd.Context(), s.id, uint16(did))
		if err != nil {
			return err
		}
		fmt.Printf("0x%04X: % X || %s\n", did, data, printable(data))
		return nil
	},
}

var testerCmd = &cobra.Command{
	Use:   "tester",
	Short: "send tester present",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession(cmd)
		if err != nil {
			return err
		}
		defer s.Close()
		if err := s.uds.TesterPresent(cmd.Context(), s.id); err != nil {
			return err
		}
		fmt.Println(okColor("ECU present"))
		return nil
	},
}

func printable(data []byte) string {
	out := make([]byte, len(data))
	for i, b := range data {
		if b < 32 || b > 126 {
			out[i] = '.'
			continue
		}
		out[i] = b
	}
	return string(out)
}
