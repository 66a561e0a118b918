package cmd

import (
	"context"
	"log"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:          "udstool",
	Short:        "UDS diagnostic tool",
	Long:         `Talk UDS over ISO-TP to an ECU, or to the built in simulator with the Virtual adapter`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

const (
	flagPort       = "port"
	flagBaudrate   = "baudrate"
	flagCANRate    = "canrate"
	flagDebug      = "debug"
	flagAdapter    = "adapter"
	flagID         = "id"
	flagTimeout    = "timeout"
	flagMaxPending = "max-pending"
	flagProfile    = "profile"
)

func init() {
	log.SetFlags(log.Lshortfile | log.LstdFlags)

	pf := rootCmd.PersistentFlags()
	pf.StringP(flagPort, "p", "*", "com-port, * = print available")
	pf.IntP(flagBaudrate, "b", 115200, "baudrate")
	pf.Float64P(flagCANRate, "c", 500, "CAN rate in kbit/s")
	pf.BoolP(flagDebug, "d", false, "debug mode")
	pf.StringP(flagAdapter, "a", "Virtual", "what adapter to use")
	pf.Uint32P(flagID, "i", 0x7E0, "request arbitration id, responses are expected on id+8")
	pf.Duration(flagTimeout, defaultTimeout, "ISO-TP frame timeout")
	pf.Uint(flagMaxPending, 0, "max response pending answers per request, 0 = wait forever")
	pf.String(flagProfile, "", "simulator profile (yaml) for the Virtual adapter")
}
