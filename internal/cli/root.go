// Package cli is the cashreg command line: inventory upkeep, customer ID
// verification, checkout and reporting against the local register database.
package cli

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/vbonduro/cashreg/internal/camera"
	"github.com/vbonduro/cashreg/internal/camera/v4l"
	"github.com/vbonduro/cashreg/internal/config"
	"github.com/vbonduro/cashreg/internal/payment"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigPath string
	LogLevel   string
	LogFormat  string
	LogFile    string
	Format     string // "text" | "json"
	Device     string

	// openCamera opens the capture device at path.
	openCamera func(path string) (camera.FrameSource, error)
	// newGateway, when set, replaces the Shopify client.
	newGateway func(cfg config.Shopify) payment.Gateway
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// Frame size requested from the webcam.
const (
	frameWidth  = 1280
	frameHeight = 720
)

// NewRootCommand creates the cashreg root command. Flag defaults come from
// the environment (CASHREG_CONFIG, LOG_LEVEL, LOG_FORMAT, LOG_FILE).
func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{openCamera: openWebcam})
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	env := config.LoadEnv()

	cmd := &cobra.Command{
		Use:   "cashreg",
		Short: "Point-of-sale cash register",
		Long: `cashreg keeps a small shop's inventory, verifies customer ID for
age-restricted sales, records transactions (optionally charging through
Shopify) and exports everything to a spreadsheet.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", env.ConfigPath, "path to the configuration file")
	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", env.LogLevel, "log level (debug|info|warn|error)")
	cmd.PersistentFlags().StringVar(&opts.LogFormat, "log-format", env.LogFormat, "log format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.LogFile, "log-file", env.LogFile, "also append logs to this file")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.Device, "device", "/dev/video0", "webcam used for ID capture")

	cmd.AddCommand(NewInitCommand(opts))
	cmd.AddCommand(NewInventoryCommand(opts))
	cmd.AddCommand(NewCustomerCommand(opts))
	cmd.AddCommand(NewCheckoutCommand(opts))
	cmd.AddCommand(NewTransactionCommand(opts))
	cmd.AddCommand(NewExportCommand(opts))
	cmd.AddCommand(NewCaptureCommand(opts))
	cmd.AddCommand(NewServeCommand(opts))

	return cmd
}

func openWebcam(path string) (camera.FrameSource, error) {
	src, err := v4l.Open(path, frameWidth, frameHeight)
	if err != nil {
		return nil, err
	}
	return src, nil
}
