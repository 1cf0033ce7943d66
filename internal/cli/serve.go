package cli

import (
	"github.com/spf13/cobra"

	"github.com/vbonduro/cashreg/internal/camera"
	"github.com/vbonduro/cashreg/internal/web"
)

// NewServeCommand creates the serve command.
func NewServeCommand(opts *RootOptions) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the register as a local JSON API for a till front end",
		Long: `serve exposes inventory lookup, checkout, customer ID capture and
transaction history over HTTP. When the webcam cannot be opened the
camera routes answer 503 and everything else keeps working.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(a *app) error {
				deps := web.Deps{
					Inventory:    a.inventory,
					Customers:    a.customers,
					Transactions: a.transactions,
					Checkout:     a.checkout,
					Images:       a.images,
				}

				if dev := openDevice(a, opts); dev != nil {
					defer func() {
						if err := dev.Release(); err != nil {
							a.logger.Error("failed to release camera", "error", err)
						}
					}()
					deps.Camera = dev
				}

				return web.NewServer(deps, a.logger).ListenAndServe(cmd.Context(), addr)
			})
		},
	}

	cmd.Flags().StringVar(&addr, "addr", ":8080", "listen address")

	return cmd
}

// openDevice returns nil when the register should run without a camera.
func openDevice(a *app, opts *RootOptions) *camera.Device {
	if opts.Device == "" {
		return nil
	}
	src, err := opts.openCamera(opts.Device)
	if err != nil {
		a.logger.Warn("camera unavailable, id capture disabled", "device", opts.Device, "error", err)
		return nil
	}
	return camera.NewDevice(src, a.images, a.logger)
}
