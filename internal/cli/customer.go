package cli

import (
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/vbonduro/cashreg/internal/domain"
	"github.com/vbonduro/cashreg/internal/service"
)

// CustomerOptions holds flags for customer add.
type CustomerOptions struct {
	*RootOptions
	FirstName string
	LastName  string
	Email     string
	DOB       string
	Phone     string
	Address   string
	City      string
	State     string
	ZipCode   string
	IDImage   string
	Capture   bool
	Warmup    time.Duration
}

// NewCustomerCommand creates the customer command group.
func NewCustomerCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "customer",
		Short: "Record and look up ID-verified customers",
	}

	cmd.AddCommand(newCustomerAddCommand(rootOpts))
	cmd.AddCommand(newCustomerListCommand(rootOpts))
	cmd.AddCommand(newCustomerGetCommand(rootOpts))

	return cmd
}

func newCustomerAddCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CustomerOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Record a customer after checking their ID",
		Long: `Record a customer after checking their ID. The ID image is either an
existing file (--id-image) or a fresh still from the webcam (--capture).
Every verification creates a new customer record.`,
		Example: `  cashreg customer add --first Ada --last Lovelace --email ada@example.com \
    --dob 1990-12-10 --capture`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if (opts.IDImage == "") == !opts.Capture {
				return fmt.Errorf("%w: give exactly one of --id-image or --capture", domain.ErrValidation)
			}
			dob, err := time.ParseInLocation(domain.DateLayout, opts.DOB, time.Local)
			if err != nil {
				return fmt.Errorf("%w: --dob %q is not a YYYY-MM-DD date", domain.ErrValidation, opts.DOB)
			}

			return withApp(cmd, rootOpts, func(a *app) error {
				image := opts.IDImage
				if opts.Capture {
					if image, err = captureID(cmd, a, rootOpts, opts.Warmup); err != nil {
						return err
					}
				}

				id, err := a.customers.Create(cmd.Context(), opts.FirstName, opts.LastName, opts.Email, dob, image,
					service.CustomerOptions{
						Phone:   opts.Phone,
						Address: opts.Address,
						City:    opts.City,
						State:   opts.State,
						ZipCode: opts.ZipCode,
					})
				if err != nil {
					if opts.Capture {
						discardCapture(cmd, a, image)
					}
					return err
				}
				c, err := a.customers.Get(cmd.Context(), id)
				if err != nil {
					return err
				}
				return printCustomers(newPrinter(cmd, rootOpts), a, c)
			})
		},
	}

	cmd.Flags().StringVar(&opts.FirstName, "first", "", "first name")
	cmd.Flags().StringVar(&opts.LastName, "last", "", "last name")
	cmd.Flags().StringVar(&opts.Email, "email", "", "email address")
	cmd.Flags().StringVar(&opts.DOB, "dob", "", "date of birth (YYYY-MM-DD)")
	cmd.Flags().StringVar(&opts.Phone, "phone", "", "phone number")
	cmd.Flags().StringVar(&opts.Address, "address", "", "street address")
	cmd.Flags().StringVar(&opts.City, "city", "", "city")
	cmd.Flags().StringVar(&opts.State, "state", "", "state")
	cmd.Flags().StringVar(&opts.ZipCode, "zip", "", "zip code")
	cmd.Flags().StringVar(&opts.IDImage, "id-image", "", "path to an already captured ID image")
	cmd.Flags().BoolVar(&opts.Capture, "capture", false, "capture the ID image from the webcam")
	cmd.Flags().DurationVar(&opts.Warmup, "warmup", 0, "run the live feed this long before capturing")
	for _, name := range []string{"first", "last", "email", "dob"} {
		_ = cmd.MarkFlagRequired(name)
	}

	return cmd
}

func newCustomerListCommand(rootOpts *RootOptions) *cobra.Command {
	var email string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List customers, newest verification first with --email",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, rootOpts, func(a *app) error {
				var (
					customers []*domain.Customer
					err       error
				)
				if email != "" {
					customers, err = a.customers.FindByEmail(cmd.Context(), email)
				} else {
					customers, err = a.customers.List(cmd.Context())
				}
				if err != nil {
					return err
				}
				return printCustomers(newPrinter(cmd, rootOpts), a, customers...)
			})
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "only customers with this email")

	return cmd
}

func newCustomerGetCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Show one customer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withApp(cmd, rootOpts, func(a *app) error {
				c, err := a.customers.Get(cmd.Context(), id)
				if err != nil {
					return err
				}
				return printCustomers(newPrinter(cmd, rootOpts), a, c)
			})
		},
	}
}

func printCustomers(p *printer, a *app, customers ...*domain.Customer) error {
	if customers == nil {
		customers = []*domain.Customer{}
	}
	return p.emit(customers, func(w io.Writer) {
		t := newTable(w, "ID", "NAME", "EMAIL", "DOB", "AGE", "ID IMAGE")
		for _, c := range customers {
			t.Append([]string{strconv.FormatInt(c.ID, 10), c.FullName(), c.Email,
				c.DOB.Format(domain.DateLayout), strconv.Itoa(a.customers.Age(c)), c.IDImagePath})
		}
		t.Render()
	})
}

// discardCapture removes a still that never made it onto a customer record.
func discardCapture(cmd *cobra.Command, a *app, path string) {
	if err := a.images.Delete(cmd.Context(), filepath.Base(path)); err != nil {
		a.logger.Warn("failed to remove unused capture", "path", path, "error", err)
	}
}
