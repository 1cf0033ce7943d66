package cli

import (
	"fmt"
	"io"
	"strconv"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/vbonduro/cashreg/internal/domain"
	"github.com/vbonduro/cashreg/internal/service"
)

// ItemOptions holds flags shared by inventory add and update.
type ItemOptions struct {
	*RootOptions
	Name        string
	Price       string
	Quantity    int
	Description string
	Barcode     string
}

// NewInventoryCommand creates the inventory command group.
func NewInventoryCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "inventory",
		Aliases: []string{"inv"},
		Short:   "Manage stocked items",
	}

	cmd.AddCommand(newInventoryAddCommand(rootOpts))
	cmd.AddCommand(newInventoryListCommand(rootOpts))
	cmd.AddCommand(newInventoryGetCommand(rootOpts))
	cmd.AddCommand(newInventoryUpdateCommand(rootOpts))
	cmd.AddCommand(newInventoryStockCommand(rootOpts, "restock", "Add units to an item's stock"))
	cmd.AddCommand(newInventoryStockCommand(rootOpts, "sell", "Remove sold units from an item's stock"))
	cmd.AddCommand(newInventoryDeleteCommand(rootOpts))

	return cmd
}

func bindItemFlags(cmd *cobra.Command, opts *ItemOptions) {
	cmd.Flags().StringVar(&opts.Name, "name", "", "item name")
	cmd.Flags().StringVar(&opts.Price, "price", "", "unit price, e.g. 9.99")
	cmd.Flags().IntVar(&opts.Quantity, "quantity", 0, "units in stock")
	cmd.Flags().StringVar(&opts.Description, "description", "", "free-form description")
	cmd.Flags().StringVar(&opts.Barcode, "barcode", "", "unique barcode / SKU")
}

func newInventoryAddCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ItemOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:     "add",
		Short:   "Stock a new item",
		Example: `  cashreg inventory add --name "Widget" --price 9.99 --quantity 10 --barcode 012345`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			price, err := parsePrice(opts.Price)
			if err != nil {
				return err
			}
			return withApp(cmd, rootOpts, func(a *app) error {
				id, err := a.inventory.Create(cmd.Context(), opts.Name, price, opts.Quantity,
					service.InventoryOptions{Description: opts.Description, Barcode: opts.Barcode})
				if err != nil {
					return err
				}
				item, err := a.inventory.Get(cmd.Context(), id)
				if err != nil {
					return err
				}
				return printItems(newPrinter(cmd, rootOpts), item)
			})
		},
	}

	bindItemFlags(cmd, opts)
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("price")

	return cmd
}

func newInventoryListCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stocked items",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, rootOpts, func(a *app) error {
				items, err := a.inventory.List(cmd.Context())
				if err != nil {
					return err
				}
				return printItems(newPrinter(cmd, rootOpts), items...)
			})
		},
	}
}

func newInventoryGetCommand(rootOpts *RootOptions) *cobra.Command {
	var barcode bool

	cmd := &cobra.Command{
		Use:   "get <id>",
		Short: "Show one item by id, or by barcode with --barcode",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, rootOpts, func(a *app) error {
				var item *domain.InventoryItem
				if barcode {
					found, err := a.inventory.LookupBarcode(cmd.Context(), args[0])
					if err != nil {
						return err
					}
					item = found
				} else {
					id, err := parseID(args[0])
					if err != nil {
						return err
					}
					if item, err = a.inventory.Get(cmd.Context(), id); err != nil {
						return err
					}
				}
				return printItems(newPrinter(cmd, rootOpts), item)
			})
		},
	}

	cmd.Flags().BoolVar(&barcode, "barcode", false, "treat the argument as a barcode")

	return cmd
}

func newInventoryUpdateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ItemOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Change an item's details; only the given flags are applied",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withApp(cmd, rootOpts, func(a *app) error {
				item, err := a.inventory.Get(cmd.Context(), id)
				if err != nil {
					return err
				}

				flags := cmd.Flags()
				if flags.Changed("name") {
					item.Name = opts.Name
				}
				if flags.Changed("price") {
					if item.Price, err = parsePrice(opts.Price); err != nil {
						return err
					}
				}
				if flags.Changed("quantity") {
					item.Quantity = opts.Quantity
				}
				if flags.Changed("description") {
					item.Description = opts.Description
				}
				if flags.Changed("barcode") {
					item.Barcode = opts.Barcode
				}

				if err := a.inventory.Update(cmd.Context(), item); err != nil {
					return err
				}
				return printItems(newPrinter(cmd, rootOpts), item)
			})
		},
	}

	bindItemFlags(cmd, opts)

	return cmd
}

// newInventoryStockCommand builds restock and sell, which differ only in
// direction.
func newInventoryStockCommand(rootOpts *RootOptions, use, short string) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <id> <units>",
		Short: short,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			n, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("%w: units %q is not a whole number", domain.ErrValidation, args[1])
			}
			return withApp(cmd, rootOpts, func(a *app) error {
				adjust := a.inventory.Restock
				if use == "sell" {
					adjust = a.inventory.Sell
				}
				qty, err := adjust(cmd.Context(), id, n)
				if err != nil {
					return err
				}
				return newPrinter(cmd, rootOpts).emit(map[string]any{"id": id, "quantity": qty}, func(w io.Writer) {
					fmt.Fprintf(w, "item %d now has %d in stock\n", id, qty)
				})
			})
		},
	}
}

func newInventoryDeleteCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Remove an item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withApp(cmd, rootOpts, func(a *app) error {
				if err := a.inventory.Delete(cmd.Context(), id); err != nil {
					return err
				}
				return newPrinter(cmd, rootOpts).messagef("deleted item %d", id)
			})
		},
	}
}

func printItems(p *printer, items ...*domain.InventoryItem) error {
	if items == nil {
		items = []*domain.InventoryItem{}
	}
	return p.emit(items, func(w io.Writer) {
		t := newTable(w, "ID", "NAME", "PRICE", "QTY", "BARCODE", "DESCRIPTION")
		for _, item := range items {
			t.Append([]string{strconv.FormatInt(item.ID, 10), item.Name, item.Price.StringFixed(2),
				strconv.Itoa(item.Quantity), item.Barcode, item.Description})
		}
		t.Render()
	})
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: %q is not a valid id", domain.ErrValidation, s)
	}
	return id, nil
}

func parsePrice(s string) (decimal.Decimal, error) {
	price, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("%w: price %q is not a number", domain.ErrValidation, s)
	}
	return price, nil
}
