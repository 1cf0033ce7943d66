package cli

import (
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/vbonduro/cashreg/internal/domain"
)

// NewTransactionCommand creates the transaction command group.
func NewTransactionCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "transaction",
		Aliases: []string{"tx"},
		Short:   "Review recorded sales",
	}

	cmd.AddCommand(newTransactionListCommand(rootOpts))
	cmd.AddCommand(newTransactionGetCommand(rootOpts))

	return cmd
}

func newTransactionListCommand(rootOpts *RootOptions) *cobra.Command {
	var customerID int64

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List sales, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, rootOpts, func(a *app) error {
				var (
					txs []*domain.Transaction
					err error
				)
				if customerID != 0 {
					txs, err = a.transactions.ListByCustomer(cmd.Context(), customerID)
				} else {
					txs, err = a.transactions.List(cmd.Context())
				}
				if err != nil {
					return err
				}
				if txs == nil {
					txs = []*domain.Transaction{}
				}
				return newPrinter(cmd, rootOpts).emit(txs, func(w io.Writer) {
					t := newTable(w, "ID", "TIME", "TOTAL", "TAX", "PAYMENT", "CUSTOMER", "ID VERIFIED", "ITEMS")
					for _, tx := range txs {
						t.Append([]string{strconv.FormatInt(tx.ID, 10), tx.Timestamp.Format(domain.TimestampLayout),
							tx.Total.StringFixed(2), tx.Tax.StringFixed(2), tx.PaymentMethod, customerRef(tx.CustomerID),
							strconv.FormatBool(tx.IDVerified), strconv.Itoa(len(tx.Items))})
					}
					t.Render()
				})
			})
		},
	}

	cmd.Flags().Int64Var(&customerID, "customer", 0, "only sales to this customer")

	return cmd
}

func newTransactionGetCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Show one sale with its items",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withApp(cmd, rootOpts, func(a *app) error {
				tx, err := a.transactions.Get(cmd.Context(), id)
				if err != nil {
					return err
				}
				return newPrinter(cmd, rootOpts).emit(tx, func(w io.Writer) {
					head := newTable(w)
					head.Append([]string{"TRANSACTION", strconv.FormatInt(tx.ID, 10)})
					head.Append([]string{"TIME", tx.Timestamp.Format(domain.TimestampLayout)})
					head.Append([]string{"CUSTOMER", customerRef(tx.CustomerID)})
					head.Append([]string{"ID VERIFIED", strconv.FormatBool(tx.IDVerified)})
					head.Append([]string{"PAYMENT", tx.PaymentMethod})
					if tx.RemoteOrderID != "" {
						head.Append([]string{"ORDER", tx.RemoteOrderID})
					}
					head.Render()
					fmt.Fprintln(w)

					items := newTable(w, "ITEM", "SKU", "QTY", "PRICE")
					for _, item := range tx.Items {
						items.Append([]string{item.Name, item.SKU, strconv.Itoa(item.Quantity), item.Price.StringFixed(2)})
					}
					items.Append([]string{"TAX", "", "", tx.Tax.StringFixed(2)})
					items.Append([]string{"TOTAL", "", "", tx.Total.StringFixed(2)})
					items.Render()
				})
			})
		},
	}
}

func customerRef(id *int64) string {
	if id == nil {
		return "-"
	}
	return fmt.Sprintf("%d", *id)
}
