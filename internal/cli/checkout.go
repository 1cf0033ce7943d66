package cli

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"github.com/vbonduro/cashreg/internal/domain"
	"github.com/vbonduro/cashreg/internal/service"
)

// CheckoutOptions holds flags for the checkout command.
type CheckoutOptions struct {
	*RootOptions
	Items          []string
	Payment        string
	CustomerID     int64
	DecrementStock bool
	QuoteOnly      bool
}

// NewCheckoutCommand creates the checkout command.
func NewCheckoutCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CheckoutOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "checkout",
		Short: "Ring up a sale",
		Long: `Ring up a sale. Items are given as BARCODE:QTY (or #ID:QTY for items
without a barcode). Attaching a customer applies the minimum age check and
marks the sale as ID-verified. Any payment method other than cash is charged
through Shopify before the sale is recorded.`,
		Example: `  cashreg checkout --item 012345:2 --item '#7:1' --payment card --customer 3`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			lines, err := parseCartLines(opts.Items)
			if err != nil {
				return err
			}
			return withApp(cmd, rootOpts, func(a *app) error {
				p := newPrinter(cmd, rootOpts)
				if opts.QuoteOnly {
					q, err := a.checkout.Quote(cmd.Context(), lines)
					if err != nil {
						return err
					}
					return p.emit(q, func(w io.Writer) { printQuote(w, q) })
				}

				cart := service.Cart{
					Lines:          lines,
					PaymentMethod:  opts.Payment,
					DecrementStock: opts.DecrementStock,
				}
				if opts.CustomerID != 0 {
					cart.CustomerID = &opts.CustomerID
				}
				r, err := a.checkout.Run(cmd.Context(), cart)
				if err != nil {
					return err
				}
				return p.emit(r, func(w io.Writer) {
					printQuote(w, &r.Quote)
					fmt.Fprintln(w)
					t := newTable(w)
					t.Append([]string{"PAID", r.PaymentMethod})
					if r.RemoteOrderID != "" {
						t.Append([]string{"ORDER", r.RemoteOrderID})
					}
					if r.IDVerified {
						t.Append([]string{"ID VERIFIED", fmt.Sprintf("customer %d", *r.CustomerID)})
					}
					t.Append([]string{"TRANSACTION", strconv.FormatInt(r.TransactionID, 10)})
					for _, short := range r.ShortStock {
						t.Append([]string{"NOT DESTOCKED", fmt.Sprintf("%s x%d", short.Name, short.Quantity)})
					}
					t.Render()
				})
			})
		},
	}

	cmd.Flags().StringArrayVarP(&opts.Items, "item", "i", nil, "BARCODE:QTY or #ID:QTY, repeatable")
	cmd.Flags().StringVar(&opts.Payment, "payment", service.PaymentCash, "payment method (cash|card)")
	cmd.Flags().Int64Var(&opts.CustomerID, "customer", 0, "id of the ID-verified customer")
	cmd.Flags().BoolVar(&opts.DecrementStock, "decrement-stock", false, "sell the purchased units out of inventory")
	cmd.Flags().BoolVar(&opts.QuoteOnly, "quote", false, "price the cart without taking payment")
	_ = cmd.MarkFlagRequired("item")

	return cmd
}

func printQuote(w io.Writer, q *service.Quote) {
	t := newTable(w, "ITEM", "QTY", "PRICE", "SUBTOTAL")
	for _, item := range q.Items {
		t.Append([]string{item.Name, strconv.Itoa(item.Quantity), item.Price.StringFixed(2), item.Subtotal().StringFixed(2)})
	}
	t.Append([]string{"SUBTOTAL", "", "", q.Subtotal.StringFixed(2)})
	t.Append([]string{"TAX", "", "", q.Tax.StringFixed(2)})
	t.Append([]string{"TOTAL", "", "", q.Total.StringFixed(2)})
	t.Render()
}

// parseCartLines turns BARCODE:QTY / #ID:QTY arguments into cart lines. A
// missing quantity means one unit. The quantity follows the last colon, so a
// barcode containing ':' must carry an explicit quantity.
func parseCartLines(args []string) ([]service.CartLine, error) {
	lines := make([]service.CartLine, 0, len(args))
	for _, arg := range args {
		ref, qtyText, hasQty := cutLast(strings.TrimSpace(arg), ":")
		qty := 1
		if hasQty {
			n, err := strconv.Atoi(qtyText)
			if err != nil || n <= 0 {
				return nil, fmt.Errorf("%w: item %q has an invalid quantity", domain.ErrValidation, arg)
			}
			qty = n
		}
		if ref == "" {
			return nil, fmt.Errorf("%w: item %q has no barcode", domain.ErrValidation, arg)
		}

		line := service.CartLine{Quantity: qty}
		if idText, ok := strings.CutPrefix(ref, "#"); ok {
			id, err := parseID(idText)
			if err != nil {
				return nil, err
			}
			line.ItemID = id
		} else {
			line.Barcode = ref
		}
		lines = append(lines, line)
	}
	return mergeCartLines(lines), nil
}

func cutLast(s, sep string) (before, after string, found bool) {
	i := strings.LastIndex(s, sep)
	if i < 0 {
		return s, "", false
	}
	return s[:i], s[i+len(sep):], true
}

// mergeCartLines folds repeated references to the same item into one line,
// keeping first-seen order.
func mergeCartLines(lines []service.CartLine) []service.CartLine {
	key := func(l service.CartLine) string {
		if l.Barcode != "" {
			return "b:" + l.Barcode
		}
		return "i:" + strconv.FormatInt(l.ItemID, 10)
	}
	groups := lo.GroupBy(lines, key)
	return lo.Map(lo.UniqBy(lines, key), func(l service.CartLine, _ int) service.CartLine {
		l.Quantity = lo.SumBy(groups[key(l)], func(g service.CartLine) int { return g.Quantity })
		return l
	})
}
