package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/roach88/cartsync/internal/cart"
	"github.com/roach88/cartsync/internal/reconciler"
)

// CartLine is one row in command output.
type CartLine struct {
	ProductID int64  `json:"product_id"`
	Title     string `json:"title"`
	UnitPrice string `json:"unit_price"`
	Quantity  int    `json:"quantity"`
	Subtotal  string `json:"subtotal"`
}

// CartResult is the payload of every cart command.
type CartResult struct {
	Op           string     `json:"op"`
	Outcome      string     `json:"outcome"`
	Message      string     `json:"message,omitempty"`
	Count        int        `json:"count"`
	Total        string     `json:"total"`
	Items        []CartLine `json:"items"`
	SentQuantity int        `json:"sent_quantity,omitempty"`
	RedirectTo   string     `json:"redirect_to,omitempty"`
}

type cartOp func(ctx context.Context, rec *reconciler.Reconciler) (reconciler.Outcome, error)

func newCartCommands(opts *RootOptions) []*cobra.Command {
	var (
		addQty int
		yes    bool
	)

	show := &cobra.Command{
		Use:   "show",
		Short: "Reload the cart and print it",
		Long: `Reload the cart from the service and print every row.

A missing or expired session shows an empty cart.

Examples:
  cartsync show --base-url http://localhost:8089
  cartsync show --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCartOp(opts, cmd, "refresh", nil, false, func(ctx context.Context, rec *reconciler.Reconciler) (reconciler.Outcome, error) {
				return rec.Refresh(ctx)
			})
		},
	}

	open := &cobra.Command{
		Use:   "open",
		Short: "Open the cart page (login required)",
		Long: `Load the cart the way the cart page does on entry: without a valid
session this reports that login is required, with the current path as the
return target.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCartOp(opts, cmd, "open", nil, false, func(ctx context.Context, rec *reconciler.Reconciler) (reconciler.Outcome, error) {
				return rec.OpenCartPage(ctx)
			})
		},
	}

	add := &cobra.Command{
		Use:   "add <product-id>",
		Short: "Add a product to the cart",
		Long: `Add a product to the cart. The quantity is clamped to 1..10 before it
is sent.

Examples:
  cartsync add 1001
  cartsync add 1001 --qty 3`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseProductID(args[0])
			if err != nil {
				return err
			}
			return runCartOp(opts, cmd, "add", nil, true, func(ctx context.Context, rec *reconciler.Reconciler) (reconciler.Outcome, error) {
				return rec.AddItem(ctx, id, addQty)
			})
		},
	}
	add.Flags().IntVar(&addQty, "qty", 1, "quantity to add")

	set := &cobra.Command{
		Use:   "set <product-id> <quantity>",
		Short: "Set the quantity of a cart row",
		Long: `Set the quantity of a row already in the cart. Out-of-range values are
clamped to 1..10; the command reports what was actually sent.`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseProductID(args[0])
			if err != nil {
				return err
			}
			qty, err := strconv.Atoi(args[1])
			if err != nil {
				return WrapExitError(ExitCommandError, fmt.Sprintf("invalid quantity %q", args[1]), err)
			}
			return runCartOp(opts, cmd, "set_quantity", nil, true, func(ctx context.Context, rec *reconciler.Reconciler) (reconciler.Outcome, error) {
				return rec.SetQuantity(ctx, id, qty)
			})
		},
	}

	step := func(use, short, op string, delta func(*reconciler.Reconciler, context.Context, int64) (reconciler.Outcome, error)) *cobra.Command {
		return &cobra.Command{
			Use:           use + " <product-id>",
			Short:         short,
			Args:          cobra.ExactArgs(1),
			SilenceUsage:  true,
			SilenceErrors: true,
			RunE: func(cmd *cobra.Command, args []string) error {
				id, err := parseProductID(args[0])
				if err != nil {
					return err
				}
				return runCartOp(opts, cmd, op, nil, true, func(ctx context.Context, rec *reconciler.Reconciler) (reconciler.Outcome, error) {
					return delta(rec, ctx, id)
				})
			},
		}
	}
	inc := step("inc", "Increase a row's quantity by one", "increment", (*reconciler.Reconciler).Increment)
	dec := step("dec", "Decrease a row's quantity by one", "decrement", (*reconciler.Reconciler).Decrement)

	remove := &cobra.Command{
		Use:   "remove <product-id>",
		Short: "Remove a row from the cart",
		Long: `Remove a row from the cart after confirmation. Without --yes the
confirmation is read from stdin.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseProductID(args[0])
			if err != nil {
				return err
			}
			confirm := reconciler.AlwaysConfirm
			if !yes {
				confirm = promptConfirmer(cmd.InOrStdin(), cmd.ErrOrStderr())
			}
			return runCartOp(opts, cmd, "remove", confirm, true, func(ctx context.Context, rec *reconciler.Reconciler) (reconciler.Outcome, error) {
				return rec.RemoveItem(ctx, id)
			})
		},
	}
	remove.Flags().BoolVarP(&yes, "yes", "y", false, "remove without asking")

	return []*cobra.Command{show, open, add, set, inc, dec, remove}
}

func parseProductID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, NewExitError(ExitCommandError, fmt.Sprintf("invalid product id %q", s))
	}
	return id, nil
}

// runCartOp opens a session, optionally loads the cart first (row edits
// need the row in the snapshot), runs op and reports its outcome.
func runCartOp(opts *RootOptions, cmd *cobra.Command, op string, confirm reconciler.Confirmer, preload bool, fn cartOp) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	f := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	s, err := openSession(ctx, opts, cmd, confirm)
	if err != nil {
		return err
	}
	defer s.close()

	if preload {
		out, err := s.rec.Refresh(ctx)
		if err != nil {
			return WrapExitError(ExitFailure, "failed to load cart", err)
		}
		if !out.OK() {
			return report(f, "refresh", out, s.rec.Snapshot())
		}
		f.VerboseLog("loaded cart: %d item(s)", out.Count)
	}

	out, err := fn(ctx, s.rec)
	if errors.Is(err, reconciler.ErrUnknownItem) {
		if ferr := f.Error(CodeUnknownItem, err.Error(), nil); ferr != nil {
			return ferr
		}
		return WrapExitError(ExitFailure, "item not in cart", err)
	}
	if err != nil {
		return WrapExitError(ExitFailure, op+" failed", err)
	}
	return report(f, op, out, s.rec.Snapshot())
}

// report prints an outcome and maps it to an exit code.
func report(f *OutputFormatter, op string, out reconciler.Outcome, snap cart.Snapshot) error {
	result := newCartResult(op, out, snap)

	var code, msg string
	switch out.Kind {
	case reconciler.OutcomeOK, reconciler.OutcomeCancelled:
		return f.Success(result, func(w io.Writer) { renderCart(w, result) })
	case reconciler.OutcomeRejected:
		code, msg = CodeRejected, out.Message
	case reconciler.OutcomeRedirect:
		code, msg = CodeLoginRequired, fmt.Sprintf("login required (return to %s)", out.RedirectTo)
	case reconciler.OutcomeNetworkFailure:
		code, msg = CodeNetwork, out.Message
	default:
		code, msg = CodeSuperseded, out.Message
	}

	if err := f.Error(code, msg, result); err != nil {
		return err
	}
	return NewExitError(ExitFailure, msg)
}

func newCartResult(op string, out reconciler.Outcome, snap cart.Snapshot) CartResult {
	result := CartResult{
		Op:           op,
		Outcome:      string(out.Kind),
		Message:      out.Message,
		Count:        snap.Count,
		Total:        snap.Total.StringFixed(2),
		Items:        make([]CartLine, 0, len(snap.Items)),
		SentQuantity: out.SentQuantity,
		RedirectTo:   out.RedirectTo,
	}
	for _, it := range snap.Items {
		result.Items = append(result.Items, CartLine{
			ProductID: it.ProductID,
			Title:     it.Title,
			UnitPrice: it.UnitPrice.StringFixed(2),
			Quantity:  it.Quantity,
			Subtotal:  it.Subtotal().StringFixed(2),
		})
	}
	return result
}

func renderCart(w io.Writer, r CartResult) {
	if r.Message != "" {
		fmt.Fprintln(w, r.Message)
	}
	if r.Count == 0 {
		fmt.Fprintln(w, "Your cart is empty")
		return
	}
	fmt.Fprintf(w, "Cart: %d item(s), total %s\n", r.Count, r.Total)
	for _, l := range r.Items {
		fmt.Fprintf(w, "  %-8d %-24s %3d x %10s = %10s\n", l.ProductID, l.Title, l.Quantity, l.UnitPrice, l.Subtotal)
	}
}
