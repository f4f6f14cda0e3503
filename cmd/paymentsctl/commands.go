package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/iliyamo/club-payments/internal/config"
	"github.com/iliyamo/club-payments/internal/failover"
	"github.com/iliyamo/club-payments/internal/logging"
	"github.com/iliyamo/club-payments/internal/model"
	"github.com/iliyamo/club-payments/internal/repository"
	"github.com/iliyamo/club-payments/internal/storage"
	"github.com/iliyamo/club-payments/internal/utils"
)

// store is what the commands need from the opened backends.
type store interface {
	repository.PaymentStore
	Probe(ctx context.Context) map[string]failover.Status
	Close() error
}

type opener func(log zerolog.Logger) (store, error)

func openStore(log zerolog.Logger) (store, error) {
	cfg, err := config.LoadStorage()
	if err != nil {
		return nil, err
	}
	return storage.Open(cfg, log), nil
}

type globals struct {
	envFile  string
	logLevel string
}

func rootCmd(open opener) *cobra.Command {
	g := &globals{}
	root := &cobra.Command{
		Use:           "paymentsctl",
		Short:         "Record and inspect club payments",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return config.LoadDotEnv(g.envFile)
		},
	}
	root.PersistentFlags().StringVar(&g.envFile, "env-file", ".env", "dotenv file to load")
	root.PersistentFlags().StringVar(&g.logLevel, "log-level", "warn", "diagnostic log level")

	// withStore opens the backends, runs fn and closes them.
	withStore := func(cmd *cobra.Command, fn func(ctx context.Context, s store) error) error {
		log, _, err := logging.New(logging.Options{Level: g.logLevel, Out: cmd.ErrOrStderr()})
		if err != nil {
			return err
		}
		s, err := open(log)
		if err != nil {
			return err
		}
		defer s.Close()
		return fn(cmd.Context(), s)
	}

	root.AddCommand(
		saveCmd(withStore),
		getCmd(withStore),
		listCmd(withStore),
		updateCmd(withStore),
		deleteCmd(withStore),
		statusCmd(withStore),
		tokenCmd(),
	)
	return root
}

type runner func(cmd *cobra.Command, fn func(ctx context.Context, s store) error) error

// itemFlags collects repeated DESCRIPTION=PRICE flags.
type itemFlags struct {
	tickets     []string
	consumables []string
	coatCheck   string
}

func (f *itemFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringArrayVarP(&f.tickets, "ticket", "t", nil, `ticket as "DESCRIPTION=PRICE" (repeatable)`)
	cmd.Flags().StringArrayVarP(&f.consumables, "consumable", "c", nil, `consumable as "DESCRIPTION=PRICE" (repeatable)`)
	cmd.Flags().StringVar(&f.coatCheck, "coat", "", `coat check as "DESCRIPTION=PRICE"`)
}

func (f *itemFlags) items() (tickets, consumables []model.LineItem, coat *model.LineItem, err error) {
	if tickets, err = parseItems(f.tickets, model.Ticket); err != nil {
		return nil, nil, nil, err
	}
	if consumables, err = parseItems(f.consumables, model.Consumable); err != nil {
		return nil, nil, nil, err
	}
	if f.coatCheck != "" {
		it, err := parseItem(f.coatCheck, model.CoatCheck)
		if err != nil {
			return nil, nil, nil, err
		}
		coat = &it
	}
	return tickets, consumables, coat, nil
}

func parseItems(raw []string, build func(string, decimal.Decimal) model.LineItem) ([]model.LineItem, error) {
	out := make([]model.LineItem, 0, len(raw))
	for _, r := range raw {
		it, err := parseItem(r, build)
		if err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, nil
}

// parseItem splits on the last '=' so descriptions may contain one.
func parseItem(raw string, build func(string, decimal.Decimal) model.LineItem) (model.LineItem, error) {
	i := strings.LastIndex(raw, "=")
	if i <= 0 {
		return model.LineItem{}, fmt.Errorf("item %q: want DESCRIPTION=PRICE", raw)
	}
	desc := strings.TrimSpace(raw[:i])
	price, err := decimal.NewFromString(strings.TrimSpace(strings.Replace(raw[i+1:], ",", ".", 1)))
	if err != nil || desc == "" {
		return model.LineItem{}, fmt.Errorf("item %q: want DESCRIPTION=PRICE", raw)
	}
	if price.IsNegative() {
		return model.LineItem{}, fmt.Errorf("item %q: price must not be negative", raw)
	}
	return build(desc, price.Round(2)), nil
}

func parseIDArg(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id < 0 {
		return 0, fmt.Errorf("invalid id %q", arg)
	}
	return id, nil
}

func saveCmd(run runner) *cobra.Command {
	f := &itemFlags{}
	cmd := &cobra.Command{
		Use:   "save",
		Short: "Record a new payment",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tickets, consumables, coat, err := f.items()
			if err != nil {
				return err
			}
			return run(cmd, func(ctx context.Context, s store) error {
				p := model.NewPayment(tickets, consumables, coat)
				if err := s.Save(ctx, p); err != nil {
					return fmt.Errorf("save payment: %w", err)
				}
				fmt.Fprint(cmd.OutOrStdout(), p)
				return nil
			})
		},
	}
	f.register(cmd)
	return cmd
}

func getCmd(run runner) *cobra.Command {
	return &cobra.Command{
		Use:   "get ID",
		Short: "Show one payment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseIDArg(args[0])
			if err != nil {
				return err
			}
			return run(cmd, func(ctx context.Context, s store) error {
				p, err := s.FindByID(ctx, id)
				if err != nil {
					return fmt.Errorf("payment %d: %w", id, err)
				}
				fmt.Fprint(cmd.OutOrStdout(), p)
				return nil
			})
		},
	}
}

func listCmd(run runner) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Show every payment",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, func(ctx context.Context, s store) error {
				all, err := s.FindAll(ctx)
				if err != nil {
					return fmt.Errorf("list payments: %w", err)
				}
				out := cmd.OutOrStdout()
				if len(all) == 0 {
					fmt.Fprintln(out, "No payments recorded.")
					return nil
				}
				for i, p := range all {
					if i > 0 {
						fmt.Fprintln(out, strings.Repeat("-", 30))
					}
					fmt.Fprint(out, p)
				}
				return nil
			})
		},
	}
}

func updateCmd(run runner) *cobra.Command {
	f := &itemFlags{}
	cmd := &cobra.Command{
		Use:   "update ID",
		Short: "Replace the line items of a payment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseIDArg(args[0])
			if err != nil {
				return err
			}
			tickets, consumables, coat, err := f.items()
			if err != nil {
				return err
			}
			return run(cmd, func(ctx context.Context, s store) error {
				p := model.NewPaymentWithID(id, tickets, consumables, coat)
				if err := s.Update(ctx, p); err != nil {
					return fmt.Errorf("update payment %d: %w", id, err)
				}
				fmt.Fprint(cmd.OutOrStdout(), p)
				return nil
			})
		},
	}
	f.register(cmd)
	return cmd
}

func deleteCmd(run runner) *cobra.Command {
	return &cobra.Command{
		Use:   "delete ID",
		Short: "Delete a payment; deleting an absent id succeeds",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseIDArg(args[0])
			if err != nil {
				return err
			}
			return run(cmd, func(ctx context.Context, s store) error {
				if err := s.Delete(ctx, id); err != nil {
					return fmt.Errorf("delete payment %d: %w", id, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Payment %d deleted.\n", id)
				return nil
			})
		},
	}
}

func statusCmd(run runner) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Check both backends once and show their availability",
		Long: `Check both backends once and show their availability.

Each invocation is a fresh process: a backend that was down during an
earlier command is only repaired when a later call in the same process
finds it reachable again.  The long-running server performs that repair
across requests; this command resyncs only what it observes itself.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, func(ctx context.Context, s store) error {
				printStatus(cmd.OutOrStdout(), s.Probe(ctx))
				return nil
			})
		},
	}
}

func printStatus(w io.Writer, st map[string]failover.Status) {
	names := make([]string, 0, len(st))
	for n := range st {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		fmt.Fprintf(w, "%-8s %s\n", n, st[n])
	}
}

func tokenCmd() *cobra.Command {
	var (
		operator string
		role     string
		ttl      time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an API access token signed with JWT_SECRET",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			secret := os.Getenv("JWT_SECRET")
			if secret == "" {
				return fmt.Errorf("missing required env var: JWT_SECRET")
			}
			if !cmd.Flags().Changed("ttl") {
				d, err := config.AccessTokenTTL()
				if err != nil {
					return err
				}
				ttl = d
			}
			tok, err := utils.NewAccessToken(secret, operator, strings.ToUpper(role), ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok.Token)
			fmt.Fprintf(cmd.ErrOrStderr(), "expires %s\n", tok.Exp.Format(time.RFC3339))
			return nil
		},
	}
	cmd.Flags().StringVar(&operator, "operator", "", "operator name (token subject)")
	cmd.Flags().StringVar(&role, "role", utils.RoleOperator, "OPERATOR or VIEWER")
	cmd.Flags().DurationVar(&ttl, "ttl", config.DefaultAccessTokenTTL, "token lifetime (defaults to ACCESS_TOKEN_TTL_MIN minutes)")
	_ = cmd.MarkFlagRequired("operator")
	return cmd
}
