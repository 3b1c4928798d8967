// recordctl drives a records portal from the terminal: list, fetch, create,
// update and soft-delete rows of any resource the portal exposes through its
// generic endpoints.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/enlacemx/recordkit/internal/adapters/outbound/portal"
	"github.com/enlacemx/recordkit/internal/adapters/records"
	"github.com/enlacemx/recordkit/internal/cache"
	"github.com/enlacemx/recordkit/internal/config"
	"github.com/enlacemx/recordkit/internal/domain/model"
	"github.com/enlacemx/recordkit/internal/localtable"
	"github.com/enlacemx/recordkit/internal/ports"
	"github.com/enlacemx/recordkit/internal/query"
	"github.com/enlacemx/recordkit/pkg/logger"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type cliOptions struct {
	resource string
	columns  []string

	projection []string
	relations  []string
	filters    []string
	page       int
	perPage    int
	data       string
}

func newRootCmd() *cobra.Command {
	opts := &cliOptions{}

	rootCmd := &cobra.Command{
		Use:           "recordctl",
		Short:         "Command line client for the records portal",
		Version:       version(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&opts.resource, "resource", "", "resource name, e.g. clients")
	rootCmd.PersistentFlags().StringSliceVar(&opts.columns, "declared-columns", nil, "columns the resource declares, for projection validation")
	_ = rootCmd.MarkPersistentFlagRequired("resource")

	rootCmd.AddCommand(
		newListCmd(opts),
		newGetCmd(opts),
		newCreateCmd(opts),
		newUpdateCmd(opts),
		newSwitchCmd(opts),
	)

	return rootCmd
}

func version() string {
	if config.ServiceVersion == "" {
		return "dev"
	}

	return config.ServiceVersion + " (" + config.CommitSHA + ")"
}

func newListCmd(opts *cliOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List records, optionally narrowed by local filter expressions",
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, log, err := buildService(opts)
			if err != nil {
				return err
			}

			listOpts := query.Options{}
			if len(opts.projection) > 0 {
				listOpts = listOpts.WithColumns(opts.projection...)
			}
			if len(opts.relations) > 0 {
				listOpts = listOpts.WithRelations(opts.relations...)
			}
			if opts.page > 0 || opts.perPage > 0 {
				listOpts = listOpts.WithPaginator(max(opts.page, 1), max(opts.perPage, 1))
			}

			resp, err := svc.Get(cmd.Context(), listOpts)
			if err != nil {
				return err
			}
			if !resp.Status {
				return fmt.Errorf("listing %s: %s", opts.resource, resp.Message)
			}

			rows := resp.Data
			if len(opts.filters) > 0 {
				filters, err := parseFilters(opts.filters)
				if err != nil {
					return err
				}

				engine := localtable.New(log)
				rows = engine.DataFiltered(rows, filters)
			}

			return printJSON(cmd, rows)
		},
	}

	cmd.Flags().StringSliceVar(&opts.projection, "columns", nil, "columns to project")
	cmd.Flags().StringSliceVar(&opts.relations, "relations", nil, "relations to eager-load")
	cmd.Flags().StringArrayVar(&opts.filters, "filter", nil, "local filter, column=expression (repeatable)")
	cmd.Flags().IntVar(&opts.page, "page", 0, "page number")
	cmd.Flags().IntVar(&opts.perPage, "per-page", 0, "rows per page")

	return cmd
}

func newGetCmd(opts *cliOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get <id>",
		Short: "Fetch a single record by id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			svc, _, err := buildService(opts)
			if err != nil {
				return err
			}

			findOpts := query.Options{}
			if len(opts.relations) > 0 {
				findOpts = findOpts.WithRelations(opts.relations...)
			}

			resp, err := svc.Find(cmd.Context(), id, findOpts)
			if err != nil {
				return err
			}
			if !resp.Status {
				return fmt.Errorf("%s %d not found", opts.resource, id)
			}

			return printJSON(cmd, resp.Data)
		},
	}

	cmd.Flags().StringSliceVar(&opts.relations, "relations", nil, "relations to eager-load")

	return cmd
}

func newCreateCmd(opts *cliOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a record from a JSON object",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rec, err := parseRecord(opts.data)
			if err != nil {
				return err
			}

			svc, _, err := buildService(opts)
			if err != nil {
				return err
			}

			resp, err := svc.New(cmd.Context(), model.PlainPayload{Data: rec}, query.Options{})
			if err != nil {
				return err
			}
			if !resp.Status {
				return fmt.Errorf("creating %s: %s", opts.resource, resp.Message)
			}

			return printJSON(cmd, resp.Data)
		},
	}

	cmd.Flags().StringVar(&opts.data, "data", "", "record fields as a JSON object")
	_ = cmd.MarkFlagRequired("data")

	return cmd
}

func newUpdateCmd(opts *cliOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update a record from a JSON object",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			rec, err := parseRecord(opts.data)
			if err != nil {
				return err
			}

			svc, _, err := buildService(opts)
			if err != nil {
				return err
			}

			resp, err := svc.Update(cmd.Context(), records.UpdateParams{ID: id, Data: rec})
			if err != nil {
				return err
			}
			if !resp.Status {
				return fmt.Errorf("updating %s %d: %s", opts.resource, id, resp.Message)
			}

			return printJSON(cmd, resp.Data)
		},
	}

	cmd.Flags().StringVar(&opts.data, "data", "", "fields to change as a JSON object")
	_ = cmd.MarkFlagRequired("data")

	return cmd
}

func newSwitchCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "switch <id>",
		Short: "Toggle a record's soft-delete state",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			svc, _, err := buildService(opts)
			if err != nil {
				return err
			}

			ok, err := svc.SwitchByID(cmd.Context(), id, false)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("switching %s %d failed", opts.resource, id)
			}

			cmd.Printf("%s %d switched\n", opts.resource, id)

			return nil
		},
	}
}

func buildService(opts *cliOptions) (*records.Service, logger.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, logger.Logger{}, fmt.Errorf("loading configuration: %w", err)
	}

	log := logger.New(cfg.Logging.Level, cfg.Logging.Format)

	client, err := portal.NewClient(cfg, portal.Dependencies{
		Tokens:   staticToken(cfg.Portal.Token),
		Notifier: consoleNotifier{},
	}, log)
	if err != nil {
		return nil, logger.Logger{}, fmt.Errorf("building portal client: %w", err)
	}

	svcOpts := []records.Option{records.WithNotifier(consoleNotifier{})}
	if !cfg.Cache.Disabled {
		svcOpts = append(svcOpts, records.WithCache(buildCache(cfg, log), cfg.Cache.TTL))
	}

	return records.NewService(client, opts.resource, opts.columns, log, svcOpts...), log, nil
}

func buildCache(cfg *config.ServiceConfig, log logger.Logger) ports.ResponseCache {
	if cfg.Cache.Kind == config.CacheKindKeyDB {
		return cache.NewKeyDBStore(cfg.Cache.KeyDB, log)
	}

	return cache.NewMemoryStore()
}

// staticToken adapts the configured bearer token to the token source port.
type staticToken string

func (t staticToken) Token() string {
	return string(t)
}

// consoleNotifier renders dialogs and toasts on stderr; the CLI has no other
// UI surface.
type consoleNotifier struct{}

func (consoleNotifier) Dialog(notice model.Notice) {
	fmt.Fprintf(os.Stderr, "%s: %s\n", notice.Title, notice.Body)
}

func (consoleNotifier) Toast(message string) {
	fmt.Fprintln(os.Stderr, message)
}

func parseID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid record id %q", arg)
	}

	return id, nil
}

func parseRecord(data string) (*model.Record, error) {
	rec := model.NewRecord()
	if err := json.Unmarshal([]byte(data), rec); err != nil {
		return nil, fmt.Errorf("parsing --data: %w", err)
	}

	return rec, nil
}

// parseFilters splits repeated column=expression flags into the filter map
// the local table engine consumes.
func parseFilters(raw []string) (map[string]string, error) {
	filters := make(map[string]string, len(raw))
	for _, pair := range raw {
		column, expr, ok := strings.Cut(pair, "=")
		if !ok || strings.TrimSpace(column) == "" {
			return nil, fmt.Errorf("invalid --filter %q, expected column=expression", pair)
		}
		filters[strings.TrimSpace(column)] = expr
	}

	return filters, nil
}

func printJSON(cmd *cobra.Command, v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}

	cmd.Println(string(out))

	return nil
}
