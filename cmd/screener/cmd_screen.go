package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/persistorai/screener/client"
	"github.com/persistorai/screener/internal/allowlist"
	"github.com/persistorai/screener/internal/config"
	"github.com/persistorai/screener/internal/frontier"
	"github.com/persistorai/screener/internal/graph"
	"github.com/persistorai/screener/internal/models"
	"github.com/persistorai/screener/internal/persist"
	"github.com/persistorai/screener/internal/search"
	"github.com/persistorai/screener/internal/source"
)

type screenOptions struct {
	url       string
	replay    string
	saveGraph string
	resume    string
	riskLimit float64
	maxIters  int
}

func newScreenCmd() *cobra.Command {
	var opts screenOptions
	cmd := &cobra.Command{
		Use:   "screen <client> <sanctioned>",
		Short: "Search the transfer graph around client for a sanctioned address",
		Long: `Expands the transfer graph outward from client, one layer per iteration,
until the sanctioned address appears, no address is worth expanding, or the
iteration budget runs out. Ctrl-C stops admission of new fetches and prints the
report built from what was gathered.

With --resume, the addresses are taken from the checkpoint and may be omitted.`,
		Args: func(cmd *cobra.Command, args []string) error {
			if opts.resume != "" {
				return cobra.MaximumNArgs(2)(cmd, args)
			}
			return cobra.ExactArgs(2)(cmd, args)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if opts.url != "" {
				return screenRemote(ctx, cmd, opts, args)
			}
			return screenLocal(ctx, cmd, opts, args)
		},
	}
	cmd.Flags().StringVar(&opts.url, "url", "", "Run the search on a screener server instead of locally")
	cmd.Flags().StringVar(&opts.replay, "replay", "", "Read transfers from a JSON fixture instead of Etherscan")
	cmd.Flags().StringVar(&opts.saveGraph, "save-graph", "", "Write the final transfer graph to this file")
	cmd.Flags().StringVar(&opts.resume, "resume", "", "Resume a checkpointed search by ID, or 'latest' with a database")
	cmd.Flags().Float64Var(&opts.riskLimit, "risk-limit", 0, "Override RISK_LIMIT (percent)")
	cmd.Flags().IntVar(&opts.maxIters, "max-iters", 0, "Override MAX_ITERS")
	return cmd
}

func screenRemote(ctx context.Context, cmd *cobra.Command, opts screenOptions, args []string) error {
	if opts.replay != "" || opts.saveGraph != "" || opts.resume != "" {
		return errors.New("--replay, --save-graph and --resume only apply to local searches")
	}

	req := client.ScreenRequest{Client: args[0], Sanctioned: args[1]}
	if cmd.Flags().Changed("risk-limit") {
		req.RiskLimit = &opts.riskLimit
	}
	if cmd.Flags().Changed("max-iters") {
		req.MaxIters = &opts.maxIters
	}

	report, err := client.New(opts.url).Screen(ctx, req)
	if err != nil {
		return fmt.Errorf("screen: %w", err)
	}

	if flagFmt == "json" {
		return formatJSON(cmd.OutOrStdout(), report)
	}
	printReport(cmd.OutOrStdout(), viewOfRemote(report))
	return nil
}

func screenLocal(ctx context.Context, cmd *cobra.Command, opts screenOptions, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	log := newLogger(cfg.LogLevel, false)

	sc, err := searchConfig(cfg)
	if err != nil {
		return err
	}

	if cmd.Flags().Changed("risk-limit") {
		sc.RiskLimit = opts.riskLimit
	}
	if cmd.Flags().Changed("max-iters") {
		sc.MaxIters = opts.maxIters
	}

	src, err := newSource(cfg, opts.replay, log)
	if err != nil {
		return err
	}

	st, err := openStores(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer st.Close()

	var final *graph.Graph
	engineOpts := []search.Option{search.WithGraph(func(g *graph.Graph) { final = g })}
	if st.checkpoints != nil {
		engineOpts = append(engineOpts, search.WithCheckpoint(st.checkpoints))
	}

	engine, err := search.New(sc, src, log, engineOpts...)
	if err != nil {
		return err
	}

	var report *models.RiskReport
	if opts.resume != "" {
		cp, err := loadCheckpoint(ctx, st, src, opts.resume, args)
		if err != nil {
			return err
		}
		report, err = engine.Resume(ctx, cp)
		if err != nil {
			return err
		}
	} else {
		report, err = engine.Run(ctx, edgeAddress(args[0]), edgeAddress(args[1]))
		if err != nil {
			return err
		}
	}

	if st.reports != nil {
		if err := st.reports.SaveReport(context.WithoutCancel(ctx), report); err != nil {
			log.WithError(err).Warn("saving report failed")
		}
	}

	if opts.saveGraph != "" && final != nil {
		if err := persist.SaveGraph(opts.saveGraph, final); err != nil {
			return fmt.Errorf("saving graph: %w", err)
		}
		log.WithField("path", opts.saveGraph).Info("graph saved")
	}

	if flagFmt == "json" {
		return formatJSON(cmd.OutOrStdout(), report)
	}
	printReport(cmd.OutOrStdout(), viewOf(report))
	return nil
}

// searchConfig converts cfg, loading the allow-list it names.
func searchConfig(cfg *config.Config) (search.Config, error) {
	var allow frontier.AllowList
	if cfg.AllowListPath != "" {
		set, err := allowlist.LoadCSV(cfg.AllowListPath)
		if err != nil {
			return search.Config{}, err
		}
		allow = set
	}

	return cfg.SearchConfig(allow)
}

func newSource(cfg *config.Config, replay string, log *logrus.Logger) (source.Source, error) {
	if replay != "" {
		return source.LoadReplay(replay)
	}

	if cfg.EtherscanAPIKey.Value() == "" {
		log.Warn("ETHERSCAN_API_KEY is not set; the free tier rate limit applies")
	}

	return source.NewEtherscan(cfg.EtherscanURL, log, source.WithAPIKey(cfg.EtherscanAPIKey.Value())), nil
}

func loadCheckpoint(ctx context.Context, st *stores, src source.Source, ref string, args []string) (*persist.Checkpoint, error) {
	if st.checkpoints == nil {
		return nil, errors.New("--resume needs DATABASE_URL or CHECKPOINT_DIR")
	}

	if ref == "latest" {
		if st.pg == nil {
			return nil, errors.New("--resume latest needs DATABASE_URL")
		}
		if len(args) != 2 {
			return nil, errors.New("--resume latest needs <client> <sanctioned>")
		}
		return st.pg.Latest(ctx,
			source.Canonical(src, edgeAddress(args[0])),
			source.Canonical(src, edgeAddress(args[1])))
	}

	id, err := uuid.Parse(ref)
	if err != nil {
		return nil, fmt.Errorf("--resume: %q is not a search ID", ref)
	}

	return st.checkpoints.Load(ctx, id)
}

// edgeAddress trims an address typed on the command line.
func edgeAddress(s string) models.Address {
	return models.Address(strings.TrimSpace(s))
}
