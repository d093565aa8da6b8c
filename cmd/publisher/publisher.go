package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/mitchellh/mapstructure"
	"github.com/natefinch/atomic"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/spacemeshos/go-publisher/cmd"
	"github.com/spacemeshos/go-publisher/common/types"
	"github.com/spacemeshos/go-publisher/config"
	"github.com/spacemeshos/go-publisher/dirdiff"
	"github.com/spacemeshos/go-publisher/p2p"
	"github.com/spacemeshos/go-publisher/session"
)

// GetCommand returns the publisher command and its subcommands.
func GetCommand() *cobra.Command {
	conf := config.DefaultConfig()
	var (
		configPath *string
		verbosity  string
	)
	c := &cobra.Command{
		Use:   "publisher",
		Short: "publish directories to peers",
	}
	configPath = cmd.AddFlags(c.PersistentFlags(), &conf)
	c.PersistentFlags().StringVarP(&verbosity, "verbosity", "v", "",
		"log level applied to every module, overrides the logging section")

	run := func(c *cobra.Command, connect bool, fn func(ctx context.Context, a *app) error) error {
		if err := configure(c, *configPath, &conf); err != nil {
			return err
		}
		if verbosity != "" {
			lvl, err := zapcore.ParseLevel(verbosity)
			if err != nil {
				return fmt.Errorf("parse verbosity: %w", err)
			}
			conf.LOGGING.SetAll(lvl)
		}

		// os.Interrupt for all systems, especially windows, syscall.SIGTERM is mainly for docker.
		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		a, err := newApp(ctx, &conf)
		if err != nil {
			return err
		}
		defer a.close()
		// Don't print usage on error from this point forward
		c.SilenceUsage = true
		if connect {
			a.connect(ctx)
		}
		return fn(ctx, a)
	}

	var (
		title    string
		seedFile string
	)
	createCmd := &cobra.Command{
		Use:   "create [seed]",
		Short: "Create a drive and print its seed and url",
		Long: `Create a drive owned by seed. A random seed is generated when none is given.
The command returns once a peer acknowledged the drive header.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			var seed types.Seed
			if len(args) > 0 {
				var err error
				if seed, err = types.ParseSeed(args[0]); err != nil {
					return err
				}
			}
			return run(c, true, func(ctx context.Context, a *app) error {
				res, err := a.session.Create(ctx, session.CreateOptions{Seed: seed, Title: title})
				if res == nil {
					return err
				}
				if seedFile != "" {
					if werr := atomic.WriteFile(seedFile, strings.NewReader(res.Seed.String()+"\n")); werr != nil {
						return errors.Join(err, fmt.Errorf("write seed file: %w", werr))
					}
				}
				fmt.Fprintf(c.OutOrStdout(), "Seed:\n%s\n\nURL:\n%s\n", res.Seed, res.URL)
				return err
			})
		},
	}
	createCmd.Flags().StringVar(&title, "title", "", "title written to index.json")
	createCmd.Flags().StringVar(&seedFile, "seed-file", "", "also write the seed to this file")
	c.AddCommand(createCmd)

	var (
		tag     string
		ignore  []string
		deleted bool
	)
	syncCmd := &cobra.Command{
		Use:   "sync <seed> [fsPath] [drivePath]",
		Short: "Publish the changes of a directory to a drive",
		Long: `Publish files of fsPath (the current directory by default) under drivePath
(the drive root by default). The command returns once peers acknowledged
every written block.`,
		Args: cobra.RangeArgs(1, 3),
		RunE: func(c *cobra.Command, args []string) error {
			seed, err := types.ParseSeed(args[0])
			if err != nil {
				return err
			}
			opts := session.SyncOptions{
				Seed:   seed,
				Tag:    tag,
				Ignore: ignore,
				Delete: deleted,
			}
			if len(args) > 1 {
				opts.FsPath = args[1]
			}
			if len(args) > 2 {
				opts.DrivePath = args[2]
			}
			return run(c, true, func(ctx context.Context, a *app) error {
				res, err := a.session.Sync(ctx, opts)
				if res == nil {
					return err
				}
				out := c.OutOrStdout()
				fmt.Fprintf(out, "URL:\n%s\n\n", res.URL)
				if len(res.Diff) == 0 {
					fmt.Fprintln(out, "no changes")
				}
				for _, change := range res.Diff {
					fmt.Fprintln(out, change)
				}
				fmt.Fprintf(out, "\nversion %d\n", res.Version)
				return err
			})
		},
	}
	syncCmd.Flags().StringVar(&tag, "tag", "", "name the published version")
	syncCmd.Flags().StringArrayVar(&ignore, "ignore", nil,
		"skip files matching the pattern, in addition to "+dirdiff.IgnoreFile+". Can be passed multiple times")
	syncCmd.Flags().BoolVar(&deleted, "delete", false, "remove files of the drive that are missing in fsPath")
	c.AddCommand(syncCmd)

	urlCmd := &cobra.Command{
		Use:     "url <seed>",
		Aliases: []string{"getURL"},
		Short:   "Print the url of the drive owned by seed",
		Args:    cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			seed, err := types.ParseSeed(args[0])
			if err != nil {
				return err
			}
			return run(c, false, func(ctx context.Context, a *app) error {
				url, err := a.session.URL(ctx, seed)
				if err != nil {
					return err
				}
				fmt.Fprintln(c.OutOrStdout(), url)
				return nil
			})
		},
	}
	c.AddCommand(urlCmd)

	seedCmd := &cobra.Command{
		Use:   "seed <url>",
		Short: "Mirror a drive and acknowledge its blocks until interrupted",
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			key, err := types.ParsePublicKey(args[0])
			if err != nil {
				return err
			}
			return run(c, true, func(ctx context.Context, a *app) error {
				addrs, err := p2p.FullAddrs(a.node.Host())
				if err != nil {
					return err
				}
				out := c.OutOrStdout()
				fmt.Fprintln(out, "Listening on:")
				for _, addr := range addrs {
					fmt.Fprintln(out, addr)
				}
				return a.session.Mirror(ctx, key)
			})
		},
	}
	c.AddCommand(seedCmd)

	// versionCmd returns the current version of the publisher.
	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Show version info",
		Run: func(c *cobra.Command, args []string) {
			fmt.Fprint(c.OutOrStdout(), cmd.Version)
			if cmd.Commit != "" {
				fmt.Fprintf(c.OutOrStdout(), " (%s)", cmd.Commit)
			}
			fmt.Fprintln(c.OutOrStdout())
		},
	}
	c.AddCommand(versionCmd)

	return c
}

func configure(c *cobra.Command, configPath string, conf *config.Config) error {
	if err := loadConfig(conf, configPath); err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	// apply CLI args to config
	if err := c.ParseFlags(os.Args[1:]); err != nil {
		return fmt.Errorf("parsing flags: %w", err)
	}
	return nil
}

// loadConfig overrides values of cfg with the ones from the config file at path.
func loadConfig(cfg *config.Config, path string) error {
	v := viper.New()
	// read in config from file
	if err := config.LoadConfig(path, v); err != nil {
		return err
	}

	hook := mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
		mapstructure.TextUnmarshallerHookFunc(),
	)
	opts := []viper.DecoderConfigOption{
		viper.DecodeHook(hook),
		WithZeroFields(),
		WithIgnoreUntagged(),
		WithErrorUnused(),
	}
	if err := v.Unmarshal(cfg, opts...); err != nil {
		return fmt.Errorf("unmarshal config: %w", err)
	}
	return nil
}

func WithZeroFields() viper.DecoderConfigOption {
	return func(cfg *mapstructure.DecoderConfig) {
		cfg.ZeroFields = true
	}
}

func WithIgnoreUntagged() viper.DecoderConfigOption {
	return func(cfg *mapstructure.DecoderConfig) {
		cfg.IgnoreUntaggedFields = true
	}
}

func WithErrorUnused() viper.DecoderConfigOption {
	return func(cfg *mapstructure.DecoderConfig) {
		cfg.ErrorUnused = true
	}
}

func decodeLoggerLevel(cfg *config.Config, name string) (zap.AtomicLevel, error) {
	lvl := zap.NewAtomicLevel()
	loggers := map[string]string{}
	if err := mapstructure.Decode(cfg.LOGGING, &loggers); err != nil {
		return zap.AtomicLevel{}, fmt.Errorf("error decoding mapstructure: %w", err)
	}

	level, ok := loggers[name]
	if !ok {
		return zap.AtomicLevel{}, fmt.Errorf("unknown logger %v", name)
	}
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return zap.AtomicLevel{}, fmt.Errorf("cannot parse logging for %v: %w", name, err)
	}
	return lvl, nil
}
