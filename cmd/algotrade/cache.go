package main

import (
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Price cache operations",
	Long:  `Commands for inspecting and purging the price cache.`,
}

var cacheListCmd = &cobra.Command{
	Use:   "list",
	Short: "List cached price series",
	Args:  cobra.NoArgs,
	RunE:  runCacheList,
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear [symbol]",
	Short: "Remove cached series for a symbol, or all series",
	Long: `Remove cached series. With a symbol only that symbol's series are
removed; --interval narrows it further to a single series.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runCacheClear,
}

var cacheClearInterval string

func init() {
	cacheClearCmd.Flags().StringVar(&cacheClearInterval, "interval", "", "only clear this interval (requires a symbol)")

	rootCmd.AddCommand(cacheCmd)
	cacheCmd.AddCommand(cacheListCmd)
	cacheCmd.AddCommand(cacheClearCmd)
}

func runCacheList(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	cache, err := newCache(cfg)
	if err != nil {
		return err
	}
	if cache == nil {
		return errors.New("price cache is disabled")
	}

	infos, err := cache.List(cmd.Context())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(infos) == 0 {
		fmt.Fprintln(out, "No cached series.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SYMBOL\tINTERVAL\tFROM\tTO\tBARS\tFETCHED")
	for _, info := range infos {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\n",
			info.Symbol,
			info.Interval,
			info.Start.Format(time.DateOnly),
			info.End.Format(time.DateOnly),
			info.Bars,
			info.FetchedAt.Local().Format("2006-01-02 15:04"),
		)
	}
	return w.Flush()
}

func runCacheClear(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	cache, err := newCache(cfg)
	if err != nil {
		return err
	}
	if cache == nil {
		return errors.New("price cache is disabled")
	}

	var symbol string
	if len(args) == 1 {
		symbol = args[0]
	}

	if cacheClearInterval != "" {
		if symbol == "" {
			return errors.New("--interval requires a symbol")
		}
		found, err := cache.Remove(cmd.Context(), symbol, cacheClearInterval)
		if err != nil {
			return err
		}
		if !found {
			fmt.Fprintf(cmd.OutOrStdout(), "No cached %s series for %s.\n", cacheClearInterval, symbol)
			return nil
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Removed cached %s series for %s.\n", cacheClearInterval, symbol)
		return nil
	}

	removed, err := cache.Clear(cmd.Context(), symbol)
	if err != nil {
		return err
	}

	target := "all symbols"
	if symbol != "" {
		target = symbol
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Removed %d cached series for %s.\n", removed, target)
	return nil
}
