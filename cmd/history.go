package main

import (
	"context"
	"encoding/json"
	"io"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"bitbucket.org/novatechnologies/barfeed/candle"
	"bitbucket.org/novatechnologies/barfeed/datafeed"
	"bitbucket.org/novatechnologies/barfeed/domain"
	"bitbucket.org/novatechnologies/barfeed/infra"
)

const flagTimeLayout = "2006-01-02 15:04:05"

var (
	historySymbolFlag     string
	historyResolutionFlag string
	historyFromFlag       string
	historyToFlag         string
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Fetch one page of historical bars and print it as a UDF chart",
	Long:  `ex) barfeed history -s SOL_USDC -r 15 -f "2023-11-14 00:00:00" -t "2023-11-15 00:00:00"`,
	RunE: func(cmd *cobra.Command, args []string) error {
		conf, err := infra.SetConfig(configPathFlag)
		if err != nil {
			return err
		}
		loc, err := conf.FeedConfig.Location()
		if err != nil {
			return err
		}
		from, err := parseFlagTime(historyFromFlag, loc)
		if err != nil {
			return errors.Wrap(err, "bad --from")
		}
		to, err := parseFlagTime(historyToFlag, loc)
		if err != nil {
			return errors.Wrap(err, "bad --to")
		}

		client, err := newBirdeyeClient(conf)
		if err != nil {
			return err
		}
		feed := datafeed.New(candle.NewHistory(client, candle.NewLastBars()), nil, datafeed.Config{
			Symbols:  conf.FeedConfig.Symbols,
			Exchange: conf.FeedConfig.Exchange,
			Timezone: conf.FeedConfig.Timezone,
		})

		return printHistory(
			cmd.Context(),
			cmd.OutOrStdout(),
			feed,
			historySymbolFlag,
			domain.Resolution(historyResolutionFlag),
			datafeed.PeriodParams{From: from, To: to, FirstDataRequest: true},
		)
	},
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().StringVarP(&historySymbolFlag, "symbol", "s", "", "Symbol name or pair address")
	historyCmd.Flags().StringVarP(&historyResolutionFlag, "resolution", "r", string(domain.Candle1DResolution), "Chart resolution, e.g. 15 or 1D")
	historyCmd.Flags().StringVarP(&historyFromFlag, "from", "f", "", "Start, Unix seconds or DateTime in FEED_TIMEZONE (2023-11-14 00:00:00)")
	historyCmd.Flags().StringVarP(&historyToFlag, "to", "t", "", "End, exclusive")
	_ = historyCmd.MarkFlagRequired("symbol")
	_ = historyCmd.MarkFlagRequired("from")
	_ = historyCmd.MarkFlagRequired("to")
}

// parseFlagTime accepts Unix seconds or flagTimeLayout in loc.
func parseFlagTime(s string, loc *time.Location) (int64, error) {
	if unix, err := strconv.ParseInt(s, 10, 64); err == nil {
		return unix, nil
	}
	t, err := time.ParseInLocation(flagTimeLayout, s, loc)
	if err != nil {
		return 0, err
	}

	return t.Unix(), nil
}

func printHistory(
	ctx context.Context,
	w io.Writer,
	feed *datafeed.Datafeed,
	symbol string,
	resolution domain.Resolution,
	params datafeed.PeriodParams,
) error {
	info, err := feed.Resolve(symbol)
	if err != nil {
		return err
	}

	var (
		chart  *domain.Chart
		getErr error
	)
	feed.GetBars(ctx, info, resolution, params,
		func(bars []domain.Bar, meta datafeed.HistoryMeta) {
			chart = domain.NewChart(info.Name, resolution, bars)
		},
		func(err error) { getErr = err },
	)
	if getErr != nil {
		return getErr
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	return enc.Encode(chart)
}
