package main

import (
	"encoding/csv"
	"io"
	"strconv"
	"time"

	"github.com/AlekSi/pointer"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"bitbucket.org/novatechnologies/barfeed/domain"
	"bitbucket.org/novatechnologies/barfeed/infra"
	"bitbucket.org/novatechnologies/barfeed/infra/mongo"
	"bitbucket.org/novatechnologies/barfeed/internal/repository"
)

var (
	archiveSymbolFlag     string
	archiveResolutionFlag string
	archiveFromFlag       string
	archiveToFlag         string
)

var archiveCmd = &cobra.Command{
	Use:   "archive",
	Short: "Export archived closed bars as CSV",
	Long:  `ex) barfeed archive -s SOL_USDC -r 1 -f "2023-11-14 00:00:00" -t "2023-11-14 01:00:00" > bars.csv`,
	RunE: func(cmd *cobra.Command, args []string) error {
		conf, err := infra.SetConfig(configPathFlag)
		if err != nil {
			return err
		}
		loc, err := conf.FeedConfig.Location()
		if err != nil {
			return err
		}
		from, err := parseFlagTime(archiveFromFlag, loc)
		if err != nil {
			return err
		}
		to, err := parseFlagTime(archiveToFlag, loc)
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		client, err := mongo.NewMongoClient(ctx, conf.MongoDbConfig)
		if err != nil {
			return err
		}
		defer func() { _ = client.Disconnect(ctx) }()
		collection, err := mongo.GetBarsCollection(ctx, client, conf.MongoDbConfig)
		if err != nil {
			return err
		}

		bars, err := repository.NewBar(collection).Range(
			ctx,
			archiveSymbolFlag,
			domain.Resolution(archiveResolutionFlag),
			from*1000,
			to*1000,
		)
		if err != nil {
			return err
		}

		return writeBarsCSV(cmd.OutOrStdout(), bars, loc)
	},
}

func init() {
	rootCmd.AddCommand(archiveCmd)
	archiveCmd.Flags().StringVarP(&archiveSymbolFlag, "symbol", "s", "", "Symbol name")
	archiveCmd.Flags().StringVarP(&archiveResolutionFlag, "resolution", "r", string(domain.Candle1MResolution), "Chart resolution")
	archiveCmd.Flags().StringVarP(&archiveFromFlag, "from", "f", "", "Start, Unix seconds or DateTime in FEED_TIMEZONE")
	archiveCmd.Flags().StringVarP(&archiveToFlag, "to", "t", "", "End, exclusive")
	_ = archiveCmd.MarkFlagRequired("symbol")
	_ = archiveCmd.MarkFlagRequired("from")
	_ = archiveCmd.MarkFlagRequired("to")
}

func writeBarsCSV(w io.Writer, bars []domain.Bar, loc *time.Location) error {
	writer := csv.NewWriter(w)
	if err := writer.Write([]string{"time", "unix", "open", "high", "low", "close", "volume"}); err != nil {
		return err
	}
	for _, bar := range bars {
		record := []string{
			time.UnixMilli(bar.Time).In(loc).Format(flagTimeLayout),
			strconv.FormatInt(bar.Time/1000, 10),
			decimal.NewFromFloat(bar.Open).String(),
			decimal.NewFromFloat(bar.High).String(),
			decimal.NewFromFloat(bar.Low).String(),
			decimal.NewFromFloat(bar.Close).String(),
			decimal.NewFromFloat(pointer.GetFloat64(bar.Volume)).String(),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	writer.Flush()

	return writer.Error()
}
