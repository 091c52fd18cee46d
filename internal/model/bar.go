package model

import (
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"bitbucket.org/novatechnologies/barfeed/domain"
)

// Bar is an archived closed bar. (s, r, t) is unique.
type Bar struct {
	Symbol     string                `bson:"s"`
	Resolution string                `bson:"r"`
	OpenTime   time.Time             `bson:"t"`
	Open       primitive.Decimal128  `bson:"o"`
	High       primitive.Decimal128  `bson:"h"`
	Low        primitive.Decimal128  `bson:"l"`
	Close      primitive.Decimal128  `bson:"c"`
	Volume     *primitive.Decimal128 `bson:"v,omitempty"`
	UpdatedAt  time.Time             `bson:"u"`
}

func toDecimal128(f float64) (primitive.Decimal128, error) {
	return primitive.ParseDecimal128(decimal.NewFromFloat(f).String())
}

func fromDecimal128(d primitive.Decimal128) (float64, error) {
	v, err := decimal.NewFromString(d.String())
	if err != nil {
		return 0, err
	}
	f, _ := v.Float64()

	return f, nil
}

func NewBar(update domain.BarUpdate, now time.Time) (*Bar, error) {
	prices := []float64{update.Bar.Open, update.Bar.High, update.Bar.Low, update.Bar.Close}
	converted := make([]primitive.Decimal128, len(prices))
	for i, p := range prices {
		d, err := toDecimal128(p)
		if err != nil {
			return nil, errors.Wrapf(err, "can't convert price %v", p)
		}
		converted[i] = d
	}

	bar := &Bar{
		Symbol:     update.Symbol,
		Resolution: string(update.Resolution),
		OpenTime:   time.UnixMilli(update.Bar.Time).UTC(),
		Open:       converted[0],
		High:       converted[1],
		Low:        converted[2],
		Close:      converted[3],
		UpdatedAt:  now.UTC(),
	}
	if update.Bar.Volume != nil {
		v, err := toDecimal128(*update.Bar.Volume)
		if err != nil {
			return nil, errors.Wrapf(err, "can't convert volume %v", *update.Bar.Volume)
		}
		bar.Volume = &v
	}

	return bar, nil
}

func (b Bar) ToDomain() (domain.Bar, error) {
	var (
		bar domain.Bar
		err error
	)
	bar.Time = b.OpenTime.UnixMilli()
	if bar.Open, err = fromDecimal128(b.Open); err != nil {
		return bar, errors.Wrap(err, "open")
	}
	if bar.High, err = fromDecimal128(b.High); err != nil {
		return bar, errors.Wrap(err, "high")
	}
	if bar.Low, err = fromDecimal128(b.Low); err != nil {
		return bar, errors.Wrap(err, "low")
	}
	if bar.Close, err = fromDecimal128(b.Close); err != nil {
		return bar, errors.Wrap(err, "close")
	}
	if b.Volume != nil {
		v, err := fromDecimal128(*b.Volume)
		if err != nil {
			return bar, errors.Wrap(err, "volume")
		}
		bar.Volume = &v
	}

	return bar, nil
}
