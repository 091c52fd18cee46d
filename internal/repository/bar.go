package repository

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"bitbucket.org/novatechnologies/barfeed/domain"
	"bitbucket.org/novatechnologies/barfeed/internal/model"
)

var timeNow = func() time.Time {
	return time.Now()
}

// Bar repository keeps closed bars
type Bar struct {
	barsCollection *mongo.Collection
}

// NewBar creates bar repository
func NewBar(barsCollection *mongo.Collection) *Bar {
	return &Bar{barsCollection: barsCollection}
}

// Save upserts the bar, a later save of the same open time wins.
func (r *Bar) Save(ctx context.Context, update domain.BarUpdate) error {
	record, err := model.NewBar(update, timeNow())
	if err != nil {
		return err
	}

	filter := bson.D{
		{Key: "s", Value: record.Symbol},
		{Key: "r", Value: record.Resolution},
		{Key: "t", Value: record.OpenTime},
	}
	_, err = r.barsCollection.UpdateOne(
		ctx,
		filter,
		bson.D{{Key: "$set", Value: record}},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return errors.Wrapf(err, "can't save bar %s %s %d", update.Symbol, update.Resolution, update.Bar.Time)
	}

	return nil
}

// Last returns the most recent archived bar, nil when there is none.
func (r *Bar) Last(ctx context.Context, symbol string, resolution domain.Resolution) (*domain.Bar, error) {
	var record model.Bar
	err := r.barsCollection.FindOne(
		ctx,
		bson.D{{Key: "s", Value: symbol}, {Key: "r", Value: string(resolution)}},
		options.FindOne().SetSort(bson.D{{Key: "t", Value: -1}}),
	).Decode(&record)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "can't find last bar of %s %s", symbol, resolution)
	}

	bar, err := record.ToDomain()
	if err != nil {
		return nil, errors.Wrap(err, "can't decode bar")
	}

	return &bar, nil
}

// Range returns archived bars opened in [from, to), both Unix milliseconds,
// oldest first.
func (r *Bar) Range(ctx context.Context, symbol string, resolution domain.Resolution, from, to int64) ([]domain.Bar, error) {
	cursor, err := r.barsCollection.Find(
		ctx,
		bson.D{
			{Key: "s", Value: symbol},
			{Key: "r", Value: string(resolution)},
			{Key: "t", Value: bson.D{
				{Key: "$gte", Value: time.UnixMilli(from).UTC()},
				{Key: "$lt", Value: time.UnixMilli(to).UTC()},
			}},
		},
		options.Find().SetSort(bson.D{{Key: "t", Value: 1}}),
	)
	if err != nil {
		return nil, errors.Wrapf(err, "can't find bars of %s %s", symbol, resolution)
	}

	records := make([]model.Bar, 0)
	if err := cursor.All(ctx, &records); err != nil {
		return nil, errors.Wrap(err, "can't serialise bars")
	}

	bars := make([]domain.Bar, 0, len(records))
	for _, record := range records {
		bar, err := record.ToDomain()
		if err != nil {
			return nil, errors.Wrap(err, "can't decode bar")
		}
		bars = append(bars, bar)
	}

	return bars, nil
}
