package domain

import (
	"context"
	"time"
)

// Microbatching groups updates from updateStream into batches of at most
// maxBatchSize, flushing a partial batch after maxWait of silence.
func Microbatching(
	ctx context.Context,
	updateStream <-chan BarUpdate,
	maxBatchSize int,
	maxWait time.Duration,
) chan []BarUpdate {
	batchStream := make(chan []BarUpdate)
	go func() {
		defer close(batchStream)
		for {
			select {
			case <-ctx.Done():
				return
			case update, ok := <-updateStream:
				if !ok {
					return
				}
				batch := []BarUpdate{update}
				closed := false
			loop:
				for len(batch) < maxBatchSize {
					select {
					case <-ctx.Done():
						return
					case update, ok := <-updateStream:
						if !ok {
							closed = true
							break loop
						}
						batch = append(batch, update)
					case <-time.After(maxWait):
						break loop
					}
				}
				select {
				case <-ctx.Done():
					return
				case batchStream <- squashSameBar(batch):
				}
				if closed {
					return
				}
			}
		}
	}()
	return batchStream
}

// squashSameBar keeps only the latest update of consecutive updates to the
// same open bar of the same subscription.
func squashSameBar(batch []BarUpdate) []BarUpdate {
	ans := make([]BarUpdate, 0, len(batch))

	for i := 0; i < len(batch); i++ {
		if i+1 < len(batch) &&
			batch[i].SubscriptionID == batch[i+1].SubscriptionID &&
			batch[i].Bar.Time == batch[i+1].Bar.Time {
			continue
		}
		ans = append(ans, batch[i])
	}

	return ans
}
