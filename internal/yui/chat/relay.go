package chat

import (
	"context"
	"fmt"
)

// Relay segments text and sends every chunk to channel, in order, as a
// separate message. Delivery stops at the first failed send; the error is
// returned and the remaining chunks are not sent. Nothing is retried.
func Relay(ctx context.Context, sender Sender, channel, text string, maxLength int) error {
	i := 0
	for chunk := range Chunks(text, maxLength) {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("relay chunk %d: %w", i, err)
		}
		if err := sender.SendText(ctx, channel, chunk); err != nil {
			return fmt.Errorf("relay chunk %d: %w", i, err)
		}
		i++
	}
	return nil
}
