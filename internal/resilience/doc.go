// Package resilience groups the fault tolerance building blocks used by the
// notification pipeline.
//
//   - retry: bounded retry policies. The Telegram client wraps each
//     sendMessage call in retry.TelegramSendPolicy (4 attempts, linear
//     backoff) and the guaranteed sender wraps a full notification cycle in
//     retry.GuaranteedSendPolicy (5 attempts, 2s/4s/8s/16s).
//   - circuitbreaker: one breaker per recipient chat, plus a breaker in
//     front of the database.
//
// Usage Example:
//
//	attempts, err := retry.TelegramSendPolicy().Do(ctx, func(ctx context.Context, attempt int) error {
//	    return client.sendOnce(ctx, chatID, text)
//	})
//
//	breakers := circuitbreaker.NewGroup(circuitbreaker.TelegramChatConfig)
//	err = breakers.Get(chatID).Run(func() error { return deliver(chatID) })
package resilience
