// Package marketfeed implements the live market-data feed client.
//
// The feed:
//   - Decodes the binary packet protocol (ticker, quote, full with 5-level
//     depth, open interest, previous close, market status, disconnection)
//   - Splits subscription requests into protocol-legal batches (100
//     instruments per message)
//   - Spreads instruments across at most 5 WebSocket connections, 5000
//     instruments each, with capacity-aware placement
//   - Reconnects each connection independently with exponential backoff and
//     replays its subscription ledger
//
// LiveFeed is the pool-managed variant; LegacyFeed is the older
// single-socket variant with its own wire layout and keep-alive rules.
package marketfeed
