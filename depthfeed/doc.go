// Package depthfeed implements the 20-level and 200-level market-depth feed.
//
// The depth feed shares the pool/reconnect design of package marketfeed but
// speaks its own wire format: a 12-byte header followed by fixed 16-byte
// price levels, with bid and ask halves arriving as separate messages that
// are paired into snapshots. Subscription caps are much tighter than the
// market feed: 50 instruments per connection for 20-level depth, a single
// instrument per connection for 200-level depth.
package depthfeed
