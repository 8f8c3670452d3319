/*
Package logstream maintains the bounded, ordered view of application logs.

The Reconciler owns one log channel at a time and turns whatever arrives on
it (live websocket frames or synthesized polling batches) into a single
buffer capped at the configured line count. UI surfaces read the buffer;
they never touch the channel directly.

# Lifecycle

	rec := logstream.New(client, cfg)
	rec.Attach(ctx, appID)   // opens a channel, resets the buffer
	...
	rec.Detach()             // closes the channel, keeps the buffer

Attach always detaches any previous channel first, so switching between
apps cannot interleave their output. Each attach bumps an internal
generation counter; callbacks from a superseded channel compare their
captured generation against the live one and are dropped, which makes
late frames from a closing websocket harmless.

# Frame Handling

The reconciler is the only component that parses frame payloads. Known
frame types:

  - connected: clears any recorded channel error
  - log, text: appended, with receive time substituted for a missing timestamp
  - error: recorded as LastError without tearing down the channel
  - batch: replaces the buffer wholesale (polling snapshots)

Malformed payloads are dropped; one bad frame never kills the stream.

# Degradation

When a streaming channel fails with a transport error or an auth close
code (4001/4004), the reconciler opens a polling channel in its place
and stays in polling mode for the rest of the attachment. Degradation
is one-way: it never attempts to re-upgrade to streaming, so a flapping
websocket cannot oscillate the UI. A normal close returns the mode to
idle; any other close code ends the session in the error mode with the
close recorded as LastError.
*/
package logstream
