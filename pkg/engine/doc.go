/*
Package engine drives a deployment from submission to a terminal outcome.

The Engine owns one DeployAttempt at a time. It submits the create or
update request, then polls deployment status on a fixed interval, mapping
the platform's deploy stage onto the ordered phase sequence and firing
callbacks as the phase advances. A deployment ends in exactly one of
success, failure, or timeout.

# Polling Loop

	┌─────────────┐   every 2s    ┌──────────────────┐
	│  pollLoop   │──────────────▶│  GET status      │
	└─────┬───────┘               │  GET events (best│
	      │ tick budget            │  effort)         │
	      │ exhausted              └────────┬─────────┘
	      ▼                                 ▼
	  timeout                      phase / terminal
	                               detection

Ticks are sequential: a slow response delays the next tick rather than
overlapping it. The budget is 30 ticks for a foreground deploy and 60
for a background one; exhausting it fails the attempt with "Deployment
is taking longer than expected".

# Terminal Detection

The deploy stage is authoritative for phase display; the coarse status
field only decides termination. A status of running with deployment_ready
set succeeds the attempt (recording its duration); a status of error
fails it with the most specific message the platform offered. A bare
running without deployment_ready is not terminal: the phase holds and
polling continues until the readiness flag or the deadline decides.

Tick errors are tolerated by default: transient network and server
failures simply wait for the next tick. A NotFound (the app was deleted
mid-deploy) and Unauthorized are fatal immediately; a server error on
the final tick fails generically rather than burning the budget.

# Callbacks and Cancellation

OnPhaseChanged, OnSuccess and OnFailure are invoked without the engine
lock held. Consecutive duplicate phases are suppressed. Starting a new
attempt (or Abort) bumps a generation counter; in-flight ticks from the
superseded attempt see the mismatch and discard their results, so an
abandoned deploy can never repaint the UI.
*/
package engine
