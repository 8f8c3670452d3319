/*
Package draft tracks the three code snapshots an app carries and keeps
them honest across saves, deploys and rollbacks.

The Coordinator distinguishes:

  - buffer: what the user is editing right now
  - lastSaved: the draft the platform has stored
  - deployed: the code actually serving traffic

Two derived flags fall out of the snapshots. HasLocalChanges is
buffer != lastSaved; HasUnpublishedChanges prefers the server's own
has_unpublished_changes flag when the platform reports one and derives
lastSaved != deployed otherwise. StatusLabel folds both into the single
string the editor shows, with a short-lived "Draft saved" acknowledgement
after a successful save.

# Saving

SaveDraft is idempotent: when the buffer already equals lastSaved it
returns "No changes to save" without touching the network. Otherwise it
PUTs the draft and only then moves lastSaved forward, so a failed save
leaves the flags truthful.

# Deploying

Deploy snapshots the buffer before handing it to the progress engine.
When the engine later reports success, the coordinator promotes that
snapshot to deployed (and lastSaved), not whatever the buffer contains
by then; edits made while a deploy is in flight stay unpublished.
The coordinator claims the engine's success and failure callbacks for
this bookkeeping and re-exposes them as OnDeploySuccess/OnDeployFailure.

# Environment Variables

Keys are normalized to upper case on entry and duplicates collapse
last-write-wins, keeping the first occurrence's position. A key that is
not a valid identifier warns but never blocks submission.

Rollback discards the local snapshots for the app; callers reload from
the platform afterwards, since the server's code changed underneath them.
*/
package draft
