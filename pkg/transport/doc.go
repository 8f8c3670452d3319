/*
Package transport is the single seam between the console and the platform API.

Every network interaction goes through this package: typed HTTP endpoints for
app CRUD, validation, drafts, deploy status, events, logs, versions and
rollback, plus a log channel factory that prefers a live websocket stream and
falls back to polling when streaming is unavailable.

# Architecture

	┌──────────────────────────────────────────────────┐
	│                     Client                       │
	│   Do() ── bearer token, JSON codec, APIError     │
	└──────┬───────────────────────┬───────────────────┘
	       │                       │
	       ▼                       ▼
	 Typed endpoints        OpenLogChannel()
	 (ListApps, GetApp,            │
	  SaveDraft, Deploy,    ┌──────┴──────┐
	  Logs, Rollback, …)    ▼             ▼
	                   streamChannel  pollChannel
	                   (websocket)    (ticker + GET)

# Error Handling

Every failed request surfaces as *APIError carrying a classified Kind
(Unauthorized, NotFound, Conflict, Validation, Server, Transport, Unknown),
the HTTP status, and a human-readable message extracted from the response
body. Extraction tries, in order: detail.message, detail as a bare string,
then a top-level message field, before falling back to "Request failed
(<status>)". Callers switch on Kind, never on status codes:

	app, err := client.GetApp(ctx, id)
	if apiErr := transport.AsAPIError(err); apiErr != nil && apiErr.Kind == transport.KindNotFound {
	    // app was deleted underneath us
	}

# Log Channels

OpenLogChannel returns a LogChannel in whichever mode it could establish.
A streaming channel delivers raw server frames to the registered FrameHandler
and reports its termination exactly once through the CloseHandler, including
the websocket close code when one was received. A polling channel synthesizes
batch frames from periodic tail fetches so consumers see one frame vocabulary
regardless of mode. Frame payloads are delivered unparsed; interpretation
belongs to the consumer.

Close codes 4001 (auth expired) and 4004 (auth rejected) are exposed as
constants; AuthClose reports whether a code is one of them.

# Tokens

The Client re-reads its TokenSource on every request, so a token stored after
login (or cleared on logout) takes effect without rebuilding the client.
*/
package transport
