/*
Package types defines the core data structures used throughout the Pyloft console.

This package contains the fundamental types that represent the console's domain
model: applications, deployment phases, deployment attempts and their event
narration, log lines, and the request/response payloads exchanged with the
platform API. All other packages build on these types.

# Core Types

Application State:
  - App: A deployed (or deploying) Python web application
  - EnvVar: One environment variable, order-preserving
  - Phase: Where a deployment currently stands (validating → ready)
  - DeployStatus: The platform's answer to a status poll

Deployment Narration:
  - DeployAttempt: One invocation of deploy, owned by the progress engine
  - DeploymentEvent: A platform event attached to an attempt
  - EventSeverity: Normal or Warning

Logs:
  - LogLine: One line of application output
  - ChannelMode: live, polling, idle, or error
  - LogsResponse: The payload of a tail fetch

Versions:
  - Version: One previously deployed snapshot
  - VersionsResponse: The payload of a versions fetch

# Phases

A deployment walks an ordered, non-terminal sequence:

	validating → creating_resources → pending → scheduled →
	pulling → pulled → creating → starting

and ends in one of the terminal phases: ready or error. Strings the
platform reports that are not in the known set parse as PhaseUnknown and
are ignored for progress purposes. PhaseDeploying is local only: it is
shown between accepting a deploy request and the first server-reported
stage, and is never sent by the platform.

Use ParsePhase to convert an individual stage string, and Phase.Terminal
to test for completion. A whole DeployStatus observation is folded into a
phase by engine.PhaseFromStatus, which additionally requires the
deployment_ready flag before a running status counts as ready.

All payload types carry json tags matching the platform API's snake_case
field names and are safe to marshal directly.
*/
package types
