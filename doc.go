/*
Package beacon serves an experiment to a radar control process, one reply per
request.

The control peer asks with a status code. EXPNEEDED asks for the complete
experiment; NOERROR acknowledges the last cycle and asks for whatever is new.
A Coordinator answers every request with exactly one snapshot: the full
experiment when the peer asked for it or when the experiment changed since
the last full reply, and the unchanged sentinel otherwise.

# Basic Usage

Resolve an experiment from a registered module and serve it:

	registry := beacon.NewRegistry()
	experiments.Register(registry)

	exp, err := registry.Load(ctx, "adaptivescan")
	if err != nil {
	    return err // *beacon.LoadError
	}

	c := beacon.New(exp, beacon.ModeSpecial, transport).
	    Peer("control").
	    Feedback(beacon.NewWatchedFeedback(beacon.NewFileWatcher(path)))

	err = c.Run(ctx)

# Experiments

An Experiment has a scheduling mode, attached once before its first build,
and a Build step that prepares its scans. Experiments that also implement
Updater receive feedback: after each reply the Coordinator starts an update
worker, unless one is already running, which fetches feedback, applies it
and rebuilds. The next NOERROR carries the rebuilt experiment.

All access to the experiment happens under one lock, so a reply never
observes a half-applied update.

# Faults

Errors and panics from Build, Update or the feedback source are contained.
The Coordinator records them, emits a signal and keeps serving the last good
snapshot:

	StateLoading  -> no build attempted yet
	StateHealthy  -> last build succeeded
	StateDegraded -> last build failed, previous snapshot in service
	StateEmpty    -> no good snapshot, the sentinel is served

Replies the transport refuses are retried with backoff. A full snapshot that
is still lost re-arms the Coordinator so the next NOERROR carries it again.

# Transports

ChannelTransport connects a Coordinator to a peer in the same process.
Package pkg/nats provides request/reply over NATS; pkg/nats and pkg/redis
provide feedback watchers.

# Observability

Every step emits a capitan signal (see signals.go and fields.go). Package
pkg/zaplog routes them to a zap logger.
*/
package beacon
