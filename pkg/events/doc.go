/*
Package events provides the console's internal publish/subscribe broker.

The engine, reconciler and coordinator publish milestones (phase changes,
deploy outcomes, draft saves, log channel mode changes) that any surface
can subscribe to without coupling to the producer:

	broker := events.NewBroker()
	broker.Start()
	defer broker.Stop()

	sub := broker.Subscribe()
	defer broker.Unsubscribe(sub)
	for ev := range sub {
	    ...
	}

Publish never blocks: a subscriber that falls behind has events dropped
rather than stalling the producer. Events carry an ID, type, timestamp,
the app ID and a free-form metadata map.
*/
package events
