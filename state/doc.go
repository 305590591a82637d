// Package state implements the hot-swap engine at the heart of the face:
// a container that lets many concurrent readers work against a consistent
// snapshot of composite state while a reconfiguration, load, or save
// safely replaces that snapshot underneath them.
//
// # Model
//
// A Container owns one published snapshot at a time. The snapshot type
// implements Snapshot: an explicit Clone defining its own copy semantics
// and a Dispose releasing owned resources. Readers acquire a handle with
// Read (or View); writers stage a change with Reconfigure or Replace.
//
// The write path follows a copy-on-write discipline:
//
//  1. Readiness drops to false and a readiness event is published.
//  2. The current snapshot is cloned; the mutator runs against the copy.
//  3. On failure the copy is discarded, the original stays current,
//     readiness returns to true. Nothing partial is ever visible.
//  4. On success the copy becomes current, the superseded snapshot is
//     disposed once its readers drain, readiness returns to true, and a
//     config change event carrying the old and new logical configuration
//     is published.
//
// Writers are strictly serialized: at most one Reconfigure or Replace is
// in flight, holding the write lock across clone, mutation, and swap.
// Readers never block writers and never see each other; a reader racing
// a swap gets either the old or the new snapshot, always fully formed.
//
// # Readiness
//
// While a swap is in progress, Read fails fast with ErrNotReady. The
// container does not queue waiting readers; retry policy belongs to the
// caller. Readiness transitions and config changes fan out through
// Stream, which delivers every event in order to every subscriber
// without letting a slow consumer block the writer.
//
// # Snapshot lifetime
//
// A superseded snapshot is disposed only after the last read handle on
// it is released, so long-running operations (a paginated scrap stream,
// a slow post) keep their snapshot alive across any number of
// reconfigurations. Shared resources survive swaps either by plain
// reference (the network client, owned by the face) or by reference
// counting (the toxicity model handle), with Clone and Dispose keeping
// the counts balanced.
//
// # Usage
//
//	container := state.NewContainer(
//		state.WithLogger[*face.State](logger),
//		state.WithConfigFunc[*face.State](configOf),
//	)
//
//	if _, err := container.Replace(ctx, buildDefault); err != nil {
//		return err
//	}
//
//	err := container.View(func(s *face.State) error {
//		return s.Poster.Post(ctx, client, content)
//	})
package state
