// Package connection keeps at most one live transport per kind for the
// whole process and shares it between consumers.
//
// Consumers call Registry.Acquire when they mount and Release when they
// unmount. Concurrent first acquisitions of a kind share one dial; later
// ones reuse the stored handle. Release only drops the reference count;
// the transport stays up until Teardown or TeardownAll, which the client
// calls on logout.
//
// Acquire without authenticated credentials returns a nil handle and a nil
// error: there is nothing to connect for an anonymous session.
package connection
