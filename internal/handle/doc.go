// Package handle manages the lifetime of natively allocated resources that
// are handed to a garbage-collected host as opaque references.
//
// Each resource kind is described once by a Descriptor (how to allocate an
// empty resource and how to destroy one). A Registry issues Handles for
// constructed resources and guarantees that every resource is destroyed
// exactly once: by an explicit Release, by a Bridge reacting to host
// teardown, or by Registry.Close. Construct is the only way a failed
// construction is cleaned up; it never issues a Handle for a resource whose
// initialisation failed.
//
// Handles are safe for concurrent use. Release and With on the same handle
// are serialised by a per-handle lock, so a resource is never destroyed
// while a caller is using it.
package handle
