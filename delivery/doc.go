// Package delivery contains the transport side of federation fan-out: a
// stateless worker that performs exactly one signed POST per destination,
// and a bounded pool that runs one dispatch pass worth of workers so a slow
// remote server cannot stall delivery to the rest.
//
// Retry policy lives entirely in the core dispatch coordinator; nothing in
// this package re-attempts or touches storage.
package delivery
