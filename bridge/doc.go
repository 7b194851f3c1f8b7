// Package bridge emulates the legacy poll-based host API on top of a
// callback-driven backend.
//
// The legacy surface expects explicit polls, synchronous state queries
// and FIFO event queues consumed through a next-cursor; the backend
// delivers everything asynchronously through registered callbacks. The
// bridge's callbacks do nothing but normalize events into queues and
// update snapshot fields; every legacy-shaped query reads only those
// snapshots and queues and never blocks.
//
// All subsystem state hangs off an explicit Bridge value. There are no
// package globals, so independent bridges can coexist and tests stay
// deterministic.
//
// Vertical coordinates are stored in the backend's top-origin
// convention and flipped at each read or write of the legacy
// bottom-origin surface, never pre-converted in storage.
package bridge
