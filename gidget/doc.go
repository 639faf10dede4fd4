// Package gidget is the core of the gidget daemon: it watches a configured
// set of filesystem paths for inotify events and, for each one, runs a
// user-supplied command as a specified local account, mailing any output it
// produces.
//
// Mechanism of Operation
//
// Tricks
//
// Each line of the configuration file describes a "trick": a path to watch,
// a bitmap of inotify event classes, a script to run, the account to run it
// as, and an address to mail output to. Tricks are loaded once at startup
// into an ordered table and never mutated afterward.
//
// Watch Descriptors
//
// One inotify instance is opened and one watch is registered per trick. The
// kernel is expected to hand out watch descriptors 1, 2, 3... in registration
// order, so the trick table is indexed by watchDescriptor-1. Any deviation
// from sequential numbering is treated as a fatal, unrecoverable condition:
// it means gidget's understanding of which trick owns which descriptor can
// no longer be trusted.
//
// Process Topology
//
// The daemon runs a single-threaded loop that blocks reading the inotify
// instance. Each event dispatches a worker goroutine, which resolves the
// trick's account and assembles the command, then launches a real OS
// subprocess — with its credentials dropped to the resolved account — to run
// the command through that account's login shell. Output from that
// subprocess is captured and, if non-empty, mailed.
package gidget
