// Package models defines the entities tapedeck moves through its download queue.
//
// Queue data:
//   - [Track] : one downloadable audio unit with its pipeline [Status]
//   - [Collection] : an ordered playlist or album of tracks
//   - [Entry] : a top-level queue element holding a bare track or a collection
//   - [Coord] : the (entry, track) address of a track; [NoTrack] marks a bare track
//
// Pipeline data:
//   - [RawAudio] : a fetched source file plus the metadata reported by the source
//   - [LookupResult] : a catalogue match used to fill unknown album or year
//
// Persistence:
//   - [Download] : history row for a track that reached done or error
//   - [Run] : summary of one controller run
//
// Status transitions are monotonic along waiting → downloading → transcoding → tagging → cleaning → done.
// Any non-terminal status may move to error; done and error are terminal for a submission.
// [Status.CanTransition] encodes the table.
package models
