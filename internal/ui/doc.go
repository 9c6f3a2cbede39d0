// Package ui implements a terminal monitor for a download run using bubbletea's Elm architecture.
//
// The [Model] shows an aggregate progress bar, the queue as a scrollable list coloured by status,
// and the last few progress messages. It polls the controller snapshot on a [RefreshInterval]
// tick and also listens on the controller's progress channel.
//
// Keys: p pauses, r resumes, a aborts, q quits (aborting first while the run is still going).
// Help is displayed via charmbracelet/bubbles/help.
package ui
