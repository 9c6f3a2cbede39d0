package ui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/list"
	"github.com/desertthunder/tapedeck/internal/models"
)

var (
	_ list.Item = trackItem{}
)

// trackItem wraps one queued [models.Track] to implement [list.Item].
type trackItem struct {
	track      models.Track
	collection string
}

func (i trackItem) FilterValue() string { return i.track.Title }
func (i trackItem) Title() string {
	return fmt.Sprintf("%s  %s", styles.status(i.track.Status), i.track.Title)
}
func (i trackItem) Description() string {
	desc := i.track.ArtistLine()
	if i.collection != "" {
		desc = fmt.Sprintf("%s • %s", desc, i.collection)
	}
	if i.track.Err != "" {
		desc = fmt.Sprintf("%s • %s", desc, i.track.Err)
	}
	return desc
}

// trackItems flattens entries into list rows in scan order.
func trackItems(entries []models.Entry) []list.Item {
	var items []list.Item
	for _, e := range entries {
		if e.Track != nil {
			items = append(items, trackItem{track: *e.Track})
		}
		if e.Collection != nil {
			for _, t := range e.Collection.Tracks {
				items = append(items, trackItem{track: t, collection: e.Collection.Title})
			}
		}
	}
	return items
}
