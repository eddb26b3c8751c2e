// Package gallery builds the member video listing: videos are grouped into
// cards by group key, and a card's full-length playback id is only revealed
// to entitled viewers.
package gallery

import (
	"context"
	"time"
)

const untitled = "Untitled"

// Video is one row of the videos table. A group usually holds a public
// trailer and a member-only full cut.
type Video struct {
	ID            int64     `json:"id"`
	Title         string    `json:"title"`
	MuxPlaybackID string    `json:"mux_playback_id"`
	IsMemberOnly  bool      `json:"is_member_only"`
	GroupKey      string    `json:"group_key"`
	CreatedAt     time.Time `json:"created_at"`
}

// Card is what the listing shows for one group.
type Card struct {
	GroupKey        string  `json:"group_key"`
	Title           string  `json:"title"`
	TrailerPlayback *string `json:"trailer_playback_id"`
	FullPlayback    *string `json:"full_playback_id"`
	Locked          bool    `json:"locked"`
}

// Lister returns all videos, newest first.
type Lister interface {
	ListVideos(ctx context.Context) ([]Video, error)
}

// Build groups videos (already newest first) into cards in order of first
// appearance. The card title is the trailer's, else the first video's.
func Build(videos []Video, entitled bool) []Card {
	order := []string{}
	groups := map[string][]Video{}
	for _, v := range videos {
		if _, ok := groups[v.GroupKey]; !ok {
			order = append(order, v.GroupKey)
		}
		groups[v.GroupKey] = append(groups[v.GroupKey], v)
	}
	cards := make([]Card, 0, len(order))
	for _, key := range order {
		list := groups[key]
		card := Card{GroupKey: key, Title: untitled}
		var trailer, full *Video
		for i := range list {
			if !list[i].IsMemberOnly && trailer == nil {
				trailer = &list[i]
			}
			if list[i].IsMemberOnly && full == nil {
				full = &list[i]
			}
		}
		switch {
		case trailer != nil && trailer.Title != "":
			card.Title = trailer.Title
		case list[0].Title != "":
			card.Title = list[0].Title
		}
		if trailer != nil {
			id := trailer.MuxPlaybackID
			card.TrailerPlayback = &id
		}
		if entitled && full != nil {
			id := full.MuxPlaybackID
			card.FullPlayback = &id
		} else {
			card.Locked = true
		}
		cards = append(cards, card)
	}
	return cards
}
