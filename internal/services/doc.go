// Package services talks to the outside world on behalf of the download engine.
//
// # Link Resolution
//
// A [Resolver] turns a link into a [models.Entry]. [Resolve] picks the first resolver whose
// Supports method accepts the link:
//   - [SpotifyResolver]: open.spotify.com track, album and playlist links through zmb3/spotify,
//     authenticated with the client credentials flow. Playlists are paged 50 items at a time.
//   - [YouTubeResolver]: watch?v=, youtu.be/ and list= links through a yt-dlp info dump.
//
// # Acquisition
//
// Acquirers download raw audio for a queued track and are tried in order by the pipeline:
//   - [YTDLPFetcher]: direct fetch of a YouTube id into the temp folder. Tracks from other
//     platforms return [shared.ErrUnsupportedPlatform] so the next strategy runs.
//   - [SearchAcquirer]: searches YouTube for "title artists" with a [Searcher] and fetches the
//     first hit. [YouTubeAPISearcher] uses the Data API when a key is configured,
//     [YTDLPSearcher] uses ytsearch1: otherwise.
//
// # Metadata and Artwork
//
// [MusicBrainz] fills missing album and year values. [ArtworkClient] downloads cover images.
// Both go through [APIClient], a rate limited GET client.
//
// # Error Handling
//
// Services wrap the sentinel errors of the shared package:
//   - [shared.ErrInvalidLink] : link cannot be parsed
//   - [shared.ErrNetworkUnreachable] : transport failure
//   - [shared.ErrNotFound] : the resource does not exist
//   - [shared.ErrExtractionFailed] : yt-dlp failed or printed nothing usable
//   - [shared.ErrNoMatch] : a search or lookup came back empty
package services
