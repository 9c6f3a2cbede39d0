// YouTube implementation of [Resolver] and the yt-dlp raw audio fetcher
//
// Both shell out to yt-dlp through lrstanley/go-ytdlp and decode its JSON info dump.
package services

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/tapedeck/internal/models"
	"github.com/desertthunder/tapedeck/internal/shared"
	"github.com/lrstanley/go-ytdlp"
	"golang.org/x/time/rate"
)

const (
	youtubeWatchURL    = "https://music.youtube.com/watch?v=%s"
	youtubePlaylistURL = "https://www.youtube.com/playlist?list=%s"
	ytdlpAudioFormat   = "bestaudio/best"
)

var (
	youtubeIDPattern   = regexp.MustCompile(`^[0-9A-Za-z_-]{11}$`)
	youtubeListPattern = regexp.MustCompile(`^[0-9A-Za-z_-]{10,64}$`)
)

// YouTubeKind is the resource type addressed by a YouTube link.
type YouTubeKind string

const (
	YouTubeVideo    YouTubeKind = "video"
	YouTubePlaylist YouTubeKind = "playlist"
)

// ytdlpRunner executes a prepared yt-dlp command against target and returns its stdout.
type ytdlpRunner func(ctx context.Context, cmd *ytdlp.Command, target string) (string, error)

func runYTDLP(ctx context.Context, cmd *ytdlp.Command, target string) (string, error) {
	res, err := cmd.Run(ctx, target)
	if err != nil {
		detail := err.Error()
		if res != nil && res.Stderr != "" {
			detail = strings.TrimSpace(res.Stderr)
		}
		return "", classifyYTDLP(ctx, detail)
	}
	return res.Stdout, nil
}

func classifyYTDLP(ctx context.Context, detail string) error {
	if ctx.Err() != nil {
		return fmt.Errorf("%w: yt-dlp interrupted: %w", shared.ErrAborted, ctx.Err())
	}
	lower := strings.ToLower(detail)
	switch {
	case strings.Contains(lower, "name resolution"),
		strings.Contains(lower, "getaddrinfo"),
		strings.Contains(lower, "network is unreachable"),
		strings.Contains(lower, "timed out"):
		return fmt.Errorf("%w: %s", shared.ErrNetworkUnreachable, detail)
	case strings.Contains(lower, "video unavailable"),
		strings.Contains(lower, "does not exist"),
		strings.Contains(lower, "404"):
		return fmt.Errorf("%w: %s", shared.ErrNotFound, detail)
	}
	return fmt.Errorf("%w: %s", shared.ErrExtractionFailed, detail)
}

// ytThumbnail is one entry of yt-dlp's thumbnails list.
type ytThumbnail struct {
	URL    string `json:"url"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// ytInfo is the subset of yt-dlp's info dict tapedeck reads.
type ytInfo struct {
	ID                 string        `json:"id"`
	Title              string        `json:"title"`
	Track              string        `json:"track"`
	Uploader           string        `json:"uploader"`
	Channel            string        `json:"channel"`
	Artist             string        `json:"artist"`
	Artists            []string      `json:"artists"`
	Album              string        `json:"album"`
	ReleaseYear        int           `json:"release_year"`
	UploadDate         string        `json:"upload_date"`
	Duration           float64       `json:"duration"`
	Thumbnail          string        `json:"thumbnail"`
	Thumbnails         []ytThumbnail `json:"thumbnails"`
	Filename           string        `json:"_filename"`
	RequestedDownloads []struct {
		Filepath string `json:"filepath"`
	} `json:"requested_downloads"`
	Entries []ytInfo `json:"entries"`
}

// decodeInfo returns the last JSON object printed on stdout, skipping progress lines.
func decodeInfo(stdout string) (*ytInfo, error) {
	var found *ytInfo
	sc := bufio.NewScanner(strings.NewReader(stdout))
	sc.Buffer(make([]byte, 0, 64*1024), 64*1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if !strings.HasPrefix(line, "{") {
			continue
		}
		var info ytInfo
		if err := json.Unmarshal([]byte(line), &info); err != nil {
			continue
		}
		found = &info
	}
	if found == nil {
		return nil, fmt.Errorf("%w: yt-dlp printed no info json", shared.ErrExtractionFailed)
	}
	return found, nil
}

func (i *ytInfo) artists() []string {
	if len(i.Artists) > 0 {
		return i.Artists
	}
	line := i.Artist
	if line == "" {
		line = i.Uploader
	}
	if line == "" {
		line = i.Channel
	}
	line = strings.TrimSuffix(line, " - Topic")

	var out []string
	for _, a := range strings.Split(line, "&") {
		if a = strings.TrimSpace(a); a != "" {
			out = append(out, a)
		}
	}
	return out
}

func (i *ytInfo) year() int {
	if i.ReleaseYear > 0 {
		return i.ReleaseYear
	}
	return parseYear(i.UploadDate)
}

// cover prefers the third thumbnail when it is square, then the advertised thumbnail, then the last listed.
func (i *ytInfo) cover() string {
	if len(i.Thumbnails) > 2 {
		if t := i.Thumbnails[2]; t.Width > 0 && t.Width == t.Height {
			return t.URL
		}
	}
	if i.Thumbnail != "" {
		return i.Thumbnail
	}
	if n := len(i.Thumbnails); n > 0 {
		return i.Thumbnails[n-1].URL
	}
	return ""
}

func (i *ytInfo) title() string {
	if i.Track != "" {
		return i.Track
	}
	return i.Title
}

func (i *ytInfo) filePath() string {
	if len(i.RequestedDownloads) > 0 && i.RequestedDownloads[0].Filepath != "" {
		return i.RequestedDownloads[0].Filepath
	}
	return i.Filename
}

// ParseYouTubeLink extracts the kind and id from watch?v=, youtu.be/ and list= links.
// A watch link that also carries list= resolves to the single video.
func ParseYouTubeLink(link string) (YouTubeKind, string, error) {
	u, err := url.Parse(link)
	if err != nil || u.Host == "" {
		return "", "", fmt.Errorf("%w: not a youtube link: %s", shared.ErrInvalidLink, link)
	}

	host := strings.TrimPrefix(strings.ToLower(u.Host), "www.")
	q := u.Query()
	switch {
	case host == "youtu.be":
		id := strings.Trim(u.Path, "/")
		if !youtubeIDPattern.MatchString(id) {
			return "", "", fmt.Errorf("%w: invalid video id %q", shared.ErrInvalidLink, id)
		}
		return YouTubeVideo, id, nil
	case !strings.HasSuffix(host, "youtube.com"):
		return "", "", fmt.Errorf("%w: not a youtube link: %s", shared.ErrInvalidLink, link)
	case q.Get("v") != "":
		id := q.Get("v")
		if !youtubeIDPattern.MatchString(id) {
			return "", "", fmt.Errorf("%w: invalid video id %q", shared.ErrInvalidLink, id)
		}
		return YouTubeVideo, id, nil
	case q.Get("list") != "":
		id := q.Get("list")
		if !youtubeListPattern.MatchString(id) {
			return "", "", fmt.Errorf("%w: invalid playlist id %q", shared.ErrInvalidLink, id)
		}
		return YouTubePlaylist, id, nil
	}
	return "", "", fmt.Errorf("%w: expected a watch?v= or list= link: %s", shared.ErrInvalidLink, link)
}

// YouTubeResolver resolves video and playlist links from yt-dlp info dumps.
type YouTubeResolver struct {
	binary string
	logger *log.Logger
	run    ytdlpRunner
}

// NewYouTubeResolver creates a resolver that runs binary (default "yt-dlp").
func NewYouTubeResolver(binary string, logger *log.Logger) *YouTubeResolver {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &YouTubeResolver{binary: binary, logger: shared.WithLogger(logger, "resolver", "youtube"), run: runYTDLP}
}

func (y *YouTubeResolver) Name() string { return string(models.PlatformYouTube) }

func (y *YouTubeResolver) Supports(link string) bool {
	return strings.Contains(link, "youtube.com") || strings.Contains(link, "youtu.be")
}

// Resolve dumps the info json for link without downloading media.
func (y *YouTubeResolver) Resolve(ctx context.Context, link string) (*models.Entry, error) {
	kind, id, err := ParseYouTubeLink(link)
	if err != nil {
		return nil, err
	}
	y.logger.Debug("resolving", "kind", kind, "id", id)

	cmd := newCommand(y.binary).DumpSingleJSON().SkipDownload()
	if kind == YouTubePlaylist {
		out, err := y.run(ctx, cmd.FlatPlaylist(), fmt.Sprintf(youtubePlaylistURL, id))
		if err != nil {
			return nil, err
		}
		info, err := decodeInfo(out)
		if err != nil {
			return nil, err
		}
		return &models.Entry{Collection: playlistFromInfo(info, id)}, nil
	}

	out, err := y.run(ctx, cmd.NoPlaylist(), fmt.Sprintf(youtubeWatchURL, id))
	if err != nil {
		return nil, err
	}
	info, err := decodeInfo(out)
	if err != nil {
		return nil, err
	}
	t := trackFromInfo(info, 1)
	if t.SourceID == "" {
		t.SourceID = id
	}
	return &models.Entry{Track: &t}, nil
}

func trackFromInfo(info *ytInfo, number int) models.Track {
	return withDefaults(models.Track{
		Title:        info.title(),
		Artists:      info.artists(),
		Album:        info.Album,
		Duration:     int(info.Duration),
		Year:         info.year(),
		ThumbnailURL: info.cover(),
		TrackNumber:  number,
		Platform:     models.PlatformYouTube,
		SourceID:     info.ID,
	})
}

func playlistFromInfo(info *ytInfo, id string) *models.Collection {
	c := &models.Collection{
		Title:        info.Title,
		ThumbnailURL: info.cover(),
		SourceID:     id,
		Platform:     models.PlatformYouTube,
		Kind:         models.KindPlaylist,
		Tracks:       make([]models.Track, 0, len(info.Entries)),
	}
	if c.Title == "" {
		c.Title = UnknownTitle
	}
	for _, e := range info.Entries {
		if !youtubeIDPattern.MatchString(e.ID) {
			continue
		}
		c.Tracks = append(c.Tracks, trackFromInfo(&e, len(c.Tracks)+1))
	}
	return c
}

func newCommand(binary string) *ytdlp.Command {
	cmd := ytdlp.New()
	if binary != "" {
		cmd = cmd.SetExecutable(binary)
	}
	return cmd
}

// FetcherOptions configures a [YTDLPFetcher].
type FetcherOptions struct {
	Binary    string
	TempDir   string
	RateLimit float64
	Logger    *log.Logger
}

// YTDLPFetcher downloads the best audio stream of a YouTube video into the temp folder.
type YTDLPFetcher struct {
	binary  string
	tempDir string
	limiter *rate.Limiter
	logger  *log.Logger
	run     ytdlpRunner
}

// NewYTDLPFetcher creates a fetcher writing into opts.TempDir (default ".TEMP").
func NewYTDLPFetcher(opts FetcherOptions) *YTDLPFetcher {
	if opts.TempDir == "" {
		opts.TempDir = ".TEMP"
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	limit := rate.Inf
	if opts.RateLimit > 0 {
		limit = rate.Limit(opts.RateLimit)
	}
	return &YTDLPFetcher{
		binary:  opts.Binary,
		tempDir: opts.TempDir,
		limiter: rate.NewLimiter(limit, 1),
		logger:  shared.WithLogger(opts.Logger, "component", "fetcher"),
		run:     runYTDLP,
	}
}

func (f *YTDLPFetcher) Name() string { return "direct" }

// Acquire fetches YouTube tracks by id into dir. Other platforms return [shared.ErrUnsupportedPlatform].
func (f *YTDLPFetcher) Acquire(ctx context.Context, track models.Track, dir string) (*models.RawAudio, error) {
	if track.Platform != models.PlatformYouTube {
		return nil, fmt.Errorf("%w: direct fetch of %s", shared.ErrUnsupportedPlatform, track.Platform)
	}
	return f.Fetch(ctx, track.SourceID, dir)
}

// Fetch downloads video id as <dir>/<id>.<ext> and returns the file with the metadata yt-dlp reported.
// An empty dir means the fetcher's temp folder.
func (f *YTDLPFetcher) Fetch(ctx context.Context, id, dir string) (*models.RawAudio, error) {
	if !youtubeIDPattern.MatchString(id) {
		return nil, fmt.Errorf("%w: %q", shared.ErrInvalidID, id)
	}
	if dir == "" {
		dir = f.tempDir
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create temp folder: %w", err)
	}
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: %w", shared.ErrAborted, err)
	}

	logger := shared.WithLogger(f.logger, "id", id)
	cmd := newCommand(f.binary).
		Format(ytdlpAudioFormat).
		Output(filepath.Join(dir, id+".%(ext)s")).
		NoPlaylist().
		PrintJSON()
	cmd.ProgressFunc(time.Second, func(update ytdlp.ProgressUpdate) {
		if update.TotalBytes > 0 {
			logger.Debug("downloading", "percent", update.DownloadedBytes*100/update.TotalBytes)
		}
	})

	out, err := f.run(ctx, cmd, fmt.Sprintf(youtubeWatchURL, id))
	if err != nil {
		return nil, err
	}
	info, err := decodeInfo(out)
	if err != nil {
		return nil, err
	}

	path := info.filePath()
	if path == "" {
		return nil, fmt.Errorf("%w: yt-dlp reported no output file for %s", shared.ErrExtractionFailed, id)
	}
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("%w: downloaded file missing: %v", shared.ErrExtractionFailed, err)
	}

	logger.Debug("fetched", "path", path)
	return &models.RawAudio{
		Path:         path,
		SourceID:     id,
		Title:        info.title(),
		Artists:      info.artists(),
		Album:        info.Album,
		Year:         info.year(),
		Duration:     int(info.Duration),
		ThumbnailURL: info.cover(),
	}, nil
}
