package tmdb

import (
	"fmt"
	"net/url"
	"strconv"

	"github.com/air-gapped/moviego/internal/cache"
)

// Tag types provided by the endpoints.
const (
	TagConfiguration = "Configuration"
	TagTrending      = "TrendingMedia"
	TagNowPlaying    = "NowPlayingMedia"
	TagTopRated      = "TopRatedMedia"
	TagPopular       = "PopularMedia"
	TagUpcoming      = "UpcomingMedia"
	TagOnAir         = "OnAirTvShows"
	TagDiscover      = "DiscoverMedia"
	TagSearch        = "SearchMedia"
)

var configurationEndpoint = &Endpoint[NoArgs, ImageConfig]{
	Name:   "configuration",
	TTL:    TTLConfiguration,
	Path:   staticPath[NoArgs]("/configuration"),
	Tags:   staticTags[NoArgs](cache.Tag{Type: TagConfiguration}),
	Decode: decodeImageConfig,
}

var trendingEndpoint = &Endpoint[NoArgs, *Page]{
	Name:   "trending",
	TTL:    TTLTrending,
	Path:   staticPath[NoArgs]("/trending/all/week"),
	Tags:   staticTags[NoArgs](cache.Tag{Type: TagTrending}),
	Decode: decodeAnyPage[NoArgs],
}

var nowPlayingEndpoint = &Endpoint[NoArgs, *Page]{
	Name:   "now-playing",
	TTL:    TTLNowPlaying,
	Path:   staticPath[NoArgs]("/movie/now_playing"),
	Tags:   staticTags[NoArgs](cache.Tag{Type: TagNowPlaying}),
	Decode: decodeTypedPage(constType[NoArgs]("movie")),
}

var topRatedEndpoint = &Endpoint[NoArgs, *Page]{
	Name:   "top-rated",
	TTL:    TTLDefault,
	Path:   staticPath[NoArgs]("/movie/top_rated"),
	Tags:   staticTags[NoArgs](cache.Tag{Type: TagTopRated}),
	Decode: decodeTypedPage(constType[NoArgs]("movie")),
}

var popularEndpoint = &Endpoint[MediaTypeArgs, *Page]{
	Name: "popular",
	TTL:  TTLDefault,
	Path: func(a MediaTypeArgs) string { return "/" + a.MediaType + "/popular" },
	Tags: func(a MediaTypeArgs) []cache.Tag {
		return []cache.Tag{{Type: TagPopular, ID: a.MediaType}}
	},
	Decode: decodeTypedPage(func(a MediaTypeArgs) string { return a.MediaType }),
}

var upcomingEndpoint = &Endpoint[NoArgs, *Page]{
	Name:   "upcoming",
	TTL:    TTLDefault,
	Path:   staticPath[NoArgs]("/movie/upcoming"),
	Tags:   staticTags[NoArgs](cache.Tag{Type: TagUpcoming}),
	Decode: decodeTypedPage(constType[NoArgs]("movie")),
}

var onAirEndpoint = &Endpoint[NoArgs, *Page]{
	Name:   "on-air",
	TTL:    TTLDefault,
	Path:   staticPath[NoArgs]("/tv/on_the_air"),
	Params: englishParams[NoArgs],
	Tags:   staticTags[NoArgs](cache.Tag{Type: TagOnAir}),
	Decode: decodeTypedPage(constType[NoArgs]("tv")),
}

var discoverEndpoint = &Endpoint[DiscoverArgs, *Page]{
	Name: "discover",
	TTL:  TTLDefault,
	Path: func(a DiscoverArgs) string { return "/discover/" + a.MediaType },
	Params: func(a DiscoverArgs) url.Values {
		return url.Values{"page": {strconv.Itoa(a.PageNo)}}
	},
	Tags: func(a DiscoverArgs) []cache.Tag {
		return []cache.Tag{
			{Type: TagDiscover, ID: a.MediaType},
			{Type: TagDiscover, ID: fmt.Sprintf("%s-page-%d", a.MediaType, a.PageNo)},
		}
	},
	Decode: decodeTypedPage(func(a DiscoverArgs) string { return a.MediaType }),
	Merge:  MergePage,
	ForceRefetch: func(prev, cur DiscoverArgs) bool {
		return prev.PageNo != cur.PageNo
	},
}

var searchEndpoint = &Endpoint[SearchArgs, *Page]{
	Name: "search",
	TTL:  TTLSearch,
	Path: staticPath[SearchArgs]("/search/multi"),
	Params: func(a SearchArgs) url.Values {
		return url.Values{"query": {a.Query}, "page": {strconv.Itoa(a.PageNo)}}
	},
	Tags: func(a SearchArgs) []cache.Tag {
		return []cache.Tag{
			{Type: TagSearch, ID: a.Query},
			{Type: TagSearch, ID: fmt.Sprintf("%s-page-%d", a.Query, a.PageNo)},
		}
	},
	Decode: decodeAnyPage[SearchArgs],
	Merge:  MergePage,
	ForceRefetch: func(prev, cur SearchArgs) bool {
		return prev.PageNo != cur.PageNo || prev.Query != cur.Query
	},
}

var detailsEndpoint = &Endpoint[MediaArgs, *Details]{
	Name: "details",
	TTL:  TTLDetails,
	Path: func(a MediaArgs) string { return fmt.Sprintf("/%s/%d", a.MediaType, a.MediaID) },
	Tags: mediaTags("MediaDetails"),
	Decode: func(body []byte, a MediaArgs) (*Details, error) {
		d, err := decodeJSON[MediaArgs, Details](body, a)
		if err != nil {
			return nil, err
		}
		if d.MediaType == "" {
			d.MediaType = a.MediaType
		}
		return d, nil
	},
}

var creditsEndpoint = &Endpoint[MediaArgs, *Credits]{
	Name:   "credits",
	TTL:    TTLDetails,
	Path:   func(a MediaArgs) string { return fmt.Sprintf("/%s/%d/credits", a.MediaType, a.MediaID) },
	Tags:   mediaTags("MediaCredits"),
	Decode: decodeJSON[MediaArgs, Credits],
}

var similarEndpoint = &Endpoint[MediaArgs, *Page]{
	Name:   "similar",
	TTL:    TTLDefault,
	Path:   func(a MediaArgs) string { return fmt.Sprintf("/%s/%d/similar", a.MediaType, a.MediaID) },
	Tags:   mediaTags("SimilarMedia"),
	Decode: decodeTypedPage(func(a MediaArgs) string { return a.MediaType }),
}

var recommendedEndpoint = &Endpoint[MediaArgs, *Page]{
	Name:   "recommended",
	TTL:    TTLDefault,
	Path:   func(a MediaArgs) string { return fmt.Sprintf("/%s/%d/recommendations", a.MediaType, a.MediaID) },
	Tags:   mediaTags("RecommendedMedia"),
	Decode: decodeTypedPage(func(a MediaArgs) string { return a.MediaType }),
}

var videosEndpoint = &Endpoint[MediaArgs, *Videos]{
	Name: "videos",
	TTL:  TTLDefault,
	Path: func(a MediaArgs) string { return fmt.Sprintf("/%s/%d/videos", a.MediaType, a.MediaID) },
	Tags: func(a MediaArgs) []cache.Tag {
		typ := "MovieVideos"
		if a.MediaType == "tv" {
			typ = "TvVideos"
		}
		return []cache.Tag{{Type: typ, ID: strconv.FormatInt(a.MediaID, 10)}}
	},
	Decode: decodeJSON[MediaArgs, Videos],
}

func mediaTags(base string) func(MediaArgs) []cache.Tag {
	return func(a MediaArgs) []cache.Tag {
		return []cache.Tag{{Type: mediaTag(base, a.MediaType), ID: strconv.FormatInt(a.MediaID, 10)}}
	}
}

// EndpointNames lists every endpoint, in the order the API is documented.
var EndpointNames = []string{
	configurationEndpoint.Name,
	trendingEndpoint.Name,
	nowPlayingEndpoint.Name,
	topRatedEndpoint.Name,
	popularEndpoint.Name,
	upcomingEndpoint.Name,
	onAirEndpoint.Name,
	discoverEndpoint.Name,
	searchEndpoint.Name,
	detailsEndpoint.Name,
	creditsEndpoint.Name,
	similarEndpoint.Name,
	recommendedEndpoint.Name,
	videosEndpoint.Name,
}
